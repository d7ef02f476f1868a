package memory

import (
	"testing"

	"github.com/spaghettifunk/tessera/engine/containers"
	"github.com/spaghettifunk/tessera/engine/core"
	"github.com/spaghettifunk/tessera/engine/renderer/gputest"
	"github.com/spaghettifunk/tessera/engine/renderer/metadata"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/exp/rand"
)

func TestAlignUp(t *testing.T) {
	tests := []struct {
		size, alignment, want uint64
	}{
		{0, 256, 0},
		{1, 256, 256},
		{256, 256, 256},
		{257, 256, 512},
		{100, 0, 100},
		{100, 1, 100},
		{24, 16, 32},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, AlignUp(tt.size, tt.alignment), "AlignUp(%d, %d)", tt.size, tt.alignment)
	}
}

func TestFindMemoryTypePicksLowestSuperset(t *testing.T) {
	types := gputest.DefaultMemoryTypes()

	idx, ok := FindMemoryType(types, 0b111, metadata.MemoryPropertyHostVisible)
	require.True(t, ok)
	assert.Equal(t, uint32(1), idx)

	idx, ok = FindMemoryType(types, 0b100, metadata.MemoryPropertyHostVisible)
	require.True(t, ok)
	assert.Equal(t, uint32(2), idx)

	idx, ok = FindMemoryType(types, 0b111, metadata.MemoryPropertyDeviceLocal)
	require.True(t, ok)
	assert.Equal(t, uint32(0), idx)

	_, ok = FindMemoryType(types, 0b001, metadata.MemoryPropertyHostVisible)
	assert.False(t, ok)
}

func TestAllocateEmptyBatchIsMisuse(t *testing.T) {
	dev := gputest.New()
	_, err := Allocate(dev, nil, metadata.MemoryPropertyDeviceLocal)
	require.Error(t, err)
	assert.True(t, core.IsMisuse(err))
	assert.ErrorIs(t, err, core.ErrNoBuffers)
	assert.Zero(t, dev.Count("AllocateMemory"))
}

func TestAllocateWithoutCommonTypeIsFatal(t *testing.T) {
	dev := gputest.New()
	dev.Requirements = func(size uint64, usage metadata.BufferUsageFlags) metadata.MemoryRequirements {
		bits := uint32(0b001)
		if usage&metadata.BufferUsageTransferSrc != 0 {
			bits = 0b010
		}
		return metadata.MemoryRequirements{Size: size, Alignment: 16, MemoryTypeBits: bits}
	}
	_, err := CreateAndAllocate(dev, []BufferSpec{
		{Size: 64, Usage: metadata.BufferUsageVertexBuffer},
		{Size: 64, Usage: metadata.BufferUsageTransferSrc},
	}, 0)
	require.Error(t, err)
	assert.True(t, core.IsFatal(err))
	assert.ErrorIs(t, err, core.ErrNoCompatibleMemoryType)
	assert.Zero(t, dev.Live()["buffer"], "buffers of a failed batch are destroyed")
	assert.Zero(t, dev.Count("AllocateMemory"))
}

func TestAllocateRandomBatchesAreAlignedAndDisjoint(t *testing.T) {
	r := rand.New(rand.NewSource(1234))
	for iter := 0; iter < 200; iter++ {
		dev := gputest.New()
		alignments := make(map[uint64]uint64)
		dev.Requirements = func(size uint64, usage metadata.BufferUsageFlags) metadata.MemoryRequirements {
			return metadata.MemoryRequirements{Size: size, Alignment: alignments[size], MemoryTypeBits: 0b110}
		}

		count := 1 + r.Intn(6)
		specs := make([]BufferSpec, count)
		maxAlign := uint64(1)
		for i := range specs {
			// unique sizes so the requirement callback can tell buffers apart
			size := uint64(iter*1000+i*100) + 1 + uint64(r.Intn(99))
			align := uint64(1) << uint(r.Intn(9))
			alignments[size] = align
			if align > maxAlign {
				maxAlign = align
			}
			specs[i] = BufferSpec{Size: size, Usage: metadata.BufferUsageStorageBuffer}
		}

		a, err := CreateAndAllocate(dev, specs, metadata.MemoryPropertyHostVisible)
		require.NoError(t, err)
		assert.Equal(t, uint32(1), a.TypeIndex)

		parts := make([]containers.Partition[uint64], len(a.Buffers))
		for i, b := range a.Buffers {
			parts[i] = b.Range
			assert.Zero(t, b.Range.Offset%maxAlign, "offset %d not aligned to %d", b.Range.Offset, maxAlign)
			assert.GreaterOrEqual(t, b.Range.Size, specs[i].Size)
			assert.Equal(t, specs[i].Size, b.Size)
			assert.Zero(t, b.Range.Size%maxAlign)
		}
		assert.True(t, containers.Contiguous(parts))
		assert.Equal(t, containers.TotalSize(parts), a.Size)

		a.Destroy(dev)
		assert.Zero(t, dev.Live()["buffer"])
		assert.Zero(t, dev.Live()["memory"])
		assert.Empty(t, dev.Violations())
	}
}

func TestAllocationWriteAndDestroyOnce(t *testing.T) {
	dev := gputest.New()
	a, err := CreateAndAllocate(dev, Uniform(2, 16, metadata.BufferUsageStorageBuffer), metadata.MemoryPropertyHostVisible|metadata.MemoryPropertyHostCoherent)
	require.NoError(t, err)

	require.NoError(t, a.Write(dev, 1, 4, []byte{1, 2, 3, 4}))
	got := dev.BufferBytes(a.Buffer(1))
	assert.Equal(t, []byte{1, 2, 3, 4}, got[4:8])
	assert.Equal(t, make([]byte, 16), dev.BufferBytes(a.Buffer(0))[:16])

	err = a.Write(dev, 0, 250, make([]byte, 16))
	require.Error(t, err)
	assert.True(t, core.IsMisuse(err))

	a.Destroy(dev)
	a.Destroy(dev)
	assert.Equal(t, 1, dev.Count("FreeMemory"))
	assert.Empty(t, dev.Violations())
}

func TestWriteIsBoundedByCreatedSize(t *testing.T) {
	dev := gputest.New()
	a, err := CreateAndAllocate(dev, Uniform(2, 16, metadata.BufferUsageStorageBuffer), metadata.MemoryPropertyHostVisible|metadata.MemoryPropertyHostCoherent)
	require.NoError(t, err)
	defer a.Destroy(dev)
	require.Equal(t, uint64(256), a.Buffers[0].Range.Size, "padded to the batch alignment")

	tests := []struct {
		name   string
		offset uint64
		size   int
	}{
		{"inside the alignment padding", 100, 64},
		{"one byte past the end", 1, 16},
		{"offset past the end", 17, 0},
		{"offset wraps around", ^uint64(0), 2},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := a.Write(dev, 0, tt.offset, make([]byte, tt.size))
			require.Error(t, err)
			assert.True(t, core.IsMisuse(err))
		})
	}
	assert.Zero(t, dev.Count("MapMemory"))

	require.NoError(t, a.Write(dev, 0, 0, make([]byte, 16)))
	require.NoError(t, a.Write(dev, 0, 16, nil))
	assert.Empty(t, dev.Violations())
}
