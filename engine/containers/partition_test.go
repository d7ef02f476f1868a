package containers

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/exp/rand"
)

func TestPartitionSizesIsContiguous(t *testing.T) {
	parts := PartitionSizes([]uint32{4, 0, 6, 3})
	require.Len(t, parts, 4)
	assert.Equal(t, Partition[uint32]{Size: 4, Offset: 0}, parts[0])
	assert.Equal(t, Partition[uint32]{Size: 0, Offset: 4}, parts[1])
	assert.True(t, parts[1].IsEmpty())
	assert.Equal(t, Partition[uint32]{Size: 6, Offset: 4}, parts[2])
	assert.Equal(t, Partition[uint32]{Size: 3, Offset: 10}, parts[3])
	assert.Equal(t, uint32(13), TotalSize(parts))
	assert.True(t, Contiguous(parts))
}

func TestEmptyTable(t *testing.T) {
	parts := PartitionSizes[uint64](nil)
	assert.Empty(t, parts)
	assert.Zero(t, TotalSize(parts))
	assert.True(t, Contiguous(parts))
}

func TestContiguousDetectsHoles(t *testing.T) {
	assert.False(t, Contiguous([]Partition[uint32]{{Size: 2, Offset: 0}, {Size: 2, Offset: 3}}))
	assert.False(t, Contiguous([]Partition[uint32]{{Size: 2, Offset: 1}}))
	assert.False(t, Contiguous([]Partition[uint32]{{Size: 4, Offset: 0}, {Size: 2, Offset: 2}}))
}

func TestFlattenRoundTrip(t *testing.T) {
	r := rand.New(rand.NewSource(7))
	for iter := 0; iter < 50; iter++ {
		chunks := make([][]int, r.Intn(8))
		for i := range chunks {
			chunks[i] = make([]int, r.Intn(5))
			for j := range chunks[i] {
				chunks[i][j] = r.Int()
			}
		}
		l := NewLinear2D(chunks)
		require.Equal(t, len(chunks), l.Len())
		require.True(t, Contiguous(l.Partitions()))
		for i, c := range chunks {
			assert.Equal(t, uint32(len(c)), l.Partition(i).Size)
			if len(c) == 0 {
				assert.Empty(t, l.Chunk(i))
				continue
			}
			assert.Equal(t, c, l.Chunk(i))
		}
		assert.Equal(t, int(TotalSize(l.Partitions())), len(l.Data()))
	}
}

func TestSliceCannotGrowIntoNeighbour(t *testing.T) {
	data := []int{1, 2, 3, 4}
	s := Slice(data, Partition[uint32]{Size: 2, Offset: 0})
	s = append(s, 99)
	assert.Equal(t, []int{1, 2, 3, 4}, data)
	assert.Equal(t, []int{1, 2, 99}, s)
}
