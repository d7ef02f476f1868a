package memory

import (
	"fmt"

	"github.com/google/uuid"
	"github.com/spaghettifunk/tessera/engine/containers"
	"github.com/spaghettifunk/tessera/engine/core"
	"github.com/spaghettifunk/tessera/engine/renderer/metadata"
)

// BoundBuffer is one buffer bound inside an Allocation.
type BoundBuffer struct {
	Buffer metadata.Buffer
	// Bytes the buffer can hold. Writes are checked against it.
	Size uint64
	// Byte range of the buffer inside the allocation. Range.Size is the
	// device requirement rounded up to the batch alignment.
	Range containers.Partition[uint64]
}

/**
 * @brief One device memory block backing a batch of buffers. The
 * allocation owns the buffers: Destroy releases both.
 */
type Allocation struct {
	ID        uuid.UUID
	Memory    metadata.DeviceMemory
	Size      uint64
	TypeIndex uint32
	Buffers   []BoundBuffer

	destroyed bool
}

// AlignUp rounds size up to the next multiple of alignment. Alignments of
// zero or one leave size untouched.
func AlignUp(size, alignment uint64) uint64 {
	if alignment <= 1 {
		return size
	}
	return (size + alignment - 1) / alignment * alignment
}

// FindMemoryType returns the lowest memory type index allowed by typeBits
// whose flags are a superset of required.
func FindMemoryType(types []metadata.MemoryType, typeBits uint32, required metadata.MemoryPropertyFlags) (uint32, bool) {
	for i, t := range types {
		if i >= 32 {
			break
		}
		if typeBits&(1<<uint(i)) != 0 && t.PropertyFlags.Has(required) {
			return uint32(i), true
		}
	}
	return 0, false
}

/**
 * @brief Allocate places every buffer in a single allocation of one memory
 * type and binds each at an offset aligned to the largest alignment in the
 * batch.
 *
 * The whole batch shares one memory type even when the buffers could be
 * served by different ones. A batch with no common type fails with
 * ErrNoCompatibleMemoryType as a configuration error.
 */
func Allocate(dev metadata.MemoryDevice, buffers []metadata.Buffer, required metadata.MemoryPropertyFlags) (*Allocation, error) {
	if len(buffers) == 0 {
		return nil, core.MisuseError("memory.Allocate", core.ErrNoBuffers)
	}

	typeBits := ^uint32(0)
	alignment := uint64(1)
	sizes := make([]uint64, len(buffers))
	reported := make([]uint64, len(buffers))
	for i, b := range buffers {
		req := dev.BufferMemoryRequirements(b)
		typeBits &= req.MemoryTypeBits
		if req.Alignment > alignment {
			alignment = req.Alignment
		}
		sizes[i] = req.Size
		reported[i] = req.Size
	}
	for i := range sizes {
		sizes[i] = AlignUp(sizes[i], alignment)
	}
	layout := containers.PartitionSizes(sizes)
	total := containers.TotalSize(layout)

	typeIndex, ok := FindMemoryType(dev.MemoryTypes(), typeBits, required)
	if !ok {
		return nil, core.ConfigurationError("memory.Allocate",
			fmt.Errorf("%w (type bits %#x, flags %#x)", core.ErrNoCompatibleMemoryType, typeBits, uint32(required)))
	}

	mem, err := dev.AllocateMemory(total, typeIndex)
	if err != nil {
		return nil, core.ConfigurationError("memory.Allocate", err)
	}

	a := &Allocation{
		ID:        uuid.New(),
		Memory:    mem,
		Size:      total,
		TypeIndex: typeIndex,
		Buffers:   make([]BoundBuffer, len(buffers)),
	}
	for i, b := range buffers {
		if err := dev.BindBufferMemory(b, mem, layout[i].Offset); err != nil {
			dev.FreeMemory(mem)
			return nil, core.ConfigurationError("memory.Allocate", fmt.Errorf("bind buffer %d: %w", i, err))
		}
		a.Buffers[i] = BoundBuffer{Buffer: b, Size: reported[i], Range: layout[i]}
	}

	core.LogDebug("allocation %s: %d buffers, %d bytes, memory type %d, alignment %d", a.ID, len(buffers), total, typeIndex, alignment)
	return a, nil
}

// BufferSpec describes one buffer to create with CreateAndAllocate.
type BufferSpec struct {
	Size  uint64
	Usage metadata.BufferUsageFlags
}

// CreateAndAllocate creates the buffers and places them in a single
// allocation. On failure every buffer created so far is destroyed.
func CreateAndAllocate(dev metadata.MemoryDevice, specs []BufferSpec, required metadata.MemoryPropertyFlags) (*Allocation, error) {
	buffers := make([]metadata.Buffer, 0, len(specs))
	destroy := func() {
		for _, b := range buffers {
			dev.DestroyBuffer(b)
		}
	}
	for _, spec := range specs {
		b, err := dev.CreateBuffer(spec.Size, spec.Usage)
		if err != nil {
			destroy()
			return nil, core.ConfigurationError("memory.CreateAndAllocate", err)
		}
		buffers = append(buffers, b)
	}
	a, err := Allocate(dev, buffers, required)
	if err != nil {
		destroy()
		return nil, err
	}
	// the device may report more than was asked for
	for i, spec := range specs {
		a.Buffers[i].Size = spec.Size
	}
	return a, nil
}

// Uniform is a shortcut for count buffers of identical size and usage.
func Uniform(count int, size uint64, usage metadata.BufferUsageFlags) []BufferSpec {
	specs := make([]BufferSpec, count)
	for i := range specs {
		specs[i] = BufferSpec{Size: size, Usage: usage}
	}
	return specs
}

func (a *Allocation) Buffer(i int) metadata.Buffer {
	return a.Buffers[i].Buffer
}

// Write copies data into buffer i at offset through a temporary mapping.
// The allocation must be host visible.
func (a *Allocation) Write(dev metadata.MemoryDevice, i int, offset uint64, data []byte) error {
	b := a.Buffers[i]
	if offset > b.Size || uint64(len(data)) > b.Size-offset {
		return core.MisuseError("memory.Write",
			fmt.Errorf("write of %d bytes at %d overflows buffer %d (%d bytes)", len(data), offset, i, b.Size))
	}
	if len(data) == 0 {
		return nil
	}
	mapped, err := dev.MapMemory(a.Memory, b.Range.Offset+offset, uint64(len(data)))
	if err != nil {
		return core.ConfigurationError("memory.Write", err)
	}
	copy(mapped, data)
	dev.UnmapMemory(a.Memory)
	return nil
}

// Destroy releases the buffers, then the memory. Only the first call has an effect.
func (a *Allocation) Destroy(dev metadata.MemoryDevice) {
	if a == nil || a.destroyed {
		return
	}
	for _, b := range a.Buffers {
		dev.DestroyBuffer(b.Buffer)
	}
	dev.FreeMemory(a.Memory)
	a.destroyed = true
	core.LogDebug("allocation %s destroyed", a.ID)
}
