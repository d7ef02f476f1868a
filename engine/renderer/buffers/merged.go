package buffers

import (
	"fmt"

	"github.com/spaghettifunk/tessera/engine/renderer/memory"
	"github.com/spaghettifunk/tessera/engine/renderer/metadata"
)

/**
 * @brief One device local buffer per frame slot, written by the compute
 * pass and read as a per-instance vertex stream by the graphics pass.
 */
type Merged struct {
	alloc    *memory.Allocation
	capacity uint32
}

// NewMerged sizes every slot for all static instances plus the maximum
// number of dynamic instances.
func NewMerged(dev metadata.MemoryDevice, slots int, staticCount, maxDynamic uint32) (*Merged, error) {
	capacity := staticCount + maxDynamic
	if capacity == 0 {
		capacity = 1
	}
	alloc, err := memory.CreateAndAllocate(dev,
		memory.Uniform(slots, uint64(capacity)*metadata.MergedInstanceStride,
			metadata.BufferUsageStorageBuffer|metadata.BufferUsageVertexBuffer),
		metadata.MemoryPropertyDeviceLocal)
	if err != nil {
		return nil, fmt.Errorf("merged tier: %w", err)
	}
	return &Merged{alloc: alloc, capacity: capacity}, nil
}

func (m *Merged) Buffer(slot int) metadata.Buffer {
	return m.alloc.Buffer(slot)
}

// Capacity counts records per slot.
func (m *Merged) Capacity() uint32 {
	return m.capacity
}

func (m *Merged) Destroy(dev metadata.MemoryDevice) {
	m.alloc.Destroy(dev)
}
