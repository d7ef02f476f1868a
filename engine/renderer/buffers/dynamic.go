package buffers

import (
	"fmt"

	"github.com/spaghettifunk/tessera/engine/core"
	"github.com/spaghettifunk/tessera/engine/renderer/memory"
	"github.com/spaghettifunk/tessera/engine/renderer/metadata"
)

/**
 * @brief One host visible, coherent instance buffer per frame slot. The
 * CPU writes a slot only after that slot's fence was observed, so no other
 * synchronization is needed.
 */
type HostWritable struct {
	alloc      *memory.Allocation
	maxRecords uint32
	counts     []uint32
}

func NewHostWritable(dev metadata.MemoryDevice, slots int, maxRecords uint32) (*HostWritable, error) {
	capacity := maxRecords
	if capacity == 0 {
		capacity = 1
	}
	alloc, err := memory.CreateAndAllocate(dev,
		memory.Uniform(slots, uint64(capacity)*metadata.InstanceRecordStride, metadata.BufferUsageStorageBuffer),
		metadata.MemoryPropertyHostVisible|metadata.MemoryPropertyHostCoherent)
	if err != nil {
		return nil, fmt.Errorf("host writable tier: %w", err)
	}
	return &HostWritable{
		alloc:      alloc,
		maxRecords: maxRecords,
		counts:     make([]uint32, slots),
	}, nil
}

// Write replaces the contents of the slot's buffer. More than the maximum
// number of records is rejected before the memory is mapped.
func (h *HostWritable) Write(dev metadata.MemoryDevice, slot int, records []metadata.InstanceRecord) error {
	if uint32(len(records)) > h.maxRecords {
		return core.MisuseError("buffers.HostWritable.Write",
			fmt.Errorf("%w: %d > %d", core.ErrTooManyInstances, len(records), h.maxRecords))
	}
	h.counts[slot] = uint32(len(records))
	if len(records) == 0 {
		return nil
	}
	return h.alloc.Write(dev, slot, 0, metadata.EncodeInstances(records))
}

func (h *HostWritable) Buffer(slot int) metadata.Buffer {
	return h.alloc.Buffer(slot)
}

// Count is the number of records last written to the slot.
func (h *HostWritable) Count(slot int) uint32 {
	return h.counts[slot]
}

func (h *HostWritable) MaxRecords() uint32 {
	return h.maxRecords
}

func (h *HostWritable) Destroy(dev metadata.MemoryDevice) {
	h.alloc.Destroy(dev)
}
