package frame

import (
	"fmt"

	"github.com/spaghettifunk/tessera/engine/core"
	"github.com/spaghettifunk/tessera/engine/renderer/metadata"
)

type SlotDevice interface {
	metadata.SyncDevice
	metadata.CommandDevice
}

/**
 * @brief Everything one frame in flight owns. The fence is created signaled
 * so the first use of the slot does not block.
 */
type Slot struct {
	Index           int
	ImageAvailable  metadata.Semaphore
	RenderFinished  metadata.Semaphore
	ComputeFinished metadata.Semaphore
	InFlight        *Fence
	Compute         metadata.CommandBuffer
	Graphics        metadata.CommandBuffer
}

func NewSlots(dev SlotDevice, count int) ([]*Slot, error) {
	if count < 1 {
		return nil, core.MisuseError("frame.NewSlots", fmt.Errorf("need at least one frame in flight, got %d", count))
	}
	compute, err := dev.AllocateCommandBuffers(metadata.QueueCompute, count)
	if err != nil {
		return nil, core.ConfigurationError("frame.NewSlots", err)
	}
	graphics, err := dev.AllocateCommandBuffers(metadata.QueueGraphics, count)
	if err != nil {
		dev.FreeCommandBuffers(metadata.QueueCompute, compute)
		return nil, core.ConfigurationError("frame.NewSlots", err)
	}

	slots := make([]*Slot, 0, count)
	for i := 0; i < count; i++ {
		s := &Slot{Index: i, Compute: compute[i], Graphics: graphics[i]}
		slots = append(slots, s)
		for _, sem := range []*metadata.Semaphore{&s.ImageAvailable, &s.RenderFinished, &s.ComputeFinished} {
			if *sem, err = dev.CreateSemaphore(); err != nil {
				DestroySlots(dev, slots)
				return nil, core.ConfigurationError("frame.NewSlots", err)
			}
		}
		if s.InFlight, err = NewFence(dev, true); err != nil {
			DestroySlots(dev, slots)
			return nil, err
		}
	}
	return slots, nil
}

// DestroySlots releases the slots. The device must be idle.
func DestroySlots(dev SlotDevice, slots []*Slot) {
	compute := make([]metadata.CommandBuffer, 0, len(slots))
	graphics := make([]metadata.CommandBuffer, 0, len(slots))
	for _, s := range slots {
		for _, sem := range []metadata.Semaphore{s.ImageAvailable, s.RenderFinished, s.ComputeFinished} {
			if sem != metadata.NullHandle {
				dev.DestroySemaphore(sem)
			}
		}
		if s.InFlight != nil {
			s.InFlight.Destroy()
		}
		compute = append(compute, s.Compute)
		graphics = append(graphics, s.Graphics)
	}
	dev.FreeCommandBuffers(metadata.QueueCompute, compute)
	dev.FreeCommandBuffers(metadata.QueueGraphics, graphics)
}
