package frame

import (
	"fmt"
	"time"

	"github.com/spaghettifunk/tessera/engine/core"
	"github.com/spaghettifunk/tessera/engine/renderer/metadata"
	"github.com/spaghettifunk/tessera/engine/renderer/swapchain"
)

// Presenter is the swapchain side of a frame.
type Presenter interface {
	RecreatePending() bool
	RequestRecreate()
	TryRetire() bool
	Acquire(timeout uint64, signal metadata.Semaphore) (uint32, metadata.Result)
	Present(imageIndex uint32, wait metadata.Semaphore) metadata.Result
}

// Recorder rebuilds swapchain dependent state and records a frame.
type Recorder interface {
	// RecreateSwapchain must not destroy anything referenced by work that
	// has not passed the gates.
	RecreateSwapchain(gates []swapchain.Gate) error
	RecordFrame(slot *Slot, imageIndex uint32) error
}

type Stats struct {
	Frames          uint64
	Recreations     uint64
	PresentWarnings uint64
	// Time spent blocked on the slot fence during the last frame.
	LastGPUWait time.Duration
}

/**
 * @brief Rotates N frame slots and orders acquire, compute, graphics and
 * present so that at most N frames are in flight and no slot is reused
 * before its fence was observed.
 */
type Synchronizer struct {
	dev       SlotDevice
	presenter Presenter
	recorder  Recorder
	slots     []*Slot
	last      int
	stats     Stats
}

func NewSynchronizer(dev SlotDevice, presenter Presenter, recorder Recorder, slots []*Slot) *Synchronizer {
	return &Synchronizer{
		dev:       dev,
		presenter: presenter,
		recorder:  recorder,
		slots:     slots,
		last:      len(slots) - 1,
	}
}

func (s *Synchronizer) Stats() Stats {
	return s.stats
}

func (s *Synchronizer) Slots() []*Slot {
	return s.slots
}

// Gates returns one gate per slot covering everything submitted so far.
func (s *Synchronizer) Gates() []swapchain.Gate {
	gates := make([]swapchain.Gate, len(s.slots))
	for i, slot := range s.slots {
		gates[i] = slot.InFlight.Gate()
	}
	return gates
}

func (s *Synchronizer) recreate(previous *Slot) error {
	if err := previous.InFlight.Wait(); err != nil {
		return err
	}
	if err := s.recorder.RecreateSwapchain(s.Gates()); err != nil {
		if core.IsTransient(err) {
			// try again next frame
			s.presenter.RequestRecreate()
		}
		return err
	}
	s.stats.Recreations++
	return nil
}

func (s *Synchronizer) acquire(slot, previous *Slot) (uint32, error) {
	image, res := s.presenter.Acquire(WaitForever, slot.ImageAvailable)
	switch res {
	case metadata.Success:
		return image, nil
	case metadata.Suboptimal:
		s.presenter.RequestRecreate()
		return image, nil
	case metadata.ErrorDeviceLost:
		return 0, core.DeviceLostError("frame.acquire", core.ErrDeviceLost)
	}

	core.LogWarn("acquire returned %s, recreating the swapchain", res)
	if err := s.recreate(previous); err != nil {
		return 0, err
	}
	image, res = s.presenter.Acquire(WaitForever, slot.ImageAvailable)
	switch res {
	case metadata.Success:
		return image, nil
	case metadata.Suboptimal:
		s.presenter.RequestRecreate()
		return image, nil
	case metadata.ErrorDeviceLost:
		return 0, core.DeviceLostError("frame.acquire", core.ErrDeviceLost)
	}
	return 0, core.ConfigurationError("frame.acquire", fmt.Errorf("%w after recreation: %s", core.ErrAcquireFailed, res))
}

func submitError(op string, res metadata.Result) error {
	if res == metadata.ErrorDeviceLost {
		return core.DeviceLostError(op, core.ErrDeviceLost)
	}
	return core.ConfigurationError(op, fmt.Errorf("%w: %s", core.ErrSubmitFailed, res))
}

// RenderNextFrame runs one tick on the next slot. Transient errors are
// returned so the caller can log them; anything else is fatal.
func (s *Synchronizer) RenderNextFrame() error {
	cur := (s.last + 1) % len(s.slots)
	slot, previous := s.slots[cur], s.slots[s.last]

	if s.presenter.RecreatePending() {
		if err := s.recreate(previous); err != nil {
			return err
		}
	}

	start := time.Now()
	if err := slot.InFlight.Wait(); err != nil {
		return err
	}
	s.stats.LastGPUWait = time.Since(start)
	if err := slot.InFlight.Reset(); err != nil {
		return err
	}
	s.presenter.TryRetire()

	image, err := s.acquire(slot, previous)
	if err != nil {
		return err
	}

	if err := s.recorder.RecordFrame(slot, image); err != nil {
		return err
	}

	if res := s.dev.Submit(metadata.QueueCompute, &metadata.SubmitInfo{
		CommandBuffers: []metadata.CommandBuffer{slot.Compute},
		Signals:        []metadata.Semaphore{slot.ComputeFinished},
	}); res != metadata.Success {
		return submitError("frame.submitCompute", res)
	}

	if res := s.dev.Submit(metadata.QueueGraphics, &metadata.SubmitInfo{
		CommandBuffers: []metadata.CommandBuffer{slot.Graphics},
		Waits: []metadata.SemaphoreWait{
			{Semaphore: slot.ImageAvailable, Stage: metadata.PipelineStageColorAttachmentOutput},
			{Semaphore: slot.ComputeFinished, Stage: metadata.PipelineStageVertexInput},
		},
		Signals: []metadata.Semaphore{slot.RenderFinished},
		Fence:   slot.InFlight.Handle,
	}); res != metadata.Success {
		return submitError("frame.submitGraphics", res)
	}
	slot.InFlight.MarkSubmitted()

	switch res := s.presenter.Present(image, slot.RenderFinished); res {
	case metadata.Success:
	case metadata.ErrorDeviceLost:
		return core.DeviceLostError("frame.present", core.ErrDeviceLost)
	default:
		core.LogWarn("present returned %s, swapchain will be recreated", res)
		s.stats.PresentWarnings++
		s.presenter.RequestRecreate()
	}

	s.last = cur
	s.stats.Frames++
	return nil
}

// WaitAll blocks until every slot's last submission completed.
func (s *Synchronizer) WaitAll() error {
	for _, slot := range s.slots {
		if err := slot.InFlight.Wait(); err != nil {
			return err
		}
	}
	return nil
}
