package frame

import (
	"fmt"
	gomath "math"

	"github.com/spaghettifunk/tessera/engine/core"
	"github.com/spaghettifunk/tessera/engine/renderer/metadata"
)

// WaitForever is the fence timeout used by the frame loop. Reaching it is fatal.
const WaitForever uint64 = gomath.MaxUint64

/**
 * @brief A device fence plus the bookkeeping needed to know, without asking
 * the device, whether work submitted with it is still outstanding.
 */
type Fence struct {
	dev    metadata.SyncDevice
	Handle metadata.Fence

	IsSignaled bool
	// Number of submissions made with the fence, and how many of them were
	// observed complete.
	submitted uint64
	completed uint64
}

func NewFence(dev metadata.SyncDevice, createSignaled bool) (*Fence, error) {
	h, err := dev.CreateFence(createSignaled)
	if err != nil {
		return nil, core.ConfigurationError("frame.NewFence", err)
	}
	return &Fence{
		dev:        dev,
		Handle:     h,
		IsSignaled: createSignaled,
	}, nil
}

// Outstanding reports whether a submission was made since the last observed completion.
func (f *Fence) Outstanding() bool {
	return f.completed < f.submitted
}

// Wait blocks until the last submission made with the fence completed.
func (f *Fence) Wait() error {
	if !f.Outstanding() {
		return nil
	}
	switch res := f.dev.WaitForFence(f.Handle, WaitForever); res {
	case metadata.Success:
		f.IsSignaled = true
		f.completed = f.submitted
		return nil
	case metadata.Timeout:
		return core.DeviceLostError("frame.Fence.Wait", core.ErrFenceTimeout)
	case metadata.ErrorDeviceLost:
		return core.DeviceLostError("frame.Fence.Wait", core.ErrDeviceLost)
	default:
		return core.DeviceLostError("frame.Fence.Wait", fmt.Errorf("%w: %s", core.ErrUnknown, res))
	}
}

func (f *Fence) Reset() error {
	if err := f.dev.ResetFence(f.Handle); err != nil {
		return core.DeviceLostError("frame.Fence.Reset", err)
	}
	f.IsSignaled = false
	return nil
}

// MarkSubmitted records that work signaling the fence was queued.
func (f *Fence) MarkSubmitted() {
	f.submitted++
}

// Gate returns a gate that passes once everything submitted so far with the fence completed.
func (f *Fence) Gate() *Gate {
	return &Gate{fence: f, target: f.submitted}
}

func (f *Fence) Destroy() {
	if f.Handle != metadata.NullHandle {
		f.dev.DestroyFence(f.Handle)
		f.Handle = metadata.NullHandle
	}
	f.IsSignaled = false
}

// Gate implements swapchain.Gate on top of a frame fence.
type Gate struct {
	fence  *Fence
	target uint64
}

func (g *Gate) Passed() bool {
	f := g.fence
	if f.completed >= g.target {
		return true
	}
	// The gated submission is still the latest one: ask the device.
	if f.submitted == g.target && f.dev.FenceStatus(f.Handle) == metadata.Success {
		f.IsSignaled = true
		f.completed = f.submitted
		return true
	}
	return false
}

func (g *Gate) Wait() error {
	if g.fence.completed >= g.target {
		return nil
	}
	return g.fence.Wait()
}
