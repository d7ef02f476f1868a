// Package gputest provides a recording, in-memory implementation of
// metadata.Device. Submitted work completes when its fence is waited on.
package gputest

import (
	"fmt"
	"sync"

	"github.com/spaghettifunk/tessera/engine/renderer/metadata"
)

type Call struct {
	Op     string
	Handle uint64
	Queue  metadata.QueueKind
	Result metadata.Result
}

type buffer struct {
	size   uint64
	usage  metadata.BufferUsageFlags
	memory metadata.DeviceMemory
	offset uint64
	bound  bool
}

type fence struct {
	signaled bool
	// Submitted and not yet observed complete.
	pending bool
}

type commandBuffer struct {
	queue   metadata.QueueKind
	copies  []metadata.CopyRegion
	compute *metadata.ComputePass
	draw    *metadata.DrawPass
	// Fence of the last submission that included this command buffer.
	lastFence metadata.Fence
}

type Device struct {
	mu sync.Mutex

	calls      []Call
	violations []string
	next       uint64

	// MemoryTypeList is returned by MemoryTypes.
	MemoryTypeList []metadata.MemoryType
	// Requirements computes the memory requirements of a buffer. Defaults to
	// the buffer size, 256 byte alignment and every memory type.
	Requirements func(size uint64, usage metadata.BufferUsageFlags) metadata.MemoryRequirements
	// Support is returned by SurfaceSupport.
	Support metadata.SurfaceSupport
	// ImageCount overrides the number of swapchain images created.
	ImageCount uint32

	acquireResults []metadata.Result
	presentResults []metadata.Result
	submitResults  []metadata.Result
	waitResults    []metadata.Result

	buffers      map[metadata.Buffer]*buffer
	memories     map[metadata.DeviceMemory][]byte
	mapped       map[metadata.DeviceMemory]bool
	fences       map[metadata.Fence]*fence
	semaphores   map[metadata.Semaphore]bool
	commands     map[metadata.CommandBuffer]*commandBuffer
	swapchains   map[metadata.Swapchain]*metadata.SwapchainCreateInfo
	views        map[metadata.ImageView]bool
	renderPasses map[metadata.RenderPass]bool
	framebuffers map[metadata.Framebuffer]bool
	pipelines    map[metadata.Pipeline]bool
	sets         map[metadata.DescriptorSet][]metadata.DescriptorBinding
	imageCursor  map[metadata.Swapchain]uint32
	// Command buffers whose completion a semaphore signal stands for.
	signaledBy map[metadata.Semaphore][]metadata.CommandBuffer

	LastSwapchainInfo *metadata.SwapchainCreateInfo
	closed            bool
}

// DefaultMemoryTypes mimics a discrete GPU: device local, host visible and
// coherent, host cached.
func DefaultMemoryTypes() []metadata.MemoryType {
	return []metadata.MemoryType{
		{PropertyFlags: metadata.MemoryPropertyDeviceLocal, HeapIndex: 0},
		{PropertyFlags: metadata.MemoryPropertyHostVisible | metadata.MemoryPropertyHostCoherent, HeapIndex: 1},
		{PropertyFlags: metadata.MemoryPropertyHostVisible | metadata.MemoryPropertyHostCoherent | metadata.MemoryPropertyHostCached, HeapIndex: 1},
	}
}

func DefaultSupport(width, height uint32) metadata.SurfaceSupport {
	return metadata.SurfaceSupport{
		Capabilities: metadata.SurfaceCapabilities{
			MinImageCount:  2,
			MaxImageCount:  3,
			CurrentExtent:  metadata.Extent2D{Width: width, Height: height},
			MinImageExtent: metadata.Extent2D{Width: 1, Height: 1},
			MaxImageExtent: metadata.Extent2D{Width: 4096, Height: 4096},
		},
		Formats: []metadata.SurfaceFormat{
			{Format: metadata.FormatB8G8R8A8Unorm, ColorSpace: metadata.ColorSpaceSrgbNonlinear},
			{Format: metadata.FormatB8G8R8A8Srgb, ColorSpace: metadata.ColorSpaceSrgbNonlinear},
		},
		PresentModes: []metadata.PresentMode{metadata.PresentModeFifo, metadata.PresentModeMailbox},
	}
}

func New() *Device {
	return &Device{
		MemoryTypeList: DefaultMemoryTypes(),
		Support:        DefaultSupport(800, 600),
		buffers:        make(map[metadata.Buffer]*buffer),
		memories:       make(map[metadata.DeviceMemory][]byte),
		mapped:         make(map[metadata.DeviceMemory]bool),
		fences:         make(map[metadata.Fence]*fence),
		semaphores:     make(map[metadata.Semaphore]bool),
		commands:       make(map[metadata.CommandBuffer]*commandBuffer),
		swapchains:     make(map[metadata.Swapchain]*metadata.SwapchainCreateInfo),
		views:          make(map[metadata.ImageView]bool),
		renderPasses:   make(map[metadata.RenderPass]bool),
		framebuffers:   make(map[metadata.Framebuffer]bool),
		pipelines:      make(map[metadata.Pipeline]bool),
		sets:           make(map[metadata.DescriptorSet][]metadata.DescriptorBinding),
		imageCursor:    make(map[metadata.Swapchain]uint32),
		signaledBy:     make(map[metadata.Semaphore][]metadata.CommandBuffer),
	}
}

// SetExtent changes the extent reported by the surface, as a window resize would.
func (d *Device) SetExtent(width, height uint32) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.Support.Capabilities.CurrentExtent = metadata.Extent2D{Width: width, Height: height}
}

// QueueAcquireResults scripts the results of the next AcquireNextImage calls.
func (d *Device) QueueAcquireResults(results ...metadata.Result) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.acquireResults = append(d.acquireResults, results...)
}

func (d *Device) QueuePresentResults(results ...metadata.Result) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.presentResults = append(d.presentResults, results...)
}

func (d *Device) QueueSubmitResults(results ...metadata.Result) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.submitResults = append(d.submitResults, results...)
}

func (d *Device) QueueWaitResults(results ...metadata.Result) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.waitResults = append(d.waitResults, results...)
}

func pop(q *[]metadata.Result) metadata.Result {
	if len(*q) == 0 {
		return metadata.Success
	}
	r := (*q)[0]
	*q = (*q)[1:]
	return r
}

func (d *Device) handle() uint64 {
	d.next++
	return d.next
}

func (d *Device) record(c Call) {
	d.calls = append(d.calls, c)
}

func (d *Device) violate(format string, args ...interface{}) {
	d.violations = append(d.violations, fmt.Sprintf(format, args...))
}

// Calls returns a copy of the call log.
func (d *Device) Calls() []Call {
	d.mu.Lock()
	defer d.mu.Unlock()
	return append([]Call(nil), d.calls...)
}

// Mark returns the current length of the call log, for use with CallsSince.
func (d *Device) Mark() int {
	d.mu.Lock()
	defer d.mu.Unlock()
	return len(d.calls)
}

func (d *Device) CallsSince(mark int) []Call {
	d.mu.Lock()
	defer d.mu.Unlock()
	return append([]Call(nil), d.calls[mark:]...)
}

// Count returns how many logged calls have the given op.
func (d *Device) Count(op string) int {
	d.mu.Lock()
	defer d.mu.Unlock()
	n := 0
	for _, c := range d.calls {
		if c.Op == op {
			n++
		}
	}
	return n
}

// Violations lists synchronization rules broken by the caller, such as
// re-recording a command buffer whose previous submission was never
// observed complete.
func (d *Device) Violations() []string {
	d.mu.Lock()
	defer d.mu.Unlock()
	return append([]string(nil), d.violations...)
}

// Live counts the objects of each kind that were created and not destroyed.
func (d *Device) Live() map[string]int {
	d.mu.Lock()
	defer d.mu.Unlock()
	return map[string]int{
		"buffer":        len(d.buffers),
		"memory":        len(d.memories),
		"fence":         len(d.fences),
		"semaphore":     len(d.semaphores),
		"commandBuffer": len(d.commands),
		"swapchain":     len(d.swapchains),
		"imageView":     len(d.views),
		"renderPass":    len(d.renderPasses),
		"framebuffer":   len(d.framebuffers),
		"pipeline":      len(d.pipelines),
	}
}

// BufferBytes returns a copy of the bytes backing the buffer.
func (d *Device) BufferBytes(b metadata.Buffer) []byte {
	d.mu.Lock()
	defer d.mu.Unlock()
	buf, ok := d.buffers[b]
	if !ok || !buf.bound {
		return nil
	}
	mem := d.memories[buf.memory]
	return append([]byte(nil), mem[buf.offset:buf.offset+buf.size]...)
}

func (d *Device) BufferUsage(b metadata.Buffer) metadata.BufferUsageFlags {
	d.mu.Lock()
	defer d.mu.Unlock()
	if buf, ok := d.buffers[b]; ok {
		return buf.usage
	}
	return 0
}

// LastCompute returns the pass most recently recorded into cb.
func (d *Device) LastCompute(cb metadata.CommandBuffer) *metadata.ComputePass {
	d.mu.Lock()
	defer d.mu.Unlock()
	if c, ok := d.commands[cb]; ok {
		return c.compute
	}
	return nil
}

func (d *Device) LastDraw(cb metadata.CommandBuffer) *metadata.DrawPass {
	d.mu.Lock()
	defer d.mu.Unlock()
	if c, ok := d.commands[cb]; ok {
		return c.draw
	}
	return nil
}

func (d *Device) DescriptorBindings(set metadata.DescriptorSet) []metadata.DescriptorBinding {
	d.mu.Lock()
	defer d.mu.Unlock()
	return append([]metadata.DescriptorBinding(nil), d.sets[set]...)
}

func (d *Device) IsClosed() bool {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.closed
}
