package gputest

import (
	"fmt"

	"github.com/spaghettifunk/tessera/engine/renderer/metadata"
)

var _ metadata.Device = (*Device)(nil)

// memory

func (d *Device) CreateBuffer(size uint64, usage metadata.BufferUsageFlags) (metadata.Buffer, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	if size == 0 {
		return 0, fmt.Errorf("zero sized buffer")
	}
	h := metadata.Buffer(d.handle())
	d.buffers[h] = &buffer{size: size, usage: usage}
	d.record(Call{Op: "CreateBuffer", Handle: uint64(h)})
	return h, nil
}

func (d *Device) DestroyBuffer(b metadata.Buffer) {
	d.mu.Lock()
	defer d.mu.Unlock()
	if _, ok := d.buffers[b]; !ok {
		d.violate("DestroyBuffer on unknown buffer %d", b)
		return
	}
	delete(d.buffers, b)
	d.record(Call{Op: "DestroyBuffer", Handle: uint64(b)})
}

func (d *Device) BufferMemoryRequirements(b metadata.Buffer) metadata.MemoryRequirements {
	d.mu.Lock()
	defer d.mu.Unlock()
	buf := d.buffers[b]
	if buf == nil {
		d.violate("BufferMemoryRequirements on unknown buffer %d", b)
		return metadata.MemoryRequirements{}
	}
	if d.Requirements != nil {
		return d.Requirements(buf.size, buf.usage)
	}
	return metadata.MemoryRequirements{
		Size:           buf.size,
		Alignment:      256,
		MemoryTypeBits: (1 << uint(len(d.MemoryTypeList))) - 1,
	}
}

func (d *Device) MemoryTypes() []metadata.MemoryType {
	return d.MemoryTypeList
}

func (d *Device) AllocateMemory(size uint64, typeIndex uint32) (metadata.DeviceMemory, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	if int(typeIndex) >= len(d.MemoryTypeList) {
		return 0, fmt.Errorf("memory type %d out of range", typeIndex)
	}
	h := metadata.DeviceMemory(d.handle())
	d.memories[h] = make([]byte, size)
	d.record(Call{Op: "AllocateMemory", Handle: uint64(h)})
	return h, nil
}

func (d *Device) FreeMemory(m metadata.DeviceMemory) {
	d.mu.Lock()
	defer d.mu.Unlock()
	if _, ok := d.memories[m]; !ok {
		d.violate("FreeMemory on unknown memory %d", m)
		return
	}
	for h, b := range d.buffers {
		if b.bound && b.memory == m {
			d.violate("FreeMemory %d while buffer %d is still bound", m, h)
		}
	}
	delete(d.memories, m)
	delete(d.mapped, m)
	d.record(Call{Op: "FreeMemory", Handle: uint64(m)})
}

func (d *Device) BindBufferMemory(b metadata.Buffer, m metadata.DeviceMemory, offset uint64) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	buf, ok := d.buffers[b]
	if !ok {
		return fmt.Errorf("unknown buffer %d", b)
	}
	mem, ok := d.memories[m]
	if !ok {
		return fmt.Errorf("unknown memory %d", m)
	}
	if offset+buf.size > uint64(len(mem)) {
		return fmt.Errorf("buffer %d does not fit memory %d at offset %d", b, m, offset)
	}
	buf.memory = m
	buf.offset = offset
	buf.bound = true
	d.record(Call{Op: "BindBufferMemory", Handle: uint64(b)})
	return nil
}

func (d *Device) MapMemory(m metadata.DeviceMemory, offset, size uint64) ([]byte, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	mem, ok := d.memories[m]
	if !ok {
		return nil, fmt.Errorf("unknown memory %d", m)
	}
	if d.mapped[m] {
		return nil, fmt.Errorf("memory %d already mapped", m)
	}
	if offset+size > uint64(len(mem)) {
		return nil, fmt.Errorf("map range out of bounds")
	}
	d.mapped[m] = true
	d.record(Call{Op: "MapMemory", Handle: uint64(m)})
	return mem[offset : offset+size], nil
}

func (d *Device) UnmapMemory(m metadata.DeviceMemory) {
	d.mu.Lock()
	defer d.mu.Unlock()
	delete(d.mapped, m)
	d.record(Call{Op: "UnmapMemory", Handle: uint64(m)})
}

// sync

func (d *Device) CreateFence(signaled bool) (metadata.Fence, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	h := metadata.Fence(d.handle())
	d.fences[h] = &fence{signaled: signaled}
	d.record(Call{Op: "CreateFence", Handle: uint64(h)})
	return h, nil
}

func (d *Device) DestroyFence(f metadata.Fence) {
	d.mu.Lock()
	defer d.mu.Unlock()
	fe, ok := d.fences[f]
	if !ok {
		d.violate("DestroyFence on unknown fence %d", f)
		return
	}
	if fe.pending {
		d.violate("DestroyFence %d with pending work", f)
	}
	delete(d.fences, f)
	d.record(Call{Op: "DestroyFence", Handle: uint64(f)})
}

// WaitForFence completes the work submitted with the fence.
func (d *Device) WaitForFence(f metadata.Fence, timeout uint64) metadata.Result {
	d.mu.Lock()
	defer d.mu.Unlock()
	fe, ok := d.fences[f]
	if !ok {
		d.violate("WaitForFence on unknown fence %d", f)
		return metadata.ErrorUnknown
	}
	res := pop(&d.waitResults)
	if res == metadata.Success {
		if !fe.signaled && !fe.pending {
			// Nothing submitted: a real device would block forever.
			d.violate("WaitForFence %d on an unsignaled fence with no pending work", f)
			res = metadata.Timeout
		} else {
			fe.pending = false
			fe.signaled = true
		}
	}
	d.record(Call{Op: "WaitForFence", Handle: uint64(f), Result: res})
	return res
}

func (d *Device) FenceStatus(f metadata.Fence) metadata.Result {
	d.mu.Lock()
	defer d.mu.Unlock()
	fe, ok := d.fences[f]
	if !ok {
		return metadata.ErrorUnknown
	}
	d.record(Call{Op: "FenceStatus", Handle: uint64(f)})
	if fe.signaled {
		return metadata.Success
	}
	return metadata.NotReady
}

func (d *Device) ResetFence(f metadata.Fence) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	fe, ok := d.fences[f]
	if !ok {
		return fmt.Errorf("unknown fence %d", f)
	}
	if fe.pending {
		d.violate("ResetFence %d with pending work", f)
	}
	fe.signaled = false
	d.record(Call{Op: "ResetFence", Handle: uint64(f)})
	return nil
}

func (d *Device) CreateSemaphore() (metadata.Semaphore, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	h := metadata.Semaphore(d.handle())
	d.semaphores[h] = true
	d.record(Call{Op: "CreateSemaphore", Handle: uint64(h)})
	return h, nil
}

func (d *Device) DestroySemaphore(s metadata.Semaphore) {
	d.mu.Lock()
	defer d.mu.Unlock()
	delete(d.semaphores, s)
	d.record(Call{Op: "DestroySemaphore", Handle: uint64(s)})
}

// WaitIdle completes every pending submission.
func (d *Device) WaitIdle() error {
	d.mu.Lock()
	defer d.mu.Unlock()
	for _, fe := range d.fences {
		if fe.pending {
			fe.pending = false
			fe.signaled = true
		}
	}
	d.record(Call{Op: "WaitIdle"})
	return nil
}

// commands

func (d *Device) AllocateCommandBuffers(queue metadata.QueueKind, count int) ([]metadata.CommandBuffer, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	out := make([]metadata.CommandBuffer, count)
	for i := range out {
		h := metadata.CommandBuffer(d.handle())
		d.commands[h] = &commandBuffer{queue: queue}
		out[i] = h
		d.record(Call{Op: "AllocateCommandBuffer", Handle: uint64(h), Queue: queue})
	}
	return out, nil
}

func (d *Device) FreeCommandBuffers(queue metadata.QueueKind, buffers []metadata.CommandBuffer) {
	d.mu.Lock()
	defer d.mu.Unlock()
	for _, cb := range buffers {
		d.checkIdle(cb, "FreeCommandBuffers")
		delete(d.commands, cb)
		d.record(Call{Op: "FreeCommandBuffer", Handle: uint64(cb), Queue: queue})
	}
}

// checkIdle flags use of a command buffer whose last submission was not
// observed complete.
func (d *Device) checkIdle(cb metadata.CommandBuffer, op string) *commandBuffer {
	c, ok := d.commands[cb]
	if !ok {
		d.violate("%s on unknown command buffer %d", op, cb)
		return nil
	}
	if c.lastFence != 0 {
		if fe, ok := d.fences[c.lastFence]; ok && fe.pending {
			d.violate("%s on command buffer %d still in flight behind fence %d", op, cb, c.lastFence)
		}
	}
	return c
}

func (d *Device) RecordCopy(cb metadata.CommandBuffer, regions []metadata.CopyRegion) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	c := d.checkIdle(cb, "RecordCopy")
	if c == nil {
		return fmt.Errorf("unknown command buffer %d", cb)
	}
	c.copies = append([]metadata.CopyRegion(nil), regions...)
	c.compute, c.draw = nil, nil
	d.record(Call{Op: "RecordCopy", Handle: uint64(cb), Queue: c.queue})
	return nil
}

func (d *Device) RecordCompute(cb metadata.CommandBuffer, pass *metadata.ComputePass) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	c := d.checkIdle(cb, "RecordCompute")
	if c == nil {
		return fmt.Errorf("unknown command buffer %d", cb)
	}
	p := *pass
	p.Dispatches = append([]metadata.ComputeDispatch(nil), pass.Dispatches...)
	c.compute, c.copies, c.draw = &p, nil, nil
	d.record(Call{Op: "RecordCompute", Handle: uint64(cb), Queue: c.queue})
	return nil
}

func (d *Device) RecordDraw(cb metadata.CommandBuffer, pass *metadata.DrawPass) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	c := d.checkIdle(cb, "RecordDraw")
	if c == nil {
		return fmt.Errorf("unknown command buffer %d", cb)
	}
	if !d.framebuffers[pass.Framebuffer] {
		d.violate("RecordDraw with unknown framebuffer %d", pass.Framebuffer)
	}
	if !d.pipelines[pass.Pipeline] {
		d.violate("RecordDraw with unknown pipeline %d", pass.Pipeline)
	}
	p := *pass
	p.Draws = append([]metadata.DrawIndexed(nil), pass.Draws...)
	c.draw, c.copies, c.compute = &p, nil, nil
	d.record(Call{Op: "RecordDraw", Handle: uint64(cb), Queue: c.queue})
	return nil
}

// Submit runs recorded copies right away; the fence stays pending until waited on.
func (d *Device) Submit(queue metadata.QueueKind, info *metadata.SubmitInfo) metadata.Result {
	d.mu.Lock()
	defer d.mu.Unlock()
	res := pop(&d.submitResults)
	d.record(Call{Op: "Submit", Handle: uint64(info.Fence), Queue: queue, Result: res})
	if res != metadata.Success {
		return res
	}
	for _, cb := range info.CommandBuffers {
		c, ok := d.commands[cb]
		if !ok {
			d.violate("Submit of unknown command buffer %d", cb)
			continue
		}
		for _, r := range c.copies {
			src, dst := d.buffers[r.Src], d.buffers[r.Dst]
			if src == nil || dst == nil {
				d.violate("copy between unknown buffers %d -> %d", r.Src, r.Dst)
				continue
			}
			from := d.memories[src.memory][src.offset+r.SrcOffset : src.offset+r.SrcOffset+r.Size]
			to := d.memories[dst.memory][dst.offset+r.DstOffset : dst.offset+r.DstOffset+r.Size]
			copy(to, from)
		}
		c.lastFence = info.Fence
	}
	// Work this submission waits on completes no later than its fence.
	for _, w := range info.Waits {
		for _, cb := range d.signaledBy[w.Semaphore] {
			if c, ok := d.commands[cb]; ok && info.Fence != 0 {
				c.lastFence = info.Fence
			}
		}
		delete(d.signaledBy, w.Semaphore)
	}
	for _, sig := range info.Signals {
		d.signaledBy[sig] = append([]metadata.CommandBuffer(nil), info.CommandBuffers...)
	}
	if info.Fence != 0 {
		fe, ok := d.fences[info.Fence]
		if !ok {
			d.violate("Submit with unknown fence %d", info.Fence)
		} else {
			if fe.signaled || fe.pending {
				d.violate("Submit with fence %d that was not reset", info.Fence)
			}
			fe.pending = true
		}
	}
	return res
}

// presentation

func (d *Device) SurfaceSupport() (metadata.SurfaceSupport, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.record(Call{Op: "SurfaceSupport"})
	s := d.Support
	s.Formats = append([]metadata.SurfaceFormat(nil), d.Support.Formats...)
	s.PresentModes = append([]metadata.PresentMode(nil), d.Support.PresentModes...)
	return s, nil
}

func (d *Device) CreateSwapchain(info *metadata.SwapchainCreateInfo) (metadata.Swapchain, []metadata.ImageView, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	if info.Extent.IsZero() {
		return 0, nil, fmt.Errorf("zero extent")
	}
	if info.OldSwapchain != 0 {
		if _, ok := d.swapchains[info.OldSwapchain]; !ok {
			d.violate("CreateSwapchain with destroyed old swapchain %d", info.OldSwapchain)
		}
	}
	h := metadata.Swapchain(d.handle())
	cp := *info
	d.swapchains[h] = &cp
	d.LastSwapchainInfo = &cp
	count := info.ImageCount
	if d.ImageCount != 0 {
		count = d.ImageCount
	}
	views := make([]metadata.ImageView, count)
	for i := range views {
		v := metadata.ImageView(d.handle())
		d.views[v] = true
		views[i] = v
	}
	d.record(Call{Op: "CreateSwapchain", Handle: uint64(h)})
	return h, views, nil
}

func (d *Device) DestroySwapchain(s metadata.Swapchain, views []metadata.ImageView) {
	d.mu.Lock()
	defer d.mu.Unlock()
	for _, v := range views {
		delete(d.views, v)
	}
	if _, ok := d.swapchains[s]; !ok {
		d.violate("DestroySwapchain on unknown swapchain %d", s)
	}
	delete(d.swapchains, s)
	delete(d.imageCursor, s)
	d.record(Call{Op: "DestroySwapchain", Handle: uint64(s)})
}

func (d *Device) AcquireNextImage(s metadata.Swapchain, timeout uint64, signal metadata.Semaphore) (uint32, metadata.Result) {
	d.mu.Lock()
	defer d.mu.Unlock()
	res := pop(&d.acquireResults)
	d.record(Call{Op: "AcquireNextImage", Handle: uint64(s), Result: res})
	info, ok := d.swapchains[s]
	if !ok {
		d.violate("AcquireNextImage on unknown swapchain %d", s)
		return 0, metadata.ErrorUnknown
	}
	if res != metadata.Success && res != metadata.Suboptimal {
		return 0, res
	}
	count := info.ImageCount
	if d.ImageCount != 0 {
		count = d.ImageCount
	}
	idx := d.imageCursor[s]
	d.imageCursor[s] = (idx + 1) % count
	return idx, res
}

func (d *Device) Present(s metadata.Swapchain, imageIndex uint32, wait metadata.Semaphore) metadata.Result {
	d.mu.Lock()
	defer d.mu.Unlock()
	res := pop(&d.presentResults)
	if _, ok := d.swapchains[s]; !ok {
		d.violate("Present on unknown swapchain %d", s)
	}
	d.record(Call{Op: "Present", Handle: uint64(s), Result: res})
	return res
}

// pipelines

func (d *Device) CreateRenderPass(format metadata.Format) (metadata.RenderPass, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	h := metadata.RenderPass(d.handle())
	d.renderPasses[h] = true
	d.record(Call{Op: "CreateRenderPass", Handle: uint64(h)})
	return h, nil
}

func (d *Device) DestroyRenderPass(p metadata.RenderPass) {
	d.mu.Lock()
	defer d.mu.Unlock()
	delete(d.renderPasses, p)
	d.record(Call{Op: "DestroyRenderPass", Handle: uint64(p)})
}

func (d *Device) CreateFramebuffer(p metadata.RenderPass, view metadata.ImageView, extent metadata.Extent2D) (metadata.Framebuffer, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	if !d.renderPasses[p] {
		d.violate("CreateFramebuffer with unknown render pass %d", p)
	}
	if !d.views[view] {
		d.violate("CreateFramebuffer with unknown image view %d", view)
	}
	h := metadata.Framebuffer(d.handle())
	d.framebuffers[h] = true
	d.record(Call{Op: "CreateFramebuffer", Handle: uint64(h)})
	return h, nil
}

func (d *Device) DestroyFramebuffer(f metadata.Framebuffer) {
	d.mu.Lock()
	defer d.mu.Unlock()
	delete(d.framebuffers, f)
	d.record(Call{Op: "DestroyFramebuffer", Handle: uint64(f)})
}

func (d *Device) CreateGraphicsPipeline(p metadata.RenderPass, extent metadata.Extent2D) (metadata.Pipeline, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	h := metadata.Pipeline(d.handle())
	d.pipelines[h] = true
	d.record(Call{Op: "CreateGraphicsPipeline", Handle: uint64(h)})
	return h, nil
}

func (d *Device) CreateComputePipeline() (metadata.Pipeline, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	h := metadata.Pipeline(d.handle())
	d.pipelines[h] = true
	d.record(Call{Op: "CreateComputePipeline", Handle: uint64(h)})
	return h, nil
}

func (d *Device) DestroyPipeline(p metadata.Pipeline) {
	d.mu.Lock()
	defer d.mu.Unlock()
	delete(d.pipelines, p)
	d.record(Call{Op: "DestroyPipeline", Handle: uint64(p)})
}

func (d *Device) AllocateComputeDescriptorSets(count int) ([]metadata.DescriptorSet, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	out := make([]metadata.DescriptorSet, count)
	for i := range out {
		h := metadata.DescriptorSet(d.handle())
		d.sets[h] = nil
		out[i] = h
	}
	d.record(Call{Op: "AllocateComputeDescriptorSets"})
	return out, nil
}

func (d *Device) UpdateComputeDescriptorSet(set metadata.DescriptorSet, bindings []metadata.DescriptorBinding) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	if _, ok := d.sets[set]; !ok {
		return fmt.Errorf("unknown descriptor set %d", set)
	}
	d.sets[set] = append([]metadata.DescriptorBinding(nil), bindings...)
	d.record(Call{Op: "UpdateComputeDescriptorSet", Handle: uint64(set)})
	return nil
}

func (d *Device) Close() {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.closed = true
	d.record(Call{Op: "Close"})
}
