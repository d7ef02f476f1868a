package vulkan

import (
	"fmt"
	"unsafe"

	vk "github.com/goki/vulkan"
	"github.com/spaghettifunk/tessera/engine/core"
	"github.com/spaghettifunk/tessera/engine/renderer/metadata"
)

// instancePush mirrors the push constant block of instance.comp.
type instancePush struct {
	ProjectionView [16]float32
	SrcOffset      uint32
	DstOffset      uint32
	Count          uint32
	Source         uint32
}

const instancePushSize = uint32(unsafe.Sizeof(instancePush{}))

func (d *Device) AllocateCommandBuffers(queue metadata.QueueKind, count int) ([]metadata.CommandBuffer, error) {
	pool, ok := d.context.Device.CommandPools[queue]
	if !ok {
		return nil, fmt.Errorf("no command pool for the %s queue", queue)
	}
	handles := make([]vk.CommandBuffer, count)
	allocateInfo := vk.CommandBufferAllocateInfo{
		SType:              vk.StructureTypeCommandBufferAllocateInfo,
		CommandPool:        pool,
		Level:              vk.CommandBufferLevelPrimary,
		CommandBufferCount: uint32(count),
	}
	if err := d.locks.SafeCall(CommandBufferManagement, func() error {
		if res := vk.AllocateCommandBuffers(d.logical(), &allocateInfo, handles); res != vk.Success {
			return resultError("vkAllocateCommandBuffers", res)
		}
		return nil
	}); err != nil {
		return nil, err
	}

	out := make([]metadata.CommandBuffer, count)
	for i, h := range handles {
		out[i] = metadata.CommandBuffer(d.commandBuffers.Acquire(commandBuffer{handle: h, queue: queue}))
	}
	return out, nil
}

func (d *Device) FreeCommandBuffers(queue metadata.QueueKind, buffers []metadata.CommandBuffer) {
	handles := make([]vk.CommandBuffer, 0, len(buffers))
	for _, b := range buffers {
		cb, err := d.commandBuffers.Release(uint64(b))
		if err != nil {
			core.LogWarn("FreeCommandBuffers: %s", err)
			continue
		}
		if cb.queue != queue {
			core.LogWarn("FreeCommandBuffers: command buffer %d belongs to the %s pool, not %s", b, cb.queue, queue)
		}
		handles = append(handles, cb.handle)
	}
	if len(handles) == 0 {
		return
	}
	d.locks.SafeCall(CommandBufferManagement, func() error {
		vk.FreeCommandBuffers(d.logical(), d.context.Device.CommandPools[queue], uint32(len(handles)), handles)
		return nil
	})
}

// begin resets cb and starts a one time submit recording.
func (d *Device) begin(cb metadata.CommandBuffer) (vk.CommandBuffer, error) {
	record, ok := d.commandBuffers.Get(uint64(cb))
	if !ok {
		return nil, fmt.Errorf("unknown command buffer %d", cb)
	}
	if res := vk.ResetCommandBuffer(record.handle, 0); res != vk.Success {
		return nil, resultError("vkResetCommandBuffer", res)
	}
	beginInfo := vk.CommandBufferBeginInfo{
		SType: vk.StructureTypeCommandBufferBeginInfo,
		Flags: vk.CommandBufferUsageFlags(vk.CommandBufferUsageOneTimeSubmitBit),
	}
	if res := vk.BeginCommandBuffer(record.handle, &beginInfo); res != vk.Success {
		return nil, resultError("vkBeginCommandBuffer", res)
	}
	return record.handle, nil
}

func endCommandBuffer(handle vk.CommandBuffer) error {
	if res := vk.EndCommandBuffer(handle); res != vk.Success {
		return resultError("vkEndCommandBuffer", res)
	}
	return nil
}

func (d *Device) RecordCopy(cb metadata.CommandBuffer, regions []metadata.CopyRegion) error {
	handle, err := d.begin(cb)
	if err != nil {
		return err
	}
	for _, r := range regions {
		src, ok := d.buffers.Get(uint64(r.Src))
		if !ok {
			return fmt.Errorf("unknown copy source %d", r.Src)
		}
		dst, ok := d.buffers.Get(uint64(r.Dst))
		if !ok {
			return fmt.Errorf("unknown copy destination %d", r.Dst)
		}
		vk.CmdCopyBuffer(handle, src, dst, 1, []vk.BufferCopy{{
			SrcOffset: vk.DeviceSize(r.SrcOffset),
			DstOffset: vk.DeviceSize(r.DstOffset),
			Size:      vk.DeviceSize(r.Size),
		}})
	}
	return endCommandBuffer(handle)
}

func (d *Device) RecordCompute(cb metadata.CommandBuffer, pass *metadata.ComputePass) error {
	p, ok := d.pipelines.Get(uint64(pass.Pipeline))
	if !ok || p.bindPoint != vk.PipelineBindPointCompute {
		return fmt.Errorf("unknown compute pipeline %d", pass.Pipeline)
	}
	set, ok := d.descriptorSets.Get(uint64(pass.DescriptorSet))
	if !ok {
		return fmt.Errorf("unknown descriptor set %d", pass.DescriptorSet)
	}
	handle, err := d.begin(cb)
	if err != nil {
		return err
	}

	vk.CmdBindPipeline(handle, p.bindPoint, p.handle)
	vk.CmdBindDescriptorSets(handle, p.bindPoint, p.layout, 0, 1, []vk.DescriptorSet{set}, 0, nil)
	for _, dispatch := range pass.Dispatches {
		// Stack local so cgo accepts the pointer.
		push := instancePush{
			ProjectionView: pass.ProjectionView.Data,
			SrcOffset:      dispatch.SrcOffset,
			DstOffset:      dispatch.DstOffset,
			Count:          dispatch.Count,
			Source:         uint32(dispatch.Source),
		}
		vk.CmdPushConstants(handle, p.layout, vk.ShaderStageFlags(vk.ShaderStageComputeBit), 0, instancePushSize, unsafe.Pointer(&push))
		vk.CmdDispatch(handle, dispatch.GroupCount(), 1, 1)
	}
	return endCommandBuffer(handle)
}

func (d *Device) RecordDraw(cb metadata.CommandBuffer, pass *metadata.DrawPass) error {
	renderPass, ok := d.renderPasses.Get(uint64(pass.RenderPass))
	if !ok {
		return fmt.Errorf("unknown render pass %d", pass.RenderPass)
	}
	framebuffer, ok := d.framebuffers.Get(uint64(pass.Framebuffer))
	if !ok {
		return fmt.Errorf("unknown framebuffer %d", pass.Framebuffer)
	}
	p, ok := d.pipelines.Get(uint64(pass.Pipeline))
	if !ok || p.bindPoint != vk.PipelineBindPointGraphics {
		return fmt.Errorf("unknown graphics pipeline %d", pass.Pipeline)
	}
	vertices, _ := d.buffers.Get(uint64(pass.VertexBuffer))
	instances, _ := d.buffers.Get(uint64(pass.InstanceBuffer))
	indices, _ := d.buffers.Get(uint64(pass.IndexBuffer))

	handle, err := d.begin(cb)
	if err != nil {
		return err
	}

	RenderpassBegin(handle, renderPass, framebuffer, pass.Extent, pass.ClearColor)
	vk.CmdBindPipeline(handle, p.bindPoint, p.handle)
	vk.CmdBindVertexBuffers(handle, 0, 2, []vk.Buffer{vertices, instances}, []vk.DeviceSize{0, 0})
	vk.CmdBindIndexBuffer(handle, indices, 0, vk.IndexTypeUint32)
	for _, draw := range pass.Draws {
		if draw.InstanceCount == 0 {
			continue
		}
		vk.CmdDrawIndexed(handle, draw.IndexCount, draw.InstanceCount, draw.FirstIndex, draw.VertexOffset, draw.FirstInstance)
	}
	RenderpassEnd(handle)
	return endCommandBuffer(handle)
}

func (d *Device) Submit(queue metadata.QueueKind, info *metadata.SubmitInfo) metadata.Result {
	submitInfo := vk.SubmitInfo{
		SType: vk.StructureTypeSubmitInfo,
	}
	for _, b := range info.CommandBuffers {
		cb, ok := d.commandBuffers.Get(uint64(b))
		if !ok {
			core.LogError("Submit: unknown command buffer %d", b)
			return metadata.ErrorUnknown
		}
		submitInfo.PCommandBuffers = append(submitInfo.PCommandBuffers, cb.handle)
	}
	submitInfo.CommandBufferCount = uint32(len(submitInfo.PCommandBuffers))

	// Each semaphore waits on the corresponding pipeline stage to complete. 1:1 ratio.
	for _, w := range info.Waits {
		sem, ok := d.semaphores.Get(uint64(w.Semaphore))
		if !ok {
			core.LogError("Submit: unknown wait semaphore %d", w.Semaphore)
			return metadata.ErrorUnknown
		}
		submitInfo.PWaitSemaphores = append(submitInfo.PWaitSemaphores, sem)
		submitInfo.PWaitDstStageMask = append(submitInfo.PWaitDstStageMask, vk.PipelineStageFlags(w.Stage))
	}
	submitInfo.WaitSemaphoreCount = uint32(len(submitInfo.PWaitSemaphores))

	for _, s := range info.Signals {
		sem, ok := d.semaphores.Get(uint64(s))
		if !ok {
			core.LogError("Submit: unknown signal semaphore %d", s)
			return metadata.ErrorUnknown
		}
		submitInfo.PSignalSemaphores = append(submitInfo.PSignalSemaphores, sem)
	}
	submitInfo.SignalSemaphoreCount = uint32(len(submitInfo.PSignalSemaphores))

	fence := vk.NullFence
	if info.Fence != metadata.NullHandle {
		f, ok := d.fences.Get(uint64(info.Fence))
		if !ok {
			core.LogError("Submit: unknown fence %d", info.Fence)
			return metadata.ErrorUnknown
		}
		fence = f
	}

	q, family := d.context.Device.Queue(queue)
	result := vk.Success
	d.locks.SafeQueueCall(family, func() error {
		result = vk.QueueSubmit(q, 1, []vk.SubmitInfo{submitInfo}, fence)
		return nil
	})
	if result != vk.Success {
		core.LogError("vkQueueSubmit failed with result: %s", VulkanResultString(result, true))
	}
	return toResult(result)
}
