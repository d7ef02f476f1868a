package vulkan

import (
	"fmt"

	vk "github.com/goki/vulkan"
	"github.com/spaghettifunk/tessera/engine/core"
	"github.com/spaghettifunk/tessera/engine/renderer/metadata"
)

func (d *Device) CreateFence(signaled bool) (metadata.Fence, error) {
	fenceCreateInfo := vk.FenceCreateInfo{
		SType: vk.StructureTypeFenceCreateInfo,
	}
	// A signaled fence lets the very first wait on a frame slot pass.
	if signaled {
		fenceCreateInfo.Flags = vk.FenceCreateFlags(vk.FenceCreateSignaledBit)
	}

	var fence vk.Fence
	if err := d.locks.SafeCall(SynchronizationManagement, func() error {
		if res := vk.CreateFence(d.logical(), &fenceCreateInfo, d.context.Allocator, &fence); res != vk.Success {
			return resultError("vkCreateFence", res)
		}
		return nil
	}); err != nil {
		return metadata.NullHandle, err
	}
	return metadata.Fence(d.fences.Acquire(fence)), nil
}

func (d *Device) DestroyFence(fence metadata.Fence) {
	handle, err := d.fences.Release(uint64(fence))
	if err != nil {
		core.LogWarn("DestroyFence: %s", err)
		return
	}
	d.locks.SafeCall(SynchronizationManagement, func() error {
		vk.DestroyFence(d.logical(), handle, d.context.Allocator)
		return nil
	})
}

func (d *Device) WaitForFence(fence metadata.Fence, timeout uint64) metadata.Result {
	handle, ok := d.fences.Get(uint64(fence))
	if !ok {
		return metadata.ErrorUnknown
	}
	result := vk.WaitForFences(d.logical(), 1, []vk.Fence{handle}, vk.True, timeout)
	switch result {
	case vk.Success:
	case vk.Timeout:
		core.LogWarn("vk_fence_wait - Timed out")
	case vk.ErrorDeviceLost:
		core.LogError("vk_fence_wait - VK_ERROR_DEVICE_LOST.")
	default:
		core.LogError("vk_fence_wait - %s", VulkanResultString(result, false))
	}
	return toResult(result)
}

func (d *Device) FenceStatus(fence metadata.Fence) metadata.Result {
	handle, ok := d.fences.Get(uint64(fence))
	if !ok {
		return metadata.ErrorUnknown
	}
	return toResult(vk.GetFenceStatus(d.logical(), handle))
}

func (d *Device) ResetFence(fence metadata.Fence) error {
	handle, ok := d.fences.Get(uint64(fence))
	if !ok {
		return fmt.Errorf("unknown fence %d", fence)
	}
	if res := vk.ResetFences(d.logical(), 1, []vk.Fence{handle}); res != vk.Success {
		return resultError("vkResetFences", res)
	}
	return nil
}

func (d *Device) CreateSemaphore() (metadata.Semaphore, error) {
	semaphoreCreateInfo := vk.SemaphoreCreateInfo{
		SType: vk.StructureTypeSemaphoreCreateInfo,
	}
	var semaphore vk.Semaphore
	if err := d.locks.SafeCall(SynchronizationManagement, func() error {
		if res := vk.CreateSemaphore(d.logical(), &semaphoreCreateInfo, d.context.Allocator, &semaphore); res != vk.Success {
			return resultError("vkCreateSemaphore", res)
		}
		return nil
	}); err != nil {
		return metadata.NullHandle, err
	}
	return metadata.Semaphore(d.semaphores.Acquire(semaphore)), nil
}

func (d *Device) DestroySemaphore(semaphore metadata.Semaphore) {
	handle, err := d.semaphores.Release(uint64(semaphore))
	if err != nil {
		core.LogWarn("DestroySemaphore: %s", err)
		return
	}
	d.locks.SafeCall(SynchronizationManagement, func() error {
		vk.DestroySemaphore(d.logical(), handle, d.context.Allocator)
		return nil
	})
}
