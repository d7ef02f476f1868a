package vulkan

import (
	"fmt"

	vk "github.com/goki/vulkan"
	"github.com/spaghettifunk/tessera/engine/core"
	"github.com/spaghettifunk/tessera/engine/renderer/metadata"
)

func (d *Device) surfaceCapabilities() (vk.SurfaceCapabilities, error) {
	var caps vk.SurfaceCapabilities
	if res := vk.GetPhysicalDeviceSurfaceCapabilities(d.context.Device.PhysicalDevice, d.context.Surface, &caps); res != vk.Success {
		if res == vk.ErrorSurfaceLost {
			return caps, core.TransientError("vulkan.SurfaceSupport", resultError("vkGetPhysicalDeviceSurfaceCapabilities", res))
		}
		return caps, resultError("vkGetPhysicalDeviceSurfaceCapabilities", res)
	}
	caps.Deref()
	caps.CurrentExtent.Deref()
	caps.MinImageExtent.Deref()
	caps.MaxImageExtent.Deref()
	return caps, nil
}

// SurfaceSupport queries the surface again on every call; the window may have changed.
func (d *Device) SurfaceSupport() (metadata.SurfaceSupport, error) {
	physicalDevice := d.context.Device.PhysicalDevice
	surface := d.context.Surface

	caps, err := d.surfaceCapabilities()
	if err != nil {
		return metadata.SurfaceSupport{}, err
	}
	support := metadata.SurfaceSupport{
		Capabilities: metadata.SurfaceCapabilities{
			MinImageCount:  caps.MinImageCount,
			MaxImageCount:  caps.MaxImageCount,
			CurrentExtent:  metadata.Extent2D{Width: caps.CurrentExtent.Width, Height: caps.CurrentExtent.Height},
			MinImageExtent: metadata.Extent2D{Width: caps.MinImageExtent.Width, Height: caps.MinImageExtent.Height},
			MaxImageExtent: metadata.Extent2D{Width: caps.MaxImageExtent.Width, Height: caps.MaxImageExtent.Height},
		},
	}

	var formatCount uint32
	if res := vk.GetPhysicalDeviceSurfaceFormats(physicalDevice, surface, &formatCount, nil); res != vk.Success {
		return support, resultError("vkGetPhysicalDeviceSurfaceFormats", res)
	}
	if formatCount != 0 {
		formats := make([]vk.SurfaceFormat, formatCount)
		if res := vk.GetPhysicalDeviceSurfaceFormats(physicalDevice, surface, &formatCount, formats); res != vk.Success {
			return support, resultError("vkGetPhysicalDeviceSurfaceFormats", res)
		}
		for i := range formats {
			formats[i].Deref()
			support.Formats = append(support.Formats, metadata.SurfaceFormat{
				Format:     metadata.Format(formats[i].Format),
				ColorSpace: metadata.ColorSpace(formats[i].ColorSpace),
			})
		}
	}

	var presentModeCount uint32
	if res := vk.GetPhysicalDeviceSurfacePresentModes(physicalDevice, surface, &presentModeCount, nil); res != vk.Success {
		return support, resultError("vkGetPhysicalDeviceSurfacePresentModes", res)
	}
	if presentModeCount != 0 {
		modes := make([]vk.PresentMode, presentModeCount)
		if res := vk.GetPhysicalDeviceSurfacePresentModes(physicalDevice, surface, &presentModeCount, modes); res != vk.Success {
			return support, resultError("vkGetPhysicalDeviceSurfacePresentModes", res)
		}
		for _, m := range modes {
			support.PresentModes = append(support.PresentModes, metadata.PresentMode(m))
		}
	}
	return support, nil
}

func (d *Device) CreateSwapchain(info *metadata.SwapchainCreateInfo) (metadata.Swapchain, []metadata.ImageView, error) {
	device := d.context.Device
	caps, err := d.surfaceCapabilities()
	if err != nil {
		return metadata.NullHandle, nil, err
	}

	swapchainCreateInfo := vk.SwapchainCreateInfo{
		SType:            vk.StructureTypeSwapchainCreateInfo,
		Surface:          d.context.Surface,
		MinImageCount:    info.ImageCount,
		ImageFormat:      vk.Format(info.Format.Format),
		ImageColorSpace:  vk.ColorSpace(info.Format.ColorSpace),
		ImageExtent:      vk.Extent2D{Width: info.Extent.Width, Height: info.Extent.Height},
		ImageArrayLayers: 1,
		ImageUsage:       vk.ImageUsageFlags(vk.ImageUsageColorAttachmentBit),
		PreTransform:     caps.CurrentTransform,
		CompositeAlpha:   vk.CompositeAlphaOpaqueBit,
		PresentMode:      vk.PresentMode(info.PresentMode),
		Clipped:          vk.True,
	}

	if device.GraphicsQueueIndex != device.PresentQueueIndex {
		swapchainCreateInfo.ImageSharingMode = vk.SharingModeConcurrent
		swapchainCreateInfo.QueueFamilyIndexCount = 2
		swapchainCreateInfo.PQueueFamilyIndices = []uint32{
			uint32(device.GraphicsQueueIndex),
			uint32(device.PresentQueueIndex),
		}
	} else {
		swapchainCreateInfo.ImageSharingMode = vk.SharingModeExclusive
	}

	if info.OldSwapchain != metadata.NullHandle {
		if old, ok := d.swapchains.Get(uint64(info.OldSwapchain)); ok {
			swapchainCreateInfo.OldSwapchain = old.handle
		}
	}

	var sc swapchain
	if err := d.locks.SafeCall(SwapchainManagement, func() error {
		if res := vk.CreateSwapchain(d.logical(), &swapchainCreateInfo, d.context.Allocator, &sc.handle); res != vk.Success {
			if res == vk.ErrorSurfaceLost || res == vk.ErrorOutOfDate {
				return core.TransientError("vulkan.CreateSwapchain", resultError("vkCreateSwapchain", res))
			}
			return resultError("vkCreateSwapchain", res)
		}
		return nil
	}); err != nil {
		return metadata.NullHandle, nil, err
	}

	var imageCount uint32
	if res := vk.GetSwapchainImages(d.logical(), sc.handle, &imageCount, nil); res != vk.Success {
		vk.DestroySwapchain(d.logical(), sc.handle, d.context.Allocator)
		return metadata.NullHandle, nil, resultError("vkGetSwapchainImages", res)
	}
	sc.images = make([]vk.Image, imageCount)
	if res := vk.GetSwapchainImages(d.logical(), sc.handle, &imageCount, sc.images); res != vk.Success {
		vk.DestroySwapchain(d.logical(), sc.handle, d.context.Allocator)
		return metadata.NullHandle, nil, resultError("vkGetSwapchainImages", res)
	}

	handle := metadata.Swapchain(d.swapchains.Acquire(sc))
	views := make([]metadata.ImageView, 0, imageCount)
	for _, image := range sc.images {
		viewInfo := vk.ImageViewCreateInfo{
			SType:    vk.StructureTypeImageViewCreateInfo,
			Image:    image,
			ViewType: vk.ImageViewType2d,
			Format:   vk.Format(info.Format.Format),
			Components: vk.ComponentMapping{
				R: vk.ComponentSwizzleIdentity,
				G: vk.ComponentSwizzleIdentity,
				B: vk.ComponentSwizzleIdentity,
				A: vk.ComponentSwizzleIdentity,
			},
			SubresourceRange: vk.ImageSubresourceRange{
				AspectMask: vk.ImageAspectFlags(vk.ImageAspectColorBit),
				LevelCount: 1,
				LayerCount: 1,
			},
		}
		var view vk.ImageView
		if res := vk.CreateImageView(d.logical(), &viewInfo, d.context.Allocator, &view); res != vk.Success {
			d.DestroySwapchain(handle, views)
			return metadata.NullHandle, nil, resultError("vkCreateImageView", res)
		}
		views = append(views, metadata.ImageView(d.imageViews.Acquire(view)))
	}

	core.LogDebug("Swapchain created: %dx%d, %d images, %s", info.Extent.Width, info.Extent.Height, imageCount, info.PresentMode)
	return handle, views, nil
}

func (d *Device) DestroySwapchain(handle metadata.Swapchain, views []metadata.ImageView) {
	// Only destroy the views, not the images, since those are owned by the swapchain.
	for _, v := range views {
		view, err := d.imageViews.Release(uint64(v))
		if err != nil {
			core.LogWarn("DestroySwapchain: %s", err)
			continue
		}
		vk.DestroyImageView(d.logical(), view, d.context.Allocator)
	}
	sc, err := d.swapchains.Release(uint64(handle))
	if err != nil {
		core.LogWarn("DestroySwapchain: %s", err)
		return
	}
	d.locks.SafeCall(SwapchainManagement, func() error {
		vk.DestroySwapchain(d.logical(), sc.handle, d.context.Allocator)
		return nil
	})
}

func (d *Device) AcquireNextImage(handle metadata.Swapchain, timeout uint64, signal metadata.Semaphore) (uint32, metadata.Result) {
	sc, ok := d.swapchains.Get(uint64(handle))
	if !ok {
		return 0, metadata.ErrorUnknown
	}
	sem, ok := d.semaphores.Get(uint64(signal))
	if !ok {
		return 0, metadata.ErrorUnknown
	}
	var imageIndex uint32
	result := vk.AcquireNextImage(d.logical(), sc.handle, timeout, sem, vk.NullFence, &imageIndex)
	return imageIndex, toResult(result)
}

func (d *Device) Present(handle metadata.Swapchain, imageIndex uint32, wait metadata.Semaphore) metadata.Result {
	sc, ok := d.swapchains.Get(uint64(handle))
	if !ok {
		return metadata.ErrorUnknown
	}
	sem, ok := d.semaphores.Get(uint64(wait))
	if !ok {
		return metadata.ErrorUnknown
	}
	presentInfo := vk.PresentInfo{
		SType:              vk.StructureTypePresentInfo,
		WaitSemaphoreCount: 1,
		PWaitSemaphores:    []vk.Semaphore{sem},
		SwapchainCount:     1,
		PSwapchains:        []vk.Swapchain{sc.handle},
		PImageIndices:      []uint32{imageIndex},
	}
	result := vk.Success
	device := d.context.Device
	d.locks.SafeQueueCall(uint32(device.PresentQueueIndex), func() error {
		result = vk.QueuePresent(device.PresentQueue, &presentInfo)
		return nil
	})
	return toResult(result)
}

func (d *Device) String() string {
	return fmt.Sprintf("vulkan.Device(%s)", vkName(d.context.Device.Properties.DeviceName[:]))
}
