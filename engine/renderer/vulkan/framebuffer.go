package vulkan

import (
	"fmt"

	vk "github.com/goki/vulkan"
	"github.com/spaghettifunk/tessera/engine/core"
	"github.com/spaghettifunk/tessera/engine/renderer/metadata"
)

func (d *Device) CreateFramebuffer(pass metadata.RenderPass, view metadata.ImageView, extent metadata.Extent2D) (metadata.Framebuffer, error) {
	renderPass, ok := d.renderPasses.Get(uint64(pass))
	if !ok {
		return metadata.NullHandle, fmt.Errorf("unknown render pass %d", pass)
	}
	imageView, ok := d.imageViews.Get(uint64(view))
	if !ok {
		return metadata.NullHandle, fmt.Errorf("unknown image view %d", view)
	}

	framebufferCreateInfo := vk.FramebufferCreateInfo{
		SType:           vk.StructureTypeFramebufferCreateInfo,
		RenderPass:      renderPass,
		AttachmentCount: 1,
		PAttachments:    []vk.ImageView{imageView},
		Width:           extent.Width,
		Height:          extent.Height,
		Layers:          1,
	}

	var framebuffer vk.Framebuffer
	if res := vk.CreateFramebuffer(d.logical(), &framebufferCreateInfo, d.context.Allocator, &framebuffer); res != vk.Success {
		return metadata.NullHandle, resultError("vkCreateFramebuffer", res)
	}
	return metadata.Framebuffer(d.framebuffers.Acquire(framebuffer)), nil
}

func (d *Device) DestroyFramebuffer(framebuffer metadata.Framebuffer) {
	handle, err := d.framebuffers.Release(uint64(framebuffer))
	if err != nil {
		core.LogWarn("DestroyFramebuffer: %s", err)
		return
	}
	vk.DestroyFramebuffer(d.logical(), handle, d.context.Allocator)
}
