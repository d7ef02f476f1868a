package vulkan

import (
	vk "github.com/goki/vulkan"
	"github.com/spaghettifunk/tessera/engine/core"
	"github.com/spaghettifunk/tessera/engine/renderer/metadata"
)

// ShaderSource loads compiled SPIR-V by file name (e.g. "instance.comp.spv").
type ShaderSource interface {
	Shader(name string) ([]byte, error)
}

type DeviceConfig struct {
	ApplicationName string
	Window          SurfaceSource
	Shaders         ShaderSource
	Debug           *DebugContext
}

type commandBuffer struct {
	handle vk.CommandBuffer
	queue  metadata.QueueKind
}

type swapchain struct {
	handle vk.Swapchain
	images []vk.Image
}

type pipeline struct {
	handle    vk.Pipeline
	layout    vk.PipelineLayout
	bindPoint vk.PipelineBindPoint
}

// Device implements metadata.Device on top of goki/vulkan. Every Vulkan
// object is kept in a registry and leaves the binding as a small integer.
type Device struct {
	context *VulkanContext
	locks   *VulkanLockPool
	shaders ShaderSource

	// Buffers are created concurrent across these families when more than one is in use.
	sharedFamilies []uint32

	buffers        *core.Registry[vk.Buffer]
	memories       *core.Registry[vk.DeviceMemory]
	fences         *core.Registry[vk.Fence]
	semaphores     *core.Registry[vk.Semaphore]
	commandBuffers *core.Registry[commandBuffer]
	swapchains     *core.Registry[swapchain]
	imageViews     *core.Registry[vk.ImageView]
	renderPasses   *core.Registry[vk.RenderPass]
	framebuffers   *core.Registry[vk.Framebuffer]
	pipelines      *core.Registry[pipeline]
	descriptorSets *core.Registry[vk.DescriptorSet]

	graphicsLayout vk.PipelineLayout
	compute        computeLayout
}

var _ metadata.Device = (*Device)(nil)

func NewDevice(cfg DeviceConfig) (*Device, error) {
	context, err := newContext(cfg.ApplicationName, cfg.Window, cfg.Debug)
	if err != nil {
		return nil, err
	}

	d := &Device{
		context:        context,
		locks:          NewVulkanLockPool(),
		shaders:        cfg.Shaders,
		buffers:        core.NewRegistry[vk.Buffer](16),
		memories:       core.NewRegistry[vk.DeviceMemory](8),
		fences:         core.NewRegistry[vk.Fence](8),
		semaphores:     core.NewRegistry[vk.Semaphore](16),
		commandBuffers: core.NewRegistry[commandBuffer](8),
		swapchains:     core.NewRegistry[swapchain](2),
		imageViews:     core.NewRegistry[vk.ImageView](8),
		renderPasses:   core.NewRegistry[vk.RenderPass](2),
		framebuffers:   core.NewRegistry[vk.Framebuffer](8),
		pipelines:      core.NewRegistry[pipeline](4),
		descriptorSets: core.NewRegistry[vk.DescriptorSet](4),
	}

	if err := DeviceCreate(context, d.locks); err != nil {
		context.destroy()
		return nil, err
	}
	if families := context.Device.families(); len(families) > 1 {
		d.sharedFamilies = families
	}

	if err := d.createLayouts(); err != nil {
		d.Close()
		return nil, err
	}

	core.LogInfo("%s initialized successfully.", d)
	return d, nil
}

func (d *Device) logical() vk.Device {
	return d.context.Device.LogicalDevice
}

// WaitIdle blocks until every queue of the device drained.
func (d *Device) WaitIdle() error {
	if res := vk.DeviceWaitIdle(d.logical()); res != vk.Success {
		if res == vk.ErrorDeviceLost {
			return core.DeviceLostError("vulkan.WaitIdle", core.ErrDeviceLost)
		}
		return resultError("vkDeviceWaitIdle", res)
	}
	return nil
}

// Close destroys the layouts, the device, the surface and the instance.
// Every object handed out must have been destroyed by its owner before.
func (d *Device) Close() {
	if d.context == nil {
		return
	}
	if d.context.Device != nil && d.context.Device.LogicalDevice != nil {
		vk.DeviceWaitIdle(d.logical())
		d.destroyLayouts()
		leaks := d.buffers.Len() + d.memories.Len() + d.fences.Len() + d.semaphores.Len() +
			d.commandBuffers.Len() + d.swapchains.Len() + d.imageViews.Len() + d.renderPasses.Len() +
			d.framebuffers.Len() + d.pipelines.Len()
		if leaks > 0 {
			core.LogWarn("closing the Vulkan device with %d live objects", leaks)
		}
	}
	d.context.destroy()
	d.context = nil
}
