package vulkan

import (
	"fmt"
	"runtime"
	"unsafe"

	vk "github.com/goki/vulkan"
	"github.com/spaghettifunk/tessera/engine/core"
)

// SurfaceSource is the window side of the binding.
type SurfaceSource interface {
	InstanceProcAddress() unsafe.Pointer
	RequiredInstanceExtensions() []string
	// CreateSurface returns the VkSurfaceKHR of the window for instance.
	CreateSurface(instance interface{}) (uintptr, error)
}

type VulkanContext struct {
	Instance  vk.Instance
	Allocator *vk.AllocationCallbacks
	Surface   vk.Surface

	debug  *DebugContext
	Device *VulkanDevice
}

func newContext(appName string, window SurfaceSource, debug *DebugContext) (*VulkanContext, error) {
	procAddr := window.InstanceProcAddress()
	if procAddr == nil {
		return nil, fmt.Errorf("GetInstanceProcAddress is nil")
	}
	vk.SetGetInstanceProcAddr(procAddr)
	if err := vk.Init(); err != nil {
		return nil, fmt.Errorf("failed to initialize vk: %w", err)
	}

	context := &VulkanContext{debug: debug}

	appInfo := &vk.ApplicationInfo{
		SType:              vk.StructureTypeApplicationInfo,
		ApiVersion:         uint32(vk.MakeVersion(1, 1, 0)),
		ApplicationVersion: uint32(vk.MakeVersion(1, 0, 0)),
		PApplicationName:   VulkanSafeString(appName),
		PEngineName:        VulkanSafeString("Tessera Engine"),
	}

	createInfo := vk.InstanceCreateInfo{
		SType:            vk.StructureTypeInstanceCreateInfo,
		PApplicationInfo: appInfo,
	}

	extensions := []string{"VK_KHR_surface"}
	extensions = append(extensions, window.RequiredInstanceExtensions()...)
	if runtime.GOOS == "darwin" {
		extensions = append(extensions,
			"VK_KHR_portability_enumeration",
			"VK_KHR_get_physical_device_properties2",
		)
		// VK_INSTANCE_CREATE_ENUMERATE_PORTABILITY_BIT_KHR
		createInfo.Flags |= 1
	}
	extensions = append(extensions, debug.extensions()...)
	for _, ext := range extensions {
		core.LogDebug("Required extension: %s", ext)
	}
	createInfo.EnabledExtensionCount = uint32(len(extensions))
	createInfo.PpEnabledExtensionNames = VulkanSafeStrings(extensions)

	if err := debug.checkLayers(); err != nil {
		return nil, err
	}
	if debug.active() {
		createInfo.EnabledLayerCount = uint32(len(debug.Layers))
		createInfo.PpEnabledLayerNames = VulkanSafeStrings(debug.Layers)
	}

	if res := vk.CreateInstance(&createInfo, context.Allocator, &context.Instance); res != vk.Success {
		return nil, core.ConfigurationError("vulkan.CreateInstance", resultError("vkCreateInstance", res))
	}
	if err := vk.InitInstance(context.Instance); err != nil {
		return nil, err
	}
	core.LogInfo("Vulkan Instance created.")

	if err := debug.attach(context.Instance); err != nil {
		context.destroy()
		return nil, err
	}

	core.LogDebug("Creating Vulkan surface...")
	surface, err := window.CreateSurface(context.Instance)
	if err != nil || surface == 0 {
		context.destroy()
		return nil, core.ConfigurationError("vulkan.CreateSurface", fmt.Errorf("vulkan surface creation failed: %v", err))
	}
	context.Surface = vk.SurfaceFromPointer(surface)
	core.LogDebug("Vulkan surface created.")

	return context, nil
}

func (vc *VulkanContext) destroy() {
	if vc.Device != nil {
		vc.Device.destroy(vc)
		vc.Device = nil
	}

	if vc.Surface != vk.NullSurface {
		core.LogDebug("Destroying Vulkan surface...")
		vk.DestroySurface(vc.Instance, vc.Surface, vc.Allocator)
		vc.Surface = vk.NullSurface
	}

	vc.debug.detach(vc.Instance)

	if vc.Instance != nil {
		core.LogDebug("Destroying Vulkan instance...")
		vk.DestroyInstance(vc.Instance, vc.Allocator)
		vc.Instance = nil
	}
}
