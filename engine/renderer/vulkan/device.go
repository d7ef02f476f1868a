package vulkan

import (
	"fmt"
	"runtime"

	vk "github.com/goki/vulkan"
	"github.com/spaghettifunk/tessera/engine/core"
	"github.com/spaghettifunk/tessera/engine/renderer/metadata"
)

type VulkanDevice struct {
	PhysicalDevice vk.PhysicalDevice
	LogicalDevice  vk.Device

	GraphicsQueueIndex int32
	PresentQueueIndex  int32
	TransferQueueIndex int32
	ComputeQueueIndex  int32

	GraphicsQueue vk.Queue
	PresentQueue  vk.Queue
	TransferQueue vk.Queue
	ComputeQueue  vk.Queue

	// One resettable pool per queue kind.
	CommandPools map[metadata.QueueKind]vk.CommandPool

	Properties vk.PhysicalDeviceProperties
	Features   vk.PhysicalDeviceFeatures
	Memory     vk.PhysicalDeviceMemoryProperties
}

type VulkanPhysicalDeviceRequirements struct {
	Graphics             bool
	Present              bool
	Compute              bool
	Transfer             bool
	DeviceExtensionNames []string
	DiscreteGPU          bool
}

type VulkanPhysicalDeviceQueueFamilyInfo struct {
	GraphicsFamilyIndex int32
	PresentFamilyIndex  int32
	ComputeFamilyIndex  int32
	TransferFamilyIndex int32
}

func (q VulkanPhysicalDeviceQueueFamilyInfo) meets(req *VulkanPhysicalDeviceRequirements) bool {
	return (!req.Graphics || q.GraphicsFamilyIndex >= 0) &&
		(!req.Present || q.PresentFamilyIndex >= 0) &&
		(!req.Compute || q.ComputeFamilyIndex >= 0) &&
		(!req.Transfer || q.TransferFamilyIndex >= 0)
}

// Queue returns the queue and its family for kind.
func (d *VulkanDevice) Queue(kind metadata.QueueKind) (vk.Queue, uint32) {
	switch kind {
	case metadata.QueueCompute:
		return d.ComputeQueue, uint32(d.ComputeQueueIndex)
	case metadata.QueueTransfer:
		return d.TransferQueue, uint32(d.TransferQueueIndex)
	default:
		return d.GraphicsQueue, uint32(d.GraphicsQueueIndex)
	}
}

// families lists every distinct queue family in use.
func (d *VulkanDevice) families() []uint32 {
	seen := map[int32]bool{}
	out := []uint32{}
	for _, idx := range []int32{d.GraphicsQueueIndex, d.PresentQueueIndex, d.ComputeQueueIndex, d.TransferQueueIndex} {
		if idx < 0 || seen[idx] {
			continue
		}
		seen[idx] = true
		out = append(out, uint32(idx))
	}
	return out
}

func DeviceCreate(context *VulkanContext, locks *VulkanLockPool) error {
	if err := SelectPhysicalDevice(context); err != nil {
		return err
	}
	device := context.Device

	core.LogInfo("Creating logical device...")

	families := device.families()
	queueCreateInfos := make([]vk.DeviceQueueCreateInfo, len(families))
	for i, family := range families {
		queueCreateInfos[i] = vk.DeviceQueueCreateInfo{
			SType:            vk.StructureTypeDeviceQueueCreateInfo,
			QueueFamilyIndex: family,
			QueueCount:       1,
			PQueuePriorities: []float32{1.0},
		}
		locks.SetQueueFamily(family)
	}

	extensionNames := []string{vk.KhrSwapchainExtensionName}
	if hasDeviceExtension(device.PhysicalDevice, "VK_KHR_portability_subset") {
		core.LogInfo("Adding required extension 'VK_KHR_portability_subset'.")
		extensionNames = append(extensionNames, "VK_KHR_portability_subset")
	}

	deviceCreateInfo := vk.DeviceCreateInfo{
		SType:                   vk.StructureTypeDeviceCreateInfo,
		QueueCreateInfoCount:    uint32(len(queueCreateInfos)),
		PQueueCreateInfos:       queueCreateInfos,
		PEnabledFeatures:        []vk.PhysicalDeviceFeatures{{}},
		EnabledExtensionCount:   uint32(len(extensionNames)),
		PpEnabledExtensionNames: VulkanSafeStrings(extensionNames),
	}

	if res := vk.CreateDevice(device.PhysicalDevice, &deviceCreateInfo, context.Allocator, &device.LogicalDevice); res != vk.Success {
		return core.ConfigurationError("vulkan.DeviceCreate", resultError("vkCreateDevice", res))
	}
	core.LogInfo("Logical device created.")

	vk.GetDeviceQueue(device.LogicalDevice, uint32(device.GraphicsQueueIndex), 0, &device.GraphicsQueue)
	vk.GetDeviceQueue(device.LogicalDevice, uint32(device.PresentQueueIndex), 0, &device.PresentQueue)
	vk.GetDeviceQueue(device.LogicalDevice, uint32(device.TransferQueueIndex), 0, &device.TransferQueue)
	vk.GetDeviceQueue(device.LogicalDevice, uint32(device.ComputeQueueIndex), 0, &device.ComputeQueue)
	core.LogInfo("Queues obtained.")

	device.CommandPools = make(map[metadata.QueueKind]vk.CommandPool, 3)
	for _, kind := range []metadata.QueueKind{metadata.QueueGraphics, metadata.QueueCompute, metadata.QueueTransfer} {
		_, family := device.Queue(kind)
		poolCreateInfo := vk.CommandPoolCreateInfo{
			SType:            vk.StructureTypeCommandPoolCreateInfo,
			QueueFamilyIndex: family,
			Flags:            vk.CommandPoolCreateFlags(vk.CommandPoolCreateResetCommandBufferBit),
		}
		var pool vk.CommandPool
		if res := vk.CreateCommandPool(device.LogicalDevice, &poolCreateInfo, context.Allocator, &pool); res != vk.Success {
			return core.ConfigurationError("vulkan.DeviceCreate", resultError("vkCreateCommandPool", res))
		}
		device.CommandPools[kind] = pool
		core.LogDebug("%s command pool created.", kind)
	}
	return nil
}

func (d *VulkanDevice) destroy(context *VulkanContext) {
	if d.LogicalDevice == nil {
		return
	}
	core.LogInfo("Destroying command pools...")
	for kind, pool := range d.CommandPools {
		vk.DestroyCommandPool(d.LogicalDevice, pool, context.Allocator)
		delete(d.CommandPools, kind)
	}

	d.GraphicsQueue = nil
	d.PresentQueue = nil
	d.TransferQueue = nil
	d.ComputeQueue = nil

	core.LogInfo("Destroying logical device...")
	vk.DestroyDevice(d.LogicalDevice, context.Allocator)
	d.LogicalDevice = nil
	// Physical devices are not destroyed.
	d.PhysicalDevice = nil
}

func SelectPhysicalDevice(context *VulkanContext) error {
	var physicalDeviceCount uint32
	if res := vk.EnumeratePhysicalDevices(context.Instance, &physicalDeviceCount, nil); res != vk.Success {
		return resultError("vkEnumeratePhysicalDevices", res)
	}
	if physicalDeviceCount == 0 {
		return core.ConfigurationError("vulkan.SelectPhysicalDevice", fmt.Errorf("no devices which support Vulkan were found"))
	}
	physicalDevices := make([]vk.PhysicalDevice, physicalDeviceCount)
	if res := vk.EnumeratePhysicalDevices(context.Instance, &physicalDeviceCount, physicalDevices); res != vk.Success {
		return resultError("vkEnumeratePhysicalDevices", res)
	}

	requirements := VulkanPhysicalDeviceRequirements{
		Graphics:             true,
		Present:              true,
		Compute:              true,
		Transfer:             true,
		DiscreteGPU:          runtime.GOOS != "darwin",
		DeviceExtensionNames: []string{vk.KhrSwapchainExtensionName},
	}

	var selected *VulkanDevice
	for _, pd := range physicalDevices {
		properties := vk.PhysicalDeviceProperties{}
		vk.GetPhysicalDeviceProperties(pd, &properties)
		properties.Deref()

		features := vk.PhysicalDeviceFeatures{}
		vk.GetPhysicalDeviceFeatures(pd, &features)
		features.Deref()

		memory := vk.PhysicalDeviceMemoryProperties{}
		vk.GetPhysicalDeviceMemoryProperties(pd, &memory)
		memory.Deref()
		for i := uint32(0); i < memory.MemoryTypeCount; i++ {
			memory.MemoryTypes[i].Deref()
		}
		for i := uint32(0); i < memory.MemoryHeapCount; i++ {
			memory.MemoryHeaps[i].Deref()
		}

		queueInfo, ok := PhysicalDeviceMeetsRequirements(pd, context.Surface, &properties, &requirements)
		if !ok {
			continue
		}
		candidate := &VulkanDevice{
			PhysicalDevice:     pd,
			GraphicsQueueIndex: queueInfo.GraphicsFamilyIndex,
			PresentQueueIndex:  queueInfo.PresentFamilyIndex,
			TransferQueueIndex: queueInfo.TransferFamilyIndex,
			ComputeQueueIndex:  queueInfo.ComputeFamilyIndex,
			Properties:         properties,
			Features:           features,
			Memory:             memory,
		}
		// A discrete GPU wins; anything else is kept only as a fallback.
		if selected == nil || properties.DeviceType == vk.PhysicalDeviceTypeDiscreteGpu {
			selected = candidate
		}
		if properties.DeviceType == vk.PhysicalDeviceTypeDiscreteGpu || !requirements.DiscreteGPU {
			break
		}
	}

	if selected == nil {
		return core.ConfigurationError("vulkan.SelectPhysicalDevice", fmt.Errorf("no physical devices were found which meet the requirements"))
	}
	logDevice(selected)
	context.Device = selected
	core.LogInfo("Physical device selected.")
	return nil
}

func logDevice(d *VulkanDevice) {
	core.LogInfo("Selected device: '%s'.", vkName(d.Properties.DeviceName[:]))
	switch d.Properties.DeviceType {
	case vk.PhysicalDeviceTypeIntegratedGpu:
		core.LogInfo("GPU type is Integrated.")
	case vk.PhysicalDeviceTypeDiscreteGpu:
		core.LogInfo("GPU type is Discrete.")
	case vk.PhysicalDeviceTypeVirtualGpu:
		core.LogInfo("GPU type is Virtual.")
	case vk.PhysicalDeviceTypeCpu:
		core.LogInfo("GPU type is CPU.")
	default:
		core.LogInfo("GPU type is Unknown.")
	}
	core.LogInfo(
		"Vulkan API version: %d.%d.%d",
		vk.Version(d.Properties.ApiVersion).Major(),
		vk.Version(d.Properties.ApiVersion).Minor(),
		vk.Version(d.Properties.ApiVersion).Patch(),
	)
	for j := uint32(0); j < d.Memory.MemoryHeapCount; j++ {
		memorySizeGib := float64(d.Memory.MemoryHeaps[j].Size) / 1024.0 / 1024.0 / 1024.0
		if vk.MemoryHeapFlagBits(d.Memory.MemoryHeaps[j].Flags)&vk.MemoryHeapDeviceLocalBit != 0 {
			core.LogInfo("Local GPU memory: %.2f GiB", memorySizeGib)
		} else {
			core.LogInfo("Shared System memory: %.2f GiB", memorySizeGib)
		}
	}
}

func PhysicalDeviceMeetsRequirements(device vk.PhysicalDevice, surface vk.Surface, properties *vk.PhysicalDeviceProperties, requirements *VulkanPhysicalDeviceRequirements) (VulkanPhysicalDeviceQueueFamilyInfo, bool) {
	info := VulkanPhysicalDeviceQueueFamilyInfo{
		GraphicsFamilyIndex: -1,
		PresentFamilyIndex:  -1,
		ComputeFamilyIndex:  -1,
		TransferFamilyIndex: -1,
	}

	var queueFamilyCount uint32
	vk.GetPhysicalDeviceQueueFamilyProperties(device, &queueFamilyCount, nil)
	queueFamilies := make([]vk.QueueFamilyProperties, queueFamilyCount)
	vk.GetPhysicalDeviceQueueFamilyProperties(device, &queueFamilyCount, queueFamilies)

	minTransferScore := 255
	for i := range queueFamilies {
		queueFamilies[i].Deref()
		flags := queueFamilies[i].QueueFlags
		currentTransferScore := 0

		graphics := flags&vk.QueueFlags(vk.QueueGraphicsBit) != 0
		compute := flags&vk.QueueFlags(vk.QueueComputeBit) != 0
		if graphics {
			if info.GraphicsFamilyIndex < 0 {
				info.GraphicsFamilyIndex = int32(i)
			}
			currentTransferScore++
		}
		if compute {
			// Sharing the graphics family keeps the merged buffer on one queue family.
			if info.ComputeFamilyIndex < 0 || (graphics && info.ComputeFamilyIndex != info.GraphicsFamilyIndex) {
				info.ComputeFamilyIndex = int32(i)
			}
			currentTransferScore++
		}
		// The lowest score is the most likely dedicated transfer queue.
		if flags&vk.QueueFlags(vk.QueueTransferBit) != 0 && currentTransferScore <= minTransferScore {
			minTransferScore = currentTransferScore
			info.TransferFamilyIndex = int32(i)
		}

		var supportsPresent vk.Bool32
		if res := vk.GetPhysicalDeviceSurfaceSupport(device, uint32(i), surface, &supportsPresent); res != vk.Success {
			return info, false
		}
		if supportsPresent == vk.True && (info.PresentFamilyIndex < 0 || int32(i) == info.GraphicsFamilyIndex) {
			info.PresentFamilyIndex = int32(i)
		}
	}

	core.LogDebug("Graphics | Present | Compute | Transfer | Name")
	core.LogDebug("      %2d |      %2d |      %2d |       %2d | %s",
		info.GraphicsFamilyIndex, info.PresentFamilyIndex, info.ComputeFamilyIndex, info.TransferFamilyIndex,
		vkName(properties.DeviceName[:]))

	if !info.meets(requirements) {
		core.LogInfo("Device does not meet queue requirements, skipping.")
		return info, false
	}

	var formatCount, presentModeCount uint32
	vk.GetPhysicalDeviceSurfaceFormats(device, surface, &formatCount, nil)
	vk.GetPhysicalDeviceSurfacePresentModes(device, surface, &presentModeCount, nil)
	if formatCount < 1 || presentModeCount < 1 {
		core.LogInfo("Required swapchain support not present, skipping device.")
		return info, false
	}

	for _, ext := range requirements.DeviceExtensionNames {
		if !hasDeviceExtension(device, ext) {
			core.LogInfo("Required extension not found: '%s', skipping device.", ext)
			return info, false
		}
	}
	return info, true
}

func hasDeviceExtension(device vk.PhysicalDevice, name string) bool {
	var count uint32
	if res := vk.EnumerateDeviceExtensionProperties(device, "", &count, nil); res != vk.Success || count == 0 {
		return false
	}
	available := make([]vk.ExtensionProperties, count)
	if res := vk.EnumerateDeviceExtensionProperties(device, "", &count, available); res != vk.Success {
		return false
	}
	for i := range available {
		available[i].Deref()
		if vkName(available[i].ExtensionName[:]) == name {
			return true
		}
	}
	return false
}
