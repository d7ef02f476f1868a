package vulkan

import (
	"fmt"
	"sync/atomic"
	"unsafe"

	vk "github.com/goki/vulkan"
	"github.com/spaghettifunk/tessera/engine/core"
)

const validationLayerName = "VK_LAYER_KHRONOS_validation"

// DebugContext owns the validation setup of one instance. A nil or disabled
// context creates an instance without layers and without a report callback.
type DebugContext struct {
	Enabled bool
	Layers  []string

	callback vk.DebugReportCallback
	errors   atomic.Uint64
	warnings atomic.Uint64
}

func NewDebugContext(enabled bool) *DebugContext {
	d := &DebugContext{Enabled: enabled}
	if enabled {
		d.Layers = []string{validationLayerName}
	}
	return d
}

func (d *DebugContext) active() bool {
	return d != nil && d.Enabled
}

// Errors counts validation errors reported since the instance was created.
func (d *DebugContext) Errors() uint64 {
	return d.errors.Load()
}

func (d *DebugContext) Warnings() uint64 {
	return d.warnings.Load()
}

func (d *DebugContext) extensions() []string {
	if !d.active() {
		return nil
	}
	return []string{vk.ExtDebugReportExtensionName}
}

// checkLayers makes sure every requested layer is installed.
func (d *DebugContext) checkLayers() error {
	if !d.active() {
		return nil
	}
	core.LogInfo("Validation layers enabled. Enumerating...")

	var count uint32
	if res := vk.EnumerateInstanceLayerProperties(&count, nil); res != vk.Success {
		return resultError("vkEnumerateInstanceLayerProperties", res)
	}
	available := make([]vk.LayerProperties, count)
	if res := vk.EnumerateInstanceLayerProperties(&count, available); res != vk.Success {
		return resultError("vkEnumerateInstanceLayerProperties", res)
	}

	for _, required := range d.Layers {
		found := false
		for j := range available {
			available[j].Deref()
			if vkName(available[j].LayerName[:]) == required {
				found = true
				break
			}
		}
		if !found {
			return core.ConfigurationError("vulkan.checkLayers", fmt.Errorf("required validation layer is missing: %s", required))
		}
		core.LogDebug("Found validation layer %s", required)
	}
	return nil
}

func (d *DebugContext) attach(instance vk.Instance) error {
	if !d.active() {
		return nil
	}
	core.LogDebug("Creating Vulkan debugger...")
	info := vk.DebugReportCallbackCreateInfo{
		SType: vk.StructureTypeDebugReportCallbackCreateInfo,
		Flags: vk.DebugReportFlags(vk.DebugReportErrorBit | vk.DebugReportWarningBit |
			vk.DebugReportPerformanceWarningBit),
		PfnCallback: d.report,
	}
	var cb vk.DebugReportCallback
	if res := vk.CreateDebugReportCallback(instance, &info, nil, &cb); res != vk.Success {
		return resultError("vkCreateDebugReportCallback", res)
	}
	d.callback = cb
	core.LogDebug("Vulkan debugger created.")
	return nil
}

func (d *DebugContext) detach(instance vk.Instance) {
	if !d.active() || d.callback == vk.NullDebugReportCallback {
		return
	}
	core.LogDebug("Destroying Vulkan debugger...")
	vk.DestroyDebugReportCallback(instance, d.callback, nil)
	d.callback = vk.NullDebugReportCallback
}

func (d *DebugContext) report(flags vk.DebugReportFlags, objectType vk.DebugReportObjectType, object uint64, location uint64, messageCode int32, pLayerPrefix string, pMessage string, pUserData unsafe.Pointer) vk.Bool32 {
	switch {
	case flags&vk.DebugReportFlags(vk.DebugReportErrorBit) != 0:
		d.errors.Add(1)
		core.LogError("ERROR: [%s] Code %d : %s", pLayerPrefix, messageCode, pMessage)
	case flags&vk.DebugReportFlags(vk.DebugReportWarningBit) != 0:
		d.warnings.Add(1)
		core.LogWarn("WARNING: [%s] Code %d : %s", pLayerPrefix, messageCode, pMessage)
	case flags&vk.DebugReportFlags(vk.DebugReportPerformanceWarningBit) != 0:
		d.warnings.Add(1)
		core.LogWarn("PERFORMANCE WARNING: [%s] Code %d : %s", pLayerPrefix, messageCode, pMessage)
	default:
		core.LogDebug("[%s] Code %d : %s", pLayerPrefix, messageCode, pMessage)
	}
	return vk.Bool32(vk.False)
}
