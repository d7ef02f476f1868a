package vulkan

import (
	"fmt"
	"unsafe"

	vk "github.com/goki/vulkan"
	"github.com/spaghettifunk/tessera/engine/renderer/metadata"
)

var resultNames = map[vk.Result][2]string{
	vk.Success:                {"VK_SUCCESS", "VK_SUCCESS Command successfully completed"},
	vk.NotReady:               {"VK_NOT_READY", "VK_NOT_READY A fence or query has not yet completed"},
	vk.Timeout:                {"VK_TIMEOUT", "VK_TIMEOUT A wait operation has not completed in the specified time"},
	vk.Incomplete:             {"VK_INCOMPLETE", "VK_INCOMPLETE A return array was too small for the result"},
	vk.Suboptimal:             {"VK_SUBOPTIMAL_KHR", "VK_SUBOPTIMAL_KHR A swapchain no longer matches the surface properties exactly, but can still be used to present to the surface successfully."},
	vk.ErrorOutOfHostMemory:   {"VK_ERROR_OUT_OF_HOST_MEMORY", "VK_ERROR_OUT_OF_HOST_MEMORY A host memory allocation has failed."},
	vk.ErrorOutOfDeviceMemory: {"VK_ERROR_OUT_OF_DEVICE_MEMORY", "VK_ERROR_OUT_OF_DEVICE_MEMORY A device memory allocation has failed."},
	vk.ErrorInitializationFailed: {"VK_ERROR_INITIALIZATION_FAILED",
		"VK_ERROR_INITIALIZATION_FAILED Initialization of an object could not be completed for implementation-specific reasons."},
	vk.ErrorDeviceLost:          {"VK_ERROR_DEVICE_LOST", "VK_ERROR_DEVICE_LOST The logical or physical device has been lost."},
	vk.ErrorMemoryMapFailed:     {"VK_ERROR_MEMORY_MAP_FAILED", "VK_ERROR_MEMORY_MAP_FAILED Mapping of a memory object has failed."},
	vk.ErrorLayerNotPresent:     {"VK_ERROR_LAYER_NOT_PRESENT", "VK_ERROR_LAYER_NOT_PRESENT A requested layer is not present or could not be loaded."},
	vk.ErrorExtensionNotPresent: {"VK_ERROR_EXTENSION_NOT_PRESENT", "VK_ERROR_EXTENSION_NOT_PRESENT A requested extension is not supported."},
	vk.ErrorFeatureNotPresent:   {"VK_ERROR_FEATURE_NOT_PRESENT", "VK_ERROR_FEATURE_NOT_PRESENT A requested feature is not supported."},
	vk.ErrorIncompatibleDriver:  {"VK_ERROR_INCOMPATIBLE_DRIVER", "VK_ERROR_INCOMPATIBLE_DRIVER The requested version of Vulkan is not supported by the driver."},
	vk.ErrorTooManyObjects:      {"VK_ERROR_TOO_MANY_OBJECTS", "VK_ERROR_TOO_MANY_OBJECTS Too many objects of the type have already been created."},
	vk.ErrorFormatNotSupported:  {"VK_ERROR_FORMAT_NOT_SUPPORTED", "VK_ERROR_FORMAT_NOT_SUPPORTED A requested format is not supported on this device."},
	vk.ErrorSurfaceLost:         {"VK_ERROR_SURFACE_LOST_KHR", "VK_ERROR_SURFACE_LOST_KHR A surface is no longer available."},
	vk.ErrorNativeWindowInUse:   {"VK_ERROR_NATIVE_WINDOW_IN_USE_KHR", "VK_ERROR_NATIVE_WINDOW_IN_USE_KHR The requested window is already in use."},
	vk.ErrorOutOfDate:           {"VK_ERROR_OUT_OF_DATE_KHR", "VK_ERROR_OUT_OF_DATE_KHR A surface has changed in such a way that it is no longer compatible with the swapchain."},
	vk.ErrorOutOfPoolMemory:     {"VK_ERROR_OUT_OF_POOL_MEMORY", "VK_ERROR_OUT_OF_POOL_MEMORY A pool memory allocation has failed."},
	vk.ErrorUnknown:             {"VK_ERROR_UNKNOWN", "VK_ERROR_UNKNOWN An unknown error has occurred."},
}

func VulkanResultString(result vk.Result, getExtended bool) string {
	names, ok := resultNames[result]
	if !ok {
		return fmt.Sprintf("VkResult(%d)", int32(result))
	}
	return ConditionalOperator(!getExtended, names[0], names[1])
}

// VulkanResultIsSuccess reports whether result is one of the non-error codes.
func VulkanResultIsSuccess(result vk.Result) bool {
	return result >= 0
}

// toResult converts with a cast; metadata.Result mirrors the VkResult values.
func toResult(result vk.Result) metadata.Result {
	return metadata.Result(result)
}

func resultError(op string, result vk.Result) error {
	return fmt.Errorf("%s failed with %s", op, VulkanResultString(result, true))
}

func ConditionalOperator(condition bool, res1, res2 string) string {
	if condition {
		return res1
	}
	return res2
}

var end = "\x00"
var endChar byte = '\x00'

func VulkanSafeString(s string) string {
	if len(s) == 0 {
		return end
	}
	if s[len(s)-1] != endChar {
		return s + end
	}
	return s
}

func VulkanSafeStrings(list []string) []string {
	out := make([]string, len(list))
	for i := range list {
		out[i] = VulkanSafeString(list[i])
	}
	return out
}

// vkName trims a fixed size, zero terminated name array reported by the driver.
func vkName(arr []byte) string {
	for i, b := range arr {
		if b == 0 {
			return string(arr[:i])
		}
	}
	return string(arr)
}

// sliceUint32 reinterprets SPIR-V bytes as the word slice the driver expects.
func sliceUint32(data []byte) []uint32 {
	if len(data) < 4 {
		return nil
	}
	return unsafe.Slice((*uint32)(unsafe.Pointer(&data[0])), len(data)/4)
}
