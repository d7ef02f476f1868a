package vulkan

import (
	"fmt"

	vk "github.com/goki/vulkan"
	"github.com/spaghettifunk/tessera/engine/core"
)

// Compiled shader file names as produced by the shader build target.
const (
	VertexShaderFile   = "shader.vert.spv"
	FragmentShaderFile = "shader.frag.spv"
	ComputeShaderFile  = "instance.comp.spv"
)

/**
 * @brief Represents a single shader stage.
 */
type VulkanShaderStage struct {
	/** @brief The internal shader module Handle. */
	Handle vk.ShaderModule
	/** @brief The pipeline shader stage creation info. */
	ShaderStageCreateInfo vk.PipelineShaderStageCreateInfo
}

func (d *Device) newShaderStage(fileName string, stage vk.ShaderStageFlagBits) (*VulkanShaderStage, error) {
	if d.shaders == nil {
		return nil, core.ConfigurationError("vulkan.newShaderStage", fmt.Errorf("no shader source configured"))
	}
	code, err := d.shaders.Shader(fileName)
	if err != nil {
		return nil, core.ConfigurationError("vulkan.newShaderStage", fmt.Errorf("unable to read shader module %s: %w", fileName, err))
	}
	if len(code) == 0 || len(code)%4 != 0 {
		return nil, core.ConfigurationError("vulkan.newShaderStage", fmt.Errorf("shader module %s is not valid SPIR-V (%d bytes)", fileName, len(code)))
	}

	createInfo := vk.ShaderModuleCreateInfo{
		SType:    vk.StructureTypeShaderModuleCreateInfo,
		CodeSize: uint64(len(code)),
		PCode:    sliceUint32(code),
	}
	out := &VulkanShaderStage{}
	if res := vk.CreateShaderModule(d.logical(), &createInfo, d.context.Allocator, &out.Handle); res != vk.Success {
		return nil, resultError("vkCreateShaderModule", res)
	}

	out.ShaderStageCreateInfo = vk.PipelineShaderStageCreateInfo{
		SType:  vk.StructureTypePipelineShaderStageCreateInfo,
		Stage:  stage,
		Module: out.Handle,
		PName:  VulkanSafeString("main"),
	}
	return out, nil
}

// Destroy releases the module; pipelines built from it stay valid.
func (s *VulkanShaderStage) Destroy(d *Device) {
	if s == nil || s.Handle == vk.NullShaderModule {
		return
	}
	vk.DestroyShaderModule(d.logical(), s.Handle, d.context.Allocator)
	s.Handle = vk.NullShaderModule
}
