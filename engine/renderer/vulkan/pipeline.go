package vulkan

import (
	"fmt"

	vk "github.com/goki/vulkan"
	"github.com/spaghettifunk/tessera/engine/core"
	"github.com/spaghettifunk/tessera/engine/renderer/metadata"
)

// vertexAttributes describes binding 0 (per vertex position and color) and
// binding 1 (the merged MVP matrix, one vec4 column per location).
func vertexAttributes() ([]vk.VertexInputBindingDescription, []vk.VertexInputAttributeDescription) {
	bindings := []vk.VertexInputBindingDescription{
		{
			Binding:   0,
			Stride:    uint32(metadata.VertexStride),
			InputRate: vk.VertexInputRateVertex,
		},
		{
			Binding:   1,
			Stride:    uint32(metadata.MergedInstanceStride),
			InputRate: vk.VertexInputRateInstance,
		},
	}
	attributes := []vk.VertexInputAttributeDescription{
		{Location: 0, Binding: 0, Format: vk.FormatR32g32b32Sfloat, Offset: 0},
		{Location: 1, Binding: 0, Format: vk.FormatR32g32b32Sfloat, Offset: 12},
	}
	for column := uint32(0); column < 4; column++ {
		attributes = append(attributes, vk.VertexInputAttributeDescription{
			Location: 2 + column,
			Binding:  1,
			Format:   vk.FormatR32g32b32a32Sfloat,
			Offset:   column * 16,
		})
	}
	return bindings, attributes
}

// CreateGraphicsPipeline bakes the viewport and scissor of extent into the pipeline.
func (d *Device) CreateGraphicsPipeline(pass metadata.RenderPass, extent metadata.Extent2D) (metadata.Pipeline, error) {
	renderPass, ok := d.renderPasses.Get(uint64(pass))
	if !ok {
		return metadata.NullHandle, fmt.Errorf("unknown render pass %d", pass)
	}

	vert, err := d.newShaderStage(VertexShaderFile, vk.ShaderStageVertexBit)
	if err != nil {
		return metadata.NullHandle, err
	}
	defer vert.Destroy(d)
	frag, err := d.newShaderStage(FragmentShaderFile, vk.ShaderStageFragmentBit)
	if err != nil {
		return metadata.NullHandle, err
	}
	defer frag.Destroy(d)

	viewportState := vk.PipelineViewportStateCreateInfo{
		SType:         vk.StructureTypePipelineViewportStateCreateInfo,
		ViewportCount: 1,
		PViewports: []vk.Viewport{{
			X:        0,
			Y:        0,
			Width:    float32(extent.Width),
			Height:   float32(extent.Height),
			MinDepth: 0.0,
			MaxDepth: 1.0,
		}},
		ScissorCount: 1,
		PScissors: []vk.Rect2D{{
			Offset: vk.Offset2D{X: 0, Y: 0},
			Extent: vk.Extent2D{Width: extent.Width, Height: extent.Height},
		}},
	}

	rasterizerCreateInfo := vk.PipelineRasterizationStateCreateInfo{
		SType:                   vk.StructureTypePipelineRasterizationStateCreateInfo,
		DepthClampEnable:        vk.False,
		RasterizerDiscardEnable: vk.False,
		PolygonMode:             vk.PolygonModeFill,
		LineWidth:               1.0,
		CullMode:                vk.CullModeFlags(vk.CullModeNone),
		FrontFace:               vk.FrontFaceCounterClockwise,
		DepthBiasEnable:         vk.False,
	}

	multisamplingCreateInfo := vk.PipelineMultisampleStateCreateInfo{
		SType:                vk.StructureTypePipelineMultisampleStateCreateInfo,
		SampleShadingEnable:  vk.False,
		RasterizationSamples: vk.SampleCount1Bit,
		MinSampleShading:     1.0,
	}

	colorBlendAttachmentState := vk.PipelineColorBlendAttachmentState{
		BlendEnable:         vk.True,
		SrcColorBlendFactor: vk.BlendFactorSrcAlpha,
		DstColorBlendFactor: vk.BlendFactorOneMinusSrcAlpha,
		ColorBlendOp:        vk.BlendOpAdd,
		SrcAlphaBlendFactor: vk.BlendFactorSrcAlpha,
		DstAlphaBlendFactor: vk.BlendFactorOneMinusSrcAlpha,
		AlphaBlendOp:        vk.BlendOpAdd,
		ColorWriteMask: vk.ColorComponentFlags(vk.ColorComponentRBit) | vk.ColorComponentFlags(vk.ColorComponentGBit) |
			vk.ColorComponentFlags(vk.ColorComponentBBit) | vk.ColorComponentFlags(vk.ColorComponentABit),
	}

	colorBlendStateCreateInfo := vk.PipelineColorBlendStateCreateInfo{
		SType:           vk.StructureTypePipelineColorBlendStateCreateInfo,
		LogicOpEnable:   vk.False,
		LogicOp:         vk.LogicOpCopy,
		AttachmentCount: 1,
		PAttachments:    []vk.PipelineColorBlendAttachmentState{colorBlendAttachmentState},
	}

	bindings, attributes := vertexAttributes()
	vertexInputInfo := vk.PipelineVertexInputStateCreateInfo{
		SType:                           vk.StructureTypePipelineVertexInputStateCreateInfo,
		VertexBindingDescriptionCount:   uint32(len(bindings)),
		PVertexBindingDescriptions:      bindings,
		VertexAttributeDescriptionCount: uint32(len(attributes)),
		PVertexAttributeDescriptions:    attributes,
	}

	inputAssembly := vk.PipelineInputAssemblyStateCreateInfo{
		SType:                  vk.StructureTypePipelineInputAssemblyStateCreateInfo,
		Topology:               vk.PrimitiveTopologyTriangleList,
		PrimitiveRestartEnable: vk.False,
	}

	pipelineCreateInfo := vk.GraphicsPipelineCreateInfo{
		SType:               vk.StructureTypeGraphicsPipelineCreateInfo,
		StageCount:          2,
		PStages:             []vk.PipelineShaderStageCreateInfo{vert.ShaderStageCreateInfo, frag.ShaderStageCreateInfo},
		PVertexInputState:   &vertexInputInfo,
		PInputAssemblyState: &inputAssembly,
		PViewportState:      &viewportState,
		PRasterizationState: &rasterizerCreateInfo,
		PMultisampleState:   &multisamplingCreateInfo,
		PColorBlendState:    &colorBlendStateCreateInfo,
		Layout:              d.graphicsLayout,
		RenderPass:          renderPass,
		Subpass:             0,
		BasePipelineHandle:  vk.NullPipeline,
		BasePipelineIndex:   -1,
	}

	pipelines := make([]vk.Pipeline, 1)
	if err := d.locks.SafeCall(PipelineManagement, func() error {
		if res := vk.CreateGraphicsPipelines(d.logical(), vk.NullPipelineCache, 1,
			[]vk.GraphicsPipelineCreateInfo{pipelineCreateInfo}, d.context.Allocator, pipelines); res != vk.Success {
			return resultError("vkCreateGraphicsPipelines", res)
		}
		return nil
	}); err != nil {
		return metadata.NullHandle, err
	}

	core.LogDebug("Graphics pipeline created for %dx%d.", extent.Width, extent.Height)
	return metadata.Pipeline(d.pipelines.Acquire(pipeline{
		handle:    pipelines[0],
		layout:    d.graphicsLayout,
		bindPoint: vk.PipelineBindPointGraphics,
	})), nil
}

func (d *Device) CreateComputePipeline() (metadata.Pipeline, error) {
	comp, err := d.newShaderStage(ComputeShaderFile, vk.ShaderStageComputeBit)
	if err != nil {
		return metadata.NullHandle, err
	}
	defer comp.Destroy(d)

	cfg := vk.ComputePipelineCreateInfo{
		SType:  vk.StructureTypeComputePipelineCreateInfo,
		Layout: d.compute.pipelineLayout,
		Stage:  comp.ShaderStageCreateInfo,
	}
	pipelines := make([]vk.Pipeline, 1)
	if err := d.locks.SafeCall(PipelineManagement, func() error {
		if res := vk.CreateComputePipelines(d.logical(), vk.NullPipelineCache, 1,
			[]vk.ComputePipelineCreateInfo{cfg}, d.context.Allocator, pipelines); res != vk.Success {
			return resultError("vkCreateComputePipelines", res)
		}
		return nil
	}); err != nil {
		return metadata.NullHandle, err
	}

	core.LogDebug("Compute pipeline created!")
	return metadata.Pipeline(d.pipelines.Acquire(pipeline{
		handle:    pipelines[0],
		layout:    d.compute.pipelineLayout,
		bindPoint: vk.PipelineBindPointCompute,
	})), nil
}

// DestroyPipeline leaves the layouts alone; the device owns them.
func (d *Device) DestroyPipeline(handle metadata.Pipeline) {
	p, err := d.pipelines.Release(uint64(handle))
	if err != nil {
		core.LogWarn("DestroyPipeline: %s", err)
		return
	}
	d.locks.SafeCall(PipelineManagement, func() error {
		vk.DestroyPipeline(d.logical(), p.handle, d.context.Allocator)
		return nil
	})
}
