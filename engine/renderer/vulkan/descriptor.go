package vulkan

import (
	"fmt"

	vk "github.com/goki/vulkan"
	"github.com/spaghettifunk/tessera/engine/renderer/metadata"
)

// maxDescriptorSets bounds the per slot compute sets the pool can hand out.
const maxDescriptorSets = 8

// computeLayout is the descriptor and pipeline layout of instance.comp:
// three storage buffers (static, dynamic, merged) and one push constant block.
type computeLayout struct {
	setLayout      vk.DescriptorSetLayout
	pipelineLayout vk.PipelineLayout
	pool           vk.DescriptorPool
}

var computeBindings = []uint32{
	metadata.BindingStaticInstances,
	metadata.BindingDynamicInstances,
	metadata.BindingMergedInstances,
}

func (d *Device) createLayouts() error {
	dev := d.logical()

	bindings := make([]vk.DescriptorSetLayoutBinding, len(computeBindings))
	for i, b := range computeBindings {
		bindings[i] = vk.DescriptorSetLayoutBinding{
			Binding:         b,
			DescriptorType:  vk.DescriptorTypeStorageBuffer,
			DescriptorCount: 1,
			StageFlags:      vk.ShaderStageFlags(vk.ShaderStageComputeBit),
		}
	}
	if res := vk.CreateDescriptorSetLayout(dev, &vk.DescriptorSetLayoutCreateInfo{
		SType:        vk.StructureTypeDescriptorSetLayoutCreateInfo,
		BindingCount: uint32(len(bindings)),
		PBindings:    bindings,
	}, d.context.Allocator, &d.compute.setLayout); res != vk.Success {
		return resultError("vkCreateDescriptorSetLayout", res)
	}

	if res := vk.CreatePipelineLayout(dev, &vk.PipelineLayoutCreateInfo{
		SType:          vk.StructureTypePipelineLayoutCreateInfo,
		SetLayoutCount: 1,
		PSetLayouts:    []vk.DescriptorSetLayout{d.compute.setLayout},
		PushConstantRangeCount: 1,
		PPushConstantRanges: []vk.PushConstantRange{{
			StageFlags: vk.ShaderStageFlags(vk.ShaderStageComputeBit),
			Offset:     0,
			Size:       instancePushSize,
		}},
	}, d.context.Allocator, &d.compute.pipelineLayout); res != vk.Success {
		return resultError("vkCreatePipelineLayout", res)
	}

	if res := vk.CreateDescriptorPool(dev, &vk.DescriptorPoolCreateInfo{
		SType:         vk.StructureTypeDescriptorPoolCreateInfo,
		MaxSets:       maxDescriptorSets,
		PoolSizeCount: 1,
		PPoolSizes: []vk.DescriptorPoolSize{{
			Type:            vk.DescriptorTypeStorageBuffer,
			DescriptorCount: uint32(maxDescriptorSets * len(computeBindings)),
		}},
	}, d.context.Allocator, &d.compute.pool); res != vk.Success {
		return resultError("vkCreateDescriptorPool", res)
	}

	// The graphics pipeline reads everything from vertex bindings.
	if res := vk.CreatePipelineLayout(dev, &vk.PipelineLayoutCreateInfo{
		SType: vk.StructureTypePipelineLayoutCreateInfo,
	}, d.context.Allocator, &d.graphicsLayout); res != vk.Success {
		return resultError("vkCreatePipelineLayout", res)
	}
	return nil
}

func (d *Device) destroyLayouts() {
	dev := d.logical()
	if d.graphicsLayout != vk.NullPipelineLayout {
		vk.DestroyPipelineLayout(dev, d.graphicsLayout, d.context.Allocator)
		d.graphicsLayout = vk.NullPipelineLayout
	}
	if d.compute.pool != vk.NullDescriptorPool {
		// Frees every set allocated from it.
		vk.DestroyDescriptorPool(dev, d.compute.pool, d.context.Allocator)
		d.compute.pool = vk.NullDescriptorPool
	}
	if d.compute.pipelineLayout != vk.NullPipelineLayout {
		vk.DestroyPipelineLayout(dev, d.compute.pipelineLayout, d.context.Allocator)
		d.compute.pipelineLayout = vk.NullPipelineLayout
	}
	if d.compute.setLayout != vk.NullDescriptorSetLayout {
		vk.DestroyDescriptorSetLayout(dev, d.compute.setLayout, d.context.Allocator)
		d.compute.setLayout = vk.NullDescriptorSetLayout
	}
}

func (d *Device) AllocateComputeDescriptorSets(count int) ([]metadata.DescriptorSet, error) {
	out := make([]metadata.DescriptorSet, 0, count)
	err := d.locks.SafeCall(DescriptorManagement, func() error {
		for i := 0; i < count; i++ {
			var set vk.DescriptorSet
			if res := vk.AllocateDescriptorSets(d.logical(), &vk.DescriptorSetAllocateInfo{
				SType:              vk.StructureTypeDescriptorSetAllocateInfo,
				DescriptorPool:     d.compute.pool,
				DescriptorSetCount: 1,
				PSetLayouts:        []vk.DescriptorSetLayout{d.compute.setLayout},
			}, &set); res != vk.Success {
				return resultError("vkAllocateDescriptorSets", res)
			}
			out = append(out, metadata.DescriptorSet(d.descriptorSets.Acquire(set)))
		}
		return nil
	})
	return out, err
}

func (d *Device) UpdateComputeDescriptorSet(set metadata.DescriptorSet, bindings []metadata.DescriptorBinding) error {
	dst, ok := d.descriptorSets.Get(uint64(set))
	if !ok {
		return fmt.Errorf("unknown descriptor set %d", set)
	}
	writes := make([]vk.WriteDescriptorSet, 0, len(bindings))
	for _, b := range bindings {
		buffer, ok := d.buffers.Get(uint64(b.Buffer))
		if !ok {
			return fmt.Errorf("unknown buffer %d for binding %d", b.Buffer, b.Binding)
		}
		rng := vk.DeviceSize(b.Range)
		if b.Range == 0 {
			rng = vk.DeviceSize(vk.WholeSize)
		}
		writes = append(writes, vk.WriteDescriptorSet{
			SType:           vk.StructureTypeWriteDescriptorSet,
			DstSet:          dst,
			DstBinding:      b.Binding,
			DescriptorCount: 1,
			DescriptorType:  vk.DescriptorTypeStorageBuffer,
			PBufferInfo: []vk.DescriptorBufferInfo{{
				Buffer: buffer,
				Offset: vk.DeviceSize(b.Offset),
				Range:  rng,
			}},
		})
	}
	return d.locks.SafeCall(DescriptorManagement, func() error {
		vk.UpdateDescriptorSets(d.logical(), uint32(len(writes)), writes, 0, nil)
		return nil
	})
}
