package vulkan

import (
	"fmt"
	"unsafe"

	vk "github.com/goki/vulkan"
	"github.com/spaghettifunk/tessera/engine/core"
	"github.com/spaghettifunk/tessera/engine/renderer/metadata"
)

func (d *Device) CreateBuffer(size uint64, usage metadata.BufferUsageFlags) (metadata.Buffer, error) {
	info := vk.BufferCreateInfo{
		SType:       vk.StructureTypeBufferCreateInfo,
		Size:        vk.DeviceSize(size),
		Usage:       vk.BufferUsageFlags(usage),
		SharingMode: vk.SharingModeExclusive,
	}
	if len(d.sharedFamilies) > 1 {
		info.SharingMode = vk.SharingModeConcurrent
		info.QueueFamilyIndexCount = uint32(len(d.sharedFamilies))
		info.PQueueFamilyIndices = d.sharedFamilies
	}

	var buffer vk.Buffer
	if err := d.locks.SafeCall(BufferManagement, func() error {
		if res := vk.CreateBuffer(d.logical(), &info, d.context.Allocator, &buffer); res != vk.Success {
			return resultError("vkCreateBuffer", res)
		}
		return nil
	}); err != nil {
		return metadata.NullHandle, err
	}
	return metadata.Buffer(d.buffers.Acquire(buffer)), nil
}

func (d *Device) DestroyBuffer(buffer metadata.Buffer) {
	handle, err := d.buffers.Release(uint64(buffer))
	if err != nil {
		core.LogWarn("DestroyBuffer: %s", err)
		return
	}
	d.locks.SafeCall(BufferManagement, func() error {
		vk.DestroyBuffer(d.logical(), handle, d.context.Allocator)
		return nil
	})
}

func (d *Device) BufferMemoryRequirements(buffer metadata.Buffer) metadata.MemoryRequirements {
	handle, ok := d.buffers.Get(uint64(buffer))
	if !ok {
		return metadata.MemoryRequirements{}
	}
	var reqs vk.MemoryRequirements
	vk.GetBufferMemoryRequirements(d.logical(), handle, &reqs)
	reqs.Deref()
	return metadata.MemoryRequirements{
		Size:           uint64(reqs.Size),
		Alignment:      uint64(reqs.Alignment),
		MemoryTypeBits: reqs.MemoryTypeBits,
	}
}

func (d *Device) MemoryTypes() []metadata.MemoryType {
	props := d.context.Device.Memory
	out := make([]metadata.MemoryType, props.MemoryTypeCount)
	for i := range out {
		out[i] = metadata.MemoryType{
			PropertyFlags: metadata.MemoryPropertyFlags(props.MemoryTypes[i].PropertyFlags),
			HeapIndex:     props.MemoryTypes[i].HeapIndex,
		}
	}
	return out
}

func (d *Device) AllocateMemory(size uint64, typeIndex uint32) (metadata.DeviceMemory, error) {
	info := vk.MemoryAllocateInfo{
		SType:           vk.StructureTypeMemoryAllocateInfo,
		AllocationSize:  vk.DeviceSize(size),
		MemoryTypeIndex: typeIndex,
	}
	var memory vk.DeviceMemory
	if err := d.locks.SafeCall(MemoryManagement, func() error {
		if res := vk.AllocateMemory(d.logical(), &info, d.context.Allocator, &memory); res != vk.Success {
			return resultError("vkAllocateMemory", res)
		}
		return nil
	}); err != nil {
		return metadata.NullHandle, err
	}
	return metadata.DeviceMemory(d.memories.Acquire(memory)), nil
}

func (d *Device) FreeMemory(memory metadata.DeviceMemory) {
	handle, err := d.memories.Release(uint64(memory))
	if err != nil {
		core.LogWarn("FreeMemory: %s", err)
		return
	}
	d.locks.SafeCall(MemoryManagement, func() error {
		vk.FreeMemory(d.logical(), handle, d.context.Allocator)
		return nil
	})
}

func (d *Device) BindBufferMemory(buffer metadata.Buffer, memory metadata.DeviceMemory, offset uint64) error {
	b, ok := d.buffers.Get(uint64(buffer))
	if !ok {
		return fmt.Errorf("unknown buffer %d", buffer)
	}
	m, ok := d.memories.Get(uint64(memory))
	if !ok {
		return fmt.Errorf("unknown memory %d", memory)
	}
	if res := vk.BindBufferMemory(d.logical(), b, m, vk.DeviceSize(offset)); res != vk.Success {
		return resultError("vkBindBufferMemory", res)
	}
	return nil
}

func (d *Device) MapMemory(memory metadata.DeviceMemory, offset, size uint64) ([]byte, error) {
	m, ok := d.memories.Get(uint64(memory))
	if !ok {
		return nil, fmt.Errorf("unknown memory %d", memory)
	}
	var ptr unsafe.Pointer
	if res := vk.MapMemory(d.logical(), m, vk.DeviceSize(offset), vk.DeviceSize(size), 0, &ptr); res != vk.Success {
		return nil, resultError("vkMapMemory", res)
	}
	return unsafe.Slice((*byte)(ptr), size), nil
}

func (d *Device) UnmapMemory(memory metadata.DeviceMemory) {
	if m, ok := d.memories.Get(uint64(memory)); ok {
		vk.UnmapMemory(d.logical(), m)
	}
}
