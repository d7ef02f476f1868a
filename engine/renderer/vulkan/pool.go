package vulkan

import (
	"fmt"
	"sync"
)

// LockGroup names a family of externally synchronized Vulkan objects.
type LockGroup string

const (
	CommandBufferManagement   LockGroup = "command_buffer_management"
	RenderpassManagement      LockGroup = "renderpass_management"
	BufferManagement          LockGroup = "buffer_management"
	DescriptorManagement      LockGroup = "descriptor_management"
	PipelineManagement        LockGroup = "pipeline_management"
	MemoryManagement          LockGroup = "memory_management"
	SynchronizationManagement LockGroup = "synchronization_management"
	SwapchainManagement       LockGroup = "swapchain_management"
)

func queueGroup(family uint32) LockGroup {
	return LockGroup(fmt.Sprintf("queue_family_%d", family))
}

// VulkanLockPool hands out one mutex per group. Command pools, descriptor
// pools and queues must never be used from two threads at once.
type VulkanLockPool struct {
	mu    sync.Mutex
	locks map[LockGroup]*sync.Mutex
}

func NewVulkanLockPool() *VulkanLockPool {
	return &VulkanLockPool{locks: map[LockGroup]*sync.Mutex{}}
}

func (vs *VulkanLockPool) lock(group LockGroup) *sync.Mutex {
	vs.mu.Lock()
	defer vs.mu.Unlock()
	l, ok := vs.locks[group]
	if !ok {
		l = new(sync.Mutex)
		vs.locks[group] = l
	}
	return l
}

func (vs *VulkanLockPool) SafeCall(group LockGroup, fn func() error) error {
	l := vs.lock(group)
	l.Lock()
	defer l.Unlock()
	return fn()
}

// SetQueueFamily registers the lock of a queue family up front.
func (vs *VulkanLockPool) SetQueueFamily(index uint32) {
	vs.lock(queueGroup(index))
}

// SafeQueueCall serializes fn with every other call on the same queue family.
func (vs *VulkanLockPool) SafeQueueCall(queueFamilyIndex uint32, fn func() error) error {
	return vs.SafeCall(queueGroup(queueFamilyIndex), fn)
}
