package metadata

import "github.com/spaghettifunk/tessera/engine/math"

type MemoryRequirements struct {
	Size      uint64
	Alignment uint64
	// Bit i is set when memory type i can back the buffer.
	MemoryTypeBits uint32
}

type MemoryType struct {
	PropertyFlags MemoryPropertyFlags
	HeapIndex     uint32
}

type Extent2D struct {
	Width  uint32
	Height uint32
}

func (e Extent2D) IsZero() bool {
	return e.Width == 0 || e.Height == 0
}

type SurfaceFormat struct {
	Format     Format
	ColorSpace ColorSpace
}

type SurfaceCapabilities struct {
	MinImageCount uint32
	// Zero means no upper bound.
	MaxImageCount  uint32
	CurrentExtent  Extent2D
	MinImageExtent Extent2D
	MaxImageExtent Extent2D
}

// SurfaceSupport is what the surface reports at the time of the query.
type SurfaceSupport struct {
	Capabilities SurfaceCapabilities
	Formats      []SurfaceFormat
	PresentModes []PresentMode
}

type SwapchainCreateInfo struct {
	Format      SurfaceFormat
	Extent      Extent2D
	PresentMode PresentMode
	ImageCount  uint32
	// Still alive previous swapchain, handed to the driver for reuse.
	OldSwapchain Swapchain
}

type CopyRegion struct {
	Src       Buffer
	Dst       Buffer
	SrcOffset uint64
	DstOffset uint64
	Size      uint64
}

// InstanceSource names the compute pass input a dispatch reads from.
type InstanceSource uint32

const (
	SourceStatic InstanceSource = iota
	SourceDynamic
)

// ComputeDispatch transforms Count records starting at SrcOffset of Source
// into the merged buffer starting at DstOffset. Offsets count records.
type ComputeDispatch struct {
	Source    InstanceSource
	SrcOffset uint32
	DstOffset uint32
	Count     uint32
}

// ComputeWorkgroupSize is the local size of the instance compute shader.
const ComputeWorkgroupSize uint32 = 64

// GroupCount is the number of workgroups needed to cover the dispatch.
func (d ComputeDispatch) GroupCount() uint32 {
	return d.Count/ComputeWorkgroupSize + 1
}

type ComputePass struct {
	Pipeline       Pipeline
	DescriptorSet  DescriptorSet
	ProjectionView math.Mat4
	Dispatches     []ComputeDispatch
}

type DrawIndexed struct {
	IndexCount    uint32
	InstanceCount uint32
	FirstIndex    uint32
	VertexOffset  int32
	FirstInstance uint32
}

type DrawPass struct {
	RenderPass     RenderPass
	Framebuffer    Framebuffer
	Extent         Extent2D
	Pipeline       Pipeline
	ClearColor     [4]float32
	VertexBuffer   Buffer
	InstanceBuffer Buffer
	IndexBuffer    Buffer
	Draws          []DrawIndexed
}

type SemaphoreWait struct {
	Semaphore Semaphore
	Stage     PipelineStageFlags
}

type SubmitInfo struct {
	CommandBuffers []CommandBuffer
	Waits          []SemaphoreWait
	Signals        []Semaphore
	// Optional; signaled when every command buffer completed.
	Fence Fence
}

// DescriptorBinding points a storage buffer binding at a buffer range.
// A zero Range means the whole buffer.
type DescriptorBinding struct {
	Binding uint32
	Buffer  Buffer
	Offset  uint64
	Range   uint64
}

// Compute descriptor set layout shared by bindings and shaders.
const (
	BindingStaticInstances  uint32 = 0
	BindingDynamicInstances uint32 = 1
	BindingMergedInstances  uint32 = 2
)

type MemoryDevice interface {
	CreateBuffer(size uint64, usage BufferUsageFlags) (Buffer, error)
	DestroyBuffer(buffer Buffer)
	BufferMemoryRequirements(buffer Buffer) MemoryRequirements
	MemoryTypes() []MemoryType
	AllocateMemory(size uint64, typeIndex uint32) (DeviceMemory, error)
	FreeMemory(memory DeviceMemory)
	BindBufferMemory(buffer Buffer, memory DeviceMemory, offset uint64) error
	// MapMemory returns a host view of [offset, offset+size) valid until UnmapMemory.
	MapMemory(memory DeviceMemory, offset, size uint64) ([]byte, error)
	UnmapMemory(memory DeviceMemory)
}

type SyncDevice interface {
	CreateFence(signaled bool) (Fence, error)
	DestroyFence(fence Fence)
	WaitForFence(fence Fence, timeout uint64) Result
	FenceStatus(fence Fence) Result
	ResetFence(fence Fence) error
	CreateSemaphore() (Semaphore, error)
	DestroySemaphore(semaphore Semaphore)
	WaitIdle() error
}

type CommandDevice interface {
	AllocateCommandBuffers(queue QueueKind, count int) ([]CommandBuffer, error)
	FreeCommandBuffers(queue QueueKind, buffers []CommandBuffer)
	// Record* reset the command buffer and record it from scratch.
	RecordCopy(cb CommandBuffer, regions []CopyRegion) error
	RecordCompute(cb CommandBuffer, pass *ComputePass) error
	RecordDraw(cb CommandBuffer, pass *DrawPass) error
	Submit(queue QueueKind, info *SubmitInfo) Result
}

type PresentDevice interface {
	SurfaceSupport() (SurfaceSupport, error)
	CreateSwapchain(info *SwapchainCreateInfo) (Swapchain, []ImageView, error)
	DestroySwapchain(swapchain Swapchain, views []ImageView)
	AcquireNextImage(swapchain Swapchain, timeout uint64, signal Semaphore) (uint32, Result)
	Present(swapchain Swapchain, imageIndex uint32, wait Semaphore) Result
}

type PipelineDevice interface {
	CreateRenderPass(format Format) (RenderPass, error)
	DestroyRenderPass(pass RenderPass)
	CreateFramebuffer(pass RenderPass, view ImageView, extent Extent2D) (Framebuffer, error)
	DestroyFramebuffer(framebuffer Framebuffer)
	CreateGraphicsPipeline(pass RenderPass, extent Extent2D) (Pipeline, error)
	CreateComputePipeline() (Pipeline, error)
	DestroyPipeline(pipeline Pipeline)
	AllocateComputeDescriptorSets(count int) ([]DescriptorSet, error)
	UpdateComputeDescriptorSet(set DescriptorSet, bindings []DescriptorBinding) error
}

// Device is the explicit graphics API contract the renderer core is written against.
type Device interface {
	MemoryDevice
	SyncDevice
	CommandDevice
	PresentDevice
	PipelineDevice
	Close()
}
