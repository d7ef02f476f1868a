package metadata

// Bit values match the Vulkan enumerations so bindings can convert with a cast.

type MemoryPropertyFlags uint32

const (
	MemoryPropertyDeviceLocal  MemoryPropertyFlags = 0x00000001
	MemoryPropertyHostVisible  MemoryPropertyFlags = 0x00000002
	MemoryPropertyHostCoherent MemoryPropertyFlags = 0x00000004
	MemoryPropertyHostCached   MemoryPropertyFlags = 0x00000008
)

// Has reports whether every bit of want is set.
func (f MemoryPropertyFlags) Has(want MemoryPropertyFlags) bool {
	return f&want == want
}

type BufferUsageFlags uint32

const (
	BufferUsageTransferSrc   BufferUsageFlags = 0x00000001
	BufferUsageTransferDst   BufferUsageFlags = 0x00000002
	BufferUsageUniformBuffer BufferUsageFlags = 0x00000010
	BufferUsageStorageBuffer BufferUsageFlags = 0x00000020
	BufferUsageIndexBuffer   BufferUsageFlags = 0x00000040
	BufferUsageVertexBuffer  BufferUsageFlags = 0x00000080
)

type PipelineStageFlags uint32

const (
	PipelineStageTopOfPipe             PipelineStageFlags = 0x00000001
	PipelineStageVertexInput           PipelineStageFlags = 0x00000004
	PipelineStageColorAttachmentOutput PipelineStageFlags = 0x00000400
	PipelineStageComputeShader         PipelineStageFlags = 0x00000800
	PipelineStageTransfer              PipelineStageFlags = 0x00001000
	PipelineStageBottomOfPipe          PipelineStageFlags = 0x00002000
)

type Result int32

const (
	Success                Result = 0
	NotReady               Result = 1
	Timeout                Result = 2
	ErrorOutOfHostMemory   Result = -1
	ErrorOutOfDeviceMemory Result = -2
	ErrorDeviceLost        Result = -4
	ErrorUnknown           Result = -13
	ErrorSurfaceLost       Result = -1000000000
	Suboptimal             Result = 1000001003
	ErrorOutOfDate         Result = -1000001004
)

func (r Result) String() string {
	switch r {
	case Success:
		return "success"
	case NotReady:
		return "not ready"
	case Timeout:
		return "timeout"
	case ErrorOutOfHostMemory:
		return "out of host memory"
	case ErrorOutOfDeviceMemory:
		return "out of device memory"
	case ErrorDeviceLost:
		return "device lost"
	case ErrorSurfaceLost:
		return "surface lost"
	case Suboptimal:
		return "suboptimal"
	case ErrorOutOfDate:
		return "out of date"
	}
	return "unknown error"
}

type Format uint32

const (
	FormatUndefined     Format = 0
	FormatR8G8B8A8Unorm Format = 37
	FormatR8G8B8A8Srgb  Format = 43
	FormatB8G8R8A8Unorm Format = 44
	FormatB8G8R8A8Srgb  Format = 50
)

type ColorSpace uint32

const ColorSpaceSrgbNonlinear ColorSpace = 0

type PresentMode uint32

const (
	PresentModeImmediate   PresentMode = 0
	PresentModeMailbox     PresentMode = 1
	PresentModeFifo        PresentMode = 2
	PresentModeFifoRelaxed PresentMode = 3
)

func (p PresentMode) String() string {
	switch p {
	case PresentModeImmediate:
		return "immediate"
	case PresentModeMailbox:
		return "mailbox"
	case PresentModeFifo:
		return "fifo"
	case PresentModeFifoRelaxed:
		return "fifo-relaxed"
	}
	return "unknown"
}
