package metadata

// Opaque handles issued by a Device. The zero value of every handle is the
// null handle.
type (
	Buffer        uint64
	DeviceMemory  uint64
	Fence         uint64
	Semaphore     uint64
	CommandBuffer uint64
	Swapchain     uint64
	ImageView     uint64
	RenderPass    uint64
	Framebuffer   uint64
	Pipeline      uint64
	DescriptorSet uint64
)

const NullHandle = 0

// QueueKind selects one of the device queues.
type QueueKind uint8

const (
	QueueGraphics QueueKind = iota
	QueueCompute
	QueueTransfer
)

func (q QueueKind) String() string {
	switch q {
	case QueueGraphics:
		return "graphics"
	case QueueCompute:
		return "compute"
	case QueueTransfer:
		return "transfer"
	}
	return "unknown"
}
