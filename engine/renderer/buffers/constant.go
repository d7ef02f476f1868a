package buffers

import (
	"errors"
	"fmt"
	gomath "math"

	"github.com/spaghettifunk/tessera/engine/containers"
	"github.com/spaghettifunk/tessera/engine/core"
	"github.com/spaghettifunk/tessera/engine/renderer/memory"
	"github.com/spaghettifunk/tessera/engine/renderer/metadata"
)

// UploadDevice is what a staging upload needs from the device.
type UploadDevice interface {
	metadata.MemoryDevice
	metadata.SyncDevice
	metadata.CommandDevice
}

const (
	constantVertices = iota
	constantIndices
	constantInstances
)

/**
 * @brief Static scene data living in device local memory: vertices,
 * indices and static instances. Never written after creation.
 */
type Constant struct {
	alloc *memory.Allocation

	Models []metadata.ModelProperties
	// Partition of each model inside the static instance buffer.
	StaticPartitions []containers.Partition[uint32]
	StaticCount      uint32
}

/**
 * @brief Uploads the models and the static instances through host visible
 * staging buffers and a one-shot transfer. The staging side is released as
 * soon as the transfer fence signals.
 */
func NewConstant(dev UploadDevice, models *ModelSet, static []metadata.InstanceRecord) (*Constant, error) {
	if models == nil || models.Len() == 0 || len(models.Vertices) == 0 || len(models.Indices) == 0 {
		return nil, core.MisuseError("buffers.NewConstant", errors.New("no model data to upload"))
	}
	grouped, parts, err := GroupByModel(static, models.Len())
	if err != nil {
		return nil, err
	}

	payloads := [][]byte{
		constantVertices:  metadata.EncodeVertices(models.Vertices),
		constantIndices:   metadata.EncodeIndices(models.Indices),
		constantInstances: metadata.EncodeInstances(grouped),
	}
	if len(grouped) == 0 {
		// storage buffers cannot be empty
		payloads[constantInstances] = metadata.EncodeInstances([]metadata.InstanceRecord{{}})
	}

	staging, err := memory.CreateAndAllocate(dev, []memory.BufferSpec{
		{Size: uint64(len(payloads[constantVertices])), Usage: metadata.BufferUsageTransferSrc},
		{Size: uint64(len(payloads[constantIndices])), Usage: metadata.BufferUsageTransferSrc},
		{Size: uint64(len(payloads[constantInstances])), Usage: metadata.BufferUsageTransferSrc},
	}, metadata.MemoryPropertyHostVisible|metadata.MemoryPropertyHostCoherent)
	if err != nil {
		return nil, fmt.Errorf("constant staging: %w", err)
	}
	defer staging.Destroy(dev)

	for i, p := range payloads {
		if err := staging.Write(dev, i, 0, p); err != nil {
			return nil, err
		}
	}

	local, err := memory.CreateAndAllocate(dev, []memory.BufferSpec{
		{Size: uint64(len(payloads[constantVertices])), Usage: metadata.BufferUsageVertexBuffer | metadata.BufferUsageTransferDst},
		{Size: uint64(len(payloads[constantIndices])), Usage: metadata.BufferUsageIndexBuffer | metadata.BufferUsageTransferDst},
		{Size: uint64(len(payloads[constantInstances])), Usage: metadata.BufferUsageStorageBuffer | metadata.BufferUsageTransferDst},
	}, metadata.MemoryPropertyDeviceLocal)
	if err != nil {
		return nil, fmt.Errorf("constant buffers: %w", err)
	}

	regions := make([]metadata.CopyRegion, len(payloads))
	for i, p := range payloads {
		regions[i] = metadata.CopyRegion{
			Src:  staging.Buffer(i),
			Dst:  local.Buffer(i),
			Size: uint64(len(p)),
		}
	}
	if err := Upload(dev, regions); err != nil {
		local.Destroy(dev)
		return nil, err
	}

	core.LogInfo("constant tier uploaded: %d models, %d vertices, %d indices, %d static instances",
		models.Len(), len(models.Vertices), len(models.Indices), len(grouped))

	return &Constant{
		alloc:            local,
		Models:           models.Properties,
		StaticPartitions: parts,
		StaticCount:      uint32(len(grouped)),
	}, nil
}

// Upload records the copies into a one-shot transfer command buffer, submits
// it and blocks on a dedicated fence until the copy completed.
func Upload(dev UploadDevice, regions []metadata.CopyRegion) error {
	cbs, err := dev.AllocateCommandBuffers(metadata.QueueTransfer, 1)
	if err != nil {
		return core.ConfigurationError("buffers.Upload", err)
	}
	defer dev.FreeCommandBuffers(metadata.QueueTransfer, cbs)

	fence, err := dev.CreateFence(false)
	if err != nil {
		return core.ConfigurationError("buffers.Upload", err)
	}
	defer dev.DestroyFence(fence)

	if err := dev.RecordCopy(cbs[0], regions); err != nil {
		return core.ConfigurationError("buffers.Upload", err)
	}
	if res := dev.Submit(metadata.QueueTransfer, &metadata.SubmitInfo{
		CommandBuffers: cbs,
		Fence:          fence,
	}); res != metadata.Success {
		return submitError("buffers.Upload", res)
	}
	switch res := dev.WaitForFence(fence, gomath.MaxUint64); res {
	case metadata.Success:
		return nil
	case metadata.ErrorDeviceLost:
		return core.DeviceLostError("buffers.Upload", core.ErrDeviceLost)
	default:
		return core.DeviceLostError("buffers.Upload", fmt.Errorf("%w: %s", core.ErrFenceTimeout, res))
	}
}

func submitError(op string, res metadata.Result) error {
	if res == metadata.ErrorDeviceLost {
		return core.DeviceLostError(op, core.ErrDeviceLost)
	}
	return core.ConfigurationError(op, fmt.Errorf("%w: %s", core.ErrSubmitFailed, res))
}

func (c *Constant) Vertices() metadata.Buffer {
	return c.alloc.Buffer(constantVertices)
}

func (c *Constant) Indices() metadata.Buffer {
	return c.alloc.Buffer(constantIndices)
}

func (c *Constant) Instances() metadata.Buffer {
	return c.alloc.Buffer(constantInstances)
}

func (c *Constant) Destroy(dev metadata.MemoryDevice) {
	c.alloc.Destroy(dev)
}
