package metadata

import (
	"encoding/binary"
	gomath "math"

	"github.com/spaghettifunk/tessera/engine/math"
)

const (
	// VertexStride is the size of an encoded Vertex.
	VertexStride uint64 = 24
	// IndexSize is the size of an encoded index (uint32).
	IndexSize uint64 = 4
	// InstanceRecordStride is the std430 stride of an InstanceRecord:
	// a 64 byte matrix, the model index and 12 bytes of padding.
	InstanceRecordStride uint64 = 80
	// MergedInstanceStride is the size of one transformed matrix in the merged tier.
	MergedInstanceStride uint64 = 64
)

/** @brief A coloured vertex as read by the graphics pipeline. */
type Vertex struct {
	Position math.Vec3
	Color    math.Vec3
}

/**
 * @brief One drawable object: where it is and which model it draws.
 */
type InstanceRecord struct {
	Transform  math.Mat4
	ModelIndex uint32
}

/**
 * @brief Where a model lives inside the shared vertex and index buffers.
 */
type ModelProperties struct {
	VertexCount  uint32
	IndexCount   uint32
	VertexOffset int32
	IndexOffset  uint32
}

// RenderPacket is produced once per tick by the game.
type RenderPacket struct {
	ProjectionView math.Mat4
	Instances      []InstanceRecord
	DeltaTime      float64
}

func appendFloat32(b []byte, f float32) []byte {
	return binary.LittleEndian.AppendUint32(b, gomath.Float32bits(f))
}

func (v Vertex) AppendBytes(b []byte) []byte {
	b = appendFloat32(b, v.Position.X)
	b = appendFloat32(b, v.Position.Y)
	b = appendFloat32(b, v.Position.Z)
	b = appendFloat32(b, v.Color.X)
	b = appendFloat32(b, v.Color.Y)
	return appendFloat32(b, v.Color.Z)
}

func (r InstanceRecord) AppendBytes(b []byte) []byte {
	for _, f := range r.Transform.Data {
		b = appendFloat32(b, f)
	}
	b = binary.LittleEndian.AppendUint32(b, r.ModelIndex)
	// std430 padding up to the 16 byte boundary
	return append(b, make([]byte, 12)...)
}

func EncodeVertices(vertices []Vertex) []byte {
	b := make([]byte, 0, uint64(len(vertices))*VertexStride)
	for _, v := range vertices {
		b = v.AppendBytes(b)
	}
	return b
}

func EncodeIndices(indices []uint32) []byte {
	b := make([]byte, 0, uint64(len(indices))*IndexSize)
	for _, i := range indices {
		b = binary.LittleEndian.AppendUint32(b, i)
	}
	return b
}

func EncodeInstances(records []InstanceRecord) []byte {
	b := make([]byte, 0, uint64(len(records))*InstanceRecordStride)
	for _, r := range records {
		b = r.AppendBytes(b)
	}
	return b
}
