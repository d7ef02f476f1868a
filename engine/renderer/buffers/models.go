package buffers

import (
	"fmt"

	"github.com/spaghettifunk/tessera/engine/containers"
	"github.com/spaghettifunk/tessera/engine/core"
	"github.com/spaghettifunk/tessera/engine/renderer/metadata"
)

// Mesh is one model as produced by a loader. Indices are local to the mesh.
type Mesh struct {
	Name     string
	Vertices []metadata.Vertex
	Indices  []uint32
}

/**
 * @brief Every model of the scene flattened into shared vertex and index
 * arrays, plus where each model lives inside them.
 */
type ModelSet struct {
	Vertices   []metadata.Vertex
	Indices    []uint32
	Properties []metadata.ModelProperties
	Names      []string
}

func NewModelSet(meshes []Mesh) *ModelSet {
	vertexChunks := make([][]metadata.Vertex, len(meshes))
	indexChunks := make([][]uint32, len(meshes))
	names := make([]string, len(meshes))
	for i, m := range meshes {
		vertexChunks[i] = m.Vertices
		indexChunks[i] = m.Indices
		names[i] = m.Name
	}
	vertices, vparts := containers.Flatten(vertexChunks)
	indices, iparts := containers.Flatten(indexChunks)

	props := make([]metadata.ModelProperties, len(meshes))
	for i := range meshes {
		props[i] = metadata.ModelProperties{
			VertexCount:  vparts[i].Size,
			IndexCount:   iparts[i].Size,
			VertexOffset: int32(vparts[i].Offset),
			IndexOffset:  iparts[i].Offset,
		}
	}
	return &ModelSet{
		Vertices:   vertices,
		Indices:    indices,
		Properties: props,
		Names:      names,
	}
}

func (m *ModelSet) Len() int {
	return len(m.Properties)
}

/**
 * @brief GroupByModel orders records by model index, keeping the relative
 * order inside each model, and returns the partition of every model.
 * The result always has modelCount partitions.
 */
func GroupByModel(records []metadata.InstanceRecord, modelCount int) ([]metadata.InstanceRecord, []containers.Partition[uint32], error) {
	buckets := make([][]metadata.InstanceRecord, modelCount)
	for i, r := range records {
		if int(r.ModelIndex) >= modelCount {
			return nil, nil, core.MisuseError("buffers.GroupByModel",
				fmt.Errorf("%w: record %d uses model %d of %d", core.ErrInvalidModelIndex, i, r.ModelIndex, modelCount))
		}
		buckets[r.ModelIndex] = append(buckets[r.ModelIndex], r)
	}
	grouped, parts := containers.Flatten(buckets)
	return grouped, parts, nil
}
