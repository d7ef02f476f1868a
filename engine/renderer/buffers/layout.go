package buffers

import (
	"github.com/spaghettifunk/tessera/engine/containers"
	"github.com/spaghettifunk/tessera/engine/renderer/metadata"
)

// ModelRange is the slice of the merged buffer drawn for one model: its
// static instances first, then its dynamic ones.
type ModelRange struct {
	Model   uint32
	Offset  uint32
	Static  uint32
	Dynamic uint32
}

func (r ModelRange) Count() uint32 {
	return r.Static + r.Dynamic
}

type MergeLayout struct {
	Ranges     []ModelRange
	Dispatches []metadata.ComputeDispatch
	// Total number of records written to the merged buffer.
	Total uint32
}

func partitionAt(parts []containers.Partition[uint32], i int) containers.Partition[uint32] {
	if i < len(parts) {
		return parts[i]
	}
	return containers.Partition[uint32]{}
}

/**
 * @brief Computes where every model's instances land in the merged buffer
 * and the compute dispatches that put them there.
 *
 * @param static Partition of each model inside the constant instance buffer.
 * @param dynamic Partition of each model inside this frame's dynamic buffer.
 */
func NewMergeLayout(modelCount int, static, dynamic []containers.Partition[uint32]) MergeLayout {
	l := MergeLayout{
		Ranges: make([]ModelRange, 0, modelCount),
	}
	offset := uint32(0)
	for m := 0; m < modelCount; m++ {
		sp, dp := partitionAt(static, m), partitionAt(dynamic, m)
		r := ModelRange{Model: uint32(m), Offset: offset, Static: sp.Size, Dynamic: dp.Size}
		if sp.Size > 0 {
			l.Dispatches = append(l.Dispatches, metadata.ComputeDispatch{
				Source:    metadata.SourceStatic,
				SrcOffset: sp.Offset,
				DstOffset: offset,
				Count:     sp.Size,
			})
		}
		if dp.Size > 0 {
			l.Dispatches = append(l.Dispatches, metadata.ComputeDispatch{
				Source:    metadata.SourceDynamic,
				SrcOffset: dp.Offset,
				DstOffset: offset + sp.Size,
				Count:     dp.Size,
			})
		}
		l.Ranges = append(l.Ranges, r)
		offset += r.Count()
	}
	l.Total = offset
	return l
}

// Draws returns one indexed draw per model that has instances.
func (l MergeLayout) Draws(models []metadata.ModelProperties) []metadata.DrawIndexed {
	draws := make([]metadata.DrawIndexed, 0, len(l.Ranges))
	for _, r := range l.Ranges {
		if r.Count() == 0 || int(r.Model) >= len(models) {
			continue
		}
		m := models[r.Model]
		draws = append(draws, metadata.DrawIndexed{
			IndexCount:    m.IndexCount,
			InstanceCount: r.Count(),
			FirstIndex:    m.IndexOffset,
			VertexOffset:  m.VertexOffset,
			FirstInstance: r.Offset,
		})
	}
	return draws
}
