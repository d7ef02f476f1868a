package buffers

import (
	"testing"

	"github.com/spaghettifunk/tessera/engine/containers"
	"github.com/spaghettifunk/tessera/engine/core"
	"github.com/spaghettifunk/tessera/engine/renderer/metadata"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestModelSetOffsets(t *testing.T) {
	set := NewModelSet([]Mesh{quad(), triangle(), quad()})
	require.Equal(t, 3, set.Len())
	assert.Equal(t, []string{"quad", "triangle", "quad"}, set.Names)
	assert.Len(t, set.Vertices, 11)
	assert.Len(t, set.Indices, 15)

	assert.Equal(t, metadata.ModelProperties{VertexCount: 4, IndexCount: 6, VertexOffset: 0, IndexOffset: 0}, set.Properties[0])
	assert.Equal(t, metadata.ModelProperties{VertexCount: 3, IndexCount: 3, VertexOffset: 4, IndexOffset: 6}, set.Properties[1])
	assert.Equal(t, metadata.ModelProperties{VertexCount: 4, IndexCount: 6, VertexOffset: 7, IndexOffset: 9}, set.Properties[2])
	// indices stay local to their mesh; VertexOffset rebases them at draw time
	assert.Equal(t, []uint32{0, 1, 2}, set.Indices[6:9])
}

func TestGroupByModelKeepsOrderInsideModels(t *testing.T) {
	records := []metadata.InstanceRecord{at(1, 2), at(2, 0), at(3, 2), at(4, 0), at(5, 2)}
	grouped, parts, err := GroupByModel(records, 4)
	require.NoError(t, err)

	assert.Equal(t, []metadata.InstanceRecord{at(2, 0), at(4, 0), at(1, 2), at(3, 2), at(5, 2)}, grouped)
	require.Len(t, parts, 4)
	assert.Equal(t, containers.Partition[uint32]{Size: 2, Offset: 0}, parts[0])
	assert.True(t, parts[1].IsEmpty())
	assert.Equal(t, containers.Partition[uint32]{Size: 3, Offset: 2}, parts[2])
	assert.True(t, parts[3].IsEmpty())
}

func TestGroupByModelRejectsUnknownModel(t *testing.T) {
	_, _, err := GroupByModel([]metadata.InstanceRecord{at(0, 0), at(0, 5)}, 2)
	require.Error(t, err)
	assert.True(t, core.IsMisuse(err))
	assert.ErrorIs(t, err, core.ErrInvalidModelIndex)
}

func TestMergeLayoutStaticThenDynamic(t *testing.T) {
	static := containers.PartitionSizes([]uint32{2, 0, 3})
	dynamic := containers.PartitionSizes([]uint32{1, 0, 4})

	l := NewMergeLayout(3, static, dynamic)
	assert.Equal(t, uint32(10), l.Total)
	assert.Equal(t, []ModelRange{
		{Model: 0, Offset: 0, Static: 2, Dynamic: 1},
		{Model: 1, Offset: 3, Static: 0, Dynamic: 0},
		{Model: 2, Offset: 3, Static: 3, Dynamic: 4},
	}, l.Ranges)
	assert.Equal(t, []metadata.ComputeDispatch{
		{Source: metadata.SourceStatic, SrcOffset: 0, DstOffset: 0, Count: 2},
		{Source: metadata.SourceDynamic, SrcOffset: 0, DstOffset: 2, Count: 1},
		{Source: metadata.SourceStatic, SrcOffset: 2, DstOffset: 3, Count: 3},
		{Source: metadata.SourceDynamic, SrcOffset: 1, DstOffset: 6, Count: 4},
	}, l.Dispatches)

	models := NewModelSet([]Mesh{quad(), triangle(), quad()}).Properties
	draws := l.Draws(models)
	require.Len(t, draws, 2, "models without instances are not drawn")
	assert.Equal(t, metadata.DrawIndexed{IndexCount: 6, InstanceCount: 3, FirstIndex: 0, VertexOffset: 0, FirstInstance: 0}, draws[0])
	assert.Equal(t, metadata.DrawIndexed{IndexCount: 6, InstanceCount: 7, FirstIndex: 9, VertexOffset: 7, FirstInstance: 3}, draws[1])
}

func TestMergeLayoutWithoutDynamicPartitions(t *testing.T) {
	l := NewMergeLayout(2, containers.PartitionSizes([]uint32{1, 1}), nil)
	assert.Equal(t, uint32(2), l.Total)
	require.Len(t, l.Dispatches, 2)
	for _, d := range l.Dispatches {
		assert.Equal(t, metadata.SourceStatic, d.Source)
	}
	assert.Empty(t, NewMergeLayout(2, nil, nil).Draws(nil))
}

func TestDispatchGroupCount(t *testing.T) {
	assert.Equal(t, uint32(1), metadata.ComputeDispatch{Count: 1}.GroupCount())
	assert.Equal(t, uint32(2), metadata.ComputeDispatch{Count: 64}.GroupCount())
	assert.Equal(t, uint32(2), metadata.ComputeDispatch{Count: 100}.GroupCount())
}
