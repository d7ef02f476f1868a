package buffers

import (
	"testing"

	"github.com/spaghettifunk/tessera/engine/core"
	"github.com/spaghettifunk/tessera/engine/renderer/gputest"
	"github.com/spaghettifunk/tessera/engine/renderer/metadata"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestHostWritableSlotsAreIndependent(t *testing.T) {
	dev := gputest.New()
	h, err := NewHostWritable(dev, 2, 4)
	require.NoError(t, err)
	defer h.Destroy(dev)

	first := []metadata.InstanceRecord{at(1, 0), at(2, 0)}
	second := []metadata.InstanceRecord{at(3, 1)}
	require.NoError(t, h.Write(dev, 0, first))
	require.NoError(t, h.Write(dev, 1, second))

	assert.Equal(t, uint32(2), h.Count(0))
	assert.Equal(t, uint32(1), h.Count(1))
	assert.Equal(t, uint32(4), h.MaxRecords())
	assert.NotEqual(t, h.Buffer(0), h.Buffer(1))

	encoded := metadata.EncodeInstances(first)
	assert.Equal(t, encoded, dev.BufferBytes(h.Buffer(0))[:len(encoded)])
	encoded = metadata.EncodeInstances(second)
	assert.Equal(t, encoded, dev.BufferBytes(h.Buffer(1))[:len(encoded)])
	assert.Len(t, dev.BufferBytes(h.Buffer(0)), int(4*metadata.InstanceRecordStride))
}

func TestHostWritableRejectsOverflowBeforeMapping(t *testing.T) {
	dev := gputest.New()
	h, err := NewHostWritable(dev, 2, 2)
	require.NoError(t, err)
	defer h.Destroy(dev)

	require.NoError(t, h.Write(dev, 0, []metadata.InstanceRecord{at(1, 0)}))
	mark := dev.Mark()

	err = h.Write(dev, 0, []metadata.InstanceRecord{at(1, 0), at(2, 0), at(3, 0)})
	require.Error(t, err)
	assert.True(t, core.IsMisuse(err))
	assert.ErrorIs(t, err, core.ErrTooManyInstances)
	assert.Empty(t, dev.CallsSince(mark))
	assert.Equal(t, uint32(1), h.Count(0), "a rejected write leaves the slot untouched")
}

func TestHostWritableEmptyWriteSkipsMapping(t *testing.T) {
	dev := gputest.New()
	h, err := NewHostWritable(dev, 1, 0)
	require.NoError(t, err)
	defer h.Destroy(dev)

	require.NoError(t, h.Write(dev, 0, nil))
	assert.Zero(t, h.Count(0))
	assert.Zero(t, dev.Count("MapMemory"))
	assert.Error(t, h.Write(dev, 0, []metadata.InstanceRecord{at(0, 0)}))
}

func TestMergedCapacity(t *testing.T) {
	dev := gputest.New()
	m, err := NewMerged(dev, 3, 10, 6)
	require.NoError(t, err)

	assert.Equal(t, uint32(16), m.Capacity())
	for slot := 0; slot < 3; slot++ {
		b := m.Buffer(slot)
		assert.Len(t, dev.BufferBytes(b), int(16*metadata.MergedInstanceStride))
		usage := dev.BufferUsage(b)
		assert.NotZero(t, usage&metadata.BufferUsageStorageBuffer)
		assert.NotZero(t, usage&metadata.BufferUsageVertexBuffer)
	}

	m.Destroy(dev)
	assert.Zero(t, dev.Live()["buffer"])
	assert.Zero(t, dev.Live()["memory"])

	empty, err := NewMerged(dev, 1, 0, 0)
	require.NoError(t, err)
	assert.Equal(t, uint32(1), empty.Capacity())
	empty.Destroy(dev)
}
