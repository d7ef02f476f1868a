package renderer

import (
	"testing"

	"github.com/spaghettifunk/tessera/engine/core"
	"github.com/spaghettifunk/tessera/engine/math"
	"github.com/spaghettifunk/tessera/engine/renderer/gputest"
	"github.com/spaghettifunk/tessera/engine/renderer/metadata"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func quadMesh() Mesh {
	return Mesh{
		Name: "quad",
		Vertices: []metadata.Vertex{
			{Position: math.NewVec3(-0.5, -0.5, 0), Color: math.NewVec3(1, 0, 0)},
			{Position: math.NewVec3(0.5, -0.5, 0), Color: math.NewVec3(0, 1, 0)},
			{Position: math.NewVec3(0.5, 0.5, 0), Color: math.NewVec3(0, 0, 1)},
			{Position: math.NewVec3(-0.5, 0.5, 0), Color: math.NewVec3(1, 1, 1)},
		},
		Indices: []uint32{0, 1, 2, 2, 3, 0},
	}
}

func triangleMesh() Mesh {
	return Mesh{
		Name: "triangle",
		Vertices: []metadata.Vertex{
			{Position: math.NewVec3(0, 0.5, 0)},
			{Position: math.NewVec3(0.5, -0.5, 0)},
			{Position: math.NewVec3(-0.5, -0.5, 0)},
		},
		Indices: []uint32{0, 1, 2},
	}
}

func instance(x float32, model uint32) metadata.InstanceRecord {
	return metadata.InstanceRecord{
		Transform:  math.NewMat4Translation(math.NewVec3(x, 0, 0)),
		ModelIndex: model,
	}
}

func testConfig() Config {
	cfg := DefaultConfig()
	cfg.MaxDynamicInstances = 8
	cfg.ClearColor = [4]float32{0.1, 0.2, 0.3, 1}
	return cfg
}

func newRenderer(t *testing.T, dev *gputest.Device, cfg Config, static ...metadata.InstanceRecord) *Renderer {
	t.Helper()
	scene := &Scene{
		Models:          NewModelSet([]Mesh{quadMesh(), triangleMesh()}),
		StaticInstances: static,
	}
	r, err := New(dev, cfg, scene)
	require.NoError(t, err)
	return r
}

func packet(instances ...metadata.InstanceRecord) *metadata.RenderPacket {
	return &metadata.RenderPacket{
		ProjectionView: math.NewMat4Identity(),
		Instances:      instances,
	}
}

func drawFrames(t *testing.T, r *Renderer, n int, p *metadata.RenderPacket) {
	t.Helper()
	for i := 0; i < n; i++ {
		require.NoError(t, r.DrawFrame(p), "frame %d", i)
	}
}

func TestNewRejectsBadArguments(t *testing.T) {
	cfg := testConfig()
	cfg.FramesInFlight = 0
	_, err := New(gputest.New(), cfg, &Scene{Models: NewModelSet([]Mesh{quadMesh()})})
	assert.True(t, core.IsMisuse(err))

	_, err = New(gputest.New(), testConfig(), nil)
	assert.True(t, core.IsMisuse(err))
}

func TestFailedInitializationReleasesEverything(t *testing.T) {
	dev := gputest.New()
	_, err := New(dev, testConfig(), &Scene{
		Models:          NewModelSet([]Mesh{quadMesh()}),
		StaticInstances: []metadata.InstanceRecord{instance(0, 7)},
	})
	require.Error(t, err)
	assert.ErrorIs(t, err, core.ErrInvalidModelIndex)
	for kind, n := range dev.Live() {
		assert.Zero(t, n, "%s leaked", kind)
	}
	assert.True(t, dev.IsClosed())
}

func TestDrawFrameRecordsMergeAndDraw(t *testing.T) {
	dev := gputest.New()
	r := newRenderer(t, dev, testConfig(), instance(0, 0), instance(1, 1), instance(2, 0))
	defer r.Shutdown()

	p := packet(instance(5, 1), instance(6, 0))
	p.ProjectionView = math.NewMat4Translation(math.NewVec3(0, 0, -5))
	require.NoError(t, r.DrawFrame(p))

	slot := r.slots[0]
	compute := dev.LastCompute(slot.Compute)
	require.NotNil(t, compute)
	assert.Equal(t, p.ProjectionView, compute.ProjectionView)
	assert.Equal(t, r.descriptorSets[0], compute.DescriptorSet)
	assert.Equal(t, []metadata.ComputeDispatch{
		{Source: metadata.SourceStatic, SrcOffset: 0, DstOffset: 0, Count: 2},
		{Source: metadata.SourceDynamic, SrcOffset: 0, DstOffset: 2, Count: 1},
		{Source: metadata.SourceStatic, SrcOffset: 2, DstOffset: 3, Count: 1},
		{Source: metadata.SourceDynamic, SrcOffset: 1, DstOffset: 4, Count: 1},
	}, compute.Dispatches)

	draw := dev.LastDraw(slot.Graphics)
	require.NotNil(t, draw)
	assert.Equal(t, [4]float32{0.1, 0.2, 0.3, 1}, draw.ClearColor)
	assert.Equal(t, metadata.Extent2D{Width: 800, Height: 600}, draw.Extent)
	assert.Equal(t, r.merged.Buffer(0), draw.InstanceBuffer)
	assert.Equal(t, []metadata.DrawIndexed{
		{IndexCount: 6, InstanceCount: 3, FirstIndex: 0, VertexOffset: 0, FirstInstance: 0},
		{IndexCount: 3, InstanceCount: 2, FirstIndex: 6, VertexOffset: 4, FirstInstance: 3},
	}, draw.Draws)

	// the dynamic slot holds the packet grouped by model
	grouped := metadata.EncodeInstances([]metadata.InstanceRecord{instance(6, 0), instance(5, 1)})
	assert.Equal(t, grouped, dev.BufferBytes(r.dynamic.Buffer(0))[:len(grouped)])
	assert.Empty(t, dev.Violations())
}

func TestDescriptorSetsPointAtTheSlotBuffers(t *testing.T) {
	dev := gputest.New()
	r := newRenderer(t, dev, testConfig())
	defer r.Shutdown()

	require.Len(t, r.descriptorSets, 2)
	for i, set := range r.descriptorSets {
		bindings := dev.DescriptorBindings(set)
		require.Len(t, bindings, 3)
		assert.Equal(t, metadata.DescriptorBinding{Binding: metadata.BindingStaticInstances, Buffer: r.constant.Instances()}, bindings[0])
		assert.Equal(t, metadata.DescriptorBinding{Binding: metadata.BindingDynamicInstances, Buffer: r.dynamic.Buffer(i)}, bindings[1])
		assert.Equal(t, metadata.DescriptorBinding{Binding: metadata.BindingMergedInstances, Buffer: r.merged.Buffer(i)}, bindings[2])
	}
}

func TestTooManyInstancesTouchesNoGPUState(t *testing.T) {
	dev := gputest.New()
	r := newRenderer(t, dev, testConfig())
	defer r.Shutdown()
	drawFrames(t, r, 2, packet(instance(0, 0)))

	over := make([]metadata.InstanceRecord, r.MaxDynamicInstances()+1)
	mark := dev.Mark()
	err := r.DrawFrame(packet(over...))
	require.Error(t, err)
	assert.True(t, core.IsMisuse(err))
	assert.ErrorIs(t, err, core.ErrTooManyInstances)
	assert.Empty(t, dev.CallsSince(mark))
	assert.Equal(t, uint64(2), r.Stats().Frames)

	exact := make([]metadata.InstanceRecord, r.MaxDynamicInstances())
	require.NoError(t, r.DrawFrame(packet(exact...)))
}

func TestUnknownModelTouchesNoGPUState(t *testing.T) {
	dev := gputest.New()
	r := newRenderer(t, dev, testConfig())
	defer r.Shutdown()

	mark := dev.Mark()
	err := r.DrawFrame(packet(instance(0, 2)))
	assert.True(t, core.IsMisuse(err))
	assert.ErrorIs(t, err, core.ErrInvalidModelIndex)
	assert.Empty(t, dev.CallsSince(mark))

	assert.True(t, core.IsMisuse(r.DrawFrame(nil)))
}

func TestValidateMatchesDrawFrame(t *testing.T) {
	dev := gputest.New()
	r := newRenderer(t, dev, testConfig())
	defer r.Shutdown()

	tests := []struct {
		name string
		p    *metadata.RenderPacket
		want error
	}{
		{"unknown model", packet(instance(0, 0), instance(1, 99)), core.ErrInvalidModelIndex},
		{"too many instances", packet(make([]metadata.InstanceRecord, r.MaxDynamicInstances()+1)...), core.ErrTooManyInstances},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			mark := dev.Mark()
			err := r.Validate(tt.p)
			require.Error(t, err)
			assert.True(t, core.IsMisuse(err))
			assert.ErrorIs(t, err, tt.want)
			assert.ErrorIs(t, r.DrawFrame(tt.p), tt.want)
			assert.Empty(t, dev.CallsSince(mark))
		})
	}

	assert.True(t, core.IsMisuse(r.Validate(nil)))
	assert.NoError(t, r.Validate(packet(instance(0, 0), instance(1, 1))))
}

func TestOutOfDateRecreatesOnce(t *testing.T) {
	dev := gputest.New()
	r := newRenderer(t, dev, testConfig(), instance(0, 0))
	defer r.Shutdown()
	drawFrames(t, r, 3, packet())

	dev.QueueAcquireResults(metadata.ErrorOutOfDate)
	require.NoError(t, r.DrawFrame(packet()))

	stats := r.Stats()
	assert.Equal(t, uint64(1), stats.Recreations)
	assert.Equal(t, uint64(4), stats.Frames)
	assert.Equal(t, 2, dev.Count("CreateSwapchain"))

	drawFrames(t, r, 4, packet(instance(1, 1)))
	assert.Equal(t, uint64(1), r.Stats().Recreations)
	assert.Empty(t, dev.Violations())
}

func TestRecreateWithoutChangesKeepsPipeline(t *testing.T) {
	dev := gputest.New()
	r := newRenderer(t, dev, testConfig())
	defer r.Shutdown()
	drawFrames(t, r, 2, packet())

	r.RequestRecreate()
	drawFrames(t, r, 4, packet())

	stats := r.Stats()
	assert.Equal(t, uint64(1), stats.Recreations)
	assert.Equal(t, uint64(1), stats.PipelineBuilds)
	assert.Equal(t, uint64(1), stats.RenderPassBuilds)
	assert.Equal(t, 1, dev.Count("CreateGraphicsPipeline"))
	assert.Equal(t, 3, dev.Live()["framebuffer"], "framebuffers of the retired generation are gone")
	assert.Equal(t, 1, dev.Live()["renderPass"])
	assert.Equal(t, 2, dev.Live()["pipeline"])
	assert.Empty(t, dev.Violations())
}

func TestResizeRebuildsPipelineOnly(t *testing.T) {
	dev := gputest.New()
	r := newRenderer(t, dev, testConfig())
	defer r.Shutdown()
	drawFrames(t, r, 2, packet())

	dev.SetExtent(1024, 768)
	r.HandleResize(1024, 768)
	drawFrames(t, r, 4, packet())

	assert.Equal(t, metadata.Extent2D{Width: 1024, Height: 768}, r.Extent())
	stats := r.Stats()
	assert.Equal(t, uint64(1), stats.Recreations)
	assert.Equal(t, uint64(2), stats.PipelineBuilds)
	assert.Equal(t, uint64(1), stats.RenderPassBuilds)
	assert.Equal(t, 2, dev.Live()["pipeline"], "old graphics pipeline destroyed once its frames completed")
	assert.Empty(t, dev.Violations())
}

func TestZeroResizeIsIgnored(t *testing.T) {
	dev := gputest.New()
	r := newRenderer(t, dev, testConfig())
	defer r.Shutdown()

	r.HandleResize(0, 0)
	r.HandleResize(640, 0)
	drawFrames(t, r, 2, packet())
	assert.Zero(t, r.Stats().Recreations)
	assert.Equal(t, metadata.Extent2D{Width: 800, Height: 600}, r.Extent())
}

func TestZeroSurfaceExtentSkipsFrame(t *testing.T) {
	dev := gputest.New()
	r := newRenderer(t, dev, testConfig())
	defer r.Shutdown()
	drawFrames(t, r, 1, packet())

	dev.SetExtent(0, 0)
	r.RequestRecreate()
	require.NoError(t, r.DrawFrame(packet()), "transient errors are swallowed")
	assert.Equal(t, uint64(1), r.Stats().Frames)

	dev.SetExtent(800, 600)
	require.NoError(t, r.DrawFrame(packet()))
	assert.Equal(t, uint64(2), r.Stats().Frames)
	assert.Equal(t, uint64(1), r.Stats().Recreations)
}

func TestReloadGraphicsShaders(t *testing.T) {
	dev := gputest.New()
	r := newRenderer(t, dev, testConfig())
	defer r.Shutdown()
	drawFrames(t, r, 1, packet())

	r.ReloadGraphicsShaders()
	drawFrames(t, r, 3, packet())
	assert.Equal(t, uint64(2), r.Stats().PipelineBuilds)
	assert.Equal(t, uint64(1), r.Stats().RenderPassBuilds)

	// the flag is consumed by a single recreation
	r.RequestRecreate()
	drawFrames(t, r, 3, packet())
	assert.Equal(t, uint64(2), r.Stats().PipelineBuilds)
	assert.Empty(t, dev.Violations())
}

func TestSetVSyncChangesPresentMode(t *testing.T) {
	dev := gputest.New()
	r := newRenderer(t, dev, testConfig())
	defer r.Shutdown()
	assert.Equal(t, metadata.PresentModeFifo, dev.LastSwapchainInfo.PresentMode)

	r.SetVSync(true)
	drawFrames(t, r, 1, packet())
	assert.Zero(t, r.Stats().Recreations)

	r.SetVSync(false)
	drawFrames(t, r, 1, packet())
	assert.Equal(t, uint64(1), r.Stats().Recreations)
	assert.Equal(t, metadata.PresentModeMailbox, dev.LastSwapchainInfo.PresentMode)
}

func TestDeviceLostIsFatal(t *testing.T) {
	dev := gputest.New()
	r := newRenderer(t, dev, testConfig())
	defer r.Shutdown()
	drawFrames(t, r, 2, packet())

	dev.QueueWaitResults(metadata.ErrorDeviceLost)
	err := r.DrawFrame(packet())
	require.Error(t, err)
	assert.True(t, core.IsFatal(err))
	assert.Equal(t, core.KindDeviceLost, core.KindOf(err))
}

func TestShutdownReleasesEverything(t *testing.T) {
	dev := gputest.New()
	r := newRenderer(t, dev, testConfig(), instance(0, 0), instance(1, 1))
	drawFrames(t, r, 3, packet(instance(2, 0)))
	dev.SetExtent(900, 700)
	r.HandleResize(900, 700)
	drawFrames(t, r, 1, packet())

	require.NoError(t, r.Shutdown())
	for kind, n := range dev.Live() {
		assert.Zero(t, n, "%s leaked", kind)
	}
	assert.True(t, dev.IsClosed())
	assert.Empty(t, dev.Violations())
}
