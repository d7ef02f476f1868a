package renderer

import (
	"errors"
	"fmt"

	"github.com/spaghettifunk/tessera/engine/containers"
	"github.com/spaghettifunk/tessera/engine/core"
	"github.com/spaghettifunk/tessera/engine/math"
	"github.com/spaghettifunk/tessera/engine/renderer/buffers"
	"github.com/spaghettifunk/tessera/engine/renderer/frame"
	"github.com/spaghettifunk/tessera/engine/renderer/metadata"
	"github.com/spaghettifunk/tessera/engine/renderer/swapchain"
)

type Stats struct {
	frame.Stats
	RenderPassBuilds uint64
	PipelineBuilds   uint64
}

// frameInput is the validated content of the packet being drawn.
type frameInput struct {
	projectionView math.Mat4
	grouped        []metadata.InstanceRecord
	partitions     []containers.Partition[uint32]
}

/**
 * @brief Owns every GPU object of the renderer and drives one frame per
 * DrawFrame call. Not safe for concurrent use: call it from the main loop.
 */
type Renderer struct {
	dev metadata.Device
	cfg Config

	window    metadata.Extent2D
	swapchain *swapchain.Manager
	current   *targets
	retired   *targets

	computePipeline metadata.Pipeline
	descriptorSets  []metadata.DescriptorSet

	constant *buffers.Constant
	dynamic  *buffers.HostWritable
	merged   *buffers.Merged

	slots []*frame.Slot
	sync  *frame.Synchronizer

	input          frameInput
	stats          Stats
	reloadPipeline bool
}

// New takes ownership of dev; Shutdown closes it.
func New(dev metadata.Device, cfg Config, scene *Scene) (*Renderer, error) {
	if cfg.FramesInFlight < 1 {
		return nil, core.MisuseError("renderer.New", fmt.Errorf("frames in flight must be at least 1, got %d", cfg.FramesInFlight))
	}
	if scene == nil || scene.Models == nil {
		return nil, core.MisuseError("renderer.New", errors.New("scene without models"))
	}

	r := &Renderer{
		dev:    dev,
		cfg:    cfg,
		window: cfg.WindowExtent,
	}
	if err := r.initialize(scene); err != nil {
		r.release()
		return nil, err
	}
	core.LogInfo("renderer ready: %d frames in flight, %d models, %d static instances, max %d dynamic instances",
		cfg.FramesInFlight, scene.Models.Len(), r.constant.StaticCount, cfg.MaxDynamicInstances)
	return r, nil
}

func (r *Renderer) initialize(scene *Scene) error {
	prefs := swapchain.DefaultPreferences()
	prefs.VSync = r.cfg.VSync
	sc, err := swapchain.New(r.dev, prefs, r.window)
	if err != nil {
		return err
	}
	r.swapchain = sc
	r.swapchain.OnRetire(r.onRetire)

	if r.current, err = r.newTargets(sc.Current()); err != nil {
		return err
	}
	if r.computePipeline, err = r.dev.CreateComputePipeline(); err != nil {
		return core.ConfigurationError("renderer.New", err)
	}

	if r.constant, err = buffers.NewConstant(r.dev, scene.Models, scene.StaticInstances); err != nil {
		return err
	}
	if r.dynamic, err = buffers.NewHostWritable(r.dev, r.cfg.FramesInFlight, r.cfg.MaxDynamicInstances); err != nil {
		return err
	}
	if r.merged, err = buffers.NewMerged(r.dev, r.cfg.FramesInFlight, r.constant.StaticCount, r.cfg.MaxDynamicInstances); err != nil {
		return err
	}

	if r.descriptorSets, err = r.dev.AllocateComputeDescriptorSets(r.cfg.FramesInFlight); err != nil {
		return core.ConfigurationError("renderer.New", err)
	}
	for i, set := range r.descriptorSets {
		if err := r.dev.UpdateComputeDescriptorSet(set, []metadata.DescriptorBinding{
			{Binding: metadata.BindingStaticInstances, Buffer: r.constant.Instances()},
			{Binding: metadata.BindingDynamicInstances, Buffer: r.dynamic.Buffer(i)},
			{Binding: metadata.BindingMergedInstances, Buffer: r.merged.Buffer(i)},
		}); err != nil {
			return core.ConfigurationError("renderer.New", err)
		}
	}

	if r.slots, err = frame.NewSlots(r.dev, r.cfg.FramesInFlight); err != nil {
		return err
	}
	r.sync = frame.NewSynchronizer(r.dev, r.swapchain, r, r.slots)
	return nil
}

// Validate runs the caller checks of DrawFrame without touching GPU state.
func (r *Renderer) Validate(packet *metadata.RenderPacket) error {
	if packet == nil {
		return core.MisuseError("renderer.Validate", errors.New("nil render packet"))
	}
	if uint32(len(packet.Instances)) > r.cfg.MaxDynamicInstances {
		return core.MisuseError("renderer.Validate",
			fmt.Errorf("%w: %d > %d", core.ErrTooManyInstances, len(packet.Instances), r.cfg.MaxDynamicInstances))
	}
	models := len(r.constant.Models)
	for i, inst := range packet.Instances {
		if int(inst.ModelIndex) >= models {
			return core.MisuseError("renderer.Validate",
				fmt.Errorf("%w: instance %d uses model %d of %d", core.ErrInvalidModelIndex, i, inst.ModelIndex, models))
		}
	}
	return nil
}

/**
 * @brief Draws one frame. Caller mistakes are returned before any GPU call;
 * transient swapchain problems are logged and swallowed; any other error is
 * fatal for the renderer.
 */
func (r *Renderer) DrawFrame(packet *metadata.RenderPacket) error {
	if err := r.Validate(packet); err != nil {
		return err
	}
	grouped, parts, err := buffers.GroupByModel(packet.Instances, len(r.constant.Models))
	if err != nil {
		return err
	}
	r.input = frameInput{
		projectionView: packet.ProjectionView,
		grouped:        grouped,
		partitions:     parts,
	}

	if err := r.sync.RenderNextFrame(); err != nil {
		if core.IsTransient(err) {
			core.LogWarn("frame skipped: %s", err)
			return nil
		}
		return err
	}
	return nil
}

// HandleResize schedules a swapchain recreation for the next frame. A zero
// sized window is ignored; the caller stops drawing until it is restored.
func (r *Renderer) HandleResize(width, height uint32) {
	extent := metadata.Extent2D{Width: width, Height: height}
	if extent.IsZero() {
		return
	}
	r.window = extent
	r.swapchain.RequestRecreate()
}

// SetVSync changes the present mode preference, recreating the swapchain if needed.
func (r *Renderer) SetVSync(vsync bool) {
	prefs := r.swapchain.Preferences()
	prefs.VSync = vsync
	r.swapchain.SetPreferences(prefs)
}

// ReloadGraphicsShaders rebuilds the graphics pipeline from the shader
// source together with the next swapchain generation.
func (r *Renderer) ReloadGraphicsShaders() {
	r.reloadPipeline = true
	r.swapchain.RequestRecreate()
}

// RequestRecreate forces a swapchain recreation on the next frame.
func (r *Renderer) RequestRecreate() {
	r.swapchain.RequestRecreate()
}

// RecreateSwapchain is called by the synchronizer between frames.
func (r *Renderer) RecreateSwapchain(gates []swapchain.Gate) error {
	changes, err := r.swapchain.Recreate(r.window, gates...)
	if err != nil {
		return err
	}
	next, err := r.nextTargets(r.current, r.swapchain.Current(), changes)
	if err != nil {
		return err
	}
	r.retired, r.current = r.current, next
	return nil
}

// RecordFrame fills the slot's command buffers for the validated input.
func (r *Renderer) RecordFrame(slot *frame.Slot, imageIndex uint32) error {
	if err := r.dynamic.Write(r.dev, slot.Index, r.input.grouped); err != nil {
		return err
	}
	layout := buffers.NewMergeLayout(len(r.constant.Models), r.constant.StaticPartitions, r.input.partitions)

	if err := r.dev.RecordCompute(slot.Compute, &metadata.ComputePass{
		Pipeline:       r.computePipeline,
		DescriptorSet:  r.descriptorSets[slot.Index],
		ProjectionView: r.input.projectionView,
		Dispatches:     layout.Dispatches,
	}); err != nil {
		return core.DeviceLostError("renderer.RecordFrame", err)
	}

	gen := r.swapchain.Current()
	if int(imageIndex) >= len(r.current.framebuffers) {
		return core.ConfigurationError("renderer.RecordFrame",
			fmt.Errorf("image index %d out of %d framebuffers", imageIndex, len(r.current.framebuffers)))
	}
	if err := r.dev.RecordDraw(slot.Graphics, &metadata.DrawPass{
		RenderPass:     r.current.renderPass,
		Framebuffer:    r.current.framebuffers[imageIndex],
		Extent:         gen.Extent,
		Pipeline:       r.current.pipeline,
		ClearColor:     r.cfg.ClearColor,
		VertexBuffer:   r.constant.Vertices(),
		InstanceBuffer: r.merged.Buffer(slot.Index),
		IndexBuffer:    r.constant.Indices(),
		Draws:          layout.Draws(r.constant.Models),
	}); err != nil {
		return core.DeviceLostError("renderer.RecordFrame", err)
	}
	return nil
}

func (r *Renderer) Stats() Stats {
	s := r.stats
	if r.sync != nil {
		s.Stats = r.sync.Stats()
	}
	return s
}

func (r *Renderer) Extent() metadata.Extent2D {
	return r.swapchain.Current().Extent
}

func (r *Renderer) SwapchainState() swapchain.State {
	return r.swapchain.State()
}

func (r *Renderer) MaxDynamicInstances() uint32 {
	return r.cfg.MaxDynamicInstances
}

// Shutdown waits for the device to go idle and destroys everything in
// reverse creation order, the device last.
func (r *Renderer) Shutdown() error {
	if err := r.dev.WaitIdle(); err != nil {
		core.LogError("wait idle before shutdown: %s", err)
	}
	r.release()
	return nil
}

func (r *Renderer) release() {
	if r.slots != nil {
		frame.DestroySlots(r.dev, r.slots)
		r.slots, r.sync = nil, nil
	}
	if r.merged != nil {
		r.merged.Destroy(r.dev)
		r.merged = nil
	}
	if r.dynamic != nil {
		r.dynamic.Destroy(r.dev)
		r.dynamic = nil
	}
	if r.constant != nil {
		r.constant.Destroy(r.dev)
		r.constant = nil
	}
	if r.computePipeline != metadata.NullHandle {
		r.dev.DestroyPipeline(r.computePipeline)
		r.computePipeline = metadata.NullHandle
	}
	if r.swapchain != nil {
		r.swapchain.Destroy()
		r.swapchain = nil
	} else if r.current != nil {
		r.destroyTargets(r.current, nil)
	}
	r.current, r.retired = nil, nil
	r.dev.Close()
}
