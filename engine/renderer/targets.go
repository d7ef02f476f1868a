package renderer

import (
	"github.com/google/uuid"
	"github.com/spaghettifunk/tessera/engine/core"
	"github.com/spaghettifunk/tessera/engine/renderer/metadata"
	"github.com/spaghettifunk/tessera/engine/renderer/swapchain"
)

// targets are the objects that depend on a swapchain generation. The render
// pass and pipeline may be shared with the next generation.
type targets struct {
	generation   uuid.UUID
	renderPass   metadata.RenderPass
	pipeline     metadata.Pipeline
	framebuffers []metadata.Framebuffer
}

func (r *Renderer) buildFramebuffers(t *targets, gen *swapchain.Generation) error {
	t.framebuffers = make([]metadata.Framebuffer, 0, len(gen.Views))
	for _, view := range gen.Views {
		fb, err := r.dev.CreateFramebuffer(t.renderPass, view, gen.Extent)
		if err != nil {
			return core.ConfigurationError("renderer.buildFramebuffers", err)
		}
		t.framebuffers = append(t.framebuffers, fb)
	}
	return nil
}

func (r *Renderer) buildRenderPass(t *targets, gen *swapchain.Generation) error {
	rp, err := r.dev.CreateRenderPass(gen.Format.Format)
	if err != nil {
		return core.ConfigurationError("renderer.buildRenderPass", err)
	}
	t.renderPass = rp
	r.stats.RenderPassBuilds++
	return nil
}

func (r *Renderer) buildPipeline(t *targets, gen *swapchain.Generation) error {
	p, err := r.dev.CreateGraphicsPipeline(t.renderPass, gen.Extent)
	if err != nil {
		return core.ConfigurationError("renderer.buildPipeline", err)
	}
	t.pipeline = p
	r.stats.PipelineBuilds++
	return nil
}

// newTargets builds everything from scratch for the generation.
func (r *Renderer) newTargets(gen *swapchain.Generation) (*targets, error) {
	t := &targets{generation: gen.ID}
	if err := r.buildRenderPass(t, gen); err != nil {
		return nil, err
	}
	if err := r.buildPipeline(t, gen); err != nil {
		r.destroyTargets(t, nil)
		return nil, err
	}
	if err := r.buildFramebuffers(t, gen); err != nil {
		r.destroyTargets(t, nil)
		return nil, err
	}
	return t, nil
}

// nextTargets rebuilds only what the changes require.
func (r *Renderer) nextTargets(prev *targets, gen *swapchain.Generation, changes swapchain.RecreationChanges) (*targets, error) {
	t := &targets{
		generation: gen.ID,
		renderPass: prev.renderPass,
		pipeline:   prev.pipeline,
	}
	if changes.Format {
		if err := r.buildRenderPass(t, gen); err != nil {
			return nil, err
		}
	}
	if changes.Format || changes.Extent || r.reloadPipeline {
		if err := r.buildPipeline(t, gen); err != nil {
			r.destroyTargets(t, prev)
			return nil, err
		}
		r.reloadPipeline = false
	}
	if err := r.buildFramebuffers(t, gen); err != nil {
		r.destroyTargets(t, prev)
		return nil, err
	}
	return t, nil
}

// destroyTargets releases t, keeping what is shared with keep.
func (r *Renderer) destroyTargets(t, keep *targets) {
	for _, fb := range t.framebuffers {
		r.dev.DestroyFramebuffer(fb)
	}
	t.framebuffers = nil
	if t.pipeline != metadata.NullHandle && (keep == nil || keep.pipeline != t.pipeline) {
		r.dev.DestroyPipeline(t.pipeline)
	}
	if t.renderPass != metadata.NullHandle && (keep == nil || keep.renderPass != t.renderPass) {
		r.dev.DestroyRenderPass(t.renderPass)
	}
	t.pipeline, t.renderPass = metadata.NullHandle, metadata.NullHandle
}

// onRetire runs when the swapchain destroys a generation.
func (r *Renderer) onRetire(gen *swapchain.Generation) {
	switch {
	case r.retired != nil && r.retired.generation == gen.ID:
		r.destroyTargets(r.retired, r.current)
		r.retired = nil
	case r.current != nil && r.current.generation == gen.ID:
		r.destroyTargets(r.current, nil)
		r.current = nil
	}
}
