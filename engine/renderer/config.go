package renderer

import (
	"github.com/spaghettifunk/tessera/engine/renderer/buffers"
	"github.com/spaghettifunk/tessera/engine/renderer/metadata"
)

const (
	DefaultFramesInFlight      = 2
	DefaultMaxDynamicInstances = 1024
)

type Config struct {
	FramesInFlight      int
	MaxDynamicInstances uint32
	VSync               bool
	ClearColor          [4]float32
	WindowExtent        metadata.Extent2D
}

func DefaultConfig() Config {
	return Config{
		FramesInFlight:      DefaultFramesInFlight,
		MaxDynamicInstances: DefaultMaxDynamicInstances,
		VSync:               true,
		ClearColor:          [4]float32{0.0, 0.0, 0.0, 1.0},
		WindowExtent:        metadata.Extent2D{Width: 800, Height: 600},
	}
}

type Mesh = buffers.Mesh

// Scene is the static content handed to the renderer at creation.
type Scene struct {
	Models          *buffers.ModelSet
	StaticInstances []metadata.InstanceRecord
}

func NewModelSet(meshes []Mesh) *buffers.ModelSet {
	return buffers.NewModelSet(meshes)
}
