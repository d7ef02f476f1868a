package engine

import (
	"github.com/spaghettifunk/tessera/engine/core"
	"github.com/spaghettifunk/tessera/engine/renderer"
	"github.com/spaghettifunk/tessera/engine/renderer/metadata"
)

// Game is implemented by the application driving the engine. The engine
// fills EventBus, Input and Renderer before the callbacks that need them.
type Game struct {
	ApplicationConfig *ApplicationConfig
	EventBus          *core.EventBus
	Input             *core.Input
	Renderer          *renderer.Renderer
	State             interface{}

	FnInitialize Initialize
	FnUpdate     Update
	FnRender     Render
	FnOnResize   OnResize
	FnShutdown   Shutdown
}

// Initialize returns the static scene the renderer uploads once.
type Initialize func() (*renderer.Scene, error)
type Update func(deltaTime float64) error
type Render func(packet *metadata.RenderPacket, deltaTime float64) error
type OnResize func(width uint32, height uint32) error
type Shutdown func() error
