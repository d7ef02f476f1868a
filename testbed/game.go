package testbed

import (
	"errors"
	"fmt"

	"github.com/spaghettifunk/tessera/engine"
	"github.com/spaghettifunk/tessera/engine/core"
	"github.com/spaghettifunk/tessera/engine/math"
	"github.com/spaghettifunk/tessera/engine/renderer"
	"github.com/spaghettifunk/tessera/engine/renderer/components"
	"github.com/spaghettifunk/tessera/engine/renderer/metadata"
	"golang.org/x/exp/rand"
)

const (
	gridSize    = 6
	gridSpacing = float32(3.0)
	spawnRange  = float32(10.0)

	orbitSpeed = float32(0.25) // radians per second
	turnSpeed  = float32(1.5)
	zoomSpeed  = float32(10.0)
)

type TestGame struct {
	*engine.Game
}

type gameState struct {
	WorldCamera *components.Camera

	rng     *rand.Rand
	dynamic []metadata.InstanceRecord
	vsync   bool
}

func NewTestGame(cfg *engine.ApplicationConfig) *TestGame {
	tg := &TestGame{
		Game: &engine.Game{
			ApplicationConfig: cfg,
			State: &gameState{
				WorldCamera: components.NewCamera(cfg.Window.Width, cfg.Window.Height),
				rng:         rand.New(rand.NewSource(42)),
				vsync:       cfg.Renderer.VSync,
			},
		},
	}

	tg.FnInitialize = tg.Initialize
	tg.FnUpdate = tg.Update
	tg.FnRender = tg.Render
	tg.FnOnResize = tg.OnResize
	tg.FnShutdown = tg.Shutdown

	return tg
}

func (g *TestGame) state() *gameState {
	return g.State.(*gameState)
}

func (g *TestGame) Initialize() (*renderer.Scene, error) {
	core.LogDebug("TestGame Initialize fn....")

	if g.EventBus == nil {
		return nil, errors.New("the engine did not provide an event bus")
	}
	g.EventBus.Register(core.EVENT_CODE_KEY_PRESSED, g.onKey)

	state := g.state()
	state.WorldCamera.Distance = 20.0
	state.WorldCamera.Pitch(0.3)

	return &renderer.Scene{
		Models:          renderer.NewModelSet(Meshes()),
		StaticInstances: StaticGrid(gridSize, gridSpacing),
	}, nil
}

func (g *TestGame) Update(deltaTime float64) error {
	state := g.state()
	dt := float32(deltaTime)
	camera := state.WorldCamera

	camera.Yaw(orbitSpeed * dt)
	if g.Input == nil {
		return nil
	}
	if g.Input.IsKeyDown(core.KEY_A) || g.Input.IsKeyDown(core.KEY_LEFT) {
		camera.Yaw(-turnSpeed * dt)
	}
	if g.Input.IsKeyDown(core.KEY_D) || g.Input.IsKeyDown(core.KEY_RIGHT) {
		camera.Yaw(turnSpeed * dt)
	}
	if g.Input.IsKeyDown(core.KEY_UP) {
		camera.Pitch(turnSpeed * dt)
	}
	if g.Input.IsKeyDown(core.KEY_DOWN) {
		camera.Pitch(-turnSpeed * dt)
	}
	if g.Input.IsKeyDown(core.KEY_W) {
		camera.Zoom(zoomSpeed * dt)
	}
	if g.Input.IsKeyDown(core.KEY_S) {
		camera.Zoom(-zoomSpeed * dt)
	}
	return nil
}

func (g *TestGame) Render(packet *metadata.RenderPacket, deltaTime float64) error {
	state := g.state()
	packet.ProjectionView = state.WorldCamera.ProjectionView()
	packet.Instances = state.dynamic
	return nil
}

func (g *TestGame) OnResize(width uint32, height uint32) error {
	g.state().WorldCamera.SetViewport(width, height)
	return nil
}

func (g *TestGame) Shutdown() error {
	core.LogInfo("testbed shutting down with %d dynamic objects", len(g.state().dynamic))
	return nil
}

// AddRandomObject places a random model at a random spot. It is refused when
// the renderer would reject the resulting frame.
func (g *TestGame) AddRandomObject() bool {
	return g.addObject(uint32(g.state().rng.Intn(int(modelCount))))
}

func (g *TestGame) addObject(model uint32) bool {
	state := g.state()
	r := state.rng
	position := math.NewVec3(
		math.RandomInRange(r, -spawnRange, spawnRange),
		math.RandomInRange(r, 1.0, 4.0),
		math.RandomInRange(r, -spawnRange, spawnRange),
	)
	scale := math.RandomInRange(r, 0.3, 1.2)
	rotation := math.RandomInRange(r, 0, 2*math.K_PI)
	candidate := append(state.dynamic[:len(state.dynamic):len(state.dynamic)], metadata.InstanceRecord{
		Transform:  math.NewMat4TRS(position, rotation, math.NewVec3(scale, scale, scale)),
		ModelIndex: model,
	})
	if err := g.validate(candidate); err != nil {
		core.LogWarn("cannot add object: %s", err)
		return false
	}
	state.dynamic = candidate
	return true
}

// validate asks the renderer when there is one. Before it exists only the
// configured capacity is known.
func (g *TestGame) validate(instances []metadata.InstanceRecord) error {
	if g.Renderer != nil {
		return g.Renderer.Validate(&metadata.RenderPacket{Instances: instances})
	}
	if limit := g.ApplicationConfig.Renderer.MaxDynamicInstances; uint32(len(instances)) > limit {
		return fmt.Errorf("%w: %d is the maximum", core.ErrTooManyInstances, limit)
	}
	return nil
}

func (g *TestGame) RemoveObject() bool {
	state := g.state()
	if len(state.dynamic) == 0 {
		return false
	}
	state.dynamic = state.dynamic[:len(state.dynamic)-1]
	return true
}

func (g *TestGame) ClearObjects() {
	g.state().dynamic = g.state().dynamic[:0]
}

func (g *TestGame) DynamicCount() int {
	return len(g.state().dynamic)
}

func (g *TestGame) onKey(context core.EventContext) {
	ke, ok := context.Data.(*core.KeyEvent)
	if !ok {
		return
	}
	switch ke.KeyCode {
	case core.KEY_SPACE:
		if g.AddRandomObject() {
			core.LogDebug("%d dynamic objects", g.DynamicCount())
		}
	case core.KEY_BACKSPACE:
		g.RemoveObject()
	case core.KEY_C:
		g.ClearObjects()
		core.LogInfo("dynamic objects cleared")
	case core.KEY_V:
		state := g.state()
		state.vsync = !state.vsync
		if g.Renderer != nil {
			g.Renderer.SetVSync(state.vsync)
		}
		core.LogInfo("vsync %t", state.vsync)
	}
}
