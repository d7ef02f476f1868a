package testbed

import (
	"testing"

	"github.com/spaghettifunk/tessera/engine"
	"github.com/spaghettifunk/tessera/engine/core"
	"github.com/spaghettifunk/tessera/engine/renderer"
	"github.com/spaghettifunk/tessera/engine/renderer/gputest"
	"github.com/spaghettifunk/tessera/engine/renderer/metadata"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newGame(t *testing.T, maxDynamic uint32) *TestGame {
	t.Helper()
	cfg := engine.DefaultConfig()
	cfg.Renderer.MaxDynamicInstances = maxDynamic
	g := NewTestGame(cfg)
	g.EventBus = core.NewEventBus(4)
	g.Input = core.NewInput(g.EventBus)
	return g
}

func TestMeshIndicesStayInsideTheirModel(t *testing.T) {
	for _, m := range Meshes() {
		for _, i := range m.Indices {
			assert.Less(t, int(i), len(m.Vertices), m.Name)
		}
		assert.Zero(t, len(m.Indices)%3, m.Name)
	}
	assert.Len(t, Meshes(), int(modelCount))
}

func TestInitializeBuildsScene(t *testing.T) {
	g := newGame(t, 8)
	scene, err := g.Initialize()
	require.NoError(t, err)

	require.Equal(t, int(modelCount), scene.Models.Len())
	assert.Equal(t, metadata.ModelProperties{VertexCount: 4, IndexCount: 6, VertexOffset: 0, IndexOffset: 0}, scene.Models.Properties[ModelSquare])
	assert.Equal(t, metadata.ModelProperties{VertexCount: 4, IndexCount: 12, VertexOffset: 4, IndexOffset: 6}, scene.Models.Properties[ModelWeirdSquare])
	assert.Equal(t, metadata.ModelProperties{VertexCount: 8, IndexCount: 36, VertexOffset: 8, IndexOffset: 18}, scene.Models.Properties[ModelCube])
	assert.Len(t, scene.StaticInstances, gridSize*gridSize)
}

func TestAddObjectRefusedAtCapacity(t *testing.T) {
	g := newGame(t, 3)
	for i := 0; i < 3; i++ {
		require.True(t, g.AddRandomObject())
	}
	assert.False(t, g.AddRandomObject())
	assert.Equal(t, 3, g.DynamicCount())

	for _, r := range g.state().dynamic {
		assert.Less(t, r.ModelIndex, modelCount)
	}
}

func TestAddObjectAsksTheRenderer(t *testing.T) {
	g := newGame(t, 2)
	scene, err := g.Initialize()
	require.NoError(t, err)
	dev := gputest.New()
	g.Renderer, err = renderer.New(dev, g.ApplicationConfig.RendererSettings(), scene)
	require.NoError(t, err)
	defer g.Renderer.Shutdown()

	mark := dev.Mark()
	assert.False(t, g.addObject(modelCount), "unknown model")
	assert.Zero(t, g.DynamicCount())

	assert.True(t, g.addObject(ModelCube))
	assert.True(t, g.AddRandomObject())
	assert.False(t, g.AddRandomObject(), "renderer capacity reached")
	assert.Equal(t, 2, g.DynamicCount())
	assert.Empty(t, dev.CallsSince(mark))
}

func TestKeysEditDynamicObjects(t *testing.T) {
	g := newGame(t, 16)
	_, err := g.Initialize()
	require.NoError(t, err)

	press := func(k core.KeyCode) {
		g.Input.ProcessKey(k, true)
		g.Input.ProcessKey(k, false)
	}
	press(core.KEY_SPACE)
	press(core.KEY_SPACE)
	assert.Equal(t, 2, g.DynamicCount())

	press(core.KEY_BACKSPACE)
	assert.Equal(t, 1, g.DynamicCount())

	press(core.KEY_C)
	assert.Equal(t, 0, g.DynamicCount())
	press(core.KEY_BACKSPACE)
	assert.Equal(t, 0, g.DynamicCount())

	vsync := g.state().vsync
	press(core.KEY_V)
	assert.Equal(t, !vsync, g.state().vsync)
}

func TestRenderFillsPacket(t *testing.T) {
	g := newGame(t, 4)
	_, err := g.Initialize()
	require.NoError(t, err)
	require.True(t, g.AddRandomObject())
	require.NoError(t, g.Update(0.016))

	packet := &metadata.RenderPacket{}
	require.NoError(t, g.Render(packet, 0.016))
	assert.Len(t, packet.Instances, 1)
	assert.Equal(t, g.state().WorldCamera.ProjectionView(), packet.ProjectionView)
}

func TestStaticGridCyclesModels(t *testing.T) {
	grid := StaticGrid(2, 1.0)
	require.Len(t, grid, 4)
	assert.Equal(t, []uint32{ModelSquare, ModelWeirdSquare, ModelCube, ModelSquare},
		[]uint32{grid[0].ModelIndex, grid[1].ModelIndex, grid[2].ModelIndex, grid[3].ModelIndex})
}
