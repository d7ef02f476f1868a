package assets

import (
	"encoding/binary"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/fsnotify/fsnotify"
	"github.com/spaghettifunk/tessera/engine/assets/loaders"
	"github.com/spaghettifunk/tessera/engine/core"
	"github.com/spaghettifunk/tessera/engine/systems"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func spirv(words int) []byte {
	data := make([]byte, words*4)
	binary.LittleEndian.PutUint32(data, loaders.SPIRVMagic)
	return data
}

func newManager(t *testing.T) (*AssetManager, *core.EventBus, string) {
	t.Helper()
	dir := t.TempDir()
	require.NoError(t, os.MkdirAll(filepath.Join(dir, ShaderDir), 0o755))
	require.NoError(t, os.WriteFile(filepath.Join(dir, ShaderDir, "shader.vert.spv"), spirv(8), 0o644))

	bus := core.NewEventBus(16)
	am, err := NewAssetManager(bus)
	require.NoError(t, err)
	require.NoError(t, am.Initialize(dir))
	t.Cleanup(func() { am.Shutdown() })
	return am, bus, dir
}

func TestShaderLoadsSPIRV(t *testing.T) {
	am, _, dir := newManager(t)

	code, err := am.Shader("shader.vert.spv")
	require.NoError(t, err)
	assert.Len(t, code, 32)

	info, ok := am.Asset(filepath.Join(dir, ShaderDir, "shader.vert.spv"))
	require.True(t, ok)
	assert.Equal(t, AssetTypeShader, info.Type)
	assert.False(t, info.LastLoaded.IsZero())
}

func TestShaderRejectsInvalidModules(t *testing.T) {
	am, _, dir := newManager(t)
	require.NoError(t, os.WriteFile(filepath.Join(dir, ShaderDir, "bad.spv"), []byte("not spir-v at all!!!"), 0o644))

	_, err := am.Shader("bad.spv")
	assert.Error(t, err)

	_, err = am.Shader("missing.spv")
	assert.Error(t, err)
}

func TestInitializeWithoutDirectory(t *testing.T) {
	am, err := NewAssetManager(core.NewEventBus(1))
	require.NoError(t, err)
	defer am.Shutdown()

	err = am.Initialize(filepath.Join(t.TempDir(), "nope"))
	require.Error(t, err)
	assert.True(t, core.IsFatal(err))
}

func TestConfigChangeIsPosted(t *testing.T) {
	am, bus, dir := newManager(t)
	cfgPath := filepath.Join(dir, "config.toml")
	require.NoError(t, os.WriteFile(cfgPath, []byte("[log]\nlevel = \"info\"\n"), 0o644))
	require.NoError(t, am.WatchConfig(cfgPath))

	var payload []byte
	bus.Register(core.EVENT_CODE_CONFIG_RELOADED, func(ctx core.EventContext) {
		ev := ctx.Data.(*core.ConfigEvent)
		payload = ev.Payload.([]byte)
	})

	want := "[log]\nlevel = \"debug\"\n"
	require.NoError(t, os.WriteFile(cfgPath, []byte(want), 0o644))

	require.Eventually(t, func() bool {
		bus.Drain()
		return string(payload) == want
	}, 2*time.Second, 10*time.Millisecond)
}

func TestShaderChangeIsPosted(t *testing.T) {
	_, bus, dir := newManager(t)

	var changed string
	bus.Register(core.EVENT_CODE_SHADER_CHANGED, func(ctx core.EventContext) {
		changed = ctx.Data.(*core.AssetEvent).Path
	})

	path := filepath.Join(dir, ShaderDir, "instance.comp.spv")
	require.NoError(t, os.WriteFile(path, spirv(6), 0o644))

	require.Eventually(t, func() bool {
		bus.Drain()
		return changed == path
	}, 2*time.Second, 10*time.Millisecond)
}

func TestValidateShaders(t *testing.T) {
	am, _, dir := newManager(t)
	js, err := systems.NewJobSystem(2, 4)
	require.NoError(t, err)
	defer js.Shutdown()

	require.NoError(t, am.ValidateShaders(js))

	bad := filepath.Join(dir, ShaderDir, "broken.frag.spv")
	require.NoError(t, os.WriteFile(bad, []byte{1, 2, 3, 4}, 0o644))
	am.handleFileEvent(bad)

	err = am.ValidateShaders(js)
	require.Error(t, err)
	assert.True(t, core.IsFatal(err))
	assert.ErrorContains(t, err, "broken.frag.spv")
}

func TestInvalidShaderChangeIsNotPosted(t *testing.T) {
	am, bus, dir := newManager(t)
	posted := 0
	bus.Register(core.EVENT_CODE_SHADER_CHANGED, func(core.EventContext) { posted++ })

	path := filepath.Join(dir, ShaderDir, "shader.frag.spv")
	require.NoError(t, os.WriteFile(path, []byte("half written"), 0o644))
	am.handleEvent(fsnotify.Event{Name: path, Op: fsnotify.Write})
	bus.Drain()
	assert.Zero(t, posted)
}

func TestDetermineAssetType(t *testing.T) {
	assert.Equal(t, AssetTypeShader, determineAssetType("a/b.spv"))
	assert.Equal(t, AssetTypeConfig, determineAssetType("config.toml"))
	assert.Equal(t, AssetTypeNone, determineAssetType("shader.vert"))
}
