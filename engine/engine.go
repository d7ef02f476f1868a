package engine

import (
	"errors"
	"fmt"
	"path/filepath"
	"runtime"
	"time"

	"github.com/spaghettifunk/tessera/engine/assets"
	"github.com/spaghettifunk/tessera/engine/core"
	"github.com/spaghettifunk/tessera/engine/platform"
	"github.com/spaghettifunk/tessera/engine/renderer"
	"github.com/spaghettifunk/tessera/engine/renderer/metadata"
	"github.com/spaghettifunk/tessera/engine/renderer/vulkan"
	"github.com/spaghettifunk/tessera/engine/systems"
)

type Stage uint8

const (
	// Engine is in an uninitialized state
	EngineStageUninitialized Stage = iota
	// Engine is currently initializing
	EngineStageInitializing
	// Engine initialization is complete
	EngineStageInitialized
	// Engine is currently running
	EngineStageRunning
	// Engine is in the process of shutting down
	EngineStageShuttingDown
)

// eventBacklog bounds the events posted from the watcher goroutine between two frames.
const eventBacklog = 64

type Engine struct {
	currentStage Stage
	gameInstance *Game
	config       *ApplicationConfig
	configPath   string

	isRunning   bool
	isSuspended bool

	bus          *core.EventBus
	input        *core.Input
	platform     *platform.Platform
	assetManager *assets.AssetManager
	jobs         *systems.JobSystem
	debug        *vulkan.DebugContext
	renderer     *renderer.Renderer
	metrics      *core.Metrics

	width    uint32
	height   uint32
	clock    *core.Clock
	lastTime float64
}

func New(g *Game, configPath string) (*Engine, error) {
	if g == nil || g.ApplicationConfig == nil {
		return nil, errors.New("game without configuration")
	}
	cfg := g.ApplicationConfig
	core.SetLogLevel(cfg.LogLevel())

	fpsInterval, err := cfg.FPSInterval()
	if err != nil {
		return nil, err
	}
	gpuInterval, err := cfg.GPUWaitInterval()
	if err != nil {
		return nil, err
	}

	bus := core.NewEventBus(eventBacklog)
	input := core.NewInput(bus)

	am, err := assets.NewAssetManager(bus)
	if err != nil {
		core.LogError(err.Error())
		return nil, err
	}

	jobs, err := systems.NewJobSystem(runtime.NumCPU(), eventBacklog)
	if err != nil {
		return nil, err
	}

	g.EventBus = bus
	g.Input = input

	return &Engine{
		currentStage: EngineStageUninitialized,
		gameInstance: g,
		config:       cfg,
		configPath:   configPath,
		bus:          bus,
		input:        input,
		platform:     platform.New(bus, input),
		assetManager: am,
		jobs:         jobs,
		metrics:      core.NewMetrics(fpsInterval, gpuInterval),
		clock:        core.NewClock(),
		isRunning:    true,
		width:        cfg.Window.Width,
		height:       cfg.Window.Height,
	}, nil
}

func (e *Engine) Initialize() error {
	e.currentStage = EngineStageInitializing

	// register some events
	e.bus.Register(core.EVENT_CODE_APPLICATION_QUIT, e.onEvent)
	e.bus.Register(core.EVENT_CODE_KEY_PRESSED, e.onKey)
	e.bus.Register(core.EVENT_CODE_RESIZED, e.onResized)
	e.bus.Register(core.EVENT_CODE_CONFIG_RELOADED, e.onConfigReloaded)
	e.bus.Register(core.EVENT_CODE_SHADER_CHANGED, e.onShaderChanged)

	cfg := e.config
	if err := e.platform.Startup(cfg.Window.Name, cfg.Window.X, cfg.Window.Y, cfg.Window.Width, cfg.Window.Height); err != nil {
		return err
	}
	// HiDPI displays report a framebuffer larger than the window.
	e.width, e.height = e.platform.FramebufferSize()

	if err := e.assetManager.Initialize(cfg.Assets.Dir); err != nil {
		return err
	}
	if err := e.assetManager.ValidateShaders(e.jobs); err != nil {
		return err
	}
	if e.configPath != "" {
		if err := e.assetManager.WatchConfig(e.configPath); err != nil {
			core.LogWarn("configuration hot reload disabled: %s", err)
		}
	}

	scene, err := e.gameInstance.FnInitialize()
	if err != nil {
		return err
	}

	e.debug = vulkan.NewDebugContext(cfg.Renderer.Validation)
	dev, err := vulkan.NewDevice(vulkan.DeviceConfig{
		ApplicationName: cfg.Window.Name,
		Window:          e.platform,
		Shaders:         e.assetManager,
		Debug:           e.debug,
	})
	if err != nil {
		return err
	}

	settings := cfg.RendererSettings()
	settings.WindowExtent = metadata.Extent2D{Width: e.width, Height: e.height}
	r, err := renderer.New(dev, settings, scene)
	if err != nil {
		return err
	}
	e.renderer = r
	e.gameInstance.Renderer = r

	if err := e.gameInstance.FnOnResize(e.width, e.height); err != nil {
		return err
	}
	e.currentStage = EngineStageInitialized
	return nil
}

// Run drives the frame loop until quit. Misuse errors of a frame are logged and
// the loop continues; any other error ends the loop and is returned.
func (e *Engine) Run() error {
	e.currentStage = EngineStageRunning
	e.clock.Start()
	e.clock.Update()
	e.lastTime = e.clock.Elapsed()

	for e.isRunning {
		e.platform.PumpMessages()
		e.bus.Drain()
		if !e.isRunning {
			break
		}

		if e.isSuspended {
			// Nothing to draw into; block until the window changes again.
			e.platform.WaitMessages()
			continue
		}

		// Update clock and get delta time.
		e.clock.Update()
		currentTime := e.clock.Elapsed()
		delta := currentTime - e.lastTime
		frameStartTime := e.platform.GetAbsoluteTime()

		if err := e.gameInstance.FnUpdate(delta); err != nil {
			return fmt.Errorf("game update failed: %w", err)
		}

		packet := &metadata.RenderPacket{DeltaTime: delta}
		if err := e.gameInstance.FnRender(packet, delta); err != nil {
			return fmt.Errorf("game render failed: %w", err)
		}

		framesBefore := e.renderer.Stats().Frames
		if err := e.renderer.DrawFrame(packet); err != nil {
			if !core.IsMisuse(err) {
				return err
			}
			core.LogWarn("frame rejected: %s", err)
		}

		frameElapsedTime := e.platform.GetAbsoluteTime() - frameStartTime
		e.metrics.Update(frameElapsedTime)
		recordGPUWait(e.metrics, framesBefore, e.renderer.Stats())
		e.metrics.Report(time.Now())

		// NOTE: Input update/state copying should always be handled
		// after any input should be recorded; I.E. before this line.
		e.input.Update()

		e.lastTime = currentTime
	}
	return nil
}

// recordGPUWait adds the fence wait of the last frame, if one was drawn.
// Skipped and rejected frames leave the previous wait in the stats.
func recordGPUWait(m *core.Metrics, framesBefore uint64, stats renderer.Stats) {
	if stats.Frames > framesBefore {
		m.RecordGPUWait(stats.LastGPUWait)
	}
}

// Stop asks the loop to quit after the current frame. Safe from any goroutine.
func (e *Engine) Stop() {
	e.bus.Post(core.EventContext{Type: core.EVENT_CODE_APPLICATION_QUIT})
	e.platform.Wake()
}

func (e *Engine) Shutdown() error {
	e.currentStage = EngineStageShuttingDown

	var errs []error
	if e.gameInstance.FnShutdown != nil {
		errs = append(errs, e.gameInstance.FnShutdown())
	}
	if e.renderer != nil {
		errs = append(errs, e.renderer.Shutdown())
		e.renderer = nil
	}
	if e.debug != nil && (e.debug.Errors() > 0 || e.debug.Warnings() > 0) {
		core.LogWarn("validation reported %d errors and %d warnings", e.debug.Errors(), e.debug.Warnings())
	}
	errs = append(errs, e.jobs.Shutdown())
	errs = append(errs, e.assetManager.Shutdown())
	errs = append(errs, e.platform.Shutdown())
	return errors.Join(errs...)
}

// GetFramebufferSize returns the width and height (in this order)
// of the application Framebuffer
func (e *Engine) GetFramebufferSize() (uint32, uint32) {
	return e.width, e.height
}

func (e *Engine) onEvent(context core.EventContext) {
	switch context.Type {
	case core.EVENT_CODE_APPLICATION_QUIT:
		core.LogInfo("EVENT_CODE_APPLICATION_QUIT received, shutting down.")
		e.isRunning = false
	}
}

func (e *Engine) onKey(context core.EventContext) {
	ke, ok := context.Data.(*core.KeyEvent)
	if !ok {
		core.LogError("wrong event associated with the event type `%d`", context.Type)
		return
	}
	if ke.KeyCode == core.KEY_ESCAPE {
		// NOTE: Technically firing an event to itself, but there may be other listeners.
		e.bus.Fire(core.EventContext{Type: core.EVENT_CODE_APPLICATION_QUIT})
	}
}

func (e *Engine) onResized(context core.EventContext) {
	se, ok := context.Data.(*core.SystemEvent)
	if !ok {
		core.LogError("wrong event associated with the event type `%d`", context.Type)
		return
	}

	width, height := se.WindowWidth, se.WindowHeight
	if width == e.width && height == e.height {
		return
	}
	e.width, e.height = width, height
	core.LogDebug("Window resize: %d, %d", width, height)

	// Handle minimization
	if width == 0 || height == 0 {
		core.LogInfo("Window minimized, suspending application.")
		e.isSuspended = true
		return
	}
	if e.isSuspended {
		core.LogInfo("Window restored, resuming application.")
		e.isSuspended = false
	}
	if err := e.gameInstance.FnOnResize(width, height); err != nil {
		core.LogError(err.Error())
	}
	if e.renderer != nil {
		e.renderer.HandleResize(width, height)
	}
}

// onConfigReloaded applies the settings that can change at runtime. Everything
// else needs a restart.
func (e *Engine) onConfigReloaded(context core.EventContext) {
	ce, ok := context.Data.(*core.ConfigEvent)
	if !ok {
		core.LogError("wrong event associated with the event type `%d`", context.Type)
		return
	}
	data, ok := ce.Payload.([]byte)
	if !ok {
		return
	}
	cfg, err := ParseConfig(data)
	if err != nil {
		core.LogWarn("ignoring configuration change in %s: %s", ce.Path, err)
		return
	}

	if cfg.Log.Level != e.config.Log.Level {
		core.SetLogLevel(cfg.LogLevel())
		core.LogInfo("log level set to %s", cfg.LogLevel())
	}
	if cfg.Renderer.VSync != e.config.Renderer.VSync && e.renderer != nil {
		e.renderer.SetVSync(cfg.Renderer.VSync)
		core.LogInfo("vsync set to %t", cfg.Renderer.VSync)
	}
	e.config.Log = cfg.Log
	e.config.Renderer.VSync = cfg.Renderer.VSync
}

func (e *Engine) onShaderChanged(context core.EventContext) {
	ae, ok := context.Data.(*core.AssetEvent)
	if !ok {
		core.LogError("wrong event associated with the event type `%d`", context.Type)
		return
	}
	switch filepath.Base(ae.Path) {
	case vulkan.VertexShaderFile, vulkan.FragmentShaderFile:
		core.LogInfo("%s changed, rebuilding the graphics pipeline", ae.Path)
		if e.renderer != nil {
			e.renderer.ReloadGraphicsShaders()
		}
	case vulkan.ComputeShaderFile:
		core.LogWarn("%s changed, restart to apply", ae.Path)
	}
}
