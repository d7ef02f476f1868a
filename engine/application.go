package engine

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"time"

	"github.com/pelletier/go-toml/v2"
	"github.com/spaghettifunk/tessera/engine/core"
	"github.com/spaghettifunk/tessera/engine/renderer"
	"github.com/spaghettifunk/tessera/engine/renderer/metadata"
)

type WindowConfig struct {
	// The application name used in windowing.
	Name string `toml:"name"`
	// Window starting position x axis.
	X uint32 `toml:"x"`
	// Window starting position y axis.
	Y uint32 `toml:"y"`
	// Window starting width.
	Width uint32 `toml:"width"`
	// Window starting height.
	Height uint32 `toml:"height"`
}

type RendererConfig struct {
	FramesInFlight      int        `toml:"frames_in_flight"`
	MaxDynamicInstances uint32     `toml:"max_dynamic_instances"`
	VSync               bool       `toml:"vsync"`
	Validation          bool       `toml:"validation"`
	ClearColor          [4]float32 `toml:"clear_color"`
}

type MetricsConfig struct {
	PrintFPS        bool   `toml:"print_fps"`
	FPSInterval     string `toml:"fps_interval"`
	PrintGPUWait    bool   `toml:"print_gpu_wait"`
	GPUWaitInterval string `toml:"gpu_wait_interval"`
}

type LogConfig struct {
	Level string `toml:"level"`
}

type AssetsConfig struct {
	Dir string `toml:"dir"`
}

type ApplicationConfig struct {
	Window   WindowConfig   `toml:"window"`
	Renderer RendererConfig `toml:"renderer"`
	Metrics  MetricsConfig  `toml:"metrics"`
	Log      LogConfig      `toml:"log"`
	Assets   AssetsConfig   `toml:"assets"`
}

const MaxFramesInFlight = 3

func DefaultConfig() *ApplicationConfig {
	return &ApplicationConfig{
		Window: WindowConfig{
			Name:   "Tessera",
			X:      100,
			Y:      100,
			Width:  1280,
			Height: 720,
		},
		Renderer: RendererConfig{
			FramesInFlight:      renderer.DefaultFramesInFlight,
			MaxDynamicInstances: renderer.DefaultMaxDynamicInstances,
			VSync:               true,
			ClearColor:          [4]float32{0.0, 0.0, 0.0, 1.0},
		},
		Metrics: MetricsConfig{
			PrintFPS:        true,
			FPSInterval:     "2s",
			PrintGPUWait:    false,
			GPUWaitInterval: "5s",
		},
		Log: LogConfig{
			Level: "info",
		},
		Assets: AssetsConfig{
			Dir: "assets",
		},
	}
}

// LoadConfig reads path over the defaults. A missing file yields the defaults.
func LoadConfig(path string) (*ApplicationConfig, error) {
	data, err := os.ReadFile(path)
	if errors.Is(err, fs.ErrNotExist) {
		core.LogInfo("no configuration at %s, using defaults", path)
		return DefaultConfig(), nil
	}
	if err != nil {
		return nil, err
	}
	return ParseConfig(data)
}

func ParseConfig(data []byte) (*ApplicationConfig, error) {
	cfg := DefaultConfig()
	if err := toml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("failed to parse configuration: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func (c *ApplicationConfig) Validate() error {
	if c.Renderer.FramesInFlight < 1 || c.Renderer.FramesInFlight > MaxFramesInFlight {
		return fmt.Errorf("renderer.frames_in_flight must be in [1, %d], got %d", MaxFramesInFlight, c.Renderer.FramesInFlight)
	}
	if c.Renderer.MaxDynamicInstances == 0 {
		return errors.New("renderer.max_dynamic_instances must be positive")
	}
	if c.Window.Width == 0 || c.Window.Height == 0 {
		return fmt.Errorf("window size must be positive, got %dx%d", c.Window.Width, c.Window.Height)
	}
	if _, ok := core.ParseLogLevel(c.Log.Level); !ok {
		return fmt.Errorf("unknown log.level %q", c.Log.Level)
	}
	if _, err := c.FPSInterval(); err != nil {
		return err
	}
	if _, err := c.GPUWaitInterval(); err != nil {
		return err
	}
	if c.Assets.Dir == "" {
		return errors.New("assets.dir must not be empty")
	}
	return nil
}

func (c *ApplicationConfig) LogLevel() core.LogLevel {
	level, _ := core.ParseLogLevel(c.Log.Level)
	return level
}

// FPSInterval is zero when FPS printing is disabled.
func (c *ApplicationConfig) FPSInterval() (time.Duration, error) {
	return interval(c.Metrics.PrintFPS, c.Metrics.FPSInterval, "metrics.fps_interval")
}

// GPUWaitInterval is zero when GPU wait printing is disabled.
func (c *ApplicationConfig) GPUWaitInterval() (time.Duration, error) {
	return interval(c.Metrics.PrintGPUWait, c.Metrics.GPUWaitInterval, "metrics.gpu_wait_interval")
}

func interval(enabled bool, value, key string) (time.Duration, error) {
	d, err := time.ParseDuration(value)
	if err != nil {
		return 0, fmt.Errorf("invalid %s: %w", key, err)
	}
	if d <= 0 {
		return 0, fmt.Errorf("%s must be positive, got %s", key, value)
	}
	if !enabled {
		return 0, nil
	}
	return d, nil
}

// RendererSettings maps the file configuration onto the renderer settings.
func (c *ApplicationConfig) RendererSettings() renderer.Config {
	return renderer.Config{
		FramesInFlight:      c.Renderer.FramesInFlight,
		MaxDynamicInstances: c.Renderer.MaxDynamicInstances,
		VSync:               c.Renderer.VSync,
		ClearColor:          c.Renderer.ClearColor,
		WindowExtent:        metadata.Extent2D{Width: c.Window.Width, Height: c.Window.Height},
	}
}
