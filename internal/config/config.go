// Package config holds the renderer's constants and the optional TOML file
// that overrides them.
package config

import (
	"bytes"
	"os"
	"strings"

	"github.com/pelletier/go-toml/v2"
	"github.com/vkngwrapper/extensions/khr_swapchain"
	"github.com/vkngwrapper/vklab/internal/gfxerr"
	"golang.org/x/exp/slog"
)

const (
	DefaultWidth  = 800
	DefaultHeight = 600

	// MaxFramesInFlight keeps the CPU from getting more than two frames ahead
	// of the GPU.
	MaxFramesInFlight = 2

	maxFramesInFlightLimit = 8
)

var ValidationLayers = []string{"VK_LAYER_KHRONOS_validation"}
var DeviceExtensions = []string{khr_swapchain.ExtensionName}

type Window struct {
	Width     int    `toml:"width"`
	Height    int    `toml:"height"`
	Title     string `toml:"title"`
	Resizable bool   `toml:"resizable"`
}

type Render struct {
	FramesInFlight int        `toml:"frames_in_flight"`
	Validation     bool       `toml:"validation"`
	VertexShader   string     `toml:"vertex_shader"`
	FragmentShader string     `toml:"fragment_shader"`
	Texture        string     `toml:"texture"`
	Mesh           string     `toml:"mesh"`
	ClearColor     [4]float32 `toml:"clear_color"`
}

type Config struct {
	Window   Window `toml:"window"`
	Render   Render `toml:"render"`
	LogLevel string `toml:"log_level"`
}

// Default returns the configuration used when no file is given.
func Default() Config {
	return Config{
		Window: Window{
			Width:     DefaultWidth,
			Height:    DefaultHeight,
			Title:     "Renderer",
			Resizable: true,
		},
		Render: Render{
			FramesInFlight: MaxFramesInFlight,
			Validation:     enableValidationLayers,
			VertexShader:   "shaders/vert.spv",
			FragmentShader: "shaders/frag.spv",
			ClearColor:     [4]float32{0, 0, 0, 1},
		},
		LogLevel: "info",
	}
}

// Load reads path over the defaults. An empty path returns the defaults.
func Load(path string) (Config, error) {
	cfg := Default()
	if path == "" {
		return cfg, cfg.Validate()
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return cfg, gfxerr.Wrapf(err, gfxerr.ErrConfig, "read config %s", path)
	}

	cfg, err = Parse(data)
	if err != nil {
		return cfg, gfxerr.Wrapf(err, gfxerr.ErrConfig, "config %s", path)
	}
	return cfg, nil
}

// Parse decodes TOML data over the defaults and validates the result.
func Parse(data []byte) (Config, error) {
	cfg := Default()

	decoder := toml.NewDecoder(bytes.NewReader(data))
	decoder.DisallowUnknownFields()
	if err := decoder.Decode(&cfg); err != nil {
		return cfg, gfxerr.Wrap(err, gfxerr.ErrConfig, "decode")
	}

	return cfg, cfg.Validate()
}

func (c Config) Validate() error {
	if c.Window.Width <= 0 || c.Window.Height <= 0 {
		return gfxerr.New(gfxerr.ErrConfig, "window size must be positive, got %dx%d", c.Window.Width, c.Window.Height)
	}
	if c.Render.FramesInFlight < 1 || c.Render.FramesInFlight > maxFramesInFlightLimit {
		return gfxerr.New(gfxerr.ErrConfig, "frames_in_flight must be in [1,%d], got %d", maxFramesInFlightLimit, c.Render.FramesInFlight)
	}
	if c.Render.VertexShader == "" || c.Render.FragmentShader == "" {
		return gfxerr.New(gfxerr.ErrConfig, "vertex_shader and fragment_shader are required")
	}
	if _, err := ParseLevel(c.LogLevel); err != nil {
		return err
	}
	return nil
}

// ParseLevel maps a config log level name to a slog level.
func ParseLevel(name string) (slog.Level, error) {
	switch strings.ToLower(name) {
	case "debug":
		return slog.LevelDebug, nil
	case "", "info":
		return slog.LevelInfo, nil
	case "warn", "warning":
		return slog.LevelWarn, nil
	case "error":
		return slog.LevelError, nil
	}
	return slog.LevelInfo, gfxerr.New(gfxerr.ErrConfig, "unknown log_level %q", name)
}
