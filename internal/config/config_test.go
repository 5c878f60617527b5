package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/cockroachdb/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/vkngwrapper/vklab/internal/gfxerr"
	"golang.org/x/exp/slog"
)

func TestDefault(t *testing.T) {
	cfg := Default()
	require.NoError(t, cfg.Validate())
	assert.Equal(t, 800, cfg.Window.Width)
	assert.Equal(t, 600, cfg.Window.Height)
	assert.Equal(t, MaxFramesInFlight, cfg.Render.FramesInFlight)
	assert.Equal(t, enableValidationLayers, cfg.Render.Validation)
	assert.Equal(t, []string{"VK_KHR_swapchain"}, DeviceExtensions)
}

func TestParseOverridesDefaults(t *testing.T) {
	cfg, err := Parse([]byte(`
log_level = "debug"

[window]
width = 1024
height = 768

[render]
frames_in_flight = 3
texture = "textures/statue.png"
clear_color = [0.1, 0.2, 0.3, 1.0]
`))
	require.NoError(t, err)
	assert.Equal(t, 1024, cfg.Window.Width)
	assert.Equal(t, 768, cfg.Window.Height)
	assert.Equal(t, "Renderer", cfg.Window.Title)
	assert.Equal(t, 3, cfg.Render.FramesInFlight)
	assert.Equal(t, "textures/statue.png", cfg.Render.Texture)
	assert.Equal(t, "shaders/vert.spv", cfg.Render.VertexShader)
	assert.Equal(t, [4]float32{0.1, 0.2, 0.3, 1.0}, cfg.Render.ClearColor)
	assert.Equal(t, "debug", cfg.LogLevel)
}

func TestParseRejects(t *testing.T) {
	cases := map[string]string{
		"zero width":       "[window]\nwidth = 0",
		"too many frames":  "[render]\nframes_in_flight = 9",
		"no frames":        "[render]\nframes_in_flight = 0",
		"empty shader":     "[render]\nvertex_shader = \"\"",
		"bad level":        "log_level = \"loud\"",
		"unknown field":    "[render]\nmsaa = 4",
		"malformed toml":   "[window\nwidth = 3",
		"wrong field type": "[window]\nwidth = \"wide\"",
	}

	for name, data := range cases {
		t.Run(name, func(t *testing.T) {
			_, err := Parse([]byte(data))
			require.Error(t, err)
			assert.True(t, errors.Is(err, gfxerr.ErrConfig))
		})
	}
}

func TestLoad(t *testing.T) {
	cfg, err := Load("")
	require.NoError(t, err)
	assert.Equal(t, Default(), cfg)

	path := filepath.Join(t.TempDir(), "vklab.toml")
	require.NoError(t, os.WriteFile(path, []byte("[window]\ntitle = \"quad\"\n"), 0o644))

	cfg, err = Load(path)
	require.NoError(t, err)
	assert.Equal(t, "quad", cfg.Window.Title)

	_, err = Load(filepath.Join(t.TempDir(), "missing.toml"))
	assert.True(t, errors.Is(err, gfxerr.ErrConfig))
}

func TestParseLevel(t *testing.T) {
	level, err := ParseLevel("WARN")
	require.NoError(t, err)
	assert.Equal(t, slog.LevelWarn, level)

	level, err = ParseLevel("")
	require.NoError(t, err)
	assert.Equal(t, slog.LevelInfo, level)
}
