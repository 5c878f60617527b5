// Command vklab opens a window and draws a spinning quad with Vulkan until
// the window is closed.
package main

import (
	"context"
	"fmt"
	"io"
	"os"
	"os/signal"
	"runtime"

	"github.com/cockroachdb/errors"
	"github.com/spf13/pflag"
	"golang.org/x/exp/slog"

	"github.com/vkngwrapper/vklab/internal/config"
	"github.com/vkngwrapper/vklab/internal/frame"
	"github.com/vkngwrapper/vklab/internal/gfxerr"
	"github.com/vkngwrapper/vklab/internal/gpu"
	"github.com/vkngwrapper/vklab/internal/logging"
	"github.com/vkngwrapper/vklab/internal/render"
	"github.com/vkngwrapper/vklab/internal/window"
)

func init() {
	// SDL must be driven from the main thread.
	runtime.LockOSThread()
}

type flags struct {
	configPath string
	logLevel   string
	validation bool

	validationSet bool
}

func parseFlags(args []string, output io.Writer) (flags, error) {
	var f flags

	fs := pflag.NewFlagSet("vklab", pflag.ContinueOnError)
	fs.SetOutput(output)
	fs.StringVarP(&f.configPath, "config", "c", "", "path to a TOML config file")
	fs.StringVar(&f.logLevel, "log-level", "", "override log_level (debug, info, warn, error)")
	fs.BoolVar(&f.validation, "validation", false, "override render.validation")

	if err := fs.Parse(args); err != nil {
		return f, err
	}
	f.validationSet = fs.Changed("validation")
	return f, nil
}

// loadConfig reads the config file and applies command line overrides.
func loadConfig(f flags) (config.Config, error) {
	cfg, err := config.Load(f.configPath)
	if err != nil {
		return cfg, err
	}
	if f.logLevel != "" {
		cfg.LogLevel = f.logLevel
	}
	if f.validationSet {
		cfg.Render.Validation = f.validation
	}
	return cfg, cfg.Validate()
}

func run(ctx context.Context, cfg config.Config, logger *slog.Logger) error {
	win, err := window.New(cfg.Window)
	if err != nil {
		return err
	}
	defer win.Destroy()

	loader, err := win.Loader()
	if err != nil {
		return err
	}

	gpuCtx, err := gpu.New(loader, win, gpu.Options{
		ApplicationName:   cfg.Window.Title,
		Validation:        cfg.Render.Validation,
		ValidationLayers:  config.ValidationLayers,
		DeviceExtensions:  config.DeviceExtensions,
		SamplerAnisotropy: cfg.Render.Texture != "",
		Logger:            logging.Component(logger, "gpu"),
	})
	if err != nil {
		return err
	}
	defer gpuCtx.Cleanup()

	renderer, err := render.New(gpuCtx, win, cfg.Render, logging.Component(logger, "render"))
	if err != nil {
		return err
	}
	defer renderer.Destroy()

	scheduler := frame.NewScheduler(renderer, win, cfg.Render.FramesInFlight, logging.Component(logger, "frame"))
	win.OnResize(scheduler.NotifyResize)

	return scheduler.Run(ctx)
}

func main() {
	f, err := parseFlags(os.Args[1:], os.Stderr)
	if err != nil {
		if errors.Is(err, pflag.ErrHelp) {
			return
		}
		os.Exit(2)
	}

	cfg, err := loadConfig(f)
	if err != nil {
		fmt.Fprintf(os.Stderr, "%+v\n", err)
		os.Exit(1)
	}

	level, _ := config.ParseLevel(cfg.LogLevel)
	logger := logging.New(os.Stderr, level)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()

	if err := run(ctx, cfg, logger); err != nil {
		logger.Error("fatal", "kind", gfxerr.KindOf(err))
		fmt.Fprintf(os.Stderr, "%+v\n", err)
		stop()
		os.Exit(1)
	}
}
