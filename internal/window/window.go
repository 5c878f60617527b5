// Package window adapts an SDL2 window to what the renderer needs from the
// windowing system: a Vulkan surface, the drawable size, resize notifications
// and the close signal.
package window

import (
	"github.com/cockroachdb/errors"
	"github.com/veandco/go-sdl2/sdl"
	"github.com/vkngwrapper/core"
	"github.com/vkngwrapper/core/core1_0"
	"github.com/vkngwrapper/extensions/khr_surface"
	vkng_sdl2 "github.com/vkngwrapper/integrations/sdl2"
	"github.com/vkngwrapper/vklab/internal/config"
	"github.com/vkngwrapper/vklab/internal/gfxerr"
)

type Window struct {
	window *sdl.Window

	closeRequested bool
	minimized      bool
	onResize       func(width, height int)
}

// New initializes SDL video and opens a Vulkan-capable window.
func New(cfg config.Window) (*Window, error) {
	if err := sdl.Init(sdl.INIT_VIDEO); err != nil {
		return nil, errors.Wrap(err, "init sdl")
	}

	flags := uint32(sdl.WINDOW_SHOWN | sdl.WINDOW_VULKAN)
	if cfg.Resizable {
		flags |= sdl.WINDOW_RESIZABLE
	}

	window, err := sdl.CreateWindow(cfg.Title, sdl.WINDOWPOS_UNDEFINED, sdl.WINDOWPOS_UNDEFINED, int32(cfg.Width), int32(cfg.Height), flags)
	if err != nil {
		sdl.Quit()
		return nil, errors.Wrap(err, "create window")
	}

	return &Window{window: window}, nil
}

// Loader returns a Vulkan loader bound to SDL's vkGetInstanceProcAddr.
func (w *Window) Loader() (core.Loader, error) {
	loader, err := core.CreateLoaderFromProcAddr(sdl.VulkanGetVkGetInstanceProcAddr())
	if err != nil {
		return nil, errors.Wrap(err, "create vulkan loader")
	}
	return loader, nil
}

// InstanceExtensions lists the instance extensions SDL needs to present.
func (w *Window) InstanceExtensions() []string {
	return w.window.VulkanGetInstanceExtensions()
}

func (w *Window) CreateSurface(instance core1_0.Instance) (khr_surface.Surface, error) {
	surfaceLoader := khr_surface.CreateExtensionFromInstance(instance)

	surface, err := vkng_sdl2.CreateSurface(instance, surfaceLoader, w.window)
	if err != nil {
		return nil, gfxerr.Wrap(err, gfxerr.ErrSurfaceCreation, "createSurface")
	}
	return surface, nil
}

// FramebufferSize is the drawable size in pixels. It is 0x0 while minimized.
func (w *Window) FramebufferSize() (int, int) {
	if w.minimized || (w.window.GetFlags()&sdl.WINDOW_MINIMIZED) != 0 {
		return 0, 0
	}
	width, height := w.window.VulkanGetDrawableSize()
	return int(width), int(height)
}

// OnResize registers fn to be called with the new pixel size whenever the
// window is resized.
func (w *Window) OnResize(fn func(width, height int)) {
	w.onResize = fn
}

// PollEvents drains the event queue without blocking.
func (w *Window) PollEvents() {
	for event := sdl.PollEvent(); event != nil; event = sdl.PollEvent() {
		w.handle(event)
	}
}

// WaitEvents blocks until at least one event arrives, then drains the queue.
func (w *Window) WaitEvents() {
	if event := sdl.WaitEvent(); event != nil {
		w.handle(event)
	}
	w.PollEvents()
}

func (w *Window) ShouldClose() bool {
	return w.closeRequested
}

func (w *Window) handle(event sdl.Event) {
	switch e := event.(type) {
	case *sdl.QuitEvent:
		w.closeRequested = true
	case *sdl.WindowEvent:
		switch e.Event {
		case sdl.WINDOWEVENT_CLOSE:
			w.closeRequested = true
		case sdl.WINDOWEVENT_MINIMIZED:
			w.minimized = true
		case sdl.WINDOWEVENT_RESTORED, sdl.WINDOWEVENT_MAXIMIZED:
			w.minimized = false
		case sdl.WINDOWEVENT_RESIZED, sdl.WINDOWEVENT_SIZE_CHANGED:
			if w.onResize != nil {
				w.onResize(int(e.Data1), int(e.Data2))
			}
		}
	}
}

func (w *Window) Destroy() {
	if w.window != nil {
		w.window.Destroy()
		w.window = nil
	}
	sdl.Quit()
}
