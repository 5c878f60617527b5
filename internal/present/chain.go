// Package present manages the presentation chain and the per-image objects
// rebuilt with it: one image view and one framebuffer per swapchain image.
package present

import (
	"github.com/vkngwrapper/core/common"
	"github.com/vkngwrapper/core/core1_0"
	"github.com/vkngwrapper/extensions/khr_surface"
	"github.com/vkngwrapper/extensions/khr_swapchain"
	"github.com/vkngwrapper/vklab/internal/gfxerr"
	"github.com/vkngwrapper/vklab/internal/gpu"
	"github.com/vkngwrapper/vklab/internal/logging"
	"golang.org/x/exp/slog"
)

// FramebufferSizer reports the window's drawable size in pixels.
type FramebufferSizer interface {
	FramebufferSize() (width, height int)
}

// Chain owns the swapchain and its images. Views and framebuffers over those
// images live in Views and Targets.
type Chain struct {
	ctx    *gpu.Context
	logger *slog.Logger

	extension   khr_swapchain.Extension
	swapchain   khr_swapchain.Swapchain
	images      []core1_0.Image
	format      core1_0.Format
	extent      core1_0.Extent2D
	presentMode khr_surface.PresentMode
}

func NewChain(ctx *gpu.Context, logger *slog.Logger) *Chain {
	return &Chain{
		ctx:    ctx,
		logger: logging.OrDiscard(logger),
	}
}

// Build creates a swapchain sized for the window's current drawable size.
func (c *Chain) Build(window FramebufferSizer) error {
	if c.extension == nil {
		c.extension = khr_swapchain.CreateExtensionFromDevice(c.ctx.Device())
	}

	support, err := c.ctx.SwapchainSupport()
	if err != nil {
		return gfxerr.Wrap(err, gfxerr.ErrChainCreation, "querySwapChainSupport")
	}
	if !support.Adequate() {
		return gfxerr.New(gfxerr.ErrChainCreation, "createSwapchain: surface reports no formats or present modes")
	}

	surfaceFormat := chooseSwapSurfaceFormat(support.Formats)
	presentMode := chooseSwapPresentMode(support.PresentModes)
	width, height := window.FramebufferSize()
	extent := chooseSwapExtent(support.Capabilities, width, height)
	imageCount := chooseImageCount(support.Capabilities)

	indices := c.ctx.QueueFamilies()
	sharingMode, queueFamilyIndices := chooseSharingMode(*indices.GraphicsFamily, *indices.PresentFamily)

	swapchain, res, err := c.extension.CreateSwapchain(c.ctx.Device(), nil, khr_swapchain.SwapchainCreateInfo{
		Surface: c.ctx.Surface(),

		MinImageCount:    imageCount,
		ImageFormat:      surfaceFormat.Format,
		ImageColorSpace:  surfaceFormat.ColorSpace,
		ImageExtent:      extent,
		ImageArrayLayers: 1,
		ImageUsage:       core1_0.ImageUsageColorAttachment,

		ImageSharingMode:   sharingMode,
		QueueFamilyIndices: queueFamilyIndices,

		PreTransform:   support.Capabilities.CurrentTransform,
		CompositeAlpha: khr_surface.CompositeAlphaOpaque,
		PresentMode:    presentMode,
		Clipped:        true,
	})
	if err != nil {
		return gfxerr.Result(res, err, gfxerr.ErrChainCreation, "createSwapchain")
	}

	images, res, err := swapchain.SwapchainImages()
	if err != nil {
		swapchain.Destroy(nil)
		return gfxerr.Result(res, err, gfxerr.ErrChainCreation, "swapchainImages")
	}

	c.swapchain = swapchain
	c.images = images
	c.format = surfaceFormat.Format
	c.extent = extent
	c.presentMode = presentMode

	c.logger.Info("swapchain built",
		"format", surfaceFormat.Format,
		"presentMode", presentMode,
		"width", extent.Width,
		"height", extent.Height,
		"images", len(images))

	return nil
}

// Teardown destroys the swapchain. The image handles belong to the swapchain
// and are only dropped. Views over them must already be gone. Safe to call
// repeatedly.
func (c *Chain) Teardown() {
	if c.swapchain != nil {
		c.swapchain.Destroy(nil)
		c.swapchain = nil
	}
	c.images = nil
}

// AcquireNextImage asks the presentation engine for the next image, signaling
// semaphore once it is ready to be rendered to.
func (c *Chain) AcquireNextImage(semaphore core1_0.Semaphore) (int, common.VkResult, error) {
	return c.swapchain.AcquireNextImage(common.NoTimeout, semaphore, nil)
}

// Present queues imageIndex for presentation once waitSemaphore signals.
func (c *Chain) Present(queue core1_0.Queue, waitSemaphore core1_0.Semaphore, imageIndex int) (common.VkResult, error) {
	return c.extension.QueuePresent(queue, khr_swapchain.PresentInfo{
		WaitSemaphores: []core1_0.Semaphore{waitSemaphore},
		Swapchains:     []khr_swapchain.Swapchain{c.swapchain},
		ImageIndices:   []int{imageIndex},
	})
}

func (c *Chain) Built() bool                          { return c.swapchain != nil }
func (c *Chain) Images() []core1_0.Image              { return c.images }
func (c *Chain) Len() int                             { return len(c.images) }
func (c *Chain) Format() core1_0.Format               { return c.format }
func (c *Chain) Extent() core1_0.Extent2D             { return c.extent }
func (c *Chain) PresentMode() khr_surface.PresentMode { return c.presentMode }

func chooseSwapSurfaceFormat(availableFormats []khr_surface.SurfaceFormat) khr_surface.SurfaceFormat {
	for _, format := range availableFormats {
		if format.Format == core1_0.FormatB8G8R8A8SRGB && format.ColorSpace == khr_surface.ColorSpaceSRGBNonlinear {
			return format
		}
	}

	return availableFormats[0]
}

func chooseSwapPresentMode(availablePresentModes []khr_surface.PresentMode) khr_surface.PresentMode {
	for _, presentMode := range availablePresentModes {
		if presentMode == khr_surface.PresentModeMailbox {
			return presentMode
		}
	}

	return khr_surface.PresentModeFIFO
}

// currentExtentUndefined is how the surface says "the swapchain decides the
// size". The binding widens the driver's uint32 0xFFFFFFFF without sign
// extension.
const currentExtentUndefined = int(^uint32(0))

func chooseSwapExtent(capabilities *khr_surface.SurfaceCapabilities, width, height int) core1_0.Extent2D {
	if capabilities.CurrentExtent.Width != currentExtentUndefined {
		return capabilities.CurrentExtent
	}

	return core1_0.Extent2D{
		Width:  clamp(width, capabilities.MinImageExtent.Width, capabilities.MaxImageExtent.Width),
		Height: clamp(height, capabilities.MinImageExtent.Height, capabilities.MaxImageExtent.Height),
	}
}

// chooseImageCount asks for one image more than the minimum so the driver
// never makes us wait on it; MaxImageCount 0 means no upper bound.
func chooseImageCount(capabilities *khr_surface.SurfaceCapabilities) int {
	imageCount := capabilities.MinImageCount + 1
	if capabilities.MaxImageCount > 0 && capabilities.MaxImageCount < imageCount {
		imageCount = capabilities.MaxImageCount
	}
	return imageCount
}

func chooseSharingMode(graphicsFamily, presentFamily int) (core1_0.SharingMode, []int) {
	if graphicsFamily != presentFamily {
		return core1_0.SharingModeConcurrent, []int{graphicsFamily, presentFamily}
	}
	return core1_0.SharingModeExclusive, nil
}

func clamp(v, lo, hi int) int {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}
