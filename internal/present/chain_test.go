package present

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/vkngwrapper/core/core1_0"
	"github.com/vkngwrapper/extensions/khr_surface"
)

func TestChooseSwapSurfaceFormat(t *testing.T) {
	preferred := khr_surface.SurfaceFormat{Format: core1_0.FormatB8G8R8A8SRGB, ColorSpace: khr_surface.ColorSpaceSRGBNonlinear}
	other := khr_surface.SurfaceFormat{Format: core1_0.FormatR8G8B8A8SRGB, ColorSpace: khr_surface.ColorSpaceSRGBNonlinear}

	assert.Equal(t, preferred, chooseSwapSurfaceFormat([]khr_surface.SurfaceFormat{other, preferred}))
	assert.Equal(t, other, chooseSwapSurfaceFormat([]khr_surface.SurfaceFormat{other}))
}

func TestChooseSwapPresentMode(t *testing.T) {
	assert.Equal(t, khr_surface.PresentModeMailbox, chooseSwapPresentMode([]khr_surface.PresentMode{
		khr_surface.PresentModeFIFO, khr_surface.PresentModeMailbox,
	}))
	assert.Equal(t, khr_surface.PresentModeFIFO, chooseSwapPresentMode([]khr_surface.PresentMode{
		khr_surface.PresentModeImmediate,
	}))
	assert.Equal(t, khr_surface.PresentModeFIFO, chooseSwapPresentMode(nil))
}

func TestChooseSwapExtent(t *testing.T) {
	fixed := &khr_surface.SurfaceCapabilities{
		CurrentExtent: core1_0.Extent2D{Width: 1024, Height: 768},
	}
	assert.Equal(t, core1_0.Extent2D{Width: 1024, Height: 768}, chooseSwapExtent(fixed, 800, 600))

	// The binding converts the driver's uint32 sentinel with int().
	var undefined uint32 = 0xFFFFFFFF
	free := &khr_surface.SurfaceCapabilities{
		CurrentExtent:  core1_0.Extent2D{Width: int(undefined), Height: int(undefined)},
		MinImageExtent: core1_0.Extent2D{Width: 100, Height: 100},
		MaxImageExtent: core1_0.Extent2D{Width: 1920, Height: 1080},
	}
	assert.Equal(t, core1_0.Extent2D{Width: 800, Height: 600}, chooseSwapExtent(free, 800, 600))
	assert.Equal(t, core1_0.Extent2D{Width: 1920, Height: 100}, chooseSwapExtent(free, 4000, 10))
	assert.NotEqual(t, -1, currentExtentUndefined)
}

func TestChooseImageCount(t *testing.T) {
	assert.Equal(t, 3, chooseImageCount(&khr_surface.SurfaceCapabilities{MinImageCount: 2, MaxImageCount: 0}))
	assert.Equal(t, 3, chooseImageCount(&khr_surface.SurfaceCapabilities{MinImageCount: 2, MaxImageCount: 8}))
	assert.Equal(t, 2, chooseImageCount(&khr_surface.SurfaceCapabilities{MinImageCount: 2, MaxImageCount: 2}))
}

func TestChooseSharingMode(t *testing.T) {
	mode, families := chooseSharingMode(0, 0)
	assert.Equal(t, core1_0.SharingModeExclusive, mode)
	assert.Empty(t, families)

	mode, families = chooseSharingMode(0, 2)
	assert.Equal(t, core1_0.SharingModeConcurrent, mode)
	assert.Equal(t, []int{0, 2}, families)
}

func TestTeardownIsIdempotent(t *testing.T) {
	chain := NewChain(nil, nil)
	views := &Views{}
	targets := &Targets{}

	assert.NotPanics(t, func() {
		for i := 0; i < 2; i++ {
			targets.Teardown()
			views.Teardown()
			chain.Teardown()
		}
	})
	assert.False(t, chain.Built())
	assert.Zero(t, chain.Len())
	assert.Zero(t, views.Len())
	assert.Zero(t, targets.Len())
}
