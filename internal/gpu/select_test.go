package gpu

import (
	"testing"

	"github.com/cockroachdb/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/vkngwrapper/core/core1_0"
	"github.com/vkngwrapper/extensions/khr_surface"
)

func TestSelectFirstIsDeterministic(t *testing.T) {
	devices := []string{"llvmpipe", "discrete-a", "integrated", "discrete-b"}
	suitable := func(name string) bool { return name == "discrete-a" || name == "discrete-b" }

	for i := 0; i < 10; i++ {
		device, index, found := selectFirst(devices, suitable)
		require.True(t, found)
		assert.Equal(t, "discrete-a", device)
		assert.Equal(t, 1, index)
	}
}

func TestSelectFirstNoneSuitable(t *testing.T) {
	device, index, found := selectFirst([]string{"a", "b"}, func(string) bool { return false })
	assert.False(t, found)
	assert.Equal(t, -1, index)
	assert.Empty(t, device)

	_, _, found = selectFirst([]string(nil), func(string) bool { return true })
	assert.False(t, found)
}

func TestMissingNames(t *testing.T) {
	available := map[string]int{"VK_KHR_swapchain": 1, "VK_KHR_maintenance1": 1}

	assert.Empty(t, missingNames(available, []string{"VK_KHR_swapchain"}))
	assert.Equal(t, []string{"VK_EXT_mesh_shader", "VK_KHR_ray_query"},
		missingNames(available, []string{"VK_EXT_mesh_shader", "VK_KHR_swapchain", "VK_KHR_ray_query"}))
	assert.Empty(t, missingNames(available, nil))
}

func TestFindMemoryType(t *testing.T) {
	types := []core1_0.MemoryPropertyFlags{
		core1_0.MemoryPropertyDeviceLocal,
		core1_0.MemoryPropertyHostVisible,
		core1_0.MemoryPropertyHostVisible | core1_0.MemoryPropertyHostCoherent,
	}

	index, found := findMemoryType(types, 0b111, core1_0.MemoryPropertyHostVisible|core1_0.MemoryPropertyHostCoherent)
	require.True(t, found)
	assert.Equal(t, 2, index)

	index, found = findMemoryType(types, 0b111, core1_0.MemoryPropertyHostVisible)
	require.True(t, found)
	assert.Equal(t, 1, index)

	// Type 0 is excluded by the filter.
	_, found = findMemoryType(types, 0b110, core1_0.MemoryPropertyDeviceLocal)
	assert.False(t, found)
}

func TestSwapchainSupportAdequate(t *testing.T) {
	assert.False(t, SwapchainSupportDetails{}.Adequate())
	assert.False(t, SwapchainSupportDetails{
		Formats: []khr_surface.SurfaceFormat{{Format: core1_0.FormatB8G8R8A8SRGB}},
	}.Adequate())
	assert.True(t, SwapchainSupportDetails{
		Formats:      []khr_surface.SurfaceFormat{{Format: core1_0.FormatB8G8R8A8SRGB}},
		PresentModes: []khr_surface.PresentMode{khr_surface.PresentModeFIFO},
	}.Adequate())
}

func presentOn(families ...int) func(int) (bool, error) {
	return func(index int) (bool, error) {
		for _, family := range families {
			if family == index {
				return true, nil
			}
		}
		return false, nil
	}
}

func TestFindQueueFamiliesShared(t *testing.T) {
	flags := []core1_0.QueueFlags{
		core1_0.QueueGraphics | core1_0.QueueCompute | core1_0.QueueTransfer,
	}

	indices, err := findQueueFamilies(flags, presentOn(0))
	require.NoError(t, err)
	require.True(t, indices.IsComplete())
	assert.Equal(t, 0, *indices.GraphicsFamily)
	assert.Equal(t, 0, *indices.PresentFamily)
	assert.Equal(t, 0, *indices.TransferFamily, "transfer falls back to graphics")
	assert.False(t, indices.DedicatedTransfer())
	assert.Equal(t, []int{0}, indices.Unique())
}

func TestFindQueueFamiliesDedicated(t *testing.T) {
	flags := []core1_0.QueueFlags{
		core1_0.QueueCompute,
		core1_0.QueueGraphics | core1_0.QueueTransfer,
		core1_0.QueueTransfer,
		core1_0.QueueGraphics,
	}

	indices, err := findQueueFamilies(flags, presentOn(3))
	require.NoError(t, err)
	require.True(t, indices.IsComplete())
	assert.Equal(t, 1, *indices.GraphicsFamily)
	assert.Equal(t, 3, *indices.PresentFamily)
	assert.Equal(t, 2, *indices.TransferFamily)
	assert.True(t, indices.DedicatedTransfer())
	assert.Equal(t, []int{1, 3, 2}, indices.Unique())
}

func TestFindQueueFamiliesIncomplete(t *testing.T) {
	indices, err := findQueueFamilies([]core1_0.QueueFlags{core1_0.QueueCompute}, presentOn(0))
	require.NoError(t, err)
	assert.False(t, indices.IsComplete())
	assert.Nil(t, indices.GraphicsFamily)
	assert.Nil(t, indices.TransferFamily)

	indices, err = findQueueFamilies([]core1_0.QueueFlags{core1_0.QueueGraphics}, presentOn())
	require.NoError(t, err)
	assert.False(t, indices.IsComplete())
	assert.Nil(t, indices.PresentFamily)
}

func TestFindQueueFamiliesPresentError(t *testing.T) {
	boom := errors.New("surface lost")
	_, err := findQueueFamilies([]core1_0.QueueFlags{core1_0.QueueGraphics}, func(int) (bool, error) {
		return false, boom
	})
	assert.ErrorIs(t, err, boom)
}

func TestContextCleanupIdempotent(t *testing.T) {
	ctx := &Context{}
	assert.NotPanics(t, func() {
		ctx.Cleanup()
		ctx.Cleanup()
	})
	assert.NoError(t, ctx.WaitIdle())
}
