package gpu

import (
	"github.com/vkngwrapper/core/core1_0"
	"github.com/vkngwrapper/extensions/khr_surface"
)

type SwapchainSupportDetails struct {
	Capabilities *khr_surface.SurfaceCapabilities
	Formats      []khr_surface.SurfaceFormat
	PresentModes []khr_surface.PresentMode
}

// Adequate is true when the surface offers at least one format and one
// present mode.
func (d SwapchainSupportDetails) Adequate() bool {
	return len(d.Formats) > 0 && len(d.PresentModes) > 0
}

// selectFirst returns the first candidate, in order, that suitable accepts.
func selectFirst[T any](candidates []T, suitable func(T) bool) (T, int, bool) {
	for i, candidate := range candidates {
		if suitable(candidate) {
			return candidate, i, true
		}
	}

	var zero T
	return zero, -1, false
}

// missingNames returns the entries of required that are not keys of
// available, preserving the order of required.
func missingNames[V any](available map[string]V, required []string) []string {
	var missing []string
	for _, name := range required {
		if _, ok := available[name]; !ok {
			missing = append(missing, name)
		}
	}
	return missing
}

// findMemoryType picks the first memory type allowed by typeFilter that has
// every flag in properties.
func findMemoryType(types []core1_0.MemoryPropertyFlags, typeFilter uint32, properties core1_0.MemoryPropertyFlags) (int, bool) {
	for i, flags := range types {
		typeBit := uint32(1 << i)

		if (typeFilter&typeBit) != 0 && (flags&properties) == properties {
			return i, true
		}
	}
	return 0, false
}
