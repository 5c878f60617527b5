package gpu

import (
	"github.com/vkngwrapper/core/core1_0"
)

// QueueFamilyIndices locates the queue families the renderer submits to.
// Graphics and Present are required. Transfer is always set once discovery
// finishes: a dedicated transfer-only family when the device has one,
// otherwise the graphics family.
type QueueFamilyIndices struct {
	GraphicsFamily *int
	PresentFamily  *int
	TransferFamily *int
}

func (i *QueueFamilyIndices) IsComplete() bool {
	return i.GraphicsFamily != nil && i.PresentFamily != nil
}

// DedicatedTransfer reports whether transfers go to a family other than
// graphics.
func (i *QueueFamilyIndices) DedicatedTransfer() bool {
	return i.TransferFamily != nil && i.GraphicsFamily != nil && *i.TransferFamily != *i.GraphicsFamily
}

// Unique lists the distinct families in graphics, present, transfer order.
func (i *QueueFamilyIndices) Unique() []int {
	var unique []int
	for _, family := range []*int{i.GraphicsFamily, i.PresentFamily, i.TransferFamily} {
		if family == nil {
			continue
		}

		seen := false
		for _, existing := range unique {
			if existing == *family {
				seen = true
				break
			}
		}
		if !seen {
			unique = append(unique, *family)
		}
	}
	return unique
}

// findQueueFamilies walks the device's queue families in order. flags holds
// each family's capability bits; presentSupport asks the surface whether a
// family index can present.
func findQueueFamilies(flags []core1_0.QueueFlags, presentSupport func(familyIndex int) (bool, error)) (QueueFamilyIndices, error) {
	indices := QueueFamilyIndices{}

	for queueFamilyIdx, queueFlags := range flags {
		if indices.GraphicsFamily == nil && (queueFlags&core1_0.QueueGraphics) != 0 {
			indices.GraphicsFamily = intPtr(queueFamilyIdx)
		}

		if indices.TransferFamily == nil && (queueFlags&core1_0.QueueTransfer) != 0 && (queueFlags&core1_0.QueueGraphics) == 0 {
			indices.TransferFamily = intPtr(queueFamilyIdx)
		}

		if indices.PresentFamily == nil {
			supported, err := presentSupport(queueFamilyIdx)
			if err != nil {
				return indices, err
			}

			if supported {
				indices.PresentFamily = intPtr(queueFamilyIdx)
			}
		}
	}

	if indices.TransferFamily == nil && indices.GraphicsFamily != nil {
		indices.TransferFamily = intPtr(*indices.GraphicsFamily)
	}

	return indices, nil
}

func intPtr(v int) *int {
	return &v
}
