package present

import (
	"github.com/vkngwrapper/core/core1_0"
	"github.com/vkngwrapper/vklab/internal/gpu"
)

// Views holds one color view per chain image, in image order.
type Views struct {
	device core1_0.Device
	views  []core1_0.ImageView
}

// Build creates a view for every image. If any view fails the ones already
// created are destroyed before returning.
func (v *Views) Build(device core1_0.Device, images []core1_0.Image, format core1_0.Format) error {
	v.device = device
	v.views = make([]core1_0.ImageView, 0, len(images))

	for _, image := range images {
		view, err := gpu.CreateImageView(device, image, format, core1_0.ImageAspectColor)
		if err != nil {
			v.Teardown()
			return err
		}
		v.views = append(v.views, view)
	}

	return nil
}

func (v *Views) Views() []core1_0.ImageView { return v.views }
func (v *Views) Len() int                   { return len(v.views) }

// Teardown destroys every view. Safe to call repeatedly.
func (v *Views) Teardown() {
	for _, view := range v.views {
		view.Destroy(nil)
	}
	v.views = nil
}
