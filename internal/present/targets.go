package present

import (
	"github.com/vkngwrapper/core/core1_0"
	"github.com/vkngwrapper/vklab/internal/gfxerr"
)

// Targets holds one framebuffer per image view. Framebuffer i renders into
// view i, so the acquired image index selects the framebuffer directly.
type Targets struct {
	framebuffers []core1_0.Framebuffer
}

func (t *Targets) Build(device core1_0.Device, renderPass core1_0.RenderPass, views []core1_0.ImageView, extent core1_0.Extent2D) error {
	t.framebuffers = make([]core1_0.Framebuffer, 0, len(views))

	for _, view := range views {
		framebuffer, res, err := device.CreateFramebuffer(nil, core1_0.FramebufferCreateInfo{
			RenderPass:  renderPass,
			Layers:      1,
			Attachments: []core1_0.ImageView{view},
			Width:       extent.Width,
			Height:      extent.Height,
		})
		if err != nil {
			t.Teardown()
			return gfxerr.Result(res, err, gfxerr.ErrResourceCreation, "createFramebuffer")
		}
		t.framebuffers = append(t.framebuffers, framebuffer)
	}

	return nil
}

func (t *Targets) Framebuffer(imageIndex int) core1_0.Framebuffer { return t.framebuffers[imageIndex] }
func (t *Targets) Len() int                                       { return len(t.framebuffers) }

func (t *Targets) Teardown() {
	for _, framebuffer := range t.framebuffers {
		framebuffer.Destroy(nil)
	}
	t.framebuffers = nil
}
