package buffer

import (
	"github.com/vkngwrapper/core/common"
	"github.com/vkngwrapper/core/core1_0"
	"github.com/vkngwrapper/vklab/internal/gfxerr"
	"github.com/vkngwrapper/vklab/internal/gpu"
)

const textureFormat = core1_0.FormatR8G8B8A8SRGB

// Texture is a sampled RGBA image with its view and sampler.
type Texture struct {
	image   core1_0.Image
	memory  core1_0.DeviceMemory
	view    core1_0.ImageView
	sampler core1_0.Sampler
}

// NewTexture uploads pixels into a device-local image and leaves it in the
// shader-read layout. maxAnisotropy at or below 1 disables anisotropic
// filtering.
func NewTexture(a *Allocator, pixels *Pixels, maxAnisotropy float32) (*Texture, error) {
	if pixels == nil || pixels.Width <= 0 || pixels.Height <= 0 || len(pixels.Data) != pixels.Width*pixels.Height*4 {
		return nil, gfxerr.New(gfxerr.ErrTextureDecode, "texture pixels are not tightly packed RGBA8")
	}

	staging, err := a.createStaging(len(pixels.Data), core1_0.BufferUsageTransferSrc)
	if err != nil {
		return nil, err
	}
	defer staging.Destroy()

	if err := writeData(staging.Memory, 0, pixels.Data); err != nil {
		return nil, err
	}

	t := &Texture{}
	t.image, t.memory, err = a.createImage(pixels.Width, pixels.Height, textureFormat, core1_0.ImageTilingOptimal, core1_0.ImageUsageTransferDst|core1_0.ImageUsageSampled, core1_0.MemoryPropertyDeviceLocal)
	if err != nil {
		return nil, err
	}

	err = a.runner.RunOnGraphics(func(buffer core1_0.CommandBuffer) error {
		if err := transitionImageLayout(buffer, t.image, core1_0.ImageLayoutUndefined, core1_0.ImageLayoutTransferDstOptimal); err != nil {
			return err
		}
		if err := copyBufferToImage(buffer, staging.Buffer, t.image, pixels.Width, pixels.Height); err != nil {
			return err
		}
		return transitionImageLayout(buffer, t.image, core1_0.ImageLayoutTransferDstOptimal, core1_0.ImageLayoutShaderReadOnlyOptimal)
	})
	if err != nil {
		t.Destroy()
		return nil, err
	}

	t.view, err = gpu.CreateImageView(a.device, t.image, textureFormat, core1_0.ImageAspectColor)
	if err != nil {
		t.Destroy()
		return nil, err
	}

	var res common.VkResult
	t.sampler, res, err = a.device.CreateSampler(nil, samplerCreateInfo(maxAnisotropy))
	if err != nil {
		t.Destroy()
		return nil, gfxerr.Result(res, err, gfxerr.ErrResourceCreation, "createSampler")
	}

	return t, nil
}

func (t *Texture) View() core1_0.ImageView  { return t.view }
func (t *Texture) Sampler() core1_0.Sampler { return t.sampler }

func (t *Texture) Destroy() {
	if t == nil {
		return
	}
	if t.sampler != nil {
		t.sampler.Destroy(nil)
		t.sampler = nil
	}
	if t.view != nil {
		t.view.Destroy(nil)
		t.view = nil
	}
	if t.image != nil {
		t.image.Destroy(nil)
		t.image = nil
	}
	if t.memory != nil {
		t.memory.Free(nil)
		t.memory = nil
	}
}

func samplerCreateInfo(maxAnisotropy float32) core1_0.SamplerCreateInfo {
	return core1_0.SamplerCreateInfo{
		MagFilter:    core1_0.FilterLinear,
		MinFilter:    core1_0.FilterLinear,
		AddressModeU: core1_0.SamplerAddressModeRepeat,
		AddressModeV: core1_0.SamplerAddressModeRepeat,
		AddressModeW: core1_0.SamplerAddressModeRepeat,

		AnisotropyEnable: maxAnisotropy > 1,
		MaxAnisotropy:    maxAnisotropy,

		BorderColor: core1_0.BorderColorIntOpaqueBlack,

		MipmapMode: core1_0.SamplerMipmapModeLinear,
	}
}

func (a *Allocator) createImage(width, height int, format core1_0.Format, tiling core1_0.ImageTiling, usage core1_0.ImageUsageFlags, memoryProperties core1_0.MemoryPropertyFlags) (core1_0.Image, core1_0.DeviceMemory, error) {
	image, res, err := a.device.CreateImage(nil, core1_0.ImageCreateInfo{
		ImageType: core1_0.ImageType2D,
		Extent: core1_0.Extent3D{
			Width:  width,
			Height: height,
			Depth:  1,
		},
		MipLevels:     1,
		ArrayLayers:   1,
		Format:        format,
		Tiling:        tiling,
		InitialLayout: core1_0.ImageLayoutUndefined,
		Usage:         usage,
		SharingMode:   core1_0.SharingModeExclusive,
		Samples:       core1_0.Samples1,
	})
	if err != nil {
		return nil, nil, gfxerr.Result(res, err, gfxerr.ErrResourceCreation, "createImage")
	}

	memReqs := image.MemoryRequirements()
	memoryIndex, err := a.ctx.FindMemoryType(memReqs.MemoryTypeBits, memoryProperties)
	if err != nil {
		image.Destroy(nil)
		return nil, nil, err
	}

	imageMemory, res, err := a.device.AllocateMemory(nil, core1_0.MemoryAllocateInfo{
		AllocationSize:  memReqs.Size,
		MemoryTypeIndex: memoryIndex,
	})
	if err != nil {
		image.Destroy(nil)
		return nil, nil, gfxerr.Result(res, err, gfxerr.ErrResourceCreation, "allocateMemory")
	}

	res, err = image.BindImageMemory(imageMemory, 0)
	if err != nil {
		image.Destroy(nil)
		imageMemory.Free(nil)
		return nil, nil, gfxerr.Result(res, err, gfxerr.ErrResourceCreation, "bindImageMemory")
	}

	return image, imageMemory, nil
}

type layoutTransition struct {
	sourceStage, destStage   core1_0.PipelineStageFlags
	sourceAccess, destAccess core1_0.AccessFlags
}

func transitionFor(oldLayout, newLayout core1_0.ImageLayout) (layoutTransition, error) {
	if oldLayout == core1_0.ImageLayoutUndefined && newLayout == core1_0.ImageLayoutTransferDstOptimal {
		return layoutTransition{
			sourceAccess: 0,
			destAccess:   core1_0.AccessTransferWrite,
			sourceStage:  core1_0.PipelineStageTopOfPipe,
			destStage:    core1_0.PipelineStageTransfer,
		}, nil
	} else if oldLayout == core1_0.ImageLayoutTransferDstOptimal && newLayout == core1_0.ImageLayoutShaderReadOnlyOptimal {
		return layoutTransition{
			sourceAccess: core1_0.AccessTransferWrite,
			destAccess:   core1_0.AccessShaderRead,
			sourceStage:  core1_0.PipelineStageTransfer,
			destStage:    core1_0.PipelineStageFragmentShader,
		}, nil
	}

	return layoutTransition{}, gfxerr.New(gfxerr.ErrResourceCreation, "unexpected layout transition: %s -> %s", oldLayout, newLayout)
}

func transitionImageLayout(buffer core1_0.CommandBuffer, image core1_0.Image, oldLayout core1_0.ImageLayout, newLayout core1_0.ImageLayout) error {
	transition, err := transitionFor(oldLayout, newLayout)
	if err != nil {
		return err
	}

	return buffer.CmdPipelineBarrier(transition.sourceStage, transition.destStage, 0, nil, nil, []core1_0.ImageMemoryBarrier{
		{
			OldLayout:           oldLayout,
			NewLayout:           newLayout,
			SrcQueueFamilyIndex: -1,
			DstQueueFamilyIndex: -1,
			Image:               image,
			SubresourceRange: core1_0.ImageSubresourceRange{
				AspectMask:     core1_0.ImageAspectColor,
				BaseMipLevel:   0,
				LevelCount:     1,
				BaseArrayLayer: 0,
				LayerCount:     1,
			},
			SrcAccessMask: transition.sourceAccess,
			DstAccessMask: transition.destAccess,
		},
	})
}

func copyBufferToImage(cmdBuffer core1_0.CommandBuffer, buffer core1_0.Buffer, image core1_0.Image, width, height int) error {
	return cmdBuffer.CmdCopyBufferToImage(buffer, image, core1_0.ImageLayoutTransferDstOptimal, []core1_0.BufferImageCopy{
		{
			BufferOffset:      0,
			BufferRowLength:   0,
			BufferImageHeight: 0,

			ImageSubresource: core1_0.ImageSubresourceLayers{
				AspectMask:     core1_0.ImageAspectColor,
				MipLevel:       0,
				BaseArrayLayer: 0,
				LayerCount:     1,
			},
			ImageOffset: core1_0.Offset3D{X: 0, Y: 0, Z: 0},
			ImageExtent: core1_0.Extent3D{Width: width, Height: height, Depth: 1},
		},
	})
}
