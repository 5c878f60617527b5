package resource

import (
	"github.com/cockroachdb/errors"
	"github.com/vkngwrapper/core/core1_0"
	"github.com/vkngwrapper/vklab/internal/gfxerr"
	"github.com/vkngwrapper/vklab/internal/pipeline"
)

var errSlotMismatch = errors.New("descriptor slot count mismatch")

// Texture is the sampled image bound at the sampler binding.
type Texture struct {
	View    core1_0.ImageView
	Sampler core1_0.Sampler
}

// CreateDescriptorSets sizes a descriptor pool for one set per uniform buffer
// and allocates those sets, writing each with its slot's uniform buffer and,
// when texture is non-nil, the texture.
func (p *Pools) CreateDescriptorSets(layout core1_0.DescriptorSetLayout, uniformBuffers []core1_0.Buffer, uniformRange int, texture *Texture) ([]core1_0.DescriptorSet, error) {
	n := len(uniformBuffers)
	if n == 0 {
		return nil, gfxerr.Wrap(errSlotMismatch, gfxerr.ErrResourceCreation, "createDescriptorSets: no uniform buffers")
	}

	pool, res, err := p.device.CreateDescriptorPool(nil, core1_0.DescriptorPoolCreateInfo{
		MaxSets:   n,
		PoolSizes: descriptorPoolSizes(n, texture != nil),
	})
	if err != nil {
		return nil, gfxerr.Result(res, err, gfxerr.ErrResourceCreation, "createDescriptorPool")
	}
	p.descriptorPool = pool

	allocLayouts := make([]core1_0.DescriptorSetLayout, n)
	for i := range allocLayouts {
		allocLayouts[i] = layout
	}

	sets, res, err := p.device.AllocateDescriptorSets(core1_0.DescriptorSetAllocateInfo{
		DescriptorPool: pool,
		SetLayouts:     allocLayouts,
	})
	if err != nil {
		return nil, gfxerr.Result(res, err, gfxerr.ErrResourceCreation, "allocateDescriptorSets")
	}
	if len(sets) != n {
		return nil, gfxerr.Wrapf(errSlotMismatch, gfxerr.ErrResourceCreation, "allocateDescriptorSets: got %d sets for %d slots", len(sets), n)
	}

	for i, set := range sets {
		err = p.device.UpdateDescriptorSets(descriptorWrites(set, uniformBuffers[i], uniformRange, texture), nil)
		if err != nil {
			return nil, gfxerr.Wrap(err, gfxerr.ErrResourceCreation, "updateDescriptorSets")
		}
	}

	return sets, nil
}

func descriptorPoolSizes(n int, textured bool) []core1_0.DescriptorPoolSize {
	sizes := []core1_0.DescriptorPoolSize{
		{
			Type:            core1_0.DescriptorTypeUniformBuffer,
			DescriptorCount: n,
		},
	}
	if textured {
		sizes = append(sizes, core1_0.DescriptorPoolSize{
			Type:            core1_0.DescriptorTypeCombinedImageSampler,
			DescriptorCount: n,
		})
	}
	return sizes
}

func descriptorWrites(set core1_0.DescriptorSet, uniformBuffer core1_0.Buffer, uniformRange int, texture *Texture) []core1_0.WriteDescriptorSet {
	writes := []core1_0.WriteDescriptorSet{
		{
			DstSet:          set,
			DstBinding:      pipeline.UniformBinding,
			DstArrayElement: 0,

			DescriptorType: core1_0.DescriptorTypeUniformBuffer,

			BufferInfo: []core1_0.DescriptorBufferInfo{
				{
					Buffer: uniformBuffer,
					Offset: 0,
					Range:  uniformRange,
				},
			},
		},
	}

	if texture != nil {
		writes = append(writes, core1_0.WriteDescriptorSet{
			DstSet:          set,
			DstBinding:      pipeline.SamplerBinding,
			DstArrayElement: 0,

			DescriptorType: core1_0.DescriptorTypeCombinedImageSampler,

			ImageInfo: []core1_0.DescriptorImageInfo{
				{
					ImageView:   texture.View,
					Sampler:     texture.Sampler,
					ImageLayout: core1_0.ImageLayoutShaderReadOnlyOptimal,
				},
			},
		})
	}

	return writes
}
