package pipeline

import (
	"github.com/vkngwrapper/core/core1_0"
	"github.com/vkngwrapper/vklab/internal/gfxerr"
)

const (
	UniformBinding = 0
	SamplerBinding = 1
)

// CreateDescriptorSetLayout describes the per-frame resources: the uniform
// block for the vertex stage and, when textured, a combined image sampler for
// the fragment stage.
func CreateDescriptorSetLayout(device core1_0.Device, textured bool) (core1_0.DescriptorSetLayout, error) {
	layout, res, err := device.CreateDescriptorSetLayout(nil, core1_0.DescriptorSetLayoutCreateInfo{
		Bindings: layoutBindings(textured),
	})
	if err != nil {
		return nil, gfxerr.Result(res, err, gfxerr.ErrPipelineCreation, "createDescriptorSetLayout")
	}
	return layout, nil
}

func layoutBindings(textured bool) []core1_0.DescriptorSetLayoutBinding {
	bindings := []core1_0.DescriptorSetLayoutBinding{
		{
			Binding:         UniformBinding,
			DescriptorType:  core1_0.DescriptorTypeUniformBuffer,
			DescriptorCount: 1,

			StageFlags: core1_0.StageVertex,
		},
	}
	if textured {
		bindings = append(bindings, core1_0.DescriptorSetLayoutBinding{
			Binding:         SamplerBinding,
			DescriptorType:  core1_0.DescriptorTypeCombinedImageSampler,
			DescriptorCount: 1,

			StageFlags: core1_0.StageFragment,
		})
	}
	return bindings
}
