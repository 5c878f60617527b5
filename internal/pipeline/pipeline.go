package pipeline

import (
	"github.com/cockroachdb/errors"
	"github.com/vkngwrapper/core/core1_0"
	"github.com/vkngwrapper/vklab/internal/buffer"
	"github.com/vkngwrapper/vklab/internal/gfxerr"
)

// Pipeline is the graphics pipeline and its layout. Viewport and scissor are
// dynamic so a chain rebuild never invalidates it.
type Pipeline struct {
	layout   core1_0.PipelineLayout
	pipeline core1_0.Pipeline
}

// New builds the pipeline from two SPIR-V blobs. The shader modules only live
// for the duration of the call.
func New(device core1_0.Device, renderPass core1_0.RenderPass, setLayout core1_0.DescriptorSetLayout, vertCode, fragCode []byte) (*Pipeline, error) {
	vertShader, err := createShaderModule(device, vertCode)
	if err != nil {
		return nil, errors.WithMessage(err, "vertex shader")
	}
	defer vertShader.Destroy(nil)

	fragShader, err := createShaderModule(device, fragCode)
	if err != nil {
		return nil, errors.WithMessage(err, "fragment shader")
	}
	defer fragShader.Destroy(nil)

	layout, res, err := device.CreatePipelineLayout(nil, core1_0.PipelineLayoutCreateInfo{
		SetLayouts: []core1_0.DescriptorSetLayout{
			setLayout,
		},
	})
	if err != nil {
		return nil, gfxerr.Result(res, err, gfxerr.ErrPipelineCreation, "createPipelineLayout")
	}

	createInfo := graphicsPipelineCreateInfo(vertShader, fragShader)
	createInfo.Layout = layout
	createInfo.RenderPass = renderPass

	pipelines, res, err := device.CreateGraphicsPipelines(nil, nil, []core1_0.GraphicsPipelineCreateInfo{createInfo})
	if err != nil {
		layout.Destroy(nil)
		return nil, gfxerr.Result(res, err, gfxerr.ErrPipelineCreation, "createGraphicsPipelines")
	}

	return &Pipeline{
		layout:   layout,
		pipeline: pipelines[0],
	}, nil
}

func (p *Pipeline) Handle() core1_0.Pipeline       { return p.pipeline }
func (p *Pipeline) Layout() core1_0.PipelineLayout { return p.layout }

func (p *Pipeline) Destroy() {
	if p == nil {
		return
	}
	if p.pipeline != nil {
		p.pipeline.Destroy(nil)
		p.pipeline = nil
	}
	if p.layout != nil {
		p.layout.Destroy(nil)
		p.layout = nil
	}
}

func dynamicStates() []core1_0.DynamicState {
	return []core1_0.DynamicState{core1_0.DynamicStateViewport, core1_0.DynamicStateScissor}
}

// graphicsPipelineCreateInfo fills in every fixed-function stage. Layout and
// render pass are left for the caller.
func graphicsPipelineCreateInfo(vertShader, fragShader core1_0.ShaderModule) core1_0.GraphicsPipelineCreateInfo {
	vertexInput := &core1_0.PipelineVertexInputStateCreateInfo{
		VertexBindingDescriptions:   buffer.VertexBindingDescriptions(),
		VertexAttributeDescriptions: buffer.VertexAttributeDescriptions(),
	}

	inputAssembly := &core1_0.PipelineInputAssemblyStateCreateInfo{
		Topology:               core1_0.PrimitiveTopologyTriangleList,
		PrimitiveRestartEnable: false,
	}

	vertStage := core1_0.PipelineShaderStageCreateInfo{
		Stage:  core1_0.StageVertex,
		Module: vertShader,
		Name:   "main",
	}

	fragStage := core1_0.PipelineShaderStageCreateInfo{
		Stage:  core1_0.StageFragment,
		Module: fragShader,
		Name:   "main",
	}

	// Counts only; the real rectangles are set while recording.
	viewport := &core1_0.PipelineViewportStateCreateInfo{
		Viewports: []core1_0.Viewport{{MinDepth: 0, MaxDepth: 1}},
		Scissors:  []core1_0.Rect2D{{}},
	}

	rasterization := &core1_0.PipelineRasterizationStateCreateInfo{
		DepthClampEnable:        false,
		RasterizerDiscardEnable: false,

		PolygonMode: core1_0.PolygonModeFill,
		CullMode:    core1_0.CullModeBack,
		FrontFace:   core1_0.FrontFaceCounterClockwise,

		DepthBiasEnable: false,

		LineWidth: 1.0,
	}

	multisample := &core1_0.PipelineMultisampleStateCreateInfo{
		SampleShadingEnable:  false,
		RasterizationSamples: core1_0.Samples1,
		MinSampleShading:     1.0,
	}

	colorBlend := &core1_0.PipelineColorBlendStateCreateInfo{
		LogicOpEnabled: false,
		LogicOp:        core1_0.LogicOpCopy,

		BlendConstants: [4]float32{0, 0, 0, 0},
		Attachments: []core1_0.PipelineColorBlendAttachmentState{
			{
				BlendEnabled:   false,
				ColorWriteMask: core1_0.ColorComponentRed | core1_0.ColorComponentGreen | core1_0.ColorComponentBlue | core1_0.ColorComponentAlpha,
			},
		},
	}

	dynamic := &core1_0.PipelineDynamicStateCreateInfo{
		DynamicStates: dynamicStates(),
	}

	return core1_0.GraphicsPipelineCreateInfo{
		Stages: []core1_0.PipelineShaderStageCreateInfo{
			vertStage,
			fragStage,
		},
		VertexInputState:   vertexInput,
		InputAssemblyState: inputAssembly,
		ViewportState:      viewport,
		RasterizationState: rasterization,
		MultisampleState:   multisample,
		ColorBlendState:    colorBlend,
		DynamicState:       dynamic,
		Subpass:            0,
		BasePipelineIndex:  -1,
	}
}
