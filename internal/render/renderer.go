// Package render assembles the GPU objects for the single draw call and
// implements the frame scheduler's backend on top of them.
package render

import (
	"time"

	"github.com/loov/hrtime"
	"github.com/vkngwrapper/core/common"
	"github.com/vkngwrapper/core/core1_0"
	"github.com/vkngwrapper/extensions/khr_swapchain"
	"golang.org/x/exp/slog"

	"github.com/vkngwrapper/vklab/internal/buffer"
	"github.com/vkngwrapper/vklab/internal/config"
	"github.com/vkngwrapper/vklab/internal/frame"
	"github.com/vkngwrapper/vklab/internal/gfxerr"
	"github.com/vkngwrapper/vklab/internal/gpu"
	"github.com/vkngwrapper/vklab/internal/logging"
	"github.com/vkngwrapper/vklab/internal/pipeline"
	"github.com/vkngwrapper/vklab/internal/present"
	"github.com/vkngwrapper/vklab/internal/resource"
)

type syncObjects struct {
	imageAvailable core1_0.Semaphore
	renderFinished core1_0.Semaphore
	inFlight       core1_0.Fence
}

// Renderer owns everything created on top of the graphics context. The
// chain, views and targets are rebuilt on resize; the rest lives until
// Destroy.
type Renderer struct {
	ctx    *gpu.Context
	device core1_0.Device
	window present.FramebufferSizer
	logger *slog.Logger

	chain   *present.Chain
	views   present.Views
	targets present.Targets

	renderPass       core1_0.RenderPass
	renderPassFormat core1_0.Format
	setLayout        core1_0.DescriptorSetLayout
	pipeline         *pipeline.Pipeline

	pools          *resource.Pools
	allocator      *buffer.Allocator
	mesh           *buffer.Mesh
	texture        *buffer.Texture
	uniforms       *buffer.UniformBuffers
	descriptorSets []core1_0.DescriptorSet
	commandBuffers []core1_0.CommandBuffer
	sync           []syncObjects

	clearColor core1_0.ClearValueFloat
	start      time.Duration
	elapsed    func() float64

	cleanup scope
}

var _ frame.Backend = (*Renderer)(nil)

// New builds the renderer in dependency order. If any step fails, whatever
// was built is destroyed in reverse before New returns.
func New(ctx *gpu.Context, window present.FramebufferSizer, cfg config.Render, logger *slog.Logger) (*Renderer, error) {
	r := &Renderer{
		ctx:        ctx,
		device:     ctx.Device(),
		window:     window,
		logger:     logging.OrDiscard(logger),
		clearColor: core1_0.ClearValueFloat(cfg.ClearColor),
	}
	r.chain = present.NewChain(ctx, logging.Component(r.logger, "chain"))
	r.start = hrtime.Now()
	r.elapsed = func() float64 { return hrtime.Since(r.start).Seconds() }

	if err := r.initialize(cfg); err != nil {
		r.Destroy()
		return nil, err
	}

	return r, nil
}

func (r *Renderer) initialize(cfg config.Render) error {
	vertCode, err := pipeline.ReadShader(cfg.VertexShader)
	if err != nil {
		return err
	}
	fragCode, err := pipeline.ReadShader(cfg.FragmentShader)
	if err != nil {
		return err
	}

	geometry := buffer.Quad()
	if cfg.Mesh != "" {
		geometry, err = buffer.LoadMesh(cfg.Mesh)
		if err != nil {
			return err
		}
	}

	var pixels *buffer.Pixels
	if cfg.Texture != "" {
		pixels, err = buffer.LoadImage(cfg.Texture)
		if err != nil {
			return err
		}
	}

	if err := r.chain.Build(r.window); err != nil {
		return err
	}
	if err := r.views.Build(r.device, r.chain.Images(), r.chain.Format()); err != nil {
		return err
	}

	r.renderPassFormat = r.chain.Format()
	r.renderPass, err = pipeline.CreateRenderPass(r.device, r.renderPassFormat)
	if err != nil {
		return err
	}
	r.cleanup.add(func() { r.renderPass.Destroy(nil) })

	r.setLayout, err = pipeline.CreateDescriptorSetLayout(r.device, pixels != nil)
	if err != nil {
		return err
	}
	r.cleanup.add(func() { r.setLayout.Destroy(nil) })

	r.pipeline, err = pipeline.New(r.device, r.renderPass, r.setLayout, vertCode, fragCode)
	if err != nil {
		return err
	}
	r.cleanup.add(r.pipeline.Destroy)

	if err := r.targets.Build(r.device, r.renderPass, r.views.Views(), r.chain.Extent()); err != nil {
		return err
	}

	r.pools, err = resource.New(r.ctx)
	if err != nil {
		return err
	}
	r.cleanup.add(r.pools.Teardown)

	r.allocator = buffer.NewAllocator(r.ctx, r.pools)

	r.mesh, err = buffer.UploadGeometry(r.allocator, geometry, 0)
	if err != nil {
		return err
	}
	r.cleanup.add(r.mesh.Destroy)

	var texture *resource.Texture
	if pixels != nil {
		maxAnisotropy, err := r.ctx.MaxSamplerAnisotropy()
		if err != nil {
			return gfxerr.Wrap(err, gfxerr.ErrResourceCreation, "query sampler anisotropy")
		}
		r.texture, err = buffer.NewTexture(r.allocator, pixels, maxAnisotropy)
		if err != nil {
			return err
		}
		r.cleanup.add(r.texture.Destroy)
		texture = &resource.Texture{View: r.texture.View(), Sampler: r.texture.Sampler()}
	}

	r.uniforms, err = buffer.NewUniformBuffers(r.allocator, cfg.FramesInFlight)
	if err != nil {
		return err
	}
	r.cleanup.add(r.uniforms.Teardown)

	r.descriptorSets, err = r.pools.CreateDescriptorSets(r.setLayout, r.uniforms.Buffers(), buffer.UniformBufferSize, texture)
	if err != nil {
		return err
	}

	r.commandBuffers, err = r.pools.AllocateFrameBuffers(cfg.FramesInFlight)
	if err != nil {
		return err
	}

	if err := r.createSyncObjects(cfg.FramesInFlight); err != nil {
		return err
	}

	r.logger.Info("renderer ready",
		"framesInFlight", cfg.FramesInFlight,
		"vertices", len(geometry.Vertices),
		"indices", len(geometry.Indices),
		"textured", r.texture != nil)
	return nil
}

func (r *Renderer) createSyncObjects(slots int) error {
	for i := 0; i < slots; i++ {
		imageAvailable, res, err := r.device.CreateSemaphore(nil, core1_0.SemaphoreCreateInfo{})
		if err != nil {
			return gfxerr.Result(res, err, gfxerr.ErrResourceCreation, "createSemaphore")
		}
		r.cleanup.add(func() { imageAvailable.Destroy(nil) })

		renderFinished, res, err := r.device.CreateSemaphore(nil, core1_0.SemaphoreCreateInfo{})
		if err != nil {
			return gfxerr.Result(res, err, gfxerr.ErrResourceCreation, "createSemaphore")
		}
		r.cleanup.add(func() { renderFinished.Destroy(nil) })

		fence, res, err := r.device.CreateFence(nil, core1_0.FenceCreateInfo{
			Flags: core1_0.FenceCreateSignaled,
		})
		if err != nil {
			return gfxerr.Result(res, err, gfxerr.ErrResourceCreation, "createFence")
		}
		r.cleanup.add(func() { fence.Destroy(nil) })

		objects := syncObjects{
			imageAvailable: imageAvailable,
			renderFinished: renderFinished,
			inFlight:       fence,
		}
		r.sync = append(r.sync, objects)
	}
	return nil
}

// Destroy waits for the device to go idle and releases everything in reverse
// creation order. Safe to call more than once.
func (r *Renderer) Destroy() {
	if err := r.ctx.WaitIdle(); err != nil {
		r.logger.Warn("wait idle before destroy", "error", err)
	}
	r.TeardownChain()
	r.cleanup.unwind()
	r.sync = nil
	r.commandBuffers = nil
	r.descriptorSets = nil
}

func (r *Renderer) WaitForFence(slot int) error {
	_, err := r.device.WaitForFences(true, common.NoTimeout, []core1_0.Fence{r.sync[slot].inFlight})
	return err
}

func (r *Renderer) AcquireImage(slot int) (int, frame.ChainStatus, error) {
	imageIndex, res, err := r.chain.AcquireNextImage(r.sync[slot].imageAvailable)
	status, err := chainStatus(res, err)
	return imageIndex, status, err
}

func (r *Renderer) UpdateUniforms(slot int) error {
	ubo := buffer.ComputeUniforms(r.elapsed(), r.chain.Extent())
	return r.uniforms.Write(slot, &ubo)
}

func (r *Renderer) ResetFence(slot int) error {
	_, err := r.device.ResetFences([]core1_0.Fence{r.sync[slot].inFlight})
	return err
}

// Record re-records the slot's command buffer to draw into the framebuffer of
// imageIndex.
func (r *Renderer) Record(slot, imageIndex int) error {
	commandBuffer := r.commandBuffers[slot]
	extent := r.chain.Extent()

	if _, err := commandBuffer.Reset(0); err != nil {
		return err
	}
	if _, err := commandBuffer.Begin(core1_0.CommandBufferBeginInfo{}); err != nil {
		return err
	}

	err := commandBuffer.CmdBeginRenderPass(core1_0.SubpassContentsInline,
		core1_0.RenderPassBeginInfo{
			RenderPass:  r.renderPass,
			Framebuffer: r.targets.Framebuffer(imageIndex),
			RenderArea: core1_0.Rect2D{
				Offset: core1_0.Offset2D{X: 0, Y: 0},
				Extent: extent,
			},
			ClearValues: []core1_0.ClearValue{
				r.clearColor,
			},
		})
	if err != nil {
		return err
	}

	commandBuffer.CmdBindPipeline(core1_0.PipelineBindPointGraphics, r.pipeline.Handle())
	commandBuffer.CmdSetViewport([]core1_0.Viewport{
		{
			X:        0,
			Y:        0,
			Width:    float32(extent.Width),
			Height:   float32(extent.Height),
			MinDepth: 0,
			MaxDepth: 1,
		},
	})
	commandBuffer.CmdSetScissor([]core1_0.Rect2D{
		{
			Offset: core1_0.Offset2D{X: 0, Y: 0},
			Extent: extent,
		},
	})
	commandBuffer.CmdBindVertexBuffers(0, []core1_0.Buffer{r.mesh.Vertices.Buffer}, []int{0})
	commandBuffer.CmdBindIndexBuffer(r.mesh.Indices.Buffer, 0, core1_0.IndexTypeUInt32)
	commandBuffer.CmdBindDescriptorSets(core1_0.PipelineBindPointGraphics, r.pipeline.Layout(), []core1_0.DescriptorSet{
		r.descriptorSets[slot],
	}, nil)
	commandBuffer.CmdDrawIndexed(r.mesh.IndexCount, 1, 0, 0, 0)
	commandBuffer.CmdEndRenderPass()

	_, err = commandBuffer.End()
	return err
}

func (r *Renderer) Submit(slot int) error {
	objects := r.sync[slot]
	_, err := r.ctx.GraphicsQueue().Submit(objects.inFlight, []core1_0.SubmitInfo{
		{
			WaitSemaphores:   []core1_0.Semaphore{objects.imageAvailable},
			WaitDstStageMask: []core1_0.PipelineStageFlags{core1_0.PipelineStageColorAttachmentOutput},
			CommandBuffers:   []core1_0.CommandBuffer{r.commandBuffers[slot]},
			SignalSemaphores: []core1_0.Semaphore{objects.renderFinished},
		},
	})
	return err
}

func (r *Renderer) Present(slot, imageIndex int) (frame.ChainStatus, error) {
	res, err := r.chain.Present(r.ctx.PresentQueue(), r.sync[slot].renderFinished, imageIndex)
	return chainStatus(res, err)
}

// TeardownChain destroys targets, views and chain. The caller guarantees the
// device is idle.
func (r *Renderer) TeardownChain() {
	r.targets.Teardown()
	r.views.Teardown()
	r.chain.Teardown()
}

// BuildChain recreates chain, views and targets for the current window size.
// The render pass is reused, so the chain format must not change.
func (r *Renderer) BuildChain() error {
	if err := r.chain.Build(r.window); err != nil {
		return err
	}
	if r.chain.Format() != r.renderPassFormat {
		return gfxerr.New(gfxerr.ErrChainCreation, "surface format changed from %s to %s", r.renderPassFormat, r.chain.Format())
	}
	if err := r.views.Build(r.device, r.chain.Images(), r.chain.Format()); err != nil {
		return err
	}
	if err := r.targets.Build(r.device, r.renderPass, r.views.Views(), r.chain.Extent()); err != nil {
		return err
	}
	if r.targets.Len() != r.chain.Len() {
		return gfxerr.New(gfxerr.ErrChainCreation, "built %d targets for %d chain images", r.targets.Len(), r.chain.Len())
	}
	return nil
}

func (r *Renderer) WaitIdle() error {
	return r.ctx.WaitIdle()
}

// chainStatus folds the presentation engine's out-of-date and suboptimal
// results into a status. Anything else that came with an error is returned
// as is.
func chainStatus(res common.VkResult, err error) (frame.ChainStatus, error) {
	switch {
	case res == khr_swapchain.VKErrorOutOfDate:
		return frame.ChainOutOfDate, nil
	case err != nil:
		return frame.ChainOK, err
	case res == khr_swapchain.VKSuboptimal:
		return frame.ChainSuboptimal, nil
	}
	return frame.ChainOK, nil
}
