// Package resource owns the command pools and the descriptor pool, and hands
// out per-slot command buffers and descriptor sets from them.
package resource

import (
	"github.com/vkngwrapper/core/core1_0"
	"github.com/vkngwrapper/vklab/internal/gfxerr"
	"github.com/vkngwrapper/vklab/internal/gpu"
)

// Queues is the part of the graphics context the pools need.
type Queues interface {
	Device() core1_0.Device
	GraphicsQueue() core1_0.Queue
	TransferQueue() core1_0.Queue
	QueueFamilies() gpu.QueueFamilyIndices
}

type Pools struct {
	device        core1_0.Device
	graphicsQueue core1_0.Queue
	transferQueue core1_0.Queue

	graphicsPool core1_0.CommandPool
	transferPool core1_0.CommandPool

	descriptorPool core1_0.DescriptorPool
}

// New creates a resettable command pool on the graphics family and a
// short-lived pool on the transfer family. The two families may be the same.
func New(queues Queues) (*Pools, error) {
	indices := queues.QueueFamilies()
	if !indices.IsComplete() || indices.TransferFamily == nil {
		return nil, gfxerr.New(gfxerr.ErrResourceCreation, "createCommandPool: queue families not resolved")
	}

	p := &Pools{
		device:        queues.Device(),
		graphicsQueue: queues.GraphicsQueue(),
		transferQueue: queues.TransferQueue(),
	}

	var err error
	p.graphicsPool, err = p.createCommandPool(*indices.GraphicsFamily, core1_0.CommandPoolCreateResetBuffer)
	if err != nil {
		return nil, err
	}

	p.transferPool, err = p.createCommandPool(*indices.TransferFamily, core1_0.CommandPoolCreateTransient)
	if err != nil {
		p.Teardown()
		return nil, err
	}

	return p, nil
}

func (p *Pools) createCommandPool(family int, flags core1_0.CommandPoolCreateFlags) (core1_0.CommandPool, error) {
	pool, res, err := p.device.CreateCommandPool(nil, core1_0.CommandPoolCreateInfo{
		Flags:            flags,
		QueueFamilyIndex: family,
	})
	if err != nil {
		return nil, gfxerr.Result(res, err, gfxerr.ErrResourceCreation, "createCommandPool")
	}
	return pool, nil
}

// AllocateFrameBuffers allocates n primary command buffers from the graphics
// pool, one per in-flight slot. They are reset and re-recorded every frame.
func (p *Pools) AllocateFrameBuffers(n int) ([]core1_0.CommandBuffer, error) {
	buffers, res, err := p.device.AllocateCommandBuffers(core1_0.CommandBufferAllocateInfo{
		CommandPool:        p.graphicsPool,
		Level:              core1_0.CommandBufferLevelPrimary,
		CommandBufferCount: n,
	})
	if err != nil {
		return nil, gfxerr.Result(res, err, gfxerr.ErrResourceCreation, "allocateCommandBuffers")
	}
	return buffers, nil
}

// RunOnGraphics records a one-shot command buffer on the graphics queue and
// waits for it to finish. Image layout transitions that touch shader stages
// must go through here.
func (p *Pools) RunOnGraphics(record func(core1_0.CommandBuffer) error) error {
	return runOnce(p.device, p.graphicsPool, p.graphicsQueue, record)
}

// RunOnTransfer is RunOnGraphics for the transfer queue.
func (p *Pools) RunOnTransfer(record func(core1_0.CommandBuffer) error) error {
	return runOnce(p.device, p.transferPool, p.transferQueue, record)
}

func runOnce(device core1_0.Device, pool core1_0.CommandPool, queue core1_0.Queue, record func(core1_0.CommandBuffer) error) error {
	buffers, res, err := device.AllocateCommandBuffers(core1_0.CommandBufferAllocateInfo{
		CommandPool:        pool,
		Level:              core1_0.CommandBufferLevelPrimary,
		CommandBufferCount: 1,
	})
	if err != nil {
		return gfxerr.Result(res, err, gfxerr.ErrResourceCreation, "beginSingleTimeCommands")
	}
	defer device.FreeCommandBuffers(buffers)

	buffer := buffers[0]
	res, err = buffer.Begin(core1_0.CommandBufferBeginInfo{
		Flags: core1_0.CommandBufferUsageOneTimeSubmit,
	})
	if err != nil {
		return gfxerr.Result(res, err, gfxerr.ErrResourceCreation, "beginSingleTimeCommands")
	}

	if err := record(buffer); err != nil {
		return err
	}

	res, err = buffer.End()
	if err != nil {
		return gfxerr.Result(res, err, gfxerr.ErrResourceCreation, "endSingleTimeCommands")
	}

	res, err = queue.Submit(nil, []core1_0.SubmitInfo{
		{
			CommandBuffers: []core1_0.CommandBuffer{buffer},
		},
	})
	if err != nil {
		return gfxerr.Result(res, err, gfxerr.ErrSubmit, "endSingleTimeCommands")
	}

	res, err = queue.WaitIdle()
	if err != nil {
		return gfxerr.Result(res, err, gfxerr.ErrSubmit, "endSingleTimeCommands")
	}

	return nil
}

// Teardown destroys the descriptor pool and both command pools, freeing
// everything allocated from them. Safe to call repeatedly.
func (p *Pools) Teardown() {
	if p.descriptorPool != nil {
		p.descriptorPool.Destroy(nil)
		p.descriptorPool = nil
	}

	if p.transferPool != nil {
		p.transferPool.Destroy(nil)
		p.transferPool = nil
	}
	if p.graphicsPool != nil {
		p.graphicsPool.Destroy(nil)
		p.graphicsPool = nil
	}
}
