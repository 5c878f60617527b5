// Package buffer creates and fills the GPU buffers the frame draws from:
// device-local vertex and index buffers uploaded through staging, persistently
// mapped uniform buffers, and the optional texture image.
package buffer

import (
	"bytes"
	"encoding/binary"
	"unsafe"

	"github.com/vkngwrapper/core/common"
	"github.com/vkngwrapper/core/core1_0"
	"github.com/vkngwrapper/vklab/internal/gfxerr"
	"github.com/vkngwrapper/vklab/internal/gpu"
)

// Device is the part of the graphics context buffers are allocated against.
type Device interface {
	Device() core1_0.Device
	FindMemoryType(typeFilter uint32, properties core1_0.MemoryPropertyFlags) (int, error)
	QueueFamilies() gpu.QueueFamilyIndices
}

// CommandRunner submits one-shot command buffers and waits for them.
type CommandRunner interface {
	RunOnGraphics(record func(core1_0.CommandBuffer) error) error
	RunOnTransfer(record func(core1_0.CommandBuffer) error) error
}

// Buffer is a buffer handle with its dedicated allocation.
type Buffer struct {
	Buffer core1_0.Buffer
	Memory core1_0.DeviceMemory
	Size   int
}

// Destroy releases the buffer and its memory. Safe on nil and on repeat.
func (b *Buffer) Destroy() {
	if b == nil {
		return
	}
	if b.Buffer != nil {
		b.Buffer.Destroy(nil)
		b.Buffer = nil
	}
	if b.Memory != nil {
		b.Memory.Free(nil)
		b.Memory = nil
	}
}

type Allocator struct {
	ctx    Device
	device core1_0.Device
	runner CommandRunner

	sharingMode   core1_0.SharingMode
	queueFamilies []int
}

func NewAllocator(ctx Device, runner CommandRunner) *Allocator {
	sharingMode, families := bufferSharing(ctx.QueueFamilies())
	return &Allocator{
		ctx:           ctx,
		device:        ctx.Device(),
		runner:        runner,
		sharingMode:   sharingMode,
		queueFamilies: families,
	}
}

// bufferSharing picks concurrent sharing when uploads run on a transfer family
// other than the one that draws.
func bufferSharing(indices gpu.QueueFamilyIndices) (core1_0.SharingMode, []int) {
	if !indices.DedicatedTransfer() {
		return core1_0.SharingModeExclusive, nil
	}
	return core1_0.SharingModeConcurrent, []int{*indices.GraphicsFamily, *indices.TransferFamily}
}

// Create allocates a buffer of size bytes and binds dedicated memory with the
// requested properties to it.
func (a *Allocator) Create(size int, usage core1_0.BufferUsageFlags, properties core1_0.MemoryPropertyFlags) (*Buffer, error) {
	if size <= 0 {
		return nil, gfxerr.New(gfxerr.ErrResourceCreation, "createBuffer: invalid size %d", size)
	}

	buffer, res, err := a.device.CreateBuffer(nil, core1_0.BufferCreateInfo{
		Size:               size,
		Usage:              usage,
		SharingMode:        a.sharingMode,
		QueueFamilyIndices: a.queueFamilies,
	})
	if err != nil {
		return nil, gfxerr.Result(res, err, gfxerr.ErrResourceCreation, "createBuffer")
	}
	out := &Buffer{Buffer: buffer, Size: size}

	memRequirements := buffer.MemoryRequirements()
	memoryTypeIndex, err := a.ctx.FindMemoryType(memRequirements.MemoryTypeBits, properties)
	if err != nil {
		out.Destroy()
		return nil, err
	}

	memory, res, err := a.device.AllocateMemory(nil, core1_0.MemoryAllocateInfo{
		AllocationSize:  memRequirements.Size,
		MemoryTypeIndex: memoryTypeIndex,
	})
	if err != nil {
		out.Destroy()
		return nil, gfxerr.Result(res, err, gfxerr.ErrResourceCreation, "allocateMemory")
	}
	out.Memory = memory

	res, err = buffer.BindBufferMemory(memory, 0)
	if err != nil {
		out.Destroy()
		return nil, gfxerr.Result(res, err, gfxerr.ErrResourceCreation, "bindBufferMemory")
	}

	return out, nil
}

func (a *Allocator) createStaging(size int, usage core1_0.BufferUsageFlags) (*Buffer, error) {
	return a.Create(size, usage, core1_0.MemoryPropertyHostVisible|core1_0.MemoryPropertyHostCoherent)
}

// Upload copies data into a new device-local buffer through a staging buffer
// on the transfer queue. The staging buffer is released on every path.
func (a *Allocator) Upload(data any, usage core1_0.BufferUsageFlags) (*Buffer, error) {
	bufferSize := binary.Size(data)
	if bufferSize <= 0 {
		return nil, gfxerr.New(gfxerr.ErrResourceCreation, "upload: data of type %T has no fixed size", data)
	}

	staging, err := a.createStaging(bufferSize, core1_0.BufferUsageTransferSrc)
	if err != nil {
		return nil, err
	}
	defer staging.Destroy()

	if err := writeData(staging.Memory, 0, data); err != nil {
		return nil, err
	}

	buffer, err := a.Create(bufferSize, core1_0.BufferUsageTransferDst|usage, core1_0.MemoryPropertyDeviceLocal)
	if err != nil {
		return nil, err
	}

	if err := a.copyBuffer(staging.Buffer, buffer.Buffer, bufferSize); err != nil {
		buffer.Destroy()
		return nil, err
	}

	return buffer, nil
}

// Download reads a buffer back to host memory. The source must have been
// created with the transfer-source usage.
func (a *Allocator) Download(src *Buffer) ([]byte, error) {
	staging, err := a.createStaging(src.Size, core1_0.BufferUsageTransferDst)
	if err != nil {
		return nil, err
	}
	defer staging.Destroy()

	if err := a.copyBuffer(src.Buffer, staging.Buffer, src.Size); err != nil {
		return nil, err
	}

	memoryPtr, res, err := staging.Memory.Map(0, src.Size, 0)
	if err != nil {
		return nil, gfxerr.Result(res, err, gfxerr.ErrResourceCreation, "map")
	}
	defer staging.Memory.Unmap()

	out := make([]byte, src.Size)
	copy(out, unsafe.Slice((*byte)(memoryPtr), src.Size))
	return out, nil
}

func (a *Allocator) copyBuffer(srcBuffer core1_0.Buffer, dstBuffer core1_0.Buffer, size int) error {
	return a.runner.RunOnTransfer(func(buffer core1_0.CommandBuffer) error {
		return buffer.CmdCopyBuffer(srcBuffer, dstBuffer, []core1_0.BufferCopy{
			{
				SrcOffset: 0,
				DstOffset: 0,
				Size:      size,
			},
		})
	})
}

func writeData(memory core1_0.DeviceMemory, offset int, data any) error {
	bufferSize := binary.Size(data)

	memoryPtr, res, err := memory.Map(offset, bufferSize, 0)
	if err != nil {
		return gfxerr.Result(res, err, gfxerr.ErrResourceCreation, "map")
	}
	defer memory.Unmap()

	dataBuffer := unsafe.Slice((*byte)(memoryPtr), bufferSize)

	buf := &bytes.Buffer{}
	err = binary.Write(buf, common.ByteOrder, data)
	if err != nil {
		return gfxerr.Wrap(err, gfxerr.ErrResourceCreation, "encode buffer data")
	}

	copy(dataBuffer, buf.Bytes())
	return nil
}
