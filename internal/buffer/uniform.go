package buffer

import (
	"bytes"
	"encoding/binary"
	"math"
	"unsafe"

	"github.com/go-gl/mathgl/mgl32"
	"github.com/vkngwrapper/core/common"
	"github.com/vkngwrapper/core/core1_0"
	"github.com/vkngwrapper/vklab/internal/gfxerr"
)

type UniformBufferObject struct {
	Model mgl32.Mat4
	View  mgl32.Mat4
	Proj  mgl32.Mat4
}

// UniformBufferSize is the byte size of one uniform block.
const UniformBufferSize = int(unsafe.Sizeof(UniformBufferObject{}))

// ComputeUniforms spins the model a quarter turn per second about Z and looks
// at it from (2,2,2). The projection flips Y for Vulkan's clip space.
func ComputeUniforms(seconds float64, extent core1_0.Extent2D) UniformBufferObject {
	timePeriod := float32(math.Mod(seconds, 4.0))

	ubo := UniformBufferObject{}
	ubo.Model = mgl32.HomogRotate3D(timePeriod*mgl32.DegToRad(90.0), mgl32.Vec3{0, 0, 1})
	ubo.View = mgl32.LookAt(2, 2, 2, 0, 0, 0, 0, 0, 1)

	aspectRatio := float32(1)
	if extent.Height > 0 {
		aspectRatio = float32(extent.Width) / float32(extent.Height)
	}

	near := 0.1
	far := 10.0
	fovy := mgl32.DegToRad(45)
	fmn, f := far-near, float32(1./math.Tan(float64(fovy)/2.0))

	ubo.Proj = mgl32.Mat4{float32(f / aspectRatio), 0, 0, 0, 0, float32(-f), 0, 0, 0, 0, float32(-far / fmn), -1, 0, 0, float32(-(far * near) / fmn), 0}

	return ubo
}

// UniformBuffers holds one host-visible uniform buffer per in-flight slot.
// Each is mapped once at creation and stays mapped until Teardown.
type UniformBuffers struct {
	buffers []*Buffer
	mapped  [][]byte
	scratch bytes.Buffer
}

func NewUniformBuffers(a *Allocator, slots int) (*UniformBuffers, error) {
	u := &UniformBuffers{}
	for i := 0; i < slots; i++ {
		buffer, err := a.Create(UniformBufferSize, core1_0.BufferUsageUniformBuffer, core1_0.MemoryPropertyHostVisible|core1_0.MemoryPropertyHostCoherent)
		if err != nil {
			u.Teardown()
			return nil, err
		}

		memoryPtr, res, err := buffer.Memory.Map(0, UniformBufferSize, 0)
		if err != nil {
			buffer.Destroy()
			u.Teardown()
			return nil, gfxerr.Result(res, err, gfxerr.ErrResourceCreation, "map uniform buffer")
		}

		u.buffers = append(u.buffers, buffer)
		u.mapped = append(u.mapped, unsafe.Slice((*byte)(memoryPtr), UniformBufferSize))
	}
	return u, nil
}

// Write copies ubo into slot's mapped buffer. The slot's fence must have
// signaled so the GPU is no longer reading it.
func (u *UniformBuffers) Write(slot int, ubo *UniformBufferObject) error {
	u.scratch.Reset()
	if err := binary.Write(&u.scratch, common.ByteOrder, ubo); err != nil {
		return gfxerr.Wrap(err, gfxerr.ErrResourceCreation, "encode uniforms")
	}
	copy(u.mapped[slot], u.scratch.Bytes())
	return nil
}

func (u *UniformBuffers) Buffers() []core1_0.Buffer {
	handles := make([]core1_0.Buffer, len(u.buffers))
	for i, buffer := range u.buffers {
		handles[i] = buffer.Buffer
	}
	return handles
}

func (u *UniformBuffers) Len() int { return len(u.buffers) }

func (u *UniformBuffers) Teardown() {
	for _, buffer := range u.buffers {
		if buffer.Memory != nil {
			buffer.Memory.Unmap()
		}
		buffer.Destroy()
	}
	u.buffers = nil
	u.mapped = nil
}
