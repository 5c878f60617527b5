package buffer

import (
	"unsafe"

	"github.com/go-gl/mathgl/mgl32"
	"github.com/vkngwrapper/core/core1_0"
	"github.com/vkngwrapper/vklab/internal/gfxerr"
)

// Vertex is the layout consumed by the vertex shader: location 0 position,
// location 1 color, location 2 texture coordinate.
type Vertex struct {
	Position mgl32.Vec3
	Color    mgl32.Vec3
	TexCoord mgl32.Vec2
}

func VertexBindingDescriptions() []core1_0.VertexInputBindingDescription {
	v := Vertex{}
	return []core1_0.VertexInputBindingDescription{
		{
			Binding:   0,
			Stride:    int(unsafe.Sizeof(v)),
			InputRate: core1_0.VertexInputRateVertex,
		},
	}
}

func VertexAttributeDescriptions() []core1_0.VertexInputAttributeDescription {
	v := Vertex{}
	return []core1_0.VertexInputAttributeDescription{
		{
			Binding:  0,
			Location: 0,
			Format:   core1_0.FormatR32G32B32SignedFloat,
			Offset:   int(unsafe.Offsetof(v.Position)),
		},
		{
			Binding:  0,
			Location: 1,
			Format:   core1_0.FormatR32G32B32SignedFloat,
			Offset:   int(unsafe.Offsetof(v.Color)),
		},
		{
			Binding:  0,
			Location: 2,
			Format:   core1_0.FormatR32G32SignedFloat,
			Offset:   int(unsafe.Offsetof(v.TexCoord)),
		},
	}
}

// Geometry is what the single draw call consumes.
type Geometry struct {
	Vertices []Vertex
	Indices  []uint32
}

// Quad returns the built-in colored quad: four vertices, two triangles.
func Quad() Geometry {
	return Geometry{
		Vertices: []Vertex{
			{Position: mgl32.Vec3{-0.5, -0.5, 0}, Color: mgl32.Vec3{1, 0, 0}, TexCoord: mgl32.Vec2{1, 0}},
			{Position: mgl32.Vec3{0.5, -0.5, 0}, Color: mgl32.Vec3{0, 1, 0}, TexCoord: mgl32.Vec2{0, 0}},
			{Position: mgl32.Vec3{0.5, 0.5, 0}, Color: mgl32.Vec3{0, 0, 1}, TexCoord: mgl32.Vec2{0, 1}},
			{Position: mgl32.Vec3{-0.5, 0.5, 0}, Color: mgl32.Vec3{1, 1, 1}, TexCoord: mgl32.Vec2{1, 1}},
		},
		Indices: []uint32{0, 1, 2, 2, 3, 0},
	}
}

// Mesh is a Geometry resident on the device.
type Mesh struct {
	Vertices   *Buffer
	Indices    *Buffer
	IndexCount int
}

// UploadGeometry copies g into device-local vertex and index buffers.
// extraUsage is added to both, e.g. transfer-source for readback.
func UploadGeometry(a *Allocator, g Geometry, extraUsage core1_0.BufferUsageFlags) (*Mesh, error) {
	if len(g.Vertices) == 0 || len(g.Indices) == 0 {
		return nil, gfxerr.New(gfxerr.ErrResourceCreation, "upload geometry: empty")
	}

	vertices, err := a.Upload(g.Vertices, core1_0.BufferUsageVertexBuffer|extraUsage)
	if err != nil {
		return nil, err
	}

	indices, err := a.Upload(g.Indices, core1_0.BufferUsageIndexBuffer|extraUsage)
	if err != nil {
		vertices.Destroy()
		return nil, err
	}

	return &Mesh{Vertices: vertices, Indices: indices, IndexCount: len(g.Indices)}, nil
}

func (m *Mesh) Destroy() {
	if m == nil {
		return
	}
	m.Indices.Destroy()
	m.Vertices.Destroy()
}
