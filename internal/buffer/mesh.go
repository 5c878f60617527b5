package buffer

import (
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/g3n/engine/loader/obj"
	"github.com/go-gl/mathgl/mgl32"
	"github.com/vkngwrapper/vklab/internal/gfxerr"
)

// LoadMesh reads an OBJ file, picking up a material library with the same
// base name next to it when there is one.
func LoadMesh(path string) (Geometry, error) {
	meshFile, err := os.Open(path)
	if err != nil {
		return Geometry{}, gfxerr.Wrapf(err, gfxerr.ErrResourceCreation, "open mesh %s", path)
	}
	defer meshFile.Close()

	var matReader io.Reader = strings.NewReader("")
	matFile, err := os.Open(strings.TrimSuffix(path, filepath.Ext(path)) + ".mtl")
	if err == nil {
		defer matFile.Close()
		matReader = matFile
	}

	return DecodeMesh(meshFile, matReader)
}

type vertexKey struct {
	position int
	uv       int
}

// DecodeMesh triangulates every face as a fan and merges corners that share
// both position and texture coordinate.
func DecodeMesh(meshReader, matReader io.Reader) (Geometry, error) {
	decoder, err := obj.DecodeReader(meshReader, matReader)
	if err != nil {
		return Geometry{}, gfxerr.Wrap(err, gfxerr.ErrResourceCreation, "decode mesh")
	}

	var geometry Geometry
	uniqueVertices := make(map[vertexKey]uint32)

	addVertex := func(face obj.Face, faceIndex int) {
		key := vertexKey{position: face.Vertices[faceIndex], uv: -1}
		if faceIndex < len(face.Uvs) {
			if uv := face.Uvs[faceIndex]; uv >= 0 && uv*2+1 < len(decoder.Uvs) {
				key.uv = uv
			}
		}

		index, vertexExists := uniqueVertices[key]
		if !vertexExists {
			vert := Vertex{Position: mgl32.Vec3{
				decoder.Vertices[key.position*3],
				decoder.Vertices[key.position*3+1],
				decoder.Vertices[key.position*3+2],
			}, Color: mgl32.Vec3{1, 1, 1}}

			if key.uv >= 0 {
				vert.TexCoord = mgl32.Vec2{
					decoder.Uvs[key.uv*2],
					1.0 - decoder.Uvs[key.uv*2+1],
				}
			}

			index = uint32(len(geometry.Vertices))
			geometry.Vertices = append(geometry.Vertices, vert)
			uniqueVertices[key] = index
		}

		geometry.Indices = append(geometry.Indices, index)
	}

	for _, decodedObj := range decoder.Objects {
		for _, face := range decodedObj.Faces {
			for i := 2; i < len(face.Vertices); i++ {
				addVertex(face, 0)
				addVertex(face, i-1)
				addVertex(face, i)
			}
		}
	}

	if len(geometry.Indices) == 0 {
		return Geometry{}, gfxerr.New(gfxerr.ErrResourceCreation, "decode mesh: no faces")
	}
	return geometry, nil
}
