// Package shaders holds the GLSL sources for the default pipeline. The
// compiled blobs are read from disk at startup; point render.fragment_shader
// at textured.spv when render.texture is set.
package shaders

//go:generate glslc shader.vert -o vert.spv
//go:generate glslc shader.frag -o frag.spv
//go:generate glslc textured.frag -o textured.spv
