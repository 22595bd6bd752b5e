// Package model holds the vertex data the renderer draws with.
package model

import (
	"unsafe"

	glm "github.com/go-gl/mathgl/mgl32"

	"github.com/devblok/overlaygfx/gfx"
)

// Vert2Uv is a 2D vertex with texture coordinates
type Vert2Uv struct {
	Pos glm.Vec2
	UV  glm.Vec2
}

// QuadIndices returns the indices drawing the unit quad as two triangles
func QuadIndices() []uint16 {
	return []uint16{2, 1, 0, 1, 2, 3}
}

// Quad returns the unit quad, positions matching texture coordinates
func Quad() []Vert2Uv {
	return []Vert2Uv{
		{Pos: glm.Vec2{0, 0}, UV: glm.Vec2{0, 0}},
		{Pos: glm.Vec2{0, 1}, UV: glm.Vec2{0, 1}},
		{Pos: glm.Vec2{1, 0}, UV: glm.Vec2{1, 0}},
		{Pos: glm.Vec2{1, 1}, UV: glm.Vec2{1, 1}},
	}
}

// QuadVerts maps the rectangle x, y, w, h of a width by height
// target into normalized quad corners, ordered like Quad.
func QuadVerts(width, height, x, y, w, h float32) []Vert2Uv {
	x0 := x / width
	y0 := y / height
	x1 := w/width + x0
	y1 := h/height + y0

	return []Vert2Uv{
		{Pos: glm.Vec2{x0, y0}, UV: glm.Vec2{0, 0}},
		{Pos: glm.Vec2{x0, y1}, UV: glm.Vec2{0, 1}},
		{Pos: glm.Vec2{x1, y0}, UV: glm.Vec2{1, 0}},
		{Pos: glm.Vec2{x1, y1}, UV: glm.Vec2{1, 1}},
	}
}

// Vert2UvLayout describes Vert2Uv to pipelines: position at
// location 0 and texture coordinates at location 1.
func Vert2UvLayout() gfx.VertexLayout {
	return gfx.VertexLayout{
		Stride: uint32(unsafe.Sizeof(Vert2Uv{})),
		Attributes: []gfx.VertexAttribute{
			{
				Location: 0,
				Format:   gfx.FormatR32G32Sfloat,
				Offset:   uint32(unsafe.Offsetof(Vert2Uv{}.Pos)),
			},
			{
				Location: 1,
				Format:   gfx.FormatR32G32Sfloat,
				Offset:   uint32(unsafe.Offsetof(Vert2Uv{}.UV)),
			},
		},
	}
}
