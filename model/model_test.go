package model_test

import (
	"testing"

	qt "github.com/frankban/quicktest"
	glm "github.com/go-gl/mathgl/mgl32"
	"github.com/google/go-cmp/cmp/cmpopts"

	"github.com/devblok/overlaygfx/gfx"
	"github.com/devblok/overlaygfx/model"
)

var approx = qt.CmpEquals(cmpopts.EquateApprox(0, 1e-6))

func TestQuadVerts(t *testing.T) {
	c := qt.New(t)

	verts := model.QuadVerts(200, 100, 10, 10, 50, 50)
	c.Assert(verts, qt.HasLen, 4)

	c.Assert(verts[0].Pos, approx, glm.Vec2{0.05, 0.1})
	c.Assert(verts[3].Pos, approx, glm.Vec2{0.3, 0.6})
	c.Assert(verts[1].Pos, approx, glm.Vec2{0.05, 0.6})
	c.Assert(verts[2].Pos, approx, glm.Vec2{0.3, 0.1})

	for idx, v := range model.Quad() {
		c.Assert(verts[idx].UV, qt.Equals, v.UV)
	}
}

func TestQuadVertsFullTarget(t *testing.T) {
	c := qt.New(t)

	c.Assert(model.QuadVerts(640, 480, 0, 0, 640, 480), qt.DeepEquals, model.Quad())
}

func TestQuadIndices(t *testing.T) {
	c := qt.New(t)

	c.Assert(model.QuadIndices(), qt.DeepEquals, []uint16{2, 1, 0, 1, 2, 3})
	for _, idx := range model.QuadIndices() {
		c.Assert(int(idx) < len(model.Quad()), qt.IsTrue)
	}

	indices := model.QuadIndices()
	indices[0] = 3
	c.Assert(model.QuadIndices()[0], qt.Equals, uint16(2))
}

func TestVert2UvLayout(t *testing.T) {
	c := qt.New(t)

	layout := model.Vert2UvLayout()
	c.Assert(layout.Stride, qt.Equals, uint32(16))
	c.Assert(layout.Attributes, qt.DeepEquals, []gfx.VertexAttribute{
		{Location: 0, Offset: 0, Format: gfx.FormatR32G32Sfloat},
		{Location: 1, Offset: 8, Format: gfx.FormatR32G32Sfloat},
	})
}
