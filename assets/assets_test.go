package assets_test

import (
	"bytes"
	"encoding/binary"
	"testing"

	qt "github.com/frankban/quicktest"

	"github.com/devblok/overlaygfx/assets"
	"github.com/devblok/overlaygfx/gfx"
	"github.com/devblok/overlaygfx/utility/kar"
)

func spirv(words ...uint32) []byte {
	data := make([]byte, 4*(len(words)+1))
	binary.LittleEndian.PutUint32(data, assets.SpirvMagic)
	for idx, w := range words {
		binary.LittleEndian.PutUint32(data[4*(idx+1):], w)
	}
	return data
}

func archive(c *qt.C, files map[string][]byte) *kar.Archive {
	builder, err := kar.NewBuilder(kar.Header{Author: "test"})
	c.Assert(err, qt.IsNil)
	defer builder.Close()

	for name, data := range files {
		c.Assert(builder.Add(name, bytes.NewReader(data)), qt.IsNil)
	}
	var buf bytes.Buffer
	_, err = builder.WriteTo(&buf)
	c.Assert(err, qt.IsNil)

	ar, err := kar.Open(bytes.NewReader(buf.Bytes()))
	c.Assert(err, qt.IsNil)
	return ar
}

func TestManifests(t *testing.T) {
	c := qt.New(t)
	c.Assert(assets.Manifests(), qt.DeepEquals, []string{assets.Color, assets.Quad})

	m, err := assets.LoadManifest(assets.Quad)
	c.Assert(err, qt.IsNil)
	c.Assert(m.Vertex, qt.Equals, "shaders/quad.vert.spv")
	c.Assert(m.Fragment, qt.Equals, "shaders/quad.frag.spv")

	bindings, err := m.DescriptorBindings()
	c.Assert(err, qt.IsNil)
	c.Assert(bindings, qt.DeepEquals, []gfx.DescriptorBinding{{
		Set:     0,
		Binding: 0,
		Type:    gfx.DescriptorCombinedImageSampler,
		Stages:  gfx.StageFragment,
	}})

	m, err = assets.LoadManifest(assets.Color)
	c.Assert(err, qt.IsNil)
	bindings, err = m.DescriptorBindings()
	c.Assert(err, qt.IsNil)
	c.Assert(bindings[0].Type, qt.Equals, gfx.DescriptorUniformBuffer)

	_, err = assets.LoadManifest("missing")
	c.Assert(err, qt.ErrorMatches, "manifest missing: .*")
}

func TestDescriptorBindingsRejectUnknownNames(t *testing.T) {
	c := qt.New(t)

	_, err := assets.Manifest{
		Name:     "bad",
		Bindings: []assets.Binding{{Type: "storage", Stages: []string{"fragment"}}},
	}.DescriptorBindings()
	c.Assert(err, qt.ErrorMatches, `bad: unknown descriptor type "storage"`)

	_, err = assets.Manifest{
		Name:     "bad",
		Bindings: []assets.Binding{{Type: "sampler", Stages: []string{"geometry"}}},
	}.DescriptorBindings()
	c.Assert(err, qt.ErrorMatches, `bad: unknown shader stage "geometry"`)

	_, err = assets.Manifest{
		Name:     "bad",
		Bindings: []assets.Binding{{Set: 1, Binding: 2, Type: "uniform"}},
	}.DescriptorBindings()
	c.Assert(err, qt.ErrorMatches, "bad: binding 2 of set 1 is used by no stage")
}

func TestLoadShaderPair(t *testing.T) {
	c := qt.New(t)

	vert, frag := spirv(0x00010000, 1), spirv(0x00010000, 2)
	ar := archive(c, map[string][]byte{
		"shaders/quad.vert.spv": vert,
		"shaders/quad.frag.spv": frag,
	})

	pair, err := assets.LoadShaderPair(ar, assets.Quad)
	c.Assert(err, qt.IsNil)
	c.Assert(pair.Name, qt.Equals, assets.Quad)
	c.Assert(pair.Vertex, qt.DeepEquals, vert)
	c.Assert(pair.Fragment, qt.DeepEquals, frag)
	c.Assert(pair.Sets(), qt.Equals, uint32(1))

	_, err = assets.LoadShaderPair(ar, assets.Color)
	c.Assert(err, qt.ErrorMatches, "color: fragment stage: .*not found.*")
}

func TestLoadShaderPairRejectsOtherFiles(t *testing.T) {
	c := qt.New(t)

	ar := archive(c, map[string][]byte{
		"shaders/quad.vert.spv": []byte("#version 450\n"),
		"shaders/quad.frag.spv": spirv(),
	})

	_, err := assets.LoadShaderPair(ar, assets.Quad)
	c.Assert(err, qt.ErrorMatches, "quad: vertex stage: shaders/quad.vert.spv is not a SPIR-V module")
}
