package gfx_test

import (
	"testing"

	qt "github.com/frankban/quicktest"

	"github.com/devblok/overlaygfx/gfx"
)

func TestFourccFormat(t *testing.T) {
	c := qt.New(t)

	for code, expected := range map[gfx.Fourcc]gfx.Format{
		gfx.DrmFormatABGR8888: gfx.FormatR8G8B8A8Unorm,
		gfx.DrmFormatXBGR8888: gfx.FormatR8G8B8A8Unorm,
		gfx.DrmFormatARGB8888: gfx.FormatB8G8R8A8Unorm,
		gfx.DrmFormatXRGB8888: gfx.FormatB8G8R8A8Unorm,
	} {
		format, ok := gfx.FourccFormat(code)
		c.Assert(ok, qt.IsTrue, qt.Commentf("code %s", code))
		c.Assert(format, qt.Equals, expected, qt.Commentf("code %s", code))
	}
}

func TestFourccFormatUnknown(t *testing.T) {
	c := qt.New(t)

	nv12 := gfx.Fourcc('N' | 'V'<<8 | '1'<<16 | '2'<<24)
	format, ok := gfx.FourccFormat(nv12)
	c.Assert(ok, qt.IsFalse)
	c.Assert(format, qt.Equals, gfx.FormatUndefined)
}

func TestFourccValues(t *testing.T) {
	c := qt.New(t)

	c.Assert(uint32(gfx.DrmFormatABGR8888), qt.Equals, uint32(0x34324241))
	c.Assert(uint32(gfx.DrmFormatXRGB8888), qt.Equals, uint32(0x34325258))
	c.Assert(gfx.DrmFormatARGB8888.String(), qt.Equals, "AR24")
}

func TestDmabufPlaneFd(t *testing.T) {
	c := qt.New(t)

	var zero gfx.DmabufPlane
	c.Assert(zero.HasFd(), qt.IsFalse)
	fd, ok := zero.Fd()
	c.Assert(ok, qt.IsFalse)
	c.Assert(fd, qt.Equals, gfx.NoFd)

	stdin := gfx.NewDmabufPlane(0, 64, 256, 7)
	fd, ok = stdin.Fd()
	c.Assert(ok, qt.IsTrue)
	c.Assert(fd, qt.Equals, 0)
	c.Assert(stdin.Offset, qt.Equals, uint32(64))
	c.Assert(stdin.Stride, qt.Equals, uint32(256))
	c.Assert(stdin.Modifier, qt.Equals, uint64(7))

	c.Assert(gfx.NewDmabufPlane(gfx.NoFd, 0, 0, 0).HasFd(), qt.IsFalse)
}

func TestShaderPairSets(t *testing.T) {
	c := qt.New(t)

	c.Assert(gfx.ShaderPair{}.Sets(), qt.Equals, uint32(0))
	pair := gfx.ShaderPair{Bindings: []gfx.DescriptorBinding{
		{Set: 0, Binding: 0, Type: gfx.DescriptorCombinedImageSampler},
		{Set: 1, Binding: 0, Type: gfx.DescriptorUniformBuffer},
	}}
	c.Assert(pair.Sets(), qt.Equals, uint32(2))
}
