package soft_test

import (
	"os"
	"testing"

	qt "github.com/frankban/quicktest"

	"github.com/devblok/overlaygfx/device"
	"github.com/devblok/overlaygfx/gfx"
	"github.com/devblok/overlaygfx/gfx/soft"
)

func newDevice(c *qt.C, cfg soft.Config) *soft.Device {
	dev, err := soft.New(cfg)
	c.Assert(err, qt.IsNil)
	c.Cleanup(dev.Release)
	return dev
}

func TestNewSelectsAdapter(t *testing.T) {
	c := qt.New(t)

	cpu := soft.Adapter()
	discrete := soft.Adapter()
	discrete.Name = "discrete"
	discrete.Type = device.TypeDiscrete

	dev := newDevice(c, soft.Config{Devices: []device.PhysicalDeviceInfo{cpu, discrete}})
	c.Assert(dev.Adapter().Name, qt.Equals, "discrete")
	c.Assert(dev.Selection().Index, qt.Equals, 1)
}

func TestNewWithoutSuitableAdapter(t *testing.T) {
	c := qt.New(t)

	adapter := soft.Adapter()
	adapter.Extensions = nil

	_, err := soft.New(soft.Config{Devices: []device.PhysicalDeviceInfo{adapter}})
	c.Assert(err, qt.Equals, device.ErrNoSuitableDevice)
}

func TestCopyNeedsTransferLayout(t *testing.T) {
	c := qt.New(t)
	dev := newDevice(c, soft.Config{})

	src, err := dev.AllocateBuffer(gfx.BufferUsageTransferSrc, gfx.MemoryPreferHost, []byte{1, 2, 3, 4})
	c.Assert(err, qt.IsNil)
	img, err := dev.AllocateImage(gfx.ImageInfo{
		Extent: gfx.Extent2D{Width: 1, Height: 1},
		Format: gfx.FormatR8G8B8A8Unorm,
		Usage:  gfx.ImageUsageTransferDst | gfx.ImageUsageSampled,
	})
	c.Assert(err, qt.IsNil)

	rec, err := dev.Record(gfx.LevelPrimary, gfx.UsageOneTimeSubmit, nil)
	c.Assert(err, qt.IsNil)
	rec.CopyBufferToImage(src, img)
	cmd, err := rec.End()
	c.Assert(err, qt.IsNil)
	c.Assert(dev.Submit(cmd, nil), qt.ErrorMatches, "soft: copy into an image in layout Undefined")

	rec, err = dev.Record(gfx.LevelPrimary, gfx.UsageOneTimeSubmit, nil)
	c.Assert(err, qt.IsNil)
	rec.PipelineBarrier(gfx.ImageBarrier{Image: img, OldLayout: gfx.LayoutUndefined, NewLayout: gfx.LayoutTransferDstOptimal})
	rec.CopyBufferToImage(src, img)
	cmd, err = rec.End()
	c.Assert(err, qt.IsNil)

	fence, err := dev.CreateFence()
	c.Assert(err, qt.IsNil)
	c.Assert(dev.Submit(cmd, fence), qt.IsNil)
	c.Assert(fence.Wait(0), qt.IsNil)

	c.Assert(img.(*soft.Image).Pixels(), qt.DeepEquals, []byte{1, 2, 3, 4})
	c.Assert(img.(*soft.Image).Layout(), qt.Equals, gfx.LayoutTransferDstOptimal)

	// one-time recordings cannot be submitted again
	c.Assert(dev.Submit(cmd, nil), qt.ErrorMatches, ".*submitted again")
}

func TestRecordingErrors(t *testing.T) {
	c := qt.New(t)
	dev := newDevice(c, soft.Config{})

	_, err := dev.Record(gfx.LevelSecondary, gfx.UsageMultipleSubmit, nil)
	c.Assert(err, qt.IsNotNil)

	rec, err := dev.Record(gfx.LevelPrimary, gfx.UsageOneTimeSubmit, nil)
	c.Assert(err, qt.IsNil)
	rec.EndRenderPass()
	_, err = rec.End()
	c.Assert(err, qt.ErrorMatches, "soft: render pass ended without being begun")
}

func TestImportValidatesFd(t *testing.T) {
	c := qt.New(t)
	dev := newDevice(c, soft.Config{})

	info := gfx.ImageInfo{
		Extent: gfx.Extent2D{Width: 4, Height: 4},
		Format: gfx.FormatB8G8R8A8Unorm,
		Usage:  gfx.ImageUsageSampled | gfx.ImageUsageTransferSrc,
	}

	f, err := os.CreateTemp(c.TempDir(), "dmabuf")
	c.Assert(err, qt.IsNil)
	defer f.Close()

	img, err := dev.ImportImage(info, gfx.NewDmabufPlane(int(f.Fd()), 0, 16, 0))
	c.Assert(err, qt.IsNil)
	plane, ok := img.(*soft.Image).Imported()
	c.Assert(ok, qt.IsTrue)
	c.Assert(plane.Stride, qt.Equals, uint32(16))
	img.Release()

	_, err = dev.ImportImage(info, gfx.NewDmabufPlane(1<<20, 0, 0, 0))
	var importErr *gfx.ImportError
	c.Assert(err, qt.ErrorAs, &importErr)
	c.Assert(importErr.Err, qt.ErrorMatches, "soft: fd 1048576: .*")
}

func TestSwapchainOutOfDate(t *testing.T) {
	c := qt.New(t)
	dev := newDevice(c, soft.Config{Surface: true, SurfaceExtent: gfx.Extent2D{Width: 8, Height: 8}})

	sc, err := dev.CreateSwapchain(gfx.FormatUndefined, 3, nil)
	c.Assert(err, qt.IsNil)
	c.Assert(sc.Images(), qt.HasLen, 3)
	c.Assert(sc.Format(), qt.Equals, gfx.FormatB8G8R8A8Unorm)

	idx, err := sc.Acquire(0)
	c.Assert(err, qt.IsNil)
	c.Assert(idx, qt.Equals, 0)
	c.Assert(sc.Present(idx), qt.ErrorMatches, ".*layout Undefined")

	dev.Resize(gfx.Extent2D{Width: 16, Height: 16})
	_, err = sc.Acquire(0)
	c.Assert(err, qt.Equals, gfx.ErrOutOfDate)

	next, err := dev.CreateSwapchain(gfx.FormatUndefined, 3, sc)
	c.Assert(err, qt.IsNil)
	c.Assert(next.Extent(), qt.Equals, gfx.Extent2D{Width: 16, Height: 16})
	sc.Release()
	next.Release()
}
