package core_test

import (
	"bytes"
	"image"
	"image/color"
	"image/png"
	"os"
	"testing"

	qt "github.com/frankban/quicktest"

	"github.com/devblok/overlaygfx/core"
	"github.com/devblok/overlaygfx/gfx"
	"github.com/devblok/overlaygfx/gfx/soft"
	"github.com/devblok/overlaygfx/model"
)

var quadShaders = gfx.ShaderPair{
	Name:     "quad",
	Vertex:   []byte{0x03, 0x02, 0x23, 0x07},
	Fragment: []byte{0x03, 0x02, 0x23, 0x07},
	Bindings: []gfx.DescriptorBinding{
		{Set: 0, Binding: 0, Type: gfx.DescriptorCombinedImageSampler, Stages: gfx.StageFragment},
	},
}

func newContext(c *qt.C) (*core.Context, *soft.Device) {
	dev, err := soft.New(soft.Config{})
	c.Assert(err, qt.IsNil)
	return core.NewContext(dev), dev
}

func opsOf(cmd *soft.CommandBuffer) []soft.Op {
	var ops []soft.Op
	for _, command := range cmd.Commands() {
		ops = append(ops, command.Op)
	}
	return ops
}

func uploadTexture(c *qt.C, ctx *core.Context) *core.Image {
	cb := ctx.CreateCommandBuffer(gfx.UsageOneTimeSubmit)
	tex := cb.Texture2D(2, 1, gfx.FormatR8G8B8A8Unorm, []byte{255, 0, 0, 255, 0, 255, 0, 255})
	cb.BuildAndExecuteNow()
	c.Assert(tex.Layout(), qt.Equals, gfx.LayoutShaderReadOnlyOptimal)
	return tex
}

func TestPassRecordsSingleDraw(t *testing.T) {
	c := qt.New(t)
	ctx, dev := newContext(c)

	target := ctx.RenderTexture(64, 32, gfx.FormatR8G8B8A8Unorm)
	c.Assert(target.Layout(), qt.Equals, gfx.LayoutColorAttachmentOptimal)

	pipeline := ctx.CreatePipeline(target, quadShaders)
	tex := uploadTexture(c, ctx)
	set := pipeline.UniformSampler(0, tex, gfx.FilterLinear)

	pass := pipeline.CreatePass([2]float32{64, 32}, ctx.QuadVerts.Retain(), ctx.QuadIndices.Retain(), []*core.DescriptorSet{set})

	recorded := pass.Raw().(*soft.CommandBuffer)
	c.Assert(recorded.Level(), qt.Equals, gfx.LevelSecondary)
	c.Assert(recorded.Usage(), qt.Equals, gfx.UsageMultipleSubmit)
	c.Assert(opsOf(recorded), qt.DeepEquals, []soft.Op{
		soft.OpSetViewport,
		soft.OpBindPipeline,
		soft.OpBindDescriptorSets,
		soft.OpBindVertexBuffer,
		soft.OpBindIndexBuffer,
		soft.OpDrawIndexed,
	})
	c.Assert(recorded.Count(soft.OpDrawIndexed), qt.Equals, 1)

	draw := recorded.Commands()[5]
	c.Assert(draw.IndexCount, qt.Equals, uint32(len(model.QuadIndices())))
	c.Assert(draw.InstanceCount, qt.Equals, uint32(1))
	c.Assert(recorded.Commands()[0].Viewport, qt.Equals, [2]float32{64, 32})
	c.Assert(recorded.Commands()[2].FirstSet, qt.Equals, uint32(0))

	// a pass is reused by any number of frames
	for i := 0; i < 2; i++ {
		cb := ctx.CreateCommandBuffer(gfx.UsageOneTimeSubmit)
		cb.BeginRenderPass(pipeline)
		cb.RunRef(pass)
		cb.EndRenderPass()
		cb.BuildAndExecuteNow()
	}
	c.Assert(dev.Stats().Draws, qt.Equals, 2)
	c.Assert(dev.Stats().Indices, qt.Equals, 12)
	c.Assert(target.Layout(), qt.Equals, gfx.LayoutColorAttachmentOptimal)

	pass.Release()
	tex.Release()
	pipeline.Release()
	target.Release()
	ctx.Release()
	c.Assert(dev.Live(), qt.Equals, 0)
}

func TestPassWithoutDescriptorSets(t *testing.T) {
	c := qt.New(t)
	ctx, _ := newContext(c)
	defer ctx.Release()

	target := ctx.RenderTexture(8, 8, gfx.FormatB8G8R8A8Unorm)
	defer target.Release()
	pipeline := ctx.CreatePipeline(target, quadShaders)
	defer pipeline.Release()

	indices := core.UploadBuffer(ctx, gfx.BufferUsageIndex, []uint16{0, 1, 2})
	pass := pipeline.CreatePass([2]float32{8, 8}, ctx.UploadVerts(8, 8, 0, 0, 4, 4), indices, nil)
	defer pass.Release()

	recorded := pass.Raw().(*soft.CommandBuffer)
	c.Assert(recorded.Count(soft.OpBindDescriptorSets), qt.Equals, 0)
	c.Assert(recorded.Commands()[len(recorded.Commands())-1].IndexCount, qt.Equals, uint32(3))
}

func TestEmptyFrameBuilds(t *testing.T) {
	c := qt.New(t)
	ctx, dev := newContext(c)
	defer ctx.Release()

	target := ctx.RenderTexture(4, 4, gfx.FormatR8G8B8A8Unorm)
	defer target.Release()
	pipeline := ctx.CreatePipeline(target, quadShaders)
	defer pipeline.Release()

	cb := ctx.CreateCommandBuffer(gfx.UsageOneTimeSubmit)
	cb.BeginRenderPass(pipeline)
	cb.EndRenderPass()
	recording := cb.Build()
	c.Assert(opsOf(recording.Raw().(*soft.CommandBuffer)), qt.DeepEquals, []soft.Op{
		soft.OpBeginRenderPass,
		soft.OpEndRenderPass,
	})

	future := recording.Execute()
	c.Assert(future.Poll(), qt.IsTrue)
	c.Assert(future.Wait(0), qt.IsNil)
	future.Release()

	c.Assert(dev.Stats().Clears, qt.Equals, 1)
	c.Assert(target.Raw().(*soft.Image).Pixels()[:4], qt.DeepEquals, []byte{0, 0, 0, 255})
}

func TestFrameMisuseIsFatal(t *testing.T) {
	c := qt.New(t)
	ctx, _ := newContext(c)
	defer ctx.Release()

	target := ctx.RenderTexture(4, 4, gfx.FormatR8G8B8A8Unorm)
	defer target.Release()
	pipeline := ctx.CreatePipeline(target, quadShaders)
	defer pipeline.Release()

	c.Run("double begin", func(c *qt.C) {
		cb := ctx.CreateCommandBuffer(gfx.UsageOneTimeSubmit)
		cb.BeginRenderPass(pipeline)
		c.Assert(func() { cb.BeginRenderPass(pipeline) }, qt.PanicMatches, "render pass already begun: invalid usage")
	})

	c.Run("end without begin", func(c *qt.C) {
		cb := ctx.CreateCommandBuffer(gfx.UsageOneTimeSubmit)
		c.Assert(cb.EndRenderPass, qt.PanicMatches, "render pass ended without being begun: invalid usage")
	})

	c.Run("build inside render pass", func(c *qt.C) {
		cb := ctx.CreateCommandBuffer(gfx.UsageOneTimeSubmit)
		cb.BeginRenderPass(pipeline)
		c.Assert(func() { cb.Build() }, qt.PanicMatches, "command buffer built inside a render pass: invalid usage")
	})

	c.Run("upload inside render pass", func(c *qt.C) {
		cb := ctx.CreateCommandBuffer(gfx.UsageOneTimeSubmit)
		cb.BeginRenderPass(pipeline)
		c.Assert(func() {
			cb.Texture2D(1, 1, gfx.FormatR8G8B8A8Unorm, []byte{1, 2, 3, 4})
		}, qt.PanicMatches, "texture upload inside a render pass: invalid usage")
	})

	c.Run("short texture data", func(c *qt.C) {
		cb := ctx.CreateCommandBuffer(gfx.UsageOneTimeSubmit)
		c.Assert(func() {
			cb.Texture2D(2, 2, gfx.FormatR8G8B8A8Unorm, []byte{1, 2, 3, 4})
		}, qt.PanicMatches, "texture of 2x2 R8G8B8A8Unorm needs 16 bytes, got 4: invalid usage")
	})

	c.Run("texture size past 32 bits", func(c *qt.C) {
		cb := ctx.CreateCommandBuffer(gfx.UsageOneTimeSubmit)
		c.Assert(func() {
			cb.Texture2D(65536, 65536, gfx.FormatR8G8B8A8Unorm, []byte{1, 2, 3, 4})
		}, qt.PanicMatches, "texture of 65536x65536 R8G8B8A8Unorm needs 17179869184 bytes, got 4: invalid usage")
	})
}

func TestBeginChecksTargetLayout(t *testing.T) {
	c := qt.New(t)
	ctx, _ := newContext(c)
	defer ctx.Release()

	target := ctx.RenderTexture(4, 4, gfx.FormatR8G8B8A8Unorm)
	defer target.Release()

	present := ctx.CreatePipelineWithLayouts(target, quadShaders, gfx.LayoutPresentSrc, gfx.LayoutPresentSrc)
	defer present.Release()
	initial, final := present.Layouts()
	c.Assert(initial, qt.Equals, gfx.LayoutPresentSrc)
	c.Assert(final, qt.Equals, gfx.LayoutPresentSrc)

	cb := ctx.CreateCommandBuffer(gfx.UsageOneTimeSubmit)
	c.Assert(func() { cb.BeginRenderPass(present) }, qt.PanicMatches,
		"target is in layout ColorAttachmentOptimal, pipeline expects PresentSrc: invalid usage")

	// an undefined initial layout accepts any target
	handover := ctx.CreatePipelineWithLayouts(target, quadShaders, gfx.LayoutUndefined, gfx.LayoutTransferSrcOptimal)
	defer handover.Release()

	cb = ctx.CreateCommandBuffer(gfx.UsageOneTimeSubmit)
	cb.BeginRenderPass(handover)
	cb.EndRenderPass()
	cb.BuildAndExecuteNow()
	c.Assert(target.Layout(), qt.Equals, gfx.LayoutTransferSrcOptimal)
	c.Assert(target.Raw().(*soft.Image).Layout(), qt.Equals, gfx.LayoutTransferSrcOptimal)
}

func TestPipelineCompatible(t *testing.T) {
	c := qt.New(t)
	ctx, _ := newContext(c)
	defer ctx.Release()

	small := ctx.RenderTexture(4, 4, gfx.FormatR8G8B8A8Unorm)
	defer small.Release()
	large := ctx.RenderTexture(8, 8, gfx.FormatR8G8B8A8Unorm)
	defer large.Release()
	other := ctx.RenderTexture(4, 4, gfx.FormatB8G8R8A8Unorm)
	defer other.Release()

	pipeline := ctx.CreatePipeline(small, quadShaders)
	defer pipeline.Release()

	c.Assert(pipeline.Target(), qt.Equals, small)
	c.Assert(pipeline.Compatible(small), qt.IsTrue)
	c.Assert(pipeline.Compatible(large), qt.IsFalse)
	c.Assert(pipeline.Compatible(other), qt.IsFalse)
}

func TestTransitionLayout(t *testing.T) {
	c := qt.New(t)
	ctx, dev := newContext(c)
	defer ctx.Release()

	target := ctx.RenderTexture(4, 4, gfx.FormatR8G8B8A8Unorm)
	defer target.Release()

	fence := ctx.TransitionLayout(target, gfx.LayoutColorAttachmentOptimal, gfx.LayoutTransferSrcOptimal)
	c.Assert(fence.Wait(core.Forever), qt.IsNil)
	c.Assert(fence.Signaled(), qt.IsTrue)
	fence.Release()

	c.Assert(target.Layout(), qt.Equals, gfx.LayoutTransferSrcOptimal)

	submitted := dev.Submitted()
	last := submitted[len(submitted)-1]
	c.Assert(last.Usage(), qt.Equals, gfx.UsageOneTimeSubmit)
	c.Assert(opsOf(last), qt.DeepEquals, []soft.Op{soft.OpPipelineBarrier})
	barriers := last.Commands()[0].Barriers
	c.Assert(barriers, qt.HasLen, 1)
	c.Assert(barriers[0].Image, qt.Equals, target.Raw())
	c.Assert(barriers[0].OldLayout, qt.Equals, gfx.LayoutColorAttachmentOptimal)
	c.Assert(barriers[0].NewLayout, qt.Equals, gfx.LayoutTransferSrcOptimal)
	c.Assert(barriers[0].Src, qt.Equals, gfx.AccessTransferWrite)
	c.Assert(barriers[0].Dst, qt.Equals, gfx.AccessTransferRead)
}

func TestTexture2DPNG(t *testing.T) {
	c := qt.New(t)
	ctx, dev := newContext(c)
	defer ctx.Release()

	src := image.NewNRGBA(image.Rect(0, 0, 2, 2))
	src.Set(0, 0, color.NRGBA{R: 255, A: 255})
	src.Set(1, 1, color.NRGBA{B: 255, A: 255})
	var encoded bytes.Buffer
	c.Assert(png.Encode(&encoded, src), qt.IsNil)

	cb := ctx.CreateCommandBuffer(gfx.UsageOneTimeSubmit)
	tex, err := cb.Texture2DPNG(&encoded)
	c.Assert(err, qt.IsNil)
	cb.BuildAndExecuteNow()
	defer tex.Release()

	c.Assert(tex.Format(), qt.Equals, gfx.FormatR8G8B8A8Unorm)
	c.Assert(tex.Extent(), qt.Equals, gfx.Extent2D{Width: 2, Height: 2})
	c.Assert(tex.Raw().(*soft.Image).Pixels(), qt.DeepEquals, []byte{
		255, 0, 0, 255, 0, 0, 0, 0,
		0, 0, 0, 0, 0, 0, 255, 255,
	})
	c.Assert(dev.Stats().Copies, qt.Equals, 1)

	cb = ctx.CreateCommandBuffer(gfx.UsageOneTimeSubmit)
	_, err = cb.Texture2DPNG(bytes.NewReader([]byte("not a png")))
	c.Assert(err, qt.ErrorMatches, "png decode: .*")
	cb.Build().Release()
}

func TestFutureThen(t *testing.T) {
	c := qt.New(t)
	ctx, dev := newContext(c)
	defer ctx.Release()

	first := ctx.CreateCommandBuffer(gfx.UsageOneTimeSubmit)
	a := first.Texture2D(1, 1, gfx.FormatR8G8B8A8Unorm, []byte{1, 2, 3, 4})
	defer a.Release()
	second := ctx.CreateCommandBuffer(gfx.UsageOneTimeSubmit)
	b := second.Texture2D(1, 1, gfx.FormatR8G8B8A8Unorm, []byte{5, 6, 7, 8})
	defer b.Release()

	future := first.BuildAndExecute().Then(second.Build())
	c.Assert(future.Poll(), qt.IsTrue)
	c.Assert(future.Wait(core.Forever), qt.IsNil)
	future.Release()

	c.Assert(dev.Stats().Submits, qt.Equals, 2)
	c.Assert(b.Raw().(*soft.Image).Pixels(), qt.DeepEquals, []byte{5, 6, 7, 8})
}

func TestUploadRoundTrip(t *testing.T) {
	c := qt.New(t)
	ctx, _ := newContext(c)
	defer ctx.Release()

	words := []uint32{0xdeadbeef, 0, 42, 0xffffffff}
	upload := core.UploadBuffer(ctx, gfx.BufferUsageTransferSrc, words)
	defer upload.Release()
	c.Assert(upload.Len(), qt.Equals, 4)
	c.Assert(upload.Raw().Size(), qt.Equals, 16)
	c.Assert(upload.Raw().(*soft.Buffer).Preference(), qt.Equals, gfx.MemoryPreferHost)

	got, err := upload.Read()
	c.Assert(err, qt.IsNil)
	c.Assert(got, qt.DeepEquals, words)

	verts := model.QuadVerts(200, 100, 10, 10, 50, 50)
	vb := core.DeviceBuffer(ctx, gfx.BufferUsageVertex, verts)
	defer vb.Release()
	c.Assert(vb.Raw().(*soft.Buffer).Preference(), qt.Equals, gfx.MemoryPreferDevice)

	gotVerts, err := vb.Read()
	c.Assert(err, qt.IsNil)
	c.Assert(gotVerts, qt.DeepEquals, verts)

	quad, err := ctx.QuadIndices.Read()
	c.Assert(err, qt.IsNil)
	c.Assert(quad, qt.DeepEquals, model.QuadIndices())
}

func TestRetainRelease(t *testing.T) {
	c := qt.New(t)
	ctx, dev := newContext(c)
	defer ctx.Release()

	before := dev.Live()
	b := core.UploadBuffer(ctx, gfx.BufferUsageUniform, []float32{1, 2})
	b.Retain()
	b.Release()
	c.Assert(dev.Live(), qt.Equals, before+1)
	b.Release()
	c.Assert(dev.Live(), qt.Equals, before)
	c.Assert(b.Release, qt.PanicMatches, "object released more times than retained: invalid usage")
}

func TestUniformBuffer(t *testing.T) {
	c := qt.New(t)
	ctx, _ := newContext(c)
	defer ctx.Release()

	shaders := gfx.ShaderPair{
		Name:     "color",
		Vertex:   quadShaders.Vertex,
		Fragment: quadShaders.Fragment,
		Bindings: []gfx.DescriptorBinding{
			{Set: 0, Binding: 0, Type: gfx.DescriptorUniformBuffer, Stages: gfx.StageFragment},
		},
	}
	target := ctx.RenderTexture(4, 4, gfx.FormatR8G8B8A8Unorm)
	defer target.Release()
	pipeline := ctx.CreatePipeline(target, shaders)
	defer pipeline.Release()

	set := core.UniformBuffer(pipeline, 0, []float32{1, 0, 0, 1})
	writes := set.Raw().(*soft.DescriptorSet).Writes()
	c.Assert(writes, qt.HasLen, 1)
	c.Assert(writes[0].Type, qt.Equals, gfx.DescriptorUniformBuffer)
	c.Assert(writes[0].Buffer.Size(), qt.Equals, 16)
	set.Release()

	// the color shaders declare no sampler
	c.Assert(func() {
		pipeline.UniformSampler(0, target, gfx.FilterNearest)
	}, qt.PanicMatches, "Failed to create descriptor set: .*does not declare binding 0 of set 0")
}

func TestDmabufTexture(t *testing.T) {
	c := qt.New(t)
	ctx, _ := newContext(c)
	defer ctx.Release()

	f, err := os.CreateTemp(c.TempDir(), "dmabuf")
	c.Assert(err, qt.IsNil)
	defer f.Close()

	frame := gfx.DmabufFrame{
		Width:     32,
		Height:    16,
		Fourcc:    gfx.DrmFormatARGB8888,
		NumPlanes: 1,
	}
	frame.Planes[0] = gfx.NewDmabufPlane(int(f.Fd()), 0, 128, 0)

	c.Run("single plane", func(c *qt.C) {
		img := ctx.DmabufTexture(frame)
		c.Assert(img, qt.IsNotNil)
		defer img.Release()
		c.Assert(img.Imported(), qt.IsTrue)
		c.Assert(img.Format(), qt.Equals, gfx.FormatB8G8R8A8Unorm)
		c.Assert(img.Extent(), qt.Equals, gfx.Extent2D{Width: 32, Height: 16})
		c.Assert(img.Layout(), qt.Equals, gfx.LayoutUndefined)

		plane, ok := img.Raw().(*soft.Image).Imported()
		c.Assert(ok, qt.IsTrue)
		c.Assert(plane.Stride, qt.Equals, uint32(128))
	})

	c.Run("two planes", func(c *qt.C) {
		multi := frame
		multi.NumPlanes = 2
		multi.Planes[1] = frame.Planes[0]
		c.Assert(ctx.DmabufTexture(multi), qt.IsNil)
	})

	c.Run("no fd", func(c *qt.C) {
		missing := frame
		missing.Planes[0] = gfx.NewDmabufPlane(gfx.NoFd, 0, 128, 0)
		c.Assert(ctx.DmabufTexture(missing), qt.IsNil)
	})

	c.Run("zero value plane", func(c *qt.C) {
		unset := gfx.DmabufFrame{
			Width:     4,
			Height:    4,
			Fourcc:    gfx.DrmFormatXRGB8888,
			NumPlanes: 1,
		}
		c.Assert(ctx.DmabufTexture(unset), qt.IsNil)
	})

	c.Run("bind failure", func(c *qt.C) {
		closed := frame
		closed.Planes[0] = gfx.NewDmabufPlane(1<<20, 0, 128, 0)
		c.Assert(ctx.DmabufTexture(closed), qt.IsNil)
	})

	c.Run("unknown fourcc", func(c *qt.C) {
		nv12 := frame
		nv12.Fourcc = gfx.Fourcc('N' | 'V'<<8 | '1'<<16 | '2'<<24)
		c.Assert(func() { ctx.DmabufTexture(nv12) }, qt.PanicMatches,
			"Unsupported DMA-buf format: fourcc NV12 \\(0x3231564e\\)")
	})
}
