package core

import (
	"image/png"
	"io"

	"github.com/pkg/errors"

	"github.com/devblok/overlaygfx/gfx"
)

// CommandBuffer records one frame: a single render pass executing
// passes, optionally preceded by texture uploads. Passes are only
// referenced, they must outlive the recording.
type CommandBuffer struct {
	ctx       *Context
	rec       gfx.Recorder
	pipeline  *Pipeline
	transient []gfx.Releasable

	begun bool
	ended bool
	built bool
}

// BeginRenderPass starts drawing into the target of p, clearing it to
// opaque black. It can be called once per command buffer.
func (c *CommandBuffer) BeginRenderPass(p *Pipeline) {
	if c.built {
		fatalf("render pass begun on a built command buffer")
	}
	if c.begun {
		fatalf("render pass already begun")
	}
	if p.initial != gfx.LayoutUndefined && p.target.layout != p.initial {
		fatalf("target is in layout %s, pipeline expects %s", p.target.layout, p.initial)
	}

	c.rec.BeginRenderPass(p.renderPass, p.framebuffer, [4]float32{0, 0, 0, 1})
	c.pipeline = p
	c.begun = true
}

// RunRef executes pass inside the active render pass
func (c *CommandBuffer) RunRef(pass *Pass) {
	if !c.begun || c.ended {
		fatalf("pass executed outside of a render pass")
	}
	if pass.pipeline.format != c.pipeline.format {
		fatalf("pass drawing %s executed in a %s render pass", pass.pipeline.format, c.pipeline.format)
	}
	c.rec.ExecuteCommands(pass.cmd)
}

// Texture2D records the upload of data into a new sampled image. The
// image is in ShaderReadOnlyOptimal layout once the recording completes.
// Uploads cannot happen inside the render pass.
func (c *CommandBuffer) Texture2D(width, height uint32, format gfx.Format, data []byte) *Image {
	if c.begun && !c.ended {
		fatalf("texture upload inside a render pass")
	}
	if size := int(width) * int(height) * format.Size(); size == 0 || len(data) != size {
		fatalf("texture of %dx%d %s needs %d bytes, got %d", width, height, format, size, len(data))
	}

	raw, err := c.ctx.device.AllocateImage(gfx.ImageInfo{
		Extent: gfx.Extent2D{Width: width, Height: height},
		Format: format,
		Usage: gfx.ImageUsageSampled |
			gfx.ImageUsageTransferDst |
			gfx.ImageUsageTransferSrc,
	})
	if err != nil {
		fatal(err, "Failed to allocate texture")
	}
	staging, err := c.ctx.device.AllocateBuffer(gfx.BufferUsageTransferSrc, gfx.MemoryPreferHost, data)
	if err != nil {
		raw.Release()
		fatal(err, "Failed to allocate staging buffer")
	}
	c.transient = append(c.transient, staging)

	c.rec.PipelineBarrier(gfx.ImageBarrier{
		Image:     raw,
		OldLayout: gfx.LayoutUndefined,
		NewLayout: gfx.LayoutTransferDstOptimal,
		Src:       gfx.AccessNone,
		Dst:       gfx.AccessTransferWrite,
	})
	c.rec.CopyBufferToImage(staging, raw)
	c.rec.PipelineBarrier(gfx.ImageBarrier{
		Image:     raw,
		OldLayout: gfx.LayoutTransferDstOptimal,
		NewLayout: gfx.LayoutShaderReadOnlyOptimal,
		Src:       gfx.AccessTransferWrite,
		Dst:       gfx.AccessShaderRead,
	})

	img := newImage(c.ctx, raw)
	img.layout = gfx.LayoutShaderReadOnlyOptimal
	return img
}

// Texture2DPNG decodes a PNG image from r and records its upload
// as an R8G8B8A8Unorm texture
func (c *CommandBuffer) Texture2DPNG(r io.Reader) (*Image, error) {
	decoded, err := png.Decode(r)
	if err != nil {
		return nil, errors.Wrap(err, "png decode")
	}
	bounds := decoded.Bounds()
	return c.Texture2D(uint32(bounds.Dx()), uint32(bounds.Dy()), gfx.FormatR8G8B8A8Unorm, GetPixels(decoded)), nil
}

// EndRenderPass closes the render pass, leaving the target
// in the final layout of the pipeline
func (c *CommandBuffer) EndRenderPass() {
	if !c.begun || c.ended {
		fatalf("render pass ended without being begun")
	}
	c.rec.EndRenderPass()
	c.pipeline.target.layout = c.pipeline.final
	c.ended = true
}

// Build finishes the recording
func (c *CommandBuffer) Build() *Recording {
	if c.built {
		fatalf("command buffer already built")
	}
	if c.begun && !c.ended {
		fatalf("command buffer built inside a render pass")
	}
	c.built = true

	cmd, err := c.rec.End()
	if err != nil {
		fatal(err, "Failed to build command buffer")
	}
	return &Recording{
		ctx:       c.ctx,
		cmd:       cmd,
		transient: c.transient,
	}
}

// BuildAndExecute finishes the recording and submits it
func (c *CommandBuffer) BuildAndExecute() *Future {
	return c.Build().Execute()
}

// BuildAndExecuteNow finishes the recording, submits it and waits for
// its completion before releasing it
func (c *CommandBuffer) BuildAndExecuteNow() {
	f := c.BuildAndExecute()
	if err := f.Wait(Forever); err != nil {
		fatal(err, "Failed to wait for command buffer")
	}
	f.Release()
}
