package core

import (
	"github.com/pkg/errors"
	log "github.com/sirupsen/logrus"

	"github.com/devblok/overlaygfx/gfx"
	"github.com/devblok/overlaygfx/model"
)

// Context is the entry point of the rendering layer. It owns the device
// and hands out resources, pipelines and command buffers built on it.
// Everything created from a Context must be released before it is.
type Context struct {
	device gfx.Device

	// QuadVerts and QuadIndices hold the unit quad
	QuadVerts   *Buffer[model.Vert2Uv]
	QuadIndices *Buffer[uint16]
}

// NewContext takes ownership of dev and uploads the unit quad
func NewContext(dev gfx.Device) *Context {
	ctx := &Context{device: dev}
	ctx.QuadVerts = DeviceBuffer(ctx, gfx.BufferUsageVertex, model.Quad())
	ctx.QuadIndices = DeviceBuffer(ctx, gfx.BufferUsageIndex, model.QuadIndices())
	return ctx
}

// Device returns the underlying device
func (c *Context) Device() gfx.Device {
	return c.device
}

// UploadVerts creates a vertex buffer holding the quad that covers
// the rectangle x, y, w, h of a width by height target
func (c *Context) UploadVerts(width, height, x, y, w, h float32) *Buffer[model.Vert2Uv] {
	return UploadBuffer(c, gfx.BufferUsageVertex, model.QuadVerts(width, height, x, y, w, h))
}

// RenderTexture allocates an off-screen target that can also be sampled
// and copied from. It is returned in ColorAttachmentOptimal layout.
func (c *Context) RenderTexture(width, height uint32, format gfx.Format) *Image {
	raw, err := c.device.AllocateImage(gfx.ImageInfo{
		Extent: gfx.Extent2D{Width: width, Height: height},
		Format: format,
		Usage: gfx.ImageUsageColorAttachment |
			gfx.ImageUsageSampled |
			gfx.ImageUsageTransferSrc,
	})
	if err != nil {
		fatal(err, "Failed to allocate render texture")
	}

	img := newImage(c, raw)
	fence := c.TransitionLayout(img, gfx.LayoutUndefined, gfx.LayoutColorAttachmentOptimal)
	defer fence.Release()
	if err := fence.Wait(Forever); err != nil {
		fatal(err, "Failed to prepare render texture")
	}
	return img
}

// DmabufTexture imports a frame shared by a capture source without
// copying it. Frames with more than one plane or without a file descriptor
// are skipped and nil is returned, as is the case when the shared memory
// cannot be bound. The image starts in Undefined layout.
func (c *Context) DmabufTexture(frame gfx.DmabufFrame) *Image {
	format, ok := gfx.FourccFormat(frame.Fourcc)
	if !ok {
		fatal(errors.Errorf("fourcc %s (%#08x)", frame.Fourcc, uint32(frame.Fourcc)), "Unsupported DMA-buf format")
	}

	if frame.NumPlanes != 1 {
		log.WithField("planes", frame.NumPlanes).Error("Multi-plane DMA-buf frames are not supported")
		return nil
	}
	plane := frame.Planes[0]
	fd, ok := plane.Fd()
	if !ok {
		log.Error("DMA-buf plane has no file descriptor")
		return nil
	}

	raw, err := c.device.ImportImage(gfx.ImageInfo{
		Extent: gfx.Extent2D{Width: frame.Width, Height: frame.Height},
		Format: format,
		Usage:  gfx.ImageUsageSampled | gfx.ImageUsageTransferSrc,
	}, plane)
	if err != nil {
		var importErr *gfx.ImportError
		if errors.As(err, &importErr) {
			log.WithError(err).WithField("fd", fd).Error("Failed to bind DMA-buf memory")
			return nil
		}
		fatal(err, "Failed to create DMA-buf image")
	}

	img := newImage(c, raw)
	img.imported = true
	return img
}

// CreatePipeline builds a pipeline drawing into target, with the target
// in ColorAttachmentOptimal layout before and after the render pass
func (c *Context) CreatePipeline(target *Image, shaders gfx.ShaderPair) *Pipeline {
	return c.CreatePipelineWithLayouts(target, shaders,
		gfx.LayoutColorAttachmentOptimal, gfx.LayoutColorAttachmentOptimal)
}

// CreatePipelineWithLayouts builds a pipeline drawing into target that
// expects it in initial layout and leaves it in final, which is how
// targets are handed over to a presentation surface or compositor
func (c *Context) CreatePipelineWithLayouts(target *Image, shaders gfx.ShaderPair, initial, final gfx.ImageLayout) *Pipeline {
	return newPipeline(c, target, shaders, initial, final)
}

// CreateCommandBuffer starts recording a frame
func (c *Context) CreateCommandBuffer(usage gfx.CommandBufferUsage) *CommandBuffer {
	rec, err := c.device.Record(gfx.LevelPrimary, usage, nil)
	if err != nil {
		fatal(err, "Failed to begin command buffer")
	}
	return &CommandBuffer{
		ctx: c,
		rec: rec,
	}
}

// TransitionLayout submits a barrier moving image from layout old to new
// and returns the fence signaled once it completes
func (c *Context) TransitionLayout(image *Image, old, new gfx.ImageLayout) *Fence {
	rec, err := c.device.Record(gfx.LevelPrimary, gfx.UsageOneTimeSubmit, nil)
	if err != nil {
		fatal(err, "Failed to begin layout transition")
	}
	rec.PipelineBarrier(gfx.ImageBarrier{
		Image:     image.raw,
		OldLayout: old,
		NewLayout: new,
		Src:       gfx.AccessTransferWrite,
		Dst:       gfx.AccessTransferRead,
	})
	cmd, err := rec.End()
	if err != nil {
		fatal(err, "Failed to record layout transition")
	}

	fence, err := c.device.CreateFence()
	if err != nil {
		fatal(err, "Failed to create fence")
	}
	if err := c.device.Submit(cmd, fence); err != nil {
		fatal(err, "Failed to submit layout transition")
	}

	image.layout = new
	return &Fence{raw: fence, transient: []gfx.Releasable{cmd}}
}

// Release frees the unit quad and the device
func (c *Context) Release() {
	if err := c.device.WaitIdle(); err != nil {
		log.WithError(err).Warn("Device did not become idle")
	}
	c.QuadVerts.Release()
	c.QuadIndices.Release()
	c.device.Release()
}
