// Copyright (c) 2019 devblok
//
// This software is released under the MIT License.
// https://opensource.org/licenses/MIT

// Package gfx defines rendering related features that backends must implement.
// Callers program against the Device interface, never against a vendor handle.
package gfx

import (
	"errors"
	"time"
)

// package errors
var (
	ErrOutOfDate = errors.New("gfx: swapchain is out of date")
	ErrTimeout   = errors.New("gfx: wait timed out")
	ErrNotReady  = errors.New("gfx: object is not ready")
	ErrReleased  = errors.New("gfx: object already released")
)

// ImportError reports that shared memory could not be bound to an image.
// The frame it came from can be skipped.
type ImportError struct {
	Err error
}

func (e *ImportError) Error() string {
	return "gfx: import failed: " + e.Err.Error()
}

// Unwrap returns the underlying cause
func (e *ImportError) Unwrap() error {
	return e.Err
}

// Releasable defines any memory-occupying item that can be freed.
type Releasable interface {

	// Release releases memory occupied by the implementing structure.
	Release()
}

// Buffer is a region of GPU addressable memory.
type Buffer interface {
	Releasable

	// Size returns the size of the buffer in bytes.
	Size() int

	// Usage returns the usage the buffer was created with.
	Usage() BufferUsage

	// Read copies the current contents of the buffer to host memory.
	Read() ([]byte, error)

	// Write replaces the contents of the buffer, starting at offset zero.
	Write(data []byte) error
}

// ImageInfo describes a two dimensional image.
type ImageInfo struct {
	Extent Extent2D
	Format Format
	Usage  ImageUsage
}

// Image is a 2D pixel surface.
type Image interface {
	Releasable

	// Info returns the parameters the image was created with.
	Info() ImageInfo
}

// ImageView is a view over the whole of an Image.
type ImageView interface {
	Releasable

	// Image returns the viewed image.
	Image() Image
}

// Sampler describes how shaders read from an image.
type Sampler interface {
	Releasable
}

// RenderPass describes the single color attachment of a pipeline.
type RenderPass interface {
	Releasable

	// Desc returns the description the render pass was created from.
	Desc() RenderPassDesc
}

// Pipeline is a graphics pipeline together with its layout.
type Pipeline interface {
	Releasable
}

// Framebuffer binds a render pass to a target view.
type Framebuffer interface {
	Releasable

	// Extent returns the dimensions of the framebuffer.
	Extent() Extent2D
}

// DescriptorSet is a group of resource bindings visible to shaders.
type DescriptorSet interface {
	Releasable
}

// CommandBuffer is a finished recording.
type CommandBuffer interface {
	Releasable

	Level() CommandBufferLevel
	Usage() CommandBufferUsage
}

// Fence is a host-waitable signal of GPU work completion.
type Fence interface {
	Releasable

	// Wait blocks until the fence is signaled or timeout passes,
	// in which case ErrTimeout is returned.
	Wait(timeout time.Duration) error

	// Signaled reports whether the fence is signaled without blocking.
	Signaled() (bool, error)
}

// Recorder records commands into a command buffer. Recording never fails
// halfway, errors are reported by End.
type Recorder interface {
	SetViewport(width, height float32)
	BindPipeline(p Pipeline)
	BindDescriptorSets(p Pipeline, first uint32, sets ...DescriptorSet)
	BindVertexBuffer(binding uint32, b Buffer)
	BindIndexBuffer(b Buffer)
	DrawIndexed(indexCount, instanceCount, firstIndex uint32, vertexOffset int32, firstInstance uint32)

	// BeginRenderPass starts a render pass instance whose contents are
	// provided by secondary command buffers.
	BeginRenderPass(rp RenderPass, fb Framebuffer, clear [4]float32)
	ExecuteCommands(cmds ...CommandBuffer)
	EndRenderPass()

	// CopyBufferToImage copies the whole of src into dst, which must be
	// in TransferDstOptimal layout.
	CopyBufferToImage(src Buffer, dst Image)
	PipelineBarrier(barriers ...ImageBarrier)

	// End finishes the recording.
	End() (CommandBuffer, error)
}

// Device is a logical device with a single queue.
type Device interface {
	Releasable

	// AllocateBuffer creates a buffer and synchronously copies data into it.
	AllocateBuffer(usage BufferUsage, pref MemoryPreference, data []byte) (Buffer, error)

	// AllocateImage creates an optimally tiled image in device-local memory.
	AllocateImage(info ImageInfo) (Image, error)

	// ImportImage creates an image backed by memory shared through the fd of plane.
	// No pixel data is copied.
	ImportImage(info ImageInfo, plane DmabufPlane) (Image, error)

	CreateImageView(img Image) (ImageView, error)
	CreateSampler(desc SamplerDesc) (Sampler, error)
	CreateRenderPass(desc RenderPassDesc) (RenderPass, error)
	CreatePipeline(desc PipelineDesc) (Pipeline, error)
	CreateFramebuffer(rp RenderPass, view ImageView) (Framebuffer, error)

	// CreateDescriptorSet allocates a set laid out as set index set of p
	// and writes the given bindings into it.
	CreateDescriptorSet(p Pipeline, set uint32, writes ...DescriptorWrite) (DescriptorSet, error)

	// Record starts a new recording. Secondary recordings continue inherit,
	// which must be nil for primary ones.
	Record(level CommandBufferLevel, usage CommandBufferUsage, inherit RenderPass) (Recorder, error)

	CreateFence() (Fence, error)

	// Submit queues cmd and signals fence, if not nil, on completion.
	Submit(cmd CommandBuffer, fence Fence) error

	// WaitIdle blocks until the queue has drained.
	WaitIdle() error
}

// SurfaceDevice is a Device that can present to a surface.
type SurfaceDevice interface {
	Device

	// CreateSwapchain creates a swapchain for the surface. With FormatUndefined
	// the first format the surface reports is used. previous may be nil.
	CreateSwapchain(format Format, size uint32, previous Swapchain) (Swapchain, error)
}

// Swapchain is a set of presentable images.
type Swapchain interface {
	Releasable

	Format() Format
	Extent() Extent2D
	Images() []Image

	// Acquire returns the index of the next image available for rendering.
	Acquire(timeout time.Duration) (int, error)

	// Present queues the image at index for presentation.
	Present(index int) error
}
