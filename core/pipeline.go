package core

import (
	"github.com/devblok/overlaygfx/gfx"
	"github.com/devblok/overlaygfx/model"
)

// Pipeline draws alpha blended, textured 2D quads into one target.
// It has to be rebuilt when the format or size of the target changes.
type Pipeline struct {
	ctx         *Context
	target      *Image
	shaders     gfx.ShaderPair
	renderPass  gfx.RenderPass
	pipeline    gfx.Pipeline
	framebuffer gfx.Framebuffer
	initial     gfx.ImageLayout
	final       gfx.ImageLayout
	extent      gfx.Extent2D
	format      gfx.Format
}

func newPipeline(ctx *Context, target *Image, shaders gfx.ShaderPair, initial, final gfx.ImageLayout) *Pipeline {
	p := &Pipeline{
		ctx:     ctx,
		target:  target.Retain(),
		shaders: shaders,
		initial: initial,
		final:   final,
		extent:  target.Extent(),
		format:  target.Format(),
	}

	var err error
	p.renderPass, err = ctx.device.CreateRenderPass(gfx.RenderPassDesc{
		Format:        p.format,
		InitialLayout: initial,
		FinalLayout:   final,
	})
	if err != nil {
		fatal(err, "Failed to create render pass")
	}

	p.pipeline, err = ctx.device.CreatePipeline(gfx.PipelineDesc{
		RenderPass: p.renderPass,
		Shaders:    shaders,
		Vertex:     model.Vert2UvLayout(),
		Extent:     p.extent,
	})
	if err != nil {
		fatal(err, "Failed to create graphics pipeline")
	}

	p.framebuffer, err = ctx.device.CreateFramebuffer(p.renderPass, target.View())
	if err != nil {
		fatal(err, "Failed to create framebuffer")
	}
	return p
}

// Target returns the image the pipeline draws into
func (p *Pipeline) Target() *Image {
	return p.target
}

// Layouts returns the layouts the target is expected in and left in
func (p *Pipeline) Layouts() (initial, final gfx.ImageLayout) {
	return p.initial, p.final
}

// Compatible reports whether the pipeline can still draw into target
func (p *Pipeline) Compatible(target *Image) bool {
	return target.Format() == p.format && target.Extent() == p.extent
}

// UniformSampler creates a descriptor set sampling texture at binding 0.
// The set keeps a reference to texture.
func (p *Pipeline) UniformSampler(set uint32, texture *Image, filter gfx.Filter) *DescriptorSet {
	sampler, err := p.ctx.device.CreateSampler(gfx.SamplerDesc{
		MagFilter: filter,
		MinFilter: filter,
	})
	if err != nil {
		fatal(err, "Failed to create sampler")
	}

	layout := gfx.LayoutShaderReadOnlyOptimal
	if texture.Layout() == gfx.LayoutGeneral {
		layout = gfx.LayoutGeneral
	}

	raw, err := p.ctx.device.CreateDescriptorSet(p.pipeline, set, gfx.DescriptorWrite{
		Binding: 0,
		Type:    gfx.DescriptorCombinedImageSampler,
		View:    texture.View(),
		Layout:  layout,
		Sampler: sampler,
	})
	if err != nil {
		sampler.Release()
		fatal(err, "Failed to create descriptor set")
	}

	return &DescriptorSet{
		raw:      raw,
		owned:    []gfx.Releasable{sampler},
		retained: texture.Retain(),
	}
}

// UniformBuffer creates a descriptor set with data in a uniform buffer
// at binding 0. The set owns the buffer.
func UniformBuffer[T any](p *Pipeline, set uint32, data []T) *DescriptorSet {
	buffer := DeviceBuffer(p.ctx, gfx.BufferUsageUniform, data)

	raw, err := p.ctx.device.CreateDescriptorSet(p.pipeline, set, gfx.DescriptorWrite{
		Binding: 0,
		Type:    gfx.DescriptorUniformBuffer,
		Buffer:  buffer.Raw(),
	})
	if err != nil {
		buffer.Release()
		fatal(err, "Failed to create descriptor set")
	}

	return &DescriptorSet{
		raw:   raw,
		owned: []gfx.Releasable{buffer},
	}
}

// Release frees the pipeline and drops its reference to the target
func (p *Pipeline) Release() {
	p.framebuffer.Release()
	p.pipeline.Release()
	p.renderPass.Release()
	p.target.Release()
}

// DescriptorSet binds resources to the shaders of a pipeline
type DescriptorSet struct {
	raw      gfx.DescriptorSet
	owned    []gfx.Releasable
	retained *Image
}

// Raw returns the backend descriptor set
func (s *DescriptorSet) Raw() gfx.DescriptorSet {
	return s.raw
}

// Release frees the set and what it owns
func (s *DescriptorSet) Release() {
	s.raw.Release()
	for _, o := range s.owned {
		o.Release()
	}
	if s.retained != nil {
		s.retained.Release()
	}
}
