package core

import (
	"github.com/devblok/overlaygfx/gfx"
	"github.com/devblok/overlaygfx/model"
)

// Pass is a draw recorded once and executed by any number of frames
// drawing with its pipeline. It owns its buffers and descriptor sets,
// callers sharing one with other passes Retain it first.
type Pass struct {
	pipeline *Pipeline
	vertices *Buffer[model.Vert2Uv]
	indices  *Buffer[uint16]
	sets     []*DescriptorSet
	cmd      gfx.CommandBuffer
}

// CreatePass records drawing indices of vertices with sets bound from
// set index 0, into a viewport of the given pixel dimensions
func (p *Pipeline) CreatePass(dimensions [2]float32, vertices *Buffer[model.Vert2Uv], indices *Buffer[uint16], sets []*DescriptorSet) *Pass {
	rec, err := p.ctx.device.Record(gfx.LevelSecondary, gfx.UsageMultipleSubmit, p.renderPass)
	if err != nil {
		fatal(err, "Failed to draw")
	}

	rec.SetViewport(dimensions[0], dimensions[1])
	rec.BindPipeline(p.pipeline)
	if len(sets) > 0 {
		raw := make([]gfx.DescriptorSet, len(sets))
		for idx, s := range sets {
			raw[idx] = s.raw
		}
		rec.BindDescriptorSets(p.pipeline, 0, raw...)
	}
	rec.BindVertexBuffer(0, vertices.Raw())
	rec.BindIndexBuffer(indices.Raw())
	rec.DrawIndexed(uint32(indices.Len()), 1, 0, 0, 0)

	cmd, err := rec.End()
	if err != nil {
		fatal(err, "Failed to draw")
	}

	return &Pass{
		pipeline: p,
		vertices: vertices,
		indices:  indices,
		sets:     sets,
		cmd:      cmd,
	}
}

// Raw returns the recorded secondary command buffer
func (p *Pass) Raw() gfx.CommandBuffer {
	return p.cmd
}

// Pipeline returns the pipeline the pass draws with
func (p *Pass) Pipeline() *Pipeline {
	return p.pipeline
}

// Release frees the recording and everything the pass owns
func (p *Pass) Release() {
	p.cmd.Release()
	p.vertices.Release()
	p.indices.Release()
	for _, s := range p.sets {
		s.Release()
	}
}
