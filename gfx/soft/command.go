// Copyright (c) 2019 devblok
//
// This software is released under the MIT License.
// https://opensource.org/licenses/MIT

package soft

import (
	"github.com/pkg/errors"

	"github.com/devblok/overlaygfx/gfx"
)

// Op identifies a recorded command
type Op int

// Recorded commands
const (
	OpSetViewport Op = iota
	OpBindPipeline
	OpBindDescriptorSets
	OpBindVertexBuffer
	OpBindIndexBuffer
	OpDrawIndexed
	OpBeginRenderPass
	OpExecuteCommands
	OpEndRenderPass
	OpCopyBufferToImage
	OpPipelineBarrier
)

var opNames = [...]string{
	"SetViewport",
	"BindPipeline",
	"BindDescriptorSets",
	"BindVertexBuffer",
	"BindIndexBuffer",
	"DrawIndexed",
	"BeginRenderPass",
	"ExecuteCommands",
	"EndRenderPass",
	"CopyBufferToImage",
	"PipelineBarrier",
}

func (o Op) String() string {
	return opNames[o]
}

// Command is one recorded command. Only the fields relevant to Op are set.
type Command struct {
	Op Op

	Viewport [2]float32

	Pipeline gfx.Pipeline
	FirstSet uint32
	Sets     []gfx.DescriptorSet

	Binding uint32
	Buffer  gfx.Buffer

	IndexCount    uint32
	InstanceCount uint32
	FirstIndex    uint32
	VertexOffset  int32
	FirstInstance uint32

	RenderPass  gfx.RenderPass
	Framebuffer gfx.Framebuffer
	Clear       [4]float32

	Commands []gfx.CommandBuffer

	Image    gfx.Image
	Barriers []gfx.ImageBarrier
}

// Recorder implements gfx.Recorder
type Recorder struct {
	device *Device
	cmd    *CommandBuffer

	inPass   bool
	pipeline bool
	index    bool
	err      error
}

func (r *Recorder) record(c Command) {
	r.cmd.commands = append(r.cmd.commands, c)
}

func (r *Recorder) fail(format string, args ...interface{}) {
	if r.err == nil {
		r.err = errors.Errorf("soft: "+format, args...)
	}
}

// SetViewport implements interface
func (r *Recorder) SetViewport(width, height float32) {
	r.record(Command{Op: OpSetViewport, Viewport: [2]float32{width, height}})
}

// BindPipeline implements interface
func (r *Recorder) BindPipeline(p gfx.Pipeline) {
	if _, ok := p.(*Pipeline); !ok {
		r.fail("bind of a foreign pipeline")
	}
	r.pipeline = true
	r.record(Command{Op: OpBindPipeline, Pipeline: p})
}

// BindDescriptorSets implements interface
func (r *Recorder) BindDescriptorSets(p gfx.Pipeline, first uint32, sets ...gfx.DescriptorSet) {
	for idx, s := range sets {
		set, ok := s.(*DescriptorSet)
		if !ok {
			r.fail("bind of a foreign descriptor set")
			continue
		}
		if set.set != first+uint32(idx) {
			r.fail("descriptor set laid out for index %d bound at %d", set.set, first+uint32(idx))
		}
	}
	r.record(Command{Op: OpBindDescriptorSets, Pipeline: p, FirstSet: first, Sets: sets})
}

// BindVertexBuffer implements interface
func (r *Recorder) BindVertexBuffer(binding uint32, b gfx.Buffer) {
	if b.Usage()&gfx.BufferUsageVertex == 0 {
		r.fail("vertex binding of a buffer without vertex usage")
	}
	r.record(Command{Op: OpBindVertexBuffer, Binding: binding, Buffer: b})
}

// BindIndexBuffer implements interface
func (r *Recorder) BindIndexBuffer(b gfx.Buffer) {
	if b.Usage()&gfx.BufferUsageIndex == 0 {
		r.fail("index binding of a buffer without index usage")
	}
	r.index = true
	r.record(Command{Op: OpBindIndexBuffer, Buffer: b})
}

// DrawIndexed implements interface
func (r *Recorder) DrawIndexed(indexCount, instanceCount, firstIndex uint32, vertexOffset int32, firstInstance uint32) {
	if !r.inPass {
		r.fail("draw outside of a render pass")
	}
	if !r.pipeline || !r.index {
		r.fail("draw without a bound pipeline and index buffer")
	}
	r.record(Command{
		Op:            OpDrawIndexed,
		IndexCount:    indexCount,
		InstanceCount: instanceCount,
		FirstIndex:    firstIndex,
		VertexOffset:  vertexOffset,
		FirstInstance: firstInstance,
	})
}

// BeginRenderPass implements interface
func (r *Recorder) BeginRenderPass(rp gfx.RenderPass, fb gfx.Framebuffer, clear [4]float32) {
	if r.cmd.level != gfx.LevelPrimary {
		r.fail("render pass begun in a secondary command buffer")
	}
	if r.inPass {
		r.fail("render pass begun twice")
	}
	r.inPass = true
	r.record(Command{Op: OpBeginRenderPass, RenderPass: rp, Framebuffer: fb, Clear: clear})
}

// ExecuteCommands implements interface
func (r *Recorder) ExecuteCommands(cmds ...gfx.CommandBuffer) {
	if r.cmd.level != gfx.LevelPrimary || !r.inPass {
		r.fail("secondary command buffers executed outside of a render pass")
	}
	for _, c := range cmds {
		if c.Level() != gfx.LevelSecondary {
			r.fail("execution of a primary command buffer")
		}
	}
	r.record(Command{Op: OpExecuteCommands, Commands: cmds})
}

// EndRenderPass implements interface
func (r *Recorder) EndRenderPass() {
	if r.cmd.level != gfx.LevelPrimary || !r.inPass {
		r.fail("render pass ended without being begun")
	}
	r.inPass = false
	r.record(Command{Op: OpEndRenderPass})
}

// CopyBufferToImage implements interface
func (r *Recorder) CopyBufferToImage(src gfx.Buffer, dst gfx.Image) {
	if r.inPass {
		r.fail("copy inside a render pass")
	}
	if src.Usage()&gfx.BufferUsageTransferSrc == 0 {
		r.fail("copy from a buffer without transfer source usage")
	}
	if dst.Info().Usage&gfx.ImageUsageTransferDst == 0 {
		r.fail("copy into an image without transfer destination usage")
	}
	r.record(Command{Op: OpCopyBufferToImage, Buffer: src, Image: dst})
}

// PipelineBarrier implements interface
func (r *Recorder) PipelineBarrier(barriers ...gfx.ImageBarrier) {
	if r.inPass {
		r.fail("image barrier inside a render pass")
	}
	r.record(Command{Op: OpPipelineBarrier, Barriers: barriers})
}

// End implements interface
func (r *Recorder) End() (gfx.CommandBuffer, error) {
	if r.cmd.level == gfx.LevelPrimary && r.inPass {
		r.fail("recording ended inside a render pass")
	}
	if r.err != nil {
		return nil, r.err
	}
	r.device.created()
	return r.cmd, nil
}

// CommandBuffer is a finished recording
type CommandBuffer struct {
	device   *Device
	level    gfx.CommandBufferLevel
	usage    gfx.CommandBufferUsage
	commands []Command
	submits  int
	released bool
}

// Level implements interface
func (c *CommandBuffer) Level() gfx.CommandBufferLevel {
	return c.level
}

// Usage implements interface
func (c *CommandBuffer) Usage() gfx.CommandBufferUsage {
	return c.usage
}

// Commands returns the recorded commands
func (c *CommandBuffer) Commands() []Command {
	return c.commands
}

// Count returns how many commands of kind op were recorded
func (c *CommandBuffer) Count(op Op) int {
	var n int
	for _, cmd := range c.commands {
		if cmd.Op == op {
			n++
		}
	}
	return n
}

// Release implements interface
func (c *CommandBuffer) Release() {
	if c.released {
		return
	}
	c.released = true
	c.device.destroyed()
}

func (c *CommandBuffer) submittable() error {
	if c.released {
		return gfx.ErrReleased
	}
	if c.usage == gfx.UsageOneTimeSubmit && c.submits > 0 {
		return errors.New("soft: one-time command buffer submitted again")
	}
	return nil
}

// execute runs commands, the device mutex must be held
func (d *Device) execute(commands []Command) error {
	var target *Image
	var pass *RenderPass
	for _, cmd := range commands {
		switch cmd.Op {
		case OpBeginRenderPass:
			pass = cmd.RenderPass.(*RenderPass)
			fb := cmd.Framebuffer.(*Framebuffer)
			if fb.released || fb.view.image.released {
				return errors.New("soft: render pass into a released framebuffer")
			}
			target = fb.view.image
			initial := pass.desc.InitialLayout
			if initial != gfx.LayoutUndefined && target.layout != initial {
				return errors.Errorf("soft: target is in layout %s, render pass expects %s", target.layout, initial)
			}
			clearPixels(target, cmd.Clear)
			target.layout = gfx.LayoutColorAttachmentOptimal
			d.stats.Clears++
		case OpExecuteCommands:
			for _, c := range cmd.Commands {
				secondary := c.(*CommandBuffer)
				if err := secondary.submittable(); err != nil {
					return err
				}
				if err := d.executeSecondary(secondary, pass); err != nil {
					return err
				}
				secondary.submits++
			}
		case OpEndRenderPass:
			target.layout = pass.desc.FinalLayout
			target, pass = nil, nil
		case OpCopyBufferToImage:
			src := cmd.Buffer.(*Buffer)
			dst := cmd.Image.(*Image)
			if src.released || dst.released {
				return errors.New("soft: copy between released resources")
			}
			if dst.layout != gfx.LayoutTransferDstOptimal {
				return errors.Errorf("soft: copy into an image in layout %s", dst.layout)
			}
			copy(dst.pixels, src.data)
			d.stats.Copies++
		case OpPipelineBarrier:
			for _, b := range cmd.Barriers {
				img := b.Image.(*Image)
				if b.OldLayout != gfx.LayoutUndefined && b.OldLayout != img.layout {
					return errors.Errorf("soft: barrier from %s on an image in layout %s", b.OldLayout, img.layout)
				}
				img.layout = b.NewLayout
				d.stats.Barriers++
			}
		case OpDrawIndexed:
			d.stats.Draws++
			d.stats.Indices += int(cmd.IndexCount * cmd.InstanceCount)
		}
	}
	return nil
}

func (d *Device) executeSecondary(c *CommandBuffer, pass *RenderPass) error {
	for _, cmd := range c.commands {
		switch cmd.Op {
		case OpBindPipeline:
			p := cmd.Pipeline.(*Pipeline)
			if p.released {
				return errors.New("soft: bound pipeline was released")
			}
			if p.desc.RenderPass.Desc().Format != pass.desc.Format {
				return errors.New("soft: pipeline is incompatible with the active render pass")
			}
		case OpBindVertexBuffer, OpBindIndexBuffer:
			if cmd.Buffer.(*Buffer).released {
				return errors.New("soft: bound buffer was released")
			}
		case OpBindDescriptorSets:
			for _, s := range cmd.Sets {
				if s.(*DescriptorSet).released {
					return errors.New("soft: bound descriptor set was released")
				}
			}
		case OpDrawIndexed:
			d.stats.Draws++
			d.stats.Indices += int(cmd.IndexCount * cmd.InstanceCount)
		}
	}
	return nil
}

func clearPixels(img *Image, color [4]float32) {
	var px [4]byte
	for idx, v := range color {
		if v < 0 {
			v = 0
		} else if v > 1 {
			v = 1
		}
		px[idx] = byte(v*255 + 0.5)
	}
	switch img.info.Format {
	case gfx.FormatB8G8R8A8Unorm, gfx.FormatB8G8R8A8Srgb:
		px[0], px[2] = px[2], px[0]
	}
	for off := 0; off+4 <= len(img.pixels); off += 4 {
		copy(img.pixels[off:off+4], px[:])
	}
}
