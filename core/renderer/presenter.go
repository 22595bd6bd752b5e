// Copyright (c) 2019 devblok
//
// This software is released under the MIT License.
// https://opensource.org/licenses/MIT

// Package renderer presents frames drawn by core onto a surface.
package renderer

import (
	"time"

	"github.com/pkg/errors"
	log "github.com/sirupsen/logrus"

	"github.com/devblok/overlaygfx/core"
	"github.com/devblok/overlaygfx/gfx"
)

// AcquireTimeout bounds the wait for the next swapchain image
const AcquireTimeout = time.Second

// Scene provides what is drawn into each swapchain image
type Scene interface {
	// Passes records the passes drawn with p. It is called once for
	// every pipeline, pipelines are replaced when the swapchain is.
	// The presenter owns the returned passes.
	Passes(p *core.Pipeline) []*core.Pass
}

// SceneFunc adapts a function to Scene
type SceneFunc func(p *core.Pipeline) []*core.Pass

// Passes implements Scene
func (f SceneFunc) Passes(p *core.Pipeline) []*core.Pass {
	return f(p)
}

// NewPresenter creates a swapchain on the surface of the context's
// device and a pipeline for each of its images
func NewPresenter(ctx *core.Context, shaders gfx.ShaderPair, scene Scene, cfg core.RendererConfiguration) (*Presenter, error) {
	dev, ok := ctx.Device().(gfx.SurfaceDevice)
	if !ok {
		return nil, errors.New("device cannot present to a surface")
	}

	p := &Presenter{
		ctx:     ctx,
		device:  dev,
		shaders: shaders,
		scene:   scene,
		cfg:     cfg,
	}
	if err := p.create(nil); err != nil {
		return nil, err
	}
	return p, nil
}

// Presenter draws a scene into swapchain images and presents them
type Presenter struct {
	ctx     *core.Context
	device  gfx.SurfaceDevice
	shaders gfx.ShaderPair
	scene   Scene
	cfg     core.RendererConfiguration

	swapchain gfx.Swapchain
	targets   []*core.Image
	pipelines []*core.Pipeline
	passes    [][]*core.Pass

	frames     int
	recreation int
}

func (p *Presenter) create(previous gfx.Swapchain) error {
	var format gfx.Format
	if previous != nil {
		format = previous.Format()
	}

	swapchain, err := p.device.CreateSwapchain(format, p.cfg.SwapchainSize, previous)
	if err != nil {
		return errors.Wrap(err, "swapchain")
	}
	if previous != nil {
		previous.Release()
	}
	p.swapchain = swapchain

	images := swapchain.Images()
	p.targets = make([]*core.Image, len(images))
	p.pipelines = make([]*core.Pipeline, len(images))
	p.passes = make([][]*core.Pass, len(images))
	for idx, img := range images {
		p.targets[idx] = core.WrapImage(p.ctx, img, gfx.LayoutUndefined)
		p.pipelines[idx] = p.ctx.CreatePipelineWithLayouts(p.targets[idx], p.shaders,
			gfx.LayoutUndefined, gfx.LayoutPresentSrc)
	}

	log.WithFields(log.Fields{
		"images": len(images),
		"format": swapchain.Format(),
		"width":  swapchain.Extent().Width,
		"height": swapchain.Extent().Height,
	}).Info("Swapchain created")
	return nil
}

func (p *Presenter) destroy() {
	for idx := range p.pipelines {
		for _, pass := range p.passes[idx] {
			pass.Release()
		}
		p.pipelines[idx].Release()
		p.targets[idx].Release()
	}
	p.targets, p.pipelines, p.passes = nil, nil, nil
}

// Recreate replaces the swapchain, as needed when the surface changes
func (p *Presenter) Recreate() error {
	if err := p.device.WaitIdle(); err != nil {
		return errors.Wrap(err, "wait idle")
	}
	p.destroy()
	p.recreation++
	return p.create(p.swapchain)
}

// Extent returns the size of the swapchain images
func (p *Presenter) Extent() gfx.Extent2D {
	return p.swapchain.Extent()
}

// Format returns the format of the swapchain images
func (p *Presenter) Format() gfx.Format {
	return p.swapchain.Format()
}

// Frames returns the number of frames presented
func (p *Presenter) Frames() int {
	return p.frames
}

// Recreations returns how many times the swapchain was replaced
func (p *Presenter) Recreations() int {
	return p.recreation
}

// Frame draws the scene into the next swapchain image and presents it.
// A frame skipped because the swapchain went out of date is not an error,
// the swapchain is recreated for the next one.
func (p *Presenter) Frame() error {
	idx, err := p.swapchain.Acquire(AcquireTimeout)
	if errors.Cause(err) == gfx.ErrOutOfDate {
		return p.Recreate()
	} else if err != nil {
		return errors.Wrap(err, "acquire")
	}

	pipeline := p.pipelines[idx]
	if p.passes[idx] == nil {
		p.passes[idx] = p.scene.Passes(pipeline)
	}

	cb := p.ctx.CreateCommandBuffer(gfx.UsageOneTimeSubmit)
	cb.BeginRenderPass(pipeline)
	for _, pass := range p.passes[idx] {
		cb.RunRef(pass)
	}
	cb.EndRenderPass()
	cb.BuildAndExecuteNow()

	err = p.swapchain.Present(idx)
	if errors.Cause(err) == gfx.ErrOutOfDate {
		return p.Recreate()
	} else if err != nil {
		return errors.Wrap(err, "present")
	}
	p.frames++
	return nil
}

// Release frees the swapchain and everything drawn into it
func (p *Presenter) Release() {
	if err := p.device.WaitIdle(); err != nil {
		log.WithError(err).Warn("Device did not become idle")
	}
	p.destroy()
	p.swapchain.Release()
}
