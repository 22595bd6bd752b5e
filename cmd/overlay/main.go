// Copyright (c) 2019 devblok
//
// This software is released under the MIT License.
// https://opensource.org/licenses/MIT

// Command overlay draws a texture from the asset archive into a window,
// or into off-screen images when run headless.
package main

import (
	"bytes"
	"flag"
	"os"
	"runtime"
	"runtime/pprof"
	"strings"
	"time"

	"github.com/pkg/errors"
	log "github.com/sirupsen/logrus"

	"github.com/devblok/overlaygfx/assets"
	"github.com/devblok/overlaygfx/core"
	"github.com/devblok/overlaygfx/core/renderer"
	"github.com/devblok/overlaygfx/gfx"
	"github.com/devblok/overlaygfx/gfx/soft"
	"github.com/devblok/overlaygfx/utility/kar"
)

// Texture is the archive path of the drawn image
const Texture = "textures/overlay.png"

func init() {
	runtime.LockOSThread()
}

var (
	envFiles   = flag.String("env", "", "Comma separated .env files to load")
	headless   = flag.Bool("headless", false, "Render with the software device, without a window")
	frames     = flag.Int("frames", 0, "Exit after this many frames, 0 runs until closed")
	debug      = flag.Bool("vkdbg", false, "Load Vulkan validation layers")
	cpuProfile = flag.String("cpuprof", "", "Profile CPU usage to file")
)

func main() {
	flag.Parse()

	var files []string
	if *envFiles != "" {
		files = strings.Split(*envFiles, ",")
	}
	cfg, err := core.LoadConfiguration(files...)
	if err != nil {
		log.WithError(err).Fatal("Failed to load configuration")
	}
	if *debug {
		cfg.Device.DebugMode = true
	}

	logFile, err := core.SetupLogging(cfg.Log)
	if err != nil {
		log.WithError(err).Fatal("Failed to set up logging")
	}
	defer logFile.Close()

	if *cpuProfile != "" {
		f, err := os.Create(*cpuProfile)
		if err != nil {
			log.WithError(err).Fatal("Failed to create profile")
		}
		if err := pprof.StartCPUProfile(f); err != nil {
			log.WithError(err).Fatal("Failed to start profiling")
		}
		defer pprof.StopCPUProfile()
	}

	if err := run(cfg); err != nil {
		log.WithError(err).Error("Overlay failed")
		os.Exit(1)
	}
}

func run(cfg core.Configuration) error {
	archive, err := kar.OpenFile(cfg.Assets)
	if err != nil {
		return errors.Wrap(err, "open assets")
	}
	defer archive.Close()

	shaders, err := assets.LoadShaderPair(archive, assets.Quad)
	if err != nil {
		return err
	}
	texture, err := archive.ReadAll(Texture)
	if err != nil {
		return errors.Wrap(err, "read texture")
	}

	var (
		dev gfx.SurfaceDevice
		win *window
	)
	if *headless {
		dev, err = soft.New(soft.Config{
			DeviceExtensions: cfg.Device.DeviceExtensions,
			Surface:          true,
			SurfaceExtent:    gfx.Extent2D{Width: cfg.Renderer.ScreenWidth, Height: cfg.Renderer.ScreenHeight},
		})
	} else {
		if win, err = newWindow(cfg.Renderer); err != nil {
			return err
		}
		defer win.destroy()
		dev, err = win.device(cfg.Device)
	}
	if err != nil {
		return errors.Wrap(err, "create device")
	}

	ctx := core.NewContext(dev)
	defer ctx.Release()

	cb := ctx.CreateCommandBuffer(gfx.UsageOneTimeSubmit)
	image, err := cb.Texture2DPNG(bytes.NewReader(texture))
	if err != nil {
		return errors.Wrap(err, Texture)
	}
	cb.BuildAndExecuteNow()
	defer image.Release()

	// the texture covers the middle of every target
	scene := renderer.SceneFunc(func(p *core.Pipeline) []*core.Pass {
		extent := p.Target().Extent()
		width, height := float32(extent.Width), float32(extent.Height)
		verts := ctx.UploadVerts(width, height, width/4, height/4, width/2, height/2)
		set := p.UniformSampler(0, image, gfx.FilterLinear)
		return []*core.Pass{
			p.CreatePass([2]float32{width, height}, verts, ctx.QuadIndices.Retain(), []*core.DescriptorSet{set}),
		}
	})

	presenter, err := renderer.NewPresenter(ctx, shaders, scene, cfg.Renderer)
	if err != nil {
		return err
	}
	defer presenter.Release()

	return loop(cfg.Time, presenter, win)
}

func loop(cfg core.TimeConfiguration, presenter *renderer.Presenter, win *window) error {
	timeService := core.NewTime(cfg)
	defer timeService.Stop()

	report := time.NewTicker(time.Second)
	defer report.Stop()
	last := 0

	for {
		select {
		case <-timeService.EventTicker().C:
			if win == nil {
				continue
			}
			quit, resized := win.poll()
			if quit {
				log.WithField("frames", presenter.Frames()).Info("Window closed")
				return nil
			}
			if resized {
				if err := presenter.Recreate(); err != nil {
					return err
				}
			}
		case <-timeService.FpsTicker().C:
			if err := presenter.Frame(); err != nil {
				return err
			}
			if *frames > 0 && presenter.Frames() >= *frames {
				log.WithField("frames", presenter.Frames()).Info("Frame limit reached")
				return nil
			}
		case <-report.C:
			log.WithFields(log.Fields{
				"fps":         presenter.Frames() - last,
				"recreations": presenter.Recreations(),
				"cgoCalls":    runtime.NumCgoCall(),
			}).Debug("Frame rate")
			last = presenter.Frames()
		}
	}
}
