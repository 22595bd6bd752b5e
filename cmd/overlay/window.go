package main

import (
	"unsafe"

	vk "github.com/goki/vulkan"
	"github.com/pkg/errors"
	"github.com/veandco/go-sdl2/sdl"

	"github.com/devblok/overlaygfx/core"
	"github.com/devblok/overlaygfx/gfx"
	"github.com/devblok/overlaygfx/gfx/vkr"
)

// window is an SDL window presenting through Vulkan
type window struct {
	sdlWindow *sdl.Window
}

func newWindow(cfg core.RendererConfiguration) (*window, error) {
	if err := sdl.Init(sdl.INIT_VIDEO | sdl.INIT_EVENTS); err != nil {
		return nil, errors.Wrap(err, "sdl init")
	}
	if err := sdl.VulkanLoadLibrary(""); err != nil {
		sdl.Quit()
		return nil, errors.Wrap(err, "sdl vulkan library")
	}

	sdlWindow, err := sdl.CreateWindow("overlay",
		sdl.WINDOWPOS_UNDEFINED,
		sdl.WINDOWPOS_UNDEFINED,
		int32(cfg.ScreenWidth),
		int32(cfg.ScreenHeight),
		sdl.WINDOW_VULKAN|sdl.WINDOW_RESIZABLE)
	if err != nil {
		sdl.VulkanUnloadLibrary()
		sdl.Quit()
		return nil, errors.Wrap(err, "create window")
	}
	return &window{sdlWindow: sdlWindow}, nil
}

// device creates a Vulkan device presenting to the window
func (w *window) device(cfg gfx.DeviceConfiguration) (gfx.SurfaceDevice, error) {
	cfg.Extensions = append(cfg.Extensions, w.sdlWindow.VulkanGetInstanceExtensions()...)
	return vkr.New(vkr.Config{
		DeviceConfiguration: cfg,
		ProcAddr:            sdl.VulkanGetVkGetInstanceProcAddr(),
		Surface: func(instance vk.Instance) (unsafe.Pointer, error) {
			return w.sdlWindow.VulkanCreateSurface(instance)
		},
		SurfaceExtent: func() gfx.Extent2D {
			width, height := w.sdlWindow.VulkanGetDrawableSize()
			return gfx.Extent2D{Width: uint32(width), Height: uint32(height)}
		},
	})
}

// poll drains pending events, reporting whether the window should close
// and whether it changed size
func (w *window) poll() (quit, resized bool) {
	for event := sdl.PollEvent(); event != nil; event = sdl.PollEvent() {
		switch et := event.(type) {
		case *sdl.KeyboardEvent:
			if et.Keysym.Sym == sdl.K_ESCAPE {
				quit = true
			}
		case *sdl.WindowEvent:
			if et.Event == sdl.WINDOWEVENT_SIZE_CHANGED {
				resized = true
			}
		case *sdl.QuitEvent:
			quit = true
		}
	}
	return
}

func (w *window) destroy() {
	w.sdlWindow.Destroy()
	sdl.VulkanUnloadLibrary()
	sdl.Quit()
}
