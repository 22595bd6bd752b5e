package core_test

import (
	"image"
	"image/color"
	"os"
	"path/filepath"
	"testing"
	"time"

	qt "github.com/frankban/quicktest"
	log "github.com/sirupsen/logrus"
	"golang.org/x/image/draw"

	"github.com/devblok/overlaygfx/core"
)

func TestLoadConfigurationDefaults(t *testing.T) {
	c := qt.New(t)

	cfg, err := core.LoadConfiguration()
	c.Assert(err, qt.IsNil)
	c.Assert(cfg, qt.DeepEquals, core.DefaultConfiguration())
}

func TestLoadConfigurationFromEnvironment(t *testing.T) {
	c := qt.New(t)
	c.Setenv(core.EnvDebug, "true")
	c.Setenv(core.EnvFps, "30")
	c.Setenv(core.EnvDeviceExtensions, "VK_KHR_a, VK_KHR_b,")
	c.Setenv(core.EnvLogLevel, "debug")

	envFile := filepath.Join(c.TempDir(), "overlay.env")
	c.Assert(os.WriteFile(envFile, []byte("OVERLAY_WIDTH=1024\nOVERLAY_FPS=90\n"), 0644), qt.IsNil)
	c.Cleanup(func() { os.Unsetenv(core.EnvWidth) })

	cfg, err := core.LoadConfiguration(envFile)
	c.Assert(err, qt.IsNil)
	c.Assert(cfg.Device.DebugMode, qt.IsTrue)
	c.Assert(cfg.Device.DeviceExtensions, qt.DeepEquals, []string{"VK_KHR_a", "VK_KHR_b"})
	c.Assert(cfg.Renderer.ScreenWidth, qt.Equals, uint32(1024))
	c.Assert(cfg.Renderer.ScreenHeight, qt.Equals, uint32(600))
	c.Assert(cfg.Log.Level, qt.Equals, "debug")

	// the environment takes precedence over files
	c.Assert(cfg.Time.FramesPerSecond, qt.Equals, 30)
}

func TestLoadConfigurationErrors(t *testing.T) {
	c := qt.New(t)

	_, err := core.LoadConfiguration(filepath.Join(c.TempDir(), "missing.env"))
	c.Assert(err, qt.ErrorMatches, "load env files: .*")

	c.Setenv(core.EnvSwapchainSize, "three")
	_, err = core.LoadConfiguration()
	c.Assert(err, qt.ErrorMatches, "OVERLAY_SWAPCHAIN_SIZE: .*invalid syntax")
}

func TestSetupLogging(t *testing.T) {
	c := qt.New(t)
	c.Cleanup(func() {
		log.SetOutput(os.Stderr)
		log.SetLevel(log.InfoLevel)
	})

	file := filepath.Join(c.TempDir(), "overlay.log")
	closer, err := core.SetupLogging(core.LogConfiguration{File: file, Level: "warn"})
	c.Assert(err, qt.IsNil)

	log.Info("dropped")
	log.WithField("frame", 3).Warn("kept")
	c.Assert(closer.Close(), qt.IsNil)

	data, err := os.ReadFile(file)
	c.Assert(err, qt.IsNil)
	c.Assert(string(data), qt.Not(qt.Contains), "dropped")
	c.Assert(string(data), qt.Matches, `(?s).*level=warning msg=kept frame=3.*`)

	_, err = core.SetupLogging(core.LogConfiguration{Level: "loud"})
	c.Assert(err, qt.ErrorMatches, "log level: .*")
}

func TestNewTime(t *testing.T) {
	c := qt.New(t)

	tm := core.NewTime(core.TimeConfiguration{FramesPerSecond: 50, EventPollDelay: 5})
	defer tm.Stop()
	c.Assert(tm.Fps(), qt.Equals, 50)
	c.Assert(tm.FrameInterval(), qt.Equals, 20*time.Millisecond)

	unlimited := core.NewTime(core.TimeConfiguration{})
	defer unlimited.Stop()
	c.Assert(unlimited.FrameInterval(), qt.Equals, time.Nanosecond)
	<-unlimited.EventTicker().C
}

func TestGetPixels(t *testing.T) {
	c := qt.New(t)

	src := image.NewNRGBA(image.Rect(0, 0, 3, 3))
	src.Set(1, 1, color.NRGBA{R: 10, G: 20, B: 30, A: 255})
	sub := src.SubImage(image.Rect(1, 1, 3, 2))

	c.Assert(core.GetPixels(sub), qt.DeepEquals, []uint8{10, 20, 30, 255, 0, 0, 0, 0})

	scaled := core.ScalePixels(sub, 4, 2, draw.NearestNeighbor)
	c.Assert(scaled, qt.HasLen, 4*2*4)
	c.Assert(scaled[:8], qt.DeepEquals, []uint8{10, 20, 30, 255, 10, 20, 30, 255})
}

func BenchmarkGetPixels(b *testing.B) {
	src := image.NewNRGBA(image.Rect(0, 0, 512, 512))
	for i := 0; i < b.N; i++ {
		core.GetPixels(src)
	}
}
