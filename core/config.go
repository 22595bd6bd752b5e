package core

import (
	"strconv"
	"strings"

	"github.com/gobuffalo/envy"
	"github.com/joho/godotenv"
	"github.com/pkg/errors"

	"github.com/devblok/overlaygfx/gfx"
)

// Configuration defines a global configuration setting
type Configuration struct {
	Device   gfx.DeviceConfiguration
	Renderer RendererConfiguration
	Time     TimeConfiguration
	Log      LogConfiguration

	// Assets is the path of the asset archive
	Assets string
}

// TimeConfiguration is used to configure time services
type TimeConfiguration struct {
	// FramesPerSecond caps frames per second that is put out
	// To unlimit, set to 0
	FramesPerSecond int

	// EventPollDelay is the interval of event polling in milliseconds
	EventPollDelay int
}

// RendererConfiguration is used to configure presentation
type RendererConfiguration struct {
	SwapchainSize uint32

	ScreenWidth  uint32
	ScreenHeight uint32
}

// LogConfiguration is used to configure logging
type LogConfiguration struct {
	// File receives a copy of everything logged,
	// empty logs to stderr only
	File  string
	Level string
}

// DefaultConfiguration returns the configuration used
// when nothing is overridden
func DefaultConfiguration() Configuration {
	return Configuration{
		Device: gfx.DeviceConfiguration{
			ApplicationName: "overlaygfx",
		},
		Renderer: RendererConfiguration{
			SwapchainSize: 3,
			ScreenWidth:   800,
			ScreenHeight:  600,
		},
		Time: TimeConfiguration{
			FramesPerSecond: 60,
			EventPollDelay:  10,
		},
		Log: LogConfiguration{
			File:  "/tmp/overlay.log",
			Level: "info",
		},
		Assets: "assets.kar",
	}
}

// Environment variables read by LoadConfiguration
const (
	EnvDebug            = "OVERLAY_DEBUG"
	EnvFps              = "OVERLAY_FPS"
	EnvWidth            = "OVERLAY_WIDTH"
	EnvHeight           = "OVERLAY_HEIGHT"
	EnvSwapchainSize    = "OVERLAY_SWAPCHAIN_SIZE"
	EnvDeviceExtensions = "OVERLAY_DEVICE_EXTENSIONS"
	EnvLogFile          = "OVERLAY_LOGFILE"
	EnvLogLevel         = "OVERLAY_LOGLEVEL"
	EnvAssets           = "OVERLAY_ASSETS"
)

// LoadConfiguration loads the given .env files, which must exist, into
// the environment and overrides the default configuration with it
func LoadConfiguration(files ...string) (Configuration, error) {
	if len(files) > 0 {
		if err := godotenv.Load(files...); err != nil {
			return Configuration{}, errors.Wrap(err, "load env files")
		}
	}
	envy.Reload()

	cfg := DefaultConfiguration()

	var err error
	if cfg.Device.DebugMode, err = envBool(EnvDebug, cfg.Device.DebugMode); err != nil {
		return cfg, err
	}
	if cfg.Time.FramesPerSecond, err = envInt(EnvFps, cfg.Time.FramesPerSecond); err != nil {
		return cfg, err
	}
	if cfg.Renderer.ScreenWidth, err = envUint32(EnvWidth, cfg.Renderer.ScreenWidth); err != nil {
		return cfg, err
	}
	if cfg.Renderer.ScreenHeight, err = envUint32(EnvHeight, cfg.Renderer.ScreenHeight); err != nil {
		return cfg, err
	}
	if cfg.Renderer.SwapchainSize, err = envUint32(EnvSwapchainSize, cfg.Renderer.SwapchainSize); err != nil {
		return cfg, err
	}

	if exts := envy.Get(EnvDeviceExtensions, ""); exts != "" {
		for _, ext := range strings.Split(exts, ",") {
			if ext = strings.TrimSpace(ext); ext != "" {
				cfg.Device.DeviceExtensions = append(cfg.Device.DeviceExtensions, ext)
			}
		}
	}

	cfg.Log.File = envy.Get(EnvLogFile, cfg.Log.File)
	cfg.Log.Level = envy.Get(EnvLogLevel, cfg.Log.Level)
	cfg.Assets = envy.Get(EnvAssets, cfg.Assets)
	return cfg, nil
}

func envBool(key string, fallback bool) (bool, error) {
	v := envy.Get(key, "")
	if v == "" {
		return fallback, nil
	}
	b, err := strconv.ParseBool(v)
	return b, errors.Wrapf(err, "%s", key)
}

func envInt(key string, fallback int) (int, error) {
	v := envy.Get(key, "")
	if v == "" {
		return fallback, nil
	}
	i, err := strconv.Atoi(v)
	return i, errors.Wrapf(err, "%s", key)
}

func envUint32(key string, fallback uint32) (uint32, error) {
	v := envy.Get(key, "")
	if v == "" {
		return fallback, nil
	}
	u, err := strconv.ParseUint(v, 10, 32)
	return uint32(u), errors.Wrapf(err, "%s", key)
}
