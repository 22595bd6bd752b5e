package device

import (
	"strings"

	"github.com/pkg/errors"
)

// ErrNoSuitableDevice is returned when no device satisfies the requirements
var ErrNoSuitableDevice = errors.New("no suitable physical device found")

// RequiredExtensions are needed by every device rendering happens on:
// presentation, external memory import from DMA-BUF file descriptors
// and explicit DRM format modifier tiling.
var RequiredExtensions = []string{
	"VK_KHR_swapchain",
	"VK_KHR_external_memory",
	"VK_KHR_external_memory_fd",
	"VK_EXT_external_memory_dma_buf",
	"VK_EXT_image_drm_format_modifier",
}

// Extensions returns the union of RequiredExtensions and runtime,
// without duplicates and without NUL terminators.
func Extensions(runtime []string) []string {
	seen := make(map[string]struct{})
	var union []string
	for _, list := range [][]string{RequiredExtensions, runtime} {
		for _, ext := range list {
			ext = strings.TrimRight(ext, "\x00")
			if _, ok := seen[ext]; ok || ext == "" {
				continue
			}
			seen[ext] = struct{}{}
			union = append(union, ext)
		}
	}
	return union
}

// Selection is the device picked by Select
type Selection struct {
	Index       int
	QueueFamily int
}

// Select picks the device to render on. Devices missing any of the
// required extensions, or lacking a graphics queue family (that can
// also present when present is set) are discarded. Of the rest the
// one with the best ranked Type wins, ties go to the earlier device.
func Select(devices []PhysicalDeviceInfo, runtime []string, present bool) (Selection, error) {
	required := Extensions(runtime)

	best := -1
	var selection Selection
	for idx, dev := range devices {
		if dev.Invalid || !dev.HasExtensions(required) {
			continue
		}
		family, ok := dev.GraphicsQueue(present)
		if !ok {
			continue
		}
		if best < 0 || dev.Type.Rank() < best {
			best = dev.Type.Rank()
			selection = Selection{
				Index:       idx,
				QueueFamily: family,
			}
		}
	}

	if best < 0 {
		return Selection{}, ErrNoSuitableDevice
	}
	return selection, nil
}
