// Command overlaycli prints the physical devices Vulkan reports
// and the one the overlay would render on.
package main

import (
	"encoding/json"
	"flag"
	"os"
	"strings"

	log "github.com/sirupsen/logrus"

	"github.com/devblok/overlaygfx/core"
	"github.com/devblok/overlaygfx/device"
	"github.com/devblok/overlaygfx/gfx/vkr"
)

var (
	extensions = flag.String("ext", "", "Comma separated device extensions required in addition to the built-in ones")
	debug      = flag.Bool("vkdbg", false, "Load Vulkan validation layers")
	indent     = flag.Bool("indent", true, "Indent the output")
)

type report struct {
	Required []string                    `json:"required"`
	Devices  []device.PhysicalDeviceInfo `json:"devices"`
	Selected *device.Selection           `json:"selected,omitempty"`
	Error    string                      `json:"error,omitempty"`
}

func main() {
	flag.Parse()

	cfg := core.DefaultConfiguration().Device
	cfg.DebugMode = *debug
	if *extensions != "" {
		cfg.DeviceExtensions = strings.Split(*extensions, ",")
	}

	devices, err := vkr.Devices(vkr.Config{DeviceConfiguration: cfg})
	if err != nil {
		log.WithError(err).Fatal("Failed to enumerate devices")
	}

	r := report{
		Required: device.Extensions(cfg.DeviceExtensions),
		Devices:  devices,
	}
	// no surface exists, presentation support is not required
	if sel, err := device.Select(devices, cfg.DeviceExtensions, false); err != nil {
		r.Error = err.Error()
	} else {
		r.Selected = &sel
	}

	enc := json.NewEncoder(os.Stdout)
	if *indent {
		enc.SetIndent("", "  ")
	}
	if err := enc.Encode(r); err != nil {
		log.WithError(err).Fatal("Failed to encode devices")
	}
}
