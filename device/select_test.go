package device_test

import (
	"encoding/json"
	"testing"

	qt "github.com/frankban/quicktest"

	"github.com/devblok/overlaygfx/device"
)

func qualifying(name string, t device.Type) device.PhysicalDeviceInfo {
	return device.PhysicalDeviceInfo{
		Name:       name,
		Type:       t,
		Extensions: append([]string{"VK_KHR_maintenance1"}, device.RequiredExtensions...),
		QueueFamilies: []device.QueueFamily{
			{Graphics: false, Present: true},
			{Graphics: true, Present: true},
		},
	}
}

func TestSelectPrefersDiscrete(t *testing.T) {
	c := qt.New(t)

	devices := []device.PhysicalDeviceInfo{
		qualifying("llvmpipe", device.TypeVirtual),
		qualifying("radeon", device.TypeDiscrete),
		qualifying("intel", device.TypeIntegrated),
	}

	sel, err := device.Select(devices, nil, true)
	c.Assert(err, qt.IsNil)
	c.Assert(sel.Index, qt.Equals, 1)
	c.Assert(sel.QueueFamily, qt.Equals, 1)
}

func TestSelectMissingExtension(t *testing.T) {
	c := qt.New(t)

	discrete := qualifying("radeon", device.TypeDiscrete)
	discrete.Extensions = discrete.Extensions[:len(discrete.Extensions)-1]

	devices := []device.PhysicalDeviceInfo{
		discrete,
		qualifying("intel", device.TypeIntegrated),
	}

	sel, err := device.Select(devices, nil, false)
	c.Assert(err, qt.IsNil)
	c.Assert(devices[sel.Index].Name, qt.Equals, "intel")
}

func TestSelectRuntimeExtensions(t *testing.T) {
	c := qt.New(t)

	devices := []device.PhysicalDeviceInfo{
		qualifying("radeon", device.TypeDiscrete),
	}

	_, err := device.Select(devices, []string{"VK_KHR_external_semaphore_fd\x00"}, false)
	c.Assert(err, qt.Equals, device.ErrNoSuitableDevice)

	sel, err := device.Select(devices, []string{"VK_KHR_maintenance1\x00"}, false)
	c.Assert(err, qt.IsNil)
	c.Assert(sel.Index, qt.Equals, 0)
}

func TestSelectPresentSupport(t *testing.T) {
	c := qt.New(t)

	discrete := qualifying("radeon", device.TypeDiscrete)
	discrete.QueueFamilies = []device.QueueFamily{{Graphics: true, Present: false}}
	devices := []device.PhysicalDeviceInfo{
		discrete,
		qualifying("swiftshader", device.TypeCPU),
	}

	sel, err := device.Select(devices, nil, true)
	c.Assert(err, qt.IsNil)
	c.Assert(sel.Index, qt.Equals, 1)

	// without a surface the graphics-only family is enough
	sel, err = device.Select(devices, nil, false)
	c.Assert(err, qt.IsNil)
	c.Assert(sel, qt.Equals, device.Selection{Index: 0, QueueFamily: 0})
}

func TestSelectTiesKeepEnumerationOrder(t *testing.T) {
	c := qt.New(t)

	devices := []device.PhysicalDeviceInfo{
		qualifying("first", device.TypeIntegrated),
		qualifying("second", device.TypeIntegrated),
		qualifying("other", device.TypeOther),
	}

	sel, err := device.Select(devices, nil, false)
	c.Assert(err, qt.IsNil)
	c.Assert(sel.Index, qt.Equals, 0)
}

func TestSelectNothingSuitable(t *testing.T) {
	c := qt.New(t)

	invalid := qualifying("broken", device.TypeDiscrete)
	invalid.Invalid = true

	_, err := device.Select([]device.PhysicalDeviceInfo{invalid}, nil, false)
	c.Assert(err, qt.Equals, device.ErrNoSuitableDevice)

	_, err = device.Select(nil, nil, false)
	c.Assert(err, qt.Equals, device.ErrNoSuitableDevice)
}

func TestExtensionsUnion(t *testing.T) {
	c := qt.New(t)

	exts := device.Extensions([]string{"VK_KHR_swapchain\x00", "VK_EXT_debug_utils"})
	c.Assert(exts, qt.HasLen, len(device.RequiredExtensions)+1)
	c.Assert(exts[len(exts)-1], qt.Equals, "VK_EXT_debug_utils")
}

func TestTypeRankAndJSON(t *testing.T) {
	c := qt.New(t)

	c.Assert(device.TypeDiscrete.Rank(), qt.Equals, 0)
	c.Assert(device.TypeOther.Rank(), qt.Equals, 4)
	c.Assert(device.Type(42).Rank(), qt.Equals, 5)

	data, err := json.Marshal(device.PhysicalDeviceInfo{Name: "radeon", Type: device.TypeDiscrete})
	c.Assert(err, qt.IsNil)

	var decoded device.PhysicalDeviceInfo
	c.Assert(json.Unmarshal(data, &decoded), qt.IsNil)
	c.Assert(decoded.Type, qt.Equals, device.TypeDiscrete)
}
