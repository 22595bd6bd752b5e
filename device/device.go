// Package device describes physical rendering devices and picks
// the one rendering happens on.
package device

import (
	"fmt"
	"strings"
)

// Type is the class of a physical device
type Type int

// Device classes, in the order they are preferred
const (
	TypeDiscrete Type = iota
	TypeIntegrated
	TypeVirtual
	TypeCPU
	TypeOther
)

var typeNames = [...]string{"discrete", "integrated", "virtual", "cpu", "other"}

func (t Type) String() string {
	if t >= 0 && int(t) < len(typeNames) {
		return typeNames[t]
	}
	return fmt.Sprintf("unknown(%d)", int(t))
}

// MarshalText implements encoding.TextMarshaler
func (t Type) MarshalText() ([]byte, error) {
	return []byte(t.String()), nil
}

// UnmarshalText implements encoding.TextUnmarshaler
func (t *Type) UnmarshalText(text []byte) error {
	for idx, name := range typeNames {
		if strings.EqualFold(name, string(text)) {
			*t = Type(idx)
			return nil
		}
	}
	return fmt.Errorf("unknown device type %q", text)
}

// Rank orders device classes, lower is better.
func (t Type) Rank() int {
	if t >= TypeDiscrete && t <= TypeOther {
		return int(t)
	}
	return int(TypeOther) + 1
}

// QueueFamily describes capabilities of one queue family
type QueueFamily struct {
	Graphics bool
	Present  bool
}

// PhysicalDeviceInfo describes available physical properties of a rendering device
type PhysicalDeviceInfo struct {
	ID            int
	VendorID      int
	DriverVersion int
	Name          string
	Type          Type
	Invalid       bool
	Extensions    []string
	Layers        []string
	Memory        uint64
	QueueFamilies []QueueFamily
}

// HasExtensions reports whether the device supports every extension in exts.
func (p PhysicalDeviceInfo) HasExtensions(exts []string) bool {
	supported := make(map[string]struct{}, len(p.Extensions))
	for _, ext := range p.Extensions {
		supported[strings.TrimRight(ext, "\x00")] = struct{}{}
	}
	for _, ext := range exts {
		if _, ok := supported[strings.TrimRight(ext, "\x00")]; !ok {
			return false
		}
	}
	return true
}

// GraphicsQueue returns the first queue family that supports graphics and,
// when present is true, presenting to the surface.
func (p PhysicalDeviceInfo) GraphicsQueue(present bool) (int, bool) {
	for idx, family := range p.QueueFamilies {
		if family.Graphics && (!present || family.Present) {
			return idx, true
		}
	}
	return 0, false
}
