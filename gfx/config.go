package gfx

// DeviceConfiguration is used to configure backend devices
type DeviceConfiguration struct {
	ApplicationName string

	// DebugMode enables the validation layer
	DebugMode bool

	// Extensions are instance extensions, usually
	// those the windowing system needs
	Extensions []string
	Layers     []string

	// DeviceExtensions are required in addition to
	// the extensions every device must support
	DeviceExtensions []string
}
