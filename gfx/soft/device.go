// Copyright (c) 2019 devblok
//
// This software is released under the MIT License.
// https://opensource.org/licenses/MIT

// Package soft implements a headless backend that keeps every resource
// in host memory. Transfers, clears and layout transitions are executed
// on submission, draws are recorded and counted but not rasterized.
// It validates usage the way a driver with validation enabled would,
// which makes it suitable for tests and machines without a GPU.
package soft

import (
	"sync"

	"github.com/pkg/errors"
	log "github.com/sirupsen/logrus"
	"golang.org/x/sys/unix"

	"github.com/devblok/overlaygfx/device"
	"github.com/devblok/overlaygfx/gfx"
)

// Config configures a software Device
type Config struct {
	// Devices are the adapters to select from,
	// defaults to a single CPU adapter
	Devices []device.PhysicalDeviceInfo

	// DeviceExtensions are required in addition to device.RequiredExtensions
	DeviceExtensions []string

	// Surface enables swapchain creation
	Surface       bool
	SurfaceExtent gfx.Extent2D
	SurfaceFormat gfx.Format
}

// Stats counts work executed by a Device
type Stats struct {
	Submits  int
	Draws    int
	Indices  int
	Copies   int
	Barriers int
	Clears   int
	Presents int
}

// Adapter returns the physical device info of the built-in CPU adapter
func Adapter() device.PhysicalDeviceInfo {
	return device.PhysicalDeviceInfo{
		Name:          "overlaygfx software device",
		Type:          device.TypeCPU,
		Extensions:    append([]string(nil), device.RequiredExtensions...),
		QueueFamilies: []device.QueueFamily{{Graphics: true, Present: true}},
	}
}

// New selects an adapter from cfg.Devices and creates a Device on it
func New(cfg Config) (*Device, error) {
	devices := cfg.Devices
	if len(devices) == 0 {
		adapter := Adapter()
		adapter.Extensions = device.Extensions(cfg.DeviceExtensions)
		devices = []device.PhysicalDeviceInfo{adapter}
	}

	sel, err := device.Select(devices, cfg.DeviceExtensions, cfg.Surface)
	if err != nil {
		return nil, err
	}

	if cfg.Surface {
		if cfg.SurfaceExtent.Width == 0 || cfg.SurfaceExtent.Height == 0 {
			cfg.SurfaceExtent = gfx.Extent2D{Width: 800, Height: 600}
		}
		if cfg.SurfaceFormat == gfx.FormatUndefined {
			cfg.SurfaceFormat = gfx.FormatB8G8R8A8Unorm
		}
	}

	log.WithFields(log.Fields{
		"device":      devices[sel.Index].Name,
		"type":        devices[sel.Index].Type,
		"queueFamily": sel.QueueFamily,
	}).Debug("software device selected")

	return &Device{
		cfg:       cfg,
		adapter:   devices[sel.Index],
		selection: sel,
		surface:   cfg.SurfaceExtent,
	}, nil
}

// Device implements gfx.SurfaceDevice in host memory
type Device struct {
	mutex sync.Mutex

	cfg       Config
	adapter   device.PhysicalDeviceInfo
	selection device.Selection

	surface   gfx.Extent2D
	swapchain *Swapchain

	stats     Stats
	live      int
	submitted []*CommandBuffer
	released  bool
}

// Adapter returns the selected physical device
func (d *Device) Adapter() device.PhysicalDeviceInfo {
	return d.adapter
}

// Selection returns the outcome of device selection
func (d *Device) Selection() device.Selection {
	return d.selection
}

// Stats returns counters of executed work
func (d *Device) Stats() Stats {
	d.mutex.Lock()
	defer d.mutex.Unlock()
	return d.stats
}

// Live returns the number of objects created and not yet released
func (d *Device) Live() int {
	d.mutex.Lock()
	defer d.mutex.Unlock()
	return d.live
}

// Submitted returns every command buffer submitted so far, in order
func (d *Device) Submitted() []*CommandBuffer {
	d.mutex.Lock()
	defer d.mutex.Unlock()
	return append([]*CommandBuffer(nil), d.submitted...)
}

func (d *Device) created() {
	d.mutex.Lock()
	d.live++
	d.mutex.Unlock()
}

func (d *Device) destroyed() {
	d.mutex.Lock()
	d.live--
	d.mutex.Unlock()
}

// AllocateBuffer implements interface
func (d *Device) AllocateBuffer(usage gfx.BufferUsage, pref gfx.MemoryPreference, data []byte) (gfx.Buffer, error) {
	if len(data) == 0 {
		return nil, errors.New("soft: buffer of zero size")
	}
	d.created()
	return &Buffer{
		device: d,
		usage:  usage,
		pref:   pref,
		data:   append([]byte(nil), data...),
	}, nil
}

// AllocateImage implements interface
func (d *Device) AllocateImage(info gfx.ImageInfo) (gfx.Image, error) {
	if err := validateImageInfo(info); err != nil {
		return nil, err
	}
	d.created()
	return &Image{
		device: d,
		info:   info,
		pixels: make([]byte, int(info.Extent.Width)*int(info.Extent.Height)*info.Format.Size()),
	}, nil
}

// ImportImage implements interface. The file descriptor is only checked
// for validity, its contents stay where they are.
func (d *Device) ImportImage(info gfx.ImageInfo, plane gfx.DmabufPlane) (gfx.Image, error) {
	if err := validateImageInfo(info); err != nil {
		return nil, err
	}
	fd, ok := plane.Fd()
	if !ok {
		return nil, &gfx.ImportError{Err: errors.New("soft: plane carries no fd")}
	}
	var stat unix.Stat_t
	if err := unix.Fstat(fd, &stat); err != nil {
		return nil, &gfx.ImportError{Err: errors.Wrapf(err, "soft: fd %d", fd)}
	}
	d.created()
	return &Image{
		device:   d,
		info:     info,
		imported: &plane,
	}, nil
}

func validateImageInfo(info gfx.ImageInfo) error {
	if info.Extent.Width == 0 || info.Extent.Height == 0 {
		return errors.Errorf("soft: image extent %dx%d", info.Extent.Width, info.Extent.Height)
	}
	if info.Format.Size() == 0 {
		return errors.Errorf("soft: unsupported image format %s", info.Format)
	}
	return nil
}

// CreateImageView implements interface
func (d *Device) CreateImageView(img gfx.Image) (gfx.ImageView, error) {
	image, ok := img.(*Image)
	if !ok || image.released {
		return nil, errors.New("soft: view of a foreign or released image")
	}
	d.created()
	return &ImageView{device: d, image: image}, nil
}

// CreateSampler implements interface
func (d *Device) CreateSampler(desc gfx.SamplerDesc) (gfx.Sampler, error) {
	d.created()
	return &Sampler{device: d, desc: desc}, nil
}

// CreateRenderPass implements interface
func (d *Device) CreateRenderPass(desc gfx.RenderPassDesc) (gfx.RenderPass, error) {
	if desc.Format.Size() == 0 || desc.Format == gfx.FormatR32G32Sfloat {
		return nil, errors.Errorf("soft: color attachment format %s", desc.Format)
	}
	if desc.FinalLayout == gfx.LayoutUndefined {
		return nil, errors.New("soft: final layout must not be undefined")
	}
	d.created()
	return &RenderPass{device: d, desc: desc}, nil
}

// CreatePipeline implements interface
func (d *Device) CreatePipeline(desc gfx.PipelineDesc) (gfx.Pipeline, error) {
	if _, ok := desc.RenderPass.(*RenderPass); !ok {
		return nil, errors.New("soft: pipeline without a render pass")
	}
	if len(desc.Shaders.Vertex) == 0 || len(desc.Shaders.Fragment) == 0 {
		return nil, errors.Errorf("soft: shader pair %q is incomplete", desc.Shaders.Name)
	}
	d.created()
	return &Pipeline{device: d, desc: desc}, nil
}

// CreateFramebuffer implements interface
func (d *Device) CreateFramebuffer(rp gfx.RenderPass, view gfx.ImageView) (gfx.Framebuffer, error) {
	pass, ok := rp.(*RenderPass)
	if !ok {
		return nil, errors.New("soft: framebuffer without a render pass")
	}
	target, ok := view.(*ImageView)
	if !ok {
		return nil, errors.New("soft: framebuffer without a target")
	}
	info := target.image.info
	if info.Format != pass.desc.Format {
		return nil, errors.Errorf("soft: target format %s does not match render pass format %s", info.Format, pass.desc.Format)
	}
	if info.Usage&gfx.ImageUsageColorAttachment == 0 {
		return nil, errors.New("soft: target is not usable as a color attachment")
	}
	d.created()
	return &Framebuffer{device: d, pass: pass, view: target}, nil
}

// CreateDescriptorSet implements interface
func (d *Device) CreateDescriptorSet(p gfx.Pipeline, set uint32, writes ...gfx.DescriptorWrite) (gfx.DescriptorSet, error) {
	pipeline, ok := p.(*Pipeline)
	if !ok {
		return nil, errors.New("soft: descriptor set without a pipeline")
	}
	for _, w := range writes {
		if !pipeline.declares(set, w.Binding, w.Type) {
			return nil, errors.Errorf("soft: shader pair %q does not declare binding %d of set %d", pipeline.desc.Shaders.Name, w.Binding, set)
		}
		switch w.Type {
		case gfx.DescriptorCombinedImageSampler:
			if w.View == nil || w.Sampler == nil {
				return nil, errors.New("soft: sampler write without view or sampler")
			}
		case gfx.DescriptorUniformBuffer:
			if w.Buffer == nil || w.Buffer.Usage()&gfx.BufferUsageUniform == 0 {
				return nil, errors.New("soft: uniform write without a uniform buffer")
			}
		}
	}
	d.created()
	return &DescriptorSet{
		device:   d,
		pipeline: pipeline,
		set:      set,
		writes:   append([]gfx.DescriptorWrite(nil), writes...),
	}, nil
}

// Record implements interface
func (d *Device) Record(level gfx.CommandBufferLevel, usage gfx.CommandBufferUsage, inherit gfx.RenderPass) (gfx.Recorder, error) {
	if level == gfx.LevelSecondary && inherit == nil {
		return nil, errors.New("soft: secondary recording without inheritance")
	}
	if level == gfx.LevelPrimary && inherit != nil {
		return nil, errors.New("soft: primary recording with inheritance")
	}
	return &Recorder{
		device: d,
		cmd: &CommandBuffer{
			device: d,
			level:  level,
			usage:  usage,
		},
		inPass: level == gfx.LevelSecondary,
	}, nil
}

// CreateFence implements interface
func (d *Device) CreateFence() (gfx.Fence, error) {
	d.created()
	return &Fence{device: d}, nil
}

// Submit implements interface. Work executes before Submit returns.
func (d *Device) Submit(cmd gfx.CommandBuffer, fence gfx.Fence) error {
	buffer, ok := cmd.(*CommandBuffer)
	if !ok {
		return errors.New("soft: submit of a foreign command buffer")
	}
	if buffer.level != gfx.LevelPrimary {
		return errors.New("soft: only primary command buffers can be submitted")
	}

	d.mutex.Lock()
	defer d.mutex.Unlock()

	if d.released {
		return gfx.ErrReleased
	}
	if err := buffer.submittable(); err != nil {
		return err
	}
	if err := d.execute(buffer.commands); err != nil {
		return err
	}
	buffer.submits++
	d.stats.Submits++
	d.submitted = append(d.submitted, buffer)

	if fence != nil {
		f, ok := fence.(*Fence)
		if !ok {
			return errors.New("soft: foreign fence")
		}
		f.signaled = true
	}
	return nil
}

// WaitIdle implements interface
func (d *Device) WaitIdle() error {
	return nil
}

// Release implements interface
func (d *Device) Release() {
	d.mutex.Lock()
	defer d.mutex.Unlock()
	if d.live > 0 {
		log.WithField("objects", d.live).Warn("software device released with live objects")
	}
	d.released = true
}
