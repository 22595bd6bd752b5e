package soft

import (
	"time"

	"github.com/pkg/errors"

	"github.com/devblok/overlaygfx/gfx"
)

// Buffer is a host memory buffer
type Buffer struct {
	device   *Device
	usage    gfx.BufferUsage
	pref     gfx.MemoryPreference
	data     []byte
	released bool
}

// Size implements interface
func (b *Buffer) Size() int {
	return len(b.data)
}

// Usage implements interface
func (b *Buffer) Usage() gfx.BufferUsage {
	return b.usage
}

// Preference returns the memory preference the buffer was allocated with
func (b *Buffer) Preference() gfx.MemoryPreference {
	return b.pref
}

// Read implements interface
func (b *Buffer) Read() ([]byte, error) {
	if b.released {
		return nil, gfx.ErrReleased
	}
	b.device.mutex.Lock()
	defer b.device.mutex.Unlock()
	return append([]byte(nil), b.data...), nil
}

// Write implements interface
func (b *Buffer) Write(data []byte) error {
	if b.released {
		return gfx.ErrReleased
	}
	if len(data) > len(b.data) {
		return errors.Errorf("soft: write of %d bytes into a %d byte buffer", len(data), len(b.data))
	}
	b.device.mutex.Lock()
	defer b.device.mutex.Unlock()
	copy(b.data, data)
	return nil
}

// Release implements interface
func (b *Buffer) Release() {
	if b.released {
		return
	}
	b.released = true
	b.device.destroyed()
}

// Image is a host memory image. Imported images keep no pixels.
type Image struct {
	device   *Device
	info     gfx.ImageInfo
	pixels   []byte
	layout   gfx.ImageLayout
	imported *gfx.DmabufPlane
	released bool
	foreign  bool
}

// Info implements interface
func (i *Image) Info() gfx.ImageInfo {
	return i.info
}

// Layout returns the layout the image is currently in
func (i *Image) Layout() gfx.ImageLayout {
	i.device.mutex.Lock()
	defer i.device.mutex.Unlock()
	return i.layout
}

// Pixels returns a copy of the image contents
func (i *Image) Pixels() []byte {
	i.device.mutex.Lock()
	defer i.device.mutex.Unlock()
	return append([]byte(nil), i.pixels...)
}

// Imported returns the plane an imported image was created from
func (i *Image) Imported() (gfx.DmabufPlane, bool) {
	if i.imported == nil {
		return gfx.DmabufPlane{}, false
	}
	return *i.imported, true
}

// Release implements interface. Swapchain images are owned by
// the swapchain and ignore it.
func (i *Image) Release() {
	if i.released || i.foreign {
		return
	}
	i.released = true
	i.device.destroyed()
}

// ImageView is a view of an Image
type ImageView struct {
	device   *Device
	image    *Image
	released bool
}

// Image implements interface
func (v *ImageView) Image() gfx.Image {
	return v.image
}

// Release implements interface
func (v *ImageView) Release() {
	if v.released {
		return
	}
	v.released = true
	v.device.destroyed()
}

// Sampler keeps its description
type Sampler struct {
	device   *Device
	desc     gfx.SamplerDesc
	released bool
}

// Desc returns the sampler description
func (s *Sampler) Desc() gfx.SamplerDesc {
	return s.desc
}

// Release implements interface
func (s *Sampler) Release() {
	if s.released {
		return
	}
	s.released = true
	s.device.destroyed()
}

// RenderPass keeps its description
type RenderPass struct {
	device   *Device
	desc     gfx.RenderPassDesc
	released bool
}

// Desc implements interface
func (r *RenderPass) Desc() gfx.RenderPassDesc {
	return r.desc
}

// Release implements interface
func (r *RenderPass) Release() {
	if r.released {
		return
	}
	r.released = true
	r.device.destroyed()
}

// Pipeline keeps its description
type Pipeline struct {
	device   *Device
	desc     gfx.PipelineDesc
	released bool
}

// Desc returns the pipeline description
func (p *Pipeline) Desc() gfx.PipelineDesc {
	return p.desc
}

func (p *Pipeline) declares(set, binding uint32, kind gfx.DescriptorType) bool {
	for _, b := range p.desc.Shaders.Bindings {
		if b.Set == set && b.Binding == binding && b.Type == kind {
			return true
		}
	}
	return false
}

// Release implements interface
func (p *Pipeline) Release() {
	if p.released {
		return
	}
	p.released = true
	p.device.destroyed()
}

// Framebuffer binds a render pass to a view
type Framebuffer struct {
	device   *Device
	pass     *RenderPass
	view     *ImageView
	released bool
}

// Extent implements interface
func (f *Framebuffer) Extent() gfx.Extent2D {
	return f.view.image.info.Extent
}

// Release implements interface
func (f *Framebuffer) Release() {
	if f.released {
		return
	}
	f.released = true
	f.device.destroyed()
}

// DescriptorSet keeps the writes it was created with
type DescriptorSet struct {
	device   *Device
	pipeline *Pipeline
	set      uint32
	writes   []gfx.DescriptorWrite
	released bool
}

// Writes returns the bindings written into the set
func (s *DescriptorSet) Writes() []gfx.DescriptorWrite {
	return s.writes
}

// Release implements interface
func (s *DescriptorSet) Release() {
	if s.released {
		return
	}
	s.released = true
	s.device.destroyed()
}

// Fence is signaled by Submit
type Fence struct {
	device   *Device
	signaled bool
	released bool
}

// Wait implements interface. Work finishes during Submit, so an
// unsignaled fence would never be signaled by waiting.
func (f *Fence) Wait(timeout time.Duration) error {
	if ok, err := f.Signaled(); err != nil {
		return err
	} else if !ok {
		return gfx.ErrTimeout
	}
	return nil
}

// Signaled implements interface
func (f *Fence) Signaled() (bool, error) {
	if f.released {
		return false, gfx.ErrReleased
	}
	f.device.mutex.Lock()
	defer f.device.mutex.Unlock()
	return f.signaled, nil
}

// Release implements interface
func (f *Fence) Release() {
	if f.released {
		return
	}
	f.released = true
	f.device.destroyed()
}
