// Copyright (c) 2019 devblok
//
// This software is released under the MIT License.
// https://opensource.org/licenses/MIT

package vkr

import (
	"unsafe"

	vk "github.com/goki/vulkan"
	"github.com/pkg/errors"

	"github.com/devblok/overlaygfx/gfx"
)

// AllocateBuffer implements gfx.Device. Both memory preferences stay host visible,
// MemoryPreferDevice picks device local memory when there is such a type.
func (d *Device) AllocateBuffer(usage gfx.BufferUsage, pref gfx.MemoryPreference, data []byte) (gfx.Buffer, error) {
	if len(data) == 0 {
		return nil, errors.New("vkr: buffers can not be empty")
	}

	createInfo := vk.BufferCreateInfo{
		SType:       vk.StructureTypeBufferCreateInfo,
		Size:        vk.DeviceSize(len(data)),
		Usage:       bufferUsage(usage),
		SharingMode: vk.SharingModeExclusive,
	}
	var buffer vk.Buffer
	if err := vk.Error(vk.CreateBuffer(d.device, &createInfo, nil, &buffer)); err != nil {
		return nil, errors.New("vk.CreateBuffer(): " + err.Error())
	}

	var req vk.MemoryRequirements
	vk.GetBufferMemoryRequirements(d.device, buffer, &req)
	req.Deref()

	prop := vk.MemoryPropertyFlagBits(HostVisible)
	if pref == gfx.MemoryPreferDevice {
		prop = d.allocator.PreferDevice(req.MemoryTypeBits)
	}
	memory, err := d.allocator.Malloc(req, prop, nil)
	if err != nil {
		vk.DestroyBuffer(d.device, buffer, nil)
		return nil, err
	}
	if err := vk.Error(vk.BindBufferMemory(d.device, buffer, memory.Get(), 0)); err != nil {
		vk.DestroyBuffer(d.device, buffer, nil)
		memory.Release()
		return nil, errors.New("vk.BindBufferMemory(): " + err.Error())
	}

	b := &Buffer{
		device: d.device,
		buffer: buffer,
		memory: memory,
		size:   len(data),
		usage:  usage,
	}
	if err := b.Write(data); err != nil {
		b.Release()
		return nil, err
	}
	return b, nil
}

// Buffer implements gfx.Buffer over host visible memory
type Buffer struct {
	device vk.Device
	buffer vk.Buffer
	memory *Memory
	size   int
	usage  gfx.BufferUsage
}

// Get returns the vulkan Buffer handle.
func (b *Buffer) Get() vk.Buffer {
	return b.buffer
}

// Size implements gfx.Buffer
func (b *Buffer) Size() int {
	return b.size
}

// Usage implements gfx.Buffer
func (b *Buffer) Usage() gfx.BufferUsage {
	return b.usage
}

// Read implements gfx.Buffer
func (b *Buffer) Read() ([]byte, error) {
	mapped, err := b.memory.Map(b.size)
	if err != nil {
		return nil, err
	}
	defer b.memory.Unmap()

	data := make([]byte, b.size)
	copy(data, unsafe.Slice((*byte)(mapped), b.size))
	return data, nil
}

// Write implements gfx.Buffer
func (b *Buffer) Write(data []byte) error {
	if len(data) > b.size {
		return errors.Errorf("vkr: %d bytes do not fit a buffer of %d", len(data), b.size)
	}
	mapped, err := b.memory.Map(b.size)
	if err != nil {
		return err
	}
	vk.Memcopy(mapped, data)
	b.memory.Unmap()
	return nil
}

// Release destroys the buffer and memory associated with it.
func (b *Buffer) Release() {
	vk.DestroyBuffer(b.device, b.buffer, nil)
	b.memory.Release()
}

// AllocateImage implements gfx.Device
func (d *Device) AllocateImage(info gfx.ImageInfo) (gfx.Image, error) {
	createInfo := imageCreateInfo(info, vk.ImageTilingOptimal)

	var image vk.Image
	if err := vk.Error(vk.CreateImage(d.device, &createInfo, nil, &image)); err != nil {
		return nil, errors.New("vk.CreateImage(): " + err.Error())
	}

	var req vk.MemoryRequirements
	vk.GetImageMemoryRequirements(d.device, image, &req)
	req.Deref()

	memory, err := d.allocator.Malloc(req, vk.MemoryPropertyDeviceLocalBit, nil)
	if err != nil {
		vk.DestroyImage(d.device, image, nil)
		return nil, err
	}
	if err := vk.Error(vk.BindImageMemory(d.device, image, memory.Get(), 0)); err != nil {
		vk.DestroyImage(d.device, image, nil)
		memory.Release()
		return nil, errors.New("vk.BindImageMemory(): " + err.Error())
	}

	return &Image{
		device: d.device,
		image:  image,
		memory: memory,
		info:   info,
	}, nil
}

func imageCreateInfo(info gfx.ImageInfo, tiling vk.ImageTiling) vk.ImageCreateInfo {
	return vk.ImageCreateInfo{
		SType:     vk.StructureTypeImageCreateInfo,
		ImageType: vk.ImageType2d,
		Extent: vk.Extent3D{
			Width:  info.Extent.Width,
			Height: info.Extent.Height,
			Depth:  1,
		},
		MipLevels:     1,
		ArrayLayers:   1,
		Format:        Format(info.Format),
		Tiling:        tiling,
		InitialLayout: vk.ImageLayoutUndefined,
		Usage:         imageUsage(info.Usage),
		SharingMode:   vk.SharingModeExclusive,
		Samples:       vk.SampleCount1Bit,
	}
}

// Image implements gfx.Image. Images of a swapchain carry no memory
// and are destroyed with it.
type Image struct {
	device vk.Device
	image  vk.Image
	memory *Memory
	info   gfx.ImageInfo
}

// Get returns the vulkan image handle
func (i *Image) Get() vk.Image {
	return i.image
}

// Info implements gfx.Image
func (i *Image) Info() gfx.ImageInfo {
	return i.info
}

// Release implements gfx.Releasable
func (i *Image) Release() {
	if i.memory == nil {
		return
	}
	vk.DestroyImage(i.device, i.image, nil)
	i.memory.Release()
}

var colorSubresource = vk.ImageSubresourceRange{
	AspectMask: vk.ImageAspectFlags(vk.ImageAspectColorBit),
	LevelCount: 1,
	LayerCount: 1,
}

// CreateImageView implements gfx.Device
func (d *Device) CreateImageView(img gfx.Image) (gfx.ImageView, error) {
	image, ok := img.(*Image)
	if !ok {
		return nil, errors.Errorf("vkr: foreign image %T", img)
	}

	createInfo := vk.ImageViewCreateInfo{
		SType:    vk.StructureTypeImageViewCreateInfo,
		Image:    image.image,
		ViewType: vk.ImageViewType2d,
		Format:   Format(image.info.Format),
		Components: vk.ComponentMapping{
			R: vk.ComponentSwizzleIdentity,
			G: vk.ComponentSwizzleIdentity,
			B: vk.ComponentSwizzleIdentity,
			A: vk.ComponentSwizzleIdentity,
		},
		SubresourceRange: colorSubresource,
	}

	var view vk.ImageView
	if err := vk.Error(vk.CreateImageView(d.device, &createInfo, nil, &view)); err != nil {
		return nil, errors.New("vk.CreateImageView(): " + err.Error())
	}
	return &ImageView{
		device: d.device,
		view:   view,
		image:  image,
	}, nil
}

// ImageView implements gfx.ImageView
type ImageView struct {
	device vk.Device
	view   vk.ImageView
	image  *Image
}

// Image implements gfx.ImageView
func (v *ImageView) Image() gfx.Image {
	return v.image
}

// Release implements gfx.Releasable
func (v *ImageView) Release() {
	vk.DestroyImageView(v.device, v.view, nil)
}

// CreateSampler implements gfx.Device
func (d *Device) CreateSampler(desc gfx.SamplerDesc) (gfx.Sampler, error) {
	createInfo := vk.SamplerCreateInfo{
		SType:            vk.StructureTypeSamplerCreateInfo,
		MagFilter:        filter(desc.MagFilter),
		MinFilter:        filter(desc.MinFilter),
		MipmapMode:       vk.SamplerMipmapModeNearest,
		AddressModeU:     vk.SamplerAddressModeRepeat,
		AddressModeV:     vk.SamplerAddressModeRepeat,
		AddressModeW:     vk.SamplerAddressModeRepeat,
		AnisotropyEnable: vk.False,
		MaxAnisotropy:    1,
		CompareOp:        vk.CompareOpNever,
		BorderColor:      vk.BorderColorFloatTransparentBlack,
	}

	var sampler vk.Sampler
	if err := vk.Error(vk.CreateSampler(d.device, &createInfo, nil, &sampler)); err != nil {
		return nil, errors.New("vk.CreateSampler(): " + err.Error())
	}
	return &Sampler{
		device:  d.device,
		sampler: sampler,
	}, nil
}

// Sampler implements gfx.Sampler
type Sampler struct {
	device  vk.Device
	sampler vk.Sampler
}

// Release implements gfx.Releasable
func (s *Sampler) Release() {
	vk.DestroySampler(s.device, s.sampler, nil)
}
