// Copyright (c) 2019 devblok
//
// This software is released under the MIT License.
// https://opensource.org/licenses/MIT

package vkr

import (
	"math"
	"time"

	vk "github.com/goki/vulkan"
	"github.com/pkg/errors"

	"github.com/devblok/overlaygfx/gfx"
)

// CreateSwapchain implements gfx.SurfaceDevice
func (d *Device) CreateSwapchain(format gfx.Format, size uint32, previous gfx.Swapchain) (gfx.Swapchain, error) {
	if d.surface == vk.NullSurface {
		return nil, errors.New("vkr: device was created without a surface")
	}

	var surfaceCapabilities vk.SurfaceCapabilities
	if err := vk.Error(vk.GetPhysicalDeviceSurfaceCapabilities(d.physicalDevice, d.surface, &surfaceCapabilities)); err != nil {
		return nil, errors.New("vk.GetPhysicalDeviceSurfaceCapabilities(): " + err.Error())
	}
	surfaceCapabilities.Deref()
	surfaceCapabilities.CurrentExtent.Deref()
	surfaceCapabilities.MinImageExtent.Deref()
	surfaceCapabilities.MaxImageExtent.Deref()

	extent := d.swapchainExtent(surfaceCapabilities)
	if extent.Width == 0 || extent.Height == 0 {
		return nil, errors.Wrap(gfx.ErrOutOfDate, "surface has no area")
	}

	surfaceFormat, err := d.surfaceFormat(format)
	if err != nil {
		return nil, err
	}

	// ImageCount
	if size < surfaceCapabilities.MinImageCount {
		size = surfaceCapabilities.MinImageCount
	}
	if surfaceCapabilities.MaxImageCount > 0 && size > surfaceCapabilities.MaxImageCount {
		size = surfaceCapabilities.MaxImageCount
	}

	// PreTransform
	var preTransform vk.SurfaceTransformFlagBits
	requiredTransform := vk.SurfaceTransformIdentityBit
	if vk.SurfaceTransformFlagBits(surfaceCapabilities.SupportedTransforms)&requiredTransform != 0 {
		preTransform = requiredTransform
	} else {
		preTransform = surfaceCapabilities.CurrentTransform
	}

	// CompositeAlpha
	compositeAlpha := vk.CompositeAlphaOpaqueBit
	compositeAlphaFlags := []vk.CompositeAlphaFlagBits{
		vk.CompositeAlphaOpaqueBit,
		vk.CompositeAlphaPreMultipliedBit,
		vk.CompositeAlphaPostMultipliedBit,
		vk.CompositeAlphaInheritBit,
	}
	for i := 0; i < len(compositeAlphaFlags); i++ {
		alphaFlags := vk.CompositeAlphaFlags(compositeAlphaFlags[i])
		if surfaceCapabilities.SupportedCompositeAlpha&alphaFlags != 0 {
			compositeAlpha = compositeAlphaFlags[i]
			break
		}
	}

	var oldSwapchain vk.Swapchain
	if old, ok := previous.(*Swapchain); ok && old != nil {
		oldSwapchain = old.swapchain
	}

	scci := vk.SwapchainCreateInfo{
		SType:            vk.StructureTypeSwapchainCreateInfo,
		Surface:          d.surface,
		MinImageCount:    size,
		ImageFormat:      Format(surfaceFormat),
		ImageColorSpace:  vk.ColorSpaceSrgbNonlinear,
		ImageExtent:      vk.Extent2D{Width: extent.Width, Height: extent.Height},
		ImageArrayLayers: 1,
		ImageUsage:       vk.ImageUsageFlags(vk.ImageUsageColorAttachmentBit),
		ImageSharingMode: vk.SharingModeExclusive,
		PreTransform:     preTransform,
		CompositeAlpha:   compositeAlpha,
		PresentMode:      vk.PresentModeFifo,
		Clipped:          vk.True,
		OldSwapchain:     oldSwapchain,
	}

	var swapchain vk.Swapchain
	if err := vk.Error(vk.CreateSwapchain(d.device, &scci, nil, &swapchain)); err != nil {
		return nil, errors.New("vk.CreateSwapchain(): " + err.Error())
	}

	s := &Swapchain{
		device:    d,
		swapchain: swapchain,
		format:    surfaceFormat,
		extent:    extent,
	}

	var imageCount uint32
	if err := vk.Error(vk.GetSwapchainImages(d.device, swapchain, &imageCount, nil)); err != nil {
		s.Release()
		return nil, errors.New("vk.GetSwapchainImages(): " + err.Error())
	}
	images := make([]vk.Image, imageCount)
	if err := vk.Error(vk.GetSwapchainImages(d.device, swapchain, &imageCount, images)); err != nil {
		s.Release()
		return nil, errors.New("vk.GetSwapchainImages(): " + err.Error())
	}
	info := gfx.ImageInfo{
		Extent: extent,
		Format: surfaceFormat,
		Usage:  gfx.ImageUsageColorAttachment,
	}
	for _, img := range images {
		s.images = append(s.images, &Image{
			device: d.device,
			image:  img,
			info:   info,
		})
	}

	fci := vk.FenceCreateInfo{
		SType: vk.StructureTypeFenceCreateInfo,
	}
	if err := vk.Error(vk.CreateFence(d.device, &fci, nil, &s.acquired)); err != nil {
		s.Release()
		return nil, errors.New("vk.CreateFence(): " + err.Error())
	}
	return s, nil
}

func (d *Device) swapchainExtent(caps vk.SurfaceCapabilities) gfx.Extent2D {
	// a current extent of 0xFFFFFFFF leaves the size to the swapchain
	if caps.CurrentExtent.Width != math.MaxUint32 {
		return gfx.Extent2D{Width: caps.CurrentExtent.Width, Height: caps.CurrentExtent.Height}
	}

	var extent gfx.Extent2D
	if d.surfaceExtent != nil {
		extent = d.surfaceExtent()
	}
	extent.Width = clamp(extent.Width, caps.MinImageExtent.Width, caps.MaxImageExtent.Width)
	extent.Height = clamp(extent.Height, caps.MinImageExtent.Height, caps.MaxImageExtent.Height)
	return extent
}

func clamp(v, min, max uint32) uint32 {
	if v < min {
		return min
	}
	if v > max {
		return max
	}
	return v
}

// surfaceFormat returns format when the surface supports it, otherwise
// the first supported format that has a gfx equivalent.
func (d *Device) surfaceFormat(format gfx.Format) (gfx.Format, error) {
	var surfaceFormatCount uint32
	if err := vk.Error(vk.GetPhysicalDeviceSurfaceFormats(d.physicalDevice, d.surface, &surfaceFormatCount, nil)); err != nil {
		return gfx.FormatUndefined, errors.New("vk.GetPhysicalDeviceSurfaceFormats(): " + err.Error())
	}
	surfaceFormats := make([]vk.SurfaceFormat, surfaceFormatCount)
	if err := vk.Error(vk.GetPhysicalDeviceSurfaceFormats(d.physicalDevice, d.surface, &surfaceFormatCount, surfaceFormats)); err != nil {
		return gfx.FormatUndefined, errors.New("vk.GetPhysicalDeviceSurfaceFormats(): " + err.Error())
	}

	supported := gfx.FormatUndefined
	for _, sf := range surfaceFormats {
		sf.Deref()
		// a single undefined entry means any format goes
		if sf.Format == vk.FormatUndefined && surfaceFormatCount == 1 {
			if format == gfx.FormatUndefined {
				return gfx.FormatB8G8R8A8Unorm, nil
			}
			return format, nil
		}
		f, ok := FromFormat(sf.Format)
		if !ok {
			continue
		}
		if f == format {
			return f, nil
		}
		if supported == gfx.FormatUndefined {
			supported = f
		}
	}
	if supported == gfx.FormatUndefined {
		return gfx.FormatUndefined, errors.New("vkr: surface supports no known format")
	}
	return supported, nil
}

// Swapchain implements gfx.Swapchain. Acquisition waits on a fence, a frame
// is presented once its submission completed.
type Swapchain struct {
	device    *Device
	swapchain vk.Swapchain
	acquired  vk.Fence
	images    []*Image
	format    gfx.Format
	extent    gfx.Extent2D
}

// Format implements gfx.Swapchain
func (s *Swapchain) Format() gfx.Format {
	return s.format
}

// Extent implements gfx.Swapchain
func (s *Swapchain) Extent() gfx.Extent2D {
	return s.extent
}

// Images implements gfx.Swapchain
func (s *Swapchain) Images() []gfx.Image {
	images := make([]gfx.Image, len(s.images))
	for idx, img := range s.images {
		images[idx] = img
	}
	return images
}

// Acquire implements gfx.Swapchain. A suboptimal swapchain still
// hands out images, presenting them reports it out of date.
func (s *Swapchain) Acquire(timeout time.Duration) (int, error) {
	if timeout < 0 {
		timeout = 0
	}

	var idx uint32
	ret := vk.AcquireNextImage(s.device.device, s.swapchain, uint64(timeout), nil, s.acquired, &idx)
	switch ret {
	case vk.Success, vk.Suboptimal:
	case vk.ErrorOutOfDate:
		return 0, gfx.ErrOutOfDate
	case vk.Timeout:
		return 0, gfx.ErrTimeout
	case vk.NotReady:
		return 0, gfx.ErrNotReady
	default:
		return 0, errors.New("vk.AcquireNextImage(): " + vk.Error(ret).Error())
	}

	fences := []vk.Fence{s.acquired}
	if err := vk.Error(vk.WaitForFences(s.device.device, 1, fences, vk.True, vk.MaxUint64)); err != nil {
		return 0, errors.New("vk.WaitForFences(): " + err.Error())
	}
	if err := vk.Error(vk.ResetFences(s.device.device, 1, fences)); err != nil {
		return 0, errors.New("vk.ResetFences(): " + err.Error())
	}
	return int(idx), nil
}

// Present implements gfx.Swapchain
func (s *Swapchain) Present(index int) error {
	if index < 0 || index >= len(s.images) {
		return errors.Errorf("vkr: swapchain has no image %d", index)
	}

	presentInfo := vk.PresentInfo{
		SType:          vk.StructureTypePresentInfo,
		SwapchainCount: 1,
		PSwapchains:    []vk.Swapchain{s.swapchain},
		PImageIndices:  []uint32{uint32(index)},
	}

	s.device.mutex.Lock()
	ret := vk.QueuePresent(s.device.queue, &presentInfo)
	s.device.mutex.Unlock()

	switch ret {
	case vk.Success:
		return nil
	case vk.Suboptimal, vk.ErrorOutOfDate:
		return gfx.ErrOutOfDate
	}
	return errors.New("vk.QueuePresent(): " + vk.Error(ret).Error())
}

// Release implements gfx.Releasable, images of the swapchain go with it
func (s *Swapchain) Release() {
	if s.acquired != nil {
		vk.DestroyFence(s.device.device, s.acquired, nil)
	}
	vk.DestroySwapchain(s.device.device, s.swapchain, nil)
}
