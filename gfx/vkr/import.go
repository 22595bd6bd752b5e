// Copyright (c) 2019 devblok
//
// This software is released under the MIT License.
// https://opensource.org/licenses/MIT

package vkr

import (
	"unsafe"

	vk "github.com/goki/vulkan"
	"github.com/pkg/errors"
	log "github.com/sirupsen/logrus"
	"golang.org/x/sys/unix"

	"github.com/devblok/overlaygfx/gfx"
)

// ImportImage implements gfx.Device. The image uses the plane's explicit
// DRM format modifier and memory imported from a duplicate of its fd,
// the caller keeps ownership of the plane fd. Failures to bind the
// shared memory are returned as *gfx.ImportError.
func (d *Device) ImportImage(info gfx.ImageInfo, plane gfx.DmabufPlane) (gfx.Image, error) {
	planeFd, ok := plane.Fd()
	if !ok {
		return nil, &gfx.ImportError{Err: errors.New("vkr: plane carries no fd")}
	}

	layouts := []vk.SubresourceLayout{{
		Offset:   vk.DeviceSize(plane.Offset),
		RowPitch: vk.DeviceSize(plane.Stride),
	}}
	modifierInfo := vk.ImageDrmFormatModifierExplicitCreateInfo{
		SType:                       vk.StructureTypeImageDrmFormatModifierExplicitCreateInfo,
		DrmFormatModifier:           plane.Modifier,
		DrmFormatModifierPlaneCount: uint32(len(layouts)),
		PPlaneLayouts:               layouts,
	}
	modifierRef, _ := modifierInfo.PassRef()
	defer modifierInfo.Free()

	externalInfo := vk.ExternalMemoryImageCreateInfo{
		SType:       vk.StructureTypeExternalMemoryImageCreateInfo,
		PNext:       unsafe.Pointer(modifierRef),
		HandleTypes: vk.ExternalMemoryHandleTypeFlags(vk.ExternalMemoryHandleTypeDmaBufBit),
	}
	externalRef, _ := externalInfo.PassRef()
	defer externalInfo.Free()

	createInfo := imageCreateInfo(info, vk.ImageTilingDrmFormatModifier)
	createInfo.PNext = unsafe.Pointer(externalRef)

	var image vk.Image
	if err := vk.Error(vk.CreateImage(d.device, &createInfo, nil, &image)); err != nil {
		return nil, errors.New("vk.CreateImage(): " + err.Error())
	}

	// the driver takes ownership of the fd on a successful import
	fd, err := unix.Dup(planeFd)
	if err != nil {
		vk.DestroyImage(d.device, image, nil)
		return nil, &gfx.ImportError{Err: errors.Wrapf(err, "dup fd %d", planeFd)}
	}

	var req vk.MemoryRequirements
	vk.GetImageMemoryRequirements(d.device, image, &req)
	req.Deref()

	dedicated := vk.MemoryDedicatedAllocateInfo{
		SType: vk.StructureTypeMemoryDedicatedAllocateInfo,
		Image: image,
	}
	dedicatedRef, _ := dedicated.PassRef()
	defer dedicated.Free()

	importInfo := vk.ImportMemoryFdInfo{
		SType:      vk.StructureTypeImportMemoryFdInfo,
		PNext:      unsafe.Pointer(dedicatedRef),
		HandleType: vk.ExternalMemoryHandleTypeDmaBufBit,
		Fd:         int32(fd),
	}
	importRef, _ := importInfo.PassRef()
	defer importInfo.Free()

	prop := d.allocator.PreferDeviceLocal(req.MemoryTypeBits)
	memory, err := d.allocator.Malloc(req, prop, unsafe.Pointer(importRef))
	if err != nil {
		unix.Close(fd)
		vk.DestroyImage(d.device, image, nil)
		return nil, &gfx.ImportError{Err: err}
	}
	if err := vk.Error(vk.BindImageMemory(d.device, image, memory.Get(), 0)); err != nil {
		vk.DestroyImage(d.device, image, nil)
		memory.Release()
		return nil, &gfx.ImportError{Err: errors.New("vk.BindImageMemory(): " + err.Error())}
	}

	log.WithFields(log.Fields{
		"fd":       planeFd,
		"modifier": plane.Modifier,
		"width":    info.Extent.Width,
		"height":   info.Extent.Height,
	}).Debug("DMA-buf imported")

	return &Image{
		device: d.device,
		image:  image,
		memory: memory,
		info:   info,
	}, nil
}
