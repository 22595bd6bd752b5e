// Copyright (c) 2019 devblok
//
// This software is released under the MIT License.
// https://opensource.org/licenses/MIT

package vkr

import (
	"unsafe"

	vk "github.com/goki/vulkan"
	"github.com/pkg/errors"
)

// Memory is a device memory allocation bound to one resource.
type Memory struct {
	size   vk.DeviceSize
	device vk.Device
	memory vk.DeviceMemory
}

// Size returns the length of the allocation.
func (m *Memory) Size() vk.DeviceSize {
	return m.size
}

// Get returns the vulkan memory handle.
func (m *Memory) Get() vk.DeviceMemory {
	return m.memory
}

// Map maps the first size bytes of the allocation
func (m *Memory) Map(size int) (unsafe.Pointer, error) {
	var mapped unsafe.Pointer
	if err := vk.Error(vk.MapMemory(m.device, m.memory, 0, vk.DeviceSize(size), 0, &mapped)); err != nil {
		return nil, errors.New("vk.MapMemory(): " + err.Error())
	}
	return mapped, nil
}

// Unmap removes the memory mapping.
func (m *Memory) Unmap() {
	vk.UnmapMemory(m.device, m.memory)
}

// Release frees the allocation.
func (m *Memory) Release() {
	vk.FreeMemory(m.device, m.memory, nil)
}

// NewMemoryAllocator creates a new memory allocator. Allocates for the logical device,
// reads memory properties of the physical device to influence allocation.
func NewMemoryAllocator(device vk.Device, phyDevice vk.PhysicalDevice) *MemoryAllocator {
	var memProperties vk.PhysicalDeviceMemoryProperties
	vk.GetPhysicalDeviceMemoryProperties(phyDevice, &memProperties)
	memProperties.Deref()

	return &MemoryAllocator{
		device:        device,
		memProperties: memProperties,
	}
}

// MemoryAllocator is responsible returning usable
// memory for any resources that may need it.
type MemoryAllocator struct {
	device        vk.Device
	memProperties vk.PhysicalDeviceMemoryProperties
}

// Malloc allocates memory satisfying req with at least the prop properties.
// next is chained to the allocation info, it is used to import or
// dedicate memory.
func (ma *MemoryAllocator) Malloc(req vk.MemoryRequirements, prop vk.MemoryPropertyFlagBits, next unsafe.Pointer) (*Memory, error) {
	memTypeIdx, err := ma.findMemoryType(req.MemoryTypeBits, vk.MemoryPropertyFlags(prop))
	if err != nil {
		return nil, err
	}

	mai := vk.MemoryAllocateInfo{
		SType:           vk.StructureTypeMemoryAllocateInfo,
		PNext:           next,
		AllocationSize:  req.Size,
		MemoryTypeIndex: memTypeIdx,
	}

	var memory vk.DeviceMemory
	if err := vk.Error(vk.AllocateMemory(ma.device, &mai, nil, &memory)); err != nil {
		return nil, errors.New("vk.AllocateMemory(): " + err.Error())
	}

	return &Memory{
		size:   req.Size,
		device: ma.device,
		memory: memory,
	}, nil
}

// HostVisible is where buffers live, they are written and read back
// without staging.
const HostVisible = vk.MemoryPropertyHostVisibleBit | vk.MemoryPropertyHostCoherentBit

// PreferDevice returns host visible properties that are also device local,
// when the device has such a memory type for filter.
func (ma *MemoryAllocator) PreferDevice(filter uint32) vk.MemoryPropertyFlagBits {
	return ma.prefer(filter, HostVisible|vk.MemoryPropertyDeviceLocalBit, HostVisible)
}

// PreferDeviceLocal returns DeviceLocal when the device has such a memory
// type for filter and no properties otherwise. Imported memory is never
// mapped, so host visibility is not asked for.
func (ma *MemoryAllocator) PreferDeviceLocal(filter uint32) vk.MemoryPropertyFlagBits {
	return ma.prefer(filter, vk.MemoryPropertyDeviceLocalBit, 0)
}

func (ma *MemoryAllocator) prefer(filter uint32, want, fallback vk.MemoryPropertyFlagBits) vk.MemoryPropertyFlagBits {
	if _, err := ma.findMemoryType(filter, vk.MemoryPropertyFlags(want)); err == nil {
		return want
	}
	return fallback
}

func (ma *MemoryAllocator) findMemoryType(filter uint32, prop vk.MemoryPropertyFlags) (uint32, error) {
	for idx := uint32(0); idx < ma.memProperties.MemoryTypeCount; idx++ {
		ma.memProperties.MemoryTypes[idx].Deref()
		if filter&(1<<idx) != 0 && (ma.memProperties.MemoryTypes[idx].PropertyFlags&prop) == prop {
			return idx, nil
		}
	}
	return 0, errors.Errorf("suitable memory type not found for filter %#x", filter)
}
