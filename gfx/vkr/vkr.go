// Copyright (c) 2019 devblok
//
// This software is released under the MIT License.
// https://opensource.org/licenses/MIT

// Package vkr implements gfx on Vulkan.
package vkr

import (
	"sync"
	"unsafe"

	vk "github.com/goki/vulkan"
	"github.com/pkg/errors"
	log "github.com/sirupsen/logrus"

	"github.com/devblok/overlaygfx/device"
	"github.com/devblok/overlaygfx/gfx"
)

var _ gfx.SurfaceDevice = (*Device)(nil)

// ValidationLayer is enabled in debug mode
const ValidationLayer = "VK_LAYER_KHRONOS_validation"

// Config configures a Vulkan Device
type Config struct {
	gfx.DeviceConfiguration

	// ProcAddr is vkGetInstanceProcAddr of the windowing system,
	// the system loader is used when nil
	ProcAddr unsafe.Pointer

	// Surface creates the presentation surface for instance,
	// a device without one can not create swapchains
	Surface func(instance vk.Instance) (unsafe.Pointer, error)

	// SurfaceExtent is the size of the surface when the
	// surface leaves it to the swapchain
	SurfaceExtent func() gfx.Extent2D
}

func createInstance(cfg Config) (vk.Instance, error) {
	if cfg.ProcAddr == nil {
		if err := vk.SetDefaultGetInstanceProcAddr(); err != nil {
			return nil, errors.New("vk.SetDefaultGetInstanceProcAddr(): " + err.Error())
		}
	} else {
		vk.SetGetInstanceProcAddr(cfg.ProcAddr)
	}

	if err := vk.Init(); err != nil {
		return nil, errors.New("vk.Init(): " + err.Error())
	}

	layers := cfg.Layers
	if cfg.DebugMode {
		layers = append(layers, ValidationLayer)
	}
	extensions := cstrings(cfg.Extensions)
	layers = cstrings(layers)

	appInfo := &vk.ApplicationInfo{
		SType:              vk.StructureTypeApplicationInfo,
		ApiVersion:         vk.MakeVersion(1, 2, 0),
		ApplicationVersion: vk.MakeVersion(1, 0, 0),
		PApplicationName:   cfg.ApplicationName + "\x00",
		PEngineName:        "overlaygfx\x00",
	}

	instanceInfo := vk.InstanceCreateInfo{
		SType:                   vk.StructureTypeInstanceCreateInfo,
		PApplicationInfo:        appInfo,
		EnabledExtensionCount:   uint32(len(extensions)),
		PpEnabledExtensionNames: extensions,
		EnabledLayerCount:       uint32(len(layers)),
		PpEnabledLayerNames:     layers,
	}

	var instance vk.Instance
	if err := vk.Error(vk.CreateInstance(&instanceInfo, nil, &instance)); err != nil {
		return nil, errors.New("vk.CreateInstance(): " + err.Error())
	}
	vk.InitInstance(instance)
	return instance, nil
}

// New creates an instance, selects a physical device and creates
// a logical device with one graphics queue on it
func New(cfg Config) (*Device, error) {
	instance, err := createInstance(cfg)
	if err != nil {
		return nil, err
	}

	d := &Device{
		cfg:           cfg,
		instance:      instance,
		surface:       vk.NullSurface,
		surfaceExtent: cfg.SurfaceExtent,
	}

	if cfg.Surface != nil {
		pSurface, err := cfg.Surface(instance)
		if err != nil {
			d.Release()
			return nil, errors.Wrap(err, "create surface")
		}
		d.surface = vk.SurfaceFromPointer(uintptr(pSurface))
	}

	physicalDevices, err := enumerateDevices(instance)
	if err != nil {
		d.Release()
		return nil, err
	}
	d.adapters = PhysicalDevicesInfo(physicalDevices, d.surface)

	d.selection, err = device.Select(d.adapters, cfg.DeviceExtensions, d.surface != vk.NullSurface)
	if err != nil {
		d.Release()
		return nil, err
	}
	d.physicalDevice = physicalDevices[d.selection.Index]

	log.WithFields(log.Fields{
		"device":      d.Adapter().Name,
		"type":        d.Adapter().Type,
		"queueFamily": d.selection.QueueFamily,
	}).Info("Vulkan device selected")

	if err := d.createDevice(); err != nil {
		d.Release()
		return nil, err
	}
	return d, nil
}

func (d *Device) createDevice() error {
	extensions := cstrings(device.Extensions(d.cfg.DeviceExtensions))
	queueFamily := uint32(d.selection.QueueFamily)

	dci := vk.DeviceCreateInfo{
		SType:                vk.StructureTypeDeviceCreateInfo,
		QueueCreateInfoCount: 1,
		PQueueCreateInfos: []vk.DeviceQueueCreateInfo{{
			SType:            vk.StructureTypeDeviceQueueCreateInfo,
			QueueFamilyIndex: queueFamily,
			QueueCount:       1,
			PQueuePriorities: []float32{1.0},
		}},
		EnabledExtensionCount:   uint32(len(extensions)),
		PpEnabledExtensionNames: extensions,
	}

	var vkDevice vk.Device
	if err := vk.Error(vk.CreateDevice(d.physicalDevice, &dci, nil, &vkDevice)); err != nil {
		return errors.New("vk.CreateDevice(): " + err.Error())
	}
	d.device = vkDevice

	var queue vk.Queue
	vk.GetDeviceQueue(vkDevice, queueFamily, 0, &queue)
	d.queue = queue

	d.allocator = NewMemoryAllocator(vkDevice, d.physicalDevice)

	var err error
	if d.commandPool, err = createCommandPool(vkDevice, queueFamily); err != nil {
		return err
	}
	if d.descriptorPool, err = createDescriptorPool(vkDevice); err != nil {
		return err
	}

	pcci := vk.PipelineCacheCreateInfo{
		SType: vk.StructureTypePipelineCacheCreateInfo,
	}
	if err := vk.Error(vk.CreatePipelineCache(vkDevice, &pcci, nil, &d.pipelineCache)); err != nil {
		return errors.New("vk.CreatePipelineCache(): " + err.Error())
	}
	return nil
}

// Device implements gfx.SurfaceDevice on a Vulkan logical device.
// Queue access, command and descriptor pools are guarded by a mutex.
type Device struct {
	mutex sync.Mutex

	cfg       Config
	adapters  []device.PhysicalDeviceInfo
	selection device.Selection

	instance       vk.Instance
	surface        vk.Surface
	surfaceExtent  func() gfx.Extent2D
	physicalDevice vk.PhysicalDevice

	device         vk.Device
	queue          vk.Queue
	allocator      *MemoryAllocator
	commandPool    vk.CommandPool
	descriptorPool vk.DescriptorPool
	pipelineCache  vk.PipelineCache
}

// Adapters returns every physical device that was considered
func (d *Device) Adapters() []device.PhysicalDeviceInfo {
	return d.adapters
}

// Adapter returns the selected physical device
func (d *Device) Adapter() device.PhysicalDeviceInfo {
	return d.adapters[d.selection.Index]
}

// Selection returns the outcome of device selection
func (d *Device) Selection() device.Selection {
	return d.selection
}

// Instance returns internal vk.Instance
func (d *Device) Instance() vk.Instance {
	return d.instance
}

// Release destroys the device, its surface and the instance. Every
// object created from the device must be released before.
func (d *Device) Release() {
	if d.device != nil {
		if err := vk.Error(vk.DeviceWaitIdle(d.device)); err != nil {
			log.WithError(err).Warn("vk.DeviceWaitIdle()")
		}
		if d.pipelineCache != nil {
			vk.DestroyPipelineCache(d.device, d.pipelineCache, nil)
		}
		if d.descriptorPool != nil {
			vk.DestroyDescriptorPool(d.device, d.descriptorPool, nil)
		}
		if d.commandPool != nil {
			vk.DestroyCommandPool(d.device, d.commandPool, nil)
		}
		vk.DestroyDevice(d.device, nil)
	}
	if d.surface != vk.NullSurface {
		vk.DestroySurface(d.instance, d.surface, nil)
	}
	vk.DestroyInstance(d.instance, nil)
}

// Devices enumerates the physical devices of a throwaway instance
func Devices(cfg Config) ([]device.PhysicalDeviceInfo, error) {
	instance, err := createInstance(cfg)
	if err != nil {
		return nil, err
	}
	defer vk.DestroyInstance(instance, nil)

	physicalDevices, err := enumerateDevices(instance)
	if err != nil {
		return nil, err
	}
	return PhysicalDevicesInfo(physicalDevices, vk.NullSurface), nil
}
