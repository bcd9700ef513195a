// Copyright (c) 2019 devblok
//
// This software is released under the MIT License.
// https://opensource.org/licenses/MIT

package core

import (
	vk "github.com/devblok/vulkan"
	"github.com/pkg/errors"
	log "github.com/sirupsen/logrus"

	"github.com/devblok/vkimage/src/gfx/vkr"
)

// NewDeviceContext creates a logical device on the configured physical
// device with one graphics queue, a command pool on that queue and the
// image management services bound to them.
func NewDeviceContext(instance Instance, cfg RendererConfiguration) (*DeviceContext, error) {
	devices := instance.AvailableDevices()
	if cfg.DeviceIndex < 0 || cfg.DeviceIndex >= len(devices) {
		return nil, errors.Errorf("device %d requested, %d available", cfg.DeviceIndex, len(devices))
	}
	physicalDevice := devices[cfg.DeviceIndex]

	queueFamily, err := findGraphicsQueueFamily(physicalDevice, instance.Surface())
	if err != nil {
		return nil, err
	}

	queueInfos := []vk.DeviceQueueCreateInfo{{
		SType:            vk.StructureTypeDeviceQueueCreateInfo,
		QueueFamilyIndex: queueFamily,
		QueueCount:       1,
		PQueuePriorities: []float32{1},
	}}

	dci := vk.DeviceCreateInfo{
		SType:                   vk.StructureTypeDeviceCreateInfo,
		QueueCreateInfoCount:    uint32(len(queueInfos)),
		PQueueCreateInfos:       queueInfos,
		EnabledExtensionCount:   uint32(len(cfg.DeviceExtensions)),
		PpEnabledExtensionNames: safeStrings(cfg.DeviceExtensions),
		PEnabledFeatures: []vk.PhysicalDeviceFeatures{{
			SamplerAnisotropy: vk.True,
		}},
	}

	var device vk.Device
	if err := vk.Error(vk.CreateDevice(physicalDevice, &dci, nil, &device)); err != nil {
		return nil, errors.Wrap(err, "vk.CreateDevice()")
	}

	var queue vk.Queue
	vk.GetDeviceQueue(device, queueFamily, 0, &queue)

	cpci := vk.CommandPoolCreateInfo{
		SType:            vk.StructureTypeCommandPoolCreateInfo,
		QueueFamilyIndex: queueFamily,
		Flags:            vk.CommandPoolCreateFlags(vk.CommandPoolCreateTransientBit),
	}

	var pool vk.CommandPool
	if err := vk.Error(vk.CreateCommandPool(device, &cpci, nil, &pool)); err != nil {
		vk.DestroyDevice(device, nil)
		return nil, errors.Wrap(err, "vk.CreateCommandPool()")
	}

	dev := vkr.NewDevice(device, physicalDevice)

	log.WithFields(log.Fields{
		"device":      cfg.DeviceIndex,
		"queueFamily": queueFamily,
	}).Debug("device context created")

	return &DeviceContext{
		PhysicalDevice: physicalDevice,
		Device:         device,
		Queue:          queue,
		QueueFamily:    queueFamily,
		CommandPool:    pool,
		Vkr:            dev,
		Allocator:      vkr.NewMemoryAllocator(dev),
		Recorder:       vkr.NewCommandRecorder(dev, pool, queue),
	}, nil
}

// DeviceContext is a logical device together with the queue and
// command pool that images are uploaded through.
type DeviceContext struct {
	PhysicalDevice vk.PhysicalDevice
	Device         vk.Device
	Queue          vk.Queue
	QueueFamily    uint32
	CommandPool    vk.CommandPool

	Vkr       vkr.Device
	Allocator *vkr.MemoryAllocator
	Recorder  *vkr.CommandRecorder
}

// Destroy waits for the device to become idle and destroys it.
// Every resource created on the device has to be released before.
func (d *DeviceContext) Destroy() {
	vk.DeviceWaitIdle(d.Device)
	vk.DestroyCommandPool(d.Device, d.CommandPool, nil)
	vk.DestroyDevice(d.Device, nil)
}

func findGraphicsQueueFamily(physicalDevice vk.PhysicalDevice, surface vk.Surface) (uint32, error) {
	var queueFamilyCount uint32
	vk.GetPhysicalDeviceQueueFamilyProperties(physicalDevice, &queueFamilyCount, nil)
	if queueFamilyCount == 0 {
		return 0, errors.New("vk.GetPhysicalDeviceQueueFamilyProperties(): no queuefamilies on GPU")
	}
	queueFamilies := make([]vk.QueueFamilyProperties, queueFamilyCount)
	vk.GetPhysicalDeviceQueueFamilyProperties(physicalDevice, &queueFamilyCount, queueFamilies)

	graphics := make([]bool, queueFamilyCount)
	present := make([]bool, queueFamilyCount)
	for i := uint32(0); i < queueFamilyCount; i++ {
		queueFamilies[i].Deref()
		graphics[i] = queueFamilies[i].QueueFlags&vk.QueueFlags(vk.QueueGraphicsBit) != 0
		if surface != vk.NullSurface {
			var supportsPresent vk.Bool32
			vk.GetPhysicalDeviceSurfaceSupport(physicalDevice, i, surface, &supportsPresent)
			present[i] = supportsPresent.B()
		}
	}

	return pickQueueFamily(graphics, present, surface != vk.NullSurface)
}

// pickQueueFamily prefers a family that can both draw and present.
func pickQueueFamily(graphics, present []bool, needsPresent bool) (uint32, error) {
	fallback := -1
	for i := range graphics {
		if !graphics[i] {
			continue
		}
		if !needsPresent || present[i] {
			return uint32(i), nil
		}
		if fallback < 0 {
			fallback = i
		}
	}
	if fallback >= 0 {
		log.WithField("queueFamily", fallback).Warn("graphics queue family can't present to the surface")
		return uint32(fallback), nil
	}
	return 0, errors.New("could not find a queue family with graphics support")
}
