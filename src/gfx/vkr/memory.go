// Copyright (c) 2019 devblok
//
// This software is released under the MIT License.
// https://opensource.org/licenses/MIT

package vkr

import (
	"unsafe"

	vk "github.com/devblok/vulkan"
	"github.com/pkg/errors"
)

// ErrNoMemoryType is returned when no memory type satisfies both the
// resource requirements and the requested properties.
var ErrNoMemoryType = errors.New("suitable memory type not found")

// Memory defines a usable memory region.
type Memory struct {
	mapped    bool
	len       vk.DeviceSize
	typeIndex uint32
	dev       Device
	memory    vk.DeviceMemory
}

// Len returns the length of assigned memory.
func (m *Memory) Len() vk.DeviceSize {
	return m.len
}

// TypeIndex returns the memory type the region was allocated from.
func (m *Memory) TypeIndex() uint32 {
	return m.typeIndex
}

// Get returns the vulkan memory handle.
func (m *Memory) Get() vk.DeviceMemory {
	return m.memory
}

// Map maps the entire memory region and returns a
// byte slice over the mapped area.
func (m *Memory) Map() ([]byte, error) {
	ptr, err := m.dev.MapMemory(m.memory, 0, m.len)
	if err != nil {
		return nil, err
	}
	m.mapped = true
	return unsafe.Slice((*byte)(ptr), int(m.len)), nil
}

// Unmap removes the memory mapping if it was mapped.
func (m *Memory) Unmap() {
	if m.mapped {
		m.dev.UnmapMemory(m.memory)
		m.mapped = false
	}
}

// Release frees memory after unmapping it if previously mapped.
func (m *Memory) Release() {
	if m.memory == nil {
		return
	}
	m.Unmap()
	m.dev.FreeMemory(m.memory)
	m.memory = nil
}

// NewMemoryAllocator creates a new memory allocator for the device,
// memory properties of the physical device influence allocation.
func NewMemoryAllocator(dev Device) *MemoryAllocator {
	return &MemoryAllocator{
		dev:           dev,
		memProperties: dev.MemoryProperties(),
	}
}

// MemoryAllocator is responsible returning usable
// memory for any resources that may need it.
type MemoryAllocator struct {
	dev           Device
	memProperties vk.PhysicalDeviceMemoryProperties
}

// Malloc returns a usable memory chunk ready for binding.
func (ma *MemoryAllocator) Malloc(req vk.MemoryRequirements, prop vk.MemoryPropertyFlags) (Memory, error) {
	memTypeIdx, err := ma.findMemoryType(req.MemoryTypeBits, prop)
	if err != nil {
		return Memory{}, allocationError("findMemoryType", err)
	}

	mai := vk.MemoryAllocateInfo{
		SType:           vk.StructureTypeMemoryAllocateInfo,
		AllocationSize:  req.Size,
		MemoryTypeIndex: memTypeIdx,
	}

	memory, err := ma.dev.AllocateMemory(&mai)
	if err != nil {
		return Memory{}, allocationError("AllocateMemory", err)
	}

	return Memory{
		len:       req.Size,
		typeIndex: memTypeIdx,
		dev:       ma.dev,
		memory:    memory,
	}, nil
}

func (ma *MemoryAllocator) findMemoryType(filter uint32, prop vk.MemoryPropertyFlags) (uint32, error) {
	for idx := uint32(0); idx < ma.memProperties.MemoryTypeCount; idx++ {
		if filter&(1<<idx) != 0 && (ma.memProperties.MemoryTypes[idx].PropertyFlags&prop) == prop {
			return idx, nil
		}
	}
	return 0, errors.Wrapf(ErrNoMemoryType, "filter %#x, properties %#x", filter, prop)
}
