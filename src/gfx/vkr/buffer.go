// Copyright (c) 2019 devblok
//
// This software is released under the MIT License.
// https://opensource.org/licenses/MIT

package vkr

import (
	vk "github.com/devblok/vulkan"
	"github.com/pkg/errors"
)

// NewBuffer creates, configures, allocates and binds a new host visible buffer.
func NewBuffer(dev Device, ma *MemoryAllocator, size int, usage vk.BufferUsageFlags, mode vk.SharingMode) (*Buffer, error) {
	if size <= 0 {
		return nil, errors.Errorf("buffer size must be positive, got %d", size)
	}

	createInfo := vk.BufferCreateInfo{
		SType:       vk.StructureTypeBufferCreateInfo,
		Size:        vk.DeviceSize(size),
		Usage:       usage,
		SharingMode: mode,
	}
	buffer, err := dev.CreateBuffer(&createInfo)
	if err != nil {
		return nil, allocationError("CreateBuffer", err)
	}

	memory, err := ma.Malloc(dev.BufferMemoryRequirements(buffer),
		vk.MemoryPropertyFlags(vk.MemoryPropertyHostVisibleBit|vk.MemoryPropertyHostCoherentBit))
	if err != nil {
		dev.DestroyBuffer(buffer)
		return nil, err
	}

	if err := dev.BindBufferMemory(buffer, memory.Get(), 0); err != nil {
		dev.DestroyBuffer(buffer)
		memory.Release()
		return nil, allocationError("BindBufferMemory", err)
	}

	return &Buffer{
		dev:    dev,
		buffer: buffer,
		size:   size,
		memory: memory,
	}, nil
}

// NewStagingBuffer creates a transfer source buffer holding a copy of data.
func NewStagingBuffer(dev Device, ma *MemoryAllocator, data []byte) (*Buffer, error) {
	buffer, err := NewBuffer(dev, ma, len(data), vk.BufferUsageFlags(vk.BufferUsageTransferSrcBit), vk.SharingModeExclusive)
	if err != nil {
		return nil, err
	}
	if err := buffer.Write(data); err != nil {
		buffer.Release()
		return nil, err
	}
	return buffer, nil
}

// Buffer implements a generic vulkan buffer.
type Buffer struct {
	dev    Device
	buffer vk.Buffer
	size   int

	memory Memory
}

// Mem returns the Memory that the buffer is based on.
func (b *Buffer) Mem() *Memory {
	return &b.memory
}

// Get returns the vulkan Buffer handle.
func (b *Buffer) Get() vk.Buffer {
	return b.buffer
}

// Size returns the requested size of the buffer in bytes.
func (b *Buffer) Size() int {
	return b.size
}

// Write copies data to the start of the buffer memory.
func (b *Buffer) Write(data []byte) error {
	if len(data) > b.size {
		return errors.Errorf("write of %d bytes exceeds buffer size %d", len(data), b.size)
	}
	mapped, err := b.memory.Map()
	if err != nil {
		return err
	}
	copy(mapped, data)
	b.memory.Unmap()
	return nil
}

// Release destroys the buffer and memory asociated with it.
func (b *Buffer) Release() {
	b.dev.DestroyBuffer(b.buffer)
	b.memory.Release()
}
