// Copyright (c) 2019 devblok
//
// This software is released under the MIT License.
// https://opensource.org/licenses/MIT

// Package vkr manages device resident images for the vulkan renderer:
// allocation, views, layout transitions, uploads and mipmap chains.
package vkr

import (
	"unsafe"

	vk "github.com/devblok/vulkan"
	"github.com/pkg/errors"
)

// Device is the part of the Vulkan API that image management
// creates objects and records commands through.
type Device interface {
	CreateImage(info *vk.ImageCreateInfo) (vk.Image, error)
	DestroyImage(image vk.Image)
	ImageMemoryRequirements(image vk.Image) vk.MemoryRequirements
	BindImageMemory(image vk.Image, memory vk.DeviceMemory, offset vk.DeviceSize) error
	CreateImageView(info *vk.ImageViewCreateInfo) (vk.ImageView, error)
	DestroyImageView(view vk.ImageView)

	CreateBuffer(info *vk.BufferCreateInfo) (vk.Buffer, error)
	DestroyBuffer(buffer vk.Buffer)
	BufferMemoryRequirements(buffer vk.Buffer) vk.MemoryRequirements
	BindBufferMemory(buffer vk.Buffer, memory vk.DeviceMemory, offset vk.DeviceSize) error

	// MemoryProperties returns the physical device memory properties,
	// already dereferenced.
	MemoryProperties() vk.PhysicalDeviceMemoryProperties

	// FormatProperties returns the physical device support for the format,
	// already dereferenced.
	FormatProperties(format vk.Format) vk.FormatProperties

	AllocateMemory(info *vk.MemoryAllocateInfo) (vk.DeviceMemory, error)
	FreeMemory(memory vk.DeviceMemory)
	MapMemory(memory vk.DeviceMemory, offset, size vk.DeviceSize) (unsafe.Pointer, error)
	UnmapMemory(memory vk.DeviceMemory)

	AllocateCommandBuffer(pool vk.CommandPool) (vk.CommandBuffer, error)
	FreeCommandBuffer(pool vk.CommandPool, cmd vk.CommandBuffer)
	BeginCommandBuffer(cmd vk.CommandBuffer, info *vk.CommandBufferBeginInfo) error
	EndCommandBuffer(cmd vk.CommandBuffer) error
	QueueSubmit(queue vk.Queue, submits []vk.SubmitInfo) error
	QueueWaitIdle(queue vk.Queue) error

	CmdPipelineBarrier(cmd vk.CommandBuffer, srcStage, dstStage vk.PipelineStageFlags, barriers []vk.ImageMemoryBarrier)
	CmdBlitImage(cmd vk.CommandBuffer, src vk.Image, srcLayout vk.ImageLayout, dst vk.Image, dstLayout vk.ImageLayout, regions []vk.ImageBlit, filter vk.Filter)
	CmdCopyBufferToImage(cmd vk.CommandBuffer, buffer vk.Buffer, image vk.Image, layout vk.ImageLayout, regions []vk.BufferImageCopy)
}

// NewDevice wraps a logical device and the physical device it was created from.
func NewDevice(device vk.Device, phyDevice vk.PhysicalDevice) Device {
	var memProperties vk.PhysicalDeviceMemoryProperties
	vk.GetPhysicalDeviceMemoryProperties(phyDevice, &memProperties)
	memProperties.Deref()
	for idx := uint32(0); idx < memProperties.MemoryTypeCount; idx++ {
		memProperties.MemoryTypes[idx].Deref()
	}

	return &vulkanDevice{
		device:        device,
		phyDevice:     phyDevice,
		memProperties: memProperties,
	}
}

type vulkanDevice struct {
	device        vk.Device
	phyDevice     vk.PhysicalDevice
	memProperties vk.PhysicalDeviceMemoryProperties
}

func (d *vulkanDevice) CreateImage(info *vk.ImageCreateInfo) (vk.Image, error) {
	var image vk.Image
	if err := vk.Error(vk.CreateImage(d.device, info, nil, &image)); err != nil {
		return nil, errors.Wrap(err, "vk.CreateImage()")
	}
	return image, nil
}

func (d *vulkanDevice) DestroyImage(image vk.Image) {
	vk.DestroyImage(d.device, image, nil)
}

func (d *vulkanDevice) ImageMemoryRequirements(image vk.Image) vk.MemoryRequirements {
	var req vk.MemoryRequirements
	vk.GetImageMemoryRequirements(d.device, image, &req)
	req.Deref()
	return req
}

func (d *vulkanDevice) BindImageMemory(image vk.Image, memory vk.DeviceMemory, offset vk.DeviceSize) error {
	return errors.Wrap(vk.Error(vk.BindImageMemory(d.device, image, memory, offset)), "vk.BindImageMemory()")
}

func (d *vulkanDevice) CreateImageView(info *vk.ImageViewCreateInfo) (vk.ImageView, error) {
	var view vk.ImageView
	if err := vk.Error(vk.CreateImageView(d.device, info, nil, &view)); err != nil {
		return nil, errors.Wrap(err, "vk.CreateImageView()")
	}
	return view, nil
}

func (d *vulkanDevice) DestroyImageView(view vk.ImageView) {
	vk.DestroyImageView(d.device, view, nil)
}

func (d *vulkanDevice) CreateBuffer(info *vk.BufferCreateInfo) (vk.Buffer, error) {
	var buffer vk.Buffer
	if err := vk.Error(vk.CreateBuffer(d.device, info, nil, &buffer)); err != nil {
		return nil, errors.Wrap(err, "vk.CreateBuffer()")
	}
	return buffer, nil
}

func (d *vulkanDevice) DestroyBuffer(buffer vk.Buffer) {
	vk.DestroyBuffer(d.device, buffer, nil)
}

func (d *vulkanDevice) BufferMemoryRequirements(buffer vk.Buffer) vk.MemoryRequirements {
	var req vk.MemoryRequirements
	vk.GetBufferMemoryRequirements(d.device, buffer, &req)
	req.Deref()
	return req
}

func (d *vulkanDevice) BindBufferMemory(buffer vk.Buffer, memory vk.DeviceMemory, offset vk.DeviceSize) error {
	return errors.Wrap(vk.Error(vk.BindBufferMemory(d.device, buffer, memory, offset)), "vk.BindBufferMemory()")
}

func (d *vulkanDevice) MemoryProperties() vk.PhysicalDeviceMemoryProperties {
	return d.memProperties
}

func (d *vulkanDevice) FormatProperties(format vk.Format) vk.FormatProperties {
	return PhysicalFormats{Device: d.phyDevice}.FormatProperties(format)
}

// PhysicalFormats answers format support queries for a physical device
// that has no logical device yet.
type PhysicalFormats struct {
	Device vk.PhysicalDevice
}

// FormatProperties implements FormatSource.
func (pd PhysicalFormats) FormatProperties(format vk.Format) vk.FormatProperties {
	var props vk.FormatProperties
	vk.GetPhysicalDeviceFormatProperties(pd.Device, format, &props)
	props.Deref()
	return props
}

func (d *vulkanDevice) AllocateMemory(info *vk.MemoryAllocateInfo) (vk.DeviceMemory, error) {
	var memory vk.DeviceMemory
	if err := vk.Error(vk.AllocateMemory(d.device, info, nil, &memory)); err != nil {
		return nil, errors.Wrap(err, "vk.AllocateMemory()")
	}
	return memory, nil
}

func (d *vulkanDevice) FreeMemory(memory vk.DeviceMemory) {
	vk.FreeMemory(d.device, memory, nil)
}

func (d *vulkanDevice) MapMemory(memory vk.DeviceMemory, offset, size vk.DeviceSize) (unsafe.Pointer, error) {
	var mapped unsafe.Pointer
	if err := vk.Error(vk.MapMemory(d.device, memory, offset, size, 0, &mapped)); err != nil {
		return nil, errors.Wrap(err, "vk.MapMemory()")
	}
	return mapped, nil
}

func (d *vulkanDevice) UnmapMemory(memory vk.DeviceMemory) {
	vk.UnmapMemory(d.device, memory)
}

func (d *vulkanDevice) AllocateCommandBuffer(pool vk.CommandPool) (vk.CommandBuffer, error) {
	cbai := vk.CommandBufferAllocateInfo{
		SType:              vk.StructureTypeCommandBufferAllocateInfo,
		Level:              vk.CommandBufferLevelPrimary,
		CommandPool:        pool,
		CommandBufferCount: 1,
	}

	commandBuffers := make([]vk.CommandBuffer, 1)
	if err := vk.Error(vk.AllocateCommandBuffers(d.device, &cbai, commandBuffers)); err != nil {
		return nil, errors.Wrap(err, "vk.AllocateCommandBuffers()")
	}
	return commandBuffers[0], nil
}

func (d *vulkanDevice) FreeCommandBuffer(pool vk.CommandPool, cmd vk.CommandBuffer) {
	vk.FreeCommandBuffers(d.device, pool, 1, []vk.CommandBuffer{cmd})
}

func (d *vulkanDevice) BeginCommandBuffer(cmd vk.CommandBuffer, info *vk.CommandBufferBeginInfo) error {
	return errors.Wrap(vk.Error(vk.BeginCommandBuffer(cmd, info)), "vk.BeginCommandBuffer()")
}

func (d *vulkanDevice) EndCommandBuffer(cmd vk.CommandBuffer) error {
	return errors.Wrap(vk.Error(vk.EndCommandBuffer(cmd)), "vk.EndCommandBuffer()")
}

func (d *vulkanDevice) QueueSubmit(queue vk.Queue, submits []vk.SubmitInfo) error {
	return errors.Wrap(vk.Error(vk.QueueSubmit(queue, uint32(len(submits)), submits, nil)), "vk.QueueSubmit()")
}

func (d *vulkanDevice) QueueWaitIdle(queue vk.Queue) error {
	return errors.Wrap(vk.Error(vk.QueueWaitIdle(queue)), "vk.QueueWaitIdle()")
}

func (d *vulkanDevice) CmdPipelineBarrier(cmd vk.CommandBuffer, srcStage, dstStage vk.PipelineStageFlags, barriers []vk.ImageMemoryBarrier) {
	vk.CmdPipelineBarrier(cmd, srcStage, dstStage, 0, 0, nil, 0, nil, uint32(len(barriers)), barriers)
}

func (d *vulkanDevice) CmdBlitImage(cmd vk.CommandBuffer, src vk.Image, srcLayout vk.ImageLayout, dst vk.Image, dstLayout vk.ImageLayout, regions []vk.ImageBlit, filter vk.Filter) {
	vk.CmdBlitImage(cmd, src, srcLayout, dst, dstLayout, uint32(len(regions)), regions, filter)
}

func (d *vulkanDevice) CmdCopyBufferToImage(cmd vk.CommandBuffer, buffer vk.Buffer, image vk.Image, layout vk.ImageLayout, regions []vk.BufferImageCopy) {
	vk.CmdCopyBufferToImage(cmd, buffer, image, layout, uint32(len(regions)), regions)
}
