// Copyright (c) 2019 devblok
//
// This software is released under the MIT License.
// https://opensource.org/licenses/MIT

package vkr

import (
	"fmt"
	"unsafe"

	vk "github.com/devblok/vulkan"
	"github.com/pkg/errors"
)

const (
	deviceLocal  = vk.MemoryPropertyFlags(vk.MemoryPropertyDeviceLocalBit)
	hostCoherent = vk.MemoryPropertyFlags(vk.MemoryPropertyHostVisibleBit | vk.MemoryPropertyHostCoherentBit)

	allFeatures = vk.FormatFeatureFlags(vk.FormatFeatureSampledImageBit |
		vk.FormatFeatureSampledImageFilterLinearBit |
		vk.FormatFeatureBlitSrcBit |
		vk.FormatFeatureBlitDstBit |
		vk.FormatFeatureDepthStencilAttachmentBit)
)

func handle() unsafe.Pointer {
	return unsafe.Pointer(new(uint64))
}

type fakeImage struct {
	info   vk.ImageCreateInfo
	bound  vk.DeviceMemory
	layout [][]vk.ImageLayout // [level][layer]
}

type recordedBarrier struct {
	srcStage, dstStage vk.PipelineStageFlags
	barrier            vk.ImageMemoryBarrier
}

type recordedBlit struct {
	srcLayout, dstLayout vk.ImageLayout
	region               vk.ImageBlit
	filter               vk.Filter
}

// fakeDevice records everything done through it and simulates image
// layouts so tests can check the commands a real driver would see.
type fakeDevice struct {
	formats map[vk.Format]vk.FormatProperties

	images  map[vk.Image]*fakeImage
	views   map[vk.ImageView]vk.ImageViewCreateInfo
	buffers map[vk.Buffer]vk.DeviceMemory
	memory  map[vk.DeviceMemory]vk.DeviceSize
	mapped  map[vk.DeviceMemory][]byte
	cmds    map[vk.CommandBuffer]bool

	destroyed []string

	allocatedCmds int
	submits       int
	barriers      []recordedBarrier
	blits         []recordedBlit
	copies        []vk.BufferImageCopy

	// onCopy observes the staging buffer of every buffer to image copy
	onCopy func(buffer vk.Buffer)

	// layout mismatches seen while recording
	violations []string

	failCreateImage error
	failAllocate    error
	failBindImage   error
	failCreateView  error
	failBegin       error
	failSubmit      error
}

func newFakeDevice() *fakeDevice {
	return &fakeDevice{
		formats: map[vk.Format]vk.FormatProperties{
			vk.FormatR8g8b8a8Unorm: {OptimalTilingFeatures: allFeatures, LinearTilingFeatures: allFeatures},
			vk.FormatD32Sfloat:     {OptimalTilingFeatures: allFeatures},
		},
		images:  make(map[vk.Image]*fakeImage),
		views:   make(map[vk.ImageView]vk.ImageViewCreateInfo),
		buffers: make(map[vk.Buffer]vk.DeviceMemory),
		memory:  make(map[vk.DeviceMemory]vk.DeviceSize),
		mapped:  make(map[vk.DeviceMemory][]byte),
		cmds:    make(map[vk.CommandBuffer]bool),
	}
}

func (d *fakeDevice) live() int {
	return len(d.images) + len(d.views) + len(d.buffers) + len(d.memory) + len(d.cmds)
}

func (d *fakeDevice) layoutOf(image vk.Image, level, layer uint32) vk.ImageLayout {
	return d.images[image].layout[level][layer]
}

func (d *fakeDevice) CreateImage(info *vk.ImageCreateInfo) (vk.Image, error) {
	if d.failCreateImage != nil {
		return nil, d.failCreateImage
	}
	layout := make([][]vk.ImageLayout, info.MipLevels)
	for level := range layout {
		layout[level] = make([]vk.ImageLayout, info.ArrayLayers)
		for layer := range layout[level] {
			layout[level][layer] = info.InitialLayout
		}
	}
	image := vk.Image(handle())
	d.images[image] = &fakeImage{info: *info, layout: layout}
	return image, nil
}

func (d *fakeDevice) DestroyImage(image vk.Image) {
	for view, info := range d.views {
		if info.Image == image {
			d.violations = append(d.violations, "image destroyed before its view")
			delete(d.views, view)
		}
	}
	delete(d.images, image)
	d.destroyed = append(d.destroyed, "image")
}

func (d *fakeDevice) ImageMemoryRequirements(image vk.Image) vk.MemoryRequirements {
	info := d.images[image].info
	size := vk.DeviceSize(info.Extent.Width) * vk.DeviceSize(info.Extent.Height) * 4 * vk.DeviceSize(info.ArrayLayers)
	return vk.MemoryRequirements{Size: size * 2, Alignment: 256, MemoryTypeBits: 0x3}
}

func (d *fakeDevice) BindImageMemory(image vk.Image, memory vk.DeviceMemory, offset vk.DeviceSize) error {
	if d.failBindImage != nil {
		return d.failBindImage
	}
	d.images[image].bound = memory
	return nil
}

func (d *fakeDevice) CreateImageView(info *vk.ImageViewCreateInfo) (vk.ImageView, error) {
	if d.failCreateView != nil {
		return nil, d.failCreateView
	}
	view := vk.ImageView(handle())
	d.views[view] = *info
	return view, nil
}

func (d *fakeDevice) DestroyImageView(view vk.ImageView) {
	delete(d.views, view)
	d.destroyed = append(d.destroyed, "view")
}

func (d *fakeDevice) CreateBuffer(info *vk.BufferCreateInfo) (vk.Buffer, error) {
	buffer := vk.Buffer(handle())
	d.buffers[buffer] = nil
	return buffer, nil
}

func (d *fakeDevice) DestroyBuffer(buffer vk.Buffer) {
	delete(d.buffers, buffer)
	d.destroyed = append(d.destroyed, "buffer")
}

func (d *fakeDevice) BufferMemoryRequirements(buffer vk.Buffer) vk.MemoryRequirements {
	return vk.MemoryRequirements{Size: 1 << 20, Alignment: 256, MemoryTypeBits: 0x3}
}

func (d *fakeDevice) BindBufferMemory(buffer vk.Buffer, memory vk.DeviceMemory, offset vk.DeviceSize) error {
	d.buffers[buffer] = memory
	return nil
}

func (d *fakeDevice) MemoryProperties() vk.PhysicalDeviceMemoryProperties {
	var props vk.PhysicalDeviceMemoryProperties
	props.MemoryTypeCount = 2
	props.MemoryTypes[0].PropertyFlags = deviceLocal
	props.MemoryTypes[1].PropertyFlags = hostCoherent
	return props
}

func (d *fakeDevice) FormatProperties(format vk.Format) vk.FormatProperties {
	return d.formats[format]
}

func (d *fakeDevice) AllocateMemory(info *vk.MemoryAllocateInfo) (vk.DeviceMemory, error) {
	if d.failAllocate != nil {
		return nil, d.failAllocate
	}
	memory := vk.DeviceMemory(handle())
	d.memory[memory] = info.AllocationSize
	return memory, nil
}

func (d *fakeDevice) FreeMemory(memory vk.DeviceMemory) {
	delete(d.memory, memory)
	delete(d.mapped, memory)
	d.destroyed = append(d.destroyed, "memory")
}

func (d *fakeDevice) MapMemory(memory vk.DeviceMemory, offset, size vk.DeviceSize) (unsafe.Pointer, error) {
	allocated, ok := d.memory[memory]
	if !ok {
		return nil, errors.New("map of unknown memory")
	}
	if offset+size > allocated {
		return nil, errors.Errorf("map of %d bytes at %d exceeds allocation of %d", size, offset, allocated)
	}
	data, ok := d.mapped[memory]
	if !ok {
		data = make([]byte, allocated)
		d.mapped[memory] = data
	}
	return unsafe.Pointer(&data[offset]), nil
}

func (d *fakeDevice) UnmapMemory(memory vk.DeviceMemory) {}

func (d *fakeDevice) AllocateCommandBuffer(pool vk.CommandPool) (vk.CommandBuffer, error) {
	cmd := vk.CommandBuffer(handle())
	d.cmds[cmd] = true
	d.allocatedCmds++
	return cmd, nil
}

func (d *fakeDevice) FreeCommandBuffer(pool vk.CommandPool, cmd vk.CommandBuffer) {
	if !d.cmds[cmd] {
		d.violations = append(d.violations, "command buffer freed twice")
	}
	delete(d.cmds, cmd)
}

func (d *fakeDevice) BeginCommandBuffer(cmd vk.CommandBuffer, info *vk.CommandBufferBeginInfo) error {
	return d.failBegin
}

func (d *fakeDevice) EndCommandBuffer(cmd vk.CommandBuffer) error {
	return nil
}

func (d *fakeDevice) QueueSubmit(queue vk.Queue, submits []vk.SubmitInfo) error {
	if d.failSubmit != nil {
		return d.failSubmit
	}
	d.submits++
	return nil
}

func (d *fakeDevice) QueueWaitIdle(queue vk.Queue) error {
	return nil
}

func (d *fakeDevice) CmdPipelineBarrier(cmd vk.CommandBuffer, srcStage, dstStage vk.PipelineStageFlags, barriers []vk.ImageMemoryBarrier) {
	for _, b := range barriers {
		d.barriers = append(d.barriers, recordedBarrier{srcStage: srcStage, dstStage: dstStage, barrier: b})

		img := d.images[b.Image]
		r := b.SubresourceRange
		for level := r.BaseMipLevel; level < r.BaseMipLevel+r.LevelCount; level++ {
			for layer := r.BaseArrayLayer; layer < r.BaseArrayLayer+r.LayerCount; layer++ {
				if have := img.layout[level][layer]; have != b.OldLayout {
					d.violations = append(d.violations, fmt.Sprintf("barrier on level %d layer %d expects %s, image is %s",
						level, layer, LayoutName(b.OldLayout), LayoutName(have)))
				}
				img.layout[level][layer] = b.NewLayout
			}
		}
	}
}

func (d *fakeDevice) CmdBlitImage(cmd vk.CommandBuffer, src vk.Image, srcLayout vk.ImageLayout, dst vk.Image, dstLayout vk.ImageLayout, regions []vk.ImageBlit, filter vk.Filter) {
	for _, region := range regions {
		d.blits = append(d.blits, recordedBlit{srcLayout: srcLayout, dstLayout: dstLayout, region: region, filter: filter})
		d.checkLayers(src, region.SrcSubresource, srcLayout, "blit source")
		d.checkLayers(dst, region.DstSubresource, dstLayout, "blit destination")
	}
}

func (d *fakeDevice) CmdCopyBufferToImage(cmd vk.CommandBuffer, buffer vk.Buffer, image vk.Image, layout vk.ImageLayout, regions []vk.BufferImageCopy) {
	if d.onCopy != nil {
		d.onCopy(buffer)
	}
	for _, region := range regions {
		d.copies = append(d.copies, region)
		d.checkLayers(image, region.ImageSubresource, layout, "copy destination")
	}
}

func (d *fakeDevice) checkLayers(image vk.Image, sub vk.ImageSubresourceLayers, layout vk.ImageLayout, what string) {
	img := d.images[image]
	for layer := sub.BaseArrayLayer; layer < sub.BaseArrayLayer+sub.LayerCount; layer++ {
		if have := img.layout[sub.MipLevel][layer]; have != layout {
			d.violations = append(d.violations, fmt.Sprintf("%s level %d layer %d is %s, not %s",
				what, sub.MipLevel, layer, LayoutName(have), LayoutName(layout)))
		}
	}
}

// newTestRig wires a fake device to an allocator and recorder.
func newTestRig() (*fakeDevice, *MemoryAllocator, *CommandRecorder) {
	dev := newFakeDevice()
	return dev, NewMemoryAllocator(dev), NewCommandRecorder(dev, vk.CommandPool(handle()), vk.Queue(handle()))
}

func colorImageInfo(width, height, levels uint32) ImageInfo {
	return ImageInfo{
		Width:            width,
		Height:           height,
		Layers:           1,
		MipLevels:        levels,
		Format:           vk.FormatR8g8b8a8Unorm,
		Tiling:           vk.ImageTilingOptimal,
		Usage:            vk.ImageUsageFlags(vk.ImageUsageTransferSrcBit | vk.ImageUsageTransferDstBit | vk.ImageUsageSampledBit),
		MemoryProperties: deviceLocal,
	}
}
