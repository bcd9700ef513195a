// Copyright (c) 2019 devblok
//
// This software is released under the MIT License.
// https://opensource.org/licenses/MIT

package vkr

import (
	vk "github.com/devblok/vulkan"
)

// Barrier holds the synchronization scopes of a layout transition.
type Barrier struct {
	SrcAccess vk.AccessFlags
	DstAccess vk.AccessFlags
	SrcStage  vk.PipelineStageFlags
	DstStage  vk.PipelineStageFlags
}

type layoutPair struct {
	old, new vk.ImageLayout
}

// layoutTransitions are the transitions callers may request on a whole image.
var layoutTransitions = map[layoutPair]Barrier{
	{vk.ImageLayoutUndefined, vk.ImageLayoutTransferDstOptimal}: {
		SrcAccess: 0,
		DstAccess: vk.AccessFlags(vk.AccessTransferWriteBit),
		SrcStage:  vk.PipelineStageFlags(vk.PipelineStageTopOfPipeBit),
		DstStage:  vk.PipelineStageFlags(vk.PipelineStageTransferBit),
	},
	{vk.ImageLayoutTransferDstOptimal, vk.ImageLayoutShaderReadOnlyOptimal}: {
		SrcAccess: vk.AccessFlags(vk.AccessTransferWriteBit),
		DstAccess: vk.AccessFlags(vk.AccessShaderReadBit),
		SrcStage:  vk.PipelineStageFlags(vk.PipelineStageTransferBit),
		DstStage:  vk.PipelineStageFlags(vk.PipelineStageFragmentShaderBit),
	},
	{vk.ImageLayoutUndefined, vk.ImageLayoutDepthStencilAttachmentOptimal}: {
		SrcAccess: 0,
		DstAccess: vk.AccessFlags(vk.AccessDepthStencilAttachmentReadBit | vk.AccessDepthStencilAttachmentWriteBit),
		SrcStage:  vk.PipelineStageFlags(vk.PipelineStageTopOfPipeBit),
		DstStage:  vk.PipelineStageFlags(vk.PipelineStageEarlyFragmentTestsBit),
	},
}

// blitTransitions are only used on single mip levels while building a mip chain.
var blitTransitions = map[layoutPair]Barrier{
	{vk.ImageLayoutTransferDstOptimal, vk.ImageLayoutTransferSrcOptimal}: {
		SrcAccess: vk.AccessFlags(vk.AccessTransferWriteBit),
		DstAccess: vk.AccessFlags(vk.AccessTransferReadBit),
		SrcStage:  vk.PipelineStageFlags(vk.PipelineStageTransferBit),
		DstStage:  vk.PipelineStageFlags(vk.PipelineStageTransferBit),
	},
	{vk.ImageLayoutTransferSrcOptimal, vk.ImageLayoutShaderReadOnlyOptimal}: {
		SrcAccess: vk.AccessFlags(vk.AccessTransferReadBit),
		DstAccess: vk.AccessFlags(vk.AccessShaderReadBit),
		SrcStage:  vk.PipelineStageFlags(vk.PipelineStageTransferBit),
		DstStage:  vk.PipelineStageFlags(vk.PipelineStageFragmentShaderBit),
	},
	{vk.ImageLayoutTransferDstOptimal, vk.ImageLayoutShaderReadOnlyOptimal}: {
		SrcAccess: vk.AccessFlags(vk.AccessTransferWriteBit),
		DstAccess: vk.AccessFlags(vk.AccessShaderReadBit),
		SrcStage:  vk.PipelineStageFlags(vk.PipelineStageTransferBit),
		DstStage:  vk.PipelineStageFlags(vk.PipelineStageFragmentShaderBit),
	},
}

func lookup(table map[layoutPair]Barrier, oldLayout, newLayout vk.ImageLayout) (Barrier, error) {
	barrier, ok := table[layoutPair{oldLayout, newLayout}]
	if !ok {
		return Barrier{}, &UnsupportedTransitionError{Old: oldLayout, New: newLayout}
	}
	return barrier, nil
}

// LookupTransition returns the barrier scopes for a supported layout
// transition, or an *UnsupportedTransitionError.
func LookupTransition(oldLayout, newLayout vk.ImageLayout) (Barrier, error) {
	return lookup(layoutTransitions, oldLayout, newLayout)
}

// HasStencilComponent reports whether format is a combined depth stencil format.
func HasStencilComponent(format vk.Format) bool {
	return format == vk.FormatD32SfloatS8Uint || format == vk.FormatD24UnormS8Uint
}

// AspectMask selects the aspects a barrier into newLayout must cover.
func AspectMask(newLayout vk.ImageLayout, format vk.Format) vk.ImageAspectFlags {
	if newLayout != vk.ImageLayoutDepthStencilAttachmentOptimal {
		return vk.ImageAspectFlags(vk.ImageAspectColorBit)
	}
	aspect := vk.ImageAspectFlags(vk.ImageAspectDepthBit)
	if HasStencilComponent(format) {
		aspect |= vk.ImageAspectFlags(vk.ImageAspectStencilBit)
	}
	return aspect
}

// ImageBarrier fills an image memory barrier over the subresource range.
func (b Barrier) ImageBarrier(image vk.Image, oldLayout, newLayout vk.ImageLayout, subresource vk.ImageSubresourceRange) vk.ImageMemoryBarrier {
	return vk.ImageMemoryBarrier{
		SType:               vk.StructureTypeImageMemoryBarrier,
		SrcAccessMask:       b.SrcAccess,
		DstAccessMask:       b.DstAccess,
		OldLayout:           oldLayout,
		NewLayout:           newLayout,
		SrcQueueFamilyIndex: vk.QueueFamilyIgnored,
		DstQueueFamilyIndex: vk.QueueFamilyIgnored,
		Image:               image,
		SubresourceRange:    subresource,
	}
}

// TransitionLayout moves every mip level and layer of the image from
// oldLayout to newLayout in a single time command.
func (img *Image) TransitionLayout(rec *CommandRecorder, oldLayout, newLayout vk.ImageLayout) error {
	if img.released {
		return ErrReleased
	}

	barrier, err := LookupTransition(oldLayout, newLayout)
	if err != nil {
		return err
	}

	imb := barrier.ImageBarrier(img.image, oldLayout, newLayout, vk.ImageSubresourceRange{
		AspectMask:     AspectMask(newLayout, img.info.Format),
		BaseMipLevel:   0,
		LevelCount:     img.info.MipLevels,
		BaseArrayLayer: 0,
		LayerCount:     img.info.Layers,
	})

	return rec.Record(func(cmd vk.CommandBuffer) error {
		img.dev.CmdPipelineBarrier(cmd, barrier.SrcStage, barrier.DstStage, []vk.ImageMemoryBarrier{imb})
		return nil
	})
}
