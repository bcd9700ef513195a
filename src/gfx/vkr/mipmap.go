// Copyright (c) 2019 devblok
//
// This software is released under the MIT License.
// https://opensource.org/licenses/MIT

package vkr

import (
	"math/bits"

	vk "github.com/devblok/vulkan"
	log "github.com/sirupsen/logrus"
)

// MipExtent returns the size of a mip level of a width x height image.
func MipExtent(width, height, level uint32) (uint32, uint32) {
	return max(1, width>>level), max(1, height>>level)
}

// MipLevelsFor returns the length of a full mip chain down to 1x1.
func MipLevelsFor(width, height uint32) uint32 {
	largest := max(width, height)
	if largest == 0 {
		return 0
	}
	return uint32(bits.Len32(largest))
}

// FormatSource reports the format support of a physical device.
type FormatSource interface {
	FormatProperties(format vk.Format) vk.FormatProperties
}

// SupportsLinearBlit reports whether format can be the source of
// linear filtered blits on the given tiling.
func SupportsLinearBlit(src FormatSource, format vk.Format, tiling vk.ImageTiling) bool {
	props := src.FormatProperties(format)
	features := props.OptimalTilingFeatures
	if tiling == vk.ImageTilingLinear {
		features = props.LinearTilingFeatures
	}
	return features&vk.FormatFeatureFlags(vk.FormatFeatureSampledImageFilterLinearBit) != 0
}

// GenerateMipmaps fills mip levels 1 and up by repeatedly blitting each
// level into the next at half resolution. Level 0 must hold the uploaded
// texels and every level must be in the transfer destination layout.
// All levels end up in the shader read only layout.
func (img *Image) GenerateMipmaps(rec *CommandRecorder) error {
	if img.released {
		return ErrReleased
	}
	if img.mipmapped {
		return ErrMipmapsGenerated
	}
	if !SupportsLinearBlit(img.dev, img.info.Format, img.info.Tiling) {
		return &UnsupportedFormatError{Format: img.info.Format, Tiling: img.info.Tiling}
	}

	err := rec.Record(func(cmd vk.CommandBuffer) error {
		subresource := vk.ImageSubresourceRange{
			AspectMask:     vk.ImageAspectFlags(vk.ImageAspectColorBit),
			LevelCount:     1,
			BaseArrayLayer: 0,
			LayerCount:     img.info.Layers,
		}

		mipWidth := int32(img.info.Width)
		mipHeight := int32(img.info.Height)

		for level := uint32(1); level < img.info.MipLevels; level++ {
			subresource.BaseMipLevel = level - 1

			if err := img.levelBarrier(cmd, vk.ImageLayoutTransferDstOptimal, vk.ImageLayoutTransferSrcOptimal, subresource); err != nil {
				return err
			}

			blit := vk.ImageBlit{
				SrcSubresource: vk.ImageSubresourceLayers{
					AspectMask:     vk.ImageAspectFlags(vk.ImageAspectColorBit),
					MipLevel:       level - 1,
					BaseArrayLayer: 0,
					LayerCount:     img.info.Layers,
				},
				SrcOffsets: [2]vk.Offset3D{
					{X: 0, Y: 0, Z: 0},
					{X: mipWidth, Y: mipHeight, Z: 1},
				},
				DstSubresource: vk.ImageSubresourceLayers{
					AspectMask:     vk.ImageAspectFlags(vk.ImageAspectColorBit),
					MipLevel:       level,
					BaseArrayLayer: 0,
					LayerCount:     img.info.Layers,
				},
				DstOffsets: [2]vk.Offset3D{
					{X: 0, Y: 0, Z: 0},
					{X: max(1, mipWidth/2), Y: max(1, mipHeight/2), Z: 1},
				},
			}
			img.dev.CmdBlitImage(cmd,
				img.image, vk.ImageLayoutTransferSrcOptimal,
				img.image, vk.ImageLayoutTransferDstOptimal,
				[]vk.ImageBlit{blit}, vk.FilterLinear)

			if err := img.levelBarrier(cmd, vk.ImageLayoutTransferSrcOptimal, vk.ImageLayoutShaderReadOnlyOptimal, subresource); err != nil {
				return err
			}

			mipWidth = max(1, mipWidth/2)
			mipHeight = max(1, mipHeight/2)
		}

		// The last level was only ever written to.
		subresource.BaseMipLevel = img.info.MipLevels - 1
		return img.levelBarrier(cmd, vk.ImageLayoutTransferDstOptimal, vk.ImageLayoutShaderReadOnlyOptimal, subresource)
	})
	if err != nil {
		return err
	}

	img.mipmapped = true
	log.WithFields(log.Fields{
		"width":  img.info.Width,
		"height": img.info.Height,
		"levels": img.info.MipLevels,
	}).Debug("mipmaps generated")
	return nil
}

func (img *Image) levelBarrier(cmd vk.CommandBuffer, oldLayout, newLayout vk.ImageLayout, subresource vk.ImageSubresourceRange) error {
	barrier, err := lookup(blitTransitions, oldLayout, newLayout)
	if err != nil {
		return err
	}
	img.dev.CmdPipelineBarrier(cmd, barrier.SrcStage, barrier.DstStage,
		[]vk.ImageMemoryBarrier{barrier.ImageBarrier(img.image, oldLayout, newLayout, subresource)})
	return nil
}
