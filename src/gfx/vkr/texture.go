// Copyright (c) 2019 devblok
//
// This software is released under the MIT License.
// https://opensource.org/licenses/MIT

package vkr

import (
	vk "github.com/devblok/vulkan"
	"github.com/pkg/errors"

	"github.com/devblok/vkimage/src/gfx"
)

// TextureFormat is the format textures are uploaded in.
const TextureFormat = vk.FormatR8g8b8a8Unorm

// depthCandidates in order of preference.
var depthCandidates = []vk.Format{
	vk.FormatD32Sfloat,
	vk.FormatD32SfloatS8Uint,
	vk.FormatD24UnormS8Uint,
}

// LoadTexture uploads pixels into a new sampled image and leaves every
// level of it in the shader read only layout with a color view created.
// With mipmaps set the full chain is generated from the uploaded level.
func LoadTexture(dev Device, ma *MemoryAllocator, rec *CommandRecorder, pixels gfx.Pixels, mipmaps bool) (*Image, error) {
	if pixels.Extent.Empty() {
		return nil, errors.Wrap(ErrInvalidImageInfo, "texture has no pixels")
	}
	if len(pixels.Data) != pixels.Size() {
		return nil, errors.Errorf("texture data is %d bytes, %dx%d needs %d",
			len(pixels.Data), pixels.Extent.Width, pixels.Extent.Height, pixels.Size())
	}

	levels := uint32(1)
	usage := vk.ImageUsageFlags(vk.ImageUsageTransferDstBit | vk.ImageUsageSampledBit)
	if mipmaps {
		if !SupportsLinearBlit(dev, TextureFormat, vk.ImageTilingOptimal) {
			return nil, &UnsupportedFormatError{Format: TextureFormat, Tiling: vk.ImageTilingOptimal}
		}
		levels = MipLevelsFor(pixels.Extent.Width, pixels.Extent.Height)
		usage |= vk.ImageUsageFlags(vk.ImageUsageTransferSrcBit)
	}

	staging, err := NewStagingBuffer(dev, ma, pixels.Data)
	if err != nil {
		return nil, errors.Wrap(err, "texture staging buffer")
	}
	defer staging.Release()

	img, err := NewImage(dev, ma, ImageInfo{
		Width:            pixels.Extent.Width,
		Height:           pixels.Extent.Height,
		Layers:           1,
		MipLevels:        levels,
		Format:           TextureFormat,
		Tiling:           vk.ImageTilingOptimal,
		Usage:            usage,
		MemoryProperties: vk.MemoryPropertyFlags(vk.MemoryPropertyDeviceLocalBit),
	})
	if err != nil {
		return nil, err
	}

	if err := uploadTexture(img, rec, staging, mipmaps); err != nil {
		img.Release()
		return nil, err
	}
	return img, nil
}

func uploadTexture(img *Image, rec *CommandRecorder, staging *Buffer, mipmaps bool) error {
	if err := img.TransitionLayout(rec, vk.ImageLayoutUndefined, vk.ImageLayoutTransferDstOptimal); err != nil {
		return err
	}
	if err := img.CopyFromBuffer(rec, staging.Get()); err != nil {
		return err
	}

	if mipmaps {
		if err := img.GenerateMipmaps(rec); err != nil {
			return err
		}
	} else {
		if err := img.TransitionLayout(rec, vk.ImageLayoutTransferDstOptimal, vk.ImageLayoutShaderReadOnlyOptimal); err != nil {
			return err
		}
	}

	return img.CreateView(vk.ImageAspectFlags(vk.ImageAspectColorBit), 0, false)
}

// FindDepthFormat returns the first depth format the device can use as
// an optimally tiled depth stencil attachment.
func FindDepthFormat(src FormatSource) (vk.Format, error) {
	for _, format := range depthCandidates {
		props := src.FormatProperties(format)
		if props.OptimalTilingFeatures&vk.FormatFeatureFlags(vk.FormatFeatureDepthStencilAttachmentBit) != 0 {
			return format, nil
		}
	}
	return vk.FormatUndefined, errors.New("no supported depth format")
}

// NewDepthImage creates a depth attachment of the given extent, moves it
// to the depth stencil attachment layout and creates its view.
func NewDepthImage(dev Device, ma *MemoryAllocator, rec *CommandRecorder, extent gfx.Extent2D, format vk.Format) (*Image, error) {
	img, err := NewImage(dev, ma, ImageInfo{
		Width:            extent.Width,
		Height:           extent.Height,
		Layers:           1,
		MipLevels:        1,
		Format:           format,
		Tiling:           vk.ImageTilingOptimal,
		Usage:            vk.ImageUsageFlags(vk.ImageUsageDepthStencilAttachmentBit),
		MemoryProperties: vk.MemoryPropertyFlags(vk.MemoryPropertyDeviceLocalBit),
	})
	if err != nil {
		return nil, err
	}

	if err := img.TransitionLayout(rec, vk.ImageLayoutUndefined, vk.ImageLayoutDepthStencilAttachmentOptimal); err != nil {
		img.Release()
		return nil, err
	}
	if err := img.CreateView(vk.ImageAspectFlags(vk.ImageAspectDepthBit), 0, false); err != nil {
		img.Release()
		return nil, err
	}
	return img, nil
}
