// Copyright (c) 2019 devblok
//
// This software is released under the MIT License.
// https://opensource.org/licenses/MIT

package vkr

import (
	vk "github.com/devblok/vulkan"
	"github.com/pkg/errors"
	log "github.com/sirupsen/logrus"

	"github.com/devblok/vkimage/src/gfx"
)

// cubeFaces is the number of layers per cube map.
const cubeFaces = 6

// ImageInfo describes an image to be created.
type ImageInfo struct {
	Width     uint32
	Height    uint32
	Layers    uint32
	MipLevels uint32

	Format           vk.Format
	Tiling           vk.ImageTiling
	Usage            vk.ImageUsageFlags
	MemoryProperties vk.MemoryPropertyFlags

	// Samples defaults to one sample per texel when zero.
	Samples vk.SampleCountFlagBits

	// Cube makes the image cube compatible and its views cube views.
	Cube bool

	// ForceArray makes views array views even with a single layer.
	ForceArray bool
}

func (info ImageInfo) validate() error {
	switch {
	case info.Width == 0 || info.Height == 0:
		return errors.Wrapf(ErrInvalidImageInfo, "extent %dx%d", info.Width, info.Height)
	case info.Layers == 0:
		return errors.Wrap(ErrInvalidImageInfo, "layers must be at least 1")
	case info.MipLevels == 0:
		return errors.Wrap(ErrInvalidImageInfo, "mip levels must be at least 1")
	case info.MipLevels > MipLevelsFor(info.Width, info.Height):
		return errors.Wrapf(ErrInvalidImageInfo, "%d mip levels exceed the %d possible for %dx%d",
			info.MipLevels, MipLevelsFor(info.Width, info.Height), info.Width, info.Height)
	case info.Cube && (info.Layers%cubeFaces != 0 || info.Width != info.Height):
		return errors.Wrapf(ErrInvalidImageInfo, "cube image needs square faces and a multiple of %d layers", cubeFaces)
	}
	return nil
}

// NewImage creates a 2D image, allocates memory of the requested
// properties for it and binds it. The returned image has no view yet.
func NewImage(dev Device, ma *MemoryAllocator, info ImageInfo) (*Image, error) {
	if info.Samples == 0 {
		info.Samples = vk.SampleCount1Bit
	}
	if err := info.validate(); err != nil {
		return nil, allocationError("NewImage", err)
	}

	createInfo := vk.ImageCreateInfo{
		SType:     vk.StructureTypeImageCreateInfo,
		ImageType: vk.ImageType2d,
		Extent: vk.Extent3D{
			Width:  info.Width,
			Height: info.Height,
			Depth:  1,
		},
		MipLevels:     info.MipLevels,
		ArrayLayers:   info.Layers,
		Format:        info.Format,
		Tiling:        info.Tiling,
		InitialLayout: vk.ImageLayoutUndefined,
		Usage:         info.Usage,
		SharingMode:   vk.SharingModeExclusive,
		Samples:       info.Samples,
	}
	if info.Cube {
		createInfo.Flags = vk.ImageCreateFlags(vk.ImageCreateCubeCompatibleBit)
	}

	image, err := dev.CreateImage(&createInfo)
	if err != nil {
		return nil, allocationError("CreateImage", err)
	}

	memory, err := ma.Malloc(dev.ImageMemoryRequirements(image), info.MemoryProperties)
	if err != nil {
		dev.DestroyImage(image)
		return nil, err
	}

	if err := dev.BindImageMemory(image, memory.Get(), 0); err != nil {
		dev.DestroyImage(image)
		memory.Release()
		return nil, allocationError("BindImageMemory", err)
	}

	log.WithFields(log.Fields{
		"width":  info.Width,
		"height": info.Height,
		"layers": info.Layers,
		"levels": info.MipLevels,
		"format": info.Format,
	}).Debug("image created")

	return &Image{
		dev:    dev,
		info:   info,
		image:  image,
		memory: memory,
	}, nil
}

// Image is a device image together with the memory bound to it
// and, once created, a view over it.
type Image struct {
	dev  Device
	info ImageInfo

	image  vk.Image
	view   vk.ImageView
	memory Memory

	mipmapped bool
	released  bool
}

// Get returns the vulkan Image handle.
func (img *Image) Get() vk.Image {
	return img.image
}

// View returns the current view, nil before CreateView.
func (img *Image) View() vk.ImageView {
	return img.view
}

// Mem returns the memory bound to the image.
func (img *Image) Mem() *Memory {
	return &img.memory
}

// Info returns the parameters the image was created with.
func (img *Image) Info() ImageInfo {
	return img.info
}

// Extent returns the size of the base mip level.
func (img *Image) Extent() gfx.Extent2D {
	return gfx.Extent2D{Width: img.info.Width, Height: img.info.Height}
}

// ViewType returns the view dimensionality used by CreateView.
func (img *Image) ViewType() vk.ImageViewType {
	switch {
	case img.info.Cube:
		return vk.ImageViewTypeCube
	case img.info.Layers > 1 || img.info.ForceArray:
		return vk.ImageViewType2dArray
	default:
		return vk.ImageViewType2d
	}
}

// CreateView creates a view over all mip levels and either the single
// layer baseLayer or all layers. An existing view is replaced.
func (img *Image) CreateView(aspect vk.ImageAspectFlags, baseLayer uint32, allLayers bool) error {
	if img.released {
		return ErrReleased
	}

	layerCount := uint32(1)
	if allLayers {
		baseLayer = 0
		layerCount = img.info.Layers
	} else if baseLayer >= img.info.Layers {
		return allocationError("CreateView", errors.Wrapf(ErrInvalidImageInfo,
			"base layer %d out of %d layers", baseLayer, img.info.Layers))
	}

	ivci := vk.ImageViewCreateInfo{
		SType:    vk.StructureTypeImageViewCreateInfo,
		Image:    img.image,
		ViewType: img.ViewType(),
		Format:   img.info.Format,
		Components: vk.ComponentMapping{
			R: vk.ComponentSwizzleIdentity,
			G: vk.ComponentSwizzleIdentity,
			B: vk.ComponentSwizzleIdentity,
			A: vk.ComponentSwizzleIdentity,
		},
		SubresourceRange: vk.ImageSubresourceRange{
			AspectMask:     aspect,
			BaseMipLevel:   0,
			LevelCount:     img.info.MipLevels,
			BaseArrayLayer: baseLayer,
			LayerCount:     layerCount,
		},
	}

	view, err := img.dev.CreateImageView(&ivci)
	if err != nil {
		return allocationError("CreateImageView", err)
	}

	if img.view != nil {
		img.dev.DestroyImageView(img.view)
	}
	img.view = view
	return nil
}

// CopyFromBuffer copies tightly packed texels from buffer into mip level 0,
// layer 0. The image has to be in the transfer destination layout.
func (img *Image) CopyFromBuffer(rec *CommandRecorder, buffer vk.Buffer) error {
	if img.released {
		return ErrReleased
	}

	bic := vk.BufferImageCopy{
		BufferOffset:      0,
		BufferRowLength:   0,
		BufferImageHeight: 0,
		ImageSubresource: vk.ImageSubresourceLayers{
			AspectMask:     vk.ImageAspectFlags(vk.ImageAspectColorBit),
			MipLevel:       0,
			BaseArrayLayer: 0,
			LayerCount:     1,
		},
		ImageOffset: vk.Offset3D{},
		ImageExtent: vk.Extent3D{
			Width:  img.info.Width,
			Height: img.info.Height,
			Depth:  1,
		},
	}

	return rec.Record(func(cmd vk.CommandBuffer) error {
		img.dev.CmdCopyBufferToImage(cmd, buffer, img.image, vk.ImageLayoutTransferDstOptimal, []vk.BufferImageCopy{bic})
		return nil
	})
}

// Release destroys the view, then the image, then frees the memory
// that was bound to it. The image must not be used afterwards.
func (img *Image) Release() {
	if img.released {
		log.WithFields(log.Fields{
			"width":  img.info.Width,
			"height": img.info.Height,
			"format": img.info.Format,
		}).Warn("image released twice")
		return
	}
	img.released = true

	if img.view != nil {
		img.dev.DestroyImageView(img.view)
		img.view = nil
	}
	img.dev.DestroyImage(img.image)
	img.memory.Release()

	log.WithFields(log.Fields{
		"width":  img.info.Width,
		"height": img.info.Height,
	}).Debug("image released")
}
