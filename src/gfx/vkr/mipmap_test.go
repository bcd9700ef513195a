// Copyright (c) 2019 devblok
//
// This software is released under the MIT License.
// https://opensource.org/licenses/MIT

package vkr

import (
	"testing"

	vk "github.com/devblok/vulkan"
	qt "github.com/frankban/quicktest"
	"github.com/pkg/errors"
)

func TestMipLevelsFor(t *testing.T) {
	tests := []struct {
		width, height uint32
		want          uint32
	}{
		{1, 1, 1},
		{2, 1, 2},
		{256, 256, 9},
		{256, 64, 9},
		{300, 200, 9},
		{1024, 768, 11},
		{0, 0, 0},
	}

	c := qt.New(t)
	for _, test := range tests {
		c.Assert(MipLevelsFor(test.width, test.height), qt.Equals, test.want,
			qt.Commentf("%dx%d", test.width, test.height))
	}
}

func TestMipExtent(t *testing.T) {
	c := qt.New(t)

	for _, size := range [][2]uint32{{256, 256}, {300, 17}, {1, 64}} {
		for level := uint32(0); level < MipLevelsFor(size[0], size[1]); level++ {
			w, h := MipExtent(size[0], size[1], level)
			c.Assert(w, qt.Equals, max(1, size[0]>>level))
			c.Assert(h, qt.Equals, max(1, size[1]>>level))
			c.Assert(w >= 1 && h >= 1, qt.IsTrue)
		}
	}

	w, h := MipExtent(300, 17, 8)
	c.Assert([]uint32{w, h}, qt.DeepEquals, []uint32{1, 1})
}

func uploadedImage(c *qt.C, dev *fakeDevice, ma *MemoryAllocator, rec *CommandRecorder, info ImageInfo) *Image {
	img, err := NewImage(dev, ma, info)
	c.Assert(err, qt.IsNil)
	c.Assert(img.TransitionLayout(rec, vk.ImageLayoutUndefined, vk.ImageLayoutTransferDstOptimal), qt.IsNil)
	dev.barriers = nil
	dev.submits = 0
	dev.allocatedCmds = 0
	return img
}

func TestGenerateMipmapsFullChain(t *testing.T) {
	c := qt.New(t)
	dev, ma, rec := newTestRig()

	img := uploadedImage(c, dev, ma, rec, colorImageInfo(256, 256, 9))
	defer img.Release()

	c.Assert(img.GenerateMipmaps(rec), qt.IsNil)
	c.Assert(dev.violations, qt.HasLen, 0)
	c.Assert(dev.submits, qt.Equals, 1)
	c.Assert(dev.blits, qt.HasLen, 8)

	for idx, blit := range dev.blits {
		level := uint32(idx + 1)
		c.Assert(blit.region.SrcSubresource.MipLevel, qt.Equals, level-1)
		c.Assert(blit.region.DstSubresource.MipLevel, qt.Equals, level)
		c.Assert(blit.region.SrcOffsets[1].X, qt.Equals, int32(256>>(level-1)))
		c.Assert(blit.region.DstOffsets[1].X, qt.Equals, int32(256>>level))
		c.Assert(blit.region.DstOffsets[1].Z, qt.Equals, int32(1))
		c.Assert(blit.filter, qt.Equals, vk.FilterLinear)
		c.Assert(blit.srcLayout, qt.Equals, vk.ImageLayoutTransferSrcOptimal)
		c.Assert(blit.dstLayout, qt.Equals, vk.ImageLayoutTransferDstOptimal)
	}
	last := dev.blits[7].region.DstOffsets[1]
	c.Assert([3]int32{last.X, last.Y, last.Z}, qt.Equals, [3]int32{1, 1, 1})

	// two barriers per blit plus the terminal one
	c.Assert(dev.barriers, qt.HasLen, 17)
	for _, b := range dev.barriers {
		c.Assert(b.barrier.SubresourceRange.LevelCount, qt.Equals, uint32(1))
	}
	last := dev.barriers[16].barrier
	c.Assert(last.SubresourceRange.BaseMipLevel, qt.Equals, uint32(8))
	c.Assert(last.OldLayout, qt.Equals, vk.ImageLayoutTransferDstOptimal)
	c.Assert(last.NewLayout, qt.Equals, vk.ImageLayoutShaderReadOnlyOptimal)
	c.Assert(last.DstAccessMask, qt.Equals, vk.AccessFlags(vk.AccessShaderReadBit))

	for level := uint32(0); level < 9; level++ {
		c.Assert(dev.layoutOf(img.Get(), level, 0), qt.Equals, vk.ImageLayoutShaderReadOnlyOptimal)
	}
}

func TestGenerateMipmapsNonSquare(t *testing.T) {
	c := qt.New(t)
	dev, ma, rec := newTestRig()

	img := uploadedImage(c, dev, ma, rec, colorImageInfo(8, 2, 4))
	defer img.Release()

	c.Assert(img.GenerateMipmaps(rec), qt.IsNil)
	c.Assert(dev.violations, qt.HasLen, 0)

	var got [][3]int32
	for _, blit := range dev.blits {
		dst := blit.region.DstOffsets[1]
		got = append(got, [3]int32{dst.X, dst.Y, dst.Z})
	}
	c.Assert(got, qt.DeepEquals, [][3]int32{
		{4, 1, 1},
		{2, 1, 1},
		{1, 1, 1},
	})
}

func TestGenerateMipmapsSingleLevel(t *testing.T) {
	c := qt.New(t)
	dev, ma, rec := newTestRig()

	img := uploadedImage(c, dev, ma, rec, colorImageInfo(128, 128, 1))
	defer img.Release()

	c.Assert(img.GenerateMipmaps(rec), qt.IsNil)
	c.Assert(dev.blits, qt.HasLen, 0)
	c.Assert(dev.barriers, qt.HasLen, 1)
	c.Assert(dev.barriers[0].barrier.SubresourceRange.BaseMipLevel, qt.Equals, uint32(0))
	c.Assert(dev.layoutOf(img.Get(), 0, 0), qt.Equals, vk.ImageLayoutShaderReadOnlyOptimal)
}

func TestGenerateMipmapsAllLayers(t *testing.T) {
	c := qt.New(t)
	dev, ma, rec := newTestRig()

	info := colorImageInfo(16, 16, 5)
	info.Layers = 6
	info.Cube = true
	img := uploadedImage(c, dev, ma, rec, info)
	defer img.Release()

	c.Assert(img.GenerateMipmaps(rec), qt.IsNil)
	c.Assert(dev.violations, qt.HasLen, 0)
	for _, blit := range dev.blits {
		c.Assert(blit.region.SrcSubresource.LayerCount, qt.Equals, uint32(6))
	}
	c.Assert(dev.layoutOf(img.Get(), 4, 5), qt.Equals, vk.ImageLayoutShaderReadOnlyOptimal)
}

func TestGenerateMipmapsUnsupportedFormat(t *testing.T) {
	c := qt.New(t)
	dev, ma, rec := newTestRig()

	info := colorImageInfo(64, 64, 7)
	info.Format = vk.FormatR32g32b32a32Sfloat
	dev.formats[info.Format] = vk.FormatProperties{
		OptimalTilingFeatures: vk.FormatFeatureFlags(vk.FormatFeatureSampledImageBit),
		LinearTilingFeatures:  allFeatures,
	}
	img := uploadedImage(c, dev, ma, rec, info)
	defer img.Release()

	err := img.GenerateMipmaps(rec)
	var formatErr *UnsupportedFormatError
	c.Assert(errors.As(err, &formatErr), qt.IsTrue)
	c.Assert(formatErr.Format, qt.Equals, vk.FormatR32g32b32a32Sfloat)
	c.Assert(formatErr.Tiling, qt.Equals, vk.ImageTilingOptimal)
	c.Assert(dev.allocatedCmds, qt.Equals, 0)
	c.Assert(dev.barriers, qt.HasLen, 0)
	c.Assert(dev.blits, qt.HasLen, 0)
}

func TestSupportsLinearBlitUsesTiling(t *testing.T) {
	c := qt.New(t)
	dev := newFakeDevice()
	dev.formats[vk.FormatB8g8r8a8Unorm] = vk.FormatProperties{
		LinearTilingFeatures: vk.FormatFeatureFlags(vk.FormatFeatureSampledImageFilterLinearBit),
	}

	c.Assert(SupportsLinearBlit(dev, vk.FormatB8g8r8a8Unorm, vk.ImageTilingLinear), qt.IsTrue)
	c.Assert(SupportsLinearBlit(dev, vk.FormatB8g8r8a8Unorm, vk.ImageTilingOptimal), qt.IsFalse)
	c.Assert(SupportsLinearBlit(dev, vk.FormatR8g8b8a8Unorm, vk.ImageTilingOptimal), qt.IsTrue)
}

func TestGenerateMipmapsTwice(t *testing.T) {
	c := qt.New(t)
	dev, ma, rec := newTestRig()

	img := uploadedImage(c, dev, ma, rec, colorImageInfo(32, 32, 6))
	defer img.Release()

	c.Assert(img.GenerateMipmaps(rec), qt.IsNil)
	blits := len(dev.blits)
	c.Assert(img.GenerateMipmaps(rec), qt.Equals, ErrMipmapsGenerated)
	c.Assert(dev.blits, qt.HasLen, blits)
}

func BenchmarkGenerateMipmaps(b *testing.B) {
	dev, ma, rec := newTestRig()
	for idx := 0; idx < b.N; idx++ {
		img, err := NewImage(dev, ma, colorImageInfo(4096, 4096, 13))
		if err != nil {
			b.Fatal(err)
		}
		if err := img.TransitionLayout(rec, vk.ImageLayoutUndefined, vk.ImageLayoutTransferDstOptimal); err != nil {
			b.Fatal(err)
		}
		if err := img.GenerateMipmaps(rec); err != nil {
			b.Fatal(err)
		}
		img.Release()
		dev.barriers = dev.barriers[:0]
		dev.blits = dev.blits[:0]
	}
}
