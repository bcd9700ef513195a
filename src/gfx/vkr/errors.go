// Copyright (c) 2019 devblok
//
// This software is released under the MIT License.
// https://opensource.org/licenses/MIT

package vkr

import (
	"fmt"

	vk "github.com/devblok/vulkan"
	"github.com/pkg/errors"
)

// package errors
var (
	ErrReleased         = errors.New("image resource already released")
	ErrMipmapsGenerated = errors.New("mipmaps already generated for image")
	ErrInvalidImageInfo = errors.New("invalid image parameters")
)

// AllocationError is returned when an image, view or memory could
// not be created, allocated or bound.
type AllocationError struct {
	Op  string
	Err error
}

func (e *AllocationError) Error() string {
	return fmt.Sprintf("allocation failed in %s: %s", e.Op, e.Err)
}

// Unwrap returns the underlying cause.
func (e *AllocationError) Unwrap() error {
	return e.Err
}

// Cause implements the pkg/errors causer.
func (e *AllocationError) Cause() error {
	return e.Err
}

// UnsupportedTransitionError is returned for a layout pair that has
// no entry in the transition table.
type UnsupportedTransitionError struct {
	Old vk.ImageLayout
	New vk.ImageLayout
}

func (e *UnsupportedTransitionError) Error() string {
	return fmt.Sprintf("unsupported layout transition: %s -> %s", LayoutName(e.Old), LayoutName(e.New))
}

// UnsupportedFormatError is returned when a format lacks linear filtered
// blit support on the tiling the image was created with.
type UnsupportedFormatError struct {
	Format vk.Format
	Tiling vk.ImageTiling
}

func (e *UnsupportedFormatError) Error() string {
	return fmt.Sprintf("format %d does not support linear blitting with tiling %d", e.Format, e.Tiling)
}

func allocationError(op string, err error) error {
	return &AllocationError{Op: op, Err: err}
}

var layoutNames = map[vk.ImageLayout]string{
	vk.ImageLayoutUndefined:                     "Undefined",
	vk.ImageLayoutGeneral:                       "General",
	vk.ImageLayoutColorAttachmentOptimal:        "ColorAttachment",
	vk.ImageLayoutDepthStencilAttachmentOptimal: "DepthStencilAttachment",
	vk.ImageLayoutDepthStencilReadOnlyOptimal:   "DepthStencilReadOnly",
	vk.ImageLayoutShaderReadOnlyOptimal:         "ShaderReadOnly",
	vk.ImageLayoutTransferSrcOptimal:            "TransferSrc",
	vk.ImageLayoutTransferDstOptimal:            "TransferDst",
	vk.ImageLayoutPreinitialized:                "Preinitialized",
}

// LayoutName returns a readable name for the layout.
func LayoutName(layout vk.ImageLayout) string {
	if name, ok := layoutNames[layout]; ok {
		return name
	}
	return fmt.Sprintf("ImageLayout(%d)", layout)
}
