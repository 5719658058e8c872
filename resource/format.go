// Package resource holds the image and font tables a renderer draws from.
//
// Tables are written by the render context while it drains producer
// messages and read by the same context while it builds and composites
// frames. Deleted entries stay alive until the frame that could still
// reference them has been superseded.
package resource

import (
	"encoding/binary"
	"errors"
	"fmt"
	"image"
	"math"

	"github.com/gogpu/gputypes"
)

// Sentinel errors.
var (
	// ErrInvalidDescriptor is returned for descriptors with an unknown
	// format, an empty extent or a stride too small for one row.
	ErrInvalidDescriptor = errors.New("resource: invalid image descriptor")

	// ErrShortData is returned when pixel data does not cover the descriptor.
	ErrShortData = errors.New("resource: pixel data shorter than descriptor")
)

// ImageFormat is the pixel layout of an image resource.
type ImageFormat uint32

// Image formats.
const (
	FormatInvalid ImageFormat = iota
	FormatA8
	FormatRGB8
	FormatBGRA8
	FormatRGBAF32
	FormatRG8
)

// String returns the format name.
func (f ImageFormat) String() string {
	switch f {
	case FormatA8:
		return "A8"
	case FormatRGB8:
		return "RGB8"
	case FormatBGRA8:
		return "BGRA8"
	case FormatRGBAF32:
		return "RGBAF32"
	case FormatRG8:
		return "RG8"
	default:
		return "Invalid"
	}
}

// BytesPerPixel returns the size of one pixel, or 0 for FormatInvalid.
func (f ImageFormat) BytesPerPixel() int {
	switch f {
	case FormatA8:
		return 1
	case FormatRG8:
		return 2
	case FormatRGB8:
		return 3
	case FormatBGRA8:
		return 4
	case FormatRGBAF32:
		return 16
	default:
		return 0
	}
}

// TextureFormat returns the GPU texture format an image of this format is
// uploaded as. RGB8 has no three-channel texture equivalent and is expanded
// to RGBA8 on upload.
func (f ImageFormat) TextureFormat() gputypes.TextureFormat {
	switch f {
	case FormatA8:
		return gputypes.TextureFormatR8Unorm
	case FormatRG8:
		return gputypes.TextureFormatRG8Unorm
	case FormatRGB8:
		return gputypes.TextureFormatRGBA8Unorm
	case FormatBGRA8:
		return gputypes.TextureFormatBGRA8Unorm
	case FormatRGBAF32:
		return gputypes.TextureFormatRGBA32Float
	default:
		return gputypes.TextureFormatUndefined
	}
}

// ImageDescriptor describes the layout of image pixel data.
type ImageDescriptor struct {
	Format ImageFormat
	Width  uint32
	Height uint32
	// Stride is the row pitch in bytes; 0 means tightly packed.
	Stride   uint32
	IsOpaque bool
}

// RowBytes returns the row pitch.
func (d ImageDescriptor) RowBytes() int {
	if d.Stride != 0 {
		return int(d.Stride)
	}
	return int(d.Width) * d.Format.BytesPerPixel()
}

// Size returns the number of bytes the pixel data must provide.
// The last row need not be padded to the stride.
func (d ImageDescriptor) Size() int {
	if d.Height == 0 {
		return 0
	}
	return (int(d.Height)-1)*d.RowBytes() + int(d.Width)*d.Format.BytesPerPixel()
}

// Validate checks that the descriptor is usable.
func (d ImageDescriptor) Validate() error {
	bpp := d.Format.BytesPerPixel()
	switch {
	case bpp == 0:
		return fmt.Errorf("%w: format %s", ErrInvalidDescriptor, d.Format)
	case d.Width == 0 || d.Height == 0:
		return fmt.Errorf("%w: empty extent %dx%d", ErrInvalidDescriptor, d.Width, d.Height)
	case d.Stride != 0 && int(d.Stride) < int(d.Width)*bpp:
		return fmt.Errorf("%w: stride %d below row size %d", ErrInvalidDescriptor, d.Stride, int(d.Width)*bpp)
	}
	return nil
}

// ToRGBA converts pixel data laid out by d into a premultiplied RGBA image.
//
// BGRA8 and RGBAF32 data are taken as premultiplied. A8 becomes white with
// the given coverage. RG8 fills red and green and is opaque.
func ToRGBA(d ImageDescriptor, pix []byte) (*image.RGBA, error) {
	if err := d.Validate(); err != nil {
		return nil, err
	}
	if len(pix) < d.Size() {
		return nil, fmt.Errorf("%w: have %d bytes, need %d", ErrShortData, len(pix), d.Size())
	}
	w, h := int(d.Width), int(d.Height)
	dst := image.NewRGBA(image.Rect(0, 0, w, h))
	stride := d.RowBytes()
	for y := range h {
		src := pix[y*stride:]
		row := dst.Pix[y*dst.Stride : y*dst.Stride+w*4]
		for x := range w {
			o := row[x*4 : x*4+4]
			switch d.Format {
			case FormatA8:
				a := src[x]
				o[0], o[1], o[2], o[3] = a, a, a, a
			case FormatRG8:
				o[0], o[1], o[2], o[3] = src[x*2], src[x*2+1], 0, 0xff
			case FormatRGB8:
				o[0], o[1], o[2], o[3] = src[x*3], src[x*3+1], src[x*3+2], 0xff
			case FormatBGRA8:
				s := src[x*4 : x*4+4]
				o[0], o[1], o[2], o[3] = s[2], s[1], s[0], s[3]
			case FormatRGBAF32:
				s := src[x*16 : x*16+16]
				for c := range 4 {
					o[c] = unitToByte(math.Float32frombits(binary.LittleEndian.Uint32(s[c*4:])))
				}
			}
		}
	}
	if d.IsOpaque {
		for i := 3; i < len(dst.Pix); i += 4 {
			dst.Pix[i] = 0xff
		}
	}
	return dst, nil
}

func unitToByte(v float32) uint8 {
	switch {
	case !(v > 0):
		return 0
	case v >= 1:
		return 0xff
	default:
		return uint8(v*255 + 0.5)
	}
}
