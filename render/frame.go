// Copyright 2026 The gogpu Authors
// SPDX-License-Identifier: MIT

package render

import (
	"image"
	"maps"
	"slices"

	sb "github.com/gogpu/scenebridge"
	"github.com/gogpu/scenebridge/displaylist"
	"github.com/gogpu/scenebridge/resource"
)

// PipelineFrame is the state of one pipeline captured in a frame.
type PipelineFrame struct {
	Pipeline   sb.PipelineID
	Epoch      sb.Epoch
	List       *displaylist.DisplayList
	Viewport   sb.Size
	Background sb.Color
	// Scroll maps scroll layer ids to their offsets.
	Scroll map[uint32]sb.Point
}

// Frame is the immutable snapshot built by Update and composited by
// Render. Images are resolved when the frame is built, except external
// images, which are locked for the duration of each Render.
type Frame struct {
	Seq       uint64
	Root      sb.PipelineID
	HasRoot   bool
	Size      sb.Size
	Inner     sb.Rect
	Pipelines map[sb.PipelineID]*PipelineFrame

	images    map[sb.ImageKey]*image.RGBA
	externals map[sb.ImageKey]externalRef
	fonts     map[sb.FontKey]*resource.Font

	// locked holds the external images locked for the current Render.
	locked map[sb.ImageKey]*image.RGBA
}

// externalRef is an external image the frame references.
type externalRef struct {
	id   sb.ExternalImageID
	desc resource.ImageDescriptor
	kind resource.ExternalType
}

// Resources resolves the image and font keys a display list references.
type Resources interface {
	Image(key sb.ImageKey) (*image.RGBA, bool)
	Font(key sb.FontKey) (*resource.Font, bool)
}

var _ Resources = (*Frame)(nil)

// Image returns the resolved pixels of key.
func (f *Frame) Image(key sb.ImageKey) (*image.RGBA, bool) {
	if img, ok := f.images[key]; ok {
		return img, true
	}
	img, ok := f.locked[key]
	return img, ok
}

// Font returns the parsed font of key.
func (f *Frame) Font(key sb.FontKey) (*resource.Font, bool) {
	font, ok := f.fonts[key]
	return font, ok
}

// Pipeline returns the captured state of p.
func (f *Frame) Pipeline(p sb.PipelineID) (*PipelineFrame, bool) {
	pf, ok := f.Pipelines[p]
	return pf, ok
}

// PipelineIDs returns the pipelines in the frame in ascending order.
func (f *Frame) PipelineIDs() []sb.PipelineID {
	return slices.SortedFunc(maps.Keys(f.Pipelines), sb.PipelineID.Compare)
}

// Externals returns the number of external images the frame references.
func (f *Frame) Externals() int { return len(f.externals) }
