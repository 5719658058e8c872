// Copyright 2026 The gogpu Authors
// SPDX-License-Identifier: MIT

package render

import (
	"image"

	"github.com/chewxy/math32"
	"golang.org/x/image/draw"
	"golang.org/x/image/font/sfnt"
	"golang.org/x/image/math/fixed"
	"golang.org/x/image/vector"

	sb "github.com/gogpu/scenebridge"
	"github.com/gogpu/scenebridge/displaylist"
	"github.com/gogpu/scenebridge/internal/filter"
	"github.com/gogpu/scenebridge/resource"
)

// subpixelSteps is the number of horizontal glyph positions per pixel.
const subpixelSteps = 4

// glyphKey identifies one rasterized glyph mask.
type glyphKey struct {
	font  sb.FontKey
	glyph uint32
	ppem  fixed.Int26_6
	subX  uint8
}

// drawText draws a glyph run. Glyphs are positioned through the transform
// but rasterized upright at the transform's horizontal scale.
func (c *SoftwareCompositor) drawText(ctx drawCtx, r image.Rectangle, d *displaylist.TextItem, clipMask *image.Alpha) bool {
	font, ok := ctx.res.Font(d.Font)
	if !ok {
		sb.Logger().Debug("render: font not available", "key", d.Font)
		return false
	}
	if d.Color.A <= 0 || d.Size <= 0 {
		return true
	}
	sx, _ := ctx.xf.ScaleFactors()
	ppem := fixed.Int26_6(d.Size * sx * 64)
	if ppem <= 0 {
		return true
	}

	// Blurred text spreads past its glyph boxes; render into a padded layer.
	pad := filter.Outset(d.BlurRadius / 2 * sx)
	layer := image.NewRGBA(r.Inset(-pad))
	src := solid(d.Color)
	for _, g := range ctx.dl.Glyphs(d.Glyphs) {
		p := ctx.xf.TransformPoint(g.Point)
		fx := math32.Floor(p.X)
		sub := uint8((p.X - fx) * subpixelSteps)
		mask := c.glyphMask(font, d.Font, g.Index, ppem, sub)
		if mask == nil {
			continue
		}
		at := image.Pt(int(fx), int(math32.Floor(p.Y+0.5)))
		gr := mask.Rect.Add(at).Intersect(layer.Rect)
		if gr.Empty() {
			continue
		}
		draw.DrawMask(layer, gr, src, image.Point{}, mask, gr.Min.Sub(at), draw.Over)
	}
	if d.BlurRadius > 0 {
		filter.Blur(layer, layer.Rect, d.BlurRadius/2*sx)
	}
	if clipMask != nil {
		maskLayer(layer, clipMask)
	}
	fill(ctx.dst, r, layer, nil)
	return true
}

// glyphMask returns the coverage of a glyph with its bounds relative to the
// pen position, rasterizing it on a cache miss. Empty glyphs return nil.
func (c *SoftwareCompositor) glyphMask(font *resource.Font, key sb.FontKey, glyph uint32, ppem fixed.Int26_6, sub uint8) *image.Alpha {
	k := glyphKey{font: key, glyph: glyph, ppem: ppem, subX: sub}
	return c.glyphs.GetOrCreate(k, func() *image.Alpha {
		return c.rasterizeGlyph(font.Outlines(), k)
	})
}

func (c *SoftwareCompositor) rasterizeGlyph(f *sfnt.Font, k glyphKey) *image.Alpha {
	segs, err := f.LoadGlyph(&c.buf, sfnt.GlyphIndex(k.glyph), k.ppem, nil)
	if err != nil || len(segs) == 0 {
		return nil
	}
	off := float32(k.subX) / subpixelSteps

	minX, minY := math32.Inf(1), math32.Inf(1)
	maxX, maxY := math32.Inf(-1), math32.Inf(-1)
	for _, s := range segs {
		for _, a := range s.Args[:argCount(s.Op)] {
			x, y := float32(a.X)/64+off, float32(a.Y)/64
			minX, maxX = math32.Min(minX, x), math32.Max(maxX, x)
			minY, maxY = math32.Min(minY, y), math32.Max(maxY, y)
		}
	}
	b := image.Rect(int(math32.Floor(minX)), int(math32.Floor(minY)), int(math32.Ceil(maxX)), int(math32.Ceil(maxY)))
	if b.Empty() {
		return nil
	}

	z := vector.NewRasterizer(b.Dx(), b.Dy())
	ox, oy := off-float32(b.Min.X), -float32(b.Min.Y)
	pt := func(p fixed.Point26_6) (float32, float32) {
		return float32(p.X)/64 + ox, float32(p.Y)/64 + oy
	}
	for i, s := range segs {
		switch s.Op {
		case sfnt.SegmentOpMoveTo:
			if i > 0 {
				z.ClosePath()
			}
			z.MoveTo(pt(s.Args[0]))
		case sfnt.SegmentOpLineTo:
			z.LineTo(pt(s.Args[0]))
		case sfnt.SegmentOpQuadTo:
			x1, y1 := pt(s.Args[0])
			x2, y2 := pt(s.Args[1])
			z.QuadTo(x1, y1, x2, y2)
		case sfnt.SegmentOpCubeTo:
			x1, y1 := pt(s.Args[0])
			x2, y2 := pt(s.Args[1])
			x3, y3 := pt(s.Args[2])
			z.CubeTo(x1, y1, x2, y2, x3, y3)
		}
	}
	z.ClosePath()
	m := image.NewAlpha(image.Rect(0, 0, b.Dx(), b.Dy()))
	z.Draw(m, m.Rect, image.Opaque, image.Point{})
	m.Rect = b
	return m
}

func argCount(op sfnt.SegmentOp) int {
	switch op {
	case sfnt.SegmentOpQuadTo:
		return 2
	case sfnt.SegmentOpCubeTo:
		return 3
	default:
		return 1
	}
}
