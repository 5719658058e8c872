// Copyright 2026 The gogpu Authors
// SPDX-License-Identifier: MIT

package render

import (
	"image"

	"golang.org/x/image/draw"

	sb "github.com/gogpu/scenebridge"
	"github.com/gogpu/scenebridge/displaylist"
)

// coverage rasterizes the local rectangle b under xf over r, multiplied by
// the clip mask when there is one.
func (c *SoftwareCompositor) coverage(xf sb.Matrix4, r image.Rectangle, b sb.Rect, clipMask *image.Alpha) *image.Alpha {
	c.p.begin(r)
	c.p.rect(xf, b, false)
	m := c.p.mask()
	if clipMask != nil {
		mulMask(m, clipMask)
	}
	return m
}

func (c *SoftwareCompositor) drawRect(ctx drawCtx, r image.Rectangle, b sb.Rect, d *displaylist.RectItem, clipMask *image.Alpha) bool {
	if d.Color.A <= 0 {
		return true
	}
	fill(ctx.dst, r, solid(d.Color), c.coverage(ctx.xf, r, b, clipMask))
	return true
}

func (c *SoftwareCompositor) drawImage(ctx drawCtx, r image.Rectangle, b sb.Rect, d *displaylist.ImageItem, clipMask *image.Alpha) bool {
	img, ok := ctx.res.Image(d.Key)
	if !ok {
		sb.Logger().Debug("render: image not available", "key", d.Key)
		return false
	}
	stretch := d.StretchSize
	if stretch.IsEmpty() {
		stretch = b.Size
	}
	var scaler draw.Interpolator = draw.BiLinear
	if d.Rendering != displaylist.ImageRenderingAuto {
		scaler = draw.NearestNeighbor
	}

	layer := image.NewRGBA(r)
	area, ok := b.Intersect(localRect(ctx.xf, r))
	if !ok {
		return true
	}
	eachTile(area, b.Origin, stretch, d.TileSpacing, func(t sb.Rect) {
		drawImageRect(layer, img, img.Rect, t, ctx.xf, scaler)
	})
	fill(ctx.dst, r, layer, c.coverage(ctx.xf, r, b, clipMask))
	return true
}

func (c *SoftwareCompositor) drawGradient(ctx drawCtx, r image.Rectangle, b sb.Rect, tile, spacing sb.Size,
	sh shader, stops []displaylist.GradientStop, mode displaylist.ExtendMode, clipMask *image.Alpha) bool {
	if len(stops) == 0 {
		return false
	}
	if tile.IsEmpty() {
		tile = b.Size
	}
	layer := gradientLayer(r, ctx.xf, b.Origin, tile, spacing, sh, stops, mode)
	fill(ctx.dst, r, layer, c.coverage(ctx.xf, r, b, clipMask))
	return true
}
