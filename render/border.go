// Copyright 2026 The gogpu Authors
// SPDX-License-Identifier: MIT

package render

import (
	"image"

	"github.com/chewxy/math32"
	"golang.org/x/image/draw"

	sb "github.com/gogpu/scenebridge"
	"github.com/gogpu/scenebridge/displaylist"
	"github.com/gogpu/scenebridge/internal/filter"
)

// Border sides in painting order.
const (
	sideTop = iota
	sideRight
	sideBottom
	sideLeft
)

// lerpRect interpolates every edge of a toward b.
func lerpRect(a, b sb.Rect, t float32) sb.Rect {
	l := func(x, y float32) float32 { return x + (y-x)*t }
	return sb.RectFromPoints(l(a.MinX(), b.MinX()), l(a.MinY(), b.MinY()), l(a.MaxX(), b.MaxX()), l(a.MaxY(), b.MaxY()))
}

// sideQuad returns the trapezoid of one side between an outer and inner
// rectangle, mitered at the corners.
func sideQuad(side int, o, i sb.Rect) [4]sb.Point {
	p := func(x, y float32) sb.Point { return sb.Point{X: x, Y: y} }
	switch side {
	case sideTop:
		return [4]sb.Point{p(o.MinX(), o.MinY()), p(o.MaxX(), o.MinY()), p(i.MaxX(), i.MinY()), p(i.MinX(), i.MinY())}
	case sideRight:
		return [4]sb.Point{p(o.MaxX(), o.MinY()), p(o.MaxX(), o.MaxY()), p(i.MaxX(), i.MaxY()), p(i.MaxX(), i.MinY())}
	case sideBottom:
		return [4]sb.Point{p(o.MaxX(), o.MaxY()), p(o.MinX(), o.MaxY()), p(i.MinX(), i.MaxY()), p(i.MaxX(), i.MaxY())}
	default:
		return [4]sb.Point{p(o.MinX(), o.MaxY()), p(o.MinX(), o.MinY()), p(i.MinX(), i.MinY()), p(i.MinX(), i.MaxY())}
	}
}

// band is a slice of a side's thickness, from 0 at the outer edge to 1 at
// the inner edge, painted with one color.
type band struct {
	from, to float32
	color    sb.Color
}

// sideBands resolves a border style into the bands it paints.
func sideBands(side int, s displaylist.BorderSide) []band {
	c := s.Color
	// Top and left are the "upper" sides for 3D styles.
	upper := side == sideTop || side == sideLeft
	switch s.Style {
	case displaylist.BorderStyleDouble:
		return []band{{0, 1.0 / 3, c}, {2.0 / 3, 1, c}}
	case displaylist.BorderStyleGroove:
		return []band{{0, 0.5, shadeSide(c, upper)}, {0.5, 1, shadeSide(c, !upper)}}
	case displaylist.BorderStyleRidge:
		return []band{{0, 0.5, shadeSide(c, !upper)}, {0.5, 1, shadeSide(c, upper)}}
	case displaylist.BorderStyleInset:
		return []band{{0, 1, shadeSide(c, upper)}}
	case displaylist.BorderStyleOutset:
		return []band{{0, 1, shadeSide(c, !upper)}}
	default:
		return []band{{0, 1, c}}
	}
}

func (c *SoftwareCompositor) drawBorder(ctx drawCtx, r image.Rectangle, b sb.Rect, d *displaylist.BorderItem, clipMask *image.Alpha) bool {
	inner := deflate(b, d.Widths)
	var ring *image.Alpha
	if !d.Radius.IsZero() {
		c.p.begin(r)
		c.p.roundRect(ctx.xf, b, d.Radius)
		ring = c.p.mask()
		if !inner.IsEmpty() {
			c.p.begin(r)
			c.p.roundRect(ctx.xf, inner, innerRadii(d.Radius, d.Widths))
			subMask(ring, c.p.mask())
		}
	}

	sides := [4]displaylist.BorderSide{d.Top, d.Right, d.Bottom, d.Left}
	widths := [4]float32{d.Widths.Top, d.Widths.Right, d.Widths.Bottom, d.Widths.Left}
	for side, s := range sides {
		if !s.Style.Visible() || widths[side] <= 0 || s.Color.A <= 0 {
			continue
		}
		for _, bd := range sideBands(side, s) {
			o, i := lerpRect(b, inner, bd.from), lerpRect(b, inner, bd.to)
			q := sideQuad(side, o, i)
			c.p.begin(r)
			c.p.polygon(ctx.xf, q[:]...)
			cov := c.p.mask()
			if s.Style == displaylist.BorderStyleDashed || s.Style == displaylist.BorderStyleDotted {
				mulMask(cov, c.dashMask(ctx.xf, r, side, b, inner, widths[side], s.Style))
			}
			if ring != nil {
				mulMask(cov, ring)
			}
			if clipMask != nil {
				mulMask(cov, clipMask)
			}
			fill(ctx.dst, r, solid(bd.color), cov)
		}
	}
	return true
}

// dashMask covers the dashes or dots of one side. Dashes are three widths
// long, dots one width, each followed by an equal gap.
func (c *SoftwareCompositor) dashMask(xf sb.Matrix4, r image.Rectangle, side int, o, i sb.Rect, w float32, style displaylist.BorderStyle) *image.Alpha {
	seg := 3 * w
	if style == displaylist.BorderStyleDotted {
		seg = w
	}
	c.p.begin(r)
	horizontal := side == sideTop || side == sideBottom
	var start, end, a0, a1 float32
	if horizontal {
		start, end = o.MinX(), o.MaxX()
		if side == sideTop {
			a0, a1 = o.MinY(), i.MinY()
		} else {
			a0, a1 = i.MaxY(), o.MaxY()
		}
	} else {
		start, end = o.MinY(), o.MaxY()
		if side == sideLeft {
			a0, a1 = o.MinX(), i.MinX()
		} else {
			a0, a1 = i.MaxX(), o.MaxX()
		}
	}
	for p := start; p < end; p += 2 * seg {
		l := math32.Min(seg, end-p)
		var rc sb.Rect
		if horizontal {
			rc = sb.RectFromPoints(p, a0, p+l, a1)
		} else {
			rc = sb.RectFromPoints(a0, p, a1, p+l)
		}
		if style == displaylist.BorderStyleDotted {
			c.p.roundRect(xf, rc, sb.UniformRadius(w/2))
		} else {
			c.p.rect(xf, rc, false)
		}
	}
	return c.p.mask()
}

// innerRadii returns the radii of a border's padding edge.
func innerRadii(r sb.BorderRadius, w sb.SideOffsets) sb.BorderRadius {
	shrink := func(s sb.Size, dx, dy float32) sb.Size {
		return sb.Size{Width: math32.Max(0, s.Width-dx), Height: math32.Max(0, s.Height-dy)}
	}
	return sb.BorderRadius{
		TopLeft:     shrink(r.TopLeft, w.Left, w.Top),
		TopRight:    shrink(r.TopRight, w.Right, w.Top),
		BottomLeft:  shrink(r.BottomLeft, w.Left, w.Bottom),
		BottomRight: shrink(r.BottomRight, w.Right, w.Bottom),
	}
}

// drawBorderFrame fills the frame between outer and its inset by widths
// with a gradient that spans the whole outer rectangle.
func (c *SoftwareCompositor) drawBorderFrame(ctx drawCtx, r image.Rectangle, outer sb.Rect, widths sb.SideOffsets,
	sh shader, stops []displaylist.GradientStop, mode displaylist.ExtendMode, clipMask *image.Alpha) bool {
	if len(stops) == 0 {
		return false
	}
	c.p.begin(r)
	c.p.rect(ctx.xf, outer, false)
	if inner := deflate(outer, widths); !inner.IsEmpty() {
		c.p.rect(ctx.xf, inner, true)
	}
	cov := c.p.mask()
	if clipMask != nil {
		mulMask(cov, clipMask)
	}
	layer := gradientLayer(r, ctx.xf, outer.Origin, outer.Size, sb.Size{}, sh, stops, mode)
	fill(ctx.dst, r, layer, cov)
	return true
}

// span is one tile along a border image edge.
type span struct{ at, size float32 }

// edgeSpans lays out tiles of length tile over [start, start+length).
func edgeSpans(mode displaylist.RepeatMode, start, length, tile float32) []span {
	if length <= 0 {
		return nil
	}
	if tile <= 0 || mode == displaylist.RepeatStretch {
		return []span{{start, length}}
	}
	const maxSpans = 1024
	switch mode {
	case displaylist.RepeatRound:
		n := math32.Max(1, math32.Round(length/tile))
		tile = length / n
		out := make([]span, 0, min(int(n), maxSpans))
		for k := 0; k < int(n) && k < maxSpans; k++ {
			out = append(out, span{start + float32(k)*tile, tile})
		}
		return out
	case displaylist.RepeatSpace:
		n := math32.Floor(length / tile)
		if n < 1 {
			return nil
		}
		gap := (length - n*tile) / (n + 1)
		out := make([]span, 0, min(int(n), maxSpans))
		for k := 0; k < int(n) && k < maxSpans; k++ {
			out = append(out, span{start + gap + float32(k)*(tile+gap), tile})
		}
		return out
	default:
		// Repeat centers the run so partial tiles fall evenly on both ends.
		n := math32.Ceil(length / tile)
		if int(n)%2 == 0 {
			n++
		}
		first := start + (length-n*tile)/2
		out := make([]span, 0, min(int(n), maxSpans))
		for k := 0; k < int(n) && k < maxSpans; k++ {
			out = append(out, span{first + float32(k)*tile, tile})
		}
		return out
	}
}

func (c *SoftwareCompositor) drawBorderImage(ctx drawCtx, r image.Rectangle, b sb.Rect, d *displaylist.BorderImageItem, clipMask *image.Alpha) bool {
	img, ok := ctx.res.Image(d.Image)
	if !ok {
		sb.Logger().Debug("render: border image not available", "key", d.Image)
		return false
	}
	iw, ih := float32(img.Rect.Dx()), float32(img.Rect.Dy())
	fx, fy := float32(1), float32(1)
	if d.Patch.Width > 0 {
		fx = iw / float32(d.Patch.Width)
	}
	if d.Patch.Height > 0 {
		fy = ih / float32(d.Patch.Height)
	}
	sl := d.Patch.Slice
	// Source grid lines in image pixels, relative to the image origin.
	sxs := [4]float32{0, sl.Left * fx, iw - sl.Right*fx, iw}
	sys := [4]float32{0, sl.Top * fy, ih - sl.Bottom*fy, ih}

	o := outset(b, d.Outset)
	w := d.Widths
	dxs := [4]float32{o.MinX(), o.MinX() + w.Left, o.MaxX() - w.Right, o.MaxX()}
	dys := [4]float32{o.MinY(), o.MinY() + w.Top, o.MaxY() - w.Bottom, o.MaxY()}

	layer := image.NewRGBA(r)
	scaler := draw.BiLinear
	for row := 0; row < 3; row++ {
		for col := 0; col < 3; col++ {
			if row == 1 && col == 1 {
				continue
			}
			sr := image.Rect(int(sxs[col]), int(sys[row]), int(sxs[col+1]), int(sys[row+1])).Add(img.Rect.Min)
			cell := sb.RectFromPoints(dxs[col], dys[row], dxs[col+1], dys[row+1])
			if sr.Empty() || cell.IsEmpty() {
				continue
			}
			cr := deviceRect(ctx.xf, cell).Intersect(layer.Rect)
			if cr.Empty() {
				continue
			}
			dst := layer.SubImage(cr).(*image.RGBA)
			switch {
			case col == 1:
				tile := float32(sr.Dx()) * cell.Size.Height / float32(sr.Dy())
				for _, s := range edgeSpans(d.RepeatH, cell.MinX(), cell.Size.Width, tile) {
					drawImageRect(dst, img, sr, sb.NewRect(s.at, cell.MinY(), s.size, cell.Size.Height), ctx.xf, scaler)
				}
			case row == 1:
				tile := float32(sr.Dy()) * cell.Size.Width / float32(sr.Dx())
				for _, s := range edgeSpans(d.RepeatV, cell.MinY(), cell.Size.Height, tile) {
					drawImageRect(dst, img, sr, sb.NewRect(cell.MinX(), s.at, cell.Size.Width, s.size), ctx.xf, scaler)
				}
			default:
				drawImageRect(dst, img, sr, cell, ctx.xf, scaler)
			}
		}
	}
	if clipMask != nil {
		maskLayer(layer, clipMask)
	}
	fill(ctx.dst, r, layer, nil)
	return true
}

func (c *SoftwareCompositor) drawBoxShadow(ctx drawCtx, r image.Rectangle, d *displaylist.BoxShadowItem, clipMask *image.Alpha) bool {
	if d.Color.A <= 0 {
		return true
	}
	sx, _ := ctx.xf.ScaleFactors()
	sigma := d.BlurRadius / 2 * sx
	lr := r.Inset(-filter.Outset(sigma))
	box := d.BoxBounds.Translate(d.Offset)
	boxRadius := sb.UniformRadius(d.BorderRadius)
	layer := image.NewRGBA(lr)

	if d.ClipMode == displaylist.BoxShadowClipInset {
		// The shadow is everything outside the shrunken box, blurred and
		// kept inside the box.
		draw.Draw(layer, lr, solid(d.Color), image.Point{}, draw.Src)
		hole := box.Inflate(-d.SpreadRadius, -d.SpreadRadius)
		if !hole.IsEmpty() {
			c.p.begin(lr)
			c.p.roundRect(ctx.xf, hole, sb.UniformRadius(math32.Max(0, d.BorderRadius-d.SpreadRadius)))
			hm := c.p.mask()
			for i := range hm.Pix {
				hm.Pix[i] = 255 - hm.Pix[i]
			}
			maskLayer(layer, hm)
		}
		filter.Blur(layer, lr, sigma)
		c.p.begin(lr)
		c.p.roundRect(ctx.xf, d.BoxBounds, boxRadius)
		maskLayer(layer, c.p.mask())
	} else {
		shape := box.Inflate(d.SpreadRadius, d.SpreadRadius)
		if shape.IsEmpty() {
			return true
		}
		c.p.begin(lr)
		c.p.roundRect(ctx.xf, shape, sb.UniformRadius(math32.Max(0, d.BorderRadius+d.SpreadRadius)))
		draw.DrawMask(layer, lr, solid(d.Color), image.Point{}, c.p.mask(), lr.Min, draw.Src)
		filter.Blur(layer, lr, sigma)
		if d.ClipMode == displaylist.BoxShadowClipOutset {
			c.p.begin(lr)
			c.p.roundRect(ctx.xf, d.BoxBounds, boxRadius)
			cut := c.p.mask()
			for i := range cut.Pix {
				cut.Pix[i] = 255 - cut.Pix[i]
			}
			maskLayer(layer, cut)
		}
	}
	if clipMask != nil {
		maskLayer(layer, clipMask)
	}
	fill(ctx.dst, r, layer, nil)
	return true
}
