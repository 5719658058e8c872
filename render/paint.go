// Copyright 2026 The gogpu Authors
// SPDX-License-Identifier: MIT

package render

import (
	"image"
	"image/color"

	"github.com/chewxy/math32"
	"golang.org/x/image/draw"
	"golang.org/x/image/math/f64"
	"golang.org/x/image/vector"

	sb "github.com/gogpu/scenebridge"
	"github.com/gogpu/scenebridge/displaylist"
)

// kappa places cubic control points for a quarter ellipse.
const kappa = 0.5522848

// pather rasterizes transformed paths into coverage masks.
type pather struct {
	z *vector.Rasterizer
	// off is the device position of the mask origin.
	off image.Point
}

func newPather() *pather {
	return &pather{z: vector.NewRasterizer(1, 1)}
}

// begin resets the rasterizer to cover the device rectangle r.
func (p *pather) begin(r image.Rectangle) {
	p.z.Reset(r.Dx(), r.Dy())
	p.z.DrawOp = draw.Src
	p.off = r.Min
}

func (p *pather) pt(xf sb.Matrix4, x, y float32) (float32, float32) {
	q := xf.TransformPoint(sb.Point{X: x, Y: y})
	return q.X - float32(p.off.X), q.Y - float32(p.off.Y)
}

func (p *pather) moveTo(xf sb.Matrix4, x, y float32) { p.z.MoveTo(p.pt(xf, x, y)) }
func (p *pather) lineTo(xf sb.Matrix4, x, y float32) { p.z.LineTo(p.pt(xf, x, y)) }

func (p *pather) cubeTo(xf sb.Matrix4, x1, y1, x2, y2, x3, y3 float32) {
	ax, ay := p.pt(xf, x1, y1)
	bx, by := p.pt(xf, x2, y2)
	cx, cy := p.pt(xf, x3, y3)
	p.z.CubeTo(ax, ay, bx, by, cx, cy)
}

// rect adds r as a closed subpath. Reversed rectangles wind the other way
// and cut holes out of enclosing ones.
func (p *pather) rect(xf sb.Matrix4, r sb.Rect, reversed bool) {
	if reversed {
		p.moveTo(xf, r.MinX(), r.MinY())
		p.lineTo(xf, r.MinX(), r.MaxY())
		p.lineTo(xf, r.MaxX(), r.MaxY())
		p.lineTo(xf, r.MaxX(), r.MinY())
	} else {
		p.moveTo(xf, r.MinX(), r.MinY())
		p.lineTo(xf, r.MaxX(), r.MinY())
		p.lineTo(xf, r.MaxX(), r.MaxY())
		p.lineTo(xf, r.MinX(), r.MaxY())
	}
	p.z.ClosePath()
}

// roundRect adds r with elliptical corners as a closed clockwise subpath.
func (p *pather) roundRect(xf sb.Matrix4, r sb.Rect, radii sb.BorderRadius) {
	if radii.IsZero() {
		p.rect(xf, r, false)
		return
	}
	radii = fitRadii(r, radii)
	x0, y0, x1, y1 := r.MinX(), r.MinY(), r.MaxX(), r.MaxY()
	tl, tr, br, bl := radii.TopLeft, radii.TopRight, radii.BottomRight, radii.BottomLeft

	p.moveTo(xf, x0+tl.Width, y0)
	p.lineTo(xf, x1-tr.Width, y0)
	p.cubeTo(xf, x1-tr.Width*(1-kappa), y0, x1, y0+tr.Height*(1-kappa), x1, y0+tr.Height)
	p.lineTo(xf, x1, y1-br.Height)
	p.cubeTo(xf, x1, y1-br.Height*(1-kappa), x1-br.Width*(1-kappa), y1, x1-br.Width, y1)
	p.lineTo(xf, x0+bl.Width, y1)
	p.cubeTo(xf, x0+bl.Width*(1-kappa), y1, x0, y1-bl.Height*(1-kappa), x0, y1-bl.Height)
	p.lineTo(xf, x0, y0+tl.Height)
	p.cubeTo(xf, x0, y0+tl.Height*(1-kappa), x0+tl.Width*(1-kappa), y0, x0+tl.Width, y0)
	p.z.ClosePath()
}

// polygon adds a closed subpath through pts.
func (p *pather) polygon(xf sb.Matrix4, pts ...sb.Point) {
	if len(pts) < 3 {
		return
	}
	p.moveTo(xf, pts[0].X, pts[0].Y)
	for _, q := range pts[1:] {
		p.lineTo(xf, q.X, q.Y)
	}
	p.z.ClosePath()
}

// mask rasterizes the accumulated path into an alpha mask whose bounds are
// the rectangle passed to begin.
func (p *pather) mask() *image.Alpha {
	w, h := p.z.Size().X, p.z.Size().Y
	m := image.NewAlpha(image.Rect(0, 0, w, h))
	p.z.Draw(m, m.Rect, image.Opaque, image.Point{})
	m.Rect = m.Rect.Add(p.off)
	return m
}

// fitRadii scales radii down uniformly so adjacent corners do not overlap.
func fitRadii(r sb.Rect, radii sb.BorderRadius) sb.BorderRadius {
	f := float32(1)
	fit := func(sum, limit float32) {
		if sum > limit && sum > 0 {
			f = math32.Min(f, limit/sum)
		}
	}
	fit(radii.TopLeft.Width+radii.TopRight.Width, r.Size.Width)
	fit(radii.BottomLeft.Width+radii.BottomRight.Width, r.Size.Width)
	fit(radii.TopLeft.Height+radii.BottomLeft.Height, r.Size.Height)
	fit(radii.TopRight.Height+radii.BottomRight.Height, r.Size.Height)
	if f == 1 {
		return radii
	}
	scale := func(s sb.Size) sb.Size { return sb.Size{Width: s.Width * f, Height: s.Height * f} }
	return sb.BorderRadius{
		TopLeft:     scale(radii.TopLeft),
		TopRight:    scale(radii.TopRight),
		BottomLeft:  scale(radii.BottomLeft),
		BottomRight: scale(radii.BottomRight),
	}
}

// deflate shrinks r by the side offsets.
func deflate(r sb.Rect, s sb.SideOffsets) sb.Rect {
	return sb.RectFromPoints(r.MinX()+s.Left, r.MinY()+s.Top, r.MaxX()-s.Right, r.MaxY()-s.Bottom)
}

// outset grows r by the side offsets.
func outset(r sb.Rect, s sb.SideOffsets) sb.Rect {
	return sb.RectFromPoints(r.MinX()-s.Left, r.MinY()-s.Top, r.MaxX()+s.Right, r.MaxY()+s.Bottom)
}

// deviceRect returns the device pixels covered by r under xf.
func deviceRect(xf sb.Matrix4, r sb.Rect) image.Rectangle {
	return xf.TransformRect(r).Pixels()
}

// aff3 converts the 2D part of m to the source-to-destination matrix used
// by x/image/draw.
func aff3(m sb.Matrix4) f64.Aff3 {
	return f64.Aff3{
		float64(m[0]), float64(m[4]), float64(m[12]),
		float64(m[1]), float64(m[5]), float64(m[13]),
	}
}

// inverse2D maps device points back to the local space of an affine
// transform.
type inverse2D struct {
	a, b, c, d, e, f float32
	ok               bool
}

func invert(m sb.Matrix4) inverse2D {
	a, b, c, d := m[0], m[1], m[4], m[5]
	det := a*d - b*c
	if det == 0 {
		return inverse2D{}
	}
	return inverse2D{a: d / det, b: -b / det, c: -c / det, d: a / det, e: m[12], f: m[13], ok: true}
}

func (inv inverse2D) apply(x, y float32) (float32, float32) {
	x -= inv.e
	y -= inv.f
	return x*inv.a + y*inv.c, x*inv.b + y*inv.d
}

// mulMask multiplies m by n where they overlap and clears the rest of m.
func mulMask(m, n *image.Alpha) {
	for y := m.Rect.Min.Y; y < m.Rect.Max.Y; y++ {
		row := m.Pix[m.PixOffset(m.Rect.Min.X, y):]
		for x := 0; x < m.Rect.Dx(); x++ {
			if row[x] == 0 {
				continue
			}
			p := image.Pt(m.Rect.Min.X+x, y)
			if !p.In(n.Rect) {
				row[x] = 0
				continue
			}
			row[x] = mul8(row[x], n.Pix[n.PixOffset(p.X, p.Y)])
		}
	}
}

// subMask removes n's coverage from m.
func subMask(m, n *image.Alpha) {
	r := m.Rect.Intersect(n.Rect)
	for y := r.Min.Y; y < r.Max.Y; y++ {
		mi, ni := m.PixOffset(r.Min.X, y), n.PixOffset(r.Min.X, y)
		for x := 0; x < r.Dx(); x++ {
			m.Pix[mi+x] = mul8(m.Pix[mi+x], 255-n.Pix[ni+x])
		}
	}
}

// maskLayer scales every pixel of layer by m's coverage.
func maskLayer(layer *image.RGBA, m *image.Alpha) {
	for y := layer.Rect.Min.Y; y < layer.Rect.Max.Y; y++ {
		li := layer.PixOffset(layer.Rect.Min.X, y)
		for x := layer.Rect.Min.X; x < layer.Rect.Max.X; x, li = x+1, li+4 {
			var a uint8
			if image.Pt(x, y).In(m.Rect) {
				a = m.Pix[m.PixOffset(x, y)]
			}
			if a == 255 {
				continue
			}
			px := layer.Pix[li : li+4 : li+4]
			px[0], px[1], px[2], px[3] = mul8(px[0], a), mul8(px[1], a), mul8(px[2], a), mul8(px[3], a)
		}
	}
}

func mul8(a, b uint8) uint8 {
	t := uint32(a)*uint32(b) + 128
	return uint8((t + t>>8) >> 8)
}

// fill composites src through the optional coverage mask onto dst within r.
func fill(dst *image.RGBA, r image.Rectangle, src image.Image, cov *image.Alpha) {
	r = r.Intersect(dst.Rect)
	if r.Empty() {
		return
	}
	if cov == nil {
		draw.Draw(dst, r, src, r.Min, draw.Over)
		return
	}
	draw.DrawMask(dst, r, src, r.Min, cov, r.Min, draw.Over)
}

// solid returns a uniform source of c, premultiplied.
func solid(c sb.Color) *image.Uniform {
	return image.NewUniform(c.RGBA8())
}

// shadeSide darkens or lightens c for 3D border styles.
func shadeSide(c sb.Color, dark bool) sb.Color {
	if dark {
		return sb.Color{R: c.R * 2 / 3, G: c.G * 2 / 3, B: c.B * 2 / 3, A: c.A}
	}
	return c.Lerp(sb.Color{R: 1, G: 1, B: 1, A: c.A}, 1.0/3)
}

// stopColor evaluates a stop list at t. Stops are assumed ordered by offset.
func stopColor(stops []displaylist.GradientStop, t float32) color.RGBA {
	switch {
	case len(stops) == 0:
		return color.RGBA{}
	case t <= stops[0].Offset:
		return stops[0].Color.RGBA8()
	case t >= stops[len(stops)-1].Offset:
		return stops[len(stops)-1].Color.RGBA8()
	}
	for i := 1; i < len(stops); i++ {
		a, b := stops[i-1], stops[i]
		if t > b.Offset {
			continue
		}
		span := b.Offset - a.Offset
		if span <= 0 {
			return b.Color.RGBA8()
		}
		return a.Color.Lerp(b.Color, (t-a.Offset)/span).RGBA8()
	}
	return stops[len(stops)-1].Color.RGBA8()
}

// extend maps a raw gradient parameter through the extend mode.
func extend(t float32, mode displaylist.ExtendMode) float32 {
	if mode == displaylist.ExtendRepeat {
		return t - math32.Floor(t)
	}
	return t
}

// shader returns the gradient parameter at a tile-local point, and false
// where the gradient paints nothing.
type shader func(x, y float32) (float32, bool)

func linearShader(g displaylist.Gradient) shader {
	dx, dy := g.End.X-g.Start.X, g.End.Y-g.Start.Y
	l2 := dx*dx + dy*dy
	return func(x, y float32) (float32, bool) {
		if l2 == 0 {
			return 1, true
		}
		return ((x-g.Start.X)*dx + (y-g.Start.Y)*dy) / l2, true
	}
}

// radialShader solves the two-circle gradient for the largest t whose
// circle has a non-negative radius and passes through the point.
func radialShader(g displaylist.RadialGradient) shader {
	ratio := g.RatioXY
	if ratio <= 0 {
		ratio = 1
	}
	cdx, cdy := g.EndCenter.X-g.StartCenter.X, (g.EndCenter.Y-g.StartCenter.Y)*ratio
	dr := g.EndRadius - g.StartRadius
	a := cdx*cdx + cdy*cdy - dr*dr
	return func(x, y float32) (float32, bool) {
		px, py := x-g.StartCenter.X, (y-g.StartCenter.Y)*ratio
		b := px*cdx + py*cdy + g.StartRadius*dr
		c := px*px + py*py - g.StartRadius*g.StartRadius
		if math32.Abs(a) < 1e-6 {
			if b == 0 {
				return 0, false
			}
			t := c / (2 * b)
			return t, g.StartRadius+t*dr >= 0
		}
		disc := b*b - a*c
		if disc < 0 {
			return 0, false
		}
		sq := math32.Sqrt(disc)
		t := (b + sq) / a
		if g.StartRadius+t*dr < 0 {
			t = (b - sq) / a
			if g.StartRadius+t*dr < 0 {
				return 0, false
			}
		}
		return t, true
	}
}

// gradientLayer evaluates sh over r. Local space is xf's source space;
// origin and tile place the repeating tile grid.
func gradientLayer(r image.Rectangle, xf sb.Matrix4, origin sb.Point, tile, spacing sb.Size,
	sh shader, stops []displaylist.GradientStop, mode displaylist.ExtendMode) *image.RGBA {
	layer := image.NewRGBA(r)
	inv := invert(xf)
	if !inv.ok || tile.IsEmpty() {
		return layer
	}
	stepX, stepY := tile.Width+spacing.Width, tile.Height+spacing.Height
	for y := r.Min.Y; y < r.Max.Y; y++ {
		for x := r.Min.X; x < r.Max.X; x++ {
			lx, ly := inv.apply(float32(x)+0.5, float32(y)+0.5)
			lx, ly = lx-origin.X, ly-origin.Y
			lx -= math32.Floor(lx/stepX) * stepX
			ly -= math32.Floor(ly/stepY) * stepY
			if lx >= tile.Width || ly >= tile.Height {
				continue
			}
			t, ok := sh(lx, ly)
			if !ok {
				continue
			}
			layer.SetRGBA(x, y, stopColor(stops, extend(t, mode)))
		}
	}
	return layer
}
