package scenebridge

import (
	"image"
	"image/color"

	"github.com/chewxy/math32"
)

// Point is a position in layout pixels.
type Point struct {
	X, Y float32
}

// Add returns p translated by q.
func (p Point) Add(q Point) Point { return Point{X: p.X + q.X, Y: p.Y + q.Y} }

// Size is a width/height pair in layout pixels.
type Size struct {
	Width, Height float32
}

// IsEmpty reports whether either dimension is zero or negative.
func (s Size) IsEmpty() bool { return s.Width <= 0 || s.Height <= 0 }

// Rect is an axis-aligned rectangle given by its origin and size.
type Rect struct {
	Origin Point
	Size   Size
}

// NewRect creates a rectangle from origin and extent.
func NewRect(x, y, w, h float32) Rect {
	return Rect{Origin: Point{X: x, Y: y}, Size: Size{Width: w, Height: h}}
}

// RectFromPoints creates the rectangle spanning two corners.
func RectFromPoints(minX, minY, maxX, maxY float32) Rect {
	return NewRect(minX, minY, maxX-minX, maxY-minY)
}

// MinX returns the left edge.
func (r Rect) MinX() float32 { return r.Origin.X }

// MinY returns the top edge.
func (r Rect) MinY() float32 { return r.Origin.Y }

// MaxX returns the right edge.
func (r Rect) MaxX() float32 { return r.Origin.X + r.Size.Width }

// MaxY returns the bottom edge.
func (r Rect) MaxY() float32 { return r.Origin.Y + r.Size.Height }

// IsEmpty reports whether the rectangle has no area.
func (r Rect) IsEmpty() bool { return r.Size.IsEmpty() }

// Translate returns r moved by d.
func (r Rect) Translate(d Point) Rect {
	return Rect{Origin: r.Origin.Add(d), Size: r.Size}
}

// Inflate grows r by dx on the left and right and dy on the top and bottom.
func (r Rect) Inflate(dx, dy float32) Rect {
	return RectFromPoints(r.MinX()-dx, r.MinY()-dy, r.MaxX()+dx, r.MaxY()+dy)
}

// Intersect returns the overlap of r and o, and false when they are disjoint.
func (r Rect) Intersect(o Rect) (Rect, bool) {
	minX := math32.Max(r.MinX(), o.MinX())
	minY := math32.Max(r.MinY(), o.MinY())
	maxX := math32.Min(r.MaxX(), o.MaxX())
	maxY := math32.Min(r.MaxY(), o.MaxY())
	if maxX <= minX || maxY <= minY {
		return Rect{}, false
	}
	return RectFromPoints(minX, minY, maxX, maxY), true
}

// Union returns the smallest rectangle containing r and o.
func (r Rect) Union(o Rect) Rect {
	if r.IsEmpty() {
		return o
	}
	if o.IsEmpty() {
		return r
	}
	return RectFromPoints(
		math32.Min(r.MinX(), o.MinX()), math32.Min(r.MinY(), o.MinY()),
		math32.Max(r.MaxX(), o.MaxX()), math32.Max(r.MaxY(), o.MaxY()),
	)
}

// Contains reports whether p lies inside r.
func (r Rect) Contains(p Point) bool {
	return p.X >= r.MinX() && p.X < r.MaxX() && p.Y >= r.MinY() && p.Y < r.MaxY()
}

// Pixels rounds r outward to integer device pixels.
func (r Rect) Pixels() image.Rectangle {
	return image.Rect(
		int(math32.Floor(r.MinX())), int(math32.Floor(r.MinY())),
		int(math32.Ceil(r.MaxX())), int(math32.Ceil(r.MaxY())),
	)
}

// SideOffsets holds one value per rectangle side.
type SideOffsets struct {
	Top, Right, Bottom, Left float32
}

// BorderRadius holds the elliptical radii of each corner.
type BorderRadius struct {
	TopLeft, TopRight, BottomLeft, BottomRight Size
}

// UniformRadius returns a BorderRadius with circular corners of radius r.
func UniformRadius(r float32) BorderRadius {
	s := Size{Width: r, Height: r}
	return BorderRadius{TopLeft: s, TopRight: s, BottomLeft: s, BottomRight: s}
}

// IsZero reports whether all corners are square.
func (b BorderRadius) IsZero() bool { return b == BorderRadius{} }

// Color is a straight-alpha color with components in [0, 1].
type Color struct {
	R, G, B, A float32
}

// Common colors.
var (
	Transparent = Color{}
	Black       = Color{A: 1}
	White       = Color{R: 1, G: 1, B: 1, A: 1}
)

// RGBA8 converts c to a premultiplied 8-bit color.
func (c Color) RGBA8() color.RGBA {
	a := clamp01(c.A)
	return color.RGBA{
		R: unit8(clamp01(c.R) * a),
		G: unit8(clamp01(c.G) * a),
		B: unit8(clamp01(c.B) * a),
		A: unit8(a),
	}
}

// WithAlpha returns c with its alpha multiplied by f.
func (c Color) WithAlpha(f float32) Color {
	c.A *= f
	return c
}

// Lerp interpolates between c and o.
func (c Color) Lerp(o Color, t float32) Color {
	return Color{
		R: c.R + (o.R-c.R)*t,
		G: c.G + (o.G-c.G)*t,
		B: c.B + (o.B-c.B)*t,
		A: c.A + (o.A-c.A)*t,
	}
}

func clamp01(v float32) float32 {
	return math32.Max(0, math32.Min(1, v))
}

func unit8(v float32) uint8 {
	return uint8(math32.Round(v * 255))
}

// Matrix4 is a row-major 4x4 transform applied to row vectors, so the
// translation lives in elements 12 and 13.
type Matrix4 [16]float32

// Identity4 returns the identity transform.
func Identity4() Matrix4 {
	return Matrix4{
		1, 0, 0, 0,
		0, 1, 0, 0,
		0, 0, 1, 0,
		0, 0, 0, 1,
	}
}

// Translation4 returns a 2D translation.
func Translation4(x, y float32) Matrix4 {
	m := Identity4()
	m[12], m[13] = x, y
	return m
}

// Scale4 returns a 2D scale.
func Scale4(sx, sy float32) Matrix4 {
	m := Identity4()
	m[0], m[5] = sx, sy
	return m
}

// IsIdentity reports whether m is the identity.
func (m Matrix4) IsIdentity() bool { return m == Identity4() }

// Then returns the transform that applies m first and o second.
func (m Matrix4) Then(o Matrix4) Matrix4 {
	var r Matrix4
	for row := 0; row < 4; row++ {
		for col := 0; col < 4; col++ {
			var sum float32
			for k := 0; k < 4; k++ {
				sum += m[row*4+k] * o[k*4+col]
			}
			r[row*4+col] = sum
		}
	}
	return r
}

// TransformPoint maps p through m, dividing by w for projective transforms.
func (m Matrix4) TransformPoint(p Point) Point {
	x := p.X*m[0] + p.Y*m[4] + m[12]
	y := p.X*m[1] + p.Y*m[5] + m[13]
	w := p.X*m[3] + p.Y*m[7] + m[15]
	if w != 0 && w != 1 {
		x /= w
		y /= w
	}
	return Point{X: x, Y: y}
}

// TransformRect returns the axis-aligned bounds of r mapped through m.
func (m Matrix4) TransformRect(r Rect) Rect {
	if m.IsIdentity() {
		return r
	}
	corners := [4]Point{
		m.TransformPoint(Point{X: r.MinX(), Y: r.MinY()}),
		m.TransformPoint(Point{X: r.MaxX(), Y: r.MinY()}),
		m.TransformPoint(Point{X: r.MinX(), Y: r.MaxY()}),
		m.TransformPoint(Point{X: r.MaxX(), Y: r.MaxY()}),
	}
	minX, minY := corners[0].X, corners[0].Y
	maxX, maxY := minX, minY
	for _, c := range corners[1:] {
		minX, maxX = math32.Min(minX, c.X), math32.Max(maxX, c.X)
		minY, maxY = math32.Min(minY, c.Y), math32.Max(maxY, c.Y)
	}
	return RectFromPoints(minX, minY, maxX, maxY)
}

// ScaleFactors returns the 2D scale encoded in m.
func (m Matrix4) ScaleFactors() (sx, sy float32) {
	return math32.Hypot(m[0], m[1]), math32.Hypot(m[4], m[5])
}
