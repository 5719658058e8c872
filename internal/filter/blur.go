package filter

import (
	"image"
	"image/color"
	"image/draw"

	"github.com/anthonynsimon/bild/blur"
)

// Blur applies a Gaussian blur with standard deviation radius to the region r
// of img in place. Pixels outside r do not contribute.
func Blur(img *image.RGBA, r image.Rectangle, radius float32) {
	r = r.Intersect(img.Rect)
	if radius <= 0 || r.Empty() {
		return
	}
	// Blur a zero-origin copy of the region.
	work := image.NewRGBA(image.Rectangle{Max: r.Size()})
	draw.Draw(work, work.Rect, img, r.Min, draw.Src)
	out := blur.Gaussian(work, float64(radius))
	draw.Draw(img, r, out, out.Bounds().Min, draw.Src)
}

// Outset returns how far a blur of the given radius spreads past its input.
func Outset(radius float32) int {
	if radius <= 0 {
		return 0
	}
	return int(3*radius + 0.999)
}

// Shadow returns a layer the size of src's bounds grown by the blur outset,
// holding src's alpha filled with c and blurred by radius. The layer's bounds
// are in the same coordinate space as src.
func Shadow(src *image.RGBA, c color.RGBA, radius float32) *image.RGBA {
	pad := Outset(radius)
	b := src.Rect.Inset(-pad)
	layer := image.NewRGBA(b)
	draw.DrawMask(layer, src.Rect, image.NewUniform(c), image.Point{}, alphaOf{src}, src.Rect.Min, draw.Src)
	Blur(layer, b, radius)
	return layer
}

// alphaOf exposes the alpha channel of an RGBA image as a mask.
type alphaOf struct{ *image.RGBA }

func (a alphaOf) ColorModel() color.Model { return color.AlphaModel }

func (a alphaOf) At(x, y int) color.Color {
	return color.Alpha{A: a.RGBAAt(x, y).A}
}
