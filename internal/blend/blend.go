// Package blend composites premultiplied RGBA pixels with the CSS
// mix-blend-mode set.
//
// Every mode uses the general compositing formula of the W3C Compositing and
// Blending Level 1 recommendation:
//
//	Co = (1 - ab) * Cs + (1 - as) * Cb + as * ab * B(Cb, Cs)
//	ao = as + ab * (1 - as)
//
// where Cs and Cb are premultiplied and B operates on straight colors.
// ModeNormal reduces to source-over and takes an integer fast path.
//
// References:
//   - https://www.w3.org/TR/compositing-1/
package blend

import (
	"image"
	"image/color"
)

// Mode is a mix-blend-mode. The order matches displaylist.MixBlendMode.
type Mode uint8

const (
	ModeNormal Mode = iota
	ModeMultiply
	ModeScreen
	ModeOverlay
	ModeDarken
	ModeLighten
	ModeColorDodge
	ModeColorBurn
	ModeHardLight
	ModeSoftLight
	ModeDifference
	ModeExclusion
	ModeHue
	ModeSaturation
	ModeColor
	ModeLuminosity

	modeCount
)

var modeNames = [...]string{
	ModeNormal:     "normal",
	ModeMultiply:   "multiply",
	ModeScreen:     "screen",
	ModeOverlay:    "overlay",
	ModeDarken:     "darken",
	ModeLighten:    "lighten",
	ModeColorDodge: "color-dodge",
	ModeColorBurn:  "color-burn",
	ModeHardLight:  "hard-light",
	ModeSoftLight:  "soft-light",
	ModeDifference: "difference",
	ModeExclusion:  "exclusion",
	ModeHue:        "hue",
	ModeSaturation: "saturation",
	ModeColor:      "color",
	ModeLuminosity: "luminosity",
}

// String returns the CSS keyword of the mode.
func (m Mode) String() string {
	if m < modeCount {
		return modeNames[m]
	}
	return "unknown"
}

// Valid reports whether m is a known mode.
func (m Mode) Valid() bool { return m < modeCount }

// Separable reports whether the mode operates on each channel independently.
func (m Mode) Separable() bool { return m < ModeHue }

// Pixel blends the premultiplied source s onto the premultiplied backdrop d.
// Unknown modes blend as ModeNormal.
func Pixel(s, d color.RGBA, m Mode) color.RGBA {
	if s.A == 0 {
		return d
	}
	if m == ModeNormal || !m.Valid() || d.A == 0 {
		return over(s, d)
	}

	sa, da := unit(s.A), unit(d.A)
	// Straight colors.
	sr, sg, sb := unit(s.R)/sa, unit(s.G)/sa, unit(s.B)/sa
	dr, dg, db := unit(d.R)/da, unit(d.G)/da, unit(d.B)/da

	var br, bg, bb float32
	if m.Separable() {
		f := separable[m]
		br, bg, bb = f(dr, sr), f(dg, sg), f(db, sb)
	} else {
		br, bg, bb = nonSeparable[m-ModeHue](sr, sg, sb, dr, dg, db)
	}

	both := sa * da
	return color.RGBA{
		R: toByte((1-da)*unit(s.R) + (1-sa)*unit(d.R) + both*br),
		G: toByte((1-da)*unit(s.G) + (1-sa)*unit(d.G) + both*bg),
		B: toByte((1-da)*unit(s.B) + (1-sa)*unit(d.B) + both*bb),
		A: toByte(sa + da*(1-sa)),
	}
}

// over is premultiplied source-over.
func over(s, d color.RGBA) color.RGBA {
	inv := 255 - s.A
	return color.RGBA{
		R: addClamp(s.R, mulDiv255(d.R, inv)),
		G: addClamp(s.G, mulDiv255(d.G, inv)),
		B: addClamp(s.B, mulDiv255(d.B, inv)),
		A: addClamp(s.A, mulDiv255(d.A, inv)),
	}
}

// scale multiplies every channel of a premultiplied color by a.
func scale(c color.RGBA, a byte) color.RGBA {
	if a == 255 {
		return c
	}
	return color.RGBA{
		R: mulDiv255(c.R, a),
		G: mulDiv255(c.G, a),
		B: mulDiv255(c.B, a),
		A: mulDiv255(c.A, a),
	}
}

// Layer composites the region r of dst with src, read starting at sp, using
// mode m. The source is faded by opacity in [0, 1] first.
func Layer(dst *image.RGBA, r image.Rectangle, src *image.RGBA, sp image.Point, m Mode, opacity float32) {
	r = r.Intersect(dst.Rect)
	// Clip r so every source read stays inside src.
	sr := r.Add(sp.Sub(r.Min)).Intersect(src.Rect)
	r = sr.Add(r.Min.Sub(sp))
	if r.Empty() {
		return
	}
	sp = sr.Min
	fade := toByte(opacity)
	if fade == 0 {
		return
	}

	for y := 0; y < r.Dy(); y++ {
		di := dst.PixOffset(r.Min.X, r.Min.Y+y)
		si := src.PixOffset(sp.X, sp.Y+y)
		for x := 0; x < r.Dx(); x++ {
			s := scale(color.RGBA{R: src.Pix[si], G: src.Pix[si+1], B: src.Pix[si+2], A: src.Pix[si+3]}, fade)
			d := color.RGBA{R: dst.Pix[di], G: dst.Pix[di+1], B: dst.Pix[di+2], A: dst.Pix[di+3]}
			o := Pixel(s, d, m)
			dst.Pix[di], dst.Pix[di+1], dst.Pix[di+2], dst.Pix[di+3] = o.R, o.G, o.B, o.A
			di += 4
			si += 4
		}
	}
}
