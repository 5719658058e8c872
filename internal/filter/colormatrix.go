// Package filter implements the stacking context filter operations on
// premultiplied RGBA layers: the CSS color-matrix filters and Gaussian blur.
package filter

import (
	"image"

	"github.com/chewxy/math32"
)

// Matrix is a 4x5 row-major color matrix applied to straight RGBA in [0, 1]:
//
//	[R']   [m0  m1  m2  m3  m4 ]   [R]
//	[G'] = [m5  m6  m7  m8  m9 ] * [G]
//	[B']   [m10 m11 m12 m13 m14]   [B]
//	[A']   [m15 m16 m17 m18 m19]   [A]
//	                               [1]
type Matrix [20]float32

// Identity returns the matrix that leaves colors unchanged.
func Identity() Matrix {
	return Matrix{
		1, 0, 0, 0, 0,
		0, 1, 0, 0, 0,
		0, 0, 1, 0, 0,
		0, 0, 0, 1, 0,
	}
}

// Rec. 709 luma weights used by the CSS filter definitions.
const (
	lumR = 0.2126
	lumG = 0.7152
	lumB = 0.0722
)

// Brightness scales color channels by amount.
func Brightness(amount float32) Matrix {
	return Matrix{
		amount, 0, 0, 0, 0,
		0, amount, 0, 0, 0,
		0, 0, amount, 0, 0,
		0, 0, 0, 1, 0,
	}
}

// Contrast scales color channels around mid-gray.
func Contrast(amount float32) Matrix {
	off := 0.5 - 0.5*amount
	return Matrix{
		amount, 0, 0, 0, off,
		0, amount, 0, 0, off,
		0, 0, amount, 0, off,
		0, 0, 0, 1, 0,
	}
}

// Saturate interpolates between luma (0) and the input color (1).
// Values above 1 oversaturate.
func Saturate(amount float32) Matrix {
	inv := 1 - amount
	return Matrix{
		lumR*inv + amount, lumG * inv, lumB * inv, 0, 0,
		lumR * inv, lumG*inv + amount, lumB * inv, 0, 0,
		lumR * inv, lumG * inv, lumB*inv + amount, 0, 0,
		0, 0, 0, 1, 0,
	}
}

// Grayscale converts amount (clamped to [0, 1]) of the way to luma.
func Grayscale(amount float32) Matrix {
	return Saturate(1 - clamp01(amount))
}

// Sepia tones amount (clamped to [0, 1]) of the way to sepia.
func Sepia(amount float32) Matrix {
	a := 1 - clamp01(amount)
	return Matrix{
		0.393 + 0.607*a, 0.769 - 0.769*a, 0.189 - 0.189*a, 0, 0,
		0.349 - 0.349*a, 0.686 + 0.314*a, 0.168 - 0.168*a, 0, 0,
		0.272 - 0.272*a, 0.534 - 0.534*a, 0.131 + 0.869*a, 0, 0,
		0, 0, 0, 1, 0,
	}
}

// Invert inverts amount (clamped to [0, 1]) of each color channel.
func Invert(amount float32) Matrix {
	a := clamp01(amount)
	k := 1 - 2*a
	return Matrix{
		k, 0, 0, 0, a,
		0, k, 0, 0, a,
		0, 0, k, 0, a,
		0, 0, 0, 1, 0,
	}
}

// Opacity multiplies alpha by amount (clamped to [0, 1]).
func Opacity(amount float32) Matrix {
	m := Identity()
	m[18] = clamp01(amount)
	return m
}

// HueRotate rotates hues by degrees.
func HueRotate(degrees float32) Matrix {
	sin, cos := math32.Sincos(degrees * math32.Pi / 180)
	return Matrix{
		lumR + cos*(1-lumR) - sin*lumR, lumG - cos*lumG - sin*lumG, lumB - cos*lumB + sin*(1-lumB), 0, 0,
		lumR - cos*lumR + sin*0.143, lumG + cos*(1-lumG) + sin*0.140, lumB - cos*lumB - sin*0.283, 0, 0,
		lumR - cos*lumR - sin*(1-lumR), lumG - cos*lumG + sin*lumG, lumB + cos*(1-lumB) + sin*lumB, 0, 0,
		0, 0, 0, 1, 0,
	}
}

// Then returns the matrix that applies m and then n.
func (m Matrix) Then(n Matrix) Matrix {
	var out Matrix
	for row := range 4 {
		for col := range 5 {
			var v float32
			for k := range 4 {
				v += n[row*5+k] * m[k*5+col]
			}
			if col == 4 {
				v += n[row*5+4]
			}
			out[row*5+col] = v
		}
	}
	return out
}

// Apply transforms the premultiplied pixels of img inside r in place.
func (m Matrix) Apply(img *image.RGBA, r image.Rectangle) {
	r = r.Intersect(img.Rect)
	for y := r.Min.Y; y < r.Max.Y; y++ {
		i := img.PixOffset(r.Min.X, y)
		for x := r.Min.X; x < r.Max.X; x++ {
			p := img.Pix[i : i+4 : i+4]
			var cr, cg, cb float32
			ca := float32(p[3]) / 255
			if ca > 0 {
				cr = float32(p[0]) / 255 / ca
				cg = float32(p[1]) / 255 / ca
				cb = float32(p[2]) / 255 / ca
			}
			nr := m[0]*cr + m[1]*cg + m[2]*cb + m[3]*ca + m[4]
			ng := m[5]*cr + m[6]*cg + m[7]*cb + m[8]*ca + m[9]
			nb := m[10]*cr + m[11]*cg + m[12]*cb + m[13]*ca + m[14]
			na := clamp01(m[15]*cr + m[16]*cg + m[17]*cb + m[18]*ca + m[19])
			p[0] = byte(clamp01(nr)*na*255 + 0.5)
			p[1] = byte(clamp01(ng)*na*255 + 0.5)
			p[2] = byte(clamp01(nb)*na*255 + 0.5)
			p[3] = byte(na*255 + 0.5)
			i += 4
		}
	}
}

func clamp01(v float32) float32 {
	return math32.Max(0, math32.Min(1, v))
}
