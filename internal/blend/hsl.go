package blend

// rgbFunc is a non-separable B(Cb, Cs) on straight colors.
type rgbFunc func(sr, sg, sb, dr, dg, db float32) (r, g, b float32)

// Indexed by mode - ModeHue.
var nonSeparable = [...]rgbFunc{
	// Hue of the source, saturation and luminosity of the backdrop.
	func(sr, sg, sb, dr, dg, db float32) (float32, float32, float32) {
		r, g, b := setSat(sr, sg, sb, sat(dr, dg, db))
		return setLum(r, g, b, lum(dr, dg, db))
	},
	// Saturation of the source.
	func(sr, sg, sb, dr, dg, db float32) (float32, float32, float32) {
		r, g, b := setSat(dr, dg, db, sat(sr, sg, sb))
		return setLum(r, g, b, lum(dr, dg, db))
	},
	// Hue and saturation of the source.
	func(sr, sg, sb, dr, dg, db float32) (float32, float32, float32) {
		return setLum(sr, sg, sb, lum(dr, dg, db))
	},
	// Luminosity of the source.
	func(sr, sg, sb, dr, dg, db float32) (float32, float32, float32) {
		return setLum(dr, dg, db, lum(sr, sg, sb))
	},
}

func lum(r, g, b float32) float32 { return 0.3*r + 0.59*g + 0.11*b }

func sat(r, g, b float32) float32 {
	return max(r, g, b) - min(r, g, b)
}

func setLum(r, g, b, l float32) (float32, float32, float32) {
	d := l - lum(r, g, b)
	return clipColor(r+d, g+d, b+d)
}

// clipColor pulls out-of-range components toward the luminosity.
func clipColor(r, g, b float32) (float32, float32, float32) {
	l := lum(r, g, b)
	n, x := min(r, g, b), max(r, g, b)
	if n < 0 && l != n {
		f := l / (l - n)
		r, g, b = l+(r-l)*f, l+(g-l)*f, l+(b-l)*f
	}
	if x > 1 && x != l {
		f := (1 - l) / (x - l)
		r, g, b = l+(r-l)*f, l+(g-l)*f, l+(b-l)*f
	}
	return r, g, b
}

func setSat(r, g, b, s float32) (float32, float32, float32) {
	c := [3]*float32{&r, &g, &b}
	// Sort pointers so c[0] <= c[1] <= c[2].
	if *c[0] > *c[1] {
		c[0], c[1] = c[1], c[0]
	}
	if *c[1] > *c[2] {
		c[1], c[2] = c[2], c[1]
	}
	if *c[0] > *c[1] {
		c[0], c[1] = c[1], c[0]
	}
	lo, mid, hi := *c[0], *c[1], *c[2]
	if hi > lo {
		*c[1] = (mid - lo) * s / (hi - lo)
		*c[2] = s
	} else {
		*c[1], *c[2] = 0, 0
	}
	*c[0] = 0
	return r, g, b
}
