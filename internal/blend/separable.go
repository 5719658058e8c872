package blend

import "github.com/chewxy/math32"

// channelFunc is B(Cb, Cs) for one straight color channel in [0, 1].
type channelFunc func(b, s float32) float32

var separable = [...]channelFunc{
	ModeNormal:     func(_, s float32) float32 { return s },
	ModeMultiply:   multiply,
	ModeScreen:     screen,
	ModeOverlay:    func(b, s float32) float32 { return hardLight(s, b) },
	ModeDarken:     math32.Min,
	ModeLighten:    math32.Max,
	ModeColorDodge: colorDodge,
	ModeColorBurn:  colorBurn,
	ModeHardLight:  hardLight,
	ModeSoftLight:  softLight,
	ModeDifference: func(b, s float32) float32 { return math32.Abs(b - s) },
	ModeExclusion:  func(b, s float32) float32 { return b + s - 2*b*s },
}

func multiply(b, s float32) float32 { return b * s }

func screen(b, s float32) float32 { return b + s - b*s }

func hardLight(b, s float32) float32 {
	if s <= 0.5 {
		return multiply(b, 2*s)
	}
	return screen(b, 2*s-1)
}

func colorDodge(b, s float32) float32 {
	switch {
	case b == 0:
		return 0
	case s >= 1:
		return 1
	}
	return math32.Min(1, b/(1-s))
}

func colorBurn(b, s float32) float32 {
	switch {
	case b >= 1:
		return 1
	case s <= 0:
		return 0
	}
	return 1 - math32.Min(1, (1-b)/s)
}

func softLight(b, s float32) float32 {
	if s <= 0.5 {
		return b - (1-2*s)*b*(1-b)
	}
	var d float32
	if b <= 0.25 {
		d = ((16*b-12)*b + 4) * b
	} else {
		d = math32.Sqrt(b)
	}
	return b + (2*s-1)*(d-b)
}
