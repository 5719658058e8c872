package blend

import (
	"image"
	"image/color"
	"testing"
)

func near(a, b color.RGBA, tol int) bool {
	d := func(x, y uint8) bool {
		v := int(x) - int(y)
		return v >= -tol && v <= tol
	}
	return d(a.R, b.R) && d(a.G, b.G) && d(a.B, b.B) && d(a.A, b.A)
}

func TestPixel(t *testing.T) {
	red := color.RGBA{R: 255, A: 255}
	gray := color.RGBA{R: 128, G: 128, B: 128, A: 255}
	halfBlue := color.RGBA{B: 128, A: 128}

	tests := []struct {
		name string
		s, d color.RGBA
		mode Mode
		want color.RGBA
	}{
		{"normal opaque", red, gray, ModeNormal, red},
		{"normal half", halfBlue, red, ModeNormal, color.RGBA{R: 127, B: 128, A: 255}},
		{"transparent source", color.RGBA{}, gray, ModeMultiply, gray},
		{"empty backdrop", red, color.RGBA{}, ModeScreen, red},
		{"multiply", red, gray, ModeMultiply, color.RGBA{R: 128, A: 255}},
		{"screen", red, gray, ModeScreen, color.RGBA{R: 255, G: 128, B: 128, A: 255}},
		{"darken", red, gray, ModeDarken, color.RGBA{R: 128, A: 255}},
		{"lighten", red, gray, ModeLighten, color.RGBA{R: 255, G: 128, B: 128, A: 255}},
		{"difference", red, gray, ModeDifference, color.RGBA{R: 127, G: 128, B: 128, A: 255}},
		{"exclusion self", gray, gray, ModeExclusion, color.RGBA{R: 128, G: 128, B: 128, A: 255}},
		{"luminosity of gray onto red", gray, red, ModeLuminosity, color.RGBA{R: 255, G: 74, B: 74, A: 255}},
		{"color of red onto gray", red, gray, ModeColor, color.RGBA{R: 255, G: 74, B: 74, A: 255}},
		{"unknown mode", red, gray, Mode(99), red},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := Pixel(tt.s, tt.d, tt.mode); !near(got, tt.want, 2) {
				t.Errorf("Pixel() = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestPixelAlphaIsSourceOver(t *testing.T) {
	s := color.RGBA{R: 60, G: 20, A: 100}
	d := color.RGBA{G: 90, B: 40, A: 200}
	want := over(s, d).A
	for m := ModeNormal; m < modeCount; m++ {
		if got := Pixel(s, d, m).A; int(got)-int(want) > 1 || int(want)-int(got) > 1 {
			t.Errorf("%s: alpha = %d, want %d", m, got, want)
		}
	}
}

func TestLayer(t *testing.T) {
	dst := image.NewRGBA(image.Rect(0, 0, 4, 4))
	src := image.NewRGBA(image.Rect(0, 0, 2, 2))
	for i := range src.Pix {
		src.Pix[i] = 255
	}

	// The source is 2x2, so only the top-left quadrant of r is drawn.
	Layer(dst, image.Rect(1, 1, 4, 4), src, image.Point{}, ModeNormal, 0.5)

	tests := []struct {
		x, y int
		want uint8
	}{
		{0, 0, 0},
		{1, 1, 128},
		{2, 2, 128},
		{3, 3, 0},
	}
	for _, tt := range tests {
		if got := dst.RGBAAt(tt.x, tt.y).A; got != tt.want {
			t.Errorf("alpha at (%d,%d) = %d, want %d", tt.x, tt.y, got, tt.want)
		}
	}
}

func TestModeString(t *testing.T) {
	if ModeColorDodge.String() != "color-dodge" || Mode(40).String() != "unknown" {
		t.Error("Mode.String() mismatch")
	}
	if !ModeExclusion.Separable() || ModeHue.Separable() {
		t.Error("Separable() mismatch")
	}
}

func BenchmarkLayer(b *testing.B) {
	dst := image.NewRGBA(image.Rect(0, 0, 256, 256))
	src := image.NewRGBA(image.Rect(0, 0, 256, 256))
	for i := range src.Pix {
		src.Pix[i] = uint8(i)
	}
	for b.Loop() {
		Layer(dst, dst.Rect, src, image.Point{}, ModeOverlay, 1)
	}
}
