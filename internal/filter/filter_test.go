package filter

import (
	"image"
	"image/color"
	"testing"
)

func solid(w, h int, c color.RGBA) *image.RGBA {
	img := image.NewRGBA(image.Rect(0, 0, w, h))
	for i := 0; i < len(img.Pix); i += 4 {
		img.Pix[i], img.Pix[i+1], img.Pix[i+2], img.Pix[i+3] = c.R, c.G, c.B, c.A
	}
	return img
}

func approx(a, b color.RGBA) bool {
	d := func(x, y uint8) bool { return int(x)-int(y) <= 2 && int(y)-int(x) <= 2 }
	return d(a.R, b.R) && d(a.G, b.G) && d(a.B, b.B) && d(a.A, b.A)
}

func TestMatrices(t *testing.T) {
	red := color.RGBA{R: 255, A: 255}
	halfGray := color.RGBA{R: 64, G: 64, B: 64, A: 128} // straight 0.5 gray at alpha 0.5

	tests := []struct {
		name string
		m    Matrix
		in   color.RGBA
		want color.RGBA
	}{
		{"identity", Identity(), red, red},
		{"brightness 0", Brightness(0), red, color.RGBA{A: 255}},
		{"brightness 0.5", Brightness(0.5), red, color.RGBA{R: 128, A: 255}},
		{"contrast 0", Contrast(0), red, color.RGBA{R: 128, G: 128, B: 128, A: 255}},
		{"grayscale", Grayscale(1), red, color.RGBA{R: 54, G: 54, B: 54, A: 255}},
		{"grayscale clamps", Grayscale(5), red, color.RGBA{R: 54, G: 54, B: 54, A: 255}},
		{"invert", Invert(1), red, color.RGBA{G: 255, B: 255, A: 255}},
		{"invert half", Invert(0.5), red, color.RGBA{R: 128, G: 128, B: 128, A: 255}},
		{"opacity", Opacity(0.5), red, color.RGBA{R: 128, A: 128}},
		{"hue rotate 0", HueRotate(0), red, red},
		{"hue rotate 360", HueRotate(360), red, red},
		{"sepia 0", Sepia(0), red, red},
		{"premultiplied input", Brightness(2), halfGray, color.RGBA{R: 128, G: 128, B: 128, A: 128}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			img := solid(1, 1, tt.in)
			tt.m.Apply(img, img.Rect)
			if got := img.RGBAAt(0, 0); !approx(got, tt.want) {
				t.Errorf("Apply() = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestThen(t *testing.T) {
	red := color.RGBA{R: 255, A: 255}
	a := solid(1, 1, red)
	b := solid(1, 1, red)

	Brightness(0.5).Apply(a, a.Rect)
	Opacity(0.5).Apply(a, a.Rect)
	Brightness(0.5).Then(Opacity(0.5)).Apply(b, b.Rect)

	if !approx(a.RGBAAt(0, 0), b.RGBAAt(0, 0)) {
		t.Errorf("Then() = %v, sequential = %v", b.RGBAAt(0, 0), a.RGBAAt(0, 0))
	}
}

func TestApplyRegion(t *testing.T) {
	img := solid(4, 1, color.RGBA{R: 255, A: 255})
	Brightness(0).Apply(img, image.Rect(2, 0, 10, 1))
	if img.RGBAAt(1, 0).R != 255 || img.RGBAAt(2, 0).R != 0 {
		t.Errorf("region not respected: %v %v", img.RGBAAt(1, 0), img.RGBAAt(2, 0))
	}
}

func TestBlur(t *testing.T) {
	img := image.NewRGBA(image.Rect(0, 0, 21, 21))
	img.SetRGBA(10, 10, color.RGBA{R: 255, A: 255})

	Blur(img, img.Rect, 0)
	if img.RGBAAt(10, 10).A != 255 {
		t.Fatal("zero radius changed the image")
	}

	Blur(img, img.Rect, 2)
	center, near := img.RGBAAt(10, 10).A, img.RGBAAt(11, 10).A
	if center == 255 || center == 0 || near == 0 {
		t.Errorf("blur did not spread: center=%d near=%d", center, near)
	}
	if img.RGBAAt(0, 0).A != 0 {
		t.Errorf("corner = %d, want 0", img.RGBAAt(0, 0).A)
	}
}

func TestShadow(t *testing.T) {
	src := image.NewRGBA(image.Rect(10, 10, 20, 20))
	for i := 3; i < len(src.Pix); i += 4 {
		src.Pix[i] = 255
	}
	blue := color.RGBA{B: 200, A: 200}

	flat := Shadow(src, blue, 0)
	if flat.Rect != src.Rect {
		t.Errorf("unblurred bounds = %v, want %v", flat.Rect, src.Rect)
	}
	if got := flat.RGBAAt(15, 15); got != blue {
		t.Errorf("unblurred center = %v, want %v", got, blue)
	}

	soft := Shadow(src, blue, 2)
	if want := src.Rect.Inset(-Outset(2)); soft.Rect != want {
		t.Errorf("blurred bounds = %v, want %v", soft.Rect, want)
	}
	if soft.RGBAAt(9, 15).A == 0 {
		t.Error("blurred shadow does not extend past the source")
	}
}
