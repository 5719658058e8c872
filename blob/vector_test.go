package blob

import (
	"errors"
	"testing"

	sb "github.com/gogpu/scenebridge"
	"github.com/gogpu/scenebridge/resource"
)

func TestVectorRasterizerFill(t *testing.T) {
	var enc Encoder
	enc.Clear(sb.White)
	enc.Rect(sb.NewRect(0, 0, 4, 4))
	enc.Fill(sb.Color{R: 1, A: 1})

	desc := resource.ImageDescriptor{Format: resource.FormatBGRA8, Width: 8, Height: 8}
	dst := make([]byte, desc.Size())
	if err := (VectorRasterizer{}).Rasterize(enc.Bytes(), desc, nil, dst); err != nil {
		t.Fatalf("Rasterize() error = %v", err)
	}

	tests := []struct {
		name       string
		x, y       int
		b, g, r, a byte
	}{
		{"inside", 1, 1, 0, 0, 0xff, 0xff},
		{"outside", 6, 6, 0xff, 0xff, 0xff, 0xff},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			p := dst[(tt.y*8+tt.x)*4:]
			if p[0] != tt.b || p[1] != tt.g || p[2] != tt.r || p[3] != tt.a {
				t.Errorf("pixel = %v, want BGRA %v", p[:4], []byte{tt.b, tt.g, tt.r, tt.a})
			}
		})
	}
}

func TestVectorRasterizerTransformAndA8(t *testing.T) {
	var enc Encoder
	enc.Transform(1, 0, 4, 0, 1, 0) // translate x by 4
	enc.Rect(sb.NewRect(0, 0, 2, 2))
	enc.Fill(sb.Black)

	desc := resource.ImageDescriptor{Format: resource.FormatA8, Width: 8, Height: 2}
	dst := make([]byte, desc.Size())
	if err := (VectorRasterizer{}).Rasterize(enc.Bytes(), desc, nil, dst); err != nil {
		t.Fatal(err)
	}
	if dst[0] != 0 {
		t.Errorf("coverage at x=0 = %d, want 0", dst[0])
	}
	if dst[5] != 0xff {
		t.Errorf("coverage at x=5 = %d, want 255", dst[5])
	}
}

func TestVectorRasterizerDirty(t *testing.T) {
	var enc Encoder
	enc.Clear(sb.White)

	desc := resource.ImageDescriptor{Format: resource.FormatA8, Width: 4, Height: 4}
	dst := make([]byte, desc.Size())
	dirty := sb.NewRect(0, 0, 2, 2)
	if err := (VectorRasterizer{}).Rasterize(enc.Bytes(), desc, &dirty, dst); err != nil {
		t.Fatal(err)
	}
	if dst[0] != 0xff {
		t.Errorf("inside dirty = %d, want 255", dst[0])
	}
	if dst[3*4+3] != 0 {
		t.Errorf("outside dirty = %d, want untouched", dst[3*4+3])
	}
}

func TestVectorRasterizerErrors(t *testing.T) {
	bgra := resource.ImageDescriptor{Format: resource.FormatBGRA8, Width: 1, Height: 1}
	var enc Encoder
	enc.MoveTo(0, 0)
	truncated := enc.Bytes()[:8]

	tests := []struct {
		name string
		data []byte
		desc resource.ImageDescriptor
		want error
	}{
		{"format", nil, resource.ImageDescriptor{Format: resource.FormatRGBAF32, Width: 1, Height: 1}, ErrUnsupportedFormat},
		{"partial word", []byte{1, 2}, bgra, ErrBadCommands},
		{"unknown command", []byte{0x7f, 0, 0, 0}, bgra, ErrBadCommands},
		{"truncated args", truncated, bgra, ErrBadCommands},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			dst := make([]byte, tt.desc.Size())
			err := (VectorRasterizer{}).Rasterize(tt.data, tt.desc, nil, dst)
			if !errors.Is(err, tt.want) {
				t.Errorf("Rasterize() error = %v, want %v", err, tt.want)
			}
		})
	}
}

func TestVectorThroughCache(t *testing.T) {
	var enc Encoder
	enc.Clear(sb.Color{B: 1, A: 1})
	c := NewCache(VectorRasterizer{})
	key := sb.ImageKey{Namespace: 2, ID: 1}
	c.Request(Request{Key: key, Data: enc.Bytes(), Desc: desc2x2})
	res, err := c.Resolve(key)
	if err != nil {
		t.Fatal(err)
	}
	if res.Pixels[0] != 0xff || res.Pixels[2] != 0 {
		t.Errorf("pixel = %v, want blue in BGRA", res.Pixels[:4])
	}
}

func TestCommandString(t *testing.T) {
	if CmdCubicTo.String() != "CubicTo" || Command(0x99).String() != "Unknown" {
		t.Error("Command.String() mismatch")
	}
}

func BenchmarkVectorRasterizer(b *testing.B) {
	var enc Encoder
	for i := range 32 {
		f := float32(i)
		enc.MoveTo(f, 0)
		enc.CubicTo(f+10, 20, f+20, 40, f+30, 64)
		enc.LineTo(f, 64)
		enc.Close()
		enc.Fill(sb.Color{R: 0.5, G: 0.2, A: 0.5})
	}
	desc := resource.ImageDescriptor{Format: resource.FormatBGRA8, Width: 64, Height: 64}
	dst := make([]byte, desc.Size())
	b.ResetTimer()
	for b.Loop() {
		_ = (VectorRasterizer{}).Rasterize(enc.Bytes(), desc, nil, dst)
	}
}
