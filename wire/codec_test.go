package wire

import (
	"encoding/binary"
	"errors"
	"math/rand/v2"
	"testing"

	sb "github.com/gogpu/scenebridge"
	"github.com/gogpu/scenebridge/displaylist"
)

var testPipeline = sb.PipelineID{Namespace: 1, ID: 1}

func sampleList(t testing.TB) *displaylist.DisplayList {
	t.Helper()
	b := displaylist.NewBuilder(sb.NewContexts().Producer, testPipeline)
	b.Begin(640, 480)
	rect := sb.NewRect(50, 50, 100, 100)
	clip := b.NewClipRegion(rect, []displaylist.ComplexClipRegion{
		{Rect: rect, Radii: sb.UniformRadius(12)},
	}, &displaylist.ImageMask{Image: sb.ImageKey{Namespace: 1, ID: 4}, Rect: rect})
	b.PushRect(rect, clip, sb.Color{R: 1, A: 1})
	b.PushText(rect, clip, []displaylist.GlyphInstance{
		{Index: 36, Point: sb.Point{X: 50, Y: 70}},
		{Index: 72, Point: sb.Point{X: 60, Y: 70}},
	}, sb.FontKey{Namespace: 1, ID: 1}, sb.Black, 14)
	b.PushStackingContextWith(displaylist.StackingContext{
		Bounds:    rect,
		Opacity:   0.5,
		Transform: sb.Translation4(10, 0),
		BlendMode: displaylist.BlendScreen,
		Filters:   []displaylist.FilterOp{{Kind: displaylist.FilterBlur, Value: 2}},
	})
	b.PushGradient(rect, displaylist.SimpleClip(rect), sb.Point{X: 50}, sb.Point{X: 150},
		[]displaylist.GradientStop{{Offset: 0, Color: sb.White}, {Offset: 1, Color: sb.Black}},
		displaylist.ExtendClamp, rect.Size, sb.Size{})
	b.PopStackingContext()
	b.End()
	dl, err := b.Finalize()
	if err != nil {
		t.Fatalf("Finalize() error = %v", err)
	}
	return dl
}

func TestRoundTrip(t *testing.T) {
	dl := sampleList(t)
	buf, desc := Encode(dl)
	defer buf.Free()

	if got := uint64(buf.Len()); got != desc.TotalBytes() {
		t.Fatalf("Len() = %d, descriptor says %d", got, desc.TotalBytes())
	}
	got, err := Decode(buf.Bytes(), desc)
	if err != nil {
		t.Fatalf("Decode() error = %v", err)
	}
	if !got.Equal(dl) {
		t.Error("Decode(Encode(dl)) is not structurally equal to dl")
	}
	if err := got.Validate(); err != nil {
		t.Errorf("Validate() error = %v", err)
	}
}

func TestRoundTripEmpty(t *testing.T) {
	dl := displaylist.Empty(testPipeline)
	buf, desc := Encode(dl)
	data := buf.Take()
	if len(data) != 0 {
		t.Fatalf("encoded empty list has %d bytes", len(data))
	}
	got, err := Decode(data, desc)
	if err != nil {
		t.Fatalf("Decode() error = %v", err)
	}
	if !got.Equal(dl) || got.Len() != 0 {
		t.Error("empty list did not round-trip")
	}
}

func TestEncodeDeterministic(t *testing.T) {
	a, da := Encode(sampleList(t))
	b, db := Encode(sampleList(t))
	defer a.Free()
	defer b.Free()
	if da != db {
		t.Errorf("descriptors differ: %+v vs %+v", da, db)
	}
	if string(a.Bytes()) != string(b.Bytes()) {
		t.Error("encodings differ for identical lists")
	}
}

// TestRoundTripRandom encodes randomly built lists and checks structural
// equality after decoding.
func TestRoundTripRandom(t *testing.T) {
	rng := rand.New(rand.NewPCG(7, 11))
	for iter := range 200 {
		b := displaylist.NewBuilder(sb.NewContexts().Producer, testPipeline)
		b.Begin(100, 100)
		depth := 0
		for range rng.IntN(30) {
			r := sb.NewRect(rng.Float32()*100, rng.Float32()*100, rng.Float32()*50, rng.Float32()*50)
			switch rng.IntN(5) {
			case 0:
				b.PushRect(r, displaylist.SimpleClip(r), sb.Color{R: rng.Float32(), A: 1})
			case 1:
				n := rng.IntN(4)
				glyphs := make([]displaylist.GlyphInstance, n)
				for i := range glyphs {
					glyphs[i] = displaylist.GlyphInstance{Index: rng.Uint32(), Point: r.Origin}
				}
				b.PushText(r, displaylist.SimpleClip(r), glyphs, sb.FontKey{ID: 1}, sb.Black, 12)
			case 2:
				b.PushStackingContext(r, rng.Float32(), sb.Identity4(), displaylist.BlendNormal)
				depth++
			case 3:
				if depth > 0 {
					b.PopStackingContext()
					depth--
				}
			case 4:
				clip := b.NewClipRegion(r, []displaylist.ComplexClipRegion{{Rect: r}}, nil)
				b.PushBoxShadow(r, clip, displaylist.BoxShadow{BoxBounds: r, BlurRadius: rng.Float32() * 5})
			}
		}
		for ; depth > 0; depth-- {
			b.PopStackingContext()
		}
		b.End()
		dl, err := b.Finalize()
		if err != nil {
			t.Fatalf("iter %d: Finalize() error = %v", iter, err)
		}

		buf, desc := Encode(dl)
		got, err := Decode(buf.Bytes(), desc)
		buf.Free()
		if err != nil {
			t.Fatalf("iter %d: Decode() error = %v", iter, err)
		}
		if !got.Equal(dl) {
			t.Fatalf("iter %d: round trip mismatch", iter)
		}
	}
}

func TestDecodeMalformed(t *testing.T) {
	dl := sampleList(t)
	buf, desc := Encode(dl)
	data := buf.Take()

	tests := []struct {
		name string
		data []byte
		desc func(d Descriptor) Descriptor
	}{
		{"short buffer", data[:len(data)-4], func(d Descriptor) Descriptor { return d }},
		{"trailing bytes", append(append([]byte(nil), data...), 0, 0, 0, 0), func(d Descriptor) Descriptor { return d }},
		{"items exceed buffer", data, func(d Descriptor) Descriptor {
			d.ItemsBytes += 1 << 20
			return d
		}},
		{"count mismatch", data, func(d Descriptor) Descriptor {
			d.Glyphs.Count++
			return d
		}},
		{"unaligned items", data, func(d Descriptor) Descriptor {
			d.ItemsBytes -= 2
			d.Filters.Bytes += 2
			return d
		}},
		{"record count", data, func(d Descriptor) Descriptor {
			d.Records++
			return d
		}},
		{"dropped record", data, func(d Descriptor) Descriptor {
			// Drop the final pop from the stream, keeping the total length.
			d.ItemsBytes -= 8
			d.Filters.Count++
			d.Filters.Bytes += FilterSize
			return d
		}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Decode(tt.data, tt.desc(desc))
			if !errors.Is(err, ErrMalformed) {
				t.Errorf("Decode() error = %v, want ErrMalformed", err)
			}
		})
	}
}

func TestDescriptorBinary(t *testing.T) {
	_, desc := Encode(sampleList(t))
	b, err := desc.MarshalBinary()
	if err != nil {
		t.Fatalf("MarshalBinary() error = %v", err)
	}
	if len(b) != DescriptorSize {
		t.Fatalf("MarshalBinary() len = %d, want %d", len(b), DescriptorSize)
	}
	if m := binary.LittleEndian.Uint32(b); m != Magic {
		t.Errorf("magic = 0x%08x", m)
	}

	var got Descriptor
	if err := got.UnmarshalBinary(b); err != nil {
		t.Fatalf("UnmarshalBinary() error = %v", err)
	}
	if got != desc {
		t.Errorf("UnmarshalBinary() = %+v, want %+v", got, desc)
	}

	tests := []struct {
		name   string
		mutate func(b []byte) []byte
	}{
		{"short", func(b []byte) []byte { return b[:60] }},
		{"magic", func(b []byte) []byte { b[0] ^= 0xff; return b }},
		{"version", func(b []byte) []byte { b[4] = 9; return b }},
		{"size", func(b []byte) []byte { b[8] = 32; return b }},
		{"reserved", func(b []byte) []byte { b[60] = 1; return b }},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			bad := tt.mutate(append([]byte(nil), b...))
			var d Descriptor
			if err := d.UnmarshalBinary(bad); !errors.Is(err, ErrMalformed) {
				t.Errorf("UnmarshalBinary() error = %v, want ErrMalformed", err)
			}
		})
	}
}

func TestDecodeMessage(t *testing.T) {
	dl := sampleList(t)
	buf, desc := Encode(dl)
	defer buf.Free()
	raw, _ := desc.MarshalBinary()
	got, err := DecodeMessage(buf.Bytes(), raw)
	if err != nil {
		t.Fatalf("DecodeMessage() error = %v", err)
	}
	if !got.Equal(dl) {
		t.Error("DecodeMessage() result differs")
	}
}

func TestBufferOwnership(t *testing.T) {
	tests := []struct {
		name    string
		release func(b *Buffer)
		use     func(b *Buffer)
	}{
		{"bytes after free", func(b *Buffer) { b.Free() }, func(b *Buffer) { b.Bytes() }},
		{"take after take", func(b *Buffer) { b.Take() }, func(b *Buffer) { b.Take() }},
		{"free after take", func(b *Buffer) { b.Take() }, func(b *Buffer) { b.Free() }},
		{"double free", func(b *Buffer) { b.Free() }, func(b *Buffer) { b.Free() }},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			buf, _ := Encode(sampleList(t))
			tt.release(buf)
			if !buf.Released() {
				t.Fatal("Released() = false")
			}
			defer func() {
				if r := recover(); r != ErrBufferReleased {
					t.Errorf("panic = %v, want ErrBufferReleased", r)
				}
			}()
			tt.use(buf)
		})
	}
}

func TestBufferTakeKeepsBytes(t *testing.T) {
	dl := sampleList(t)
	buf, desc := Encode(dl)
	data := buf.Take()

	// Churn the pool; taken bytes must not be reused.
	for range 8 {
		b, _ := Encode(displaylist.Empty(testPipeline))
		b.Free()
	}
	got, err := Decode(data, desc)
	if err != nil {
		t.Fatalf("Decode() error = %v", err)
	}
	if !got.Equal(dl) {
		t.Error("taken bytes were modified")
	}
}

func BenchmarkEncode(b *testing.B) {
	dl := sampleList(b)
	b.ReportAllocs()
	for b.Loop() {
		buf, _ := Encode(dl)
		buf.Free()
	}
}

func BenchmarkDecode(b *testing.B) {
	dl := sampleList(b)
	buf, desc := Encode(dl)
	data := buf.Take()
	b.ReportAllocs()
	for b.Loop() {
		_, _ = Decode(data, desc)
	}
}
