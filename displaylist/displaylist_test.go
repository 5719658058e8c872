package displaylist

import (
	"encoding/binary"
	"errors"
	"testing"

	sb "github.com/gogpu/scenebridge"
)

func buildSample(t *testing.T) *DisplayList {
	t.Helper()
	b := newTestBuilder()
	b.Begin(300, 200)
	rect := sb.NewRect(10, 10, 100, 50)
	clip := b.NewClipRegion(rect, []ComplexClipRegion{{Rect: rect, Radii: sb.UniformRadius(3)}}, nil)
	b.PushRect(rect, clip, sb.Color{G: 1, A: 1})
	b.PushBorder(rect, clip, sb.SideOffsets{Top: 1, Right: 1, Bottom: 1, Left: 1},
		BorderSide{Color: sb.Black, Style: BorderStyleSolid},
		BorderSide{Color: sb.Black, Style: BorderStyleDashed},
		BorderSide{Color: sb.Black, Style: BorderStyleSolid},
		BorderSide{Color: sb.Black, Style: BorderStyleNone},
		sb.UniformRadius(2))
	b.PushBoxShadow(rect, SimpleClip(rect.Inflate(10, 10)), BoxShadow{
		BoxBounds:  rect,
		Offset:     sb.Point{X: 2, Y: 2},
		Color:      sb.Black.WithAlpha(0.5),
		BlurRadius: 4,
		ClipMode:   BoxShadowClipOutset,
	})
	b.PushImage(rect, SimpleClip(rect), sb.Size{Width: 16, Height: 16}, sb.Size{},
		ImageRenderingPixelated, sb.ImageKey{Namespace: 1, ID: 2})
	b.PushScrollLayer(sb.NewRect(0, 0, 300, 1000), sb.NewRect(0, 0, 300, 200), nil)
	b.PushIframe(rect, SimpleClip(rect), sb.PipelineID{Namespace: 1, ID: 2})
	b.PopScrollLayer()
	b.PushBorderImage(rect, SimpleClip(rect), sb.SideOffsets{Top: 4, Right: 4, Bottom: 4, Left: 4},
		sb.ImageKey{Namespace: 1, ID: 3}, NinePatch{Width: 12, Height: 12, Slice: sb.SideOffsets{Top: 4, Right: 4, Bottom: 4, Left: 4}},
		sb.SideOffsets{}, RepeatRound, RepeatStretch)
	b.PushBorderGradient(rect, SimpleClip(rect), sb.SideOffsets{Top: 2, Right: 2, Bottom: 2, Left: 2},
		sb.Point{}, sb.Point{X: 100}, []GradientStop{{0, sb.Black}, {1, sb.White}}, ExtendRepeat, sb.SideOffsets{})
	b.PushBorderRadialGradient(rect, SimpleClip(rect), sb.SideOffsets{Top: 2, Right: 2, Bottom: 2, Left: 2},
		RadialGradientSpec{EndCenter: sb.Point{X: 50, Y: 25}, EndRadius: 40,
			Stops: []GradientStop{{0, sb.White}, {1, sb.Black}}}, sb.SideOffsets{})
	b.End()
	dl, err := b.Finalize()
	if err != nil {
		t.Fatalf("Finalize() error = %v", err)
	}
	return dl
}

func TestDisplayListDecodeAllTags(t *testing.T) {
	dl := buildSample(t)
	if err := dl.Validate(); err != nil {
		t.Fatalf("Validate() error = %v", err)
	}
	seen := map[Tag]int{}
	it := dl.Items()
	for it.Next() {
		seen[it.Item().Tag]++
	}
	if err := it.Err(); err != nil {
		t.Fatalf("Items() error = %v", err)
	}
	for _, tag := range []Tag{
		TagRect, TagBorder, TagBoxShadow, TagImage, TagIframe, TagBorderImage,
		TagBorderGradient, TagBorderRadialGradient, TagPushScrollLayer, TagPopScrollLayer,
	} {
		if seen[tag] != 1 {
			t.Errorf("tag %v seen %d times, want 1", tag, seen[tag])
		}
	}
}

func TestDisplayListEqualAndHash(t *testing.T) {
	a := buildSample(t)
	b := buildSample(t)
	if !a.Equal(b) {
		t.Error("identical builds are not Equal")
	}
	if a.Hash() != b.Hash() {
		t.Errorf("Hash() = %x and %x for identical builds", a.Hash(), b.Hash())
	}

	other := newTestBuilder()
	other.Begin(300, 200)
	other.End()
	c, _ := other.Finalize()
	if a.Equal(c) {
		t.Error("different lists are Equal")
	}
	if a.Hash() == c.Hash() {
		t.Error("different lists hash the same")
	}
	if a.Equal(nil) {
		t.Error("Equal(nil) = true")
	}
}

func TestNewRejectsBadFraming(t *testing.T) {
	good := buildSample(t).Parts()

	tests := []struct {
		name  string
		items func() []byte
	}{
		{"truncated header", func() []byte { return good.Items[:5] }},
		{"truncated payload", func() []byte { return good.Items[:len(good.Items)-4] }},
		{"unaligned length", func() []byte {
			b := append([]byte(nil), good.Items...)
			binary.LittleEndian.PutUint32(b[4:], 3)
			return b
		}},
		{"huge length", func() []byte {
			b := append([]byte(nil), good.Items...)
			binary.LittleEndian.PutUint32(b[4:], 0xfffffffc)
			return b
		}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			p := good
			p.Items = tt.items()
			_, err := New(p)
			if !errors.Is(err, ErrMalformedRecord) {
				t.Errorf("New() error = %v, want ErrMalformedRecord", err)
			}
		})
	}
}

func TestValidate(t *testing.T) {
	good := buildSample(t).Parts()

	tests := []struct {
		name    string
		mutate  func(p *Parts)
		wantErr error
	}{
		{"valid", func(*Parts) {}, nil},
		{"missing glyph table", func(p *Parts) { p.Glyphs = nil }, nil},
		{"missing stops", func(p *Parts) { p.GradientStops = p.GradientStops[:1] }, ErrInvalidList},
		{"missing clips", func(p *Parts) { p.ComplexClips = nil }, ErrInvalidList},
		{"unknown tag", func(p *Parts) {
			p.Items = append([]byte(nil), p.Items...)
			p.Items[0] = 0xee
		}, ErrMalformedRecord},
		{"dropped final pop", func(p *Parts) {
			p.Items = p.Items[:len(p.Items)-RecordHeaderSize]
		}, ErrInvalidList},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			p := good
			tt.mutate(&p)
			dl, err := New(p)
			if err != nil {
				t.Fatalf("New() error = %v", err)
			}
			err = dl.Validate()
			if tt.wantErr == nil {
				if err != nil {
					t.Errorf("Validate() error = %v, want nil", err)
				}
				return
			}
			if !errors.Is(err, tt.wantErr) {
				t.Errorf("Validate() error = %v, want %v", err, tt.wantErr)
			}
		})
	}
}

func TestIteratorIndex(t *testing.T) {
	dl := buildSample(t)
	it := dl.Items()
	n := 0
	for it.Next() {
		if it.Index() != n {
			t.Fatalf("Index() = %d, want %d", it.Index(), n)
		}
		n++
	}
	if n != dl.Len() {
		t.Errorf("iterated %d records, Len() = %d", n, dl.Len())
	}
}

func TestTagClassification(t *testing.T) {
	tests := []struct {
		tag             Tag
		push, pop, draw bool
		name            string
	}{
		{TagRect, false, false, true, "Rect"},
		{TagRadialGradient, false, false, true, "RadialGradient"},
		{TagPushStackingContext, true, false, false, "PushStackingContext"},
		{TagPopScrollLayer, false, true, false, "PopScrollLayer"},
		{TagIframe, false, false, false, "Iframe"},
		{Tag(0x3f), false, false, false, "Unknown"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if tt.tag.IsPush() != tt.push || tt.tag.IsPop() != tt.pop || tt.tag.IsDraw() != tt.draw {
				t.Errorf("%v: push=%v pop=%v draw=%v", tt.tag, tt.tag.IsPush(), tt.tag.IsPop(), tt.tag.IsDraw())
			}
			if tt.tag.String() != tt.name {
				t.Errorf("String() = %q, want %q", tt.tag.String(), tt.name)
			}
		})
	}
}
