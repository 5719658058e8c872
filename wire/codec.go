package wire

import (
	"encoding/binary"
	"fmt"
	"math"

	sb "github.com/gogpu/scenebridge"
	"github.com/gogpu/scenebridge/displaylist"
)

// Encode serializes dl into a pooled buffer. The caller owns the buffer and
// must Take or Free it.
func Encode(dl *displaylist.DisplayList) (*Buffer, Descriptor) {
	p := dl.Parts()
	desc := Descriptor{
		Pipeline:      p.Pipeline,
		Records:       uint32(dl.Len()),     //nolint:gosec // list sizes fit in u32
		ItemsBytes:    uint32(len(p.Items)), //nolint:gosec // list sizes fit in u32
		Glyphs:        section(len(p.Glyphs), GlyphSize),
		GradientStops: section(len(p.GradientStops), GradientStopSize),
		ComplexClips:  section(len(p.ComplexClips), ComplexClipSize),
		Filters:       section(len(p.Filters), FilterSize),
	}

	buf := newBuffer(int(desc.TotalBytes()))
	w := writer{buf: buf.data[:0]}
	w.buf = append(w.buf, p.Items...)
	for _, g := range p.Glyphs {
		w.u32(g.Index)
		w.point(g.Point)
	}
	for _, s := range p.GradientStops {
		w.f32(s.Offset)
		w.color(s.Color)
	}
	for _, c := range p.ComplexClips {
		w.rect(c.Rect)
		w.radius(c.Radii)
	}
	for _, f := range p.Filters {
		w.u32(uint32(f.Kind))
		w.f32(f.Value)
	}
	buf.data = w.buf
	return buf, desc
}

func section(count, size int) Section {
	return Section{Count: uint32(count), Bytes: uint32(count * size)} //nolint:gosec // list sizes fit in u32
}

// Decode reconstructs a display list from data and desc. The returned list
// copies everything it needs; data may be freed afterwards.
//
// The command stream framing is verified; record payloads are decoded lazily
// by the list's iterator.
func Decode(data []byte, desc Descriptor) (*displaylist.DisplayList, error) {
	if err := desc.check(len(data)); err != nil {
		return nil, err
	}

	r := reader{buf: data}
	items := append([]byte(nil), r.next(int(desc.ItemsBytes))...)

	p := displaylist.Parts{Pipeline: desc.Pipeline, Items: items}
	if n := desc.Glyphs.Count; n > 0 {
		p.Glyphs = make([]displaylist.GlyphInstance, n)
		for i := range p.Glyphs {
			p.Glyphs[i] = displaylist.GlyphInstance{Index: r.u32(), Point: r.point()}
		}
	}
	if n := desc.GradientStops.Count; n > 0 {
		p.GradientStops = make([]displaylist.GradientStop, n)
		for i := range p.GradientStops {
			p.GradientStops[i] = displaylist.GradientStop{Offset: r.f32(), Color: r.color()}
		}
	}
	if n := desc.ComplexClips.Count; n > 0 {
		p.ComplexClips = make([]displaylist.ComplexClipRegion, n)
		for i := range p.ComplexClips {
			p.ComplexClips[i] = displaylist.ComplexClipRegion{Rect: r.rect(), Radii: r.radius()}
		}
	}
	if n := desc.Filters.Count; n > 0 {
		p.Filters = make([]displaylist.FilterOp, n)
		for i := range p.Filters {
			p.Filters[i] = displaylist.FilterOp{Kind: displaylist.FilterKind(r.u32()), Value: r.f32()}
		}
	}

	dl, err := displaylist.New(p)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrMalformed, err)
	}
	if uint32(dl.Len()) != desc.Records { //nolint:gosec // list sizes fit in u32
		return nil, fmt.Errorf("%w: stream holds %d records, descriptor says %d", ErrMalformed, dl.Len(), desc.Records)
	}
	return dl, nil
}

// DecodeMessage is Decode for a descriptor still in marshaled form.
func DecodeMessage(data, descriptor []byte) (*displaylist.DisplayList, error) {
	var desc Descriptor
	if err := desc.UnmarshalBinary(descriptor); err != nil {
		return nil, err
	}
	return Decode(data, desc)
}

type writer struct {
	buf []byte
}

func (w *writer) u32(v uint32)     { w.buf = binary.LittleEndian.AppendUint32(w.buf, v) }
func (w *writer) f32(v float32)    { w.u32(math.Float32bits(v)) }
func (w *writer) point(p sb.Point) { w.f32(p.X); w.f32(p.Y) }
func (w *writer) size(s sb.Size)   { w.f32(s.Width); w.f32(s.Height) }
func (w *writer) rect(r sb.Rect)   { w.point(r.Origin); w.size(r.Size) }

func (w *writer) color(c sb.Color) { w.f32(c.R); w.f32(c.G); w.f32(c.B); w.f32(c.A) }

func (w *writer) radius(b sb.BorderRadius) {
	w.size(b.TopLeft)
	w.size(b.TopRight)
	w.size(b.BottomLeft)
	w.size(b.BottomRight)
}

// reader walks a buffer already validated against its descriptor.
type reader struct {
	buf []byte
	off int
}

func (r *reader) next(n int) []byte {
	b := r.buf[r.off : r.off+n]
	r.off += n
	return b
}

func (r *reader) u32() uint32     { return binary.LittleEndian.Uint32(r.next(4)) }
func (r *reader) f32() float32    { return math.Float32frombits(r.u32()) }
func (r *reader) point() sb.Point { return sb.Point{X: r.f32(), Y: r.f32()} }
func (r *reader) size() sb.Size   { return sb.Size{Width: r.f32(), Height: r.f32()} }
func (r *reader) rect() sb.Rect   { return sb.Rect{Origin: r.point(), Size: r.size()} }

func (r *reader) color() sb.Color {
	return sb.Color{R: r.f32(), G: r.f32(), B: r.f32(), A: r.f32()}
}

func (r *reader) radius() sb.BorderRadius {
	return sb.BorderRadius{TopLeft: r.size(), TopRight: r.size(), BottomLeft: r.size(), BottomRight: r.size()}
}
