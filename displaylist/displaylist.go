package displaylist

import (
	"bytes"
	"encoding/binary"
	"errors"
	"fmt"
	"hash/fnv"
	"math"
	"slices"

	sb "github.com/gogpu/scenebridge"
)

// ErrInvalidList is returned by Validate when a list is framed correctly but
// its records are inconsistent with its side-tables or its scoping.
var ErrInvalidList = errors.New("displaylist: invalid display list")

// Parts is the raw content of a display list: the command stream and its
// four side-tables.
type Parts struct {
	Pipeline      sb.PipelineID
	Items         []byte
	Glyphs        []GlyphInstance
	GradientStops []GradientStop
	ComplexClips  []ComplexClipRegion
	Filters       []FilterOp
}

// DisplayList is an immutable, finalized display list for one pipeline.
type DisplayList struct {
	parts Parts
	count int
}

// New wraps parts as a display list after checking the record framing of
// the command stream. The slices are retained, not copied; callers hand
// over ownership.
func New(p Parts) (*DisplayList, error) {
	n, err := CountRecords(p.Items)
	if err != nil {
		return nil, err
	}
	return &DisplayList{parts: p, count: n}, nil
}

// Empty returns a display list with no items.
func Empty(pipeline sb.PipelineID) *DisplayList {
	return &DisplayList{parts: Parts{Pipeline: pipeline}}
}

// Pipeline returns the pipeline the list was built for.
func (dl *DisplayList) Pipeline() sb.PipelineID { return dl.parts.Pipeline }

// Len returns the number of records in the command stream.
func (dl *DisplayList) Len() int { return dl.count }

// Parts returns the list content. The slices are shared with the list and
// must not be modified.
func (dl *DisplayList) Parts() Parts { return dl.parts }

// Glyphs returns the glyph side-table entries addressed by r.
func (dl *DisplayList) Glyphs(r ItemRange) []GlyphInstance {
	return sub(dl.parts.Glyphs, r)
}

// GradientStops returns the gradient-stop side-table entries addressed by r.
func (dl *DisplayList) GradientStops(r ItemRange) []GradientStop {
	return sub(dl.parts.GradientStops, r)
}

// ComplexClips returns the complex-clip side-table entries addressed by r.
func (dl *DisplayList) ComplexClips(r ItemRange) []ComplexClipRegion {
	return sub(dl.parts.ComplexClips, r)
}

// Filters returns the filter side-table entries addressed by r.
func (dl *DisplayList) Filters(r ItemRange) []FilterOp {
	return sub(dl.parts.Filters, r)
}

// sub returns table[r] or nil when r is out of bounds.
func sub[T any](table []T, r ItemRange) []T {
	if r.Length == 0 || !r.within(len(table)) {
		return nil
	}
	return table[r.Start:r.End():r.End()]
}

// Equal reports structural equality over the command stream and all
// side-tables.
func (dl *DisplayList) Equal(o *DisplayList) bool {
	if dl == nil || o == nil {
		return dl == o
	}
	a, b := dl.parts, o.parts
	return a.Pipeline == b.Pipeline &&
		bytes.Equal(a.Items, b.Items) &&
		slices.Equal(a.Glyphs, b.Glyphs) &&
		slices.Equal(a.GradientStops, b.GradientStops) &&
		slices.Equal(a.ComplexClips, b.ComplexClips) &&
		slices.Equal(a.Filters, b.Filters)
}

// Hash returns an FNV-1a hash of the list content, stable across runs.
func (dl *DisplayList) Hash() uint64 {
	h := fnv.New64a()
	var word [4]byte
	put := func(v uint32) {
		binary.LittleEndian.PutUint32(word[:], v)
		_, _ = h.Write(word[:])
	}
	putF := func(v float32) { put(math.Float32bits(v)) }

	put(uint32(dl.parts.Pipeline.Namespace))
	put(dl.parts.Pipeline.ID)
	_, _ = h.Write(dl.parts.Items)
	for _, g := range dl.parts.Glyphs {
		put(g.Index)
		putF(g.Point.X)
		putF(g.Point.Y)
	}
	for _, s := range dl.parts.GradientStops {
		putF(s.Offset)
		putF(s.Color.R)
		putF(s.Color.G)
		putF(s.Color.B)
		putF(s.Color.A)
	}
	for _, c := range dl.parts.ComplexClips {
		putF(c.Rect.Origin.X)
		putF(c.Rect.Origin.Y)
		putF(c.Rect.Size.Width)
		putF(c.Rect.Size.Height)
		for _, s := range [4]sb.Size{c.Radii.TopLeft, c.Radii.TopRight, c.Radii.BottomLeft, c.Radii.BottomRight} {
			putF(s.Width)
			putF(s.Height)
		}
	}
	for _, f := range dl.parts.Filters {
		put(uint32(f.Kind))
		putF(f.Value)
	}
	return h.Sum64()
}

// Items returns an iterator over the decoded records.
func (dl *DisplayList) Items() *Iterator {
	return &Iterator{stream: dl.parts.Items}
}

// Validate checks every record against the side-tables and the scoping
// rules. Framing was already checked by New.
func (dl *DisplayList) Validate() error {
	var scopes []Tag
	it := dl.Items()
	for it.Next() {
		item := it.Item()
		if err := dl.checkRanges(item); err != nil {
			return fmt.Errorf("%w: record %d (%s): %w", ErrInvalidList, it.Index(), item.Tag, err)
		}
		switch {
		case item.Tag.IsPush():
			scopes = append(scopes, item.Tag)
		case item.Tag.IsPop():
			if len(scopes) == 0 || scopes[len(scopes)-1].popFor() != item.Tag {
				return fmt.Errorf("%w: record %d: unmatched %s", ErrInvalidList, it.Index(), item.Tag)
			}
			scopes = scopes[:len(scopes)-1]
		}
	}
	if err := it.Err(); err != nil {
		return err
	}
	if len(scopes) != 0 {
		return fmt.Errorf("%w: %d scopes left open", ErrInvalidList, len(scopes))
	}
	return nil
}

func (dl *DisplayList) checkRanges(item Item) error {
	p := dl.parts
	if !item.Tag.IsPop() && !item.Clip.Complex.within(len(p.ComplexClips)) {
		return fmt.Errorf("complex clip range %v out of %d", item.Clip.Complex, len(p.ComplexClips))
	}
	check := func(name string, r ItemRange, n int) error {
		if !r.within(n) {
			return fmt.Errorf("%s range %v out of %d", name, r, n)
		}
		return nil
	}
	switch d := item.Data.(type) {
	case *TextItem:
		return check("glyph", d.Glyphs, len(p.Glyphs))
	case *GradientItem:
		return check("stop", d.Gradient.Stops, len(p.GradientStops))
	case *RadialGradientItem:
		return check("stop", d.Gradient.Stops, len(p.GradientStops))
	case *BorderGradientItem:
		return check("stop", d.Gradient.Stops, len(p.GradientStops))
	case *BorderRadialGradientItem:
		return check("stop", d.Gradient.Stops, len(p.GradientStops))
	case *StackingContextItem:
		return check("filter", d.Filters, len(p.Filters))
	}
	return nil
}

// Iterator walks the records of a display list.
//
// Example:
//
//	it := dl.Items()
//	for it.Next() {
//	    item := it.Item()
//	    ...
//	}
//	if err := it.Err(); err != nil { ... }
type Iterator struct {
	stream []byte
	off    int
	n      int
	item   Item
	err    error
}

// Next advances to the next record. It returns false at the end of the
// stream or on the first decoding error.
func (it *Iterator) Next() bool {
	if it.err != nil || it.off >= len(it.stream) {
		return false
	}
	tag, payload, next, err := splitRecord(it.stream, it.off)
	if err != nil {
		it.err = err
		return false
	}
	item, err := decodeItem(tag, payload)
	if err != nil {
		it.err = err
		return false
	}
	it.n++
	it.off = next
	it.item = item
	return true
}

// Item returns the current record.
func (it *Iterator) Item() Item { return it.item }

// Index returns the position of the current record.
func (it *Iterator) Index() int { return it.n - 1 }

// Err returns the first decoding error.
func (it *Iterator) Err() error { return it.err }
