// Package wire marshals display lists for transfer between the producer and
// render contexts.
//
// An encoded list is a byte buffer plus a fixed-size [Descriptor]. The buffer
// holds five contiguous sections, in order: the command stream, glyphs,
// gradient stops, complex clips and filters. All values are little-endian
// with fixed element sizes, so encoding is deterministic.
package wire

import (
	"encoding/binary"
	"errors"
	"fmt"

	sb "github.com/gogpu/scenebridge"
)

// Magic identifies an encoded display list descriptor ("SBDL").
const Magic uint32 = 0x4C444253

// Version is the current descriptor format version.
const Version uint32 = 1

// DescriptorSize is the size of a marshaled Descriptor.
const DescriptorSize = 64

// Fixed element sizes of the side-table sections.
const (
	GlyphSize        = 12 // index u32, x f32, y f32
	GradientStopSize = 20 // offset f32, r g b a f32
	ComplexClipSize  = 48 // rect 4×f32, radii 8×f32
	FilterSize       = 8  // kind u32, value f32
)

// ErrMalformed is returned when a buffer and its descriptor disagree.
var ErrMalformed = errors.New("wire: malformed display list")

// Section describes one side-table section of the buffer.
type Section struct {
	Count uint32
	Bytes uint32
}

// Descriptor is the fixed-size summary that travels alongside the buffer.
type Descriptor struct {
	Pipeline      sb.PipelineID
	Records       uint32
	ItemsBytes    uint32
	Glyphs        Section
	GradientStops Section
	ComplexClips  Section
	Filters       Section
}

// TotalBytes returns the buffer length the descriptor accounts for.
func (d Descriptor) TotalBytes() uint64 {
	return uint64(d.ItemsBytes) + uint64(d.Glyphs.Bytes) + uint64(d.GradientStops.Bytes) +
		uint64(d.ComplexClips.Bytes) + uint64(d.Filters.Bytes)
}

// Descriptor layout, one u32 per slot.
const (
	slotMagic = iota
	slotVersion
	slotSize
	slotNamespace
	slotPipeline
	slotRecords
	slotItems
	slotGlyphCount
	slotGlyphBytes
	slotStopCount
	slotStopBytes
	slotClipCount
	slotClipBytes
	slotFilterCount
	slotFilterBytes
	slotReserved
)

// MarshalBinary implements encoding.BinaryMarshaler.
func (d Descriptor) MarshalBinary() ([]byte, error) {
	return d.AppendBinary(make([]byte, 0, DescriptorSize))
}

// AppendBinary implements encoding.BinaryAppender.
func (d Descriptor) AppendBinary(b []byte) ([]byte, error) {
	words := [DescriptorSize / 4]uint32{
		slotMagic:       Magic,
		slotVersion:     Version,
		slotSize:        DescriptorSize,
		slotNamespace:   uint32(d.Pipeline.Namespace),
		slotPipeline:    d.Pipeline.ID,
		slotRecords:     d.Records,
		slotItems:       d.ItemsBytes,
		slotGlyphCount:  d.Glyphs.Count,
		slotGlyphBytes:  d.Glyphs.Bytes,
		slotStopCount:   d.GradientStops.Count,
		slotStopBytes:   d.GradientStops.Bytes,
		slotClipCount:   d.ComplexClips.Count,
		slotClipBytes:   d.ComplexClips.Bytes,
		slotFilterCount: d.Filters.Count,
		slotFilterBytes: d.Filters.Bytes,
	}
	for _, w := range words {
		b = binary.LittleEndian.AppendUint32(b, w)
	}
	return b, nil
}

// UnmarshalBinary implements encoding.BinaryUnmarshaler.
func (d *Descriptor) UnmarshalBinary(b []byte) error {
	if len(b) != DescriptorSize {
		return fmt.Errorf("%w: descriptor is %d bytes, want %d", ErrMalformed, len(b), DescriptorSize)
	}
	word := func(slot int) uint32 { return binary.LittleEndian.Uint32(b[slot*4:]) }
	if m := word(slotMagic); m != Magic {
		return fmt.Errorf("%w: bad magic 0x%08x", ErrMalformed, m)
	}
	if v := word(slotVersion); v != Version {
		return fmt.Errorf("%w: unsupported version %d", ErrMalformed, v)
	}
	if s := word(slotSize); s != DescriptorSize {
		return fmt.Errorf("%w: header size %d", ErrMalformed, s)
	}
	if r := word(slotReserved); r != 0 {
		return fmt.Errorf("%w: reserved word is %d", ErrMalformed, r)
	}
	*d = Descriptor{
		Pipeline:      sb.PipelineID{Namespace: sb.IdNamespace(word(slotNamespace)), ID: word(slotPipeline)},
		Records:       word(slotRecords),
		ItemsBytes:    word(slotItems),
		Glyphs:        Section{Count: word(slotGlyphCount), Bytes: word(slotGlyphBytes)},
		GradientStops: Section{Count: word(slotStopCount), Bytes: word(slotStopBytes)},
		ComplexClips:  Section{Count: word(slotClipCount), Bytes: word(slotClipBytes)},
		Filters:       Section{Count: word(slotFilterCount), Bytes: word(slotFilterBytes)},
	}
	return nil
}

// check verifies the internal consistency of d against a buffer of n bytes.
func (d Descriptor) check(n int) error {
	if d.ItemsBytes%4 != 0 {
		return fmt.Errorf("%w: command stream length %d not 4-aligned", ErrMalformed, d.ItemsBytes)
	}
	sections := []struct {
		name string
		s    Section
		size uint32
	}{
		{"glyph", d.Glyphs, GlyphSize},
		{"gradient stop", d.GradientStops, GradientStopSize},
		{"complex clip", d.ComplexClips, ComplexClipSize},
		{"filter", d.Filters, FilterSize},
	}
	for _, sec := range sections {
		if uint64(sec.s.Count)*uint64(sec.size) != uint64(sec.s.Bytes) {
			return fmt.Errorf("%w: %s section has %d bytes for %d entries",
				ErrMalformed, sec.name, sec.s.Bytes, sec.s.Count)
		}
	}
	total := d.TotalBytes()
	switch {
	case total > uint64(n):
		return fmt.Errorf("%w: descriptor covers %d bytes, buffer has %d", ErrMalformed, total, n)
	case total < uint64(n):
		return fmt.Errorf("%w: %d trailing bytes", ErrMalformed, uint64(n)-total)
	}
	return nil
}
