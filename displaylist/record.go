package displaylist

import (
	"encoding/binary"
	"errors"
	"fmt"
	"math"

	sb "github.com/gogpu/scenebridge"
)

// RecordHeaderSize is the size of the fixed header preceding every record.
const RecordHeaderSize = 8

// ErrMalformedRecord is returned when the command stream framing is corrupt.
var ErrMalformedRecord = errors.New("displaylist: malformed record")

var errShortPayload = fmt.Errorf("%w: payload too short", ErrMalformedRecord)

// recordWriter appends little-endian words to a byte stream.
type recordWriter struct {
	buf []byte
}

// begin writes a record header with a placeholder length and returns the
// offset of the length field.
func (w *recordWriter) begin(tag Tag) int {
	w.buf = append(w.buf, byte(tag), 0, 0, 0, 0, 0, 0, 0)
	return len(w.buf) - 4
}

func (w *recordWriter) end(lenAt int) {
	n := len(w.buf) - lenAt - 4
	binary.LittleEndian.PutUint32(w.buf[lenAt:], uint32(n)) //nolint:gosec // record payloads are small
}

func (w *recordWriter) u32(v uint32) {
	w.buf = binary.LittleEndian.AppendUint32(w.buf, v)
}

func (w *recordWriter) i32(v int32) { w.u32(uint32(v)) } //nolint:gosec // bit pattern preserved

func (w *recordWriter) f32(v float32) { w.u32(math.Float32bits(v)) }

func (w *recordWriter) bool(v bool) {
	if v {
		w.u32(1)
		return
	}
	w.u32(0)
}

func (w *recordWriter) point(p sb.Point) { w.f32(p.X); w.f32(p.Y) }

func (w *recordWriter) size(s sb.Size) { w.f32(s.Width); w.f32(s.Height) }

func (w *recordWriter) rect(r sb.Rect) { w.point(r.Origin); w.size(r.Size) }

func (w *recordWriter) color(c sb.Color) { w.f32(c.R); w.f32(c.G); w.f32(c.B); w.f32(c.A) }

func (w *recordWriter) sides(s sb.SideOffsets) {
	w.f32(s.Top)
	w.f32(s.Right)
	w.f32(s.Bottom)
	w.f32(s.Left)
}

func (w *recordWriter) radius(b sb.BorderRadius) {
	w.size(b.TopLeft)
	w.size(b.TopRight)
	w.size(b.BottomLeft)
	w.size(b.BottomRight)
}

func (w *recordWriter) itemRange(r ItemRange) { w.u32(r.Start); w.u32(r.Length) }

func (w *recordWriter) imageKey(k sb.ImageKey) { w.u32(uint32(k.Namespace)); w.u32(k.ID) }

func (w *recordWriter) clip(c ClipRegion) {
	w.rect(c.Main)
	w.itemRange(c.Complex)
	if c.Mask == nil {
		w.bool(false)
		w.imageKey(sb.ImageKey{})
		w.rect(sb.Rect{})
		w.bool(false)
		return
	}
	w.bool(true)
	w.imageKey(c.Mask.Image)
	w.rect(c.Mask.Rect)
	w.bool(c.Mask.Repeat)
}

func (w *recordWriter) matrix(m sb.Matrix4) {
	for _, v := range m {
		w.f32(v)
	}
}

// recordReader decodes a payload. The first short read sets err and all
// further reads return zero values.
type recordReader struct {
	buf []byte
	off int
	err error
}

func (r *recordReader) u32() uint32 {
	if r.err != nil {
		return 0
	}
	if r.off+4 > len(r.buf) {
		r.err = errShortPayload
		return 0
	}
	v := binary.LittleEndian.Uint32(r.buf[r.off:])
	r.off += 4
	return v
}

func (r *recordReader) i32() int32 { return int32(r.u32()) } //nolint:gosec // bit pattern preserved

func (r *recordReader) f32() float32 { return math.Float32frombits(r.u32()) }

func (r *recordReader) bool() bool { return r.u32() != 0 }

func (r *recordReader) point() sb.Point { return sb.Point{X: r.f32(), Y: r.f32()} }

func (r *recordReader) size() sb.Size { return sb.Size{Width: r.f32(), Height: r.f32()} }

func (r *recordReader) rect() sb.Rect { return sb.Rect{Origin: r.point(), Size: r.size()} }

func (r *recordReader) color() sb.Color {
	return sb.Color{R: r.f32(), G: r.f32(), B: r.f32(), A: r.f32()}
}

func (r *recordReader) sides() sb.SideOffsets {
	return sb.SideOffsets{Top: r.f32(), Right: r.f32(), Bottom: r.f32(), Left: r.f32()}
}

func (r *recordReader) radius() sb.BorderRadius {
	return sb.BorderRadius{TopLeft: r.size(), TopRight: r.size(), BottomLeft: r.size(), BottomRight: r.size()}
}

func (r *recordReader) itemRange() ItemRange { return ItemRange{Start: r.u32(), Length: r.u32()} }

func (r *recordReader) imageKey() sb.ImageKey {
	return sb.ImageKey{Namespace: sb.IdNamespace(r.u32()), ID: r.u32()}
}

func (r *recordReader) clip() ClipRegion {
	c := ClipRegion{Main: r.rect(), Complex: r.itemRange()}
	hasMask := r.bool()
	mask := ImageMask{Image: r.imageKey(), Rect: r.rect(), Repeat: r.bool()}
	if hasMask {
		c.Mask = &mask
	}
	return c
}

func (r *recordReader) matrix() sb.Matrix4 {
	var m sb.Matrix4
	for i := range m {
		m[i] = r.f32()
	}
	return m
}

// finish reports an error unless the payload was consumed exactly.
func (r *recordReader) finish() error {
	if r.err != nil {
		return r.err
	}
	if r.off != len(r.buf) {
		return fmt.Errorf("%w: %d trailing payload bytes", ErrMalformedRecord, len(r.buf)-r.off)
	}
	return nil
}

// splitRecord returns the tag and payload of the record at off, and the
// offset of the following record.
func splitRecord(stream []byte, off int) (Tag, []byte, int, error) {
	if len(stream)-off < RecordHeaderSize {
		return 0, nil, 0, fmt.Errorf("%w: truncated header at offset %d", ErrMalformedRecord, off)
	}
	n := binary.LittleEndian.Uint32(stream[off+4:])
	if n%4 != 0 {
		return 0, nil, 0, fmt.Errorf("%w: unaligned payload length %d at offset %d", ErrMalformedRecord, n, off)
	}
	start := off + RecordHeaderSize
	if uint64(n) > uint64(len(stream)-start) {
		return 0, nil, 0, fmt.Errorf("%w: payload length %d exceeds stream at offset %d", ErrMalformedRecord, n, off)
	}
	end := start + int(n)
	return Tag(stream[off]), stream[start:end], end, nil
}

// CountRecords verifies the framing of a command stream and returns the
// number of records. Payloads are not interpreted.
func CountRecords(stream []byte) (int, error) {
	count := 0
	for off := 0; off < len(stream); {
		_, _, next, err := splitRecord(stream, off)
		if err != nil {
			return 0, err
		}
		off = next
		count++
	}
	return count, nil
}
