package record

import (
	"encoding/binary"
	"fmt"
	"math"

	sb "github.com/gogpu/scenebridge"
	"github.com/gogpu/scenebridge/api"
	"github.com/gogpu/scenebridge/notify"
	"github.com/gogpu/scenebridge/resource"
	"github.com/gogpu/scenebridge/wire"
)

// encoder appends little-endian fields to a payload.
type encoder struct{ buf []byte }

func (e *encoder) u32(v uint32)   { e.buf = binary.LittleEndian.AppendUint32(e.buf, v) }
func (e *encoder) u64(v uint64)   { e.buf = binary.LittleEndian.AppendUint64(e.buf, v) }
func (e *encoder) f32(v float32)  { e.u32(math.Float32bits(v)) }
func (e *encoder) bool(v bool)    { e.u32(boolU32(v)) }
func (e *encoder) size(s sb.Size) { e.f32(s.Width); e.f32(s.Height) }

func (e *encoder) bytes(b []byte) {
	e.u32(uint32(len(b))) //nolint:gosec // payloads are bounded by the queue producer
	e.buf = append(e.buf, b...)
}

func (e *encoder) point(p sb.Point) { e.f32(p.X); e.f32(p.Y) }
func (e *encoder) rect(r sb.Rect)   { e.point(r.Origin); e.size(r.Size) }

func (e *encoder) color(c sb.Color) { e.f32(c.R); e.f32(c.G); e.f32(c.B); e.f32(c.A) }

func (e *encoder) pipeline(p sb.PipelineID) { e.u32(uint32(p.Namespace)); e.u32(p.ID) }
func (e *encoder) image(k sb.ImageKey)      { e.u32(uint32(k.Namespace)); e.u32(k.ID) }
func (e *encoder) font(k sb.FontKey)        { e.u32(uint32(k.Namespace)); e.u32(k.ID) }

func (e *encoder) desc(d resource.ImageDescriptor) {
	e.u32(uint32(d.Format))
	e.u32(d.Width)
	e.u32(d.Height)
	e.u32(d.Stride)
	e.bool(d.IsOpaque)
}

func (e *encoder) data(d resource.ImageData) {
	e.u32(uint32(d.Kind))
	e.u64(uint64(d.External))
	e.u32(uint32(d.ExternalType))
	e.bytes(d.Bytes)
}

func (e *encoder) dirty(r *sb.Rect) {
	e.bool(r != nil)
	if r != nil {
		e.rect(*r)
	}
}

func boolU32(v bool) uint32 {
	if v {
		return 1
	}
	return 0
}

// encodeMessage appends the payload of m.
func encodeMessage(buf []byte, m api.Message) ([]byte, error) {
	e := encoder{buf: buf}
	switch m := m.(type) {
	case api.AddImage:
		e.image(m.Key)
		e.desc(m.Desc)
		e.data(m.Data)
	case api.UpdateImage:
		e.image(m.Key)
		e.desc(m.Desc)
		e.data(m.Data)
		e.dirty(m.Dirty)
	case api.DeleteImage:
		e.image(m.Key)
	case api.AddFont:
		e.font(m.Key)
		e.u32(m.Index)
		e.bytes(m.Data)
	case api.DeleteFont:
		e.font(m.Key)
	case api.SetDisplayList:
		e.u32(uint32(m.Epoch))
		e.pipeline(m.Pipeline)
		e.size(m.Viewport)
		e.color(m.Background)
		e.bool(m.PreserveFrameState)
		var err error
		if e.buf, err = m.Descriptor.AppendBinary(e.buf); err != nil {
			return buf, err
		}
		e.bytes(m.Data)
	case api.ClearDisplayList:
		e.u32(uint32(m.Epoch))
		e.pipeline(m.Pipeline)
	case api.SetRootPipeline:
		e.pipeline(m.Pipeline)
	case api.SetWindow:
		e.size(m.Size)
		e.rect(m.Inner)
	case api.Scroll:
		e.pipeline(m.Pipeline)
		e.u32(m.ScrollID)
		e.point(m.Offset)
	case api.GenerateFrame:
	case api.ExternalEvent:
		e.u64(m.Event.Raw)
	default:
		return buf, fmt.Errorf("%w: message type %v", ErrUnknownMessage, m.Type())
	}
	return e.buf, nil
}

// decoder reads fields from a payload. Reading past the end sets short and
// yields zeros.
type decoder struct {
	b     []byte
	short bool
}

func (d *decoder) next(n int) []byte {
	if d.short || len(d.b) < n {
		d.short = true
		return make([]byte, n)
	}
	v := d.b[:n]
	d.b = d.b[n:]
	return v
}

func (d *decoder) u32() uint32     { return binary.LittleEndian.Uint32(d.next(4)) }
func (d *decoder) u64() uint64     { return binary.LittleEndian.Uint64(d.next(8)) }
func (d *decoder) f32() float32    { return math.Float32frombits(d.u32()) }
func (d *decoder) bool() bool      { return d.u32() != 0 }
func (d *decoder) size() sb.Size   { return sb.Size{Width: d.f32(), Height: d.f32()} }
func (d *decoder) point() sb.Point { return sb.Point{X: d.f32(), Y: d.f32()} }
func (d *decoder) rect() sb.Rect   { return sb.Rect{Origin: d.point(), Size: d.size()} }

func (d *decoder) bytes() []byte {
	n := d.u32()
	if d.short || uint64(n) > uint64(len(d.b)) {
		d.short = true
		return nil
	}
	return append([]byte(nil), d.next(int(n))...)
}

func (d *decoder) color() sb.Color {
	return sb.Color{R: d.f32(), G: d.f32(), B: d.f32(), A: d.f32()}
}

func (d *decoder) pipeline() sb.PipelineID {
	return sb.PipelineID{Namespace: sb.IdNamespace(d.u32()), ID: d.u32()}
}

func (d *decoder) image() sb.ImageKey {
	return sb.ImageKey{Namespace: sb.IdNamespace(d.u32()), ID: d.u32()}
}

func (d *decoder) font() sb.FontKey {
	return sb.FontKey{Namespace: sb.IdNamespace(d.u32()), ID: d.u32()}
}

func (d *decoder) desc() resource.ImageDescriptor {
	return resource.ImageDescriptor{
		Format:   resource.ImageFormat(d.u32()),
		Width:    d.u32(),
		Height:   d.u32(),
		Stride:   d.u32(),
		IsOpaque: d.bool(),
	}
}

func (d *decoder) data() resource.ImageData {
	return resource.ImageData{
		Kind:         resource.ImageKind(d.u32()),
		External:     sb.ExternalImageID(d.u64()),
		ExternalType: resource.ExternalType(d.u32()),
		Bytes:        d.bytes(),
	}
}

func (d *decoder) dirty() *sb.Rect {
	if !d.bool() {
		return nil
	}
	r := d.rect()
	return &r
}

// decodeMessage parses a payload of type t. The payload must be consumed
// exactly.
func decodeMessage(t api.MessageType, payload []byte) (api.Message, error) {
	d := decoder{b: payload}
	var m api.Message
	switch t {
	case api.MsgAddImage:
		m = api.AddImage{Key: d.image(), Desc: d.desc(), Data: d.data()}
	case api.MsgUpdateImage:
		m = api.UpdateImage{Key: d.image(), Desc: d.desc(), Data: d.data(), Dirty: d.dirty()}
	case api.MsgDeleteImage:
		m = api.DeleteImage{Key: d.image()}
	case api.MsgAddFont:
		key, index := d.font(), d.u32()
		m = api.AddFont{Key: key, Index: index, Data: d.bytes()}
	case api.MsgDeleteFont:
		m = api.DeleteFont{Key: d.font()}
	case api.MsgSetDisplayList:
		sdl := api.SetDisplayList{
			Epoch:              sb.Epoch(d.u32()),
			Pipeline:           d.pipeline(),
			Viewport:           d.size(),
			Background:         d.color(),
			PreserveFrameState: d.bool(),
		}
		raw := d.next(wire.DescriptorSize)
		if !d.short {
			if err := sdl.Descriptor.UnmarshalBinary(raw); err != nil {
				return nil, fmt.Errorf("%w: %w", ErrCorrupt, err)
			}
		}
		sdl.Data = d.bytes()
		m = sdl
	case api.MsgClearDisplayList:
		m = api.ClearDisplayList{Epoch: sb.Epoch(d.u32()), Pipeline: d.pipeline()}
	case api.MsgSetRootPipeline:
		m = api.SetRootPipeline{Pipeline: d.pipeline()}
	case api.MsgSetWindow:
		m = api.SetWindow{Size: d.size(), Inner: d.rect()}
	case api.MsgScroll:
		m = api.Scroll{Pipeline: d.pipeline(), ScrollID: d.u32(), Offset: d.point()}
	case api.MsgGenerateFrame:
		m = api.GenerateFrame{}
	case api.MsgExternalEvent:
		m = api.ExternalEvent{Event: notify.ExternalEvent{Raw: d.u64()}}
	default:
		return nil, fmt.Errorf("%w: message type %d", ErrUnknownMessage, t)
	}
	if d.short {
		return nil, fmt.Errorf("%w: truncated %v payload", ErrCorrupt, t)
	}
	if len(d.b) != 0 {
		return nil, fmt.Errorf("%w: %d trailing bytes in %v payload", ErrCorrupt, len(d.b), t)
	}
	return m, nil
}
