package blob

import (
	"encoding/binary"
	"errors"
	"fmt"
	"image"
	"image/draw"
	"math"

	"golang.org/x/image/vector"

	sb "github.com/gogpu/scenebridge"
	"github.com/gogpu/scenebridge/resource"
)

// Vector blob errors.
var (
	// ErrBadCommands is returned for truncated or unknown vector commands.
	ErrBadCommands = errors.New("blob: malformed vector commands")

	// ErrUnsupportedFormat is returned for output formats the vector
	// rasterizer cannot produce.
	ErrUnsupportedFormat = errors.New("blob: unsupported output format")
)

// Command identifies one vector blob command. The encoding is a stream of
// little-endian u32 words: the command, then its float32 arguments.
//
//	0x0X: state
//	0x1X: path construction
//	0x2X: painting
type Command uint32

const (
	// CmdTransform sets the current affine transform.
	// Args: a, b, c, d, e, f with x' = a*x + b*y + c, y' = d*x + e*y + f.
	CmdTransform Command = 0x01
	// CmdClear replaces every pixel with a color. Args: r, g, b, a.
	CmdClear Command = 0x02

	// CmdMoveTo starts a subpath. Args: x, y.
	CmdMoveTo Command = 0x11
	// CmdLineTo adds a line. Args: x, y.
	CmdLineTo Command = 0x12
	// CmdQuadTo adds a quadratic curve. Args: cx, cy, x, y.
	CmdQuadTo Command = 0x13
	// CmdCubicTo adds a cubic curve. Args: c1x, c1y, c2x, c2y, x, y.
	CmdCubicTo Command = 0x14
	// CmdClose closes the current subpath.
	CmdClose Command = 0x16

	// CmdFill fills the current path with a color and starts a new path.
	// Args: r, g, b, a (straight alpha).
	CmdFill Command = 0x20
)

// argCount returns the number of float arguments of c, or -1 if unknown.
func (c Command) argCount() int {
	switch c {
	case CmdTransform, CmdCubicTo:
		return 6
	case CmdClear, CmdQuadTo, CmdFill:
		return 4
	case CmdMoveTo, CmdLineTo:
		return 2
	case CmdClose:
		return 0
	default:
		return -1
	}
}

// String returns the command name.
func (c Command) String() string {
	switch c {
	case CmdTransform:
		return "Transform"
	case CmdClear:
		return "Clear"
	case CmdMoveTo:
		return "MoveTo"
	case CmdLineTo:
		return "LineTo"
	case CmdQuadTo:
		return "QuadTo"
	case CmdCubicTo:
		return "CubicTo"
	case CmdClose:
		return "Close"
	case CmdFill:
		return "Fill"
	default:
		return "Unknown"
	}
}

// Encoder builds vector blob commands.
//
// Example:
//
//	var enc blob.Encoder
//	enc.MoveTo(0, 0)
//	enc.LineTo(16, 0)
//	enc.LineTo(0, 16)
//	enc.Close()
//	enc.Fill(sb.Color{R: 1, A: 1})
//	data := enc.Bytes()
type Encoder struct {
	buf []byte
}

func (e *Encoder) cmd(c Command, args ...float32) {
	e.buf = binary.LittleEndian.AppendUint32(e.buf, uint32(c))
	for _, a := range args {
		e.buf = binary.LittleEndian.AppendUint32(e.buf, math.Float32bits(a))
	}
}

// Transform sets the affine transform for subsequent path commands.
func (e *Encoder) Transform(a, b, c, d, ee, f float32) { e.cmd(CmdTransform, a, b, c, d, ee, f) }

// Clear fills the whole image with col.
func (e *Encoder) Clear(col sb.Color) { e.cmd(CmdClear, col.R, col.G, col.B, col.A) }

// MoveTo starts a new subpath at (x, y).
func (e *Encoder) MoveTo(x, y float32) { e.cmd(CmdMoveTo, x, y) }

// LineTo adds a line to (x, y).
func (e *Encoder) LineTo(x, y float32) { e.cmd(CmdLineTo, x, y) }

// QuadTo adds a quadratic Bézier curve.
func (e *Encoder) QuadTo(cx, cy, x, y float32) { e.cmd(CmdQuadTo, cx, cy, x, y) }

// CubicTo adds a cubic Bézier curve.
func (e *Encoder) CubicTo(c1x, c1y, c2x, c2y, x, y float32) {
	e.cmd(CmdCubicTo, c1x, c1y, c2x, c2y, x, y)
}

// Close closes the current subpath.
func (e *Encoder) Close() { e.cmd(CmdClose) }

// Fill fills the current path with col.
func (e *Encoder) Fill(col sb.Color) { e.cmd(CmdFill, col.R, col.G, col.B, col.A) }

// Rect adds a closed rectangle subpath.
func (e *Encoder) Rect(r sb.Rect) {
	e.MoveTo(r.MinX(), r.MinY())
	e.LineTo(r.MaxX(), r.MinY())
	e.LineTo(r.MaxX(), r.MaxY())
	e.LineTo(r.MinX(), r.MaxY())
	e.Close()
}

// Bytes returns the encoded commands.
func (e *Encoder) Bytes() []byte { return e.buf }

// Reset clears the encoder, keeping its buffer.
func (e *Encoder) Reset() { e.buf = e.buf[:0] }

// VectorRasterizer rasterizes vector blob commands with
// golang.org/x/image/vector. It produces BGRA8 (premultiplied) or A8
// coverage output. The zero value is ready to use.
type VectorRasterizer struct{}

var _ Rasterizer = VectorRasterizer{}

type affine [6]float32

func (m affine) apply(x, y float32) (float32, float32) {
	return m[0]*x + m[1]*y + m[2], m[3]*x + m[4]*y + m[5]
}

// Rasterize implements Rasterizer.
func (VectorRasterizer) Rasterize(data []byte, desc resource.ImageDescriptor, dirty *sb.Rect, dst []byte) error {
	if desc.Format != resource.FormatBGRA8 && desc.Format != resource.FormatA8 {
		return fmt.Errorf("%w: %s", ErrUnsupportedFormat, desc.Format)
	}
	if len(data)%4 != 0 {
		return fmt.Errorf("%w: %d bytes is not a word stream", ErrBadCommands, len(data))
	}
	w, h := int(desc.Width), int(desc.Height)
	canvas := image.NewRGBA(image.Rect(0, 0, w, h))
	z := vector.NewRasterizer(w, h)
	xf := affine{1, 0, 0, 0, 1, 0}
	args := make([]float32, 6)

	for off := 0; off < len(data); {
		c := Command(binary.LittleEndian.Uint32(data[off:]))
		n := c.argCount()
		if n < 0 {
			return fmt.Errorf("%w: unknown command 0x%02x at offset %d", ErrBadCommands, uint32(c), off)
		}
		off += 4
		if off+n*4 > len(data) {
			return fmt.Errorf("%w: %s truncated", ErrBadCommands, c)
		}
		for i := range n {
			args[i] = math.Float32frombits(binary.LittleEndian.Uint32(data[off+i*4:]))
		}
		off += n * 4

		switch c {
		case CmdTransform:
			copy(xf[:], args)
		case CmdClear:
			col := sb.Color{R: args[0], G: args[1], B: args[2], A: args[3]}.RGBA8()
			draw.Draw(canvas, canvas.Bounds(), image.NewUniform(col), image.Point{}, draw.Src)
		case CmdMoveTo:
			z.MoveTo(xf.apply(args[0], args[1]))
		case CmdLineTo:
			z.LineTo(xf.apply(args[0], args[1]))
		case CmdQuadTo:
			cx, cy := xf.apply(args[0], args[1])
			x, y := xf.apply(args[2], args[3])
			z.QuadTo(cx, cy, x, y)
		case CmdCubicTo:
			c1x, c1y := xf.apply(args[0], args[1])
			c2x, c2y := xf.apply(args[2], args[3])
			x, y := xf.apply(args[4], args[5])
			z.CubeTo(c1x, c1y, c2x, c2y, x, y)
		case CmdClose:
			z.ClosePath()
		case CmdFill:
			col := sb.Color{R: args[0], G: args[1], B: args[2], A: args[3]}.RGBA8()
			z.DrawOp = draw.Over
			z.Draw(canvas, canvas.Bounds(), image.NewUniform(col), image.Point{})
			z.Reset(w, h)
		}
	}

	region := canvas.Bounds()
	if dirty != nil {
		region = region.Intersect(dirty.Pixels())
	}
	stride := desc.RowBytes()
	for y := region.Min.Y; y < region.Max.Y; y++ {
		src := canvas.Pix[y*canvas.Stride:]
		row := dst[y*stride:]
		for x := region.Min.X; x < region.Max.X; x++ {
			p := src[x*4 : x*4+4]
			if desc.Format == resource.FormatA8 {
				row[x] = p[3]
				continue
			}
			row[x*4], row[x*4+1], row[x*4+2], row[x*4+3] = p[2], p[1], p[0], p[3]
		}
	}
	return nil
}
