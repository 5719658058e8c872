package resource

import (
	"bytes"
	"errors"
	"fmt"

	gotext "github.com/go-text/typesetting/font"
	"golang.org/x/image/font/sfnt"

	sb "github.com/gogpu/scenebridge"
)

// ErrEmptyFontData is returned when a font is added without bytes.
var ErrEmptyFontData = errors.New("resource: empty font data")

// FontError reports font bytes that could not be parsed.
type FontError struct {
	Key    sb.FontKey
	Reason string
	Err    error
}

func (e *FontError) Error() string {
	return fmt.Sprintf("resource: font %v: %s: %v", e.Key, e.Reason, e.Err)
}

func (e *FontError) Unwrap() error { return e.Err }

// Font is a parsed font resource.
//
// The go-text face answers metric and character-map queries; the sfnt font
// provides glyph outlines for rasterization.
type Font struct {
	Key   sb.FontKey
	Index uint32

	data    []byte
	face    *gotext.Face
	outline *sfnt.Font
}

// ParseFont parses raw TrueType/OpenType bytes. For collections, index
// selects the face. The data is copied.
func ParseFont(key sb.FontKey, data []byte, index uint32) (*Font, error) {
	if len(data) == 0 {
		return nil, ErrEmptyFontData
	}
	data = bytes.Clone(data)

	var face *gotext.Face
	var outline *sfnt.Font
	if index == 0 {
		f, err := gotext.ParseTTF(bytes.NewReader(data))
		if err != nil {
			return nil, &FontError{Key: key, Reason: "parse", Err: err}
		}
		face = f
		outline, err = sfnt.Parse(data)
		if err != nil {
			return nil, &FontError{Key: key, Reason: "load outlines", Err: err}
		}
	} else {
		faces, err := gotext.ParseTTC(bytes.NewReader(data))
		if err != nil {
			return nil, &FontError{Key: key, Reason: "parse collection", Err: err}
		}
		if int(index) >= len(faces) {
			return nil, &FontError{Key: key, Reason: "face index",
				Err: fmt.Errorf("index %d out of %d faces", index, len(faces))}
		}
		face = faces[index]
		c, err := sfnt.ParseCollection(data)
		if err != nil {
			return nil, &FontError{Key: key, Reason: "load outlines", Err: err}
		}
		outline, err = c.Font(int(index))
		if err != nil {
			return nil, &FontError{Key: key, Reason: "load outlines", Err: err}
		}
	}

	return &Font{Key: key, Index: index, data: data, face: face, outline: outline}, nil
}

// Data returns the font bytes. The slice must not be modified.
func (f *Font) Data() []byte { return f.data }

// Face returns the go-text face. Faces are not safe for concurrent use.
func (f *Font) Face() *gotext.Face { return f.face }

// Outlines returns the sfnt font used for glyph outlines.
func (f *Font) Outlines() *sfnt.Font { return f.outline }

// UnitsPerEm returns the design units per em.
func (f *Font) UnitsPerEm() uint16 { return f.face.Upem() }

// NumGlyphs returns the number of glyphs in the font.
func (f *Font) NumGlyphs() int { return f.outline.NumGlyphs() }

// GlyphIndex maps r through the character map. ok is false when the font
// has no glyph for r.
func (f *Font) GlyphIndex(r rune) (uint32, bool) {
	gid, ok := f.face.NominalGlyph(r)
	return uint32(gid), ok
}

// Advance returns the horizontal advance of glyph at size pixels per em.
func (f *Font) Advance(glyph uint32, size float32) float32 {
	upem := float32(f.face.Upem())
	if upem == 0 {
		return 0
	}
	return f.face.HorizontalAdvance(gotext.GID(glyph)) * size / upem
}
