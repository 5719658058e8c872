// Package displaylist builds the per-frame drawing program of a pipeline.
//
// A display list is an ordered stream of tagged records plus four
// side-tables (glyphs, gradient stops, complex clips, filters) that records
// reference through contiguous [ItemRange] values. Lists are accumulated by a
// [Builder] and frozen into an immutable [DisplayList] by Finalize.
//
// Record layout (little-endian, 4-byte aligned):
//
//	offset 0: tag      u8
//	offset 1: flags    u8 (reserved, 0)
//	offset 2: reserved u16
//	offset 4: length   u32 payload bytes
//	offset 8: payload  length bytes, a sequence of u32/f32 words
package displaylist

// Tag identifies a record in the command stream.
// Tags are grouped by their high nibble:
//
//	0x1X: primitives
//	0x2X: borders
//	0x3X: gradients
//	0x4X: scopes
//	0x5X: embedding
type Tag byte

const (
	// TagRect fills the item bounds with a solid color.
	TagRect Tag = 0x10
	// TagImage draws an image resource, optionally tiled.
	TagImage Tag = 0x11
	// TagText draws a glyph run from the glyph side-table.
	TagText Tag = 0x12
	// TagBoxShadow draws a blurred box shadow.
	TagBoxShadow Tag = 0x13

	// TagBorder draws four styled border sides.
	TagBorder Tag = 0x20
	// TagBorderImage draws a nine-patch image border.
	TagBorderImage Tag = 0x21
	// TagBorderGradient draws a border filled by a linear gradient.
	TagBorderGradient Tag = 0x22
	// TagBorderRadialGradient draws a border filled by a radial gradient.
	TagBorderRadialGradient Tag = 0x23

	// TagGradient fills the bounds with a linear gradient.
	TagGradient Tag = 0x30
	// TagRadialGradient fills the bounds with a radial gradient.
	TagRadialGradient Tag = 0x31

	// TagPushStackingContext opens a stacking context scope.
	TagPushStackingContext Tag = 0x40
	// TagPopStackingContext closes the innermost stacking context.
	TagPopStackingContext Tag = 0x41
	// TagPushScrollLayer opens a scroll layer scope.
	TagPushScrollLayer Tag = 0x42
	// TagPopScrollLayer closes the innermost scroll layer.
	TagPopScrollLayer Tag = 0x43

	// TagIframe embeds the display list of another pipeline.
	TagIframe Tag = 0x50
)

// String returns a human-readable name for the tag.
func (t Tag) String() string {
	switch t {
	case TagRect:
		return "Rect"
	case TagImage:
		return "Image"
	case TagText:
		return "Text"
	case TagBoxShadow:
		return "BoxShadow"
	case TagBorder:
		return "Border"
	case TagBorderImage:
		return "BorderImage"
	case TagBorderGradient:
		return "BorderGradient"
	case TagBorderRadialGradient:
		return "BorderRadialGradient"
	case TagGradient:
		return "Gradient"
	case TagRadialGradient:
		return "RadialGradient"
	case TagPushStackingContext:
		return "PushStackingContext"
	case TagPopStackingContext:
		return "PopStackingContext"
	case TagPushScrollLayer:
		return "PushScrollLayer"
	case TagPopScrollLayer:
		return "PopScrollLayer"
	case TagIframe:
		return "Iframe"
	default:
		return "Unknown"
	}
}

// IsPush reports whether the tag opens a scope.
func (t Tag) IsPush() bool {
	return t == TagPushStackingContext || t == TagPushScrollLayer
}

// IsPop reports whether the tag closes a scope.
func (t Tag) IsPop() bool {
	return t == TagPopStackingContext || t == TagPopScrollLayer
}

// IsDraw reports whether the tag draws something by itself.
func (t Tag) IsDraw() bool {
	return t>>4 >= 1 && t>>4 <= 3 && t.String() != "Unknown"
}

// popFor returns the tag that closes a scope opened by t.
func (t Tag) popFor() Tag {
	switch t {
	case TagPushStackingContext:
		return TagPopStackingContext
	case TagPushScrollLayer:
		return TagPopScrollLayer
	default:
		return 0
	}
}
