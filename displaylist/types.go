package displaylist

import (
	sb "github.com/gogpu/scenebridge"
)

// ItemRange addresses a contiguous run of entries in one side-table.
type ItemRange struct {
	Start  uint32
	Length uint32
}

// End returns the index one past the last entry.
func (r ItemRange) End() uint32 { return r.Start + r.Length }

// IsEmpty reports whether the range covers no entries.
func (r ItemRange) IsEmpty() bool { return r.Length == 0 }

func (r ItemRange) within(n int) bool {
	return uint64(r.Start)+uint64(r.Length) <= uint64(n)
}

func (r ItemRange) rebase(base uint32) ItemRange {
	if r.Length == 0 {
		return ItemRange{}
	}
	return ItemRange{Start: r.Start + base, Length: r.Length}
}

// GlyphInstance positions one glyph of a text run.
type GlyphInstance struct {
	Index uint32
	Point sb.Point
}

// GradientStop is one color stop of a gradient.
type GradientStop struct {
	Offset float32
	Color  sb.Color
}

// ComplexClipRegion is a rounded rectangle clip shape.
type ComplexClipRegion struct {
	Rect  sb.Rect
	Radii sb.BorderRadius
}

// FilterKind selects a stacking context filter operation.
type FilterKind uint32

// Filter kinds.
const (
	FilterBlur FilterKind = iota
	FilterBrightness
	FilterContrast
	FilterGrayscale
	FilterHueRotate
	FilterInvert
	FilterOpacity
	FilterSaturate
	FilterSepia
)

// String returns the CSS name of the filter.
func (k FilterKind) String() string {
	switch k {
	case FilterBlur:
		return "blur"
	case FilterBrightness:
		return "brightness"
	case FilterContrast:
		return "contrast"
	case FilterGrayscale:
		return "grayscale"
	case FilterHueRotate:
		return "hue-rotate"
	case FilterInvert:
		return "invert"
	case FilterOpacity:
		return "opacity"
	case FilterSaturate:
		return "saturate"
	case FilterSepia:
		return "sepia"
	default:
		return "unknown"
	}
}

// FilterOp is one entry of a stacking context's filter list.
// Value is the blur radius in pixels, the angle in degrees for hue-rotate,
// and an amount for the others.
type FilterOp struct {
	Kind  FilterKind
	Value float32
}

// ImageMask clips by the alpha of an image resource.
type ImageMask struct {
	Image  sb.ImageKey
	Rect   sb.Rect
	Repeat bool
}

// ClipRegion is the clip applied to a display item: a main rectangle,
// a range of rounded-rectangle shapes in the complex-clip side-table, and an
// optional image mask. Values are immutable and may be shared by any number
// of items of the list that produced them.
type ClipRegion struct {
	Main    sb.Rect
	Complex ItemRange
	Mask    *ImageMask
}

// SimpleClip returns a clip region consisting of r alone.
func SimpleClip(r sb.Rect) ClipRegion {
	return ClipRegion{Main: r}
}

// MixBlendMode is the CSS mix-blend-mode of a stacking context.
type MixBlendMode uint32

// Blend modes.
const (
	BlendNormal MixBlendMode = iota
	BlendMultiply
	BlendScreen
	BlendOverlay
	BlendDarken
	BlendLighten
	BlendColorDodge
	BlendColorBurn
	BlendHardLight
	BlendSoftLight
	BlendDifference
	BlendExclusion
	BlendHue
	BlendSaturation
	BlendColor
	BlendLuminosity
)

// ScrollPolicy says whether a stacking context scrolls with its parent.
type ScrollPolicy uint32

// Scroll policies.
const (
	ScrollPolicyScrollable ScrollPolicy = iota
	ScrollPolicyFixed
)

// ExtendMode controls gradient behavior past the last stop.
type ExtendMode uint32

// Extend modes.
const (
	ExtendClamp ExtendMode = iota
	ExtendRepeat
)

// ImageRendering selects the image sampling filter.
type ImageRendering uint32

// Image rendering modes.
const (
	ImageRenderingAuto ImageRendering = iota
	ImageRenderingCrispEdges
	ImageRenderingPixelated
)

// BorderStyle is the CSS style of one border side.
type BorderStyle uint32

// Border styles.
const (
	BorderStyleNone BorderStyle = iota
	BorderStyleSolid
	BorderStyleDouble
	BorderStyleDotted
	BorderStyleDashed
	BorderStyleHidden
	BorderStyleGroove
	BorderStyleRidge
	BorderStyleInset
	BorderStyleOutset
)

// Visible reports whether the style paints anything.
func (s BorderStyle) Visible() bool {
	return s != BorderStyleNone && s != BorderStyleHidden
}

// RepeatMode controls how border image edges fill their area.
type RepeatMode uint32

// Repeat modes.
const (
	RepeatStretch RepeatMode = iota
	RepeatRepeat
	RepeatRound
	RepeatSpace
)

// BoxShadowClipMode selects which side of the box a shadow paints.
type BoxShadowClipMode uint32

// Box shadow clip modes.
const (
	BoxShadowClipNone BoxShadowClipMode = iota
	BoxShadowClipOutset
	BoxShadowClipInset
)

// BorderSide is the color and style of one border edge.
type BorderSide struct {
	Color sb.Color
	Style BorderStyle
}

// Gradient is a linear gradient between two points.
type Gradient struct {
	Start  sb.Point
	End    sb.Point
	Stops  ItemRange
	Extend ExtendMode
}

// RadialGradient is a two-circle radial gradient.
type RadialGradient struct {
	StartCenter sb.Point
	StartRadius float32
	EndCenter   sb.Point
	EndRadius   float32
	RatioXY     float32
	Stops       ItemRange
	Extend      ExtendMode
}

// NinePatch describes how a border image is sliced.
type NinePatch struct {
	Width  uint32
	Height uint32
	Slice  sb.SideOffsets
}
