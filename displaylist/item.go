package displaylist

import (
	"fmt"

	sb "github.com/gogpu/scenebridge"
)

// Item is one decoded record of the command stream.
// Data is nil for scope pops.
type Item struct {
	Tag    Tag
	Bounds sb.Rect
	Clip   ClipRegion
	Data   ItemData
}

// ItemData is the tag-specific payload of an item.
type ItemData interface {
	tag() Tag
	encode(w *recordWriter)
	decode(r *recordReader)
	rebase(b tableBases)
}

// tableBases holds the side-table offsets applied when one list is nested
// into another. zIndex shifts the nested stacking contexts past every
// z-index the outer builder has assigned.
type tableBases struct {
	glyphs, stops, clips, filters uint32
	zIndex                        int32
}

// RectItem fills the bounds with a color.
type RectItem struct {
	Color sb.Color
}

// ImageItem draws an image, tiling it every StretchSize+TileSpacing.
type ImageItem struct {
	StretchSize sb.Size
	TileSpacing sb.Size
	Rendering   ImageRendering
	Key         sb.ImageKey
}

// TextItem draws Glyphs from the glyph side-table with Font at Size pixels.
type TextItem struct {
	Glyphs     ItemRange
	Font       sb.FontKey
	Color      sb.Color
	Size       float32
	BlurRadius float32
}

// BoxShadowItem draws the shadow of BoxBounds.
type BoxShadowItem struct {
	BoxBounds    sb.Rect
	Offset       sb.Point
	Color        sb.Color
	BlurRadius   float32
	SpreadRadius float32
	BorderRadius float32
	ClipMode     BoxShadowClipMode
}

// BorderItem draws four styled sides.
type BorderItem struct {
	Widths sb.SideOffsets
	Top    BorderSide
	Right  BorderSide
	Bottom BorderSide
	Left   BorderSide
	Radius sb.BorderRadius
}

// BorderImageItem draws a nine-patch border from an image.
type BorderImageItem struct {
	Widths  sb.SideOffsets
	Image   sb.ImageKey
	Patch   NinePatch
	Outset  sb.SideOffsets
	RepeatH RepeatMode
	RepeatV RepeatMode
}

// BorderGradientItem draws a border filled with a linear gradient.
type BorderGradientItem struct {
	Widths   sb.SideOffsets
	Gradient Gradient
	Outset   sb.SideOffsets
}

// BorderRadialGradientItem draws a border filled with a radial gradient.
type BorderRadialGradientItem struct {
	Widths   sb.SideOffsets
	Gradient RadialGradient
	Outset   sb.SideOffsets
}

// GradientItem fills the bounds with a linear gradient tile.
type GradientItem struct {
	Gradient    Gradient
	TileSize    sb.Size
	TileSpacing sb.Size
}

// RadialGradientItem fills the bounds with a radial gradient tile.
type RadialGradientItem struct {
	Gradient    RadialGradient
	TileSize    sb.Size
	TileSpacing sb.Size
}

// StackingContextItem opens a stacking context.
type StackingContextItem struct {
	ScrollPolicy ScrollPolicy
	ZIndex       int32
	Transform    sb.Matrix4
	BlendMode    MixBlendMode
	Filters      ItemRange
}

// ScrollLayerItem opens a scroll layer. ID is unique within the list.
type ScrollLayerItem struct {
	ID uint32
}

// IframeItem embeds another pipeline's content.
type IframeItem struct {
	Pipeline sb.PipelineID
}

func (*RectItem) tag() Tag                 { return TagRect }
func (*ImageItem) tag() Tag                { return TagImage }
func (*TextItem) tag() Tag                 { return TagText }
func (*BoxShadowItem) tag() Tag            { return TagBoxShadow }
func (*BorderItem) tag() Tag               { return TagBorder }
func (*BorderImageItem) tag() Tag          { return TagBorderImage }
func (*BorderGradientItem) tag() Tag       { return TagBorderGradient }
func (*BorderRadialGradientItem) tag() Tag { return TagBorderRadialGradient }
func (*GradientItem) tag() Tag             { return TagGradient }
func (*RadialGradientItem) tag() Tag       { return TagRadialGradient }
func (*StackingContextItem) tag() Tag      { return TagPushStackingContext }
func (*ScrollLayerItem) tag() Tag          { return TagPushScrollLayer }
func (*IframeItem) tag() Tag               { return TagIframe }

func (d *RectItem) encode(w *recordWriter) { w.color(d.Color) }
func (d *RectItem) decode(r *recordReader) { d.Color = r.color() }

// Items without side-table references keep their payload when nested.
func (*RectItem) rebase(tableBases)        {}
func (*IframeItem) rebase(tableBases)      {}
func (*ImageItem) rebase(tableBases)       {}
func (*BoxShadowItem) rebase(tableBases)   {}
func (*ScrollLayerItem) rebase(tableBases) {}
func (*BorderItem) rebase(tableBases)      {}
func (*BorderImageItem) rebase(tableBases) {}

func (d *IframeItem) encode(w *recordWriter) {
	w.u32(uint32(d.Pipeline.Namespace))
	w.u32(d.Pipeline.ID)
}

func (d *IframeItem) decode(r *recordReader) {
	d.Pipeline = sb.PipelineID{Namespace: sb.IdNamespace(r.u32()), ID: r.u32()}
}

func (d *ImageItem) encode(w *recordWriter) {
	w.size(d.StretchSize)
	w.size(d.TileSpacing)
	w.u32(uint32(d.Rendering))
	w.imageKey(d.Key)
}

func (d *ImageItem) decode(r *recordReader) {
	d.StretchSize = r.size()
	d.TileSpacing = r.size()
	d.Rendering = ImageRendering(r.u32())
	d.Key = r.imageKey()
}

func (d *TextItem) encode(w *recordWriter) {
	w.itemRange(d.Glyphs)
	w.u32(uint32(d.Font.Namespace))
	w.u32(d.Font.ID)
	w.color(d.Color)
	w.f32(d.Size)
	w.f32(d.BlurRadius)
}

func (d *TextItem) decode(r *recordReader) {
	d.Glyphs = r.itemRange()
	d.Font = sb.FontKey{Namespace: sb.IdNamespace(r.u32()), ID: r.u32()}
	d.Color = r.color()
	d.Size = r.f32()
	d.BlurRadius = r.f32()
}

func (d *TextItem) rebase(b tableBases) { d.Glyphs = d.Glyphs.rebase(b.glyphs) }

func (d *BoxShadowItem) encode(w *recordWriter) {
	w.rect(d.BoxBounds)
	w.point(d.Offset)
	w.color(d.Color)
	w.f32(d.BlurRadius)
	w.f32(d.SpreadRadius)
	w.f32(d.BorderRadius)
	w.u32(uint32(d.ClipMode))
}

func (d *BoxShadowItem) decode(r *recordReader) {
	d.BoxBounds = r.rect()
	d.Offset = r.point()
	d.Color = r.color()
	d.BlurRadius = r.f32()
	d.SpreadRadius = r.f32()
	d.BorderRadius = r.f32()
	d.ClipMode = BoxShadowClipMode(r.u32())
}

func encodeSide(w *recordWriter, s BorderSide) { w.color(s.Color); w.u32(uint32(s.Style)) }

func decodeSide(r *recordReader) BorderSide {
	return BorderSide{Color: r.color(), Style: BorderStyle(r.u32())}
}

func (d *BorderItem) encode(w *recordWriter) {
	w.sides(d.Widths)
	encodeSide(w, d.Top)
	encodeSide(w, d.Right)
	encodeSide(w, d.Bottom)
	encodeSide(w, d.Left)
	w.radius(d.Radius)
}

func (d *BorderItem) decode(r *recordReader) {
	d.Widths = r.sides()
	d.Top = decodeSide(r)
	d.Right = decodeSide(r)
	d.Bottom = decodeSide(r)
	d.Left = decodeSide(r)
	d.Radius = r.radius()
}

func (d *BorderImageItem) encode(w *recordWriter) {
	w.sides(d.Widths)
	w.imageKey(d.Image)
	w.u32(d.Patch.Width)
	w.u32(d.Patch.Height)
	w.sides(d.Patch.Slice)
	w.sides(d.Outset)
	w.u32(uint32(d.RepeatH))
	w.u32(uint32(d.RepeatV))
}

func (d *BorderImageItem) decode(r *recordReader) {
	d.Widths = r.sides()
	d.Image = r.imageKey()
	d.Patch = NinePatch{Width: r.u32(), Height: r.u32(), Slice: r.sides()}
	d.Outset = r.sides()
	d.RepeatH = RepeatMode(r.u32())
	d.RepeatV = RepeatMode(r.u32())
}

func encodeGradient(w *recordWriter, g Gradient) {
	w.point(g.Start)
	w.point(g.End)
	w.itemRange(g.Stops)
	w.u32(uint32(g.Extend))
}

func decodeGradient(r *recordReader) Gradient {
	return Gradient{Start: r.point(), End: r.point(), Stops: r.itemRange(), Extend: ExtendMode(r.u32())}
}

func encodeRadial(w *recordWriter, g RadialGradient) {
	w.point(g.StartCenter)
	w.f32(g.StartRadius)
	w.point(g.EndCenter)
	w.f32(g.EndRadius)
	w.f32(g.RatioXY)
	w.itemRange(g.Stops)
	w.u32(uint32(g.Extend))
}

func decodeRadial(r *recordReader) RadialGradient {
	return RadialGradient{
		StartCenter: r.point(),
		StartRadius: r.f32(),
		EndCenter:   r.point(),
		EndRadius:   r.f32(),
		RatioXY:     r.f32(),
		Stops:       r.itemRange(),
		Extend:      ExtendMode(r.u32()),
	}
}

func (d *BorderGradientItem) encode(w *recordWriter) {
	w.sides(d.Widths)
	encodeGradient(w, d.Gradient)
	w.sides(d.Outset)
}

func (d *BorderGradientItem) decode(r *recordReader) {
	d.Widths = r.sides()
	d.Gradient = decodeGradient(r)
	d.Outset = r.sides()
}

func (d *BorderGradientItem) rebase(b tableBases) {
	d.Gradient.Stops = d.Gradient.Stops.rebase(b.stops)
}

func (d *BorderRadialGradientItem) encode(w *recordWriter) {
	w.sides(d.Widths)
	encodeRadial(w, d.Gradient)
	w.sides(d.Outset)
}

func (d *BorderRadialGradientItem) decode(r *recordReader) {
	d.Widths = r.sides()
	d.Gradient = decodeRadial(r)
	d.Outset = r.sides()
}

func (d *BorderRadialGradientItem) rebase(b tableBases) {
	d.Gradient.Stops = d.Gradient.Stops.rebase(b.stops)
}

func (d *GradientItem) encode(w *recordWriter) {
	encodeGradient(w, d.Gradient)
	w.size(d.TileSize)
	w.size(d.TileSpacing)
}

func (d *GradientItem) decode(r *recordReader) {
	d.Gradient = decodeGradient(r)
	d.TileSize = r.size()
	d.TileSpacing = r.size()
}

func (d *GradientItem) rebase(b tableBases) { d.Gradient.Stops = d.Gradient.Stops.rebase(b.stops) }

func (d *RadialGradientItem) encode(w *recordWriter) {
	encodeRadial(w, d.Gradient)
	w.size(d.TileSize)
	w.size(d.TileSpacing)
}

func (d *RadialGradientItem) decode(r *recordReader) {
	d.Gradient = decodeRadial(r)
	d.TileSize = r.size()
	d.TileSpacing = r.size()
}

func (d *RadialGradientItem) rebase(b tableBases) {
	d.Gradient.Stops = d.Gradient.Stops.rebase(b.stops)
}

func (d *StackingContextItem) encode(w *recordWriter) {
	w.u32(uint32(d.ScrollPolicy))
	w.i32(d.ZIndex)
	w.matrix(d.Transform)
	w.u32(uint32(d.BlendMode))
	w.itemRange(d.Filters)
}

func (d *StackingContextItem) decode(r *recordReader) {
	d.ScrollPolicy = ScrollPolicy(r.u32())
	d.ZIndex = r.i32()
	d.Transform = r.matrix()
	d.BlendMode = MixBlendMode(r.u32())
	d.Filters = r.itemRange()
}

func (d *StackingContextItem) rebase(b tableBases) {
	d.Filters = d.Filters.rebase(b.filters)
	d.ZIndex += b.zIndex
}

func (d *ScrollLayerItem) encode(w *recordWriter) { w.u32(d.ID) }
func (d *ScrollLayerItem) decode(r *recordReader) { d.ID = r.u32() }

// newItemData returns an empty payload for tag, or nil for pops.
func newItemData(tag Tag) (ItemData, error) {
	switch tag {
	case TagRect:
		return &RectItem{}, nil
	case TagImage:
		return &ImageItem{}, nil
	case TagText:
		return &TextItem{}, nil
	case TagBoxShadow:
		return &BoxShadowItem{}, nil
	case TagBorder:
		return &BorderItem{}, nil
	case TagBorderImage:
		return &BorderImageItem{}, nil
	case TagBorderGradient:
		return &BorderGradientItem{}, nil
	case TagBorderRadialGradient:
		return &BorderRadialGradientItem{}, nil
	case TagGradient:
		return &GradientItem{}, nil
	case TagRadialGradient:
		return &RadialGradientItem{}, nil
	case TagPushStackingContext:
		return &StackingContextItem{}, nil
	case TagPushScrollLayer:
		return &ScrollLayerItem{}, nil
	case TagIframe:
		return &IframeItem{}, nil
	case TagPopStackingContext, TagPopScrollLayer:
		return nil, nil
	default:
		return nil, fmt.Errorf("%w: unknown tag 0x%02x", ErrMalformedRecord, byte(tag))
	}
}

// appendItem encodes it as one record.
func appendItem(w *recordWriter, it Item) {
	lenAt := w.begin(it.Tag)
	if !it.Tag.IsPop() {
		w.rect(it.Bounds)
		w.clip(it.Clip)
		it.Data.encode(w)
	}
	w.end(lenAt)
}

// decodeItem decodes one record payload.
func decodeItem(tag Tag, payload []byte) (Item, error) {
	data, err := newItemData(tag)
	if err != nil {
		return Item{}, err
	}
	it := Item{Tag: tag}
	r := &recordReader{buf: payload}
	if data != nil {
		it.Bounds = r.rect()
		it.Clip = r.clip()
		data.decode(r)
		it.Data = data
	}
	if err := r.finish(); err != nil {
		return Item{}, fmt.Errorf("%s record: %w", tag, err)
	}
	return it, nil
}
