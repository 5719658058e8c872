package displaylist

import (
	"errors"
	"fmt"

	sb "github.com/gogpu/scenebridge"
)

// ErrUnbalanced is returned by Finalize when push and pop calls did not pair
// up in LIFO order.
var ErrUnbalanced = errors.New("displaylist: unbalanced scopes")

// StackingContext describes a stacking context scope in full.
// PushStackingContext covers the common case.
type StackingContext struct {
	Bounds sb.Rect
	// Clip defaults to the bounds when nil.
	Clip         *ClipRegion
	Opacity      float32
	Transform    sb.Matrix4
	BlendMode    MixBlendMode
	ScrollPolicy ScrollPolicy
	Filters      []FilterOp
}

// Builder accumulates the display list of one pipeline.
//
// A Builder is owned by the producer context that created it and is not safe
// for concurrent use. After Finalize it is empty and may be reused.
//
// Example:
//
//	b := displaylist.NewBuilder(ctx.Producer, pipeline)
//	b.Begin(800, 600)
//	b.PushStackingContext(bounds, 1, sb.Identity4(), displaylist.BlendNormal)
//	b.PushRect(rect, displaylist.SimpleClip(rect), sb.Color{R: 1, A: 1})
//	b.PopStackingContext()
//	b.End()
//	dl, err := b.Finalize()
type Builder struct {
	pipeline sb.PipelineID

	w       recordWriter
	glyphs  []GlyphInstance
	stops   []GradientStop
	clips   []ComplexClipRegion
	filters []FilterOp

	scopes   []Tag
	zIndex   int32
	scrollID uint32
	count    int
	err      error
}

// NewBuilder creates an empty builder bound to pipeline. The producer token
// must be valid.
func NewBuilder(pc sb.ProducerContext, pipeline sb.PipelineID) *Builder {
	pc.MustValid()
	return &Builder{pipeline: pipeline}
}

// Pipeline returns the pipeline the builder is bound to.
func (b *Builder) Pipeline() sb.PipelineID { return b.pipeline }

// Len returns the number of records accumulated so far.
func (b *Builder) Len() int { return b.count }

// Depth returns the number of currently open scopes.
func (b *Builder) Depth() int { return len(b.scopes) }

// Err returns the first scoping violation, if any.
func (b *Builder) Err() error { return b.err }

// reset clears all accumulated state, keeping allocated capacity.
func (b *Builder) reset() {
	b.w.buf = b.w.buf[:0]
	b.glyphs = b.glyphs[:0]
	b.stops = b.stops[:0]
	b.clips = b.clips[:0]
	b.filters = b.filters[:0]
	b.scopes = b.scopes[:0]
	b.zIndex = 0
	b.scrollID = 0
	b.count = 0
	b.err = nil
}

// ---------------------------------------------------------------------------
// Frame scope
// ---------------------------------------------------------------------------

// Begin resets the builder and opens the root stacking context covering the
// viewport. The root has z-index 0; nested contexts count up from 1.
func (b *Builder) Begin(width, height float32) {
	b.reset()
	bounds := sb.NewRect(0, 0, width, height)
	b.pushStackingContext(StackingContext{
		Bounds:    bounds,
		Opacity:   1,
		Transform: sb.Identity4(),
	}, 0)
}

// End closes the root stacking context opened by Begin.
func (b *Builder) End() {
	b.PopStackingContext()
}

// Finalize returns the accumulated list and resets the builder to an empty
// state bound to the same pipeline. It fails with ErrUnbalanced if any push
// was not matched by a pop in LIFO order.
func (b *Builder) Finalize() (*DisplayList, error) {
	defer b.reset()

	if b.err != nil {
		return nil, b.err
	}
	if len(b.scopes) != 0 {
		return nil, fmt.Errorf("%w: %d scopes still open, innermost %s",
			ErrUnbalanced, len(b.scopes), b.scopes[len(b.scopes)-1])
	}
	dl := &DisplayList{
		parts: Parts{
			Pipeline:      b.pipeline,
			Items:         clone(b.w.buf),
			Glyphs:        clone(b.glyphs),
			GradientStops: clone(b.stops),
			ComplexClips:  clone(b.clips),
			Filters:       clone(b.filters),
		},
		count: b.count,
	}
	return dl, nil
}

func clone[T any](s []T) []T {
	if len(s) == 0 {
		return nil
	}
	return append([]T(nil), s...)
}

// ---------------------------------------------------------------------------
// Scopes
// ---------------------------------------------------------------------------

// PushStackingContext opens a stacking context with the next z-index. An
// opacity below 1 is recorded as an opacity filter.
func (b *Builder) PushStackingContext(bounds sb.Rect, opacity float32, transform sb.Matrix4, mode MixBlendMode) {
	b.PushStackingContextWith(StackingContext{
		Bounds:    bounds,
		Opacity:   opacity,
		Transform: transform,
		BlendMode: mode,
	})
}

// PushStackingContextWith opens a stacking context described by sc.
func (b *Builder) PushStackingContextWith(sc StackingContext) {
	b.zIndex++
	b.pushStackingContext(sc, b.zIndex)
}

func (b *Builder) pushStackingContext(sc StackingContext, z int32) {
	start := uint32(len(b.filters)) //nolint:gosec // table sizes fit in u32
	b.filters = append(b.filters, sc.Filters...)
	if sc.Opacity < 1 {
		b.filters = append(b.filters, FilterOp{Kind: FilterOpacity, Value: sc.Opacity})
	}
	filters := ItemRange{Start: start, Length: uint32(len(b.filters)) - start} //nolint:gosec // see above
	if filters.Length == 0 {
		filters = ItemRange{}
	}

	clip := SimpleClip(sc.Bounds)
	if sc.Clip != nil {
		clip = *sc.Clip
	}
	b.push(Item{
		Tag:    TagPushStackingContext,
		Bounds: sc.Bounds,
		Clip:   clip,
		Data: &StackingContextItem{
			ScrollPolicy: sc.ScrollPolicy,
			ZIndex:       z,
			Transform:    sc.Transform,
			BlendMode:    sc.BlendMode,
			Filters:      filters,
		},
	})
	b.scopes = append(b.scopes, TagPushStackingContext)
}

// PopStackingContext closes the innermost scope, which must be a stacking
// context.
func (b *Builder) PopStackingContext() {
	b.pop(TagPushStackingContext)
}

// PushScrollLayer opens a scroll layer whose content spans bounds and which
// is clipped to overflow and the optional mask.
func (b *Builder) PushScrollLayer(bounds, overflow sb.Rect, mask *ImageMask) {
	b.scrollID++
	b.push(Item{
		Tag:    TagPushScrollLayer,
		Bounds: bounds,
		Clip:   b.NewClipRegion(overflow, nil, mask),
		Data:   &ScrollLayerItem{ID: b.scrollID},
	})
	b.scopes = append(b.scopes, TagPushScrollLayer)
}

// PopScrollLayer closes the innermost scope, which must be a scroll layer.
func (b *Builder) PopScrollLayer() {
	b.pop(TagPushScrollLayer)
}

func (b *Builder) pop(opened Tag) {
	closing := opened.popFor()
	if len(b.scopes) == 0 {
		b.fail(fmt.Errorf("%w: %s with no open scope", ErrUnbalanced, closing))
		return
	}
	top := b.scopes[len(b.scopes)-1]
	if top != opened {
		b.fail(fmt.Errorf("%w: %s while %s is innermost", ErrUnbalanced, closing, top))
		return
	}
	b.scopes = b.scopes[:len(b.scopes)-1]
	b.push(Item{Tag: closing})
}

// fail records the first violation; later ones are ignored.
func (b *Builder) fail(err error) {
	if b.err == nil {
		b.err = err
	}
}

func (b *Builder) push(it Item) {
	appendItem(&b.w, it)
	b.count++
}

// ---------------------------------------------------------------------------
// Clip regions
// ---------------------------------------------------------------------------

// NewClipRegion appends complex to the complex-clip side-table and returns a
// clip region referencing it. The result can be passed to any number of draw
// calls of this list.
func (b *Builder) NewClipRegion(main sb.Rect, complex []ComplexClipRegion, mask *ImageMask) ClipRegion {
	c := ClipRegion{Main: main, Complex: appendRange(&b.clips, complex)}
	if mask != nil {
		m := *mask
		c.Mask = &m
	}
	return c
}

func appendRange[T any](table *[]T, entries []T) ItemRange {
	if len(entries) == 0 {
		return ItemRange{}
	}
	start := uint32(len(*table)) //nolint:gosec // table sizes fit in u32
	*table = append(*table, entries...)
	return ItemRange{Start: start, Length: uint32(len(entries))} //nolint:gosec // see above
}

// ---------------------------------------------------------------------------
// Draw commands
// ---------------------------------------------------------------------------

// PushRect fills rect with color.
func (b *Builder) PushRect(rect sb.Rect, clip ClipRegion, color sb.Color) {
	b.push(Item{Tag: TagRect, Bounds: rect, Clip: clip, Data: &RectItem{Color: color}})
}

// PushImage draws the image key into bounds, repeating it every
// stretchSize+tileSpacing.
func (b *Builder) PushImage(bounds sb.Rect, clip ClipRegion, stretchSize, tileSpacing sb.Size,
	rendering ImageRendering, key sb.ImageKey) {
	b.push(Item{Tag: TagImage, Bounds: bounds, Clip: clip, Data: &ImageItem{
		StretchSize: stretchSize,
		TileSpacing: tileSpacing,
		Rendering:   rendering,
		Key:         key,
	}})
}

// PushText draws glyphs with font at size pixels.
func (b *Builder) PushText(bounds sb.Rect, clip ClipRegion, glyphs []GlyphInstance, font sb.FontKey,
	color sb.Color, size float32) {
	b.push(Item{Tag: TagText, Bounds: bounds, Clip: clip, Data: &TextItem{
		Glyphs: appendRange(&b.glyphs, glyphs),
		Font:   font,
		Color:  color,
		Size:   size,
	}})
}

// PushBorder draws four styled sides with the given widths and corner radii.
func (b *Builder) PushBorder(rect sb.Rect, clip ClipRegion, widths sb.SideOffsets,
	top, right, bottom, left BorderSide, radius sb.BorderRadius) {
	b.push(Item{Tag: TagBorder, Bounds: rect, Clip: clip, Data: &BorderItem{
		Widths: widths,
		Top:    top,
		Right:  right,
		Bottom: bottom,
		Left:   left,
		Radius: radius,
	}})
}

// PushBorderImage draws a nine-patch border sliced from image.
func (b *Builder) PushBorderImage(rect sb.Rect, clip ClipRegion, widths sb.SideOffsets, image sb.ImageKey,
	patch NinePatch, outset sb.SideOffsets, repeatH, repeatV RepeatMode) {
	b.push(Item{Tag: TagBorderImage, Bounds: rect, Clip: clip, Data: &BorderImageItem{
		Widths:  widths,
		Image:   image,
		Patch:   patch,
		Outset:  outset,
		RepeatH: repeatH,
		RepeatV: repeatV,
	}})
}

// PushBorderGradient draws a border filled with a linear gradient.
func (b *Builder) PushBorderGradient(rect sb.Rect, clip ClipRegion, widths sb.SideOffsets,
	start, end sb.Point, stops []GradientStop, extend ExtendMode, outset sb.SideOffsets) {
	b.push(Item{Tag: TagBorderGradient, Bounds: rect, Clip: clip, Data: &BorderGradientItem{
		Widths:   widths,
		Gradient: b.gradient(start, end, stops, extend),
		Outset:   outset,
	}})
}

// PushBorderRadialGradient draws a border filled with a radial gradient.
func (b *Builder) PushBorderRadialGradient(rect sb.Rect, clip ClipRegion, widths sb.SideOffsets,
	g RadialGradientSpec, outset sb.SideOffsets) {
	b.push(Item{Tag: TagBorderRadialGradient, Bounds: rect, Clip: clip, Data: &BorderRadialGradientItem{
		Widths:   widths,
		Gradient: b.radial(g),
		Outset:   outset,
	}})
}

// PushGradient fills rect with a linear gradient from start to end, tiled by
// tileSize+tileSpacing.
func (b *Builder) PushGradient(rect sb.Rect, clip ClipRegion, start, end sb.Point, stops []GradientStop,
	extend ExtendMode, tileSize, tileSpacing sb.Size) {
	b.push(Item{Tag: TagGradient, Bounds: rect, Clip: clip, Data: &GradientItem{
		Gradient:    b.gradient(start, end, stops, extend),
		TileSize:    tileSize,
		TileSpacing: tileSpacing,
	}})
}

// RadialGradientSpec describes a radial gradient before its stops are
// placed in the side-table.
type RadialGradientSpec struct {
	StartCenter sb.Point
	StartRadius float32
	EndCenter   sb.Point
	EndRadius   float32
	RatioXY     float32
	Stops       []GradientStop
	Extend      ExtendMode
}

// PushRadialGradient fills rect with a radial gradient, tiled by
// tileSize+tileSpacing.
func (b *Builder) PushRadialGradient(rect sb.Rect, clip ClipRegion, g RadialGradientSpec,
	tileSize, tileSpacing sb.Size) {
	b.push(Item{Tag: TagRadialGradient, Bounds: rect, Clip: clip, Data: &RadialGradientItem{
		Gradient:    b.radial(g),
		TileSize:    tileSize,
		TileSpacing: tileSpacing,
	}})
}

func (b *Builder) gradient(start, end sb.Point, stops []GradientStop, extend ExtendMode) Gradient {
	return Gradient{Start: start, End: end, Stops: appendRange(&b.stops, stops), Extend: extend}
}

func (b *Builder) radial(g RadialGradientSpec) RadialGradient {
	ratio := g.RatioXY
	if ratio == 0 {
		ratio = 1
	}
	return RadialGradient{
		StartCenter: g.StartCenter,
		StartRadius: g.StartRadius,
		EndCenter:   g.EndCenter,
		EndRadius:   g.EndRadius,
		RatioXY:     ratio,
		Stops:       appendRange(&b.stops, g.Stops),
		Extend:      g.Extend,
	}
}

// BoxShadow describes a box shadow draw command.
type BoxShadow struct {
	BoxBounds    sb.Rect
	Offset       sb.Point
	Color        sb.Color
	BlurRadius   float32
	SpreadRadius float32
	BorderRadius float32
	ClipMode     BoxShadowClipMode
}

// PushBoxShadow draws the shadow of s.BoxBounds within rect.
func (b *Builder) PushBoxShadow(rect sb.Rect, clip ClipRegion, s BoxShadow) {
	b.push(Item{Tag: TagBoxShadow, Bounds: rect, Clip: clip, Data: &BoxShadowItem{
		BoxBounds:    s.BoxBounds,
		Offset:       s.Offset,
		Color:        s.Color,
		BlurRadius:   s.BlurRadius,
		SpreadRadius: s.SpreadRadius,
		BorderRadius: s.BorderRadius,
		ClipMode:     s.ClipMode,
	}})
}

// PushIframe embeds the content of pipeline within rect.
func (b *Builder) PushIframe(rect sb.Rect, clip ClipRegion, pipeline sb.PipelineID) {
	b.push(Item{Tag: TagIframe, Bounds: rect, Clip: clip, Data: &IframeItem{Pipeline: pipeline}})
}

// ---------------------------------------------------------------------------
// Nesting
// ---------------------------------------------------------------------------

// PushBuiltDisplayList appends every record of dl, re-basing its side-table
// ranges onto this builder's tables and its stacking-context z-indices past
// the ones already assigned. dl must be a finalized, valid list.
func (b *Builder) PushBuiltDisplayList(dl *DisplayList) error {
	if dl == nil || dl.count == 0 {
		return nil
	}
	bases := tableBases{
		glyphs:  uint32(len(b.glyphs)),  //nolint:gosec // table sizes fit in u32
		stops:   uint32(len(b.stops)),   //nolint:gosec // table sizes fit in u32
		clips:   uint32(len(b.clips)),   //nolint:gosec // table sizes fit in u32
		filters: uint32(len(b.filters)), //nolint:gosec // table sizes fit in u32
		zIndex:  b.zIndex + 1,
	}

	// Decode everything first so a corrupt list leaves the builder untouched.
	items := make([]Item, 0, dl.count)
	var maxZ int32
	it := dl.Items()
	for it.Next() {
		item := it.Item()
		if sc, ok := item.Data.(*StackingContextItem); ok {
			maxZ = max(maxZ, sc.ZIndex)
		}
		items = append(items, item)
	}
	if err := it.Err(); err != nil {
		return err
	}

	p := dl.parts
	b.glyphs = append(b.glyphs, p.Glyphs...)
	b.stops = append(b.stops, p.GradientStops...)
	b.clips = append(b.clips, p.ComplexClips...)
	b.filters = append(b.filters, p.Filters...)
	for _, item := range items {
		if item.Data != nil {
			item.Clip.Complex = item.Clip.Complex.rebase(bases.clips)
			item.Data.rebase(bases)
		}
		b.push(item)
	}
	b.zIndex = bases.zIndex + maxZ
	return nil
}
