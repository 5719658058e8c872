// Copyright 2026 The gogpu Authors
// SPDX-License-Identifier: MIT

package render

import (
	"fmt"
	"image"

	"golang.org/x/image/draw"
	"golang.org/x/image/font/sfnt"

	sb "github.com/gogpu/scenebridge"
	"github.com/gogpu/scenebridge/displaylist"
	"github.com/gogpu/scenebridge/internal/blend"
	"github.com/gogpu/scenebridge/internal/cache"
	"github.com/gogpu/scenebridge/internal/filter"
)

// maxIframeDepth bounds nested iframe embedding.
const maxIframeDepth = 8

// glyphCacheSize is the number of rasterized glyph masks kept per compositor.
const glyphCacheSize = 2048

// SoftwareCompositor rasterizes display lists on the CPU.
//
// Items are drawn in list order. Stacking contexts with a blend mode or
// filters are isolated into a layer and blended into their parent when they
// pop; the others draw straight into their parent's target.
type SoftwareCompositor struct {
	p      *pather
	glyphs *cache.Cache[glyphKey, *image.Alpha]
	buf    sfnt.Buffer
	stats  CompositeStats
}

// CompositeStats counts the work of the last Composite call.
type CompositeStats struct {
	Items   int
	Skipped int
	Layers  int
	Iframes int
}

var _ Compositor = (*SoftwareCompositor)(nil)

// NewSoftwareCompositor creates a CPU compositor.
func NewSoftwareCompositor() *SoftwareCompositor {
	return &SoftwareCompositor{
		p:      newPather(),
		glyphs: cache.New[glyphKey, *image.Alpha](glyphCacheSize),
	}
}

// Stats returns the counters of the last Composite call.
func (c *SoftwareCompositor) Stats() CompositeStats { return c.stats }

// GlyphCache returns glyph cache statistics.
func (c *SoftwareCompositor) GlyphCache() cache.Stats { return c.glyphs.Stats() }

// Composite implements Compositor. The root pipeline is drawn into the
// frame's inner rectangle over its background color.
func (c *SoftwareCompositor) Composite(dst *image.RGBA, f *Frame) error {
	c.stats = CompositeStats{}
	if !f.HasRoot {
		return nil
	}
	root, ok := f.Pipeline(f.Root)
	if !ok {
		return nil
	}
	clip := f.Inner.Pixels().Intersect(dst.Rect)
	if clip.Empty() {
		return nil
	}
	if root.Background.A > 0 {
		draw.Draw(dst, clip, solid(root.Background), image.Point{}, draw.Over)
	}
	xf := sb.Translation4(f.Inner.Origin.X, f.Inner.Origin.Y)
	visiting := map[sb.PipelineID]bool{f.Root: true}
	return c.drawList(dst, f, root, xf, clip, 0, visiting)
}

// scope is an open stacking context or scroll layer.
type scope struct {
	tag  displaylist.Tag
	xf   sb.Matrix4
	clip image.Rectangle
	// target receives draws. Isolated scopes own a layer that is blended
	// into parent when the scope pops.
	target  *image.RGBA
	parent  *image.RGBA
	mode    blend.Mode
	filters []displaylist.FilterOp
	mask    *image.Alpha
}

func (s *scope) isolated() bool { return s.parent != nil }

// drawCtx is what the item painters need from the enclosing walk.
type drawCtx struct {
	dst  *image.RGBA
	res  Resources
	dl   *displaylist.DisplayList
	xf   sb.Matrix4
	clip image.Rectangle
}

func (c *SoftwareCompositor) drawList(dst *image.RGBA, f *Frame, pf *PipelineFrame, xf sb.Matrix4,
	clip image.Rectangle, depth int, visiting map[sb.PipelineID]bool) error {
	dl := pf.List
	if dl == nil {
		return nil
	}
	stack := []*scope{{xf: xf, clip: clip, target: dst}}
	it := dl.Items()
	for it.Next() {
		item := it.Item()
		top := stack[len(stack)-1]
		switch item.Tag {
		case displaylist.TagPushStackingContext:
			stack = append(stack, c.pushStackingContext(top, dl, item))
		case displaylist.TagPushScrollLayer:
			stack = append(stack, c.pushScrollLayer(top, f, pf, dl, item))
		case displaylist.TagPopStackingContext, displaylist.TagPopScrollLayer:
			if len(stack) == 1 {
				return fmt.Errorf("render: unbalanced %v at item %d", item.Tag, it.Index())
			}
			c.pop(top)
			stack = stack[:len(stack)-1]
		case displaylist.TagIframe:
			c.drawIframe(top, f, dl, item, depth, visiting)
		default:
			c.drawItem(drawCtx{dst: top.target, res: f, dl: dl, xf: top.xf, clip: top.clip}, item)
		}
	}
	if err := it.Err(); err != nil {
		return err
	}
	for len(stack) > 1 {
		c.pop(stack[len(stack)-1])
		stack = stack[:len(stack)-1]
	}
	return nil
}

func (c *SoftwareCompositor) pushStackingContext(top *scope, dl *displaylist.DisplayList, item displaylist.Item) *scope {
	sc := item.Data.(*displaylist.StackingContextItem)
	local := sc.Transform
	if local == (sb.Matrix4{}) {
		local = sb.Identity4()
	}
	s := &scope{
		tag:    item.Tag,
		xf:     local.Then(sb.Translation4(item.Bounds.Origin.X, item.Bounds.Origin.Y)).Then(top.xf),
		clip:   top.clip.Intersect(deviceRect(top.xf, item.Clip.Main)),
		target: top.target,
		mode:   blend.Mode(sc.BlendMode),
	}
	s.filters = dl.Filters(sc.Filters)
	if (s.mode != blend.ModeNormal || len(s.filters) > 0) && !s.clip.Empty() {
		s.parent = top.target
		s.target = image.NewRGBA(s.clip)
		c.stats.Layers++
	}
	return s
}

func (c *SoftwareCompositor) pushScrollLayer(top *scope, f *Frame, pf *PipelineFrame,
	dl *displaylist.DisplayList, item displaylist.Item) *scope {
	sl := item.Data.(*displaylist.ScrollLayerItem)
	off := pf.Scroll[sl.ID]
	s := &scope{
		tag:    item.Tag,
		xf:     sb.Translation4(-off.X, -off.Y).Then(top.xf),
		clip:   top.clip.Intersect(deviceRect(top.xf, item.Clip.Main)),
		target: top.target,
	}
	if (item.Clip.Mask != nil || !item.Clip.Complex.IsEmpty()) && !s.clip.Empty() {
		ctx := drawCtx{res: f, dl: dl, xf: top.xf, clip: s.clip}
		s.mask = c.clipMask(ctx, item.Clip, s.clip)
		if s.mask != nil {
			s.parent = top.target
			s.target = image.NewRGBA(s.clip)
			c.stats.Layers++
		}
	}
	return s
}

// pop finishes a scope, blending an isolated layer into its parent.
func (c *SoftwareCompositor) pop(s *scope) {
	if !s.isolated() {
		return
	}
	layer := s.target
	for _, op := range s.filters {
		applyFilter(layer, op)
	}
	if s.mask != nil {
		maskLayer(layer, s.mask)
	}
	blend.Layer(s.parent, layer.Rect, layer, layer.Rect.Min, s.mode, 1)
}

// applyFilter runs one filter op over the whole layer.
func applyFilter(layer *image.RGBA, op displaylist.FilterOp) {
	var m filter.Matrix
	switch op.Kind {
	case displaylist.FilterBlur:
		filter.Blur(layer, layer.Rect, op.Value)
		return
	case displaylist.FilterBrightness:
		m = filter.Brightness(op.Value)
	case displaylist.FilterContrast:
		m = filter.Contrast(op.Value)
	case displaylist.FilterGrayscale:
		m = filter.Grayscale(op.Value)
	case displaylist.FilterHueRotate:
		m = filter.HueRotate(op.Value)
	case displaylist.FilterInvert:
		m = filter.Invert(op.Value)
	case displaylist.FilterOpacity:
		m = filter.Opacity(op.Value)
	case displaylist.FilterSaturate:
		m = filter.Saturate(op.Value)
	case displaylist.FilterSepia:
		m = filter.Sepia(op.Value)
	default:
		return
	}
	m.Apply(layer, layer.Rect)
}

func (c *SoftwareCompositor) drawIframe(top *scope, f *Frame, dl *displaylist.DisplayList, item displaylist.Item,
	depth int, visiting map[sb.PipelineID]bool) {
	fr := item.Data.(*displaylist.IframeItem)
	child, ok := f.Pipeline(fr.Pipeline)
	if !ok || visiting[fr.Pipeline] || depth >= maxIframeDepth {
		c.stats.Skipped++
		sb.Logger().Debug("render: iframe skipped", "pipeline", fr.Pipeline, "depth", depth)
		return
	}
	clip := top.clip.Intersect(deviceRect(top.xf, item.Clip.Main)).Intersect(deviceRect(top.xf, item.Bounds))
	if clip.Empty() {
		return
	}
	c.stats.Iframes++
	if child.Background.A > 0 {
		c.p.begin(clip)
		c.p.rect(top.xf, item.Bounds, false)
		fill(top.target, clip, solid(child.Background), c.p.mask())
	}
	visiting[fr.Pipeline] = true
	defer delete(visiting, fr.Pipeline)
	xf := sb.Translation4(item.Bounds.Origin.X, item.Bounds.Origin.Y).Then(top.xf)
	if err := c.drawList(top.target, f, child, xf, clip, depth+1, visiting); err != nil {
		sb.Logger().Warn("render: iframe list", "pipeline", fr.Pipeline, "err", err)
	}
}

// drawItem dispatches one drawing item to its painter.
func (c *SoftwareCompositor) drawItem(ctx drawCtx, item displaylist.Item) {
	r := ctx.clip.Intersect(deviceRect(ctx.xf, item.Clip.Main)).Intersect(deviceRect(ctx.xf, item.Bounds))
	if item.Tag == displaylist.TagBoxShadow || item.Tag == displaylist.TagBorderImage ||
		item.Tag == displaylist.TagBorderGradient || item.Tag == displaylist.TagBorderRadialGradient {
		// These may paint outside their bounds, up to the clip.
		r = ctx.clip.Intersect(deviceRect(ctx.xf, item.Clip.Main)).Intersect(deviceRect(ctx.xf, c.paintBounds(item)))
	}
	if r.Empty() {
		return
	}
	c.stats.Items++
	clipMask := c.clipMask(ctx, item.Clip, r)

	var drawn bool
	switch d := item.Data.(type) {
	case *displaylist.RectItem:
		drawn = c.drawRect(ctx, r, item.Bounds, d, clipMask)
	case *displaylist.ImageItem:
		drawn = c.drawImage(ctx, r, item.Bounds, d, clipMask)
	case *displaylist.TextItem:
		drawn = c.drawText(ctx, r, d, clipMask)
	case *displaylist.BoxShadowItem:
		drawn = c.drawBoxShadow(ctx, r, d, clipMask)
	case *displaylist.BorderItem:
		drawn = c.drawBorder(ctx, r, item.Bounds, d, clipMask)
	case *displaylist.BorderImageItem:
		drawn = c.drawBorderImage(ctx, r, item.Bounds, d, clipMask)
	case *displaylist.BorderGradientItem:
		frame := outset(item.Bounds, d.Outset)
		sh := linearShader(d.Gradient)
		drawn = c.drawBorderFrame(ctx, r, frame, d.Widths, sh, ctx.dl.GradientStops(d.Gradient.Stops), d.Gradient.Extend, clipMask)
	case *displaylist.BorderRadialGradientItem:
		frame := outset(item.Bounds, d.Outset)
		sh := radialShader(d.Gradient)
		drawn = c.drawBorderFrame(ctx, r, frame, d.Widths, sh, ctx.dl.GradientStops(d.Gradient.Stops), d.Gradient.Extend, clipMask)
	case *displaylist.GradientItem:
		drawn = c.drawGradient(ctx, r, item.Bounds, d.TileSize, d.TileSpacing, linearShader(d.Gradient),
			ctx.dl.GradientStops(d.Gradient.Stops), d.Gradient.Extend, clipMask)
	case *displaylist.RadialGradientItem:
		drawn = c.drawGradient(ctx, r, item.Bounds, d.TileSize, d.TileSpacing, radialShader(d.Gradient),
			ctx.dl.GradientStops(d.Gradient.Stops), d.Gradient.Extend, clipMask)
	}
	if !drawn {
		c.stats.Skipped++
	}
}

// paintBounds returns the local rectangle an item may paint into.
func (c *SoftwareCompositor) paintBounds(item displaylist.Item) sb.Rect {
	switch d := item.Data.(type) {
	case *displaylist.BoxShadowItem:
		if d.ClipMode == displaylist.BoxShadowClipInset {
			return item.Bounds
		}
		pad := float32(filter.Outset(d.BlurRadius/2)) + d.SpreadRadius
		return item.Bounds.Union(d.BoxBounds.Translate(d.Offset).Inflate(pad, pad))
	case *displaylist.BorderImageItem:
		return outset(item.Bounds, d.Outset)
	case *displaylist.BorderGradientItem:
		return outset(item.Bounds, d.Outset)
	case *displaylist.BorderRadialGradientItem:
		return outset(item.Bounds, d.Outset)
	}
	return item.Bounds
}

// clipMask returns the coverage of the complex clips and image mask of clip
// over r, or nil when the clip is just its main rectangle.
func (c *SoftwareCompositor) clipMask(ctx drawCtx, clip displaylist.ClipRegion, r image.Rectangle) *image.Alpha {
	var m *image.Alpha
	for _, cc := range ctx.dl.ComplexClips(clip.Complex) {
		c.p.begin(r)
		c.p.roundRect(ctx.xf, cc.Rect, cc.Radii)
		n := c.p.mask()
		if m == nil {
			m = n
		} else {
			mulMask(m, n)
		}
	}
	if clip.Mask != nil {
		n := c.imageMask(ctx, *clip.Mask, r)
		if m == nil {
			m = n
		} else {
			mulMask(m, n)
		}
	}
	return m
}

// imageMask rasterizes the alpha of a mask image placed at its rectangle.
// A missing mask image hides everything.
func (c *SoftwareCompositor) imageMask(ctx drawCtx, mask displaylist.ImageMask, r image.Rectangle) *image.Alpha {
	out := image.NewAlpha(r)
	img, ok := ctx.res.Image(mask.Image)
	if !ok || mask.Rect.IsEmpty() {
		return out
	}
	layer := image.NewRGBA(r)
	tile := mask.Rect.Size
	area := mask.Rect
	if mask.Repeat {
		area = localRect(ctx.xf, r)
	}
	eachTile(area, mask.Rect.Origin, tile, sb.Size{}, func(t sb.Rect) {
		drawImageRect(layer, img, img.Rect, t, ctx.xf, draw.BiLinear)
	})
	for y := r.Min.Y; y < r.Max.Y; y++ {
		for x := r.Min.X; x < r.Max.X; x++ {
			out.Pix[out.PixOffset(x, y)] = layer.Pix[layer.PixOffset(x, y)+3]
		}
	}
	return out
}

// localRect returns the local bounds of the device rectangle r under xf.
func localRect(xf sb.Matrix4, r image.Rectangle) sb.Rect {
	inv := invert(xf)
	if !inv.ok {
		return sb.Rect{}
	}
	var out sb.Rect
	for i, p := range [4]image.Point{r.Min, {r.Max.X, r.Min.Y}, {r.Min.X, r.Max.Y}, r.Max} {
		x, y := inv.apply(float32(p.X), float32(p.Y))
		if i == 0 {
			out = sb.NewRect(x, y, 0, 0)
			continue
		}
		out = sb.RectFromPoints(min(out.MinX(), x), min(out.MinY(), y), max(out.MaxX(), x), max(out.MaxY(), y))
	}
	return out
}

// eachTile calls fn for every tile of the grid anchored at origin that
// overlaps area. The grid is capped to keep degenerate tilings bounded.
func eachTile(area sb.Rect, origin sb.Point, tile, spacing sb.Size, fn func(sb.Rect)) {
	if tile.IsEmpty() || area.IsEmpty() {
		return
	}
	const maxTiles = 1 << 14
	stepX, stepY := tile.Width+spacing.Width, tile.Height+spacing.Height
	startX := origin.X + floorDiv(area.MinX()-origin.X, stepX)*stepX
	startY := origin.Y + floorDiv(area.MinY()-origin.Y, stepY)*stepY
	n := 0
	for y := startY; y < area.MaxY(); y += stepY {
		for x := startX; x < area.MaxX(); x += stepX {
			if n++; n > maxTiles {
				return
			}
			fn(sb.NewRect(x, y, tile.Width, tile.Height))
		}
	}
}

func floorDiv(a, b float32) float32 {
	q := a / b
	f := float32(int(q))
	if f > q {
		f--
	}
	return f
}

// drawImageRect draws the sr region of src stretched over the local
// rectangle dr, transformed by xf.
func drawImageRect(dst *image.RGBA, src *image.RGBA, sr image.Rectangle, dr sb.Rect, xf sb.Matrix4, s draw.Interpolator) {
	if sr.Empty() || dr.IsEmpty() {
		return
	}
	sx := dr.Size.Width / float32(sr.Dx())
	sy := dr.Size.Height / float32(sr.Dy())
	m := sb.Translation4(-float32(sr.Min.X), -float32(sr.Min.Y)).
		Then(sb.Scale4(sx, sy)).
		Then(sb.Translation4(dr.Origin.X, dr.Origin.Y)).
		Then(xf)
	s.Transform(dst, aff3(m), src, sr, draw.Over, nil)
}
