// Copyright 2026 The gogpu Authors
// SPDX-License-Identifier: MIT

package render

import (
	"context"
	"errors"
	"fmt"
	"image"
	"maps"

	"github.com/chewxy/math32"
	"golang.org/x/image/draw"

	sb "github.com/gogpu/scenebridge"
	"github.com/gogpu/scenebridge/api"
	"github.com/gogpu/scenebridge/blob"
	"github.com/gogpu/scenebridge/displaylist"
	"github.com/gogpu/scenebridge/external"
	"github.com/gogpu/scenebridge/notify"
	"github.com/gogpu/scenebridge/resource"
	"github.com/gogpu/scenebridge/wire"
)

// state is the lifecycle position of a Renderer.
type state uint8

const (
	stateCreated state = iota
	stateReady
	stateUpdating
	stateRendering
	stateDestroyed
)

var stateNames = [...]string{
	stateCreated:   "created",
	stateReady:     "ready",
	stateUpdating:  "updating",
	stateRendering: "rendering",
	stateDestroyed: "destroyed",
}

func (s state) String() string {
	if int(s) < len(stateNames) {
		return stateNames[s]
	}
	return "unknown"
}

// pipelineState is the latest accepted scene of one pipeline.
type pipelineState struct {
	epoch      sb.Epoch
	list       *displaylist.DisplayList
	viewport   sb.Size
	background sb.Color
	scroll     map[uint32]sb.Point
}

// texture is a converted image kept across frames until its entry changes.
type texture struct {
	generation uint32
	img        *image.RGBA
}

// Renderer turns the messages of one producer into composited frames.
//
// A Renderer belongs to the render context it was created with. Every
// method takes that context's token and panics when given another one.
type Renderer struct {
	rc     sb.RenderContext
	handle DeviceHandle
	opts   options
	state  state

	compositor     Compositor
	compositorName string
	shaders        []compiledShader

	recv     *api.Receiver
	store    *resource.Store
	bridge   *external.Bridge
	blobs    *blob.Cache
	epochs   *notify.Epochs
	notifier notify.Notifier

	pipelines map[sb.PipelineID]*pipelineState
	root      sb.PipelineID
	hasRoot   bool
	size      sb.Size
	inner     sb.Rect
	textures  map[sb.ImageKey]texture

	frame    *Frame
	fb       *image.RGBA
	rendered bool
	current  map[sb.PipelineID]sb.Epoch

	prof profiler
}

// New creates a renderer on handle and the Sender producers talk to it
// through.
//
// New compiles the compositor shaders and, when the handle supports it,
// loads them and allocates the framebuffer on the device. Any failure is
// reported to the critical-note sink and returned as a *DeviceInitError.
func New(rc sb.RenderContext, handle DeviceHandle, size sb.Size, opts ...Option) (*Renderer, *api.Sender, error) {
	rc.MustValid()
	o := defaultOptions()
	for _, opt := range opts {
		opt(&o)
	}
	if handle == nil {
		handle = NullDeviceHandle{}
	}
	r := &Renderer{
		rc:        rc,
		handle:    handle,
		opts:      o,
		notifier:  o.notifier,
		pipelines: make(map[sb.PipelineID]*pipelineState),
		textures:  make(map[sb.ImageKey]texture),
		current:   make(map[sb.PipelineID]sb.Epoch),
		size:      size,
		inner:     sb.Rect{Size: size},
	}
	if err := r.initDevice(); err != nil {
		r.critical(err)
		return nil, nil, err
	}

	r.bridge = external.NewBridge(o.handler)
	r.blobs = blob.NewCache(o.rasterizer, blob.WithWorkers(o.workers))
	r.store = resource.NewStore(r.release)
	r.epochs = notify.NewEpochs()
	r.prof.setEnabled(o.profiler)
	r.fb = image.NewRGBA(framebufferRect(size))

	chOpts := make([]api.Option, 0, len(o.observers))
	for _, obs := range o.observers {
		chOpts = append(chOpts, api.WithObserver(obs))
	}
	sender, recv := api.NewChannel(rc.ID(), chOpts...)
	r.recv = recv
	r.state = stateReady

	info := handle.AdapterInfo()
	sb.Logger().Info("render: renderer created",
		"compositor", r.compositorName,
		"adapter", info.Name,
		"width", size.Width,
		"height", size.Height,
		"shaders", len(r.shaders),
	)
	return r, sender, nil
}

// initDevice compiles and loads shaders, allocates the framebuffer and
// selects the compositor.
func (r *Renderer) initDevice() error {
	shaders, err := compileShaders(r.opts.shaders)
	if err != nil {
		return err
	}
	r.shaders = shaders
	if loader, ok := r.handle.(ShaderLoader); ok {
		for _, s := range shaders {
			if err := loader.LoadShader(s.label, s.spirv); err != nil {
				return &DeviceInitError{Reason: "load shader " + s.label, Err: err}
			}
		}
	}
	if err := r.allocateTarget(r.size); err != nil {
		return err
	}
	comp, name, err := newCompositor(r.opts.compositor)
	if err != nil {
		return err
	}
	r.compositor, r.compositorName = comp, name
	return nil
}

func (r *Renderer) allocateTarget(size sb.Size) error {
	alloc, ok := r.handle.(TargetAllocator)
	if !ok {
		return nil
	}
	fr := framebufferRect(size)
	if fr.Empty() {
		return nil
	}
	desc := framebufferDescriptor(fr.Dx(), fr.Dy(), targetFormat(r.handle))
	if err := alloc.AllocateTarget(desc); err != nil {
		return &DeviceInitError{Reason: fmt.Sprintf("allocate %dx%d target", desc.Width, desc.Height), Err: err}
	}
	return nil
}

func (r *Renderer) critical(err error) {
	sb.Logger().Error("render: device init failed", "err", err)
	if r.opts.criticalNote != nil {
		r.opts.criticalNote(err.Error())
	}
}

// framebufferRect returns the pixel extent of a window size.
func framebufferRect(size sb.Size) image.Rectangle {
	if size.IsEmpty() {
		return image.Rectangle{}
	}
	return image.Rect(0, 0, int(math32.Ceil(size.Width)), int(math32.Ceil(size.Height)))
}

// enter checks the token and moves to a busy state.
func (r *Renderer) enter(rc sb.RenderContext, s state) error {
	rc.MustMatch(r.rc)
	if r.state == stateDestroyed {
		return ErrDestroyed
	}
	r.state = s
	return nil
}

func (r *Renderer) leave() { r.state = stateReady }

// Compositor returns the name of the compositor in use.
func (r *Renderer) Compositor() string { return r.compositorName }

// SetExternalImageHandler installs the external image handler. Images
// locked through a previous handler are unlocked first.
func (r *Renderer) SetExternalImageHandler(rc sb.RenderContext, h external.Handler) {
	rc.MustMatch(r.rc)
	r.bridge.SetHandler(h)
}

// SetProfilerEnabled turns per-frame timings on or off.
func (r *Renderer) SetProfilerEnabled(rc sb.RenderContext, on bool) {
	rc.MustMatch(r.rc)
	r.prof.setEnabled(on)
}

// Timings returns the timings of the last frame. They are zero while the
// profiler is disabled.
func (r *Renderer) Timings(rc sb.RenderContext) FrameTimings {
	rc.MustMatch(r.rc)
	return r.prof.last
}

// ExternalStats returns the external handler call counters.
func (r *Renderer) ExternalStats(rc sb.RenderContext) external.Stats {
	rc.MustMatch(r.rc)
	return r.bridge.Stats()
}

// BlobStats returns the blob cache counters.
func (r *Renderer) BlobStats(rc sb.RenderContext) blob.Stats {
	rc.MustMatch(r.rc)
	return r.blobs.Stats()
}

// Update drains the message queue and applies it in order. When a frame
// was requested it builds the frame and notifies NewFrameReady; when only
// scroll offsets changed it notifies NewScrollFrameReady.
func (r *Renderer) Update(rc sb.RenderContext) error {
	if err := r.enter(rc, stateUpdating); err != nil {
		return err
	}
	defer r.leave()
	defer r.prof.measure(&r.prof.last.Update)()

	msgs := r.recv.Drain()
	r.prof.last.Messages = len(msgs)
	var (
		wantFrame bool
		scrolled  bool
		blobs     []blob.Request
		errs      []error
	)
	for _, m := range msgs {
		switch m := m.(type) {
		case api.AddImage:
			if err := r.store.AddImage(m.Key, m.Desc, m.Data); err != nil {
				errs = append(errs, err)
				continue
			}
			if m.Data.Kind == resource.KindBlob {
				blobs = append(blobs, blob.Request{Key: m.Key, Data: m.Data.Bytes, Desc: m.Desc})
			}
		case api.UpdateImage:
			if err := r.store.UpdateImage(m.Key, m.Desc, m.Data, m.Dirty); err != nil {
				errs = append(errs, err)
				continue
			}
			if m.Data.Kind == resource.KindBlob {
				blobs = append(blobs, blob.Request{Key: m.Key, Data: m.Data.Bytes, Desc: m.Desc, Dirty: m.Dirty})
			}
		case api.DeleteImage:
			if err := r.store.DeleteImage(m.Key); err != nil {
				errs = append(errs, err)
			}
		case api.AddFont:
			if err := r.store.AddFont(m.Key, m.Data, m.Index); err != nil {
				errs = append(errs, err)
			}
		case api.DeleteFont:
			if err := r.store.DeleteFont(m.Key); err != nil {
				errs = append(errs, err)
			}
		case api.SetDisplayList:
			if err := r.setDisplayList(m); err != nil {
				errs = append(errs, err)
			}
		case api.ClearDisplayList:
			r.clearDisplayList(m)
		case api.SetRootPipeline:
			r.root, r.hasRoot = m.Pipeline, true
			wantFrame = true
		case api.SetWindow:
			r.size, r.inner = m.Size, m.Inner
		case api.Scroll:
			if ps, ok := r.pipelines[m.Pipeline]; ok {
				ps.scroll[m.ScrollID] = m.Offset
				scrolled = true
			}
		case api.GenerateFrame:
			wantFrame = true
		case api.ExternalEvent:
			r.notifier.ExternalEvent(m.Event)
		}
	}
	for _, err := range errs {
		sb.Logger().Warn("render: message rejected", "err", err)
	}

	if len(blobs) > 0 {
		// Rasterization failures are stored per key and surface at resolve.
		_ = r.blobs.RequestAll(context.Background(), blobs)
	}

	switch {
	case wantFrame:
		stop := r.prof.measure(&r.prof.last.Build)
		r.buildFrame()
		stop()
		r.notifier.NewFrameReady()
	case scrolled:
		r.refreshScroll()
		r.notifier.NewScrollFrameReady(r.frame != nil)
	}
	return nil
}

func (r *Renderer) setDisplayList(m api.SetDisplayList) error {
	dl, err := wire.Decode(m.Data, m.Descriptor)
	if err != nil {
		return fmt.Errorf("pipeline %v epoch %d: %w", m.Pipeline, m.Epoch, err)
	}
	ps, ok := r.pipelines[m.Pipeline]
	if ok && m.Epoch <= ps.epoch {
		return fmt.Errorf("%w: pipeline %v epoch %d after %d", api.ErrStaleEpoch, m.Pipeline, m.Epoch, ps.epoch)
	}
	scroll := make(map[uint32]sb.Point)
	if ok && m.PreserveFrameState {
		scroll = ps.scroll
	}
	r.pipelines[m.Pipeline] = &pipelineState{
		epoch:      m.Epoch,
		list:       dl,
		viewport:   m.Viewport,
		background: m.Background,
		scroll:     scroll,
	}
	return nil
}

func (r *Renderer) clearDisplayList(m api.ClearDisplayList) {
	ps, ok := r.pipelines[m.Pipeline]
	if ok && m.Epoch <= ps.epoch {
		sb.Logger().Warn("render: stale clear ignored", "pipeline", m.Pipeline, "epoch", m.Epoch)
		return
	}
	r.pipelines[m.Pipeline] = &pipelineState{
		epoch:  m.Epoch,
		list:   displaylist.Empty(m.Pipeline),
		scroll: make(map[uint32]sb.Point),
	}
}

// buildFrame snapshots the scene reachable from the root pipeline and
// resolves every image it may draw.
func (r *Renderer) buildFrame() {
	seq := r.store.BeginFrame()
	f := &Frame{
		Seq:       seq,
		Root:      r.root,
		HasRoot:   r.hasRoot,
		Size:      r.size,
		Inner:     r.inner,
		Pipelines: make(map[sb.PipelineID]*PipelineFrame),
		images:    make(map[sb.ImageKey]*image.RGBA),
		externals: make(map[sb.ImageKey]externalRef),
		fonts:     make(map[sb.FontKey]*resource.Font),
	}
	for _, id := range r.reachable() {
		ps := r.pipelines[id]
		f.Pipelines[id] = &PipelineFrame{
			Pipeline:   id,
			Epoch:      ps.epoch,
			List:       ps.list,
			Viewport:   ps.viewport,
			Background: ps.background,
			Scroll:     maps.Clone(ps.scroll),
		}
	}
	// Blob results are resolved for every key so pending rasterizations
	// never pile up; external images are locked only when referenced.
	for _, key := range r.store.ImageKeys() {
		img, _ := r.store.Image(key)
		switch img.Data.Kind {
		case resource.KindRaw:
			if tex, ok := r.rawTexture(img); ok {
				f.images[key] = tex
			}
		case resource.KindBlob:
			if tex, ok := r.blobTexture(img); ok {
				f.images[key] = tex
			}
		}
	}
	for _, pf := range f.Pipelines {
		r.scanList(f, pf.List)
	}
	r.frame = f
	sb.Logger().Debug("render: frame built",
		"frame", seq,
		"pipelines", len(f.Pipelines),
		"images", len(f.images),
		"externals", len(f.externals),
	)
}

// reachable returns the pipelines drawn from the root: the root itself and
// the iframes embedded under it, down to maxIframeDepth levels. It returns
// nil without a root.
func (r *Renderer) reachable() []sb.PipelineID {
	if !r.hasRoot {
		return nil
	}
	if _, ok := r.pipelines[r.root]; !ok {
		return nil
	}
	seen := map[sb.PipelineID]bool{r.root: true}
	out := []sb.PipelineID{r.root}
	level := []sb.PipelineID{r.root}
	for depth := 0; depth < maxIframeDepth && len(level) > 0; depth++ {
		var next []sb.PipelineID
		for _, id := range level {
			it := r.pipelines[id].list.Items()
			for it.Next() {
				fr, ok := it.Item().Data.(*displaylist.IframeItem)
				if !ok || seen[fr.Pipeline] {
					continue
				}
				if _, ok := r.pipelines[fr.Pipeline]; !ok {
					continue
				}
				seen[fr.Pipeline] = true
				out = append(out, fr.Pipeline)
				next = append(next, fr.Pipeline)
			}
		}
		level = next
	}
	return out
}

// scanList records the external images and fonts dl references: image and
// border-image items, and image masks of item clips.
func (r *Renderer) scanList(f *Frame, dl *displaylist.DisplayList) {
	it := dl.Items()
	for it.Next() {
		item := it.Item()
		if m := item.Clip.Mask; m != nil {
			r.addExternal(f, m.Image)
		}
		switch d := item.Data.(type) {
		case *displaylist.ImageItem:
			r.addExternal(f, d.Key)
		case *displaylist.BorderImageItem:
			r.addExternal(f, d.Image)
		case *displaylist.TextItem:
			if _, seen := f.fonts[d.Font]; seen {
				continue
			}
			if font, ok := r.store.Font(d.Font); ok {
				f.fonts[d.Font] = font
			}
		}
	}
}

func (r *Renderer) addExternal(f *Frame, key sb.ImageKey) {
	if _, seen := f.externals[key]; seen {
		return
	}
	img, ok := r.store.Image(key)
	if !ok || img.Data.Kind != resource.KindExternal {
		return
	}
	f.externals[key] = externalRef{id: img.Data.External, desc: img.Desc, kind: img.Data.ExternalType}
}

// rawTexture converts a raw image, reusing the conversion while the entry
// is unchanged.
func (r *Renderer) rawTexture(img *resource.Image) (*image.RGBA, bool) {
	if tex, ok := r.textures[img.Key]; ok && tex.generation == img.Generation {
		return tex.img, true
	}
	rgba, err := resource.ToRGBA(img.Desc, img.Data.Bytes)
	if err != nil {
		sb.Logger().Warn("render: image not displayed", "key", img.Key, "err", err)
		delete(r.textures, img.Key)
		return nil, false
	}
	r.textures[img.Key] = texture{generation: img.Generation, img: rgba}
	return rgba, true
}

// blobTexture resolves a pending rasterization of a blob image. Dirty
// results are merged into the previous raster of the same size.
func (r *Renderer) blobTexture(img *resource.Image) (*image.RGBA, bool) {
	if !r.blobs.Has(img.Key) {
		tex, ok := r.textures[img.Key]
		return tex.img, ok
	}
	res, err := r.blobs.Resolve(img.Key)
	if err != nil {
		var rerr *blob.RasterError
		if errors.As(err, &rerr) {
			sb.Logger().Warn("render: blob image not displayed", "key", img.Key, "reason", rerr.Reason)
		}
		delete(r.textures, img.Key)
		return nil, false
	}
	rgba, err := resource.ToRGBA(res.Desc, res.Pixels)
	if err != nil {
		sb.Logger().Warn("render: blob image not displayed", "key", img.Key, "err", err)
		delete(r.textures, img.Key)
		return nil, false
	}
	if prev, ok := r.textures[img.Key]; ok && res.Dirty != nil && prev.img.Rect == rgba.Rect {
		dr := res.Dirty.Pixels().Intersect(rgba.Rect)
		merged := image.NewRGBA(prev.img.Rect)
		copy(merged.Pix, prev.img.Pix)
		draw.Draw(merged, dr, rgba, dr.Min, draw.Src)
		rgba = merged
	}
	r.textures[img.Key] = texture{generation: img.Generation, img: rgba}
	return rgba, true
}

// refreshScroll copies scroll offsets into the current frame.
func (r *Renderer) refreshScroll() {
	if r.frame == nil {
		return
	}
	for id, pf := range r.frame.Pipelines {
		if ps, ok := r.pipelines[id]; ok && ps.epoch == pf.Epoch {
			pf.Scroll = maps.Clone(ps.scroll)
		}
	}
}

// release is called by the store when a deleted or replaced entry can no
// longer be referenced. Replaced raw and blob entries keep their texture for
// the live entry to reuse.
func (r *Renderer) release(img *resource.Image) {
	if img.Data.Kind == resource.KindExternal {
		if err := r.bridge.Release(img.Data.External); err != nil {
			sb.Logger().Debug("render: external release", "err", err)
		}
		return
	}
	if cur, ok := r.store.Image(img.Key); ok && cur != img {
		return
	}
	if img.Data.Kind == resource.KindBlob {
		r.blobs.Discard(img.Key)
	}
	delete(r.textures, img.Key)
}

// Render composites the current frame at size. External images the frame
// references are locked for the duration of the call and all unlocked
// before it returns. Epochs are recorded for the composited pipelines.
func (r *Renderer) Render(rc sb.RenderContext, size sb.Size) error {
	if err := r.enter(rc, stateRendering); err != nil {
		return err
	}
	defer r.leave()
	f := r.frame
	if f == nil || !f.HasRoot {
		return ErrNoFrame
	}
	fr := framebufferRect(size)
	if fr != r.fb.Rect {
		if err := r.allocateTarget(size); err != nil {
			return err
		}
		r.fb = image.NewRGBA(fr)
	}
	draw.Draw(r.fb, r.fb.Rect, solid(r.opts.clearColor), image.Point{}, draw.Src)

	r.lockExternals(f)
	stop := r.prof.measure(&r.prof.last.Composite)
	err := r.compositor.Composite(r.fb, f)
	stop()
	f.locked = nil
	r.bridge.EndFrame()
	if err != nil {
		return fmt.Errorf("render: composite frame %d: %w", f.Seq, err)
	}

	// Only pipelines reached from the root were composited.
	for id, pf := range f.Pipelines {
		r.current[id] = pf.Epoch
		r.epochs.Record(id, pf.Epoch)
	}
	r.rendered = true
	if r.prof.enabled {
		r.prof.last.Frames++
	}
	r.prof.report(f.Seq)
	return nil
}

// lockExternals locks every external image of f that has a CPU fallback.
// Native textures stay with the device compositor.
func (r *Renderer) lockExternals(f *Frame) {
	f.locked = make(map[sb.ImageKey]*image.RGBA, len(f.externals))
	for key, ref := range f.externals {
		img, err := r.bridge.Lock(ref.id)
		if err != nil {
			continue
		}
		switch v := img.(type) {
		case external.RawData:
			desc := resource.ImageDescriptor{Format: resource.FormatBGRA8, Width: v.Width, Height: v.Height}
			rgba, err := resource.ToRGBA(desc, v.Pixels)
			if err != nil {
				sb.Logger().Warn("render: external image not displayed", "key", key, "err", err)
				continue
			}
			f.locked[key] = rgba
		case external.NativeTexture:
			sb.Logger().Debug("render: native texture skipped by software compositor", "key", key, "handle", v.Handle)
		}
	}
}

// Readback copies the top-left size region of the last rendered frame into
// dst as BGRA rows, top row first. len(dst) must be exactly
// width*height*4.
func (r *Renderer) Readback(rc sb.RenderContext, size sb.Size, dst []byte) error {
	if err := r.enter(rc, stateRendering); err != nil {
		return err
	}
	defer r.leave()
	defer r.prof.measure(&r.prof.last.Readback)()
	if !r.rendered {
		return ErrNoFrame
	}
	rr := framebufferRect(size)
	w, h := rr.Dx(), rr.Dy()
	if len(dst) != w*h*4 {
		return fmt.Errorf("%w: have %d bytes, need %d for %dx%d", ErrReadbackSize, len(dst), w*h*4, w, h)
	}
	if !rr.In(r.fb.Rect) {
		return fmt.Errorf("%w: %dx%d exceeds framebuffer %dx%d", ErrReadbackSize, w, h, r.fb.Rect.Dx(), r.fb.Rect.Dy())
	}
	for y := range h {
		src := r.fb.Pix[y*r.fb.Stride : y*r.fb.Stride+w*4]
		out := dst[y*w*4 : (y+1)*w*4]
		for x := 0; x < w*4; x += 4 {
			out[x], out[x+1], out[x+2], out[x+3] = src[x+2], src[x+1], src[x], src[x+3]
		}
	}
	return nil
}

// CurrentEpoch returns the epoch of pipeline in the last rendered frame.
func (r *Renderer) CurrentEpoch(rc sb.RenderContext, pipeline sb.PipelineID) (sb.Epoch, bool) {
	rc.MustMatch(r.rc)
	e, ok := r.current[pipeline]
	return e, ok
}

// FlushRenderedEpochs drains the epochs rendered since the last flush.
// Each pipeline appears once, with its newest epoch.
func (r *Renderer) FlushRenderedEpochs(rc sb.RenderContext) *notify.RenderedEpochs {
	rc.MustMatch(r.rc)
	return r.epochs.Flush()
}

// Delete releases every resource of the renderer, including every external
// image still registered. Later calls return ErrDestroyed.
func (r *Renderer) Delete(rc sb.RenderContext) error {
	rc.MustMatch(r.rc)
	if r.state == stateDestroyed {
		return ErrDestroyed
	}
	r.bridge.EndFrame()
	r.store.Clear()
	r.recv.Close()
	clear(r.textures)
	clear(r.pipelines)
	r.frame = nil
	r.fb = nil
	r.shaders = nil
	r.state = stateDestroyed
	sb.Logger().Info("render: renderer deleted", "compositor", r.compositorName)
	return nil
}
