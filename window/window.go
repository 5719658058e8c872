// Package window maps window ids to the renderer, contexts and producer API
// bound to each window.
//
// A host creates one Window per native window and hands the WindowID across
// its boundary instead of raw pointers. The registry owns every Window it
// creates; Destroy and Close delete the renderers.
//
// Example:
//
//	reg := window.NewRegistry()
//	defer reg.Close()
//	w, err := reg.Create(render.NullDeviceHandle{}, sb.Size{Width: 800, Height: 600})
//	if err != nil {
//	    return err
//	}
//	pipeline := w.API.GeneratePipelineID(1)
package window

import (
	"errors"
	"fmt"
	"slices"
	"sync"

	sb "github.com/gogpu/scenebridge"
	"github.com/gogpu/scenebridge/api"
	"github.com/gogpu/scenebridge/record"
	"github.com/gogpu/scenebridge/render"
)

// ErrUnknownWindow is returned for ids the registry does not hold.
var ErrUnknownWindow = errors.New("window: unknown window")

// Window is one renderer with its context tokens and first producer API.
type Window struct {
	ID       sb.WindowID
	Contexts sb.Contexts
	Renderer *render.Renderer
	Sender   *api.Sender
	// API is the producer API created with the window. More can be created
	// from Sender, each with its own id namespace.
	API *api.API

	recorder *record.Recorder
}

// Recorder returns the recorder of the window, or nil when it is not
// being recorded.
func (w *Window) Recorder() *record.Recorder { return w.recorder }

func (w *Window) destroy() error {
	err := w.Renderer.Delete(w.Contexts.Render)
	if w.recorder != nil {
		err = errors.Join(err, w.recorder.Close())
	}
	return err
}

// Option configures a window during Create.
type Option func(*createOptions)

type createOptions struct {
	render    []render.Option
	recordDir string
}

// WithRenderOptions passes opts to render.New.
func WithRenderOptions(opts ...render.Option) Option {
	return func(o *createOptions) {
		o.render = append(o.render, opts...)
	}
}

// WithRecordDir records every message sent to the window into
// record.FileName(id) under dir.
func WithRecordDir(dir string) Option {
	return func(o *createOptions) {
		o.recordDir = dir
	}
}

// Registry holds the live windows. It is safe for concurrent use.
type Registry struct {
	mu      sync.Mutex
	next    sb.WindowID
	windows map[sb.WindowID]*Window
}

// NewRegistry creates an empty registry. Window ids start at 1.
func NewRegistry() *Registry {
	return &Registry{windows: make(map[sb.WindowID]*Window)}
}

// Create creates a window with fresh context tokens and a renderer on
// handle.
func (r *Registry) Create(handle render.DeviceHandle, size sb.Size, opts ...Option) (*Window, error) {
	var o createOptions
	for _, opt := range opts {
		opt(&o)
	}

	r.mu.Lock()
	r.next++
	id := r.next
	r.mu.Unlock()

	w := &Window{ID: id, Contexts: sb.NewContexts()}
	ropts := o.render
	if o.recordDir != "" {
		rec, err := record.Create(o.recordDir, id, size)
		if err != nil {
			return nil, fmt.Errorf("window %d: %w", id, err)
		}
		w.recorder = rec
		ropts = append(slices.Clip(ropts), render.WithObserver(rec))
	}
	rend, sender, err := render.New(w.Contexts.Render, handle, size, ropts...)
	if err != nil {
		if w.recorder != nil {
			_ = w.recorder.Close()
		}
		return nil, fmt.Errorf("window %d: %w", id, err)
	}
	w.Renderer, w.Sender, w.API = rend, sender, sender.CreateAPI()

	r.mu.Lock()
	r.windows[id] = w
	r.mu.Unlock()
	sb.Logger().Info("window: created", "window", uint64(id), "width", size.Width, "height", size.Height)
	return w, nil
}

// Get returns the window with id.
func (r *Registry) Get(id sb.WindowID) (*Window, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	w, ok := r.windows[id]
	return w, ok
}

// Destroy deletes the renderer of window id, closes its recording and
// removes it from the registry.
func (r *Registry) Destroy(id sb.WindowID) error {
	r.mu.Lock()
	w, ok := r.windows[id]
	delete(r.windows, id)
	r.mu.Unlock()
	if !ok {
		return fmt.Errorf("%w: %d", ErrUnknownWindow, uint64(id))
	}
	sb.Logger().Info("window: destroyed", "window", uint64(id))
	return w.destroy()
}

// IDs returns the ids of the live windows in ascending order.
func (r *Registry) IDs() []sb.WindowID {
	r.mu.Lock()
	defer r.mu.Unlock()
	ids := make([]sb.WindowID, 0, len(r.windows))
	for id := range r.windows {
		ids = append(ids, id)
	}
	slices.Sort(ids)
	return ids
}

// Len returns the number of live windows.
func (r *Registry) Len() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.windows)
}

// Close destroys every window.
func (r *Registry) Close() error {
	var errs []error
	for _, id := range r.IDs() {
		if err := r.Destroy(id); err != nil && !errors.Is(err, ErrUnknownWindow) {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}
