// Copyright 2026 The gogpu Authors
// SPDX-License-Identifier: MIT

package render

import (
	sb "github.com/gogpu/scenebridge"
	"github.com/gogpu/scenebridge/api"
	"github.com/gogpu/scenebridge/blob"
	"github.com/gogpu/scenebridge/external"
	"github.com/gogpu/scenebridge/notify"
)

// Option configures a Renderer during creation.
//
// Example:
//
//	r, sender, err := render.New(ctxs.Render, render.NullDeviceHandle{}, size,
//	    render.WithNotifier(notify.NewChannel(8)),
//	    render.WithRasterizer(blob.VectorRasterizer{}),
//	)
type Option func(*options)

// options holds optional configuration for Renderer creation.
type options struct {
	notifier     notify.Notifier
	handler      external.Handler
	rasterizer   blob.Rasterizer
	criticalNote func(string)
	compositor   string
	profiler     bool
	observers    []api.Observer
	workers      int
	clearColor   sb.Color
	shaders      []shaderSource
}

// defaultOptions returns the default renderer options.
func defaultOptions() options {
	return options{
		notifier:   notify.Null{},
		rasterizer: blob.VectorRasterizer{},
		clearColor: sb.Transparent,
		shaders:    defaultShaders(),
	}
}

// WithNotifier sets the receiver of frame-ready and external events.
// The default discards them.
func WithNotifier(n notify.Notifier) Option {
	return func(o *options) {
		if n != nil {
			o.notifier = n
		}
	}
}

// WithExternalImageHandler installs the handler that locks, unlocks and
// releases external images. Without one, external images are skipped.
func WithExternalImageHandler(h external.Handler) Option {
	return func(o *options) {
		o.handler = h
	}
}

// WithRasterizer sets the blob image rasterizer. The default is
// blob.VectorRasterizer; nil disables blob rasterization.
func WithRasterizer(r blob.Rasterizer) Option {
	return func(o *options) {
		o.rasterizer = r
	}
}

// WithCriticalNote sets the sink that receives device initialization
// diagnostics.
func WithCriticalNote(fn func(msg string)) Option {
	return func(o *options) {
		o.criticalNote = fn
	}
}

// WithCompositor selects a registered compositor by name. The default is
// the highest-priority registered one.
func WithCompositor(name string) Option {
	return func(o *options) {
		o.compositor = name
	}
}

// WithProfiler enables per-frame timings from the start.
func WithProfiler(enabled bool) Option {
	return func(o *options) {
		o.profiler = enabled
	}
}

// WithObserver registers an observer of every message sent to the
// renderer, such as a record.Recorder.
func WithObserver(obs api.Observer) Option {
	return func(o *options) {
		if obs != nil {
			o.observers = append(o.observers, obs)
		}
	}
}

// WithWorkers lets up to n blob rasterizations run in parallel. By default
// the rasterizer is called from the render goroutine, one image at a time;
// with n > 1 it must be safe for concurrent use.
func WithWorkers(n int) Option {
	return func(o *options) {
		o.workers = n
	}
}

// WithClearColor sets the color the framebuffer is cleared to before each
// composite. The default is transparent.
func WithClearColor(c sb.Color) Option {
	return func(o *options) {
		o.clearColor = c
	}
}

// withShaders replaces the compiled shader set.
func withShaders(s ...shaderSource) Option {
	return func(o *options) {
		o.shaders = s
	}
}
