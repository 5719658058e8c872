// Copyright 2026 The gogpu Authors
// SPDX-License-Identifier: MIT

package render

import (
	"image"
	"slices"

	"github.com/gogpu/gpucontext"
)

// Compositor draws a frame into the framebuffer.
//
// Composite is called on the render context with dst already cleared. It
// must not retain dst or the frame after returning.
type Compositor interface {
	Composite(dst *image.RGBA, f *Frame) error
}

// CompositorFunc adapts a function to Compositor.
type CompositorFunc func(dst *image.RGBA, f *Frame) error

// Composite implements Compositor.
func (fn CompositorFunc) Composite(dst *image.RGBA, f *Frame) error { return fn(dst, f) }

// compositors is the process-wide compositor registry. Each factory call
// returns a fresh instance owned by one renderer.
var compositors = gpucontext.NewRegistry[Compositor](gpucontext.WithPriority("software"))

func init() {
	RegisterCompositor("software", func() Compositor { return NewSoftwareCompositor() })
}

// RegisterCompositor makes a compositor available to WithCompositor.
// Registering an existing name replaces it.
func RegisterCompositor(name string, factory func() Compositor) {
	compositors.Register(name, factory)
}

// Compositors returns the registered compositor names, sorted.
func Compositors() []string {
	names := compositors.Available()
	slices.Sort(names)
	return names
}

// newCompositor returns the named compositor, or the best registered one
// when name is empty.
func newCompositor(name string) (Compositor, string, error) {
	if name == "" {
		name = compositors.BestName()
	}
	if !compositors.Has(name) {
		return nil, name, &DeviceInitError{Reason: "compositor " + name, Err: ErrUnknownCompositor}
	}
	return compositors.Get(name), name, nil
}
