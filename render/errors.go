// Copyright 2026 The gogpu Authors
// SPDX-License-Identifier: MIT

package render

import (
	"errors"
	"fmt"
)

// Renderer errors.
var (
	// ErrReadbackSize is returned when the readback buffer length is not
	// exactly width*height*4 or the size exceeds the framebuffer.
	ErrReadbackSize = errors.New("render: readback size mismatch")

	// ErrNoFrame is returned by Render before any frame was built or while
	// no root pipeline is set, and by Readback before any frame was
	// rendered.
	ErrNoFrame = errors.New("render: no frame")

	// ErrDestroyed is returned by every call after Delete.
	ErrDestroyed = errors.New("render: renderer deleted")

	// ErrUnknownCompositor is wrapped in the DeviceInitError returned when
	// WithCompositor names an unregistered compositor.
	ErrUnknownCompositor = errors.New("render: unknown compositor")
)

// DeviceInitError reports a failure to set up the renderer on its device.
// Reason names the step that failed.
type DeviceInitError struct {
	Reason string
	Err    error
}

func (e *DeviceInitError) Error() string {
	return fmt.Sprintf("render: device init: %s: %v", e.Reason, e.Err)
}

func (e *DeviceInitError) Unwrap() error { return e.Err }
