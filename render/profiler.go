// Copyright 2026 The gogpu Authors
// SPDX-License-Identifier: MIT

package render

import (
	"time"

	sb "github.com/gogpu/scenebridge"
)

// FrameTimings are the phase durations of the most recent frame.
type FrameTimings struct {
	// Update is the time spent draining and applying messages.
	Update time.Duration
	// Build is the part of Update that assembled the frame.
	Build time.Duration
	// Composite is the time Render spent drawing.
	Composite time.Duration
	// Readback is the time of the last Readback.
	Readback time.Duration
	// Messages is the number of messages the last Update applied.
	Messages int
	// Frames counts frames built since the profiler was enabled.
	Frames uint64
}

// profiler collects FrameTimings while enabled.
type profiler struct {
	enabled bool
	last    FrameTimings
}

func (p *profiler) setEnabled(on bool) {
	if on && !p.enabled {
		p.last = FrameTimings{}
	}
	p.enabled = on
}

// measure returns a function that stores the elapsed time in *d. It is a
// no-op while the profiler is disabled.
func (p *profiler) measure(d *time.Duration) func() {
	if !p.enabled {
		return func() {}
	}
	start := time.Now()
	return func() { *d = time.Since(start) }
}

// report logs the timings of a composited frame.
func (p *profiler) report(seq uint64) {
	if !p.enabled {
		return
	}
	sb.Logger().Debug("render: frame timings",
		"frame", seq,
		"messages", p.last.Messages,
		"update", p.last.Update,
		"build", p.last.Build,
		"composite", p.last.Composite,
	)
}
