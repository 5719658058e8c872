// Package notify delivers renderer progress to the producer.
//
// The renderer calls a [Notifier] from the render context when a frame is
// ready to present and when an external event arrives. Completed frames are
// also reported as (pipeline, epoch) pairs through [Epochs], drained with
// Flush.
package notify

import (
	"sync/atomic"

	sb "github.com/gogpu/scenebridge"
)

// ExternalEvent is an opaque payload sent by the coordination context and
// echoed back through the notifier.
type ExternalEvent struct {
	Raw uint64
}

// Notifier receives renderer signals. Methods are called from the render
// context and must not block.
type Notifier interface {
	// NewFrameReady is called after Update built a new frame.
	NewFrameReady()

	// NewScrollFrameReady is called after a scroll-only update.
	// compositeNeeded reports whether the frame must be presented again.
	NewScrollFrameReady(compositeNeeded bool)

	// ExternalEvent is called for every event queued by SendExternalEvent.
	ExternalEvent(evt ExternalEvent)
}

// Null is a Notifier that ignores every signal.
type Null struct{}

var _ Notifier = Null{}

// NewFrameReady implements Notifier.
func (Null) NewFrameReady() {}

// NewScrollFrameReady implements Notifier.
func (Null) NewScrollFrameReady(bool) {}

// ExternalEvent implements Notifier.
func (Null) ExternalEvent(ExternalEvent) {}

// Funcs adapts plain functions to Notifier. Nil functions are no-ops.
type Funcs struct {
	FrameReady       func()
	ScrollFrameReady func(compositeNeeded bool)
	External         func(evt ExternalEvent)
}

var _ Notifier = Funcs{}

// NewFrameReady implements Notifier.
func (f Funcs) NewFrameReady() {
	if f.FrameReady != nil {
		f.FrameReady()
	}
}

// NewScrollFrameReady implements Notifier.
func (f Funcs) NewScrollFrameReady(compositeNeeded bool) {
	if f.ScrollFrameReady != nil {
		f.ScrollFrameReady(compositeNeeded)
	}
}

// ExternalEvent implements Notifier.
func (f Funcs) ExternalEvent(evt ExternalEvent) {
	if f.External != nil {
		f.External(evt)
	}
}

// Kind identifies a notification delivered through a Channel.
type Kind uint8

const (
	KindFrameReady Kind = iota
	KindScrollFrameReady
	KindExternalEvent
)

// String returns the notification name.
func (k Kind) String() string {
	switch k {
	case KindFrameReady:
		return "FrameReady"
	case KindScrollFrameReady:
		return "ScrollFrameReady"
	case KindExternalEvent:
		return "ExternalEvent"
	default:
		return "Unknown"
	}
}

// Event is one notification delivered through a Channel.
type Event struct {
	Kind            Kind
	CompositeNeeded bool
	External        ExternalEvent
}

// Channel is a Notifier that forwards signals to a buffered channel so the
// producer can receive them in a context of its choice. A full channel drops
// the signal and counts it.
type Channel struct {
	c       chan Event
	dropped atomic.Uint64
}

var _ Notifier = (*Channel)(nil)

// NewChannel creates a Channel with room for size pending events.
func NewChannel(size int) *Channel {
	return &Channel{c: make(chan Event, size)}
}

// C returns the receive side.
func (c *Channel) C() <-chan Event { return c.c }

// Dropped returns the number of signals lost to a full channel.
func (c *Channel) Dropped() uint64 { return c.dropped.Load() }

func (c *Channel) send(e Event) {
	select {
	case c.c <- e:
	default:
		c.dropped.Add(1)
		sb.Logger().Debug("notify: channel full, signal dropped", "kind", e.Kind.String())
	}
}

// NewFrameReady implements Notifier.
func (c *Channel) NewFrameReady() { c.send(Event{Kind: KindFrameReady}) }

// NewScrollFrameReady implements Notifier.
func (c *Channel) NewScrollFrameReady(compositeNeeded bool) {
	c.send(Event{Kind: KindScrollFrameReady, CompositeNeeded: compositeNeeded})
}

// ExternalEvent implements Notifier.
func (c *Channel) ExternalEvent(evt ExternalEvent) {
	c.send(Event{Kind: KindExternalEvent, External: evt})
}
