package scenebridge

import (
	"errors"
	"fmt"
	"sync/atomic"
)

// ErrWrongContext is the panic value raised when an operation is invoked with
// a context token that does not belong to the object it is called on.
var ErrWrongContext = errors.New("scenebridge: operation called from the wrong context")

// owner ties the three tokens of one window together.
type owner struct {
	id uint64
}

var ownerSeq atomic.Uint64

// ProducerContext authorizes display-list building and resource mutation.
// The zero value is invalid.
type ProducerContext struct{ o *owner }

// RenderContext authorizes renderer operations and GPU calls.
// The zero value is invalid.
type RenderContext struct{ o *owner }

// CoordinationContext authorizes external event delivery. It is the only
// token accepted by event submission, so the render context cannot submit
// events.
type CoordinationContext struct{ o *owner }

// Contexts groups the tokens of one renderer instance.
type Contexts struct {
	Producer     ProducerContext
	Render       RenderContext
	Coordination CoordinationContext
}

// NewContexts creates a fresh, mutually bound token set.
//
// Each goroutine that plays one of the roles should receive only its token.
func NewContexts() Contexts {
	o := &owner{id: ownerSeq.Add(1)}
	return Contexts{
		Producer:     ProducerContext{o: o},
		Render:       RenderContext{o: o},
		Coordination: CoordinationContext{o: o},
	}
}

// Valid reports whether c was produced by NewContexts.
func (c ProducerContext) Valid() bool { return c.o != nil }

// Valid reports whether c was produced by NewContexts.
func (c RenderContext) Valid() bool { return c.o != nil }

// Valid reports whether c was produced by NewContexts.
func (c CoordinationContext) Valid() bool { return c.o != nil }

// ID returns the token set identity, or 0 for the zero token.
func (c ProducerContext) ID() uint64 { return c.o.ident() }

// ID returns the token set identity, or 0 for the zero token.
func (c RenderContext) ID() uint64 { return c.o.ident() }

// ID returns the token set identity, or 0 for the zero token.
func (c CoordinationContext) ID() uint64 { return c.o.ident() }

// MustMatch panics with ErrWrongContext unless c and want come from the
// same token set.
func (c ProducerContext) MustMatch(want ProducerContext) { mustMatch("producer", c.o, want.o) }

// MustMatch panics with ErrWrongContext unless c and want come from the
// same token set.
func (c RenderContext) MustMatch(want RenderContext) { mustMatch("render", c.o, want.o) }

// MustMatch panics with ErrWrongContext unless c and want come from the
// same token set.
func (c CoordinationContext) MustMatch(want CoordinationContext) {
	mustMatch("coordination", c.o, want.o)
}

// MustBelong panics with ErrWrongContext unless c comes from the token set
// whose ID is set.
func (c ProducerContext) MustBelong(set uint64) { mustBelong("producer", c.o, set) }

// MustBelong panics with ErrWrongContext unless c comes from the token set
// whose ID is set.
func (c RenderContext) MustBelong(set uint64) { mustBelong("render", c.o, set) }

// MustBelong panics with ErrWrongContext unless c comes from the token set
// whose ID is set.
func (c CoordinationContext) MustBelong(set uint64) { mustBelong("coordination", c.o, set) }

// MustValid panics with ErrWrongContext for the zero token.
func (c ProducerContext) MustValid() {
	if c.o == nil {
		panic(fmt.Errorf("%w: zero producer token", ErrWrongContext))
	}
}

// MustValid panics with ErrWrongContext for the zero token.
func (c RenderContext) MustValid() {
	if c.o == nil {
		panic(fmt.Errorf("%w: zero render token", ErrWrongContext))
	}
}

func (o *owner) ident() uint64 {
	if o == nil {
		return 0
	}
	return o.id
}

func mustMatch(kind string, got, want *owner) {
	if got == nil || want == nil || got != want {
		panic(fmt.Errorf("%w: %s token %d, want %d", ErrWrongContext, kind, got.ident(), want.ident()))
	}
}

func mustBelong(kind string, got *owner, set uint64) {
	if got == nil || set == 0 || got.id != set {
		panic(fmt.Errorf("%w: %s token %d, want %d", ErrWrongContext, kind, got.ident(), set))
	}
}
