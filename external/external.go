// Package external bridges producer-owned images into frame composition.
//
// The producer installs a [Handler]. During a frame the renderer locks every
// external image it references through a [Bridge], which guarantees the
// handler sees lock and unlock strictly paired per frame, and release at
// most once per id with no lock after it.
package external

import (
	"errors"
	"fmt"

	sb "github.com/gogpu/scenebridge"
)

// Sentinel errors.
var (
	// ErrNoHandler is returned by Lock when no handler is installed. Draw
	// commands hitting it are skipped.
	ErrNoHandler = errors.New("external: no image handler installed")

	// ErrReleased is returned for ids that were already released.
	ErrReleased = errors.New("external: image already released")

	// ErrNoImage is returned when the handler's Lock returns nil.
	ErrNoImage = errors.New("external: handler returned no image")
)

// Image is the source returned by Handler.Lock: either a NativeTexture or
// a RawData.
type Image interface {
	isImage()
}

// NativeTexture is a GPU texture owned by the producer.
type NativeTexture struct {
	// Handle is the backend texture name or pointer.
	Handle uint64
	// UV is the sub-rectangle to sample, in normalized texture coordinates.
	UV sb.Rect
}

// RawData is a CPU pixel buffer owned by the producer. Pixels is laid out
// as tightly packed BGRA8 rows and is valid until the matching Unlock.
type RawData struct {
	Pixels []byte
	Width  uint32
	Height uint32
}

func (NativeTexture) isImage() {}
func (RawData) isImage()       {}

// Handler gives the renderer access to producer-owned images.
//
// Lock is called at most once per id per frame and is always followed by
// Unlock before the frame ends. Release is called once, when the renderer
// drops its last reference to id; no Lock follows it.
type Handler interface {
	Lock(id sb.ExternalImageID) Image
	Unlock(id sb.ExternalImageID)
	Release(id sb.ExternalImageID)
}

// Funcs adapts three plain functions to Handler. Nil functions are no-ops;
// a nil LockFunc yields ErrNoImage at lock time.
type Funcs struct {
	LockFunc    func(id sb.ExternalImageID) Image
	UnlockFunc  func(id sb.ExternalImageID)
	ReleaseFunc func(id sb.ExternalImageID)
}

var _ Handler = Funcs{}

// Lock implements Handler.
func (f Funcs) Lock(id sb.ExternalImageID) Image {
	if f.LockFunc == nil {
		return nil
	}
	return f.LockFunc(id)
}

// Unlock implements Handler.
func (f Funcs) Unlock(id sb.ExternalImageID) {
	if f.UnlockFunc != nil {
		f.UnlockFunc(id)
	}
}

// Release implements Handler.
func (f Funcs) Release(id sb.ExternalImageID) {
	if f.ReleaseFunc != nil {
		f.ReleaseFunc(id)
	}
}

// Stats counts handler calls made through a bridge.
type Stats struct {
	Locks    uint64
	Unlocks  uint64
	Releases uint64
	Skipped  uint64
}

// Bridge enforces the handler protocol for one renderer. It belongs to the
// render context and is not safe for concurrent use.
type Bridge struct {
	handler  Handler
	locked   map[sb.ExternalImageID]Image
	order    []sb.ExternalImageID
	released map[sb.ExternalImageID]struct{}
	stats    Stats
}

// NewBridge creates a bridge. h may be nil and installed later.
func NewBridge(h Handler) *Bridge {
	return &Bridge{
		handler:  h,
		locked:   make(map[sb.ExternalImageID]Image),
		released: make(map[sb.ExternalImageID]struct{}),
	}
}

// SetHandler installs h, replacing any previous handler. Images locked
// through the previous handler are unlocked first.
func (b *Bridge) SetHandler(h Handler) {
	b.EndFrame()
	b.handler = h
}

// Installed reports whether a handler is installed.
func (b *Bridge) Installed() bool { return b.handler != nil }

// Lock returns the image for id, locking it on first use in the frame.
func (b *Bridge) Lock(id sb.ExternalImageID) (Image, error) {
	if img, ok := b.locked[id]; ok {
		return img, nil
	}
	if _, ok := b.released[id]; ok {
		return nil, fmt.Errorf("%w: lock %d", ErrReleased, id)
	}
	if b.handler == nil {
		b.stats.Skipped++
		sb.Logger().Debug("external: no handler, skipping image", "id", uint64(id))
		return nil, ErrNoHandler
	}
	img := b.handler.Lock(id)
	b.stats.Locks++
	if img == nil {
		// The handler saw a lock; pair it.
		b.handler.Unlock(id)
		b.stats.Unlocks++
		return nil, fmt.Errorf("%w: id %d", ErrNoImage, id)
	}
	b.locked[id] = img
	b.order = append(b.order, id)
	return img, nil
}

// Locked returns the number of images currently locked.
func (b *Bridge) Locked() int { return len(b.order) }

// EndFrame unlocks every image locked since the last EndFrame, in lock
// order.
func (b *Bridge) EndFrame() {
	for _, id := range b.order {
		b.handler.Unlock(id)
		b.stats.Unlocks++
	}
	clear(b.locked)
	b.order = b.order[:0]
}

// Release tells the handler the renderer no longer references id. A locked
// id is unlocked first. Releasing twice returns ErrReleased.
func (b *Bridge) Release(id sb.ExternalImageID) error {
	if _, ok := b.released[id]; ok {
		return fmt.Errorf("%w: release %d", ErrReleased, id)
	}
	b.released[id] = struct{}{}
	if b.handler == nil {
		return nil
	}
	if _, ok := b.locked[id]; ok {
		b.handler.Unlock(id)
		b.stats.Unlocks++
		delete(b.locked, id)
		for i, v := range b.order {
			if v == id {
				b.order = append(b.order[:i], b.order[i+1:]...)
				break
			}
		}
	}
	b.handler.Release(id)
	b.stats.Releases++
	return nil
}

// IsReleased reports whether id was released.
func (b *Bridge) IsReleased(id sb.ExternalImageID) bool {
	_, ok := b.released[id]
	return ok
}

// Stats returns the handler call counters.
func (b *Bridge) Stats() Stats { return b.stats }
