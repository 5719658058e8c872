// Package blob rasterizes vector (blob) images on request and holds each
// outcome until it is resolved.
//
// A request runs the installed [Rasterizer] and stores exactly one outcome
// per key: the pixels or the error. Resolve hands the outcome over and
// forgets it. A second request for a key that was never resolved replaces
// the stored outcome; the replaced one is counted and logged.
package blob

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"golang.org/x/sync/errgroup"

	sb "github.com/gogpu/scenebridge"
	"github.com/gogpu/scenebridge/resource"
)

// ErrInvalidKey is returned by Resolve when no outcome is stored for a key.
var ErrInvalidKey = errors.New("blob: no rasterization outcome for key")

// ErrNoRasterizer is the cause of a RasterError when the cache has no
// rasterizer.
var ErrNoRasterizer = errors.New("blob: no rasterizer installed")

// Rasterizer turns serialized blob commands into pixels.
//
// dst has exactly desc.Size() bytes laid out per desc. When dirty is
// non-nil only pixels inside it need to be produced. A cache calls its
// rasterizer from one goroutine at a time unless it was created with
// WithWorkers(n) for n > 1; only then must implementations be safe for
// concurrent use.
type Rasterizer interface {
	Rasterize(data []byte, desc resource.ImageDescriptor, dirty *sb.Rect, dst []byte) error
}

// RasterizerFunc adapts a function to Rasterizer.
type RasterizerFunc func(data []byte, desc resource.ImageDescriptor, dirty *sb.Rect, dst []byte) error

// Rasterize implements Rasterizer.
func (f RasterizerFunc) Rasterize(data []byte, desc resource.ImageDescriptor, dirty *sb.Rect, dst []byte) error {
	return f(data, desc, dirty, dst)
}

// RasterError is the stored outcome of a failed rasterization.
type RasterError struct {
	Key    sb.ImageKey
	Reason string
	Err    error
}

func (e *RasterError) Error() string {
	if e.Err == nil {
		return fmt.Sprintf("blob: rasterize %v: %s", e.Key, e.Reason)
	}
	return fmt.Sprintf("blob: rasterize %v: %s: %v", e.Key, e.Reason, e.Err)
}

func (e *RasterError) Unwrap() error { return e.Err }

// Request is one rasterization job.
type Request struct {
	Key   sb.ImageKey
	Data  []byte
	Desc  resource.ImageDescriptor
	Dirty *sb.Rect
}

// Result is a successful rasterization. Pixels is owned by the caller of
// Resolve.
type Result struct {
	Key    sb.ImageKey
	Desc   resource.ImageDescriptor
	Pixels []byte
	// Dirty is the region the pixels are valid for, nil for all of them.
	Dirty *sb.Rect
}

// Stats counts cache activity.
type Stats struct {
	Requests    uint64
	Failures    uint64
	Resolved    uint64
	Overwritten uint64
}

type outcome struct {
	result Result
	err    *RasterError
}

// Cache stores rasterization outcomes between request and resolve.
// Cache is safe for concurrent use.
type Cache struct {
	mu         sync.Mutex
	rasterizer Rasterizer
	outcomes   map[sb.ImageKey]outcome
	stats      Stats
	workers    int
}

// Option configures a Cache.
type Option func(*Cache)

// WithWorkers sets the parallelism of RequestAll. Values below 2 keep
// every rasterizer call on the calling goroutine, in request order.
func WithWorkers(n int) Option {
	return func(c *Cache) { c.workers = n }
}

// NewCache creates a cache around r. r may be nil, in which case every
// request stores a RasterError.
func NewCache(r Rasterizer, opts ...Option) *Cache {
	c := &Cache{rasterizer: r, outcomes: make(map[sb.ImageKey]outcome)}
	for _, opt := range opts {
		opt(c)
	}
	c.workers = max(c.workers, 1)
	return c
}

// SetRasterizer replaces the rasterizer.
func (c *Cache) SetRasterizer(r Rasterizer) {
	c.mu.Lock()
	c.rasterizer = r
	c.mu.Unlock()
}

// Request rasterizes synchronously and stores the outcome under req.Key.
func (c *Cache) Request(req Request) {
	c.mu.Lock()
	r := c.rasterizer
	c.mu.Unlock()
	out := rasterize(r, req)
	c.store(req.Key, out)
}

// RequestAll rasterizes reqs and stores the outcomes in request order, so
// for repeated keys the later request wins. Requests run on up to the
// configured number of workers. It returns only ctx errors, and stores
// nothing when it does; rasterization failures are stored per key.
func (c *Cache) RequestAll(ctx context.Context, reqs []Request) error {
	c.mu.Lock()
	r := c.rasterizer
	c.mu.Unlock()

	outs := make([]outcome, len(reqs))
	if c.workers == 1 {
		for i, req := range reqs {
			if err := ctx.Err(); err != nil {
				return err
			}
			outs[i] = rasterize(r, req)
		}
		for i, req := range reqs {
			c.store(req.Key, outs[i])
		}
		return nil
	}
	g, ctx := errgroup.WithContext(ctx)
	g.SetLimit(c.workers)
	for i, req := range reqs {
		g.Go(func() error {
			if err := ctx.Err(); err != nil {
				return err
			}
			outs[i] = rasterize(r, req)
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return err
	}
	for i, req := range reqs {
		c.store(req.Key, outs[i])
	}
	return nil
}

// Resolve removes and returns the outcome stored for key. A failed
// rasterization is returned as a *RasterError. Without a stored outcome
// Resolve returns ErrInvalidKey.
func (c *Cache) Resolve(key sb.ImageKey) (Result, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	out, ok := c.outcomes[key]
	if !ok {
		return Result{}, fmt.Errorf("%w: %v", ErrInvalidKey, key)
	}
	delete(c.outcomes, key)
	c.stats.Resolved++
	if out.err != nil {
		return Result{}, out.err
	}
	return out.result, nil
}

// Has reports whether an outcome is stored for key.
func (c *Cache) Has(key sb.ImageKey) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	_, ok := c.outcomes[key]
	return ok
}

// Discard drops any outcome stored for key.
func (c *Cache) Discard(key sb.ImageKey) {
	c.mu.Lock()
	delete(c.outcomes, key)
	c.mu.Unlock()
}

// Pending returns the number of stored outcomes.
func (c *Cache) Pending() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.outcomes)
}

// Stats returns the activity counters.
func (c *Cache) Stats() Stats {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.stats
}

func (c *Cache) store(key sb.ImageKey, out outcome) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.stats.Requests++
	if out.err != nil {
		c.stats.Failures++
	}
	if _, ok := c.outcomes[key]; ok {
		c.stats.Overwritten++
		sb.Logger().Warn("blob: unresolved outcome replaced", "key", key.String())
	}
	c.outcomes[key] = out
}

func rasterize(r Rasterizer, req Request) outcome {
	if r == nil {
		return outcome{err: &RasterError{Key: req.Key, Reason: "unavailable", Err: ErrNoRasterizer}}
	}
	if err := req.Desc.Validate(); err != nil {
		return outcome{err: &RasterError{Key: req.Key, Reason: "descriptor", Err: err}}
	}
	dst := make([]byte, req.Desc.Size())
	if err := r.Rasterize(req.Data, req.Desc, req.Dirty, dst); err != nil {
		return outcome{err: &RasterError{Key: req.Key, Reason: "rasterizer failed", Err: err}}
	}
	res := Result{Key: req.Key, Desc: req.Desc, Pixels: dst}
	if req.Dirty != nil {
		d := *req.Dirty
		res.Dirty = &d
	}
	return outcome{result: res}
}
