package blob

import (
	"context"
	"errors"
	"slices"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	sb "github.com/gogpu/scenebridge"
	"github.com/gogpu/scenebridge/resource"
)

var desc2x2 = resource.ImageDescriptor{Format: resource.FormatBGRA8, Width: 2, Height: 2}

// fill writes the first data byte into every destination byte.
var fill = RasterizerFunc(func(data []byte, _ resource.ImageDescriptor, _ *sb.Rect, dst []byte) error {
	if len(data) == 0 {
		return errors.New("no commands")
	}
	for i := range dst {
		dst[i] = data[0]
	}
	return nil
})

func TestCacheResolve(t *testing.T) {
	c := NewCache(fill)
	key := sb.ImageKey{Namespace: 1, ID: 1}

	c.Request(Request{Key: key, Data: []byte{7}, Desc: desc2x2})
	if !c.Has(key) {
		t.Fatal("Has() = false after Request")
	}
	res, err := c.Resolve(key)
	if err != nil {
		t.Fatalf("Resolve() error = %v", err)
	}
	if len(res.Pixels) != 16 || res.Pixels[15] != 7 {
		t.Errorf("Pixels = %v", res.Pixels)
	}
	if res.Key != key || res.Desc != desc2x2 {
		t.Errorf("Result = %+v", res)
	}

	// Resolving consumes the outcome.
	if _, err := c.Resolve(key); !errors.Is(err, ErrInvalidKey) {
		t.Errorf("second Resolve() error = %v, want ErrInvalidKey", err)
	}
	if _, err := c.Resolve(sb.ImageKey{ID: 99}); !errors.Is(err, ErrInvalidKey) {
		t.Errorf("Resolve(unknown) error = %v, want ErrInvalidKey", err)
	}
}

func TestCacheErrorOutcomes(t *testing.T) {
	key := sb.ImageKey{Namespace: 1, ID: 2}
	tests := []struct {
		name   string
		r      Rasterizer
		req    Request
		reason string
		cause  error
	}{
		{"rasterizer failure", fill, Request{Key: key, Desc: desc2x2}, "rasterizer failed", nil},
		{"bad descriptor", fill, Request{Key: key, Data: []byte{1}}, "descriptor", resource.ErrInvalidDescriptor},
		{"no rasterizer", nil, Request{Key: key, Data: []byte{1}, Desc: desc2x2}, "unavailable", ErrNoRasterizer},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c := NewCache(tt.r)
			c.Request(tt.req)
			_, err := c.Resolve(key)
			var re *RasterError
			if !errors.As(err, &re) {
				t.Fatalf("Resolve() error = %v, want *RasterError", err)
			}
			if re.Reason != tt.reason {
				t.Errorf("Reason = %q, want %q", re.Reason, tt.reason)
			}
			if tt.cause != nil && !errors.Is(err, tt.cause) {
				t.Errorf("error = %v, want cause %v", err, tt.cause)
			}
			if s := c.Stats(); s.Failures != 1 || s.Resolved != 1 {
				t.Errorf("Stats() = %+v", s)
			}
		})
	}
}

func TestCacheLastRequestWins(t *testing.T) {
	c := NewCache(fill)
	key := sb.ImageKey{Namespace: 1, ID: 3}
	c.Request(Request{Key: key, Data: []byte{1}, Desc: desc2x2})
	c.Request(Request{Key: key, Data: []byte{2}, Desc: desc2x2})

	if c.Pending() != 1 {
		t.Fatalf("Pending() = %d, want 1", c.Pending())
	}
	if s := c.Stats(); s.Overwritten != 1 || s.Requests != 2 {
		t.Errorf("Stats() = %+v, want 1 overwrite of 2 requests", s)
	}
	res, err := c.Resolve(key)
	if err != nil {
		t.Fatal(err)
	}
	if res.Pixels[0] != 2 {
		t.Errorf("resolved pixels from request %d, want 2", res.Pixels[0])
	}
}

func TestCacheDirtyCopied(t *testing.T) {
	c := NewCache(fill)
	key := sb.ImageKey{ID: 4}
	dirty := sb.NewRect(0, 0, 1, 1)
	c.Request(Request{Key: key, Data: []byte{1}, Desc: desc2x2, Dirty: &dirty})
	dirty.Size.Width = 50
	res, err := c.Resolve(key)
	if err != nil {
		t.Fatal(err)
	}
	if res.Dirty == nil || res.Dirty.Size.Width != 1 {
		t.Errorf("Dirty = %v, want the rect at request time", res.Dirty)
	}
}

func TestCacheRequestAll(t *testing.T) {
	var calls atomic.Int32
	counting := RasterizerFunc(func(data []byte, desc resource.ImageDescriptor, dirty *sb.Rect, dst []byte) error {
		calls.Add(1)
		return fill(data, desc, dirty, dst)
	})
	c := NewCache(counting, WithWorkers(2))

	var reqs []Request
	for i := range 16 {
		reqs = append(reqs, Request{Key: sb.ImageKey{ID: uint32(i % 8)}, Data: []byte{byte(i)}, Desc: desc2x2})
	}
	if err := c.RequestAll(context.Background(), reqs); err != nil {
		t.Fatalf("RequestAll() error = %v", err)
	}
	if calls.Load() != 16 {
		t.Errorf("rasterizer calls = %d, want 16", calls.Load())
	}
	if c.Pending() != 8 {
		t.Errorf("Pending() = %d, want 8", c.Pending())
	}
	// Later requests win regardless of completion order.
	for i := range 8 {
		res, err := c.Resolve(sb.ImageKey{ID: uint32(i)})
		if err != nil {
			t.Fatal(err)
		}
		if res.Pixels[0] != byte(i+8) {
			t.Errorf("key %d: pixels from request %d, want %d", i, res.Pixels[0], i+8)
		}
	}
	if s := c.Stats(); s.Overwritten != 8 {
		t.Errorf("Overwritten = %d, want 8", s.Overwritten)
	}
}

// overlapTracker is a rasterizer that records the peak number of calls in
// flight and the order calls started in.
type overlapTracker struct {
	mu      sync.Mutex
	active  int
	peak    int
	started []byte
}

func (o *overlapTracker) Rasterize(data []byte, desc resource.ImageDescriptor, dirty *sb.Rect, dst []byte) error {
	o.mu.Lock()
	o.active++
	o.peak = max(o.peak, o.active)
	o.started = append(o.started, data[0])
	o.mu.Unlock()
	time.Sleep(time.Millisecond)
	o.mu.Lock()
	o.active--
	o.mu.Unlock()
	return fill(data, desc, dirty, dst)
}

func TestCacheRequestAllSerialByDefault(t *testing.T) {
	for _, workers := range []int{0, 1} {
		tr := &overlapTracker{}
		c := NewCache(tr, WithWorkers(workers))
		var reqs []Request
		for i := range 6 {
			reqs = append(reqs, Request{Key: sb.ImageKey{ID: uint32(i)}, Data: []byte{byte(i + 1)}, Desc: desc2x2})
		}
		if err := c.RequestAll(context.Background(), reqs); err != nil {
			t.Fatalf("workers %d: RequestAll() error = %v", workers, err)
		}
		if tr.peak != 1 {
			t.Errorf("workers %d: peak concurrent calls = %d, want 1", workers, tr.peak)
		}
		if want := []byte{1, 2, 3, 4, 5, 6}; !slices.Equal(tr.started, want) {
			t.Errorf("workers %d: call order = %v, want %v", workers, tr.started, want)
		}
		if c.Pending() != 6 {
			t.Errorf("workers %d: Pending() = %d, want 6", workers, c.Pending())
		}
	}
}

func TestCacheRequestAllCanceled(t *testing.T) {
	c := NewCache(fill)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	err := c.RequestAll(ctx, []Request{{Key: sb.ImageKey{ID: 1}, Data: []byte{1}, Desc: desc2x2}})
	if !errors.Is(err, context.Canceled) {
		t.Errorf("RequestAll() error = %v, want context.Canceled", err)
	}
	if c.Pending() != 0 {
		t.Errorf("Pending() = %d after cancellation", c.Pending())
	}
}

func TestCacheDiscardAndSetRasterizer(t *testing.T) {
	c := NewCache(nil)
	key := sb.ImageKey{ID: 5}
	c.SetRasterizer(fill)
	c.Request(Request{Key: key, Data: []byte{3}, Desc: desc2x2})
	c.Discard(key)
	if c.Has(key) {
		t.Error("Has() = true after Discard")
	}
}
