// Package api is the producer side of a renderer: it turns resource and
// scene mutations into messages and queues them for the render context.
//
// A [Sender] owns one queue. Each producer connection obtains an [API] from
// it with CreateAPI, which allocates a fresh id namespace for its keys. The
// renderer drains the queue with [Receiver.Drain] during Update; nothing is
// applied before that.
//
// Example:
//
//	a := sender.CreateAPI()
//	key := a.GenerateImageKey()
//	_ = a.AddImage(pc, key, desc, pixels)
//	buf, desc := wire.Encode(dl)
//	_ = a.SetDisplayList(pc, 1, pipeline, viewport, buf.Take(), desc)
//	a.GenerateFrame(pc)
package api

import (
	"errors"
	"fmt"
	"sync"
	"sync/atomic"

	sb "github.com/gogpu/scenebridge"
	"github.com/gogpu/scenebridge/notify"
	"github.com/gogpu/scenebridge/resource"
	"github.com/gogpu/scenebridge/wire"
)

// Sentinel errors.
var (
	// ErrStaleEpoch is returned when a display list is submitted with an
	// epoch not greater than the last one accepted for its pipeline.
	ErrStaleEpoch = errors.New("api: epoch does not increase")

	// ErrClosed is returned after the receiving renderer was deleted.
	ErrClosed = errors.New("api: renderer closed")
)

// Observer sees every message in queue order. Observers run while the
// queue lock is held and must not call back into the Sender.
type Observer interface {
	Observe(m Message)
}

// ObserverFunc adapts a function to Observer.
type ObserverFunc func(m Message)

// Observe implements Observer.
func (f ObserverFunc) Observe(m Message) { f(m) }

type queue struct {
	mu        sync.Mutex
	msgs      []Message
	closed    bool
	observers []Observer
}

func (q *queue) push(msgs ...Message) error {
	q.mu.Lock()
	defer q.mu.Unlock()
	if q.closed {
		return ErrClosed
	}
	for _, m := range msgs {
		for _, o := range q.observers {
			o.Observe(m)
		}
	}
	q.msgs = append(q.msgs, msgs...)
	return nil
}

// Sender is the producer end of a renderer's message queue. It is safe
// for concurrent use.
type Sender struct {
	set    uint64
	q      *queue
	nextNS atomic.Uint32
}

// Receiver is the render end of the queue.
type Receiver struct {
	q *queue
}

// Option configures a channel.
type Option func(*queue)

// WithObserver registers o to see every queued message.
func WithObserver(o Observer) Option {
	return func(q *queue) { q.observers = append(q.observers, o) }
}

// NewChannel creates a queue bound to the context token set set. Every
// producer call must carry a token from that set.
func NewChannel(set uint64, opts ...Option) (*Sender, *Receiver) {
	q := &queue{}
	for _, opt := range opts {
		opt(q)
	}
	return &Sender{set: set, q: q}, &Receiver{q: q}
}

// Drain removes and returns every queued message in submission order.
func (r *Receiver) Drain() []Message {
	r.q.mu.Lock()
	defer r.q.mu.Unlock()
	msgs := r.q.msgs
	r.q.msgs = nil
	return msgs
}

// Len returns the number of queued messages.
func (r *Receiver) Len() int {
	r.q.mu.Lock()
	defer r.q.mu.Unlock()
	return len(r.q.msgs)
}

// Close rejects further messages and drops queued ones.
func (r *Receiver) Close() {
	r.q.mu.Lock()
	defer r.q.mu.Unlock()
	r.q.closed = true
	r.q.msgs = nil
}

// AddObserver registers o for subsequent messages.
func (s *Sender) AddObserver(o Observer) {
	s.q.mu.Lock()
	s.q.observers = append(s.q.observers, o)
	s.q.mu.Unlock()
}

// CreateAPI returns a producer connection with its own id namespace.
// Namespaces start at 1.
func (s *Sender) CreateAPI() *API {
	return &API{
		s:      s,
		ns:     sb.IdNamespace(s.nextNS.Add(1)),
		epochs: make(map[sb.PipelineID]sb.Epoch),
	}
}

// SendExternalEvent queues evt to be echoed through the notifier at the
// next Update. Only the coordination context may send events.
func (s *Sender) SendExternalEvent(cc sb.CoordinationContext, evt notify.ExternalEvent) error {
	cc.MustBelong(s.set)
	return s.q.push(ExternalEvent{Event: evt})
}

// Send queues msgs as they are, without validation or epoch checks. It is
// meant for replaying recorded sessions; producers use an API.
func (s *Sender) Send(pc sb.ProducerContext, msgs ...Message) error {
	pc.MustBelong(s.set)
	return s.q.push(msgs...)
}

// API is one producer connection. It is safe for concurrent use, but
// epoch ordering is only meaningful from a single producer goroutine.
type API struct {
	s         *Sender
	ns        sb.IdNamespace
	nextImage atomic.Uint32
	nextFont  atomic.Uint32

	mu     sync.Mutex
	epochs map[sb.PipelineID]sb.Epoch
}

// IdNamespace returns the namespace of keys generated by a.
func (a *API) IdNamespace() sb.IdNamespace { return a.ns }

// GenerateImageKey returns a fresh image key in a's namespace.
func (a *API) GenerateImageKey() sb.ImageKey {
	return sb.ImageKey{Namespace: a.ns, ID: a.nextImage.Add(1)}
}

// GenerateFontKey returns a fresh font key in a's namespace.
func (a *API) GenerateFontKey() sb.FontKey {
	return sb.FontKey{Namespace: a.ns, ID: a.nextFont.Add(1)}
}

// GeneratePipelineID returns a pipeline id in a's namespace.
func (a *API) GeneratePipelineID(id uint32) sb.PipelineID {
	return sb.PipelineID{Namespace: a.ns, ID: id}
}

func (a *API) send(pc sb.ProducerContext, msgs ...Message) error {
	pc.MustBelong(a.s.set)
	return a.s.q.push(msgs...)
}

// --------------------------------------------------------------------------
// Resources
// --------------------------------------------------------------------------

// AddImage adds an image whose pixels are laid out per desc.
func (a *API) AddImage(pc sb.ProducerContext, key sb.ImageKey, desc resource.ImageDescriptor, pixels []byte) error {
	if err := desc.Validate(); err != nil {
		return fmt.Errorf("api: add %v: %w", key, err)
	}
	return a.send(pc, AddImage{Key: key, Desc: desc, Data: resource.Raw(pixels)})
}

// AddBlobImage adds a vector image rasterized on demand.
func (a *API) AddBlobImage(pc sb.ProducerContext, key sb.ImageKey, desc resource.ImageDescriptor, commands []byte) error {
	if err := desc.Validate(); err != nil {
		return fmt.Errorf("api: add blob %v: %w", key, err)
	}
	return a.send(pc, AddImage{Key: key, Desc: desc, Data: resource.Blob(commands)})
}

// AddExternalImage adds an image owned by the producer and reached through
// the external image handler.
func (a *API) AddExternalImage(pc sb.ProducerContext, key sb.ImageKey, desc resource.ImageDescriptor, id sb.ExternalImageID, t resource.ExternalType) error {
	if err := desc.Validate(); err != nil {
		return fmt.Errorf("api: add external %v: %w", key, err)
	}
	return a.send(pc, AddImage{Key: key, Desc: desc, Data: resource.External(id, t)})
}

// UpdateImage replaces the pixels of a raw image.
func (a *API) UpdateImage(pc sb.ProducerContext, key sb.ImageKey, desc resource.ImageDescriptor, pixels []byte) error {
	if err := desc.Validate(); err != nil {
		return fmt.Errorf("api: update %v: %w", key, err)
	}
	return a.send(pc, UpdateImage{Key: key, Desc: desc, Data: resource.Raw(pixels)})
}

// UpdateBlobImage replaces the commands of a blob image. A non-nil dirty
// rect limits rasterization to that region.
func (a *API) UpdateBlobImage(pc sb.ProducerContext, key sb.ImageKey, desc resource.ImageDescriptor, commands []byte, dirty *sb.Rect) error {
	if err := desc.Validate(); err != nil {
		return fmt.Errorf("api: update blob %v: %w", key, err)
	}
	var d *sb.Rect
	if dirty != nil {
		r := *dirty
		d = &r
	}
	return a.send(pc, UpdateImage{Key: key, Desc: desc, Data: resource.Blob(commands), Dirty: d})
}

// UpdateExternalImage points key at another producer-owned image.
func (a *API) UpdateExternalImage(pc sb.ProducerContext, key sb.ImageKey, desc resource.ImageDescriptor, id sb.ExternalImageID, t resource.ExternalType) error {
	if err := desc.Validate(); err != nil {
		return fmt.Errorf("api: update external %v: %w", key, err)
	}
	return a.send(pc, UpdateImage{Key: key, Desc: desc, Data: resource.External(id, t)})
}

// DeleteImage deletes an image. The renderer keeps it alive until no
// pending frame can reference it.
func (a *API) DeleteImage(pc sb.ProducerContext, key sb.ImageKey) error {
	return a.send(pc, DeleteImage{Key: key})
}

// AddRawFont adds face index of a font file.
func (a *API) AddRawFont(pc sb.ProducerContext, key sb.FontKey, data []byte, index uint32) error {
	if len(data) == 0 {
		return fmt.Errorf("api: add %v: %w", key, resource.ErrEmptyFontData)
	}
	return a.send(pc, AddFont{Key: key, Data: data, Index: index})
}

// DeleteFont deletes a font.
func (a *API) DeleteFont(pc sb.ProducerContext, key sb.FontKey) error {
	return a.send(pc, DeleteFont{Key: key})
}

// --------------------------------------------------------------------------
// Scene
// --------------------------------------------------------------------------

// DisplayListOption adjusts a SetDisplayList message.
type DisplayListOption func(*SetDisplayList)

// WithBackground sets the color the pipeline's viewport is cleared to.
func WithBackground(c sb.Color) DisplayListOption {
	return func(m *SetDisplayList) { m.Background = c }
}

// WithPreservedFrameState keeps the scroll offsets of the previous list.
func WithPreservedFrameState() DisplayListOption {
	return func(m *SetDisplayList) { m.PreserveFrameState = true }
}

func (a *API) advance(pipeline sb.PipelineID, epoch sb.Epoch) error {
	a.mu.Lock()
	defer a.mu.Unlock()
	if last, ok := a.epochs[pipeline]; ok && epoch <= last {
		return fmt.Errorf("%w: %v epoch %d after %d", ErrStaleEpoch, pipeline, epoch, last)
	}
	a.epochs[pipeline] = epoch
	return nil
}

// SetDisplayList queues an encoded display list as the pending list for
// pipeline. data is owned by the renderer afterwards. The list is decoded
// at Update.
func (a *API) SetDisplayList(pc sb.ProducerContext, epoch sb.Epoch, pipeline sb.PipelineID, viewport sb.Size, data []byte, desc wire.Descriptor, opts ...DisplayListOption) error {
	pc.MustBelong(a.s.set)
	if desc.Pipeline != pipeline {
		return fmt.Errorf("%w: descriptor for %v submitted as %v", wire.ErrMalformed, desc.Pipeline, pipeline)
	}
	if err := a.advance(pipeline, epoch); err != nil {
		return err
	}
	m := SetDisplayList{
		Epoch:      epoch,
		Pipeline:   pipeline,
		Viewport:   viewport,
		Data:       data,
		Descriptor: desc,
	}
	for _, opt := range opts {
		opt(&m)
	}
	return a.send(pc, m)
}

// ClearDisplayList submits an empty display list for pipeline.
func (a *API) ClearDisplayList(pc sb.ProducerContext, epoch sb.Epoch, pipeline sb.PipelineID) error {
	pc.MustBelong(a.s.set)
	if err := a.advance(pipeline, epoch); err != nil {
		return err
	}
	return a.send(pc, ClearDisplayList{Epoch: epoch, Pipeline: pipeline})
}

// SetRootPipeline selects the root pipeline and requests a frame.
func (a *API) SetRootPipeline(pc sb.ProducerContext, pipeline sb.PipelineID) error {
	return a.send(pc, SetRootPipeline{Pipeline: pipeline}, GenerateFrame{})
}

// SetWindowSize resizes the window; content fills it.
func (a *API) SetWindowSize(pc sb.ProducerContext, size sb.Size) error {
	return a.SetWindowParameters(pc, size, sb.Rect{Size: size})
}

// SetWindowParameters resizes the window and places content in inner.
func (a *API) SetWindowParameters(pc sb.ProducerContext, size sb.Size, inner sb.Rect) error {
	return a.send(pc, SetWindow{Size: size, Inner: inner})
}

// ScrollTo moves scroll layer id of pipeline to offset.
func (a *API) ScrollTo(pc sb.ProducerContext, pipeline sb.PipelineID, id uint32, offset sb.Point) error {
	return a.send(pc, Scroll{Pipeline: pipeline, ScrollID: id, Offset: offset})
}

// GenerateFrame requests a frame. It never blocks; completion is reported
// through the notifier and the rendered epoch queue.
func (a *API) GenerateFrame(pc sb.ProducerContext) error {
	return a.send(pc, GenerateFrame{})
}
