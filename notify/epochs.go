package notify

import (
	"slices"
	"sync"

	sb "github.com/gogpu/scenebridge"
)

// PipelineEpoch pairs a pipeline with the epoch of its composited frame.
type PipelineEpoch struct {
	Pipeline sb.PipelineID
	Epoch    sb.Epoch
}

// RenderedEpochs is a drained batch of completed frames. Each pipeline
// appears at most once, with its newest epoch. Order carries no meaning;
// batches are sorted by pipeline for reproducibility.
type RenderedEpochs struct {
	pairs []PipelineEpoch
	pos   int
}

// Next returns the next pair, or false when the batch is exhausted.
func (r *RenderedEpochs) Next() (PipelineEpoch, bool) {
	if r == nil || r.pos >= len(r.pairs) {
		return PipelineEpoch{}, false
	}
	p := r.pairs[r.pos]
	r.pos++
	return p, true
}

// Len returns the number of pairs not yet returned by Next.
func (r *RenderedEpochs) Len() int {
	if r == nil {
		return 0
	}
	return len(r.pairs) - r.pos
}

// Epoch returns the epoch reported for pipeline in this batch.
func (r *RenderedEpochs) Epoch(pipeline sb.PipelineID) (sb.Epoch, bool) {
	if r == nil {
		return 0, false
	}
	for _, p := range r.pairs {
		if p.Pipeline == pipeline {
			return p.Epoch, true
		}
	}
	return 0, false
}

// Pairs returns a copy of every pair in the batch.
func (r *RenderedEpochs) Pairs() []PipelineEpoch {
	if r == nil {
		return nil
	}
	return slices.Clone(r.pairs)
}

// Epochs accumulates composited epochs between flushes. A reported epoch
// never regresses: recording an epoch at or below the last flushed one for
// the same pipeline is ignored. Epochs is safe for concurrent use.
type Epochs struct {
	mu       sync.Mutex
	pending  map[sb.PipelineID]sb.Epoch
	reported map[sb.PipelineID]sb.Epoch
}

// NewEpochs creates an empty queue.
func NewEpochs() *Epochs {
	return &Epochs{
		pending:  make(map[sb.PipelineID]sb.Epoch),
		reported: make(map[sb.PipelineID]sb.Epoch),
	}
}

// Record notes that pipeline was composited at epoch. It reports whether
// the epoch advanced the pipeline.
func (q *Epochs) Record(pipeline sb.PipelineID, epoch sb.Epoch) bool {
	q.mu.Lock()
	defer q.mu.Unlock()
	if last, ok := q.reported[pipeline]; ok && epoch <= last {
		return false
	}
	if cur, ok := q.pending[pipeline]; ok && epoch <= cur {
		return false
	}
	q.pending[pipeline] = epoch
	return true
}

// Pending returns the number of pipelines waiting to be flushed.
func (q *Epochs) Pending() int {
	q.mu.Lock()
	defer q.mu.Unlock()
	return len(q.pending)
}

// Flush drains the queue.
func (q *Epochs) Flush() *RenderedEpochs {
	q.mu.Lock()
	defer q.mu.Unlock()
	pairs := make([]PipelineEpoch, 0, len(q.pending))
	for p, e := range q.pending {
		pairs = append(pairs, PipelineEpoch{Pipeline: p, Epoch: e})
		q.reported[p] = e
	}
	clear(q.pending)
	slices.SortFunc(pairs, func(a, b PipelineEpoch) int { return a.Pipeline.Compare(b.Pipeline) })
	return &RenderedEpochs{pairs: pairs}
}

// Forget drops all state for pipeline, so a later epoch sequence for it
// starts over.
func (q *Epochs) Forget(pipeline sb.PipelineID) {
	q.mu.Lock()
	defer q.mu.Unlock()
	delete(q.pending, pipeline)
	delete(q.reported, pipeline)
}
