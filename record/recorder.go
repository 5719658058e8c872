package record

import (
	"bufio"
	"encoding/binary"
	"errors"
	"fmt"
	"io"
	"math"
	"os"
	"path/filepath"
	"sync"
	"time"

	sb "github.com/gogpu/scenebridge"
	"github.com/gogpu/scenebridge/api"
)

// Recorder writes every message it observes to a recording. It implements
// api.Observer and is safe for concurrent use.
//
// Observe cannot report errors; the first write error is kept, stops
// further writes and is returned by Err, Flush and Close.
type Recorder struct {
	mu    sync.Mutex
	w     *bufio.Writer
	c     io.Closer
	start time.Time
	now   func() time.Time
	n     int
	err   error
	buf   []byte
}

var _ api.Observer = (*Recorder)(nil)

// NewRecorder writes the recording header for window to w and returns a
// recorder appending to it.
func NewRecorder(w io.Writer, window sb.WindowID, size sb.Size) (*Recorder, error) {
	r := &Recorder{w: bufio.NewWriter(w), now: time.Now}
	if c, ok := w.(io.Closer); ok {
		r.c = c
	}
	var h [headerSize]byte
	binary.LittleEndian.PutUint32(h[0:], Magic)
	binary.LittleEndian.PutUint32(h[4:], Version)
	binary.LittleEndian.PutUint64(h[8:], uint64(window))
	binary.LittleEndian.PutUint32(h[16:], math.Float32bits(size.Width))
	binary.LittleEndian.PutUint32(h[20:], math.Float32bits(size.Height))
	if _, err := r.w.Write(h[:]); err != nil {
		return nil, fmt.Errorf("record: write header: %w", err)
	}
	r.start = r.now()
	return r, nil
}

// Create creates FileName(window) in dir and records into it.
func Create(dir string, window sb.WindowID, size sb.Size) (*Recorder, error) {
	path := filepath.Join(dir, FileName(window))
	f, err := os.Create(path)
	if err != nil {
		return nil, fmt.Errorf("record: %w", err)
	}
	r, err := NewRecorder(f, window, size)
	if err != nil {
		_ = f.Close()
		return nil, err
	}
	sb.Logger().Info("record: recording", "window", uint64(window), "path", path)
	return r, nil
}

// Observe implements api.Observer.
func (r *Recorder) Observe(m api.Message) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.err != nil {
		return
	}
	payload, err := encodeMessage(r.buf[:0], m)
	if err != nil {
		r.fail(err)
		return
	}
	r.buf = payload
	if uint64(len(payload)) > maxPayload {
		r.fail(fmt.Errorf("record: %v payload of %d bytes exceeds the entry limit", m.Type(), len(payload)))
		return
	}
	var h [entrySize]byte
	binary.LittleEndian.PutUint32(h[0:], uint32(m.Type()))
	binary.LittleEndian.PutUint32(h[4:], uint32(len(payload))) //nolint:gosec // bounded by maxPayload
	binary.LittleEndian.PutUint64(h[8:], uint64(r.now().Sub(r.start)))
	if _, err := r.w.Write(h[:]); err != nil {
		r.fail(err)
		return
	}
	if _, err := r.w.Write(payload); err != nil {
		r.fail(err)
		return
	}
	r.n++
}

func (r *Recorder) fail(err error) {
	r.err = err
	sb.Logger().Warn("record: recording stopped", "entries", r.n, "err", err)
}

// Len returns the number of entries written.
func (r *Recorder) Len() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.n
}

// Err returns the error that stopped recording, if any.
func (r *Recorder) Err() error {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.err
}

// Flush writes buffered entries to the underlying writer.
func (r *Recorder) Flush() error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.err != nil {
		return r.err
	}
	if err := r.w.Flush(); err != nil {
		r.fail(err)
		return err
	}
	return nil
}

// Close flushes and closes the underlying writer when it is an io.Closer.
// Later observations are dropped.
func (r *Recorder) Close() error {
	err := r.Flush()
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.err == nil {
		r.err = errClosed
	}
	if r.c != nil {
		err = errors.Join(err, r.c.Close())
		r.c = nil
	}
	return err
}

var errClosed = errors.New("record: recorder closed")
