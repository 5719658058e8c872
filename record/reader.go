package record

import (
	"bufio"
	"encoding/binary"
	"errors"
	"fmt"
	"io"
	"math"
	"time"

	sb "github.com/gogpu/scenebridge"
	"github.com/gogpu/scenebridge/api"
)

// Entry is one recorded message.
type Entry struct {
	// Elapsed is the time between the start of the recording and the
	// message.
	Elapsed time.Duration
	Message api.Message
}

// Reader reads the entries of a recording in order.
type Reader struct {
	r      *bufio.Reader
	window sb.WindowID
	size   sb.Size
	n      int
	buf    []byte
}

// NewReader reads and validates the recording header.
func NewReader(r io.Reader) (*Reader, error) {
	br := bufio.NewReader(r)
	var h [headerSize]byte
	if _, err := io.ReadFull(br, h[:]); err != nil {
		if errors.Is(err, io.EOF) || errors.Is(err, io.ErrUnexpectedEOF) {
			return nil, ErrNotRecording
		}
		return nil, fmt.Errorf("record: read header: %w", err)
	}
	if binary.LittleEndian.Uint32(h[0:]) != Magic {
		return nil, ErrNotRecording
	}
	if v := binary.LittleEndian.Uint32(h[4:]); v != Version {
		return nil, fmt.Errorf("%w: %d", ErrUnsupportedVersion, v)
	}
	return &Reader{
		r:      br,
		window: sb.WindowID(binary.LittleEndian.Uint64(h[8:])),
		size: sb.Size{
			Width:  math.Float32frombits(binary.LittleEndian.Uint32(h[16:])),
			Height: math.Float32frombits(binary.LittleEndian.Uint32(h[20:])),
		},
	}, nil
}

// Window returns the window the recording was made for.
func (r *Reader) Window() sb.WindowID { return r.window }

// Size returns the window size at the start of the recording.
func (r *Reader) Size() sb.Size { return r.size }

// Next returns the next entry, or io.EOF after the last one. A recording cut
// off inside an entry yields ErrCorrupt.
func (r *Reader) Next() (Entry, error) {
	var h [entrySize]byte
	if _, err := io.ReadFull(r.r, h[:]); err != nil {
		if errors.Is(err, io.EOF) {
			return Entry{}, io.EOF
		}
		if errors.Is(err, io.ErrUnexpectedEOF) {
			return Entry{}, fmt.Errorf("%w: entry %d header truncated", ErrCorrupt, r.n)
		}
		return Entry{}, err
	}
	t := api.MessageType(binary.LittleEndian.Uint32(h[0:]))
	n := binary.LittleEndian.Uint32(h[4:])
	elapsed := time.Duration(binary.LittleEndian.Uint64(h[8:])) //nolint:gosec // written from a Duration
	if n > maxPayload {
		return Entry{}, fmt.Errorf("%w: entry %d payload of %d bytes", ErrCorrupt, r.n, n)
	}
	if cap(r.buf) < int(n) {
		r.buf = make([]byte, n)
	}
	payload := r.buf[:n]
	if _, err := io.ReadFull(r.r, payload); err != nil {
		if errors.Is(err, io.EOF) || errors.Is(err, io.ErrUnexpectedEOF) {
			return Entry{}, fmt.Errorf("%w: entry %d payload truncated", ErrCorrupt, r.n)
		}
		return Entry{}, err
	}
	m, err := decodeMessage(t, payload)
	if err != nil {
		return Entry{}, fmt.Errorf("entry %d: %w", r.n, err)
	}
	r.n++
	return Entry{Elapsed: elapsed, Message: m}, nil
}

// ReadAll reads every remaining entry.
func (r *Reader) ReadAll() ([]Entry, error) {
	var entries []Entry
	for {
		e, err := r.Next()
		if errors.Is(err, io.EOF) {
			return entries, nil
		}
		if err != nil {
			return entries, err
		}
		entries = append(entries, e)
	}
}
