// Package record captures the messages sent to a renderer so a session can
// be replayed later, by tests or by the wrreplay tool.
//
// A recording is a little-endian binary file. It starts with a header naming
// the window and its initial size, followed by one entry per message: the
// message type, the time since recording started and the encoded payload.
// Display lists are stored in their wire encoding, so replaying a recording
// exercises the same decode path as a live producer.
//
// Example:
//
//	rec, err := record.Create(dir, windowID, size)
//	if err != nil {
//	    return err
//	}
//	defer rec.Close()
//	r, sender, err := render.New(ctxs.Render, handle, size, render.WithObserver(rec))
package record

import (
	"errors"
	"fmt"

	sb "github.com/gogpu/scenebridge"
)

// Magic identifies a recording file ("SBRC").
const Magic uint32 = 0x43524253

// Version is the current recording format version.
const Version uint32 = 1

const (
	headerSize = 24 // magic, version, window u64, width, height
	entrySize  = 16 // type u32, payload length u32, elapsed i64
)

// maxPayload bounds a single entry when reading untrusted files.
const maxPayload = 1 << 30

// Errors returned while writing or reading recordings.
var (
	// ErrNotRecording is returned when a file does not start with Magic.
	ErrNotRecording = errors.New("record: not a recording")

	// ErrUnsupportedVersion is returned for recordings of another format
	// version.
	ErrUnsupportedVersion = errors.New("record: unsupported version")

	// ErrCorrupt is returned when an entry is truncated or malformed.
	ErrCorrupt = errors.New("record: corrupt entry")

	// ErrUnknownMessage is returned for message types the format does not
	// cover.
	ErrUnknownMessage = errors.New("record: unknown message")
)

// FileName returns the name of the recording file of window.
func FileName(window sb.WindowID) string {
	return fmt.Sprintf("wr-record-%d.bin", uint64(window))
}
