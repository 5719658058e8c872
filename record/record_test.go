package record

import (
	"bytes"
	"errors"
	"io"
	"os"
	"path/filepath"
	"reflect"
	"testing"
	"time"

	sb "github.com/gogpu/scenebridge"
	"github.com/gogpu/scenebridge/api"
	"github.com/gogpu/scenebridge/displaylist"
	"github.com/gogpu/scenebridge/notify"
	"github.com/gogpu/scenebridge/render"
	"github.com/gogpu/scenebridge/resource"
	"github.com/gogpu/scenebridge/wire"
)

var (
	testWindow = sb.WindowID(3)
	testSize   = sb.Size{Width: 64, Height: 48}
	pipeline   = sb.PipelineID{Namespace: 1, ID: 1}
)

func encodedList(t *testing.T, pc sb.ProducerContext, color sb.Color) ([]byte, wire.Descriptor) {
	t.Helper()
	b := displaylist.NewBuilder(pc, pipeline)
	b.Begin(testSize.Width, testSize.Height)
	r := sb.NewRect(8, 8, 16, 16)
	b.PushRect(r, displaylist.SimpleClip(r), color)
	b.End()
	dl, err := b.Finalize()
	if err != nil {
		t.Fatal(err)
	}
	buf, desc := wire.Encode(dl)
	return buf.Take(), desc
}

// allMessages returns one message of every type.
func allMessages(t *testing.T) []api.Message {
	t.Helper()
	ctxs := sb.NewContexts()
	data, desc := encodedList(t, ctxs.Producer, sb.Color{R: 1, A: 1})
	key := sb.ImageKey{Namespace: 1, ID: 2}
	font := sb.FontKey{Namespace: 1, ID: 4}
	dirty := sb.NewRect(1, 2, 3, 4)
	imgDesc := resource.ImageDescriptor{Format: resource.FormatBGRA8, Width: 2, Height: 1, Stride: 8, IsOpaque: true}
	return []api.Message{
		api.AddImage{Key: key, Desc: imgDesc, Data: resource.Raw([]byte{1, 2, 3, 4, 5, 6, 7, 8})},
		api.AddImage{Key: sb.ImageKey{Namespace: 1, ID: 9}, Desc: imgDesc, Data: resource.External(77, resource.ExternalBuffer)},
		api.UpdateImage{Key: key, Desc: imgDesc, Data: resource.Blob([]byte{9, 9}), Dirty: &dirty},
		api.UpdateImage{Key: key, Desc: imgDesc, Data: resource.Raw([]byte{0, 0, 0, 0, 1, 1, 1, 1})},
		api.DeleteImage{Key: key},
		api.AddFont{Key: font, Data: []byte("not a font"), Index: 2},
		api.DeleteFont{Key: font},
		api.SetDisplayList{
			Epoch:              4,
			Pipeline:           pipeline,
			Viewport:           testSize,
			Background:         sb.Color{G: 0.5, A: 1},
			PreserveFrameState: true,
			Data:               data,
			Descriptor:         desc,
		},
		api.ClearDisplayList{Epoch: 5, Pipeline: pipeline},
		api.SetRootPipeline{Pipeline: pipeline},
		api.SetWindow{Size: testSize, Inner: sb.NewRect(4, 4, 32, 32)},
		api.Scroll{Pipeline: pipeline, ScrollID: 2, Offset: sb.Point{X: 1.5, Y: -20}},
		api.GenerateFrame{},
		api.ExternalEvent{Event: notify.ExternalEvent{Raw: 1 << 40}},
	}
}

func TestRoundTrip(t *testing.T) {
	msgs := allMessages(t)
	var buf bytes.Buffer
	rec, err := NewRecorder(&buf, testWindow, testSize)
	if err != nil {
		t.Fatal(err)
	}
	start := time.Unix(100, 0)
	tick := 0
	rec.start = start
	rec.now = func() time.Time {
		tick++
		return start.Add(time.Duration(tick) * time.Millisecond)
	}
	for _, m := range msgs {
		rec.Observe(m)
	}
	if err := rec.Flush(); err != nil {
		t.Fatal(err)
	}
	if rec.Len() != len(msgs) {
		t.Errorf("Len() = %d, want %d", rec.Len(), len(msgs))
	}

	r, err := NewReader(&buf)
	if err != nil {
		t.Fatal(err)
	}
	if r.Window() != testWindow || r.Size() != testSize {
		t.Errorf("header = %v %v, want %v %v", r.Window(), r.Size(), testWindow, testSize)
	}
	entries, err := r.ReadAll()
	if err != nil {
		t.Fatal(err)
	}
	if len(entries) != len(msgs) {
		t.Fatalf("ReadAll() returned %d entries, want %d", len(entries), len(msgs))
	}
	for i, e := range entries {
		if !reflect.DeepEqual(e.Message, msgs[i]) {
			t.Errorf("entry %d = %#v, want %#v", i, e.Message, msgs[i])
		}
		if want := time.Duration(i+1) * time.Millisecond; e.Elapsed != want {
			t.Errorf("entry %d elapsed = %v, want %v", i, e.Elapsed, want)
		}
	}
	if _, err := r.Next(); !errors.Is(err, io.EOF) {
		t.Errorf("Next() after last entry error = %v, want io.EOF", err)
	}
}

func TestDecodedDisplayListRenders(t *testing.T) {
	ctxs := sb.NewContexts()
	data, desc := encodedList(t, ctxs.Producer, sb.Color{B: 1, A: 1})
	payload, err := encodeMessage(nil, api.SetDisplayList{Epoch: 1, Pipeline: pipeline, Viewport: testSize, Data: data, Descriptor: desc})
	if err != nil {
		t.Fatal(err)
	}
	m, err := decodeMessage(api.MsgSetDisplayList, payload)
	if err != nil {
		t.Fatal(err)
	}
	sdl := m.(api.SetDisplayList)
	dl, err := wire.Decode(sdl.Data, sdl.Descriptor)
	if err != nil {
		t.Fatalf("wire.Decode() error = %v", err)
	}
	if dl.Pipeline() != pipeline {
		t.Errorf("Pipeline() = %v, want %v", dl.Pipeline(), pipeline)
	}
}

func TestReaderErrors(t *testing.T) {
	var good bytes.Buffer
	rec, err := NewRecorder(&good, testWindow, testSize)
	if err != nil {
		t.Fatal(err)
	}
	rec.Observe(api.Scroll{Pipeline: pipeline, ScrollID: 1, Offset: sb.Point{Y: 10}})
	if err := rec.Flush(); err != nil {
		t.Fatal(err)
	}
	full := good.Bytes()

	badVersion := bytes.Clone(full)
	badVersion[4] = 9
	unknown := bytes.Clone(full)
	unknown[headerSize] = 200
	// A scroll payload one field short, with the length patched to match.
	short := bytes.Clone(full[:len(full)-4])
	short[headerSize+4] -= 4

	tests := []struct {
		name      string
		data      []byte
		headerErr error
		entryErr  error
	}{
		{"empty", nil, ErrNotRecording, nil},
		{"bad magic", append([]byte("NOPE"), full[4:]...), ErrNotRecording, nil},
		{"bad version", badVersion, ErrUnsupportedVersion, nil},
		{"header only", full[:headerSize], nil, io.EOF},
		{"cut in entry header", full[:headerSize+6], nil, ErrCorrupt},
		{"cut in payload", full[:len(full)-3], nil, ErrCorrupt},
		{"unknown type", unknown, nil, ErrUnknownMessage},
		{"short payload", short, nil, ErrCorrupt},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			r, err := NewReader(bytes.NewReader(tt.data))
			if !errors.Is(err, tt.headerErr) {
				t.Fatalf("NewReader() error = %v, want %v", err, tt.headerErr)
			}
			if err != nil {
				return
			}
			if _, err := r.Next(); !errors.Is(err, tt.entryErr) {
				t.Errorf("Next() error = %v, want %v", err, tt.entryErr)
			}
		})
	}
}

func TestDecodeTrailingBytes(t *testing.T) {
	payload, err := encodeMessage(nil, api.DeleteFont{Key: sb.FontKey{Namespace: 1, ID: 1}})
	if err != nil {
		t.Fatal(err)
	}
	payload = append(payload, 0)
	if _, err := decodeMessage(api.MsgDeleteFont, payload); !errors.Is(err, ErrCorrupt) {
		t.Errorf("decodeMessage() error = %v, want ErrCorrupt", err)
	}
}

type failingWriter struct{ n int }

func (w *failingWriter) Write(p []byte) (int, error) {
	if w.n <= 0 {
		return 0, errors.New("disk full")
	}
	w.n--
	return len(p), nil
}

func TestRecorderStopsOnError(t *testing.T) {
	rec, err := NewRecorder(&failingWriter{}, testWindow, testSize)
	if err != nil {
		t.Fatal(err) // header is buffered
	}
	big := make([]byte, 8192)
	rec.Observe(api.AddFont{Key: sb.FontKey{Namespace: 1, ID: 1}, Data: big})
	rec.Observe(api.GenerateFrame{})
	if rec.Err() == nil {
		t.Fatal("Err() = nil after failed write")
	}
	if rec.Len() != 0 {
		t.Errorf("Len() = %d, want 0", rec.Len())
	}
	if err := rec.Close(); err == nil {
		t.Error("Close() = nil, want the write error")
	}
}

func TestCreate(t *testing.T) {
	dir := t.TempDir()
	rec, err := Create(dir, testWindow, testSize)
	if err != nil {
		t.Fatal(err)
	}
	rec.Observe(api.GenerateFrame{})
	if err := rec.Close(); err != nil {
		t.Fatal(err)
	}
	rec.Observe(api.GenerateFrame{})
	if rec.Len() != 1 {
		t.Errorf("Len() after Close = %d, want 1", rec.Len())
	}

	f, err := os.Open(filepath.Join(dir, "wr-record-3.bin"))
	if err != nil {
		t.Fatal(err)
	}
	defer f.Close()
	r, err := NewReader(f)
	if err != nil {
		t.Fatal(err)
	}
	entries, err := r.ReadAll()
	if err != nil || len(entries) != 1 {
		t.Errorf("ReadAll() = %d entries, %v; want 1, nil", len(entries), err)
	}
}

// session renders two frames while recording and returns the recording
// and the final pixels.
func session(t *testing.T) ([]byte, []byte) {
	t.Helper()
	var buf bytes.Buffer
	rec, err := NewRecorder(&buf, testWindow, testSize)
	if err != nil {
		t.Fatal(err)
	}
	ctxs := sb.NewContexts()
	r, s, err := render.New(ctxs.Render, render.NullDeviceHandle{}, testSize, render.WithObserver(rec))
	if err != nil {
		t.Fatal(err)
	}
	a := s.CreateAPI()
	for epoch, c := range []sb.Color{{R: 1, A: 1}, {G: 1, A: 1}} {
		data, desc := encodedList(t, ctxs.Producer, c)
		if err := a.SetDisplayList(ctxs.Producer, sb.Epoch(epoch+1), pipeline, testSize, data, desc); err != nil {
			t.Fatal(err)
		}
		if err := a.SetRootPipeline(ctxs.Producer, pipeline); err != nil {
			t.Fatal(err)
		}
		if err := r.Update(ctxs.Render); err != nil {
			t.Fatal(err)
		}
		if err := r.Render(ctxs.Render, testSize); err != nil {
			t.Fatal(err)
		}
	}
	if err := rec.Flush(); err != nil {
		t.Fatal(err)
	}
	return buf.Bytes(), readback(t, ctxs, r)
}

func readback(t *testing.T, ctxs sb.Contexts, r *render.Renderer) []byte {
	t.Helper()
	px := make([]byte, int(testSize.Width)*int(testSize.Height)*4)
	if err := r.Readback(ctxs.Render, testSize, px); err != nil {
		t.Fatal(err)
	}
	return px
}

func TestPlayerReproducesSession(t *testing.T) {
	recording, want := session(t)

	rd, err := NewReader(bytes.NewReader(recording))
	if err != nil {
		t.Fatal(err)
	}
	entries, err := rd.ReadAll()
	if err != nil {
		t.Fatal(err)
	}
	ctxs := sb.NewContexts()
	r, s, err := render.New(ctxs.Render, render.NullDeviceHandle{}, rd.Size())
	if err != nil {
		t.Fatal(err)
	}
	p := NewPlayer(ctxs, r, s, rd.Size(), entries)

	steps := 0
	for {
		more, err := p.Step()
		if err != nil {
			t.Fatal(err)
		}
		if !more {
			break
		}
		steps++
	}
	if steps != 2 || p.Frames() != 2 {
		t.Errorf("steps = %d, frames = %d; want 2, 2", steps, p.Frames())
	}
	if p.Remaining() != 0 {
		t.Errorf("Remaining() = %d, want 0", p.Remaining())
	}
	if got := readback(t, ctxs, r); !bytes.Equal(got, want) {
		t.Error("replayed frame differs from the recorded session")
	}
	if e, ok := r.CurrentEpoch(ctxs.Render, pipeline); !ok || e != 2 {
		t.Errorf("CurrentEpoch() = %d, %v; want 2, true", e, ok)
	}
}

func TestPlayerTracksWindowSize(t *testing.T) {
	ctxs := sb.NewContexts()
	r, s, err := render.New(ctxs.Render, render.NullDeviceHandle{}, testSize)
	if err != nil {
		t.Fatal(err)
	}
	resized := sb.Size{Width: 32, Height: 32}
	entries := []Entry{
		{Message: api.SetWindow{Size: resized, Inner: sb.Rect{Size: resized}}},
		{Message: api.GenerateFrame{}},
	}
	p := NewPlayer(ctxs, r, s, testSize, entries)
	if err := p.Run(t.Context()); err != nil {
		t.Fatal(err)
	}
	if p.Size() != resized {
		t.Errorf("Size() = %v, want %v", p.Size(), resized)
	}
	// No root pipeline was set, so there is nothing to render.
	if p.Frames() != 0 {
		t.Errorf("Frames() = %d, want 0", p.Frames())
	}
}
