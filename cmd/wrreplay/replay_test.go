package main

import (
	"bytes"
	"errors"
	"image/png"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"golang.org/x/text/language"

	sb "github.com/gogpu/scenebridge"
	"github.com/gogpu/scenebridge/config"
	"github.com/gogpu/scenebridge/displaylist"
	"github.com/gogpu/scenebridge/render"
	"github.com/gogpu/scenebridge/window"
	"github.com/gogpu/scenebridge/wire"
)

// recordSession records frames frames of a red square on a 40x30 window
// and returns the recording path.
func recordSession(t *testing.T, frames int) string {
	t.Helper()
	dir := t.TempDir()
	reg := window.NewRegistry()
	size := sb.Size{Width: 40, Height: 30}
	w, err := reg.Create(nil, size, window.WithRecordDir(dir))
	if err != nil {
		t.Fatal(err)
	}
	pipeline := w.API.GeneratePipelineID(1)
	for i := range frames {
		b := displaylist.NewBuilder(w.Contexts.Producer, pipeline)
		b.Begin(size.Width, size.Height)
		r := sb.NewRect(float32(i), 0, 10, 10)
		b.PushRect(r, displaylist.SimpleClip(r), sb.Color{R: 1, A: 1})
		b.End()
		dl, err := b.Finalize()
		if err != nil {
			t.Fatal(err)
		}
		buf, desc := wire.Encode(dl)
		if err := w.API.SetDisplayList(w.Contexts.Producer, sb.Epoch(i+1), pipeline, size, buf.Take(), desc); err != nil {
			t.Fatal(err)
		}
		if err := w.API.SetRootPipeline(w.Contexts.Producer, pipeline); err != nil {
			t.Fatal(err)
		}
	}
	path := filepath.Join(dir, "wr-record-1.bin")
	if err := reg.Close(); err != nil {
		t.Fatal(err)
	}
	return path
}

func newJob(t *testing.T, recording string) *job {
	t.Helper()
	return &job{
		recording: recording,
		out:       filepath.Join(t.TempDir(), "frame.png"),
		device:    "software",
		cfg:       config.Default(),
		stdout:    &bytes.Buffer{},
		isTTY:     func() bool { return false },
	}
}

func TestReplayLastFrame(t *testing.T) {
	j := newJob(t, recordSession(t, 2))
	st, err := j.run(t.Context())
	if err != nil {
		t.Fatal(err)
	}
	if st.Frames != 2 || st.Entries != 6 {
		t.Errorf("frames = %d, entries = %d; want 2, 6", st.Frames, st.Entries)
	}
	f, err := os.Open(j.out)
	if err != nil {
		t.Fatal(err)
	}
	defer f.Close()
	img, err := png.Decode(f)
	if err != nil {
		t.Fatal(err)
	}
	if b := img.Bounds(); b.Dx() != 40 || b.Dy() != 30 {
		t.Errorf("PNG bounds = %v, want 40x30", b)
	}
	// The second frame draws the square at x=1.
	if r, _, _, a := img.At(1, 5).RGBA(); r != 0xffff || a != 0xffff {
		t.Errorf("pixel (1, 5) = %v, want red", img.At(1, 5))
	}
	if _, _, _, a := img.At(0, 5).RGBA(); a != 0 {
		t.Errorf("pixel (0, 5) = %v, want transparent", img.At(0, 5))
	}
}

func TestReplayEveryFrameScaled(t *testing.T) {
	j := newJob(t, recordSession(t, 3))
	j.cfg.Output.EveryFrame = true
	j.cfg.Output.Dir = t.TempDir()
	j.cfg.Output.Scale = 0.5
	st, err := j.run(t.Context())
	if err != nil {
		t.Fatal(err)
	}
	if len(st.Written) != 3 {
		t.Fatalf("wrote %d files, want 3", len(st.Written))
	}
	f, err := os.Open(filepath.Join(j.cfg.Output.Dir, "frame-0003.png"))
	if err != nil {
		t.Fatal(err)
	}
	defer f.Close()
	cfg, err := png.DecodeConfig(f)
	if err != nil {
		t.Fatal(err)
	}
	if cfg.Width != 20 || cfg.Height != 15 {
		t.Errorf("scaled PNG = %dx%d, want 20x15", cfg.Width, cfg.Height)
	}
}

func TestReplayToStdout(t *testing.T) {
	j := newJob(t, recordSession(t, 1))
	j.out = pipeName
	if _, err := j.run(t.Context()); err != nil {
		t.Fatal(err)
	}
	if _, err := png.Decode(j.stdout.(*bytes.Buffer)); err != nil {
		t.Errorf("stdout is not a PNG: %v", err)
	}

	j.isTTY = func() bool { return true }
	if _, err := j.run(t.Context()); !errors.Is(err, errTerminal) {
		t.Errorf("run() to a terminal error = %v, want errTerminal", err)
	}
}

func TestReplayErrors(t *testing.T) {
	j := newJob(t, filepath.Join(t.TempDir(), "missing.bin"))
	if _, err := j.run(t.Context()); !errors.Is(err, os.ErrNotExist) {
		t.Errorf("missing recording error = %v", err)
	}

	empty := filepath.Join(t.TempDir(), "empty.bin")
	if err := os.WriteFile(empty, nil, 0o600); err != nil {
		t.Fatal(err)
	}
	j = newJob(t, empty)
	if _, err := j.run(t.Context()); err == nil {
		t.Error("empty recording replayed")
	}

	j = newJob(t, recordSession(t, 0))
	if _, err := j.run(t.Context()); !errors.Is(err, render.ErrNoFrame) {
		t.Errorf("frameless recording error = %v, want ErrNoFrame", err)
	}

	j = newJob(t, recordSession(t, 1))
	j.device = "plotter"
	if _, err := j.run(t.Context()); err == nil {
		t.Error("unknown device accepted")
	}
}

func TestReport(t *testing.T) {
	j := newJob(t, recordSession(t, 1))
	st, err := j.run(t.Context())
	if err != nil {
		t.Fatal(err)
	}
	st.ListBytes = 12345
	var buf bytes.Buffer
	report(&buf, st, language.English)
	for _, want := range []string{"window 1", "12,345 display list bytes", "SetDisplayList", "1 frames rendered", "wrote "} {
		if !strings.Contains(buf.String(), want) {
			t.Errorf("report missing %q:\n%s", want, buf.String())
		}
	}
}
