package window

import (
	"errors"
	"os"
	"path/filepath"
	"slices"
	"sync"
	"testing"

	sb "github.com/gogpu/scenebridge"
	"github.com/gogpu/scenebridge/record"
	"github.com/gogpu/scenebridge/render"
)

var size = sb.Size{Width: 32, Height: 32}

func TestCreateGetDestroy(t *testing.T) {
	reg := NewRegistry()
	a, err := reg.Create(render.NullDeviceHandle{}, size)
	if err != nil {
		t.Fatal(err)
	}
	b, err := reg.Create(nil, size)
	if err != nil {
		t.Fatal(err)
	}
	if a.ID != 1 || b.ID != 2 {
		t.Errorf("ids = %d, %d; want 1, 2", a.ID, b.ID)
	}
	if a.Contexts.Render.ID() == b.Contexts.Render.ID() {
		t.Error("windows share a context set")
	}
	if a.API.IdNamespace() != 1 {
		t.Errorf("IdNamespace() = %d, want 1", a.API.IdNamespace())
	}
	if got, ok := reg.Get(a.ID); !ok || got != a {
		t.Errorf("Get(%d) = %p, %v", a.ID, got, ok)
	}
	if ids := reg.IDs(); !slices.Equal(ids, []sb.WindowID{1, 2}) {
		t.Errorf("IDs() = %v", ids)
	}

	if err := reg.Destroy(a.ID); err != nil {
		t.Fatalf("Destroy() error = %v", err)
	}
	if _, ok := reg.Get(a.ID); ok {
		t.Error("Get() found a destroyed window")
	}
	if err := reg.Destroy(a.ID); !errors.Is(err, ErrUnknownWindow) {
		t.Errorf("second Destroy() error = %v, want ErrUnknownWindow", err)
	}
	if err := a.Renderer.Update(a.Contexts.Render); !errors.Is(err, render.ErrDestroyed) {
		t.Errorf("Update() on destroyed window error = %v, want ErrDestroyed", err)
	}
	if reg.Len() != 1 {
		t.Errorf("Len() = %d, want 1", reg.Len())
	}
	if err := reg.Close(); err != nil {
		t.Fatal(err)
	}
	if reg.Len() != 0 {
		t.Errorf("Len() after Close = %d, want 0", reg.Len())
	}
}

func TestCreateFailure(t *testing.T) {
	reg := NewRegistry()
	_, err := reg.Create(nil, size, WithRenderOptions(render.WithCompositor("no-such-compositor")))
	var die *render.DeviceInitError
	if !errors.As(err, &die) {
		t.Fatalf("Create() error = %v, want *render.DeviceInitError", err)
	}
	if reg.Len() != 0 {
		t.Errorf("failed Create registered a window")
	}
}

func TestRecordDir(t *testing.T) {
	dir := t.TempDir()
	reg := NewRegistry()
	w, err := reg.Create(nil, size, WithRecordDir(dir))
	if err != nil {
		t.Fatal(err)
	}
	if w.Recorder() == nil {
		t.Fatal("Recorder() = nil")
	}
	pipeline := w.API.GeneratePipelineID(1)
	if err := w.API.SetRootPipeline(w.Contexts.Producer, pipeline); err != nil {
		t.Fatal(err)
	}
	if err := reg.Destroy(w.ID); err != nil {
		t.Fatal(err)
	}

	f, err := os.Open(filepath.Join(dir, record.FileName(w.ID)))
	if err != nil {
		t.Fatal(err)
	}
	defer f.Close()
	rd, err := record.NewReader(f)
	if err != nil {
		t.Fatal(err)
	}
	if rd.Window() != w.ID || rd.Size() != size {
		t.Errorf("header = %d %v", rd.Window(), rd.Size())
	}
	entries, err := rd.ReadAll()
	if err != nil {
		t.Fatal(err)
	}
	if len(entries) != 2 {
		t.Errorf("recorded %d entries, want 2", len(entries))
	}
}

func TestRecordDirMissing(t *testing.T) {
	reg := NewRegistry()
	missing := filepath.Join(t.TempDir(), "missing")
	if _, err := reg.Create(nil, size, WithRecordDir(missing)); err == nil {
		t.Error("Create() with a missing record dir succeeded")
	}
}

func TestConcurrentCreate(t *testing.T) {
	reg := NewRegistry()
	const n = 16
	var wg sync.WaitGroup
	for range n {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if _, err := reg.Create(nil, size); err != nil {
				t.Error(err)
			}
		}()
	}
	wg.Wait()
	ids := reg.IDs()
	if len(ids) != n || ids[0] != 1 || ids[n-1] != n {
		t.Errorf("IDs() = %v", ids)
	}
	if err := reg.Close(); err != nil {
		t.Fatal(err)
	}
}
