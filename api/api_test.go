package api

import (
	"errors"
	"testing"

	sb "github.com/gogpu/scenebridge"
	"github.com/gogpu/scenebridge/displaylist"
	"github.com/gogpu/scenebridge/notify"
	"github.com/gogpu/scenebridge/resource"
	"github.com/gogpu/scenebridge/wire"
)

func newTestChannel(t *testing.T) (sb.Contexts, *Sender, *Receiver) {
	t.Helper()
	ctxs := sb.NewContexts()
	s, r := NewChannel(ctxs.Render.ID())
	return ctxs, s, r
}

func encodeEmpty(t *testing.T, pc sb.ProducerContext, pipeline sb.PipelineID) ([]byte, wire.Descriptor) {
	t.Helper()
	b := displaylist.NewBuilder(pc, pipeline)
	b.Begin(100, 100)
	b.End()
	dl, err := b.Finalize()
	if err != nil {
		t.Fatal(err)
	}
	buf, desc := wire.Encode(dl)
	return buf.Take(), desc
}

func TestCreateAPINamespaces(t *testing.T) {
	_, s, _ := newTestChannel(t)
	a, b := s.CreateAPI(), s.CreateAPI()
	if a.IdNamespace() == b.IdNamespace() {
		t.Fatalf("namespaces collide: %d", a.IdNamespace())
	}
	if a.IdNamespace() != 1 {
		t.Errorf("first namespace = %d, want 1", a.IdNamespace())
	}
	k1, k2 := a.GenerateImageKey(), a.GenerateImageKey()
	if k1 == k2 || k1.Namespace != a.IdNamespace() {
		t.Errorf("keys = %v, %v", k1, k2)
	}
	if f := b.GenerateFontKey(); f.Namespace != b.IdNamespace() || f.ID != 1 {
		t.Errorf("font key = %v", f)
	}
}

func TestSetDisplayListEpochs(t *testing.T) {
	ctxs, s, r := newTestChannel(t)
	a := s.CreateAPI()
	p := a.GeneratePipelineID(1)
	other := a.GeneratePipelineID(2)
	data, desc := encodeEmpty(t, ctxs.Producer, p)
	otherData, otherDesc := encodeEmpty(t, ctxs.Producer, other)

	tests := []struct {
		name  string
		epoch sb.Epoch
		pipe  sb.PipelineID
		want  error
	}{
		{"first", 1, p, nil},
		{"same epoch", 1, p, ErrStaleEpoch},
		{"older", 0, p, ErrStaleEpoch},
		{"gap", 5, p, nil},
		{"other pipeline", 1, other, nil},
		{"after gap", 5, p, ErrStaleEpoch},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			d, de := data, desc
			if tt.pipe == other {
				d, de = otherData, otherDesc
			}
			err := a.SetDisplayList(ctxs.Producer, tt.epoch, tt.pipe, sb.Size{Width: 100, Height: 100}, d, de)
			if !errors.Is(err, tt.want) {
				t.Errorf("SetDisplayList() error = %v, want %v", err, tt.want)
			}
		})
	}
	if r.Len() != 3 {
		t.Errorf("queued = %d, want 3", r.Len())
	}

	if err := a.ClearDisplayList(ctxs.Producer, 5, p); !errors.Is(err, ErrStaleEpoch) {
		t.Errorf("ClearDisplayList() error = %v, want ErrStaleEpoch", err)
	}
	if err := a.SetDisplayList(ctxs.Producer, 9, other, sb.Size{}, data, desc); !errors.Is(err, wire.ErrMalformed) {
		t.Errorf("mismatched descriptor error = %v, want ErrMalformed", err)
	}
}

func TestDrainOrder(t *testing.T) {
	ctxs, s, r := newTestChannel(t)
	a := s.CreateAPI()
	key := a.GenerateImageKey()
	desc := resource.ImageDescriptor{Format: resource.FormatBGRA8, Width: 4, Height: 4}
	pipeline := a.GeneratePipelineID(1)

	if err := a.AddImage(ctxs.Producer, key, desc, make([]byte, 64)); err != nil {
		t.Fatal(err)
	}
	if err := a.DeleteImage(ctxs.Producer, key); err != nil {
		t.Fatal(err)
	}
	if err := a.SetRootPipeline(ctxs.Producer, pipeline); err != nil {
		t.Fatal(err)
	}
	if err := s.SendExternalEvent(ctxs.Coordination, notify.ExternalEvent{Raw: 3}); err != nil {
		t.Fatal(err)
	}

	want := []MessageType{MsgAddImage, MsgDeleteImage, MsgSetRootPipeline, MsgGenerateFrame, MsgExternalEvent}
	got := r.Drain()
	if len(got) != len(want) {
		t.Fatalf("Drain() returned %d messages, want %d", len(got), len(want))
	}
	for i, m := range got {
		if m.Type() != want[i] {
			t.Errorf("message %d = %s, want %s", i, m.Type(), want[i])
		}
	}
	if r.Len() != 0 {
		t.Error("Drain() left messages queued")
	}
}

func TestValidation(t *testing.T) {
	ctxs, s, r := newTestChannel(t)
	a := s.CreateAPI()
	key := a.GenerateImageKey()
	bad := resource.ImageDescriptor{Format: resource.FormatBGRA8}

	if err := a.AddImage(ctxs.Producer, key, bad, nil); !errors.Is(err, resource.ErrInvalidDescriptor) {
		t.Errorf("AddImage() error = %v", err)
	}
	if err := a.AddBlobImage(ctxs.Producer, key, bad, nil); !errors.Is(err, resource.ErrInvalidDescriptor) {
		t.Errorf("AddBlobImage() error = %v", err)
	}
	if err := a.AddRawFont(ctxs.Producer, a.GenerateFontKey(), nil, 0); !errors.Is(err, resource.ErrEmptyFontData) {
		t.Errorf("AddRawFont() error = %v", err)
	}
	if r.Len() != 0 {
		t.Errorf("rejected calls queued %d messages", r.Len())
	}
}

func TestUpdateBlobCopiesDirty(t *testing.T) {
	ctxs, s, r := newTestChannel(t)
	a := s.CreateAPI()
	desc := resource.ImageDescriptor{Format: resource.FormatBGRA8, Width: 8, Height: 8}
	dirty := sb.NewRect(0, 0, 2, 2)
	if err := a.UpdateBlobImage(ctxs.Producer, a.GenerateImageKey(), desc, []byte{1, 0, 0, 0}, &dirty); err != nil {
		t.Fatal(err)
	}
	dirty.Size.Width = 8
	m := r.Drain()[0].(UpdateImage)
	if m.Dirty == nil || m.Dirty.Size.Width != 2 {
		t.Errorf("Dirty = %v, want copy taken at call time", m.Dirty)
	}
	if m.Data.Kind != resource.KindBlob {
		t.Errorf("Kind = %s, want blob", m.Data.Kind)
	}
}

func TestWrongContextPanics(t *testing.T) {
	_, s, _ := newTestChannel(t)
	foreign := sb.NewContexts()
	a := s.CreateAPI()

	tests := []struct {
		name string
		fn   func()
	}{
		{"foreign producer", func() { _ = a.GenerateFrame(foreign.Producer) }},
		{"zero producer", func() { _ = a.DeleteFont(sb.ProducerContext{}, sb.FontKey{}) }},
		{"foreign coordination", func() { _ = s.SendExternalEvent(foreign.Coordination, notify.ExternalEvent{}) }},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			defer func() {
				r := recover()
				err, ok := r.(error)
				if !ok || !errors.Is(err, sb.ErrWrongContext) {
					t.Errorf("panic = %v, want ErrWrongContext", r)
				}
			}()
			tt.fn()
		})
	}
}

func TestObserverAndClose(t *testing.T) {
	ctxs := sb.NewContexts()
	var seen []MessageType
	s, r := NewChannel(ctxs.Render.ID(), WithObserver(ObserverFunc(func(m Message) { seen = append(seen, m.Type()) })))
	a := s.CreateAPI()

	if err := a.SetWindowSize(ctxs.Producer, sb.Size{Width: 10, Height: 10}); err != nil {
		t.Fatal(err)
	}
	r.Close()
	if err := a.GenerateFrame(ctxs.Producer); !errors.Is(err, ErrClosed) {
		t.Errorf("GenerateFrame() after Close error = %v, want ErrClosed", err)
	}
	if len(seen) != 1 || seen[0] != MsgSetWindow {
		t.Errorf("observed = %v, want [SetWindow]", seen)
	}
}

func TestSendVerbatim(t *testing.T) {
	ctxs, s, r := newTestChannel(t)
	p := sb.PipelineID{Namespace: 9, ID: 1}
	msgs := []Message{
		ClearDisplayList{Epoch: 5, Pipeline: p},
		ClearDisplayList{Epoch: 3, Pipeline: p},
		GenerateFrame{},
	}
	if err := s.Send(ctxs.Producer, msgs...); err != nil {
		t.Fatal(err)
	}
	got := r.Drain()
	if len(got) != len(msgs) {
		t.Fatalf("Drain() returned %d messages, want %d", len(got), len(msgs))
	}
	for i := range msgs {
		if got[i] != msgs[i] {
			t.Errorf("message %d = %#v, want %#v", i, got[i], msgs[i])
		}
	}
}

func TestMessageTypeString(t *testing.T) {
	tests := []struct {
		t    MessageType
		want string
	}{
		{MsgAddImage, "AddImage"},
		{MsgScroll, "Scroll"},
		{MsgExternalEvent, "ExternalEvent"},
		{MessageType(200), "Unknown"},
	}
	for _, tt := range tests {
		if got := tt.t.String(); got != tt.want {
			t.Errorf("String() = %q, want %q", got, tt.want)
		}
	}
}
