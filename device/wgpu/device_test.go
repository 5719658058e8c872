package wgpu

import (
	"errors"
	"fmt"
	"slices"
	"testing"

	"github.com/gogpu/gpucontext"
	"github.com/gogpu/gputypes"

	sb "github.com/gogpu/scenebridge"
	"github.com/gogpu/scenebridge/render"
)

// tryOpen opens a device, turning a driver panic into an error.
func tryOpen(opts ...Option) (d *Device, err error) {
	defer func() {
		if r := recover(); r != nil {
			d, err = nil, fmt.Errorf("open panicked: %v", r)
		}
	}()
	return Open(opts...)
}

func openOrSkip(t *testing.T) *Device {
	t.Helper()
	if testing.Short() {
		t.Skip("skipping GPU test in short mode")
	}
	d, err := tryOpen()
	if err != nil {
		t.Skipf("GPU not available: %v", err)
	}
	t.Cleanup(func() { _ = d.Close() })
	return d
}

func TestRendererOnDevice(t *testing.T) {
	d := openOrSkip(t)
	ctxs := sb.NewContexts()
	r, _, err := render.New(ctxs.Render, d, sb.Size{Width: 64, Height: 64})
	if err != nil {
		t.Fatalf("render.New() error = %v", err)
	}
	defer func() { _ = r.Delete(ctxs.Render) }()
	if d.Shaders() == 0 {
		t.Error("no shader modules loaded")
	}
	if name := d.AdapterInfo().Name; name == "" {
		t.Error("AdapterInfo().Name is empty")
	}
}

func TestLoadShader(t *testing.T) {
	d := openOrSkip(t)
	if err := d.LoadShader("empty", nil); err == nil {
		t.Error("LoadShader(nil) succeeded")
	}
	spirv := []uint32{0x07230203, 0x00010000, 0, 1, 0}
	for range 2 {
		if err := d.LoadShader("same", spirv); err != nil {
			t.Fatalf("LoadShader() error = %v", err)
		}
	}
	if d.Shaders() != 1 {
		t.Errorf("Shaders() = %d, want 1 after reloading one label", d.Shaders())
	}
}

func TestClosed(t *testing.T) {
	if testing.Short() {
		t.Skip("skipping GPU test in short mode")
	}
	d, err := tryOpen()
	if err != nil {
		t.Skipf("GPU not available: %v", err)
	}
	if err := d.Close(); err != nil {
		t.Fatal(err)
	}
	if err := d.Close(); err != nil {
		t.Errorf("second Close() error = %v", err)
	}
	desc := render.TextureDescriptor{Width: 4, Height: 4, Format: gputypes.TextureFormatBGRA8Unorm}
	if err := d.AllocateTarget(desc); !errors.Is(err, ErrClosed) {
		t.Errorf("AllocateTarget() after Close error = %v, want ErrClosed", err)
	}
}

func TestNoBackends(t *testing.T) {
	if _, err := Open(WithBackends()); !errors.Is(err, ErrNoAdapter) {
		t.Errorf("Open() with no backends error = %v, want ErrNoAdapter", err)
	}
}

func TestTextureUsage(t *testing.T) {
	tests := []struct {
		in   render.TextureUsage
		want gputypes.TextureUsage
	}{
		{0, 0},
		{render.TextureUsageCopySrc, gputypes.TextureUsageCopySrc},
		{
			render.TextureUsageRenderAttachment | render.TextureUsageTextureBinding | render.TextureUsageCopyDst,
			gputypes.TextureUsageRenderAttachment | gputypes.TextureUsageTextureBinding | gputypes.TextureUsageCopyDst,
		},
	}
	for _, tt := range tests {
		if got := textureUsage(tt.in); got != tt.want {
			t.Errorf("textureUsage(%b) = %v, want %v", tt.in, got, tt.want)
		}
	}
}

func TestAdapterType(t *testing.T) {
	tests := []struct {
		in   gputypes.DeviceType
		want gpucontext.AdapterType
	}{
		{gputypes.DeviceTypeDiscreteGPU, gpucontext.AdapterTypeDiscrete},
		{gputypes.DeviceTypeIntegratedGPU, gpucontext.AdapterTypeIntegrated},
		{gputypes.DeviceTypeCPU, gpucontext.AdapterTypeSoftware},
		{gputypes.DeviceTypeOther, gpucontext.AdapterTypeUnknown},
	}
	for _, tt := range tests {
		if got := adapterType(tt.in); got != tt.want {
			t.Errorf("adapterType(%v) = %v, want %v", tt.in, got, tt.want)
		}
	}
}

func TestDefaultBackendsSkipGL(t *testing.T) {
	if slices.Contains(defaultBackends, gputypes.BackendGL) {
		t.Error("default backends include GL")
	}
	if last := defaultBackends[len(defaultBackends)-1]; last != gputypes.BackendEmpty {
		t.Errorf("last default backend = %v, want the software backend", last)
	}
}
