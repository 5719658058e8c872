// Package wgpu provides a headless render.DeviceHandle on the pure Go
// gogpu/wgpu HAL.
//
// Open picks the first registered HAL backend that exposes an adapter,
// preferring hardware backends over the software one. The handle loads the
// compositor shader modules and backs the renderer framebuffer with a
// texture, so device failures surface from render.New as a
// *render.DeviceInitError.
//
// Example:
//
//	dev, err := wgpu.Open()
//	if err != nil {
//	    return err
//	}
//	defer dev.Close()
//	r, sender, err := render.New(ctxs.Render, dev, size)
package wgpu

import (
	"errors"
	"fmt"
	"sync"

	"github.com/gogpu/gpucontext"
	"github.com/gogpu/gputypes"
	"github.com/gogpu/wgpu/hal"

	// Register every HAL backend available on this platform.
	_ "github.com/gogpu/wgpu/hal/allbackends"

	sb "github.com/gogpu/scenebridge"
	"github.com/gogpu/scenebridge/render"
)

// Errors returned by the device.
var (
	ErrNoAdapter = errors.New("wgpu: no GPU adapter available")
	ErrClosed    = errors.New("wgpu: device closed")
)

// defaultBackends is the order Open tries backends in. BackendEmpty is the
// software rasterizer. GL needs a current context, which a headless process
// does not have, so it is only tried when named with WithBackends.
var defaultBackends = []gputypes.Backend{
	gputypes.BackendVulkan,
	gputypes.BackendMetal,
	gputypes.BackendDX12,
	gputypes.BackendEmpty,
}

// Option configures Open.
type Option func(*options)

type options struct {
	backends []gputypes.Backend
}

// WithBackends restricts Open to backends, tried in order.
func WithBackends(backends ...gputypes.Backend) Option {
	return func(o *options) {
		o.backends = backends
	}
}

// Device is a headless HAL device. It implements render.DeviceHandle,
// render.ShaderLoader and render.TargetAllocator, and is safe for
// concurrent use.
type Device struct {
	mu       sync.Mutex
	backend  gputypes.Backend
	instance hal.Instance
	adapter  hal.Adapter
	info     gputypes.AdapterInfo
	device   hal.Device
	queue    hal.Queue
	modules  map[string]hal.ShaderModule
	target   hal.Texture
	closed   bool
}

var (
	_ render.DeviceHandle    = (*Device)(nil)
	_ render.ShaderLoader    = (*Device)(nil)
	_ render.TargetAllocator = (*Device)(nil)
)

// Open opens a device on the first backend with an adapter.
func Open(opts ...Option) (*Device, error) {
	o := options{backends: defaultBackends}
	for _, opt := range opts {
		opt(&o)
	}
	var errs []error
	for _, variant := range o.backends {
		backend, ok := hal.GetBackend(variant)
		if !ok {
			continue
		}
		d, err := open(backend)
		if err != nil {
			errs = append(errs, fmt.Errorf("%v: %w", variant, err))
			continue
		}
		sb.Logger().Info("wgpu: device opened", "backend", variant, "adapter", d.info.Name, "type", d.info.DeviceType)
		return d, nil
	}
	return nil, errors.Join(append([]error{ErrNoAdapter}, errs...)...)
}

func open(backend hal.Backend) (*Device, error) {
	instance, err := backend.CreateInstance(&hal.InstanceDescriptor{})
	if err != nil {
		return nil, fmt.Errorf("create instance: %w", err)
	}
	adapters := instance.EnumerateAdapters(nil)
	if len(adapters) == 0 {
		instance.Destroy()
		return nil, ErrNoAdapter
	}
	selected := &adapters[0]
	for i := range adapters {
		if t := adapters[i].Info.DeviceType; t == gputypes.DeviceTypeDiscreteGPU || t == gputypes.DeviceTypeIntegratedGPU {
			selected = &adapters[i]
			break
		}
	}
	od, err := selected.Adapter.Open(gputypes.Features(0), gputypes.DefaultLimits())
	if err != nil {
		instance.Destroy()
		return nil, fmt.Errorf("open device: %w", err)
	}
	return &Device{
		backend:  backend.Variant(),
		instance: instance,
		adapter:  selected.Adapter,
		info:     selected.Info,
		device:   od.Device,
		queue:    od.Queue,
		modules:  make(map[string]hal.ShaderModule),
	}, nil
}

// Device returns the hal.Device.
func (d *Device) Device() gpucontext.Device { return d.device }

// Queue returns the hal.Queue.
func (d *Device) Queue() gpucontext.Queue { return d.queue }

// Adapter returns the hal.Adapter.
func (d *Device) Adapter() gpucontext.Adapter { return d.adapter }

// SurfaceFormat returns TextureFormatUndefined; the device is headless.
func (d *Device) SurfaceFormat() gputypes.TextureFormat { return gputypes.TextureFormatUndefined }

// AdapterInfo returns the adapter name and type.
func (d *Device) AdapterInfo() gpucontext.AdapterInfo {
	return gpucontext.AdapterInfo{Name: d.info.Name, Type: adapterType(d.info.DeviceType)}
}

// Backend returns the backend the device was opened on.
func (d *Device) Backend() gputypes.Backend { return d.backend }

func adapterType(t gputypes.DeviceType) gpucontext.AdapterType {
	switch t {
	case gputypes.DeviceTypeDiscreteGPU:
		return gpucontext.AdapterTypeDiscrete
	case gputypes.DeviceTypeIntegratedGPU:
		return gpucontext.AdapterTypeIntegrated
	case gputypes.DeviceTypeCPU:
		return gpucontext.AdapterTypeSoftware
	default:
		return gpucontext.AdapterTypeUnknown
	}
}

// LoadShader creates a shader module from SPIR-V, replacing the module
// previously loaded under label.
func (d *Device) LoadShader(label string, spirv []uint32) error {
	if len(spirv) == 0 {
		return fmt.Errorf("wgpu: shader %q: empty SPIR-V", label)
	}
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.closed {
		return ErrClosed
	}
	m, err := d.device.CreateShaderModule(&hal.ShaderModuleDescriptor{
		Label:  label,
		Source: hal.ShaderSource{SPIRV: spirv},
	})
	if err != nil {
		return fmt.Errorf("wgpu: shader %q: %w", label, err)
	}
	if old, ok := d.modules[label]; ok {
		d.device.DestroyShaderModule(old)
	}
	d.modules[label] = m
	return nil
}

// Shaders returns the number of loaded shader modules.
func (d *Device) Shaders() int {
	d.mu.Lock()
	defer d.mu.Unlock()
	return len(d.modules)
}

// AllocateTarget creates the framebuffer texture, releasing the previous
// one.
func (d *Device) AllocateTarget(desc render.TextureDescriptor) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.closed {
		return ErrClosed
	}
	tex, err := d.device.CreateTexture(&hal.TextureDescriptor{
		Label: desc.Label,
		Size: hal.Extent3D{
			Width:              desc.Width,
			Height:             desc.Height,
			DepthOrArrayLayers: 1,
		},
		MipLevelCount: 1,
		SampleCount:   1,
		Dimension:     gputypes.TextureDimension2D,
		Format:        desc.Format,
		Usage:         textureUsage(desc.Usage),
	})
	if err != nil {
		return fmt.Errorf("wgpu: create %dx%d target: %w", desc.Width, desc.Height, err)
	}
	if d.target != nil {
		d.device.DestroyTexture(d.target)
	}
	d.target = tex
	return nil
}

func textureUsage(u render.TextureUsage) gputypes.TextureUsage {
	var out gputypes.TextureUsage
	if u&render.TextureUsageCopySrc != 0 {
		out |= gputypes.TextureUsageCopySrc
	}
	if u&render.TextureUsageCopyDst != 0 {
		out |= gputypes.TextureUsageCopyDst
	}
	if u&render.TextureUsageTextureBinding != 0 {
		out |= gputypes.TextureUsageTextureBinding
	}
	if u&render.TextureUsageRenderAttachment != 0 {
		out |= gputypes.TextureUsageRenderAttachment
	}
	return out
}

// Close waits for the device to go idle and releases every resource.
func (d *Device) Close() error {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.closed {
		return nil
	}
	d.closed = true
	err := d.device.WaitIdle()
	for label, m := range d.modules {
		d.device.DestroyShaderModule(m)
		delete(d.modules, label)
	}
	if d.target != nil {
		d.device.DestroyTexture(d.target)
		d.target = nil
	}
	d.device.Destroy()
	d.adapter.Destroy()
	d.instance.Destroy()
	if err != nil {
		return fmt.Errorf("wgpu: wait idle: %w", err)
	}
	return nil
}
