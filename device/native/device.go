//go:build rust

package native

import (
	"fmt"
	"sync"

	"github.com/go-webgpu/webgpu/wgpu"
	"github.com/gogpu/gpucontext"
	"github.com/gogpu/gputypes"

	sb "github.com/gogpu/scenebridge"
	"github.com/gogpu/scenebridge/render"
)

// Device is a wgpu-native device. It implements render.DeviceHandle.
type Device struct {
	mu       sync.Mutex
	instance *wgpu.Instance
	adapter  *wgpu.Adapter
	device   *wgpu.Device
	queue    *wgpu.Queue
	info     gpucontext.AdapterInfo
}

var _ render.DeviceHandle = (*Device)(nil)

// Open loads wgpu-native and opens a device on the high-performance
// adapter.
func Open() (*Device, error) {
	if err := wgpu.Init(); err != nil {
		return nil, fmt.Errorf("%w: %w", ErrLibraryNotFound, err)
	}
	instance, err := wgpu.CreateInstance(nil)
	if err != nil {
		return nil, fmt.Errorf("native: create instance: %w", err)
	}
	adapter, err := instance.RequestAdapter(&wgpu.RequestAdapterOptions{
		PowerPreference: wgpu.PowerPreferenceHighPerformance,
	})
	if err != nil {
		instance.Release()
		return nil, fmt.Errorf("%w: %w", ErrNoGPU, err)
	}
	device, err := adapter.RequestDevice(nil)
	if err != nil {
		adapter.Release()
		instance.Release()
		return nil, fmt.Errorf("native: create device: %w", err)
	}
	queue := device.GetQueue()
	if queue == nil {
		device.Release()
		adapter.Release()
		instance.Release()
		return nil, fmt.Errorf("native: device has no queue")
	}
	d := &Device{instance: instance, adapter: adapter, device: device, queue: queue}
	d.info = adapterInfo(adapter)
	sb.Logger().Info("native: device opened", "adapter", d.info.Name, "type", d.info.Type)
	return d, nil
}

func adapterInfo(a *wgpu.Adapter) gpucontext.AdapterInfo {
	info, err := a.GetInfo()
	if err != nil {
		return gpucontext.AdapterInfo{Name: "wgpu-native", Type: gpucontext.AdapterTypeUnknown}
	}
	t := gpucontext.AdapterTypeUnknown
	switch info.AdapterType {
	case wgpu.AdapterTypeDiscreteGPU:
		t = gpucontext.AdapterTypeDiscrete
	case wgpu.AdapterTypeIntegratedGPU:
		t = gpucontext.AdapterTypeIntegrated
	case wgpu.AdapterTypeCPU:
		t = gpucontext.AdapterTypeSoftware
	}
	return gpucontext.AdapterInfo{Name: info.Device, Type: t}
}

// Device returns the *wgpu.Device.
func (d *Device) Device() gpucontext.Device { return d.device }

// Queue returns the *wgpu.Queue.
func (d *Device) Queue() gpucontext.Queue { return d.queue }

// Adapter returns the *wgpu.Adapter.
func (d *Device) Adapter() gpucontext.Adapter { return d.adapter }

// SurfaceFormat returns TextureFormatUndefined; the device is headless.
func (d *Device) SurfaceFormat() gputypes.TextureFormat { return gputypes.TextureFormatUndefined }

// AdapterInfo returns the adapter name and type.
func (d *Device) AdapterInfo() gpucontext.AdapterInfo { return d.info }

// Close releases the device in reverse order of creation.
func (d *Device) Close() {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.device == nil {
		return
	}
	d.queue.Release()
	d.device.Release()
	d.adapter.Release()
	d.instance.Release()
	d.queue, d.device, d.adapter, d.instance = nil, nil, nil, nil
	sb.Logger().Info("native: device closed")
}
