// Copyright 2026 The gogpu Authors
// SPDX-License-Identifier: BSD-3-Clause

package render

import (
	"github.com/gogpu/gpucontext"
	"github.com/gogpu/gputypes"
)

// DeviceHandle provides GPU device access from the host application.
//
// The renderer RECEIVES the device from the host, it does NOT create one.
// Hosts without a GPU pass NullDeviceHandle; the device/wgpu and
// device/native packages provide headless handles for tools and tests.
//
// DeviceHandle is an alias for gpucontext.DeviceProvider.
type DeviceHandle = gpucontext.DeviceProvider

// ShaderLoader is implemented by device handles that can create shader
// modules. New loads every compositor shader through it and fails with a
// DeviceInitError if any load fails.
type ShaderLoader interface {
	LoadShader(label string, spirv []uint32) error
}

// TargetAllocator is implemented by device handles that back the
// framebuffer with a texture. New and window resizes call AllocateTarget.
type TargetAllocator interface {
	AllocateTarget(desc TextureDescriptor) error
}

// TextureDescriptor describes a texture the renderer asks the device for.
type TextureDescriptor struct {
	Label  string
	Width  uint32
	Height uint32
	Format gputypes.TextureFormat
	Usage  TextureUsage
}

// TextureUsage specifies how a texture can be used.
// These flags can be combined with bitwise OR.
type TextureUsage uint32

const (
	// TextureUsageCopySrc allows the texture to be used as a copy source.
	TextureUsageCopySrc TextureUsage = 1 << iota

	// TextureUsageCopyDst allows the texture to be used as a copy destination.
	TextureUsageCopyDst

	// TextureUsageTextureBinding allows the texture to be sampled.
	TextureUsageTextureBinding

	// TextureUsageRenderAttachment allows the texture to be rendered to.
	TextureUsageRenderAttachment
)

// framebufferDescriptor describes the composited frame: readable back and
// renderable, in the target format of the handle.
func framebufferDescriptor(width, height int, format gputypes.TextureFormat) TextureDescriptor {
	return TextureDescriptor{
		Label:  "scenebridge framebuffer",
		Width:  uint32(width),  //nolint:gosec // window sizes fit in u32
		Height: uint32(height), //nolint:gosec // window sizes fit in u32
		Format: format,
		Usage:  TextureUsageRenderAttachment | TextureUsageCopySrc | TextureUsageTextureBinding,
	}
}

// targetFormat returns the handle's surface format, or BGRA8 when the
// handle has none.
func targetFormat(h DeviceHandle) gputypes.TextureFormat {
	if f := h.SurfaceFormat(); f != gputypes.TextureFormatUndefined {
		return f
	}
	return gputypes.TextureFormatBGRA8Unorm
}

// NullDeviceHandle is a DeviceHandle that provides nil implementations.
// Used for CPU-only rendering where no GPU is available.
type NullDeviceHandle struct{}

// Device returns nil for the null device.
func (NullDeviceHandle) Device() gpucontext.Device { return nil }

// Queue returns nil for the null device.
func (NullDeviceHandle) Queue() gpucontext.Queue { return nil }

// Adapter returns nil for the null device.
func (NullDeviceHandle) Adapter() gpucontext.Adapter { return nil }

// SurfaceFormat returns undefined format for the null device.
func (NullDeviceHandle) SurfaceFormat() gputypes.TextureFormat {
	return gputypes.TextureFormatUndefined
}

// AdapterInfo reports a software adapter.
func (NullDeviceHandle) AdapterInfo() gpucontext.AdapterInfo {
	return gpucontext.AdapterInfo{Name: "null", Type: gpucontext.AdapterTypeSoftware}
}

// Ensure NullDeviceHandle implements DeviceHandle.
var _ DeviceHandle = NullDeviceHandle{}
