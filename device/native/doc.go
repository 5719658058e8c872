// Package native provides a render.DeviceHandle on wgpu-native through the
// go-webgpu/webgpu FFI bindings.
//
// The handle is only built with the "rust" build tag:
//
//	go build -tags rust ./...
//
// Without the tag Open returns ErrNotBuilt, so tools can link the package
// unconditionally and fall back to another device.
//
// wgpu-native must be installed (libwgpu_native.so, wgpu_native.dll or
// libwgpu_native.dylib in the library path).
//
// The handle exposes the wgpu-native device and queue to render.New. It does
// not load compositor shaders or allocate the framebuffer; the software
// compositor does not need either.
package native

import "errors"

// Errors returned by Open.
var (
	// ErrNotBuilt is returned when the package was built without the rust
	// tag.
	ErrNotBuilt = errors.New("native: built without the rust tag")

	// ErrLibraryNotFound is returned when wgpu-native cannot be loaded.
	ErrLibraryNotFound = errors.New("native: wgpu-native library not found")

	// ErrNoGPU is returned when no adapter is available.
	ErrNoGPU = errors.New("native: no GPU adapter available")
)
