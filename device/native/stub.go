//go:build !rust

package native

import "github.com/gogpu/scenebridge/render"

// Device is unavailable without the rust tag. Open never returns one.
type Device struct {
	render.NullDeviceHandle
}

// Open returns ErrNotBuilt.
func Open() (*Device, error) { return nil, ErrNotBuilt }

// Close does nothing.
func (*Device) Close() {}
