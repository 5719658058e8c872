// Copyright 2026 The gogpu Authors
// SPDX-License-Identifier: BSD-3-Clause

package render

import (
	_ "embed"
	"encoding/binary"
	"fmt"

	"github.com/gogpu/naga"
)

// Embedded WGSL shader sources.

//go:embed shaders/composite.wgsl
var compositeShaderSource string

//go:embed shaders/solid.wgsl
var solidShaderSource string

// shaderSource is one WGSL module of the compositor.
type shaderSource struct {
	label string
	wgsl  string
}

// defaultShaders lists the modules New compiles.
func defaultShaders() []shaderSource {
	return []shaderSource{
		{label: "composite", wgsl: compositeShaderSource},
		{label: "solid", wgsl: solidShaderSource},
	}
}

// compiledShader is a SPIR-V module ready to load on a device.
type compiledShader struct {
	label string
	spirv []uint32
}

// compileShaders compiles every source to SPIR-V words. The first failure
// is returned as a DeviceInitError naming the module.
func compileShaders(sources []shaderSource) ([]compiledShader, error) {
	out := make([]compiledShader, 0, len(sources))
	for _, s := range sources {
		code, err := compileWGSL(s.wgsl)
		if err != nil {
			return nil, &DeviceInitError{Reason: "compile shader " + s.label, Err: err}
		}
		out = append(out, compiledShader{label: s.label, spirv: code})
	}
	return out, nil
}

// compileWGSL compiles WGSL to little-endian SPIR-V words.
func compileWGSL(src string) ([]uint32, error) {
	b, err := naga.Compile(src)
	if err != nil {
		return nil, err
	}
	if len(b)%4 != 0 {
		return nil, fmt.Errorf("spir-v length %d is not a multiple of 4", len(b))
	}
	words := make([]uint32, len(b)/4)
	for i := range words {
		words[i] = binary.LittleEndian.Uint32(b[i*4:])
	}
	return words, nil
}
