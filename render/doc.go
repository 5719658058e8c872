// Copyright 2026 The gogpu Authors
// SPDX-License-Identifier: BSD-3-Clause

// Package render turns queued producer messages into composited frames.
//
// A [Renderer] is created on the render context with a [DeviceHandle] from
// the host. It RECEIVES the device, it does NOT create one: hosts without a
// GPU pass [NullDeviceHandle], and the device/wgpu package provides a
// headless handle for tools and tests.
//
// # Lifecycle
//
// New compiles the compositor shaders (WGSL to SPIR-V through naga), loads
// them on devices that implement [ShaderLoader] and allocates the
// framebuffer on devices that implement [TargetAllocator]. Any failure is a
// [*DeviceInitError]. After creation the renderer cycles through
//
//	Update(rc)             drain messages, build a frame when one was requested
//	Render(rc, size)       composite the frame, report rendered epochs
//	Readback(rc, size, b)  copy BGRA pixels out
//
// until Delete, after which every call returns [ErrDestroyed].
//
// # Compositors
//
// Frames are drawn by a [Compositor] chosen from a registry by name. The
// built-in "software" compositor rasterizes on the CPU with x/image/vector
// and is what Readback observes; other compositors can be registered with
// [RegisterCompositor].
//
// # Usage
//
//	ctxs := scenebridge.NewContexts()
//	r, sender, err := render.New(ctxs.Render, render.NullDeviceHandle{}, size)
//	if err != nil {
//	    return err
//	}
//	a := sender.CreateAPI()
//	pipeline := a.GeneratePipelineID(1)
//
//	b := displaylist.NewBuilder(ctxs.Producer, pipeline)
//	b.Begin(size.Width, size.Height)
//	b.PushRect(bounds, displaylist.SimpleClip(bounds), red)
//	b.End()
//	dl, _ := b.Finalize()
//	buf, desc := wire.Encode(dl)
//	_ = a.SetDisplayList(ctxs.Producer, 1, pipeline, size, buf.Take(), desc)
//	_ = a.SetRootPipeline(ctxs.Producer, pipeline)
//
//	_ = r.Update(ctxs.Render)
//	_ = r.Render(ctxs.Render, size)
package render
