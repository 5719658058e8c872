package main

import (
	"context"
	"errors"
	"fmt"
	"image"
	"io"
	"os"
	"path/filepath"
	"time"

	"github.com/disintegration/imaging"
	"golang.org/x/term"
	"golang.org/x/text/language"
	"golang.org/x/text/message"

	sb "github.com/gogpu/scenebridge"
	"github.com/gogpu/scenebridge/api"
	"github.com/gogpu/scenebridge/blob"
	"github.com/gogpu/scenebridge/config"
	"github.com/gogpu/scenebridge/device/native"
	"github.com/gogpu/scenebridge/device/wgpu"
	"github.com/gogpu/scenebridge/record"
	"github.com/gogpu/scenebridge/render"
)

// pipeName selects stdout as the output.
const pipeName = "-"

var errTerminal = errors.New("`-` should be used with a pipe for stdout")

// job is one replay of a recording.
type job struct {
	recording string
	out       string
	device    string
	cfg       config.Config
	stdout    io.Writer
	isTTY     func() bool
}

// stats summarizes a replay.
type stats struct {
	Window    sb.WindowID
	Size      sb.Size
	Entries   int
	ByType    map[api.MessageType]int
	ListBytes int
	Frames    int
	Duration  time.Duration
	Written   []string
	Timings   render.FrameTimings
}

// openDevice returns the device handle named by name and a function that
// releases it.
func openDevice(name string) (render.DeviceHandle, func(), error) {
	switch name {
	case "", "software":
		return render.NullDeviceHandle{}, func() {}, nil
	case "wgpu":
		d, err := wgpu.Open()
		if err != nil {
			return nil, nil, err
		}
		return d, func() { _ = d.Close() }, nil
	case "native":
		d, err := native.Open()
		if err != nil {
			return nil, nil, err
		}
		return d, d.Close, nil
	}
	return nil, nil, fmt.Errorf("unknown device %q", name)
}

func (j *job) run(ctx context.Context) (stats, error) {
	var st stats
	f, err := os.Open(j.recording)
	if err != nil {
		return st, err
	}
	defer f.Close()
	rd, err := record.NewReader(f)
	if err != nil {
		return st, fmt.Errorf("%s: %w", j.recording, err)
	}
	entries, err := rd.ReadAll()
	if err != nil {
		return st, fmt.Errorf("%s: %w", j.recording, err)
	}
	st.Window = rd.Window()
	st.Entries = len(entries)
	st.ByType = make(map[api.MessageType]int)
	for _, e := range entries {
		st.ByType[e.Message.Type()]++
		if sdl, ok := e.Message.(api.SetDisplayList); ok {
			st.ListBytes += len(sdl.Data)
		}
	}
	if n := len(entries); n > 0 {
		st.Duration = entries[n-1].Elapsed
	}

	handle, release, err := openDevice(j.device)
	if err != nil {
		return st, err
	}
	defer release()

	size := j.cfg.Size(rd.Size())
	ctxs := sb.NewContexts()
	opts := append(j.cfg.RenderOptions(), render.WithRasterizer(blob.VectorRasterizer{}))
	r, sender, err := render.New(ctxs.Render, handle, size, opts...)
	if err != nil {
		return st, err
	}
	defer func() { _ = r.Delete(ctxs.Render) }()

	p := record.NewPlayer(ctxs, r, sender, size, entries)
	for {
		if err := ctx.Err(); err != nil {
			return st, err
		}
		before := p.Frames()
		more, err := p.Step()
		if err != nil {
			return st, err
		}
		if !more {
			break
		}
		if j.cfg.Output.EveryFrame && p.Frames() > before {
			name := filepath.Join(j.cfg.Output.Dir, fmt.Sprintf("frame-%04d.png", p.Frames()))
			if err := j.save(ctxs, r, p.Size(), name); err != nil {
				return st, err
			}
			st.Written = append(st.Written, name)
		}
	}
	st.Frames = p.Frames()
	st.Size = p.Size()
	st.Timings = r.Timings(ctxs.Render)
	if st.Frames == 0 {
		return st, render.ErrNoFrame
	}
	if !j.cfg.Output.EveryFrame {
		if err := j.save(ctxs, r, p.Size(), j.out); err != nil {
			return st, err
		}
		st.Written = append(st.Written, j.out)
	}
	return st, nil
}

// save reads back the last frame and writes it as PNG to name, or to
// stdout for pipeName.
func (j *job) save(ctxs sb.Contexts, r *render.Renderer, size sb.Size, name string) error {
	img, err := frameImage(ctxs, r, size)
	if err != nil {
		return err
	}
	var out image.Image = img
	if s := j.cfg.Output.Scale; s != 1 {
		w := max(1, int(float64(img.Rect.Dx())*s))
		out = imaging.Resize(img, w, 0, imaging.Lanczos)
	}
	if name == pipeName {
		if j.isTTY() {
			return errTerminal
		}
		return imaging.Encode(j.stdout, out, imaging.PNG)
	}
	if err := imaging.Save(out, name); err != nil {
		return fmt.Errorf("save %s: %w", name, err)
	}
	return nil
}

// frameImage reads back the frame of size as an RGBA image.
func frameImage(ctxs sb.Contexts, r *render.Renderer, size sb.Size) (*image.RGBA, error) {
	w, h := int(size.Width), int(size.Height)
	if w <= 0 || h <= 0 {
		return nil, fmt.Errorf("empty frame %vx%v", size.Width, size.Height)
	}
	buf := make([]byte, w*h*4)
	if err := r.Readback(ctxs.Render, size, buf); err != nil {
		return nil, err
	}
	img := image.NewRGBA(image.Rect(0, 0, w, h))
	for i := 0; i < len(buf); i += 4 {
		img.Pix[i], img.Pix[i+1], img.Pix[i+2], img.Pix[i+3] = buf[i+2], buf[i+1], buf[i], buf[i+3]
	}
	return img, nil
}

func stdoutIsTerminal() bool { return term.IsTerminal(int(os.Stdout.Fd())) }

// report prints st with locale-aware number formatting.
func report(w io.Writer, st stats, tag language.Tag) {
	p := message.NewPrinter(tag)
	p.Fprintf(w, "window %d, %v x %v\n", uint64(st.Window), st.Size.Width, st.Size.Height)
	p.Fprintf(w, "%d messages over %v, %d display list bytes\n", st.Entries, st.Duration.Round(time.Millisecond), st.ListBytes)
	for t := api.MsgAddImage; t <= api.MsgExternalEvent; t++ {
		if n := st.ByType[t]; n > 0 {
			p.Fprintf(w, "  %-18s %8d\n", t, n)
		}
	}
	p.Fprintf(w, "%d frames rendered\n", st.Frames)
	if st.Timings.Frames > 0 {
		p.Fprintf(w, "last frame: update %v, build %v, composite %v\n",
			st.Timings.Update, st.Timings.Build, st.Timings.Composite)
	}
	for _, name := range st.Written {
		p.Fprintf(w, "wrote %s\n", name)
	}
}
