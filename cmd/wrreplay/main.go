// Command wrreplay replays a scenebridge recording and writes the rendered
// frames as PNG.
//
// Usage:
//
//	wrreplay [flags] wr-record-1.bin
//
// Recordings are made by creating windows with window.WithRecordDir. By
// default the last frame is written to frame.png; with output.every_frame
// set in the config file every frame is written to output.dir. With -watch
// the recording is replayed again each time it changes.
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"log"
	"log/slog"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"github.com/fsnotify/fsnotify"
	"golang.org/x/text/language"

	sb "github.com/gogpu/scenebridge"
	"github.com/gogpu/scenebridge/config"
)

var (
	configPath = flag.String("config", "", "TOML or YAML config file")
	out        = flag.String("out", "frame.png", "output PNG, or - for stdout")
	device     = flag.String("device", "software", "device: software, wgpu or native")
	watch      = flag.Bool("watch", false, "replay again whenever the recording changes")
	verbose    = flag.Bool("v", false, "debug logging")
	quiet      = flag.Bool("q", false, "do not print statistics")
)

func main() {
	log.SetFlags(0)
	flag.Usage = func() {
		fmt.Fprintf(os.Stderr, "usage: wrreplay [flags] recording\n")
		flag.PrintDefaults()
	}
	flag.Parse()
	if flag.NArg() != 1 {
		flag.Usage()
		os.Exit(2)
	}

	cfg := config.Default()
	if *configPath != "" {
		var err error
		if cfg, err = config.Load(*configPath); err != nil {
			log.Fatal(err)
		}
	}
	level := cfg.Level()
	if *verbose {
		level = slog.LevelDebug
	}
	sb.SetLogger(slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: level})))

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	j := &job{
		recording: flag.Arg(0),
		out:       *out,
		device:    *device,
		cfg:       cfg,
		stdout:    os.Stdout,
		isTTY:     stdoutIsTerminal,
	}
	if !*watch {
		if err := replayOnce(ctx, j); err != nil {
			log.Fatal(err)
		}
		return
	}
	if err := watchLoop(ctx, j); err != nil && !errors.Is(err, context.Canceled) {
		log.Fatal(err)
	}
}

func replayOnce(ctx context.Context, j *job) error {
	st, err := j.run(ctx)
	if err != nil {
		return err
	}
	if !*quiet {
		report(os.Stderr, st, language.English)
	}
	return nil
}

// settle is how long the recording must stay unchanged before a replay.
const settle = 200 * time.Millisecond

// watchLoop replays j now and after every change to the recording until ctx
// is done. Replay errors are logged, not fatal.
func watchLoop(ctx context.Context, j *job) error {
	w, err := fsnotify.NewWatcher()
	if err != nil {
		return err
	}
	defer w.Close()
	// Watch the directory; recorders recreate the file.
	if err := w.Add(filepath.Dir(j.recording)); err != nil {
		return err
	}
	target := filepath.Clean(j.recording)

	replay := func() {
		if err := replayOnce(ctx, j); err != nil {
			sb.Logger().Warn("wrreplay: replay failed", "recording", j.recording, "err", err)
		}
	}
	replay()

	timer := time.NewTimer(settle)
	timer.Stop()
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case ev, ok := <-w.Events:
			if !ok {
				return nil
			}
			if filepath.Clean(ev.Name) != target || !ev.Has(fsnotify.Write) && !ev.Has(fsnotify.Create) {
				continue
			}
			timer.Reset(settle)
		case err, ok := <-w.Errors:
			if !ok {
				return nil
			}
			sb.Logger().Warn("wrreplay: watch error", "err", err)
		case <-timer.C:
			replay()
		}
	}
}
