// Package config loads the settings of the replay tool from TOML or YAML
// files.
//
// Files only override what they name; everything else keeps the value from
// Default. The format is chosen by file extension.
//
// Example config.toml:
//
//	log_level = "debug"
//
//	[render]
//	compositor = "software"
//	workers = 4
//	clear_color = [1.0, 1.0, 1.0, 1.0]
//
//	[output]
//	dir = "frames"
//	every_frame = true
package config

import (
	"bufio"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"strings"

	"github.com/pelletier/go-toml/v2"
	"gopkg.in/yaml.v3"

	sb "github.com/gogpu/scenebridge"
	"github.com/gogpu/scenebridge/render"
)

// Errors returned by Load and Validate.
var (
	ErrUnknownFormat = errors.New("config: unknown file format")
	ErrInvalid       = errors.New("config: invalid value")
)

// Config is the replay tool configuration.
type Config struct {
	LogLevel string `toml:"log_level" yaml:"log_level"`
	Render   Render `toml:"render" yaml:"render"`
	Output   Output `toml:"output" yaml:"output"`
}

// Render holds renderer settings.
type Render struct {
	// Compositor names a registered compositor. Empty selects the best.
	Compositor string `toml:"compositor" yaml:"compositor"`
	// Workers enables parallel blob rasterization when above 1.
	Workers  int  `toml:"workers" yaml:"workers"`
	Profiler bool `toml:"profiler" yaml:"profiler"`
	// ClearColor is RGBA in 0..1.
	ClearColor [4]float32 `toml:"clear_color" yaml:"clear_color"`
	// Width and Height override the recorded window size when non-zero.
	Width  float32 `toml:"width" yaml:"width"`
	Height float32 `toml:"height" yaml:"height"`
}

// Output holds frame output settings.
type Output struct {
	Dir string `toml:"dir" yaml:"dir"`
	// EveryFrame writes one PNG per frame instead of only the last.
	EveryFrame bool `toml:"every_frame" yaml:"every_frame"`
	// Scale resizes written frames. 1 keeps the rendered size.
	Scale float64 `toml:"scale" yaml:"scale"`
}

// Default returns the configuration used when no file is given.
func Default() Config {
	return Config{
		LogLevel: "info",
		Output: Output{
			Dir:   ".",
			Scale: 1,
		},
	}
}

// Format is a configuration file format.
type Format int

// Supported formats.
const (
	TOML Format = iota
	YAML
)

// String returns the format name.
func (f Format) String() string {
	switch f {
	case TOML:
		return "toml"
	case YAML:
		return "yaml"
	default:
		return "unknown"
	}
}

// FormatOf returns the format of path by its extension.
func FormatOf(path string) (Format, error) {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".toml":
		return TOML, nil
	case ".yaml", ".yml":
		return YAML, nil
	}
	return 0, fmt.Errorf("%w: %q", ErrUnknownFormat, path)
}

// decoder is satisfied by both the TOML and YAML decoders.
type decoder interface {
	Decode(v any) error
}

func newDecoder(f Format, r io.Reader) (decoder, error) {
	switch f {
	case TOML:
		return toml.NewDecoder(r).DisallowUnknownFields(), nil
	case YAML:
		d := yaml.NewDecoder(r)
		d.KnownFields(true)
		return d, nil
	}
	return nil, fmt.Errorf("%w: %v", ErrUnknownFormat, f)
}

// Load reads path over Default and validates the result.
func Load(path string) (Config, error) {
	f, err := FormatOf(path)
	if err != nil {
		return Config{}, err
	}
	fp, err := os.Open(path)
	if err != nil {
		return Config{}, fmt.Errorf("config: %w", err)
	}
	defer fp.Close()
	c, err := Decode(bufio.NewReader(fp), f)
	if err != nil {
		return Config{}, fmt.Errorf("config: %s: %w", path, err)
	}
	return c, nil
}

// Decode reads a configuration in format f over Default and validates it.
// An empty input yields Default.
func Decode(r io.Reader, f Format) (Config, error) {
	c := Default()
	d, err := newDecoder(f, r)
	if err != nil {
		return Config{}, err
	}
	if err := d.Decode(&c); err != nil && !errors.Is(err, io.EOF) {
		return Config{}, err
	}
	if err := c.Validate(); err != nil {
		return Config{}, err
	}
	return c, nil
}

// Validate reports the first invalid field.
func (c Config) Validate() error {
	if _, err := parseLevel(c.LogLevel); err != nil {
		return err
	}
	if c.Render.Workers < 0 {
		return fmt.Errorf("%w: render.workers %d", ErrInvalid, c.Render.Workers)
	}
	if c.Render.Width < 0 || c.Render.Height < 0 {
		return fmt.Errorf("%w: render size %gx%g", ErrInvalid, c.Render.Width, c.Render.Height)
	}
	for _, v := range c.Render.ClearColor {
		if v < 0 || v > 1 {
			return fmt.Errorf("%w: render.clear_color %v", ErrInvalid, c.Render.ClearColor)
		}
	}
	if c.Output.Scale <= 0 {
		return fmt.Errorf("%w: output.scale %g", ErrInvalid, c.Output.Scale)
	}
	return nil
}

// Level returns the slog level named by LogLevel.
func (c Config) Level() slog.Level {
	l, _ := parseLevel(c.LogLevel)
	return l
}

func parseLevel(s string) (slog.Level, error) {
	var l slog.Level
	if err := l.UnmarshalText([]byte(s)); err != nil {
		return slog.LevelInfo, fmt.Errorf("%w: log_level %q", ErrInvalid, s)
	}
	return l, nil
}

// Size returns the configured window size, or fallback when none is set.
func (c Config) Size(fallback sb.Size) sb.Size {
	s := fallback
	if c.Render.Width > 0 {
		s.Width = c.Render.Width
	}
	if c.Render.Height > 0 {
		s.Height = c.Render.Height
	}
	return s
}

// RenderOptions returns the renderer options the configuration selects.
func (c Config) RenderOptions() []render.Option {
	cc := c.Render.ClearColor
	opts := []render.Option{
		render.WithProfiler(c.Render.Profiler),
		render.WithClearColor(sb.Color{R: cc[0], G: cc[1], B: cc[2], A: cc[3]}),
	}
	if c.Render.Compositor != "" {
		opts = append(opts, render.WithCompositor(c.Render.Compositor))
	}
	if c.Render.Workers > 0 {
		opts = append(opts, render.WithWorkers(c.Render.Workers))
	}
	return opts
}
