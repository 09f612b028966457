// Package config provides configuration loading and management.
package config

import (
	"errors"
	"fmt"
	"image/color"
	"os"

	"gopkg.in/yaml.v3"

	"github.com/user/vidsurface/pkg/decoder"
	"github.com/user/vidsurface/pkg/frame"
	"github.com/user/vidsurface/pkg/ports"
)

// View modes.
const (
	ViewWindow   = "window"
	ViewSnapshot = "snapshot"
	ViewRecord   = "record"
	ViewNone     = "none"
)

// Config represents the full configuration for vidsurface.
type Config struct {
	// Logging
	LogLevel  string `yaml:"log_level"`
	LogFormat string `yaml:"log_format"` // console or json

	// Streams
	Streams []StreamConfig `yaml:"streams"`

	// Playback
	BatchSize int  `yaml:"batch_size"` // payloads per decode call
	Realtime  bool `yaml:"realtime"`   // pace payloads at the stream frame rate

	View    ViewConfig    `yaml:"view"`
	Metrics MetricsConfig `yaml:"metrics"`

	// Summary is the path of the Markdown run summary ("" = none).
	Summary string `yaml:"summary"`
}

// StreamConfig describes one elementary stream to play.
type StreamConfig struct {
	ID           string  `yaml:"id"`
	File         string  `yaml:"file"`
	Codec        string  `yaml:"codec"` // h264, mjpeg, raw or "" to detect
	PixelFormat  string  `yaml:"pixel_format"`
	Width        int     `yaml:"width"`
	Height       int     `yaml:"height"`
	FPS          float64 `yaml:"fps"`
	ReorderDepth int     `yaml:"reorder_depth"`
}

// ViewConfig configures where frames are displayed.
type ViewConfig struct {
	Mode  string  `yaml:"mode"` // window, snapshot, record or none
	Title string  `yaml:"title"`
	Scale float64 `yaml:"scale"`

	// Snapshot view
	SnapshotDir   string `yaml:"snapshot_dir"`
	SnapshotEvery int    `yaml:"snapshot_every"` // draw ticks between snapshots
	TickMs        int    `yaml:"tick_ms"`
	Overlay       bool   `yaml:"overlay"`
	FontPath      string `yaml:"font_path"`

	// Record view
	RecordDir string `yaml:"record_dir"`

	Theme ThemeConfig `yaml:"theme"`
}

// ThemeConfig represents theming options.
type ThemeConfig struct {
	BackgroundColor string `yaml:"background_color"`
	TextColor       string `yaml:"text_color"`
	AccentColor     string `yaml:"accent_color"`
}

// MetricsConfig configures the Prometheus endpoint.
type MetricsConfig struct {
	Enabled   bool   `yaml:"enabled"`
	Addr      string `yaml:"addr"`
	Profiling bool   `yaml:"profiling"`
}

// Defaults returns a Config with default values.
func Defaults() Config {
	return Config{
		LogLevel:  "info",
		LogFormat: "console",

		BatchSize: 4,
		Realtime:  true,

		View: ViewConfig{
			Mode:          ViewWindow,
			Title:         "vidsurface",
			Scale:         1.0,
			SnapshotDir:   "./snapshots",
			SnapshotEvery: 30,
			TickMs:        16,
			Overlay:       true,
			RecordDir:     "./frames",
			Theme: ThemeConfig{
				BackgroundColor: "#1a1a2e",
				TextColor:       "#ffffff",
				AccentColor:     "#4ade80",
			},
		},

		Metrics: MetricsConfig{
			Addr: ":9090",
		},
	}
}

// DefaultStream returns the stream defaults applied to every stream entry.
func DefaultStream() StreamConfig {
	return StreamConfig{
		PixelFormat: "bgra",
		Width:       640,
		Height:      368,
		FPS:         ports.DefaultFPS,
	}
}

// LoadFromFile loads configuration from a YAML file.
func LoadFromFile(path string) (Config, error) {
	cfg := Defaults()

	data, err := os.ReadFile(path)
	if err != nil {
		return cfg, err
	}

	return Parse(data)
}

// Parse decodes YAML on top of the defaults.
func Parse(data []byte) (Config, error) {
	cfg := Defaults()
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return cfg, fmt.Errorf("config: %w", err)
	}
	for i := range cfg.Streams {
		cfg.Streams[i] = cfg.Streams[i].withDefaults()
	}
	return cfg, nil
}

func (s StreamConfig) withDefaults() StreamConfig {
	d := DefaultStream()
	if s.PixelFormat == "" {
		s.PixelFormat = d.PixelFormat
	}
	if s.Width == 0 {
		s.Width = d.Width
	}
	if s.Height == 0 {
		s.Height = d.Height
	}
	if s.FPS == 0 {
		s.FPS = d.FPS
	}
	return s
}

// Validate checks the configuration for errors that would only surface
// later, mid-run.
func (c Config) Validate() error {
	var errs []error
	if c.LogFormat != "console" && c.LogFormat != "json" {
		errs = append(errs, fmt.Errorf("log_format: unknown format %q", c.LogFormat))
	}
	if c.BatchSize < 1 {
		errs = append(errs, fmt.Errorf("batch_size: must be positive, got %d", c.BatchSize))
	}
	switch c.View.Mode {
	case ViewWindow, ViewSnapshot, ViewRecord, ViewNone:
	default:
		errs = append(errs, fmt.Errorf("view.mode: unknown mode %q", c.View.Mode))
	}
	if c.View.Scale <= 0 {
		errs = append(errs, fmt.Errorf("view.scale: must be positive, got %v", c.View.Scale))
	}

	seen := make(map[string]bool)
	for i, s := range c.Streams {
		if s.ID == "" {
			errs = append(errs, fmt.Errorf("streams[%d]: missing id", i))
		} else if seen[s.ID] {
			errs = append(errs, fmt.Errorf("streams[%d]: duplicate id %q", i, s.ID))
		}
		seen[s.ID] = true
		if s.File == "" {
			errs = append(errs, fmt.Errorf("streams[%d]: missing file", i))
		}
		if _, err := s.Format(); err != nil {
			errs = append(errs, fmt.Errorf("streams[%d]: %w", i, err))
		}
		if s.ReorderDepth < 0 || s.ReorderDepth > decoder.MaxReorderDepth {
			errs = append(errs, fmt.Errorf("streams[%d]: reorder_depth must be within 0..%d", i, decoder.MaxReorderDepth))
		}
	}
	return errors.Join(errs...)
}

// Format returns the declared output format of the stream.
func (s StreamConfig) Format() (frame.Format, error) {
	pix, err := frame.ParsePixelFormat(s.PixelFormat)
	if err != nil {
		return frame.Format{}, err
	}
	f := frame.Format{Pixel: pix, Width: s.Width, Height: s.Height}
	return f, f.Validate()
}

// CodecConfig converts the stream entry into a decoder configuration.
// An empty codec is reported as ports.CodecUnknown; callers detect it.
func (s StreamConfig) CodecConfig() (ports.CodecConfig, error) {
	f, err := s.Format()
	if err != nil {
		return ports.CodecConfig{}, err
	}
	name := ports.CodecName(s.Codec)
	if name == "" {
		name = ports.CodecUnknown
	}
	return ports.CodecConfig{
		Codec:        name,
		Format:       f,
		FPS:          s.FPS,
		ReorderDepth: s.ReorderDepth,
	}, nil
}

// ParseColor parses a hex color string to color.Color.
func ParseColor(hex string) color.Color {
	if len(hex) == 0 {
		return color.Black
	}

	if hex[0] == '#' {
		hex = hex[1:]
	}

	if len(hex) != 6 {
		return color.Black
	}

	r := hexValue(hex[0])<<4 | hexValue(hex[1])
	g := hexValue(hex[2])<<4 | hexValue(hex[3])
	b := hexValue(hex[4])<<4 | hexValue(hex[5])

	return color.RGBA{R: r, G: g, B: b, A: 255}
}

func hexValue(c byte) uint8 {
	switch {
	case c >= '0' && c <= '9':
		return c - '0'
	case c >= 'a' && c <= 'f':
		return c - 'a' + 10
	case c >= 'A' && c <= 'F':
		return c - 'A' + 10
	default:
		return 0
	}
}
