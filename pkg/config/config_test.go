package config

import (
	"image/color"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/user/vidsurface/pkg/frame"
	"github.com/user/vidsurface/pkg/ports"
)

func TestDefaultsAreValid(t *testing.T) {
	if err := Defaults().Validate(); err != nil {
		t.Errorf("defaults should validate, got %v", err)
	}
}

func TestParseAppliesStreamDefaults(t *testing.T) {
	cfg, err := Parse([]byte(`
log_level: debug
batch_size: 8
streams:
  - id: cam0
    file: cam0.h264
    codec: h264
  - id: cam1
    file: cam1.mjpeg
    pixel_format: i420
    width: 320
    height: 240
    fps: 25
view:
  mode: snapshot
`))
	if err != nil {
		t.Fatalf("Parse failed: %v", err)
	}
	if err := cfg.Validate(); err != nil {
		t.Fatalf("Validate failed: %v", err)
	}

	if cfg.LogLevel != "debug" || cfg.BatchSize != 8 || cfg.View.Mode != ViewSnapshot {
		t.Errorf("unexpected top-level values %+v", cfg)
	}
	if cfg.View.TickMs != 16 {
		t.Errorf("expected nested defaults to survive, got tick %d", cfg.View.TickMs)
	}

	cc, err := cfg.Streams[0].CodecConfig()
	if err != nil {
		t.Fatalf("CodecConfig failed: %v", err)
	}
	want := frame.Format{Pixel: frame.FormatBGRA, Width: 640, Height: 368}
	if cc.Codec != ports.CodecH264 || cc.Format != want || cc.FPS != ports.DefaultFPS {
		t.Errorf("unexpected codec config %+v", cc)
	}

	cc, _ = cfg.Streams[1].CodecConfig()
	if cc.Codec != ports.CodecUnknown || cc.Format.Pixel != frame.FormatI420 || cc.FPS != 25 {
		t.Errorf("unexpected codec config %+v", cc)
	}
}

func TestValidateReportsEveryProblem(t *testing.T) {
	cfg := Defaults()
	cfg.LogFormat = "xml"
	cfg.BatchSize = 0
	cfg.View.Mode = "hologram"
	cfg.Streams = []StreamConfig{
		{ID: "a", File: "a.h264", PixelFormat: "i420", Width: 7, Height: 8, FPS: 30},
		{ID: "a", PixelFormat: "bgra", Width: 8, Height: 8, FPS: 30, ReorderDepth: 99},
	}

	err := cfg.Validate()
	if err == nil {
		t.Fatal("expected validation errors")
	}
	for _, want := range []string{"log_format", "batch_size", "view.mode", "duplicate id", "missing file", "reorder_depth", "streams[0]"} {
		if !strings.Contains(err.Error(), want) {
			t.Errorf("expected %q in %v", want, err)
		}
	}
}

func TestLoadFromFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "vidsurface.yaml")
	if err := os.WriteFile(path, []byte("realtime: false\nmetrics:\n  enabled: true\n"), 0644); err != nil {
		t.Fatal(err)
	}
	cfg, err := LoadFromFile(path)
	if err != nil {
		t.Fatalf("LoadFromFile failed: %v", err)
	}
	if cfg.Realtime || !cfg.Metrics.Enabled || cfg.Metrics.Addr != ":9090" {
		t.Errorf("unexpected config %+v", cfg)
	}

	if _, err := LoadFromFile(filepath.Join(t.TempDir(), "missing.yaml")); err == nil {
		t.Error("expected error for missing file")
	}
}

func TestParseColor(t *testing.T) {
	tests := []struct {
		in   string
		want color.Color
	}{
		{"#1a1a2e", color.RGBA{R: 0x1a, G: 0x1a, B: 0x2e, A: 255}},
		{"4ADE80", color.RGBA{R: 0x4a, G: 0xde, B: 0x80, A: 255}},
		{"", color.Black},
		{"#fff", color.Black},
	}
	for _, tt := range tests {
		if got := ParseColor(tt.in); got != tt.want {
			t.Errorf("ParseColor(%q) = %v, want %v", tt.in, got, tt.want)
		}
	}
}

func TestRecordView(t *testing.T) {
	cfg, err := Parse([]byte("view:\n  mode: record\nstreams:\n  - id: cam0\n    file: cam0.raw\n"))
	if err != nil {
		t.Fatalf("Parse failed: %v", err)
	}
	if err := cfg.Validate(); err != nil {
		t.Fatalf("record mode should validate, got %v", err)
	}
	if cfg.View.RecordDir != "./frames" {
		t.Errorf("expected default record dir, got %q", cfg.View.RecordDir)
	}
}
