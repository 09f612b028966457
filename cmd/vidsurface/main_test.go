package main

import (
	"bytes"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/urfave/cli/v2"

	"github.com/user/vidsurface/pkg/adapters/rawcodec"
	"github.com/user/vidsurface/pkg/config"
	"github.com/user/vidsurface/pkg/frame"
)

// parsePlay runs the play command with args and returns the built config.
func parsePlay(t *testing.T, args ...string) (config.Config, error) {
	t.Helper()
	var (
		cfg config.Config
		err error
	)
	cmd := playCommand()
	cmd.Action = func(c *cli.Context) error {
		cfg, err = buildConfig(c)
		return nil
	}
	app := &cli.App{Name: "vidsurface", Commands: []*cli.Command{cmd}}
	if runErr := app.Run(append([]string{"vidsurface", "play"}, args...)); runErr != nil {
		t.Fatalf("app.Run failed: %v", runErr)
	}
	return cfg, err
}

func TestBuildConfigFromFlags(t *testing.T) {
	cfg, err := parsePlay(t,
		"--codec", "mjpeg",
		"--width", "320", "--height", "240", "--fps", "25",
		"--batch-size", "8", "--fast",
		"--view", "snapshot", "--no-overlay",
		"--metrics-addr", ":9191",
		"--log-format", "json",
		"clips/cam.mjpeg", "other/cam.mjpeg",
	)
	if err != nil {
		t.Fatalf("buildConfig failed: %v", err)
	}

	if cfg.BatchSize != 8 || cfg.Realtime || cfg.View.Mode != config.ViewSnapshot || cfg.View.Overlay {
		t.Errorf("flags not applied: %+v", cfg)
	}
	if !cfg.Metrics.Enabled || cfg.Metrics.Addr != ":9191" || cfg.LogFormat != "json" {
		t.Errorf("metrics/logging flags not applied: %+v", cfg)
	}
	if len(cfg.Streams) != 2 {
		t.Fatalf("expected 2 streams, got %d", len(cfg.Streams))
	}
	if cfg.Streams[0].ID != "cam" || cfg.Streams[1].ID != "cam-2" {
		t.Errorf("unexpected stream ids %q, %q", cfg.Streams[0].ID, cfg.Streams[1].ID)
	}
	s := cfg.Streams[0]
	if s.Codec != "mjpeg" || s.Width != 320 || s.Height != 240 || s.FPS != 25 || s.PixelFormat != "bgra" {
		t.Errorf("unexpected stream %+v", s)
	}
}

func TestBuildConfigMergesFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "vidsurface.yaml")
	yaml := "batch_size: 2\nstreams:\n  - id: cam\n    file: a.raw\n"
	if err := os.WriteFile(path, []byte(yaml), 0644); err != nil {
		t.Fatal(err)
	}

	cfg, err := parsePlay(t, "--config", path, "--batch-size", "6", "b/cam.raw")
	if err != nil {
		t.Fatalf("buildConfig failed: %v", err)
	}
	if cfg.BatchSize != 6 {
		t.Errorf("flag should override file, got batch size %d", cfg.BatchSize)
	}
	if len(cfg.Streams) != 2 || cfg.Streams[1].ID != "cam-2" {
		t.Errorf("expected file stream plus renamed argument stream, got %+v", cfg.Streams)
	}
}

func TestBuildConfigErrors(t *testing.T) {
	if _, err := parsePlay(t); err == nil {
		t.Error("expected error without streams")
	}
	if _, err := parsePlay(t, "--view", "hologram", "a.raw"); err == nil || !strings.Contains(err.Error(), "view.mode") {
		t.Errorf("expected view.mode validation error, got %v", err)
	}
	if _, err := parsePlay(t, "--config", "/nonexistent/vidsurface.yaml"); err == nil {
		t.Error("expected error for missing config file")
	}
}

// writeClip writes a raw stream of n 8x8 frames and returns its path.
func writeClip(t *testing.T, dir string, n int) string {
	t.Helper()
	var stream []byte
	for i := 0; i < n; i++ {
		b, _ := frame.New(frame.Format{Pixel: frame.FormatBGRA, Width: 8, Height: 8}, 0)
		data, err := rawcodec.Encode(b)
		b.Release()
		if err != nil {
			t.Fatal(err)
		}
		stream = append(stream, data...)
	}
	clip := filepath.Join(dir, "clip.raw")
	if err := os.WriteFile(clip, stream, 0644); err != nil {
		t.Fatal(err)
	}
	return clip
}

func TestPlayHeadless(t *testing.T) {
	dir := t.TempDir()
	clip := writeClip(t, dir, 3)
	summary := filepath.Join(dir, "summary.md")

	app := newApp()
	err := app.Run([]string{"vidsurface", "play", "--quiet", "--fast", "--view", "snapshot",
		"--snapshot-dir", filepath.Join(dir, "snaps"), "--snapshot-every", "1",
		"--width", "8", "--height", "8", "--summary", summary, clip})
	if err != nil {
		t.Fatalf("play failed: %v", err)
	}

	data, err := os.ReadFile(summary)
	if err != nil {
		t.Fatalf("summary not written: %v", err)
	}
	if !strings.Contains(string(data), "clip") {
		t.Errorf("summary does not mention the stream:\n%s", data)
	}
	snaps, _ := filepath.Glob(filepath.Join(dir, "snaps", "clip", "*.png"))
	if len(snaps) == 0 {
		t.Error("expected at least one snapshot")
	}
}

func TestPlayRecord(t *testing.T) {
	dir := t.TempDir()
	clip := writeClip(t, dir, 2)

	app := newApp()
	err := app.Run([]string{"vidsurface", "play", "--quiet", "--fast", "--view", "record",
		"--record-dir", filepath.Join(dir, "rec"), clip})
	if err != nil {
		t.Fatalf("play failed: %v", err)
	}

	files, _ := filepath.Glob(filepath.Join(dir, "rec", "clip", "*.raw"))
	if len(files) == 0 {
		t.Fatal("expected at least one recorded frame")
	}
	data, err := os.ReadFile(files[len(files)-1])
	if err != nil {
		t.Fatal(err)
	}
	f, err := rawcodec.ParseHeader(data)
	if err != nil {
		t.Fatalf("recorded frame is not raw: %v", err)
	}
	if f.Width != 8 || f.Height != 8 {
		t.Errorf("unexpected recorded format %s", f)
	}
}

func TestDetect(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "clip.mjpeg")
	if err := os.WriteFile(path, []byte{0xFF, 0xD8, 0xFF, 0xE0}, 0644); err != nil {
		t.Fatal(err)
	}

	var out bytes.Buffer
	app := newApp()
	app.Writer = &out
	if err := app.Run([]string{"vidsurface", "detect", path}); err != nil {
		t.Fatalf("detect failed: %v", err)
	}
	if !strings.Contains(out.String(), "mjpeg") {
		t.Errorf("expected mjpeg in output, got %q", out.String())
	}
}
