package snapshotview

import (
	"bytes"
	"image"
	"image/color"
	"image/png"
	"strings"
	"testing"
	"time"

	"github.com/user/vidsurface/pkg/adapters/ggrenderer"
	"github.com/user/vidsurface/pkg/adapters/logger"
	"github.com/user/vidsurface/pkg/frame"
	"github.com/user/vidsurface/pkg/mocks"
	"github.com/user/vidsurface/pkg/ports"
	"github.com/user/vidsurface/pkg/surface"
)

var small = frame.Format{Pixel: frame.FormatBGRA, Width: 32, Height: 16}

func present(t *testing.T, s *surface.Surface, pts time.Duration) {
	t.Helper()
	b, err := frame.New(small, pts)
	if err != nil {
		t.Fatal(err)
	}
	if err := s.Present(b); err != nil {
		t.Fatalf("Present failed: %v", err)
	}
}

func TestView_WritesSnapshots(t *testing.T) {
	fs := mocks.NewFileSystem()
	view := New("cam0", fs, ggrenderer.New(), Options{Dir: "out", Every: 2}, logger.NewNoop())
	surf := surface.New("cam0", view)
	view.Attach(surf)

	if err := view.Tick(); err != nil {
		t.Fatalf("Tick on empty surface failed: %v", err)
	}

	for i := 0; i < 4; i++ {
		present(t, surf, time.Duration(i)*time.Second)
		if err := view.Tick(); err != nil {
			t.Fatalf("Tick failed: %v", err)
		}
	}

	if view.Saved() != 2 {
		t.Fatalf("expected 2 snapshots, got %d", view.Saved())
	}
	data, ok := fs.GetFile("out/cam0/frame-000001.png")
	if !ok {
		t.Fatalf("missing second snapshot, files: %v", len(fs.GetAllFiles()))
	}
	img, err := png.Decode(bytes.NewReader(data))
	if err != nil {
		t.Fatalf("snapshot is not a PNG: %v", err)
	}
	if img.Bounds().Dx() != 32 || img.Bounds().Dy() != 16 {
		t.Errorf("unexpected snapshot size %v", img.Bounds())
	}
	if view.Format() != small {
		t.Errorf("expected view configured for %s, got %s", small, view.Format())
	}
	if exists, _ := fs.Exists("out/cam0"); !exists {
		t.Error("expected snapshot directory to be created on configure")
	}
}

func TestView_SkipsFrameAlreadySaved(t *testing.T) {
	fs := mocks.NewFileSystem()
	view := New("cam0", fs, ggrenderer.New(), Options{Dir: "out"}, logger.NewNoop())
	surf := surface.New("cam0", view)
	view.Attach(surf)

	present(t, surf, 0)
	view.Tick()
	view.Tick()
	view.Tick()
	if view.Saved() != 1 {
		t.Errorf("expected the unchanged frame to be saved once, got %d", view.Saved())
	}
}

func TestView_OverlayAndScale(t *testing.T) {
	var canvas *mocks.Canvas
	renderer := &mocks.Renderer{}
	renderer.CreateCanvasFunc = func(w, h int, bg color.Color) ports.Canvas {
		canvas = &mocks.Canvas{}
		if w != 64 || h != 32+overlayHeight {
			t.Errorf("unexpected canvas size %dx%d", w, h)
		}
		return canvas
	}
	var resized [2]int
	renderer.ResizeImageFunc = func(img image.Image, w, h int) image.Image {
		resized = [2]int{w, h}
		return image.NewRGBA(image.Rect(0, 0, w, h))
	}

	view := New("cam0", mocks.NewFileSystem(), renderer, Options{Dir: "out", Overlay: true, Scale: 2}, logger.NewNoop())
	surf := surface.New("cam0", view)
	view.Attach(surf)

	present(t, surf, 61*time.Second+5*time.Millisecond)
	if err := view.Tick(); err != nil {
		t.Fatalf("Tick failed: %v", err)
	}
	if resized != [2]int{64, 32} {
		t.Errorf("expected frame scaled to 64x32, got %v", resized)
	}
	if canvas == nil || len(canvas.Texts) != 1 {
		t.Fatal("expected one overlay label")
	}
	if !strings.Contains(canvas.Texts[0], "cam0  01:01.005  32x16 bgra") {
		t.Errorf("unexpected label %q", canvas.Texts[0])
	}
}

func TestView_FlushWritesLastFrame(t *testing.T) {
	fs := mocks.NewFileSystem()
	view := New("cam0", fs, ggrenderer.New(), Options{Dir: "out", Every: 100}, logger.NewNoop())
	surf := surface.New("cam0", view)
	view.Attach(surf)

	present(t, surf, 0)
	if err := view.Tick(); err != nil {
		t.Fatal(err)
	}
	if view.Saved() != 0 {
		t.Fatalf("expected no snapshot before Every ticks, got %d", view.Saved())
	}

	if err := view.Flush(); err != nil {
		t.Fatalf("Flush failed: %v", err)
	}
	if err := view.Flush(); err != nil {
		t.Fatalf("second Flush failed: %v", err)
	}
	if view.Saved() != 1 {
		t.Errorf("expected exactly one snapshot, got %d", view.Saved())
	}
}
