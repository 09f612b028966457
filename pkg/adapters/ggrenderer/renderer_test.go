package ggrenderer

import (
	"bytes"
	"image"
	"image/color"
	"image/jpeg"
	"image/png"
	"testing"

	"github.com/user/vidsurface/pkg/ports"
)

func TestRenderer_CreateCanvas(t *testing.T) {
	canvas := New().CreateCanvas(64, 32, color.RGBA{R: 255, A: 255})
	img := canvas.ToImage()

	if img.Bounds().Dx() != 64 || img.Bounds().Dy() != 32 {
		t.Fatalf("unexpected canvas size %v", img.Bounds())
	}
	r, g, b, _ := img.At(10, 10).RGBA()
	if r>>8 != 255 || g != 0 || b != 0 {
		t.Errorf("expected red background, got %d,%d,%d", r>>8, g>>8, b>>8)
	}
}

func TestRenderer_EncodePNG(t *testing.T) {
	src := image.NewRGBA(image.Rect(0, 0, 8, 8))
	src.Set(1, 1, color.RGBA{G: 200, A: 255})

	data, err := New().EncodeImage(src, ports.FormatPNG, 0)
	if err != nil {
		t.Fatalf("EncodeImage failed: %v", err)
	}
	img, err := png.Decode(bytes.NewReader(data))
	if err != nil {
		t.Fatalf("output is not a PNG: %v", err)
	}
	if _, g, _, _ := img.At(1, 1).RGBA(); g>>8 != 200 {
		t.Errorf("pixel lost in PNG round trip: %d", g>>8)
	}
}

func TestRenderer_EncodeJPEG(t *testing.T) {
	src := image.NewRGBA(image.Rect(0, 0, 16, 16))
	data, err := New().EncodeImage(src, ports.FormatJPEG, 80)
	if err != nil {
		t.Fatalf("EncodeImage failed: %v", err)
	}
	if _, err := jpeg.Decode(bytes.NewReader(data)); err != nil {
		t.Errorf("output is not a JPEG: %v", err)
	}
	if _, err := New().EncodeImage(src, ports.ImageFormat(99), 0); err == nil {
		t.Error("expected error for unknown format")
	}
}

func TestRenderer_ResizeImage(t *testing.T) {
	src := image.NewRGBA(image.Rect(0, 0, 100, 50))
	for _, size := range [][2]int{{50, 25}, {20, 10}, {200, 100}} {
		out := New().ResizeImage(src, size[0], size[1])
		if out.Bounds().Dx() != size[0] || out.Bounds().Dy() != size[1] {
			t.Errorf("resize to %v gave %v", size, out.Bounds())
		}
	}
}

func TestCanvas_DrawRectAndImage(t *testing.T) {
	canvas := New().CreateCanvas(40, 40, color.Black)
	canvas.DrawRect(0, 0, 10, 10, color.RGBA{B: 255, A: 255})

	tile := image.NewRGBA(image.Rect(0, 0, 5, 5))
	for i := range tile.Pix {
		tile.Pix[i] = 255
	}
	canvas.DrawImage(tile, 20, 20)

	img := canvas.ToImage()
	if _, _, b, _ := img.At(5, 5).RGBA(); b>>8 != 255 {
		t.Error("expected blue rectangle")
	}
	if r, _, _, _ := img.At(22, 22).RGBA(); r>>8 != 255 {
		t.Error("expected white tile")
	}
	if r, _, _, _ := img.At(30, 30).RGBA(); r != 0 {
		t.Error("expected untouched background")
	}
}

func TestCanvas_DrawText(t *testing.T) {
	canvas := New().CreateCanvas(120, 30, color.Black)
	canvas.DrawText("cam0 00:01.000", 2, 2, ports.TextStyle{Color: color.White})

	img := canvas.ToImage()
	lit := 0
	for y := 0; y < 30; y++ {
		for x := 0; x < 120; x++ {
			if r, _, _, _ := img.At(x, y).RGBA(); r > 0 {
				lit++
			}
		}
	}
	if lit == 0 {
		t.Error("expected text pixels to be drawn")
	}

	// A missing font file falls back to the built-in face.
	canvas.DrawText("x", 2, 2, ports.TextStyle{FontPath: "/nonexistent.ttf", FontSize: 12})
}
