// Package ebitenview displays surfaces in a desktop window using Ebitengine.
//
// Each stream gets a Tile. Tiles are laid out in a grid; every ebiten draw
// tick reads the current frame of each tile's source, which makes Draw the
// draw context of the pipeline.
package ebitenview

import (
	"fmt"
	"math"
	"sync"

	"github.com/hajimehoshi/ebiten/v2"
	"github.com/hajimehoshi/ebiten/v2/ebitenutil"
	"github.com/hajimehoshi/ebiten/v2/inpututil"

	"github.com/user/vidsurface/pkg/frame"
	"github.com/user/vidsurface/pkg/ports"
)

// Options configures a Window.
type Options struct {
	Title   string
	Scale   float64
	Columns int // 0 = square-ish grid
	Overlay bool
}

// Window is an ebiten.Game that draws one tile per stream.
type Window struct {
	opts Options
	log  ports.Logger

	mu    sync.Mutex
	tiles []*Tile

	closed bool
}

// New creates a window. Call Run from the main goroutine.
func New(opts Options, log ports.Logger) *Window {
	if opts.Scale <= 0 {
		opts.Scale = 1
	}
	if opts.Title == "" {
		opts.Title = "vidsurface"
	}
	return &Window{opts: opts, log: log.WithComponent("window")}
}

// AddTile creates the drawable target for stream id.
func (w *Window) AddTile(id string) *Tile {
	t := &Tile{id: id, log: w.log}
	w.mu.Lock()
	w.tiles = append(w.tiles, t)
	w.mu.Unlock()
	return t
}

// Close makes the game loop exit on its next update.
func (w *Window) Close() {
	w.mu.Lock()
	w.closed = true
	w.mu.Unlock()
}

// Run opens the window and blocks until it is closed.
func (w *Window) Run() error {
	cw, ch := w.contentSize()
	ebiten.SetWindowSize(int(float64(cw)*w.opts.Scale), int(float64(ch)*w.opts.Scale))
	ebiten.SetWindowTitle(w.opts.Title)
	ebiten.SetWindowResizingMode(ebiten.WindowResizingModeEnabled)
	w.log.Info("Opening window %q", w.opts.Title)
	err := ebiten.RunGame(w)
	if err == ebiten.Termination {
		return nil
	}
	return err
}

// --- ebiten.Game interface ---

func (w *Window) Update() error {
	w.mu.Lock()
	closed := w.closed
	w.mu.Unlock()
	if closed || inpututil.IsKeyJustPressed(ebiten.KeyEscape) || inpututil.IsKeyJustPressed(ebiten.KeyQ) {
		return ebiten.Termination
	}
	if inpututil.IsKeyJustPressed(ebiten.KeyO) {
		w.mu.Lock()
		w.opts.Overlay = !w.opts.Overlay
		w.mu.Unlock()
	}
	return nil
}

func (w *Window) Draw(screen *ebiten.Image) {
	w.mu.Lock()
	tiles := append([]*Tile(nil), w.tiles...)
	overlay := w.opts.Overlay
	w.mu.Unlock()

	cols, rows := grid(len(tiles), w.opts.Columns)
	if cols == 0 {
		return
	}
	sw, sh := screen.Bounds().Dx(), screen.Bounds().Dy()
	cellW, cellH := float64(sw)/float64(cols), float64(sh)/float64(rows)

	for i, t := range tiles {
		img, label := t.draw()
		if img == nil {
			continue
		}
		fw, fh := float64(img.Bounds().Dx()), float64(img.Bounds().Dy())
		scale, ox, oy := aspectFitTransform(cellW, cellH, fw, fh)

		op := &ebiten.DrawImageOptions{}
		op.GeoM.Scale(scale, scale)
		op.GeoM.Translate(float64(i%cols)*cellW+ox, float64(i/cols)*cellH+oy)
		screen.DrawImage(img, op)

		if overlay {
			ebitenutil.DebugPrintAt(screen, label, int(float64(i%cols)*cellW)+4, int(float64(i/cols)*cellH)+4)
		}
	}
}

func (w *Window) Layout(outsideWidth, outsideHeight int) (int, int) {
	return outsideWidth, outsideHeight
}

func (w *Window) contentSize() (int, int) {
	w.mu.Lock()
	defer w.mu.Unlock()
	cols, rows := grid(len(w.tiles), w.opts.Columns)
	cw, ch := 640, 368
	for _, t := range w.tiles {
		if f := t.Format(); f.Width > 0 {
			cw, ch = f.Width, f.Height
			break
		}
	}
	if cols == 0 {
		return cw, ch
	}
	return cw * cols, ch * rows
}

// Tile is the drawable target of one stream.
type Tile struct {
	id  string
	log ports.Logger

	mu     sync.Mutex
	format frame.Format
	source ports.FrameSource

	// draw context state
	img  *ebiten.Image
	last *frame.Buffer
}

// Configure implements ports.Drawable. The texture itself is reallocated
// on the next draw tick.
func (t *Tile) Configure(format frame.Format) error {
	t.mu.Lock()
	t.format = format
	t.mu.Unlock()
	t.log.Debug("Tile %s configured for %s", t.id, format)
	return nil
}

// Format returns the format the tile was last configured for.
func (t *Tile) Format() frame.Format {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.format
}

// Attach sets the source read on every draw tick.
func (t *Tile) Attach(src ports.FrameSource) {
	t.mu.Lock()
	t.source = src
	t.mu.Unlock()
}

// draw uploads the current frame if it changed and returns the texture.
func (t *Tile) draw() (*ebiten.Image, string) {
	t.mu.Lock()
	src := t.source
	t.mu.Unlock()
	if src == nil {
		return nil, ""
	}

	buf := src.CurrentFrame()
	if buf == nil {
		t.last = nil
		return nil, ""
	}
	if buf != t.last {
		rgba := buf.ToRGBA()
		if t.img == nil || t.img.Bounds().Dx() != buf.Width() || t.img.Bounds().Dy() != buf.Height() {
			if t.img != nil {
				t.img.Deallocate()
			}
			t.img = ebiten.NewImage(buf.Width(), buf.Height())
		}
		t.img.WritePixels(rgba.Pix)
		t.last = buf
	}
	return t.img, fmt.Sprintf("%s %s %v", t.id, buf.Format, buf.PTS)
}

var _ ports.Drawable = (*Tile)(nil)

// grid returns the column and row count for n tiles.
func grid(n, columns int) (cols, rows int) {
	if n == 0 {
		return 0, 0
	}
	cols = columns
	if cols <= 0 {
		cols = int(math.Ceil(math.Sqrt(float64(n))))
	}
	if cols > n {
		cols = n
	}
	rows = (n + cols - 1) / cols
	return cols, rows
}

// aspectFitTransform returns scale and offsets to fit frame into view with letterboxing.
func aspectFitTransform(viewW, viewH, frameW, frameH float64) (scale, offsetX, offsetY float64) {
	scale = math.Min(viewW/frameW, viewH/frameH)
	offsetX = (viewW - frameW*scale) / 2
	offsetY = (viewH - frameH*scale) / 2
	return
}
