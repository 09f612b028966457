// Package snapshotview provides a headless view that periodically writes
// the displayed frame of a surface to PNG files.
package snapshotview

import (
	"context"
	"fmt"
	"image"
	"image/color"
	"path/filepath"
	"sync"
	"time"

	"github.com/user/vidsurface/pkg/frame"
	"github.com/user/vidsurface/pkg/ports"
)

const overlayHeight = 20

// Options configures a View.
type Options struct {
	Dir   string
	Every int     // draw ticks between snapshots (default: 1)
	Scale float64 // output scale (default: 1)

	Overlay    bool
	Background color.Color
	TextColor  color.Color
	Accent     color.Color
	FontPath   string
	FontSize   float64
}

// View implements ports.Drawable. Configure is called from the decode
// context; Tick runs in the draw context.
type View struct {
	id       string
	fs       ports.FileSystem
	renderer ports.Renderer
	log      ports.Logger
	opts     Options

	mu     sync.Mutex
	format frame.Format
	source ports.FrameSource

	// draw context state
	ticks     int
	saved     int
	lastSaved *frame.Buffer
}

// New creates a snapshot view for stream id.
func New(id string, fs ports.FileSystem, renderer ports.Renderer, opts Options, log ports.Logger) *View {
	if opts.Every < 1 {
		opts.Every = 1
	}
	if opts.Scale <= 0 {
		opts.Scale = 1
	}
	if opts.Background == nil {
		opts.Background = color.Black
	}
	if opts.TextColor == nil {
		opts.TextColor = color.White
	}
	if opts.Accent == nil {
		opts.Accent = color.RGBA{R: 0x4a, G: 0xde, B: 0x80, A: 255}
	}
	if opts.FontSize == 0 {
		opts.FontSize = 12
	}
	return &View{
		id:       id,
		fs:       fs,
		renderer: renderer,
		log:      log.WithComponent("snapshot"),
		opts:     opts,
	}
}

// Configure implements ports.Drawable.
func (v *View) Configure(format frame.Format) error {
	v.mu.Lock()
	defer v.mu.Unlock()
	if err := v.fs.MkdirAll(v.dir()); err != nil {
		return fmt.Errorf("snapshotview: %w", err)
	}
	v.log.Debug("View %s configured for %s", v.id, format)
	v.format = format
	return nil
}

// Attach sets the source read on every tick.
func (v *View) Attach(src ports.FrameSource) {
	v.mu.Lock()
	v.source = src
	v.mu.Unlock()
}

// Format returns the format the view was last configured for.
func (v *View) Format() frame.Format {
	v.mu.Lock()
	defer v.mu.Unlock()
	return v.format
}

// ID returns the stream id the view belongs to.
func (v *View) ID() string {
	return v.id
}

// Saved returns the number of snapshots written.
func (v *View) Saved() int {
	return v.saved
}

// Tick performs one draw cycle: it reads the current frame and, every
// Options.Every ticks, writes it out unless it was already written.
func (v *View) Tick() error {
	v.mu.Lock()
	src := v.source
	v.mu.Unlock()
	if src == nil {
		return nil
	}

	buf := src.CurrentFrame()
	if buf == nil {
		return nil
	}
	v.ticks++
	if v.ticks%v.opts.Every != 0 {
		return nil
	}
	return v.save(buf)
}

// Flush writes the current frame if it has not been written yet. Call it
// from the draw context after the last Tick.
func (v *View) Flush() error {
	v.mu.Lock()
	src := v.source
	v.mu.Unlock()
	if src == nil {
		return nil
	}
	if buf := src.CurrentFrame(); buf != nil {
		return v.save(buf)
	}
	return nil
}

func (v *View) save(buf *frame.Buffer) error {
	if buf == v.lastSaved {
		return nil
	}
	img := v.render(buf)
	data, err := v.renderer.EncodeImage(img, ports.FormatPNG, 0)
	if err != nil {
		return fmt.Errorf("snapshotview: encode frame %v: %w", buf.PTS, err)
	}
	path := filepath.Join(v.dir(), fmt.Sprintf("frame-%06d.png", v.saved))
	if err := v.fs.WriteFile(path, data); err != nil {
		return fmt.Errorf("snapshotview: write %s: %w", path, err)
	}
	v.lastSaved = buf
	v.saved++
	v.log.Debug("Saved snapshot %s", path)
	return nil
}

// Run ticks every interval until ctx is done. Write failures are logged
// and do not stop the loop.
func (v *View) Run(ctx context.Context, interval time.Duration) error {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return nil
		case <-ticker.C:
			if err := v.Tick(); err != nil {
				v.log.Warn("Failed to save snapshot: %v", err)
			}
		}
	}
}

func (v *View) dir() string {
	return filepath.Join(v.opts.Dir, v.id)
}

func (v *View) render(buf *frame.Buffer) image.Image {
	var img image.Image = buf.ToRGBA()
	w := int(float64(buf.Width()) * v.opts.Scale)
	h := int(float64(buf.Height()) * v.opts.Scale)
	if w != buf.Width() || h != buf.Height() {
		img = v.renderer.ResizeImage(img, w, h)
	}
	if !v.opts.Overlay {
		return img
	}

	canvas := v.renderer.CreateCanvas(w, h+overlayHeight, v.opts.Background)
	canvas.DrawImage(img, 0, 0)
	canvas.DrawRect(0, h, 4, overlayHeight, v.opts.Accent)
	label := fmt.Sprintf("%s  %s  %s", v.id, formatPTS(buf.PTS), buf.Format)
	canvas.DrawText(label, 8, h+4, ports.TextStyle{
		FontPath: v.opts.FontPath,
		FontSize: v.opts.FontSize,
		Color:    v.opts.TextColor,
	})
	return canvas.ToImage()
}

// formatPTS renders a timestamp as mm:ss.mmm.
func formatPTS(d time.Duration) string {
	ms := d.Milliseconds()
	return fmt.Sprintf("%02d:%02d.%03d", ms/60000, (ms/1000)%60, ms%1000)
}

var _ ports.Drawable = (*View)(nil)
