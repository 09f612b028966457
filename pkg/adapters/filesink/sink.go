// Package filesink provides a headless view that records every displayed
// frame as a raw frame file.
package filesink

import (
	"context"
	"fmt"
	"path/filepath"
	"sync"
	"time"

	"github.com/user/vidsurface/pkg/adapters/rawcodec"
	"github.com/user/vidsurface/pkg/frame"
	"github.com/user/vidsurface/pkg/ports"
)

// Sink writes each distinct displayed frame to
// <dir>/<id>/frame-NNNNNN.raw. The files can be concatenated into a raw
// elementary stream and played back with the raw codec.
type Sink struct {
	id  string
	dir string
	fs  ports.FileSystem
	log ports.Logger

	mu     sync.Mutex
	source ports.FrameSource

	// draw context state
	last  *frame.Buffer
	saved int
}

// New creates a file sink for stream id rooted at baseDir.
func New(id, baseDir string, fs ports.FileSystem, log ports.Logger) *Sink {
	return &Sink{
		id:  id,
		dir: filepath.Join(baseDir, id),
		fs:  fs,
		log: log.WithComponent("record"),
	}
}

// Configure implements ports.Drawable.
func (s *Sink) Configure(format frame.Format) error {
	if err := s.fs.MkdirAll(s.dir); err != nil {
		return fmt.Errorf("filesink: %w", err)
	}
	s.log.Debug("View %s configured for %s", s.id, format)
	return nil
}

// Attach sets the source read on every tick.
func (s *Sink) Attach(src ports.FrameSource) {
	s.mu.Lock()
	s.source = src
	s.mu.Unlock()
}

// ID returns the stream id the sink belongs to.
func (s *Sink) ID() string {
	return s.id
}

// Saved returns the number of frames written.
func (s *Sink) Saved() int {
	return s.saved
}

// Tick writes the current frame if it was not written yet.
func (s *Sink) Tick() error {
	s.mu.Lock()
	src := s.source
	s.mu.Unlock()
	if src == nil {
		return nil
	}
	buf := src.CurrentFrame()
	if buf == nil || buf == s.last {
		return nil
	}

	data, err := rawcodec.Encode(buf)
	if err != nil {
		return fmt.Errorf("filesink: encode frame %v: %w", buf.PTS, err)
	}
	path := filepath.Join(s.dir, fmt.Sprintf("frame-%06d.raw", s.saved))
	if err := s.fs.WriteFile(path, data); err != nil {
		return fmt.Errorf("filesink: write %s: %w", path, err)
	}
	s.last = buf
	s.saved++
	return nil
}

// Flush writes the current frame if it has not been written yet.
func (s *Sink) Flush() error {
	return s.Tick()
}

// Run ticks every interval until ctx is done. Write failures are logged
// and do not stop the loop.
func (s *Sink) Run(ctx context.Context, interval time.Duration) error {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return nil
		case <-ticker.C:
			if err := s.Tick(); err != nil {
				s.log.Warn("Failed to record frame: %v", err)
			}
		}
	}
}

var _ ports.Drawable = (*Sink)(nil)
