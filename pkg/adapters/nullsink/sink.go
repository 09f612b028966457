// Package nullsink provides a headless view that consumes displayed frames
// without drawing them.
package nullsink

import (
	"context"
	"sync"
	"time"

	"github.com/user/vidsurface/pkg/frame"
	"github.com/user/vidsurface/pkg/ports"
)

// Sink is a no-op implementation of ports.Drawable. It reads the current
// frame on every tick so that surfaces behave as they would under a real
// draw loop, and counts the distinct frames it saw.
type Sink struct {
	id string

	mu         sync.Mutex
	source     ports.FrameSource
	configured int

	// draw context state
	last  *frame.Buffer
	shown int
}

// New creates a null sink for stream id.
func New(id string) *Sink {
	return &Sink{id: id}
}

// Configure implements ports.Drawable.
func (s *Sink) Configure(format frame.Format) error {
	s.mu.Lock()
	s.configured++
	s.mu.Unlock()
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

// Configured returns how many times Configure was called.
func (s *Sink) Configured() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.configured
}

// Saved returns the number of distinct frames seen.
func (s *Sink) Saved() int {
	return s.shown
}

// Tick reads the current frame.
func (s *Sink) Tick() error {
	s.mu.Lock()
	src := s.source
	s.mu.Unlock()
	if src == nil {
		return nil
	}
	if buf := src.CurrentFrame(); buf != nil && buf != s.last {
		s.last = buf
		s.shown++
	}
	return nil
}

// Flush performs a final tick.
func (s *Sink) Flush() error {
	return s.Tick()
}

// Run ticks every interval until ctx is done.
func (s *Sink) Run(ctx context.Context, interval time.Duration) error {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return nil
		case <-ticker.C:
			s.Tick()
		}
	}
}

var _ ports.Drawable = (*Sink)(nil)
