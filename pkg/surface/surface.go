// Package surface implements the render surface a stream presents into.
//
// A Surface sits between two execution contexts. The decode context calls
// Present; the host's draw tick calls CurrentFrame. The handoff is an
// exchange on an atomic pointer, so the draw tick never blocks and always
// sees a complete buffer. At most one undisplayed buffer is retained; a
// newer Present supersedes and releases it.
package surface

import (
	"errors"
	"fmt"
	"sync"
	"sync/atomic"

	"github.com/user/vidsurface/pkg/adapters/logger"
	"github.com/user/vidsurface/pkg/frame"
	"github.com/user/vidsurface/pkg/ports"
)

// ErrDetached is returned by Present after Close.
var ErrDetached = errors.New("surface: detached")

// SurfaceMismatchError describes a buffer whose format differs from the
// format the drawable target is configured for. It is reported through
// layout events; the surface reconfigures the target instead of failing.
type SurfaceMismatchError struct {
	ID   string
	Want frame.Format
	Got  frame.Format
}

func (e *SurfaceMismatchError) Error() string {
	return fmt.Sprintf("surface %s: buffer %s does not match target %s", e.ID, e.Got, e.Want)
}

// LayoutEvent is emitted once per target reconfiguration.
type LayoutEvent struct {
	SurfaceID string
	Format    frame.Format

	// Initial is set for the first configuration of an unconfigured target.
	Initial bool

	// Mismatch is the format mismatch that caused the reconfiguration.
	Mismatch *SurfaceMismatchError
}

// Stats is a snapshot of surface counters.
type Stats struct {
	Presented  uint64
	Superseded uint64
	Displayed  uint64

	// Reconfigurations counts format changes after the first configuration.
	Reconfigurations uint64
}

// Option configures a Surface.
type Option func(*Surface)

// WithFormat declares the format the target is already configured for.
func WithFormat(f frame.Format) Option {
	return func(s *Surface) {
		s.format = f
		s.configured = true
	}
}

// WithLayoutListener registers a callback for layout events. Listeners run
// in registration order on the presenting goroutine.
func WithLayoutListener(fn func(LayoutEvent)) Option {
	return func(s *Surface) {
		s.onLayout = append(s.onLayout, fn)
	}
}

// WithLogger sets the surface logger.
func WithLogger(log ports.Logger) Option {
	return func(s *Surface) {
		s.log = log
	}
}

// Surface holds at most one pending and one displayed buffer for a
// drawable target.
type Surface struct {
	id       string
	target   ports.Drawable
	log      ports.Logger
	onLayout []func(LayoutEvent)

	pending atomic.Pointer[frame.Buffer]
	closed  atomic.Bool

	// front is owned by the draw context.
	front *frame.Buffer

	// cfgMu serializes target configuration between presenters.
	cfgMu      sync.Mutex
	format     frame.Format
	configured bool

	presented  atomic.Uint64
	superseded atomic.Uint64
	displayed  atomic.Uint64
	reconfigs  atomic.Uint64
}

// New creates a surface for the given target.
func New(id string, target ports.Drawable, opts ...Option) *Surface {
	s := &Surface{
		id:     id,
		target: target,
		log:    logger.NewNoop(),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// ID returns the identity the surface is registered under.
func (s *Surface) ID() string {
	return s.id
}

// Present installs buf as the newest frame. Ownership of buf passes to the
// surface in every case: on error it has already been released.
func (s *Surface) Present(buf *frame.Buffer) error {
	if buf == nil {
		return nil
	}
	if s.closed.Load() {
		buf.Release()
		return ErrDetached
	}
	if err := s.configure(buf.Format); err != nil {
		buf.Release()
		return err
	}

	s.presented.Add(1)
	if old := s.pending.Swap(buf); old != nil {
		s.superseded.Add(1)
		old.Release()
	}

	// Close may have drained pending between the check above and the swap.
	if s.closed.Load() {
		if late := s.pending.Swap(nil); late != nil {
			late.Release()
		}
		return ErrDetached
	}
	return nil
}

// CurrentFrame returns the buffer to draw on this tick, or nil when nothing
// has been presented yet. It must only be called from the draw context.
// The returned buffer stays valid until the next CurrentFrame call.
func (s *Surface) CurrentFrame() *frame.Buffer {
	if s.closed.Load() {
		if late := s.pending.Swap(nil); late != nil {
			late.Release()
		}
		if s.front != nil {
			s.front.Release()
			s.front = nil
		}
		return nil
	}

	if next := s.pending.Swap(nil); next != nil {
		if s.front != nil {
			s.front.Release()
		}
		s.front = next
		s.displayed.Add(1)
	}
	return s.front
}

// Prepare configures the target for f unless it is already configured.
// The coordinator calls it with the format a stream was opened with, so
// that a first frame in another format counts as a reconfiguration.
func (s *Surface) Prepare(f frame.Format) error {
	s.cfgMu.Lock()
	done := s.configured
	s.cfgMu.Unlock()
	if done {
		return nil
	}
	return s.configure(f)
}

// Close detaches the surface. Subsequent presents fail with ErrDetached.
// The displayed buffer is released by the draw context on its next tick.
func (s *Surface) Close() {
	if s.closed.Swap(true) {
		return
	}
	if b := s.pending.Swap(nil); b != nil {
		b.Release()
	}
	s.log.Debug("Surface %s detached", s.id)
}

// Closed reports whether the surface has been detached.
func (s *Surface) Closed() bool {
	return s.closed.Load()
}

// Format returns the format the target is configured for.
func (s *Surface) Format() (frame.Format, bool) {
	s.cfgMu.Lock()
	defer s.cfgMu.Unlock()
	return s.format, s.configured
}

// Stats returns a snapshot of the surface counters.
func (s *Surface) Stats() Stats {
	return Stats{
		Presented:        s.presented.Load(),
		Superseded:       s.superseded.Load(),
		Displayed:        s.displayed.Load(),
		Reconfigurations: s.reconfigs.Load(),
	}
}

func (s *Surface) configure(f frame.Format) error {
	s.cfgMu.Lock()
	if s.configured && s.format == f {
		s.cfgMu.Unlock()
		return nil
	}

	ev := LayoutEvent{SurfaceID: s.id, Format: f, Initial: !s.configured}
	if s.configured {
		ev.Mismatch = &SurfaceMismatchError{ID: s.id, Want: s.format, Got: f}
	}
	if s.target != nil {
		if err := s.target.Configure(f); err != nil {
			s.cfgMu.Unlock()
			return fmt.Errorf("surface %s: configure target for %s: %w", s.id, f, err)
		}
	}
	s.format, s.configured = f, true
	s.cfgMu.Unlock()

	if ev.Mismatch != nil {
		s.reconfigs.Add(1)
		s.log.Info("Surface %s reconfigured: %v", s.id, ev.Mismatch)
	}
	for _, fn := range s.onLayout {
		fn(ev)
	}
	return nil
}
