// Package decoder implements the per-stream decode session.
//
// A Session wraps a ports.Codec and enforces the stream contract: payloads
// arrive in timestamp order, outputs leave in strictly increasing
// presentation order, a malformed payload costs exactly that payload, and
// format changes are flagged on the first affected frame.
package decoder

import (
	"container/heap"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/user/vidsurface/pkg/frame"
	"github.com/user/vidsurface/pkg/ports"
)

// Config configures a Session.
type Config = ports.CodecConfig

// MaxReorderDepth bounds the reorder window.
const MaxReorderDepth = 16

// Stats is a snapshot of session counters.
type Stats struct {
	Submitted     uint64
	Decoded       uint64
	DecodeErrors  uint64
	FormatChanges uint64
	LateDrops     uint64
	Resets        uint64
}

// Session is a stateful decode context for one stream.
// All methods are safe for concurrent use; decoding itself is sequential.
type Session struct {
	mu     sync.Mutex
	codec  ports.Codec
	cfg    Config
	log    ports.Logger
	closed bool

	current frame.Format

	lastIn  time.Duration
	haveIn  bool
	lastOut time.Duration
	haveOut bool

	pending reorderQueue
	stats   Stats
}

// Open validates cfg and initializes the codec.
func Open(codec ports.Codec, cfg Config, log ports.Logger) (*Session, error) {
	if codec == nil {
		return nil, &ConfigurationError{Field: "codec", Err: errors.New("no codec backend")}
	}
	if cfg.Codec == "" || cfg.Codec == ports.CodecUnknown {
		return nil, &ConfigurationError{Field: "codec", Err: ports.ErrUnsupportedFormat}
	}
	if err := cfg.Format.Validate(); err != nil {
		return nil, &ConfigurationError{Field: "format", Err: err}
	}
	if cfg.FPS < 0 {
		return nil, &ConfigurationError{Field: "fps", Err: fmt.Errorf("negative frame rate %v", cfg.FPS)}
	}
	if cfg.ReorderDepth < 0 || cfg.ReorderDepth > MaxReorderDepth {
		return nil, &ConfigurationError{Field: "reorder_depth", Err: fmt.Errorf("must be within 0..%d, got %d", MaxReorderDepth, cfg.ReorderDepth)}
	}
	if cfg.FPS == 0 {
		cfg.FPS = ports.DefaultFPS
	}

	if err := codec.Open(cfg); err != nil {
		return nil, &ConfigurationError{Field: "codec", Err: err}
	}

	log.Debug("Session opened: %s %s", cfg.Codec, cfg.Format)
	return &Session{
		codec:   codec,
		cfg:     cfg,
		log:     log,
		current: cfg.Format,
	}, nil
}

// Submit feeds one encoded frame with an explicit presentation timestamp.
//
// It returns the frames that became ready, in strictly increasing PTS
// order. A codec that buffers internally may return nothing now and the
// frame later. When the payload is malformed the returned error is a
// *DecodeError and any frames that were already ready are still returned.
func (s *Session) Submit(payload []byte, pts time.Duration) ([]*frame.Buffer, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		return nil, ErrSessionClosed
	}
	if s.haveIn && pts <= s.lastIn {
		return nil, fmt.Errorf("%w: %v after %v", ErrOutOfOrder, pts, s.lastIn)
	}
	return s.submit(payload, pts)
}

// SubmitNext feeds one encoded frame and assigns it the next implicit
// timestamp: zero for the first payload, then one frame interval after
// the previous payload.
func (s *Session) SubmitNext(payload []byte) ([]*frame.Buffer, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		return nil, ErrSessionClosed
	}
	return s.submit(payload, s.nextTimestamp())
}

// NextTimestamp returns the timestamp SubmitNext would assign.
func (s *Session) NextTimestamp() time.Duration {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.nextTimestamp()
}

func (s *Session) nextTimestamp() time.Duration {
	if !s.haveIn {
		return 0
	}
	return s.lastIn + s.cfg.FrameInterval()
}

func (s *Session) submit(payload []byte, pts time.Duration) ([]*frame.Buffer, error) {
	s.lastIn, s.haveIn = pts, true
	s.stats.Submitted++

	decoded, err := s.codec.Decode(payload, pts)
	out := s.emit(decoded, false)
	if err != nil {
		s.stats.DecodeErrors++
		s.log.Warn("Skipping malformed payload at %v: %v", pts, err)
		if errors.Is(err, ports.ErrCodecState) {
			s.reset()
		}
		return out, &DecodeError{PTS: pts, Err: err}
	}
	return out, nil
}

// Flush drains the codec and the reorder window. Use it at end of stream.
func (s *Session) Flush() ([]*frame.Buffer, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		return nil, ErrSessionClosed
	}
	decoded, err := s.codec.Flush()
	out := s.emit(decoded, true)
	if err != nil {
		return out, fmt.Errorf("decoder: flush: %w", err)
	}
	return out, nil
}

// Close releases codec state and any frames held for reordering.
// It is idempotent; only the first call reports the codec's close error.
func (s *Session) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		return nil
	}
	s.closed = true
	for s.pending.Len() > 0 {
		heap.Pop(&s.pending).(*frame.Buffer).Release()
	}
	s.log.Debug("Session closed after %d payloads", s.stats.Submitted)
	return s.codec.Close()
}

// Closed reports whether Close has been called.
func (s *Session) Closed() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.closed
}

// Format returns the format of the most recent output (initially the
// configured format).
func (s *Session) Format() frame.Format {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.current
}

// Config returns the configuration the session was opened with.
func (s *Session) Config() Config {
	return s.cfg
}

// LastTimestamp returns the timestamp of the last emitted frame.
func (s *Session) LastTimestamp() (time.Duration, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.lastOut, s.haveOut
}

// Stats returns a snapshot of the session counters.
func (s *Session) Stats() Stats {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.stats
}

// emit pushes decoded frames through the reorder window and returns those
// that may leave it. With drain set the window is emptied.
func (s *Session) emit(decoded []*frame.Buffer, drain bool) []*frame.Buffer {
	for _, b := range decoded {
		if b != nil {
			heap.Push(&s.pending, b)
		}
	}

	var out []*frame.Buffer
	for s.pending.Len() > s.cfg.ReorderDepth || (drain && s.pending.Len() > 0) {
		b := heap.Pop(&s.pending).(*frame.Buffer)
		if s.haveOut && b.PTS <= s.lastOut {
			s.stats.LateDrops++
			s.log.Debug("Dropping late frame %v (last output %v)", b.PTS, s.lastOut)
			b.Release()
			continue
		}
		s.lastOut, s.haveOut = b.PTS, true

		if b.Format != s.current {
			b.FormatChanged = true
			s.stats.FormatChanges++
			s.log.Info("Format changed: %s -> %s", s.current, b.Format)
			s.current = b.Format
		}
		s.stats.Decoded++
		out = append(out, b)
	}
	return out
}

// reset reopens the codec after it reported lost state. Frames already in
// the reorder window survive.
func (s *Session) reset() {
	s.stats.Resets++
	if err := s.codec.Close(); err != nil {
		s.log.Debug("Codec close during reset: %v", err)
	}
	cfg := s.cfg
	cfg.Format = s.current
	if err := s.codec.Open(cfg); err != nil {
		s.log.Error("Failed to reset codec: %v", err)
		return
	}
	s.log.Warn("Codec reset after lost state")
}

// reorderQueue is a min-heap of frames ordered by PTS.
type reorderQueue []*frame.Buffer

func (q reorderQueue) Len() int            { return len(q) }
func (q reorderQueue) Less(i, j int) bool  { return q[i].PTS < q[j].PTS }
func (q reorderQueue) Swap(i, j int)       { q[i], q[j] = q[j], q[i] }
func (q *reorderQueue) Push(x interface{}) { *q = append(*q, x.(*frame.Buffer)) }
func (q *reorderQueue) Pop() interface{} {
	old := *q
	n := len(old)
	b := old[n-1]
	old[n-1] = nil
	*q = old[:n-1]
	return b
}
