package coordinator

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"time"

	"github.com/user/vidsurface/pkg/decoder"
	"github.com/user/vidsurface/pkg/frame"
	"github.com/user/vidsurface/pkg/metrics"
	"github.com/user/vidsurface/pkg/ports"
	"github.com/user/vidsurface/pkg/surface"
)

// Payload is one encoded frame. When Timed is false the stream assigns the
// next implicit timestamp.
type Payload struct {
	Data  []byte
	PTS   time.Duration
	Timed bool
}

// At returns a payload with an explicit timestamp.
func At(pts time.Duration, data []byte) Payload {
	return Payload{Data: data, PTS: pts, Timed: true}
}

// Next returns a payload that takes the next implicit timestamp.
func Next(data []byte) Payload {
	return Payload{Data: data}
}

// StreamStats is a snapshot of stream counters.
type StreamStats struct {
	State   State
	Decoder decoder.Stats

	Delivered     uint64
	RegistryMiss  uint64
	Detached      uint64
	PresentErrors uint64
	Superseded    uint64
}

// Dropped returns the number of decoded frames that never reached a surface.
func (s StreamStats) Dropped() uint64 {
	return s.RegistryMiss + s.Detached + s.PresentErrors
}

// Stream is one open decode session bound to the surface registered under
// the same id.
type Stream struct {
	id  string
	c   *Coordinator
	log ports.Logger

	// mu serializes decoding and guards the counters below.
	mu      sync.Mutex
	session *decoder.Session
	stats   StreamStats

	state atomic.Int32
}

// ID returns the stream id.
func (s *Stream) ID() string {
	return s.id
}

// State returns the current lifecycle state.
func (s *Stream) State() State {
	return State(s.state.Load())
}

// DecodeBatch decodes payloads in order and presents every resulting frame.
// The result has one slot per payload; a failed payload never aborts the
// rest of the batch. When ctx is cancelled the remaining payloads are not
// decoded and carry ctx.Err().
func (s *Stream) DecodeBatch(ctx context.Context, payloads []Payload) []error {
	errs := make([]error, len(payloads))
	for i, p := range payloads {
		if err := ctx.Err(); err != nil {
			for j := i; j < len(payloads); j++ {
				errs[j] = err
			}
			break
		}
		errs[i] = s.submit(p)
	}
	return errs
}

// Submit decodes a single payload.
func (s *Stream) Submit(p Payload) error {
	return s.submit(p)
}

func (s *Stream) submit(p Payload) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.State() == Closed {
		return ErrStreamClosed
	}
	if s.State() == Open {
		s.setState(Decoding)
	}

	var (
		out  []*frame.Buffer
		err  error
		late = s.session.Stats().LateDrops
	)
	if p.Timed {
		out, err = s.session.Submit(p.Data, p.PTS)
	} else {
		out, err = s.session.SubmitNext(p.Data)
	}

	var decErr *decoder.DecodeError
	if errors.As(err, &decErr) {
		s.c.metrics.DecodeError(s.id)
	}
	s.countLate(late)
	s.deliver(out)
	return err
}

// Flush drains frames still held by the decoder and presents them.
func (s *Stream) Flush() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.State() == Closed {
		return ErrStreamClosed
	}
	late := s.session.Stats().LateDrops
	out, err := s.session.Flush()
	s.countLate(late)
	s.deliver(out)
	return err
}

// Run decodes batches from in until in is closed or ctx is done. Decode
// failures are logged and counted; they do not stop the loop. When in is
// closed the decoder is flushed.
func (s *Stream) Run(ctx context.Context, in <-chan []Payload) error {
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case batch, ok := <-in:
			if !ok {
				if err := s.Flush(); err != nil && !errors.Is(err, ErrStreamClosed) {
					return err
				}
				return nil
			}
			for i, err := range s.DecodeBatch(ctx, batch) {
				switch {
				case err == nil:
				case errors.Is(err, ErrStreamClosed):
					return ErrStreamClosed
				case errors.Is(err, context.Canceled), errors.Is(err, context.DeadlineExceeded):
					return err
				default:
					s.log.Debug("Payload %d of batch failed: %v", i, err)
				}
			}
		}
	}
}

// Close closes the decode session and releases every held frame. It waits
// for an in-flight submit and is idempotent.
func (s *Stream) Close() error {
	s.mu.Lock()
	if s.State() == Closed {
		s.mu.Unlock()
		return nil
	}
	err := s.session.Close()
	s.setState(Closed)
	s.mu.Unlock()

	s.c.forget(s)
	s.c.metrics.StreamClosed()
	s.log.Info("Stream closed: %d delivered, %d dropped", s.Stats().Delivered, s.Stats().Dropped())
	return err
}

// Stats returns a snapshot of the stream counters.
func (s *Stream) Stats() StreamStats {
	s.mu.Lock()
	defer s.mu.Unlock()
	st := s.stats
	st.State = s.State()
	st.Decoder = s.session.Stats()
	return st
}

// Format returns the format of the most recently decoded frame.
func (s *Stream) Format() frame.Format {
	return s.session.Format()
}

// deliver presents decoded frames in order. Caller holds s.mu.
func (s *Stream) deliver(out []*frame.Buffer) {
	if len(out) > 0 {
		s.c.metrics.Decoded(s.id, len(out))
	}
	for _, buf := range out {
		if buf.FormatChanged {
			s.log.Debug("Format change to %s at %v", buf.Format, buf.PTS)
			s.setState(Reconfiguring)
		}

		// The registry lock is released before Present.
		surf, ok := s.c.registry.Lookup(s.id)
		if !ok {
			s.drop(buf, metrics.DropRegistryMiss)
			s.stats.RegistryMiss++
			continue
		}

		before := surf.Stats().Superseded
		err := surf.Present(buf)
		switch {
		case errors.Is(err, surface.ErrDetached):
			s.stats.Detached++
			s.c.metrics.Dropped(s.id, metrics.DropDetached)
			continue
		case err != nil:
			s.stats.PresentErrors++
			s.c.metrics.Dropped(s.id, metrics.DropPresent)
			s.log.Warn("Failed to present frame %v: %v", buf.PTS, err)
			continue
		}

		s.stats.Delivered++
		s.c.metrics.Presented(s.id)
		if n := surf.Stats().Superseded - before; n > 0 {
			s.stats.Superseded += n
			s.c.metrics.Superseded(s.id, n)
		}
		if s.State() == Reconfiguring {
			s.setState(Decoding)
		}
	}
}

// countLate records frames the session dropped as late since it reported
// before.
func (s *Stream) countLate(before uint64) {
	for n := s.session.Stats().LateDrops; n > before; before++ {
		s.c.metrics.Dropped(s.id, metrics.DropLate)
	}
}

func (s *Stream) drop(buf *frame.Buffer, reason string) {
	s.log.Debug("Dropping frame %v: %s", buf.PTS, reason)
	buf.Release()
	s.c.metrics.Dropped(s.id, reason)
}

func (s *Stream) setState(to State) {
	from := State(s.state.Swap(int32(to)))
	if from == to {
		return
	}
	s.log.Debug("Stream state %s -> %s", from, to)
	s.c.notify(StateChange{Stream: s.id, From: from, To: to})
}
