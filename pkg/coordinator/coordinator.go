// Package coordinator routes decoded frames from decode sessions to the
// render surfaces registered for their streams.
package coordinator

import (
	"errors"
	"fmt"
	"sync"

	"github.com/user/vidsurface/pkg/adapters/logger"
	"github.com/user/vidsurface/pkg/decoder"
	"github.com/user/vidsurface/pkg/frame"
	"github.com/user/vidsurface/pkg/metrics"
	"github.com/user/vidsurface/pkg/ports"
	"github.com/user/vidsurface/pkg/registry"
	"github.com/user/vidsurface/pkg/surface"
)

var (
	// ErrStreamClosed is reported for payloads submitted to a closed stream.
	ErrStreamClosed = errors.New("coordinator: stream closed")

	// ErrNotOpen is returned for operations on a stream id that has no open stream.
	ErrNotOpen = errors.New("coordinator: stream not open")

	// ErrStreamExists is returned by OpenStream for an id that is already open.
	ErrStreamExists = errors.New("coordinator: stream already open")

	// ErrCoordinatorClosed is returned after Close.
	ErrCoordinatorClosed = errors.New("coordinator: closed")
)

// CodecFactory creates a codec backend for a payload format.
type CodecFactory func(name ports.CodecName) (ports.Codec, error)

// StateChange describes one stream state transition.
type StateChange struct {
	Stream string
	From   State
	To     State
}

// Option configures a Coordinator.
type Option func(*Coordinator)

// WithLogger sets the logger.
func WithLogger(log ports.Logger) Option {
	return func(c *Coordinator) { c.log = log }
}

// WithMetrics sets the metrics sink.
func WithMetrics(m *metrics.Metrics) Option {
	return func(c *Coordinator) { c.metrics = m }
}

// WithStateListener registers a callback for stream state transitions.
// It runs on the goroutine that caused the transition and must not call
// back into the stream.
func WithStateListener(fn func(StateChange)) Option {
	return func(c *Coordinator) { c.onState = append(c.onState, fn) }
}

// WithRegistry shares an existing surface registry.
func WithRegistry(r *registry.Registry) Option {
	return func(c *Coordinator) { c.registry = r }
}

// Coordinator owns the surface registry and the open streams.
type Coordinator struct {
	newCodec CodecFactory
	registry *registry.Registry
	metrics  *metrics.Metrics
	log      ports.Logger
	onState  []func(StateChange)

	mu      sync.Mutex
	streams map[string]*Stream
	closed  bool
}

// New creates a Coordinator that builds codecs with newCodec.
func New(newCodec CodecFactory, opts ...Option) *Coordinator {
	c := &Coordinator{
		newCodec: newCodec,
		log:      logger.NewNoop(),
		streams:  make(map[string]*Stream),
	}
	for _, opt := range opts {
		opt(c)
	}
	if c.registry == nil {
		c.registry = registry.New()
	}
	if c.metrics == nil {
		c.metrics = metrics.New()
	}
	c.log = c.log.WithComponent("coordinator")
	return c
}

// Registry returns the surface registry.
func (c *Coordinator) Registry() *registry.Registry {
	return c.registry
}

// Metrics returns the metrics sink.
func (c *Coordinator) Metrics() *metrics.Metrics {
	return c.metrics
}

// AttachView creates a surface for target and registers it under id. A
// surface previously registered under id is detached and closed.
func (c *Coordinator) AttachView(id string, target ports.Drawable, opts ...surface.Option) *surface.Surface {
	opts = append([]surface.Option{
		surface.WithLogger(c.log.WithComponent(id)),
		surface.WithLayoutListener(func(ev surface.LayoutEvent) {
			if ev.Mismatch != nil {
				c.metrics.Reconfigured(id)
			}
		}),
	}, opts...)

	s := surface.New(id, target, opts...)
	if prev := c.registry.Register(id, s); prev != nil {
		c.log.Debug("View %s replaced", id)
		prev.Close()
	}
	c.log.Info("View %s attached", id)

	c.mu.Lock()
	st, open := c.streams[id]
	c.mu.Unlock()
	if open {
		c.prepare(s, st.Format())
	}
	return s
}

// DetachView unregisters and closes the surface registered under id. It
// reports whether a surface was registered.
func (c *Coordinator) DetachView(id string) bool {
	s := c.registry.Unregister(id)
	if s == nil {
		return false
	}
	s.Close()
	c.log.Info("View %s detached", id)
	return true
}

// OpenStream opens a decode session for id. Frames are presented to the
// surface registered under the same id. Configuration failures are
// reported as *decoder.ConfigurationError.
func (c *Coordinator) OpenStream(id string, cfg decoder.Config) (*Stream, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.closed {
		return nil, ErrCoordinatorClosed
	}
	if _, ok := c.streams[id]; ok {
		return nil, fmt.Errorf("%w: %s", ErrStreamExists, id)
	}

	codec, err := c.newCodec(cfg.Codec)
	if err != nil {
		return nil, &decoder.ConfigurationError{Field: "codec", Err: err}
	}
	log := c.log.WithComponent(id)
	session, err := decoder.Open(codec, cfg, log)
	if err != nil {
		codec.Close()
		log.Error("Failed to open stream: %v", err)
		return nil, err
	}

	st := &Stream{
		id:      id,
		c:       c,
		log:     log,
		session: session,
	}
	st.setState(Open)
	c.streams[id] = st
	if surf, ok := c.registry.Lookup(id); ok {
		c.prepare(surf, cfg.Format)
	}
	c.metrics.StreamOpened()
	log.Info("Stream opened: %s %s", cfg.Codec, cfg.Format)
	return st, nil
}

// Stream returns the open stream for id.
func (c *Coordinator) Stream(id string) (*Stream, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	st, ok := c.streams[id]
	return st, ok
}

// StreamIDs returns the ids of the open streams.
func (c *Coordinator) StreamIDs() []string {
	c.mu.Lock()
	defer c.mu.Unlock()
	ids := make([]string, 0, len(c.streams))
	for id := range c.streams {
		ids = append(ids, id)
	}
	return ids
}

// CloseStream closes the stream for id. It waits for an in-flight submit
// to finish.
func (c *Coordinator) CloseStream(id string) error {
	c.mu.Lock()
	st, ok := c.streams[id]
	c.mu.Unlock()
	if !ok {
		return fmt.Errorf("%w: %s", ErrNotOpen, id)
	}
	return st.Close()
}

// Close closes every stream and detaches every view.
func (c *Coordinator) Close() error {
	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		return nil
	}
	c.closed = true
	streams := make([]*Stream, 0, len(c.streams))
	for _, st := range c.streams {
		streams = append(streams, st)
	}
	c.mu.Unlock()

	var errs []error
	for _, st := range streams {
		if err := st.Close(); err != nil {
			errs = append(errs, err)
		}
	}
	for _, id := range c.registry.IDs() {
		c.DetachView(id)
	}
	return errors.Join(errs...)
}

// prepare configures a surface for the format of its stream.
func (c *Coordinator) prepare(s *surface.Surface, f frame.Format) {
	if err := s.Prepare(f); err != nil {
		c.log.Warn("Failed to prepare surface %s: %v", s.ID(), err)
	}
}

func (c *Coordinator) forget(st *Stream) {
	c.mu.Lock()
	if cur, ok := c.streams[st.id]; ok && cur == st {
		delete(c.streams, st.id)
	}
	c.mu.Unlock()
}

func (c *Coordinator) notify(ch StateChange) {
	for _, fn := range c.onState {
		fn(ch)
	}
}
