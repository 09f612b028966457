package mocks

import (
	"sync"
	"time"

	"github.com/user/vidsurface/pkg/frame"
	"github.com/user/vidsurface/pkg/ports"
)

// Codec is a mock implementation of ports.Codec.
//
// By default every non-empty payload decodes synchronously into one frame
// of the configured format, and an empty payload is malformed.
type Codec struct {
	OpenFunc   func(cfg ports.CodecConfig) error
	DecodeFunc func(payload []byte, pts time.Duration) ([]*frame.Buffer, error)
	FlushFunc  func() ([]*frame.Buffer, error)
	CloseFunc  func() error

	mu sync.Mutex

	// Recorded calls for verification
	OpenCalls   []ports.CodecConfig
	DecodeCalls []DecodeCall
	FlushCalled int
	CloseCalled int
}

// DecodeCall records a call to Decode.
type DecodeCall struct {
	Size int
	PTS  time.Duration
}

func (m *Codec) Open(cfg ports.CodecConfig) error {
	m.mu.Lock()
	m.OpenCalls = append(m.OpenCalls, cfg)
	m.mu.Unlock()
	if m.OpenFunc != nil {
		return m.OpenFunc(cfg)
	}
	return nil
}

func (m *Codec) Decode(payload []byte, pts time.Duration) ([]*frame.Buffer, error) {
	m.mu.Lock()
	m.DecodeCalls = append(m.DecodeCalls, DecodeCall{Size: len(payload), PTS: pts})
	var format frame.Format
	if n := len(m.OpenCalls); n > 0 {
		format = m.OpenCalls[n-1].Format
	}
	m.mu.Unlock()

	if m.DecodeFunc != nil {
		return m.DecodeFunc(payload, pts)
	}
	if len(payload) == 0 {
		return nil, ports.ErrMalformedPayload
	}
	buf, err := frame.New(format, pts)
	if err != nil {
		return nil, err
	}
	return []*frame.Buffer{buf}, nil
}

func (m *Codec) Flush() ([]*frame.Buffer, error) {
	m.mu.Lock()
	m.FlushCalled++
	m.mu.Unlock()
	if m.FlushFunc != nil {
		return m.FlushFunc()
	}
	return nil, nil
}

func (m *Codec) Close() error {
	m.mu.Lock()
	m.CloseCalled++
	m.mu.Unlock()
	if m.CloseFunc != nil {
		return m.CloseFunc()
	}
	return nil
}

var _ ports.Codec = (*Codec)(nil)

// DelayedCodec holds every frame back until Depth more payloads have been
// submitted, like a hardware decoder with an output queue. When Reverse is
// set, frames inside one held group come out in reverse PTS order.
type DelayedCodec struct {
	Depth   int
	Reverse bool

	format frame.Format
	held   []*frame.Buffer
}

func (d *DelayedCodec) Open(cfg ports.CodecConfig) error {
	d.format = cfg.Format
	return nil
}

func (d *DelayedCodec) Decode(payload []byte, pts time.Duration) ([]*frame.Buffer, error) {
	if len(payload) == 0 {
		return nil, ports.ErrMalformedPayload
	}
	buf, err := frame.New(d.format, pts)
	if err != nil {
		return nil, err
	}
	d.held = append(d.held, buf)
	if len(d.held) <= d.Depth {
		return nil, nil
	}
	return d.take(), nil
}

func (d *DelayedCodec) Flush() ([]*frame.Buffer, error) {
	return d.take(), nil
}

func (d *DelayedCodec) Close() error {
	for _, b := range d.held {
		b.Release()
	}
	d.held = nil
	return nil
}

func (d *DelayedCodec) take() []*frame.Buffer {
	out := d.held
	d.held = nil
	if d.Reverse {
		for i, j := 0, len(out)-1; i < j; i, j = i+1, j-1 {
			out[i], out[j] = out[j], out[i]
		}
	}
	return out
}

var _ ports.Codec = (*DelayedCodec)(nil)
