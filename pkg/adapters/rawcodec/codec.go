// Package rawcodec implements ports.Codec for self-describing raw frames.
//
// Each payload is a 16-byte header followed by the tightly packed planes:
//
//	"RAWF" | version (1) | pixel format (1) | reserved (2) | width (4) | height (4)
//
// Integers are big-endian. The codec is synchronous: every payload yields
// exactly one frame.
package rawcodec

import (
	"bytes"
	"encoding/binary"
	"fmt"
	"time"

	"github.com/user/vidsurface/pkg/frame"
	"github.com/user/vidsurface/pkg/ports"
)

const (
	// Version is the only header version understood.
	Version = 1

	// HeaderSize is the size of the frame header in bytes.
	HeaderSize = 16
)

// Magic starts every raw frame.
var Magic = []byte("RAWF")

// maxDimension bounds header dimensions so a corrupt header cannot request
// gigabytes of plane memory.
const maxDimension = 16384

// Codec decodes raw frames.
type Codec struct {
	pool   *frame.Pool
	opened bool
}

// New creates a raw codec. A nil pool allocates fresh planes per frame.
func New(pool *frame.Pool) *Codec {
	return &Codec{pool: pool}
}

// Open implements ports.Codec.
func (c *Codec) Open(cfg ports.CodecConfig) error {
	if cfg.Codec != ports.CodecRaw {
		return fmt.Errorf("%w: rawcodec cannot decode %s", ports.ErrUnsupportedFormat, cfg.Codec)
	}
	if cfg.Format.Pixel.PlaneCount() == 0 {
		return fmt.Errorf("%w: %s", ports.ErrUnsupportedFormat, cfg.Format.Pixel)
	}
	c.opened = true
	return nil
}

// Decode implements ports.Codec.
func (c *Codec) Decode(payload []byte, pts time.Duration) ([]*frame.Buffer, error) {
	if !c.opened {
		return nil, ports.ErrCodecState
	}

	f, err := ParseHeader(payload)
	if err != nil {
		return nil, err
	}
	body := payload[HeaderSize:]
	if len(body) != f.FrameSize() {
		return nil, fmt.Errorf("%w: %s needs %d bytes, got %d", ports.ErrMalformedPayload, f, f.FrameSize(), len(body))
	}

	buf, err := c.get(f, pts)
	if err != nil {
		return nil, err
	}
	off := 0
	for i, size := range f.PlaneSizes() {
		copy(buf.Plane(i).Data, body[off:off+size])
		off += size
	}
	return []*frame.Buffer{buf}, nil
}

// Flush implements ports.Codec. Nothing is ever held.
func (c *Codec) Flush() ([]*frame.Buffer, error) {
	return nil, nil
}

// Close implements ports.Codec.
func (c *Codec) Close() error {
	c.opened = false
	return nil
}

func (c *Codec) get(f frame.Format, pts time.Duration) (*frame.Buffer, error) {
	if c.pool != nil {
		return c.pool.Get(f, pts)
	}
	return frame.New(f, pts)
}

// ParseHeader validates the header of a raw frame and returns its format.
func ParseHeader(data []byte) (frame.Format, error) {
	if len(data) < HeaderSize {
		return frame.Format{}, fmt.Errorf("%w: short header (%d bytes)", ports.ErrMalformedPayload, len(data))
	}
	if !bytes.Equal(data[:4], Magic) {
		return frame.Format{}, fmt.Errorf("%w: bad magic %q", ports.ErrMalformedPayload, data[:4])
	}
	if data[4] != Version {
		return frame.Format{}, fmt.Errorf("%w: unsupported version %d", ports.ErrMalformedPayload, data[4])
	}

	w := binary.BigEndian.Uint32(data[8:12])
	h := binary.BigEndian.Uint32(data[12:16])
	if w > maxDimension || h > maxDimension {
		return frame.Format{}, fmt.Errorf("%w: dimensions %dx%d", ports.ErrMalformedPayload, w, h)
	}
	f := frame.Format{Pixel: frame.PixelFormat(data[5]), Width: int(w), Height: int(h)}
	if err := f.Validate(); err != nil {
		return frame.Format{}, fmt.Errorf("%w: %v", ports.ErrMalformedPayload, err)
	}
	return f, nil
}

// Encode serializes a buffer as a raw frame.
func Encode(b *frame.Buffer) ([]byte, error) {
	if b.Released() {
		return nil, fmt.Errorf("rawcodec: buffer released")
	}
	f := b.Format
	if err := f.Validate(); err != nil {
		return nil, err
	}

	out := make([]byte, HeaderSize, HeaderSize+f.FrameSize())
	copy(out, Magic)
	out[4] = Version
	out[5] = byte(f.Pixel)
	binary.BigEndian.PutUint32(out[8:12], uint32(f.Width))
	binary.BigEndian.PutUint32(out[12:16], uint32(f.Height))
	for i, size := range f.PlaneSizes() {
		out = append(out, b.Plane(i).Data[:size]...)
	}
	return out, nil
}

// Split cuts a concatenation of raw frames into payloads. A trailing
// partial frame is returned as its own (malformed) payload so the decoder
// can report it.
func Split(data []byte) [][]byte {
	var out [][]byte
	for len(data) > 0 {
		f, err := ParseHeader(data)
		if err != nil {
			return append(out, data)
		}
		n := HeaderSize + f.FrameSize()
		if n > len(data) {
			return append(out, data)
		}
		out = append(out, data[:n:n])
		data = data[n:]
	}
	return out
}

var _ ports.Codec = (*Codec)(nil)
