// Package ports defines interfaces for external dependencies.
package ports

import (
	"errors"
	"time"

	"github.com/user/vidsurface/pkg/frame"
)

// CodecName identifies a compressed payload format.
type CodecName string

const (
	CodecH264    CodecName = "h264"
	CodecMJPEG   CodecName = "mjpeg"
	CodecRaw     CodecName = "raw"
	CodecUnknown CodecName = "unknown"
)

// DefaultFPS is the frame rate assumed for implicit timestamps.
const DefaultFPS = 30.0

var (
	// ErrMalformedPayload is returned by codecs for payloads that cannot be
	// parsed. The codec state is intact and the next payload may be decoded.
	ErrMalformedPayload = errors.New("codec: malformed payload")

	// ErrCodecState is returned by codecs whose internal state was lost.
	// Callers should close and reopen the codec before submitting more data.
	ErrCodecState = errors.New("codec: internal state lost")

	// ErrUnsupportedFormat is returned by Open for formats the codec cannot produce.
	ErrUnsupportedFormat = errors.New("codec: unsupported format")
)

// CodecConfig configures a decode session.
type CodecConfig struct {
	// Codec is the compressed payload format.
	Codec CodecName

	// Format is the expected output format. Width and Height are the
	// dimensions announced when the stream is opened; the codec may report
	// different ones later (format change).
	Format frame.Format

	// FPS drives implicit timestamps (default: 30).
	FPS float64

	// ReorderDepth is how many decoded frames may be held back to restore
	// presentation order (0 = codec outputs in order).
	ReorderDepth int
}

// FrameInterval returns the duration of one frame at the configured rate.
func (c CodecConfig) FrameInterval() time.Duration {
	fps := c.FPS
	if fps <= 0 {
		fps = DefaultFPS
	}
	return time.Duration(float64(time.Second) / fps)
}

// Codec abstracts a video codec backend.
//
// A Codec is used from a single goroutine at a time.
type Codec interface {
	// Open initializes codec state for the given configuration.
	Open(cfg CodecConfig) error

	// Decode feeds one encoded frame. It returns zero or more decoded
	// buffers; codecs that buffer internally may return frames belonging
	// to earlier payloads.
	Decode(payload []byte, pts time.Duration) ([]*frame.Buffer, error)

	// Flush drains frames held inside the codec.
	Flush() ([]*frame.Buffer, error)

	// Close releases codec resources.
	Close() error
}
