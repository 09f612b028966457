// Package codecs selects a codec backend by codec name and frames whole
// elementary streams into payloads.
package codecs

import (
	"errors"
	"fmt"

	"github.com/user/vidsurface/pkg/adapters/codecdetect"
	"github.com/user/vidsurface/pkg/adapters/h264decoder"
	"github.com/user/vidsurface/pkg/adapters/jpegcodec"
	"github.com/user/vidsurface/pkg/adapters/rawcodec"
	"github.com/user/vidsurface/pkg/frame"
	"github.com/user/vidsurface/pkg/ports"
)

// Backend represents the decoding backend used.
type Backend string

const (
	// BackendFFmpeg represents an ffmpeg child process.
	BackendFFmpeg Backend = "ffmpeg"
	// BackendNative represents a pure Go decoder.
	BackendNative Backend = "native"
)

// Info contains information about the selected decoder.
type Info struct {
	// Codec is the payload format.
	Codec ports.CodecName
	// Backend is the decoding backend being used.
	Backend Backend
}

// Options configures the factory.
type Options struct {
	// FFmpegPath is an optional custom path to the ffmpeg binary.
	FFmpegPath string

	// Pool provides frame memory shared by every codec (default: new pool).
	Pool *frame.Pool

	// H264Backend replaces the ffmpeg backend of the H.264 decoder.
	H264Backend h264decoder.BackendFactory
}

var (
	// ErrUnsupportedCodec is returned when the codec is not supported.
	ErrUnsupportedCodec = errors.New("codecs: unsupported codec")
	// ErrNoDecoderAvailable is returned when no decoder is available for the codec.
	ErrNoDecoderAvailable = errors.New("codecs: no decoder available")
)

// Factory creates codecs.
type Factory struct {
	opts Options
}

// NewFactory creates a factory.
func NewFactory(opts Options) *Factory {
	if opts.FFmpegPath != "" {
		h264decoder.SetFFmpegPath(opts.FFmpegPath)
	}
	if opts.Pool == nil {
		opts.Pool = frame.NewPool()
	}
	return &Factory{opts: opts}
}

// New returns a fresh codec for name. Its signature matches the
// coordinator's codec factory.
func (f *Factory) New(name ports.CodecName) (ports.Codec, error) {
	switch name {
	case ports.CodecRaw:
		return rawcodec.New(f.opts.Pool), nil
	case ports.CodecMJPEG:
		return jpegcodec.New(f.opts.Pool), nil
	case ports.CodecH264:
		if f.opts.H264Backend == nil && !h264decoder.IsAvailable() {
			return nil, fmt.Errorf("%w: %s needs ffmpeg", ErrNoDecoderAvailable, name)
		}
		return h264decoder.New(h264decoder.Options{Backend: f.opts.H264Backend, Pool: f.opts.Pool}), nil
	default:
		return nil, fmt.Errorf("%w: %s", ErrUnsupportedCodec, name)
	}
}

// Info describes the backend New would select for name.
func (f *Factory) Info(name ports.CodecName) (Info, error) {
	switch name {
	case ports.CodecRaw, ports.CodecMJPEG:
		return Info{Codec: name, Backend: BackendNative}, nil
	case ports.CodecH264:
		if f.opts.H264Backend != nil {
			return Info{Codec: name, Backend: BackendNative}, nil
		}
		if !h264decoder.IsAvailable() {
			return Info{Codec: name}, ErrNoDecoderAvailable
		}
		return Info{Codec: name, Backend: BackendFFmpeg}, nil
	default:
		return Info{Codec: name}, ErrUnsupportedCodec
	}
}

// Pool returns the frame pool shared by created codecs.
func (f *Factory) Pool() *frame.Pool {
	return f.opts.Pool
}

// Split frames a complete elementary stream of codec name into payloads.
func Split(name ports.CodecName, data []byte) ([][]byte, error) {
	switch name {
	case ports.CodecRaw:
		return rawcodec.Split(data), nil
	case ports.CodecMJPEG:
		return jpegcodec.Split(data), nil
	case ports.CodecH264:
		return h264decoder.SplitAccessUnits(data), nil
	default:
		return nil, fmt.Errorf("%w: %s", ErrUnsupportedCodec, name)
	}
}

// Resolve returns name, or the codec detected from data when name is
// empty or unknown.
func Resolve(name ports.CodecName, data []byte) (ports.CodecName, error) {
	if name != "" && name != ports.CodecUnknown {
		return name, nil
	}
	return codecdetect.Detect(data)
}

// IsH264Available checks if H.264 decoding is available.
func IsH264Available() bool {
	return h264decoder.IsAvailable()
}
