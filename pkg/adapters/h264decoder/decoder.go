// Package h264decoder implements ports.Codec for H.264 Annex-B payloads.
//
// Parameter sets are captured from the stream; the decoder configures its
// backend once both SPS and PPS are known and queues pictures that arrive
// earlier. Pixel decoding is done by a Backend, by default a long-lived
// ffmpeg process. A new SPS with different dimensions restarts the backend
// so later frames carry the new format.
package h264decoder

import (
	"errors"
	"fmt"
	"sort"
	"time"

	"github.com/Eyevinn/mp4ff/avc"

	"github.com/user/vidsurface/pkg/frame"
	"github.com/user/vidsurface/pkg/ports"
)

var (
	// ErrFFmpegNotFound is returned when ffmpeg is not found in PATH.
	ErrFFmpegNotFound = errors.New("h264decoder: ffmpeg not found in PATH")
)

// SkippedError reports pictures the backend produced no frame for, such as
// pictures referencing a frame that was never received or with a corrupt
// slice body.
type SkippedError struct {
	PTS []time.Duration
}

func (e *SkippedError) Error() string {
	return fmt.Sprintf("h264decoder: %d pictures not decoded (first at %v)", len(e.PTS), e.PTS[0])
}

func (e *SkippedError) Unwrap() error { return ports.ErrMalformedPayload }

func skippedError(pts []time.Duration) error {
	if len(pts) == 0 {
		return nil
	}
	return &SkippedError{PTS: pts}
}

// maxQueued bounds the pictures held while waiting for parameter sets.
const maxQueued = 120

// Backend turns an Annex-B byte stream into frames of one fixed format.
type Backend interface {
	// Write feeds stream bytes. When picture is set the bytes carry one
	// coded picture presented at pts. Errors wrapping ports.ErrCodecState
	// mean the backend died.
	Write(data []byte, pts time.Duration, picture bool) error

	// Frames returns the frames decoded so far without blocking, in
	// presentation order. Each frame carries the pts of its picture.
	// Pictures that could not be decoded produce no frame.
	Frames() []*frame.Buffer

	// Finish ends the input and waits for the remaining frames.
	Finish() ([]*frame.Buffer, error)

	// Close aborts decoding and releases held frames.
	Close() error
}

// BackendFactory starts a backend producing frames of format f.
type BackendFactory func(f frame.Format, pool *frame.Pool) (Backend, error)

// Options configures a Decoder.
type Options struct {
	// Backend starts pixel decoding (default: ffmpeg).
	Backend BackendFactory

	// Pool provides frame memory (default: process-wide pool).
	Pool *frame.Pool
}

type queuedAU struct {
	data []byte
	pts  time.Duration
}

// Decoder decodes H.264.
type Decoder struct {
	opts  Options
	pixel frame.PixelFormat

	// Parameter sets survive Close, so a reopened decoder resumes at the
	// next picture.
	sps, pps []byte
	format   frame.Format

	backend Backend
	running frame.Format
	pending []time.Duration // timestamps of pictures written, ascending
	queued  []queuedAU
}

// New creates an H.264 decoder.
func New(opts Options) *Decoder {
	if opts.Pool == nil {
		opts.Pool = frame.NewPool()
	}
	return &Decoder{opts: opts}
}

// Open implements ports.Codec.
func (d *Decoder) Open(cfg ports.CodecConfig) error {
	if cfg.Codec != ports.CodecH264 {
		return fmt.Errorf("%w: h264decoder cannot decode %s", ports.ErrUnsupportedFormat, cfg.Codec)
	}
	switch cfg.Format.Pixel {
	case frame.FormatBGRA, frame.FormatI420:
	default:
		return fmt.Errorf("%w: %s", ports.ErrUnsupportedFormat, cfg.Format.Pixel)
	}
	if d.opts.Backend == nil {
		path, err := findFFmpeg()
		if err != nil {
			return err
		}
		d.opts.Backend = FFmpegBackend(path)
	}
	d.pixel = cfg.Format.Pixel
	if d.format.Pixel != frame.FormatUnknown {
		d.format.Pixel = d.pixel
	}
	return nil
}

// Decode implements ports.Codec. Frames are returned as the backend
// produces them, usually some payloads later; Flush drains the rest.
func (d *Decoder) Decode(payload []byte, pts time.Duration) ([]*frame.Buffer, error) {
	if d.pixel == frame.FormatUnknown {
		return nil, ports.ErrCodecState
	}
	nalus, err := ParseAccessUnit(payload)
	if err != nil {
		return nil, err
	}

	// Validate every parameter set before touching decoder state.
	var (
		sps, pps []byte
		format   frame.Format
		picture  bool
	)
	for _, n := range nalus {
		switch t := avc.GetNaluType(n[0]); {
		case t == avc.NALU_SPS:
			parsed, err := avc.ParseSPSNALUnit(n, false)
			if err != nil {
				return nil, fmt.Errorf("%w: sps: %v", ports.ErrMalformedPayload, err)
			}
			format = frame.Format{Pixel: d.pixel, Width: int(parsed.Width), Height: int(parsed.Height)}
			if err := format.Validate(); err != nil {
				return nil, fmt.Errorf("%w: sps: %v", ports.ErrMalformedPayload, err)
			}
			sps = n
		case t == avc.NALU_PPS:
			pps = n
		case IsVCL(t):
			picture = true
		}
	}
	if sps != nil {
		d.sps = append([]byte(nil), sps...)
		d.format = format
	}
	if pps != nil {
		d.pps = append([]byte(nil), pps...)
	}

	if d.sps == nil || d.pps == nil {
		if picture {
			d.queue(payload, pts)
		}
		return nil, nil
	}

	var (
		out     []*frame.Buffer
		skipped []time.Duration
	)
	if d.backend != nil && d.running != d.format {
		out, skipped, err = d.finish()
		if err != nil {
			return out, err
		}
	}
	if d.backend == nil {
		if err := d.start(); err != nil {
			return out, err
		}
	}
	if err := d.write(payload, pts, picture); err != nil {
		return out, err
	}
	frames, more := d.collect(d.backend.Frames())
	return append(out, frames...), skippedError(append(skipped, more...))
}

// Flush implements ports.Codec.
func (d *Decoder) Flush() ([]*frame.Buffer, error) {
	d.queued = nil
	if d.backend == nil {
		return nil, nil
	}
	out, skipped, err := d.finish()
	if err != nil {
		return out, err
	}
	return out, skippedError(skipped)
}

// Close implements ports.Codec.
func (d *Decoder) Close() error {
	var err error
	if d.backend != nil {
		err = d.backend.Close()
		d.backend = nil
	}
	d.pending = nil
	d.queued = nil
	d.pixel = frame.FormatUnknown
	return err
}

// Format returns the format announced by the last SPS.
func (d *Decoder) Format() (frame.Format, bool) {
	return d.format, d.sps != nil
}

func (d *Decoder) queue(payload []byte, pts time.Duration) {
	if len(d.queued) == maxQueued {
		d.queued = d.queued[1:]
	}
	d.queued = append(d.queued, queuedAU{data: append([]byte(nil), payload...), pts: pts})
}

// start launches a backend for the current format, primes it with the
// parameter sets and replays queued pictures.
func (d *Decoder) start() error {
	b, err := d.opts.Backend(d.format, d.opts.Pool)
	if err != nil {
		return fmt.Errorf("%w: start backend: %v", ports.ErrCodecState, err)
	}
	d.backend = b
	d.running = d.format
	d.pending = nil

	header := AppendNALU(AppendNALU(nil, d.sps), d.pps)
	if err := d.backend.Write(header, 0, false); err != nil {
		return err
	}
	queued := d.queued
	d.queued = nil
	for _, au := range queued {
		if err := d.write(au.data, au.pts, true); err != nil {
			return err
		}
	}
	return nil
}

func (d *Decoder) write(data []byte, pts time.Duration, picture bool) error {
	if picture {
		i := sort.Search(len(d.pending), func(i int) bool { return d.pending[i] > pts })
		d.pending = append(d.pending, 0)
		copy(d.pending[i+1:], d.pending[i:])
		d.pending[i] = pts
	}
	if err := d.backend.Write(data, pts, picture); err != nil {
		d.backend.Close()
		d.backend = nil
		return err
	}
	return nil
}

// finish drains and stops the running backend. Pictures still pending
// afterwards were skipped.
func (d *Decoder) finish() ([]*frame.Buffer, []time.Duration, error) {
	frames, err := d.backend.Finish()
	d.backend = nil
	out, skipped := d.collect(frames)
	skipped = append(skipped, d.pending...)
	d.pending = nil
	return out, skipped, err
}

// collect matches decoded frames to pending pictures by timestamp. Frames
// come out in presentation order, so pending pictures older than a
// delivered frame were skipped by the backend. Frames matching no pending
// picture are released.
func (d *Decoder) collect(frames []*frame.Buffer) ([]*frame.Buffer, []time.Duration) {
	var (
		out     = frames[:0]
		skipped []time.Duration
	)
	for _, b := range frames {
		i := sort.Search(len(d.pending), func(i int) bool { return d.pending[i] >= b.PTS })
		if i == len(d.pending) || d.pending[i] != b.PTS {
			b.Release()
			continue
		}
		skipped = append(skipped, d.pending[:i]...)
		d.pending = d.pending[i+1:]
		out = append(out, b)
	}
	return out, skipped
}

var _ ports.Codec = (*Decoder)(nil)
