// Package jpegcodec implements ports.Codec for Motion-JPEG payloads.
//
// Every payload is one complete JPEG image. Output dimensions come from the
// image itself; the configured pixel format selects BGRA or I420 output.
package jpegcodec

import (
	"bytes"
	"fmt"
	"image"
	"image/jpeg"
	"time"

	"github.com/user/vidsurface/pkg/frame"
	"github.com/user/vidsurface/pkg/ports"
)

// Codec decodes Motion-JPEG.
type Codec struct {
	pool  *frame.Pool
	pixel frame.PixelFormat
}

// New creates a JPEG codec. A nil pool allocates fresh planes per frame.
func New(pool *frame.Pool) *Codec {
	return &Codec{pool: pool}
}

// Open implements ports.Codec.
func (c *Codec) Open(cfg ports.CodecConfig) error {
	if cfg.Codec != ports.CodecMJPEG {
		return fmt.Errorf("%w: jpegcodec cannot decode %s", ports.ErrUnsupportedFormat, cfg.Codec)
	}
	switch cfg.Format.Pixel {
	case frame.FormatBGRA, frame.FormatI420:
	default:
		return fmt.Errorf("%w: %s", ports.ErrUnsupportedFormat, cfg.Format.Pixel)
	}
	c.pixel = cfg.Format.Pixel
	return nil
}

// Decode implements ports.Codec.
func (c *Codec) Decode(payload []byte, pts time.Duration) ([]*frame.Buffer, error) {
	if c.pixel == frame.FormatUnknown {
		return nil, ports.ErrCodecState
	}
	if len(payload) < 4 || payload[0] != 0xFF || payload[1] != markerSOI {
		return nil, fmt.Errorf("%w: missing SOI marker", ports.ErrMalformedPayload)
	}

	img, err := jpeg.Decode(bytes.NewReader(payload))
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ports.ErrMalformedPayload, err)
	}

	bounds := img.Bounds()
	f := frame.Format{Pixel: c.pixel, Width: bounds.Dx(), Height: bounds.Dy()}
	if err := f.Validate(); err != nil {
		return nil, fmt.Errorf("%w: %v", ports.ErrMalformedPayload, err)
	}

	buf, err := c.get(f, pts)
	if err != nil {
		return nil, err
	}
	if ycc, ok := img.(*image.YCbCr); ok && c.pixel == frame.FormatI420 && ycc.SubsampleRatio == image.YCbCrSubsampleRatio420 {
		copyI420(buf, ycc)
	} else if err := buf.FillFromImage(img); err != nil {
		buf.Release()
		return nil, fmt.Errorf("%w: %v", ports.ErrMalformedPayload, err)
	}
	return []*frame.Buffer{buf}, nil
}

// Flush implements ports.Codec. Nothing is ever held.
func (c *Codec) Flush() ([]*frame.Buffer, error) {
	return nil, nil
}

// Close implements ports.Codec.
func (c *Codec) Close() error {
	c.pixel = frame.FormatUnknown
	return nil
}

func (c *Codec) get(f frame.Format, pts time.Duration) (*frame.Buffer, error) {
	if c.pool != nil {
		return c.pool.Get(f, pts)
	}
	return frame.New(f, pts)
}

// copyI420 copies a 4:2:0 YCbCr image row by row.
func copyI420(dst *frame.Buffer, src *image.YCbCr) {
	w, h := dst.Width(), dst.Height()
	y, u, v := dst.Plane(0), dst.Plane(1), dst.Plane(2)
	for row := 0; row < h; row++ {
		off := src.YOffset(src.Rect.Min.X, src.Rect.Min.Y+row)
		copy(y.Data[row*y.Stride:row*y.Stride+w], src.Y[off:off+w])
	}
	for row := 0; row < h/2; row++ {
		off := src.COffset(src.Rect.Min.X, src.Rect.Min.Y+row*2)
		copy(u.Data[row*u.Stride:row*u.Stride+w/2], src.Cb[off:off+w/2])
		copy(v.Data[row*v.Stride:row*v.Stride+w/2], src.Cr[off:off+w/2])
	}
}

var _ ports.Codec = (*Codec)(nil)
