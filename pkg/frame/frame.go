// Package frame defines the decoded image value handed from decoders to render surfaces.
package frame

import (
	"errors"
	"fmt"
	"image"
	"image/color"
	"sync/atomic"
	"time"

	"golang.org/x/image/draw"
)

// PixelFormat identifies the memory layout of a decoded image.
type PixelFormat int

const (
	// FormatUnknown is the zero value and is never valid for a frame.
	FormatUnknown PixelFormat = iota
	// FormatI420 is planar YUV 4:2:0 (Y, U, V planes).
	FormatI420
	// FormatBGRA is packed 8-bit BGRA, 4 bytes per pixel.
	FormatBGRA
)

// String returns the lower-case name used in configuration files.
func (p PixelFormat) String() string {
	switch p {
	case FormatI420:
		return "i420"
	case FormatBGRA:
		return "bgra"
	default:
		return "unknown"
	}
}

// PlaneCount returns the number of planes for this pixel format.
func (p PixelFormat) PlaneCount() int {
	switch p {
	case FormatI420:
		return 3
	case FormatBGRA:
		return 1
	default:
		return 0
	}
}

// ParsePixelFormat parses a pixel format name. It accepts the names
// produced by String plus a few common aliases.
func ParsePixelFormat(s string) (PixelFormat, error) {
	switch s {
	case "i420", "I420", "yuv420p", "yuv420":
		return FormatI420, nil
	case "bgra", "BGRA":
		return FormatBGRA, nil
	default:
		return FormatUnknown, fmt.Errorf("frame: unknown pixel format %q", s)
	}
}

var (
	// ErrInvalidFormat is returned when a Format cannot describe a frame.
	ErrInvalidFormat = errors.New("frame: invalid format")
)

// Format describes the geometry and layout of a frame.
type Format struct {
	Pixel  PixelFormat
	Width  int
	Height int
}

// Validate checks that the format can be allocated.
func (f Format) Validate() error {
	if f.Pixel.PlaneCount() == 0 {
		return fmt.Errorf("%w: unsupported pixel format %s", ErrInvalidFormat, f.Pixel)
	}
	if f.Width <= 0 || f.Height <= 0 {
		return fmt.Errorf("%w: dimensions %dx%d", ErrInvalidFormat, f.Width, f.Height)
	}
	if f.Pixel == FormatI420 && (f.Width%2 != 0 || f.Height%2 != 0) {
		return fmt.Errorf("%w: i420 requires even dimensions, got %dx%d", ErrInvalidFormat, f.Width, f.Height)
	}
	return nil
}

// String formats as "640x480 bgra".
func (f Format) String() string {
	return fmt.Sprintf("%dx%d %s", f.Width, f.Height, f.Pixel)
}

// Strides returns the row stride of every plane.
func (f Format) Strides() []int {
	switch f.Pixel {
	case FormatI420:
		return []int{f.Width, f.Width / 2, f.Width / 2}
	case FormatBGRA:
		return []int{f.Width * 4}
	default:
		return nil
	}
}

// PlaneSizes returns the byte size of every plane.
func (f Format) PlaneSizes() []int {
	switch f.Pixel {
	case FormatI420:
		luma := f.Width * f.Height
		chroma := (f.Width / 2) * (f.Height / 2)
		return []int{luma, chroma, chroma}
	case FormatBGRA:
		return []int{f.Width * f.Height * 4}
	default:
		return nil
	}
}

// FrameSize returns the total number of bytes of all planes.
func (f Format) FrameSize() int {
	n := 0
	for _, s := range f.PlaneSizes() {
		n += s
	}
	return n
}

// Plane is one plane of pixel memory.
type Plane struct {
	Data   []byte
	Stride int
}

// Buffer is one decoded image ready for display.
//
// A Buffer exclusively owns its plane memory until Release is called.
// After Release the planes are returned to the pool they came from and
// must not be touched again. Fields are set by the producer before the
// buffer is handed out and are read-only afterwards.
type Buffer struct {
	Format Format
	PTS    time.Duration

	// FormatChanged marks the first buffer of a session whose format differs
	// from the previous output.
	FormatChanged bool

	planes   []Plane
	pool     *Pool
	released atomic.Bool
}

// Width returns the image width in pixels.
func (b *Buffer) Width() int { return b.Format.Width }

// Height returns the image height in pixels.
func (b *Buffer) Height() int { return b.Format.Height }

// PixelFormat returns the pixel layout.
func (b *Buffer) PixelFormat() PixelFormat { return b.Format.Pixel }

// Plane returns plane n. It returns an empty Plane for out-of-range
// indexes or after Release.
func (b *Buffer) Plane(n int) Plane {
	if b.released.Load() || n < 0 || n >= len(b.planes) {
		return Plane{}
	}
	return b.planes[n]
}

// Released reports whether Release has been called.
func (b *Buffer) Released() bool {
	return b.released.Load()
}

// Release gives the plane memory back. It is safe to call more than once.
func (b *Buffer) Release() {
	if b == nil || !b.released.CompareAndSwap(false, true) {
		return
	}
	planes := b.planes
	b.planes = nil
	if b.pool != nil {
		b.pool.put(planes)
	}
}

// ToRGBA converts the buffer into a newly allocated RGBA image.
func (b *Buffer) ToRGBA() *image.RGBA {
	rect := image.Rect(0, 0, b.Format.Width, b.Format.Height)
	dst := image.NewRGBA(rect)
	if b.released.Load() {
		return dst
	}

	switch b.Format.Pixel {
	case FormatI420:
		src := &image.YCbCr{
			Y:              b.planes[0].Data,
			Cb:             b.planes[1].Data,
			Cr:             b.planes[2].Data,
			YStride:        b.planes[0].Stride,
			CStride:        b.planes[1].Stride,
			SubsampleRatio: image.YCbCrSubsampleRatio420,
			Rect:           rect,
		}
		draw.Draw(dst, rect, src, image.Point{}, draw.Src)
	case FormatBGRA:
		p := b.planes[0]
		for y := 0; y < b.Format.Height; y++ {
			row := p.Data[y*p.Stride : y*p.Stride+b.Format.Width*4]
			out := dst.Pix[y*dst.Stride:]
			for x := 0; x < len(row); x += 4 {
				out[x] = row[x+2]
				out[x+1] = row[x+1]
				out[x+2] = row[x]
				out[x+3] = row[x+3]
			}
		}
	}
	return dst
}

// FillFromImage writes img into the buffer, converting to the buffer's
// pixel format. img must have the buffer's dimensions.
func (b *Buffer) FillFromImage(img image.Image) error {
	bounds := img.Bounds()
	if bounds.Dx() != b.Format.Width || bounds.Dy() != b.Format.Height {
		return fmt.Errorf("%w: image %dx%d into %s", ErrInvalidFormat, bounds.Dx(), bounds.Dy(), b.Format)
	}

	switch b.Format.Pixel {
	case FormatBGRA:
		rgba, ok := img.(*image.RGBA)
		if !ok {
			rgba = image.NewRGBA(image.Rect(0, 0, bounds.Dx(), bounds.Dy()))
			draw.Draw(rgba, rgba.Bounds(), img, bounds.Min, draw.Src)
		}
		p := b.planes[0]
		for y := 0; y < b.Format.Height; y++ {
			src := rgba.Pix[y*rgba.Stride : y*rgba.Stride+b.Format.Width*4]
			row := p.Data[y*p.Stride:]
			for x := 0; x < len(src); x += 4 {
				row[x] = src[x+2]
				row[x+1] = src[x+1]
				row[x+2] = src[x]
				row[x+3] = src[x+3]
			}
		}
	case FormatI420:
		yp, up, vp := b.planes[0], b.planes[1], b.planes[2]
		for y := 0; y < b.Format.Height; y++ {
			for x := 0; x < b.Format.Width; x++ {
				c := color.YCbCrModel.Convert(img.At(bounds.Min.X+x, bounds.Min.Y+y)).(color.YCbCr)
				yp.Data[y*yp.Stride+x] = c.Y
				if y%2 == 0 && x%2 == 0 {
					up.Data[(y/2)*up.Stride+x/2] = c.Cb
					vp.Data[(y/2)*vp.Stride+x/2] = c.Cr
				}
			}
		}
	default:
		return fmt.Errorf("%w: %s", ErrInvalidFormat, b.Format.Pixel)
	}
	return nil
}
