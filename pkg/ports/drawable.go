package ports

import "github.com/user/vidsurface/pkg/frame"

// Drawable is the platform drawing target a render surface paints into.
type Drawable interface {
	// Configure prepares the target for frames of the given format. It is
	// called before the first frame and again whenever the format changes.
	Configure(format frame.Format) error
}

// FrameSource is what a draw loop reads on each tick. CurrentFrame never
// blocks; the returned buffer stays valid until the next call.
type FrameSource interface {
	CurrentFrame() *frame.Buffer
}
