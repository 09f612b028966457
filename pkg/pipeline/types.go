package pipeline

import (
	"time"

	"github.com/user/vidsurface/pkg/coordinator"
	"github.com/user/vidsurface/pkg/ports"
)

// =============================================================================
// Load Stage Types
// =============================================================================

// LoadInput names one elementary stream file.
type LoadInput struct {
	ID    string
	Path  string
	Codec ports.CodecName // empty or unknown: detect from the data
}

// LoadResult holds a stream cut into payloads.
type LoadResult struct {
	Codec    ports.CodecName
	Payloads [][]byte
	Bytes    int64
}

// =============================================================================
// Feed Stage Types
// =============================================================================

// FeedInput describes how payloads are handed to a stream.
type FeedInput struct {
	Payloads  [][]byte
	BatchSize int           // payloads per batch (min: 1)
	Interval  time.Duration // pacing per payload, 0 = as fast as possible

	// Out receives the batches. The feed stage closes it when done.
	Out chan<- []coordinator.Payload
}

// FeedResult reports what was handed over.
type FeedResult struct {
	Payloads int
	Batches  int
}
