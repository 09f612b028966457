// Package summarizer provides summary generation for playback runs.
package summarizer

import "time"

// Summary contains all data collected during a playback run.
type Summary struct {
	// Metadata
	GeneratedAt time.Time
	Elapsed     time.Duration

	// Settings
	Settings Settings

	// Per-stream results in playback order
	Streams []StreamInfo
}

// Settings contains the run configuration.
type Settings struct {
	View      string
	BatchSize int
	Realtime  bool
}

// StreamInfo contains the results of one stream.
type StreamInfo struct {
	ID      string
	File    string
	Codec   string
	Backend string
	Format  string // last decoded format, e.g. "640x368 bgra"
	FPS     float64

	// Input
	Payloads int
	Bytes    int64

	// Decoder
	Decoded       uint64
	DecodeErrors  uint64
	FormatChanges uint64
	LateDrops     uint64
	Resets        uint64

	// Delivery
	Delivered    uint64
	RegistryMiss uint64
	Detached     uint64
	Superseded   uint64

	// Err is the error that ended the stream early, if any.
	Err string
}

// Dropped returns frames decoded but never presented.
func (s StreamInfo) Dropped() uint64 {
	return s.RegistryMiss + s.Detached
}

// Totals sums the per-stream counters.
func (s *Summary) Totals() StreamInfo {
	var t StreamInfo
	for _, st := range s.Streams {
		t.Payloads += st.Payloads
		t.Bytes += st.Bytes
		t.Decoded += st.Decoded
		t.DecodeErrors += st.DecodeErrors
		t.FormatChanges += st.FormatChanges
		t.LateDrops += st.LateDrops
		t.Resets += st.Resets
		t.Delivered += st.Delivered
		t.RegistryMiss += st.RegistryMiss
		t.Detached += st.Detached
		t.Superseded += st.Superseded
	}
	return t
}

// NewSummary creates a new Summary with the current timestamp.
func NewSummary() *Summary {
	return &Summary{
		GeneratedAt: time.Now(),
	}
}

// Builder provides a fluent interface for building a Summary.
type Builder struct {
	summary *Summary
}

// NewBuilder creates a new Builder.
func NewBuilder() *Builder {
	return &Builder{
		summary: NewSummary(),
	}
}

// WithSettings sets run settings.
func (b *Builder) WithSettings(settings Settings) *Builder {
	b.summary.Settings = settings
	return b
}

// WithElapsed sets the wall-clock duration of the run.
func (b *Builder) WithElapsed(d time.Duration) *Builder {
	b.summary.Elapsed = d
	return b
}

// WithStream appends the results of one stream.
func (b *Builder) WithStream(info StreamInfo) *Builder {
	b.summary.Streams = append(b.summary.Streams, info)
	return b
}

// Build returns the constructed Summary.
func (b *Builder) Build() *Summary {
	return b.summary
}
