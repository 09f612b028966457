// Package orchestrator plays configured streams through the coordinator.
package orchestrator

import (
	"context"
	"errors"
	"fmt"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/user/vidsurface/pkg/adapters/codecs"
	"github.com/user/vidsurface/pkg/coordinator"
	"github.com/user/vidsurface/pkg/decoder"
	"github.com/user/vidsurface/pkg/frame"
	"github.com/user/vidsurface/pkg/pipeline"
	"github.com/user/vidsurface/pkg/ports"
	"github.com/user/vidsurface/pkg/summarizer"
)

// StreamSpec describes one stream to play.
type StreamSpec struct {
	ID   string
	Path string

	// Decoder configures the decode session. An empty or unknown codec is
	// detected from the file.
	Decoder decoder.Config
}

// Config contains all configuration for the orchestrator.
type Config struct {
	Streams   []StreamSpec
	BatchSize int
	Realtime  bool // pace payloads at the stream frame rate
}

// CodecInfo reports which backend decodes a codec.
type CodecInfo interface {
	Info(name ports.CodecName) (codecs.Info, error)
}

// Orchestrator loads, decodes and presents every stream concurrently.
type Orchestrator struct {
	loadStage pipeline.Stage[pipeline.LoadInput, pipeline.LoadResult]
	feedStage pipeline.Stage[pipeline.FeedInput, pipeline.FeedResult]
	coord     *coordinator.Coordinator
	codecs    CodecInfo
	logger    ports.Logger
}

// New creates a new Orchestrator.
func New(
	loadStage pipeline.Stage[pipeline.LoadInput, pipeline.LoadResult],
	feedStage pipeline.Stage[pipeline.FeedInput, pipeline.FeedResult],
	coord *coordinator.Coordinator,
	codecs CodecInfo,
	logger ports.Logger,
) *Orchestrator {
	return &Orchestrator{
		loadStage: loadStage,
		feedStage: feedStage,
		coord:     coord,
		codecs:    codecs,
		logger:    logger,
	}
}

// Run plays every stream to its end. Streams are independent: a failing
// stream is reported in its result and does not stop the others. The
// returned error joins all stream failures.
func (o *Orchestrator) Run(ctx context.Context, config Config) (RunResult, error) {
	o.logger.Info("Playing %d streams", len(config.Streams))
	start := time.Now()

	result := RunResult{Streams: make([]StreamResult, len(config.Streams))}
	var g errgroup.Group
	for i, spec := range config.Streams {
		g.Go(func() error {
			result.Streams[i] = o.play(ctx, spec, config)
			return nil
		})
	}
	g.Wait()
	result.Elapsed = time.Since(start)

	var errs []error
	for _, s := range result.Streams {
		if s.Err != nil {
			errs = append(errs, fmt.Errorf("stream %s: %w", s.ID, s.Err))
		}
	}
	o.logger.Info("Playback finished in %v", result.Elapsed.Round(time.Millisecond))
	return result, errors.Join(errs...)
}

func (o *Orchestrator) play(ctx context.Context, spec StreamSpec, config Config) StreamResult {
	res := StreamResult{ID: spec.ID, Path: spec.Path, FPS: spec.Decoder.FPS}

	loaded, err := o.loadStage.Execute(ctx, pipeline.LoadInput{ID: spec.ID, Path: spec.Path, Codec: spec.Decoder.Codec})
	res.Codec, res.Bytes, res.Payloads = loaded.Codec, loaded.Bytes, len(loaded.Payloads)
	if err != nil {
		o.logger.Error("Failed to load stream %s: %v", spec.ID, err)
		res.Err = err
		return res
	}
	if info, err := o.codecs.Info(loaded.Codec); err == nil {
		res.Backend = string(info.Backend)
	}

	cfg := spec.Decoder
	cfg.Codec = loaded.Codec
	stream, err := o.coord.OpenStream(spec.ID, cfg)
	if err != nil {
		res.Err = err
		return res
	}

	var interval time.Duration
	if config.Realtime {
		interval = cfg.FrameInterval()
	}
	batches := make(chan []coordinator.Payload, 2)

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		_, err := o.feedStage.Execute(gctx, pipeline.FeedInput{
			Payloads:  loaded.Payloads,
			BatchSize: config.BatchSize,
			Interval:  interval,
			Out:       batches,
		})
		return err
	})
	g.Go(func() error {
		return stream.Run(gctx, batches)
	})
	if err := g.Wait(); err != nil && !errors.Is(err, coordinator.ErrStreamClosed) {
		res.Err = err
	}

	res.Stats = stream.Stats()
	res.Format = stream.Format()
	if err := stream.Close(); err != nil && res.Err == nil {
		res.Err = err
	}
	return res
}

// RunResult contains the results of a playback run for summary generation.
type RunResult struct {
	Elapsed time.Duration
	Streams []StreamResult
}

// StreamResult contains the results of one stream.
type StreamResult struct {
	ID      string
	Path    string
	Codec   ports.CodecName
	Backend string
	FPS     float64

	Payloads int
	Bytes    int64

	Format frame.Format
	Stats  coordinator.StreamStats
	Err    error
}

// Summary converts the run into a summary.
func (r RunResult) Summary(settings summarizer.Settings) *summarizer.Summary {
	b := summarizer.NewBuilder().WithSettings(settings).WithElapsed(r.Elapsed)
	for _, s := range r.Streams {
		info := summarizer.StreamInfo{
			ID:            s.ID,
			File:          s.Path,
			Codec:         string(s.Codec),
			Backend:       s.Backend,
			FPS:           s.FPS,
			Payloads:      s.Payloads,
			Bytes:         s.Bytes,
			Decoded:       s.Stats.Decoder.Decoded,
			DecodeErrors:  s.Stats.Decoder.DecodeErrors,
			FormatChanges: s.Stats.Decoder.FormatChanges,
			LateDrops:     s.Stats.Decoder.LateDrops,
			Resets:        s.Stats.Decoder.Resets,
			Delivered:     s.Stats.Delivered,
			RegistryMiss:  s.Stats.RegistryMiss,
			Detached:      s.Stats.Detached,
			Superseded:    s.Stats.Superseded,
		}
		if s.Format.Pixel != frame.FormatUnknown {
			info.Format = s.Format.String()
		}
		if s.Err != nil {
			info.Err = s.Err.Error()
		}
		b.WithStream(info)
	}
	return b.Build()
}
