// Package feed implements the stage that hands payloads to a decode
// stream in batches, optionally paced at the stream frame rate.
package feed

import (
	"context"
	"time"

	"github.com/user/vidsurface/pkg/coordinator"
	"github.com/user/vidsurface/pkg/pipeline"
	"github.com/user/vidsurface/pkg/ports"
)

// Stage feeds payloads.
type Stage struct {
	logger ports.Logger
}

// NewStage creates a new feed stage.
func NewStage(logger ports.Logger) *Stage {
	return &Stage{logger: logger}
}

// Execute sends every payload to input.Out and closes it. Payloads carry
// implicit timestamps. A paced feed waits one interval per payload between
// batches.
func (s *Stage) Execute(ctx context.Context, input pipeline.FeedInput) (pipeline.FeedResult, error) {
	defer close(input.Out)

	result := pipeline.FeedResult{}
	size := input.BatchSize
	if size < 1 {
		size = 1
	}

	var tick <-chan time.Time
	if input.Interval > 0 {
		ticker := time.NewTicker(input.Interval * time.Duration(size))
		defer ticker.Stop()
		tick = ticker.C
	}

	for start := 0; start < len(input.Payloads); start += size {
		end := start + size
		if end > len(input.Payloads) {
			end = len(input.Payloads)
		}
		batch := make([]coordinator.Payload, 0, end-start)
		for _, p := range input.Payloads[start:end] {
			batch = append(batch, coordinator.Next(p))
		}

		select {
		case <-ctx.Done():
			return result, ctx.Err()
		case input.Out <- batch:
		}
		result.Batches++
		result.Payloads += len(batch)

		if tick != nil && end < len(input.Payloads) {
			select {
			case <-ctx.Done():
				return result, ctx.Err()
			case <-tick:
			}
		}
	}

	s.logger.Debug("Fed %d payloads in %d batches", result.Payloads, result.Batches)
	return result, nil
}

var _ pipeline.Stage[pipeline.FeedInput, pipeline.FeedResult] = (*Stage)(nil)
