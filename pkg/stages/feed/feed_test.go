package feed

import (
	"context"
	"testing"
	"time"

	"github.com/user/vidsurface/pkg/adapters/logger"
	"github.com/user/vidsurface/pkg/coordinator"
	"github.com/user/vidsurface/pkg/pipeline"
)

func payloads(n int) [][]byte {
	out := make([][]byte, n)
	for i := range out {
		out[i] = []byte{byte(i)}
	}
	return out
}

func TestStage_Batches(t *testing.T) {
	out := make(chan []coordinator.Payload, 10)
	stage := NewStage(logger.NewNoop())

	result, err := stage.Execute(context.Background(), pipeline.FeedInput{
		Payloads:  payloads(7),
		BatchSize: 3,
		Out:       out,
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if result.Batches != 3 || result.Payloads != 7 {
		t.Errorf("unexpected result %+v", result)
	}

	var sizes []int
	next := byte(0)
	for batch := range out {
		sizes = append(sizes, len(batch))
		for _, p := range batch {
			if p.Timed {
				t.Error("expected implicit timestamps")
			}
			if p.Data[0] != next {
				t.Errorf("payload out of order: got %d, want %d", p.Data[0], next)
			}
			next++
		}
	}
	if len(sizes) != 3 || sizes[0] != 3 || sizes[1] != 3 || sizes[2] != 1 {
		t.Errorf("unexpected batch sizes %v", sizes)
	}
}

func TestStage_Paced(t *testing.T) {
	out := make(chan []coordinator.Payload, 10)
	start := time.Now()

	_, err := NewStage(logger.NewNoop()).Execute(context.Background(), pipeline.FeedInput{
		Payloads:  payloads(3),
		BatchSize: 1,
		Interval:  20 * time.Millisecond,
		Out:       out,
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	// Two waits between three batches.
	if elapsed := time.Since(start); elapsed < 35*time.Millisecond {
		t.Errorf("expected paced feed, finished in %v", elapsed)
	}
}

func TestStage_Cancelled(t *testing.T) {
	out := make(chan []coordinator.Payload) // nobody reads
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := NewStage(logger.NewNoop()).Execute(ctx, pipeline.FeedInput{Payloads: payloads(2), Out: out})
	if err != context.Canceled {
		t.Errorf("expected context.Canceled, got %v", err)
	}
	if _, ok := <-out; ok {
		t.Error("expected output to be closed")
	}
}
