// Package load implements the stage that reads an elementary stream file
// and frames it into payloads.
package load

import (
	"context"
	"fmt"

	"github.com/user/vidsurface/pkg/adapters/codecs"
	"github.com/user/vidsurface/pkg/pipeline"
	"github.com/user/vidsurface/pkg/ports"
)

// Stage loads stream files.
type Stage struct {
	fs     ports.FileSystem
	logger ports.Logger
}

// NewStage creates a new load stage.
func NewStage(fs ports.FileSystem, logger ports.Logger) *Stage {
	return &Stage{
		fs:     fs,
		logger: logger,
	}
}

// Execute reads the file, resolves its codec and splits it into payloads.
func (s *Stage) Execute(ctx context.Context, input pipeline.LoadInput) (pipeline.LoadResult, error) {
	result := pipeline.LoadResult{}

	if err := ctx.Err(); err != nil {
		return result, err
	}

	data, err := s.fs.ReadFile(input.Path)
	if err != nil {
		return result, fmt.Errorf("read %s: %w", input.Path, err)
	}
	result.Bytes = int64(len(data))

	codec, err := codecs.Resolve(input.Codec, data)
	if err != nil {
		return result, fmt.Errorf("detect codec of %s: %w", input.Path, err)
	}
	result.Codec = codec

	payloads, err := codecs.Split(codec, data)
	if err != nil {
		return result, err
	}
	if len(payloads) == 0 {
		return result, fmt.Errorf("%s: no %s payloads found", input.Path, codec)
	}
	result.Payloads = payloads

	s.logger.Info("Loaded %s: %d %s payloads, %d bytes", input.ID, len(payloads), codec, len(data))
	return result, nil
}

var _ pipeline.Stage[pipeline.LoadInput, pipeline.LoadResult] = (*Stage)(nil)
