package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"path/filepath"
	"strings"
	"syscall"
	"time"

	"github.com/ideamans/go-l10n"
	"github.com/urfave/cli/v2"
	"golang.org/x/sync/errgroup"

	"github.com/user/vidsurface/pkg/adapters/codecdetect"
	"github.com/user/vidsurface/pkg/adapters/codecs"
	"github.com/user/vidsurface/pkg/adapters/ebitenview"
	"github.com/user/vidsurface/pkg/adapters/filesink"
	"github.com/user/vidsurface/pkg/adapters/ggrenderer"
	"github.com/user/vidsurface/pkg/adapters/logger"
	"github.com/user/vidsurface/pkg/adapters/nullsink"
	"github.com/user/vidsurface/pkg/adapters/osfilesystem"
	"github.com/user/vidsurface/pkg/adapters/snapshotview"
	"github.com/user/vidsurface/pkg/config"
	"github.com/user/vidsurface/pkg/coordinator"
	"github.com/user/vidsurface/pkg/metrics"
	"github.com/user/vidsurface/pkg/orchestrator"
	"github.com/user/vidsurface/pkg/ports"
	"github.com/user/vidsurface/pkg/stages/feed"
	"github.com/user/vidsurface/pkg/stages/load"
	"github.com/user/vidsurface/pkg/summarizer"
)

// buildConfig loads the configuration file, if any, and applies flags and
// FILE arguments on top.
func buildConfig(c *cli.Context) (config.Config, error) {
	cfg := config.Defaults()
	if path := c.String("config"); path != "" {
		loaded, err := config.LoadFromFile(path)
		if err != nil {
			return cfg, fmt.Errorf("load config: %w", err)
		}
		cfg = loaded
	}

	if c.IsSet("batch-size") {
		cfg.BatchSize = c.Int("batch-size")
	}
	if c.Bool("fast") {
		cfg.Realtime = false
	}
	if c.IsSet("summary") {
		cfg.Summary = c.String("summary")
	}
	if c.IsSet("view") {
		cfg.View.Mode = c.String("view")
	}
	if c.IsSet("scale") {
		cfg.View.Scale = c.Float64("scale")
	}
	if c.IsSet("snapshot-dir") {
		cfg.View.SnapshotDir = c.String("snapshot-dir")
	}
	if c.IsSet("record-dir") {
		cfg.View.RecordDir = c.String("record-dir")
	}
	if c.IsSet("snapshot-every") {
		cfg.View.SnapshotEvery = c.Int("snapshot-every")
	}
	if c.Bool("no-overlay") {
		cfg.View.Overlay = false
	}
	if c.IsSet("metrics-addr") {
		cfg.Metrics.Enabled = true
		cfg.Metrics.Addr = c.String("metrics-addr")
	}
	if c.Bool("pprof") {
		cfg.Metrics.Profiling = true
	}
	if c.IsSet("log-level") {
		cfg.LogLevel = c.String("log-level")
	}
	if c.IsSet("log-format") {
		cfg.LogFormat = c.String("log-format")
	}

	base := config.DefaultStream()
	base.Codec = c.String("codec")
	if c.IsSet("pixel-format") {
		base.PixelFormat = c.String("pixel-format")
	}
	if c.IsSet("width") {
		base.Width = c.Int("width")
	}
	if c.IsSet("height") {
		base.Height = c.Int("height")
	}
	if c.IsSet("fps") {
		base.FPS = c.Float64("fps")
	}
	base.ReorderDepth = c.Int("reorder-depth")

	cfg.Streams = append(cfg.Streams, streamsFromArgs(c.Args().Slice(), base, cfg.Streams)...)
	if len(cfg.Streams) == 0 {
		return cfg, fmt.Errorf("%s", l10n.T("no streams given"))
	}
	return cfg, cfg.Validate()
}

// streamsFromArgs creates one stream per file, named after the file. Names
// already used by existing streams get a numeric suffix.
func streamsFromArgs(files []string, base config.StreamConfig, existing []config.StreamConfig) []config.StreamConfig {
	used := make(map[string]bool)
	for _, s := range existing {
		used[s.ID] = true
	}
	var out []config.StreamConfig
	for _, f := range files {
		name := strings.TrimSuffix(filepath.Base(f), filepath.Ext(f))
		id := name
		for n := 2; used[id]; n++ {
			id = fmt.Sprintf("%s-%d", name, n)
		}
		used[id] = true

		s := base
		s.ID = id
		s.File = f
		out = append(out, s)
	}
	return out
}

func newLogger(cfg config.Config, quiet bool) ports.Logger {
	if quiet {
		return logger.NewNoop()
	}
	level := ports.ParseLogLevel(cfg.LogLevel)
	if cfg.LogFormat == "json" {
		return logger.NewJSON(level, os.Stderr)
	}
	return logger.NewConsole(level)
}

func orchestratorConfig(cfg config.Config) (orchestrator.Config, error) {
	oc := orchestrator.Config{BatchSize: cfg.BatchSize, Realtime: cfg.Realtime}
	for _, s := range cfg.Streams {
		dc, err := s.CodecConfig()
		if err != nil {
			return oc, fmt.Errorf("stream %s: %w", s.ID, err)
		}
		oc.Streams = append(oc.Streams, orchestrator.StreamSpec{ID: s.ID, Path: s.File, Decoder: dc})
	}
	return oc, nil
}

func runPlay(c *cli.Context) error {
	cfg, err := buildConfig(c)
	if err != nil {
		return err
	}
	log := newLogger(cfg, c.Bool("quiet"))
	oc, err := orchestratorConfig(cfg)
	if err != nil {
		return err
	}

	ctx, stop := signal.NotifyContext(c.Context, os.Interrupt, syscall.SIGTERM)
	defer stop()

	m := metrics.New()
	if cfg.Metrics.Enabled {
		server := metrics.NewServer(cfg.Metrics.Addr, m, cfg.Metrics.Profiling, log)
		go func() {
			if err := server.Run(); err != nil {
				log.Error("Metrics server failed: %v", err)
			}
		}()
		defer func() {
			shutdownCtx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
			defer cancel()
			server.Shutdown(shutdownCtx)
		}()
	}

	fs := osfilesystem.New()
	factory := codecs.NewFactory(codecs.Options{FFmpegPath: c.String("ffmpeg-path")})
	coord := coordinator.New(factory.New,
		coordinator.WithLogger(log.WithComponent("coordinator")),
		coordinator.WithMetrics(m),
	)
	defer coord.Close()

	orch := orchestrator.New(
		load.NewStage(fs, log.WithComponent("load")),
		feed.NewStage(log.WithComponent("feed")),
		coord,
		factory,
		log,
	)

	var result orchestrator.RunResult
	switch cfg.View.Mode {
	case config.ViewWindow:
		result, err = playWindow(ctx, cfg, coord, orch, oc, log)
	default:
		result, err = playHeadless(ctx, cfg, coord, orch, oc, newHeadlessViews(cfg, fs, log), log)
	}

	if cfg.Summary != "" {
		settings := summarizer.Settings{View: cfg.View.Mode, BatchSize: cfg.BatchSize, Realtime: cfg.Realtime}
		writer := summarizer.NewWriter(summarizer.NewMarkdownFormatter(
			summarizer.WithTranslator(l10n.T),
			summarizer.WithVersion(version),
		), fs)
		if werr := writer.Write(cfg.Summary, result.Summary(settings)); werr != nil {
			log.Error("Failed to write summary: %v", werr)
		} else {
			log.Info("Summary saved to %s", cfg.Summary)
		}
	}
	return err
}

// playWindow runs the ebiten window on the calling goroutine, which must be
// the main one, and plays streams in the background. The window stays open
// after playback until the user closes it.
func playWindow(ctx context.Context, cfg config.Config, coord *coordinator.Coordinator, orch *orchestrator.Orchestrator, oc orchestrator.Config, log ports.Logger) (orchestrator.RunResult, error) {
	win := ebitenview.New(ebitenview.Options{
		Title:   cfg.View.Title,
		Scale:   cfg.View.Scale,
		Overlay: cfg.View.Overlay,
	}, log.WithComponent("window"))
	for _, s := range oc.Streams {
		tile := win.AddTile(s.ID)
		tile.Attach(coord.AttachView(s.ID, tile))
	}

	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	type outcome struct {
		result orchestrator.RunResult
		err    error
	}
	done := make(chan outcome, 1)
	go func() {
		r, err := orch.Run(ctx, oc)
		done <- outcome{r, err}
	}()
	go func() {
		<-ctx.Done()
		win.Close()
	}()

	werr := win.Run()
	cancel()
	out := <-done
	if werr != nil {
		return out.result, werr
	}
	return out.result, out.err
}

// headlessView is a view driven by its own ticker instead of a window.
type headlessView interface {
	ports.Drawable
	Attach(src ports.FrameSource)
	Run(ctx context.Context, interval time.Duration) error
	Flush() error
	ID() string
	Saved() int
}

// newHeadlessViews returns the view constructor for a headless view mode.
func newHeadlessViews(cfg config.Config, fs ports.FileSystem, log ports.Logger) func(id string) headlessView {
	switch cfg.View.Mode {
	case config.ViewSnapshot:
		renderer := ggrenderer.New()
		opts := snapshotview.Options{
			Dir:        cfg.View.SnapshotDir,
			Every:      cfg.View.SnapshotEvery,
			Scale:      cfg.View.Scale,
			Overlay:    cfg.View.Overlay,
			Background: config.ParseColor(cfg.View.Theme.BackgroundColor),
			TextColor:  config.ParseColor(cfg.View.Theme.TextColor),
			Accent:     config.ParseColor(cfg.View.Theme.AccentColor),
			FontPath:   cfg.View.FontPath,
		}
		return func(id string) headlessView {
			return snapshotview.New(id, fs, renderer, opts, log)
		}
	case config.ViewRecord:
		return func(id string) headlessView {
			return filesink.New(id, cfg.View.RecordDir, fs, log)
		}
	default:
		return func(id string) headlessView {
			return nullsink.New(id)
		}
	}
}

// playHeadless drives one headless view per stream from its own ticker.
func playHeadless(ctx context.Context, cfg config.Config, coord *coordinator.Coordinator, orch *orchestrator.Orchestrator, oc orchestrator.Config, newView func(id string) headlessView, log ports.Logger) (orchestrator.RunResult, error) {
	interval := time.Duration(cfg.View.TickMs) * time.Millisecond

	viewCtx, stopViews := context.WithCancel(ctx)
	defer stopViews()

	var views []headlessView
	var g errgroup.Group
	for _, s := range oc.Streams {
		v := newView(s.ID)
		v.Attach(coord.AttachView(s.ID, v))
		views = append(views, v)
		g.Go(func() error {
			if err := v.Run(viewCtx, interval); err != nil {
				return err
			}
			return v.Flush()
		})
	}

	result, err := orch.Run(ctx, oc)
	stopViews()
	if verr := g.Wait(); verr != nil {
		log.Warn("Failed to save snapshot: %v", verr)
	}
	if cfg.View.Mode != config.ViewNone {
		for _, v := range views {
			log.Info("Saved %d frames for %s", v.Saved(), v.ID())
		}
	}
	return result, err
}

func runDetect(c *cli.Context) error {
	if c.NArg() == 0 {
		return fmt.Errorf("%s", l10n.T("no files given"))
	}
	factory := codecs.NewFactory(codecs.Options{})
	for _, path := range c.Args().Slice() {
		name, err := codecdetect.DetectFromFile(path)
		if err != nil {
			fmt.Fprintln(c.App.Writer, l10n.F("%s: %s", path, err))
			continue
		}
		backend := l10n.T("unavailable")
		if info, err := factory.Info(name); err == nil {
			backend = string(info.Backend)
		}
		fmt.Fprintln(c.App.Writer, l10n.F("%s: %s (%s)", path, name, backend))
	}
	return nil
}
