// Package main provides the CLI entry point for vidsurface.
package main

import (
	"fmt"
	"os"

	"github.com/ideamans/go-l10n"
	"github.com/urfave/cli/v2"
)

var version = "dev"

// Flag categories
const (
	catInput    = "Input"
	catPlayback = "Playback"
	catView     = "View"
	catMetrics  = "Metrics"
	catLogging  = "Logging"
)

func main() {
	if err := newApp().Run(os.Args); err != nil {
		fmt.Fprintln(os.Stderr, l10n.F("Error: %s", err))
		os.Exit(1)
	}
}

func newApp() *cli.App {
	return &cli.App{
		Name:    "vidsurface",
		Usage:   l10n.T("Decode video streams and display them on render surfaces"),
		Version: version,
		Commands: []*cli.Command{
			playCommand(),
			detectCommand(),
		},
	}
}

func playCommand() *cli.Command {
	return &cli.Command{
		Name:      "play",
		Usage:     l10n.T("Decode and display elementary streams"),
		ArgsUsage: "FILE...",
		Flags: []cli.Flag{
			&cli.StringFlag{Name: "config", Aliases: []string{"c"}, Category: l10n.T(catInput), Usage: l10n.T("YAML configuration file")},
			&cli.StringFlag{Name: "codec", Category: l10n.T(catInput), Usage: l10n.T("Codec of FILE arguments (h264, mjpeg, raw; default: detect)")},
			&cli.StringFlag{Name: "pixel-format", Category: l10n.T(catInput), Usage: l10n.T("Output pixel format (bgra, i420)")},
			&cli.IntFlag{Name: "width", Aliases: []string{"W"}, Category: l10n.T(catInput), Usage: l10n.T("Announced stream width (default: 640)")},
			&cli.IntFlag{Name: "height", Aliases: []string{"H"}, Category: l10n.T(catInput), Usage: l10n.T("Announced stream height (default: 368)")},
			&cli.Float64Flag{Name: "fps", Category: l10n.T(catInput), Usage: l10n.T("Frame rate for implicit timestamps (default: 30)")},
			&cli.IntFlag{Name: "reorder-depth", Category: l10n.T(catInput), Usage: l10n.T("Frames held back to restore presentation order")},
			&cli.StringFlag{Name: "ffmpeg-path", Category: l10n.T(catInput), Usage: l10n.T("Path to the ffmpeg binary used for H.264")},

			&cli.IntFlag{Name: "batch-size", Aliases: []string{"b"}, Category: l10n.T(catPlayback), Usage: l10n.T("Payloads per decode call")},
			&cli.BoolFlag{Name: "fast", Category: l10n.T(catPlayback), Usage: l10n.T("Decode as fast as possible instead of at the stream frame rate")},
			&cli.StringFlag{Name: "summary", Aliases: []string{"s"}, Category: l10n.T(catPlayback), Usage: l10n.T("Write a Markdown summary to this path")},

			&cli.StringFlag{Name: "view", Category: l10n.T(catView), Usage: l10n.T("View mode (window, snapshot, record, none)")},
			&cli.Float64Flag{Name: "scale", Category: l10n.T(catView), Usage: l10n.T("Window or snapshot scale")},
			&cli.StringFlag{Name: "snapshot-dir", Category: l10n.T(catView), Usage: l10n.T("Directory for snapshot PNGs")},
			&cli.IntFlag{Name: "snapshot-every", Category: l10n.T(catView), Usage: l10n.T("Draw ticks between snapshots")},
			&cli.StringFlag{Name: "record-dir", Category: l10n.T(catView), Usage: l10n.T("Directory for recorded raw frames")},
			&cli.BoolFlag{Name: "no-overlay", Category: l10n.T(catView), Usage: l10n.T("Hide the stream label overlay")},

			&cli.StringFlag{Name: "metrics-addr", Category: l10n.T(catMetrics), Usage: l10n.T("Serve Prometheus metrics on this address (e.g. :9090)")},
			&cli.BoolFlag{Name: "pprof", Category: l10n.T(catMetrics), Usage: l10n.T("Also serve pprof handlers")},

			&cli.StringFlag{Name: "log-level", Aliases: []string{"l"}, Category: l10n.T(catLogging), Usage: l10n.T("Log level (debug, info, warn, error)")},
			&cli.StringFlag{Name: "log-format", Category: l10n.T(catLogging), Usage: l10n.T("Log format (console, json)")},
			&cli.BoolFlag{Name: "quiet", Aliases: []string{"q"}, Category: l10n.T(catLogging), Usage: l10n.T("Suppress all log output")},
		},
		Action: runPlay,
	}
}

func detectCommand() *cli.Command {
	return &cli.Command{
		Name:      "detect",
		Usage:     l10n.T("Show the codec and decoding backend of each file"),
		ArgsUsage: "FILE...",
		Action:    runDetect,
	}
}
