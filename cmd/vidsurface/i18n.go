// Package main provides localization for the vidsurface CLI.
package main

import (
	"github.com/ideamans/go-l10n"
)

func init() {
	// Register Japanese translations for CLI messages.
	l10n.Register("ja", l10n.LexiconMap{
		// Flag categories
		"Input":    "入力",
		"Playback": "再生",
		"View":     "表示",
		"Metrics":  "メトリクス",
		"Logging":  "ログ",

		// Commands
		"Decode video streams and display them on render surfaces": "動画ストリームをデコードしてレンダーサーフェスに表示",
		"Decode and display elementary streams":                    "エレメンタリーストリームをデコードして表示",
		"Show the codec and decoding backend of each file":         "各ファイルのコーデックとデコードバックエンドを表示",

		// Input flags
		"YAML configuration file":                                     "YAML設定ファイル",
		"Codec of FILE arguments (h264, mjpeg, raw; default: detect)": "FILE引数のコーデック（h264, mjpeg, raw、デフォルト: 自動判定）",
		"Output pixel format (bgra, i420)":                            "出力ピクセルフォーマット（bgra, i420）",
		"Announced stream width (default: 640)":                       "ストリームの幅（デフォルト: 640）",
		"Announced stream height (default: 368)":                      "ストリームの高さ（デフォルト: 368）",
		"Frame rate for implicit timestamps (default: 30)":            "暗黙のタイムスタンプに使うフレームレート（デフォルト: 30）",
		"Frames held back to restore presentation order":              "表示順に並べ替えるために保持するフレーム数",
		"Path to the ffmpeg binary used for H.264":                    "H.264デコードに使うffmpegのパス",

		// Playback flags
		"Payloads per decode call":                                       "1回のデコード呼び出しあたりのペイロード数",
		"Decode as fast as possible instead of at the stream frame rate": "ストリームのフレームレートではなく最速でデコード",
		"Write a Markdown summary to this path":                          "Markdownサマリーをこのパスに出力",

		// View flags
		"View mode (window, snapshot, record, none)": "表示モード（window, snapshot, record, none）",
		"Directory for recorded raw frames":          "記録する生フレームの出力先ディレクトリ",
		"Window or snapshot scale":                   "ウィンドウまたはスナップショットの倍率",
		"Directory for snapshot PNGs":                "スナップショットPNGの出力先ディレクトリ",
		"Draw ticks between snapshots":               "スナップショット間の描画ティック数",
		"Hide the stream label overlay":              "ストリームラベルのオーバーレイを非表示",

		// Metrics flags
		"Serve Prometheus metrics on this address (e.g. :9090)": "このアドレスでPrometheusメトリクスを公開（例: :9090）",
		"Also serve pprof handlers":                             "pprofハンドラーも公開",

		// Logging flags
		"Log level (debug, info, warn, error)": "ログレベル（debug, info, warn, error）",
		"Log format (console, json)":           "ログ形式（console, json）",
		"Suppress all log output":              "すべてのログ出力を抑制",

		// Command output
		"Error: %s":        "エラー: %s",
		"no streams given": "ストリームが指定されていません",
		"no files given":   "ファイルが指定されていません",
		"unavailable":      "利用不可",

		// Summary
		"Playback Summary":         "再生サマリー",
		"Generated":                "生成日時",
		"Elapsed":                  "経過時間",
		"Batch Size":               "バッチサイズ",
		"Realtime":                 "リアルタイム",
		"Streams":                  "ストリーム",
		"Stream":                   "ストリーム",
		"File":                     "ファイル",
		"Codec":                    "コーデック",
		"Format":                   "フォーマット",
		"Frame Rate":               "フレームレート",
		"Payloads":                 "ペイロード",
		"Decoded":                  "デコード済み",
		"Decode Errors":            "デコードエラー",
		"Format Changes":           "フォーマット変更",
		"Late Frames":              "遅延フレーム",
		"Decoder Resets":           "デコーダーリセット",
		"Presented":                "表示",
		"Superseded":               "上書き",
		"Dropped":                  "破棄",
		"Registry Miss / Detached": "未登録 / 切り離し",
		"Totals":                   "合計",
		"Error":                    "エラー",
		"No streams were played.":  "再生されたストリームはありません。",
		"yes":                      "はい",
		"no":                       "いいえ",
		"Generated by vidsurface":  "生成: vidsurface",
	})
}
