package logger

import "github.com/ideamans/go-l10n"

func init() {
	l10n.Register("ja", l10n.LexiconMap{
		// Orchestration
		"Playing %d streams":                  "%d 本のストリームを再生中",
		"Playback finished in %v":             "再生が %v で完了しました",
		"Failed to load stream %s: %v":        "ストリーム %s の読み込みに失敗しました: %v",
		"Loaded %s: %d %s payloads, %d bytes": "%s を読み込みました: %d 個の %s ペイロード, %d バイト",
		"Fed %d payloads in %d batches":       "%d ペイロードを %d バッチで投入しました",
		"Summary saved to %s":                 "サマリーを %s に保存しました",
		"Failed to write summary: %v":         "サマリーの書き込みに失敗しました: %v",

		// Coordinator
		"Stream opened: %s %s":                    "ストリームを開きました: %s %s",
		"Stream closed: %d delivered, %d dropped": "ストリームを閉じました: %d 配信, %d 破棄",
		"Failed to open stream: %v":               "ストリームを開けませんでした: %v",
		"Stream state %s -> %s":                   "ストリーム状態 %s -> %s",
		"Format change to %s at %v":               "%[2]v で %[1]s に形式が変わりました",
		"Payload %d of batch failed: %v":          "バッチ内のペイロード %d が失敗しました: %v",
		"Dropping frame %v: %s":                   "フレーム %v を破棄: %s",
		"Failed to present frame %v: %v":          "フレーム %v の表示に失敗しました: %v",
		"View %s attached":                        "ビュー %s を接続しました",
		"View %s detached":                        "ビュー %s を切断しました",
		"Failed to prepare surface %s: %v":        "サーフェス %s の準備に失敗しました: %v",
		"View %s replaced":                        "ビュー %s を置き換えました",

		// Decoder session
		"Session opened: %s %s":                   "セッションを開きました: %s %s",
		"Session closed after %d payloads":        "%d ペイロード後にセッションを閉じました",
		"Format changed: %s -> %s":                "形式が変わりました: %s -> %s",
		"Skipping malformed payload at %v: %v":    "%v の不正なペイロードをスキップ: %v",
		"Dropping late frame %v (last output %v)": "遅延フレーム %v を破棄 (最終出力 %v)",
		"Codec reset after lost state":            "状態を失ったためコーデックをリセットしました",
		"Codec close during reset: %v":            "リセット中のコーデック終了: %v",
		"Failed to reset codec: %v":               "コーデックのリセットに失敗しました: %v",

		// Surfaces and views
		"Surface %s reconfigured: %v": "サーフェス %s を再構成しました: %v",
		"Surface %s detached":         "サーフェス %s を切り離しました",
		"View %s configured for %s":   "ビュー %s を %s 用に構成しました",
		"Tile %s configured for %s":   "タイル %s を %s 用に構成しました",
		"Opening window %q":           "ウィンドウ %q を開いています",
		"Saved snapshot %s":           "スナップショット %s を保存しました",
		"Saved %d frames for %s":      "%[2]s のフレームを %[1]d 枚保存しました",
		"Failed to record frame: %v":  "フレームの記録に失敗しました: %v",
		"Failed to save snapshot: %v": "スナップショットの保存に失敗しました: %v",

		// Metrics
		"Serving metrics at %s":        "%s でメトリクスを公開中",
		"Shutting down metrics server": "メトリクスサーバーを停止中",
		"Metrics server failed: %v":    "メトリクスサーバーが失敗しました: %v",
	})
}
