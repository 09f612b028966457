package summarizer

import (
	"fmt"
	"strings"
	"time"
)

// MarkdownFormatter renders a Summary as a Markdown report.
type MarkdownFormatter struct {
	translate func(string) string
	version   string
}

// MarkdownOption configures a MarkdownFormatter.
type MarkdownOption func(*MarkdownFormatter)

// WithTranslator sets the function used to translate labels.
func WithTranslator(fn func(string) string) MarkdownOption {
	return func(f *MarkdownFormatter) { f.translate = fn }
}

// WithVersion sets the version shown in the footer.
func WithVersion(v string) MarkdownOption {
	return func(f *MarkdownFormatter) { f.version = v }
}

// NewMarkdownFormatter creates a MarkdownFormatter.
func NewMarkdownFormatter(opts ...MarkdownOption) *MarkdownFormatter {
	f := &MarkdownFormatter{translate: func(s string) string { return s }}
	for _, opt := range opts {
		opt(f)
	}
	return f
}

// Format implements Formatter.
func (f *MarkdownFormatter) Format(s *Summary) string {
	t := f.translate
	var b strings.Builder

	fmt.Fprintf(&b, "# %s\n\n", t("Playback Summary"))
	fmt.Fprintf(&b, "- %s: %s\n", t("Generated"), s.GeneratedAt.Format(time.RFC3339))
	if s.Elapsed > 0 {
		fmt.Fprintf(&b, "- %s: %s\n", t("Elapsed"), s.Elapsed.Round(time.Millisecond))
	}
	if s.Settings.View != "" {
		fmt.Fprintf(&b, "- %s: %s\n", t("View"), s.Settings.View)
	}
	if s.Settings.BatchSize > 0 {
		fmt.Fprintf(&b, "- %s: %d\n", t("Batch Size"), s.Settings.BatchSize)
	}
	fmt.Fprintf(&b, "- %s: %s\n", t("Realtime"), yesNo(t, s.Settings.Realtime))
	b.WriteString("\n")

	if len(s.Streams) == 0 {
		fmt.Fprintf(&b, "%s\n", t("No streams were played."))
		f.footer(&b)
		return b.String()
	}

	fmt.Fprintf(&b, "## %s\n\n", t("Streams"))
	fmt.Fprintf(&b, "| %s | %s | %s | %s | %s | %s | %s | %s |\n",
		t("Stream"), t("Codec"), t("Format"), t("Payloads"), t("Input"),
		t("Decoded"), t("Presented"), t("Dropped"))
	b.WriteString("|---|---|---|---:|---:|---:|---:|---:|\n")
	for _, st := range s.Streams {
		codec := st.Codec
		if st.Backend != "" {
			codec = fmt.Sprintf("%s (%s)", st.Codec, st.Backend)
		}
		fmt.Fprintf(&b, "| %s | %s | %s | %d | %s | %d | %d | %d |\n",
			st.ID, codec, st.Format, st.Payloads, formatBytes(st.Bytes),
			st.Decoded, st.Delivered, st.Dropped())
	}
	b.WriteString("\n")

	for _, st := range s.Streams {
		fmt.Fprintf(&b, "### %s\n\n", st.ID)
		if st.File != "" {
			fmt.Fprintf(&b, "- %s: `%s`\n", t("File"), st.File)
		}
		if st.FPS > 0 {
			fmt.Fprintf(&b, "- %s: %.2f\n", t("Frame Rate"), st.FPS)
		}
		fmt.Fprintf(&b, "- %s: %d\n", t("Decode Errors"), st.DecodeErrors)
		fmt.Fprintf(&b, "- %s: %d\n", t("Format Changes"), st.FormatChanges)
		fmt.Fprintf(&b, "- %s: %d\n", t("Late Frames"), st.LateDrops)
		fmt.Fprintf(&b, "- %s: %d\n", t("Decoder Resets"), st.Resets)
		fmt.Fprintf(&b, "- %s: %d\n", t("Superseded"), st.Superseded)
		fmt.Fprintf(&b, "- %s: %d / %d\n", t("Registry Miss / Detached"), st.RegistryMiss, st.Detached)
		if st.Err != "" {
			fmt.Fprintf(&b, "- %s: %s\n", t("Error"), st.Err)
		}
		b.WriteString("\n")
	}

	if len(s.Streams) > 1 {
		tot := s.Totals()
		fmt.Fprintf(&b, "## %s\n\n", t("Totals"))
		fmt.Fprintf(&b, "- %s: %d (%s)\n", t("Payloads"), tot.Payloads, formatBytes(tot.Bytes))
		fmt.Fprintf(&b, "- %s: %d\n", t("Decoded"), tot.Decoded)
		fmt.Fprintf(&b, "- %s: %d\n", t("Presented"), tot.Delivered)
		fmt.Fprintf(&b, "- %s: %d\n\n", t("Dropped"), tot.Dropped())
	}

	f.footer(&b)
	return b.String()
}

func (f *MarkdownFormatter) footer(b *strings.Builder) {
	if f.version != "" {
		fmt.Fprintf(b, "---\n%s %s\n", f.translate("Generated by vidsurface"), f.version)
	}
}

func yesNo(t func(string) string, v bool) string {
	if v {
		return t("yes")
	}
	return t("no")
}

// formatBytes renders a byte count with a binary unit.
func formatBytes(n int64) string {
	const unit = 1024
	if n < unit {
		return fmt.Sprintf("%d B", n)
	}
	div, exp := int64(unit), 0
	for m := n / unit; m >= unit && exp < 2; m /= unit {
		div *= unit
		exp++
	}
	return fmt.Sprintf("%.2f %cB", float64(n)/float64(div), "KMG"[exp])
}
