// Package report renders inspection and catalog results as Markdown, and
// Markdown as HTML.
package report

import (
	"bytes"
	"fmt"
	"strings"
	"time"

	"github.com/yuin/goldmark"
	"github.com/yuin/goldmark/extension"

	"github.com/hpungsan/upkg/internal/archive"
	"github.com/hpungsan/upkg/internal/ops"
)

var md = goldmark.New(goldmark.WithExtensions(extension.Table))

// HTML converts Markdown to an HTML fragment. Raw HTML in the input is
// not passed through.
func HTML(src string) (string, error) {
	var buf bytes.Buffer
	if err := md.Convert([]byte(src), &buf); err != nil {
		return "", fmt.Errorf("render markdown: %w", err)
	}
	return buf.String(), nil
}

// Markdown summarizes an inspected archive: totals, one row per asset, then
// skipped identifiers and reader warnings.
func Markdown(out *ops.InspectOutput) string {
	var b strings.Builder

	fmt.Fprintf(&b, "# %s\n\n", escape(archive.Stem(out.Archive)))
	fmt.Fprintf(&b, "- Archive: `%s`\n", out.Archive)
	fmt.Fprintf(&b, "- Output: `%s`\n", out.OutputDir)
	fmt.Fprintf(&b, "- Entries: %d\n", out.Entries)
	fmt.Fprintf(&b, "- Assets: %d\n", len(out.Assets))
	fmt.Fprintf(&b, "- Bytes to write: %s\n\n", FormatBytes(out.TotalBytes))

	if len(out.Assets) > 0 {
		b.WriteString("## Assets\n\n")
		b.WriteString("| Identifier | Path | Kinds | Payload | Meta | Preview |\n")
		b.WriteString("|---|---|---|---:|---:|---:|\n")
		for _, a := range out.Assets {
			kinds := make([]string, len(a.Kinds))
			for i, k := range a.Kinds {
				kinds[i] = string(k)
			}
			path := escape(a.Pathname)
			if path == "" {
				path = "_none_"
			}
			fmt.Fprintf(&b, "| `%s` | %s | %s | %s | %s | %s |\n",
				a.ID, path, strings.Join(kinds, ", "),
				FormatBytes(a.PayloadBytes), FormatBytes(a.MetaBytes), FormatBytes(a.PreviewBytes))
		}
		b.WriteString("\n")
	}

	if len(out.Unroutable) > 0 {
		b.WriteString("## Skipped\n\nNo pathname entry, nothing will be written:\n\n")
		for _, id := range out.Unroutable {
			fmt.Fprintf(&b, "- `%s`\n", id)
		}
		b.WriteString("\n")
	}

	if len(out.Rejected) > 0 {
		b.WriteString("## Rejected\n\n")
		for _, r := range out.Rejected {
			fmt.Fprintf(&b, "- `%s`: %s\n", r.AssetID, escape(r.Error))
		}
		b.WriteString("\n")
	}

	if len(out.Warnings) > 0 {
		b.WriteString("## Warnings\n\n")
		for _, w := range out.Warnings {
			fmt.Fprintf(&b, "- %s\n", escape(w.String()))
		}
		b.WriteString("\n")
	}

	return b.String()
}

// RunsMarkdown renders a page of catalog runs as a table.
func RunsMarkdown(out *ops.HistoryOutput) string {
	var b strings.Builder

	b.WriteString("# Runs\n\n")
	if len(out.Items) == 0 {
		b.WriteString("No runs recorded.\n")
		return b.String()
	}

	b.WriteString("| Run | Archive | Status | Files | Bytes | Warnings | Started |\n")
	b.WriteString("|---|---|---|---:|---:|---:|---|\n")
	for _, r := range out.Items {
		fmt.Fprintf(&b, "| [%s](/runs/%s) | %s | %s | %d | %s | %d | %s |\n",
			r.ID, r.ID, escape(archive.Stem(r.ArchivePath)), r.Status,
			r.FilesWritten, FormatBytes(r.BytesWritten), r.Warnings, FormatTime(r.StartedAt))
	}

	p := out.Pagination
	fmt.Fprintf(&b, "\nShowing %d-%d of %d.\n", min(p.Offset+1, p.Total), p.Offset+len(out.Items), p.Total)
	return b.String()
}

// RunMarkdown renders one catalog run and the files it wrote.
func RunMarkdown(out *ops.RunDetailOutput) string {
	var b strings.Builder
	r := out.Run

	fmt.Fprintf(&b, "# Run %s\n\n", r.ID)
	fmt.Fprintf(&b, "- Archive: `%s`\n", r.ArchivePath)
	fmt.Fprintf(&b, "- Output: `%s`\n", r.OutputDir)
	fmt.Fprintf(&b, "- Status: **%s**\n", r.Status)
	if r.Error != nil {
		fmt.Fprintf(&b, "- Error: %s\n", escape(*r.Error))
	}
	fmt.Fprintf(&b, "- Assets: %d\n", r.Assets)
	fmt.Fprintf(&b, "- Warnings: %d\n", r.Warnings)
	fmt.Fprintf(&b, "- Failures: %d\n", r.Failures)
	fmt.Fprintf(&b, "- Started: %s\n", FormatTime(r.StartedAt))
	fmt.Fprintf(&b, "- Duration: %s\n\n", time.Duration(r.FinishedAt-r.StartedAt)*time.Second)

	if len(out.Files) > 0 {
		fmt.Fprintf(&b, "## Files (%d, %s)\n\n", r.FilesWritten, FormatBytes(r.BytesWritten))
		b.WriteString("| Path | Kind | Identifier | Bytes |\n")
		b.WriteString("|---|---|---|---:|\n")
		for _, f := range out.Files {
			fmt.Fprintf(&b, "| %s | %s | `%s` | %s |\n", escape(f.Path), f.Kind, f.AssetID, FormatBytes(f.Bytes))
		}
	}

	return b.String()
}

// FormatTime formats a Unix timestamp as "2006-01-02 15:04" UTC.
func FormatTime(unix int64) string {
	return time.Unix(unix, 0).UTC().Format("2006-01-02 15:04")
}

// FormatBytes formats a byte count with a binary unit suffix.
func FormatBytes(n int64) string {
	const unit = 1024
	if n < unit {
		return fmt.Sprintf("%d B", n)
	}
	div, exp := int64(unit), 0
	for m := n / unit; m >= unit; m /= unit {
		div *= unit
		exp++
	}
	return fmt.Sprintf("%.1f %ciB", float64(n)/float64(div), "KMGTPE"[exp])
}

// escape neutralizes characters that would break a Markdown table cell or
// start inline markup.
func escape(s string) string {
	r := strings.NewReplacer(
		`\`, `\\`,
		"|", `\|`,
		"*", `\*`,
		"_", `\_`,
		"`", "\\`",
		"[", `\[`,
		"]", `\]`,
		"<", `\<`,
		">", `\>`,
		"\n", " ",
	)
	return r.Replace(s)
}
