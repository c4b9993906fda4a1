// Package report renders command output: tables of installed versions and
// patch edges, and one-line install summaries.
package report

import (
	"bytes"
	"fmt"
	"strings"
	"time"

	"github.com/charmbracelet/x/ansi"
	"github.com/dustin/go-humanize"
	"github.com/hako/durafmt"
	"github.com/mattn/go-runewidth"
	"github.com/olekukonko/tablewriter"
	"github.com/olekukonko/tablewriter/renderer"
	"github.com/olekukonko/tablewriter/tw"

	"github.com/janekdeveloper/JanLauncher-sub000/internal/color"
	"github.com/janekdeveloper/JanLauncher-sub000/internal/install"
	"github.com/janekdeveloper/JanLauncher-sub000/internal/patch"
	"github.com/janekdeveloper/JanLauncher-sub000/internal/store"
)

const (
	timeLayout           = "2006-01-02 15:04"
	durationDisplayUnits = 2
)

// Versions renders installed versions. Rows whose (branch, id) is in active
// are marked.
func Versions(records []store.Record, active map[string]bool, theme color.Theme) string {
	if len(records) == 0 {
		return ""
	}

	rows := make([][]string, 0, len(records))

	for _, r := range records {
		marker := ""
		if active[r.Branch.String()+"/"+r.ID] {
			marker = theme.Success.Render("*")
		}

		rows = append(rows, []string{
			marker,
			r.Branch.String(),
			theme.Version.Render(r.ID),
			r.InstalledAt.Local().Format(timeLayout),
			Bytes(r.SizeBytes),
		})
	}

	return render([]string{"", "Branch", "Version", "Installed", "Size"}, rows, theme)
}

// Edges renders the patch edges of a branch graph.
func Edges(edges []patch.Edge, theme color.Theme) string {
	if len(edges) == 0 {
		return ""
	}

	rows := make([][]string, 0, len(edges))

	for _, e := range edges {
		kind := "patch"
		if e.IsFullInstall() {
			kind = theme.Stage.Render("full")
		}

		rows = append(rows, []string{e.Prev.ID(), theme.Version.Render(e.Target.ID()), kind})
	}

	return render([]string{"From", "To", "Kind"}, rows, theme)
}

// Summary describes a finished install in one line.
func Summary(res *install.Result, theme color.Theme) string {
	target := theme.Version.Render(res.Branch.String() + " " + res.Version.ID())

	if res.AlreadyInstalled {
		return fmt.Sprintf("%s %s is already installed", theme.Success.Render("✓"), target)
	}

	parts := []string{
		fmt.Sprintf("%d patch(es)", len(res.Plan.Edges)),
		Bytes(res.BytesDownloaded) + " downloaded",
		Duration(res.Duration),
	}

	if res.Plan.FullInstall() {
		parts[0] = "full install"
	}

	if res.Fallbacks > 0 {
		parts = append(parts, fmt.Sprintf("%d fallback(s)", res.Fallbacks))
	}

	return fmt.Sprintf("%s installed %s (%s)", theme.Success.Render("✓"), target, strings.Join(parts, ", "))
}

// Bytes formats a size, "unknown" when negative.
func Bytes(n int64) string {
	if n < 0 {
		return "unknown"
	}

	return humanize.Bytes(uint64(n))
}

// Duration formats d with its two most significant units.
func Duration(d time.Duration) string {
	if d < time.Second {
		return d.Round(time.Millisecond).String()
	}

	return durafmt.Parse(d.Round(time.Second)).LimitFirstN(durationDisplayUnits).String()
}

func render(headers []string, rows [][]string, theme color.Theme) string {
	var buf bytes.Buffer

	t := tablewriter.NewTable(&buf,
		tablewriter.WithRenderer(renderer.NewBlueprint(tw.Rendition{
			Symbols: tw.NewSymbols(tw.StyleRounded),
		})),
		tablewriter.WithPadding(tw.Padding{Left: " ", Right: " "}),
		tablewriter.WithConfig(tablewriter.NewConfigBuilder().
			WithTrimSpace(tw.Off).
			Build()),
	)

	t.Header(headers)

	for _, row := range alignColumns(rows) {
		_ = t.Append(row)
	}

	_ = t.Render()

	return dimBorders(strings.TrimRight(buf.String(), "\n"), theme)
}

// alignColumns pads every cell to its column's widest visible content so
// styled cells line up. ANSI escapes are excluded from the width.
func alignColumns(rows [][]string) [][]string {
	widths := make(map[int]int)

	for _, row := range rows {
		for i, cell := range row {
			widths[i] = max(widths[i], visibleWidth(cell))
		}
	}

	out := make([][]string, len(rows))

	for r, row := range rows {
		out[r] = make([]string, len(row))

		for i, cell := range row {
			out[r][i] = padToWidth(cell, widths[i])
		}
	}

	return out
}

func visibleWidth(s string) int {
	return runewidth.StringWidth(ansi.Strip(s))
}

// padToWidth right-pads s with spaces so its display width reaches w.
func padToWidth(s string, w int) string {
	visible := visibleWidth(s)
	if visible >= w {
		return s
	}

	return s + strings.Repeat(" ", w-visible)
}

// dimBorders applies the muted style to box-drawing characters.
func dimBorders(s string, theme color.Theme) string {
	for _, ch := range []string{
		"╭", "╮", "╰", "╯", "│", "─", "┬", "┴", "├", "┤", "┼",
	} {
		s = strings.ReplaceAll(s, ch, theme.Muted.Render(ch))
	}

	return s
}
