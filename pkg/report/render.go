// pkg/report/render.go

package report

import (
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/charmbracelet/lipgloss"
	"github.com/docker/go-units"
)

var (
	colorPrimary = lipgloss.Color("#00ffff")
	colorSuccess = lipgloss.Color("#00ff00")
	colorWarning = lipgloss.Color("#ffaa00")
	colorError   = lipgloss.Color("#ff0000")
	colorMuted   = lipgloss.Color("#666666")
	colorBorder  = lipgloss.Color("#3d5a80")
)

type styles struct {
	title, label, muted, ok, warn, bad, panel lipgloss.Style
}

func newStyles(r *lipgloss.Renderer) styles {
	return styles{
		title: r.NewStyle().Bold(true).Foreground(colorPrimary),
		label: r.NewStyle().Bold(true),
		muted: r.NewStyle().Foreground(colorMuted),
		ok:    r.NewStyle().Foreground(colorSuccess),
		warn:  r.NewStyle().Foreground(colorWarning),
		bad:   r.NewStyle().Foreground(colorError).Bold(true),
		panel: r.NewStyle().
			BorderStyle(lipgloss.RoundedBorder()).
			BorderForeground(colorBorder).
			Padding(0, 1),
	}
}

// Write renders rep to w. Colour is used only when w is a terminal.
func Write(w io.Writer, rep RunReport) error {
	_, err := io.WriteString(w, Render(lipgloss.NewRenderer(w), rep)+"\n")
	return err
}

// Render formats rep with the given renderer.
func Render(r *lipgloss.Renderer, rep RunReport) string {
	st := newStyles(r)

	var blocks []string
	header := st.title.Render("regen update") + " " +
		st.muted.Render(fmt.Sprintf("run %s, %s", shortID(rep.RunID), rep.Duration.Round(time.Millisecond)))
	blocks = append(blocks, header)
	if rep.Backup != "" {
		blocks = append(blocks, st.muted.Render("backup: "+rep.Backup))
	}

	for _, src := range rep.Sources {
		blocks = append(blocks, st.panel.Render(renderSource(st, src)))
	}

	failed := len(rep.Failed())
	summary := fmt.Sprintf("%d of %d sources completed", len(rep.Sources)-failed, len(rep.Sources))
	if failed == 0 {
		blocks = append(blocks, st.ok.Render(summary))
	} else {
		blocks = append(blocks, st.bad.Render(summary))
	}
	return lipgloss.JoinVertical(lipgloss.Left, blocks...)
}

func renderSource(st styles, src SourceReport) string {
	var lines []string

	status := st.ok.Render("✓ " + src.Status.String())
	if src.Status == StatusFailed {
		status = st.bad.Render("✗ failed at " + src.Stage)
	}
	lines = append(lines, st.label.Render(src.Name)+"  "+status)

	if src.Commit != "" {
		state := "up to date"
		if src.Updated {
			state = "updated"
		}
		lines = append(lines, fmt.Sprintf("commit   %s (%s)", src.Commit, state))
	}
	if src.Built {
		lines = append(lines, "build    ok")
	}
	if src.ToolExit != nil {
		exit := fmt.Sprintf("tool     exit %d", *src.ToolExit)
		if *src.ToolExit != 0 {
			exit = st.warn.Render(exit)
		}
		lines = append(lines, exit)
	}
	for _, p := range src.Packs {
		if p.Processed == 0 && p.Output == "" {
			continue
		}
		line := fmt.Sprintf("pack     %-8s %4d files  %8s", p.Extension, p.Processed, units.BytesSize(float64(p.Bytes)))
		if p.Skipped > 0 {
			line += st.warn.Render(fmt.Sprintf("  %d skipped", p.Skipped))
		}
		lines = append(lines, line)
	}
	if src.Collected > 0 || len(src.Missing) > 0 {
		lines = append(lines, fmt.Sprintf("collect  %d files", src.Collected))
	}
	if len(src.Missing) > 0 {
		lines = append(lines, st.warn.Render("missing  "+strings.Join(src.Missing, ", ")))
	}
	for _, w := range src.Warnings {
		lines = append(lines, st.warn.Render("! "+w))
	}
	if src.Err != nil {
		lines = append(lines, st.bad.Render(firstLine(src.Err.Error())))
	}
	return strings.Join(lines, "\n")
}

func shortID(id string) string {
	if len(id) > 8 {
		return id[:8]
	}
	return id
}

func firstLine(s string) string {
	if i := strings.IndexByte(s, '\n'); i >= 0 {
		return s[:i]
	}
	return s
}
