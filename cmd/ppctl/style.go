package main

import (
	"fmt"
	"strings"

	"github.com/charmbracelet/lipgloss"
)

var (
	titleStyle = lipgloss.NewStyle().
			Bold(true).
			Foreground(lipgloss.Color("#FFFDF5")).
			Background(lipgloss.Color("#25A065")).
			Padding(0, 1)

	headerStyle = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("205"))
	dimStyle    = lipgloss.NewStyle().Foreground(lipgloss.Color("240"))
	okStyle     = lipgloss.NewStyle().Foreground(lipgloss.Color("#25A065"))
	warnStyle   = lipgloss.NewStyle().Foreground(lipgloss.Color("#E5C07B"))
	errorStyle  = lipgloss.NewStyle().Foreground(lipgloss.Color("#FF0000"))
)

func title(s string) string { return titleStyle.Render(s) + "\n" }

// statusText colours a target or result status.
func statusText(s string) string {
	switch s {
	case "completed", "ok", "online", "approved":
		return okStyle.Render(s)
	case "pending", "queued", "timeout":
		return warnStyle.Render(s)
	case "expired", "rejected", "failed", "canceled", "offline":
		return errorStyle.Render(s)
	default:
		return s
	}
}

// table renders rows with columns padded to their widest visible cell.
func table(header []string, rows [][]string) string {
	widths := make([]int, len(header))
	for i, h := range header {
		widths[i] = lipgloss.Width(h)
	}
	for _, r := range rows {
		for i, c := range r {
			if w := lipgloss.Width(c); i < len(widths) && w > widths[i] {
				widths[i] = w
			}
		}
	}
	var b strings.Builder
	line := func(cells []string, style *lipgloss.Style) {
		for i, c := range cells {
			pad := widths[i] - lipgloss.Width(c)
			if style != nil {
				c = style.Render(c)
			}
			b.WriteString(c + strings.Repeat(" ", pad))
			if i < len(cells)-1 {
				b.WriteString("  ")
			}
		}
		b.WriteString("\n")
	}
	line(header, &headerStyle)
	for _, r := range rows {
		line(r, nil)
	}
	if len(rows) == 0 {
		b.WriteString(dimStyle.Render("(none)") + "\n")
	}
	return b.String()
}

func printErr(err error) string { return errorStyle.Render(fmt.Sprintf("error: %v", err)) }
