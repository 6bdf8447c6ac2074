// Package render formats devlog output for a terminal.
package render

import (
	"fmt"
	"strings"

	"github.com/charmbracelet/glamour"
)

// Markdown 使用 Glamour 渲染 markdown 文本
// Markdown renders markdown text using Glamour
func Markdown(content string, width int) string {
	if strings.TrimSpace(content) == "" {
		return ""
	}
	if width <= 0 {
		width = 80
	}

	r, err := glamour.NewTermRenderer(
		glamour.WithAutoStyle(),
		glamour.WithWordWrap(width),
	)
	if err != nil {
		return content
	}

	rendered, err := r.Render(content)
	if err != nil {
		return content
	}

	return strings.TrimRight(rendered, "\n")
}

// DiffLine 为 diff 行添加颜色
// DiffLine colorizes a diff line
func DiffLine(line string, theme Theme) string {
	if line == "" {
		return line
	}

	switch {
	case strings.HasPrefix(line, "Added files:"):
		return theme.DiffAddStyle.Render(line)
	case strings.HasPrefix(line, "Removed files:"):
		return theme.DiffDelStyle.Render(line)
	case strings.HasPrefix(line, "Changes in "), strings.HasPrefix(line, "Only in "):
		return theme.DiffFileStyle.Render(line)
	case strings.HasPrefix(line, "+++"), strings.HasPrefix(line, "---"),
		strings.HasPrefix(line, "diff "), strings.HasPrefix(line, "index "):
		return theme.MutedStyle.Render(line)
	case strings.HasPrefix(line, "@@"):
		return theme.DiffHunkStyle.Render(line)
	case strings.HasPrefix(line, "+"):
		return theme.DiffAddStyle.Render(line)
	case strings.HasPrefix(line, "-"):
		return theme.DiffDelStyle.Render(line)
	default:
		return line
	}
}

// Diff 渲染完整 diff
// Diff renders a complete diff with colors
func Diff(diff string, theme Theme) string {
	if strings.TrimSpace(diff) == "" {
		return ""
	}

	lines := strings.Split(diff, "\n")
	rendered := make([]string, 0, len(lines))
	for _, line := range lines {
		rendered = append(rendered, DiffLine(line, theme))
	}
	return strings.Join(rendered, "\n")
}

// KeyValue renders a "label: value" line.
func KeyValue(label string, value any, theme Theme) string {
	return theme.LabelStyle.Render(label+":") + " " + fmt.Sprint(value)
}

// Status colors a cycle status: ok, partial or failed.
func Status(status string, theme Theme) string {
	switch status {
	case "ok":
		return theme.SuccessStyle.Render(status)
	case "partial":
		return theme.WarningStyle.Render(status)
	case "failed":
		return theme.ErrorStyle.Render(status)
	default:
		return theme.MutedStyle.Render(status)
	}
}
