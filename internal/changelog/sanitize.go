package changelog

import (
	"html"
	"strings"
)

// SanitizeSummary makes model output safe for a single table cell. Text is
// kept as written: line breaks collapse to spaces, pipes are escaped and
// <, > and & become entities so generics and comparisons survive while raw
// markup cannot reach a Markdown renderer.
func SanitizeSummary(s string) string {
	return cell(html.EscapeString(s))
}

func cell(s string) string {
	s = strings.Join(strings.Fields(s), " ")
	return strings.ReplaceAll(s, "|", `\|`)
}
