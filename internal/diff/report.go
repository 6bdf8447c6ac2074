package diff

import "strings"

// FileDiff is the unified diff of one modified file.
type FileDiff struct {
	Path string
	Diff string
}

// Report is the textual difference between two snapshots of a project.
//
// When the external tool produced the output, Unified carries it verbatim and
// the per-file fields are empty.
type Report struct {
	Previous string
	Current  string
	Source   string

	Added    []string
	Removed  []string
	Modified []FileDiff
	Unified  string
}

const (
	SourceExternal = "external"
	SourceInternal = "internal"
)

// Empty reports whether the report carries no differences.
func (r *Report) Empty() bool {
	if r == nil {
		return true
	}
	return strings.TrimSpace(r.Unified) == "" &&
		len(r.Added) == 0 && len(r.Removed) == 0 && len(r.Modified) == 0
}

// String renders the report as plain text.
func (r *Report) String() string {
	if r == nil {
		return ""
	}
	if r.Unified != "" {
		return r.Unified
	}
	parts := make([]string, 0, len(r.Modified)+2)
	if len(r.Added) > 0 {
		parts = append(parts, "Added files: "+strings.Join(r.Added, ", "))
	}
	if len(r.Removed) > 0 {
		parts = append(parts, "Removed files: "+strings.Join(r.Removed, ", "))
	}
	for _, m := range r.Modified {
		parts = append(parts, "Changes in "+m.Path+":\n"+strings.TrimRight(m.Diff, "\n"))
	}
	return strings.Join(parts, "\n")
}

// Truncate bounds diff text for display, keeping at most maxLines lines and
// maxBytes bytes. Non-positive limits are ignored.
func Truncate(diff string, maxLines, maxBytes int) (string, bool) {
	diff = strings.TrimSpace(normalizeLineEndings(diff))
	if diff == "" {
		return "", false
	}

	lines := strings.Split(diff, "\n")
	truncated := false
	if maxLines > 0 && len(lines) > maxLines {
		lines = lines[:maxLines]
		truncated = true
	}
	out := strings.Join(lines, "\n")
	if maxBytes > 0 && len(out) > maxBytes {
		out = strings.TrimRight(out[:maxBytes], "\n")
		truncated = true
	}
	if truncated {
		out += "\n... (diff truncated)"
	}
	return out, truncated
}
