package render

import (
	"strings"
	"testing"
)

func TestMarkdownTable(t *testing.T) {
	input := "| Date | Project | Summary |\n|---|---|---|\n| 2025-02-08 | Proj | Did X |\n"
	result := Markdown(input, 80)
	if result == "" {
		t.Fatal("Markdown returned empty")
	}
	if !strings.Contains(result, "Did X") || !strings.Contains(result, "Proj") {
		t.Fatalf("table cells missing: %q", result)
	}
}

func TestMarkdownEmpty(t *testing.T) {
	if Markdown("", 80) != "" {
		t.Fatal("empty input should return empty")
	}
	if Markdown("  ", 80) != "" {
		t.Fatal("whitespace input should return empty")
	}
}

func TestDiffLine(t *testing.T) {
	theme := DarkTheme()

	tests := []struct {
		input  string
		expect string
	}{
		{"+added line", "added"},
		{"-removed line", "removed"},
		{"@@ -1,3 +1,4 @@", "@@"},
		{"Added files: a.go, b.go", "a.go, b.go"},
		{"Changes in main.go:", "main.go"},
		{" context line", " context line"},
		{"", ""},
	}
	for _, tt := range tests {
		got := DiffLine(tt.input, theme)
		if !strings.Contains(got, tt.expect) {
			t.Errorf("DiffLine(%q) should contain %q, got %q", tt.input, tt.expect, got)
		}
	}
}

func TestDiff(t *testing.T) {
	theme := DarkTheme()
	diff := "Changes in f.go:\n--- a/f.go\n+++ b/f.go\n@@ -1,2 +1,3 @@\n context\n-old\n+new"
	result := Diff(diff, theme)
	if !strings.Contains(result, "new") || !strings.Contains(result, "old") {
		t.Fatalf("content missing: %q", result)
	}
	if got := strings.Count(result, "\n"); got != 6 {
		t.Fatalf("line count changed: %d", got)
	}
	if Diff("  ", theme) != "" {
		t.Fatal("blank diff should render empty")
	}
}

func TestKeyValue(t *testing.T) {
	got := KeyValue("runs", 3, DarkTheme())
	if !strings.Contains(got, "runs:") || !strings.HasSuffix(got, " 3") {
		t.Fatalf("got %q", got)
	}
}

func TestPlainThemeLeavesTextUnstyled(t *testing.T) {
	theme := PlainTheme()
	for _, line := range []string{"+added", "-removed", "@@ -1 +1 @@", "Changes in a.go:"} {
		if got := DiffLine(line, theme); got != line {
			t.Fatalf("DiffLine(%q) = %q", line, got)
		}
	}
	if got := Status("partial", theme); got != "partial" {
		t.Fatalf("Status = %q", got)
	}
	if got := KeyValue("Date", "2024-05-02", theme); got != "Date: 2024-05-02" {
		t.Fatalf("KeyValue = %q", got)
	}
}
