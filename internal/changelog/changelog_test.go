package changelog

import (
	"os"
	"path/filepath"
	"strings"
	"testing"

	"devlog/internal/config"
	"devlog/internal/logging"
)

func newWriter(t *testing.T, duplicate bool) *Writer {
	t.Helper()
	path := filepath.Join(t.TempDir(), "changelog.md")
	return NewWriter(config.ChangelogConfig{Path: path, DuplicateHeaders: duplicate}, logging.Discard())
}

func readLines(t *testing.T, path string) []string {
	t.Helper()
	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatal(err)
	}
	return strings.Split(string(data), "\n")
}

func TestUpdateNewFile(t *testing.T) {
	w := newWriter(t, false)
	if err := w.Update([]Entry{{Date: "2025-02-08", Project: "Proj", Summary: "Did X"}}); err != nil {
		t.Fatal(err)
	}
	lines := readLines(t, w.Path())
	if lines[0] != "| Date | Project | Summary |" {
		t.Fatalf("line 1=%q", lines[0])
	}
	if lines[1] != "|---|---|---|" {
		t.Fatalf("line 2=%q", lines[1])
	}
	if lines[2] != "| 2025-02-08 | Proj | Did X |" {
		t.Fatalf("row=%q", lines[2])
	}
}

func TestUpdatePrependsAndKeepsHistory(t *testing.T) {
	w := newWriter(t, false)
	if err := os.WriteFile(w.Path(), []byte("old notes\n"), 0o600); err != nil {
		t.Fatal(err)
	}
	entries := []Entry{
		{Date: "2025-02-08", Project: "api", Summary: "Added auth"},
		{Date: "2025-02-08", Project: "web", Summary: "Fixed layout"},
	}
	if err := w.Update(entries); err != nil {
		t.Fatal(err)
	}
	data, err := os.ReadFile(w.Path())
	if err != nil {
		t.Fatal(err)
	}
	want := Header +
		"| 2025-02-08 | api | Added auth |\n" +
		"| 2025-02-08 | web | Fixed layout |\n" +
		"old notes\n"
	if string(data) != want {
		t.Fatalf("content:\n%s\nwant:\n%s", data, want)
	}
	info, err := os.Stat(w.Path())
	if err != nil {
		t.Fatal(err)
	}
	if info.Mode().Perm() != 0o600 {
		t.Fatalf("mode=%v, want existing 0600 kept", info.Mode().Perm())
	}
}

func TestUpdateSingleHeaderByDefault(t *testing.T) {
	w := newWriter(t, false)
	_ = w.Update([]Entry{{Date: "2025-02-07", Project: "p", Summary: "one"}})
	_ = w.Update([]Entry{{Date: "2025-02-08", Project: "p", Summary: "two"}})

	data, _ := os.ReadFile(w.Path())
	if n := strings.Count(string(data), "| Date | Project | Summary |"); n != 1 {
		t.Fatalf("headers=%d, want 1:\n%s", n, data)
	}
	entries, err := w.Entries()
	if err != nil {
		t.Fatal(err)
	}
	if len(entries) != 2 || entries[0].Summary != "two" || entries[1].Summary != "one" {
		t.Fatalf("entries=%+v", entries)
	}
}

func TestUpdateDuplicateHeaders(t *testing.T) {
	w := newWriter(t, true)
	_ = w.Update([]Entry{{Date: "2025-02-07", Project: "p", Summary: "one"}})
	_ = w.Update([]Entry{{Date: "2025-02-08", Project: "p", Summary: "two"}})

	data, _ := os.ReadFile(w.Path())
	if n := strings.Count(string(data), "| Date | Project | Summary |"); n != 2 {
		t.Fatalf("headers=%d, want 2:\n%s", n, data)
	}
}

func TestUpdateEmptyBatchIsNoop(t *testing.T) {
	w := newWriter(t, false)
	if err := w.Update(nil); err != nil {
		t.Fatal(err)
	}
	if _, err := os.Stat(w.Path()); !os.IsNotExist(err) {
		t.Fatalf("file should not be created, stat err=%v", err)
	}
}

func TestUpdateUnwritablePath(t *testing.T) {
	dir := t.TempDir()
	blocker := filepath.Join(dir, "file")
	if err := os.WriteFile(blocker, nil, 0o644); err != nil {
		t.Fatal(err)
	}
	w := NewWriter(config.ChangelogConfig{Path: filepath.Join(blocker, "changelog.md")}, nil)
	if err := w.Update([]Entry{{Date: "d", Project: "p", Summary: "s"}}); err == nil {
		t.Fatal("expected error writing under a regular file")
	}
}

func TestReadMissing(t *testing.T) {
	w := newWriter(t, false)
	doc, err := w.Read()
	if err != nil || doc != "" {
		t.Fatalf("doc=%q err=%v", doc, err)
	}
}

func TestParseEscapedPipes(t *testing.T) {
	doc := Header + `| 2025-02-08 | Proj | a \| b |` + "\n"
	entries := Parse(doc)
	if len(entries) != 1 || entries[0].Summary != "a | b" {
		t.Fatalf("entries=%+v", entries)
	}
}
