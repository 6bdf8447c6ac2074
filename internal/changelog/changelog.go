// Package changelog maintains a Markdown table of daily project summaries.
// Each update prepends a header and the new rows above the existing content.
package changelog

import (
	"errors"
	"fmt"
	"html"
	"log/slog"
	"os"
	"path/filepath"
	"strings"

	"devlog/internal/config"
	"devlog/internal/render"
)

// Header opens every batch of rows.
const Header = "| Date | Project | Summary |\n|---|---|---|\n"

// Entry is one changelog row.
type Entry struct {
	Date    string
	Project string
	Summary string
}

// Row renders the entry as a table row.
func (e Entry) Row() string {
	return fmt.Sprintf("| %s | %s | %s |", cell(e.Date), cell(e.Project), SanitizeSummary(e.Summary))
}

// Writer owns the changelog file.
type Writer struct {
	path             string
	duplicateHeaders bool
	log              *slog.Logger
}

// NewWriter creates a writer for cfg.Path.
func NewWriter(cfg config.ChangelogConfig, log *slog.Logger) *Writer {
	if log == nil {
		log = slog.New(slog.DiscardHandler)
	}
	return &Writer{path: cfg.Path, duplicateHeaders: cfg.DuplicateHeaders, log: log}
}

// Path returns the changelog location.
func (w *Writer) Path() string {
	return w.path
}

// Read returns the current document, or "" when the file does not exist.
func (w *Writer) Read() (string, error) {
	data, err := os.ReadFile(w.path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return "", nil
		}
		return "", fmt.Errorf("read changelog: %w", err)
	}
	return string(data), nil
}

// Update prepends a header and one row per entry to the changelog and
// replaces the file. An empty batch leaves the file untouched.
func (w *Writer) Update(entries []Entry) error {
	if len(entries) == 0 {
		return nil
	}
	previous, err := w.Read()
	if err != nil {
		return err
	}
	if !w.duplicateHeaders {
		previous = strings.TrimPrefix(previous, Header)
	}

	rows := make([]string, 0, len(entries))
	for _, e := range entries {
		rows = append(rows, e.Row())
	}
	content := Header + strings.Join(rows, "\n") + "\n" + previous

	if err := writeAtomic(w.path, []byte(content)); err != nil {
		return fmt.Errorf("write changelog: %w", err)
	}
	w.log.Info("changelog updated", "path", w.path, "entries", len(entries))
	return nil
}

// Entries parses the table rows of the current document, newest first.
func (w *Writer) Entries() ([]Entry, error) {
	doc, err := w.Read()
	if err != nil {
		return nil, err
	}
	return Parse(doc), nil
}

// Render returns the document formatted for a terminal of the given width.
func (w *Writer) Render(width int) (string, error) {
	doc, err := w.Read()
	if err != nil {
		return "", err
	}
	return Render(doc, width), nil
}

// Render formats a changelog document for a terminal.
func Render(doc string, width int) string {
	return render.Markdown(doc, width)
}

// Parse extracts rows from a changelog document. Header and separator lines
// are skipped.
func Parse(doc string) []Entry {
	var out []Entry
	for _, line := range strings.Split(strings.ReplaceAll(doc, "\r\n", "\n"), "\n") {
		line = strings.TrimSpace(line)
		if !strings.HasPrefix(line, "|") || !strings.HasSuffix(line, "|") {
			continue
		}
		cells := splitRow(line)
		if len(cells) != 3 {
			continue
		}
		if cells[0] == "Date" && cells[1] == "Project" {
			continue
		}
		if strings.Trim(cells[0], "-: ") == "" {
			continue
		}
		out = append(out, Entry{Date: cells[0], Project: cells[1], Summary: html.UnescapeString(cells[2])})
	}
	return out
}

// splitRow splits "| a | b \| c |" into its cells, honouring escaped pipes.
func splitRow(line string) []string {
	inner := line[1 : len(line)-1]
	var (
		cells []string
		cur   strings.Builder
	)
	for i := 0; i < len(inner); i++ {
		switch {
		case inner[i] == '\\' && i+1 < len(inner) && inner[i+1] == '|':
			cur.WriteByte('|')
			i++
		case inner[i] == '|':
			cells = append(cells, strings.TrimSpace(cur.String()))
			cur.Reset()
		default:
			cur.WriteByte(inner[i])
		}
	}
	return append(cells, strings.TrimSpace(cur.String()))
}

func writeAtomic(path string, data []byte) error {
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return err
	}
	tmp, err := os.CreateTemp(dir, "."+filepath.Base(path)+".*.tmp")
	if err != nil {
		return err
	}
	tmpName := tmp.Name()
	if _, err := tmp.Write(data); err != nil {
		_ = tmp.Close()
		_ = os.Remove(tmpName)
		return err
	}
	if err := tmp.Close(); err != nil {
		_ = os.Remove(tmpName)
		return err
	}
	if info, err := os.Stat(path); err == nil {
		_ = os.Chmod(tmpName, info.Mode().Perm())
	} else {
		_ = os.Chmod(tmpName, 0o644)
	}
	if err := os.Rename(tmpName, path); err != nil {
		_ = os.Remove(tmpName)
		return err
	}
	return nil
}
