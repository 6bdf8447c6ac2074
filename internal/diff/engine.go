// Package diff compares two snapshots of a project and produces a textual
// report. The system diff tool is preferred; a built-in tree walk with a
// line-based unified diff is the fallback.
package diff

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"runtime"
	"strings"
	"unicode/utf8"

	"devlog/internal/config"
	"devlog/internal/execx"
)

// ErrNotText marks a file that cannot be diffed line by line.
var ErrNotText = errors.New("not a text file")

// Engine produces diff reports.
type Engine struct {
	runner   execx.Runner
	log      *slog.Logger
	external bool
	tool     string
	context  int
	goos     string
}

// NewEngine builds an Engine from the diff section of the config.
func NewEngine(runner execx.Runner, cfg config.DiffConfig, log *slog.Logger) *Engine {
	if log == nil {
		log = slog.New(slog.DiscardHandler)
	}
	tool := strings.TrimSpace(cfg.Tool)
	if tool == "" {
		tool = "diff"
	}
	ctxLines := cfg.ContextLines
	if ctxLines < 0 {
		ctxLines = DefaultContext
	}
	return &Engine{
		runner:   runner,
		log:      log,
		external: cfg.UseExternal() && runner != nil,
		tool:     tool,
		context:  ctxLines,
		goos:     runtime.GOOS,
	}
}

// Diff compares previousPath against currentPath. It returns a nil report
// when previousPath does not exist or when the trees have no differences.
func (e *Engine) Diff(ctx context.Context, previousPath, currentPath string) (*Report, error) {
	if _, err := os.Stat(previousPath); err != nil {
		if errors.Is(err, os.ErrNotExist) {
			e.log.Warn("previous snapshot missing", "path", previousPath)
			return nil, nil
		}
		return nil, fmt.Errorf("stat previous snapshot: %w", err)
	}
	if _, err := os.Stat(currentPath); err != nil {
		return nil, fmt.Errorf("stat current snapshot: %w", err)
	}

	if e.external && e.goos != "windows" {
		if out, ok := e.runExternal(ctx, previousPath, currentPath); ok {
			return &Report{
				Previous: previousPath,
				Current:  currentPath,
				Source:   SourceExternal,
				Unified:  out,
			}, nil
		}
	}
	return e.diffTrees(previousPath, currentPath)
}

// runExternal returns the tool output and true when it produced a usable
// non-empty result.
func (e *Engine) runExternal(ctx context.Context, prev, cur string) (string, bool) {
	if _, err := e.runner.LookPath(e.tool); err != nil {
		e.log.Debug("external diff unavailable", "tool", e.tool, "error", err)
		return "", false
	}
	cmd := execx.Command{Name: e.tool, Args: []string{"-ur", prev, cur}}
	res, err := e.runner.Run(ctx, cmd)
	if err != nil {
		e.log.Error("external diff failed", "command", cmd.String(), "error", err)
		return "", false
	}
	// diff exits 1 when the inputs differ and 2 on trouble, such as an
	// unreadable file; the output for the remaining files is still usable.
	out := strings.TrimSpace(normalizeLineEndings(res.Stdout))
	if res.ExitCode > 1 {
		e.log.Error("external diff reported errors", "command", cmd.String(), "error", res.Err(cmd))
	}
	if out == "" {
		return "", false
	}
	if res.Truncated {
		e.log.Warn("external diff output truncated", "command", cmd.String())
	}
	return out, true
}

func (e *Engine) diffTrees(prev, cur string) (*Report, error) {
	delta, err := compareTrees(prev, cur, e.log)
	if err != nil {
		return nil, fmt.Errorf("compare snapshots: %w", err)
	}

	report := &Report{
		Previous: prev,
		Current:  cur,
		Source:   SourceInternal,
		Added:    delta.added,
		Removed:  delta.removed,
	}
	for _, rel := range delta.modified {
		oldPath := filepath.Join(prev, filepath.FromSlash(rel))
		newPath := filepath.Join(cur, filepath.FromSlash(rel))
		oldText, err := readText(oldPath)
		if err != nil {
			e.log.Error("skip file in diff", "file", oldPath, "error", err)
			continue
		}
		newText, err := readText(newPath)
		if err != nil {
			e.log.Error("skip file in diff", "file", newPath, "error", err)
			continue
		}
		text := Unified(oldPath, newPath, oldText, newText, e.context)
		if strings.TrimSpace(text) == "" {
			continue
		}
		report.Modified = append(report.Modified, FileDiff{Path: rel, Diff: text})
	}
	if report.Empty() {
		return nil, nil
	}
	return report, nil
}

// readText loads a file for line diffing. A symlink is represented by its
// target.
func readText(path string) (string, error) {
	info, err := os.Lstat(path)
	if err != nil {
		return "", err
	}
	if info.Mode()&os.ModeSymlink != 0 {
		target, err := os.Readlink(path)
		if err != nil {
			return "", err
		}
		return "-> " + target + "\n", nil
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return "", err
	}
	if !isText(data) {
		return "", ErrNotText
	}
	return string(data), nil
}

func isText(data []byte) bool {
	for _, b := range data {
		if b == 0 {
			return false
		}
	}
	return utf8.Valid(data)
}
