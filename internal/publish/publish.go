// Package publish commits and pushes the changelog after it is written.
package publish

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"path/filepath"
	"strings"
	"sync"

	"devlog/internal/config"
	"devlog/internal/execx"
)

// ErrGitUnavailable is returned when git cannot be run.
var ErrGitUnavailable = errors.New("git not available")

// Step is one command run while publishing.
type Step struct {
	Command  string
	ExitCode int
}

// Outcome lists what was run.
type Outcome struct {
	Steps []Step
}

// OK reports whether every step exited zero.
func (o Outcome) OK() bool {
	for _, s := range o.Steps {
		if s.ExitCode != 0 {
			return false
		}
	}
	return len(o.Steps) > 0
}

// Publisher persists the changelog for a given day.
type Publisher interface {
	Publish(ctx context.Context, changelogPath, date string) (Outcome, error)
}

// CommitMessage is the message recorded for a day's changelog.
func CommitMessage(date string) string {
	return "Updated changelog for " + date
}

// GitPublisher stages, commits and pushes the changelog in the repository
// that contains it. Non-zero exits are logged and do not stop later steps.
type GitPublisher struct {
	runner execx.Runner
	cfg    config.PublishConfig
	log    *slog.Logger

	once      sync.Once
	available bool
	version   string
}

// NewGitPublisher creates a publisher using runner for git invocations.
func NewGitPublisher(runner execx.Runner, cfg config.PublishConfig, log *slog.Logger) *GitPublisher {
	if log == nil {
		log = slog.New(slog.DiscardHandler)
	}
	return &GitPublisher{runner: runner, cfg: cfg, log: log}
}

// Check returns git availability and version. Detection runs once.
func (p *GitPublisher) Check(ctx context.Context) (bool, string) {
	p.once.Do(func() {
		if _, err := p.runner.LookPath("git"); err != nil {
			return
		}
		res, err := p.runner.Run(ctx, execx.Command{Name: "git", Args: []string{"--version"}})
		if err != nil || res.ExitCode != 0 {
			return
		}
		p.available = true
		p.version = strings.TrimSpace(res.Stdout)
	})
	return p.available, p.version
}

func (p *GitPublisher) Publish(ctx context.Context, changelogPath, date string) (Outcome, error) {
	var out Outcome
	if ok, _ := p.Check(ctx); !ok {
		return out, ErrGitUnavailable
	}

	dir := filepath.Dir(changelogPath)
	file := filepath.Base(changelogPath)

	push := []string{"-C", dir, "push"}
	if remote := strings.TrimSpace(p.cfg.Remote); remote != "" {
		push = append(push, remote)
		if branch := strings.TrimSpace(p.cfg.Branch); branch != "" {
			push = append(push, branch)
		}
	}

	steps := [][]string{
		{"-C", dir, "add", file},
		{"-C", dir, "commit", "-m", CommitMessage(date)},
		push,
	}
	for _, args := range steps {
		cmd := execx.Command{Name: "git", Args: args}
		res, err := p.runner.Run(ctx, cmd)
		if err != nil {
			return out, fmt.Errorf("run %s: %w", cmd, err)
		}
		out.Steps = append(out.Steps, Step{Command: cmd.String(), ExitCode: res.ExitCode})
		if exitErr := res.Err(cmd); exitErr != nil {
			p.log.Warn("git step failed", "error", exitErr)
		}
	}
	if out.OK() {
		p.log.Info("changelog published", "path", changelogPath, "date", date)
	}
	return out, nil
}

// Noop skips publishing.
type Noop struct {
	log *slog.Logger
}

// NewNoop returns a publisher that only logs.
func NewNoop(log *slog.Logger) Noop {
	return Noop{log: log}
}

func (n Noop) Publish(_ context.Context, changelogPath, date string) (Outcome, error) {
	if n.log != nil {
		n.log.Info("publishing disabled", "path", changelogPath, "date", date)
	}
	return Outcome{}, nil
}

// New picks the publisher configured by cfg.
func New(runner execx.Runner, cfg config.PublishConfig, log *slog.Logger) Publisher {
	if !cfg.Enabled {
		return NewNoop(log)
	}
	return NewGitPublisher(runner, cfg, log)
}
