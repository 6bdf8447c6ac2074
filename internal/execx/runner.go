// Package execx runs external commands (diff, git) behind an interface so the
// rest of devlog can be tested without spawning processes.
package execx

import (
	"context"
	"errors"
	"fmt"
	"os/exec"
	"strings"
	"time"
)

// ErrCommandNotFound is returned when the executable is not on PATH.
var ErrCommandNotFound = errors.New("command not found")

// Command describes one process invocation.
type Command struct {
	Name string
	Args []string
	Dir  string
}

func (c Command) String() string {
	if len(c.Args) == 0 {
		return c.Name
	}
	return c.Name + " " + strings.Join(c.Args, " ")
}

// Result captures the outcome of a command that was started.
// A non-zero exit code is not an error by itself; see Result.Err.
type Result struct {
	Stdout    string
	Stderr    string
	ExitCode  int
	Truncated bool
	Duration  time.Duration
}

// Err returns an *ExitError when the command exited non-zero.
func (r Result) Err(cmd Command) error {
	if r.ExitCode == 0 {
		return nil
	}
	return &ExitError{Command: cmd, ExitCode: r.ExitCode, Stderr: strings.TrimSpace(r.Stderr)}
}

// ExitError reports a command that ran but exited with a non-zero status.
type ExitError struct {
	Command  Command
	ExitCode int
	Stderr   string
}

func (e *ExitError) Error() string {
	msg := fmt.Sprintf("%s exited with status %d", e.Command, e.ExitCode)
	if e.Stderr != "" {
		msg = fmt.Sprintf("%s: %s", msg, e.Stderr)
	}
	return msg
}

// Runner executes commands.
type Runner interface {
	// Run starts the command and waits for it. The error is non-nil only
	// when the process could not be started or timed out.
	Run(ctx context.Context, cmd Command) (Result, error)

	// LookPath resolves an executable name, wrapping ErrCommandNotFound.
	LookPath(name string) (string, error)
}

// ExecRunner is the os/exec backed Runner.
type ExecRunner struct {
	timeout     time.Duration
	outputLimit int
}

// NewExecRunner creates a runner with a per-command timeout and a cap on
// captured stdout/stderr bytes.
func NewExecRunner(timeoutMS, outputLimitBytes int) *ExecRunner {
	return &ExecRunner{
		timeout:     time.Duration(timeoutMS) * time.Millisecond,
		outputLimit: outputLimitBytes,
	}
}

func (r *ExecRunner) LookPath(name string) (string, error) {
	path, err := exec.LookPath(name)
	if err != nil {
		return "", fmt.Errorf("%w: %s", ErrCommandNotFound, name)
	}
	return path, nil
}

func (r *ExecRunner) Run(ctx context.Context, c Command) (Result, error) {
	if strings.TrimSpace(c.Name) == "" {
		return Result{}, errors.New("command name is empty")
	}

	execCtx := ctx
	if r.timeout > 0 {
		var cancel context.CancelFunc
		execCtx, cancel = context.WithTimeout(ctx, r.timeout)
		defer cancel()
	}

	cmd := exec.CommandContext(execCtx, c.Name, c.Args...)
	cmd.Dir = c.Dir

	stdout := newLimitWriter(r.outputLimit)
	stderr := newLimitWriter(r.outputLimit)
	cmd.Stdout = stdout
	cmd.Stderr = stderr

	start := time.Now()
	err := cmd.Run()
	res := Result{
		Stdout:    stdout.String(),
		Stderr:    stderr.String(),
		Truncated: stdout.truncated() || stderr.truncated(),
		Duration:  time.Since(start),
	}
	if err == nil {
		return res, nil
	}

	if errors.Is(execCtx.Err(), context.DeadlineExceeded) {
		return res, fmt.Errorf("run %s: timed out after %s", c.Name, r.timeout)
	}
	var ee *exec.ExitError
	if errors.As(err, &ee) {
		res.ExitCode = ee.ExitCode()
		return res, nil
	}
	if errors.Is(err, exec.ErrNotFound) {
		return res, fmt.Errorf("%w: %s", ErrCommandNotFound, c.Name)
	}
	return res, fmt.Errorf("run %s: %w", c.Name, err)
}
