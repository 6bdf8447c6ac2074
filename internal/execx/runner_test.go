package execx

import (
	"context"
	"errors"
	"runtime"
	"strings"
	"testing"
)

func TestExecRunnerCapturesOutput(t *testing.T) {
	if runtime.GOOS == "windows" {
		t.Skip("uses /bin/sh")
	}
	r := NewExecRunner(5000, 1024)
	res, err := r.Run(context.Background(), Command{Name: "/bin/sh", Args: []string{"-c", "echo out; echo err 1>&2; exit 3"}})
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	if strings.TrimSpace(res.Stdout) != "out" {
		t.Fatalf("stdout=%q", res.Stdout)
	}
	if strings.TrimSpace(res.Stderr) != "err" {
		t.Fatalf("stderr=%q", res.Stderr)
	}
	if res.ExitCode != 3 {
		t.Fatalf("exit=%d, want 3", res.ExitCode)
	}

	var ee *ExitError
	if err := res.Err(Command{Name: "sh"}); !errors.As(err, &ee) || ee.ExitCode != 3 {
		t.Fatalf("Err()=%v", err)
	}
}

func TestExecRunnerMissingCommand(t *testing.T) {
	r := NewExecRunner(1000, 0)
	_, err := r.Run(context.Background(), Command{Name: "devlog-definitely-missing-binary"})
	if !errors.Is(err, ErrCommandNotFound) {
		t.Fatalf("expected ErrCommandNotFound, got %v", err)
	}
	if _, err := r.LookPath("devlog-definitely-missing-binary"); !errors.Is(err, ErrCommandNotFound) {
		t.Fatalf("LookPath: expected ErrCommandNotFound, got %v", err)
	}
}

func TestExecRunnerTruncatesOutput(t *testing.T) {
	if runtime.GOOS == "windows" {
		t.Skip("uses /bin/sh")
	}
	r := NewExecRunner(5000, 4)
	res, err := r.Run(context.Background(), Command{Name: "/bin/sh", Args: []string{"-c", "printf abcdefgh"}})
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	if res.Stdout != "abcd" || !res.Truncated {
		t.Fatalf("stdout=%q truncated=%v", res.Stdout, res.Truncated)
	}
}

func TestLimitWriter(t *testing.T) {
	w := newLimitWriter(5)
	for _, chunk := range []string{"hel", "lo wor", "ld"} {
		n, err := w.Write([]byte(chunk))
		if err != nil || n != len(chunk) {
			t.Fatalf("Write(%q) n=%d err=%v", chunk, n, err)
		}
	}
	if w.String() != "hello" || !w.truncated() || w.dropped != 6 {
		t.Fatalf("data=%q dropped=%d", w.String(), w.dropped)
	}
}

func TestFakeRecordsCalls(t *testing.T) {
	f := &Fake{
		Missing: map[string]bool{"diff": true},
		Handler: func(cmd Command) (Result, error) {
			return Result{Stdout: cmd.Name}, nil
		},
	}
	res, _ := f.Run(context.Background(), Command{Name: "git", Args: []string{"status"}})
	if res.Stdout != "git" {
		t.Fatalf("stdout=%q", res.Stdout)
	}
	if _, err := f.LookPath("diff"); !errors.Is(err, ErrCommandNotFound) {
		t.Fatalf("LookPath diff: %v", err)
	}
	calls := f.Calls()
	if len(calls) != 1 || calls[0].String() != "git status" {
		t.Fatalf("calls=%v", calls)
	}
}
