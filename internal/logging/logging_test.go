package logging

import (
	"bytes"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"devlog/internal/config"
)

func TestNewWritesToStderrAndFile(t *testing.T) {
	logFile := filepath.Join(t.TempDir(), "logs", "devlog.log")
	var stderr bytes.Buffer

	l := New(config.LogConfig{Level: "info", File: logFile}, &stderr)
	l.Info("backup finished", "project", "alpha")
	l.Debug("hidden")
	if err := l.Close(); err != nil {
		t.Fatalf("Close: %v", err)
	}

	if !strings.Contains(stderr.String(), "backup finished") {
		t.Fatalf("stderr missing message: %q", stderr.String())
	}
	if strings.Contains(stderr.String(), "hidden") {
		t.Fatalf("debug message leaked at info level")
	}
	data, err := os.ReadFile(logFile)
	if err != nil {
		t.Fatalf("read log file: %v", err)
	}
	if !strings.Contains(string(data), "project=alpha") {
		t.Fatalf("log file missing attrs: %q", string(data))
	}
}

func TestNewJSONFormat(t *testing.T) {
	var stderr bytes.Buffer
	l := New(config.LogConfig{Level: "debug", Format: "json"}, &stderr)
	l.Debug("diff computed", "bytes", 42)
	if !strings.Contains(stderr.String(), `"msg":"diff computed"`) {
		t.Fatalf("expected json output, got %q", stderr.String())
	}
	if err := l.Close(); err != nil {
		t.Fatalf("Close without file: %v", err)
	}
}

func TestParseLevel(t *testing.T) {
	cases := map[string]slog.Level{
		"debug":   slog.LevelDebug,
		"WARN":    slog.LevelWarn,
		"warning": slog.LevelWarn,
		"error":   slog.LevelError,
		"":        slog.LevelInfo,
		"bogus":   slog.LevelInfo,
	}
	for in, want := range cases {
		if got := ParseLevel(in); got != want {
			t.Fatalf("ParseLevel(%q)=%v, want %v", in, got, want)
		}
	}
}
