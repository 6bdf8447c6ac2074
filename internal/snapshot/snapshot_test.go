package snapshot

import (
	"os"
	"path/filepath"
	"runtime"
	"testing"
	"time"

	"devlog/internal/logging"
)

var day = time.Date(2025, 2, 8, 0, 5, 0, 0, time.Local)

func writeFile(t *testing.T, path, content string) {
	t.Helper()
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatal(err)
	}
}

func newStore(t *testing.T) *Store {
	t.Helper()
	s, err := NewStore(filepath.Join(t.TempDir(), "backups"), logging.Discard())
	if err != nil {
		t.Fatalf("NewStore: %v", err)
	}
	return s
}

func TestBackupCopiesProjects(t *testing.T) {
	src := filepath.Join(t.TempDir(), "alpha")
	writeFile(t, filepath.Join(src, "main.go"), "package main\n")
	writeFile(t, filepath.Join(src, "pkg", "util.go"), "package pkg\n")

	s := newStore(t)
	res, err := s.Backup([]string{src}, day)
	if err != nil {
		t.Fatalf("Backup: %v", err)
	}
	if res.Skipped || len(res.Failures) != 0 || len(res.Snapshots) != 1 {
		t.Fatalf("unexpected result: %+v", res)
	}
	snap := res.Snapshots[0]
	if snap.Project != "alpha" || snap.Files != 2 || snap.Fingerprint == "" {
		t.Fatalf("unexpected snapshot: %+v", snap)
	}
	if snap.Path != filepath.Join(s.Root(), "2025-02-08", "alpha") {
		t.Fatalf("path=%q", snap.Path)
	}
	data, err := os.ReadFile(filepath.Join(snap.Path, "pkg", "util.go"))
	if err != nil || string(data) != "package pkg\n" {
		t.Fatalf("copied content=%q err=%v", data, err)
	}
	if !s.HasProject(day, "alpha") {
		t.Fatalf("HasProject false after backup")
	}
}

func TestBackupIsIdempotentPerDay(t *testing.T) {
	src := filepath.Join(t.TempDir(), "alpha")
	writeFile(t, filepath.Join(src, "a.txt"), "one\n")

	s := newStore(t)
	if _, err := s.Backup([]string{src}, day); err != nil {
		t.Fatalf("first Backup: %v", err)
	}

	writeFile(t, filepath.Join(src, "a.txt"), "two\n")
	writeFile(t, filepath.Join(src, "b.txt"), "new\n")
	res, err := s.Backup([]string{src}, day.Add(12*time.Hour))
	if err != nil {
		t.Fatalf("second Backup: %v", err)
	}
	if !res.Skipped || len(res.Snapshots) != 0 {
		t.Fatalf("second backup should be skipped: %+v", res)
	}
	data, _ := os.ReadFile(filepath.Join(s.ProjectPath(day, "alpha"), "a.txt"))
	if string(data) != "one\n" {
		t.Fatalf("snapshot mutated: %q", data)
	}
	if _, err := os.Stat(filepath.Join(s.ProjectPath(day, "alpha"), "b.txt")); !os.IsNotExist(err) {
		t.Fatalf("new file leaked into existing snapshot: %v", err)
	}
}

func TestBackupIsolatesFailures(t *testing.T) {
	good := filepath.Join(t.TempDir(), "good")
	writeFile(t, filepath.Join(good, "ok.txt"), "ok\n")
	missing := filepath.Join(t.TempDir(), "missing")

	s := newStore(t)
	res, err := s.Backup([]string{missing, good}, day)
	if err != nil {
		t.Fatalf("Backup: %v", err)
	}
	if len(res.Failures) != 1 || res.Failures[0].Project != "missing" {
		t.Fatalf("failures=%+v", res.Failures)
	}
	if len(res.Snapshots) != 1 || res.Snapshots[0].Project != "good" {
		t.Fatalf("snapshots=%+v", res.Snapshots)
	}
}

func TestBackupSkipsBackupRootInsideProject(t *testing.T) {
	src := filepath.Join(t.TempDir(), "proj")
	writeFile(t, filepath.Join(src, "a.txt"), "a\n")
	s, err := NewStore(filepath.Join(src, "backups"), logging.Discard())
	if err != nil {
		t.Fatal(err)
	}
	res, err := s.Backup([]string{src}, day)
	if err != nil {
		t.Fatalf("Backup: %v", err)
	}
	if len(res.Snapshots) != 1 || res.Snapshots[0].Files != 1 {
		t.Fatalf("unexpected result: %+v", res)
	}
	if _, err := os.Stat(filepath.Join(s.ProjectPath(day, "proj"), "backups")); !os.IsNotExist(err) {
		t.Fatalf("backup root copied into itself")
	}
}

func TestBackupPreservesSymlinks(t *testing.T) {
	if runtime.GOOS == "windows" {
		t.Skip("symlinks need privileges on windows")
	}
	src := filepath.Join(t.TempDir(), "proj")
	writeFile(t, filepath.Join(src, "target.txt"), "t\n")
	if err := os.Symlink("target.txt", filepath.Join(src, "link.txt")); err != nil {
		t.Fatal(err)
	}
	s := newStore(t)
	if _, err := s.Backup([]string{src}, day); err != nil {
		t.Fatalf("Backup: %v", err)
	}
	link, err := os.Readlink(filepath.Join(s.ProjectPath(day, "proj"), "link.txt"))
	if err != nil || link != "target.txt" {
		t.Fatalf("link=%q err=%v", link, err)
	}
}

func TestFingerprintStableAcrossCopies(t *testing.T) {
	src := filepath.Join(t.TempDir(), "proj")
	writeFile(t, filepath.Join(src, "a.txt"), "a\n")
	writeFile(t, filepath.Join(src, "b", "c.txt"), "c\n")

	s := newStore(t)
	first, _ := s.Backup([]string{src}, day)
	second, _ := s.Backup([]string{src}, day.AddDate(0, 0, 1))
	if first.Snapshots[0].Fingerprint != second.Snapshots[0].Fingerprint {
		t.Fatalf("fingerprint changed for identical content")
	}

	writeFile(t, filepath.Join(src, "a.txt"), "changed\n")
	third, _ := s.Backup([]string{src}, day.AddDate(0, 0, 2))
	if third.Snapshots[0].Fingerprint == first.Snapshots[0].Fingerprint {
		t.Fatalf("fingerprint did not change with content")
	}
}

func TestListNewestFirst(t *testing.T) {
	s := newStore(t)
	for _, d := range []string{"2025-02-07", "2025-02-09", "2025-02-08", "not-a-date"} {
		if err := os.MkdirAll(filepath.Join(s.Root(), d), 0o755); err != nil {
			t.Fatal(err)
		}
	}
	days, err := s.List()
	if err != nil {
		t.Fatalf("List: %v", err)
	}
	want := []string{"2025-02-09", "2025-02-08", "2025-02-07"}
	if len(days) != len(want) {
		t.Fatalf("days=%v", days)
	}
	for i := range want {
		if days[i] != want[i] {
			t.Fatalf("days=%v, want %v", days, want)
		}
	}
}

func TestListMissingRoot(t *testing.T) {
	s := newStore(t)
	days, err := s.List()
	if err != nil || len(days) != 0 {
		t.Fatalf("days=%v err=%v", days, err)
	}
}
