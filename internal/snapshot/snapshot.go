// Package snapshot keeps one full, dated copy of every watched project under
// backupRoot/<YYYY-MM-DD>/<project>. A day directory is written at most once.
package snapshot

import (
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"
)

// DateLayout is the directory name format of a snapshot day.
const DateLayout = "2006-01-02"

// FormatDate renders t as a snapshot day name.
func FormatDate(t time.Time) string {
	return t.Format(DateLayout)
}

// ProjectName is the directory name a project is stored under.
func ProjectName(projectPath string) string {
	return filepath.Base(filepath.Clean(projectPath))
}

// Snapshot describes one project copy.
type Snapshot struct {
	Date        string
	Project     string
	Source      string
	Path        string
	Files       int
	Bytes       int64
	Fingerprint string
}

// Failure records a project whose copy did not complete.
type Failure struct {
	Project string
	Err     error
}

// BackupResult summarises a Backup call.
type BackupResult struct {
	Date      string
	Dir       string
	Skipped   bool
	Snapshots []Snapshot
	Failures  []Failure
}

// Store owns the backup root.
type Store struct {
	root string
	log  *slog.Logger
}

func NewStore(root string, log *slog.Logger) (*Store, error) {
	root = strings.TrimSpace(root)
	if root == "" {
		return nil, errors.New("backup root is empty")
	}
	abs, err := filepath.Abs(root)
	if err != nil {
		return nil, fmt.Errorf("abs backup root: %w", err)
	}
	if log == nil {
		log = slog.Default()
	}
	return &Store{root: abs, log: log}, nil
}

func (s *Store) Root() string {
	return s.root
}

// DayDir returns backupRoot/<date>.
func (s *Store) DayDir(date time.Time) string {
	return filepath.Join(s.root, FormatDate(date))
}

// ProjectPath returns backupRoot/<date>/<project>.
func (s *Store) ProjectPath(date time.Time, project string) string {
	return filepath.Join(s.DayDir(date), project)
}

// Exists reports whether a backup for date has already been taken.
func (s *Store) Exists(date time.Time) bool {
	return isDir(s.DayDir(date))
}

// HasProject reports whether date's backup contains project.
func (s *Store) HasProject(date time.Time, project string) bool {
	return isDir(s.ProjectPath(date, project))
}

// Backup copies every project into backupRoot/<date>/<name>. When the day
// directory already exists nothing is touched. A failing project is logged
// and recorded; the remaining projects are still copied.
func (s *Store) Backup(projects []string, date time.Time) (BackupResult, error) {
	day := FormatDate(date)
	dir := s.DayDir(date)
	res := BackupResult{Date: day, Dir: dir}

	if s.Exists(date) {
		s.log.Info("backup directory already exists, skipping backup", "date", day, "dir", dir)
		res.Skipped = true
		return res, nil
	}
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return res, fmt.Errorf("create backup dir: %w", err)
	}

	for _, project := range projects {
		name := ProjectName(project)
		dest := filepath.Join(dir, name)
		stats, err := copyTree(project, dest, s.root)
		if err != nil {
			s.log.Error("backup failed", "project", name, "source", project, "error", err)
			res.Failures = append(res.Failures, Failure{Project: name, Err: err})
			continue
		}
		snap := Snapshot{
			Date:        day,
			Project:     name,
			Source:      project,
			Path:        dest,
			Files:       stats.files,
			Bytes:       stats.bytes,
			Fingerprint: stats.fingerprint(),
		}
		res.Snapshots = append(res.Snapshots, snap)
		s.log.Info("backed up project", "project", name, "dest", dest, "files", snap.Files)
	}
	return res, nil
}

// List returns the dated backup directories, newest first.
func (s *Store) List() ([]string, error) {
	entries, err := os.ReadDir(s.root)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil, nil
		}
		return nil, fmt.Errorf("read backup root: %w", err)
	}
	var days []string
	for _, e := range entries {
		if !e.IsDir() {
			continue
		}
		if _, err := time.Parse(DateLayout, e.Name()); err != nil {
			continue
		}
		days = append(days, e.Name())
	}
	sort.Sort(sort.Reverse(sort.StringSlice(days)))
	return days, nil
}

func isDir(path string) bool {
	info, err := os.Stat(path)
	return err == nil && info.IsDir()
}
