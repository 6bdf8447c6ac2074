package storage

import (
	"database/sql"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	_ "modernc.org/sqlite"
)

// SQLiteStore 基于 SQLite (WAL 模式) 的持久化实现
// SQLiteStore implements Store using SQLite with WAL mode
type SQLiteStore struct {
	db   *sql.DB
	path string
}

// NewSQLiteStore 创建并初始化 SQLite 数据库
// NewSQLiteStore creates and initializes a SQLite database
func NewSQLiteStore(dbPath string) (*SQLiteStore, error) {
	dbPath = strings.TrimSpace(dbPath)
	if dbPath == "" {
		return nil, fmt.Errorf("sqlite db path is empty")
	}
	if err := os.MkdirAll(filepath.Dir(dbPath), 0o755); err != nil {
		return nil, fmt.Errorf("create db directory: %w", err)
	}

	db, err := sql.Open("sqlite", dbPath)
	if err != nil {
		return nil, fmt.Errorf("open sqlite: %w", err)
	}
	// PRAGMAs are per connection; keep a single one.
	db.SetMaxOpenConns(1)

	// 启用 WAL 模式和优化 PRAGMA / Enable WAL and performance PRAGMAs
	pragmas := []string{
		"PRAGMA journal_mode=WAL",
		"PRAGMA busy_timeout=5000",
		"PRAGMA foreign_keys=ON",
		"PRAGMA synchronous=NORMAL",
	}
	for _, p := range pragmas {
		if _, err := db.Exec(p); err != nil {
			_ = db.Close()
			return nil, fmt.Errorf("exec %q: %w", p, err)
		}
	}

	store := &SQLiteStore{db: db, path: dbPath}
	if err := store.ensureSchema(); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("ensure schema: %w", err)
	}
	return store, nil
}

func (s *SQLiteStore) ensureSchema() error {
	schema := `
	CREATE TABLE IF NOT EXISTS runs (
		id              TEXT PRIMARY KEY,
		date            TEXT NOT NULL,
		status          TEXT NOT NULL DEFAULT 'running',
		projects        INTEGER NOT NULL DEFAULT 0,
		entries         INTEGER NOT NULL DEFAULT 0,
		summary_errors  INTEGER NOT NULL DEFAULT 0,
		backup_failures INTEGER NOT NULL DEFAULT 0,
		published       INTEGER NOT NULL DEFAULT 0,
		error           TEXT NOT NULL DEFAULT '',
		started_at      TEXT NOT NULL,
		finished_at     TEXT NOT NULL DEFAULT ''
	);

	CREATE TABLE IF NOT EXISTS entries (
		id             INTEGER PRIMARY KEY AUTOINCREMENT,
		run_id         TEXT NOT NULL REFERENCES runs(id) ON DELETE CASCADE,
		date           TEXT NOT NULL,
		project        TEXT NOT NULL,
		summary        TEXT NOT NULL DEFAULT '',
		summary_failed INTEGER NOT NULL DEFAULT 0,
		diff_source    TEXT NOT NULL DEFAULT '',
		diff_bytes     INTEGER NOT NULL DEFAULT 0,
		created_at     TEXT NOT NULL
	);

	CREATE TABLE IF NOT EXISTS snapshots (
		date        TEXT NOT NULL,
		project     TEXT NOT NULL,
		source      TEXT NOT NULL DEFAULT '',
		path        TEXT NOT NULL,
		files       INTEGER NOT NULL DEFAULT 0,
		bytes       INTEGER NOT NULL DEFAULT 0,
		fingerprint TEXT NOT NULL DEFAULT '',
		created_at  TEXT NOT NULL,
		PRIMARY KEY(date, project)
	);

	CREATE INDEX IF NOT EXISTS idx_runs_started ON runs(started_at);
	CREATE INDEX IF NOT EXISTS idx_entries_run ON entries(run_id);
	CREATE INDEX IF NOT EXISTS idx_entries_date ON entries(date);
	`
	_, err := s.db.Exec(schema)
	return err
}

// Path 返回数据库文件路径 / Path returns the database file path
func (s *SQLiteStore) Path() string {
	return s.path
}

// Close 关闭数据库连接 / Close the database connection
func (s *SQLiteStore) Close() error {
	if s.db == nil {
		return nil
	}
	return s.db.Close()
}

// --- Run Operations ---

func (s *SQLiteStore) StartRun(date string) (RunRecord, error) {
	run := RunRecord{
		ID:        NewRunID(),
		Date:      date,
		Status:    RunRunning,
		StartedAt: nowUTC(),
	}
	_, err := s.db.Exec(`
		INSERT INTO runs (id, date, status, started_at) VALUES (?, ?, ?, ?)`,
		run.ID, run.Date, run.Status, run.StartedAt)
	if err != nil {
		return RunRecord{}, fmt.Errorf("insert run: %w", err)
	}
	return run, nil
}

func (s *SQLiteStore) FinishRun(run RunRecord) error {
	if strings.TrimSpace(run.FinishedAt) == "" {
		run.FinishedAt = nowUTC()
	}
	res, err := s.db.Exec(`
		UPDATE runs SET status=?, projects=?, entries=?, summary_errors=?, backup_failures=?,
			published=?, error=?, finished_at=?
		WHERE id=?`,
		run.Status, run.Projects, run.Entries, run.SummaryErrors, run.BackupFailures,
		boolToInt(run.Published), run.Error, run.FinishedAt, run.ID)
	if err != nil {
		return fmt.Errorf("update run: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return fmt.Errorf("%w: run %s", ErrNotFound, run.ID)
	}
	return nil
}

const runColumns = `id, date, status, projects, entries, summary_errors, backup_failures,
	published, error, started_at, finished_at`

func (s *SQLiteStore) LoadRun(id string) (RunRecord, error) {
	id = strings.TrimSpace(id)
	if id == "" {
		return RunRecord{}, fmt.Errorf("run id is empty")
	}
	run, err := scanRun(s.db.QueryRow(`SELECT `+runColumns+` FROM runs WHERE id=?`, id))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return RunRecord{}, fmt.Errorf("%w: run %s", ErrNotFound, id)
		}
		return RunRecord{}, fmt.Errorf("load run: %w", err)
	}
	return run, nil
}

func (s *SQLiteStore) ListRuns(limit int) ([]RunRecord, error) {
	if limit <= 0 {
		limit = -1
	}
	rows, err := s.db.Query(`SELECT `+runColumns+` FROM runs ORDER BY started_at DESC, rowid DESC LIMIT ?`, limit)
	if err != nil {
		return nil, fmt.Errorf("list runs: %w", err)
	}
	defer rows.Close()

	var runs []RunRecord
	for rows.Next() {
		run, err := scanRun(rows)
		if err != nil {
			continue
		}
		runs = append(runs, run)
	}
	return runs, rows.Err()
}

type scanner interface {
	Scan(dest ...any) error
}

func scanRun(row scanner) (RunRecord, error) {
	var run RunRecord
	var published int
	err := row.Scan(&run.ID, &run.Date, &run.Status, &run.Projects, &run.Entries,
		&run.SummaryErrors, &run.BackupFailures, &published, &run.Error,
		&run.StartedAt, &run.FinishedAt)
	run.Published = published != 0
	return run, err
}

// --- Entry Operations ---

func (s *SQLiteStore) AddEntry(entry EntryRecord) (int64, error) {
	if strings.TrimSpace(entry.CreatedAt) == "" {
		entry.CreatedAt = nowUTC()
	}
	res, err := s.db.Exec(`
		INSERT INTO entries (run_id, date, project, summary, summary_failed, diff_source, diff_bytes, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
		entry.RunID, entry.Date, entry.Project, entry.Summary, boolToInt(entry.SummaryFailed),
		entry.DiffSource, entry.DiffBytes, entry.CreatedAt)
	if err != nil {
		return 0, fmt.Errorf("insert entry: %w", err)
	}
	return res.LastInsertId()
}

const entryColumns = `id, run_id, date, project, summary, summary_failed, diff_source, diff_bytes, created_at`

func (s *SQLiteStore) ListEntries(runID string) ([]EntryRecord, error) {
	rows, err := s.db.Query(`SELECT `+entryColumns+` FROM entries WHERE run_id=? ORDER BY id`, runID)
	if err != nil {
		return nil, fmt.Errorf("query entries: %w", err)
	}
	return collectEntries(rows)
}

func (s *SQLiteStore) RecentEntries(limit int) ([]EntryRecord, error) {
	if limit <= 0 {
		limit = -1
	}
	rows, err := s.db.Query(`SELECT `+entryColumns+` FROM entries ORDER BY id DESC LIMIT ?`, limit)
	if err != nil {
		return nil, fmt.Errorf("query entries: %w", err)
	}
	return collectEntries(rows)
}

func collectEntries(rows *sql.Rows) ([]EntryRecord, error) {
	defer rows.Close()
	var entries []EntryRecord
	for rows.Next() {
		var e EntryRecord
		var failed int
		if err := rows.Scan(&e.ID, &e.RunID, &e.Date, &e.Project, &e.Summary, &failed,
			&e.DiffSource, &e.DiffBytes, &e.CreatedAt); err != nil {
			continue
		}
		e.SummaryFailed = failed != 0
		entries = append(entries, e)
	}
	return entries, rows.Err()
}

// --- Snapshot Operations ---

func (s *SQLiteStore) RecordSnapshot(snap SnapshotRecord) error {
	if strings.TrimSpace(snap.CreatedAt) == "" {
		snap.CreatedAt = nowUTC()
	}
	_, err := s.db.Exec(`
		INSERT INTO snapshots (date, project, source, path, files, bytes, fingerprint, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(date, project) DO UPDATE SET
			source=excluded.source, path=excluded.path, files=excluded.files,
			bytes=excluded.bytes, fingerprint=excluded.fingerprint`,
		snap.Date, snap.Project, snap.Source, snap.Path, snap.Files, snap.Bytes,
		snap.Fingerprint, snap.CreatedAt)
	if err != nil {
		return fmt.Errorf("record snapshot: %w", err)
	}
	return nil
}

func (s *SQLiteStore) ListSnapshots(date string) ([]SnapshotRecord, error) {
	query := `SELECT date, project, source, path, files, bytes, fingerprint, created_at FROM snapshots`
	var args []any
	if strings.TrimSpace(date) != "" {
		query += ` WHERE date=?`
		args = append(args, date)
	}
	query += ` ORDER BY date DESC, project`

	rows, err := s.db.Query(query, args...)
	if err != nil {
		return nil, fmt.Errorf("query snapshots: %w", err)
	}
	defer rows.Close()

	var snaps []SnapshotRecord
	for rows.Next() {
		var snap SnapshotRecord
		if err := rows.Scan(&snap.Date, &snap.Project, &snap.Source, &snap.Path,
			&snap.Files, &snap.Bytes, &snap.Fingerprint, &snap.CreatedAt); err != nil {
			continue
		}
		snaps = append(snaps, snap)
	}
	return snaps, rows.Err()
}

// --- Helpers ---

// timeLayout is fixed width so timestamps sort as text.
const timeLayout = "2006-01-02T15:04:05.000000Z07:00"

func nowUTC() string {
	return time.Now().UTC().Format(timeLayout)
}

func boolToInt(v bool) int {
	if v {
		return 1
	}
	return 0
}
