package storage

import "errors"

// ErrNotFound 记录不存在 / The requested record does not exist
var ErrNotFound = errors.New("record not found")

// Store 运行历史持久化接口
// Store persists run history
type Store interface {
	// Run 操作 / Run operations
	StartRun(date string) (RunRecord, error)
	FinishRun(run RunRecord) error
	LoadRun(id string) (RunRecord, error)
	ListRuns(limit int) ([]RunRecord, error)

	// Entry 操作 / Entry operations
	AddEntry(entry EntryRecord) (int64, error)
	ListEntries(runID string) ([]EntryRecord, error)
	RecentEntries(limit int) ([]EntryRecord, error)

	// Snapshot 操作 / Snapshot operations
	RecordSnapshot(snap SnapshotRecord) error
	ListSnapshots(date string) ([]SnapshotRecord, error)

	// 生命周期 / Lifecycle
	Close() error
}
