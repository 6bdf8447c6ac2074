package storage

// Run statuses.
const (
	RunRunning = "running"
	RunOK      = "ok"
	RunPartial = "partial"
	RunFailed  = "failed"
)

// RunRecord 一次每日执行的记录
// RunRecord describes one daily cycle
type RunRecord struct {
	ID             string `json:"id"`
	Date           string `json:"date"`
	Status         string `json:"status"`
	Projects       int    `json:"projects"`
	Entries        int    `json:"entries"`
	SummaryErrors  int    `json:"summary_errors"`
	BackupFailures int    `json:"backup_failures"`
	Published      bool   `json:"published"`
	Error          string `json:"error,omitempty"`
	StartedAt      string `json:"started_at"`
	FinishedAt     string `json:"finished_at,omitempty"`
}

// EntryRecord 一条写入 changelog 的摘要
// EntryRecord is one summary written to the changelog
type EntryRecord struct {
	ID            int64  `json:"id"`
	RunID         string `json:"run_id"`
	Date          string `json:"date"`
	Project       string `json:"project"`
	Summary       string `json:"summary"`
	SummaryFailed bool   `json:"summary_failed"`
	DiffSource    string `json:"diff_source"`
	DiffBytes     int    `json:"diff_bytes"`
	CreatedAt     string `json:"created_at"`
}

// SnapshotRecord 一个项目快照
// SnapshotRecord is one project snapshot taken during a backup
type SnapshotRecord struct {
	Date        string `json:"date"`
	Project     string `json:"project"`
	Source      string `json:"source"`
	Path        string `json:"path"`
	Files       int    `json:"files"`
	Bytes       int64  `json:"bytes"`
	Fingerprint string `json:"fingerprint"`
	CreatedAt   string `json:"created_at"`
}
