package storage

import "github.com/google/uuid"

// NewRunID 生成新的运行 ID / Generates a new run ID
func NewRunID() string {
	return "run_" + uuid.NewString()
}
