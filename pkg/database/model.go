package database

import (
	"time"
)

// CrashRecord represents a record in the public.crash_records table
type CrashRecord struct {
	ID        int       `gorm:"primaryKey;column:id"`
	RunID     string    `gorm:"column:run_id;not null"`
	CreatedAt time.Time `gorm:"column:created_at;default:now()"`
	Iteration int       `gorm:"column:iteration;not null"`
	Path      string    `gorm:"column:path;not null"`
	Hash      string    `gorm:"column:hash;not null"`
	Size      int       `gorm:"column:size;not null"`
	ExitCode  int       `gorm:"column:exit_code"`
	TimedOut  bool      `gorm:"column:timed_out"`
}

func (CrashRecord) TableName() string {
	return "crash_records"
}

func NewCrashRecord(runID string, iteration int, path, hash string, size, exitCode int, timedOut bool) *CrashRecord {
	return &CrashRecord{
		RunID:     runID,
		Iteration: iteration,
		Path:      path,
		Hash:      hash,
		Size:      size,
		ExitCode:  exitCode,
		TimedOut:  timedOut,
	}
}
