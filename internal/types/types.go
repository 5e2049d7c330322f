package types

import "github.com/google/uuid"

// RunID identifies one fuzzing run across log fields, the stats mirror, and
// crash notifications.
type RunID string

func NewRunID() RunID {
	return RunID(uuid.NewString())
}

// CrashNotification is the message published for every archived crash.
type CrashNotification struct {
	RunID     string `json:"run_id"`
	Iteration int    `json:"iteration"`
	Path      string `json:"path"`
	Hash      string `json:"hash"`
	Size      int    `json:"size"`
	ExitCode  int    `json:"exit_code"`
	TimedOut  bool   `json:"timed_out"`
}
