package model

import "time"

// Run statuses persisted by the run store.
const (
	RunStatusRunning   = "running"
	RunStatusCompleted = "completed"
	RunStatusFailed    = "failed"
)

// Run modes.
const (
	RunModeSync     = "sync"
	RunModeDiscover = "discover"
)

// StreamMetrics tracks one stream within a run
type StreamMetrics struct {
	Stream         string    `json:"stream"`
	Records        int64     `json:"records"`
	WindowsFetched int       `json:"windows_fetched"`
	WindowsSkipped int       `json:"windows_skipped"`
	Checkpoint     string    `json:"checkpoint,omitempty"`
	StartedAt      time.Time `json:"started_at"`
	FinishedAt     time.Time `json:"finished_at,omitempty"`
}

// RunSummary represents one invocation of the tap
type RunSummary struct {
	ID         string          `json:"id"`
	Mode       string          `json:"mode"`
	Status     string          `json:"status"`
	Attempts   int             `json:"attempts"`
	Records    int64           `json:"records"`
	StartedAt  time.Time       `json:"started_at"`
	FinishedAt *time.Time      `json:"finished_at,omitempty"`
	Streams    []StreamMetrics `json:"streams,omitempty"`
}

// RunError is a window that was skipped or a run that failed.
type RunError struct {
	ID         int64     `json:"id"`
	RunID      string    `json:"run_id"`
	Stream     string    `json:"stream,omitempty"`
	ReportDate string    `json:"report_date,omitempty"`
	Message    string    `json:"message"`
	CreatedAt  time.Time `json:"created_at"`
}
