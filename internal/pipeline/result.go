package pipeline

import "time"

// Status is the stage a pipeline run is currently in. Completed and Failed
// are terminal.
type Status string

const (
	StatusIdle       Status = "idle"
	StatusFetching   Status = "fetching"
	StatusScoring    Status = "scoring"
	StatusClustering Status = "clustering"
	StatusPersisting Status = "persisting"
	StatusCompleted  Status = "completed"
	StatusFailed     Status = "failed"
)

// Result is the outcome of a single pipeline run.
type Result struct {
	RunID      string        `json:"run_id"`
	Success    bool          `json:"success"`
	Message    string        `json:"message,omitempty"`
	Fetched    int           `json:"fetched"`
	Scored     int           `json:"scored"`
	Written    int           `json:"written"`
	Elapsed    time.Duration `json:"elapsed_ms"`
	FinishedAt time.Time     `json:"finished_at"`
}
