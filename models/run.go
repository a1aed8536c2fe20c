package models

import "time"

type RunStatus string

const (
	RunStatusRunning   RunStatus = "running"
	RunStatusCompleted RunStatus = "completed"
	RunStatusFailed    RunStatus = "failed"
	RunStatusPartial   RunStatus = "partial"
)

// IngestRun records one ingest pass over a single source.
type IngestRun struct {
	ID           int64      `json:"id" db:"id"`
	SourceID     string     `json:"source_id" db:"source_id"`
	BatchID      string     `json:"batch_id" db:"batch_id"`
	StartedAt    time.Time  `json:"started_at" db:"started_at"`
	FinishedAt   *time.Time `json:"finished_at" db:"finished_at"`
	Status       RunStatus  `json:"status" db:"status"`
	URLsFound    int        `json:"urls_found" db:"urls_found"`
	DocsFetched  int        `json:"docs_fetched" db:"docs_fetched"`
	DocsParsed   int        `json:"docs_parsed" db:"docs_parsed"`
	DocsBlocked  int        `json:"docs_blocked" db:"docs_blocked"`
	DocsRejected int        `json:"docs_rejected" db:"docs_rejected"`
	RowsWritten  int        `json:"rows_written" db:"rows_written"`
	ErrorsCount  int        `json:"errors_count" db:"errors_count"`
}

// SourceStats is the rolled-up health view per source, maintained in the
// operational store after every run.
type SourceStats struct {
	SourceID          string     `json:"source_id" db:"source_id"`
	LastRunAt         *time.Time `json:"last_run_at" db:"last_run_at"`
	LastRunStatus     string     `json:"last_run_status" db:"last_run_status"`
	TotalListings     int        `json:"total_listings" db:"total_listings"`
	TotalBlocked      int        `json:"total_blocked" db:"total_blocked"`
	SuccessRate       float64    `json:"success_rate" db:"success_rate"`
	AvgRunDurationSec int        `json:"avg_run_duration_sec" db:"avg_run_duration_sec"`
}
