package models

import (
	"time"
)

// JobStatus represents the status of an import job
type JobStatus string

const (
	JobStatusPending    JobStatus = "pending"
	JobStatusProcessing JobStatus = "processing"
	JobStatusCompleted  JobStatus = "completed"
	JobStatusFailed     JobStatus = "failed"
	JobStatusCancelled  JobStatus = "cancelled"
)

// Target identifies which remote platform an import writes to.
type Target string

const (
	TargetUsers     Target = "users"     // content-management user store
	TargetCustomers Target = "customers" // commerce customer store
)

// ValidTarget reports whether t names a known import target.
func ValidTarget(t string) bool {
	return t == string(TargetUsers) || t == string(TargetCustomers)
}

// Job represents one file-backed import run
type Job struct {
	ID             string     `json:"job_id" db:"id"`
	Target         Target     `json:"target" db:"target"`
	Status         JobStatus  `json:"status" db:"status"`
	IdempotencyKey string     `json:"idempotency_key,omitempty" db:"idempotency_key"`
	TotalRows      int        `json:"total_rows" db:"total_rows"`
	CreatedCount   int        `json:"created" db:"created_count"`
	UpdatedCount   int        `json:"updated" db:"updated_count"`
	FailedCount    int        `json:"failed" db:"failed_count"`
	DurationMs     int64      `json:"duration_ms,omitempty" db:"duration_ms"`
	RowsPerSec     float64    `json:"rows_per_sec,omitempty" db:"rows_per_sec"`
	FilePath       string     `json:"-" db:"file_path"`
	ChunkSize      int        `json:"chunk_size,omitempty" db:"chunk_size"`
	CreatedAt      time.Time  `json:"created_at" db:"created_at"`
	StartedAt      *time.Time `json:"started_at,omitempty" db:"started_at"`
	CompletedAt    *time.Time `json:"completed_at,omitempty" db:"completed_at"`
}

// RowError records why one row of a job did not make it to the remote
// platform: a parse/validation failure (with line number) or a remote
// rejection (keyed by email).
type RowError struct {
	Line    int    `json:"line,omitempty"`
	Email   string `json:"email,omitempty"`
	Field   string `json:"field"`
	Message string `json:"message"`
}

// JobResponse is the API response for job status
type JobResponse struct {
	Job
	Errors      []RowError `json:"errors,omitempty"`
	ErrorCount  int        `json:"error_count,omitempty"`
	ErrorReport string     `json:"error_report_url,omitempty"`
}

// ImportRequest represents an import job request
type ImportRequest struct {
	Target         string `json:"target" form:"target"` // users or customers
	ChunkSize      int    `json:"chunk_size,omitempty" form:"chunk_size"`
	IdempotencyKey string `json:"-"` // From header
}
