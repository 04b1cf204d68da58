package repository

import (
	"context"
	"database/sql"
	"time"

	"github.com/customer-import-api/internal/database"
	"github.com/customer-import-api/internal/models"
	"github.com/lib/pq"
)

// jobRepo is the concrete implementation of JobRepository
type jobRepo struct {
	db *database.DB
}

// NewJobRepo creates a new job repository
func NewJobRepo(db *database.DB) JobRepository {
	return &jobRepo{db: db}
}

const jobColumns = `id, target, status, idempotency_key, total_rows, created_count,
	updated_count, failed_count, duration_ms, rows_per_sec, file_path, chunk_size,
	created_at, started_at, completed_at`

// Create inserts a new job
func (r *jobRepo) Create(ctx context.Context, job *models.Job) error {
	query := `
		INSERT INTO jobs (id, target, status, idempotency_key, total_rows, created_count,
			updated_count, failed_count, file_path, chunk_size, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11)
	`
	_, err := r.db.ExecContext(ctx, query,
		job.ID, job.Target, job.Status, nullString(job.IdempotencyKey),
		job.TotalRows, job.CreatedCount, job.UpdatedCount, job.FailedCount,
		nullString(job.FilePath), job.ChunkSize, job.CreatedAt,
	)
	return err
}

// Update updates job status and counters
func (r *jobRepo) Update(ctx context.Context, job *models.Job) error {
	query := `
		UPDATE jobs SET
			status = $1, total_rows = $2, created_count = $3, updated_count = $4,
			failed_count = $5, duration_ms = $6, rows_per_sec = $7,
			started_at = $8, completed_at = $9
		WHERE id = $10
	`
	_, err := r.db.ExecContext(ctx, query,
		job.Status, job.TotalRows, job.CreatedCount, job.UpdatedCount,
		job.FailedCount, job.DurationMs, job.RowsPerSec,
		job.StartedAt, job.CompletedAt, job.ID,
	)
	return err
}

// GetByID retrieves a job by ID
func (r *jobRepo) GetByID(ctx context.Context, id string) (*models.Job, error) {
	row := r.db.QueryRowContext(ctx, `SELECT `+jobColumns+` FROM jobs WHERE id = $1`, id)
	return scanJob(row)
}

// GetByIdempotencyKey retrieves a job by idempotency key
func (r *jobRepo) GetByIdempotencyKey(ctx context.Context, key string) (*models.Job, error) {
	row := r.db.QueryRowContext(ctx, `SELECT `+jobColumns+` FROM jobs WHERE idempotency_key = $1`, key)
	return scanJob(row)
}

func scanJob(row *sql.Row) (*models.Job, error) {
	var job models.Job
	var idempotencyKey, filePath sql.NullString
	var startedAt, completedAt sql.NullTime

	err := row.Scan(
		&job.ID, &job.Target, &job.Status, &idempotencyKey,
		&job.TotalRows, &job.CreatedCount, &job.UpdatedCount, &job.FailedCount,
		&job.DurationMs, &job.RowsPerSec, &filePath, &job.ChunkSize,
		&job.CreatedAt, &startedAt, &completedAt,
	)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}

	job.IdempotencyKey = idempotencyKey.String
	job.FilePath = filePath.String
	if startedAt.Valid {
		job.StartedAt = &startedAt.Time
	}
	if completedAt.Valid {
		job.CompletedAt = &completedAt.Time
	}
	return &job, nil
}

// GetPendingJobs retrieves all pending jobs
func (r *jobRepo) GetPendingJobs(ctx context.Context) ([]*models.Job, error) {
	query := `
		SELECT id, target, file_path, chunk_size, created_at
		FROM jobs WHERE status = 'pending'
		ORDER BY created_at
		FOR UPDATE SKIP LOCKED
	`
	rows, err := r.db.QueryContext(ctx, query)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var jobs []*models.Job
	for rows.Next() {
		var job models.Job
		var filePath sql.NullString
		if err := rows.Scan(&job.ID, &job.Target, &filePath, &job.ChunkSize, &job.CreatedAt); err != nil {
			continue
		}
		job.FilePath = filePath.String
		job.Status = models.JobStatusPending
		jobs = append(jobs, &job)
	}

	return jobs, rows.Err()
}

// MarkJobAsProcessing atomically marks a pending job as processing
func (r *jobRepo) MarkJobAsProcessing(ctx context.Context, jobID string) (bool, error) {
	query := `
		UPDATE jobs SET status = 'processing', started_at = $1
		WHERE id = $2 AND status = 'pending'
	`
	result, err := r.db.ExecContext(ctx, query, time.Now(), jobID)
	if err != nil {
		return false, err
	}
	rows, _ := result.RowsAffected()
	return rows > 0, nil
}

// AddErrors bulk-inserts row errors through the COPY protocol; a big
// import against an unreachable remote can fail thousands of rows.
func (r *jobRepo) AddErrors(ctx context.Context, jobID string, rowErrors []models.RowError) error {
	if len(rowErrors) == 0 {
		return nil
	}

	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer tx.Rollback()

	stmt, err := tx.PrepareContext(ctx, pq.CopyIn("job_errors",
		"job_id", "line_number", "email", "field", "message",
	))
	if err != nil {
		return err
	}
	defer stmt.Close()

	for _, e := range rowErrors {
		stmt.ExecContext(ctx, jobID, e.Line, e.Email, e.Field, e.Message)
	}

	// Flush the COPY buffer
	if _, err := stmt.ExecContext(ctx); err != nil {
		return err
	}

	return tx.Commit()
}

// GetErrors retrieves row errors for a job
func (r *jobRepo) GetErrors(ctx context.Context, jobID string, limit int) ([]models.RowError, error) {
	query := `SELECT line_number, email, field, message FROM job_errors WHERE job_id = $1 ORDER BY line_number`
	var rows *sql.Rows
	var err error
	if limit > 0 {
		rows, err = r.db.QueryContext(ctx, query+" LIMIT $2", jobID, limit)
	} else {
		rows, err = r.db.QueryContext(ctx, query, jobID)
	}
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var rowErrors []models.RowError
	for rows.Next() {
		var e models.RowError
		var email sql.NullString
		if err := rows.Scan(&e.Line, &email, &e.Field, &e.Message); err != nil {
			continue
		}
		e.Email = email.String
		rowErrors = append(rowErrors, e)
	}

	return rowErrors, rows.Err()
}

// CountByStatus returns the number of jobs per status.
func (r *jobRepo) CountByStatus(ctx context.Context) (map[string]int, error) {
	rows, err := r.db.QueryContext(ctx, `SELECT status, COUNT(*) FROM jobs GROUP BY status`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	counts := make(map[string]int)
	for rows.Next() {
		var status string
		var count int
		if err := rows.Scan(&status, &count); err != nil {
			continue
		}
		counts[status] = count
	}
	return counts, rows.Err()
}

// helper to convert empty string to NULL
func nullString(s string) sql.NullString {
	if s == "" {
		return sql.NullString{}
	}
	return sql.NullString{String: s, Valid: true}
}
