package service

import (
	"context"
	"fmt"
	"time"

	"github.com/customer-import-api/internal/config"
	"github.com/customer-import-api/internal/mapper"
	"github.com/customer-import-api/internal/models"
	"github.com/customer-import-api/internal/repository"
	"github.com/customer-import-api/internal/validation"
	"github.com/google/uuid"
	"github.com/rs/zerolog"
)

// importService is the concrete implementation of ImportService
type importService struct {
	jobRepo repository.JobRepository
	upsert  UpsertService
	cfg     *config.Config
	log     zerolog.Logger
}

// newImportService creates a new ImportService
func newImportService(jobRepo repository.JobRepository, upsert UpsertService, cfg *config.Config, log zerolog.Logger) *importService {
	return &importService{
		jobRepo: jobRepo,
		upsert:  upsert,
		cfg:     cfg,
		log:     log.With().Str("service", "import").Logger(),
	}
}

// CreateImportJob records a new file-backed import job for the background
// processor to pick up.
func (s *importService) CreateImportJob(ctx context.Context, req *models.ImportRequest, filePath string) (*models.Job, error) {
	job := &models.Job{
		ID:             uuid.New().String(),
		Target:         models.Target(req.Target),
		Status:         models.JobStatusPending,
		IdempotencyKey: req.IdempotencyKey,
		FilePath:       filePath,
		ChunkSize:      req.ChunkSize,
		CreatedAt:      time.Now(),
	}

	if err := s.jobRepo.Create(ctx, job); err != nil {
		return nil, err
	}

	s.log.Info().
		Str("job_id", job.ID).
		Str("target", string(job.Target)).
		Str("file", filePath).
		Msg("Import job created")

	return job, nil
}

// ProcessImport runs one import job end to end: parse the file, validate
// rows, drive the upsert engine, and persist counts plus per-row errors.
func (s *importService) ProcessImport(ctx context.Context, job *models.Job) error {
	startTime := time.Now()
	now := startTime
	job.Status = models.JobStatusProcessing
	job.StartedAt = &now
	s.jobRepo.Update(ctx, job)

	s.log.Info().
		Str("job_id", job.ID).
		Str("target", string(job.Target)).
		Msg("Starting import processing")

	err := s.runImport(ctx, job)

	duration := time.Since(startTime)
	job.DurationMs = duration.Milliseconds()
	processed := job.CreatedCount + job.UpdatedCount + job.FailedCount
	if processed > 0 && duration.Seconds() > 0 {
		job.RowsPerSec = float64(processed) / duration.Seconds()
	}
	completedAt := time.Now()
	job.CompletedAt = &completedAt

	if err != nil {
		job.Status = models.JobStatusFailed
		s.log.Error().Err(err).Str("job_id", job.ID).Msg("Import failed")
	} else {
		job.Status = models.JobStatusCompleted
		s.log.Info().
			Str("job_id", job.ID).
			Int("total", job.TotalRows).
			Int("created", job.CreatedCount).
			Int("updated", job.UpdatedCount).
			Int("failed", job.FailedCount).
			Int64("duration_ms", job.DurationMs).
			Float64("rows_per_sec", job.RowsPerSec).
			Msg("Import completed")
	}

	s.jobRepo.Update(ctx, job)
	return err
}

// runImport holds the fallible part of job processing so the caller can
// finalize job metrics in one place.
func (s *importService) runImport(ctx context.Context, job *models.Job) error {
	parsed, err := mapper.LoadCSV(job.FilePath)
	if err != nil {
		return err
	}
	job.TotalRows = len(parsed)

	validator := validation.NewValidator()
	rows := make([]models.ImportRow, 0, len(parsed))
	var rowErrors []models.RowError
	for _, p := range parsed {
		fieldErrors := validator.ValidateRow(&p.Row)
		if len(fieldErrors) > 0 {
			job.FailedCount++
			for _, fe := range fieldErrors {
				rowErrors = append(rowErrors, models.RowError{
					Line:    p.Line,
					Email:   p.Row.Email,
					Field:   fe.Field,
					Message: fe.Message,
				})
			}
			continue
		}
		rows = append(rows, p.Row)
	}

	if len(rows) > 0 {
		var report *models.BatchReport
		switch job.Target {
		case models.TargetUsers:
			report, err = s.upsert.UpsertUsers(ctx, rows, job.ChunkSize)
		case models.TargetCustomers:
			report, err = s.upsert.UpsertCustomers(ctx, rows, job.ChunkSize)
		default:
			err = fmt.Errorf("unknown import target: %s", job.Target)
		}
		if err != nil {
			return err
		}

		job.CreatedCount = report.Summary.Created
		job.UpdatedCount = report.Summary.Updated
		job.FailedCount += report.Summary.Failed
		for _, outcome := range report.Results {
			if outcome.Status == models.RowFailed {
				rowErrors = append(rowErrors, models.RowError{
					Email:   outcome.Email,
					Field:   "remote",
					Message: outcome.Error,
				})
			}
		}
	}

	if len(rowErrors) > 0 {
		if err := s.jobRepo.AddErrors(ctx, job.ID, rowErrors); err != nil {
			s.log.Error().Err(err).Str("job_id", job.ID).Int("count", len(rowErrors)).Msg("Failed to store row errors")
		}
	}
	return nil
}
