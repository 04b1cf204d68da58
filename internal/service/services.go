package service

import (
	"context"

	"github.com/customer-import-api/internal/config"
	"github.com/customer-import-api/internal/models"
	"github.com/customer-import-api/internal/platform"
	"github.com/customer-import-api/internal/repository"
	"github.com/rs/zerolog"
)

// UpsertService is the facade the boundary layer invokes: rows in,
// batch report out. chunkSize <= 0 selects the configured default for
// the chosen path.
type UpsertService interface {
	UpsertUsers(ctx context.Context, rows []models.ImportRow, chunkSize int) (*models.BatchReport, error)
	UpsertCustomers(ctx context.Context, rows []models.ImportRow, chunkSize int) (*models.BatchReport, error)
}

// ImportService defines the interface for file-backed import jobs
type ImportService interface {
	CreateImportJob(ctx context.Context, req *models.ImportRequest, filePath string) (*models.Job, error)
	ProcessImport(ctx context.Context, job *models.Job) error
}

// JobService defines the interface for job management
type JobService interface {
	StartProcessor(ctx context.Context)
	StopProcessor()
	GetJob(ctx context.Context, id string) (*models.JobResponse, error)
	GetJobByIdempotencyKey(ctx context.Context, key string) (*models.Job, error)
	GetJobErrors(ctx context.Context, id string) ([]models.RowError, error)
	GetStats(ctx context.Context) (map[string]int, error)
	SetImportService(importService ImportService)
}

// Services holds all service interfaces
type Services struct {
	Upsert UpsertService
	Import ImportService
	Job    JobService
}

// NewServices creates all services
func NewServices(repos *repository.Repositories, users, customers platform.RecordClient, cfg *config.Config, log zerolog.Logger) *Services {
	jobSvc := newJobService(repos.Job, log)
	upsertSvc := newUpsertService(users, customers, &cfg.Import, log)
	importSvc := newImportService(repos.Job, upsertSvc, cfg, log)

	// Wire up job processor to import service
	jobSvc.SetImportService(importSvc)

	return &Services{
		Upsert: upsertSvc,
		Import: importSvc,
		Job:    jobSvc,
	}
}
