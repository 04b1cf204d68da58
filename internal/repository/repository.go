package repository

import (
	"context"

	"github.com/customer-import-api/internal/database"
	"github.com/customer-import-api/internal/models"
)

// JobRepository defines the interface for job data operations
type JobRepository interface {
	Create(ctx context.Context, job *models.Job) error
	Update(ctx context.Context, job *models.Job) error
	GetByID(ctx context.Context, id string) (*models.Job, error)
	GetByIdempotencyKey(ctx context.Context, key string) (*models.Job, error)
	GetPendingJobs(ctx context.Context) ([]*models.Job, error)
	MarkJobAsProcessing(ctx context.Context, jobID string) (bool, error)
	AddErrors(ctx context.Context, jobID string, rowErrors []models.RowError) error
	GetErrors(ctx context.Context, jobID string, limit int) ([]models.RowError, error)
	CountByStatus(ctx context.Context) (map[string]int, error)
}

// Repositories holds all repository interfaces
type Repositories struct {
	Job JobRepository
}

// New creates all repositories
func New(db *database.DB) *Repositories {
	return &Repositories{
		Job: NewJobRepo(db),
	}
}
