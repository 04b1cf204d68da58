package mocks

import (
	"context"
	"sync"

	"github.com/customer-import-api/internal/models"
	"github.com/customer-import-api/internal/repository"
)

// MockJobRepository is an in-memory job repository for testing.
type MockJobRepository struct {
	mu     sync.Mutex
	jobs   map[string]*models.Job
	errors map[string][]models.RowError

	CreateFunc func(ctx context.Context, job *models.Job) error
	UpdateFunc func(ctx context.Context, job *models.Job) error
}

// NewMockJobRepository creates an empty mock repository.
func NewMockJobRepository() *MockJobRepository {
	return &MockJobRepository{
		jobs:   make(map[string]*models.Job),
		errors: make(map[string][]models.RowError),
	}
}

func (m *MockJobRepository) Create(ctx context.Context, job *models.Job) error {
	if m.CreateFunc != nil {
		return m.CreateFunc(ctx, job)
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	copied := *job
	m.jobs[job.ID] = &copied
	return nil
}

func (m *MockJobRepository) Update(ctx context.Context, job *models.Job) error {
	if m.UpdateFunc != nil {
		return m.UpdateFunc(ctx, job)
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	copied := *job
	m.jobs[job.ID] = &copied
	return nil
}

func (m *MockJobRepository) GetByID(ctx context.Context, id string) (*models.Job, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if job, ok := m.jobs[id]; ok {
		copied := *job
		return &copied, nil
	}
	return nil, nil
}

func (m *MockJobRepository) GetByIdempotencyKey(ctx context.Context, key string) (*models.Job, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, job := range m.jobs {
		if job.IdempotencyKey == key {
			copied := *job
			return &copied, nil
		}
	}
	return nil, nil
}

func (m *MockJobRepository) GetPendingJobs(ctx context.Context) ([]*models.Job, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var pending []*models.Job
	for _, job := range m.jobs {
		if job.Status == models.JobStatusPending {
			copied := *job
			pending = append(pending, &copied)
		}
	}
	return pending, nil
}

func (m *MockJobRepository) MarkJobAsProcessing(ctx context.Context, jobID string) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	job, ok := m.jobs[jobID]
	if !ok || job.Status != models.JobStatusPending {
		return false, nil
	}
	job.Status = models.JobStatusProcessing
	return true, nil
}

func (m *MockJobRepository) AddErrors(ctx context.Context, jobID string, rowErrors []models.RowError) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.errors[jobID] = append(m.errors[jobID], rowErrors...)
	return nil
}

func (m *MockJobRepository) GetErrors(ctx context.Context, jobID string, limit int) ([]models.RowError, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	rowErrors := m.errors[jobID]
	if limit > 0 && len(rowErrors) > limit {
		rowErrors = rowErrors[:limit]
	}
	out := make([]models.RowError, len(rowErrors))
	copy(out, rowErrors)
	return out, nil
}

func (m *MockJobRepository) CountByStatus(ctx context.Context) (map[string]int, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	counts := make(map[string]int)
	for _, job := range m.jobs {
		counts[string(job.Status)]++
	}
	return counts, nil
}

// Ensure mock implements the interface
var _ repository.JobRepository = (*MockJobRepository)(nil)
