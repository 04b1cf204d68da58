package mocks

import (
	"context"

	"github.com/customer-import-api/internal/models"
	"github.com/customer-import-api/internal/service"
)

// MockUpsertService is a mock implementation of service.UpsertService
type MockUpsertService struct {
	UpsertUsersFunc     func(ctx context.Context, rows []models.ImportRow, chunkSize int) (*models.BatchReport, error)
	UpsertCustomersFunc func(ctx context.Context, rows []models.ImportRow, chunkSize int) (*models.BatchReport, error)
}

func (m *MockUpsertService) UpsertUsers(ctx context.Context, rows []models.ImportRow, chunkSize int) (*models.BatchReport, error) {
	if m.UpsertUsersFunc != nil {
		return m.UpsertUsersFunc(ctx, rows, chunkSize)
	}
	return &models.BatchReport{}, nil
}

func (m *MockUpsertService) UpsertCustomers(ctx context.Context, rows []models.ImportRow, chunkSize int) (*models.BatchReport, error) {
	if m.UpsertCustomersFunc != nil {
		return m.UpsertCustomersFunc(ctx, rows, chunkSize)
	}
	return &models.BatchReport{}, nil
}

// MockImportService is a mock implementation of service.ImportService
type MockImportService struct {
	CreateImportJobFunc func(ctx context.Context, req *models.ImportRequest, filePath string) (*models.Job, error)
	ProcessImportFunc   func(ctx context.Context, job *models.Job) error
}

func (m *MockImportService) CreateImportJob(ctx context.Context, req *models.ImportRequest, filePath string) (*models.Job, error) {
	if m.CreateImportJobFunc != nil {
		return m.CreateImportJobFunc(ctx, req, filePath)
	}
	return &models.Job{}, nil
}

func (m *MockImportService) ProcessImport(ctx context.Context, job *models.Job) error {
	if m.ProcessImportFunc != nil {
		return m.ProcessImportFunc(ctx, job)
	}
	return nil
}

// MockJobService is a mock implementation of service.JobService
type MockJobService struct {
	GetJobFunc                 func(ctx context.Context, id string) (*models.JobResponse, error)
	GetJobByIdempotencyKeyFunc func(ctx context.Context, key string) (*models.Job, error)
	GetJobErrorsFunc           func(ctx context.Context, id string) ([]models.RowError, error)
	GetStatsFunc               func(ctx context.Context) (map[string]int, error)
}

func (m *MockJobService) StartProcessor(ctx context.Context) {}

func (m *MockJobService) StopProcessor() {}

func (m *MockJobService) SetImportService(importService service.ImportService) {}

func (m *MockJobService) GetJob(ctx context.Context, id string) (*models.JobResponse, error) {
	if m.GetJobFunc != nil {
		return m.GetJobFunc(ctx, id)
	}
	return nil, nil
}

func (m *MockJobService) GetJobByIdempotencyKey(ctx context.Context, key string) (*models.Job, error) {
	if m.GetJobByIdempotencyKeyFunc != nil {
		return m.GetJobByIdempotencyKeyFunc(ctx, key)
	}
	return nil, nil
}

func (m *MockJobService) GetJobErrors(ctx context.Context, id string) ([]models.RowError, error) {
	if m.GetJobErrorsFunc != nil {
		return m.GetJobErrorsFunc(ctx, id)
	}
	return nil, nil
}

func (m *MockJobService) GetStats(ctx context.Context) (map[string]int, error) {
	if m.GetStatsFunc != nil {
		return m.GetStatsFunc(ctx)
	}
	return map[string]int{}, nil
}

// Ensure mocks implement the interfaces
var (
	_ service.UpsertService = (*MockUpsertService)(nil)
	_ service.ImportService = (*MockImportService)(nil)
	_ service.JobService    = (*MockJobService)(nil)
)
