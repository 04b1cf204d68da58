package api

import (
	"bytes"
	"context"
	"encoding/json"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/customer-import-api/internal/config"
	"github.com/customer-import-api/internal/mocks"
	"github.com/customer-import-api/internal/models"
	"github.com/customer-import-api/internal/service"
	"github.com/rs/zerolog"
)

func newTestRouter(t *testing.T, services *service.Services) http.Handler {
	t.Helper()
	cfg := &config.Config{
		Import: config.ImportConfig{
			MaxUploadSize: 1024 * 1024,
			UploadDir:     t.TempDir(),
		},
	}
	return NewRouter(services, cfg, zerolog.Nop())
}

func defaultServices() *service.Services {
	return &service.Services{
		Upsert: &mocks.MockUpsertService{},
		Import: &mocks.MockImportService{},
		Job:    &mocks.MockJobService{},
	}
}

func TestHealthEndpoint(t *testing.T) {
	router := newTestRouter(t, defaultServices())

	w := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodGet, "/health", nil)
	router.ServeHTTP(w, req)

	if w.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", w.Code)
	}
	var body map[string]interface{}
	json.Unmarshal(w.Body.Bytes(), &body)
	if body["status"] != "healthy" {
		t.Errorf("unexpected body: %v", body)
	}
}

func TestMetricsEndpoint(t *testing.T) {
	services := defaultServices()
	services.Job = &mocks.MockJobService{
		GetStatsFunc: func(ctx context.Context) (map[string]int, error) {
			return map[string]int{"completed": 3, "pending": 1}, nil
		},
	}
	router := newTestRouter(t, services)

	w := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodGet, "/metrics", nil)
	router.ServeHTTP(w, req)

	if w.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", w.Code)
	}
	var body struct {
		Jobs map[string]int `json:"jobs"`
	}
	json.Unmarshal(w.Body.Bytes(), &body)
	if body.Jobs["completed"] != 3 {
		t.Errorf("unexpected stats: %v", body.Jobs)
	}
}

func TestImportJSONRunsUpsert(t *testing.T) {
	var gotRows []models.ImportRow
	services := defaultServices()
	services.Upsert = &mocks.MockUpsertService{
		UpsertUsersFunc: func(ctx context.Context, rows []models.ImportRow, chunkSize int) (*models.BatchReport, error) {
			gotRows = rows
			return models.NewBatchReport([]models.RowOutcome{
				{Email: rows[0].Email, Status: models.RowCreated, RemoteID: 1},
			}), nil
		},
	}
	router := newTestRouter(t, services)

	body := `{"rows":[{"email":"Jane@Example.com","first_name":"Jane"}]}`
	w := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodPost, "/v1/imports/json", strings.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	router.ServeHTTP(w, req)

	if w.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", w.Code, w.Body.String())
	}
	if len(gotRows) != 1 || gotRows[0].Email != "jane@example.com" {
		t.Errorf("expected normalized rows passed to the engine, got %v", gotRows)
	}

	var resp struct {
		Summary models.BatchSummary `json:"summary"`
	}
	json.Unmarshal(w.Body.Bytes(), &resp)
	if resp.Summary.Created != 1 {
		t.Errorf("unexpected summary: %+v", resp.Summary)
	}
}

func TestImportJSONRejectsEmptyBody(t *testing.T) {
	router := newTestRouter(t, defaultServices())

	w := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodPost, "/v1/imports/json", strings.NewReader(`{"rows":[]}`))
	req.Header.Set("Content-Type", "application/json")
	router.ServeHTTP(w, req)

	if w.Code != http.StatusBadRequest {
		t.Fatalf("expected 400, got %d", w.Code)
	}
}

func TestImportJSONAllRowsInvalid(t *testing.T) {
	router := newTestRouter(t, defaultServices())

	body := `{"rows":[{"email":"not-an-email"}]}`
	w := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodPost, "/v1/imports/json", strings.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	router.ServeHTTP(w, req)

	if w.Code != http.StatusBadRequest {
		t.Fatalf("expected 400, got %d", w.Code)
	}
}

func makeUploadRequest(t *testing.T, target, filename, content string) *http.Request {
	t.Helper()
	var buf bytes.Buffer
	writer := multipart.NewWriter(&buf)
	writer.WriteField("target", target)
	part, err := writer.CreateFormFile("file", filename)
	if err != nil {
		t.Fatalf("create form file: %v", err)
	}
	part.Write([]byte(content))
	writer.Close()

	req := httptest.NewRequest(http.MethodPost, "/v1/imports", &buf)
	req.Header.Set("Content-Type", writer.FormDataContentType())
	return req
}

func TestCreateImportQueuesJob(t *testing.T) {
	var savedPath string
	services := defaultServices()
	services.Import = &mocks.MockImportService{
		CreateImportJobFunc: func(ctx context.Context, req *models.ImportRequest, filePath string) (*models.Job, error) {
			savedPath = filePath
			return &models.Job{ID: "job-1", Target: models.Target(req.Target), Status: models.JobStatusPending}, nil
		},
	}
	router := newTestRouter(t, services)

	w := httptest.NewRecorder()
	req := makeUploadRequest(t, "users", "users.csv", "email\njane@example.com\n")
	router.ServeHTTP(w, req)

	if w.Code != http.StatusAccepted {
		t.Fatalf("expected 202, got %d: %s", w.Code, w.Body.String())
	}
	if savedPath == "" {
		t.Fatal("expected the upload to be saved")
	}
	if _, err := os.Stat(savedPath); err != nil {
		t.Errorf("saved file missing: %v", err)
	}
	if !strings.HasPrefix(filepath.Base(savedPath), "users_") {
		t.Errorf("expected target-prefixed filename, got %s", savedPath)
	}
}

func TestCreateImportRejectsUnknownTarget(t *testing.T) {
	router := newTestRouter(t, defaultServices())

	w := httptest.NewRecorder()
	req := makeUploadRequest(t, "orders", "orders.csv", "email\n")
	router.ServeHTTP(w, req)

	if w.Code != http.StatusBadRequest {
		t.Fatalf("expected 400, got %d", w.Code)
	}
}

func TestCreateImportRejectsNonCSV(t *testing.T) {
	router := newTestRouter(t, defaultServices())

	w := httptest.NewRecorder()
	req := makeUploadRequest(t, "users", "users.xlsx", "binary")
	router.ServeHTTP(w, req)

	if w.Code != http.StatusBadRequest {
		t.Fatalf("expected 400, got %d", w.Code)
	}
}

func TestCreateImportIdempotencyKeyReturnsExistingJob(t *testing.T) {
	services := defaultServices()
	services.Job = &mocks.MockJobService{
		GetJobByIdempotencyKeyFunc: func(ctx context.Context, key string) (*models.Job, error) {
			if key == "key-1" {
				return &models.Job{ID: "existing-job", Status: models.JobStatusCompleted}, nil
			}
			return nil, nil
		},
	}
	router := newTestRouter(t, services)

	w := httptest.NewRecorder()
	req := makeUploadRequest(t, "users", "users.csv", "email\n")
	req.Header.Set("Idempotency-Key", "key-1")
	router.ServeHTTP(w, req)

	if w.Code != http.StatusOK {
		t.Fatalf("expected 200 for replayed key, got %d", w.Code)
	}
	var job models.Job
	json.Unmarshal(w.Body.Bytes(), &job)
	if job.ID != "existing-job" {
		t.Errorf("expected the existing job back, got %+v", job)
	}
}

func TestGetImportStatusNotFound(t *testing.T) {
	router := newTestRouter(t, defaultServices())

	w := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodGet, "/v1/imports/unknown-id", nil)
	router.ServeHTTP(w, req)

	if w.Code != http.StatusNotFound {
		t.Fatalf("expected 404, got %d", w.Code)
	}
}

func TestGetImportErrorsCSVFormat(t *testing.T) {
	services := defaultServices()
	services.Job = &mocks.MockJobService{
		GetJobErrorsFunc: func(ctx context.Context, id string) ([]models.RowError, error) {
			return []models.RowError{
				{Line: 2, Email: "bad@example", Field: "email", Message: "invalid email format"},
			}, nil
		},
	}
	router := newTestRouter(t, services)

	w := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodGet, "/v1/imports/job-1/errors?format=csv", nil)
	router.ServeHTTP(w, req)

	if w.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", w.Code)
	}
	if ct := w.Header().Get("Content-Type"); !strings.HasPrefix(ct, "text/csv") {
		t.Errorf("expected CSV content type, got %q", ct)
	}
	lines := strings.Split(strings.TrimSpace(w.Body.String()), "\n")
	if len(lines) != 2 {
		t.Fatalf("expected header plus one row, got %v", lines)
	}
	if lines[0] != "line,email,field,message" {
		t.Errorf("unexpected header: %q", lines[0])
	}
}

func TestImportCustomersReadsServerSideFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "customers.csv")
	os.WriteFile(path, []byte("email,first_name\ncust@example.com,Cust\n"), 0644)

	var gotRows []models.ImportRow
	services := defaultServices()
	services.Upsert = &mocks.MockUpsertService{
		UpsertCustomersFunc: func(ctx context.Context, rows []models.ImportRow, chunkSize int) (*models.BatchReport, error) {
			gotRows = rows
			return models.NewBatchReport([]models.RowOutcome{
				{Email: rows[0].Email, Status: models.RowCreated, RemoteID: 1},
			}), nil
		},
	}
	router := newTestRouter(t, services)

	body, _ := json.Marshal(map[string]interface{}{"file": path})
	w := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodPost, "/v1/customers/import", bytes.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	router.ServeHTTP(w, req)

	if w.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", w.Code, w.Body.String())
	}
	if len(gotRows) != 1 || gotRows[0].Email != "cust@example.com" {
		t.Errorf("unexpected rows: %v", gotRows)
	}

	var resp struct {
		Success bool `json:"success"`
		Total   int  `json:"total"`
	}
	json.Unmarshal(w.Body.Bytes(), &resp)
	if !resp.Success || resp.Total != 1 {
		t.Errorf("unexpected response: %+v", resp)
	}
}

func TestImportCustomersMissingFileIsBadRequest(t *testing.T) {
	router := newTestRouter(t, defaultServices())

	body := `{"file":"/nonexistent/customers.csv"}`
	w := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodPost, "/v1/customers/import", strings.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	router.ServeHTTP(w, req)

	if w.Code != http.StatusBadRequest {
		t.Fatalf("expected 400, got %d", w.Code)
	}
}
