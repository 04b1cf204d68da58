package service_test

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"testing"

	"github.com/customer-import-api/internal/config"
	"github.com/customer-import-api/internal/mocks"
	"github.com/customer-import-api/internal/models"
	"github.com/customer-import-api/internal/platform"
	"github.com/customer-import-api/internal/repository"
	"github.com/customer-import-api/internal/service"
	"github.com/rs/zerolog"
)

func newTestServices(users, customers *mocks.MockRecordClient, importCfg config.ImportConfig) *service.Services {
	cfg := &config.Config{Import: importCfg}
	repos := &repository.Repositories{Job: mocks.NewMockJobRepository()}
	return service.NewServices(repos, users, customers, cfg, zerolog.Nop())
}

func newTestServicesWithRepo(users, customers *mocks.MockRecordClient, repo *mocks.MockJobRepository) *service.Services {
	cfg := &config.Config{Import: defaultImportConfig()}
	repos := &repository.Repositories{Job: repo}
	return service.NewServices(repos, users, customers, cfg, zerolog.Nop())
}

func defaultImportConfig() config.ImportConfig {
	return config.ImportConfig{
		UserChunkSize:     50,
		UserConcurrency:   5,
		CustomerChunkSize: 10,
		ChunkPause:        0,
	}
}

func makeRows(n int) []models.ImportRow {
	rows := make([]models.ImportRow, 0, n)
	for i := 0; i < n; i++ {
		rows = append(rows, models.ImportRow{
			Email:     fmt.Sprintf("user%d@example.com", i+1),
			FirstName: "Test",
			LastName:  fmt.Sprintf("User%d", i+1),
			Roles:     []string{"customer"},
		})
	}
	return rows
}

func outcomeFor(t *testing.T, report *models.BatchReport, email string) models.RowOutcome {
	t.Helper()
	for _, o := range report.Results {
		if o.Email == email {
			return o
		}
	}
	t.Fatalf("no outcome for %s", email)
	return models.RowOutcome{}
}

func TestUpsertUsersCreatesNewRows(t *testing.T) {
	users := mocks.NewMockRecordClient("wordpress")
	svc := newTestServices(users, mocks.NewMockRecordClient("woocommerce"), defaultImportConfig())

	report, err := svc.Upsert.UpsertUsers(context.Background(), makeRows(3), 0)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if len(report.Results) != 3 {
		t.Fatalf("expected 3 outcomes, got %d", len(report.Results))
	}
	if report.Summary.Created != 3 || report.Summary.Updated != 0 || report.Summary.Failed != 0 {
		t.Errorf("unexpected summary: %+v", report.Summary)
	}
	for _, o := range report.Results {
		if o.Status != models.RowCreated {
			t.Errorf("row %s: expected created, got %s", o.Email, o.Status)
		}
		if o.RemoteID == 0 {
			t.Errorf("row %s: missing remote ID", o.Email)
		}
	}
}

func TestUpsertUsersUpdatesExistingRows(t *testing.T) {
	users := mocks.NewMockRecordClient("wordpress")
	existingID := users.Seed("user1@example.com", "user1")
	svc := newTestServices(users, mocks.NewMockRecordClient("woocommerce"), defaultImportConfig())

	report, err := svc.Upsert.UpsertUsers(context.Background(), makeRows(2), 0)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if report.Summary.Created != 1 || report.Summary.Updated != 1 {
		t.Fatalf("expected 1 created + 1 updated, got %+v", report.Summary)
	}
	updated := outcomeFor(t, report, "user1@example.com")
	if updated.Status != models.RowUpdated {
		t.Errorf("expected updated, got %s", updated.Status)
	}
	if updated.RemoteID != existingID {
		t.Errorf("expected remote ID %d, got %d", existingID, updated.RemoteID)
	}
}

func TestUpsertUsersRerunIsIdempotent(t *testing.T) {
	users := mocks.NewMockRecordClient("wordpress")
	svc := newTestServices(users, mocks.NewMockRecordClient("woocommerce"), defaultImportConfig())
	rows := makeRows(4)

	first, err := svc.Upsert.UpsertUsers(context.Background(), rows, 0)
	if err != nil {
		t.Fatalf("first run: %v", err)
	}
	if first.Summary.Created != 4 {
		t.Fatalf("first run: expected 4 created, got %+v", first.Summary)
	}

	second, err := svc.Upsert.UpsertUsers(context.Background(), rows, 0)
	if err != nil {
		t.Fatalf("second run: %v", err)
	}
	if second.Summary.Updated != 4 || second.Summary.Created != 0 {
		t.Errorf("second run: expected 4 updated, got %+v", second.Summary)
	}
}

func TestUpsertUsersDuplicateEmailsGetOneOutcomeEach(t *testing.T) {
	users := mocks.NewMockRecordClient("wordpress")
	cfg := defaultImportConfig()
	cfg.UserConcurrency = 1
	svc := newTestServices(users, mocks.NewMockRecordClient("woocommerce"), cfg)

	rows := []models.ImportRow{
		{Email: "dup@example.com", FirstName: "First"},
		{Email: "dup@example.com", FirstName: "Second"},
	}

	report, err := svc.Upsert.UpsertUsers(context.Background(), rows, 0)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(report.Results) != 2 {
		t.Fatalf("expected 2 outcomes, got %d", len(report.Results))
	}
	if report.Summary.Created != 1 || report.Summary.Updated != 1 {
		t.Errorf("expected the second duplicate to update the first, got %+v", report.Summary)
	}
}

func TestUpsertUsersUsernameConflictExhaustsRetries(t *testing.T) {
	users := mocks.NewMockRecordClient("wordpress")
	users.CreateFunc = func(ctx context.Context, row *models.ImportRow, usernameOverride string) (*platform.Record, error) {
		return nil, &platform.ConflictError{Reason: platform.ConflictReasonUsername}
	}
	svc := newTestServices(users, mocks.NewMockRecordClient("woocommerce"), defaultImportConfig())

	rows := []models.ImportRow{{Email: "taken@example.com", Username: "taken"}}
	report, err := svc.Upsert.UpsertUsers(context.Background(), rows, 0)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	outcome := report.Results[0]
	if outcome.Status != models.RowFailed {
		t.Fatalf("expected failed, got %s", outcome.Status)
	}
	if outcome.Error != "username conflict persisted after 3 attempts" {
		t.Errorf("unexpected failure message: %q", outcome.Error)
	}

	creates := users.CallsFor("create")
	if len(creates) != 3 {
		t.Fatalf("expected exactly 3 create attempts, got %d", len(creates))
	}
	if creates[0].Username != "" {
		t.Errorf("first attempt should use the row's own username, got override %q", creates[0].Username)
	}
	for i, call := range creates[1:] {
		prefix := fmt.Sprintf("taken-%d", i+1)
		if !strings.HasPrefix(call.Username, prefix) {
			t.Errorf("retry %d: expected derived username with prefix %q, got %q", i+1, prefix, call.Username)
		}
	}
}

func TestUpsertUsersUsernameConflictRecoversOnRetry(t *testing.T) {
	users := mocks.NewMockRecordClient("wordpress")
	attempts := 0
	users.CreateFunc = func(ctx context.Context, row *models.ImportRow, usernameOverride string) (*platform.Record, error) {
		attempts++
		if usernameOverride == "" {
			return nil, &platform.ConflictError{Reason: platform.ConflictReasonUsername}
		}
		return &platform.Record{ID: 7, Email: row.Email, Username: usernameOverride}, nil
	}
	svc := newTestServices(users, mocks.NewMockRecordClient("woocommerce"), defaultImportConfig())

	rows := []models.ImportRow{{Email: "taken@example.com", Username: "taken"}}
	report, err := svc.Upsert.UpsertUsers(context.Background(), rows, 0)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	outcome := report.Results[0]
	if outcome.Status != models.RowCreated {
		t.Fatalf("expected created after retry, got %s (%s)", outcome.Status, outcome.Error)
	}
	if outcome.RemoteID != 7 {
		t.Errorf("expected remote ID 7, got %d", outcome.RemoteID)
	}
	if attempts != 2 {
		t.Errorf("expected 2 create attempts, got %d", attempts)
	}
}

func TestUpsertUsersLookupFailureBecomesFailedOutcome(t *testing.T) {
	users := mocks.NewMockRecordClient("wordpress")
	users.FindFunc = func(ctx context.Context, email string) (*platform.Record, error) {
		return nil, &platform.LookupError{Platform: "wordpress", Err: errors.New("connection refused")}
	}
	svc := newTestServices(users, mocks.NewMockRecordClient("woocommerce"), defaultImportConfig())

	report, err := svc.Upsert.UpsertUsers(context.Background(), makeRows(2), 0)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if report.Summary.Failed != 2 {
		t.Fatalf("expected 2 failed, got %+v", report.Summary)
	}
	if len(users.CallsFor("create")) != 0 {
		t.Error("lookup failures must not trigger creates")
	}
}

func TestUpsertUsersFailedRowDoesNotAbortChunk(t *testing.T) {
	users := mocks.NewMockRecordClient("wordpress")
	users.CreateFunc = func(ctx context.Context, row *models.ImportRow, usernameOverride string) (*platform.Record, error) {
		if row.Email == "user3@example.com" {
			return nil, &platform.RemoteError{Platform: "wordpress", Status: 500, Body: "boom"}
		}
		return &platform.Record{ID: 1, Email: row.Email}, nil
	}
	svc := newTestServices(users, mocks.NewMockRecordClient("woocommerce"), defaultImportConfig())

	report, err := svc.Upsert.UpsertUsers(context.Background(), makeRows(5), 2)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if len(report.Results) != 5 {
		t.Fatalf("expected 5 outcomes, got %d", len(report.Results))
	}
	if report.Summary.Created != 4 || report.Summary.Failed != 1 {
		t.Errorf("expected 4 created + 1 failed, got %+v", report.Summary)
	}
	failed := outcomeFor(t, report, "user3@example.com")
	if failed.Status != models.RowFailed {
		t.Errorf("expected user3 to fail, got %s", failed.Status)
	}
}

func TestUpsertUsersChunksRunSequentially(t *testing.T) {
	users := mocks.NewMockRecordClient("wordpress")
	svc := newTestServices(users, mocks.NewMockRecordClient("woocommerce"), defaultImportConfig())

	rows := makeRows(6)
	if _, err := svc.Upsert.UpsertUsers(context.Background(), rows, 2); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	// With chunk size 2, rows 1-2 form chunk one, 3-4 chunk two, 5-6
	// chunk three. Every call for a chunk must precede every call for
	// the next chunk.
	chunkOf := map[string]int{
		"user1@example.com": 0, "user2@example.com": 0,
		"user3@example.com": 1, "user4@example.com": 1,
		"user5@example.com": 2, "user6@example.com": 2,
	}
	lastChunk := 0
	for i, call := range users.Calls() {
		chunk, ok := chunkOf[call.Email]
		if !ok {
			t.Fatalf("call %d: unexpected email %s", i, call.Email)
		}
		if chunk < lastChunk {
			t.Fatalf("call %d for %s belongs to chunk %d after chunk %d started", i, call.Email, chunk, lastChunk)
		}
		lastChunk = chunk
	}
	if lastChunk != 2 {
		t.Fatalf("expected calls from all 3 chunks, last seen %d", lastChunk)
	}
}

func TestUpsertUsersCancelledContextSkipsAllRows(t *testing.T) {
	users := mocks.NewMockRecordClient("wordpress")
	svc := newTestServices(users, mocks.NewMockRecordClient("woocommerce"), defaultImportConfig())

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	report, err := svc.Upsert.UpsertUsers(ctx, makeRows(4), 2)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if report.Summary.Cancelled != 4 {
		t.Fatalf("expected 4 cancelled, got %+v", report.Summary)
	}
	if len(users.Calls()) != 0 {
		t.Error("no remote calls expected after cancellation")
	}
}

func TestUpsertUsersMidRunCancellationAccountsForEveryRow(t *testing.T) {
	users := mocks.NewMockRecordClient("wordpress")
	ctx, cancel := context.WithCancel(context.Background())
	users.CreateFunc = func(c context.Context, row *models.ImportRow, usernameOverride string) (*platform.Record, error) {
		cancel()
		return &platform.Record{ID: 1, Email: row.Email}, nil
	}
	cfg := defaultImportConfig()
	cfg.UserConcurrency = 1
	svc := newTestServices(users, mocks.NewMockRecordClient("woocommerce"), cfg)

	report, err := svc.Upsert.UpsertUsers(ctx, makeRows(4), 2)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if len(report.Results) != 4 {
		t.Fatalf("expected 4 outcomes, got %d", len(report.Results))
	}
	if report.Summary.Created != 1 || report.Summary.Cancelled != 3 {
		t.Errorf("expected 1 created + 3 cancelled, got %+v", report.Summary)
	}
}

func TestUpsertEmptyBatchIsRejected(t *testing.T) {
	svc := newTestServices(mocks.NewMockRecordClient("wordpress"), mocks.NewMockRecordClient("woocommerce"), defaultImportConfig())

	if _, err := svc.Upsert.UpsertUsers(context.Background(), nil, 0); !errors.Is(err, service.ErrEmptyBatch) {
		t.Errorf("UpsertUsers: expected ErrEmptyBatch, got %v", err)
	}
	if _, err := svc.Upsert.UpsertCustomers(context.Background(), nil, 0); !errors.Is(err, service.ErrEmptyBatch) {
		t.Errorf("UpsertCustomers: expected ErrEmptyBatch, got %v", err)
	}
}

func TestUpsertCustomersUsesCustomerStore(t *testing.T) {
	users := mocks.NewMockRecordClient("wordpress")
	customers := mocks.NewMockRecordClient("woocommerce")
	svc := newTestServices(users, customers, defaultImportConfig())

	report, err := svc.Upsert.UpsertCustomers(context.Background(), makeRows(2), 0)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if report.Summary.Created != 2 {
		t.Fatalf("expected 2 created, got %+v", report.Summary)
	}
	if len(users.Calls()) != 0 {
		t.Error("customer upsert must not touch the user store")
	}
	if len(customers.CallsFor("create")) != 2 {
		t.Errorf("expected 2 customer creates, got %d", len(customers.CallsFor("create")))
	}

	// Sequential IDs from a fresh store.
	first := outcomeFor(t, report, "user1@example.com")
	second := outcomeFor(t, report, "user2@example.com")
	got := map[int]bool{first.RemoteID: true, second.RemoteID: true}
	if !got[1] || !got[2] {
		t.Errorf("expected remote IDs 1 and 2, got %d and %d", first.RemoteID, second.RemoteID)
	}
}
