package mocks

import (
	"context"
	"strings"
	"sync"
	"time"

	"github.com/customer-import-api/internal/models"
	"github.com/customer-import-api/internal/platform"
)

// ClientCall records one remote call for sequencing assertions.
type ClientCall struct {
	Op       string
	Email    string
	Username string
	At       time.Time
}

// MockRecordClient is an in-memory platform client. Records are keyed by
// lowercased email and IDs are assigned sequentially. The Func hooks
// override individual operations per test.
type MockRecordClient struct {
	Name string

	FindFunc   func(ctx context.Context, email string) (*platform.Record, error)
	CreateFunc func(ctx context.Context, row *models.ImportRow, usernameOverride string) (*platform.Record, error)
	UpdateFunc func(ctx context.Context, id int, row *models.ImportRow) (*platform.Record, error)

	mu      sync.Mutex
	nextID  int
	records map[string]*platform.Record
	calls   []ClientCall
}

// NewMockRecordClient creates an empty mock client.
func NewMockRecordClient(name string) *MockRecordClient {
	return &MockRecordClient{
		Name:    name,
		records: make(map[string]*platform.Record),
	}
}

// Seed inserts an existing remote record and returns its assigned ID.
func (m *MockRecordClient) Seed(email, username string) int {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.nextID++
	m.records[strings.ToLower(email)] = &platform.Record{
		ID:       m.nextID,
		Email:    strings.ToLower(email),
		Username: username,
	}
	return m.nextID
}

func (m *MockRecordClient) Platform() string { return m.Name }

func (m *MockRecordClient) FindByEmail(ctx context.Context, email string) (*platform.Record, error) {
	m.record("find", email, "")
	if m.FindFunc != nil {
		return m.FindFunc(ctx, email)
	}

	m.mu.Lock()
	defer m.mu.Unlock()
	if rec, ok := m.records[strings.ToLower(email)]; ok {
		copied := *rec
		return &copied, nil
	}
	return nil, nil
}

func (m *MockRecordClient) Create(ctx context.Context, row *models.ImportRow, usernameOverride string) (*platform.Record, error) {
	m.record("create", row.Email, usernameOverride)
	if m.CreateFunc != nil {
		return m.CreateFunc(ctx, row, usernameOverride)
	}

	m.mu.Lock()
	defer m.mu.Unlock()
	username := usernameOverride
	if username == "" {
		username = row.UsernameBase()
	}
	m.nextID++
	rec := &platform.Record{ID: m.nextID, Email: strings.ToLower(row.Email), Username: username}
	m.records[rec.Email] = rec
	copied := *rec
	return &copied, nil
}

func (m *MockRecordClient) Update(ctx context.Context, id int, row *models.ImportRow) (*platform.Record, error) {
	m.record("update", row.Email, "")
	if m.UpdateFunc != nil {
		return m.UpdateFunc(ctx, id, row)
	}
	return &platform.Record{ID: id, Email: strings.ToLower(row.Email)}, nil
}

func (m *MockRecordClient) record(op, email, username string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.calls = append(m.calls, ClientCall{Op: op, Email: email, Username: username, At: time.Now()})
}

// Calls returns a copy of the recorded calls in order.
func (m *MockRecordClient) Calls() []ClientCall {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]ClientCall, len(m.calls))
	copy(out, m.calls)
	return out
}

// CallsFor filters the recorded calls by operation.
func (m *MockRecordClient) CallsFor(op string) []ClientCall {
	var out []ClientCall
	for _, c := range m.Calls() {
		if c.Op == op {
			out = append(out, c)
		}
	}
	return out
}

// Ensure mock implements the interface
var _ platform.RecordClient = (*MockRecordClient)(nil)
