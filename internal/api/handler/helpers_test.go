package handler

import (
	"bytes"
	"context"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/goccy/go-json"
	"github.com/sutaaa0/cashier-app-sub000/internal/models"
)

const testFilename = "backup-2024-03-15T08-00-00-000Z.backup"

// newRequest creates a new HTTP request with an optional JSON body.
func newRequest(method, target string, body any) *http.Request {
	var buf bytes.Buffer
	if body != nil {
		_ = json.NewEncoder(&buf).Encode(body)
	}
	r := httptest.NewRequest(method, target, &buf)
	r.Header.Set("Content-Type", "application/json")
	return r
}

// newRequestRaw creates a new HTTP request with a raw string body.
func newRequestRaw(method, target, body string) *http.Request {
	r := httptest.NewRequest(method, target, bytes.NewBufferString(body))
	r.Header.Set("Content-Type", "application/json")
	return r
}

// withChiURLParam adds a chi URL parameter to the request context.
func withChiURLParam(r *http.Request, key, value string) *http.Request {
	rctx := chi.NewRouteContext()
	rctx.URLParams.Add(key, value)
	return r.WithContext(context.WithValue(r.Context(), chi.RouteCtxKey, rctx))
}

// decodeErrorResponse parses the JSON error response body into a map.
func decodeErrorResponse(rec *httptest.ResponseRecorder) map[string]string {
	var body map[string]string
	_ = json.Unmarshal(rec.Body.Bytes(), &body)
	return body
}

// ---------- Mocks ----------

type mockSettings struct {
	getBackupFn  func(ctx context.Context) (*models.BackupSettings, error)
	saveBackupFn func(ctx context.Context, s models.BackupSettings) (*models.BackupSettings, error)
	getResetFn   func(ctx context.Context) (*models.ResetSettings, error)
	saveResetFn  func(ctx context.Context, s models.ResetSettings) (*models.ResetSettings, error)
}

func (m *mockSettings) GetBackupSettings(ctx context.Context) (*models.BackupSettings, error) {
	if m.getBackupFn != nil {
		return m.getBackupFn(ctx)
	}
	return &models.BackupSettings{Schedule: "0 0 * * *", RetentionDays: 30, Destination: models.DestinationLocal}, nil
}

func (m *mockSettings) SaveBackupSettings(ctx context.Context, s models.BackupSettings) (*models.BackupSettings, error) {
	if m.saveBackupFn != nil {
		return m.saveBackupFn(ctx, s)
	}
	return &s, nil
}

func (m *mockSettings) GetResetSettings(ctx context.Context) (*models.ResetSettings, error) {
	if m.getResetFn != nil {
		return m.getResetFn(ctx)
	}
	return &models.ResetSettings{ConfirmationCode: "RESET", PreserveMasterData: true}, nil
}

func (m *mockSettings) SaveResetSettings(ctx context.Context, s models.ResetSettings) (*models.ResetSettings, error) {
	if m.saveResetFn != nil {
		return m.saveResetFn(ctx, s)
	}
	return &s, nil
}

type mockRunner struct {
	runFn   func(ctx context.Context, trigger models.Trigger) (*models.BackupArtifact, error)
	running bool
}

func (m *mockRunner) RunBackup(ctx context.Context, trigger models.Trigger) (*models.BackupArtifact, error) {
	return m.runFn(ctx, trigger)
}

func (m *mockRunner) Running() bool {
	return m.running
}

// dirStore serves artifacts from a temp directory without any validation;
// validation errors are injected through the func fields.
type dirStore struct {
	dir      string
	listFn   func() ([]models.BackupArtifact, error)
	deleteFn func(filename string) error
	openErr  error
}

func (m *dirStore) List() ([]models.BackupArtifact, error) {
	if m.listFn != nil {
		return m.listFn()
	}
	return nil, nil
}

func (m *dirStore) Open(filename string) (*os.File, *models.BackupArtifact, error) {
	if m.openErr != nil {
		return nil, nil, m.openErr
	}
	path := filepath.Join(m.dir, filename)
	f, err := os.Open(path)
	if err != nil {
		return nil, nil, models.ErrNotFound
	}
	info, err := f.Stat()
	if err != nil {
		_ = f.Close()
		return nil, nil, err
	}
	return f, &models.BackupArtifact{
		Filename:  filename,
		SizeBytes: info.Size(),
		CreatedAt: time.Date(2024, 3, 15, 8, 0, 0, 0, time.UTC),
	}, nil
}

func (m *dirStore) Delete(filename string) error {
	if m.deleteFn != nil {
		return m.deleteFn(filename)
	}
	return nil
}

type mockSchedule struct {
	next *time.Time
	err  error
}

func (m *mockSchedule) NextRun(_ context.Context, _ time.Time) (*time.Time, error) {
	return m.next, m.err
}

type mockController struct {
	resetFn func(ctx context.Context, req models.ResetRequest) (*models.ResetResult, error)
	logsFn  func(ctx context.Context, limit int) ([]models.ResetLogEntry, error)
	status  models.ResetStatus
}

func (m *mockController) Reset(ctx context.Context, req models.ResetRequest) (*models.ResetResult, error) {
	return m.resetFn(ctx, req)
}

func (m *mockController) ListLogs(ctx context.Context, limit int) ([]models.ResetLogEntry, error) {
	return m.logsFn(ctx, limit)
}

func (m *mockController) Status() models.ResetStatus {
	return m.status
}

type mockPinger struct {
	err error
}

func (m *mockPinger) Ping(_ context.Context) error {
	return m.err
}
