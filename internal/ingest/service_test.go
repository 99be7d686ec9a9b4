package ingest

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"testing"
	"time"

	"github.com/claude/healthbridge/internal/models"
)

func discardLog() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

// fakeWriter fails the categories listed in failOn and records the rest.
type fakeWriter struct {
	failOn  map[models.Category]error
	written []models.Category
}

func (f *fakeWriter) Write(_ context.Context, _ string, _ models.ProviderKind, category models.Category, _ any, _, _ time.Time, _ string) error {
	if err := f.failOn[category]; err != nil {
		return err
	}
	f.written = append(f.written, category)
	return nil
}

func testRequest(t *testing.T) *models.HealthDataRequest {
	t.Helper()
	var req models.HealthDataRequest
	err := json.Unmarshal([]byte(`{
		"user_id": "u1",
		"provider_type": "APPLE_HEALTH",
		"start_time": "2025-03-01T00:00:00Z",
		"end_time": "2025-03-01T06:00:00Z",
		"local_timezone": "UTC",
		"device_health_data": {"step_count": {"value": 100}}
	}`), &req)
	if err != nil {
		t.Fatalf("decoding request: %v", err)
	}
	return &req
}

// TestProcessStoresAllCategories verifies the happy path: three categories
// written, success status, zero errors.
func TestProcessStoresAllCategories(t *testing.T) {
	w := &fakeWriter{}
	s := NewService(w, discardLog())

	result, err := s.Process(context.Background(), testRequest(t))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if result.Status != models.StatusSuccess {
		t.Errorf("status = %q, want success", result.Status)
	}
	if result.Stored.Total() != 3 {
		t.Errorf("stored = %+v, want 3 total", result.Stored)
	}
	if len(w.written) != 3 {
		t.Errorf("writer calls = %v", w.written)
	}
}

// TestProcessPartialFailure verifies one failed category does not block the
// others and produces a partial status with the failure attributed.
func TestProcessPartialFailure(t *testing.T) {
	w := &fakeWriter{failOn: map[models.Category]error{
		models.CategorySleep: errors.New("throttled"),
	}}
	s := NewService(w, discardLog())

	result, err := s.Process(context.Background(), testRequest(t))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if result.Status != models.StatusPartial {
		t.Errorf("status = %q, want partial_success", result.Status)
	}
	if result.Stored.Total() != 2 {
		t.Errorf("stored total = %d, want 2", result.Stored.Total())
	}
	if len(result.Errors) != 1 || result.Errors[0].Category != models.CategorySleep {
		t.Errorf("errors = %+v", result.Errors)
	}
}

// TestProcessAllCategoriesFail verifies a total storage failure surfaces as
// an error rather than a hollow success.
func TestProcessAllCategoriesFail(t *testing.T) {
	boom := errors.New("store down")
	w := &fakeWriter{failOn: map[models.Category]error{
		models.CategoryDaily: boom,
		models.CategoryBody:  boom,
		models.CategorySleep: boom,
	}}
	s := NewService(w, discardLog())

	result, err := s.Process(context.Background(), testRequest(t))
	if err == nil {
		t.Fatalf("expected error when every category fails")
	}
	if result == nil || len(result.Errors) != 3 {
		t.Errorf("result = %+v", result)
	}
}

// TestProcessUnsupportedProvider verifies dispatch failures pass through
// with the sentinel intact for HTTP status mapping.
func TestProcessUnsupportedProvider(t *testing.T) {
	req := testRequest(t)
	req.ProviderType = "GARMIN"
	s := NewService(&fakeWriter{}, discardLog())

	_, err := s.Process(context.Background(), req)
	if !errors.Is(err, models.ErrUnsupportedProvider) {
		t.Errorf("err = %v, want ErrUnsupportedProvider", err)
	}
}

// TestProcessRequiresIdentity verifies missing user or start time is
// rejected before canonicalization.
func TestProcessRequiresIdentity(t *testing.T) {
	s := NewService(&fakeWriter{}, discardLog())

	req := testRequest(t)
	req.UserID = ""
	if _, err := s.Process(context.Background(), req); err == nil {
		t.Errorf("expected error for missing user_id")
	}

	req = testRequest(t)
	req.StartTime = models.FlexTime{}
	if _, err := s.Process(context.Background(), req); err == nil {
		t.Errorf("expected error for missing start_time")
	}
}
