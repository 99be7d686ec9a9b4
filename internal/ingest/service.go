package ingest

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/claude/healthbridge/internal/models"
	"github.com/claude/healthbridge/internal/transform"
)

// TimeseriesWriter is the storage surface the pipeline writes through.
type TimeseriesWriter interface {
	Write(ctx context.Context, userID string, provider models.ProviderKind, category models.Category, data any, start, end time.Time, localTZ string) error
}

// CategoryError records a storage failure for one category. The other
// categories of the same request are unaffected.
type CategoryError struct {
	Category models.Category `json:"category"`
	Error    string          `json:"error"`
}

// Result holds the outcome of processing one health data request.
type Result struct {
	Status  string               `json:"status"`
	Stored  models.StoredRecords `json:"stored_records"`
	Skipped []transform.Skip     `json:"skipped_sections,omitempty"`
	Errors  []CategoryError      `json:"errors,omitempty"`
	Message string               `json:"message,omitempty"`
}

// Service canonicalizes provider payloads and persists each produced
// category independently.
type Service struct {
	writer TimeseriesWriter
	log    *slog.Logger
}

// NewService creates an ingest service.
func NewService(writer TimeseriesWriter, log *slog.Logger) *Service {
	return &Service{writer: writer, log: log}
}

// Process canonicalizes the request payload and writes every category that
// produced data. A failed category write does not block the others; the
// result carries per-category errors and a partial status instead.
func (s *Service) Process(ctx context.Context, req *models.HealthDataRequest) (*Result, error) {
	if req.UserID == "" {
		return nil, fmt.Errorf("user_id is required")
	}
	if req.StartTime.IsZero() {
		return nil, fmt.Errorf("start_time is required")
	}

	canonical, err := transform.Canonicalize(req)
	if err != nil {
		return nil, err
	}

	start, end := req.Window()
	result := &Result{Skipped: canonical.Skipped}

	for _, category := range models.Categories() {
		data := canonical.ForCategory(category)
		if data == nil {
			continue
		}
		if err := s.writer.Write(ctx, req.UserID, req.ProviderType, category, data, start, end, req.LocalTimezone); err != nil {
			s.log.Error("category write failed",
				"user_id", req.UserID,
				"category", category,
				"error", err,
			)
			result.Errors = append(result.Errors, CategoryError{
				Category: category,
				Error:    err.Error(),
			})
			continue
		}
		result.Stored.Add(category)
	}

	switch {
	case len(result.Errors) == 0:
		result.Status = models.StatusSuccess
	case result.Stored.Total() > 0:
		result.Status = models.StatusPartial
		result.Message = fmt.Sprintf("%d of %d categories stored", result.Stored.Total(), result.Stored.Total()+len(result.Errors))
	default:
		return result, fmt.Errorf("storing health data: all %d categories failed", len(result.Errors))
	}

	return result, nil
}
