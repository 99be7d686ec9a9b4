package server

import (
	"encoding/json"
	"errors"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	"github.com/claude/healthbridge/internal/models"
	"github.com/claude/healthbridge/internal/timeseries"
)

func (s *Server) handleHealthCheck(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{
		"status":    "healthy",
		"service":   "healthbridge",
		"version":   s.version,
		"timestamp": time.Now().UTC().Format(time.RFC3339),
	})
}

func (s *Server) handleHealthData(w http.ResponseWriter, r *http.Request) {
	var req models.HealthDataRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid JSON: " + err.Error()})
		return
	}

	uid, errMsg := s.checkIngestRequest(r, &req)
	if errMsg != "" {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": errMsg})
		return
	}

	result, err := s.pipeline.Process(r.Context(), &req)
	if err != nil {
		if errors.Is(err, models.ErrUnsupportedProvider) {
			writeJSON(w, http.StatusBadRequest, map[string]string{"error": err.Error()})
			return
		}
		s.log.Error("health data processing failed", "user_id", req.UserID, "error", err)
		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": err.Error()})
		return
	}

	if err := s.store.TouchLastSync(r.Context(), uid, req.ProviderType, time.Now().UTC()); err != nil {
		s.log.Warn("last_sync_at update failed", "user_id", req.UserID, "error", err)
	}

	writeJSON(w, http.StatusOK, result)
}

// batchResponse aggregates per-item outcomes for the batch endpoint.
type batchResponse struct {
	Status    string               `json:"status"`
	Processed int                  `json:"processed"`
	Failed    int                  `json:"failed"`
	Stored    models.StoredRecords `json:"stored_records"`
	Errors    []models.BatchError  `json:"errors,omitempty"`
}

func (s *Server) handleHealthDataBatch(w http.ResponseWriter, r *http.Request) {
	var items []json.RawMessage
	if err := json.NewDecoder(r.Body).Decode(&items); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid JSON: " + err.Error()})
		return
	}
	if len(items) == 0 {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "empty batch"})
		return
	}

	resp := batchResponse{}
	for i, raw := range items {
		var req models.HealthDataRequest
		if err := json.Unmarshal(raw, &req); err != nil {
			resp.Errors = append(resp.Errors, models.BatchError{Index: i, Error: "invalid item: " + err.Error()})
			continue
		}
		if _, errMsg := s.checkIngestRequest(r, &req); errMsg != "" {
			resp.Errors = append(resp.Errors, models.BatchError{Index: i, Error: errMsg})
			continue
		}
		result, err := s.pipeline.Process(r.Context(), &req)
		if err != nil {
			resp.Errors = append(resp.Errors, models.BatchError{Index: i, Error: err.Error()})
			continue
		}
		resp.Processed++
		resp.Stored.Daily += result.Stored.Daily
		resp.Stored.Body += result.Stored.Body
		resp.Stored.Sleep += result.Stored.Sleep
	}
	resp.Failed = len(resp.Errors)

	switch {
	case resp.Failed == 0:
		resp.Status = models.StatusSuccess
	case resp.Processed > 0:
		resp.Status = models.StatusPartial
	default:
		resp.Status = "error"
	}
	writeJSON(w, http.StatusOK, resp)
}

// checkIngestRequest validates the shared preconditions of the single and
// batch ingest paths. It returns the parsed user ID, or a non-empty error
// message for the client.
func (s *Server) checkIngestRequest(r *http.Request, req *models.HealthDataRequest) (uuid.UUID, string) {
	if req.UserID == "" {
		return uuid.Nil, "user_id is required"
	}
	uid, err := uuid.Parse(req.UserID)
	if err != nil {
		return uuid.Nil, "user_id must be a UUID"
	}
	if !req.ProviderType.Valid() {
		return uuid.Nil, "unsupported provider type: " + string(req.ProviderType)
	}
	if req.StartTime.IsZero() {
		return uuid.Nil, "start_time is required"
	}

	connected, err := s.store.HasActiveConnection(r.Context(), uid, req.ProviderType)
	if err != nil {
		s.log.Error("connection lookup failed", "user_id", req.UserID, "error", err)
		return uuid.Nil, "connection lookup failed"
	}
	if !connected {
		return uuid.Nil, "no active connection for " + string(req.ProviderType)
	}
	return uid, ""
}

func (s *Server) handleGetHealthData(w http.ResponseWriter, r *http.Request) {
	filter, errMsg := s.readFilter(r)
	if errMsg != "" {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": errMsg})
		return
	}

	records, err := s.reader.Records(r.Context(), filter)
	if err != nil {
		s.log.Error("health data read failed", "user_id", filter.UserID, "error", err)
		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": err.Error()})
		return
	}

	writeJSON(w, http.StatusOK, map[string]any{
		"user_id": filter.UserID,
		"count":   len(records),
		"records": records,
	})
}

func (s *Server) handleGetLatestHealthData(w http.ResponseWriter, r *http.Request) {
	filter, errMsg := s.readFilter(r)
	if errMsg != "" {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": errMsg})
		return
	}

	records, err := s.reader.Records(r.Context(), filter)
	if err != nil {
		s.log.Error("latest health data read failed", "user_id", filter.UserID, "error", err)
		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": err.Error()})
		return
	}

	latest := timeseries.Latest(records)
	writeJSON(w, http.StatusOK, map[string]any{
		"user_id": filter.UserID,
		"count":   len(latest),
		"records": latest,
	})
}

// readFilter builds a QueryFilter from the URL. It returns a non-empty error
// message on invalid input.
func (s *Server) readFilter(r *http.Request) (timeseries.QueryFilter, string) {
	filter := timeseries.QueryFilter{UserID: chi.URLParam(r, "userID")}
	if filter.UserID == "" {
		return filter, "user ID is required"
	}

	q := r.URL.Query()
	if v := q.Get("provider"); v != "" {
		p := models.ProviderKind(v)
		if !p.Valid() {
			return filter, "unsupported provider type: " + v
		}
		filter.ProviderType = p
	}
	if v := q.Get("category"); v != "" {
		c := models.Category(v)
		if !c.Valid() {
			return filter, "unknown category: " + v
		}
		filter.Category = c
	}
	if v := q.Get("start_date"); v != "" {
		t, err := time.Parse("2006-01-02", v)
		if err != nil {
			return filter, "start_date must be YYYY-MM-DD"
		}
		filter.StartDate = &t
	}
	if v := q.Get("end_date"); v != "" {
		t, err := time.Parse("2006-01-02", v)
		if err != nil {
			return filter, "end_date must be YYYY-MM-DD"
		}
		filter.EndDate = &t
	}
	return filter, ""
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}
