package transform

import (
	"encoding/json"
	"errors"
	"testing"

	"github.com/claude/healthbridge/internal/models"
)

func decodeRequest(t *testing.T, raw string) *models.HealthDataRequest {
	t.Helper()
	var req models.HealthDataRequest
	if err := json.Unmarshal([]byte(raw), &req); err != nil {
		t.Fatalf("decoding request: %v", err)
	}
	return &req
}

// TestCanonicalizeUnknownProvider verifies the closed dispatch: anything
// outside the two supported providers fails before any parsing happens.
func TestCanonicalizeUnknownProvider(t *testing.T) {
	req := decodeRequest(t, `{
		"user_id": "u1",
		"provider_type": "FITBIT",
		"start_time": "2025-03-01T00:00:00Z",
		"device_health_data": {}
	}`)

	_, err := Canonicalize(req)
	if !errors.Is(err, models.ErrUnsupportedProvider) {
		t.Errorf("err = %v, want ErrUnsupportedProvider", err)
	}
}

// TestCanonicalizeEmptyPayload verifies that a request with no device data
// still produces all three canonical records with empty shapes.
func TestCanonicalizeEmptyPayload(t *testing.T) {
	req := decodeRequest(t, `{
		"user_id": "u1",
		"provider_type": "APPLE_HEALTH",
		"start_time": "2025-03-01T00:00:00Z",
		"end_time": "2025-03-01T01:00:00Z"
	}`)

	res, err := Canonicalize(req)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if res.Daily == nil || res.Body == nil || res.Sleep == nil {
		t.Fatalf("missing canonical records: daily=%v body=%v sleep=%v", res.Daily, res.Body, res.Sleep)
	}
	if res.Daily.DistanceData.Steps != 0 {
		t.Errorf("steps = %d, want 0", res.Daily.DistanceData.Steps)
	}
	if len(res.Daily.DistanceData.StepSamples) != 2 {
		t.Errorf("hour buckets = %d, want 2", len(res.Daily.DistanceData.StepSamples))
	}
	if len(res.Body.BloodPressureData.BloodPressureSamples) != 0 {
		t.Errorf("bp samples = %d, want 0", len(res.Body.BloodPressureData.BloodPressureSamples))
	}
	if len(res.Sleep.Stages) != 0 {
		t.Errorf("sleep stages = %d, want 0", len(res.Sleep.Stages))
	}
}

// TestCanonicalizeMalformedSampleIsSkipped verifies collect-and-continue: a
// bad sample is recorded in Skipped and its siblings survive.
func TestCanonicalizeMalformedSampleIsSkipped(t *testing.T) {
	req := decodeRequest(t, `{
		"user_id": "u1",
		"provider_type": "APPLE_HEALTH",
		"start_time": "2025-03-01T09:00:00Z",
		"device_health_data": {
			"hr_samples": [
				{"value": 60},
				"not an object",
				{"value": 80}
			]
		}
	}`)

	res, err := Canonicalize(req)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if got := res.Daily.HeartRateData.Summary.AvgHRBPM; got != 70 {
		t.Errorf("avg HR = %v, want 70", got)
	}
	if len(res.Skipped) != 1 {
		t.Fatalf("skipped = %d, want 1", len(res.Skipped))
	}
	if res.Skipped[0].Section != "hr_samples" {
		t.Errorf("skipped section = %q", res.Skipped[0].Section)
	}
}
