package transform

import (
	"testing"
)

// TestAppleDailySteps verifies the daily record: total steps from the
// summary field, binned samples with naive timestamps read as local
// wall-clock time, and mean heart rate.
func TestAppleDailySteps(t *testing.T) {
	req := decodeRequest(t, `{
		"user_id": "u1",
		"provider_type": "APPLE_HEALTH",
		"start_time": "2025-08-13T00:15:00+01:00",
		"end_time": "2025-08-13T02:10:00+01:00",
		"local_timezone": "Europe/London",
		"device_health_data": {
			"step_count": {"value": 500},
			"step_samples": [
				{"startDate": "2025-08-13 00:30:00", "value": 500}
			],
			"hr_samples": [
				{"value": 58},
				{"value": 66}
			]
		}
	}`)

	res, err := Canonicalize(req)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	daily := res.Daily
	if daily.DistanceData.Steps != 500 {
		t.Errorf("steps = %d, want 500", daily.DistanceData.Steps)
	}
	if got := daily.HeartRateData.Summary.AvgHRBPM; got != 62 {
		t.Errorf("avg HR = %v, want 62", got)
	}

	buckets := daily.DistanceData.StepSamples
	if len(buckets) != 3 {
		t.Fatalf("buckets = %d, want 3", len(buckets))
	}
	if buckets[0].Value != 500 || buckets[1].Value != 0 || buckets[2].Value != 0 {
		t.Errorf("bucket values = [%d %d %d], want [500 0 0]",
			buckets[0].Value, buckets[1].Value, buckets[2].Value)
	}
	if buckets[0].StartTime != "2025-08-13T00:00:00.000+0100" {
		t.Errorf("bucket[0].StartTime = %q", buckets[0].StartTime)
	}
}

// TestAppleBodyLatestBloodPressure verifies that the sample with the
// greatest end time wins regardless of input order, and values are truncated
// to integer mmHg.
func TestAppleBodyLatestBloodPressure(t *testing.T) {
	req := decodeRequest(t, `{
		"user_id": "u1",
		"provider_type": "APPLE_HEALTH",
		"start_time": "2025-03-01T00:00:00Z",
		"device_health_data": {
			"blood_pressure_samples": [
				{"startDate": "2025-03-01T10:00:00Z", "endDate": "2025-03-01T10:00:00Z",
				 "bloodPressureSystolicValue": 130.7, "bloodPressureDiastolicValue": 85.2},
				{"startDate": "2025-03-01T08:00:00Z", "endDate": "2025-03-01T08:00:00Z",
				 "bloodPressureSystolicValue": 120, "bloodPressureDiastolicValue": 80}
			]
		}
	}`)

	res, err := Canonicalize(req)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	samples := res.Body.BloodPressureData.BloodPressureSamples
	if len(samples) != 1 {
		t.Fatalf("bp samples = %d, want 1", len(samples))
	}
	if samples[0].SystolicBP != 130 || samples[0].DiastolicBP != 85 {
		t.Errorf("bp = %d/%d, want 130/85", samples[0].SystolicBP, samples[0].DiastolicBP)
	}
	if samples[0].Timestamp != "2025-03-01T10:00:00Z" {
		t.Errorf("timestamp = %q", samples[0].Timestamp)
	}
}

// TestAppleBodyBloodPressureTie verifies that equal end times keep the
// first-seen sample: comparison is strictly greater-than.
func TestAppleBodyBloodPressureTie(t *testing.T) {
	req := decodeRequest(t, `{
		"user_id": "u1",
		"provider_type": "APPLE_HEALTH",
		"start_time": "2025-03-01T00:00:00Z",
		"device_health_data": {
			"blood_pressure_samples": [
				{"startDate": "2025-03-01T09:00:00Z", "endDate": "2025-03-01T09:00:00Z",
				 "bloodPressureSystolicValue": 118, "bloodPressureDiastolicValue": 76},
				{"startDate": "2025-03-01T09:00:00Z", "endDate": "2025-03-01T09:00:00Z",
				 "bloodPressureSystolicValue": 140, "bloodPressureDiastolicValue": 95}
			]
		}
	}`)

	res, err := Canonicalize(req)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	samples := res.Body.BloodPressureData.BloodPressureSamples
	if len(samples) != 1 {
		t.Fatalf("bp samples = %d, want 1", len(samples))
	}
	if samples[0].SystolicBP != 118 {
		t.Errorf("systolic = %d, want first-seen 118", samples[0].SystolicBP)
	}
}

// TestAppleSleepAggregatesStages verifies the sleep record: stage events of
// the same type merge (durations sum, bounds expand), order is first-seen,
// and the overall window spans all kept stages.
func TestAppleSleepAggregatesStages(t *testing.T) {
	req := decodeRequest(t, `{
		"user_id": "u1",
		"provider_type": "APPLE_HEALTH",
		"start_time": "2025-03-01T00:00:00Z",
		"device_health_data": {
			"sleep_samples": [
				{"value": "DEEP", "startDate": "2025-03-01T01:00:00Z", "endDate": "2025-03-01T01:30:00Z"},
				{"value": "REM",  "startDate": "2025-03-01T01:30:00Z", "endDate": "2025-03-01T01:50:00Z"},
				{"value": "DEEP", "startDate": "2025-03-01T02:00:00Z", "endDate": "2025-03-01T02:15:00Z"}
			]
		}
	}`)

	res, err := Canonicalize(req)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	stages := res.Sleep.Stages
	if len(stages) != 2 {
		t.Fatalf("stages = %d, want 2", len(stages))
	}
	if stages[0].Type != "Deep" || stages[0].TotalDuration != 45 {
		t.Errorf("stage[0] = %s/%d min, want Deep/45", stages[0].Type, stages[0].TotalDuration)
	}
	if stages[1].Type != "REM" || stages[1].TotalDuration != 20 {
		t.Errorf("stage[1] = %s/%d min, want REM/20", stages[1].Type, stages[1].TotalDuration)
	}
	if stages[0].StartTime != "2025-03-01T01:00:00Z" || stages[0].EndTime != "2025-03-01T02:15:00Z" {
		t.Errorf("Deep bounds = %s..%s", stages[0].StartTime, stages[0].EndTime)
	}

	meta := res.Sleep.Metadata
	if meta.StartTime != "2025-03-01T01:00:00Z" || meta.EndTime != "2025-03-01T02:15:00Z" {
		t.Errorf("metadata window = %s..%s", meta.StartTime, meta.EndTime)
	}
	if meta.IsNap == nil || *meta.IsNap {
		t.Errorf("is_nap = %v, want false", meta.IsNap)
	}
}

// TestAppleSleepSkipsBadStages verifies unmapped stage values and
// non-positive durations are dropped with skip records, not errors.
func TestAppleSleepSkipsBadStages(t *testing.T) {
	req := decodeRequest(t, `{
		"user_id": "u1",
		"provider_type": "APPLE_HEALTH",
		"start_time": "2025-03-01T00:00:00Z",
		"device_health_data": {
			"sleep_samples": [
				{"value": "MYSTERY", "startDate": "2025-03-01T01:00:00Z", "endDate": "2025-03-01T01:30:00Z"},
				{"value": "DEEP", "startDate": "2025-03-01T02:00:00Z", "endDate": "2025-03-01T02:00:00Z"},
				{"value": "core", "startDate": "2025-03-01T03:00:00Z", "endDate": "2025-03-01T03:10:00Z"}
			]
		}
	}`)

	res, err := Canonicalize(req)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	stages := res.Sleep.Stages
	if len(stages) != 1 {
		t.Fatalf("stages = %d, want 1", len(stages))
	}
	if stages[0].Type != "Core" {
		t.Errorf("stage type = %q, want Core (value match is case-insensitive)", stages[0].Type)
	}
	if len(res.Skipped) != 2 {
		t.Errorf("skipped = %d, want 2", len(res.Skipped))
	}
}
