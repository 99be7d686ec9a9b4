package models

// Canonical sleep stage names, shared by both providers after normalization.
const (
	SleepStageAwake  = "Awake"
	SleepStageAsleep = "Asleep"
	SleepStageCore   = "Core"
	SleepStageDeep   = "Deep"
	SleepStageREM    = "REM"
	SleepStageInBed  = "Inbed"
)

// Metadata bounds a canonical record's time window. Daily and body records
// emit UTC instants; sleep metadata keeps the stage timezone basis.
type Metadata struct {
	StartTime string `json:"start_time"`
	EndTime   string `json:"end_time"`
}

// SleepMetadata is empty when no stages survived aggregation.
type SleepMetadata struct {
	StartTime string `json:"start_time,omitempty"`
	EndTime   string `json:"end_time,omitempty"`
	IsNap     *bool  `json:"is_nap,omitempty"`
}

// HourBucket is one local-timezone clock hour of a cumulative counter.
// Timestamps use the millisecond no-colon-offset wire format
// (2025-08-13T00:00:00.000+0100); downstream consumers parse it positionally.
type HourBucket struct {
	Value     int64  `json:"value"`
	StartTime string `json:"start_time"`
	EndTime   string `json:"end_time"`
}

// DistanceData carries the vendor-reported step counter plus the gap-filled
// hourly series.
type DistanceData struct {
	Steps       int64        `json:"steps"`
	StepSamples []HourBucket `json:"step_samples"`
}

// HeartRateSummary is the arithmetic mean of all instantaneous samples, or 0
// when none were provided.
type HeartRateSummary struct {
	AvgHRBPM float64 `json:"avg_hr_bpm"`
}

type HeartRateData struct {
	Summary HeartRateSummary `json:"summary"`
}

// DailyData is the canonical daily-activity record.
type DailyData struct {
	Metadata      Metadata      `json:"metadata"`
	DistanceData  DistanceData  `json:"distance_data"`
	HeartRateData HeartRateData `json:"heart_rate_data"`
}

// BPSample is the blood-pressure sample with the latest end time, in integer
// mmHg regardless of the vendor's units.
type BPSample struct {
	Timestamp   string `json:"timestamp"`
	SystolicBP  int    `json:"systolic_bp"`
	DiastolicBP int    `json:"diastolic_bp"`
}

type BloodPressureData struct {
	BloodPressureSamples []BPSample `json:"blood_pressure_samples"`
}

// BodyData is the canonical body/vitals record. The sample list holds zero or
// one element.
type BodyData struct {
	Metadata          Metadata          `json:"metadata"`
	BloodPressureData BloodPressureData `json:"blood_pressure_data"`
}

// SleepStage is one aggregated stage type: bounds expand across segments,
// durations sum.
type SleepStage struct {
	Type          string `json:"type"`
	StartTime     string `json:"start_time"`
	EndTime       string `json:"end_time"`
	TotalDuration int    `json:"total_duration"`
}

// SleepData is the canonical sleep record.
type SleepData struct {
	Metadata SleepMetadata `json:"metadata"`
	Stages   []SleepStage  `json:"stages"`
}
