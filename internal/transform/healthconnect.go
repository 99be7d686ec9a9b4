package transform

import (
	"encoding/json"
	"time"

	"github.com/claude/healthbridge/internal/models"
)

// Health Connect payload shapes. Field names differ from the Apple store:
// step samples use count/startTime, heart-rate samples arrive in nested
// groups, and blood pressure carries explicit mmHg unit wrappers.
type hcHealthData struct {
	StepCount            hcStepCount       `json:"step_count"`
	StepSamples          []json.RawMessage `json:"step_samples"`
	HRSamples            []json.RawMessage `json:"hr_samples"`
	BloodPressureSamples []json.RawMessage `json:"blood_pressure_samples"`
	SleepSamples         []json.RawMessage `json:"sleep_samples"`
}

type hcStepCount struct {
	CountTotal int64 `json:"COUNT_TOTAL"`
}

type hcStepSample struct {
	StartTime string  `json:"startTime"`
	Count     float64 `json:"count"`
}

type hcHRGroup struct {
	Samples []hcHRSample `json:"samples"`
}

type hcHRSample struct {
	BeatsPerMinute *float64 `json:"beatsPerMinute"`
}

type hcPressure struct {
	MMHg float64 `json:"inMillimetersOfMercury"`
}

type hcBPSample struct {
	Time      string     `json:"time"`
	Systolic  hcPressure `json:"systolic"`
	Diastolic hcPressure `json:"diastolic"`
}

type hcSleepSession struct {
	StartTime string            `json:"startTime"`
	EndTime   string            `json:"endTime"`
	Stages    []json.RawMessage `json:"stages"`
}

type hcSleepStage struct {
	Stage     *int   `json:"stage"`
	StartTime string `json:"startTime"`
	EndTime   string `json:"endTime"`
}

// hcStageCodes maps Health Connect numeric stage codes to canonical names.
// Codes 1 and 3 both mean awake; unknown codes are skipped.
var hcStageCodes = map[int]string{
	1: models.SleepStageAwake,
	2: models.SleepStageAsleep,
	3: models.SleepStageAwake,
	4: models.SleepStageCore,
	5: models.SleepStageDeep,
	6: models.SleepStageREM,
}

func canonicalizeHealthConnect(req *models.HealthDataRequest, start, end time.Time, loc *time.Location) *Result {
	res := &Result{}

	var data hcHealthData
	if len(req.DeviceHealthData) > 0 {
		if err := json.Unmarshal(req.DeviceHealthData, &data); err != nil {
			res.skip("device_health_data", "undecodable payload: %v", err)
		}
	}

	res.Daily = hcDaily(&data, start, end, loc, res)
	res.Body = hcBody(&data, start, end, loc, res)
	res.Sleep = hcSleep(&data, loc, res)
	return res
}

func hcDaily(data *hcHealthData, start, end time.Time, loc *time.Location, res *Result) *models.DailyData {
	var hrValues []float64
	for _, raw := range data.HRSamples {
		var g hcHRGroup
		if err := json.Unmarshal(raw, &g); err != nil {
			res.skip("hr_samples", "undecodable group: %v", err)
			continue
		}
		for _, s := range g.Samples {
			if s.BeatsPerMinute != nil {
				hrValues = append(hrValues, *s.BeatsPerMinute)
			}
		}
	}

	// Health Connect timestamps without an offset are UTC instants.
	var samples []StepSample
	for _, raw := range data.StepSamples {
		var s hcStepSample
		if err := json.Unmarshal(raw, &s); err != nil {
			res.skip("step_samples", "undecodable sample: %v", err)
			continue
		}
		t, err := models.ParseFlexTime(s.StartTime)
		if err != nil {
			res.skip("step_samples", "bad startTime: %v", err)
			continue
		}
		samples = append(samples, StepSample{Start: t.Time, Value: int64(s.Count)})
	}

	return &models.DailyData{
		Metadata: models.Metadata{
			StartTime: start.Format(time.RFC3339),
			EndTime:   end.Format(time.RFC3339),
		},
		DistanceData: models.DistanceData{
			Steps:       data.StepCount.CountTotal,
			StepSamples: BinHourly(samples, start, end, loc),
		},
		HeartRateData: models.HeartRateData{
			Summary: models.HeartRateSummary{AvgHRBPM: mean(hrValues)},
		},
	}
}

// hcBody emits metadata and the selected sample in the user's local timezone.
func hcBody(data *hcHealthData, start, end time.Time, loc *time.Location, res *Result) *models.BodyData {
	body := &models.BodyData{
		Metadata: models.Metadata{
			StartTime: start.In(loc).Format(time.RFC3339),
			EndTime:   end.In(loc).Format(time.RFC3339),
		},
		BloodPressureData: models.BloodPressureData{
			BloodPressureSamples: []models.BPSample{},
		},
	}

	var latest *hcBPSample
	var latestTime time.Time
	for _, raw := range data.BloodPressureSamples {
		var s hcBPSample
		if err := json.Unmarshal(raw, &s); err != nil {
			res.skip("blood_pressure_samples", "undecodable sample: %v", err)
			continue
		}
		t, err := models.ParseFlexTime(s.Time)
		if err != nil {
			res.skip("blood_pressure_samples", "bad time: %v", err)
			continue
		}
		if latest == nil || t.After(latestTime) {
			s := s
			latest = &s
			latestTime = t.Time
		}
	}
	if latest == nil {
		return body
	}

	body.BloodPressureData.BloodPressureSamples = []models.BPSample{{
		Timestamp:   latestTime.In(loc).Format(time.RFC3339),
		SystolicBP:  int(latest.Systolic.MMHg),
		DiastolicBP: int(latest.Diastolic.MMHg),
	}}
	return body
}

// hcSleep keeps only the most recent session (max end time) and aggregates
// its nested stages in the user's local timezone. A session without stages
// yields metadata only.
func hcSleep(data *hcHealthData, loc *time.Location, res *Result) *models.SleepData {
	sleep := &models.SleepData{Stages: []models.SleepStage{}}

	var latest *hcSleepSession
	var latestEnd, latestStart time.Time
	for _, raw := range data.SleepSamples {
		var s hcSleepSession
		if err := json.Unmarshal(raw, &s); err != nil {
			res.skip("sleep_samples", "undecodable session: %v", err)
			continue
		}
		endT, err := models.ParseFlexTime(s.EndTime)
		if err != nil {
			res.skip("sleep_samples", "bad endTime: %v", err)
			continue
		}
		startT, err := models.ParseFlexTime(s.StartTime)
		if err != nil {
			res.skip("sleep_samples", "bad startTime: %v", err)
			continue
		}
		if latest == nil || endT.After(latestEnd) {
			s := s
			latest = &s
			latestEnd = endT.Time
			latestStart = startT.Time
		}
	}
	if latest == nil {
		return sleep
	}

	isNap := false
	sleep.Metadata = models.SleepMetadata{
		StartTime: latestStart.In(loc).Format(time.RFC3339),
		EndTime:   latestEnd.In(loc).Format(time.RFC3339),
		IsNap:     &isNap,
	}

	type agg struct {
		stage      models.SleepStage
		start, end time.Time
	}
	byType := make(map[string]*agg)
	var order []string

	for _, raw := range latest.Stages {
		var s hcSleepStage
		if err := json.Unmarshal(raw, &s); err != nil {
			res.skip("sleep_stages", "undecodable stage: %v", err)
			continue
		}
		if s.Stage == nil {
			res.skip("sleep_stages", "missing stage code")
			continue
		}
		label, ok := hcStageCodes[*s.Stage]
		if !ok {
			res.skip("sleep_stages", "unmapped stage code %d", *s.Stage)
			continue
		}
		startT, err := models.ParseFlexTime(s.StartTime)
		if err != nil {
			res.skip("sleep_stages", "bad startTime: %v", err)
			continue
		}
		endT, err := models.ParseFlexTime(s.EndTime)
		if err != nil {
			res.skip("sleep_stages", "bad endTime: %v", err)
			continue
		}
		localStart := startT.In(loc)
		localEnd := endT.In(loc)
		if !localStart.Before(localEnd) {
			res.skip("sleep_stages", "non-positive duration for stage code %d", *s.Stage)
			continue
		}
		mins := int(localEnd.Sub(localStart).Minutes())

		a, seen := byType[label]
		if !seen {
			a = &agg{
				stage: models.SleepStage{Type: label},
				start: localStart,
				end:   localEnd,
			}
			byType[label] = a
			order = append(order, label)
		}
		a.stage.TotalDuration += mins
		if localStart.Before(a.start) {
			a.start = localStart
		}
		if localEnd.After(a.end) {
			a.end = localEnd
		}
	}

	for _, label := range order {
		a := byType[label]
		a.stage.StartTime = a.start.Format(time.RFC3339)
		a.stage.EndTime = a.end.Format(time.RFC3339)
		sleep.Stages = append(sleep.Stages, a.stage)
	}

	return sleep
}
