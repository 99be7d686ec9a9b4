package transform

import (
	"encoding/json"
	"strings"
	"time"

	"github.com/claude/healthbridge/internal/models"
)

// Apple health-store payload shapes. Sample arrays stay raw so one malformed
// element can be skipped without discarding its siblings.
type appleHealthData struct {
	StepCount            appleStepCount    `json:"step_count"`
	StepSamples          []json.RawMessage `json:"step_samples"`
	HRSamples            []json.RawMessage `json:"hr_samples"`
	BloodPressureSamples []json.RawMessage `json:"blood_pressure_samples"`
	SleepSamples         []json.RawMessage `json:"sleep_samples"`
}

type appleStepCount struct {
	Value int64 `json:"value"`
}

type appleStepSample struct {
	StartDate string  `json:"startDate"`
	Value     float64 `json:"value"`
}

type appleHRSample struct {
	Value *float64 `json:"value"`
}

type appleBPSample struct {
	StartDate string  `json:"startDate"`
	EndDate   string  `json:"endDate"`
	Systolic  float64 `json:"bloodPressureSystolicValue"`
	Diastolic float64 `json:"bloodPressureDiastolicValue"`
}

type appleSleepSample struct {
	Value     string `json:"value"`
	StartDate string `json:"startDate"`
	EndDate   string `json:"endDate"`
}

// appleSleepTypes maps uppercased Apple stage values to canonical names.
// Unmapped codes are skipped — they are bridging events, not stages.
var appleSleepTypes = map[string]string{
	"REM":    models.SleepStageREM,
	"CORE":   models.SleepStageCore,
	"DEEP":   models.SleepStageDeep,
	"AWAKE":  models.SleepStageAwake,
	"ASLEEP": models.SleepStageAsleep,
	"INBED":  models.SleepStageInBed,
}

func canonicalizeApple(req *models.HealthDataRequest, start, end time.Time, loc *time.Location) *Result {
	res := &Result{}

	var data appleHealthData
	if len(req.DeviceHealthData) > 0 {
		if err := json.Unmarshal(req.DeviceHealthData, &data); err != nil {
			res.skip("device_health_data", "undecodable payload: %v", err)
		}
	}

	res.Daily = appleDaily(&data, start, end, loc, res)
	res.Body = appleBody(&data, start, end, res)
	res.Sleep = appleSleep(&data, res)
	return res
}

func appleDaily(data *appleHealthData, start, end time.Time, loc *time.Location, res *Result) *models.DailyData {
	var hrValues []float64
	for _, raw := range data.HRSamples {
		var s appleHRSample
		if err := json.Unmarshal(raw, &s); err != nil {
			res.skip("hr_samples", "undecodable sample: %v", err)
			continue
		}
		if s.Value != nil {
			hrValues = append(hrValues, *s.Value)
		}
	}

	// Apple step samples carry a startDate that may lack an offset; naive
	// timestamps are wall-clock times in the user's local zone.
	var samples []StepSample
	for _, raw := range data.StepSamples {
		var s appleStepSample
		if err := json.Unmarshal(raw, &s); err != nil {
			res.skip("step_samples", "undecodable sample: %v", err)
			continue
		}
		t, err := models.ParseFlexTime(s.StartDate)
		if err != nil {
			res.skip("step_samples", "bad startDate: %v", err)
			continue
		}
		samples = append(samples, StepSample{Start: rezone(t, loc), Value: int64(s.Value)})
	}

	return &models.DailyData{
		Metadata: models.Metadata{
			StartTime: start.Format(time.RFC3339),
			EndTime:   end.Format(time.RFC3339),
		},
		DistanceData: models.DistanceData{
			Steps:       data.StepCount.Value,
			StepSamples: BinHourly(samples, start, end, loc),
		},
		HeartRateData: models.HeartRateData{
			Summary: models.HeartRateSummary{AvgHRBPM: mean(hrValues)},
		},
	}
}

func appleBody(data *appleHealthData, start, end time.Time, res *Result) *models.BodyData {
	body := &models.BodyData{
		Metadata: models.Metadata{
			StartTime: start.Format(time.RFC3339),
			EndTime:   end.Format(time.RFC3339),
		},
		BloodPressureData: models.BloodPressureData{
			BloodPressureSamples: []models.BPSample{},
		},
	}

	// Pick the sample with the strictly greatest end time; ties keep the
	// first-seen sample.
	var latest *appleBPSample
	var latestEnd time.Time
	for _, raw := range data.BloodPressureSamples {
		var s appleBPSample
		if err := json.Unmarshal(raw, &s); err != nil {
			res.skip("blood_pressure_samples", "undecodable sample: %v", err)
			continue
		}
		endT, err := models.ParseFlexTime(s.EndDate)
		if err != nil {
			res.skip("blood_pressure_samples", "bad endDate: %v", err)
			continue
		}
		if latest == nil || endT.Time.After(latestEnd) {
			s := s
			latest = &s
			latestEnd = endT.Time
		}
	}
	if latest == nil {
		return body
	}

	ts, err := models.ParseFlexTime(latest.StartDate)
	if err != nil {
		res.skip("blood_pressure_samples", "bad startDate: %v", err)
		return body
	}
	body.BloodPressureData.BloodPressureSamples = []models.BPSample{{
		Timestamp:   ts.UTC().Format(time.RFC3339),
		SystolicBP:  int(latest.Systolic),
		DiastolicBP: int(latest.Diastolic),
	}}
	return body
}

// appleSleep aggregates flat stage events across the entire input: durations
// sum per stage type, bounds expand, and the overall window spans all kept
// stages. Stage timestamps keep the vendor's local offset.
func appleSleep(data *appleHealthData, res *Result) *models.SleepData {
	sleep := &models.SleepData{Stages: []models.SleepStage{}}

	type agg struct {
		stage      models.SleepStage
		start, end time.Time
	}
	byType := make(map[string]*agg)
	var order []string
	var overallStart, overallEnd time.Time

	for _, raw := range data.SleepSamples {
		var s appleSleepSample
		if err := json.Unmarshal(raw, &s); err != nil {
			res.skip("sleep_samples", "undecodable sample: %v", err)
			continue
		}
		stageType, ok := appleSleepTypes[strings.ToUpper(s.Value)]
		if !ok {
			res.skip("sleep_samples", "unmapped stage %q", s.Value)
			continue
		}
		startT, err := models.ParseFlexTime(s.StartDate)
		if err != nil {
			res.skip("sleep_samples", "bad startDate: %v", err)
			continue
		}
		endT, err := models.ParseFlexTime(s.EndDate)
		if err != nil {
			res.skip("sleep_samples", "bad endDate: %v", err)
			continue
		}
		if !startT.Before(endT.Time) {
			res.skip("sleep_samples", "non-positive duration for stage %q", s.Value)
			continue
		}
		mins := int(endT.Sub(startT.Time).Minutes())

		a, seen := byType[stageType]
		if !seen {
			a = &agg{
				stage: models.SleepStage{Type: stageType},
				start: startT.Time,
				end:   endT.Time,
			}
			byType[stageType] = a
			order = append(order, stageType)
		}
		a.stage.TotalDuration += mins
		if startT.Before(a.start) {
			a.start = startT.Time
		}
		if endT.After(a.end) {
			a.end = endT.Time
		}

		if overallStart.IsZero() || startT.Before(overallStart) {
			overallStart = startT.Time
		}
		if overallEnd.IsZero() || endT.After(overallEnd) {
			overallEnd = endT.Time
		}
	}

	for _, stageType := range order {
		a := byType[stageType]
		a.stage.StartTime = a.start.Format(time.RFC3339)
		a.stage.EndTime = a.end.Format(time.RFC3339)
		sleep.Stages = append(sleep.Stages, a.stage)
	}

	if !overallStart.IsZero() && !overallEnd.IsZero() {
		isNap := false
		sleep.Metadata = models.SleepMetadata{
			StartTime: overallStart.Format(time.RFC3339),
			EndTime:   overallEnd.Format(time.RFC3339),
			IsNap:     &isNap,
		}
	}
	return sleep
}

func mean(values []float64) float64 {
	if len(values) == 0 {
		return 0
	}
	var sum float64
	for _, v := range values {
		sum += v
	}
	return sum / float64(len(values))
}
