package transform

import (
	"time"

	"github.com/claude/healthbridge/internal/models"
)

// StepSample is a provider-neutral step sample: an already-zoned start
// instant and a step count. Providers resolve their own naive-timestamp
// conventions before handing samples to the binner.
type StepSample struct {
	Start time.Time
	Value int64
}

// BinHourly builds a continuous, zero-filled hourly series in loc covering
// every hour boundary from floor(start) to floor(end) inclusive. Each
// sample's value is summed into the bucket matching its localized start
// hour; samples outside the generated range are dropped. Output is ordered
// ascending with no duplicate hours.
func BinHourly(samples []StepSample, startUTC, endUTC time.Time, loc *time.Location) []models.HourBucket {
	seriesStart := floorHour(startUTC.In(loc))
	seriesEndExclusive := floorHour(endUTC.In(loc)).Add(time.Hour)

	var starts []time.Time
	values := make(map[int64]int64)
	for cur := seriesStart; cur.Before(seriesEndExclusive); cur = cur.Add(time.Hour) {
		starts = append(starts, cur)
		values[cur.Unix()] = 0
	}

	for _, s := range samples {
		key := floorHour(s.Start.In(loc)).Unix()
		if _, ok := values[key]; ok {
			values[key] += s.Value
		}
	}

	buckets := make([]models.HourBucket, 0, len(starts))
	for _, st := range starts {
		buckets = append(buckets, models.HourBucket{
			Value:     values[st.Unix()],
			StartTime: FormatWireTime(st),
			EndTime:   FormatWireTime(st.Add(time.Hour)),
		})
	}
	return buckets
}
