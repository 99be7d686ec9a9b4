package models

import (
	"encoding/json"
	"fmt"
	"time"
)

// flexLayouts are the timestamp formats vendors actually send, in the order
// we try them. Layouts without a zone mark the result as unzoned so the
// transform layer can decide which timezone to assume.
var flexLayouts = []struct {
	layout string
	zoned  bool
}{
	{time.RFC3339Nano, true},
	{time.RFC3339, true},
	{"2006-01-02T15:04:05.999999999-0700", true}, // no colon in offset
	{"2006-01-02 15:04:05 -0700", true},          // wearable export format
	{"2006-01-02T15:04:05.999999999", false},
	{"2006-01-02 15:04:05", false},
	{"2006-01-02", false},
}

// FlexTime parses the assorted timestamp formats found in vendor payloads.
// Zoned records whether the source string carried an explicit UTC offset;
// unzoned values parse in UTC and the caller reinterprets them.
type FlexTime struct {
	time.Time
	Zoned bool
}

// ParseFlexTime parses s against the known vendor layouts.
func ParseFlexTime(s string) (FlexTime, error) {
	for _, l := range flexLayouts {
		if t, err := time.Parse(l.layout, s); err == nil {
			return FlexTime{Time: t, Zoned: l.zoned}, nil
		}
	}
	return FlexTime{}, fmt.Errorf("cannot parse timestamp %q", s)
}

func (t *FlexTime) UnmarshalJSON(data []byte) error {
	var s string
	if err := json.Unmarshal(data, &s); err != nil {
		return err
	}
	parsed, err := ParseFlexTime(s)
	if err != nil {
		return err
	}
	*t = parsed
	return nil
}

func (t FlexTime) MarshalJSON() ([]byte, error) {
	return json.Marshal(t.Format(time.RFC3339Nano))
}

// HealthDataRequest is the inbound shape consumed by the canonicalizer. The
// device_health_data block stays raw because its field names differ per
// provider; each transform decodes it into its own shape.
type HealthDataRequest struct {
	UserID           string          `json:"user_id"`
	ProviderType     ProviderKind    `json:"provider_type"`
	StartTime        FlexTime        `json:"start_time"`
	EndTime          *FlexTime       `json:"end_time,omitempty"`
	DeviceHealthData json.RawMessage `json:"device_health_data"`
	LocalTimezone    string          `json:"local_timezone,omitempty"`
}

// Window returns the request's [start,end] window coerced to UTC, defaulting
// end to start when absent. Unzoned timestamps are assumed UTC.
func (r *HealthDataRequest) Window() (start, end time.Time) {
	start = r.StartTime.UTC()
	end = start
	if r.EndTime != nil {
		end = r.EndTime.UTC()
	}
	return start, end
}
