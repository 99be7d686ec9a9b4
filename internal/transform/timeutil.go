package transform

import (
	"time"

	"github.com/claude/healthbridge/internal/models"
)

// WireTimeLayout is the hour-bucket timestamp format: millisecond precision
// with a no-colon numeric offset (2025-08-13T00:00:00.000+0100). Downstream
// consumers parse it positionally, so this is a wire contract.
const WireTimeLayout = "2006-01-02T15:04:05.000-0700"

// FormatWireTime renders t in the hour-bucket wire format.
func FormatWireTime(t time.Time) string {
	return t.Format(WireTimeLayout)
}

// LocationOrUTC resolves an IANA timezone name, falling back to UTC when the
// name is empty or unrecognized.
func LocationOrUTC(name string) *time.Location {
	if name == "" {
		return time.UTC
	}
	loc, err := time.LoadLocation(name)
	if err != nil {
		return time.UTC
	}
	return loc
}

// rezone reinterprets an unzoned timestamp's wall-clock components in loc.
// Zoned timestamps pass through untouched.
func rezone(t models.FlexTime, loc *time.Location) time.Time {
	if t.Zoned {
		return t.Time
	}
	y, m, d := t.Date()
	hh, mm, ss := t.Clock()
	return time.Date(y, m, d, hh, mm, ss, t.Nanosecond(), loc)
}

// floorHour truncates t to the top of its wall-clock hour, preserving the
// location. time.Truncate is not used because it rounds absolute time and
// misaligns zones with non-whole-hour offsets.
func floorHour(t time.Time) time.Time {
	y, m, d := t.Date()
	return time.Date(y, m, d, t.Hour(), 0, 0, 0, t.Location())
}
