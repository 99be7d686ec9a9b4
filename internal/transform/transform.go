// Package transform canonicalizes provider-specific health payloads into the
// three canonical record shapes (daily, body, sleep). Transforms are pure:
// no I/O, deterministic for fixed input, and a single malformed sample never
// fails the whole call — bad samples are skipped and reported.
package transform

import (
	"fmt"

	"github.com/claude/healthbridge/internal/models"
)

// Skip records one input sample dropped during canonicalization.
type Skip struct {
	Section string `json:"section"`
	Reason  string `json:"reason"`
}

// Result holds the three canonical records plus the skipped-sample list.
// All three records are always present; a category with no vendor data
// still produces its empty canonical shape.
type Result struct {
	Daily   *models.DailyData
	Body    *models.BodyData
	Sleep   *models.SleepData
	Skipped []Skip
}

func (r *Result) skip(section, format string, args ...any) {
	r.Skipped = append(r.Skipped, Skip{Section: section, Reason: fmt.Sprintf(format, args...)})
}

// ForCategory returns the canonical record for a category, or untyped nil
// when the canonicalizer produced none.
func (r *Result) ForCategory(c models.Category) any {
	switch c {
	case models.CategoryDaily:
		if r.Daily != nil {
			return r.Daily
		}
	case models.CategoryBody:
		if r.Body != nil {
			return r.Body
		}
	case models.CategorySleep:
		if r.Sleep != nil {
			return r.Sleep
		}
	}
	return nil
}

// Canonicalize dispatches on the provider type and returns the canonical
// records for the request window. Dispatch is closed: unknown providers fail
// with ErrUnsupportedProvider before any work happens.
func Canonicalize(req *models.HealthDataRequest) (*Result, error) {
	start, end := req.Window()
	loc := LocationOrUTC(req.LocalTimezone)

	switch req.ProviderType {
	case models.ProviderAppleHealth:
		return canonicalizeApple(req, start, end, loc), nil
	case models.ProviderHealthConnect:
		return canonicalizeHealthConnect(req, start, end, loc), nil
	}
	return nil, fmt.Errorf("%w: %q", models.ErrUnsupportedProvider, req.ProviderType)
}
