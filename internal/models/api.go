package models

import "time"

// Response statuses.
const (
	StatusSuccess = "success"
	StatusPartial = "partial_success"
)

// StoredRecords counts successful category writes for one or more requests.
type StoredRecords struct {
	Daily int `json:"daily"`
	Body  int `json:"body"`
	Sleep int `json:"sleep"`
}

// Add increments the counter for a category.
func (s *StoredRecords) Add(c Category) {
	switch c {
	case CategoryDaily:
		s.Daily++
	case CategoryBody:
		s.Body++
	case CategorySleep:
		s.Sleep++
	}
}

// Total returns the number of stored records across categories.
func (s StoredRecords) Total() int { return s.Daily + s.Body + s.Sleep }

// BatchError records one failed batch item without aborting the rest.
type BatchError struct {
	Index int    `json:"index"`
	Error string `json:"error"`
}

// HealthDataRecord is one read result: the latest write for a
// (category, calendar date) pair, with blob references already expanded.
type HealthDataRecord struct {
	ProviderType string         `json:"provider_type"`
	UserID       string         `json:"user_id"`
	Category     string         `json:"category"`
	MeasureName  string         `json:"measure_name"`
	Timestamp    time.Time      `json:"timestamp"`
	Data         map[string]any `json:"data"`
}
