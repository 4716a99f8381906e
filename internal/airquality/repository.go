package airquality

import (
	"context"
	"time"
)

// Store persists hourly pollutant records keyed by (latitude, longitude, hour).
// Coordinates are matched exactly; callers are expected to pass the same
// float values they stored.
type Store interface {
	// ReadWindow returns the records in [from, from+hours) ordered by hour.
	ReadWindow(ctx context.Context, lat, lon float64, from time.Time, hours int) ([]HourlyRecord, error)

	// FindMissingHours returns every hour in [from, to) that has no stored record,
	// in ascending order.
	FindMissingHours(ctx context.Context, lat, lon float64, from, to time.Time) ([]time.Time, error)

	// UpsertRecords stores records in a single transaction. An existing record
	// for the same key is overwritten. On failure nothing is written and false
	// is returned with the cause.
	UpsertRecords(ctx context.Context, records []HourlyRecord) (bool, error)
}

// windowBounds validates and normalizes a ReadWindow request.
func windowBounds(from time.Time, hours int) (time.Time, time.Time, error) {
	if hours <= 0 {
		return time.Time{}, time.Time{}, ErrInvalidWindow
	}
	start := TruncateHour(from)
	return start, start.Add(time.Duration(hours) * time.Hour), nil
}

// missingFrom filters the hours of [from, to) that are not in stored.
func missingFrom(from, to time.Time, stored map[int64]struct{}) []time.Time {
	missing := make([]time.Time, 0)
	for _, h := range HourRange(from, to) {
		if _, ok := stored[h.Unix()]; !ok {
			missing = append(missing, h)
		}
	}
	return missing
}
