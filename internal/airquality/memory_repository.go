package airquality

import (
	"context"
	"sort"
	"sync"
	"time"
)

type recordKey struct {
	lat  float64
	lon  float64
	hour int64
}

// InMemoryStore is an in-memory implementation of Store.
// This is intended for testing and local runs without a database.
type InMemoryStore struct {
	mu      sync.RWMutex
	records map[recordKey]HourlyRecord
}

// NewInMemoryStore creates a new in-memory store.
func NewInMemoryStore() *InMemoryStore {
	return &InMemoryStore{
		records: make(map[recordKey]HourlyRecord),
	}
}

// ReadWindow returns the records in [from, from+hours) ordered by hour.
func (s *InMemoryStore) ReadWindow(_ context.Context, lat, lon float64, from time.Time, hours int) ([]HourlyRecord, error) {
	start, end, err := windowBounds(from, hours)
	if err != nil {
		return nil, err
	}

	s.mu.RLock()
	defer s.mu.RUnlock()

	out := make([]HourlyRecord, 0, hours)
	for key, rec := range s.records {
		if key.lat != lat || key.lon != lon {
			continue
		}
		if rec.HourTimestamp.Before(start) || !rec.HourTimestamp.Before(end) {
			continue
		}
		out = append(out, copyRecord(rec))
	}

	sort.Slice(out, func(i, j int) bool {
		return out[i].HourTimestamp.Before(out[j].HourTimestamp)
	})
	return out, nil
}

// FindMissingHours returns every hour in [from, to) with no stored record.
func (s *InMemoryStore) FindMissingHours(_ context.Context, lat, lon float64, from, to time.Time) ([]time.Time, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	stored := make(map[int64]struct{})
	for key := range s.records {
		if key.lat == lat && key.lon == lon {
			stored[key.hour] = struct{}{}
		}
	}
	return missingFrom(from, to, stored), nil
}

// UpsertRecords stores records, overwriting any existing record for the same key.
func (s *InMemoryStore) UpsertRecords(_ context.Context, records []HourlyRecord) (bool, error) {
	if len(records) == 0 {
		return false, ErrNoRecords
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	for _, rec := range records {
		rec.HourTimestamp = TruncateHour(rec.HourTimestamp)
		key := recordKey{lat: rec.Latitude, lon: rec.Longitude, hour: rec.HourTimestamp.Unix()}
		s.records[key] = copyRecord(rec)
	}
	return true, nil
}

// Len returns the number of stored records.
func (s *InMemoryStore) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.records)
}

func copyRecord(rec HourlyRecord) HourlyRecord {
	cpy := rec
	if rec.SubIndices != nil {
		cpy.SubIndices = make(map[Pollutant]int, len(rec.SubIndices))
		for p, v := range rec.SubIndices {
			cpy.SubIndices[p] = v
		}
	}
	return cpy
}

// Ensure InMemoryStore implements Store interface.
var _ Store = (*InMemoryStore)(nil)
