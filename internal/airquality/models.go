// Package airquality provides CPCB air quality indexing and the hourly
// pollutant history store.
package airquality

import (
	"errors"
	"time"
)

// Store errors.
var (
	ErrInvalidWindow = errors.New("invalid time window")
	ErrNoRecords     = errors.New("no records to store")
)

// Pollutant identifies one of the six pollutants used by the CPCB index.
type Pollutant string

const (
	PollutantPM25 Pollutant = "pm25"
	PollutantPM10 Pollutant = "pm10"
	PollutantNO2  Pollutant = "no2"
	PollutantSO2  Pollutant = "so2"
	PollutantCO   Pollutant = "co"
	PollutantO3   Pollutant = "o3"
)

// Pollutants lists the index pollutants in dominant-pollutant priority order.
// When two pollutants share the maximum sub-index, the earlier one wins.
var Pollutants = []Pollutant{
	PollutantPM25,
	PollutantPM10,
	PollutantNO2,
	PollutantSO2,
	PollutantCO,
	PollutantO3,
}

// Valid reports whether p is one of the six index pollutants.
func (p Pollutant) Valid() bool {
	for _, known := range Pollutants {
		if p == known {
			return true
		}
	}
	return false
}

// DataSourceAPI tags records that were backfilled from the upstream provider.
const DataSourceAPI = "api"

// HourlyRecord is one observation for one location-hour.
// It is keyed by (Latitude, Longitude, HourTimestamp).
type HourlyRecord struct {
	Latitude  float64
	Longitude float64

	// HourTimestamp is truncated to the hour and stored in UTC.
	HourTimestamp time.Time
	UnixTimestamp int64

	// LocationName is the caller-supplied label, if any.
	LocationName *string

	// Raw concentrations in µg/m³ as delivered by the provider.
	// CO is stored raw; it is converted to mg/m³ only for indexing.
	PM25 *float64
	PM10 *float64
	NO2  *float64
	SO2  *float64
	CO   *float64
	O3   *float64
	NO   *float64
	NH3  *float64

	IndianAQI         *int
	DominantPollutant *Pollutant
	Category          Category
	SubIndices        map[Pollutant]int

	DataSource string
}

// Concentration returns the raw concentration stored for p.
func (r *HourlyRecord) Concentration(p Pollutant) *float64 {
	switch p {
	case PollutantPM25:
		return r.PM25
	case PollutantPM10:
		return r.PM10
	case PollutantNO2:
		return r.NO2
	case PollutantSO2:
		return r.SO2
	case PollutantCO:
		return r.CO
	case PollutantO3:
		return r.O3
	default:
		return nil
	}
}

// PollutantValues returns the six core concentrations keyed by pollutant,
// skipping nil values. CO is left in µg/m³.
func (r *HourlyRecord) PollutantValues() PollutantValues {
	values := make(PollutantValues, len(Pollutants))
	for _, p := range Pollutants {
		if v := r.Concentration(p); v != nil {
			values[p] = *v
		}
	}
	return values
}

// ApplyIndex copies an index result onto the record.
func (r *HourlyRecord) ApplyIndex(result IndexResult) {
	r.IndianAQI = result.AQI
	r.DominantPollutant = result.DominantPollutant
	r.Category = CategoryForIndex(result.AQI)
	r.SubIndices = result.SubIndices
}

// TruncateHour returns t in UTC truncated to the start of its hour.
func TruncateHour(t time.Time) time.Time {
	return t.UTC().Truncate(time.Hour)
}

// HourRange enumerates every hour boundary in the half-open range [from, to).
func HourRange(from, to time.Time) []time.Time {
	from = TruncateHour(from)
	to = TruncateHour(to)
	if !to.After(from) {
		return nil
	}

	hours := make([]time.Time, 0, int(to.Sub(from)/time.Hour))
	for h := from; h.Before(to); h = h.Add(time.Hour) {
		hours = append(hours, h)
	}
	return hours
}

// Float returns a pointer to v.
func Float(v float64) *float64 {
	return &v
}

// Int returns a pointer to v.
func Int(v int) *int {
	return &v
}
