package forecast

import (
	"errors"
	"math"
	"sort"
	"time"

	"github.com/rs/zerolog"

	"github.com/airsense/aqiforecast/internal/airquality"
)

// ErrEmptyWindow is returned when features are requested for no records.
var ErrEmptyWindow = errors.New("empty history window")

// FullWindowHours is the history length needed for every lag and rolling
// feature to be observable at the target hour.
const FullWindowHours = 24

// FeatureVector is one row of features for the latest hour of a window.
// NaN marks a value that could not be derived.
type FeatureVector struct {
	Schema    Schema
	Values    []float64
	Timestamp time.Time
}

// Value returns the feature by name.
func (v *FeatureVector) Value(name string) (float64, bool) {
	i, ok := v.Schema.Index(name)
	if !ok {
		return math.NaN(), false
	}
	return v.Values[i], true
}

// EngineConfig holds configuration for the feature engine.
type EngineConfig struct {
	// Schema defines which features are produced and in what order.
	Schema Schema

	// Location is the zone calendar features are computed in (default: UTC).
	Location *time.Location

	// Logger for engine operations.
	Logger zerolog.Logger
}

// FeatureEngine derives a FeatureVector from an hourly window.
type FeatureEngine struct {
	schema   Schema
	location *time.Location
	logger   zerolog.Logger
}

// NewFeatureEngine creates a new feature engine.
func NewFeatureEngine(cfg EngineConfig) *FeatureEngine {
	loc := cfg.Location
	if loc == nil {
		loc = time.UTC
	}

	return &FeatureEngine{
		schema:   cfg.Schema,
		location: loc,
		logger:   cfg.Logger,
	}
}

// Build derives the features of the latest hour in window. The window is
// sorted internally; lags and rolling windows are looked up by hour, so a
// gap yields NaN rather than shifting neighbouring rows into place.
func (e *FeatureEngine) Build(window []airquality.HourlyRecord) (*FeatureVector, error) {
	if len(window) == 0 {
		return nil, ErrEmptyWindow
	}
	if len(window) < FullWindowHours {
		e.logger.Warn().
			Int("records", len(window)).
			Int("wanted", FullWindowHours).
			Msg("short history window, some features will be missing")
	}

	sorted := make([]airquality.HourlyRecord, len(window))
	copy(sorted, window)
	sort.SliceStable(sorted, func(i, j int) bool {
		return sorted[i].HourTimestamp.Before(sorted[j].HourTimestamp)
	})

	target := airquality.TruncateHour(sorted[len(sorted)-1].HourTimestamp)
	idx := newSeriesIndex(sorted)

	values := make([]float64, e.schema.Len())
	for i, d := range e.schema.features {
		values[i] = e.derive(d, idx, target)
	}

	return &FeatureVector{
		Schema:    e.schema,
		Values:    values,
		Timestamp: target,
	}, nil
}

func (e *FeatureEngine) derive(d FeatureDescriptor, idx seriesIndex, target time.Time) float64 {
	switch d.Kind {
	case KindTemporal:
		return temporal(d.Temporal, target.In(e.location))
	case KindCurrent:
		return idx.at(d.Series, target)
	case KindLag:
		return idx.at(d.Series, target.Add(-hours(d.Hours)))
	case KindRollingMean:
		w, ok := idx.span(d.Series, target, d.Hours)
		if !ok {
			return math.NaN()
		}
		return mean(w)
	case KindRollingStd:
		w, ok := idx.span(d.Series, target, d.Hours)
		if !ok {
			return math.NaN()
		}
		return sampleStd(w)
	case KindChange:
		return idx.at(d.Series, target) - idx.at(d.Series, target.Add(-hours(d.Hours)))
	default:
		return math.NaN()
	}
}

// seriesIndex maps series -> unix hour -> value. Null values are absent.
type seriesIndex map[Series]map[int64]float64

func newSeriesIndex(records []airquality.HourlyRecord) seriesIndex {
	idx := make(seriesIndex, len(AllSeries))
	for _, s := range AllSeries {
		idx[s] = make(map[int64]float64, len(records))
	}
	for i := range records {
		hour := airquality.TruncateHour(records[i].HourTimestamp).Unix()
		for _, s := range AllSeries {
			if v, ok := s.Value(&records[i]); ok {
				idx[s][hour] = v
			}
		}
	}
	return idx
}

func (idx seriesIndex) at(s Series, t time.Time) float64 {
	if v, ok := idx[s][t.Unix()]; ok {
		return v
	}
	return math.NaN()
}

// span returns the w values ending at target, or false if any is missing.
func (idx seriesIndex) span(s Series, target time.Time, w int) ([]float64, bool) {
	out := make([]float64, 0, w)
	for k := w - 1; k >= 0; k-- {
		v, ok := idx[s][target.Add(-hours(k)).Unix()]
		if !ok {
			return nil, false
		}
		out = append(out, v)
	}
	return out, true
}

func temporal(f TemporalField, t time.Time) float64 {
	hour := float64(t.Hour())
	// Monday is 0.
	dow := float64((int(t.Weekday()) + 6) % 7)

	switch f {
	case FieldHour:
		return hour
	case FieldDayOfWeek:
		return dow
	case FieldDayOfMonth:
		return float64(t.Day())
	case FieldMonth:
		return float64(t.Month())
	case FieldIsWeekend:
		if dow >= 5 {
			return 1
		}
		return 0
	case FieldHourSin:
		return math.Sin(2 * math.Pi * hour / 24)
	case FieldHourCos:
		return math.Cos(2 * math.Pi * hour / 24)
	case FieldDowSin:
		return math.Sin(2 * math.Pi * dow / 7)
	case FieldDowCos:
		return math.Cos(2 * math.Pi * dow / 7)
	default:
		return math.NaN()
	}
}

func mean(values []float64) float64 {
	var sum float64
	for _, v := range values {
		sum += v
	}
	return sum / float64(len(values))
}

func sampleStd(values []float64) float64 {
	if len(values) < 2 {
		return math.NaN()
	}
	m := mean(values)
	var ss float64
	for _, v := range values {
		d := v - m
		ss += d * d
	}
	return math.Sqrt(ss / float64(len(values)-1))
}

func hours(n int) time.Duration {
	return time.Duration(n) * time.Hour
}
