// Package forecast turns hourly pollutant history into multi-horizon AQI
// forecasts: feature derivation, per-horizon regressors and the request
// orchestration that assembles the history window.
package forecast

import (
	"errors"
	"fmt"
	"strconv"
	"strings"

	"github.com/airsense/aqiforecast/internal/airquality"
)

// Schema errors.
var (
	ErrEmptySchema      = errors.New("feature schema is empty")
	ErrUnknownFeature   = errors.New("unknown feature name")
	ErrDuplicateFeature = errors.New("duplicate feature name")
)

// FeatureKind classifies how a feature is derived from the window.
type FeatureKind int

const (
	KindTemporal FeatureKind = iota
	KindCurrent
	KindLag
	KindRollingMean
	KindRollingStd
	KindChange
)

func (k FeatureKind) String() string {
	switch k {
	case KindTemporal:
		return "temporal"
	case KindCurrent:
		return "current"
	case KindLag:
		return "lag"
	case KindRollingMean:
		return "rolling_mean"
	case KindRollingStd:
		return "rolling_std"
	case KindChange:
		return "change"
	default:
		return "unknown"
	}
}

// Series is a per-hour numeric column of the window.
type Series string

const (
	SeriesPM25 Series = "pm2_5"
	SeriesPM10 Series = "pm10"
	SeriesNO2  Series = "no2"
	SeriesSO2  Series = "so2"
	SeriesCO   Series = "co"
	SeriesO3   Series = "o3"
	SeriesAQI  Series = "aqi"
)

// PollutantSeries lists the concentration series in derivation order.
var PollutantSeries = []Series{SeriesPM25, SeriesPM10, SeriesNO2, SeriesSO2, SeriesCO, SeriesO3}

// AllSeries is PollutantSeries followed by the AQI series.
var AllSeries = append(append([]Series{}, PollutantSeries...), SeriesAQI)

var seriesPollutant = map[Series]airquality.Pollutant{
	SeriesPM25: airquality.PollutantPM25,
	SeriesPM10: airquality.PollutantPM10,
	SeriesNO2:  airquality.PollutantNO2,
	SeriesSO2:  airquality.PollutantSO2,
	SeriesCO:   airquality.PollutantCO,
	SeriesO3:   airquality.PollutantO3,
}

// Value extracts the series value from a record, or false if it is null.
func (s Series) Value(rec *airquality.HourlyRecord) (float64, bool) {
	if s == SeriesAQI {
		if rec.IndianAQI == nil {
			return 0, false
		}
		return float64(*rec.IndianAQI), true
	}
	p, ok := seriesPollutant[s]
	if !ok {
		return 0, false
	}
	v := rec.Concentration(p)
	if v == nil {
		return 0, false
	}
	return *v, true
}

// TemporalField names a calendar feature of the target hour.
type TemporalField string

const (
	FieldHour       TemporalField = "hour"
	FieldDayOfWeek  TemporalField = "day_of_week"
	FieldDayOfMonth TemporalField = "day_of_month"
	FieldMonth      TemporalField = "month"
	FieldIsWeekend  TemporalField = "is_weekend"
	FieldHourSin    TemporalField = "hour_sin"
	FieldHourCos    TemporalField = "hour_cos"
	FieldDowSin     TemporalField = "dow_sin"
	FieldDowCos     TemporalField = "dow_cos"
)

// TemporalFields lists the calendar features in derivation order.
var TemporalFields = []TemporalField{
	FieldHour, FieldDayOfWeek, FieldDayOfMonth, FieldMonth, FieldIsWeekend,
	FieldHourSin, FieldHourCos, FieldDowSin, FieldDowCos,
}

// Derivation parameters.
var (
	LagHours       = []int{1, 2, 3, 6, 12, 24}
	RollingWindows = []int{3, 6, 12, 24}
	ChangeHours    = []int{1, 3}
)

const (
	currentPrefix  = "components."
	currentAQIName = "indian_aqi"
)

// FeatureDescriptor is a parsed feature name.
type FeatureDescriptor struct {
	Name     string
	Kind     FeatureKind
	Series   Series
	Temporal TemporalField
	// Hours is the lag, window width or change distance.
	Hours int
}

// Schema is the ordered set of features a model bundle was trained on.
// The zero value is empty; build one with ParseSchema.
type Schema struct {
	features []FeatureDescriptor
	index    map[string]int
}

// ParseSchema resolves every name to a descriptor. Unknown or repeated
// names are rejected.
func ParseSchema(names []string) (Schema, error) {
	if len(names) == 0 {
		return Schema{}, ErrEmptySchema
	}

	s := Schema{
		features: make([]FeatureDescriptor, 0, len(names)),
		index:    make(map[string]int, len(names)),
	}
	for _, name := range names {
		if _, dup := s.index[name]; dup {
			return Schema{}, fmt.Errorf("%w: %q", ErrDuplicateFeature, name)
		}
		d, err := ParseFeature(name)
		if err != nil {
			return Schema{}, err
		}
		s.index[name] = len(s.features)
		s.features = append(s.features, d)
	}
	return s, nil
}

// DefaultSchema returns the schema of Catalog.
func DefaultSchema() Schema {
	s, err := ParseSchema(Catalog())
	if err != nil {
		panic(err)
	}
	return s
}

// Len returns the number of features.
func (s Schema) Len() int {
	return len(s.features)
}

// Names returns the feature names in order.
func (s Schema) Names() []string {
	names := make([]string, len(s.features))
	for i, d := range s.features {
		names[i] = d.Name
	}
	return names
}

// Descriptors returns a copy of the ordered descriptors.
func (s Schema) Descriptors() []FeatureDescriptor {
	out := make([]FeatureDescriptor, len(s.features))
	copy(out, s.features)
	return out
}

// Index returns the column of name.
func (s Schema) Index(name string) (int, bool) {
	i, ok := s.index[name]
	return i, ok
}

// ParseFeature resolves a single feature name.
func ParseFeature(name string) (FeatureDescriptor, error) {
	d := FeatureDescriptor{Name: name}

	if name == currentAQIName {
		d.Kind = KindCurrent
		d.Series = SeriesAQI
		return d, nil
	}

	if rest, ok := strings.CutPrefix(name, currentPrefix); ok {
		s := Series(rest)
		if !isPollutantSeries(s) {
			return d, fmt.Errorf("%w: %q", ErrUnknownFeature, name)
		}
		d.Kind = KindCurrent
		d.Series = s
		return d, nil
	}

	for _, f := range TemporalFields {
		if name == string(f) {
			d.Kind = KindTemporal
			d.Temporal = f
			return d, nil
		}
	}

	for _, s := range AllSeries {
		rest, ok := strings.CutPrefix(name, string(s)+"_")
		if !ok {
			continue
		}
		kind, hours, ok := parseDerived(rest)
		if !ok {
			break
		}
		d.Kind = kind
		d.Series = s
		d.Hours = hours
		return d, nil
	}

	return d, fmt.Errorf("%w: %q", ErrUnknownFeature, name)
}

// parseDerived parses the "<op>_<n>h" suffix of a derived feature.
func parseDerived(rest string) (FeatureKind, int, bool) {
	ops := []struct {
		prefix string
		kind   FeatureKind
		valid  []int
	}{
		{"lag_", KindLag, LagHours},
		{"rolling_mean_", KindRollingMean, RollingWindows},
		{"rolling_std_", KindRollingStd, RollingWindows},
		{"change_", KindChange, ChangeHours},
	}

	for _, op := range ops {
		num, ok := strings.CutPrefix(rest, op.prefix)
		if !ok {
			continue
		}
		num, ok = strings.CutSuffix(num, "h")
		if !ok {
			return 0, 0, false
		}
		n, err := strconv.Atoi(num)
		if err != nil || !containsInt(op.valid, n) {
			return 0, 0, false
		}
		return op.kind, n, true
	}
	return 0, 0, false
}

// Catalog lists every feature the engine can derive, in training order:
// current concentrations, calendar fields, lags, rolling statistics,
// changes, and finally the current AQI.
func Catalog() []string {
	names := make([]string, 0, 128)
	for _, s := range PollutantSeries {
		names = append(names, currentPrefix+string(s))
	}
	for _, f := range TemporalFields {
		names = append(names, string(f))
	}
	for _, s := range AllSeries {
		for _, k := range LagHours {
			names = append(names, fmt.Sprintf("%s_lag_%dh", s, k))
		}
	}
	for _, s := range AllSeries {
		for _, w := range RollingWindows {
			names = append(names,
				fmt.Sprintf("%s_rolling_mean_%dh", s, w),
				fmt.Sprintf("%s_rolling_std_%dh", s, w),
			)
		}
	}
	for _, s := range AllSeries {
		for _, k := range ChangeHours {
			names = append(names, fmt.Sprintf("%s_change_%dh", s, k))
		}
	}
	return append(names, currentAQIName)
}

func isPollutantSeries(s Series) bool {
	_, ok := seriesPollutant[s]
	return ok
}

func containsInt(values []int, n int) bool {
	for _, v := range values {
		if v == n {
			return true
		}
	}
	return false
}
