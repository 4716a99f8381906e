package forecast_test

import (
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/airsense/aqiforecast/internal/airquality"
	"github.com/airsense/aqiforecast/internal/forecast"
)

const (
	delhiLat = 28.6139
	delhiLon = 77.209
)

// monday noon UTC
var baseHour = time.Date(2025, 3, 10, 12, 0, 0, 0, time.UTC)

// hourlyWindow builds n contiguous records ending at end. The i-th record
// (oldest first) has pm2_5 = 10+i and an AQI of 50+i.
func hourlyWindow(end time.Time, n int) []airquality.HourlyRecord {
	records := make([]airquality.HourlyRecord, 0, n)
	for i := 0; i < n; i++ {
		hour := end.Add(time.Duration(i-n+1) * time.Hour)
		records = append(records, airquality.HourlyRecord{
			Latitude:          delhiLat,
			Longitude:         delhiLon,
			HourTimestamp:     hour,
			UnixTimestamp:     hour.Unix(),
			PM25:              airquality.Float(10 + float64(i)),
			PM10:              airquality.Float(40),
			IndianAQI:         airquality.Int(50 + i),
			DominantPollutant: pollutant(airquality.PollutantPM10),
			Category:          airquality.CategoryForIndex(airquality.Int(50 + i)),
			DataSource:        airquality.DataSourceAPI,
		})
	}
	return records
}

func pollutant(p airquality.Pollutant) *airquality.Pollutant {
	return &p
}

// constRegressor always predicts value and records the rows it was given.
type constRegressor struct {
	value float64
	width int
	err   error

	mu   sync.Mutex
	rows [][]float64
}

func (r *constRegressor) Predict(features []float64) (float64, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	row := make([]float64, len(features))
	copy(row, features)
	r.rows = append(r.rows, row)
	if r.err != nil {
		return 0, r.err
	}
	return r.value, nil
}

func (r *constRegressor) NumFeatures() int {
	return r.width
}

func (r *constRegressor) lastRow() []float64 {
	r.mu.Lock()
	defer r.mu.Unlock()
	if len(r.rows) == 0 {
		return nil
	}
	return r.rows[len(r.rows)-1]
}

var errModel = errors.New("model exploded")

// newBundle builds a bundle over the default schema with one constant
// regressor per listed horizon predicting 100 + h + 0.123.
func newBundle(t *testing.T, horizons ...int) (*forecast.ModelBundle, map[int]*constRegressor) {
	t.Helper()

	schema := forecast.DefaultSchema()
	regs := make(map[int]*constRegressor, len(horizons))
	models := make(map[int]forecast.Regressor, len(horizons))
	for _, h := range horizons {
		r := &constRegressor{value: 100 + float64(h) + 0.123, width: schema.Len()}
		regs[h] = r
		models[h] = r
	}

	bundle, err := forecast.NewModelBundle(schema, models, "")
	require.NoError(t, err)
	return bundle, regs
}

func allHorizons() []int {
	hs := make([]int, 0, forecast.MaxHorizon)
	for h := forecast.MinHorizon; h <= forecast.MaxHorizon; h++ {
		hs = append(hs, h)
	}
	return hs
}
