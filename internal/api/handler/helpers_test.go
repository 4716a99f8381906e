package handler_test

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/airsense/aqiforecast/internal/airquality"
	"github.com/airsense/aqiforecast/internal/forecast"
)

// fakeForecaster records the last request and returns canned results.
type fakeForecaster struct {
	pred *forecast.Prediction
	err  error

	calls   int
	lastReq forecast.Request
}

func (f *fakeForecaster) GetPrediction(_ context.Context, req forecast.Request) (*forecast.Prediction, error) {
	f.calls++
	f.lastReq = req
	return f.pred, f.err
}

// leafEnsemble predicts value for every input.
func leafEnsemble(n int, value float64) *forecast.TreeEnsemble {
	return &forecast.TreeEnsemble{
		NFeatures: n,
		Trees: []forecast.Tree{
			{Nodes: []forecast.TreeNode{{Feature: 0, Left: -1, Right: -1, Value: value}}},
		},
	}
}

func testBundle(t *testing.T, horizons ...int) *forecast.ModelBundle {
	t.Helper()
	schema := forecast.DefaultSchema()
	regs := make(map[int]forecast.Regressor, len(horizons))
	for _, h := range horizons {
		regs[h] = leafEnsemble(schema.Len(), 80)
	}
	bundle, err := forecast.NewModelBundle(schema, regs, "1.0")
	require.NoError(t, err)
	return bundle
}

func samplePrediction() *forecast.Prediction {
	now := time.Date(2025, 3, 10, 12, 0, 0, 0, time.UTC)
	dominant := airquality.PollutantPM25

	return &forecast.Prediction{
		Location: forecast.Location{Name: "Chandigarh", Latitude: 30.727987, Longitude: 76.693266},
		Current: forecast.Current{
			Timestamp:         now,
			AQI:               airquality.Float(58),
			Category:          airquality.CategorySatisfactory,
			DominantPollutant: &dominant,
		},
		Historical: []forecast.Observation{
			{
				Timestamp:         now.Add(-time.Hour),
				AQI:               airquality.Int(58),
				Category:          airquality.CategorySatisfactory,
				DominantPollutant: &dominant,
				PM25:              airquality.Float(35.123),
				PM10:              airquality.Float(40.006),
			},
			{
				Timestamp: now,
				Category:  airquality.CategoryUnknown,
			},
		},
		Forecast: []forecast.Point{
			{HoursAhead: 1, Timestamp: now.Add(time.Hour), AQI: 61.5, Category: airquality.CategorySatisfactory},
			{HoursAhead: 2, Timestamp: now.Add(2 * time.Hour), AQI: 104.25, Category: airquality.CategoryModerate},
		},
		Metadata: forecast.Metadata{
			ProcessingTime: 1500 * time.Millisecond,
			DataPointsUsed: 25,
			APICallsMade:   1,
			ModelVersion:   "1.0",
			GeneratedAt:    now,
		},
	}
}
