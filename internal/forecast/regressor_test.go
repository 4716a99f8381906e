package forecast_test

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/airsense/aqiforecast/internal/forecast"
)

// Two stumps on feature 0 and feature 1.
const forestJSON = `{
	"n_features": 2,
	"trees": [
		{"nodes": [
			{"feature": 0, "threshold": 5, "left": 1, "right": 2, "value": 0},
			{"feature": -2, "threshold": -2, "left": -1, "right": -1, "value": 10},
			{"feature": -2, "threshold": -2, "left": -1, "right": -1, "value": 20}
		]},
		{"nodes": [
			{"feature": 1, "threshold": 0.5, "left": 1, "right": 2, "value": 0},
			{"feature": -2, "threshold": -2, "left": -1, "right": -1, "value": 100},
			{"feature": -2, "threshold": -2, "left": -1, "right": -1, "value": 200}
		]}
	]
}`

func TestTreeEnsemble_Predict(t *testing.T) {
	model, err := forecast.DecodeTreeEnsemble(strings.NewReader(forestJSON))
	require.NoError(t, err)
	assert.Equal(t, 2, model.NumFeatures())

	tests := []struct {
		name string
		x    []float64
		want float64
	}{
		{"both left on equality", []float64{5, 0.5}, 55},
		{"first right", []float64{5.01, 0}, 60},
		{"both right", []float64{9, 1}, 110},
		{"second right", []float64{-3, 2}, 105},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := model.Predict(tt.x)
			require.NoError(t, err)
			assert.InDelta(t, tt.want, got, 1e-9)
		})
	}
}

func TestTreeEnsemble_FeatureMismatch(t *testing.T) {
	model, err := forecast.DecodeTreeEnsemble(strings.NewReader(forestJSON))
	require.NoError(t, err)

	_, err = model.Predict([]float64{1, 2, 3})
	assert.ErrorIs(t, err, forecast.ErrFeatureMismatch)
}

func TestDecodeTreeEnsemble_Invalid(t *testing.T) {
	tests := []struct {
		name string
		body string
	}{
		{"malformed", `{"n_features": 2, "trees": [`},
		{"no features", `{"n_features": 0, "trees": [{"nodes": [{"left": -1, "right": -1, "value": 1}]}]}`},
		{"no trees", `{"n_features": 1, "trees": []}`},
		{"empty tree", `{"n_features": 1, "trees": [{"nodes": []}]}`},
		{"feature out of range", `{"n_features": 1, "trees": [{"nodes": [
			{"feature": 3, "threshold": 1, "left": 1, "right": 2},
			{"left": -1, "right": -1, "value": 1},
			{"left": -1, "right": -1, "value": 2}]}]}`},
		{"backward child", `{"n_features": 1, "trees": [{"nodes": [
			{"feature": 0, "threshold": 1, "left": 0, "right": 1},
			{"left": -1, "right": -1, "value": 1}]}]}`},
		{"child out of range", `{"n_features": 1, "trees": [{"nodes": [
			{"feature": 0, "threshold": 1, "left": 1, "right": 7},
			{"left": -1, "right": -1, "value": 1}]}]}`},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := forecast.DecodeTreeEnsemble(strings.NewReader(tt.body))
			assert.ErrorIs(t, err, forecast.ErrInvalidModel)
		})
	}
}
