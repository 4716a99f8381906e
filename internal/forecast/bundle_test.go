package forecast_test

import (
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/airsense/aqiforecast/internal/forecast"
)

var bundleFeatures = []string{"components.pm2_5", "hour", "indian_aqi"}

func constantModelJSON(width int, value float64) string {
	return fmt.Sprintf(`{"n_features": %d, "trees": [{"nodes": [{"feature": -2, "threshold": -2, "left": -1, "right": -1, "value": %g}]}]}`,
		width, value)
}

func writeFile(t *testing.T, dir, name, content string) {
	t.Helper()
	require.NoError(t, os.WriteFile(filepath.Join(dir, name), []byte(content), 0o600))
}

func writeBundle(t *testing.T, horizons ...int) string {
	t.Helper()
	dir := t.TempDir()
	writeFile(t, dir, forecast.FeatureNamesFile, strings.Join(bundleFeatures, "\n")+"\n\n")
	for _, h := range horizons {
		writeFile(t, dir, forecast.ModelFileName(h), constantModelJSON(len(bundleFeatures), float64(h)))
	}
	return dir
}

func TestLoadBundle(t *testing.T) {
	dir := writeBundle(t, 1, 2, 3, 12)

	bundle, err := forecast.LoadBundle(forecast.BundleConfig{Dir: dir, Logger: zerolog.New(io.Discard)})
	require.NoError(t, err)

	assert.True(t, bundle.Loaded())
	assert.Equal(t, []int{1, 2, 3, 12}, bundle.Horizons())
	assert.Equal(t, bundleFeatures, bundle.Schema().Names())
	assert.Equal(t, forecast.DefaultModelVersion, bundle.Version())

	model, ok := bundle.Model(12)
	require.True(t, ok)
	got, err := model.Predict([]float64{1, 2, 3})
	require.NoError(t, err)
	assert.Equal(t, 12.0, got)

	_, ok = bundle.Model(4)
	assert.False(t, ok)
}

func TestLoadBundle_MissingHorizonsWarn(t *testing.T) {
	dir := writeBundle(t)
	var logs strings.Builder

	bundle, err := forecast.LoadBundle(forecast.BundleConfig{Dir: dir, Version: "2.1", Logger: zerolog.New(&logs)})
	require.NoError(t, err)

	assert.False(t, bundle.Loaded())
	assert.Empty(t, bundle.Horizons())
	assert.Equal(t, "2.1", bundle.Version())
	assert.Equal(t, forecast.MaxHorizon, strings.Count(logs.String(), "model not found"))
}

func TestLoadBundle_MissingFeatureNames(t *testing.T) {
	dir := t.TempDir()
	writeFile(t, dir, forecast.ModelFileName(1), constantModelJSON(3, 1))

	_, err := forecast.LoadBundle(forecast.BundleConfig{Dir: dir, Logger: zerolog.New(io.Discard)})
	assert.ErrorIs(t, err, forecast.ErrFeatureNamesMissing)
}

func TestLoadBundle_UnknownFeatureName(t *testing.T) {
	dir := t.TempDir()
	writeFile(t, dir, forecast.FeatureNamesFile, "hour\ntemperature\n")

	_, err := forecast.LoadBundle(forecast.BundleConfig{Dir: dir, Logger: zerolog.New(io.Discard)})
	assert.ErrorIs(t, err, forecast.ErrUnknownFeature)
}

func TestLoadBundle_WidthMismatch(t *testing.T) {
	dir := writeBundle(t)
	writeFile(t, dir, forecast.ModelFileName(2), constantModelJSON(5, 1))

	_, err := forecast.LoadBundle(forecast.BundleConfig{Dir: dir, Logger: zerolog.New(io.Discard)})
	assert.ErrorIs(t, err, forecast.ErrFeatureMismatch)
}

func TestLoadBundle_CorruptModel(t *testing.T) {
	dir := writeBundle(t)
	writeFile(t, dir, forecast.ModelFileName(7), "not json")

	_, err := forecast.LoadBundle(forecast.BundleConfig{Dir: dir, Logger: zerolog.New(io.Discard)})
	assert.ErrorIs(t, err, forecast.ErrInvalidModel)
}

func TestNewModelBundle_InvalidHorizon(t *testing.T) {
	schema, err := forecast.ParseSchema(bundleFeatures)
	require.NoError(t, err)

	_, err = forecast.NewModelBundle(schema, map[int]forecast.Regressor{
		13: &constRegressor{width: 3},
	}, "")
	assert.ErrorIs(t, err, forecast.ErrInvalidHorizon)
}
