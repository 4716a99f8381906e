package forecast

import (
	"bufio"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/rs/zerolog"
)

// Bundle errors.
var (
	ErrFeatureNamesMissing = errors.New("feature names file not found")
	ErrInvalidHorizon      = errors.New("horizon out of range")
)

const (
	// MinHorizon and MaxHorizon bound the forecast horizons in hours.
	MinHorizon = 1
	MaxHorizon = 12

	// FeatureNamesFile lists one feature name per line in model column order.
	FeatureNamesFile = "feature_names.txt"

	// DefaultModelVersion is reported when the bundle carries no version.
	DefaultModelVersion = "1.0"

	modelFileFormat = "aqi_rf_model_%dh.json"
)

// ModelFileName returns the artifact name of the model for horizon h.
func ModelFileName(h int) string {
	return fmt.Sprintf(modelFileFormat, h)
}

// BundleConfig holds configuration for loading a model bundle.
type BundleConfig struct {
	// Dir contains the model artifacts and the feature names file.
	Dir string

	// Version is reported with every forecast (default: "1.0").
	Version string

	// Logger for load operations.
	Logger zerolog.Logger
}

// ModelBundle holds one regressor per horizon and the schema they share.
// It is immutable after construction and safe for concurrent use.
type ModelBundle struct {
	models  map[int]Regressor
	schema  Schema
	version string
}

// LoadBundle loads the feature names and every available horizon model from
// cfg.Dir. A missing horizon is logged and skipped; a missing or invalid
// feature names file, or an unreadable model, is an error.
func LoadBundle(cfg BundleConfig) (*ModelBundle, error) {
	names, err := LoadFeatureNames(filepath.Join(cfg.Dir, FeatureNamesFile))
	if err != nil {
		return nil, err
	}

	schema, err := ParseSchema(names)
	if err != nil {
		return nil, fmt.Errorf("parsing feature names: %w", err)
	}

	models := make(map[int]Regressor, MaxHorizon)
	for h := MinHorizon; h <= MaxHorizon; h++ {
		path := filepath.Join(cfg.Dir, ModelFileName(h))

		f, err := os.Open(path)
		if errors.Is(err, fs.ErrNotExist) {
			cfg.Logger.Warn().Int("horizon", h).Str("path", path).Msg("model not found, horizon disabled")
			continue
		}
		if err != nil {
			return nil, fmt.Errorf("opening model %d: %w", h, err)
		}

		model, err := DecodeTreeEnsemble(f)
		f.Close()
		if err != nil {
			return nil, fmt.Errorf("loading model %d: %w", h, err)
		}
		models[h] = model
	}

	bundle, err := NewModelBundle(schema, models, cfg.Version)
	if err != nil {
		return nil, err
	}

	cfg.Logger.Info().
		Int("horizons", len(models)).
		Int("features", schema.Len()).
		Str("version", bundle.version).
		Msg("model bundle loaded")

	return bundle, nil
}

// NewModelBundle builds a bundle from already constructed regressors.
// Every regressor must accept exactly schema.Len() features.
func NewModelBundle(schema Schema, models map[int]Regressor, version string) (*ModelBundle, error) {
	if schema.Len() == 0 {
		return nil, ErrEmptySchema
	}
	if version == "" {
		version = DefaultModelVersion
	}

	copied := make(map[int]Regressor, len(models))
	for h, m := range models {
		if h < MinHorizon || h > MaxHorizon {
			return nil, fmt.Errorf("%w: %d", ErrInvalidHorizon, h)
		}
		if m.NumFeatures() != schema.Len() {
			return nil, fmt.Errorf("%w: horizon %d expects %d features, schema has %d",
				ErrFeatureMismatch, h, m.NumFeatures(), schema.Len())
		}
		copied[h] = m
	}

	return &ModelBundle{
		models:  copied,
		schema:  schema,
		version: version,
	}, nil
}

// Schema returns the feature schema shared by every model.
func (b *ModelBundle) Schema() Schema {
	return b.schema
}

// Version returns the model version.
func (b *ModelBundle) Version() string {
	return b.version
}

// Horizons returns the loaded horizons in ascending order.
func (b *ModelBundle) Horizons() []int {
	hs := make([]int, 0, len(b.models))
	for h := range b.models {
		hs = append(hs, h)
	}
	sort.Ints(hs)
	return hs
}

// Model returns the regressor for horizon h.
func (b *ModelBundle) Model(h int) (Regressor, bool) {
	m, ok := b.models[h]
	return m, ok
}

// Loaded reports whether at least one horizon is available.
func (b *ModelBundle) Loaded() bool {
	return b != nil && len(b.models) > 0
}

// LoadFeatureNames reads one feature name per line, ignoring blank lines.
func LoadFeatureNames(path string) ([]string, error) {
	f, err := os.Open(path)
	if errors.Is(err, fs.ErrNotExist) {
		return nil, fmt.Errorf("%w: %s", ErrFeatureNamesMissing, path)
	}
	if err != nil {
		return nil, fmt.Errorf("opening feature names: %w", err)
	}
	defer f.Close()

	var names []string
	scanner := bufio.NewScanner(f)
	for scanner.Scan() {
		if name := strings.TrimSpace(scanner.Text()); name != "" {
			names = append(names, name)
		}
	}
	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("reading feature names: %w", err)
	}
	return names, nil
}
