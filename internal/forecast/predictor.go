package forecast

import (
	"context"
	"fmt"
	"math"
	"time"

	"github.com/rs/zerolog"
	"golang.org/x/sync/errgroup"

	"github.com/airsense/aqiforecast/internal/airquality"
)

// Point is the forecast for one horizon.
type Point struct {
	HoursAhead int
	Timestamp  time.Time
	AQI        float64
	Category   airquality.Category
}

// PredictorConfig holds configuration for the predictor.
type PredictorConfig struct {
	// Bundle supplies the regressors and feature schema (required).
	Bundle *ModelBundle

	// Location is the zone calendar features are computed in (default: UTC).
	Location *time.Location

	// Logger for predictor operations.
	Logger zerolog.Logger
}

// Predictor runs every loaded horizon model on a history window.
type Predictor struct {
	bundle *ModelBundle
	engine *FeatureEngine
	logger zerolog.Logger
}

// NewPredictor creates a new predictor.
func NewPredictor(cfg PredictorConfig) *Predictor {
	return &Predictor{
		bundle: cfg.Bundle,
		engine: NewFeatureEngine(EngineConfig{
			Schema:   cfg.Bundle.Schema(),
			Location: cfg.Location,
			Logger:   cfg.Logger,
		}),
		logger: cfg.Logger,
	}
}

// Bundle returns the model bundle in use.
func (p *Predictor) Bundle() *ModelBundle {
	return p.bundle
}

// Predict forecasts every loaded horizon from the latest hour of window.
// Points are returned in ascending horizon order; missing horizons are
// simply absent.
func (p *Predictor) Predict(ctx context.Context, window []airquality.HourlyRecord) ([]Point, error) {
	vec, err := p.engine.Build(window)
	if err != nil {
		return nil, fmt.Errorf("building features: %w", err)
	}

	rows := [][]float64{vec.Values}
	FillMissing(rows)
	row := rows[0]

	horizons := p.bundle.Horizons()
	preds := make([]float64, len(horizons))

	g, gctx := errgroup.WithContext(ctx)
	for i, h := range horizons {
		model, _ := p.bundle.Model(h)
		g.Go(func() error {
			if err := gctx.Err(); err != nil {
				return err
			}
			v, err := model.Predict(row)
			if err != nil {
				return fmt.Errorf("horizon %d: %w", h, err)
			}
			preds[i] = v
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}

	points := make([]Point, len(horizons))
	for i, h := range horizons {
		aqi := roundTo(preds[i], 2)
		points[i] = Point{
			HoursAhead: h,
			Timestamp:  vec.Timestamp.Add(hours(h)),
			AQI:        aqi,
			Category:   airquality.CategoryOf(preds[i]),
		}
	}

	p.logger.Debug().Int("points", len(points)).Time("base", vec.Timestamp).Msg("forecast generated")
	return points, nil
}

// FillMissing replaces NaN cells column by column: first with the next
// non-NaN value below (backward fill), then with the previous one above
// (forward fill), and finally with zero.
func FillMissing(rows [][]float64) {
	if len(rows) == 0 {
		return
	}

	for col := range rows[0] {
		next := math.NaN()
		for r := len(rows) - 1; r >= 0; r-- {
			if math.IsNaN(rows[r][col]) {
				rows[r][col] = next
			} else {
				next = rows[r][col]
			}
		}

		prev := math.NaN()
		for r := range rows {
			if math.IsNaN(rows[r][col]) {
				rows[r][col] = prev
			} else {
				prev = rows[r][col]
			}
		}

		for r := range rows {
			if math.IsNaN(rows[r][col]) {
				rows[r][col] = 0
			}
		}
	}
}

func roundTo(v float64, places int) float64 {
	scale := math.Pow(10, float64(places))
	return math.Round(v*scale) / scale
}
