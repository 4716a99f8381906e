package forecast

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strconv"
	"time"

	"github.com/rs/zerolog"
	"golang.org/x/sync/singleflight"

	"github.com/airsense/aqiforecast/internal/airquality"
)

const (
	// HistoryHours is how far back the window reaches before the current hour.
	HistoryHours = 24

	// DefaultCacheTTL bounds how long a generated forecast is reused.
	DefaultCacheTTL = 10 * time.Minute
)

// HistoryFetcher retrieves hourly records from an upstream provider.
// Failures are reported as an empty slice.
type HistoryFetcher interface {
	FetchHistory(ctx context.Context, lat, lon float64, start, end time.Time) []airquality.HourlyRecord
}

// ResultCache stores serialized forecasts. A miss returns ok == false.
type ResultCache interface {
	GetBytes(ctx context.Context, key string) ([]byte, bool, error)
	SetBytes(ctx context.Context, key string, value []byte, ttl time.Duration) error
}

// ServiceConfig holds configuration for the forecast service.
type ServiceConfig struct {
	// Store persists hourly history (required).
	Store airquality.Store

	// Fetcher backfills missing hours (required).
	Fetcher HistoryFetcher

	// Predictor runs the horizon models (required).
	Predictor *Predictor

	// Cache reuses forecasts within the same hour (optional).
	Cache ResultCache

	// CacheTTL is how long cached forecasts live (default: 10 minutes).
	CacheTTL time.Duration

	// Metrics records pipeline instruments (optional).
	Metrics *Metrics

	// Clock returns the current time (default: time.Now).
	Clock func() time.Time

	// Logger for service operations.
	Logger zerolog.Logger
}

// Service assembles the history window for a coordinate and forecasts from it.
type Service struct {
	store     airquality.Store
	fetcher   HistoryFetcher
	predictor *Predictor
	cache     ResultCache
	cacheTTL  time.Duration
	metrics   *Metrics
	clock     func() time.Time
	logger    zerolog.Logger

	backfills singleflight.Group
}

// NewService creates a new forecast service.
func NewService(cfg ServiceConfig) *Service {
	cacheTTL := cfg.CacheTTL
	if cacheTTL == 0 {
		cacheTTL = DefaultCacheTTL
	}

	clock := cfg.Clock
	if clock == nil {
		clock = time.Now
	}

	return &Service{
		store:     cfg.Store,
		fetcher:   cfg.Fetcher,
		predictor: cfg.Predictor,
		cache:     cfg.Cache,
		cacheTTL:  cacheTTL,
		metrics:   cfg.Metrics,
		clock:     clock,
		logger:    cfg.Logger,
	}
}

// Bundle returns the model bundle the service predicts with.
func (s *Service) Bundle() *ModelBundle {
	return s.predictor.Bundle()
}

// BackfillResult reports the outcome of filling a coordinate's window.
type BackfillResult struct {
	MissingHours   int
	FetchedRecords int
	APICalls       int
}

// GetPrediction returns the last observed hours and the horizon forecasts
// for a coordinate. Every failure is a *PredictionError.
func (s *Service) GetPrediction(ctx context.Context, req Request) (*Prediction, error) {
	began := time.Now()

	if err := req.Validate(); err != nil {
		s.metrics.recordRequest(ctx, string(CodeInvalidRequest), false, time.Since(began))
		return nil, err
	}

	now := airquality.TruncateHour(s.clock())
	key := cacheKey(req.Latitude, req.Longitude, now)

	if cached := s.cached(ctx, key); cached != nil {
		// Per-request fields are never taken from the caller that filled the
		// entry.
		cached.Location.Name = req.LocationName
		cached.Current = cached.Current.withOverride(req.CurrentAQIOverride)
		cached.Metadata.APICallsMade = 0
		cached.Metadata.ProcessingTime = time.Since(began)
		s.metrics.recordRequest(ctx, "ok", true, time.Since(began))
		return cached, nil
	}

	pred, err := s.generate(ctx, req, now, began)
	if err != nil {
		var pe *PredictionError
		if !errors.As(err, &pe) {
			pe = predictionFailed(err)
		}
		s.metrics.recordRequest(ctx, string(pe.Code), false, time.Since(began))
		return nil, pe
	}

	s.storeInCache(ctx, key, pred)

	pred.Current = pred.Current.withOverride(req.CurrentAQIOverride)
	s.metrics.recordRequest(ctx, "ok", false, time.Since(began))
	return pred, nil
}

func (s *Service) generate(ctx context.Context, req Request, now, began time.Time) (*Prediction, error) {
	lat, lon := req.Latitude, req.Longitude
	windowStart := now.Add(-HistoryHours * time.Hour)

	log := s.logger.With().Float64("lat", lat).Float64("lon", lon).Logger()

	window := s.readWindow(ctx, lat, lon, windowStart)

	fill, err := s.fillGaps(ctx, lat, lon, req.LocationName, windowStart, now)
	if err != nil {
		return nil, err
	}
	if fill.FetchedRecords > 0 {
		window = s.readWindow(ctx, lat, lon, windowStart)
	}

	if len(window) < MinWindowRecords {
		log.Warn().Int("records", len(window)).Msg("not enough history to forecast")
		return nil, insufficientData(len(window))
	}

	points, err := s.predictor.Predict(ctx, window)
	if err != nil {
		log.Error().Err(err).Msg("prediction failed")
		return nil, predictionFailed(err)
	}

	historyFrom := len(window) - HistoryPoints
	if historyFrom < 0 {
		historyFrom = 0
	}
	historical := make([]Observation, 0, HistoryPoints)
	for i := historyFrom; i < len(window); i++ {
		historical = append(historical, observationOf(&window[i]))
	}

	pred := &Prediction{
		Location: Location{
			Name:      req.LocationName,
			Latitude:  lat,
			Longitude: lon,
		},
		Current:    currentOf(&window[len(window)-1], nil),
		Historical: historical,
		Forecast:   points,
		Metadata: Metadata{
			ProcessingTime: time.Since(began),
			DataPointsUsed: len(window),
			APICallsMade:   fill.APICalls,
			ModelVersion:   s.predictor.Bundle().Version(),
			GeneratedAt:    s.clock().UTC(),
		},
	}

	log.Info().
		Int("records", len(window)).
		Int("missing_hours", fill.MissingHours).
		Int("points", len(points)).
		Dur("elapsed", pred.Metadata.ProcessingTime).
		Msg("forecast generated")

	return pred, nil
}

// Backfill fills any gaps in the current history window of a coordinate
// without forecasting.
func (s *Service) Backfill(ctx context.Context, lat, lon float64, locationName string) (BackfillResult, error) {
	now := airquality.TruncateHour(s.clock())
	return s.fillGaps(ctx, lat, lon, locationName, now.Add(-HistoryHours*time.Hour), now)
}

// fillGaps fetches and stores the missing hours of [windowStart, now].
// Concurrent fills of the same coordinate and window share one upstream call.
func (s *Service) fillGaps(ctx context.Context, lat, lon float64, locationName string, windowStart, now time.Time) (BackfillResult, error) {
	end := now.Add(time.Hour)

	missing, err := s.store.FindMissingHours(ctx, lat, lon, windowStart, end)
	if err != nil {
		s.logger.Error().Err(err).Float64("lat", lat).Float64("lon", lon).Msg("finding missing hours failed, assuming all missing")
		missing = airquality.HourRange(windowStart, end)
	}
	if len(missing) == 0 {
		return BackfillResult{}, nil
	}

	fetchStart := missing[0]
	fetchEnd := missing[len(missing)-1].Add(time.Hour)
	key := fmt.Sprintf("%s:%s:%d:%d", formatCoord(lat), formatCoord(lon), fetchStart.Unix(), fetchEnd.Unix())

	// The flight is keyed on coordinate and range only, so a concurrent
	// caller with a different location name joins it and its name is not
	// stored. The upsert keeps an existing name, and names only label rows.
	v, err, _ := s.backfills.Do(key, func() (interface{}, error) {
		// Shared work must outlive any single caller's cancellation.
		fctx := context.WithoutCancel(ctx)

		records := s.fetcher.FetchHistory(fctx, lat, lon, fetchStart, fetchEnd)
		if len(records) == 0 {
			return 0, nil
		}

		if locationName != "" {
			for i := range records {
				name := locationName
				records[i].LocationName = &name
			}
		}

		if ok, err := s.store.UpsertRecords(fctx, records); !ok {
			s.logger.Error().Err(err).Int("records", len(records)).Msg("storing fetched history failed")
			return 0, nil
		}

		s.metrics.recordBackfill(fctx, len(records))
		return len(records), nil
	})
	if err != nil {
		return BackfillResult{}, err
	}

	s.logger.Info().
		Float64("lat", lat).
		Float64("lon", lon).
		Int("missing_hours", len(missing)).
		Int("records", v.(int)).
		Msg("history backfilled")

	return BackfillResult{
		MissingHours:   len(missing),
		FetchedRecords: v.(int),
		APICalls:       1,
	}, nil
}

// readWindow returns the stored window, degrading to empty on a read failure.
func (s *Service) readWindow(ctx context.Context, lat, lon float64, from time.Time) []airquality.HourlyRecord {
	window, err := s.store.ReadWindow(ctx, lat, lon, from, HistoryHours+1)
	if err != nil {
		s.logger.Error().Err(err).Float64("lat", lat).Float64("lon", lon).Msg("reading history window failed")
		return nil
	}
	return window
}

func (s *Service) cached(ctx context.Context, key string) *Prediction {
	if s.cache == nil {
		return nil
	}

	b, ok, err := s.cache.GetBytes(ctx, key)
	if err != nil {
		s.logger.Warn().Err(err).Str("key", key).Msg("forecast cache read failed")
		return nil
	}
	if !ok {
		return nil
	}

	var pred Prediction
	if err := json.Unmarshal(b, &pred); err != nil {
		s.logger.Warn().Err(err).Str("key", key).Msg("discarding undecodable cached forecast")
		return nil
	}
	return &pred
}

func (s *Service) storeInCache(ctx context.Context, key string, pred *Prediction) {
	if s.cache == nil {
		return
	}

	b, err := json.Marshal(pred)
	if err != nil {
		s.logger.Warn().Err(err).Msg("encoding forecast for cache failed")
		return
	}
	if err := s.cache.SetBytes(ctx, key, b, s.cacheTTL); err != nil {
		s.logger.Warn().Err(err).Str("key", key).Msg("forecast cache write failed")
	}
}

func cacheKey(lat, lon float64, hour time.Time) string {
	return fmt.Sprintf("forecast:%s:%s:%d", formatCoord(lat), formatCoord(lon), hour.Unix())
}

func formatCoord(v float64) string {
	return strconv.FormatFloat(v, 'f', -1, 64)
}
