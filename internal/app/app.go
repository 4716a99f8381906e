// Package app assembles the forecast pipeline shared by the API and worker
// binaries.
package app

import (
	"context"
	"fmt"

	"github.com/rs/zerolog"

	"github.com/airsense/aqiforecast/internal/airquality"
	"github.com/airsense/aqiforecast/internal/airquality/openweathermap"
	"github.com/airsense/aqiforecast/internal/api/handler"
	"github.com/airsense/aqiforecast/internal/cache"
	"github.com/airsense/aqiforecast/internal/config"
	"github.com/airsense/aqiforecast/internal/database"
	"github.com/airsense/aqiforecast/internal/forecast"
	"github.com/airsense/aqiforecast/internal/provider/resilience"
)

// Components are the long-lived dependencies of a binary.
type Components struct {
	Service  *forecast.Service
	Bundle   *forecast.ModelBundle
	Registry *resilience.Registry

	// Checks probe the configured backing stores.
	Checks []handler.DependencyCheck

	closers []func()
}

// Close releases database and cache connections in reverse order.
func (c *Components) Close() {
	for i := len(c.closers) - 1; i >= 0; i-- {
		c.closers[i]()
	}
}

// Build connects the store and cache, loads the models and wires the
// forecast service. The caller must Close the result.
func Build(ctx context.Context, cfg config.Config, logger zerolog.Logger) (*Components, error) {
	c := &Components{Registry: resilience.NewRegistry()}

	store, err := c.openStore(ctx, cfg, logger)
	if err != nil {
		c.Close()
		return nil, err
	}

	resultCache := c.openCache(ctx, cfg, logger)

	loc, err := cfg.Location()
	if err != nil {
		c.Close()
		return nil, err
	}

	bundle, err := forecast.LoadBundle(forecast.BundleConfig{
		Dir:    cfg.Forecast.ModelsDir,
		Logger: logger,
	})
	if err != nil {
		c.Close()
		return nil, fmt.Errorf("load models: %w", err)
	}
	c.Bundle = bundle
	logger.Info().
		Str("dir", cfg.Forecast.ModelsDir).
		Str("model_version", bundle.Version()).
		Ints("horizons", bundle.Horizons()).
		Msg("models loaded")

	if cfg.OpenWeatherMap.APIKey == "" {
		logger.Warn().Msg("OWM_API_KEY not set - history backfill will fail")
	}
	fetcher := openweathermap.NewClient(openweathermap.ClientConfig{
		APIKey:   cfg.OpenWeatherMap.APIKey,
		BaseURL:  cfg.OpenWeatherMap.BaseURL,
		Timeout:  cfg.OpenWeatherMap.Timeout,
		Registry: c.Registry,
		Logger:   logger,
	})

	metrics, err := forecast.NewMetrics()
	if err != nil {
		c.Close()
		return nil, fmt.Errorf("forecast metrics: %w", err)
	}

	predictor := forecast.NewPredictor(forecast.PredictorConfig{
		Bundle:   bundle,
		Location: loc,
		Logger:   logger,
	})

	c.Service = forecast.NewService(forecast.ServiceConfig{
		Store:     store,
		Fetcher:   fetcher,
		Predictor: predictor,
		Cache:     resultCache,
		CacheTTL:  cfg.Forecast.CacheTTL,
		Metrics:   metrics,
		Logger:    logger,
	})

	return c, nil
}

func (c *Components) openStore(ctx context.Context, cfg config.Config, logger zerolog.Logger) (airquality.Store, error) {
	if !cfg.UsePostgres() {
		logger.Warn().Msg("using in-memory history store - data is lost on restart")
		return airquality.NewInMemoryStore(), nil
	}

	pool, err := database.Connect(ctx, cfg.Database)
	if err != nil {
		return nil, fmt.Errorf("connect database: %w", err)
	}
	c.closers = append(c.closers, pool.Close)
	logger.Info().
		Str("host", cfg.Database.Host).
		Int("port", cfg.Database.Port).
		Str("database", cfg.Database.Database).
		Msg("database connected")

	if cfg.Database.AutoMigrate {
		if err := database.Migrate(pool, logger); err != nil {
			return nil, err
		}
	}

	c.Checks = append(c.Checks, handler.DependencyCheck{
		Name:  "postgres",
		Check: pool.Ping,
	})

	return airquality.NewPostgresStore(pool), nil
}

// openCache prefers Redis and falls back to the in-process cache when it is
// unset or unreachable.
func (c *Components) openCache(ctx context.Context, cfg config.Config, logger zerolog.Logger) forecast.ResultCache {
	if cfg.Redis.Addr == "" {
		return c.memoryCache()
	}

	rc, err := cache.NewRedisCache(ctx, cfg.RedisCacheConfig())
	if err != nil {
		logger.Warn().Err(err).Str("addr", cfg.Redis.Addr).Msg("redis unavailable, using in-memory cache")
		return c.memoryCache()
	}
	c.closers = append(c.closers, func() { _ = rc.Close() })
	c.Checks = append(c.Checks, handler.DependencyCheck{Name: "redis", Check: rc.Ping})
	logger.Info().Str("addr", cfg.Redis.Addr).Msg("redis cache connected")

	return rc
}

func (c *Components) memoryCache() *cache.MemoryCache {
	mc := cache.NewMemoryCache()
	c.closers = append(c.closers, func() { _ = mc.Close() })
	return mc
}
