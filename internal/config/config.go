// Package config loads service configuration from the environment.
package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/joho/godotenv"

	"github.com/airsense/aqiforecast/internal/airquality/openweathermap"
	"github.com/airsense/aqiforecast/internal/cache"
	"github.com/airsense/aqiforecast/internal/database"
	"github.com/airsense/aqiforecast/internal/forecast"
	"github.com/airsense/aqiforecast/internal/telemetry"
	"github.com/airsense/aqiforecast/internal/worker"
)

// Store backends.
const (
	StorePostgres = "postgres"
	StoreMemory   = "memory"
)

// Config aggregates the settings for the API and worker binaries.
type Config struct {
	Env  string `validate:"required"`
	Port string `validate:"required,numeric"`

	// Store selects the hourly history backend.
	Store    string `validate:"oneof=postgres memory"`
	Database database.Config

	HTTP           HTTPConfig
	OpenWeatherMap OpenWeatherMapConfig
	Forecast       ForecastConfig
	Redis          RedisConfig
	Telemetry      telemetry.Config
	PubSub         PubSubConfig
	Worker         WorkerConfig
}

// HTTPConfig configures the API transport.
type HTTPConfig struct {
	// RequireTLS rejects requests forwarded over plain HTTP.
	RequireTLS bool
	// CORSOrigins lists allowed browser origins; empty allows any.
	CORSOrigins []string
}

// OpenWeatherMapConfig configures the history fetcher.
type OpenWeatherMapConfig struct {
	APIKey  string
	BaseURL string        `validate:"required,url"`
	Timeout time.Duration `validate:"gt=0"`
}

// ForecastConfig configures the model bundle and the orchestrator.
type ForecastConfig struct {
	ModelsDir string `validate:"required"`
	Timezone  string `validate:"required"`
	CacheTTL  time.Duration
}

// RedisConfig configures the optional response cache. An empty Addr
// selects the in-process cache.
type RedisConfig struct {
	Addr     string
	Password string
	DB       int `validate:"gte=0"`
	Prefix   string
}

// PubSubConfig configures the worker subscription.
type PubSubConfig struct {
	ProjectID    string
	Subscription string
}

// WorkerConfig configures the history backfill worker.
type WorkerConfig struct {
	// Targets overrides the default cities, as "Name:lat:lon;...".
	Targets     string
	Concurrency int `validate:"gte=0"`
	// Interval runs a full backfill periodically when Pub/Sub is not
	// configured. Zero disables the timer.
	Interval time.Duration `validate:"gte=0"`
	// HealthPort serves the worker liveness probe.
	HealthPort string `validate:"required,numeric"`
}

var validate = validator.New()

// Load reads an optional dotenv file and builds a Config from the
// environment. A missing file is not an error.
func Load(envFile string) (Config, error) {
	if envFile != "" {
		if err := godotenv.Load(envFile); err != nil && !errors.Is(err, fs.ErrNotExist) {
			return Config{}, fmt.Errorf("load %s: %w", envFile, err)
		}
	}

	cfg := FromEnv()
	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

// FromEnv builds a Config from environment variables with defaults.
func FromEnv() Config {
	owmTimeout, _ := time.ParseDuration(getEnvOrDefault("OWM_TIMEOUT", openweathermap.DefaultTimeout.String()))
	cacheTTL, _ := time.ParseDuration(getEnvOrDefault("FORECAST_CACHE_TTL", forecast.DefaultCacheTTL.String()))
	redisDB, _ := strconv.Atoi(getEnvOrDefault("REDIS_DB", "0"))
	sampleRatio, _ := strconv.ParseFloat(getEnvOrDefault("OTEL_TRACES_SAMPLE_RATIO", "1"), 64)
	requireTLS, _ := strconv.ParseBool(getEnvOrDefault("REQUIRE_TLS", "false"))
	workerConcurrency, _ := strconv.Atoi(getEnvOrDefault("WORKER_CONCURRENCY", "3"))
	workerInterval, _ := time.ParseDuration(getEnvOrDefault("WORKER_INTERVAL", "1h"))

	return Config{
		Env:      getEnvOrDefault("APP_ENV", "development"),
		Port:     getEnvOrDefault("APP_PORT", "8080"),
		Store:    strings.ToLower(getEnvOrDefault("STORE_BACKEND", StorePostgres)),
		Database: database.ConfigFromEnv(),
		HTTP: HTTPConfig{
			RequireTLS:  requireTLS,
			CORSOrigins: splitList(os.Getenv("CORS_ALLOWED_ORIGINS")),
		},
		OpenWeatherMap: OpenWeatherMapConfig{
			APIKey:  os.Getenv("OWM_API_KEY"),
			BaseURL: getEnvOrDefault("OWM_BASE_URL", openweathermap.DefaultBaseURL),
			Timeout: owmTimeout,
		},
		Forecast: ForecastConfig{
			ModelsDir: getEnvOrDefault("MODELS_DIR", "models"),
			Timezone:  getEnvOrDefault("FORECAST_TIMEZONE", "UTC"),
			CacheTTL:  cacheTTL,
		},
		Redis: RedisConfig{
			Addr:     os.Getenv("REDIS_ADDR"),
			Password: os.Getenv("REDIS_PASSWORD"),
			DB:       redisDB,
			Prefix:   getEnvOrDefault("REDIS_PREFIX", "aqiforecast"),
		},
		Telemetry: telemetry.Config{
			OTLPEndpoint: getEnvOrDefault("OTEL_EXPORTER_OTLP_ENDPOINT", telemetry.DefaultOTLPEndpoint),
			Enabled:      os.Getenv("OTEL_ENABLED") == "true",
			SampleRatio:  sampleRatio,
		},
		PubSub: PubSubConfig{
			ProjectID:    os.Getenv("PUBSUB_PROJECT_ID"),
			Subscription: getEnvOrDefault("PUBSUB_SUBSCRIPTION", "aqi-backfill-jobs"),
		},
		Worker: WorkerConfig{
			Targets:     os.Getenv("WORKER_TARGETS"),
			Concurrency: workerConcurrency,
			Interval:    workerInterval,
			HealthPort:  getEnvOrDefault("WORKER_HEALTH_PORT", "8081"),
		},
	}
}

// Validate checks field constraints and that the forecast timezone exists.
func (c Config) Validate() error {
	if err := validate.Struct(c); err != nil {
		return fmt.Errorf("invalid config: %w", err)
	}
	if _, err := c.Location(); err != nil {
		return fmt.Errorf("invalid config: %w", err)
	}
	if _, err := worker.ParseTargets(c.Worker.Targets); err != nil {
		return fmt.Errorf("invalid config: %w", err)
	}
	return nil
}

// Location resolves the timezone used for temporal features.
func (c Config) Location() (*time.Location, error) {
	loc, err := time.LoadLocation(c.Forecast.Timezone)
	if err != nil {
		return nil, fmt.Errorf("load timezone %q: %w", c.Forecast.Timezone, err)
	}
	return loc, nil
}

// UsePostgres reports whether the Postgres store is selected.
func (c Config) UsePostgres() bool {
	return c.Store == StorePostgres
}

// RedisCacheConfig converts the Redis settings for cache.NewRedisCache.
func (c Config) RedisCacheConfig() cache.RedisConfig {
	return cache.RedisConfig{
		Addr:     c.Redis.Addr,
		Password: c.Redis.Password,
		DB:       c.Redis.DB,
		Prefix:   c.Redis.Prefix,
	}
}

// BackfillConfig returns the worker job configuration. Without
// WORKER_TARGETS the default cities are used.
func (c Config) BackfillConfig() (worker.BackfillConfig, error) {
	cfg := worker.DefaultBackfillConfig()
	if c.Worker.Concurrency > 0 {
		cfg.Concurrency = c.Worker.Concurrency
	}
	if c.Worker.Targets == "" {
		return cfg, nil
	}
	targets, err := worker.ParseTargets(c.Worker.Targets)
	if err != nil {
		return worker.BackfillConfig{}, err
	}
	if len(targets) > 0 {
		cfg.Targets = targets
	}
	return cfg, nil
}

// TelemetryConfig returns the telemetry settings for a named binary.
func (c Config) TelemetryConfig(serviceName, version string) telemetry.Config {
	tc := c.Telemetry
	tc.ServiceName = serviceName
	tc.ServiceVersion = version
	tc.Environment = c.Env
	return tc
}

// splitList splits a comma separated value, dropping blanks.
func splitList(s string) []string {
	var out []string
	for _, part := range strings.Split(s, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}

func getEnvOrDefault(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}
