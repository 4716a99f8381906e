package config_test

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/airsense/aqiforecast/internal/config"
)

var configKeys = []string{
	"APP_ENV", "APP_PORT", "STORE_BACKEND",
	"OWM_API_KEY", "OWM_BASE_URL", "OWM_TIMEOUT",
	"MODELS_DIR", "FORECAST_TIMEZONE", "FORECAST_CACHE_TTL",
	"REDIS_ADDR", "REDIS_PASSWORD", "REDIS_DB", "REDIS_PREFIX",
	"OTEL_ENABLED", "OTEL_EXPORTER_OTLP_ENDPOINT", "OTEL_TRACES_SAMPLE_RATIO",
	"PUBSUB_PROJECT_ID", "PUBSUB_SUBSCRIPTION",
	"REQUIRE_TLS", "CORS_ALLOWED_ORIGINS",
	"WORKER_TARGETS", "WORKER_CONCURRENCY", "WORKER_INTERVAL", "WORKER_HEALTH_PORT",
}

func clearEnv(t *testing.T) {
	t.Helper()
	for _, key := range configKeys {
		t.Setenv(key, "")
	}
}

func TestFromEnv_Defaults(t *testing.T) {
	clearEnv(t)

	cfg := config.FromEnv()

	assert.Equal(t, "development", cfg.Env)
	assert.Equal(t, "8080", cfg.Port)
	assert.Equal(t, config.StorePostgres, cfg.Store)
	assert.True(t, cfg.UsePostgres())
	assert.Equal(t, "http://api.openweathermap.org/data/2.5", cfg.OpenWeatherMap.BaseURL)
	assert.Equal(t, 15*time.Second, cfg.OpenWeatherMap.Timeout)
	assert.Equal(t, "models", cfg.Forecast.ModelsDir)
	assert.Equal(t, "UTC", cfg.Forecast.Timezone)
	assert.Equal(t, 10*time.Minute, cfg.Forecast.CacheTTL)
	assert.Empty(t, cfg.Redis.Addr)
	assert.Equal(t, "aqiforecast", cfg.Redis.Prefix)
	assert.False(t, cfg.Telemetry.Enabled)
	assert.Equal(t, "aqi-backfill-jobs", cfg.PubSub.Subscription)
	assert.False(t, cfg.HTTP.RequireTLS)
	assert.Empty(t, cfg.HTTP.CORSOrigins)
	assert.Equal(t, time.Hour, cfg.Worker.Interval)
	assert.Equal(t, "8081", cfg.Worker.HealthPort)
	require.NoError(t, cfg.Validate())
}

func TestFromEnv_HTTPSettings(t *testing.T) {
	clearEnv(t)
	t.Setenv("REQUIRE_TLS", "true")
	t.Setenv("CORS_ALLOWED_ORIGINS", "https://a.example.com, ,https://b.example.com")

	cfg := config.FromEnv()

	assert.True(t, cfg.HTTP.RequireTLS)
	assert.Equal(t, []string{"https://a.example.com", "https://b.example.com"}, cfg.HTTP.CORSOrigins)
}

func TestBackfillConfig_DefaultTargets(t *testing.T) {
	clearEnv(t)

	bc, err := config.FromEnv().BackfillConfig()
	require.NoError(t, err)

	assert.Equal(t, 3, bc.Concurrency)
	_, ok := bc.Target("Delhi")
	assert.True(t, ok)
}

func TestBackfillConfig_CustomTargets(t *testing.T) {
	clearEnv(t)
	t.Setenv("WORKER_TARGETS", "Pune:18.5204:73.8567")
	t.Setenv("WORKER_CONCURRENCY", "5")

	cfg := config.FromEnv()
	require.NoError(t, cfg.Validate())

	bc, err := cfg.BackfillConfig()
	require.NoError(t, err)

	assert.Equal(t, 5, bc.Concurrency)
	assert.Equal(t, 1, bc.TotalPoints())
	_, ok := bc.Target("Delhi")
	assert.False(t, ok)
}

func TestValidate_RejectsBadWorkerTargets(t *testing.T) {
	clearEnv(t)
	t.Setenv("WORKER_TARGETS", "Pune:north:73.8")

	err := config.FromEnv().Validate()
	assert.ErrorContains(t, err, "Pune")
}

func TestFromEnv_Overrides(t *testing.T) {
	clearEnv(t)
	t.Setenv("STORE_BACKEND", "MEMORY")
	t.Setenv("OWM_API_KEY", "key")
	t.Setenv("OWM_TIMEOUT", "3s")
	t.Setenv("FORECAST_TIMEZONE", "Asia/Kolkata")
	t.Setenv("FORECAST_CACHE_TTL", "1m")
	t.Setenv("REDIS_ADDR", "localhost:6379")
	t.Setenv("REDIS_DB", "2")
	t.Setenv("OTEL_ENABLED", "true")

	cfg := config.FromEnv()
	require.NoError(t, cfg.Validate())

	assert.Equal(t, config.StoreMemory, cfg.Store)
	assert.False(t, cfg.UsePostgres())
	assert.Equal(t, "key", cfg.OpenWeatherMap.APIKey)
	assert.Equal(t, 3*time.Second, cfg.OpenWeatherMap.Timeout)
	assert.Equal(t, time.Minute, cfg.Forecast.CacheTTL)
	assert.True(t, cfg.Telemetry.Enabled)

	loc, err := cfg.Location()
	require.NoError(t, err)
	assert.Equal(t, "Asia/Kolkata", loc.String())

	redisCfg := cfg.RedisCacheConfig()
	assert.Equal(t, "localhost:6379", redisCfg.Addr)
	assert.Equal(t, 2, redisCfg.DB)
}

func TestValidate_RejectsUnknownStore(t *testing.T) {
	clearEnv(t)
	t.Setenv("STORE_BACKEND", "sqlite")

	err := config.FromEnv().Validate()
	assert.Error(t, err)
}

func TestValidate_RejectsUnknownTimezone(t *testing.T) {
	clearEnv(t)
	t.Setenv("FORECAST_TIMEZONE", "Mars/Olympus_Mons")

	err := config.FromEnv().Validate()
	assert.ErrorContains(t, err, "Mars/Olympus_Mons")
}

func TestLoad_ReadsDotEnv(t *testing.T) {
	clearEnv(t)
	// godotenv does not override variables that are already set, so
	// unset the key entirely for this test.
	require.NoError(t, os.Unsetenv("MODELS_DIR"))
	t.Cleanup(func() { _ = os.Unsetenv("MODELS_DIR") })

	path := filepath.Join(t.TempDir(), ".env")
	require.NoError(t, os.WriteFile(path, []byte("MODELS_DIR=/srv/models\n"), 0o600))

	cfg, err := config.Load(path)
	require.NoError(t, err)
	assert.Equal(t, "/srv/models", cfg.Forecast.ModelsDir)
}

func TestLoad_MissingFileIsIgnored(t *testing.T) {
	clearEnv(t)

	_, err := config.Load(filepath.Join(t.TempDir(), "missing.env"))
	assert.NoError(t, err)
}

func TestTelemetryConfig(t *testing.T) {
	clearEnv(t)
	t.Setenv("APP_ENV", "production")

	tc := config.FromEnv().TelemetryConfig("aqiforecast-api", "1.2.3")

	assert.Equal(t, "aqiforecast-api", tc.ServiceName)
	assert.Equal(t, "1.2.3", tc.ServiceVersion)
	assert.Equal(t, "production", tc.Environment)
	assert.Equal(t, "localhost:4317", tc.OTLPEndpoint)
}
