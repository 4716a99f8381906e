package middleware

import (
	"math"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/httprate"

	"github.com/airsense/aqiforecast/internal/api/models"
)

// RateLimitConfig holds configuration for rate limiting.
type RateLimitConfig struct {
	// Requests per window
	RequestLimit int
	// Window duration
	WindowLength time.Duration
}

// Default rate limit configurations.
var (
	// ForecastRateLimit applies to forecast endpoints, which may call the
	// upstream history API (30 req/min).
	ForecastRateLimit = RateLimitConfig{
		RequestLimit: 30,
		WindowLength: time.Minute,
	}

	// LocationRateLimit applies per client and coordinate cell (10 req/min).
	LocationRateLimit = RateLimitConfig{
		RequestLimit: 10,
		WindowLength: time.Minute,
	}

	// StandardRateLimit applies to standard endpoints (100 req/min).
	StandardRateLimit = RateLimitConfig{
		RequestLimit: 100,
		WindowLength: time.Minute,
	}
)

// locationCellPrecision is the number of decimals coordinates are rounded
// to when keying per-location limits (about 1 km).
const locationCellPrecision = 2

// RateLimitByIP creates a rate limiter middleware using client IP address.
// Uses X-Forwarded-For header if present (extracted by chi's RealIP middleware).
func RateLimitByIP(cfg RateLimitConfig) func(http.Handler) http.Handler {
	return httprate.Limit(
		cfg.RequestLimit,
		cfg.WindowLength,
		httprate.WithKeyFuncs(httprate.KeyByRealIP),
		httprate.WithLimitHandler(limitExceeded(cfg.WindowLength)),
	)
}

// RateLimitByLocation limits each client per coordinate cell taken from the
// lat and lon query parameters. Requests without parseable coordinates fall
// back to IP-only keys.
func RateLimitByLocation(cfg RateLimitConfig) func(http.Handler) http.Handler {
	return httprate.Limit(
		cfg.RequestLimit,
		cfg.WindowLength,
		httprate.WithKeyFuncs(httprate.KeyByRealIP, keyByLocationCell),
		httprate.WithLimitHandler(limitExceeded(cfg.WindowLength)),
	)
}

func keyByLocationCell(r *http.Request) (string, error) {
	q := r.URL.Query()
	lat, latErr := strconv.ParseFloat(q.Get("lat"), 64)
	lon, lonErr := strconv.ParseFloat(q.Get("lon"), 64)
	if latErr != nil || lonErr != nil {
		return "cell:none", nil
	}
	return "cell:" + cellCoord(lat) + ":" + cellCoord(lon), nil
}

func cellCoord(v float64) string {
	scale := math.Pow(10, locationCellPrecision)
	return strconv.FormatFloat(math.Round(v*scale)/scale, 'f', locationCellPrecision, 64)
}

// limitExceeded writes a 429 problem. httprate does not expose the reset
// time, so Retry-After advertises a full window.
func limitExceeded(window time.Duration) http.HandlerFunc {
	retryAfter := strconv.Itoa(int(math.Ceil(window.Seconds())))
	return func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Retry-After", retryAfter)
		models.NewTooManyRequests(GetRequestID(r.Context()), "Rate limit exceeded. Please try again later.").
			WithInstance(r.URL.Path).
			Write(w)
	}
}
