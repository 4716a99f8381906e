package middleware_test

import (
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"

	"github.com/airsense/aqiforecast/internal/api/middleware"
)

// limited wraps an OK handler with limiter.
func limited(limiter func(http.Handler) http.Handler) http.Handler {
	return limiter(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusOK)
	}))
}

func hit(h http.Handler, remoteAddr, target string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(http.MethodGet, target, http.NoBody)
	req.RemoteAddr = remoteAddr
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	return rec
}

func TestRateLimitByIP(t *testing.T) {
	h := limited(middleware.RateLimitByIP(middleware.RateLimitConfig{RequestLimit: 3, WindowLength: time.Minute}))

	for i := 0; i < 3; i++ {
		assert.Equal(t, http.StatusOK, hit(h, "10.0.0.1:1234", "/v1/aqi/index").Code, "request %d", i+1)
	}

	rec := hit(h, "10.0.0.1:1234", "/v1/aqi/index")
	assert.Equal(t, http.StatusTooManyRequests, rec.Code)
	assert.Equal(t, "60", rec.Header().Get("Retry-After"))

	// Other clients keep their own budget.
	assert.Equal(t, http.StatusOK, hit(h, "10.0.0.2:1234", "/v1/aqi/index").Code)
}

func TestRateLimit_RetryAfterFollowsWindow(t *testing.T) {
	h := limited(middleware.RateLimitByIP(middleware.RateLimitConfig{RequestLimit: 1, WindowLength: 90 * time.Second}))

	hit(h, "10.0.1.1:1234", "/v1/forecast")
	rec := hit(h, "10.0.1.1:1234", "/v1/forecast")

	assert.Equal(t, http.StatusTooManyRequests, rec.Code)
	assert.Equal(t, "90", rec.Header().Get("Retry-After"))
}

func TestRateLimitByLocation_SeparatesCoordinateCells(t *testing.T) {
	h := limited(middleware.RateLimitByLocation(middleware.RateLimitConfig{RequestLimit: 2, WindowLength: time.Minute}))
	const client = "198.51.100.7:12345"

	// Nearby coordinates share one cell.
	assert.Equal(t, http.StatusOK, hit(h, client, "/v1/forecast?lat=28.6139&lon=77.2090").Code)
	assert.Equal(t, http.StatusOK, hit(h, client, "/v1/forecast?lat=28.6141&lon=77.2088").Code)
	assert.Equal(t, http.StatusTooManyRequests, hit(h, client, "/v1/forecast?lat=28.6139&lon=77.2090").Code)

	// Another city from the same client has its own budget.
	assert.Equal(t, http.StatusOK, hit(h, client, "/v1/forecast?lat=19.0760&lon=72.8777").Code)

	// The same cell from another client is unaffected.
	assert.Equal(t, http.StatusOK, hit(h, "198.51.100.9:12345", "/v1/forecast?lat=28.6139&lon=77.2090").Code)
}

func TestRateLimitByLocation_MissingCoordinatesFallBackToIP(t *testing.T) {
	h := limited(middleware.RateLimitByLocation(middleware.RateLimitConfig{RequestLimit: 1, WindowLength: time.Minute}))

	assert.Equal(t, http.StatusOK, hit(h, "198.51.100.8:12345", "/v1/forecast?lat=abc").Code)
	assert.Equal(t, http.StatusTooManyRequests, hit(h, "198.51.100.8:12345", "/v1/forecast").Code)
}

func TestRateLimitExceeded_Problem(t *testing.T) {
	h := middleware.RequestID(limited(middleware.RateLimitByIP(middleware.RateLimitConfig{RequestLimit: 1, WindowLength: time.Minute})))

	assert.Equal(t, http.StatusOK, hit(h, "203.0.113.1:12345", "/v1/forecast").Code)
	rec := hit(h, "203.0.113.1:12345", "/v1/forecast")

	assert.Equal(t, http.StatusTooManyRequests, rec.Code)
	assert.Equal(t, "application/problem+json", rec.Header().Get("Content-Type"))

	body := rec.Body.String()
	assert.Contains(t, body, "too-many-requests")
	assert.Contains(t, body, "Rate limit exceeded")
	assert.Contains(t, body, `"instance":"/v1/forecast"`)
	assert.Contains(t, body, "req_")
}

func TestDefaultRateLimitConfigs(t *testing.T) {
	tests := []struct {
		name  string
		cfg   middleware.RateLimitConfig
		limit int
	}{
		{"forecast", middleware.ForecastRateLimit, 30},
		{"location", middleware.LocationRateLimit, 10},
		{"standard", middleware.StandardRateLimit, 100},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.limit, tt.cfg.RequestLimit)
			assert.Equal(t, time.Minute, tt.cfg.WindowLength)
		})
	}
}
