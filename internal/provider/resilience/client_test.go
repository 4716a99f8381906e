package resilience_test

import (
	"bytes"
	"context"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/sony/gobreaker/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/airsense/aqiforecast/internal/provider/resilience"
)

// historyUpstream serves the given statuses in order, repeating the last
// one, and counts the calls it receives.
func historyUpstream(t *testing.T, statuses ...int) (*httptest.Server, *atomic.Int32) {
	t.Helper()
	var calls atomic.Int32
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		n := int(calls.Add(1))
		status := statuses[len(statuses)-1]
		if n <= len(statuses) {
			status = statuses[n-1]
		}
		if status == http.StatusTooManyRequests {
			w.Header().Set("Retry-After", "1")
		}
		w.WriteHeader(status)
		if status == http.StatusOK {
			_, _ = w.Write([]byte(`{"list":[]}`))
		}
	}))
	t.Cleanup(server.Close)
	return server, &calls
}

// quickConfig retries fast and never trips unless the test swaps the
// breaker.
func quickConfig(name string, retries uint64) resilience.ClientConfig {
	breaker := resilience.DefaultCircuitBreakerConfig(name)
	breaker.ReadyToTrip = func(gobreaker.Counts) bool { return false }
	return resilience.ClientConfig{
		Name:            name,
		Timeout:         time.Second,
		MaxRetries:      retries,
		InitialInterval: 5 * time.Millisecond,
		MaxInterval:     20 * time.Millisecond,
		CircuitBreaker:  &breaker,
	}
}

func get(t *testing.T, ctx context.Context, client *resilience.Client, url string) (*http.Response, error) {
	t.Helper()
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, http.NoBody)
	require.NoError(t, err)
	resp, err := client.Do(req)
	if resp != nil {
		t.Cleanup(func() { _ = resp.Body.Close() })
	}
	return resp, err
}

func TestClient_Success(t *testing.T) {
	server, calls := historyUpstream(t, http.StatusOK)
	client := resilience.NewClient(resilience.DefaultClientConfig("openweathermap"))

	resp, err := get(t, context.Background(), client, server.URL)
	require.NoError(t, err)

	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, int32(1), calls.Load())
	assert.Equal(t, gobreaker.StateClosed, client.CircuitBreakerState())
}

func TestClient_RetryOutcomes(t *testing.T) {
	tests := []struct {
		name       string
		statuses   []int
		retries    uint64
		wantStatus int
		wantCalls  int32
	}{
		{"5xx retried until success", []int{503, 503, 200}, 5, 200, 3},
		{"429 retried", []int{429, 200}, 2, 200, 2},
		{"zero retries is one attempt", []int{502}, 0, 502, 1},
		{"exhausted retries return last response", []int{500}, 2, 500, 3},
		{"4xx not retried", []int{400}, 3, 400, 1},
		{"404 not retried", []int{404}, 3, 404, 1},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			server, calls := historyUpstream(t, tt.statuses...)
			client := resilience.NewClient(quickConfig("owm-"+tt.name, tt.retries))

			resp, err := get(t, context.Background(), client, server.URL)
			require.NoError(t, err)

			assert.Equal(t, tt.wantStatus, resp.StatusCode)
			assert.Equal(t, tt.wantCalls, calls.Load())
		})
	}
}

func TestClient_RateLimitCountsAsFailure(t *testing.T) {
	server, _ := historyUpstream(t, http.StatusTooManyRequests, http.StatusOK)
	client := resilience.NewClient(quickConfig("owm-429", 2))

	_, err := get(t, context.Background(), client, server.URL)
	require.NoError(t, err)

	counts := client.CircuitBreakerCounts()
	assert.Equal(t, uint32(1), counts.TotalFailures)
	assert.Equal(t, uint32(1), counts.TotalSuccesses)
}

func TestClient_RatioBreakerRejectsWithoutCalling(t *testing.T) {
	server, calls := historyUpstream(t, http.StatusInternalServerError)

	cfg := quickConfig("owm-ratio", 0)
	cfg.CircuitBreaker.ReadyToTrip = func(c gobreaker.Counts) bool {
		return c.Requests >= 5 && float64(c.TotalFailures)/float64(c.Requests) >= 0.5
	}
	client := resilience.NewClient(cfg)

	for i := 0; i < 5; i++ {
		_, _ = get(t, context.Background(), client, server.URL)
	}
	require.Equal(t, gobreaker.StateOpen, client.CircuitBreakerState())

	resp, err := get(t, context.Background(), client, server.URL)
	assert.Nil(t, resp)
	assert.ErrorIs(t, err, resilience.ErrCircuitOpen)
	assert.Equal(t, int32(5), calls.Load())
}

func TestClient_ConsecutiveFailuresOpenBreaker(t *testing.T) {
	server, _ := historyUpstream(t, http.StatusServiceUnavailable)

	var logs bytes.Buffer
	cfg := resilience.DefaultClientConfig("openweathermap")
	cfg.MaxRetries = 0
	cfg.Logger = zerolog.New(&logs)
	client := resilience.NewClient(cfg)

	for i := 0; i < resilience.MaxConsecutiveFailures; i++ {
		_, err := get(t, context.Background(), client, server.URL)
		require.NoError(t, err)
	}

	assert.Equal(t, gobreaker.StateOpen, client.CircuitBreakerState())
	assert.Contains(t, logs.String(), "circuit breaker state changed")
	assert.Contains(t, logs.String(), `"provider":"openweathermap"`)
	assert.Contains(t, logs.String(), `"level":"warn"`)
}

func TestClient_Timeout(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		time.Sleep(300 * time.Millisecond)
		w.WriteHeader(http.StatusOK)
	}))
	defer server.Close()

	cfg := quickConfig("owm-timeout", 0)
	cfg.Timeout = 50 * time.Millisecond
	client := resilience.NewClient(cfg)

	resp, err := get(t, context.Background(), client, server.URL)
	assert.Nil(t, resp)
	assert.Error(t, err)
}

func TestClient_ContextCancellation(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		time.Sleep(time.Second)
		w.WriteHeader(http.StatusOK)
	}))
	defer server.Close()

	client := resilience.NewClient(resilience.DefaultClientConfig("owm-cancel"))

	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()

	resp, err := get(t, ctx, client, server.URL)
	assert.Nil(t, resp)
	assert.Error(t, err)
}

func TestDefaultConfigs(t *testing.T) {
	client := resilience.DefaultClientConfig("openweathermap")
	assert.Equal(t, "openweathermap", client.Name)
	assert.Equal(t, 10*time.Second, client.Timeout)
	assert.Equal(t, uint64(3), client.MaxRetries)
	assert.Equal(t, 100*time.Millisecond, client.InitialInterval)
	assert.Equal(t, 5*time.Second, client.MaxInterval)
	require.NotNil(t, client.CircuitBreaker)

	breaker := *client.CircuitBreaker
	assert.Equal(t, "openweathermap", breaker.Name)
	assert.Equal(t, uint32(1), breaker.MaxRequests)
	assert.Equal(t, 60*time.Second, breaker.Timeout)
	assert.NotNil(t, breaker.ReadyToTrip)
}

func TestDefaultReadyToTrip(t *testing.T) {
	tests := []struct {
		name   string
		counts gobreaker.Counts
		want   bool
	}{
		{"below volume", gobreaker.Counts{Requests: 4, TotalFailures: 2, ConsecutiveFailures: 2}, false},
		{"low failure rate", gobreaker.Counts{Requests: 10, TotalFailures: 4}, false},
		{"half failing", gobreaker.Counts{Requests: 10, TotalFailures: 5}, true},
		{"five of five", gobreaker.Counts{Requests: 5, TotalFailures: 5}, true},
		{"three in a row", gobreaker.Counts{Requests: 3, TotalFailures: 3, ConsecutiveFailures: 3}, true},
		{"two in a row", gobreaker.Counts{Requests: 2, TotalFailures: 2, ConsecutiveFailures: 2}, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, resilience.DefaultReadyToTrip(tt.counts))
		})
	}
}

func TestLogStateChange_RecoveryIsInfo(t *testing.T) {
	var logs bytes.Buffer
	resilience.LogStateChange(zerolog.New(&logs))("openweathermap", gobreaker.StateHalfOpen, gobreaker.StateClosed)

	assert.Contains(t, logs.String(), `"level":"info"`)
	assert.Contains(t, logs.String(), `"to":"closed"`)
}

func TestUpstreamError(t *testing.T) {
	err := &resilience.UpstreamError{StatusCode: http.StatusInternalServerError}
	assert.Contains(t, err.Error(), "Internal Server Error")

	limited := &resilience.UpstreamError{StatusCode: http.StatusTooManyRequests, RetryAfter: 30 * time.Second}
	assert.Contains(t, limited.Error(), "retry after 30s")
}
