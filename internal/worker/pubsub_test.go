package worker_test

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/airsense/aqiforecast/internal/forecast"
	"github.com/airsense/aqiforecast/internal/provider/resilience"
	"github.com/airsense/aqiforecast/internal/worker"
)

func newRunner(fb *fakeBackfiller) *worker.JobRunner {
	job := worker.NewBackfillJob(worker.BackfillJobConfig{
		Config:     twoCityConfig(),
		Logger:     zerolog.Nop(),
		Backfiller: fb,
	})
	registry := resilience.NewRegistry()
	registry.Register("openweathermap", resilience.NewClient(resilience.DefaultClientConfig("openweathermap")))
	return worker.NewJobRunner(job, registry, zerolog.Nop())
}

func TestJobRunner_HistoryBackfill_AllTargets(t *testing.T) {
	fb := &fakeBackfiller{}

	outcome := newRunner(fb).Handle(context.Background(), []byte(`{"job_type":"history_backfill"}`))

	assert.Equal(t, worker.OutcomeDone, outcome)
	assert.Len(t, fb.names(), 3)
}

func TestJobRunner_HistoryBackfill_Target(t *testing.T) {
	fb := &fakeBackfiller{}

	outcome := newRunner(fb).Handle(context.Background(), []byte(`{"job_type":"history_backfill","target":"mumbai"}`))

	assert.Equal(t, worker.OutcomeDone, outcome)
	assert.Equal(t, []string{"Mumbai"}, fb.names())
}

func TestJobRunner_HistoryBackfill_UnknownTargetIsDropped(t *testing.T) {
	fb := &fakeBackfiller{}

	outcome := newRunner(fb).Handle(context.Background(), []byte(`{"job_type":"history_backfill","target":"Atlantis"}`))

	assert.Equal(t, worker.OutcomeDone, outcome)
	assert.Empty(t, fb.names())
}

func TestJobRunner_HistoryBackfill_Point(t *testing.T) {
	fb := &fakeBackfiller{}

	outcome := newRunner(fb).Handle(context.Background(),
		[]byte(`{"job_type":"history_backfill","lat":30.727987,"lon":76.693266,"location_name":"Chandigarh"}`))

	assert.Equal(t, worker.OutcomeDone, outcome)
	require.Len(t, fb.calls, 1)
	assert.Equal(t, "Chandigarh", fb.calls[0].Name)
	assert.InDelta(t, 30.727987, fb.calls[0].Lat, 1e-9)
	assert.InDelta(t, 76.693266, fb.calls[0].Lon, 1e-9)
}

func TestJobRunner_HistoryBackfill_MostlyFailedRetries(t *testing.T) {
	fb := &fakeBackfiller{errs: map[string]error{"Delhi": errors.New("timeout")}}

	outcome := newRunner(fb).Handle(context.Background(), []byte(`{"job_type":"history_backfill"}`))

	assert.Equal(t, worker.OutcomeRetry, outcome)
}

func TestJobRunner_HistoryBackfill_DeferredWhileUpstreamDown(t *testing.T) {
	upstream := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusServiceUnavailable)
	}))
	defer upstream.Close()

	cfg := resilience.DefaultClientConfig("openweathermap")
	cfg.MaxRetries = 0
	client := resilience.NewClient(cfg)
	for i := 0; i < resilience.MaxConsecutiveFailures; i++ {
		req, err := http.NewRequestWithContext(context.Background(), http.MethodGet, upstream.URL, http.NoBody)
		require.NoError(t, err)
		resp, err := client.Do(req)
		require.NoError(t, err)
		resp.Body.Close()
	}

	registry := resilience.NewRegistry()
	registry.Register("openweathermap", client)

	fb := &fakeBackfiller{}
	job := worker.NewBackfillJob(worker.BackfillJobConfig{Config: twoCityConfig(), Logger: zerolog.Nop(), Backfiller: fb})
	runner := worker.NewJobRunner(job, registry, zerolog.Nop())

	outcome := runner.Handle(context.Background(), []byte(`{"job_type":"history_backfill"}`))

	assert.Equal(t, worker.OutcomeRetry, outcome)
	assert.Empty(t, fb.names())
}

func TestJobRunner_HealthCheck(t *testing.T) {
	fb := &fakeBackfiller{}

	outcome := newRunner(fb).Handle(context.Background(), []byte(`{"job_type":"health_check"}`))

	assert.Equal(t, worker.OutcomeDone, outcome)
	// Only the highest priority point is probed.
	assert.Equal(t, []string{"Delhi"}, fb.names())
}

func TestJobRunner_HealthCheck_UpstreamDown(t *testing.T) {
	fb := &fakeBackfiller{results: map[string]forecast.BackfillResult{"Delhi": {MissingHours: 25, APICalls: 1}}}

	outcome := newRunner(fb).Handle(context.Background(), []byte(`{"job_type":"health_check"}`))

	assert.Equal(t, worker.OutcomeRetry, outcome)
}

func TestJobRunner_DiscardsBadMessages(t *testing.T) {
	for name, data := range map[string]string{
		"malformed":   `{"job_type":`,
		"unknown job": `{"job_type":"provider_refresh"}`,
	} {
		t.Run(name, func(t *testing.T) {
			fb := &fakeBackfiller{}

			outcome := newRunner(fb).Handle(context.Background(), []byte(data))

			assert.Equal(t, worker.OutcomeDiscard, outcome)
			assert.Empty(t, fb.names())
		})
	}
}
