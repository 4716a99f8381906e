package worker

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/rs/zerolog"

	"github.com/airsense/aqiforecast/internal/forecast"
)

// ErrNoRecordsFetched is reported for a point whose window had gaps but the
// upstream returned nothing.
var ErrNoRecordsFetched = errors.New("no records fetched for missing hours")

// Backfiller fills the history window of a coordinate.
type Backfiller interface {
	Backfill(ctx context.Context, lat, lon float64, locationName string) (forecast.BackfillResult, error)
}

// BackfillJob keeps the history windows of configured targets warm.
type BackfillJob struct {
	config     BackfillConfig
	logger     zerolog.Logger
	backfiller Backfiller

	metrics *BackfillMetrics
}

// BackfillMetrics tracks backfill job statistics.
type BackfillMetrics struct {
	mu sync.RWMutex

	TotalRuns        int64
	SuccessfulPoints int64
	FailedPoints     int64
	FetchedRecords   int64
	APICalls         int64

	LastRunAt       time.Time
	LastRunDuration time.Duration
	TotalDuration   time.Duration
}

// BackfillJobConfig holds configuration for creating a BackfillJob.
type BackfillJobConfig struct {
	Config     BackfillConfig
	Logger     zerolog.Logger
	Backfiller Backfiller
}

// NewBackfillJob creates a new backfill job processor.
func NewBackfillJob(cfg BackfillJobConfig) *BackfillJob {
	config := cfg.Config
	if len(config.Targets) == 0 {
		config.Targets = DefaultBackfillTargets()
	}
	if config.Concurrency <= 0 {
		config.Concurrency = 3
	}
	if config.Timeout <= 0 {
		config.Timeout = 45 * time.Second
	}

	return &BackfillJob{
		config:     config,
		logger:     cfg.Logger,
		backfiller: cfg.Backfiller,
		metrics:    &BackfillMetrics{},
	}
}

// Config returns the effective configuration.
func (j *BackfillJob) Config() BackfillConfig {
	return j.config
}

// BackfillResult contains the result of a backfill run.
type BackfillResult struct {
	StartTime      time.Time
	Duration       time.Duration
	TotalPoints    int
	Successful     int
	Failed         int
	MissingHours   int
	FetchedRecords int
	APICalls       int
	Errors         []BackfillError
}

// BackfillError represents a failed point.
type BackfillError struct {
	Target string
	Point  Point
	Error  string
}

// Run backfills every point of every configured target.
func (j *BackfillJob) Run(ctx context.Context) *BackfillResult {
	return j.run(ctx, j.config)
}

// RunTarget backfills the points of the named target only.
func (j *BackfillJob) RunTarget(ctx context.Context, name string) (*BackfillResult, bool) {
	target, ok := j.config.Target(name)
	if !ok {
		return nil, false
	}
	cfg := j.config
	cfg.Targets = []BackfillTarget{target}
	return j.run(ctx, cfg), true
}

// RunPoint backfills a single coordinate.
func (j *BackfillJob) RunPoint(ctx context.Context, name string, p Point) *BackfillResult {
	cfg := j.config
	cfg.Targets = []BackfillTarget{{Name: name, Priority: 1, Points: []Point{p}}}
	cfg.Concurrency = 1
	return j.run(ctx, cfg)
}

func (j *BackfillJob) run(ctx context.Context, cfg BackfillConfig) *BackfillResult {
	startTime := time.Now()
	result := &BackfillResult{
		StartTime:   startTime,
		TotalPoints: cfg.TotalPoints(),
	}

	j.logger.Info().
		Int("total_points", result.TotalPoints).
		Int("concurrency", cfg.Concurrency).
		Msg("starting history backfill job")

	points := cfg.allPoints()

	pointsChan := make(chan targetPoint, len(points))
	resultsChan := make(chan pointResult, len(points))

	var wg sync.WaitGroup
	for i := 0; i < cfg.Concurrency; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			j.backfillWorker(ctx, cfg.Timeout, pointsChan, resultsChan)
		}()
	}

	for _, p := range points {
		pointsChan <- p
	}
	close(pointsChan)

	go func() {
		wg.Wait()
		close(resultsChan)
	}()

	for pr := range resultsChan {
		if pr.err != nil {
			result.Failed++
			result.Errors = append(result.Errors, BackfillError{
				Target: pr.point.Name,
				Point:  pr.point.Point,
				Error:  pr.err.Error(),
			})
		} else {
			result.Successful++
		}
		result.MissingHours += pr.res.MissingHours
		result.FetchedRecords += pr.res.FetchedRecords
		result.APICalls += pr.res.APICalls
	}

	// Points never picked up because the context ended count as failed.
	if skipped := result.TotalPoints - result.Successful - result.Failed; skipped > 0 {
		result.Failed += skipped
	}

	result.Duration = time.Since(startTime)

	j.updateMetrics(result)

	j.logger.Info().
		Dur("duration", result.Duration).
		Int("successful", result.Successful).
		Int("failed", result.Failed).
		Int("missing_hours", result.MissingHours).
		Int("records", result.FetchedRecords).
		Int("api_calls", result.APICalls).
		Msg("history backfill job completed")

	return result
}

type pointResult struct {
	point targetPoint
	res   forecast.BackfillResult
	err   error
}

func (j *BackfillJob) backfillWorker(ctx context.Context, timeout time.Duration, points <-chan targetPoint, results chan<- pointResult) {
	for point := range points {
		select {
		case <-ctx.Done():
			return
		default:
			results <- j.backfillPoint(ctx, timeout, point)
		}
	}
}

func (j *BackfillJob) backfillPoint(ctx context.Context, timeout time.Duration, point targetPoint) pointResult {
	pointCtx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	res, err := j.backfiller.Backfill(pointCtx, point.Lat, point.Lon, point.Name)
	if err == nil && res.MissingHours > 0 && res.FetchedRecords == 0 {
		err = ErrNoRecordsFetched
	}
	if err != nil {
		j.logger.Warn().
			Err(err).
			Str("target", point.Name).
			Float64("lat", point.Lat).
			Float64("lon", point.Lon).
			Msg("backfill failed")
	}

	return pointResult{point: point, res: res, err: err}
}

func (j *BackfillJob) updateMetrics(result *BackfillResult) {
	j.metrics.mu.Lock()
	defer j.metrics.mu.Unlock()

	j.metrics.TotalRuns++
	j.metrics.SuccessfulPoints += int64(result.Successful)
	j.metrics.FailedPoints += int64(result.Failed)
	j.metrics.FetchedRecords += int64(result.FetchedRecords)
	j.metrics.APICalls += int64(result.APICalls)
	j.metrics.LastRunAt = result.StartTime.Add(result.Duration)
	j.metrics.LastRunDuration = result.Duration
	j.metrics.TotalDuration += result.Duration
}

// GetMetrics returns a copy of the current metrics.
func (j *BackfillJob) GetMetrics() BackfillMetrics {
	j.metrics.mu.RLock()
	defer j.metrics.mu.RUnlock()

	return BackfillMetrics{
		TotalRuns:        j.metrics.TotalRuns,
		SuccessfulPoints: j.metrics.SuccessfulPoints,
		FailedPoints:     j.metrics.FailedPoints,
		FetchedRecords:   j.metrics.FetchedRecords,
		APICalls:         j.metrics.APICalls,
		LastRunAt:        j.metrics.LastRunAt,
		LastRunDuration:  j.metrics.LastRunDuration,
		TotalDuration:    j.metrics.TotalDuration,
	}
}

// MetricsSnapshot returns a snapshot of the current metrics as a map.
func (j *BackfillJob) MetricsSnapshot() map[string]interface{} {
	m := j.GetMetrics()
	return map[string]interface{}{
		"total_runs":        m.TotalRuns,
		"successful_points": m.SuccessfulPoints,
		"failed_points":     m.FailedPoints,
		"fetched_records":   m.FetchedRecords,
		"api_calls":         m.APICalls,
		"last_run_at":       m.LastRunAt,
		"last_run_duration": m.LastRunDuration.String(),
		"total_duration":    m.TotalDuration.String(),
	}
}
