package forecast

import (
	"context"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
)

const meterName = "github.com/airsense/aqiforecast/internal/forecast"

// Metrics holds the forecast pipeline instruments. A nil *Metrics records nothing.
type Metrics struct {
	requests        metric.Int64Counter
	backfillRecords metric.Int64Counter
	duration        metric.Float64Histogram
}

// NewMetrics creates the pipeline instruments on the global meter provider.
func NewMetrics() (*Metrics, error) {
	meter := otel.Meter(meterName)

	requests, err := meter.Int64Counter(
		"forecast.requests",
		metric.WithDescription("Number of forecast requests by outcome"),
		metric.WithUnit("{request}"),
	)
	if err != nil {
		return nil, err
	}

	backfillRecords, err := meter.Int64Counter(
		"forecast.backfill.records",
		metric.WithDescription("Hourly records fetched from the upstream provider"),
		metric.WithUnit("{record}"),
	)
	if err != nil {
		return nil, err
	}

	duration, err := meter.Float64Histogram(
		"forecast.duration",
		metric.WithDescription("Duration of forecast generation in seconds"),
		metric.WithUnit("s"),
	)
	if err != nil {
		return nil, err
	}

	return &Metrics{
		requests:        requests,
		backfillRecords: backfillRecords,
		duration:        duration,
	}, nil
}

func (m *Metrics) recordRequest(ctx context.Context, outcome string, cached bool, elapsed time.Duration) {
	if m == nil {
		return
	}
	attrs := metric.WithAttributes(
		attribute.String("outcome", outcome),
		attribute.Bool("cached", cached),
	)
	m.requests.Add(ctx, 1, attrs)
	m.duration.Record(ctx, elapsed.Seconds(), attrs)
}

func (m *Metrics) recordBackfill(ctx context.Context, records int) {
	if m == nil {
		return
	}
	m.backfillRecords.Add(ctx, int64(records))
}
