package worker

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"cloud.google.com/go/pubsub/v2"
	"github.com/rs/zerolog"

	"github.com/airsense/aqiforecast/internal/provider/resilience"
)

// Job types carried in Pub/Sub messages.
const (
	JobTypeHistoryBackfill = "history_backfill"
	JobTypeHealthCheck     = "health_check"
)

// ErrUpstreamUnavailable defers a backfill while a provider circuit is open.
var ErrUpstreamUnavailable = errors.New("upstream provider unavailable")

// PubSubHandler handles Pub/Sub messages for the worker.
type PubSubHandler struct {
	client           *pubsub.Client
	subscriber       *pubsub.Subscriber
	subscriptionName string
	jobs             *JobRunner
	logger           zerolog.Logger
}

// PubSubConfig holds configuration for the Pub/Sub handler.
type PubSubConfig struct {
	ProjectID        string
	SubscriptionName string
	BackfillJob      *BackfillJob
	Registry         *resilience.Registry
	Logger           zerolog.Logger
}

// JobMessage represents a worker job message.
//
// A history_backfill job runs every target unless Target names one, or Lat
// and Lon select a single coordinate.
type JobMessage struct {
	JobType      string   `json:"job_type"`
	Target       string   `json:"target,omitempty"`
	Lat          *float64 `json:"lat,omitempty"`
	Lon          *float64 `json:"lon,omitempty"`
	LocationName string   `json:"location_name,omitempty"`
}

// NewPubSubHandler creates a new Pub/Sub handler.
func NewPubSubHandler(ctx context.Context, cfg PubSubConfig) (*PubSubHandler, error) {
	client, err := pubsub.NewClient(ctx, cfg.ProjectID)
	if err != nil {
		return nil, fmt.Errorf("creating pubsub client: %w", err)
	}

	subscriber := client.Subscriber(cfg.SubscriptionName)

	// Backfill jobs fan out to the upstream API, so keep few in flight.
	subscriber.ReceiveSettings.MaxOutstandingMessages = 4
	subscriber.ReceiveSettings.MaxExtension = 10 * time.Minute

	return &PubSubHandler{
		client:           client,
		subscriber:       subscriber,
		subscriptionName: cfg.SubscriptionName,
		jobs:             NewJobRunner(cfg.BackfillJob, cfg.Registry, cfg.Logger),
		logger:           cfg.Logger,
	}, nil
}

// Start begins processing Pub/Sub messages.
func (h *PubSubHandler) Start(ctx context.Context) error {
	h.logger.Info().
		Str("subscription", h.subscriptionName).
		Msg("starting pubsub handler")

	return h.subscriber.Receive(ctx, func(ctx context.Context, msg *pubsub.Message) {
		h.handleMessage(ctx, msg)
	})
}

// Close closes the Pub/Sub client.
func (h *PubSubHandler) Close() error {
	return h.client.Close()
}

func (h *PubSubHandler) handleMessage(ctx context.Context, msg *pubsub.Message) {
	logger := h.logger.With().
		Str("message_id", msg.ID).
		Str("publish_time", msg.PublishTime.Format(time.RFC3339)).
		Logger()

	logger.Debug().Msg("received pubsub message")

	switch h.jobs.Handle(ctx, msg.Data) {
	case OutcomeRetry:
		msg.Nack()
	default:
		msg.Ack()
	}
}

// Outcome tells the transport what to do with a processed message.
type Outcome int

const (
	// OutcomeDone acknowledges the message.
	OutcomeDone Outcome = iota
	// OutcomeRetry requests redelivery.
	OutcomeRetry
	// OutcomeDiscard acknowledges a message that can never succeed.
	OutcomeDiscard
)

// JobRunner decodes job messages and runs them. It is transport independent
// so jobs can be driven by Pub/Sub or a timer.
type JobRunner struct {
	backfill *BackfillJob
	registry *resilience.Registry
	logger   zerolog.Logger
}

// NewJobRunner creates a JobRunner. registry may be nil.
func NewJobRunner(backfill *BackfillJob, registry *resilience.Registry, logger zerolog.Logger) *JobRunner {
	return &JobRunner{
		backfill: backfill,
		registry: registry,
		logger:   logger,
	}
}

// Handle runs the job encoded in data.
func (r *JobRunner) Handle(ctx context.Context, data []byte) Outcome {
	startTime := time.Now()

	var jobMsg JobMessage
	if err := json.Unmarshal(data, &jobMsg); err != nil {
		r.logger.Error().Err(err).Msg("failed to parse message")
		return OutcomeDiscard
	}

	var err error
	switch jobMsg.JobType {
	case JobTypeHistoryBackfill:
		err = r.handleBackfill(ctx, jobMsg)
	case JobTypeHealthCheck:
		err = r.handleHealthCheck(ctx)
	default:
		r.logger.Warn().Str("job_type", jobMsg.JobType).Msg("unknown job type")
		return OutcomeDiscard
	}

	if err != nil {
		r.logger.Error().Err(err).Str("job_type", jobMsg.JobType).Msg("job failed")
		return OutcomeRetry
	}

	r.logger.Info().
		Str("job_type", jobMsg.JobType).
		Dur("duration", time.Since(startTime)).
		Msg("job completed successfully")

	return OutcomeDone
}

func (r *JobRunner) handleBackfill(ctx context.Context, msg JobMessage) error {
	if r.registry != nil {
		if down := r.registry.Unavailable(); len(down) > 0 {
			return fmt.Errorf("%w: %s", ErrUpstreamUnavailable, strings.Join(down, ", "))
		}
	}

	var result *BackfillResult

	switch {
	case msg.Lat != nil && msg.Lon != nil:
		name := msg.LocationName
		if name == "" {
			name = msg.Target
		}
		result = r.backfill.RunPoint(ctx, name, Point{Lat: *msg.Lat, Lon: *msg.Lon})
	case msg.Target != "":
		var ok bool
		result, ok = r.backfill.RunTarget(ctx, msg.Target)
		if !ok {
			r.logger.Warn().Str("target", msg.Target).Msg("unknown backfill target")
			return nil
		}
	default:
		result = r.backfill.Run(ctx)
	}

	// Consider it successful unless more than half failed.
	if result.Failed > result.Successful {
		return fmt.Errorf("too many backfill failures: %d/%d", result.Failed, result.TotalPoints)
	}

	return nil
}

func (r *JobRunner) handleHealthCheck(ctx context.Context) error {
	r.logger.Debug().Msg("running health check")

	// One point is enough to verify upstream and storage connectivity.
	targets := r.backfill.Config().allPoints()
	if len(targets) == 0 {
		return nil
	}
	probe := targets[0]

	result := r.backfill.RunPoint(ctx, probe.Name, probe.Point)

	if r.registry != nil {
		for _, ph := range r.registry.GetAllHealth() {
			r.logger.Info().
				Str("provider", ph.Name).
				Str("status", ph.Status()).
				Uint32("consecutive_failures", ph.Counts.ConsecutiveFailures).
				Uint64("successes", ph.Successes).
				Uint64("failures", ph.Failures).
				Msg("provider health")
		}
	}

	if result.Failed > 0 {
		if len(result.Errors) > 0 {
			return fmt.Errorf("health check failed: %s", result.Errors[0].Error)
		}
		return fmt.Errorf("health check failed: %w", ctx.Err())
	}

	r.logger.Debug().Interface("metrics", r.backfill.MetricsSnapshot()).Msg("health check passed")
	return nil
}
