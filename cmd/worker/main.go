// Package main provides the entrypoint for the history backfill worker.
package main

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/rs/zerolog"

	"github.com/airsense/aqiforecast/internal/api/response"
	"github.com/airsense/aqiforecast/internal/app"
	"github.com/airsense/aqiforecast/internal/config"
	"github.com/airsense/aqiforecast/internal/telemetry"
	"github.com/airsense/aqiforecast/internal/worker"
)

// Version and BuildTime are set at compile time via ldflags
var (
	Version   = "dev"
	BuildTime = "unknown"
)

func main() {
	const serviceName = "aqiforecast-worker"

	log := zerolog.New(os.Stdout).
		With().
		Timestamp().
		Str("service", serviceName).
		Str("version", Version).
		Logger()

	log.Info().
		Str("build_time", BuildTime).
		Msg("starting history backfill worker")

	cfg, err := config.Load(".env")
	if err != nil {
		log.Fatal().Err(err).Msg("failed to load configuration")
	}

	backfillCfg, err := cfg.BackfillConfig()
	if err != nil {
		log.Fatal().Err(err).Msg("invalid backfill targets")
	}

	// Create context for graceful shutdown
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	tp, err := telemetry.Init(ctx, cfg.TelemetryConfig(serviceName, Version))
	if err != nil {
		log.Fatal().Err(err).Msg("failed to initialize telemetry")
	}
	defer func() {
		shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer shutdownCancel()
		if shutdownErr := tp.Shutdown(shutdownCtx); shutdownErr != nil {
			log.Error().Err(shutdownErr).Msg("failed to shutdown telemetry")
		}
	}()

	components, err := app.Build(ctx, cfg, log)
	if err != nil {
		log.Error().Err(err).Msg("failed to initialize forecast service")
		return
	}
	defer components.Close()

	backfillJob := worker.NewBackfillJob(worker.BackfillJobConfig{
		Config:     backfillCfg,
		Logger:     log,
		Backfiller: components.Service,
	})

	// Health check endpoint, also exposing backfill metrics
	mux := http.NewServeMux()
	mux.HandleFunc("/health", func(w http.ResponseWriter, r *http.Request) {
		response.JSON(w, r, http.StatusOK, map[string]interface{}{
			"status":   "healthy",
			"version":  Version,
			"backfill": backfillJob.MetricsSnapshot(),
		})
	})

	server := &http.Server{
		Addr:         ":" + cfg.Worker.HealthPort,
		Handler:      mux,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
	}

	go func() {
		log.Info().Str("addr", server.Addr).Msg("health check server listening")
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Error().Err(err).Msg("health server error")
		}
	}()

	if cfg.PubSub.ProjectID != "" {
		handler, err := worker.NewPubSubHandler(ctx, worker.PubSubConfig{
			ProjectID:        cfg.PubSub.ProjectID,
			SubscriptionName: cfg.PubSub.Subscription,
			BackfillJob:      backfillJob,
			Registry:         components.Registry,
			Logger:           log,
		})
		if err != nil {
			log.Error().Err(err).Msg("failed to create pubsub handler")
			return
		}
		defer handler.Close()

		go func() {
			if err := handler.Start(ctx); err != nil && !errors.Is(err, context.Canceled) {
				log.Error().Err(err).Msg("pubsub handler stopped")
			}
		}()
	} else {
		runner := worker.NewJobRunner(backfillJob, components.Registry, log)
		go runPeriodic(ctx, runner, cfg.Worker.Interval, log)
	}

	// Wait for interrupt signal
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	log.Info().Msg("shutting down worker")
	cancel()

	// Graceful shutdown
	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer shutdownCancel()

	if err := server.Shutdown(shutdownCtx); err != nil {
		log.Error().Err(err).Msg("health server forced to shutdown")
	}

	log.Info().Msg("worker stopped")
}

// runPeriodic backfills every target at startup and then on each tick.
// A zero interval runs once.
func runPeriodic(ctx context.Context, runner *worker.JobRunner, interval time.Duration, log zerolog.Logger) {
	msg, _ := json.Marshal(worker.JobMessage{JobType: worker.JobTypeHistoryBackfill})

	runner.Handle(ctx, msg)
	if interval <= 0 {
		log.Info().Msg("periodic backfill disabled")
		return
	}

	log.Info().Dur("interval", interval).Msg("periodic backfill started")
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			runner.Handle(ctx, msg)
		}
	}
}
