// Package handler provides HTTP handlers for the forecast API.
package handler

import (
	"context"
	"net/http"
	"time"

	"github.com/airsense/aqiforecast/internal/api/models"
	"github.com/airsense/aqiforecast/internal/api/response"
	"github.com/airsense/aqiforecast/internal/forecast"
	"github.com/airsense/aqiforecast/internal/provider/resilience"
)

// readinessTimeout bounds the dependency checks of a single probe.
const readinessTimeout = 2 * time.Second

// DependencyCheck probes one backing subsystem, e.g. Postgres or Redis.
type DependencyCheck struct {
	Name  string
	Check func(ctx context.Context) error
}

// OpsConfig holds configuration for the ops handler.
type OpsConfig struct {
	Version   string
	BuildTime string

	// Bundle is the loaded model bundle (optional).
	Bundle *forecast.ModelBundle

	// Registry tracks upstream provider health (optional).
	Registry *resilience.Registry

	// Checks are run by the readiness and status endpoints.
	Checks []DependencyCheck
}

// OpsHandler handles operational endpoints.
type OpsHandler struct {
	version   string
	buildTime string
	bundle    *forecast.ModelBundle
	registry  *resilience.Registry
	checks    []DependencyCheck
}

// NewOpsHandler creates a new OpsHandler.
func NewOpsHandler(cfg OpsConfig) *OpsHandler {
	return &OpsHandler{
		version:   cfg.Version,
		buildTime: cfg.BuildTime,
		bundle:    cfg.Bundle,
		registry:  cfg.Registry,
		checks:    cfg.Checks,
	}
}

// HealthCheck handles GET /v1/ops/health - liveness check.
func (h *OpsHandler) HealthCheck(w http.ResponseWriter, r *http.Request) {
	details := map[string]interface{}{
		"version":      h.version,
		"buildTime":    h.buildTime,
		"model_loaded": h.bundle.Loaded(),
	}
	if h.bundle.Loaded() {
		details["model_version"] = h.bundle.Version()
		details["horizons"] = h.bundle.Horizons()
	}

	response.JSON(w, r, http.StatusOK, models.Health{
		Status:  models.HealthStatusOK,
		Time:    models.Timestamp(time.Now()),
		Details: details,
	})
}

// ReadinessCheck handles GET /v1/ops/ready - readiness check.
// The service is ready once models are loaded and every dependency answers.
func (h *OpsHandler) ReadinessCheck(w http.ResponseWriter, r *http.Request) {
	if !h.bundle.Loaded() {
		response.ServiceUnavailable(w, r, "forecast models are not loaded")
		return
	}

	for _, s := range h.runChecks(r.Context()) {
		if s.Status != models.HealthStatusOK {
			response.ServiceUnavailable(w, r, s.Name+" is unavailable")
			return
		}
	}

	response.JSON(w, r, http.StatusOK, models.Health{
		Status: models.HealthStatusOK,
		Time:   models.Timestamp(time.Now()),
	})
}

// SystemStatus handles GET /v1/ops/status - provider and subsystem status.
func (h *OpsHandler) SystemStatus(w http.ResponseWriter, r *http.Request) {
	subsystems := h.runChecks(r.Context())

	modelStatus := models.SubsystemStatus{Name: "models", Status: models.HealthStatusOK}
	if !h.bundle.Loaded() {
		modelStatus.Status = models.HealthStatusFail
		detail := "no horizon models loaded"
		modelStatus.Detail = &detail
	}
	subsystems = append([]models.SubsystemStatus{modelStatus}, subsystems...)

	providers := []models.ProviderStatus{}
	if h.registry != nil {
		for _, ph := range h.registry.GetAllHealth() {
			providers = append(providers, toProviderStatus(ph))
		}
	}

	response.JSON(w, r, http.StatusOK, models.SystemStatus{
		Status:                 overallStatus(subsystems, providers),
		Time:                   models.Timestamp(time.Now()),
		Model:                  h.modelStatus(),
		Subsystems:             subsystems,
		Providers:              providers,
		ActiveDegradationFlags: degradationFlags(providers),
	})
}

func (h *OpsHandler) modelStatus() models.ModelStatus {
	ms := models.ModelStatus{Horizons: []int{}}
	if !h.bundle.Loaded() {
		return ms
	}
	ms.Loaded = true
	ms.Version = h.bundle.Version()
	ms.Horizons = h.bundle.Horizons()
	ms.Features = h.bundle.Schema().Len()
	return ms
}

func (h *OpsHandler) runChecks(ctx context.Context) []models.SubsystemStatus {
	ctx, cancel := context.WithTimeout(ctx, readinessTimeout)
	defer cancel()

	statuses := make([]models.SubsystemStatus, 0, len(h.checks))
	for _, c := range h.checks {
		s := models.SubsystemStatus{Name: c.Name, Status: models.HealthStatusOK}
		if err := c.Check(ctx); err != nil {
			s.Status = models.HealthStatusFail
			detail := err.Error()
			s.Detail = &detail
		}
		statuses = append(statuses, s)
	}
	return statuses
}

func toProviderStatus(ph *resilience.ProviderHealth) models.ProviderStatus {
	ps := models.ProviderStatus{
		Provider:            ph.Name,
		CircuitState:        ph.CircuitState.String(),
		ConsecutiveFailures: ph.Counts.ConsecutiveFailures,
		Successes:           ph.Successes,
		Failures:            ph.Failures,
	}
	switch {
	case ph.IsUnhealthy():
		ps.Status = models.HealthStatusFail
	case ph.IsDegraded():
		ps.Status = models.HealthStatusDegraded
	default:
		ps.Status = models.HealthStatusOK
	}
	if ph.LastSuccessAt != nil {
		ts := models.Timestamp(*ph.LastSuccessAt)
		ps.LastSuccessAt = &ts
	}
	if ph.LastFailureAt != nil {
		ts := models.Timestamp(*ph.LastFailureAt)
		ps.LastFailureAt = &ts
	}
	if ph.LastError != "" {
		msg := ph.LastError
		ps.Message = &msg
	}
	return ps
}

func overallStatus(subsystems []models.SubsystemStatus, providers []models.ProviderStatus) models.HealthStatus {
	for _, s := range subsystems {
		if s.Status == models.HealthStatusFail {
			return models.HealthStatusFail
		}
	}
	for _, p := range providers {
		if p.Status != models.HealthStatusOK {
			return models.HealthStatusDegraded
		}
	}
	return models.HealthStatusOK
}

// degradationFlags names providers whose circuit is not closed. Forecasts
// keep working from stored history while the upstream is down.
func degradationFlags(providers []models.ProviderStatus) []string {
	var flags []string
	for _, p := range providers {
		if p.Status != models.HealthStatusOK {
			flags = append(flags, p.Provider+"_unavailable")
		}
	}
	return flags
}
