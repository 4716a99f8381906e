package handler

import (
	"context"
	"errors"
	"math"
	"net/http"
	"strings"

	"github.com/rs/zerolog"

	"github.com/airsense/aqiforecast/internal/api/middleware"
	"github.com/airsense/aqiforecast/internal/api/models"
	"github.com/airsense/aqiforecast/internal/api/response"
	"github.com/airsense/aqiforecast/internal/forecast"
)

// Forecaster produces forecasts for a coordinate.
type Forecaster interface {
	GetPrediction(ctx context.Context, req forecast.Request) (*forecast.Prediction, error)
}

// ForecastHandler handles forecast endpoints.
type ForecastHandler struct {
	service Forecaster
	logger  zerolog.Logger
}

// NewForecastHandler creates a new ForecastHandler.
func NewForecastHandler(service Forecaster, logger zerolog.Logger) *ForecastHandler {
	return &ForecastHandler{
		service: service,
		logger:  logger,
	}
}

// GetForecast handles GET /v1/forecast - 12-hour AQI forecast for a coordinate.
func (h *ForecastHandler) GetForecast(w http.ResponseWriter, r *http.Request) {
	query, fieldErrs := parseForecastQuery(r)
	if len(fieldErrs) > 0 {
		response.BadRequest(w, r, "invalid forecast query", fieldErrs)
		return
	}
	if err := validate.StructCtx(r.Context(), query); err != nil {
		response.BadRequest(w, r, "invalid forecast query", fieldErrors(err))
		return
	}

	req := forecast.Request{
		Latitude:           *query.Lat,
		Longitude:          *query.Lon,
		LocationName:       query.LocationName,
		CurrentAQIOverride: query.CurrentAQI,
	}

	pred, err := h.service.GetPrediction(r.Context(), req)
	if err != nil {
		h.writeError(w, r, err)
		return
	}

	response.JSON(w, r, http.StatusOK, toForecastResponse(pred))
}

func (h *ForecastHandler) writeError(w http.ResponseWriter, r *http.Request, err error) {
	var pe *forecast.PredictionError
	if !errors.As(err, &pe) {
		h.logger.Error().Err(err).Str("request_id", middleware.GetRequestID(r.Context())).Msg("forecast failed")
		response.JSON(w, r, http.StatusInternalServerError, models.ForecastError{
			Error:   err.Error(),
			Message: "Internal server error",
		})
		return
	}

	status := http.StatusInternalServerError
	switch pe.Code {
	case forecast.CodeInsufficientData:
		status = http.StatusUnprocessableEntity
	case forecast.CodeInvalidRequest:
		status = http.StatusBadRequest
	default:
		h.logger.Error().Err(pe).Str("request_id", middleware.GetRequestID(r.Context())).Msg("forecast failed")
	}

	response.JSON(w, r, status, models.ForecastError{
		Error:   pe.Summary,
		Message: pe.Message,
		Code:    string(pe.Code),
	})
}

func parseForecastQuery(r *http.Request) (models.ForecastQuery, []models.FieldError) {
	q := r.URL.Query()
	query := models.ForecastQuery{
		LocationName: strings.TrimSpace(q.Get("location_name")),
	}

	var errs []models.FieldError
	var fe *models.FieldError
	if query.Lat, fe = parseFloatParam(q, "lat"); fe != nil {
		errs = append(errs, *fe)
	}
	if query.Lon, fe = parseFloatParam(q, "lon"); fe != nil {
		errs = append(errs, *fe)
	}
	if query.CurrentAQI, fe = parseFloatParam(q, "current_aqi"); fe != nil {
		errs = append(errs, *fe)
	}
	return query, errs
}

func toForecastResponse(p *forecast.Prediction) models.ForecastResponse {
	resp := models.ForecastResponse{
		Success: true,
		Location: models.ForecastLocation{
			Latitude:  p.Location.Latitude,
			Longitude: p.Location.Longitude,
		},
		Current: models.CurrentConditions{
			Timestamp:         models.Timestamp(p.Current.Timestamp),
			AQI:               p.Current.AQI,
			Category:          string(p.Current.Category),
			DominantPollutant: pollutantName(p.Current.DominantPollutant),
		},
		HistoricalData: make([]models.HistoricalPoint, 0, len(p.Historical)),
		ForecastData:   make([]models.ForecastPoint, 0, len(p.Forecast)),
		Metadata: models.ForecastMetadata{
			DataPointsUsed:   p.Metadata.DataPointsUsed,
			APICallsMade:     p.Metadata.APICallsMade,
			ProcessingTimeMS: p.Metadata.ProcessingTime.Milliseconds(),
			ModelVersion:     p.Metadata.ModelVersion,
			GeneratedAt:      models.Timestamp(p.Metadata.GeneratedAt),
		},
	}
	if p.Location.Name != "" {
		name := p.Location.Name
		resp.Location.Name = &name
	}

	for _, obs := range p.Historical {
		resp.HistoricalData = append(resp.HistoricalData, models.HistoricalPoint{
			Timestamp:         models.Timestamp(obs.Timestamp),
			AQI:               obs.AQI,
			Category:          string(obs.Category),
			DominantPollutant: pollutantName(obs.DominantPollutant),
			PM25:              round2(obs.PM25),
			PM10:              round2(obs.PM10),
			Type:              models.PointTypeActual,
		})
	}

	for _, pt := range p.Forecast {
		resp.ForecastData = append(resp.ForecastData, models.ForecastPoint{
			Hour:      pt.HoursAhead,
			Timestamp: models.Timestamp(pt.Timestamp),
			AQI:       pt.AQI,
			Category:  string(pt.Category),
			Type:      models.PointTypeForecast,
		})
	}

	return resp
}

func round2(v *float64) *float64 {
	if v == nil {
		return nil
	}
	r := math.Round(*v*100) / 100
	return &r
}
