package handler

import (
	"net/http"

	"github.com/airsense/aqiforecast/internal/airquality"
	"github.com/airsense/aqiforecast/internal/api/models"
	"github.com/airsense/aqiforecast/internal/api/response"
)

// AQIHandler exposes the CPCB index calculator.
type AQIHandler struct{}

// NewAQIHandler creates a new AQIHandler.
func NewAQIHandler() *AQIHandler {
	return &AQIHandler{}
}

// indexParams maps query parameters to pollutants.
var indexParams = []struct {
	name      string
	pollutant airquality.Pollutant
}{
	{"pm2_5", airquality.PollutantPM25},
	{"pm10", airquality.PollutantPM10},
	{"no2", airquality.PollutantNO2},
	{"so2", airquality.PollutantSO2},
	{"co", airquality.PollutantCO},
	{"o3", airquality.PollutantO3},
}

// GetIndex handles GET /v1/aqi/index - CPCB AQI from concentrations.
func (h *AQIHandler) GetIndex(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()

	var (
		query models.IndexQuery
		errs  []models.FieldError
	)
	values := make(airquality.PollutantValues, len(indexParams))
	targets := map[string]**float64{
		"pm2_5": &query.PM25,
		"pm10":  &query.PM10,
		"no2":   &query.NO2,
		"so2":   &query.SO2,
		"co":    &query.CO,
		"o3":    &query.O3,
	}

	for _, p := range indexParams {
		v, fe := parseFloatParam(q, p.name)
		if fe != nil {
			errs = append(errs, *fe)
			continue
		}
		*targets[p.name] = v
		if v != nil {
			values[p.pollutant] = *v
		}
	}
	if len(errs) > 0 {
		response.BadRequest(w, r, "invalid concentrations", errs)
		return
	}
	if err := validate.StructCtx(r.Context(), query); err != nil {
		response.BadRequest(w, r, "invalid concentrations", fieldErrors(err))
		return
	}
	if len(values) == 0 {
		response.BadRequest(w, r, "at least one pollutant concentration is required", nil)
		return
	}

	result := airquality.OverallIndex(values)

	subIndices := make(map[string]int, len(result.SubIndices))
	for p, idx := range result.SubIndices {
		subIndices[string(p)] = idx
	}

	response.JSON(w, r, http.StatusOK, models.IndexResponse{
		AQI:               result.AQI,
		Category:          string(airquality.CategoryForIndex(result.AQI)),
		DominantPollutant: pollutantName(result.DominantPollutant),
		SubIndices:        subIndices,
	})
}

func pollutantName(p *airquality.Pollutant) *string {
	if p == nil {
		return nil
	}
	s := string(*p)
	return &s
}
