package handler

import (
	"net/http"

	"github.com/airsense/aqiforecast/internal/airquality"
	"github.com/airsense/aqiforecast/internal/api/models"
	"github.com/airsense/aqiforecast/internal/api/response"
	"github.com/airsense/aqiforecast/internal/forecast"
)

// MetadataHandler handles metadata endpoints.
type MetadataHandler struct {
	bundle *forecast.ModelBundle
}

// NewMetadataHandler creates a new MetadataHandler. bundle may be nil.
func NewMetadataHandler(bundle *forecast.ModelBundle) *MetadataHandler {
	return &MetadataHandler{bundle: bundle}
}

// categoryBands lists the CPCB bands in ascending order.
var categoryBands = []models.CategoryBand{
	{Name: string(airquality.CategoryGood), Min: 0, Max: 50},
	{Name: string(airquality.CategorySatisfactory), Min: 51, Max: 100},
	{Name: string(airquality.CategoryModerate), Min: 101, Max: 200},
	{Name: string(airquality.CategoryPoor), Min: 201, Max: 300},
	{Name: string(airquality.CategoryVeryPoor), Min: 301, Max: 400},
	{Name: string(airquality.CategorySevere), Min: 401, Max: airquality.MaxIndex},
}

// GetEnums handles GET /v1/metadata/enums - get enum values used by the API.
func (h *MetadataHandler) GetEnums(w http.ResponseWriter, r *http.Request) {
	pollutants := make([]string, 0, len(airquality.Pollutants))
	for _, p := range airquality.Pollutants {
		pollutants = append(pollutants, string(p))
	}

	horizons := []int{}
	if h.bundle != nil {
		horizons = h.bundle.Horizons()
	}

	response.JSON(w, r, http.StatusOK, models.Enums{
		Pollutants: pollutants,
		Categories: categoryBands,
		Horizons:   horizons,
	})
}
