package models

// IndexQuery is the query string of GET /v1/aqi/index. Concentrations are
// µg/m³, CO included.
type IndexQuery struct {
	PM25 *float64 `query:"pm2_5" validate:"omitempty,gte=0"`
	PM10 *float64 `query:"pm10" validate:"omitempty,gte=0"`
	NO2  *float64 `query:"no2" validate:"omitempty,gte=0"`
	SO2  *float64 `query:"so2" validate:"omitempty,gte=0"`
	CO   *float64 `query:"co" validate:"omitempty,gte=0"`
	O3   *float64 `query:"o3" validate:"omitempty,gte=0"`
}

// IndexResponse is the CPCB index for a set of concentrations.
type IndexResponse struct {
	AQI               *int           `json:"aqi"`
	Category          string         `json:"category"`
	DominantPollutant *string        `json:"dominant_pollutant"`
	SubIndices        map[string]int `json:"sub_indices"`
}
