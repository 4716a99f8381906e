package models

// ForecastQuery is the query string of GET /v1/forecast.
type ForecastQuery struct {
	Lat          *float64 `query:"lat" validate:"required,gte=-90,lte=90"`
	Lon          *float64 `query:"lon" validate:"required,gte=-180,lte=180"`
	LocationName string   `query:"location_name" validate:"max=200"`
	CurrentAQI   *float64 `query:"current_aqi" validate:"omitempty,gte=0,lte=1000"`
}

// ForecastResponse is the success body of GET /v1/forecast.
type ForecastResponse struct {
	Success        bool              `json:"success"`
	Location       ForecastLocation  `json:"location"`
	Current        CurrentConditions `json:"current"`
	HistoricalData []HistoricalPoint `json:"historical_data"`
	ForecastData   []ForecastPoint   `json:"forecast_data"`
	Metadata       ForecastMetadata  `json:"metadata"`
}

// ForecastLocation echoes the requested coordinate.
type ForecastLocation struct {
	Name      *string `json:"name"`
	Latitude  float64 `json:"latitude"`
	Longitude float64 `json:"longitude"`
}

// CurrentConditions is the latest observed hour.
type CurrentConditions struct {
	Timestamp         Timestamp `json:"timestamp"`
	AQI               *float64  `json:"aqi"`
	Category          string    `json:"category"`
	DominantPollutant *string   `json:"dominant_pollutant"`
}

// Point types.
const (
	PointTypeActual   = "actual"
	PointTypeForecast = "forecast"
)

// HistoricalPoint is one observed hour.
type HistoricalPoint struct {
	Timestamp         Timestamp `json:"timestamp"`
	AQI               *int      `json:"aqi"`
	Category          string    `json:"category"`
	DominantPollutant *string   `json:"dominant_pollutant"`
	PM25              *float64  `json:"pm2_5"`
	PM10              *float64  `json:"pm10"`
	Type              string    `json:"type"`
}

// ForecastPoint is the prediction for one horizon.
type ForecastPoint struct {
	Hour      int       `json:"hour"`
	Timestamp Timestamp `json:"timestamp"`
	AQI       float64   `json:"aqi"`
	Category  string    `json:"category"`
	Type      string    `json:"type"`
}

// ForecastMetadata describes how the forecast was produced.
type ForecastMetadata struct {
	DataPointsUsed   int       `json:"data_points_used"`
	APICallsMade     int       `json:"api_calls_made"`
	ProcessingTimeMS int64     `json:"processing_time_ms"`
	ModelVersion     string    `json:"model_version"`
	GeneratedAt      Timestamp `json:"generated_at"`
}

// ForecastError is the failure body of GET /v1/forecast.
type ForecastError struct {
	Success bool   `json:"success"`
	Error   string `json:"error"`
	Message string `json:"message"`
	Code    string `json:"code,omitempty"`
}
