package forecast

import (
	"errors"
	"fmt"
	"math"
	"time"

	"github.com/airsense/aqiforecast/internal/airquality"
)

// ErrInsufficientData is wrapped by PredictionError when the window is too short.
var ErrInsufficientData = errors.New("insufficient data")

// MinWindowRecords is the fewest stored hours a forecast is attempted on.
const MinWindowRecords = 12

// HistoryPoints is the number of observed hours returned with a forecast.
const HistoryPoints = 12

// ErrorCode classifies a PredictionError.
type ErrorCode string

const (
	CodeInsufficientData ErrorCode = "insufficient_data"
	CodePredictionFailed ErrorCode = "prediction_failed"
	CodeInvalidRequest   ErrorCode = "invalid_request"
)

// PredictionError is the only error type returned by Service.GetPrediction.
type PredictionError struct {
	Code ErrorCode
	// Summary is a short label such as "Insufficient data".
	Summary string
	// Message is the human readable detail.
	Message string
	Err     error
}

func (e *PredictionError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %s: %v", e.Code, e.Message, e.Err)
	}
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

func (e *PredictionError) Unwrap() error {
	return e.Err
}

func insufficientData(n int) *PredictionError {
	return &PredictionError{
		Code:    CodeInsufficientData,
		Summary: "Insufficient data",
		Message: fmt.Sprintf("Only %d hours available", n),
		Err:     ErrInsufficientData,
	}
}

func predictionFailed(err error) *PredictionError {
	return &PredictionError{
		Code:    CodePredictionFailed,
		Summary: err.Error(),
		Message: "Failed to generate prediction",
		Err:     err,
	}
}

func invalidRequest(msg string) *PredictionError {
	return &PredictionError{
		Code:    CodeInvalidRequest,
		Summary: "Invalid coordinates",
		Message: msg,
	}
}

// Request asks for a forecast at a coordinate.
type Request struct {
	Latitude     float64
	Longitude    float64
	LocationName string
	// CurrentAQIOverride replaces the stored AQI in the current snapshot,
	// e.g. with a reading from another network.
	CurrentAQIOverride *float64
}

// Validate checks coordinate ranges.
func (r Request) Validate() error {
	if math.IsNaN(r.Latitude) || r.Latitude < -90 || r.Latitude > 90 {
		return invalidRequest("latitude must be between -90 and 90")
	}
	if math.IsNaN(r.Longitude) || r.Longitude < -180 || r.Longitude > 180 {
		return invalidRequest("longitude must be between -180 and 180")
	}
	if r.CurrentAQIOverride != nil && math.IsNaN(*r.CurrentAQIOverride) {
		return invalidRequest("current_aqi must be a number")
	}
	return nil
}

// Location echoes the requested coordinate.
type Location struct {
	Name      string
	Latitude  float64
	Longitude float64
}

// Current is the latest observed hour.
type Current struct {
	Timestamp         time.Time
	AQI               *float64
	Category          airquality.Category
	DominantPollutant *airquality.Pollutant
}

// Observation is one stored hour returned as history.
type Observation struct {
	Timestamp         time.Time
	AQI               *int
	Category          airquality.Category
	DominantPollutant *airquality.Pollutant
	PM25              *float64
	PM10              *float64
}

// Metadata describes how a forecast was produced.
type Metadata struct {
	ProcessingTime time.Duration
	DataPointsUsed int
	APICallsMade   int
	ModelVersion   string
	GeneratedAt    time.Time
}

// Prediction is a complete forecast response.
type Prediction struct {
	Location   Location
	Current    Current
	Historical []Observation
	Forecast   []Point
	Metadata   Metadata
}

func observationOf(rec *airquality.HourlyRecord) Observation {
	return Observation{
		Timestamp:         rec.HourTimestamp,
		AQI:               rec.IndianAQI,
		Category:          airquality.CategoryForIndex(rec.IndianAQI),
		DominantPollutant: rec.DominantPollutant,
		PM25:              rec.PM25,
		PM10:              rec.PM10,
	}
}

func currentOf(rec *airquality.HourlyRecord, override *float64) Current {
	c := Current{
		Timestamp:         rec.HourTimestamp,
		Category:          airquality.CategoryForIndex(rec.IndianAQI),
		DominantPollutant: rec.DominantPollutant,
	}
	if rec.IndianAQI != nil {
		v := float64(*rec.IndianAQI)
		c.AQI = &v
	}
	return c.withOverride(override)
}

func (c Current) withOverride(override *float64) Current {
	if override == nil {
		return c
	}
	v := roundTo(*override, 2)
	c.AQI = &v
	c.Category = airquality.CategoryOf(*override)
	return c
}
