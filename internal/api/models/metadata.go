package models

// CategoryBand is one CPCB AQI band.
type CategoryBand struct {
	Name string `json:"name"`
	Min  int    `json:"min"`
	Max  int    `json:"max"`
}

// Enums represents the enum values used by the API.
type Enums struct {
	Pollutants []string       `json:"pollutants"`
	Categories []CategoryBand `json:"categories"`
	Horizons   []int          `json:"horizons"`
}
