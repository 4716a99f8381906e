package openweathermap

// historyResponse is the /air_pollution/history payload.
type historyResponse struct {
	Coord struct {
		Lat float64 `json:"lat"`
		Lon float64 `json:"lon"`
	} `json:"coord"`
	List []historyEntry `json:"list"`
}

type historyEntry struct {
	Dt   int64 `json:"dt"`
	Main struct {
		AQI int `json:"aqi"`
	} `json:"main"`
	Components components `json:"components"`
}

// components are concentrations in µg/m³. Absent keys decode to nil.
type components struct {
	CO   *float64 `json:"co"`
	NO   *float64 `json:"no"`
	NO2  *float64 `json:"no2"`
	O3   *float64 `json:"o3"`
	SO2  *float64 `json:"so2"`
	PM25 *float64 `json:"pm2_5"`
	PM10 *float64 `json:"pm10"`
	NH3  *float64 `json:"nh3"`
}
