package airquality

import "math"

// Category is a CPCB AQI band label.
type Category string

const (
	CategoryGood         Category = "Good"
	CategorySatisfactory Category = "Satisfactory"
	CategoryModerate     Category = "Moderate"
	CategoryPoor         Category = "Poor"
	CategoryVeryPoor     Category = "Very Poor"
	CategorySevere       Category = "Severe"
	CategoryUnknown      Category = "Unknown"
)

// Index bounds on the CPCB scale.
const (
	MinIndex = 0
	MaxIndex = 500
)

// Breakpoint maps a concentration range onto an AQI sub-range.
type Breakpoint struct {
	ConcLow  float64
	ConcHigh float64
	AQILow   int
	AQIHigh  int
}

// Breakpoints holds the India CPCB tables. Concentrations are µg/m³,
// except CO which is mg/m³.
var Breakpoints = map[Pollutant][]Breakpoint{
	PollutantPM25: {
		{0, 30, 0, 50}, {31, 60, 51, 100}, {61, 90, 101, 200},
		{91, 120, 201, 300}, {121, 250, 301, 400}, {251, 380, 401, 500},
	},
	PollutantPM10: {
		{0, 50, 0, 50}, {51, 100, 51, 100}, {101, 250, 101, 200},
		{251, 350, 201, 300}, {351, 430, 301, 400}, {431, 550, 401, 500},
	},
	PollutantNO2: {
		{0, 40, 0, 50}, {41, 80, 51, 100}, {81, 180, 101, 200},
		{181, 280, 201, 300}, {281, 400, 301, 400}, {401, 550, 401, 500},
	},
	PollutantSO2: {
		{0, 40, 0, 50}, {41, 80, 51, 100}, {81, 380, 101, 200},
		{381, 800, 201, 300}, {801, 1600, 301, 400}, {1601, 2100, 401, 500},
	},
	PollutantCO: {
		{0, 1.0, 0, 50}, {1.1, 2.0, 51, 100}, {2.1, 10, 101, 200},
		{10.1, 17, 201, 300}, {17.1, 34, 301, 400}, {34.1, 46, 401, 500},
	},
	PollutantO3: {
		{0, 50, 0, 50}, {51, 100, 51, 100}, {101, 168, 101, 200},
		{169, 208, 201, 300}, {209, 748, 301, 400}, {749, 1000, 401, 500},
	},
}

// PollutantValues maps pollutants to raw concentrations (CO in µg/m³).
type PollutantValues map[Pollutant]float64

// IndexResult is the outcome of reducing sub-indices to one AQI.
type IndexResult struct {
	AQI               *int
	DominantPollutant *Pollutant
	SubIndices        map[Pollutant]int
}

// SubIndex converts a concentration to a CPCB sub-index by interpolating
// within the matching breakpoint. CO must already be in mg/m³.
//
// A nil concentration, an unknown pollutant, or a concentration that falls
// between two breakpoints (e.g. PM2.5 30.5) yields nil.
func SubIndex(p Pollutant, concentration *float64) *int {
	table, ok := Breakpoints[p]
	if !ok || concentration == nil {
		return nil
	}
	c := *concentration

	for _, bp := range table {
		if c >= bp.ConcLow && c <= bp.ConcHigh {
			if bp.ConcHigh == bp.ConcLow {
				return Int(bp.AQILow)
			}
			aqi := float64(bp.AQIHigh-bp.AQILow)/(bp.ConcHigh-bp.ConcLow)*(c-bp.ConcLow) + float64(bp.AQILow)
			return Int(int(math.RoundToEven(aqi)))
		}
	}

	if c > table[len(table)-1].ConcHigh {
		return Int(MaxIndex)
	}
	if c < table[0].ConcLow {
		return Int(MinIndex)
	}
	return nil
}

// OverallIndex computes every available sub-index and reduces them to the
// maximum. CO is converted from µg/m³ to mg/m³ here.
func OverallIndex(values PollutantValues) IndexResult {
	subIndices := make(map[Pollutant]int, len(values))

	for _, p := range Pollutants {
		c, ok := values[p]
		if !ok {
			continue
		}
		if p == PollutantCO {
			c /= 1000.0
		}
		if idx := SubIndex(p, &c); idx != nil {
			subIndices[p] = *idx
		}
	}

	if len(subIndices) == 0 {
		return IndexResult{SubIndices: map[Pollutant]int{}}
	}

	var (
		dominant Pollutant
		maxIndex = -1
	)
	for _, p := range Pollutants {
		if idx, ok := subIndices[p]; ok && idx > maxIndex {
			dominant = p
			maxIndex = idx
		}
	}

	return IndexResult{
		AQI:               Int(maxIndex),
		DominantPollutant: &dominant,
		SubIndices:        subIndices,
	}
}

// CategoryOf returns the CPCB band for an AQI value.
func CategoryOf(aqi float64) Category {
	switch {
	case aqi <= 50:
		return CategoryGood
	case aqi <= 100:
		return CategorySatisfactory
	case aqi <= 200:
		return CategoryModerate
	case aqi <= 300:
		return CategoryPoor
	case aqi <= 400:
		return CategoryVeryPoor
	default:
		return CategorySevere
	}
}

// CategoryForIndex is CategoryOf for an optional integer index.
func CategoryForIndex(aqi *int) Category {
	if aqi == nil {
		return CategoryUnknown
	}
	return CategoryOf(float64(*aqi))
}
