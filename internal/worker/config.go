// Package worker provides background history backfill for the forecast service.
package worker

import (
	"fmt"
	"sort"
	"strconv"
	"strings"
	"time"
)

// BackfillTarget represents a city whose history window is kept warm.
type BackfillTarget struct {
	// Name is stored as the location name of fetched rows.
	Name string

	// Points are the lat/lon coordinates to backfill.
	Points []Point

	// Priority determines backfill order (lower = higher priority).
	Priority int
}

// Point represents a geographic coordinate.
type Point struct {
	Lat float64
	Lon float64
}

// BackfillConfig holds configuration for the history backfill job.
type BackfillConfig struct {
	// Targets are the cities to backfill.
	// If empty, uses DefaultBackfillTargets.
	Targets []BackfillTarget

	// Concurrency is the number of concurrent backfill operations.
	// Default: 3
	Concurrency int

	// Timeout is the timeout for each point.
	// Default: 45 seconds
	Timeout time.Duration
}

// DefaultBackfillConfig returns the default backfill configuration.
func DefaultBackfillConfig() BackfillConfig {
	return BackfillConfig{
		Targets:     DefaultBackfillTargets(),
		Concurrency: 3,
		Timeout:     45 * time.Second,
	}
}

// DefaultBackfillTargets returns the default Indian metro targets.
func DefaultBackfillTargets() []BackfillTarget {
	return []BackfillTarget{
		{
			Name:     "Delhi",
			Priority: 1,
			Points: []Point{
				{Lat: 28.6139, Lon: 77.2090}, // Connaught Place
				{Lat: 28.5355, Lon: 77.3910}, // Noida
				{Lat: 28.4595, Lon: 77.0266}, // Gurugram
			},
		},
		{
			Name:     "Mumbai",
			Priority: 1,
			Points: []Point{
				{Lat: 19.0760, Lon: 72.8777}, // Bandra-Kurla
				{Lat: 18.9388, Lon: 72.8354}, // Fort
			},
		},
		{
			Name:     "Kolkata",
			Priority: 2,
			Points: []Point{
				{Lat: 22.5726, Lon: 88.3639},
			},
		},
		{
			Name:     "Chennai",
			Priority: 2,
			Points: []Point{
				{Lat: 13.0827, Lon: 80.2707},
			},
		},
		{
			Name:     "Bengaluru",
			Priority: 2,
			Points: []Point{
				{Lat: 12.9716, Lon: 77.5946},
			},
		},
		{
			Name:     "Chandigarh",
			Priority: 3,
			Points: []Point{
				{Lat: 30.727987, Lon: 76.693266},
			},
		},
		{
			Name:     "Lucknow",
			Priority: 3,
			Points: []Point{
				{Lat: 26.8467, Lon: 80.9462},
			},
		},
	}
}

// targetPoint is a point tagged with its target name.
type targetPoint struct {
	Point
	Name string
}

// allPoints returns all points from all targets, ordered by priority.
func (c BackfillConfig) allPoints() []targetPoint {
	targets := make([]BackfillTarget, len(c.Targets))
	copy(targets, c.Targets)
	sort.SliceStable(targets, func(i, j int) bool { return targets[i].Priority < targets[j].Priority })

	var points []targetPoint
	for _, target := range targets {
		for _, p := range target.Points {
			points = append(points, targetPoint{Point: p, Name: target.Name})
		}
	}
	return points
}

// TotalPoints returns the total number of points to backfill.
func (c BackfillConfig) TotalPoints() int {
	total := 0
	for _, target := range c.Targets {
		total += len(target.Points)
	}
	return total
}

// Target returns the target with the given name, ignoring case.
func (c BackfillConfig) Target(name string) (BackfillTarget, bool) {
	for _, t := range c.Targets {
		if strings.EqualFold(t.Name, name) {
			return t, true
		}
	}
	return BackfillTarget{}, false
}

// ParseTargets parses "Name:lat:lon" entries separated by semicolons, e.g.
// "Delhi:28.6139:77.2090;Pune:18.5204:73.8567". Repeated names add points to
// the same target. Priority follows first appearance.
func ParseTargets(s string) ([]BackfillTarget, error) {
	var targets []BackfillTarget
	index := make(map[string]int)

	for _, entry := range strings.Split(s, ";") {
		entry = strings.TrimSpace(entry)
		if entry == "" {
			continue
		}
		parts := strings.Split(entry, ":")
		if len(parts) != 3 {
			return nil, fmt.Errorf("invalid target %q: want name:lat:lon", entry)
		}
		name := strings.TrimSpace(parts[0])
		if name == "" {
			return nil, fmt.Errorf("invalid target %q: empty name", entry)
		}
		lat, err := strconv.ParseFloat(strings.TrimSpace(parts[1]), 64)
		if err != nil || lat < -90 || lat > 90 {
			return nil, fmt.Errorf("invalid target %q: bad latitude", entry)
		}
		lon, err := strconv.ParseFloat(strings.TrimSpace(parts[2]), 64)
		if err != nil || lon < -180 || lon > 180 {
			return nil, fmt.Errorf("invalid target %q: bad longitude", entry)
		}

		i, ok := index[name]
		if !ok {
			i = len(targets)
			index[name] = i
			targets = append(targets, BackfillTarget{Name: name, Priority: i + 1})
		}
		targets[i].Points = append(targets[i].Points, Point{Lat: lat, Lon: lon})
	}

	return targets, nil
}
