// Package openweathermap fetches hourly pollutant history from the
// OpenWeatherMap Air Pollution API.
package openweathermap

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"strconv"
	"time"

	"github.com/rs/zerolog"

	"github.com/airsense/aqiforecast/internal/airquality"
	"github.com/airsense/aqiforecast/internal/provider/resilience"
)

const (
	// ProviderName identifies this air quality provider.
	ProviderName = "openweathermap"

	// DefaultBaseURL is the OpenWeatherMap API base URL.
	DefaultBaseURL = "http://api.openweathermap.org/data/2.5"

	// DefaultTimeout bounds a single history request.
	DefaultTimeout = 15 * time.Second
)

// HTTPDoer is the interface for making HTTP requests.
type HTTPDoer interface {
	Do(req *http.Request) (*http.Response, error)
}

// ClientConfig holds configuration for the OpenWeatherMap client.
type ClientConfig struct {
	// APIKey is the OpenWeatherMap API key (required).
	APIKey string

	// BaseURL is the API base URL (optional, defaults to OpenWeatherMap API).
	BaseURL string

	// Timeout is the request timeout (optional, defaults to 15s).
	Timeout time.Duration

	// HTTPClient is the HTTP client to use (optional).
	// If nil, uses a resilient client with retries disabled.
	HTTPClient HTTPDoer

	// Registry records provider successes and failures (optional).
	Registry *resilience.Registry

	// Logger for client operations.
	Logger zerolog.Logger
}

// Client is an OpenWeatherMap air pollution history client.
type Client struct {
	apiKey     string
	baseURL    string
	httpClient HTTPDoer
	registry   *resilience.Registry
	logger     zerolog.Logger
}

// NewClient creates a new OpenWeatherMap client.
func NewClient(cfg ClientConfig) *Client {
	baseURL := cfg.BaseURL
	if baseURL == "" {
		baseURL = DefaultBaseURL
	}

	timeout := cfg.Timeout
	if timeout == 0 {
		timeout = DefaultTimeout
	}

	httpClient := cfg.HTTPClient
	if httpClient == nil {
		clientCfg := resilience.DefaultClientConfig(ProviderName)
		clientCfg.Timeout = timeout
		clientCfg.MaxRetries = 0
		clientCfg.Logger = cfg.Logger
		rc := resilience.NewClient(clientCfg)
		if cfg.Registry != nil {
			cfg.Registry.Register(ProviderName, rc)
		}
		httpClient = rc
	}

	return &Client{
		apiKey:     cfg.APIKey,
		baseURL:    baseURL,
		httpClient: httpClient,
		registry:   cfg.Registry,
		logger:     cfg.Logger.With().Str("provider", ProviderName).Logger(),
	}
}

// Name returns the provider name.
func (c *Client) Name() string {
	return ProviderName
}

// FetchHistory returns the hourly records the provider holds for [start, end].
// Every failure is logged and yields an empty slice.
func (c *Client) FetchHistory(ctx context.Context, lat, lon float64, start, end time.Time) []airquality.HourlyRecord {
	began := time.Now()

	resp, err := c.fetch(ctx, lat, lon, start, end)
	if err != nil {
		c.recordFailure(err)
		c.logger.Error().Err(err).
			Float64("lat", lat).
			Float64("lon", lon).
			Time("start", start).
			Time("end", end).
			Msg("history request failed")
		return []airquality.HourlyRecord{}
	}
	c.recordSuccess()

	records := make([]airquality.HourlyRecord, 0, len(resp.List))
	for i := range resp.List {
		records = append(records, toRecord(lat, lon, &resp.List[i]))
	}

	c.logger.Info().
		Int("records", len(records)).
		Dur("elapsed", time.Since(began)).
		Msg("history fetched")

	return records
}

func (c *Client) fetch(ctx context.Context, lat, lon float64, start, end time.Time) (*historyResponse, error) {
	params := url.Values{}
	params.Set("lat", strconv.FormatFloat(lat, 'f', -1, 64))
	params.Set("lon", strconv.FormatFloat(lon, 'f', -1, 64))
	params.Set("start", strconv.FormatInt(start.Unix(), 10))
	params.Set("end", strconv.FormatInt(end.Unix(), 10))
	params.Set("appid", c.apiKey)

	reqURL := fmt.Sprintf("%s/air_pollution/history?%s", c.baseURL, params.Encode())

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, reqURL, http.NoBody)
	if err != nil {
		return nil, fmt.Errorf("creating request: %w", err)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("executing request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("unexpected status code: %d", resp.StatusCode)
	}

	var out historyResponse
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		return nil, fmt.Errorf("decoding response: %w", err)
	}

	return &out, nil
}

func (c *Client) recordSuccess() {
	if c.registry != nil {
		c.registry.RecordSuccess(ProviderName)
	}
}

func (c *Client) recordFailure(err error) {
	if c.registry != nil {
		c.registry.RecordFailure(ProviderName, err)
	}
}

// toRecord maps one history entry onto an indexed hourly record.
func toRecord(lat, lon float64, entry *historyEntry) airquality.HourlyRecord {
	comp := entry.Components
	rec := airquality.HourlyRecord{
		Latitude:      lat,
		Longitude:     lon,
		HourTimestamp: airquality.TruncateHour(time.Unix(entry.Dt, 0)),
		UnixTimestamp: entry.Dt,
		PM25:          comp.PM25,
		PM10:          comp.PM10,
		NO2:           comp.NO2,
		SO2:           comp.SO2,
		CO:            comp.CO,
		O3:            comp.O3,
		NO:            comp.NO,
		NH3:           comp.NH3,
		DataSource:    airquality.DataSourceAPI,
	}
	rec.ApplyIndex(airquality.OverallIndex(rec.PollutantValues()))
	return rec
}
