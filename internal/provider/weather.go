package provider

import (
	"context"
	"fmt"
	"log/slog"
	"net/url"
	"sync"

	"github.com/dandantas/pulse/internal/model"
	"golang.org/x/sync/errgroup"
)

// DefaultWeatherFields maps reading fields to their location inside one record
var DefaultWeatherFields = FieldMap{
	"location":    "$.location",
	"condition":   "$.condition",
	"temperature": "$.temperature",
	"feels_like":  "$.feelsLike",
	"humidity":    "$.humidity",
	"wind_speed":  "$.windSpeed",
	"timestamp":   "$.timestamp",
}

// WeatherClient fetches each location with its own request
type WeatherClient struct {
	opts    Options
	caller  *caller
	extract *extractor
}

// NewWeatherClient creates a per-location weather fetcher
func NewWeatherClient(opts Options) (*WeatherClient, error) {
	if opts.BaseURL == "" {
		return nil, fmt.Errorf("weather provider base URL is required")
	}
	if opts.Concurrency <= 0 {
		opts.Concurrency = 4
	}

	ex, err := newExtractor(opts.RecordsPath, DefaultWeatherFields, opts.Fields)
	if err != nil {
		return nil, fmt.Errorf("weather provider: %w", err)
	}

	return &WeatherClient{
		opts:    opts,
		caller:  newCaller("weather", opts.Client, opts.Retry, opts.Breaker),
		extract: ex,
	}, nil
}

func (c *WeatherClient) Kind() model.DataKind {
	return model.KindWeather
}

// Fetch requests every location concurrently. A failing location is reported
// in Result.Failures and does not affect the others.
func (c *WeatherClient) Fetch(ctx context.Context, keys []string) (Result, error) {
	slots := make([]model.DataRecord, len(keys))
	failures := make(map[string]error)
	var mu sync.Mutex

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(c.opts.Concurrency)

	for i, location := range keys {
		g.Go(func() error {
			reading, err := c.fetchOne(gctx, location)
			if err != nil {
				slog.Warn("Failed to fetch weather for location", "location", location, "error", err)
				mu.Lock()
				failures[location] = err
				mu.Unlock()
				return nil
			}
			slots[i] = reading
			return nil
		})
	}
	_ = g.Wait()

	if err := ctx.Err(); err != nil {
		return Result{}, err
	}

	records := make([]model.DataRecord, 0, len(keys))
	for _, r := range slots {
		if r != nil {
			records = append(records, r)
		}
	}
	return Result{Records: records, Failures: failures}, nil
}

func (c *WeatherClient) fetchOne(ctx context.Context, location string) (model.WeatherReading, error) {
	u, err := c.opts.endpoint("/api/v1/weather", url.Values{"location": {location}})
	if err != nil {
		return model.WeatherReading{}, err
	}

	body, err := c.caller.get(ctx, u)
	if err != nil {
		return model.WeatherReading{}, err
	}

	raw, err := c.extract.records(body)
	if err != nil {
		return model.WeatherReading{}, err
	}
	if len(raw) == 0 {
		return model.WeatherReading{}, ErrNoData
	}

	return toReading(location, c.extract.values(raw[0]))
}

func toReading(location string, v map[string]any) (model.WeatherReading, error) {
	// The configured spelling wins so cache keys stay canonical.
	r := model.WeatherReading{
		Location:  location,
		Condition: coerceString(v["condition"]),
	}

	var err error
	if r.Temperature, err = coerceNumber(v["temperature"]); err != nil {
		return r, fmt.Errorf("temperature: %w", err)
	}
	if r.FeelsLike, err = coerceNumber(v["feels_like"]); err != nil {
		return r, fmt.Errorf("feels_like: %w", err)
	}
	humidity, err := coerceNumber(v["humidity"])
	if err != nil {
		return r, fmt.Errorf("humidity: %w", err)
	}
	r.Humidity = int(humidity)
	if r.WindSpeed, err = coerceNumber(v["wind_speed"]); err != nil {
		return r, fmt.Errorf("wind_speed: %w", err)
	}
	if r.Timestamp, err = coerceTime(v["timestamp"]); err != nil {
		return r, fmt.Errorf("timestamp: %w", err)
	}
	return r, nil
}
