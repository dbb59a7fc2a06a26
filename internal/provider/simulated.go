package provider

import (
	"context"
	"math"
	"math/rand/v2"
	"time"

	"github.com/dandantas/pulse/internal/model"
)

var weatherConditions = []string{"Sunny", "Partly Cloudy", "Cloudy", "Rainy", "Thunderstorms", "Snowy", "Foggy", "Windy"}

// Simulated generates plausible random records without calling any provider.
// It is used when no provider base URL is configured.
type Simulated struct {
	kind    model.DataKind
	latency time.Duration
	now     func() time.Time
}

// NewSimulated creates a random-data fetcher for kind
func NewSimulated(kind model.DataKind, latency time.Duration) *Simulated {
	return &Simulated{kind: kind, latency: latency, now: time.Now}
}

func (s *Simulated) Kind() model.DataKind {
	return s.kind
}

func (s *Simulated) Fetch(ctx context.Context, keys []string) (Result, error) {
	if s.latency > 0 {
		timer := time.NewTimer(s.latency)
		defer timer.Stop()
		select {
		case <-timer.C:
		case <-ctx.Done():
			return Result{}, ctx.Err()
		}
	}

	now := s.now().UTC()
	records := make([]model.DataRecord, 0, len(keys))
	for _, key := range keys {
		if s.kind == model.KindStock {
			records = append(records, randomQuote(key, now))
		} else {
			records = append(records, randomReading(key, now))
		}
	}
	return Result{Records: records}, nil
}

func randomQuote(symbol string, now time.Time) model.StockQuote {
	price := round2(100 + rand.Float64()*900)
	change := round2(rand.Float64()*20 - 10)
	return model.StockQuote{
		Symbol:        symbol,
		Price:         price,
		Change:        change,
		PercentChange: round2(change / price * 100),
		Volume:        1_000_000 + rand.Int64N(9_000_000),
		Timestamp:     now,
	}
}

func randomReading(location string, now time.Time) model.WeatherReading {
	temp := round1(rand.Float64()*40 - 5)
	return model.WeatherReading{
		Location:    location,
		Condition:   weatherConditions[rand.IntN(len(weatherConditions))],
		Temperature: temp,
		FeelsLike:   round1(temp + rand.Float64()*6 - 3),
		Humidity:    30 + rand.IntN(61),
		WindSpeed:   round1(rand.Float64() * 30),
		Timestamp:   now,
	}
}

func round1(v float64) float64 { return math.Round(v*10) / 10 }
func round2(v float64) float64 { return math.Round(v*100) / 100 }
