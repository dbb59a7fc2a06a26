package model

import (
	"strings"
	"time"
)

// DataKind identifies a family of tracked data
type DataKind string

const (
	KindStock   DataKind = "stock"
	KindWeather DataKind = "weather"
)

// Kinds lists every supported data kind
var Kinds = []DataKind{KindStock, KindWeather}

// ParseKind resolves a kind name case-insensitively
func ParseKind(s string) (DataKind, bool) {
	switch DataKind(strings.ToLower(strings.TrimSpace(s))) {
	case KindStock:
		return KindStock, true
	case KindWeather:
		return KindWeather, true
	}
	return "", false
}

// JobType returns the ledger job type recorded for runs of this kind
func (k DataKind) JobType() string {
	switch k {
	case KindStock:
		return "StockRefresh"
	case KindWeather:
		return "WeatherRefresh"
	default:
		return string(k)
	}
}

// NormalizeKey returns the lookup form of a tracked key.
// Keys compare case-insensitively; "aapl" and "AAPL" are the same key.
func NormalizeKey(key string) string {
	return strings.ToUpper(strings.TrimSpace(key))
}

// DataRecord is a single fetched value for one tracked key
type DataRecord interface {
	TrackedKey() string
	DataKind() DataKind
	CapturedAt() time.Time
}

// StockQuote represents a point-in-time stock quote
type StockQuote struct {
	Symbol        string    `json:"symbol" bson:"symbol"`
	Price         float64   `json:"price" bson:"price"`
	Change        float64   `json:"change" bson:"change"`
	PercentChange float64   `json:"percent_change" bson:"percent_change"`
	Volume        int64     `json:"volume" bson:"volume"`
	Timestamp     time.Time `json:"timestamp" bson:"timestamp"`
}

func (q StockQuote) TrackedKey() string    { return q.Symbol }
func (q StockQuote) DataKind() DataKind    { return KindStock }
func (q StockQuote) CapturedAt() time.Time { return q.Timestamp }

// WeatherReading represents current conditions at a location
type WeatherReading struct {
	Location    string    `json:"location" bson:"location"`
	Condition   string    `json:"condition" bson:"condition"`
	Temperature float64   `json:"temperature" bson:"temperature"`
	FeelsLike   float64   `json:"feels_like" bson:"feels_like"`
	Humidity    int       `json:"humidity" bson:"humidity"`
	WindSpeed   float64   `json:"wind_speed" bson:"wind_speed"`
	Timestamp   time.Time `json:"timestamp" bson:"timestamp"`
}

func (w WeatherReading) TrackedKey() string    { return w.Location }
func (w WeatherReading) DataKind() DataKind    { return KindWeather }
func (w WeatherReading) CapturedAt() time.Time { return w.Timestamp }

// WithCapturedAt returns rec stamped with t when the provider gave no capture time
func WithCapturedAt(rec DataRecord, t time.Time) DataRecord {
	if !rec.CapturedAt().IsZero() {
		return rec
	}
	switch r := rec.(type) {
	case StockQuote:
		r.Timestamp = t.UTC()
		return r
	case WeatherReading:
		r.Timestamp = t.UTC()
		return r
	}
	return rec
}

// CacheEntry is the latest known record for a key.
// Entries are replaced wholesale, never mutated.
type CacheEntry struct {
	Record      DataRecord `json:"record"`
	LastUpdated time.Time  `json:"last_updated"`
}
