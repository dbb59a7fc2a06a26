package config

import (
	"bytes"
	"encoding/json"
	"log/slog"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadDefaults(t *testing.T) {
	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, 60*time.Second, cfg.Stock.PollingInterval)
	assert.Equal(t, 15*time.Minute, cfg.Weather.PollingInterval)
	assert.Equal(t, 30*time.Minute, cfg.Stock.StaleAfter)
	assert.Equal(t, time.Hour, cfg.Weather.StaleAfter)
	assert.Equal(t, SinkNone, cfg.SinkType)
	assert.True(t, cfg.Stock.Simulated())
	assert.Equal(t, uuid.Nil, cfg.Stock.ParsedJobKey())
}

func TestLoadFromEnv(t *testing.T) {
	key := uuid.New()
	t.Setenv("STOCK_KEYS", "AAPL, MSFT,,GOOG")
	t.Setenv("STOCK_POLLING_INTERVAL", "2m")
	t.Setenv("STOCK_JOB_KEY", key.String())
	t.Setenv("STOCK_FIELDS", "price:$.last")
	t.Setenv("WEATHER_KEYS", "London,New York")
	t.Setenv("WEATHER_STALE_AFTER", "90m")
	t.Setenv("WEATHER_API_BASE_URL", "https://weather.example.com")
	t.Setenv("SINK_TYPE", "leveldb")
	t.Setenv("READ_SINGLE_FLIGHT", "true")

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, []string{"AAPL", "MSFT", "GOOG"}, cfg.Stock.Keys)
	assert.Equal(t, 2*time.Minute, cfg.Stock.PollingInterval)
	assert.Equal(t, key, cfg.Stock.ParsedJobKey())
	assert.Equal(t, "$.last", cfg.Stock.Fields["price"])
	assert.Equal(t, []string{"London", "New York"}, cfg.Weather.Keys)
	assert.Equal(t, 90*time.Minute, cfg.Weather.StaleAfter)
	assert.False(t, cfg.Weather.Simulated())
	assert.Equal(t, 4, cfg.Weather.Concurrency)
	assert.Equal(t, SinkLevelDB, cfg.SinkType)
	assert.True(t, cfg.ReadSingleFlight)
}

func TestLoadFileThenEnv(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "pulse.yaml")
	require.NoError(t, os.WriteFile(path, []byte(`
http_port: "9090"
stock:
  keys: [IBM, ORCL]
  schedule: "*/5 * * * *"
weather:
  keys: [Paris]
  polling_interval: 5m
`), 0o600))

	t.Setenv("CONFIG_FILE", path)
	t.Setenv("WEATHER_POLLING_INTERVAL", "10m")

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, "9090", cfg.HTTPPort)
	assert.Equal(t, []string{"IBM", "ORCL"}, cfg.Stock.Keys)
	assert.Equal(t, "*/5 * * * *", cfg.Stock.Schedule)
	assert.Equal(t, 30*time.Minute, cfg.Stock.StaleAfter)
	assert.Equal(t, 10*time.Minute, cfg.Weather.PollingInterval)
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(*Config)
	}{
		{"bad sink", func(c *Config) { c.SinkType = "s3" }},
		{"bad schedule", func(c *Config) { c.Stock.Schedule = "every day" }},
		{"bad job key", func(c *Config) { c.Weather.JobKey = "not-a-uuid" }},
		{"zero interval", func(c *Config) { c.Stock.PollingInterval = 0 }},
		{"zero stale threshold", func(c *Config) { c.Weather.StaleAfter = 0 }},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := Default()
			tt.mutate(cfg)
			assert.Error(t, cfg.Validate())
		})
	}

	assert.NoError(t, Default().Validate())
}

func TestNewLogger(t *testing.T) {
	var buf bytes.Buffer
	logger := NewLogger(&Config{LogLevel: "warn", LogFormat: "json"}, &buf)

	logger.Info("hidden")
	logger.Warn("shown", "kind", "stock")

	var line map[string]any
	require.NoError(t, json.Unmarshal(buf.Bytes(), &line))
	assert.Equal(t, "shown", line["msg"])
	assert.Equal(t, "pulse", line["service"])
	assert.Equal(t, "stock", line["kind"])
	assert.Equal(t, slog.LevelWarn, ParseLevel("WARNING"))
}

func TestKindConfigIssues(t *testing.T) {
	tests := []struct {
		name string
		cfg  KindConfig
		want []string
	}{
		{
			name: "fully configured",
			cfg:  KindConfig{Keys: []string{"AAPL"}, APIBaseURL: "https://api.example.com", APIKey: "k"},
			want: nil,
		},
		{
			name: "simulated without keys",
			cfg:  KindConfig{},
			want: []string{"no keys configured", "no api base url, serving simulated data"},
		},
		{
			name: "missing api key",
			cfg:  KindConfig{Keys: []string{"AAPL"}, APIBaseURL: "https://api.example.com"},
			want: []string{"no api key"},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, tt.cfg.Issues())
		})
	}
}
