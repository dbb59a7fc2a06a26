package config

import (
	"errors"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/caarlos0/env/v11"
	"github.com/dandantas/pulse/internal/model"
	"github.com/google/uuid"
	"github.com/robfig/cron/v3"
	"gopkg.in/yaml.v3"
)

// Sink types
const (
	SinkNone    = "none"
	SinkMongo   = "mongo"
	SinkLevelDB = "leveldb"
)

// Config holds all application configuration
type Config struct {
	// MongoDB Configuration
	MongoURI      string        `yaml:"mongo_uri" env:"MONGO_URI"`
	MongoDatabase string        `yaml:"mongo_database" env:"MONGO_DATABASE"`
	MongoTimeout  time.Duration `yaml:"mongo_timeout" env:"MONGO_TIMEOUT"`

	// HTTP Server Configuration
	HTTPPort         string        `yaml:"http_port" env:"HTTP_PORT"`
	HTTPReadTimeout  time.Duration `yaml:"http_read_timeout" env:"HTTP_READ_TIMEOUT"`
	HTTPWriteTimeout time.Duration `yaml:"http_write_timeout" env:"HTTP_WRITE_TIMEOUT"`

	// Logging Configuration
	LogLevel  string `yaml:"log_level" env:"LOG_LEVEL"`
	LogFormat string `yaml:"log_format" env:"LOG_FORMAT"`

	// CORS Configuration
	CORSAllowedOrigins   string `yaml:"cors_allowed_origins" env:"CORS_ALLOWED_ORIGINS"`
	CORSAllowedMethods   string `yaml:"cors_allowed_methods" env:"CORS_ALLOWED_METHODS"`
	CORSAllowedHeaders   string `yaml:"cors_allowed_headers" env:"CORS_ALLOWED_HEADERS"`
	CORSAllowCredentials bool   `yaml:"cors_allow_credentials" env:"CORS_ALLOW_CREDENTIALS"`
	CORSMaxAge           int    `yaml:"cors_max_age" env:"CORS_MAX_AGE"`

	// Scheduler and job Configuration
	SchedulerEnabled    bool          `yaml:"scheduler_enabled" env:"SCHEDULER_ENABLED"`
	WorkerPoolSize      int           `yaml:"worker_pool_size" env:"WORKER_POOL_SIZE"`
	JobQueueSize        int           `yaml:"job_queue_size" env:"JOB_QUEUE_SIZE"`
	LedgerRetention     time.Duration `yaml:"ledger_retention" env:"LEDGER_RETENTION"`
	LedgerSweepInterval time.Duration `yaml:"ledger_sweep_interval" env:"LEDGER_SWEEP_INTERVAL"`
	ReadSingleFlight    bool          `yaml:"read_single_flight" env:"READ_SINGLE_FLIGHT"`

	// Record sink Configuration
	SinkType    string `yaml:"sink_type" env:"SINK_TYPE"`
	ArchivePath string `yaml:"archive_path" env:"ARCHIVE_PATH"`

	Stock   KindConfig `yaml:"stock" envPrefix:"STOCK_"`
	Weather KindConfig `yaml:"weather" envPrefix:"WEATHER_"`
}

// KindConfig holds the settings of one data kind
type KindConfig struct {
	Keys            []string      `yaml:"keys" env:"KEYS"`
	PollingInterval time.Duration `yaml:"polling_interval" env:"POLLING_INTERVAL"`
	Schedule        string        `yaml:"schedule" env:"SCHEDULE"`
	StaleAfter      time.Duration `yaml:"stale_after" env:"STALE_AFTER"`
	JobKey          string        `yaml:"job_key" env:"JOB_KEY"`

	// Provider
	APIBaseURL       string            `yaml:"api_base_url" env:"API_BASE_URL"`
	APIKey           string            `yaml:"api_key" env:"API_KEY"`
	RecordsPath      string            `yaml:"records_path" env:"RECORDS_PATH"`
	Fields           map[string]string `yaml:"fields" env:"FIELDS"`
	Concurrency      int               `yaml:"concurrency" env:"CONCURRENCY"`
	RequestTimeout   time.Duration     `yaml:"request_timeout" env:"REQUEST_TIMEOUT"`
	RetryMaxAttempts int               `yaml:"retry_max_attempts" env:"RETRY_MAX_ATTEMPTS"`
	RetryDelay       time.Duration     `yaml:"retry_delay" env:"RETRY_DELAY"`
	RetryMaxDelay    time.Duration     `yaml:"retry_max_delay" env:"RETRY_MAX_DELAY"`
	BreakerThreshold int               `yaml:"breaker_threshold" env:"BREAKER_THRESHOLD"`
	BreakerTimeout   time.Duration     `yaml:"breaker_timeout" env:"BREAKER_TIMEOUT"`
	SimulatedLatency time.Duration     `yaml:"simulated_latency" env:"SIMULATED_LATENCY"`
}

// Simulated reports whether the kind runs without a real provider
func (k KindConfig) Simulated() bool {
	return k.APIBaseURL == ""
}

// ParsedJobKey returns the trigger key, or uuid.Nil when triggering is disabled
func (k KindConfig) ParsedJobKey() uuid.UUID {
	id, err := uuid.Parse(k.JobKey)
	if err != nil {
		return uuid.Nil
	}
	return id
}

// Kind returns the settings of kind
func (c *Config) Kind(kind model.DataKind) KindConfig {
	if kind == model.KindWeather {
		return c.Weather
	}
	return c.Stock
}

// Issues lists configuration gaps that leave the kind degraded but runnable
func (k KindConfig) Issues() []string {
	var issues []string
	if len(k.Keys) == 0 {
		issues = append(issues, "no keys configured")
	}
	if k.Simulated() {
		issues = append(issues, "no api base url, serving simulated data")
	} else if k.APIKey == "" {
		issues = append(issues, "no api key")
	}
	return issues
}

// Default returns the configuration used when nothing is overridden
func Default() *Config {
	return &Config{
		MongoURI:      "mongodb://localhost:27017/pulse?authSource=admin",
		MongoDatabase: "pulse",
		MongoTimeout:  10 * time.Second,

		HTTPPort:         "8080",
		HTTPReadTimeout:  30 * time.Second,
		HTTPWriteTimeout: 30 * time.Second,

		LogLevel:  "info",
		LogFormat: "json",

		CORSAllowedOrigins:   "*",
		CORSAllowedMethods:   "GET, POST, OPTIONS",
		CORSAllowedHeaders:   "*",
		CORSAllowCredentials: true,
		CORSMaxAge:           3600,

		SchedulerEnabled:    true,
		WorkerPoolSize:      2,
		JobQueueSize:        16,
		LedgerRetention:     24 * time.Hour,
		LedgerSweepInterval: 10 * time.Minute,

		SinkType:    SinkNone,
		ArchivePath: "data/archive",

		Stock: KindConfig{
			PollingInterval:  60 * time.Second,
			StaleAfter:       30 * time.Minute,
			Concurrency:      1,
			RequestTimeout:   30 * time.Second,
			RetryMaxAttempts: 3,
			RetryDelay:       500 * time.Millisecond,
			RetryMaxDelay:    10 * time.Second,
			BreakerThreshold: 5,
			BreakerTimeout:   60 * time.Second,
		},
		Weather: KindConfig{
			PollingInterval:  15 * time.Minute,
			StaleAfter:       time.Hour,
			Concurrency:      4,
			RequestTimeout:   30 * time.Second,
			RetryMaxAttempts: 3,
			RetryDelay:       500 * time.Millisecond,
			RetryMaxDelay:    10 * time.Second,
			BreakerThreshold: 5,
			BreakerTimeout:   60 * time.Second,
		},
	}
}

// Load builds the configuration from defaults, the optional CONFIG_FILE and
// environment variables, in increasing order of precedence
func Load() (*Config, error) {
	cfg := Default()

	if path := os.Getenv("CONFIG_FILE"); path != "" {
		if err := cfg.mergeFile(path); err != nil {
			return nil, err
		}
	}

	if err := env.Parse(cfg); err != nil {
		return nil, fmt.Errorf("parse env: %w", err)
	}

	cfg.Stock.Keys = cleanKeys(cfg.Stock.Keys)
	cfg.Weather.Keys = cleanKeys(cfg.Weather.Keys)

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func (c *Config) mergeFile(path string) error {
	b, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("read config file: %w", err)
	}
	if err := yaml.Unmarshal(b, c); err != nil {
		return fmt.Errorf("parse config file %s: %w", path, err)
	}
	return nil
}

// Validate checks values that would otherwise fail at runtime
func (c *Config) Validate() error {
	var errs []error

	switch c.SinkType {
	case SinkNone, SinkMongo, SinkLevelDB:
	default:
		errs = append(errs, fmt.Errorf("invalid SINK_TYPE %q (must be none, mongo or leveldb)", c.SinkType))
	}
	if c.SinkType == SinkLevelDB && c.ArchivePath == "" {
		errs = append(errs, errors.New("ARCHIVE_PATH is required for the leveldb sink"))
	}
	if c.WorkerPoolSize <= 0 {
		errs = append(errs, errors.New("WORKER_POOL_SIZE must be positive"))
	}

	for name, k := range map[string]KindConfig{"stock": c.Stock, "weather": c.Weather} {
		if err := k.validate(); err != nil {
			errs = append(errs, fmt.Errorf("%s: %w", name, err))
		}
	}

	return errors.Join(errs...)
}

func (k KindConfig) validate() error {
	if k.Schedule == "" && k.PollingInterval <= 0 {
		return errors.New("polling interval must be positive")
	}
	if k.Schedule != "" {
		p := cron.NewParser(cron.Minute | cron.Hour | cron.Dom | cron.Month | cron.Dow | cron.Descriptor)
		if _, err := p.Parse(k.Schedule); err != nil {
			return fmt.Errorf("invalid schedule %q: %w", k.Schedule, err)
		}
	}
	if k.StaleAfter <= 0 {
		return errors.New("stale threshold must be positive")
	}
	if k.JobKey != "" {
		if _, err := uuid.Parse(k.JobKey); err != nil {
			return fmt.Errorf("job key must be a UUID: %w", err)
		}
	}
	return nil
}

func cleanKeys(keys []string) []string {
	out := make([]string, 0, len(keys))
	for _, k := range keys {
		if k = strings.TrimSpace(k); k != "" {
			out = append(out, k)
		}
	}
	return out
}
