package provider

import (
	"math"
	"time"
)

// RetryConfig configures exponential backoff for provider calls
type RetryConfig struct {
	MaxAttempts  int
	InitialDelay time.Duration
	MaxDelay     time.Duration
	Multiplier   float64
}

// SetDefaults fills zero values
func (rc *RetryConfig) SetDefaults() {
	if rc.MaxAttempts == 0 {
		rc.MaxAttempts = 3
	}
	if rc.InitialDelay == 0 {
		rc.InitialDelay = 500 * time.Millisecond
	}
	if rc.MaxDelay == 0 {
		rc.MaxDelay = 10 * time.Second
	}
	if rc.Multiplier == 0 {
		rc.Multiplier = 2.0
	}
}

// RetryStrategy handles exponential backoff retry logic
type RetryStrategy struct {
	config RetryConfig
}

// NewRetryStrategy creates a new retry strategy
func NewRetryStrategy(config RetryConfig) *RetryStrategy {
	config.SetDefaults()
	return &RetryStrategy{
		config: config,
	}
}

// CalculateDelay returns min(initial * multiplier^(attempt-1), max)
func (rs *RetryStrategy) CalculateDelay(attempt int) time.Duration {
	if attempt <= 0 {
		return 0
	}

	delay := float64(rs.config.InitialDelay) * math.Pow(rs.config.Multiplier, float64(attempt-1))
	if delay > float64(rs.config.MaxDelay) {
		delay = float64(rs.config.MaxDelay)
	}

	return time.Duration(delay)
}

// ShouldRetry determines if a retry should be attempted based on the outcome
func (rs *RetryStrategy) ShouldRetry(attempt int, statusCode int, err error) bool {
	if attempt >= rs.config.MaxAttempts {
		return false
	}

	if err != nil {
		return true
	}

	return retryableStatus(statusCode)
}

// MaxAttempts returns the maximum number of attempts
func (rs *RetryStrategy) MaxAttempts() int {
	return rs.config.MaxAttempts
}

// retryableStatus reports 5xx and 429 responses
func retryableStatus(statusCode int) bool {
	return statusCode == 429 || (statusCode >= 500 && statusCode < 600)
}
