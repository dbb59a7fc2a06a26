package provider

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"time"
)

const maxResponseBytes = 1024 * 1024

// NewHTTPClient creates an HTTP client with connection pooling
func NewHTTPClient(timeout time.Duration) *http.Client {
	return &http.Client{
		Timeout: timeout,
		Transport: &http.Transport{
			MaxIdleConns:        100,
			MaxIdleConnsPerHost: 10,
			IdleConnTimeout:     90 * time.Second,
			TLSHandshakeTimeout: 10 * time.Second,
		},
	}
}

// caller performs provider GETs with retry and circuit breaking
type caller struct {
	name    string
	client  *http.Client
	retry   *RetryStrategy
	breaker *CircuitBreaker
}

func newCaller(name string, client *http.Client, retry RetryConfig, breaker *CircuitBreaker) *caller {
	if client == nil {
		client = NewHTTPClient(30 * time.Second)
	}
	if breaker == nil {
		breaker = NewCircuitBreaker(0, 0)
	}
	return &caller{
		name:    name,
		client:  client,
		retry:   NewRetryStrategy(retry),
		breaker: breaker,
	}
}

// get fetches url and returns the body of a 2xx response
func (c *caller) get(ctx context.Context, url string) ([]byte, error) {
	if !c.breaker.CanAttempt() {
		slog.Warn("Circuit breaker is open, skipping provider call",
			"provider", c.name,
			"circuit_state", c.breaker.State().String(),
		)
		return nil, ErrCircuitOpen
	}

	for attempt := 1; ; attempt++ {
		body, statusCode, err := c.do(ctx, url)
		if err == nil && statusCode >= 200 && statusCode < 300 {
			c.breaker.RecordSuccess()
			return body, nil
		}
		if ctxErr := ctx.Err(); ctxErr != nil {
			return nil, ctxErr
		}
		if err == nil {
			err = &StatusError{StatusCode: statusCode}
		}

		if !c.retry.ShouldRetry(attempt, statusCode, errOrNil(err, statusCode)) {
			// A 4xx answer means the provider is up; only count outages against the breaker.
			if statusCode == 0 || retryableStatus(statusCode) {
				c.breaker.RecordFailure()
			}
			slog.Warn("Provider call failed",
				"provider", c.name,
				"attempt", attempt,
				"status_code", statusCode,
				"error", err,
			)
			return nil, err
		}

		delay := c.retry.CalculateDelay(attempt)
		slog.Debug("Provider call failed, retrying",
			"provider", c.name,
			"attempt", attempt,
			"next_retry_ms", delay.Milliseconds(),
			"error", err,
		)

		timer := time.NewTimer(delay)
		select {
		case <-timer.C:
		case <-ctx.Done():
			timer.Stop()
			return nil, ctx.Err()
		}
	}
}

func (c *caller) do(ctx context.Context, url string) ([]byte, int, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, 0, fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Accept", "application/json")

	resp, err := c.client.Do(req)
	if err != nil {
		return nil, 0, fmt.Errorf("request failed: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxResponseBytes))
	if err != nil {
		return nil, resp.StatusCode, fmt.Errorf("failed to read response: %w", err)
	}

	return body, resp.StatusCode, nil
}

// errOrNil hides StatusError from the retry decision so status codes drive it
func errOrNil(err error, statusCode int) error {
	var se *StatusError
	if statusCode != 0 && errors.As(err, &se) {
		return nil
	}
	return err
}
