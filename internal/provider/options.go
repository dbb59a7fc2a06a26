package provider

import (
	"fmt"
	"net/http"
	"net/url"
	"strings"
)

// Options configures an HTTP-backed fetcher
type Options struct {
	BaseURL     string
	APIKey      string
	RecordsPath string
	Fields      FieldMap
	Concurrency int
	Retry       RetryConfig
	Client      *http.Client
	Breaker     *CircuitBreaker
}

func (o Options) endpoint(path string, query url.Values) (string, error) {
	base, err := url.Parse(strings.TrimRight(o.BaseURL, "/") + path)
	if err != nil {
		return "", fmt.Errorf("invalid provider base URL: %w", err)
	}
	if o.APIKey != "" {
		query.Set("apiKey", o.APIKey)
	}
	base.RawQuery = query.Encode()
	return base.String(), nil
}
