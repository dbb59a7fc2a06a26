package provider

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/dandantas/pulse/internal/model"
)

var (
	// ErrCircuitOpen is returned when the provider circuit breaker rejects a call
	ErrCircuitOpen = errors.New("circuit breaker is open")
	// ErrNoData is returned when a provider response carries no usable records
	ErrNoData = errors.New("no data in provider response")
)

// Fetcher retrieves records for a set of tracked keys of one kind
type Fetcher interface {
	Kind() model.DataKind
	Fetch(ctx context.Context, keys []string) (Result, error)
}

// Result is the outcome of a fetch that reached the provider.
// Failures holds keys that could not be fetched individually.
type Result struct {
	Records  []model.DataRecord
	Failures map[string]error
}

// FetchError reports a fetch that failed as a whole
type FetchError struct {
	Kind model.DataKind
	Keys []string
	Err  error
}

func (e *FetchError) Error() string {
	return fmt.Sprintf("%s fetch for [%s] failed: %v", e.Kind, strings.Join(e.Keys, ","), e.Err)
}

func (e *FetchError) Unwrap() error {
	return e.Err
}

// StatusError reports a non-success HTTP status from a provider
type StatusError struct {
	StatusCode int
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("provider returned status %d", e.StatusCode)
}
