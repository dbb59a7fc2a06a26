package service

import (
	"fmt"

	"github.com/dandantas/pulse/internal/model"
	"github.com/dandantas/pulse/internal/provider"
)

// FailurePolicy decides whether a fetch result is a successful run
type FailurePolicy interface {
	Name() string
	Evaluate(kind model.DataKind, keys []string, res provider.Result) ([]model.DataRecord, error)
}

// BatchPolicy treats the fetch as atomic: any reported key failure fails the run
type BatchPolicy struct{}

func (BatchPolicy) Name() string { return "batch" }

func (BatchPolicy) Evaluate(kind model.DataKind, keys []string, res provider.Result) ([]model.DataRecord, error) {
	if len(res.Failures) > 0 {
		return nil, &provider.FetchError{
			Kind: kind,
			Keys: keys,
			Err:  fmt.Errorf("%d of %d keys failed: %w", len(res.Failures), len(keys), firstFailure(keys, res.Failures)),
		}
	}
	return res.Records, nil
}

// PerKeyPolicy skips failing keys and fails the run only when no key produced a record
type PerKeyPolicy struct{}

func (PerKeyPolicy) Name() string { return "per_key" }

func (PerKeyPolicy) Evaluate(kind model.DataKind, keys []string, res provider.Result) ([]model.DataRecord, error) {
	if len(res.Records) == 0 {
		cause := firstFailure(keys, res.Failures)
		if cause == nil {
			cause = provider.ErrNoData
		}
		return nil, &provider.FetchError{
			Kind: kind,
			Keys: keys,
			Err:  fmt.Errorf("all %d keys failed: %w", len(keys), cause),
		}
	}
	return res.Records, nil
}

// PolicyFor returns the default failure policy for kind
func PolicyFor(kind model.DataKind) FailurePolicy {
	if kind == model.KindWeather {
		return PerKeyPolicy{}
	}
	return BatchPolicy{}
}

// Strategy pairs a fetcher with the policy that judges its results
type Strategy struct {
	Fetcher provider.Fetcher
	Policy  FailurePolicy
}

func firstFailure(keys []string, failures map[string]error) error {
	for _, k := range keys {
		if err, ok := failures[k]; ok {
			return err
		}
	}
	for _, err := range failures {
		return err
	}
	return nil
}
