package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/dandantas/pulse/internal/cache"
	"github.com/dandantas/pulse/internal/ledger"
	"github.com/dandantas/pulse/internal/metrics"
	"github.com/dandantas/pulse/internal/model"
	"github.com/dandantas/pulse/internal/provider"
)

// ErrUnknownKind is returned for a kind with no registered strategy
var ErrUnknownKind = errors.New("unknown data kind")

// RecordSink persists fetched records outside the cache
type RecordSink interface {
	Save(ctx context.Context, kind model.DataKind, records []model.DataRecord) error
}

// RunResult describes a finished fetch run
type RunResult struct {
	JobID            string         `json:"job_id,omitempty"`
	Kind             model.DataKind `json:"kind"`
	RecordsProcessed int            `json:"records_processed"`
	FailedKeys       []string       `json:"failed_keys,omitempty"`
	MissingKeys      []string       `json:"missing_keys,omitempty"`
}

type lane struct {
	cache    *cache.FreshnessCache
	strategy Strategy
}

// Orchestrator executes fetch runs and records their lifecycle in the ledger
type Orchestrator struct {
	ledger *ledger.Ledger
	sink   RecordSink
	lanes  map[model.DataKind]lane
	now    func() time.Time
}

// NewOrchestrator creates an orchestrator. sink may be nil.
func NewOrchestrator(l *ledger.Ledger, sink RecordSink) *Orchestrator {
	return &Orchestrator{
		ledger: l,
		sink:   sink,
		lanes:  make(map[model.DataKind]lane),
		now:    time.Now,
	}
}

// WithClock overrides the clock used to stamp records that arrive without a capture time
func (o *Orchestrator) WithClock(now func() time.Time) *Orchestrator {
	o.now = now
	return o
}

// Register binds the cache and fetch strategy for a kind.
// Registration must complete before the first run.
func (o *Orchestrator) Register(c *cache.FreshnessCache, s Strategy) {
	if s.Policy == nil {
		s.Policy = PolicyFor(c.Kind())
	}
	o.lanes[c.Kind()] = lane{cache: c, strategy: s}
}

// Ledger returns the ledger runs are recorded in
func (o *Orchestrator) Ledger() *ledger.Ledger {
	return o.ledger
}

// Run performs one synchronous fetch run for keys.
// An empty key set is a no-op that records nothing.
func (o *Orchestrator) Run(ctx context.Context, kind model.DataKind, keys []string) (RunResult, error) {
	if len(keys) == 0 {
		return RunResult{Kind: kind}, nil
	}

	jobID, err := o.Begin(kind, keys)
	if err != nil {
		return RunResult{Kind: kind}, err
	}
	return o.Execute(ctx, jobID, kind, keys)
}

// Begin records a Running job for a run that Execute will carry out
func (o *Orchestrator) Begin(kind model.DataKind, keys []string) (string, error) {
	if _, ok := o.lanes[kind]; !ok {
		return "", fmt.Errorf("%w: %s", ErrUnknownKind, kind)
	}
	return o.ledger.Begin(kind, map[string]string{
		"keys": strings.Join(keys, ","),
	}), nil
}

// Execute fetches keys for a job created by Begin and moves it to a terminal state
func (o *Orchestrator) Execute(ctx context.Context, jobID string, kind model.DataKind, keys []string) (RunResult, error) {
	result := RunResult{JobID: jobID, Kind: kind}

	ln, ok := o.lanes[kind]
	if !ok {
		o.ledger.Fail(jobID, "unknown data kind")
		return result, fmt.Errorf("%w: %s", ErrUnknownKind, kind)
	}

	start := time.Now()
	slog.Info("Starting fetch run",
		"job_id", jobID,
		"kind", kind,
		"keys", strings.Join(keys, ","),
	)

	records, failures, err := o.fetch(ctx, ln.strategy, kind, keys)
	duration := time.Since(start)

	if err != nil {
		if ctx.Err() != nil && (errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded)) {
			o.ledger.Fail(jobID, "cancelled")
			metrics.ObserveFetchRun(string(kind), "cancelled", duration)
			slog.Info("Fetch run cancelled",
				"job_id", jobID,
				"kind", kind,
				"duration_ms", duration.Milliseconds(),
			)
			return result, ctx.Err()
		}

		o.ledger.Fail(jobID, err.Error())
		metrics.ObserveFetchRun(string(kind), string(model.JobFailed), duration)
		slog.Error("Fetch run failed",
			"job_id", jobID,
			"kind", kind,
			"policy", ln.strategy.Policy.Name(),
			"duration_ms", duration.Milliseconds(),
			"error", err,
		)

		var fe *provider.FetchError
		if !errors.As(err, &fe) {
			err = &provider.FetchError{Kind: kind, Keys: keys, Err: err}
		}
		return result, err
	}

	records = o.prepare(jobID, kind, keys, records)
	for _, r := range records {
		ln.cache.Put(r.TrackedKey(), r)
	}

	result.RecordsProcessed = len(records)
	result.FailedKeys = sortedKeys(failures)
	result.MissingKeys = missingKeys(keys, records, failures)

	meta := map[string]string{
		"records_processed": strconv.Itoa(result.RecordsProcessed),
	}
	if len(result.FailedKeys) > 0 {
		meta["failed_keys"] = strings.Join(result.FailedKeys, ",")
	}
	if len(result.MissingKeys) > 0 {
		meta["missing_keys"] = strings.Join(result.MissingKeys, ",")
		slog.Warn("Provider omitted requested keys",
			"job_id", jobID,
			"kind", kind,
			"missing_keys", meta["missing_keys"],
		)
	}
	o.ledger.Complete(jobID, meta)

	metrics.ObserveFetchRun(string(kind), string(model.JobCompleted), duration)
	metrics.AddRecordsFetched(string(kind), len(records))

	slog.Info("Fetch run completed",
		"job_id", jobID,
		"kind", kind,
		"records_processed", result.RecordsProcessed,
		"failed_keys", len(result.FailedKeys),
		"duration_ms", duration.Milliseconds(),
	)

	if o.sink != nil && len(records) > 0 {
		if err := o.sink.Save(ctx, kind, records); err != nil {
			slog.Error("Failed to persist fetched records",
				"job_id", jobID,
				"kind", kind,
				"error", err,
			)
		}
	}

	return result, nil
}

func (o *Orchestrator) fetch(ctx context.Context, s Strategy, kind model.DataKind, keys []string) ([]model.DataRecord, map[string]error, error) {
	res, err := s.Fetcher.Fetch(ctx, keys)
	if err != nil {
		return nil, nil, err
	}
	records, err := s.Policy.Evaluate(kind, keys, res)
	if err != nil {
		return nil, nil, err
	}
	return records, res.Failures, nil
}

// prepare drops records for keys that were not requested and stamps the fetch
// time on records the provider left without one, so the cache and sinks agree.
func (o *Orchestrator) prepare(jobID string, kind model.DataKind, keys []string, records []model.DataRecord) []model.DataRecord {
	requested := make(map[string]struct{}, len(keys))
	for _, k := range keys {
		requested[model.NormalizeKey(k)] = struct{}{}
	}

	fetchedAt := o.now()
	out := make([]model.DataRecord, 0, len(records))
	var unrequested []string
	for _, r := range records {
		if _, ok := requested[model.NormalizeKey(r.TrackedKey())]; !ok {
			unrequested = append(unrequested, r.TrackedKey())
			continue
		}
		out = append(out, model.WithCapturedAt(r, fetchedAt))
	}

	if len(unrequested) > 0 {
		slog.Warn("Dropping records for keys that were not requested",
			"job_id", jobID,
			"kind", kind,
			"keys", strings.Join(unrequested, ","),
		)
	}
	return out
}

func sortedKeys(m map[string]error) []string {
	if len(m) == 0 {
		return nil
	}
	out := make([]string, 0, len(m))
	for k := range m {
		out = append(out, k)
	}
	sort.Strings(out)
	return out
}

// missingKeys lists requested keys that neither produced a record nor failed
func missingKeys(keys []string, records []model.DataRecord, failures map[string]error) []string {
	seen := make(map[string]struct{}, len(records)+len(failures))
	for _, r := range records {
		seen[model.NormalizeKey(r.TrackedKey())] = struct{}{}
	}
	for k := range failures {
		seen[model.NormalizeKey(k)] = struct{}{}
	}

	var out []string
	for _, k := range keys {
		if _, ok := seen[model.NormalizeKey(k)]; !ok {
			out = append(out, k)
		}
	}
	return out
}
