package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/dandantas/pulse/internal/cache"
	"github.com/dandantas/pulse/internal/metrics"
	"github.com/dandantas/pulse/internal/model"
)

// ErrNotTracked is returned for keys outside the configured set
var ErrNotTracked = errors.New("key is not being tracked")

// Reading is a cached entry annotated with its freshness
type Reading struct {
	Data        model.DataRecord `json:"data"`
	LastUpdated time.Time        `json:"last_updated"`
	Stale       bool             `json:"stale"`
}

// Tracker is the read and refresh surface for one data kind
type Tracker struct {
	kind       model.DataKind
	keys       []string
	index      map[string]string // normalized -> configured spelling
	cache      *cache.FreshnessCache
	orch       *Orchestrator
	ondemand   *OnDemand
	staleAfter time.Duration
	now        func() time.Time
}

// NewTracker creates the tracker for the keys configured for c's kind
func NewTracker(c *cache.FreshnessCache, orch *Orchestrator, ondemand *OnDemand, keys []string, staleAfter time.Duration) *Tracker {
	t := &Tracker{
		kind:       c.Kind(),
		index:      make(map[string]string, len(keys)),
		cache:      c,
		orch:       orch,
		ondemand:   ondemand,
		staleAfter: staleAfter,
		now:        time.Now,
	}
	for _, k := range keys {
		norm := model.NormalizeKey(k)
		if norm == "" {
			continue
		}
		if _, dup := t.index[norm]; dup {
			continue
		}
		t.index[norm] = k
		t.keys = append(t.keys, k)
	}
	return t
}

// WithClock overrides the clock used for staleness
func (t *Tracker) WithClock(now func() time.Time) *Tracker {
	t.now = now
	return t
}

func (t *Tracker) Kind() model.DataKind {
	return t.kind
}

// Keys returns the configured keys in their canonical spelling
func (t *Tracker) Keys() []string {
	out := make([]string, len(t.keys))
	copy(out, t.keys)
	return out
}

// StaleAfter returns the staleness threshold
func (t *Tracker) StaleAfter() time.Duration {
	return t.staleAfter
}

// Resolve maps key to its configured spelling
func (t *Tracker) Resolve(key string) (string, error) {
	canonical, ok := t.index[model.NormalizeKey(key)]
	if !ok {
		return "", fmt.Errorf("%w: %s", ErrNotTracked, key)
	}
	return canonical, nil
}

// Restore seeds the cache with previously persisted records of tracked keys.
// Records of keys no longer configured are skipped. It returns the number restored.
func (t *Tracker) Restore(records []model.DataRecord) int {
	n := 0
	for _, rec := range records {
		canonical, err := t.Resolve(rec.TrackedKey())
		if err != nil {
			continue
		}
		t.cache.Put(canonical, rec)
		n++
	}
	return n
}

// GetLatest returns the latest value for key, fetching it on a cache miss
func (t *Tracker) GetLatest(ctx context.Context, key string) (Reading, error) {
	canonical, err := t.Resolve(key)
	if err != nil {
		return Reading{}, err
	}

	entry, err := t.ondemand.ReadOrFetch(ctx, canonical)
	if err != nil {
		return Reading{}, err
	}
	return t.reading(entry), nil
}

// GetAll returns every cached value. An empty cache is filled with one run over all keys first.
func (t *Tracker) GetAll(ctx context.Context) ([]Reading, error) {
	if t.cache.Len() == 0 && len(t.keys) > 0 {
		if _, err := t.orch.Run(ctx, t.kind, t.keys); err != nil {
			if ctx.Err() != nil {
				return nil, ctx.Err()
			}
			slog.Warn("Initial fetch for empty cache failed", "kind", t.kind, "error", err)
		}
	}

	entries := t.cache.All()
	out := make([]Reading, 0, len(entries))
	for _, e := range entries {
		out = append(out, t.reading(e))
	}
	return out, nil
}

// Refresh runs one fetch over keys. Every key must be tracked; none are fetched otherwise.
func (t *Tracker) Refresh(ctx context.Context, keys []string) (RunResult, error) {
	resolved := make([]string, 0, len(keys))
	seen := make(map[string]struct{}, len(keys))
	for _, k := range keys {
		canonical, err := t.Resolve(k)
		if err != nil {
			return RunResult{Kind: t.kind}, err
		}
		if _, dup := seen[canonical]; dup {
			continue
		}
		seen[canonical] = struct{}{}
		resolved = append(resolved, canonical)
	}
	return t.orch.Run(ctx, t.kind, resolved)
}

// RefreshAll runs one fetch over every configured key
func (t *Tracker) RefreshAll(ctx context.Context) (RunResult, error) {
	return t.orch.Run(ctx, t.kind, t.Keys())
}

// RefreshKey runs one fetch for a single tracked key
func (t *Tracker) RefreshKey(ctx context.Context, key string) (RunResult, error) {
	return t.Refresh(ctx, []string{key})
}

func (t *Tracker) reading(e model.CacheEntry) Reading {
	stale := cache.IsStale(e, t.now(), t.staleAfter)
	if stale {
		metrics.IncreaseCacheReads(string(t.kind), metrics.CacheStale)
	}
	return Reading{
		Data:        e.Record,
		LastUpdated: e.LastUpdated,
		Stale:       stale,
	}
}
