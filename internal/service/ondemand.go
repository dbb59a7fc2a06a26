package service

import (
	"context"
	"errors"
	"time"

	"github.com/dandantas/pulse/internal/cache"
	"github.com/dandantas/pulse/internal/metrics"
	"github.com/dandantas/pulse/internal/model"
	"golang.org/x/sync/singleflight"
)

// ErrNoData is returned when a tracked key has no cached value and fetching it failed
var ErrNoData = errors.New("no data available")

// SharedFetchTimeout bounds a single-flight fetch, which outlives the request that started it
const SharedFetchTimeout = 30 * time.Second

// OnDemand serves reads from the cache and fetches a key synchronously on a miss
type OnDemand struct {
	kind  model.DataKind
	cache *cache.FreshnessCache
	orch  *Orchestrator
	group *singleflight.Group
}

// NewOnDemand creates a read-through trigger. With singleFlight set, concurrent
// misses for the same key share one fetch run.
func NewOnDemand(c *cache.FreshnessCache, orch *Orchestrator, singleFlight bool) *OnDemand {
	d := &OnDemand{
		kind:  c.Kind(),
		cache: c,
		orch:  orch,
	}
	if singleFlight {
		d.group = &singleflight.Group{}
	}
	return d
}

// ReadOrFetch returns the cached entry for key, fetching it first when absent.
// The entry may be stale. Cancellation is returned as the context error.
func (d *OnDemand) ReadOrFetch(ctx context.Context, key string) (model.CacheEntry, error) {
	if entry, ok := d.cache.Get(key); ok {
		metrics.IncreaseCacheReads(string(d.kind), metrics.CacheHit)
		return entry, nil
	}
	metrics.IncreaseCacheReads(string(d.kind), metrics.CacheMiss)

	if err := d.fetch(ctx, key); err != nil && ctx.Err() != nil {
		return model.CacheEntry{}, ctx.Err()
	}

	if entry, ok := d.cache.Get(key); ok {
		return entry, nil
	}
	return model.CacheEntry{}, ErrNoData
}

func (d *OnDemand) fetch(ctx context.Context, key string) error {
	if d.group == nil {
		_, err := d.orch.Run(ctx, d.kind, []string{key})
		return err
	}

	// The shared run must not die with whichever caller started it; each caller
	// still stops waiting when its own request is cancelled.
	ch := d.group.DoChan(model.NormalizeKey(key), func() (any, error) {
		runCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), SharedFetchTimeout)
		defer cancel()
		return d.orch.Run(runCtx, d.kind, []string{key})
	})

	select {
	case res := <-ch:
		return res.Err
	case <-ctx.Done():
		return ctx.Err()
	}
}
