package cache

import (
	"sort"
	"sync"
	"sync/atomic"
	"time"

	"github.com/dandantas/pulse/internal/metrics"
	"github.com/dandantas/pulse/internal/model"
)

// FreshnessCache holds the latest record per tracked key for one data kind.
// Stored entries are immutable; Put swaps in a new one.
type FreshnessCache struct {
	kind    model.DataKind
	entries sync.Map // normalized key -> *model.CacheEntry
	size    atomic.Int64
	now     func() time.Time
}

// New creates an empty cache for the given kind
func New(kind model.DataKind) *FreshnessCache {
	return &FreshnessCache{
		kind: kind,
		now:  time.Now,
	}
}

// WithClock overrides the clock used when a record carries no capture time
func (c *FreshnessCache) WithClock(now func() time.Time) *FreshnessCache {
	c.now = now
	return c
}

// Kind returns the data kind this cache holds
func (c *FreshnessCache) Kind() model.DataKind {
	return c.kind
}

// Put replaces the entry for key unconditionally
func (c *FreshnessCache) Put(key string, record model.DataRecord) {
	updated := record.CapturedAt()
	if updated.IsZero() {
		updated = c.now()
	}
	entry := &model.CacheEntry{
		Record:      record,
		LastUpdated: updated.UTC(),
	}

	if _, loaded := c.entries.Swap(model.NormalizeKey(key), entry); !loaded {
		metrics.UpdateCachedKeys(string(c.kind), int(c.size.Add(1)))
	}
}

// Get returns the entry for key, if any
func (c *FreshnessCache) Get(key string) (model.CacheEntry, bool) {
	v, ok := c.entries.Load(model.NormalizeKey(key))
	if !ok {
		return model.CacheEntry{}, false
	}
	return *v.(*model.CacheEntry), true
}

// All returns a snapshot of every entry ordered by key
func (c *FreshnessCache) All() []model.CacheEntry {
	keys := make([]string, 0, c.size.Load())
	byKey := make(map[string]model.CacheEntry)
	c.entries.Range(func(k, v any) bool {
		key := k.(string)
		keys = append(keys, key)
		byKey[key] = *v.(*model.CacheEntry)
		return true
	})
	sort.Strings(keys)

	out := make([]model.CacheEntry, 0, len(keys))
	for _, k := range keys {
		out = append(out, byKey[k])
	}
	return out
}

// Len returns the number of cached keys
func (c *FreshnessCache) Len() int {
	return int(c.size.Load())
}

// IsStale reports whether entry is older than threshold at now.
// An entry exactly threshold old is still fresh.
func IsStale(entry model.CacheEntry, now time.Time, threshold time.Duration) bool {
	return now.Sub(entry.LastUpdated) > threshold
}
