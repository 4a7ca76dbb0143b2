// Package cache implements the process-local entry cache: a bounded,
// read-through map from a record's serialized key to either a snapshot of
// the record or a verified absence (negative entry).
//
// The cache is best-effort and never a source of truth. Adapters consult
// it before the backing store and invalidate it before every write, so a
// stale entry can only ever resolve to a miss followed by a fresh store
// read.
package cache

import (
	lru "github.com/hashicorp/golang-lru/v2"

	"github.com/tidevault/ledger/internal/record"
)

// DefaultCapacity bounds the cache when no explicit capacity is given.
const DefaultCapacity = 4096

// entry is the cached state for one key. A nil snapshot is a verified
// absence, distinct from "not cached at all".
type entry struct {
	snapshot *record.Entry
}

// EntryCache maps serialized record keys to record snapshots or verified
// absences. It is shared process-wide and safe for concurrent readers;
// writes are confined to the single writer pipeline.
type EntryCache struct {
	lru     *lru.Cache[string, entry]
	metrics *Metrics
}

// New creates a cache bounded to capacity entries, evicting least
// recently used. Capacity must be positive.
func New(capacity int) (*EntryCache, error) {
	if capacity <= 0 {
		capacity = DefaultCapacity
	}
	inner, err := lru.New[string, entry](capacity)
	if err != nil {
		return nil, err
	}
	return &EntryCache{lru: inner, metrics: newMetrics()}, nil
}

// Get returns the cached state for key. cached=false is a miss: nothing
// is known and the caller must read the backing store. cached=true with a
// nil entry is a verified absence. The returned entry is a private clone;
// mutating it cannot corrupt the cache.
func (c *EntryCache) Get(key record.Key) (*record.Entry, bool) {
	e, ok := c.lru.Get(record.CacheKey(key))
	if !ok {
		c.metrics.misses.Inc()
		return nil, false
	}
	c.metrics.hits.Inc()
	return e.snapshot.Clone(), true
}

// Exists reports whether key is cached with a positive snapshot.
func (c *EntryCache) Exists(key record.Key) bool {
	e, ok := c.lru.Get(record.CacheKey(key))
	return ok && e.snapshot != nil
}

// Put stores a snapshot of the record for key.
func (c *EntryCache) Put(key record.Key, rec *record.Entry) {
	c.lru.Add(record.CacheKey(key), entry{snapshot: rec.Clone()})
}

// PutNegative records a verified absence for key.
func (c *EntryCache) PutNegative(key record.Key) {
	c.lru.Add(record.CacheKey(key), entry{})
}

// Invalidate drops any cached state for key. Invalidating a key that is
// not present is a no-op.
func (c *EntryCache) Invalidate(key record.Key) {
	c.lru.Remove(record.CacheKey(key))
}

// Len returns the number of cached keys.
func (c *EntryCache) Len() int {
	return c.lru.Len()
}

// Purge drops every cached entry. Used by schema provisioning.
func (c *EntryCache) Purge() {
	c.lru.Purge()
}
