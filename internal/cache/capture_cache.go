// Package cache implements HighlightDriver's per-buffer capture-tree cache
// (spec §4.3): entries keyed by a content hash of the parsed region, spliced
// in under a single lock held only for the duration of the splice itself —
// the parse that produces a new entry runs fully unlocked beforehand.
//
// Adapted from the teacher's internal/cache/metrics_cache.go, which backs
// each cache (content/symbol/parser) with a lock-free sync.Map sized by a
// soft max-entries counter. That shape doesn't fit here: spec §4.3 specifies
// a single lock for the splice step, not a lock-free map, because splicing
// a capture subtree into the cache also has to reconcile it against the
// region's current staleness generation atomically with the write. So this
// cache keeps the teacher's atomic-counter statistics (hits/misses/
// evictions) but replaces sync.Map with a plain map guarded by sync.Mutex.
package cache

import (
	"sync"
	"sync/atomic"

	"github.com/cespare/xxhash/v2"

	"github.com/standardbeagle/edcore/internal/parser"
)

// Key identifies a cached region by the content hash of its bytes. Two
// regions with identical content hash to the same Key regardless of their
// position in the buffer, which is what lets an edit that merely shifts
// text (without changing it) reuse the old capture subtree.
type Key uint64

// HashRegion computes the Key for region's bytes.
func HashRegion(region []byte) Key {
	return Key(xxhash.Sum64(region))
}

// Entry is one cached capture subtree plus the staleness generation it was
// produced against, so a caller can tell a freshly-spliced entry from one
// that predates a later edit without re-parsing.
type Entry struct {
	Key        Key
	Capture    *parser.CaptureNode
	Generation uint64
	cachedAt   int64 // unix nano, recorded by the caller via Splice's clock param
	hits       int64
}

// DefaultMaxEntries bounds the cache per buffer; a buffer with more
// top-level regions than this evicts the least-recently-spliced entry,
// mirroring the teacher's DefaultMaxContentEntries sizing philosophy.
const DefaultMaxEntries = 256

// CaptureCache is HighlightDriver's per-buffer cache of parsed capture
// subtrees, keyed by region content hash.
type CaptureCache struct {
	mu         sync.Mutex
	entries    map[Key]*Entry
	order      []Key // splice order, oldest first, for eviction
	maxEntries int

	hits      int64
	misses    int64
	evictions int64
	splices   int64
}

// New returns an empty CaptureCache bounded to maxEntries (DefaultMaxEntries
// if <= 0).
func New(maxEntries int) *CaptureCache {
	if maxEntries <= 0 {
		maxEntries = DefaultMaxEntries
	}
	return &CaptureCache{
		entries:    make(map[Key]*Entry),
		maxEntries: maxEntries,
	}
}

// Get returns the cached capture subtree for key, if present and its
// Generation matches currentGen — a Generation mismatch means the entry
// predates an edit that invalidated it, so Get reports it as a miss without
// evicting it (a later Splice for the same key will overwrite it in place).
func (c *CaptureCache) Get(key Key, currentGen uint64) (*parser.CaptureNode, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()

	e, ok := c.entries[key]
	if !ok || e.Generation != currentGen {
		atomic.AddInt64(&c.misses, 1)
		return nil, false
	}
	atomic.AddInt64(&e.hits, 1)
	atomic.AddInt64(&c.hits, 1)
	return e.Capture, true
}

// Splice installs capture as the cached subtree for key at generation gen,
// evicting the oldest entry first if this is a new key that would exceed
// maxEntries. This is the single brief critical section spec §4.3 calls
// out: the parse that produced capture already happened unlocked.
func (c *CaptureCache) Splice(key Key, capture *parser.CaptureNode, gen uint64, nowNano int64) {
	c.mu.Lock()
	defer c.mu.Unlock()

	atomic.AddInt64(&c.splices, 1)
	if _, exists := c.entries[key]; exists {
		c.removeFromOrderLocked(key)
	} else if len(c.entries) >= c.maxEntries {
		c.evictOldestLocked()
	}
	c.order = append(c.order, key)
	c.entries[key] = &Entry{Key: key, Capture: capture, Generation: gen, cachedAt: nowNano}
}

// Invalidate drops the cached entry for key outright, used when a region is
// edited rather than merely shifted (so no future content hash will ever
// match the stale entry again).
func (c *CaptureCache) Invalidate(key Key) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if _, ok := c.entries[key]; ok {
		delete(c.entries, key)
		c.removeFromOrderLocked(key)
	}
}

// Clear drops every entry and resets statistics, used when a buffer swaps
// its active grammar (every prior capture subtree is for the wrong
// language).
func (c *CaptureCache) Clear() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.entries = make(map[Key]*Entry)
	c.order = nil
	atomic.StoreInt64(&c.hits, 0)
	atomic.StoreInt64(&c.misses, 0)
	atomic.StoreInt64(&c.evictions, 0)
	atomic.StoreInt64(&c.splices, 0)
}

// evictOldestLocked removes the least-recently-spliced entry. Caller must
// hold c.mu.
func (c *CaptureCache) evictOldestLocked() {
	if len(c.order) == 0 {
		return
	}
	oldest := c.order[0]
	c.order = c.order[1:]
	delete(c.entries, oldest)
	atomic.AddInt64(&c.evictions, 1)
}

func (c *CaptureCache) removeFromOrderLocked(key Key) {
	for i, k := range c.order {
		if k == key {
			c.order = append(c.order[:i], c.order[i+1:]...)
			return
		}
	}
}

// Stats is a snapshot of cache counters, surfaced through
// HighlightDriver.Metrics (spec §4 supplemented feature "per-buffer
// metrics"), adapted from the teacher's CacheStats shape.
type Stats struct {
	Hits      int64
	Misses    int64
	Evictions int64
	Splices   int64
	Entries   int
}

// Stats returns a snapshot of the cache's counters.
func (c *CaptureCache) Stats() Stats {
	c.mu.Lock()
	n := len(c.entries)
	c.mu.Unlock()
	return Stats{
		Hits:      atomic.LoadInt64(&c.hits),
		Misses:    atomic.LoadInt64(&c.misses),
		Evictions: atomic.LoadInt64(&c.evictions),
		Splices:   atomic.LoadInt64(&c.splices),
		Entries:   n,
	}
}
