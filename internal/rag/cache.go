package rag

import (
	"crypto/sha256"
	"fmt"
	"sort"
	"strings"
	"sync"
	"time"
)

// Cache sizing and freshness defaults.
const (
	// defaultCacheTTL is how long a computed result set stays fresh.
	defaultCacheTTL = time.Hour

	// defaultCacheMaxEntries bounds the cache. The natural key space
	// (stage × weak-category pair × topK) is small, so this cap only
	// matters when the taxonomy grows beyond the original domain.
	defaultCacheMaxEntries = 1024
)

// cacheEntry is one memoized result set. At most one live entry exists per
// key; a put for an existing key overwrites it.
type cacheEntry struct {
	// results is the immutable memoized result list.
	results []UniqueResource

	// expiresAt is the instant the entry becomes stale.
	expiresAt time.Time
}

// resultCache memoizes retrieval results for a TTL window. Expired entries
// are evicted lazily on read; there is no background sweeper. Safe for
// concurrent use; the mutex covers only map access, never store IO.
type resultCache struct {
	// mu protects entries.
	mu sync.Mutex

	// entries maps cache key to its live entry.
	entries map[string]*cacheEntry

	// ttl is the freshness window applied on every put.
	ttl time.Duration

	// maxEntries bounds the map; the entry closest to expiry is dropped
	// when a put would exceed it.
	maxEntries int

	// now returns the current time; replaced in tests.
	now func() time.Time
}

// newResultCache constructs a resultCache with the given TTL and size bound,
// applying defaults for non-positive values.
func newResultCache(ttl time.Duration, maxEntries int) *resultCache {
	if ttl <= 0 {
		ttl = defaultCacheTTL
	}
	if maxEntries <= 0 {
		maxEntries = defaultCacheMaxEntries
	}
	return &resultCache{
		entries:    make(map[string]*cacheEntry),
		ttl:        ttl,
		maxEntries: maxEntries,
		now:        time.Now,
	}
}

// get returns the fresh results for key, or (nil, false) on miss. A stale
// entry is deleted and reported as a miss.
func (c *resultCache) get(key string) ([]UniqueResource, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()

	entry, ok := c.entries[key]
	if !ok {
		return nil, false
	}
	if !c.now().Before(entry.expiresAt) {
		delete(c.entries, key)
		return nil, false
	}
	return entry.results, true
}

// put stores results under key with a fresh TTL, overwriting any existing
// entry. Concurrent puts for the same key are last-writer-wins.
func (c *resultCache) put(key string, results []UniqueResource) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if _, exists := c.entries[key]; !exists && len(c.entries) >= c.maxEntries {
		c.evictNearestExpiry()
	}
	c.entries[key] = &cacheEntry{
		results:   results,
		expiresAt: c.now().Add(c.ttl),
	}
}

// evictNearestExpiry removes the entry closest to (or past) expiry.
// Caller must hold mu.
func (c *resultCache) evictNearestExpiry() {
	var victim string
	var victimExpiry time.Time
	for key, entry := range c.entries {
		if victim == "" || entry.expiresAt.Before(victimExpiry) {
			victim = key
			victimExpiry = entry.expiresAt
		}
	}
	if victim != "" {
		delete(c.entries, victim)
	}
}

// len returns the number of live entries, expired or not.
func (c *resultCache) len() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.entries)
}

// cacheKey derives the deterministic cache key for a retrieval request:
// sha256 over stage, the alphabetically sorted names of the two weakest
// categories, and the requested result count. Requests differing only in the
// order of the weak pair, or in categories beyond the weakest two, share an
// entry.
func cacheKey(stage string, categories []CategoryScore, topK int) string {
	names := WeakestCategories(categories, 2)
	sort.Strings(names)

	keyData := fmt.Sprintf("%s:%s:%d", stage, strings.Join(names, ","), topK)
	sum := sha256.Sum256([]byte(keyData))
	return fmt.Sprintf("%x", sum)
}
