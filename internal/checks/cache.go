package checks

import (
	"crypto/sha256"
	"encoding/hex"
	"sort"
	"strings"
	"sync"
	"time"
)

// DefaultCacheTTL is how long a cached check result stays valid. Entries
// expire by TTL only; there is no dependency-based invalidation.
const DefaultCacheTTL = time.Hour

// cacheEntry pairs a result with its store time.
type cacheEntry struct {
	result   CheckResult
	storedAt time.Time
}

// ResultCache is a TTL cache for check results keyed by adapter identity,
// check id, and the sorted input file set.
//
// The map is mutex-guarded; two concurrent misses for the same key may both
// recompute, and the second write wins. Results are idempotent, so the
// duplicate work is tolerated instead of adding per-key synchronization.
type ResultCache struct {
	mu      sync.Mutex
	entries map[string]cacheEntry
	ttl     time.Duration

	// now is swapped in tests to drive expiry.
	now func() time.Time
}

// NewResultCache creates a cache with the given TTL, defaulting to
// DefaultCacheTTL when ttl is zero.
func NewResultCache(ttl time.Duration) *ResultCache {
	if ttl <= 0 {
		ttl = DefaultCacheTTL
	}
	return &ResultCache{
		entries: make(map[string]cacheEntry),
		ttl:     ttl,
		now:     time.Now,
	}
}

// CacheKey derives the deterministic cache key for one check execution.
// The file list is sorted before hashing so input order cannot split the key.
func CacheKey(adapterName, checkID string, files []string) string {
	sorted := append([]string{}, files...)
	sort.Strings(sorted)

	h := sha256.New()
	h.Write([]byte(adapterName))
	h.Write([]byte{0})
	h.Write([]byte(checkID))
	h.Write([]byte{0})
	h.Write([]byte(strings.Join(sorted, "\x00")))
	return hex.EncodeToString(h.Sum(nil))
}

// Get returns the cached result for key if present and unexpired.
func (c *ResultCache) Get(key string) (CheckResult, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()

	entry, ok := c.entries[key]
	if !ok {
		return CheckResult{}, false
	}
	if c.now().Sub(entry.storedAt) > c.ttl {
		delete(c.entries, key)
		return CheckResult{}, false
	}
	return entry.result, true
}

// Put stores a result under key. Last write wins.
func (c *ResultCache) Put(key string, result CheckResult) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.entries[key] = cacheEntry{result: result, storedAt: c.now()}
}

// Len returns the number of live entries, counting expired ones until their
// next Get.
func (c *ResultCache) Len() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.entries)
}
