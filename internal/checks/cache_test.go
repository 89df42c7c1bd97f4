package checks

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCacheKeyDeterministic(t *testing.T) {
	k1 := CacheKey("golangci", "lint", []string{"a.go", "b.go"})
	k2 := CacheKey("golangci", "lint", []string{"b.go", "a.go"})
	assert.Equal(t, k1, k2, "file order must not affect the key")

	assert.NotEqual(t, k1, CacheKey("golangci", "vet", []string{"a.go", "b.go"}))
	assert.NotEqual(t, k1, CacheKey("staticcheck", "lint", []string{"a.go", "b.go"}))
	assert.NotEqual(t, k1, CacheKey("golangci", "lint", []string{"a.go"}))
}

func TestCacheKeySeparatorsPreventCollisions(t *testing.T) {
	// Adapter/check boundary must not be foldable into one string.
	assert.NotEqual(t,
		CacheKey("ab", "c", nil),
		CacheKey("a", "bc", nil),
	)
}

func TestResultCachePutGet(t *testing.T) {
	c := NewResultCache(0)

	key := CacheKey("lint", "lint", nil)
	_, ok := c.Get(key)
	assert.False(t, ok)

	c.Put(key, CheckResult{CheckID: "lint", Status: StatusSuccess})
	got, ok := c.Get(key)
	require.True(t, ok)
	assert.Equal(t, "lint", got.CheckID)
}

func TestResultCacheTTLExpiry(t *testing.T) {
	c := NewResultCache(time.Hour)

	current := time.Now()
	c.now = func() time.Time { return current }

	key := CacheKey("lint", "lint", nil)
	c.Put(key, CheckResult{Status: StatusSuccess})

	current = current.Add(59 * time.Minute)
	_, ok := c.Get(key)
	assert.True(t, ok, "entry inside TTL")

	current = current.Add(2 * time.Minute)
	_, ok = c.Get(key)
	assert.False(t, ok, "entry past TTL expired")
	assert.Zero(t, c.Len(), "expired entry evicted on read")
}
