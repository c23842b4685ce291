// Package cache wraps an expiring LRU for frequently served read paths.
package cache

import (
	"fmt"
	"strings"
	"sync/atomic"
	"time"

	"github.com/hashicorp/golang-lru/v2/expirable"
)

// TTLs for the read paths that get a cache in front of them.
const (
	SourcesTTL = 10 * time.Minute
	SearchTTL  = 2 * time.Minute
	HealthTTL  = 30 * time.Second
)

// DefaultSize bounds entries per cache.
const DefaultSize = 1000

// Cache is a size-bounded TTL cache with hit accounting.
type Cache[V any] struct {
	lru    *expirable.LRU[string, V]
	hits   atomic.Int64
	misses atomic.Int64
}

// New creates a cache holding at most size entries for at most ttl each.
func New[V any](size int, ttl time.Duration) *Cache[V] {
	if size <= 0 {
		size = DefaultSize
	}
	return &Cache[V]{lru: expirable.NewLRU[string, V](size, nil, ttl)}
}

// Get returns the cached value for key if present and unexpired.
func (c *Cache[V]) Get(key string) (V, bool) {
	v, ok := c.lru.Get(key)
	if ok {
		c.hits.Add(1)
	} else {
		c.misses.Add(1)
	}
	return v, ok
}

// Set stores a value under key.
func (c *Cache[V]) Set(key string, value V) {
	c.lru.Add(key, value)
}

// Invalidate drops one key.
func (c *Cache[V]) Invalidate(key string) {
	c.lru.Remove(key)
}

// Clear drops every entry.
func (c *Cache[V]) Clear() {
	c.lru.Purge()
}

// Stats reports cache effectiveness since creation.
type Stats struct {
	Entries int     `json:"entries"`
	Hits    int64   `json:"hits"`
	Misses  int64   `json:"misses"`
	HitRate float64 `json:"hit_rate"`
}

func (c *Cache[V]) Stats() Stats {
	hits := c.hits.Load()
	misses := c.misses.Load()
	s := Stats{Entries: c.lru.Len(), Hits: hits, Misses: misses}
	if total := hits + misses; total > 0 {
		s.HitRate = float64(hits) / float64(total)
	}
	return s
}

// Key builds a stable cache key from heterogeneous parts.
func Key(parts ...any) string {
	strs := make([]string, len(parts))
	for i, p := range parts {
		strs[i] = fmt.Sprint(p)
	}
	return strings.Join(strs, "|")
}
