// Package cache provides a short-lived read cache for Data Store queries.
// Entries expire after a fixed TTL; concurrent misses for the same key
// collapse to a single underlying fetch via singleflight so a burst of
// identical reads costs at most one external call. Fetch errors are never
// cached. Writers are expected to invalidate the affected keys after a
// successful Data Store write.
package cache

import (
	"context"
	"strings"
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"golang.org/x/sync/singleflight"
)

var (
	// cacheHits counts GetOrFetch calls served from a fresh entry.
	cacheHits = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "read_cache_hits_total",
		Help: "Total read cache hits.",
	})

	// cacheMisses counts GetOrFetch calls that ran the fetch function.
	cacheMisses = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "read_cache_misses_total",
		Help: "Total read cache misses (fetches executed).",
	})
)

func init() {
	prometheus.MustRegister(cacheHits, cacheMisses)
}

// FetchFunc loads the value for a key from the source of truth.
type FetchFunc func(ctx context.Context) (any, error)

type entry struct {
	value any
	at    time.Time
}

// Cache is a TTL read-through cache safe for concurrent use by all user
// conversations. The zero value is not usable; construct with New.
type Cache struct {
	ttl time.Duration

	// now is a seam for tests; defaults to time.Now.
	now func() time.Time

	mu      sync.RWMutex
	entries map[string]entry

	group singleflight.Group
}

// New returns a cache whose entries stay fresh for ttl.
func New(ttl time.Duration) *Cache {
	return &Cache{
		ttl:     ttl,
		now:     time.Now,
		entries: make(map[string]entry),
	}
}

// GetOrFetch returns the cached value for key when it is still within the
// TTL; otherwise it runs fetch, stores the result, and returns it.
// Concurrent callers missing on the same key share one in-flight fetch.
func (c *Cache) GetOrFetch(ctx context.Context, key string, fetch FetchFunc) (any, error) {
	if v, ok := c.lookup(key); ok {
		cacheHits.Inc()
		return v, nil
	}

	v, err, _ := c.group.Do(key, func() (any, error) {
		// A concurrent caller may have stored the value while this one
		// was queued behind the flight.
		if v, ok := c.lookup(key); ok {
			cacheHits.Inc()
			return v, nil
		}
		cacheMisses.Inc()
		v, err := fetch(ctx)
		if err != nil {
			return nil, err
		}
		c.mu.Lock()
		c.entries[key] = entry{value: v, at: c.now()}
		c.mu.Unlock()
		return v, nil
	})
	if err != nil {
		return nil, err
	}
	return v, nil
}

// Invalidate drops the entry for key, forcing the next read to fetch.
func (c *Cache) Invalidate(key string) {
	c.mu.Lock()
	delete(c.entries, key)
	c.mu.Unlock()
}

// InvalidatePrefix drops every entry whose key starts with prefix. Used
// after writes that touch several cached views of the same supplier.
func (c *Cache) InvalidatePrefix(prefix string) {
	c.mu.Lock()
	for k := range c.entries {
		if strings.HasPrefix(k, prefix) {
			delete(c.entries, k)
		}
	}
	c.mu.Unlock()
}

// Len reports the number of stored entries, fresh or stale.
func (c *Cache) Len() int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return len(c.entries)
}

func (c *Cache) lookup(key string) (any, bool) {
	c.mu.RLock()
	e, ok := c.entries[key]
	c.mu.RUnlock()
	if !ok || c.now().Sub(e.at) >= c.ttl {
		return nil, false
	}
	return e.value, true
}
