package region

import (
	"fmt"

	"github.com/couchcryptid/geoderive/internal/cache"
	"github.com/couchcryptid/geoderive/internal/domain"
	"github.com/couchcryptid/geoderive/internal/observability"
)

type lookupResult struct {
	name  string
	found bool
}

// CachedLookup wraps a RegionLookup with an in-memory LRU cache. Misses are
// cached too since the catalog is static.
type CachedLookup struct {
	inner   domain.RegionLookup
	cache   *cache.LRU[string, lookupResult]
	metrics *observability.Metrics
}

// NewCachedLookup creates a cache decorator around a region lookup. metrics
// may be nil.
func NewCachedLookup(inner domain.RegionLookup, maxEntries int, metrics *observability.Metrics) *CachedLookup {
	return &CachedLookup{
		inner:   inner,
		cache:   cache.NewLRU[string, lookupResult](maxEntries),
		metrics: metrics,
	}
}

func (c *CachedLookup) Lookup(lat, lon float64) (string, bool) {
	key := fmt.Sprintf("%.6f,%.6f", lat, lon)
	if r, ok := c.cache.Get(key); ok {
		c.observe("hit")
		return r.name, r.found
	}
	c.observe("miss")
	name, found := c.inner.Lookup(lat, lon)
	c.cache.Put(key, lookupResult{name: name, found: found})
	return name, found
}

func (c *CachedLookup) observe(result string) {
	if c.metrics != nil {
		c.metrics.RegionCache.WithLabelValues(result).Inc()
	}
}
