package spatial

import (
	"context"
	"errors"
	"sync"

	"github.com/couchcryptid/geoderive/internal/domain"
)

// CachedLoader memoizes catalogs by path so a batch run loads each catalog
// once. Catalogs are read-only, so sharing them across bundles is safe.
type CachedLoader struct {
	inner domain.CatalogLoader

	mu      sync.Mutex
	entries map[string]*cachedCatalog
}

type cachedCatalog struct {
	mu    sync.Mutex
	done  bool
	index domain.SpatialIndex
	err   error
}

// NewCachedLoader wraps inner with a per-path cache.
func NewCachedLoader(inner domain.CatalogLoader) *CachedLoader {
	return &CachedLoader{inner: inner, entries: make(map[string]*cachedCatalog)}
}

// Load returns the cached catalog for path, loading it on first use.
// Failures are cached too, so a catalog that failed once fails for the whole
// run. Cancellation of the caller's context is not cached: the next caller
// loads again.
func (c *CachedLoader) Load(ctx context.Context, path string) (domain.SpatialIndex, error) {
	c.mu.Lock()
	e, ok := c.entries[path]
	if !ok {
		e = &cachedCatalog{}
		c.entries[path] = e
	}
	c.mu.Unlock()

	e.mu.Lock()
	defer e.mu.Unlock()
	if e.done {
		return e.index, e.err
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	index, err := c.inner.Load(ctx, path)
	if err != nil && isContextError(err) {
		return nil, err
	}
	e.index, e.err, e.done = index, err, true
	return index, err
}

func isContextError(err error) bool {
	return errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded)
}
