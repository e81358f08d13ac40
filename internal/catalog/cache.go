// internal/catalog/cache.go
package catalog

import (
	"time"

	"pagegen-pipeline/internal/common/metrics"

	gocache "github.com/patrickmn/go-cache"
)

// Entry is one component the visual-mapping service can emit.
type Entry struct {
	Name         string                 `json:"name"`
	DisplayName  string                 `json:"displayName"`
	Description  string                 `json:"description"`
	ExampleProps map[string]interface{} `json:"exampleProps,omitempty"`
}

const snapshotKey = "catalog"

// Cache is a time-bounded cache of the component catalog, shared read-only
// across all sessions. It is a latency optimization only; the pipeline must
// work with this cache permanently empty.
type Cache struct {
	store *gocache.Cache
	ttl   time.Duration
}

// New creates a catalog cache. The default TTL in production config is 60s.
func New(ttl, cleanupInterval time.Duration) *Cache {
	return &Cache{
		store: gocache.New(ttl, cleanupInterval),
		ttl:   ttl,
	}
}

// Get returns the cached catalog if fetched within the TTL, else nil.
func (c *Cache) Get() []Entry {
	if x, found := c.store.Get(snapshotKey); found {
		metrics.CatalogCacheHits.WithLabelValues("hit").Inc()
		return x.([]Entry)
	}
	metrics.CatalogCacheHits.WithLabelValues("miss").Inc()
	return nil
}

// Set stores a fresh snapshot with the current timestamp. Refresh races are
// last-writer-wins; refreshing is idempotent so a lost race only costs one
// extra fetch.
func (c *Cache) Set(entries []Entry) {
	c.store.Set(snapshotKey, entries, gocache.DefaultExpiration)
}

// Invalidate forces the next Get to miss.
func (c *Cache) Invalidate() {
	c.store.Delete(snapshotKey)
}
