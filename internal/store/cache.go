package store

import (
	"context"
	"fmt"
	"time"

	gocache "github.com/patrickmn/go-cache"
)

// CachedAnalytics memoizes Aggregate results so repeated dashboard queries
// do not rescan the version table. Review data itself is never cached; only
// the derived summary, which tolerates short staleness.
type CachedAnalytics struct {
	store Store
	cache *gocache.Cache
}

// NewCachedAnalytics wraps a store with an analytics cache using the given
// TTL.
func NewCachedAnalytics(s Store, ttl time.Duration) *CachedAnalytics {
	return &CachedAnalytics{
		store: s,
		cache: gocache.New(ttl, 2*ttl),
	}
}

// Aggregate returns cached analytics for the window when fresh, computing
// and caching them otherwise.
func (c *CachedAnalytics) Aggregate(ctx context.Context, maxAgeDays int) (Analytics, error) {
	key := fmt.Sprintf("analytics:%d", maxAgeDays)
	if cached, ok := c.cache.Get(key); ok {
		return cached.(Analytics), nil
	}

	analytics, err := c.store.Aggregate(ctx, maxAgeDays)
	if err != nil {
		return Analytics{}, err
	}
	c.cache.Set(key, analytics, gocache.DefaultExpiration)
	return analytics, nil
}

// Invalidate drops all cached windows, for callers that just wrote reviews
// and want fresh numbers.
func (c *CachedAnalytics) Invalidate() {
	c.cache.Flush()
}
