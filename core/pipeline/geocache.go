package pipeline

import (
	"context"
	"strings"
	"sync/atomic"
	"time"

	lru "github.com/hashicorp/golang-lru/v2"

	"crisislens_server/core/domain"
	"crisislens_server/core/port/out"
	"crisislens_server/pkg/metrics"
)

// =============================================================================
// Geocode Cache
// =============================================================================

// DefaultGeocodeCacheSize bounds the cache when no capacity is configured.
const DefaultGeocodeCacheSize = 2000

// geocodeEntry is a cached lookup result. A nil coord means the provider
// could not resolve the name; caching that too keeps a hot unresolvable
// name from hammering the provider.
type geocodeEntry struct {
	coord *domain.Coordinate
}

// GeocodeCache fronts the external geocoding provider with a bounded LRU
// map keyed by normalized place name. Concurrent misses on the same key may
// each call the provider once; the last write wins and the map is never
// left torn.
type GeocodeCache struct {
	provider out.GeocodeProvider
	cache    *lru.Cache[string, geocodeEntry]
	timeout  time.Duration
	metrics  *metrics.Pipeline

	hits   atomic.Int64
	misses atomic.Int64
}

// GeocodeCacheConfig configures the geocode cache.
type GeocodeCacheConfig struct {
	Capacity int
	Timeout  time.Duration
	Metrics  *metrics.Pipeline
}

// NewGeocodeCache creates a bounded geocode cache over provider.
func NewGeocodeCache(provider out.GeocodeProvider, cfg GeocodeCacheConfig) (*GeocodeCache, error) {
	if cfg.Capacity <= 0 {
		cfg.Capacity = DefaultGeocodeCacheSize
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = 10 * time.Second
	}
	cache, err := lru.New[string, geocodeEntry](cfg.Capacity)
	if err != nil {
		return nil, err
	}
	return &GeocodeCache{
		provider: provider,
		cache:    cache,
		timeout:  cfg.Timeout,
		metrics:  cfg.Metrics,
	}, nil
}

// Resolve returns the coordinate for a place name, or nil when the name is
// unresolvable. Provider failures (timeout, network, not-found) are cached
// as unresolvable so the same name is never retried on every occurrence.
func (c *GeocodeCache) Resolve(ctx context.Context, name string) *domain.Coordinate {
	key := normalizePlace(name)
	if key == "" {
		return nil
	}

	if entry, ok := c.cache.Get(key); ok {
		c.hits.Add(1)
		if c.metrics != nil {
			c.metrics.CacheHits.Inc()
		}
		return entry.coord
	}

	c.misses.Add(1)
	if c.metrics != nil {
		c.metrics.CacheMisses.Inc()
	}

	lookupCtx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	coord, err := c.provider.Resolve(lookupCtx, key)
	if err != nil {
		coord = nil
	}
	c.cache.Add(key, geocodeEntry{coord: coord})
	return coord
}

// Purge drops all cached entries.
func (c *GeocodeCache) Purge() {
	c.cache.Purge()
}

// Len returns the number of cached entries.
func (c *GeocodeCache) Len() int {
	return c.cache.Len()
}

// Stats returns hit/miss counts since construction or the last reset.
func (c *GeocodeCache) Stats() (hits, misses int64) {
	return c.hits.Load(), c.misses.Load()
}

func normalizePlace(name string) string {
	return strings.ToLower(strings.TrimSpace(name))
}
