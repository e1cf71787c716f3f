package geocode

import (
	"context"
	"fmt"
	"time"

	"github.com/rs/zerolog"

	"crisislens_server/core/domain"
	"crisislens_server/core/port/out"
	"crisislens_server/pkg/cache"
)

// Cache TTLs. Resolved coordinates essentially never move; negative results
// get a shorter TTL so a place Nominatim learns about eventually resolves.
const (
	resolvedTTL   = 30 * 24 * time.Hour
	negativeTTL   = 24 * time.Hour
	cacheKeyScope = "geocode"
)

type cachedCoordinate struct {
	Found     bool    `json:"found"`
	Latitude  float64 `json:"latitude,omitempty"`
	Longitude float64 `json:"longitude,omitempty"`
}

// CachedProvider decorates a GeocodeProvider with a Redis layer shared
// across process restarts, sitting behind the in-memory LRU. Not-found
// results are cached too (negative caching).
type CachedProvider struct {
	delegate out.GeocodeProvider
	cache    *cache.RedisCache
	log      zerolog.Logger
}

// NewCachedProvider wraps delegate with the Redis cache.
func NewCachedProvider(delegate out.GeocodeProvider, redisCache *cache.RedisCache, log zerolog.Logger) *CachedProvider {
	return &CachedProvider{
		delegate: delegate,
		cache:    redisCache,
		log:      log.With().Str("component", "geocode_cache").Logger(),
	}
}

// Resolve returns the cached coordinate when present, otherwise delegates
// and stores the outcome. Cache failures fall through to the delegate.
func (p *CachedProvider) Resolve(ctx context.Context, name string) (*domain.Coordinate, error) {
	key := fmt.Sprintf("%s:%s", cacheKeyScope, name)

	var cached cachedCoordinate
	found, err := p.cache.GetJSON(ctx, key, &cached)
	if err != nil {
		p.log.Warn().Err(err).Str("place", name).Msg("redis lookup failed, falling through")
	} else if found {
		if !cached.Found {
			return nil, nil
		}
		return &domain.Coordinate{Latitude: cached.Latitude, Longitude: cached.Longitude}, nil
	}

	coord, err := p.delegate.Resolve(ctx, name)
	if err != nil {
		return nil, err
	}

	entry := cachedCoordinate{Found: coord != nil}
	ttl := negativeTTL
	if coord != nil {
		entry.Latitude = coord.Latitude
		entry.Longitude = coord.Longitude
		ttl = resolvedTTL
	}
	go func() {
		storeCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := p.cache.SetJSON(storeCtx, key, entry, ttl); err != nil {
			p.log.Warn().Err(err).Str("place", name).Msg("redis store failed")
		}
	}()
	return coord, nil
}

var _ out.GeocodeProvider = (*CachedProvider)(nil)
