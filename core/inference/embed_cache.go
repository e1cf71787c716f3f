package inference

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"sync"
	"time"

	"crisislens_server/core/port/out"
)

// =============================================================================
// Embedding Cache
// =============================================================================

// EmbeddingCache caches embeddings by content hash to avoid re-embedding
// identical texts (exact resubmissions of the same message are common).
type EmbeddingCache struct {
	cache   map[string]*cachedEmbedding
	mu      sync.RWMutex
	maxSize int
	ttl     time.Duration

	hits   int64
	misses int64
}

type cachedEmbedding struct {
	embedding []float32
	createdAt time.Time
}

// EmbeddingCacheConfig configures the embedding cache.
type EmbeddingCacheConfig struct {
	MaxSize int
	TTL     time.Duration
}

// DefaultEmbeddingCacheConfig returns sensible defaults.
func DefaultEmbeddingCacheConfig() *EmbeddingCacheConfig {
	return &EmbeddingCacheConfig{
		MaxSize: 10000,
		TTL:     24 * time.Hour, // embeddings don't change
	}
}

// NewEmbeddingCache creates a new embedding cache.
func NewEmbeddingCache(config *EmbeddingCacheConfig) *EmbeddingCache {
	if config == nil {
		config = DefaultEmbeddingCacheConfig()
	}
	return &EmbeddingCache{
		cache:   make(map[string]*cachedEmbedding),
		maxSize: config.MaxSize,
		ttl:     config.TTL,
	}
}

// Get retrieves an embedding from cache.
func (c *EmbeddingCache) Get(text string) ([]float32, bool) {
	key := hashText(text)

	c.mu.RLock()
	entry, ok := c.cache[key]
	c.mu.RUnlock()

	if !ok || time.Since(entry.createdAt) > c.ttl {
		c.mu.Lock()
		if !ok {
			c.misses++
		} else {
			delete(c.cache, key)
			c.misses++
		}
		c.mu.Unlock()
		return nil, false
	}

	c.mu.Lock()
	c.hits++
	c.mu.Unlock()
	return entry.embedding, true
}

// Set stores an embedding in cache, evicting the oldest entry at capacity.
func (c *EmbeddingCache) Set(text string, embedding []float32) {
	key := hashText(text)

	c.mu.Lock()
	defer c.mu.Unlock()

	if len(c.cache) >= c.maxSize {
		c.evictOldest()
	}
	c.cache[key] = &cachedEmbedding{embedding: embedding, createdAt: time.Now()}
}

// Purge drops all cached embeddings.
func (c *EmbeddingCache) Purge() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.cache = make(map[string]*cachedEmbedding)
}

// Stats returns cache hit statistics.
func (c *EmbeddingCache) Stats() (hits, misses int64, hitRate float64) {
	c.mu.RLock()
	defer c.mu.RUnlock()

	hits = c.hits
	misses = c.misses
	total := hits + misses
	if total > 0 {
		hitRate = float64(hits) / float64(total)
	}
	return
}

func (c *EmbeddingCache) evictOldest() {
	var oldestKey string
	var oldestTime time.Time

	for key, entry := range c.cache {
		if oldestKey == "" || entry.createdAt.Before(oldestTime) {
			oldestKey = key
			oldestTime = entry.createdAt
		}
	}
	if oldestKey != "" {
		delete(c.cache, oldestKey)
	}
}

func hashText(text string) string {
	hash := sha256.Sum256([]byte(text))
	return hex.EncodeToString(hash[:16])
}

// =============================================================================
// Cached Embedder
// =============================================================================

// CachedEmbedder wraps an Embedder with the cache above.
type CachedEmbedder struct {
	delegate out.Embedder
	cache    *EmbeddingCache
}

// NewCachedEmbedder creates a caching embedder.
func NewCachedEmbedder(delegate out.Embedder, cache *EmbeddingCache) *CachedEmbedder {
	if cache == nil {
		cache = NewEmbeddingCache(nil)
	}
	return &CachedEmbedder{delegate: delegate, cache: cache}
}

// Embed returns the embedding, from cache when available.
func (e *CachedEmbedder) Embed(ctx context.Context, text string) ([]float32, error) {
	if embedding, ok := e.cache.Get(text); ok {
		return embedding, nil
	}

	embedding, err := e.delegate.Embed(ctx, text)
	if err != nil {
		return nil, err
	}
	e.cache.Set(text, embedding)
	return embedding, nil
}

// Purge clears the underlying cache.
func (e *CachedEmbedder) Purge() {
	e.cache.Purge()
}

var _ out.Embedder = (*CachedEmbedder)(nil)
