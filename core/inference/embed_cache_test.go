package inference

import (
	"context"
	"sync"
	"testing"
	"time"
)

type stubEmbedder struct {
	mu    sync.Mutex
	calls int
}

func (e *stubEmbedder) Embed(_ context.Context, text string) ([]float32, error) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.calls++
	return []float32{float32(len(text)), 1}, nil
}

func TestCachedEmbedderReusesEmbedding(t *testing.T) {
	delegate := &stubEmbedder{}
	embedder := NewCachedEmbedder(delegate, nil)
	ctx := context.Background()

	first, err := embedder.Embed(ctx, "water rising fast")
	if err != nil {
		t.Fatalf("Embed: %v", err)
	}
	second, err := embedder.Embed(ctx, "water rising fast")
	if err != nil {
		t.Fatalf("Embed: %v", err)
	}

	if delegate.calls != 1 {
		t.Errorf("delegate calls = %d, want 1", delegate.calls)
	}
	if len(first) != len(second) || first[0] != second[0] {
		t.Error("cached embedding differs from original")
	}
}

func TestCachedEmbedderPurge(t *testing.T) {
	delegate := &stubEmbedder{}
	embedder := NewCachedEmbedder(delegate, nil)
	ctx := context.Background()

	_, _ = embedder.Embed(ctx, "text")
	embedder.Purge()
	_, _ = embedder.Embed(ctx, "text")

	if delegate.calls != 2 {
		t.Errorf("delegate calls = %d, want 2 after purge", delegate.calls)
	}
}

func TestEmbeddingCacheExpiry(t *testing.T) {
	cache := NewEmbeddingCache(&EmbeddingCacheConfig{MaxSize: 10, TTL: 10 * time.Millisecond})

	cache.Set("key", []float32{1, 2})
	if _, ok := cache.Get("key"); !ok {
		t.Fatal("fresh entry must be a hit")
	}

	time.Sleep(20 * time.Millisecond)
	if _, ok := cache.Get("key"); ok {
		t.Fatal("expired entry must be a miss")
	}

	hits, misses, _ := cache.Stats()
	if hits != 1 || misses != 1 {
		t.Errorf("stats = (%d, %d), want (1, 1)", hits, misses)
	}
}

func TestEmbeddingCacheEvictsAtCapacity(t *testing.T) {
	cache := NewEmbeddingCache(&EmbeddingCacheConfig{MaxSize: 2, TTL: time.Hour})

	cache.Set("a", []float32{1})
	cache.Set("b", []float32{2})
	cache.Set("c", []float32{3}) // evicts the oldest

	count := 0
	for _, key := range []string{"a", "b", "c"} {
		if _, ok := cache.Get(key); ok {
			count++
		}
	}
	if count != 2 {
		t.Errorf("cached entries = %d, want 2 at capacity", count)
	}
}
