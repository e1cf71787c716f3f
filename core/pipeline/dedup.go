package pipeline

import (
	"context"
	"math"
	"sync"

	"crisislens_server/core/port/out"
)

// =============================================================================
// Deduplication Index
// =============================================================================

// DefaultDedupThreshold is the cosine similarity above which two messages
// are considered duplicates.
const DefaultDedupThreshold = 0.85

type dedupEntry struct {
	id        string
	embedding []float32
}

// DeduplicationIndex is an append-only collection of message embeddings.
// Each check compares the candidate against already-stored entries only,
// then appends it, so a message can never match itself; the first hit in
// insertion order is the earliest duplicate, which keeps duplicate chains
// pointing at one canonical origin.
//
// The linear scan is O(n) per check. Fine for session-scale volumes; a
// high-volume deployment would swap in an ANN index behind the same
// compare-before-insert contract.
type DeduplicationIndex struct {
	embedder  out.Embedder
	threshold float64

	mu      sync.Mutex
	entries []dedupEntry
}

// NewDeduplicationIndex creates an index over embedder with the given
// similarity threshold.
func NewDeduplicationIndex(embedder out.Embedder, threshold float64) *DeduplicationIndex {
	if threshold <= 0 || threshold > 1 {
		threshold = DefaultDedupThreshold
	}
	return &DeduplicationIndex{embedder: embedder, threshold: threshold}
}

// CheckAndAdd reports whether text duplicates a previously indexed message
// and appends its embedding either way. The embedding call happens outside
// the lock; the compare-then-append sequence is atomic so no concurrent
// check ever observes a partially appended entry.
func (ix *DeduplicationIndex) CheckAndAdd(ctx context.Context, id, text string) (bool, string, error) {
	embedding, err := ix.embedder.Embed(ctx, text)
	if err != nil {
		return false, "", err
	}

	ix.mu.Lock()
	defer ix.mu.Unlock()

	matchedID := ""
	for _, entry := range ix.entries {
		if cosineSimilarity(embedding, entry.embedding) >= ix.threshold {
			matchedID = entry.id
			break
		}
	}
	ix.entries = append(ix.entries, dedupEntry{id: id, embedding: embedding})

	if matchedID != "" {
		return true, matchedID, nil
	}
	return false, "", nil
}

// Len returns the number of indexed messages.
func (ix *DeduplicationIndex) Len() int {
	ix.mu.Lock()
	defer ix.mu.Unlock()
	return len(ix.entries)
}

// Reset drops all indexed embeddings.
func (ix *DeduplicationIndex) Reset() {
	ix.mu.Lock()
	defer ix.mu.Unlock()
	ix.entries = nil
}

func cosineSimilarity(a, b []float32) float64 {
	if len(a) != len(b) || len(a) == 0 {
		return 0
	}
	var dot, normA, normB float64
	for i := range a {
		dot += float64(a[i]) * float64(b[i])
		normA += float64(a[i]) * float64(a[i])
		normB += float64(b[i]) * float64(b[i])
	}
	if normA == 0 || normB == 0 {
		return 0
	}
	return dot / (math.Sqrt(normA) * math.Sqrt(normB))
}
