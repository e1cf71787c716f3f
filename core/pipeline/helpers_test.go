package pipeline

import (
	"context"
	"strings"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/rs/zerolog"

	"crisislens_server/core/domain"
	"crisislens_server/core/port/out"
)

// =============================================================================
// Test Fakes
// =============================================================================

// fakeModel scripts zero-shot results by inspecting the candidate label set.
type fakeModel struct {
	calls atomic.Int64
	// delay is applied before answering, for completion-order tests.
	delay func(text string) time.Duration
	// fail returns a non-nil error for matching calls.
	fail func(labels []string) error
	// crisisScore decides the relevance score per text.
	crisisScore func(text string) float64
}

func (m *fakeModel) Classify(ctx context.Context, text string, labels []string, multiLabel bool) ([]out.LabelScore, error) {
	m.calls.Add(1)

	if m.delay != nil {
		select {
		case <-time.After(m.delay(text)):
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	}
	if m.fail != nil {
		if err := m.fail(labels); err != nil {
			return nil, err
		}
	}

	scores := make([]out.LabelScore, len(labels))
	switch {
	case len(labels) == 2: // relevance hypotheses
		crisis := 0.9
		if m.crisisScore != nil {
			crisis = m.crisisScore(text)
		}
		scores[0] = out.LabelScore{Label: labels[0], Score: crisis}
		scores[1] = out.LabelScore{Label: labels[1], Score: 1 - crisis}
	case len(labels) == 4: // urgency hypotheses
		if strings.Contains(strings.ToLower(text), "trapped") {
			scores[0] = out.LabelScore{Label: labels[0], Score: 0.9}
		} else {
			scores[0] = out.LabelScore{Label: labels[0], Score: 0.1}
		}
		for i := 1; i < 4; i++ {
			scores[i] = out.LabelScore{Label: labels[i], Score: 0.1}
		}
	default: // event type hypotheses
		for i, l := range labels {
			score := 0.05
			if strings.Contains(l, "rescue") {
				score = 0.8
			}
			scores[i] = out.LabelScore{Label: l, Score: score}
		}
	}
	return scores, nil
}

// fakeEmbedder maps each distinct text to its own one-hot vector, so equal
// texts are identical (cosine 1) and distinct texts orthogonal (cosine 0).
type fakeEmbedder struct {
	mu    sync.Mutex
	seen  map[string]int
	calls int
	err   error
}

func newFakeEmbedder() *fakeEmbedder {
	return &fakeEmbedder{seen: make(map[string]int)}
}

func (e *fakeEmbedder) Embed(_ context.Context, text string) ([]float32, error) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.calls++
	if e.err != nil {
		return nil, e.err
	}
	idx, ok := e.seen[text]
	if !ok {
		idx = len(e.seen)
		e.seen[text] = idx
	}
	vec := make([]float32, 64)
	vec[idx%64] = 1
	return vec, nil
}

type fakeExtractor struct {
	mentions []out.PlaceMention
	err      error
}

func (e *fakeExtractor) ExtractPlaces(context.Context, string) ([]out.PlaceMention, error) {
	return e.mentions, e.err
}

// fakeGeoProvider counts lookups per key.
type fakeGeoProvider struct {
	mu     sync.Mutex
	coords map[string]*domain.Coordinate
	calls  map[string]int
	err    error
}

func newFakeGeoProvider(coords map[string]*domain.Coordinate) *fakeGeoProvider {
	return &fakeGeoProvider{coords: coords, calls: make(map[string]int)}
}

func (p *fakeGeoProvider) Resolve(_ context.Context, name string) (*domain.Coordinate, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.calls[name]++
	if p.err != nil {
		return nil, p.err
	}
	return p.coords[name], nil
}

func (p *fakeGeoProvider) totalCalls() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	n := 0
	for _, c := range p.calls {
		n += c
	}
	return n
}

// =============================================================================
// Builders
// =============================================================================

type testPipeline struct {
	orch     *Orchestrator
	model    *fakeModel
	embedder *fakeEmbedder
	geo      *fakeGeoProvider
}

func newTestPipeline(t *testing.T, model *fakeModel, extractor *fakeExtractor, geoCoords map[string]*domain.Coordinate) *testPipeline {
	t.Helper()

	if model == nil {
		model = &fakeModel{}
	}
	if extractor == nil {
		extractor = &fakeExtractor{}
	}
	embedder := newFakeEmbedder()
	geo := newFakeGeoProvider(geoCoords)
	taxonomy := domain.DefaultTaxonomy()

	geocache, err := NewGeocodeCache(geo, GeocodeCacheConfig{Capacity: 100, Timeout: time.Second})
	if err != nil {
		t.Fatalf("NewGeocodeCache: %v", err)
	}

	orch := NewOrchestrator(
		Config{MaxBatchSize: 100, BatchWorkers: 4, StageTimeout: 2 * time.Second},
		Deps{
			Relevance: NewRelevanceStage(model, taxonomy, 0.65),
			EventType: NewEventTypeStage(model, taxonomy, 0.40),
			Urgency:   NewUrgencyStage(model, taxonomy),
			Location:  NewLocationStage(extractor, geocache, taxonomy),
			Dedup:     NewDeduplicationIndex(embedder, 0.85),
			Geocache:  geocache,
			Logger:    zerolog.Nop(),
		},
	)
	return &testPipeline{orch: orch, model: model, embedder: embedder, geo: geo}
}
