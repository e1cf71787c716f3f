// Package out defines outbound ports consumed by the analysis core.
package out

import (
	"context"

	"crisislens_server/core/domain"
)

// LabelScore is one candidate label with its model score.
type LabelScore struct {
	Label string  `json:"label"`
	Score float64 `json:"score"`
}

// ZeroShotModel classifies text against arbitrary candidate labels and
// returns scores ranked descending. Implementations must be safe for
// concurrent use or declare otherwise via config (see inference.SharedResource).
type ZeroShotModel interface {
	Classify(ctx context.Context, text string, labels []string, multiLabel bool) ([]LabelScore, error)
}

// Embedder produces a dense vector representation of a text.
type Embedder interface {
	Embed(ctx context.Context, text string) ([]float32, error)
}

// PlaceMention is a raw place-name string found in a message.
type PlaceMention struct {
	Text       string  `json:"text"`
	Label      string  `json:"label"` // LOC or FACILITY
	Confidence float64 `json:"confidence"`
}

// PlaceExtractor finds place-name mentions in free text, in emission order.
type PlaceExtractor interface {
	ExtractPlaces(ctx context.Context, text string) ([]PlaceMention, error)
}

// GeocodeProvider resolves a place name to coordinates. A nil coordinate
// with a nil error means the provider found no match.
type GeocodeProvider interface {
	Resolve(ctx context.Context, name string) (*domain.Coordinate, error)
}

// RecordArchiver persists a finished analysis record. Archival is
// best-effort; the pipeline never blocks on it.
type RecordArchiver interface {
	Archive(ctx context.Context, rec *domain.AnalysisRecord) error
}
