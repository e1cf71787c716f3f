package pipeline

import (
	"context"
	"sort"

	"crisislens_server/core/domain"
	"crisislens_server/core/port/out"
)

// =============================================================================
// Event Type Stage
// =============================================================================

// DefaultTypeThreshold is the minimum score for an event type label to be
// included in the multi-label result.
const DefaultTypeThreshold = 0.40

// EventTypeStage classifies a relevant message into one or more of the
// fixed crisis event categories.
type EventTypeStage struct {
	model     out.ZeroShotModel
	taxonomy  *domain.Taxonomy
	threshold float64
}

// NewEventTypeStage creates the event type stage.
func NewEventTypeStage(model out.ZeroShotModel, taxonomy *domain.Taxonomy, threshold float64) *EventTypeStage {
	if threshold <= 0 || threshold > 1 {
		threshold = DefaultTypeThreshold
	}
	return &EventTypeStage{model: model, taxonomy: taxonomy, threshold: threshold}
}

func (s *EventTypeStage) Name() string { return "type" }

func (s *EventTypeStage) Run(ctx context.Context, sc *StageContext) *StageError {
	scores, err := s.model.Classify(ctx, sc.CleanText, s.taxonomy.TypeHypotheses, true)
	if err != nil {
		return newStageError(s.Name(), err)
	}

	result := &domain.TypeResult{Scores: make(map[domain.EventType]float64, len(s.taxonomy.TypeLabels))}
	for i, hypothesis := range s.taxonomy.TypeHypotheses {
		label := s.taxonomy.TypeLabels[i]
		score := scoreFor(scores, hypothesis)
		result.Scores[label] = score
		if score > result.TopScore {
			result.TopScore = score
			result.TopLabel = label
		}
		if score >= s.threshold {
			result.Labels = append(result.Labels, label)
		}
	}
	sort.Slice(result.Labels, func(i, j int) bool {
		return result.Scores[result.Labels[i]] > result.Scores[result.Labels[j]]
	})

	// A relevant message always gets at least the best-scoring category.
	if len(result.Labels) == 0 && result.TopLabel != "" {
		result.Labels = []domain.EventType{result.TopLabel}
	}

	sc.Record.Type = result
	return nil
}
