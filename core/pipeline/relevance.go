package pipeline

import (
	"context"

	"crisislens_server/core/domain"
	"crisislens_server/core/port/out"
)

// =============================================================================
// Relevance Stage
// =============================================================================

// DefaultRelevanceThreshold is the minimum crisis-hypothesis score for a
// message to be considered crisis-relevant.
const DefaultRelevanceThreshold = 0.65

// RelevanceStage decides whether a message concerns a crisis at all. It is
// the pipeline's gate: the conditional stages only run when it says yes.
type RelevanceStage struct {
	model     out.ZeroShotModel
	taxonomy  *domain.Taxonomy
	threshold float64
}

// NewRelevanceStage creates the relevance gate stage.
func NewRelevanceStage(model out.ZeroShotModel, taxonomy *domain.Taxonomy, threshold float64) *RelevanceStage {
	if threshold <= 0 || threshold > 1 {
		threshold = DefaultRelevanceThreshold
	}
	return &RelevanceStage{model: model, taxonomy: taxonomy, threshold: threshold}
}

func (s *RelevanceStage) Name() string { return "relevance" }

func (s *RelevanceStage) Run(ctx context.Context, sc *StageContext) *StageError {
	if sc.CleanText == "" {
		return invalidInput(s.Name(), "empty text after preprocessing")
	}

	scores, err := s.model.Classify(ctx, sc.CleanText, s.taxonomy.RelevanceLabels, false)
	if err != nil {
		return newStageError(s.Name(), err)
	}

	crisisScore := scoreFor(scores, s.taxonomy.RelevanceLabels[0])
	sc.Record.Relevance = &domain.RelevanceResult{
		Relevant:   crisisScore >= s.threshold,
		Confidence: crisisScore,
	}
	return nil
}

// scoreFor returns the score of a label in a classification result, 0 when
// the model omitted it.
func scoreFor(scores []out.LabelScore, label string) float64 {
	for _, ls := range scores {
		if ls.Label == label {
			return ls.Score
		}
	}
	return 0
}
