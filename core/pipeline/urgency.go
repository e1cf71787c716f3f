package pipeline

import (
	"context"
	"strings"

	"crisislens_server/core/domain"
	"crisislens_server/core/port/out"
)

// =============================================================================
// Urgency Stage
// =============================================================================

// Level cutoffs on the combined urgency score.
const (
	criticalCutoff = 0.85
	highCutoff     = 0.65
	mediumCutoff   = 0.40
)

// Weight of each urgency hypothesis (critical, high, medium, low) when
// collapsing the zero-shot distribution into one score.
var urgencyWeights = [4]float64{1.0, 0.75, 0.5, 0.25}

// UrgencyStage scores how time-critical a relevant message is. The semantic
// zero-shot score is blended with a keyword boost (0.7/0.3) because short
// distress messages lean on a handful of words ("trapped", "sos") that
// hypothesis scoring alone underweights.
type UrgencyStage struct {
	model    out.ZeroShotModel
	taxonomy *domain.Taxonomy
}

// NewUrgencyStage creates the urgency stage.
func NewUrgencyStage(model out.ZeroShotModel, taxonomy *domain.Taxonomy) *UrgencyStage {
	return &UrgencyStage{model: model, taxonomy: taxonomy}
}

func (s *UrgencyStage) Name() string { return "urgency" }

func (s *UrgencyStage) Run(ctx context.Context, sc *StageContext) *StageError {
	scores, err := s.model.Classify(ctx, sc.CleanText, s.taxonomy.UrgencyHypotheses, false)
	if err != nil {
		return newStageError(s.Name(), err)
	}

	var semantic float64
	for i, hypothesis := range s.taxonomy.UrgencyHypotheses {
		semantic += scoreFor(scores, hypothesis) * urgencyWeights[i]
	}

	boost := s.keywordBoost(sc.CleanText)
	combined := semantic*0.7 + boost*0.3

	sc.Record.Urgency = &domain.UrgencyResult{
		Level:        levelFor(combined),
		Score:        combined,
		KeywordBoost: boost,
	}
	return nil
}

// keywordBoost sums the boost weights of every distress keyword present in
// the text, capped at 1.0. Tables include non-English keywords so urgency
// survives messages the hypotheses were not written for.
func (s *UrgencyStage) keywordBoost(text string) float64 {
	lower := strings.ToLower(text)
	var boost float64
	for keyword, weight := range s.taxonomy.CriticalKeywords {
		if strings.Contains(lower, keyword) {
			boost += weight
		}
	}
	for keyword, weight := range s.taxonomy.HighKeywords {
		if strings.Contains(lower, keyword) {
			boost += weight
		}
	}
	if boost > 1.0 {
		boost = 1.0
	}
	return boost
}

func levelFor(score float64) domain.UrgencyLevel {
	switch {
	case score >= criticalCutoff:
		return domain.UrgencyCritical
	case score >= highCutoff:
		return domain.UrgencyHigh
	case score >= mediumCutoff:
		return domain.UrgencyMedium
	default:
		return domain.UrgencyLow
	}
}
