package pipeline

import (
	"context"
	"strings"

	"crisislens_server/core/domain"
	"crisislens_server/core/port/out"
)

// =============================================================================
// Location Stage
// =============================================================================

// LocationStage extracts place mentions from a relevant message and resolves
// each through the geocode cache. Unresolved mentions stay in the record as
// text without a coordinate.
type LocationStage struct {
	extractor out.PlaceExtractor
	geocache  *GeocodeCache
	taxonomy  *domain.Taxonomy
}

// NewLocationStage creates the location stage.
func NewLocationStage(extractor out.PlaceExtractor, geocache *GeocodeCache, taxonomy *domain.Taxonomy) *LocationStage {
	return &LocationStage{extractor: extractor, geocache: geocache, taxonomy: taxonomy}
}

func (s *LocationStage) Name() string { return "location" }

func (s *LocationStage) Run(ctx context.Context, sc *StageContext) *StageError {
	mentions, err := s.extractor.ExtractPlaces(ctx, sc.CleanText)
	if err != nil {
		return newStageError(s.Name(), err)
	}

	locations := make([]domain.Location, 0, len(mentions))
	for _, mention := range mentions {
		if strings.TrimSpace(mention.Text) == "" {
			continue
		}
		label := mention.Label
		if label == "ORG" && s.isFacility(mention.Text) {
			label = "FACILITY"
		}
		locations = append(locations, domain.Location{
			Text:       mention.Text,
			Label:      label,
			Confidence: mention.Confidence,
			Coordinate: s.geocache.Resolve(ctx, mention.Text),
		})
	}

	sc.Record.Locations = locations
	return nil
}

// isFacility reports whether an ORG mention is really a physical place,
// such as "Hatay State Hospital".
func (s *LocationStage) isFacility(text string) bool {
	lower := strings.ToLower(text)
	for _, keyword := range s.taxonomy.FacilityKeywords {
		if strings.Contains(lower, keyword) {
			return true
		}
	}
	return false
}
