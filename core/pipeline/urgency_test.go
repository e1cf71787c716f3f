package pipeline

import (
	"context"
	"testing"

	"crisislens_server/core/domain"
)

func TestLevelForCutoffs(t *testing.T) {
	tests := []struct {
		score float64
		want  domain.UrgencyLevel
	}{
		{0.95, domain.UrgencyCritical},
		{0.85, domain.UrgencyCritical},
		{0.84, domain.UrgencyHigh},
		{0.65, domain.UrgencyHigh},
		{0.64, domain.UrgencyMedium},
		{0.40, domain.UrgencyMedium},
		{0.39, domain.UrgencyLow},
		{0.0, domain.UrgencyLow},
	}
	for _, tt := range tests {
		if got := levelFor(tt.score); got != tt.want {
			t.Errorf("levelFor(%v) = %s, want %s", tt.score, got, tt.want)
		}
	}
}

func TestKeywordBoost(t *testing.T) {
	stage := NewUrgencyStage(nil, domain.DefaultTaxonomy())

	tests := []struct {
		name string
		text string
		min  float64
		max  float64
	}{
		{"no keywords", "sunny afternoon in the park", 0, 0},
		{"single critical keyword", "a child is trapped", 0.25, 0.36},
		{"multilingual keyword", "socorro! ayuda urgente", 0.5, 0.75},
		{"many keywords cap at one", "sos trapped dying drowning buried collapsed fire bleeding emergency urgent", 1.0, 1.0},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := stage.keywordBoost(tt.text)
			if got < tt.min || got > tt.max {
				t.Errorf("keywordBoost(%q) = %v, want within [%v, %v]", tt.text, got, tt.min, tt.max)
			}
		})
	}
}

func TestUrgencyRunBlendsSemanticAndKeywords(t *testing.T) {
	model := &fakeModel{}
	stage := NewUrgencyStage(model, domain.DefaultTaxonomy())

	sc := &StageContext{
		CleanText: "URGENT: people trapped, please help",
		Record:    &domain.AnalysisRecord{},
	}
	if serr := stage.Run(context.Background(), sc); serr != nil {
		t.Fatalf("Run: %v", serr)
	}

	urgency := sc.Record.Urgency
	if urgency == nil {
		t.Fatal("urgency not set")
	}
	if urgency.Level != domain.UrgencyCritical {
		t.Errorf("level = %s, want CRITICAL for trapped-with-keywords text", urgency.Level)
	}
	if urgency.KeywordBoost <= 0 {
		t.Errorf("keyword boost = %v, want > 0", urgency.KeywordBoost)
	}

	// Same semantic profile without distress keywords lands lower.
	calm := &StageContext{
		CleanText: "situation report for the northern district",
		Record:    &domain.AnalysisRecord{},
	}
	if serr := stage.Run(context.Background(), calm); serr != nil {
		t.Fatalf("Run: %v", serr)
	}
	if calm.Record.Urgency.Level == domain.UrgencyCritical {
		t.Errorf("level = %s, calm text must not be CRITICAL", calm.Record.Urgency.Level)
	}
}
