package domain

import (
	"os"
	"path/filepath"
	"testing"
)

func TestDefaultTaxonomyShape(t *testing.T) {
	tax := DefaultTaxonomy()

	if len(tax.RelevanceLabels) != 2 {
		t.Errorf("relevance labels = %d, want 2", len(tax.RelevanceLabels))
	}
	if len(tax.TypeHypotheses) != len(tax.TypeLabels) {
		t.Errorf("type hypotheses (%d) and labels (%d) must be aligned",
			len(tax.TypeHypotheses), len(tax.TypeLabels))
	}
	if len(tax.TypeLabels) != 8 {
		t.Errorf("type labels = %d, want 8", len(tax.TypeLabels))
	}
	if len(tax.UrgencyHypotheses) != 4 {
		t.Errorf("urgency hypotheses = %d, want 4", len(tax.UrgencyHypotheses))
	}
	if len(tax.CriticalKeywords) == 0 || len(tax.HighKeywords) == 0 {
		t.Error("keyword tables must not be empty")
	}
}

func TestLoadTaxonomyOverride(t *testing.T) {
	path := filepath.Join(t.TempDir(), "taxonomy.yaml")
	content := `
relevance_labels:
  - "wildfire emergency"
  - "everyday chatter"
critical_keywords:
  incendio: 0.3
`
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatal(err)
	}

	tax, err := LoadTaxonomy(path)
	if err != nil {
		t.Fatalf("LoadTaxonomy: %v", err)
	}

	if tax.RelevanceLabels[0] != "wildfire emergency" {
		t.Errorf("relevance label = %q, want override", tax.RelevanceLabels[0])
	}
	if tax.CriticalKeywords["incendio"] != 0.3 {
		t.Errorf("critical keywords = %v, want override applied", tax.CriticalKeywords)
	}
	// Sections the file omits keep their defaults.
	if len(tax.TypeLabels) != 8 {
		t.Errorf("type labels = %d, want default 8", len(tax.TypeLabels))
	}
}

func TestLoadTaxonomyEmptyPath(t *testing.T) {
	tax, err := LoadTaxonomy("")
	if err != nil {
		t.Fatalf("LoadTaxonomy: %v", err)
	}
	if len(tax.TypeLabels) != 8 {
		t.Error("empty path must return defaults")
	}
}

func TestIsCritical(t *testing.T) {
	rec := &AnalysisRecord{}
	if rec.IsCritical() {
		t.Error("record without urgency must not be critical")
	}
	rec.Urgency = &UrgencyResult{Level: UrgencyHigh}
	if rec.IsCritical() {
		t.Error("HIGH urgency must not be critical")
	}
	rec.Urgency.Level = UrgencyCritical
	if !rec.IsCritical() {
		t.Error("CRITICAL urgency must be critical")
	}
}
