package domain

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"
)

// =============================================================================
// Classification Taxonomy
// =============================================================================

// Taxonomy holds the label sets and keyword tables the pipeline classifies
// against. Defaults cover the built-in crisis categories; a YAML file can
// override them without a rebuild.
type Taxonomy struct {
	// RelevanceLabels are the two zero-shot hypotheses for the relevance
	// gate; index 0 is the "crisis" hypothesis.
	RelevanceLabels []string `yaml:"relevance_labels"`

	// TypeHypotheses are the natural-language hypotheses for event type
	// classification, index-aligned with TypeLabels.
	TypeHypotheses []string    `yaml:"type_hypotheses"`
	TypeLabels     []EventType `yaml:"type_labels"`

	// UrgencyHypotheses order: critical, high, medium, low.
	UrgencyHypotheses []string `yaml:"urgency_hypotheses"`

	// Keyword boost tables for urgency scoring.
	CriticalKeywords map[string]float64 `yaml:"critical_keywords"`
	HighKeywords     map[string]float64 `yaml:"high_keywords"`

	// FacilityKeywords mark ORG-like mentions that are really places.
	FacilityKeywords []string `yaml:"facility_keywords"`
}

// DefaultTaxonomy returns the built-in crisis taxonomy.
func DefaultTaxonomy() *Taxonomy {
	return &Taxonomy{
		RelevanceLabels: []string{
			"natural disaster emergency crisis",
			"normal everyday activity",
		},
		TypeHypotheses: []string{
			"rescue and evacuation request",
			"infrastructure and utility damage",
			"medical emergency and health crisis",
			"food water and supply request",
			"casualty and death report",
			"volunteer and donation offer",
			"situational update and warning",
			"displaced people and shelter need",
		},
		TypeLabels: []EventType{
			EventRescueRequest,
			EventInfrastructureDamage,
			EventMedicalEmergency,
			EventSupplyRequest,
			EventCasualtyReport,
			EventVolunteerOffer,
			EventSituationalUpdate,
			EventDisplacement,
		},
		UrgencyHypotheses: []string{
			"This is an extremely urgent life-threatening emergency requiring immediate rescue",
			"This reports significant damage or urgent need for resources",
			"This is a moderate update about the disaster situation",
			"This is a general informational update or offer of help",
		},
		CriticalKeywords: map[string]float64{
			"trapped": 0.25, "dying": 0.30, "drowning": 0.30, "buried": 0.25,
			"collapsed": 0.20, "fire": 0.15, "bleeding": 0.25, "unconscious": 0.25,
			"children": 0.10, "baby": 0.15, "pregnant": 0.15, "elderly": 0.10,
			"help us": 0.20, "please help": 0.15, "sos": 0.25, "emergency": 0.15,
			"urgent": 0.15, "immediately": 0.10, "critical": 0.15, "life threatening": 0.25,
			"socorro": 0.20, "ayuda": 0.20, "urgente": 0.15,
			"au secours": 0.20, "aide": 0.15,
			"مساعدة": 0.20, "طوارئ": 0.15,
			"बचाओ": 0.20, "मदद": 0.15,
		},
		HighKeywords: map[string]float64{
			"injured": 0.10, "damage": 0.08, "destroyed": 0.10, "flood": 0.08,
			"earthquake": 0.08, "casualties": 0.12, "missing": 0.10,
			"evacuation": 0.10, "rescue": 0.10, "survivors": 0.08,
			"medical": 0.08, "hospital": 0.08, "ambulance": 0.10,
		},
		FacilityKeywords: []string{
			"hospital", "school", "university", "airport", "station",
			"bridge", "church", "mosque", "temple", "shelter",
			"camp", "center", "centre", "building", "tower",
			"stadium", "park", "market", "port", "base",
		},
	}
}

// LoadTaxonomy reads a taxonomy YAML file, falling back to defaults for any
// section the file leaves empty.
func LoadTaxonomy(path string) (*Taxonomy, error) {
	tax := DefaultTaxonomy()
	if path == "" {
		return tax, nil
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read taxonomy file: %w", err)
	}

	var override Taxonomy
	if err := yaml.Unmarshal(data, &override); err != nil {
		return nil, fmt.Errorf("parse taxonomy file: %w", err)
	}

	if len(override.RelevanceLabels) == 2 {
		tax.RelevanceLabels = override.RelevanceLabels
	}
	if len(override.TypeHypotheses) > 0 && len(override.TypeHypotheses) == len(override.TypeLabels) {
		tax.TypeHypotheses = override.TypeHypotheses
		tax.TypeLabels = override.TypeLabels
	}
	if len(override.UrgencyHypotheses) == 4 {
		tax.UrgencyHypotheses = override.UrgencyHypotheses
	}
	if len(override.CriticalKeywords) > 0 {
		tax.CriticalKeywords = override.CriticalKeywords
	}
	if len(override.HighKeywords) > 0 {
		tax.HighKeywords = override.HighKeywords
	}
	if len(override.FacilityKeywords) > 0 {
		tax.FacilityKeywords = override.FacilityKeywords
	}

	return tax, nil
}
