// Package domain contains the core types of the crisis message analysis pipeline.
package domain

import "time"

// Message is a single incoming message submitted for analysis.
// Immutable once submitted.
type Message struct {
	ID       string `json:"id,omitempty"`
	Text     string `json:"text"`
	Language string `json:"language,omitempty"` // declared ISO 639-1 code, optional
}

// UrgencyLevel is the ordinal severity of a crisis message.
type UrgencyLevel string

const (
	UrgencyCritical UrgencyLevel = "CRITICAL"
	UrgencyHigh     UrgencyLevel = "HIGH"
	UrgencyMedium   UrgencyLevel = "MEDIUM"
	UrgencyLow      UrgencyLevel = "LOW"
)

// EventType is one of the fixed crisis event categories.
type EventType string

const (
	EventRescueRequest        EventType = "RESCUE_REQUEST"
	EventInfrastructureDamage EventType = "INFRASTRUCTURE_DAMAGE"
	EventMedicalEmergency     EventType = "MEDICAL_EMERGENCY"
	EventSupplyRequest        EventType = "SUPPLY_REQUEST"
	EventCasualtyReport       EventType = "CASUALTY_REPORT"
	EventVolunteerOffer       EventType = "VOLUNTEER_OFFER"
	EventSituationalUpdate    EventType = "SITUATIONAL_UPDATE"
	EventDisplacement         EventType = "DISPLACEMENT"
)

// RelevanceResult holds the binary crisis-relevance judgment.
type RelevanceResult struct {
	Relevant   bool    `json:"relevant"`
	Confidence float64 `json:"confidence"`
}

// TypeResult holds the multi-label event type classification.
type TypeResult struct {
	Labels   []EventType           `json:"labels"`
	Scores   map[EventType]float64 `json:"scores"`
	TopLabel EventType             `json:"top_label"`
	TopScore float64               `json:"top_score"`
}

// UrgencyResult holds the urgency level and its numeric score.
type UrgencyResult struct {
	Level        UrgencyLevel `json:"level"`
	Score        float64      `json:"score"`
	KeywordBoost float64      `json:"keyword_boost"`
}

// Coordinate is a resolved geographic point.
type Coordinate struct {
	Latitude  float64 `json:"latitude"`
	Longitude float64 `json:"longitude"`
}

// Location is a place mention extracted from the message, with its
// geocoding result. Coordinate is nil when the name could not be resolved;
// unresolved mentions stay in the record rather than being dropped.
type Location struct {
	Text       string      `json:"text"`
	Label      string      `json:"label"` // LOC or FACILITY
	Confidence float64     `json:"confidence"`
	Coordinate *Coordinate `json:"coordinate,omitempty"`
}

// DedupResult holds the semantic duplicate check outcome. MatchedID refers
// to the earliest previously seen message this one duplicates.
type DedupResult struct {
	Duplicate bool   `json:"duplicate"`
	MatchedID string `json:"matched_id,omitempty"`
}

// StageNote records a non-fatal stage failure for observability.
type StageNote struct {
	Stage string `json:"stage"`
	Kind  string `json:"kind"`
	Error string `json:"error"`
}

// AnalysisRecord is the structured output of one analyzed message.
//
// Relevance-gated fields (Type, Urgency, Locations) are nil both when the
// message is not relevant and when the owning stage failed; nil means
// "not evaluated", distinct from an evaluated zero value.
type AnalysisRecord struct {
	MessageID    string           `json:"message_id"`
	OriginalText string           `json:"original_text"`
	CleanText    string           `json:"clean_text"`
	Language     string           `json:"language"`
	Hashtags     []string         `json:"hashtags,omitempty"`
	Mentions     []string         `json:"mentions,omitempty"`
	Relevance    *RelevanceResult `json:"relevance,omitempty"`
	Type         *TypeResult      `json:"type,omitempty"`
	Urgency      *UrgencyResult   `json:"urgency,omitempty"`
	Locations    []Location       `json:"locations,omitempty"`
	Dedup        *DedupResult     `json:"dedup,omitempty"`
	Errors       []StageNote      `json:"errors,omitempty"`
	ProcessedAt  time.Time        `json:"processed_at"`
	ElapsedMs    int64            `json:"elapsed_ms"`
}

// IsCritical reports whether the record was scored as a critical urgency.
func (r *AnalysisRecord) IsCritical() bool {
	return r.Urgency != nil && r.Urgency.Level == UrgencyCritical
}
