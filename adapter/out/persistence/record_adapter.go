// Package persistence provides database adapters implementing outbound ports.
package persistence

import (
	"context"
	"fmt"
	"time"

	"github.com/goccy/go-json"
	"github.com/jackc/pgx/v5/pgxpool"

	"crisislens_server/core/domain"
	"crisislens_server/core/port/out"
)

// =============================================================================
// Analysis Record Adapter (PostgreSQL)
// =============================================================================

// NewPool creates a pgx connection pool and verifies connectivity.
func NewPool(ctx context.Context, databaseURL string) (*pgxpool.Pool, error) {
	cfg, err := pgxpool.ParseConfig(databaseURL)
	if err != nil {
		return nil, fmt.Errorf("parse database url: %w", err)
	}
	cfg.MaxConns = 10
	cfg.MaxConnIdleTime = 30 * time.Second

	pool, err := pgxpool.NewWithConfig(ctx, cfg)
	if err != nil {
		return nil, fmt.Errorf("create pool: %w", err)
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("ping database: %w", err)
	}
	return pool, nil
}

// RecordAdapter implements out.RecordArchiver on PostgreSQL. The flexible
// parts of the record (scores, locations, stage notes) are stored as JSONB;
// the queried columns are flattened.
type RecordAdapter struct {
	pool *pgxpool.Pool
}

// NewRecordAdapter creates a PostgreSQL record adapter.
func NewRecordAdapter(pool *pgxpool.Pool) *RecordAdapter {
	return &RecordAdapter{pool: pool}
}

// EnsureSchema creates the records table when missing.
func (a *RecordAdapter) EnsureSchema(ctx context.Context) error {
	_, err := a.pool.Exec(ctx, `
		CREATE TABLE IF NOT EXISTS analysis_records (
			id            BIGSERIAL PRIMARY KEY,
			message_id    TEXT NOT NULL,
			original_text TEXT NOT NULL,
			clean_text    TEXT NOT NULL,
			language      TEXT NOT NULL DEFAULT '',
			relevant      BOOLEAN,
			event_type    TEXT,
			urgency       TEXT,
			duplicate     BOOLEAN,
			matched_id    TEXT,
			detail        JSONB NOT NULL,
			processed_at  TIMESTAMPTZ NOT NULL,
			elapsed_ms    BIGINT NOT NULL DEFAULT 0
		);
		CREATE INDEX IF NOT EXISTS idx_analysis_records_message_id ON analysis_records (message_id);
		CREATE INDEX IF NOT EXISTS idx_analysis_records_urgency ON analysis_records (urgency) WHERE urgency IS NOT NULL;
		CREATE INDEX IF NOT EXISTS idx_analysis_records_processed_at ON analysis_records (processed_at DESC);
	`)
	return err
}

// Archive stores one finished analysis record.
func (a *RecordAdapter) Archive(ctx context.Context, rec *domain.AnalysisRecord) error {
	detail, err := json.Marshal(rec)
	if err != nil {
		return fmt.Errorf("marshal record detail: %w", err)
	}

	var relevant *bool
	if rec.Relevance != nil {
		relevant = &rec.Relevance.Relevant
	}
	var eventType *string
	if rec.Type != nil && rec.Type.TopLabel != "" {
		s := string(rec.Type.TopLabel)
		eventType = &s
	}
	var urgency *string
	if rec.Urgency != nil {
		s := string(rec.Urgency.Level)
		urgency = &s
	}
	var duplicate *bool
	var matchedID *string
	if rec.Dedup != nil {
		duplicate = &rec.Dedup.Duplicate
		if rec.Dedup.MatchedID != "" {
			matchedID = &rec.Dedup.MatchedID
		}
	}

	_, err = a.pool.Exec(ctx, `
		INSERT INTO analysis_records
			(message_id, original_text, clean_text, language, relevant,
			 event_type, urgency, duplicate, matched_id, detail, processed_at, elapsed_ms)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12)`,
		rec.MessageID, rec.OriginalText, rec.CleanText, rec.Language, relevant,
		eventType, urgency, duplicate, matchedID, detail, rec.ProcessedAt, rec.ElapsedMs,
	)
	if err != nil {
		return fmt.Errorf("insert analysis record: %w", err)
	}
	return nil
}

// RecordSummary is a flattened view of an archived record.
type RecordSummary struct {
	MessageID   string    `json:"message_id"`
	CleanText   string    `json:"clean_text"`
	EventType   string    `json:"event_type,omitempty"`
	Urgency     string    `json:"urgency,omitempty"`
	ProcessedAt time.Time `json:"processed_at"`
}

// ListRecent returns the most recently processed records, newest first.
func (a *RecordAdapter) ListRecent(ctx context.Context, limit int) ([]RecordSummary, error) {
	if limit <= 0 || limit > 500 {
		limit = 50
	}
	rows, err := a.pool.Query(ctx, `
		SELECT message_id, clean_text, COALESCE(event_type, ''), COALESCE(urgency, ''), processed_at
		FROM analysis_records
		ORDER BY processed_at DESC
		LIMIT $1`, limit)
	if err != nil {
		return nil, fmt.Errorf("list recent records: %w", err)
	}
	defer rows.Close()

	var summaries []RecordSummary
	for rows.Next() {
		var s RecordSummary
		if err := rows.Scan(&s.MessageID, &s.CleanText, &s.EventType, &s.Urgency, &s.ProcessedAt); err != nil {
			return nil, err
		}
		summaries = append(summaries, s)
	}
	return summaries, rows.Err()
}

var _ out.RecordArchiver = (*RecordAdapter)(nil)
