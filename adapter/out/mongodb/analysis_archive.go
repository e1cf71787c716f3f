package mongodb

import (
	"context"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	"crisislens_server/core/domain"
	"crisislens_server/core/port/out"
)

// =============================================================================
// MongoDB Analysis Archive Adapter
// =============================================================================

const collectionAnalyses = "analyses"

// AnalysisArchiveAdapter implements out.RecordArchiver using MongoDB. Full
// records go in as documents; a TTL index bounds the collection without an
// external cleanup job.
type AnalysisArchiveAdapter struct {
	collection *mongo.Collection
	ttlDays    int
}

// NewAnalysisArchiveAdapter creates a MongoDB analysis archive adapter.
func NewAnalysisArchiveAdapter(db *mongo.Database, ttlDays int) *AnalysisArchiveAdapter {
	if ttlDays <= 0 {
		ttlDays = 30
	}
	return &AnalysisArchiveAdapter{
		collection: db.Collection(collectionAnalyses),
		ttlDays:    ttlDays,
	}
}

// EnsureIndexes creates necessary indexes for the collection.
func (a *AnalysisArchiveAdapter) EnsureIndexes(ctx context.Context) error {
	indexes := []mongo.IndexModel{
		{
			Keys: bson.D{{Key: "message_id", Value: 1}},
		},
		{
			Keys: bson.D{{Key: "urgency", Value: 1}, {Key: "processed_at", Value: -1}},
		},
		{
			Keys:    bson.D{{Key: "expires_at", Value: 1}},
			Options: options.Index().SetExpireAfterSeconds(0), // TTL index
		},
	}

	_, err := a.collection.Indexes().CreateMany(ctx, indexes)
	return err
}

// analysisDocument represents the MongoDB document structure.
type analysisDocument struct {
	MessageID   string    `bson:"message_id"`
	Urgency     string    `bson:"urgency,omitempty"`
	Record      bson.Raw  `bson:"record"`
	ProcessedAt time.Time `bson:"processed_at"`
	ExpiresAt   time.Time `bson:"expires_at"`
}

// Archive stores one finished analysis record.
func (a *AnalysisArchiveAdapter) Archive(ctx context.Context, rec *domain.AnalysisRecord) error {
	raw, err := bson.Marshal(rec)
	if err != nil {
		return err
	}

	doc := analysisDocument{
		MessageID:   rec.MessageID,
		Record:      raw,
		ProcessedAt: rec.ProcessedAt,
		ExpiresAt:   rec.ProcessedAt.AddDate(0, 0, a.ttlDays),
	}
	if rec.Urgency != nil {
		doc.Urgency = string(rec.Urgency.Level)
	}

	_, err = a.collection.InsertOne(ctx, doc)
	return err
}

// CountByUrgency returns the number of archived records at an urgency level.
func (a *AnalysisArchiveAdapter) CountByUrgency(ctx context.Context, level domain.UrgencyLevel) (int64, error) {
	return a.collection.CountDocuments(ctx, bson.M{"urgency": string(level)})
}

var _ out.RecordArchiver = (*AnalysisArchiveAdapter)(nil)
