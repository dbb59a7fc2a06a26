package database

import (
	"context"
	"fmt"
	"time"

	"github.com/dandantas/pulse/internal/model"
	"go.mongodb.org/mongo-driver/bson/primitive"
)

// RecordDocument is one fetched record as stored in MongoDB
type RecordDocument struct {
	ID         primitive.ObjectID `bson:"_id,omitempty"`
	Kind       model.DataKind     `bson:"kind"`
	Key        string             `bson:"key"`
	CapturedAt time.Time          `bson:"captured_at"`
	StoredAt   time.Time          `bson:"stored_at"`
	Data       model.DataRecord   `bson:"data"`
}

// NewRecordDocument wraps record for storage
func NewRecordDocument(kind model.DataKind, record model.DataRecord, storedAt time.Time) RecordDocument {
	captured := record.CapturedAt()
	if captured.IsZero() {
		captured = storedAt
	}
	return RecordDocument{
		Kind:       kind,
		Key:        model.NormalizeKey(record.TrackedKey()),
		CapturedAt: captured.UTC(),
		StoredAt:   storedAt.UTC(),
		Data:       record,
	}
}

// RecordRepository appends fetched records to the per-kind collections
type RecordRepository struct {
	db  *MongoDB
	now func() time.Time
}

// NewRecordRepository creates a new record repository
func NewRecordRepository(db *MongoDB) *RecordRepository {
	return &RecordRepository{db: db, now: time.Now}
}

// Save inserts records in one batch
func (r *RecordRepository) Save(ctx context.Context, kind model.DataKind, records []model.DataRecord) error {
	if len(records) == 0 {
		return nil
	}

	ctxTimeout, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()

	now := r.now()
	docs := make([]interface{}, 0, len(records))
	for _, rec := range records {
		docs = append(docs, NewRecordDocument(kind, rec, now))
	}

	if _, err := r.db.CollectionFor(kind).InsertMany(ctxTimeout, docs); err != nil {
		return fmt.Errorf("failed to insert %s records: %w", kind, err)
	}
	return nil
}
