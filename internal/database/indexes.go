package database

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/dandantas/pulse/internal/model"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

// CreateIndexes creates the record collection indexes for every kind
func CreateIndexes(ctx context.Context, db *MongoDB) error {
	slog.Info("Creating MongoDB indexes")

	for _, kind := range model.Kinds {
		if err := createRecordIndexes(ctx, db, kind); err != nil {
			return err
		}
	}

	slog.Info("Successfully created all MongoDB indexes")
	return nil
}

func createRecordIndexes(ctx context.Context, db *MongoDB, kind model.DataKind) error {
	collection := db.CollectionFor(kind)

	indexes := []mongo.IndexModel{
		{
			Keys: bson.D{
				{Key: "key", Value: 1},
				{Key: "captured_at", Value: -1},
			},
			Options: options.Index().SetName("idx_key_captured_at"),
		},
		{
			Keys:    bson.D{{Key: "stored_at", Value: -1}},
			Options: options.Index().SetName("idx_stored_at"),
		},
	}

	if _, err := collection.Indexes().CreateMany(ctx, indexes); err != nil {
		return fmt.Errorf("failed to create %s indexes: %w", CollectionName(kind), err)
	}

	slog.Info("Created record indexes", "collection", CollectionName(kind))
	return nil
}
