package store

import (
	"context"
	"fmt"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	"docchat-platform/models"
)

type SummaryStore struct {
	col *mongo.Collection
}

func (s *SummaryStore) Insert(ctx context.Context, summary *models.Summary) error {
	summary.CreatedAt = time.Now().UTC()
	res, err := s.col.InsertOne(ctx, summary)
	if err != nil {
		return fmt.Errorf("insert summary: %w", err)
	}
	summary.ID = res.InsertedID.(primitive.ObjectID)
	return nil
}

// ListRecent returns the newest limit summaries, newest first.
func (s *SummaryStore) ListRecent(ctx context.Context, sessionID primitive.ObjectID, limit int) ([]models.Summary, error) {
	cursor, err := s.col.Find(ctx, bson.M{"session_id": sessionID},
		options.Find().
			SetSort(bson.D{{Key: "created_at", Value: -1}}).
			SetLimit(int64(limit)))
	if err != nil {
		return nil, fmt.Errorf("list summaries: %w", err)
	}
	var summaries []models.Summary
	if err := cursor.All(ctx, &summaries); err != nil {
		return nil, fmt.Errorf("decode summaries: %w", err)
	}
	return summaries, nil
}

func (s *SummaryStore) DeleteBySession(ctx context.Context, sessionID primitive.ObjectID) error {
	_, err := s.col.DeleteMany(ctx, bson.M{"session_id": sessionID})
	return err
}
