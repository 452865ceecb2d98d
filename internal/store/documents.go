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

type DocumentStore struct {
	col *mongo.Collection
}

func (s *DocumentStore) Insert(ctx context.Context, doc *models.Document) error {
	doc.UploadedAt = time.Now().UTC()
	res, err := s.col.InsertOne(ctx, doc)
	if err != nil {
		return fmt.Errorf("insert document: %w", err)
	}
	doc.ID = res.InsertedID.(primitive.ObjectID)
	return nil
}

func (s *DocumentStore) Get(ctx context.Context, id primitive.ObjectID) (*models.Document, error) {
	var doc models.Document
	err := s.col.FindOne(ctx, bson.M{"_id": id}).Decode(&doc)
	if err == mongo.ErrNoDocuments {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("find document: %w", err)
	}
	return &doc, nil
}

func (s *DocumentStore) ListBySession(ctx context.Context, sessionID primitive.ObjectID) ([]models.Document, error) {
	cursor, err := s.col.Find(ctx, bson.M{"session_id": sessionID},
		options.Find().SetSort(bson.D{{Key: "uploaded_at", Value: -1}}))
	if err != nil {
		return nil, fmt.Errorf("list documents: %w", err)
	}
	var docs []models.Document
	if err := cursor.All(ctx, &docs); err != nil {
		return nil, fmt.Errorf("decode documents: %w", err)
	}
	return docs, nil
}

// ListReadyWithTopics returns READY documents of a session that carry at
// least one topic, in upload order. Used by the topic index builder.
func (s *DocumentStore) ListReadyWithTopics(ctx context.Context, sessionID primitive.ObjectID) ([]models.Document, error) {
	cursor, err := s.col.Find(ctx, bson.M{
		"session_id": sessionID,
		"status":     models.DocStatusReady,
		"topics.0":   bson.M{"$exists": true},
	}, options.Find().SetSort(bson.D{{Key: "uploaded_at", Value: 1}}))
	if err != nil {
		return nil, fmt.Errorf("list ready documents: %w", err)
	}
	var docs []models.Document
	if err := cursor.All(ctx, &docs); err != nil {
		return nil, fmt.Errorf("decode ready documents: %w", err)
	}
	return docs, nil
}

func (s *DocumentStore) FindByHash(ctx context.Context, sessionID primitive.ObjectID, hash string) (*models.Document, error) {
	var doc models.Document
	err := s.col.FindOne(ctx, bson.M{"session_id": sessionID, "file_hash": hash}).Decode(&doc)
	if err == mongo.ErrNoDocuments {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("find document by hash: %w", err)
	}
	return &doc, nil
}

func (s *DocumentStore) SetStatus(ctx context.Context, id primitive.ObjectID, status string) error {
	_, err := s.col.UpdateOne(ctx, bson.M{"_id": id},
		bson.M{"$set": bson.M{"status": status}})
	return err
}

func (s *DocumentStore) SetReady(ctx context.Context, id primitive.ObjectID, chunkCount int) error {
	now := time.Now().UTC()
	_, err := s.col.UpdateOne(ctx, bson.M{"_id": id}, bson.M{"$set": bson.M{
		"status":       models.DocStatusReady,
		"chunk_count":  chunkCount,
		"processed_at": now,
	}})
	return err
}

func (s *DocumentStore) SetFailed(ctx context.Context, id primitive.ObjectID, processingError string) error {
	now := time.Now().UTC()
	_, err := s.col.UpdateOne(ctx, bson.M{"_id": id}, bson.M{"$set": bson.M{
		"status":           models.DocStatusFailed,
		"processing_error": processingError,
		"processed_at":     now,
	}})
	return err
}

func (s *DocumentStore) SetAnalysis(ctx context.Context, id primitive.ObjectID, summary string, topics []string) error {
	_, err := s.col.UpdateOne(ctx, bson.M{"_id": id}, bson.M{"$set": bson.M{
		"summary": summary,
		"topics":  topics,
	}})
	return err
}

func (s *DocumentStore) Delete(ctx context.Context, id primitive.ObjectID) error {
	res, err := s.col.DeleteOne(ctx, bson.M{"_id": id})
	if err != nil {
		return fmt.Errorf("delete document: %w", err)
	}
	if res.DeletedCount == 0 {
		return ErrNotFound
	}
	return nil
}

func (s *DocumentStore) DeleteBySession(ctx context.Context, sessionID primitive.ObjectID) error {
	_, err := s.col.DeleteMany(ctx, bson.M{"session_id": sessionID})
	return err
}

// CountsByStatus returns document counts grouped by status.
func (s *DocumentStore) CountsByStatus(ctx context.Context) (map[string]int64, error) {
	cursor, err := s.col.Aggregate(ctx, mongo.Pipeline{
		{{Key: "$group", Value: bson.M{"_id": "$status", "count": bson.M{"$sum": 1}}}},
	})
	if err != nil {
		return nil, fmt.Errorf("count documents by status: %w", err)
	}
	var rows []struct {
		ID    string `bson:"_id"`
		Count int64  `bson:"count"`
	}
	if err := cursor.All(ctx, &rows); err != nil {
		return nil, fmt.Errorf("decode status counts: %w", err)
	}
	counts := make(map[string]int64, len(rows))
	for _, r := range rows {
		counts[r.ID] = r.Count
	}
	return counts, nil
}

// ListStaleProcessing returns documents stuck in PROCESSING since before
// the cutoff. The maintenance sweep fails them.
func (s *DocumentStore) ListStaleProcessing(ctx context.Context, cutoff time.Time) ([]models.Document, error) {
	cursor, err := s.col.Find(ctx, bson.M{
		"status":      models.DocStatusProcessing,
		"uploaded_at": bson.M{"$lt": cutoff},
	})
	if err != nil {
		return nil, fmt.Errorf("list stale documents: %w", err)
	}
	var docs []models.Document
	if err := cursor.All(ctx, &docs); err != nil {
		return nil, fmt.Errorf("decode stale documents: %w", err)
	}
	return docs, nil
}
