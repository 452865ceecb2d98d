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

type MemoryStore struct {
	col *mongo.Collection
}

func (s *MemoryStore) Insert(ctx context.Context, memory *models.Memory) error {
	now := time.Now().UTC()
	memory.CreatedAt = now
	memory.LastAccessedAt = now
	res, err := s.col.InsertOne(ctx, memory)
	if err != nil {
		return fmt.Errorf("insert memory: %w", err)
	}
	memory.ID = res.InsertedID.(primitive.ObjectID)
	return nil
}

func (s *MemoryStore) ListBySession(ctx context.Context, sessionID primitive.ObjectID) ([]models.Memory, error) {
	cursor, err := s.col.Find(ctx, bson.M{"session_id": sessionID})
	if err != nil {
		return nil, fmt.Errorf("list memories: %w", err)
	}
	var memories []models.Memory
	if err := cursor.All(ctx, &memories); err != nil {
		return nil, fmt.Errorf("decode memories: %w", err)
	}
	return memories, nil
}

// BumpImportance raises a memory's importance, clamped at 1.0.
func (s *MemoryStore) BumpImportance(ctx context.Context, id primitive.ObjectID, delta float64) error {
	var memory models.Memory
	err := s.col.FindOne(ctx, bson.M{"_id": id}).Decode(&memory)
	if err == mongo.ErrNoDocuments {
		return ErrNotFound
	}
	if err != nil {
		return fmt.Errorf("find memory: %w", err)
	}
	importance := memory.Importance + delta
	if importance > 1.0 {
		importance = 1.0
	}
	_, err = s.col.UpdateOne(ctx, bson.M{"_id": id},
		bson.M{"$set": bson.M{"importance": importance}})
	return err
}

func (s *MemoryStore) TouchAccessed(ctx context.Context, ids []primitive.ObjectID) error {
	if len(ids) == 0 {
		return nil
	}
	_, err := s.col.UpdateMany(ctx,
		bson.M{"_id": bson.M{"$in": ids}},
		bson.M{"$set": bson.M{"last_accessed_at": time.Now().UTC()}})
	return err
}

func (s *MemoryStore) CountBySession(ctx context.Context, sessionID primitive.ObjectID) (int64, error) {
	return s.col.CountDocuments(ctx, bson.M{"session_id": sessionID})
}

// PruneLowestImportance deletes the lowest-importance memories of a
// session until at most keep remain. Returns the deleted ids.
func (s *MemoryStore) PruneLowestImportance(ctx context.Context, sessionID primitive.ObjectID, keep int) ([]primitive.ObjectID, error) {
	count, err := s.CountBySession(ctx, sessionID)
	if err != nil {
		return nil, err
	}
	excess := count - int64(keep)
	if excess <= 0 {
		return nil, nil
	}

	cursor, err := s.col.Find(ctx, bson.M{"session_id": sessionID},
		options.Find().
			SetSort(bson.D{{Key: "importance", Value: 1}, {Key: "last_accessed_at", Value: 1}}).
			SetLimit(excess).
			SetProjection(bson.M{"_id": 1}))
	if err != nil {
		return nil, fmt.Errorf("find prunable memories: %w", err)
	}
	var rows []struct {
		ID primitive.ObjectID `bson:"_id"`
	}
	if err := cursor.All(ctx, &rows); err != nil {
		return nil, fmt.Errorf("decode prunable memories: %w", err)
	}

	ids := make([]primitive.ObjectID, len(rows))
	for i, r := range rows {
		ids[i] = r.ID
	}
	if _, err := s.col.DeleteMany(ctx, bson.M{"_id": bson.M{"$in": ids}}); err != nil {
		return nil, fmt.Errorf("prune memories: %w", err)
	}
	return ids, nil
}

// SessionsOverCap lists the sessions holding more than cap memories.
func (s *MemoryStore) SessionsOverCap(ctx context.Context, cap int) ([]primitive.ObjectID, error) {
	cursor, err := s.col.Aggregate(ctx, mongo.Pipeline{
		{{Key: "$group", Value: bson.M{"_id": "$session_id", "count": bson.M{"$sum": 1}}}},
		{{Key: "$match", Value: bson.M{"count": bson.M{"$gt": cap}}}},
	})
	if err != nil {
		return nil, fmt.Errorf("aggregate memory counts: %w", err)
	}
	var rows []struct {
		ID primitive.ObjectID `bson:"_id"`
	}
	if err := cursor.All(ctx, &rows); err != nil {
		return nil, fmt.Errorf("decode memory counts: %w", err)
	}
	ids := make([]primitive.ObjectID, len(rows))
	for i, r := range rows {
		ids[i] = r.ID
	}
	return ids, nil
}

func (s *MemoryStore) Delete(ctx context.Context, id primitive.ObjectID) error {
	_, err := s.col.DeleteOne(ctx, bson.M{"_id": id})
	return err
}

func (s *MemoryStore) DeleteBySession(ctx context.Context, sessionID primitive.ObjectID) error {
	_, err := s.col.DeleteMany(ctx, bson.M{"session_id": sessionID})
	return err
}
