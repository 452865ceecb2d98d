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

type TurnStore struct {
	col *mongo.Collection
}

func (s *TurnStore) Insert(ctx context.Context, turn *models.ChatTurn) error {
	if turn.CreatedAt.IsZero() {
		turn.CreatedAt = time.Now().UTC()
	}
	res, err := s.col.InsertOne(ctx, turn)
	if err != nil {
		return fmt.Errorf("insert chat turn: %w", err)
	}
	turn.ID = res.InsertedID.(primitive.ObjectID)
	return nil
}

func (s *TurnStore) Update(ctx context.Context, id primitive.ObjectID, set bson.M) error {
	_, err := s.col.UpdateOne(ctx, bson.M{"_id": id}, bson.M{"$set": set})
	return err
}

// ListRecent returns the most recent limit turns in chronological order.
func (s *TurnStore) ListRecent(ctx context.Context, sessionID primitive.ObjectID, limit int) ([]models.ChatTurn, error) {
	return s.listRecent(ctx, bson.M{"session_id": sessionID}, limit)
}

// ListRecentUncompacted returns the most recent limit non-compacted turns
// in chronological order.
func (s *TurnStore) ListRecentUncompacted(ctx context.Context, sessionID primitive.ObjectID, limit int) ([]models.ChatTurn, error) {
	return s.listRecent(ctx, bson.M{"session_id": sessionID, "is_compacted": false}, limit)
}

func (s *TurnStore) listRecent(ctx context.Context, filter bson.M, limit int) ([]models.ChatTurn, error) {
	cursor, err := s.col.Find(ctx, filter,
		options.Find().
			SetSort(bson.D{{Key: "created_at", Value: -1}}).
			SetLimit(int64(limit)))
	if err != nil {
		return nil, fmt.Errorf("list recent turns: %w", err)
	}
	var turns []models.ChatTurn
	if err := cursor.All(ctx, &turns); err != nil {
		return nil, fmt.Errorf("decode recent turns: %w", err)
	}
	// Reverse into chronological order.
	for i, j := 0, len(turns)-1; i < j; i, j = i+1, j-1 {
		turns[i], turns[j] = turns[j], turns[i]
	}
	return turns, nil
}

// ListUncompactedOldestFirst returns all non-compacted turns oldest first.
// The compactor selects its run from the head of this list.
func (s *TurnStore) ListUncompactedOldestFirst(ctx context.Context, sessionID primitive.ObjectID) ([]models.ChatTurn, error) {
	cursor, err := s.col.Find(ctx,
		bson.M{"session_id": sessionID, "is_compacted": false},
		options.Find().SetSort(bson.D{{Key: "created_at", Value: 1}}))
	if err != nil {
		return nil, fmt.Errorf("list uncompacted turns: %w", err)
	}
	var turns []models.ChatTurn
	if err := cursor.All(ctx, &turns); err != nil {
		return nil, fmt.Errorf("decode uncompacted turns: %w", err)
	}
	return turns, nil
}

func (s *TurnStore) MarkCompacted(ctx context.Context, ids []primitive.ObjectID) error {
	if len(ids) == 0 {
		return nil
	}
	_, err := s.col.UpdateMany(ctx,
		bson.M{"_id": bson.M{"$in": ids}},
		bson.M{"$set": bson.M{"is_compacted": true}})
	return err
}

// UncompactedTokenSum sums token counts of non-compacted turns.
func (s *TurnStore) UncompactedTokenSum(ctx context.Context, sessionID primitive.ObjectID) (int, error) {
	cursor, err := s.col.Aggregate(ctx, mongo.Pipeline{
		{{Key: "$match", Value: bson.M{"session_id": sessionID, "is_compacted": false}}},
		{{Key: "$group", Value: bson.M{"_id": nil, "total": bson.M{"$sum": "$token_count"}}}},
	})
	if err != nil {
		return 0, fmt.Errorf("sum uncompacted tokens: %w", err)
	}
	var rows []struct {
		Total int `bson:"total"`
	}
	if err := cursor.All(ctx, &rows); err != nil {
		return 0, fmt.Errorf("decode token sum: %w", err)
	}
	if len(rows) == 0 {
		return 0, nil
	}
	return rows[0].Total, nil
}

func (s *TurnStore) DeleteBySession(ctx context.Context, sessionID primitive.ObjectID) error {
	_, err := s.col.DeleteMany(ctx, bson.M{"session_id": sessionID})
	return err
}
