package store

import (
	"context"
	"fmt"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	"docchat-platform/models"
	"docchat-platform/utils"
)

type ChunkStore struct {
	col *mongo.Collection
}

// InsertMany persists chunks, gzip-compressing large chunk bodies at
// rest. EnrichedContent stays plaintext because the keyword index
// searches it.
func (s *ChunkStore) InsertMany(ctx context.Context, chunks []models.Chunk) error {
	if len(chunks) == 0 {
		return nil
	}
	docs := make([]interface{}, len(chunks))
	for i := range chunks {
		stored := chunks[i]
		if data, compressed, err := utils.CompressData([]byte(stored.Content)); err == nil && compressed {
			stored.CompressedContent = data
			stored.Content = ""
		}
		docs[i] = stored
	}
	res, err := s.col.InsertMany(ctx, docs)
	if err != nil {
		return fmt.Errorf("insert chunks: %w", err)
	}
	for i, id := range res.InsertedIDs {
		chunks[i].ID = id.(primitive.ObjectID)
	}
	return nil
}

func (s *ChunkStore) ListByDocument(ctx context.Context, documentID primitive.ObjectID) ([]models.Chunk, error) {
	cursor, err := s.col.Find(ctx, bson.M{"document_id": documentID},
		options.Find().SetSort(bson.D{{Key: "chunk_index", Value: 1}}))
	if err != nil {
		return nil, fmt.Errorf("list chunks: %w", err)
	}
	var chunks []models.Chunk
	if err := cursor.All(ctx, &chunks); err != nil {
		return nil, fmt.Errorf("decode chunks: %w", err)
	}
	inflateChunks(chunks)
	return chunks, nil
}

// ListBySession loads every chunk of a session. The in-process search
// backend scans these; sessions are bounded by the upload cap.
func (s *ChunkStore) ListBySession(ctx context.Context, sessionID primitive.ObjectID) ([]models.Chunk, error) {
	cursor, err := s.col.Find(ctx, bson.M{"session_id": sessionID})
	if err != nil {
		return nil, fmt.Errorf("list session chunks: %w", err)
	}
	var chunks []models.Chunk
	if err := cursor.All(ctx, &chunks); err != nil {
		return nil, fmt.Errorf("decode session chunks: %w", err)
	}
	inflateChunks(chunks)
	return chunks, nil
}

func (s *ChunkStore) Get(ctx context.Context, id primitive.ObjectID) (*models.Chunk, error) {
	var chunk models.Chunk
	err := s.col.FindOne(ctx, bson.M{"_id": id}).Decode(&chunk)
	if err == mongo.ErrNoDocuments {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("find chunk: %w", err)
	}
	inflateChunk(&chunk)
	return &chunk, nil
}

// inflateChunk restores a compressed chunk body.
func inflateChunk(c *models.Chunk) {
	if len(c.CompressedContent) == 0 {
		return
	}
	if raw, err := utils.DecompressData(c.CompressedContent, true); err == nil {
		c.Content = string(raw)
		c.CompressedContent = nil
	}
}

func inflateChunks(chunks []models.Chunk) {
	for i := range chunks {
		inflateChunk(&chunks[i])
	}
}

func (s *ChunkStore) DeleteByDocument(ctx context.Context, documentID primitive.ObjectID) error {
	_, err := s.col.DeleteMany(ctx, bson.M{"document_id": documentID})
	return err
}

func (s *ChunkStore) DeleteBySession(ctx context.Context, sessionID primitive.ObjectID) error {
	_, err := s.col.DeleteMany(ctx, bson.M{"session_id": sessionID})
	return err
}

func (s *ChunkStore) CountBySession(ctx context.Context, sessionID primitive.ObjectID) (int64, error) {
	return s.col.CountDocuments(ctx, bson.M{"session_id": sessionID})
}
