package services

import (
	"context"
	"fmt"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"

	"docchat-platform/internal/config"
	"docchat-platform/internal/logger"
	"docchat-platform/models"
)

// Atlas search index names for turns and memories, created out of band.
// The chunk index names come from config.
const (
	turnVectorIndex    = "turn_vector_index"
	turnKeywordIndex   = "turn_keyword_index"
	memoryVectorIndex  = "memory_vector_index"
	memoryKeywordIndex = "memory_keyword_index"
)

// vectorCandidateFactor oversamples ANN candidates relative to the limit.
const vectorCandidateFactor = 10

// AtlasSearchBackend runs the hybrid retrieval legs as Atlas $vectorSearch
// and $search aggregations. Fusion stays application-side: the two legs
// are returned separately and the pipeline applies reciprocal rank fusion
// itself, which also covers engines without native rank fusion.
type AtlasSearchBackend struct {
	chunks       *mongo.Collection
	turns        *mongo.Collection
	memories     *mongo.Collection
	vectorIndex  string
	keywordIndex string
	rrfK         int
}

func NewAtlasSearchBackend(cfg *config.Config, client *mongo.Client) *AtlasSearchBackend {
	db := client.Database(cfg.DBName)
	return &AtlasSearchBackend{
		chunks:       db.Collection("chunks"),
		turns:        db.Collection("chat_turns"),
		memories:     db.Collection("memories"),
		vectorIndex:  cfg.VectorIndexName,
		keywordIndex: cfg.SearchIndexName,
		rrfK:         cfg.RRFRankConstant,
	}
}

func (b *AtlasSearchBackend) SearchChunks(ctx context.Context, req ChunkSearchRequest) (*ChunkSearchResult, error) {
	result := &ChunkSearchResult{}

	if len(req.QueryVector) > 0 {
		hits, err := b.vectorSearchChunks(ctx, req)
		if err != nil {
			logger.Warn("Vector search failed, continuing keyword-only", "error", err)
		} else {
			result.VectorHits = hits
		}
	}

	hits, err := b.keywordSearchChunks(ctx, req)
	if err != nil {
		if len(result.VectorHits) == 0 {
			return nil, fmt.Errorf("keyword search: %w", err)
		}
		logger.Warn("Keyword search failed, continuing vector-only", "error", err)
	} else {
		result.KeywordHits = hits
	}

	return result, nil
}

func (b *AtlasSearchBackend) vectorSearchChunks(ctx context.Context, req ChunkSearchRequest) ([]ScoredChunk, error) {
	vectorStage := bson.M{
		"index":         b.vectorIndex,
		"path":          "content_embedding",
		"queryVector":   req.QueryVector,
		"numCandidates": req.Limit * vectorCandidateFactor,
		"limit":         req.Limit,
		"filter":        chunkFilter(req),
	}

	cursor, err := b.chunks.Aggregate(ctx, mongo.Pipeline{
		{{Key: "$vectorSearch", Value: vectorStage}},
		{{Key: "$addFields", Value: bson.M{"search_score": bson.M{"$meta": "vectorSearchScore"}}}},
	})
	if err != nil {
		return nil, err
	}
	return decodeScoredChunks(ctx, cursor)
}

func (b *AtlasSearchBackend) keywordSearchChunks(ctx context.Context, req ChunkSearchRequest) ([]ScoredChunk, error) {
	must := []bson.M{{
		"equals": bson.M{"path": "session_id", "value": req.SessionID},
	}}
	if len(req.AnchorDocIDs) > 0 {
		must = append(must, bson.M{"in": bson.M{"path": "document_id", "value": req.AnchorDocIDs}})
	}

	searchStage := bson.M{
		"index": b.keywordIndex,
		"compound": bson.M{
			"must": append(must, bson.M{
				"text": bson.M{"path": "enriched_content", "query": req.Query},
			}),
		},
	}

	cursor, err := b.chunks.Aggregate(ctx, mongo.Pipeline{
		{{Key: "$search", Value: searchStage}},
		{{Key: "$limit", Value: req.Limit}},
		{{Key: "$addFields", Value: bson.M{"search_score": bson.M{"$meta": "searchScore"}}}},
	})
	if err != nil {
		return nil, err
	}
	return decodeScoredChunks(ctx, cursor)
}

func chunkFilter(req ChunkSearchRequest) bson.M {
	filter := bson.M{"session_id": req.SessionID}
	if len(req.AnchorDocIDs) > 0 {
		filter["document_id"] = bson.M{"$in": req.AnchorDocIDs}
	}
	return filter
}

func decodeScoredChunks(ctx context.Context, cursor *mongo.Cursor) ([]ScoredChunk, error) {
	defer cursor.Close(ctx)

	var hits []ScoredChunk
	for cursor.Next(ctx) {
		var row struct {
			models.Chunk `bson:",inline"`
			SearchScore  float64 `bson:"search_score"`
		}
		if err := cursor.Decode(&row); err != nil {
			return nil, err
		}
		hits = append(hits, ScoredChunk{Chunk: row.Chunk, Score: row.SearchScore})
	}
	return hits, cursor.Err()
}

func (b *AtlasSearchBackend) SearchTurns(ctx context.Context, sessionID primitive.ObjectID, query string, queryVector []float32, limit int) ([]models.ChatTurn, error) {
	byID := make(map[string]models.ChatTurn)
	var vectorIDs, keywordIDs []string

	if len(queryVector) > 0 {
		cursor, err := b.turns.Aggregate(ctx, mongo.Pipeline{
			{{Key: "$vectorSearch", Value: bson.M{
				"index":         turnVectorIndex,
				"path":          "embedding",
				"queryVector":   queryVector,
				"numCandidates": limit * vectorCandidateFactor,
				"limit":         limit,
				"filter":        bson.M{"session_id": sessionID},
			}}},
		})
		if err != nil {
			logger.Warn("Turn vector search failed", "error", err)
		} else {
			var turns []models.ChatTurn
			if err := cursor.All(ctx, &turns); err != nil {
				return nil, err
			}
			for _, t := range turns {
				byID[t.ID.Hex()] = t
				vectorIDs = append(vectorIDs, t.ID.Hex())
			}
		}
	}

	cursor, err := b.turns.Aggregate(ctx, mongo.Pipeline{
		{{Key: "$search", Value: bson.M{
			"index": turnKeywordIndex,
			"compound": bson.M{"must": []bson.M{
				{"equals": bson.M{"path": "session_id", "value": sessionID}},
				{"text": bson.M{"path": "content", "query": query}},
			}},
		}}},
		{{Key: "$limit", Value: limit}},
	})
	if err != nil {
		logger.Warn("Turn keyword search failed", "error", err)
	} else {
		var turns []models.ChatTurn
		if err := cursor.All(ctx, &turns); err != nil {
			return nil, err
		}
		for _, t := range turns {
			byID[t.ID.Hex()] = t
			keywordIDs = append(keywordIDs, t.ID.Hex())
		}
	}

	var out []models.ChatTurn
	for _, fused := range FuseRRF(b.rrfK, vectorIDs, keywordIDs) {
		out = append(out, byID[fused.Key])
		if len(out) == limit {
			break
		}
	}
	return out, nil
}

func (b *AtlasSearchBackend) SearchMemories(ctx context.Context, sessionID primitive.ObjectID, query string, queryVector []float32, limit int) (vector, keyword []ScoredMemory, err error) {
	if len(queryVector) > 0 {
		cursor, verr := b.memories.Aggregate(ctx, mongo.Pipeline{
			{{Key: "$vectorSearch", Value: bson.M{
				"index":         memoryVectorIndex,
				"path":          "embedding",
				"queryVector":   queryVector,
				"numCandidates": limit * vectorCandidateFactor,
				"limit":         limit,
				"filter":        bson.M{"session_id": sessionID},
			}}},
			{{Key: "$addFields", Value: bson.M{"search_score": bson.M{"$meta": "vectorSearchScore"}}}},
		})
		if verr != nil {
			logger.Warn("Memory vector search failed", "error", verr)
		} else {
			vector, err = decodeScoredMemories(ctx, cursor)
			if err != nil {
				return nil, nil, err
			}
		}
	}

	cursor, kerr := b.memories.Aggregate(ctx, mongo.Pipeline{
		{{Key: "$search", Value: bson.M{
			"index": memoryKeywordIndex,
			"compound": bson.M{"must": []bson.M{
				{"equals": bson.M{"path": "session_id", "value": sessionID}},
				{"text": bson.M{"path": "content", "query": query}},
			}},
		}}},
		{{Key: "$limit", Value: limit}},
		{{Key: "$addFields", Value: bson.M{"search_score": bson.M{"$meta": "searchScore"}}}},
	})
	if kerr != nil {
		if len(vector) == 0 {
			return nil, nil, fmt.Errorf("memory keyword search: %w", kerr)
		}
		logger.Warn("Memory keyword search failed", "error", kerr)
		return vector, nil, nil
	}
	keyword, err = decodeScoredMemories(ctx, cursor)
	if err != nil {
		return nil, nil, err
	}
	return vector, keyword, nil
}

func decodeScoredMemories(ctx context.Context, cursor *mongo.Cursor) ([]ScoredMemory, error) {
	defer cursor.Close(ctx)

	var hits []ScoredMemory
	for cursor.Next(ctx) {
		var row struct {
			models.Memory `bson:",inline"`
			SearchScore   float64 `bson:"search_score"`
		}
		if err := cursor.Decode(&row); err != nil {
			return nil, err
		}
		hits = append(hits, ScoredMemory{Memory: row.Memory, Score: row.SearchScore})
	}
	return hits, cursor.Err()
}
