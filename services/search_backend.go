package services

import (
	"context"

	"go.mongodb.org/mongo-driver/bson/primitive"

	"docchat-platform/models"
)

// ScoredChunk is one ranked candidate from a single retrieval leg.
type ScoredChunk struct {
	Chunk models.Chunk
	Score float64
}

// ScoredMemory is one ranked memory candidate.
type ScoredMemory struct {
	Memory models.Memory
	Score  float64
}

// ChunkSearchRequest describes one candidate-retrieval call. QueryVector
// may be empty, in which case only the keyword leg runs. AnchorDocIDs,
// when non-empty, restricts candidates to those documents.
type ChunkSearchRequest struct {
	SessionID    primitive.ObjectID
	Query        string
	QueryVector  []float32
	Limit        int
	AnchorDocIDs []primitive.ObjectID
}

// ChunkSearchResult carries the per-leg rankings. Fused is non-nil only
// when the engine performed rank fusion natively; otherwise the caller
// fuses application-side.
type ChunkSearchResult struct {
	VectorHits  []ScoredChunk
	KeywordHits []ScoredChunk
	Fused       []ScoredChunk
}

// SearchBackend is the hybrid index. The Mongo Atlas implementation uses
// $vectorSearch and $search; the in-process implementation scores chunks
// directly and also serves tests.
type SearchBackend interface {
	SearchChunks(ctx context.Context, req ChunkSearchRequest) (*ChunkSearchResult, error)

	// SearchTurns returns prior chat turns of the session ranked by
	// relevance to the query, fused across semantic and lexical signals.
	SearchTurns(ctx context.Context, sessionID primitive.ObjectID, query string, queryVector []float32, limit int) ([]models.ChatTurn, error)

	// SearchMemories returns the vector-ranked and keyword-ranked memory
	// candidates separately; the memory engine fuses and reweights them.
	SearchMemories(ctx context.Context, sessionID primitive.ObjectID, query string, queryVector []float32, limit int) (vector, keyword []ScoredMemory, err error)
}
