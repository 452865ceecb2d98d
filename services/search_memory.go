package services

import (
	"context"
	"sort"

	"go.mongodb.org/mongo-driver/bson/primitive"

	"docchat-platform/internal/config"
	"docchat-platform/internal/store"
	"docchat-platform/models"
)

// InProcessSearchBackend scores a session's chunks, turns and memories
// directly: cosine over stored embeddings plus BM25 over text. It serves
// deployments without Atlas search indexes, and tests.
type InProcessSearchBackend struct {
	chunks   *store.ChunkStore
	turns    *store.TurnStore
	memories *store.MemoryStore
	rrfK     int
}

func NewInProcessSearchBackend(cfg *config.Config, stores *store.Stores) *InProcessSearchBackend {
	return &InProcessSearchBackend{
		chunks:   stores.Chunks,
		turns:    stores.Turns,
		memories: stores.Memories,
		rrfK:     cfg.RRFRankConstant,
	}
}

func (b *InProcessSearchBackend) SearchChunks(ctx context.Context, req ChunkSearchRequest) (*ChunkSearchResult, error) {
	chunks, err := b.chunks.ListBySession(ctx, req.SessionID)
	if err != nil {
		return nil, err
	}
	if len(req.AnchorDocIDs) > 0 {
		chunks = filterByDocument(chunks, req.AnchorDocIDs)
	}

	result := &ChunkSearchResult{}

	if len(req.QueryVector) > 0 {
		var vector []ScoredChunk
		for _, c := range chunks {
			if score := CosineSimilarity(req.QueryVector, c.ContentEmbedding); score > 0 {
				vector = append(vector, ScoredChunk{Chunk: c, Score: score})
			}
		}
		sort.SliceStable(vector, func(i, j int) bool { return vector[i].Score > vector[j].Score })
		if len(vector) > req.Limit {
			vector = vector[:req.Limit]
		}
		result.VectorHits = vector
	}

	texts := make([]string, len(chunks))
	for i, c := range chunks {
		texts[i] = c.EnrichedContent
	}
	for _, item := range NewBM25Index(texts).Rank(req.Query, req.Limit) {
		result.KeywordHits = append(result.KeywordHits, ScoredChunk{Chunk: chunks[item.Index], Score: item.Score})
	}

	return result, nil
}

func (b *InProcessSearchBackend) SearchTurns(ctx context.Context, sessionID primitive.ObjectID, query string, queryVector []float32, limit int) ([]models.ChatTurn, error) {
	turns, err := b.turns.ListRecent(ctx, sessionID, 200)
	if err != nil {
		return nil, err
	}

	var vectorIDs, keywordIDs []string
	byID := make(map[string]models.ChatTurn, len(turns))
	for _, t := range turns {
		byID[t.ID.Hex()] = t
	}

	if len(queryVector) > 0 {
		type scored struct {
			id    string
			score float64
		}
		var ranked []scored
		for _, t := range turns {
			if score := CosineSimilarity(queryVector, t.Embedding); score > 0 {
				ranked = append(ranked, scored{id: t.ID.Hex(), score: score})
			}
		}
		sort.SliceStable(ranked, func(i, j int) bool { return ranked[i].score > ranked[j].score })
		for _, r := range ranked {
			vectorIDs = append(vectorIDs, r.id)
		}
	}

	texts := make([]string, len(turns))
	for i, t := range turns {
		texts[i] = t.Content
	}
	for _, item := range NewBM25Index(texts).Rank(query, limit) {
		keywordIDs = append(keywordIDs, turns[item.Index].ID.Hex())
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

func (b *InProcessSearchBackend) SearchMemories(ctx context.Context, sessionID primitive.ObjectID, query string, queryVector []float32, limit int) (vector, keyword []ScoredMemory, err error) {
	memories, err := b.memories.ListBySession(ctx, sessionID)
	if err != nil {
		return nil, nil, err
	}

	if len(queryVector) > 0 {
		for _, m := range memories {
			if score := CosineSimilarity(queryVector, m.Embedding); score > 0 {
				vector = append(vector, ScoredMemory{Memory: m, Score: score})
			}
		}
		sort.SliceStable(vector, func(i, j int) bool { return vector[i].Score > vector[j].Score })
		if len(vector) > limit {
			vector = vector[:limit]
		}
	}

	texts := make([]string, len(memories))
	for i, m := range memories {
		texts[i] = m.Content
	}
	for _, item := range NewBM25Index(texts).Rank(query, limit) {
		keyword = append(keyword, ScoredMemory{Memory: memories[item.Index], Score: item.Score})
	}
	return vector, keyword, nil
}

func filterByDocument(chunks []models.Chunk, docIDs []primitive.ObjectID) []models.Chunk {
	allowed := make(map[primitive.ObjectID]bool, len(docIDs))
	for _, id := range docIDs {
		allowed[id] = true
	}
	var out []models.Chunk
	for _, c := range chunks {
		if allowed[c.DocumentID] {
			out = append(out, c)
		}
	}
	return out
}
