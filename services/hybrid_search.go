package services

import (
	"context"
	"fmt"

	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"

	"docchat-platform/internal/ai"
	"docchat-platform/internal/config"
	"docchat-platform/internal/logger"
	"docchat-platform/internal/telemetry"
	"docchat-platform/models"
)

// SearchDetails exposes the per-leg hits alongside the final ranking so
// the confidence scorer can measure ranker agreement.
type SearchDetails struct {
	Query       string
	VectorHits  []ScoredChunk
	KeywordHits []ScoredChunk
	Final       []ScoredChunk
}

// HybridSearchService runs the full retrieval pipeline: candidate fusion,
// cross-encoder rerank and per-document diversity.
type HybridSearchService struct {
	backend  SearchBackend
	embedder Embedder
	reranker ai.Reranker
	metrics  *telemetry.Metrics

	candidatesMultiplier int
	rrfK                 int
	maxChunksPerDoc      int
	anchoringEnabled     bool
}

func NewHybridSearchService(cfg *config.Config, backend SearchBackend, embedder Embedder, reranker ai.Reranker, metrics *telemetry.Metrics) *HybridSearchService {
	return &HybridSearchService{
		backend:              backend,
		embedder:             embedder,
		reranker:             reranker,
		metrics:              metrics,
		candidatesMultiplier: cfg.CandidatesMultiplier,
		rrfK:                 cfg.RRFRankConstant,
		maxChunksPerDoc:      cfg.MaxChunksPerDoc,
		anchoringEnabled:     cfg.SourceAnchoringEnabled,
	}
}

// SearchWithDetails retrieves the final chunk set for a query. AnchorDocIDs
// restricts candidates when source anchoring is enabled; an empty query
// vector degrades the pipeline to keyword-only retrieval.
func (s *HybridSearchService) SearchWithDetails(ctx context.Context, sessionID primitive.ObjectID, query string, mode models.Mode, anchorDocIDs []primitive.ObjectID) (*SearchDetails, error) {
	ctx, span := otel.Tracer("retrieval").Start(ctx, "retrieval.hybrid_search")
	defer span.End()
	span.SetAttributes(
		attribute.String("retrieval.mode", string(mode)),
		attribute.Int("retrieval.anchor_docs", len(anchorDocIDs)),
	)

	retrievalCount := mode.RetrievalCount()
	poolSize := retrievalCount * s.candidatesMultiplier

	queryVector := s.embedder.EmbedQuery(ctx, query)
	if len(queryVector) == 0 {
		logger.Warn("Query embedding unavailable, searching keyword-only", "session_id", sessionID.Hex())
		s.metrics.RecordRetrievalFallback("embedding")
	}

	req := ChunkSearchRequest{
		SessionID:   sessionID,
		Query:       query,
		QueryVector: queryVector,
		Limit:       poolSize,
	}
	if s.anchoringEnabled {
		req.AnchorDocIDs = anchorDocIDs
	}

	result, err := s.backend.SearchChunks(ctx, req)
	if err != nil {
		return nil, fmt.Errorf("candidate retrieval: %w", err)
	}

	candidates := result.Fused
	if candidates == nil {
		candidates = s.fuse(result)
	}
	if len(candidates) > poolSize {
		candidates = candidates[:poolSize]
	}

	details := &SearchDetails{
		Query:       query,
		VectorHits:  result.VectorHits,
		KeywordHits: result.KeywordHits,
	}
	if len(candidates) == 0 {
		return details, nil
	}

	reranked := s.rerank(ctx, query, candidates, 2*retrievalCount)
	details.Final = diversityRerank(reranked, s.maxChunksPerDoc, retrievalCount)
	return details, nil
}

// fuse applies reciprocal rank fusion across the vector and keyword legs.
func (s *HybridSearchService) fuse(result *ChunkSearchResult) []ScoredChunk {
	byID := make(map[string]models.Chunk)
	var vectorIDs, keywordIDs []string
	for _, hit := range result.VectorHits {
		byID[hit.Chunk.ID.Hex()] = hit.Chunk
		vectorIDs = append(vectorIDs, hit.Chunk.ID.Hex())
	}
	for _, hit := range result.KeywordHits {
		byID[hit.Chunk.ID.Hex()] = hit.Chunk
		keywordIDs = append(keywordIDs, hit.Chunk.ID.Hex())
	}

	var fused []ScoredChunk
	for _, item := range FuseRRF(s.rrfK, vectorIDs, keywordIDs) {
		fused = append(fused, ScoredChunk{Chunk: byID[item.Key], Score: item.Score})
	}
	return fused
}

// rerank scores candidates with the cross-encoder and keeps the top keep.
// Reranker failure falls through with the fused order intact.
func (s *HybridSearchService) rerank(ctx context.Context, query string, candidates []ScoredChunk, keep int) []ScoredChunk {
	passages := make([]string, len(candidates))
	for i, c := range candidates {
		passages[i] = c.Chunk.EnrichedContent
	}

	scores, err := s.reranker.Rerank(ctx, query, passages)
	if err != nil || len(scores) != len(candidates) {
		logger.Warn("Rerank failed, keeping fusion order", "error", err)
		s.metrics.RecordRetrievalFallback("rerank")
		if len(candidates) > keep {
			return candidates[:keep]
		}
		return candidates
	}

	out := make([]ScoredChunk, 0, len(candidates))
	for _, idx := range ai.TopIndices(scores, keep) {
		out = append(out, ScoredChunk{Chunk: candidates[idx].Chunk, Score: scores[idx]})
	}
	return out
}

// diversityRerank caps how many chunks a single document contributes near
// the top: greedy round-robin by document until each hits maxPerDoc, then
// the remainder in score order, truncated to limit.
func diversityRerank(hits []ScoredChunk, maxPerDoc, limit int) []ScoredChunk {
	if len(hits) <= 1 {
		return truncateHits(hits, limit)
	}

	var docOrder []primitive.ObjectID
	byDoc := make(map[primitive.ObjectID][]int)
	for i, hit := range hits {
		doc := hit.Chunk.DocumentID
		if _, seen := byDoc[doc]; !seen {
			docOrder = append(docOrder, doc)
		}
		byDoc[doc] = append(byDoc[doc], i)
	}

	used := make([]bool, len(hits))
	var out []ScoredChunk
	for round := 0; round < maxPerDoc; round++ {
		for _, doc := range docOrder {
			if round < len(byDoc[doc]) {
				idx := byDoc[doc][round]
				used[idx] = true
				out = append(out, hits[idx])
			}
		}
	}
	for i, hit := range hits {
		if !used[i] {
			out = append(out, hit)
		}
	}
	return truncateHits(out, limit)
}

func truncateHits(hits []ScoredChunk, limit int) []ScoredChunk {
	if len(hits) > limit {
		return hits[:limit]
	}
	return hits
}
