package services

import (
	"context"
	"errors"
	"testing"

	"go.mongodb.org/mongo-driver/bson/primitive"

	"docchat-platform/internal/config"
	"docchat-platform/internal/telemetry"
	"docchat-platform/models"
)

type fakeEmbedder struct {
	queryVector []float32
}

func (f *fakeEmbedder) EmbedPassage(ctx context.Context, text string) []float32 { return f.queryVector }
func (f *fakeEmbedder) EmbedQuery(ctx context.Context, text string) []float32   { return f.queryVector }
func (f *fakeEmbedder) EmbedPassages(ctx context.Context, texts []string) [][]float32 {
	out := make([][]float32, len(texts))
	for i := range out {
		out[i] = f.queryVector
	}
	return out
}

type fakeBackend struct {
	lastRequest ChunkSearchRequest
	result      ChunkSearchResult
}

func (f *fakeBackend) SearchChunks(ctx context.Context, req ChunkSearchRequest) (*ChunkSearchResult, error) {
	f.lastRequest = req
	return &f.result, nil
}

func (f *fakeBackend) SearchTurns(ctx context.Context, sessionID primitive.ObjectID, query string, queryVector []float32, limit int) ([]models.ChatTurn, error) {
	return nil, nil
}

func (f *fakeBackend) SearchMemories(ctx context.Context, sessionID primitive.ObjectID, query string, queryVector []float32, limit int) ([]ScoredMemory, []ScoredMemory, error) {
	return nil, nil, nil
}

type fakeReranker struct {
	scores []float64
	err    error
}

func (f *fakeReranker) Rerank(ctx context.Context, query string, passages []string) ([]float64, error) {
	if f.err != nil {
		return nil, f.err
	}
	if f.scores != nil {
		return f.scores, nil
	}
	out := make([]float64, len(passages))
	for i := range out {
		out[i] = 1.0 - float64(i)*0.01
	}
	return out, nil
}

func searchConfig() *config.Config {
	return &config.Config{
		CandidatesMultiplier:   4,
		RRFRankConstant:        60,
		MaxChunksPerDoc:        2,
		SourceAnchoringEnabled: true,
	}
}

func testMetrics(t *testing.T) *telemetry.Metrics {
	t.Helper()
	m, err := telemetry.InitMetrics()
	if err != nil {
		t.Fatalf("metrics init: %v", err)
	}
	return m
}

func chunkWithDoc(docID primitive.ObjectID) models.Chunk {
	return models.Chunk{ID: primitive.NewObjectID(), DocumentID: docID, EnrichedContent: "content"}
}

func TestSearchWithDetailsAnchorsCandidates(t *testing.T) {
	backend := &fakeBackend{}
	svc := NewHybridSearchService(searchConfig(), backend, &fakeEmbedder{queryVector: []float32{1}}, &fakeReranker{}, testMetrics(t))

	anchor := primitive.NewObjectID()
	_, err := svc.SearchWithDetails(context.Background(), primitive.NewObjectID(), "question", models.ModeExploring, []primitive.ObjectID{anchor})
	if err != nil {
		t.Fatalf("search: %v", err)
	}

	if len(backend.lastRequest.AnchorDocIDs) != 1 || backend.lastRequest.AnchorDocIDs[0] != anchor {
		t.Errorf("anchor ids not forwarded: %v", backend.lastRequest.AnchorDocIDs)
	}
	if backend.lastRequest.Limit != models.ModeExploring.RetrievalCount()*4 {
		t.Errorf("pool size = %d", backend.lastRequest.Limit)
	}
}

func TestSearchWithDetailsKeywordOnlyWhenEmbeddingFails(t *testing.T) {
	docID := primitive.NewObjectID()
	backend := &fakeBackend{result: ChunkSearchResult{
		KeywordHits: []ScoredChunk{{Chunk: chunkWithDoc(docID), Score: 3}},
	}}
	svc := NewHybridSearchService(searchConfig(), backend, &fakeEmbedder{}, &fakeReranker{}, testMetrics(t))

	details, err := svc.SearchWithDetails(context.Background(), primitive.NewObjectID(), "q", models.ModeExploring, nil)
	if err != nil {
		t.Fatalf("search: %v", err)
	}
	if len(backend.lastRequest.QueryVector) != 0 {
		t.Error("query vector sent despite embedding failure")
	}
	if len(details.Final) != 1 {
		t.Fatalf("final = %d hits, want 1", len(details.Final))
	}
}

func TestSearchWithDetailsFallsThroughOnRerankError(t *testing.T) {
	docID := primitive.NewObjectID()
	first := chunkWithDoc(docID)
	second := chunkWithDoc(docID)
	backend := &fakeBackend{result: ChunkSearchResult{
		VectorHits:  []ScoredChunk{{Chunk: first, Score: 0.9}, {Chunk: second, Score: 0.5}},
		KeywordHits: []ScoredChunk{{Chunk: first, Score: 4}},
	}}
	svc := NewHybridSearchService(searchConfig(), backend, &fakeEmbedder{queryVector: []float32{1}}, &fakeReranker{err: errors.New("down")}, testMetrics(t))

	details, err := svc.SearchWithDetails(context.Background(), primitive.NewObjectID(), "q", models.ModeExploring, nil)
	if err != nil {
		t.Fatalf("search: %v", err)
	}
	if len(details.Final) != 2 {
		t.Fatalf("final = %d hits, want 2", len(details.Final))
	}
	// RRF favors the chunk present in both legs.
	if details.Final[0].Chunk.ID != first.ID {
		t.Errorf("top chunk is not the agreed candidate")
	}
}

func TestDiversityRerankRoundRobin(t *testing.T) {
	docA := primitive.NewObjectID()
	docB := primitive.NewObjectID()
	a1 := ScoredChunk{Chunk: chunkWithDoc(docA), Score: 0.9}
	a2 := ScoredChunk{Chunk: chunkWithDoc(docA), Score: 0.8}
	a3 := ScoredChunk{Chunk: chunkWithDoc(docA), Score: 0.7}
	b1 := ScoredChunk{Chunk: chunkWithDoc(docB), Score: 0.6}

	out := diversityRerank([]ScoredChunk{a1, a2, a3, b1}, 2, 4)
	if len(out) != 4 {
		t.Fatalf("got %d hits", len(out))
	}

	wantOrder := []primitive.ObjectID{a1.Chunk.ID, b1.Chunk.ID, a2.Chunk.ID, a3.Chunk.ID}
	for i, want := range wantOrder {
		if out[i].Chunk.ID != want {
			t.Errorf("position %d = %v, want %v", i, out[i].Chunk.ID, want)
		}
	}
}

func TestDiversityRerankTruncates(t *testing.T) {
	docA := primitive.NewObjectID()
	var hits []ScoredChunk
	for i := 0; i < 6; i++ {
		hits = append(hits, ScoredChunk{Chunk: chunkWithDoc(docA), Score: float64(6 - i)})
	}
	out := diversityRerank(hits, 2, 3)
	if len(out) != 3 {
		t.Fatalf("got %d hits, want 3", len(out))
	}
}
