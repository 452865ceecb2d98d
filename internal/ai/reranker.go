package ai

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"math"
	"net/http"
	"sort"
	"time"

	"github.com/sony/gobreaker"

	"docchat-platform/internal/config"
	"docchat-platform/internal/logger"
)

// Reranker scores (query, passage) pairs jointly. Scores are normalized to
// [0,1] and returned in input order, one per passage.
type Reranker interface {
	Rerank(ctx context.Context, query string, passages []string) ([]float64, error)
}

// NewReranker selects the configured strategy.
func NewReranker(cfg *config.Config, gemini *GeminiClient) Reranker {
	if cfg.RerankStrategy == "llm" {
		return &LLMReranker{gemini: gemini}
	}
	return NewTEIReranker(cfg)
}

// TEIReranker calls a text-embeddings-inference /rerank endpoint.
type TEIReranker struct {
	baseURL    string
	rawScores  bool
	httpClient *http.Client
	breaker    *gobreaker.CircuitBreaker
}

func NewTEIReranker(cfg *config.Config) *TEIReranker {
	breaker := gobreaker.NewCircuitBreaker(gobreaker.Settings{
		Name:        "TEIReranker",
		MaxRequests: 3,
		Interval:    10 * time.Second,
		Timeout:     30 * time.Second,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			return counts.ConsecutiveFailures >= 3
		},
		OnStateChange: func(name string, from gobreaker.State, to gobreaker.State) {
			logger.Warn("Circuit breaker state change", "breaker", name, "from", from.String(), "to", to.String())
		},
	})

	return &TEIReranker{
		baseURL:   cfg.TEIBaseURL,
		rawScores: cfg.TEIRawScores,
		httpClient: &http.Client{
			Timeout: time.Duration(cfg.TEITimeoutSeconds) * time.Second,
		},
		breaker: breaker,
	}
}

type teiRerankRequest struct {
	Query     string   `json:"query"`
	Texts     []string `json:"texts"`
	RawScores bool     `json:"raw_scores"`
}

type teiRerankResult struct {
	Index int     `json:"index"`
	Score float64 `json:"score"`
}

func (r *TEIReranker) Rerank(ctx context.Context, query string, passages []string) ([]float64, error) {
	if len(passages) == 0 {
		return nil, nil
	}

	body, err := json.Marshal(teiRerankRequest{Query: query, Texts: passages, RawScores: r.rawScores})
	if err != nil {
		return nil, err
	}

	result, err := r.breaker.Execute(func() (interface{}, error) {
		req, err := http.NewRequestWithContext(ctx, http.MethodPost, r.baseURL+"/rerank", bytes.NewReader(body))
		if err != nil {
			return nil, err
		}
		req.Header.Set("Content-Type", "application/json")

		resp, err := r.httpClient.Do(req)
		if err != nil {
			return nil, err
		}
		defer resp.Body.Close()

		if resp.StatusCode != http.StatusOK {
			payload, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
			return nil, fmt.Errorf("tei rerank status %d: %s", resp.StatusCode, payload)
		}

		var results []teiRerankResult
		if err := json.NewDecoder(resp.Body).Decode(&results); err != nil {
			return nil, fmt.Errorf("decode tei response: %w", err)
		}
		return results, nil
	})
	if err != nil {
		return nil, err
	}

	results := result.([]teiRerankResult)
	scores := make([]float64, len(passages))
	for _, res := range results {
		if res.Index >= 0 && res.Index < len(scores) {
			scores[res.Index] = clampScore(res.Score, r.rawScores)
		}
	}
	return scores, nil
}

// Raw TEI scores are logits; squash them into [0,1] so callers can compare
// against the sigmoid-scored default.
func clampScore(score float64, raw bool) float64 {
	if raw {
		return 1 / (1 + math.Exp(-score))
	}
	if score < 0 {
		return 0
	}
	if score > 1 {
		return 1
	}
	return score
}

// LLMReranker asks the chat model to score passages. Slower and noisier
// than TEI; used where no reranker service is deployed.
type LLMReranker struct {
	gemini *GeminiClient
}

type llmRerankResponse struct {
	Scores []float64 `json:"scores"`
}

func (r *LLMReranker) Rerank(ctx context.Context, query string, passages []string) ([]float64, error) {
	if len(passages) == 0 {
		return nil, nil
	}

	prompt := buildLLMRerankPrompt(query, passages)
	var resp llmRerankResponse
	if err := r.gemini.GenerateJSON(ctx, prompt, &resp); err != nil {
		return nil, err
	}
	if len(resp.Scores) != len(passages) {
		return nil, fmt.Errorf("llm reranker returned %d scores for %d passages", len(resp.Scores), len(passages))
	}

	scores := make([]float64, len(passages))
	for i, s := range resp.Scores {
		scores[i] = clampScore(s, false)
	}
	return scores, nil
}

func buildLLMRerankPrompt(query string, passages []string) string {
	var buf bytes.Buffer
	buf.WriteString("Score how relevant each passage is to the query, from 0.0 (irrelevant) to 1.0 (directly answers it).\n")
	buf.WriteString("Respond with JSON: {\"scores\": [..]} with exactly one score per passage, in order.\n\n")
	fmt.Fprintf(&buf, "Query: %s\n\n", query)
	for i, p := range passages {
		fmt.Fprintf(&buf, "Passage %d:\n%s\n\n", i+1, p)
	}
	return buf.String()
}

// TopIndices returns the indices of the n highest scores, descending.
func TopIndices(scores []float64, n int) []int {
	idx := make([]int, len(scores))
	for i := range idx {
		idx[i] = i
	}
	sort.SliceStable(idx, func(a, b int) bool {
		return scores[idx[a]] > scores[idx[b]]
	})
	if n < len(idx) {
		idx = idx[:n]
	}
	return idx
}
