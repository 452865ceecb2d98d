package ai

import (
	"context"
	"fmt"
	"time"

	"github.com/sony/gobreaker"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"google.golang.org/api/option"

	genai "github.com/google/generative-ai-go/genai"

	"docchat-platform/internal/config"
	"docchat-platform/internal/logger"
)

// Instruction prefixes for the embedding model. Passages and queries use
// asymmetric prefixes so that questions retrieve declarative text well.
const (
	passagePrefix = "Represent this document passage for retrieval: "
	queryPrefix   = "Represent this question for retrieving relevant document passages: "

	// maxEmbedChars right-truncates embedding input. Byte-based, which is
	// conservative for CJK scripts.
	maxEmbedChars = 5000
)

// EmbeddingClient generates dense vectors via the Gemini embeddings model.
// Failures degrade to empty vectors; callers treat affected chunks as
// keyword-only.
type EmbeddingClient struct {
	client  *genai.Client
	model   string
	breaker *gobreaker.CircuitBreaker
	timeout time.Duration
	dims    int
}

func NewEmbeddingClient(cfg *config.Config) (*EmbeddingClient, error) {
	if cfg.GeminiAPIKey == "" {
		return nil, fmt.Errorf("missing GEMINI_API_KEY for embeddings")
	}

	client, err := genai.NewClient(context.Background(), option.WithAPIKey(cfg.GeminiAPIKey))
	if err != nil {
		return nil, err
	}

	breaker := gobreaker.NewCircuitBreaker(gobreaker.Settings{
		Name:        "GeminiEmbeddings",
		MaxRequests: 5,
		Interval:    10 * time.Second,
		Timeout:     30 * time.Second,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			failureRatio := float64(counts.TotalFailures) / float64(counts.Requests)
			return counts.Requests >= 3 && failureRatio >= 0.6
		},
		OnStateChange: func(name string, from gobreaker.State, to gobreaker.State) {
			logger.Warn("Circuit breaker state change", "breaker", name, "from", from.String(), "to", to.String())
		},
	})

	return &EmbeddingClient{
		client:  client,
		model:   cfg.GoogleEmbeddingsModel,
		breaker: breaker,
		timeout: time.Duration(cfg.EmbedTimeoutSeconds) * time.Second,
		dims:    cfg.VectorDimensions,
	}, nil
}

// EmbedPassage embeds document text with the passage prefix. Returns an
// empty vector on provider failure.
func (ec *EmbeddingClient) EmbedPassage(ctx context.Context, text string) []float32 {
	return ec.embed(ctx, passagePrefix+truncate(text))
}

// EmbedQuery embeds a search query with the query prefix. Returns an empty
// vector on provider failure; hybrid search degrades to keyword-only.
func (ec *EmbeddingClient) EmbedQuery(ctx context.Context, text string) []float32 {
	return ec.embed(ctx, queryPrefix+truncate(text))
}

// EmbedPassages embeds a batch of passages. The result always has one entry
// per input; failed batches yield empty vectors throughout.
func (ec *EmbeddingClient) EmbedPassages(ctx context.Context, texts []string) [][]float32 {
	out := make([][]float32, len(texts))
	if len(texts) == 0 {
		return out
	}

	ctx, span := otel.Tracer("gemini-embeddings").Start(ctx, "gemini.embed_batch")
	defer span.End()
	span.SetAttributes(attribute.Int("embeddings.batch_size", len(texts)))

	ctx, cancel := context.WithTimeout(ctx, ec.timeout)
	defer cancel()

	result, err := ec.breaker.Execute(func() (interface{}, error) {
		em := ec.client.EmbeddingModel(ec.model)
		batch := em.NewBatch()
		for _, t := range texts {
			batch.AddContent(genai.Text(passagePrefix + truncate(t)))
		}
		resp, err := em.BatchEmbedContents(ctx, batch)
		if err != nil {
			return nil, err
		}
		return resp, nil
	})
	if err != nil {
		logger.Warn("Batch embedding failed, degrading to empty vectors", "error", err, "batch_size", len(texts))
		return out
	}

	resp := result.(*genai.BatchEmbedContentsResponse)
	for i, emb := range resp.Embeddings {
		if i < len(out) && emb != nil {
			out[i] = ec.checkDims(emb.Values)
		}
	}
	return out
}

// checkDims discards vectors that do not match the index dimensionality;
// a mismatched vector would poison the vector index.
func (ec *EmbeddingClient) checkDims(vec []float32) []float32 {
	if ec.dims > 0 && len(vec) > 0 && len(vec) != ec.dims {
		logger.Warn("Embedding has unexpected dimensionality, discarding", "got", len(vec), "want", ec.dims)
		return nil
	}
	return vec
}

func (ec *EmbeddingClient) embed(ctx context.Context, text string) []float32 {
	ctx, span := otel.Tracer("gemini-embeddings").Start(ctx, "gemini.embed")
	defer span.End()

	ctx, cancel := context.WithTimeout(ctx, ec.timeout)
	defer cancel()

	result, err := ec.breaker.Execute(func() (interface{}, error) {
		em := ec.client.EmbeddingModel(ec.model)
		resp, err := em.EmbedContent(ctx, genai.Text(text))
		if err != nil {
			return nil, err
		}
		if resp.Embedding == nil {
			return nil, fmt.Errorf("no embedding returned")
		}
		return resp.Embedding.Values, nil
	})
	if err != nil {
		logger.Warn("Embedding failed, degrading to empty vector", "error", err)
		return nil
	}
	return ec.checkDims(result.([]float32))
}

func truncate(text string) string {
	if len(text) <= maxEmbedChars {
		return text
	}
	return text[:maxEmbedChars]
}
