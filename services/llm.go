package services

import (
	"context"

	"go.mongodb.org/mongo-driver/bson/primitive"

	"docchat-platform/internal/ai"
	"docchat-platform/models"
)

// ChatLLM is the slice of the model client the chat pipeline needs.
// Implemented by ai.GeminiClient; tests substitute fakes.
type ChatLLM interface {
	GenerateStream(ctx context.Context, systemPrompt string, history []ai.Message, userMessage string, onToken func(string)) (ai.Usage, error)
	GenerateJSON(ctx context.Context, prompt string, out interface{}) error
	GenerateText(ctx context.Context, prompt string) (string, error)
}

// Embedder produces retrieval embeddings. A nil/empty vector means the
// provider failed and the caller should degrade to lexical scoring.
type Embedder interface {
	EmbedPassage(ctx context.Context, text string) []float32
	EmbedPassages(ctx context.Context, texts []string) [][]float32
	EmbedQuery(ctx context.Context, text string) []float32
}

// TaskScheduler hands work to the background queue. The queue package
// implements it; defining the contract here keeps services free of queue
// imports.
type TaskScheduler interface {
	EnqueueDocumentProcess(ctx context.Context, documentID primitive.ObjectID) error
	EnqueueMemoryExtract(ctx context.Context, sessionID primitive.ObjectID, userMsg, assistantMsg string, mode models.Mode) error
	EnqueueSessionCompact(ctx context.Context, sessionID primitive.ObjectID) error
}

var (
	_ ChatLLM  = (*ai.GeminiClient)(nil)
	_ Embedder = (*ai.EmbeddingClient)(nil)
)
