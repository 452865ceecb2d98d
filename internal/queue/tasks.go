package queue

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/hibiken/asynq"
	"go.mongodb.org/mongo-driver/bson/primitive"

	"docchat-platform/internal/config"
	"docchat-platform/internal/logger"
	"docchat-platform/models"
	"docchat-platform/services"
)

// Task type names.
const (
	TypeDocumentProcess = "document:process"
	TypeMemoryExtract   = "memory:extract"
	TypeSessionCompact  = "session:compact"
)

type documentProcessPayload struct {
	DocumentID string `json:"document_id"`
}

type memoryExtractPayload struct {
	SessionID    string      `json:"session_id"`
	UserMsg      string      `json:"user_msg"`
	AssistantMsg string      `json:"assistant_msg"`
	Mode         models.Mode `json:"mode"`
}

type sessionCompactPayload struct {
	SessionID string `json:"session_id"`
}

// Client enqueues background tasks. It implements services.TaskScheduler.
type Client struct {
	client *asynq.Client
}

var _ services.TaskScheduler = (*Client)(nil)

func NewClient(cfg *config.Config) *Client {
	return &Client{client: asynq.NewClient(redisOpt(cfg))}
}

func (c *Client) Close() error { return c.client.Close() }

func (c *Client) EnqueueDocumentProcess(ctx context.Context, documentID primitive.ObjectID) error {
	return c.enqueue(ctx, TypeDocumentProcess,
		documentProcessPayload{DocumentID: documentID.Hex()},
		asynq.MaxRetry(3), asynq.Queue("documents"))
}

func (c *Client) EnqueueMemoryExtract(ctx context.Context, sessionID primitive.ObjectID, userMsg, assistantMsg string, mode models.Mode) error {
	return c.enqueue(ctx, TypeMemoryExtract,
		memoryExtractPayload{SessionID: sessionID.Hex(), UserMsg: userMsg, AssistantMsg: assistantMsg, Mode: mode},
		asynq.MaxRetry(2), asynq.Queue("default"))
}

func (c *Client) EnqueueSessionCompact(ctx context.Context, sessionID primitive.ObjectID) error {
	return c.enqueue(ctx, TypeSessionCompact,
		sessionCompactPayload{SessionID: sessionID.Hex()},
		asynq.MaxRetry(2), asynq.Queue("default"))
}

func (c *Client) enqueue(ctx context.Context, taskType string, payload interface{}, opts ...asynq.Option) error {
	data, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("marshaling %s payload: %w", taskType, err)
	}
	info, err := c.client.EnqueueContext(ctx, asynq.NewTask(taskType, data), opts...)
	if err != nil {
		return fmt.Errorf("enqueueing %s: %w", taskType, err)
	}
	logger.Debug("Task enqueued", "type", taskType, "task_id", info.ID, "queue", info.Queue)
	return nil
}

// Handler executes background tasks on the worker.
type Handler struct {
	documents *services.DocumentService
	memory    *services.MemoryEngine
	compactor *services.Compactor
}

func NewHandler(documents *services.DocumentService, memory *services.MemoryEngine, compactor *services.Compactor) *Handler {
	return &Handler{documents: documents, memory: memory, compactor: compactor}
}

// Mux registers the task handlers.
func (h *Handler) Mux() *asynq.ServeMux {
	mux := asynq.NewServeMux()
	mux.HandleFunc(TypeDocumentProcess, h.handleDocumentProcess)
	mux.HandleFunc(TypeMemoryExtract, h.handleMemoryExtract)
	mux.HandleFunc(TypeSessionCompact, h.handleSessionCompact)
	return mux
}

func (h *Handler) handleDocumentProcess(ctx context.Context, task *asynq.Task) error {
	var payload documentProcessPayload
	if err := json.Unmarshal(task.Payload(), &payload); err != nil {
		return fmt.Errorf("%w: %v", asynq.SkipRetry, err)
	}
	docID, err := primitive.ObjectIDFromHex(payload.DocumentID)
	if err != nil {
		return fmt.Errorf("%w: bad document id %q", asynq.SkipRetry, payload.DocumentID)
	}
	return h.documents.Process(ctx, docID)
}

func (h *Handler) handleMemoryExtract(ctx context.Context, task *asynq.Task) error {
	var payload memoryExtractPayload
	if err := json.Unmarshal(task.Payload(), &payload); err != nil {
		return fmt.Errorf("%w: %v", asynq.SkipRetry, err)
	}
	sessionID, err := primitive.ObjectIDFromHex(payload.SessionID)
	if err != nil {
		return fmt.Errorf("%w: bad session id %q", asynq.SkipRetry, payload.SessionID)
	}
	return h.memory.ExtractAndSave(ctx, sessionID, payload.UserMsg, payload.AssistantMsg, payload.Mode)
}

func (h *Handler) handleSessionCompact(ctx context.Context, task *asynq.Task) error {
	var payload sessionCompactPayload
	if err := json.Unmarshal(task.Payload(), &payload); err != nil {
		return fmt.Errorf("%w: %v", asynq.SkipRetry, err)
	}
	sessionID, err := primitive.ObjectIDFromHex(payload.SessionID)
	if err != nil {
		return fmt.Errorf("%w: bad session id %q", asynq.SkipRetry, payload.SessionID)
	}
	return h.compactor.Compact(ctx, sessionID)
}

// NewServer builds the asynq worker server with the configured
// concurrency, weighting the document queue above the default.
func NewServer(cfg *config.Config) *asynq.Server {
	return asynq.NewServer(redisOpt(cfg), asynq.Config{
		Concurrency: cfg.WorkerConcurrency,
		Queues: map[string]int{
			"documents": 6,
			"default":   4,
		},
	})
}

// NewInspector exposes queue state for the health endpoint.
func NewInspector(cfg *config.Config) *asynq.Inspector {
	return asynq.NewInspector(redisOpt(cfg))
}

func redisOpt(cfg *config.Config) asynq.RedisClientOpt {
	return asynq.RedisClientOpt{Addr: cfg.RedisURL, Password: cfg.RedisPassword, DB: cfg.RedisDB}
}
