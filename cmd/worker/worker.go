package main

import (
	"context"
	"os"
	"time"

	"github.com/go-co-op/gocron"
	"github.com/joho/godotenv"

	"docchat-platform/internal/ai"
	"docchat-platform/internal/config"
	"docchat-platform/internal/logger"
	"docchat-platform/internal/queue"
	"docchat-platform/internal/store"
	"docchat-platform/internal/telemetry"
	"docchat-platform/services"
)

func main() {
	_ = godotenv.Load()

	cfg, err := config.LoadConfig()
	if err != nil {
		panic("config: " + err.Error())
	}
	logger.InitLogger(cfg)

	shutdownTracer, err := telemetry.InitTracer("docchat-worker")
	if err != nil {
		logger.Warn("Tracer init failed, continuing without tracing", "error", err)
		shutdownTracer = func() {}
	}
	defer shutdownTracer()

	metrics, err := telemetry.InitMetrics()
	if err != nil {
		logger.Error("Metrics init failed", "error", err)
		os.Exit(1)
	}

	client, err := config.ConnectMongoDB(cfg)
	if err != nil {
		logger.Error("MongoDB connection failed", "error", err)
		os.Exit(1)
	}
	defer client.Disconnect(context.Background())

	stores := store.New(client, cfg)

	gemini, err := ai.NewGeminiClient(cfg)
	if err != nil {
		logger.Error("Gemini client init failed", "error", err)
		os.Exit(1)
	}
	embedder, err := ai.NewEmbeddingClient(cfg)
	if err != nil {
		logger.Error("Embedding client init failed", "error", err)
		os.Exit(1)
	}

	var backend services.SearchBackend
	if cfg.VectorSearchEnabled {
		backend = services.NewAtlasSearchBackend(cfg, client)
	} else {
		backend = services.NewInProcessSearchBackend(cfg, stores)
	}

	storage := services.NewImageStorage(cfg)
	parsers := services.NewParserRegistry(cfg)
	grouper := services.NewSpatialGrouper(cfg)
	chunker := services.NewChunker(cfg)
	enricher := services.NewEnricher(cfg, gemini)
	indexer := services.NewIndexer(embedder, stores.Chunks, stores.Images, storage)

	queueClient := queue.NewClient(cfg)
	defer queueClient.Close()

	documents := services.NewDocumentService(cfg, stores, parsers, grouper, chunker, enricher, indexer, storage, queueClient, metrics)
	memory := services.NewMemoryEngine(cfg, gemini, embedder, backend, stores.Memories, metrics)
	compactor := services.NewCompactor(cfg, gemini, stores.Turns, stores.Summaries, metrics)

	// Maintenance: fail documents stuck in PROCESSING (crashed worker) and
	// trim sessions that drifted over the memory cap.
	scheduler := gocron.NewScheduler(time.UTC)
	_, err = scheduler.Every(10).Minutes().Do(func() {
		ctx, cancel := context.WithTimeout(context.Background(), time.Minute)
		defer cancel()
		if err := documents.SweepStaleProcessing(ctx); err != nil {
			logger.Warn("Stale-processing sweep failed", "error", err)
		}
		if err := memory.PruneOverCapSessions(ctx); err != nil {
			logger.Warn("Memory prune sweep failed", "error", err)
		}
	})
	if err != nil {
		logger.Warn("Scheduling maintenance job failed", "error", err)
	}
	scheduler.StartAsync()
	defer scheduler.Stop()

	handler := queue.NewHandler(documents, memory, compactor)
	server := queue.NewServer(cfg)

	logger.Info("Worker starting", "concurrency", cfg.WorkerConcurrency)
	if err := server.Run(handler.Mux()); err != nil {
		logger.Error("Worker stopped", "error", err)
		os.Exit(1)
	}
}
