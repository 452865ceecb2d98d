package main

import (
	"context"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"github.com/joho/godotenv"

	"docchat-platform/internal/ai"
	"docchat-platform/internal/config"
	"docchat-platform/internal/logger"
	"docchat-platform/internal/queue"
	"docchat-platform/internal/store"
	"docchat-platform/internal/telemetry"
	"docchat-platform/middleware"
	"docchat-platform/routes"
	"docchat-platform/services"
)

func main() {
	_ = godotenv.Load()

	cfg, err := config.LoadConfig()
	if err != nil {
		panic("config: " + err.Error())
	}
	logger.InitLogger(cfg)

	shutdownTracer, err := telemetry.InitTracer("docchat-api")
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

	rdb, err := config.NewRedisClient(cfg)
	if err != nil {
		logger.Error("Redis connection failed", "error", err)
		os.Exit(1)
	}
	defer rdb.Close()

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
	reranker := ai.NewReranker(cfg, gemini)

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
	inspector := queue.NewInspector(cfg)
	defer inspector.Close()

	documents := services.NewDocumentService(cfg, stores, parsers, grouper, chunker, enricher, indexer, storage, queueClient, metrics)
	sessions := services.NewSessionService(stores, storage)
	hybrid := services.NewHybridSearchService(cfg, backend, embedder, reranker, metrics)
	reformulator := services.NewQueryReformulator(cfg, gemini, embedder, backend, stores.Turns)
	memory := services.NewMemoryEngine(cfg, gemini, embedder, backend, stores.Memories, metrics)
	compactor := services.NewCompactor(cfg, gemini, stores.Turns, stores.Summaries, metrics)
	topics := services.NewTopicIndexBuilder(stores.Documents)
	chat := services.NewChatService(cfg, stores, gemini, embedder, hybrid, reformulator, memory, compactor, topics, sessions, queueClient, metrics)

	gin.SetMode(cfg.GinMode)
	router := gin.New()
	router.Use(gin.Recovery())
	router.Use(middleware.RequestID())
	router.Use(middleware.Tracing("docchat-api"))
	router.Use(middleware.Metrics(metrics))
	router.Use(cors.New(cors.Config{
		AllowOrigins:     cfg.CORSOrigins,
		AllowMethods:     []string{"GET", "POST", "PUT", "DELETE", "OPTIONS"},
		AllowHeaders:     []string{"Origin", "Content-Type", "Accept", middleware.RequestIDHeader},
		ExposeHeaders:    []string{middleware.RequestIDHeader},
		AllowCredentials: true,
		MaxAge:           12 * time.Hour,
	}))

	routes.SetupHealthRoutes(router, client, rdb, stores.Documents, inspector)

	api := router.Group("/api")
	api.Use(middleware.RateLimit(cfg, rdb))
	routes.SetupSessionRoutes(api, sessions)
	routes.SetupDocumentRoutes(api, documents, sessions)
	routes.SetupChatRoutes(api, chat, stores.Turns)
	routes.SetupImageRoutes(api, stores.Images, storage)

	srv := &http.Server{
		Addr:    ":" + cfg.Port,
		Handler: router,
	}

	go func() {
		logger.Info("API server listening", "port", cfg.Port)
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Error("Server failed", "error", err)
			os.Exit(1)
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit
	logger.Info("Shutting down")

	ctx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()
	if err := srv.Shutdown(ctx); err != nil {
		logger.Error("Graceful shutdown failed", "error", err)
	}
}
