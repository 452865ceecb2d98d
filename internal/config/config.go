package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"

	"github.com/joho/godotenv"
)

type Config struct {
	MongoURI string
	DBName   string
	Port     string
	GinMode  string

	CORSOrigins []string

	// Redis / task queue
	RedisURL      string
	RedisPassword string
	RedisDB       int

	// Gemini
	GeminiAPIKey          string
	GeminiChatModel       string
	GeminiTier            string
	GoogleEmbeddingsModel string
	ChatTimeoutSeconds    int
	EmbedTimeoutSeconds   int

	// Upload limits
	MaxFileSize  int64
	AllowedTypes []string

	// Chunking
	ChunkSize    int
	ChunkOverlap int

	// Contextual chunking (per-chunk prefixes)
	ContextualChunkingEnabled bool
	ContextualMaxSummaryChars int

	// Retrieval
	CandidatesMultiplier   int
	RRFRankConstant        int
	SourceAnchoringEnabled bool
	MaxChunksPerDoc        int
	MaxPromptChars         int

	// Reranking
	RerankStrategy    string // "tei" or "llm"
	TEIBaseURL        string
	TEIRawScores      bool
	TEITimeoutSeconds int

	// Memory
	MemoryEnabled        bool
	MemoryExtractionMin  float64
	MemoryMaxPerSession  int
	MemorySemanticWeight float64
	MemoryPoolMultiplier int

	// Compaction
	CompactionThresholdTokens int
	CompactionTargetTokens    int
	MinCompactTurns           int
	SummariesInPrompt         int

	// Query reformulation
	ReformulationEnabled bool
	MinRecentMessages    int
	HistoryWindow        int
	MaxQueryLength       int

	// File storage
	ImageBasePath         string
	ImageMaxFileSizeBytes int64
	UploadDir             string

	// PDF image grouping
	SpatialThreshold float64
	SpatialMinGroup  int

	// Atlas search (disabled falls back to in-process search)
	VectorSearchEnabled bool
	SearchIndexName     string
	VectorIndexName     string
	VectorDimensions    int

	// Rate limiting
	RateLimitReqs   int
	RateLimitWindow int

	// Background processing
	WorkerConcurrency      int
	StaleProcessingMinutes int
}

func LoadConfig() (*Config, error) {
	if _, err := os.Stat(".env"); err == nil {
		if err := godotenv.Load(); err != nil {
			return nil, fmt.Errorf("error loading .env file: %v", err)
		}
	}

	cfg := &Config{
		MongoURI: getEnv("MONGO_URI", "mongodb://localhost:27017/docchat"),
		DBName:   getEnv("DB_NAME", "docchat"),
		Port:     getEnv("PORT", "8080"),
		GinMode:  getEnv("GIN_MODE", "debug"),

		CORSOrigins: getEnvSlice("CORS_ORIGINS", []string{"http://localhost:3000"}),

		RedisURL:      getEnv("REDIS_URL", "localhost:6379"),
		RedisPassword: getEnv("REDIS_PASSWORD", ""),
		RedisDB:       getEnvInt("REDIS_DB", 0),

		GeminiAPIKey:          getEnv("GEMINI_API_KEY", ""),
		GeminiChatModel:       getEnv("GEMINI_CHAT_MODEL", "gemini-2.0-flash"),
		GeminiTier:            getEnv("GEMINI_TIER", "free"),
		GoogleEmbeddingsModel: getEnv("GOOGLE_EMBEDDINGS_MODEL", "text-embedding-004"),
		ChatTimeoutSeconds:    getEnvInt("CHAT_TIMEOUT_SECONDS", 60),
		EmbedTimeoutSeconds:   getEnvInt("EMBED_TIMEOUT_SECONDS", 30),

		MaxFileSize: getEnvInt64("MAX_FILE_SIZE", 50<<20),
		AllowedTypes: getEnvSlice("ALLOWED_TYPES", []string{
			"application/pdf",
			"application/vnd.openxmlformats-officedocument.wordprocessingml.document",
			"application/vnd.openxmlformats-officedocument.spreadsheetml.sheet",
			"application/epub+zip",
			"application/xhtml+xml",
			"text/html",
			"text/markdown",
			"text/x-markdown",
			"text/plain",
		}),

		ChunkSize:    getEnvInt("CHUNKING_SIZE", 400),
		ChunkOverlap: getEnvInt("CHUNKING_OVERLAP", 50),

		ContextualChunkingEnabled: getEnvBool("CONTEXTUAL_CHUNKING_ENABLED", true),
		ContextualMaxSummaryChars: getEnvInt("CONTEXTUAL_MAX_SUMMARY_CHARS", 12000),

		CandidatesMultiplier:   getEnvInt("RETRIEVAL_CANDIDATES_MULTIPLIER", 4),
		RRFRankConstant:        getEnvInt("RETRIEVAL_RRF_K", 60),
		SourceAnchoringEnabled: getEnvBool("RETRIEVAL_SOURCE_ANCHORING_ENABLED", true),
		MaxChunksPerDoc:        getEnvInt("RETRIEVAL_MAX_PER_DOC", 2),
		MaxPromptChars:         getEnvInt("MAX_PROMPT_CHARS", 48000),

		RerankStrategy:    getEnv("RERANKING_STRATEGY", "tei"),
		TEIBaseURL:        getEnv("RERANKING_TEI_BASE_URL", "http://localhost:8081"),
		TEIRawScores:      getEnvBool("RERANKING_TEI_RAW_SCORES", false),
		TEITimeoutSeconds: getEnvInt("RERANKING_TEI_TIMEOUT_SECONDS", 10),

		MemoryEnabled:        getEnvBool("MEMORY_ENABLED", true),
		MemoryExtractionMin:  getEnvFloat("MEMORY_EXTRACTION_THRESHOLD", 0.6),
		MemoryMaxPerSession:  getEnvInt("MEMORY_MAX_PER_SESSION", 200),
		MemorySemanticWeight: getEnvFloat("MEMORY_SEMANTIC_WEIGHT", 0.7),
		MemoryPoolMultiplier: getEnvInt("MEMORY_CANDIDATE_POOL_MULTIPLIER", 3),

		CompactionThresholdTokens: getEnvInt("COMPACTION_THRESHOLD_TOKENS", 2000),
		CompactionTargetTokens:    getEnvInt("COMPACTION_TARGET_TOKENS", 1000),
		MinCompactTurns:           getEnvInt("COMPACTION_MIN_TURNS", 6),
		SummariesInPrompt:         getEnvInt("COMPACTION_SUMMARIES_IN_PROMPT", 3),

		ReformulationEnabled: getEnvBool("QUERY_REFORMULATION_ENABLED", true),
		MinRecentMessages:    getEnvInt("QUERY_REFORMULATION_MIN_RECENT", 6),
		HistoryWindow:        getEnvInt("QUERY_REFORMULATION_HISTORY_WINDOW", 10),
		MaxQueryLength:       getEnvInt("QUERY_REFORMULATION_MAX_QUERY_LENGTH", 512),

		ImageBasePath:         getEnv("IMAGE_STORAGE_BASE_PATH", "./storage/images"),
		ImageMaxFileSizeBytes: getEnvInt64("IMAGE_STORAGE_MAX_FILE_SIZE_BYTES", 10<<20),
		UploadDir:             getEnv("UPLOAD_DIR", "./storage/uploads"),

		SpatialThreshold: getEnvFloat("IMAGE_GROUPING_SPATIAL_THRESHOLD", 100),
		SpatialMinGroup:  getEnvInt("IMAGE_GROUPING_SPATIAL_MIN_GROUP_SIZE", 2),

		VectorSearchEnabled: getEnvBool("VECTOR_SEARCH_ENABLED", false),
		SearchIndexName:     getEnv("SEARCH_INDEX_NAME", "chunks_text"),
		VectorIndexName:     getEnv("VECTOR_INDEX_NAME", "chunks_vector"),
		VectorDimensions:    getEnvInt("VECTOR_DIMENSIONS", 768),

		RateLimitReqs:   getEnvInt("RATE_LIMIT_REQUESTS", 60),
		RateLimitWindow: getEnvInt("RATE_LIMIT_WINDOW", 60),

		WorkerConcurrency:      getEnvInt("WORKER_CONCURRENCY", 4),
		StaleProcessingMinutes: getEnvInt("STALE_PROCESSING_MINUTES", 30),
	}

	if cfg.ChunkOverlap >= cfg.ChunkSize {
		return nil, fmt.Errorf("chunk overlap (%d) must be smaller than chunk size (%d)", cfg.ChunkOverlap, cfg.ChunkSize)
	}
	if cfg.RerankStrategy != "tei" && cfg.RerankStrategy != "llm" {
		return nil, fmt.Errorf("unknown reranking strategy: %s", cfg.RerankStrategy)
	}

	return cfg, nil
}

func getEnv(key, fallback string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return fallback
}

func getEnvInt(key string, fallback int) int {
	if value := os.Getenv(key); value != "" {
		if i, err := strconv.Atoi(value); err == nil {
			return i
		}
	}
	return fallback
}

func getEnvInt64(key string, fallback int64) int64 {
	if value := os.Getenv(key); value != "" {
		if i, err := strconv.ParseInt(value, 10, 64); err == nil {
			return i
		}
	}
	return fallback
}

func getEnvFloat(key string, fallback float64) float64 {
	if value := os.Getenv(key); value != "" {
		if f, err := strconv.ParseFloat(value, 64); err == nil {
			return f
		}
	}
	return fallback
}

func getEnvBool(key string, fallback bool) bool {
	if value := os.Getenv(key); value != "" {
		if b, err := strconv.ParseBool(value); err == nil {
			return b
		}
	}
	return fallback
}

func getEnvSlice(key string, fallback []string) []string {
	if value := os.Getenv(key); value != "" {
		parts := strings.Split(value, ",")
		out := make([]string, 0, len(parts))
		for _, p := range parts {
			if trimmed := strings.TrimSpace(p); trimmed != "" {
				out = append(out, trimmed)
			}
		}
		if len(out) > 0 {
			return out
		}
	}
	return fallback
}
