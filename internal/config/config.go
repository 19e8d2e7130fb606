package config

import (
	"log"
	"os"
	"strconv"

	"github.com/joho/godotenv"
)

type Config struct {
	App      AppConfig
	Database DatabaseConfig
	Pipeline PipelineConfig
	Index    IndexConfig
	Ask      AskConfig
	Keys     APIKeys
	Ai       AIConfig
}

type AppConfig struct {
	Port               string
	BaseURL            string
	Environment        string
	LogFilePath        string
	CorsAllowedOrigins string
	NatsURL            string
	RedisURL           string
}

type DatabaseConfig struct {
	Connection string
}

type PipelineConfig struct {
	WorkerCount       int
	FetchTimeoutSec   int
	FetchRatePerSec   float64
	MaxRetries        int
	QualityMinRunes   int
	SkipListPath      string
	DiscoveryMaxPages int
	MaxWriteups       int
	RunsDir           string
}

type IndexConfig struct {
	ChunkTargetTokens int
	ChunkOverlapRatio float64
	EmbedBatchSize    int
}

type AskConfig struct {
	TopK           int
	ContextBudget  int
	AnswerCacheTTL int // seconds
}

type APIKeys struct {
	GoogleGemini string
	IndexJobs    string // index job topic
}

type AIConfig struct {
	EmbeddingProvider string // "gemini" or "ollama"
	OllamaBaseURL     string
	OllamaModel       string
	LLMProvider       string // "gemini" or "ollama"
	LLMModel          string
}

func Load() *Config {
	if err := godotenv.Load(); err != nil {
		log.Println("Note: .env file not found, usage system environment")
	}

	return &Config{
		App: AppConfig{
			Port:               getEnv("APP_PORT", "3000"),
			BaseURL:            getEnv("APP_BASE_URL", "http://localhost:3000"),
			Environment:        getEnv("GO_ENV", "development"),
			LogFilePath:        getEnv("LOG_FILE_PATH", "app.log.csv"),
			CorsAllowedOrigins: getEnv("CORS_ALLOWED_ORIGINS", "http://localhost:5173"),
			NatsURL:            getEnv("NATS_URL", "nats://localhost:4222"),
			RedisURL:           getEnv("REDIS_URL", "redis://localhost:6379"),
		},
		Database: DatabaseConfig{
			Connection: getEnv("DB_CONNECTION_STRING", ""),
		},
		Pipeline: PipelineConfig{
			WorkerCount:       getEnvAsInt("PIPELINE_WORKER_COUNT", 8),
			FetchTimeoutSec:   getEnvAsInt("FETCH_TIMEOUT_SECONDS", 15),
			FetchRatePerSec:   getEnvAsFloat("FETCH_RATE_PER_SECOND", 1.0),
			MaxRetries:        getEnvAsInt("ADAPTER_MAX_RETRIES", 2),
			QualityMinRunes:   getEnvAsInt("QUALITY_MIN_RUNES", 350),
			SkipListPath:      getEnv("REJECTED_IDS_PATH", "rejected_ids.log"),
			DiscoveryMaxPages: getEnvAsInt("DISCOVERY_MAX_PAGES", 0),
			MaxWriteups:       getEnvAsInt("DISCOVERY_MAX_WRITEUPS", 500),
			RunsDir:           getEnv("PIPELINE_RUNS_DIR", "runs"),
		},
		Index: IndexConfig{
			ChunkTargetTokens: getEnvAsInt("CHUNK_TARGET_TOKENS", 500),
			ChunkOverlapRatio: getEnvAsFloat("CHUNK_OVERLAP_RATIO", 0.15),
			EmbedBatchSize:    getEnvAsInt("EMBED_BATCH_SIZE", 25),
		},
		Ask: AskConfig{
			TopK:           getEnvAsInt("ASK_TOP_K", 10),
			ContextBudget:  getEnvAsInt("ASK_CONTEXT_BUDGET_CHARS", 24000),
			AnswerCacheTTL: getEnvAsInt("ASK_ANSWER_CACHE_TTL_SECONDS", 600),
		},
		Keys: APIKeys{
			GoogleGemini: getEnv("GOOGLE_GEMINI_API_KEY", ""),
			IndexJobs:    getEnv("INDEX_WRITEUP_TOPIC_NAME", "INDEX_WRITEUP"),
		},
		Ai: AIConfig{
			EmbeddingProvider: getEnv("EMBEDDING_PROVIDER", "gemini"),
			OllamaBaseURL:     getEnv("OLLAMA_BASE_URL", "http://localhost:11434"),
			OllamaModel:       getEnv("OLLAMA_EMBEDDING_MODEL", "nomic-embed-text"),
			LLMProvider:       getEnv("LLM_PROVIDER", "gemini"),
			LLMModel:          getEnv("LLM_MODEL", "gemini-1.5-flash"),
		},
	}
}

func getEnv(key, fallback string) string {
	if value, exists := os.LookupEnv(key); exists {
		return value
	}
	return fallback
}

func getEnvAsInt(key string, fallback int) int {
	strValue := getEnv(key, "")
	if value, err := strconv.Atoi(strValue); err == nil {
		return value
	}
	return fallback
}

func getEnvAsFloat(key string, fallback float64) float64 {
	strValue := getEnv(key, "")
	if value, err := strconv.ParseFloat(strValue, 64); err == nil {
		return value
	}
	return fallback
}
