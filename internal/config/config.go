package config

import (
	"log/slog"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

// Store backends.
const (
	StoreSurrealDB = "surrealdb"
	StoreSQLite    = "sqlite"
	StoreMemory    = "memory"
)

// LLM and embedding providers.
const (
	ProviderNone      = "none"
	ProviderOllama    = "ollama"
	ProviderOpenAI    = "openai"
	ProviderAnthropic = "anthropic"
	ProviderBedrock   = "bedrock"
	ProviderCharCode  = "charcode"
	ProviderVoyage    = "voyage"
)

// Config holds all configuration values.
type Config struct {
	// Storage
	StoreBackend string
	SQLitePath   string

	// SurrealDB connection
	SurrealDBURL       string
	SurrealDBNamespace string
	SurrealDBDatabase  string
	SurrealDBUser      string
	SurrealDBPass      string
	SurrealDBAuthLevel string

	// Chunk cache
	CacheBackend string
	RedisURL     string
	CacheTTL     time.Duration
	CacheLRUSize int

	// LLM
	LLMProvider     string
	LLMModel        string
	LLMTimeout      time.Duration
	LLMRatePerSec   float64
	OpenAIAPIKey    string
	AnthropicAPIKey string
	AWSRegion       string
	OllamaHost      string

	// Embeddings
	EmbedProvider  string
	EmbedModel     string
	EmbedDimension int
	VoyageAPIKey   string

	// Retrieval
	ChunkSizeLines    int
	RetrievalTopK     int
	ChatHistoryWindow int
	IndexConcurrency  int

	// Server
	ServerPort int
	ServerURL  string

	// Logging
	LogFile  string
	LogLevel slog.Level
}

// Load reads configuration from environment variables. A .env file in the
// working directory is read first when present; real environment variables
// take precedence over it.
func Load() Config {
	_ = godotenv.Load()

	return Config{
		StoreBackend: strings.ToLower(getEnv("STORE_BACKEND", StoreMemory)),
		SQLitePath:   getEnv("SQLITE_PATH", "./spoilerguard.db"),

		SurrealDBURL:       getEnv("SURREALDB_URL", "ws://localhost:8000/rpc"),
		SurrealDBNamespace: getEnv("SURREALDB_NAMESPACE", "spoilerguard"),
		SurrealDBDatabase:  getEnv("SURREALDB_DATABASE", "dialogue"),
		SurrealDBUser:      getEnv("SURREALDB_USER", "root"),
		SurrealDBPass:      getEnv("SURREALDB_PASS", "root"),
		SurrealDBAuthLevel: getEnv("SURREALDB_AUTH_LEVEL", "root"),

		CacheBackend: strings.ToLower(getEnv("CACHE_BACKEND", "lru")),
		RedisURL:     getEnv("REDIS_URL", "redis://localhost:6379/0"),
		CacheTTL:     time.Duration(getEnvInt("CACHE_TTL_SECONDS", 600)) * time.Second,
		CacheLRUSize: getEnvInt("CACHE_LRU_SIZE", 256),

		LLMProvider:     strings.ToLower(getEnv("LLM_PROVIDER", ProviderNone)),
		LLMModel:        getEnv("LLM_MODEL", "gpt-4o-mini"),
		LLMTimeout:      getEnvDuration("LLM_TIMEOUT", 30*time.Second),
		LLMRatePerSec:   getEnvFloat("LLM_RATE_PER_SEC", 2),
		OpenAIAPIKey:    getEnv("OPENAI_API_KEY", ""),
		AnthropicAPIKey: getEnv("ANTHROPIC_API_KEY", ""),
		AWSRegion:       getEnv("AWS_REGION", "us-east-1"),
		OllamaHost:      getEnv("OLLAMA_HOST", "http://localhost:11434"),

		EmbedProvider:  strings.ToLower(getEnv("EMBED_PROVIDER", ProviderCharCode)),
		EmbedModel:     getEnv("EMBED_MODEL", ""),
		EmbedDimension: getEnvInt("EMBED_DIMENSION", 0),
		VoyageAPIKey:   getEnv("VOYAGE_API_KEY", ""),

		ChunkSizeLines:    getEnvInt("CHUNK_SIZE_LINES", 6),
		RetrievalTopK:     getEnvInt("RETRIEVAL_TOP_K", 8),
		ChatHistoryWindow: getEnvInt("CHAT_HISTORY_WINDOW", 8),
		IndexConcurrency:  getEnvInt("INDEX_CONCURRENCY", 2),

		ServerPort: getEnvInt("SPOILERGUARD_SERVER_PORT", 8484),
		ServerURL:  getEnv("SPOILERGUARD_SERVER_URL", "http://localhost:8484"),

		LogFile:  getEnv("SPOILERGUARD_LOG_FILE", "/tmp/spoilerguard.log"),
		LogLevel: parseLogLevel(getEnv("SPOILERGUARD_LOG_LEVEL", "INFO")),
	}
}

// LLMEnabled reports whether a generation provider is configured.
func (c Config) LLMEnabled() bool {
	return c.LLMProvider != "" && c.LLMProvider != ProviderNone
}

func getEnv(key, defaultVal string) string {
	if val := os.Getenv(key); val != "" {
		return val
	}
	return defaultVal
}

func getEnvInt(key string, defaultVal int) int {
	v, err := strconv.Atoi(getEnv(key, ""))
	if err != nil {
		return defaultVal
	}
	return v
}

func getEnvFloat(key string, defaultVal float64) float64 {
	v, err := strconv.ParseFloat(getEnv(key, ""), 64)
	if err != nil {
		return defaultVal
	}
	return v
}

// getEnvDuration accepts Go durations ("45s") or plain seconds ("45").
func getEnvDuration(key string, defaultVal time.Duration) time.Duration {
	raw := getEnv(key, "")
	if raw == "" {
		return defaultVal
	}
	if d, err := time.ParseDuration(raw); err == nil {
		return d
	}
	if secs, err := strconv.ParseFloat(raw, 64); err == nil {
		return time.Duration(secs * float64(time.Second))
	}
	return defaultVal
}

func parseLogLevel(s string) slog.Level {
	switch strings.ToUpper(s) {
	case "DEBUG":
		return slog.LevelDebug
	case "INFO":
		return slog.LevelInfo
	case "WARN", "WARNING":
		return slog.LevelWarn
	case "ERROR":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}
