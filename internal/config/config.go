package config

import (
	"log"
	"os"
	"strconv"
	"time"

	"github.com/joho/godotenv"
)

type Config struct {
	App       AppConfig
	Database  DatabaseConfig
	Keys      APIKeys
	Ai        AIConfig
	Assistant AssistantConfig
}

type AppConfig struct {
	Port               string
	BaseURL            string
	Environment        string
	LogFilePath        string
	CorsAllowedOrigins string
	NatsURL            string
	RedisURL           string
	ReembedTopic       string
}

type DatabaseConfig struct {
	Connection string
}

type APIKeys struct {
	GoogleGemini string
	HuggingFace  string
}

type AIConfig struct {
	EmbeddingProvider string // "gemini" or "ollama"
	OllamaBaseURL     string
	OllamaModel       string // embedding model
	LLMProvider       string // "ollama" or "huggingface"
	LLMModel          string // e.g. "llama3", "qwen2.5"
}

// AssistantConfig tunes the conversation workflow.
type AssistantConfig struct {
	ToolTimeout     time.Duration
	ToolMaxParallel int
	WindowSize      int
	TopK            int
	MaxNodeVisits   int
	Deadline        time.Duration
	MemoryTimeout   time.Duration
	VectorStore     string // "pgvector" or "chromem"
	ChromemDir      string // empty keeps chromem in memory only
	SessionGuard    string // "local" or "redis"
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
			LogFilePath:        getEnv("LOG_FILE_PATH", "logs/app.log"),
			CorsAllowedOrigins: getEnv("CORS_ALLOWED_ORIGINS", "http://localhost:5173"),
			NatsURL:            getEnv("NATS_URL", "nats://localhost:4222"),
			RedisURL:           getEnv("REDIS_URL", "redis://localhost:6379"),
			ReembedTopic:       getEnv("REEMBED_MESSAGE_TOPIC_NAME", "REEMBED_MESSAGE"),
		},
		Database: DatabaseConfig{
			Connection: getEnv("DB_CONNECTION_STRING", ""),
		},
		Keys: APIKeys{
			GoogleGemini: getEnv("GOOGLE_GEMINI_API_KEY", ""),
			HuggingFace:  getEnv("HUGGINGFACE_API_KEY", ""),
		},
		Ai: AIConfig{
			EmbeddingProvider: getEnv("EMBEDDING_PROVIDER", "ollama"),
			OllamaBaseURL:     getEnv("OLLAMA_BASE_URL", "http://localhost:11434"),
			OllamaModel:       getEnv("OLLAMA_EMBEDDING_MODEL", "nomic-embed-text"),
			LLMProvider:       getEnv("LLM_PROVIDER", "ollama"),
			LLMModel:          getEnv("LLM_MODEL", "llama3"),
		},
		Assistant: AssistantConfig{
			ToolTimeout:     getEnvAsDuration("TOOL_TIMEOUT_SECONDS", 30*time.Second),
			ToolMaxParallel: getEnvAsInt("TOOL_MAX_PARALLEL", 4),
			WindowSize:      getEnvAsInt("CONTEXT_WINDOW_SIZE", 10),
			TopK:            getEnvAsInt("CONTEXT_TOP_K", 5),
			MaxNodeVisits:   getEnvAsInt("WORKFLOW_MAX_NODE_VISITS", 8),
			Deadline:        getEnvAsDuration("WORKFLOW_DEADLINE_SECONDS", 60*time.Second),
			MemoryTimeout:   getEnvAsDuration("MEMORY_UPDATE_TIMEOUT_SECONDS", 15*time.Second),
			VectorStore:     getEnv("VECTOR_STORE", "pgvector"),
			ChromemDir:      getEnv("CHROMEM_DIR", ""),
			SessionGuard:    getEnv("SESSION_GUARD", "local"),
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

// getEnvAsDuration reads a whole number of seconds.
func getEnvAsDuration(key string, fallback time.Duration) time.Duration {
	strValue := getEnv(key, "")
	if value, err := strconv.Atoi(strValue); err == nil && value > 0 {
		return time.Duration(value) * time.Second
	}
	return fallback
}
