// Package config loads the service configuration from the environment,
// with optional .env support for local development.
package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"

	"github.com/joho/godotenv"
)

// Config carries every tunable of the chatbot service.
type Config struct {
	Env  string
	Port string

	KnowledgeBaseDir string
	IndexDir         string

	OpenAIAPIKey  string
	OpenAIBaseURL string
	EmbedModel    string
	ChatModel     string
	Temperature   float64

	RetrievalK   int
	ChunkSize    int
	ChunkOverlap int

	EmbedTimeout int // seconds
	ChatTimeout  int // seconds

	OTelEnabled bool
}

// Load reads configuration from the environment. A .env file in the
// working directory is merged in first, without overriding real env vars.
func Load() *Config {
	_ = godotenv.Load()

	return &Config{
		Env:              getEnv("ENV", "development"),
		Port:             getEnv("PORT", "8080"),
		KnowledgeBaseDir: getEnv("KB_DIR", "knowledge-base"),
		IndexDir:         getEnv("KB_INDEX_DIR", "kb-index"),
		OpenAIAPIKey:     getSecret("OPENAI_API_KEY", "OPENAI_API_KEY_FILE", ""),
		OpenAIBaseURL:    getEnv("OPENAI_BASE_URL", "https://api.openai.com/v1"),
		EmbedModel:       getEnv("EMBED_MODEL", "text-embedding-3-small"),
		ChatModel:        getEnv("CHAT_MODEL", "gpt-4o"),
		Temperature:      getEnvFloat("TEMPERATURE", 0.7),
		RetrievalK:       getEnvInt("RETRIEVAL_K", 8),
		ChunkSize:        getEnvInt("CHUNK_SIZE", 1000),
		ChunkOverlap:     getEnvInt("CHUNK_OVERLAP", 200),
		EmbedTimeout:     getEnvInt("EMBED_TIMEOUT_SECONDS", 30),
		ChatTimeout:      getEnvInt("CHAT_TIMEOUT_SECONDS", 120),
		OTelEnabled:      getEnvBool("OTEL_ENABLED", false),
	}
}

// Validate reports startup-fatal configuration problems. The process must
// not start serving when it returns an error.
func (c *Config) Validate() error {
	if c.OpenAIAPIKey == "" {
		return fmt.Errorf("missing OPENAI_API_KEY")
	}
	if c.ChunkOverlap >= c.ChunkSize {
		return fmt.Errorf("CHUNK_OVERLAP (%d) must be smaller than CHUNK_SIZE (%d)", c.ChunkOverlap, c.ChunkSize)
	}
	if c.RetrievalK <= 0 {
		return fmt.Errorf("RETRIEVAL_K must be positive, got %d", c.RetrievalK)
	}
	return nil
}

func getEnv(key, fallback string) string {
	if value, ok := os.LookupEnv(key); ok {
		return value
	}
	return fallback
}

func getSecret(envKey, fileEnvKey, fallback string) string {
	if value, ok := os.LookupEnv(envKey); ok {
		return value
	}
	if filePath, ok := os.LookupEnv(fileEnvKey); ok {
		if content, err := os.ReadFile(filePath); err == nil {
			return strings.TrimSpace(string(content))
		}
	}
	return fallback
}

func getEnvInt(key string, fallback int) int {
	if value, ok := os.LookupEnv(key); ok {
		if parsed, err := strconv.Atoi(value); err == nil {
			return parsed
		}
	}
	return fallback
}

func getEnvBool(key string, fallback bool) bool {
	if value, ok := os.LookupEnv(key); ok {
		if parsed, err := strconv.ParseBool(value); err == nil {
			return parsed
		}
	}
	return fallback
}

func getEnvFloat(key string, fallback float64) float64 {
	if value, ok := os.LookupEnv(key); ok {
		if parsed, err := strconv.ParseFloat(value, 64); err == nil {
			return parsed
		}
	}
	return fallback
}
