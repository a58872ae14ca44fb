package config

import (
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strconv"
	"time"

	"github.com/joho/godotenv"
)

// Config holds all configuration for the sync daemon.
type Config struct {
	DBPath           string
	QdrantURL        string
	QdrantCollection string

	EmbeddingBaseURL string
	EmbeddingAPIKey  string
	EmbeddingModel   string
	EmbeddingDim     int

	WorkspaceAPIURL string
	WorkspaceToken  string

	SyncInterval time.Duration

	APIPort   string
	LogLevel  slog.Level
	LogFormat string
}

// Load reads configuration from environment variables and returns a Config.
// A .env file in the current directory is loaded first if present; variables
// already set in the environment take precedence over .env values.
func Load() (*Config, error) {
	_ = godotenv.Load()

	cfg := &Config{
		DBPath:           getEnv("DB_PATH", "./data/ragsync.db"),
		QdrantURL:        getEnv("QDRANT_URL", "http://localhost:6333"),
		QdrantCollection: getEnv("QDRANT_COLLECTION", "corpus"),
		EmbeddingBaseURL: getEnv("EMBEDDING_BASE_URL", "http://localhost:8081/v1"),
		EmbeddingAPIKey:  getEnv("EMBEDDING_API_KEY", "dummy-key"),
		EmbeddingModel:   getEnv("EMBEDDING_MODEL", "all-MiniLM-L6-v2"),
		WorkspaceAPIURL:  getEnv("WORKSPACE_API_URL", ""),
		WorkspaceToken:   getEnv("WORKSPACE_TOKEN", ""),
		APIPort:          getEnv("API_PORT", "9000"),
		LogFormat:        getEnv("LOG_FORMAT", "text"),
	}

	// The embedding dimension fixes the vector collection layout; changing it
	// invalidates every stored vector, so it must be set explicitly.
	dimStr := getEnv("EMBEDDING_DIM", "")
	if dimStr == "" {
		return nil, fmt.Errorf("EMBEDDING_DIM is required")
	}
	dim, err := strconv.Atoi(dimStr)
	if err != nil {
		return nil, fmt.Errorf("EMBEDDING_DIM must be a valid integer: %w", err)
	}
	if dim <= 0 {
		return nil, fmt.Errorf("EMBEDDING_DIM must be greater than 0")
	}
	cfg.EmbeddingDim = dim

	interval, err := time.ParseDuration(getEnv("SYNC_INTERVAL", "15m"))
	if err != nil {
		return nil, fmt.Errorf("SYNC_INTERVAL must be a valid duration: %w", err)
	}
	if interval <= 0 {
		return nil, fmt.Errorf("SYNC_INTERVAL must be positive")
	}
	cfg.SyncInterval = interval

	if cfg.WorkspaceAPIURL == "" {
		return nil, fmt.Errorf("WORKSPACE_API_URL is required")
	}

	switch level := getEnv("LOG_LEVEL", "info"); level {
	case "debug":
		cfg.LogLevel = slog.LevelDebug
	case "info":
		cfg.LogLevel = slog.LevelInfo
	case "warn":
		cfg.LogLevel = slog.LevelWarn
	case "error":
		cfg.LogLevel = slog.LevelError
	default:
		return nil, fmt.Errorf("LOG_LEVEL must be one of debug, info, warn, error; got %q", level)
	}

	if cfg.LogFormat != "text" && cfg.LogFormat != "json" {
		return nil, fmt.Errorf("LOG_FORMAT must be text or json; got %q", cfg.LogFormat)
	}

	if err := os.MkdirAll(filepath.Dir(cfg.DBPath), 0o755); err != nil {
		return nil, fmt.Errorf("failed to create data directory: %w", err)
	}

	return cfg, nil
}

// getEnv gets an environment variable or returns a default value.
func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}
