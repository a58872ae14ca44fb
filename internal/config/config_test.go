package config

import (
	"log/slog"
	"path/filepath"
	"testing"
	"time"
)

// setRequired sets the minimum environment for Load to succeed, with the
// database under a temp dir so MkdirAll stays out of the working tree.
func setRequired(t *testing.T) {
	t.Helper()
	t.Setenv("EMBEDDING_DIM", "384")
	t.Setenv("WORKSPACE_API_URL", "http://localhost:8082")
	t.Setenv("DB_PATH", filepath.Join(t.TempDir(), "test.db"))
}

func TestLoad_Defaults(t *testing.T) {
	setRequired(t)

	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}

	if cfg.EmbeddingDim != 384 {
		t.Errorf("EmbeddingDim = %d, want 384", cfg.EmbeddingDim)
	}
	if cfg.SyncInterval != 15*time.Minute {
		t.Errorf("SyncInterval = %v, want 15m", cfg.SyncInterval)
	}
	if cfg.QdrantURL != "http://localhost:6333" {
		t.Errorf("QdrantURL = %q", cfg.QdrantURL)
	}
	if cfg.QdrantCollection != "corpus" {
		t.Errorf("QdrantCollection = %q", cfg.QdrantCollection)
	}
	if cfg.APIPort != "9000" {
		t.Errorf("APIPort = %q", cfg.APIPort)
	}
	if cfg.LogLevel != slog.LevelInfo {
		t.Errorf("LogLevel = %v, want info", cfg.LogLevel)
	}
	if cfg.LogFormat != "text" {
		t.Errorf("LogFormat = %q, want text", cfg.LogFormat)
	}
}

func TestLoad_Overrides(t *testing.T) {
	setRequired(t)
	t.Setenv("SYNC_INTERVAL", "1h")
	t.Setenv("LOG_LEVEL", "debug")
	t.Setenv("LOG_FORMAT", "json")
	t.Setenv("QDRANT_COLLECTION", "docs")

	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	if cfg.SyncInterval != time.Hour {
		t.Errorf("SyncInterval = %v, want 1h", cfg.SyncInterval)
	}
	if cfg.LogLevel != slog.LevelDebug {
		t.Errorf("LogLevel = %v, want debug", cfg.LogLevel)
	}
	if cfg.LogFormat != "json" {
		t.Errorf("LogFormat = %q, want json", cfg.LogFormat)
	}
	if cfg.QdrantCollection != "docs" {
		t.Errorf("QdrantCollection = %q, want docs", cfg.QdrantCollection)
	}
}

func TestLoad_Validation(t *testing.T) {
	tests := []struct {
		name string
		env  map[string]string
	}{
		{
			name: "missing embedding dim",
			env:  map[string]string{"EMBEDDING_DIM": ""},
		},
		{
			name: "non-numeric embedding dim",
			env:  map[string]string{"EMBEDDING_DIM": "many"},
		},
		{
			name: "zero embedding dim",
			env:  map[string]string{"EMBEDDING_DIM": "0"},
		},
		{
			name: "missing workspace url",
			env:  map[string]string{"WORKSPACE_API_URL": ""},
		},
		{
			name: "bad sync interval",
			env:  map[string]string{"SYNC_INTERVAL": "soon"},
		},
		{
			name: "negative sync interval",
			env:  map[string]string{"SYNC_INTERVAL": "-5m"},
		},
		{
			name: "unknown log level",
			env:  map[string]string{"LOG_LEVEL": "verbose"},
		},
		{
			name: "unknown log format",
			env:  map[string]string{"LOG_FORMAT": "xml"},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			setRequired(t)
			for k, v := range tt.env {
				t.Setenv(k, v)
			}
			if _, err := Load(); err == nil {
				t.Fatal("Load() error = nil, want validation error")
			}
		})
	}
}
