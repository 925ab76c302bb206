package config

import (
	"path/filepath"
	"testing"
	"time"
)

func TestDefaultConfig(t *testing.T) {
	cfg := DefaultConfig()
	if cfg.Mode != ModeAuto {
		t.Errorf("expected default mode %q, got %q", ModeAuto, cfg.Mode)
	}
	if cfg.Provider != ProviderOllama {
		t.Errorf("expected default provider %q, got %q", ProviderOllama, cfg.Provider)
	}
	if cfg.Query.RetrievalTimeout != 2 {
		t.Errorf("expected retrieval timeout 2, got %v", cfg.Query.RetrievalTimeout)
	}
	if cfg.Query.GenerationTimeout != 10 {
		t.Errorf("expected generation timeout 10, got %v", cfg.Query.GenerationTimeout)
	}
	if cfg.Query.AggregationTopK != 20 {
		t.Errorf("expected aggregation top_k 20, got %d", cfg.Query.AggregationTopK)
	}
	if cfg.SQLitePath != filepath.Join("data", "app.db") {
		t.Errorf("unexpected sqlite path %q", cfg.SQLitePath)
	}
}

func TestSaveAndLoad(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "test.receiptrag.yml")

	original := DefaultConfig()
	original.Mode = ModeLite
	original.Provider = ProviderGroq
	original.Model = "llama-3.1-8b-instant"
	original.EmbeddingProvider = ProviderNone
	original.Query.DefaultTopK = 7
	original.Ingest.Include = []string{"**/*.md", "**/*.pdf"}

	if err := original.Save(path); err != nil {
		t.Fatalf("Save failed: %v", err)
	}

	loaded, err := Load(path)
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}

	if loaded.Mode != original.Mode {
		t.Errorf("mode: got %q, want %q", loaded.Mode, original.Mode)
	}
	if loaded.Provider != original.Provider {
		t.Errorf("provider: got %q, want %q", loaded.Provider, original.Provider)
	}
	if loaded.Model != original.Model {
		t.Errorf("model: got %q, want %q", loaded.Model, original.Model)
	}
	if loaded.Query.DefaultTopK != 7 {
		t.Errorf("default_top_k: got %d, want 7", loaded.Query.DefaultTopK)
	}
	if len(loaded.Ingest.Include) != 2 || loaded.Ingest.Include[1] != "**/*.pdf" {
		t.Errorf("include: got %v", loaded.Ingest.Include)
	}
}

func TestLoadMissingFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "nonexistent.yml")

	// Loading a missing file should return defaults, not an error.
	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load should not fail for missing file: %v", err)
	}
	if cfg.Provider != ProviderOllama {
		t.Errorf("expected default provider, got %q", cfg.Provider)
	}
}

func TestLoadEnvOverride(t *testing.T) {
	path := filepath.Join(t.TempDir(), "test.yml")
	if err := DefaultConfig().Save(path); err != nil {
		t.Fatalf("Save failed: %v", err)
	}

	t.Setenv("RECEIPTRAG_PROVIDER", "groq")
	t.Setenv("RECEIPTRAG_MODE", "lite")
	t.Setenv("RECEIPTRAG_QUERY__GENERATION_TIMEOUT", "4.5")
	t.Setenv("RECEIPTRAG_SERVER__PORT", "9090")

	loaded, err := Load(path)
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}
	if loaded.Provider != ProviderGroq {
		t.Errorf("env override failed: got %q, want %q", loaded.Provider, ProviderGroq)
	}
	if loaded.Mode != ModeLite {
		t.Errorf("mode override failed: got %q", loaded.Mode)
	}
	if loaded.Query.GenerationTimeout != 4.5 {
		t.Errorf("nested override failed: got %v", loaded.Query.GenerationTimeout)
	}
	if loaded.Server.Port != 9090 {
		t.Errorf("server port override failed: got %d", loaded.Server.Port)
	}
}

func TestValidateValid(t *testing.T) {
	cfg := DefaultConfig()
	if err := cfg.Validate(); err != nil {
		t.Errorf("DefaultConfig should be valid, got: %v", err)
	}
}

func TestValidateRejects(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(*Config)
	}{
		{"invalid mode", func(c *Config) { c.Mode = "turbo" }},
		{"empty provider", func(c *Config) { c.Provider = "" }},
		{"invalid provider", func(c *Config) { c.Provider = "mistral" }},
		{"empty model", func(c *Config) { c.Model = "" }},
		{"invalid embedding provider", func(c *Config) { c.EmbeddingProvider = "groq" }},
		{"full mode without embeddings", func(c *Config) { c.Mode = ModeFull; c.EmbeddingProvider = ProviderNone }},
		{"zero retrieval timeout", func(c *Config) { c.Query.RetrievalTimeout = 0 }},
		{"negative generation timeout", func(c *Config) { c.Query.GenerationTimeout = -1 }},
		{"zero top_k", func(c *Config) { c.Query.DefaultTopK = 0 }},
		{"source score above one", func(c *Config) { c.Query.MinSourceScore = 1.5 }},
		{"empty user key", func(c *Config) { c.Query.UserKey = "" }},
		{"empty vector dir", func(c *Config) { c.VectorDir = "" }},
		{"negative rpm", func(c *Config) { c.RequestsPerMinute = -1 }},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := DefaultConfig()
			tt.mutate(cfg)
			if err := cfg.Validate(); err == nil {
				t.Error("expected validation error")
			}
		})
	}
}

func TestGetPreset(t *testing.T) {
	p := GetPreset(ProviderOpenAI)
	if p.EmbeddingModel != "text-embedding-3-small" || p.EmbeddingDimension != 1536 {
		t.Errorf("unexpected openai preset %+v", p)
	}

	// Unknown provider falls back to ollama.
	p = GetPreset("unknown")
	if p.Model != GetPreset(ProviderOllama).Model {
		t.Errorf("expected fallback to ollama, got %q", p.Model)
	}
}

func TestAPIKeyEnvVar(t *testing.T) {
	tests := []struct {
		provider ProviderType
		want     string
	}{
		{ProviderGroq, "GROQ_API_KEY"},
		{ProviderOpenAI, "OPENAI_API_KEY"},
		{ProviderOpenRouter, "OPENROUTER_API_KEY"},
		{ProviderGemini, "GEMINI_API_KEY"},
		{ProviderOllama, ""},
	}
	for _, tt := range tests {
		got := APIKeyEnvVar(tt.provider)
		if got != tt.want {
			t.Errorf("APIKeyEnvVar(%q) = %q, want %q", tt.provider, got, tt.want)
		}
	}
}

func TestSetDataDir(t *testing.T) {
	cfg := DefaultConfig()
	cfg.SetDataDir("/srv/rag")
	if cfg.SnapshotPath != filepath.Join("/srv/rag", "snapshot.db") {
		t.Errorf("snapshot path = %q", cfg.SnapshotPath)
	}
	if cfg.ManifestPath != filepath.Join("/srv/rag", "manifest.json") {
		t.Errorf("manifest path = %q", cfg.ManifestPath)
	}
}

func TestTimeoutDurations(t *testing.T) {
	q := QueryConfig{RetrievalTimeout: 1.5, GenerationTimeout: 10}
	if got := q.RetrievalTimeoutDuration(); got != 1500*time.Millisecond {
		t.Errorf("retrieval timeout = %v", got)
	}
	if got := q.GenerationTimeoutDuration(); got != 10*time.Second {
		t.Errorf("generation timeout = %v", got)
	}
}
