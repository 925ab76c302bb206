package config

import (
	"path/filepath"
	"time"
)

// ProviderPreset describes the default models for a provider.
type ProviderPreset struct {
	Model              string
	EmbeddingModel     string
	EmbeddingDimension int
}

// providerPresets maps each provider to its default generation and embedding models.
var providerPresets = map[ProviderType]ProviderPreset{
	ProviderOllama:     {Model: "qwen2.5:1.5b", EmbeddingModel: "mxbai-embed-large", EmbeddingDimension: 1024},
	ProviderGroq:       {Model: "llama-3.1-8b-instant", EmbeddingModel: "", EmbeddingDimension: 0},
	ProviderOpenAI:     {Model: "gpt-4o-mini", EmbeddingModel: "text-embedding-3-small", EmbeddingDimension: 1536},
	ProviderOpenRouter: {Model: "meta-llama/llama-3.1-8b-instruct", EmbeddingModel: "", EmbeddingDimension: 0},
	ProviderGemini:     {Model: "gemini-1.5-flash-latest", EmbeddingModel: "text-embedding-004", EmbeddingDimension: 768},
	ProviderAnthropic:  {Model: "claude-3-5-haiku-latest", EmbeddingModel: "", EmbeddingDimension: 0},
}

// DefaultExcludes are glob patterns skipped during ingestion by default.
var DefaultExcludes = []string{
	".git/**",
	"**/.DS_Store",
	"**/*.meta.yaml",
	"**/*.meta.json",
	"**/node_modules/**",
}

// DefaultIncludes are the document types ingestion understands.
var DefaultIncludes = []string{
	"**/*.txt",
	"**/*.md",
	"**/*.pdf",
}

// DefaultConfig returns a Config with sensible defaults.
func DefaultConfig() *Config {
	dataDir := "data"
	return &Config{
		Mode:               ModeAuto,
		Provider:           ProviderOllama,
		Model:              providerPresets[ProviderOllama].Model,
		MaxTokens:          512,
		Temperature:        0.7,
		RequestsPerMinute:  30,
		EmbeddingProvider:  ProviderOllama,
		EmbeddingModel:     providerPresets[ProviderOllama].EmbeddingModel,
		EmbeddingDimension: providerPresets[ProviderOllama].EmbeddingDimension,
		DataDir:            dataDir,
		VectorDir:          filepath.Join(dataDir, "vectordb"),
		SnapshotPath:       filepath.Join(dataDir, "snapshot.db"),
		SQLitePath:         filepath.Join(dataDir, "app.db"),
		ManifestPath:       filepath.Join(dataDir, "manifest.json"),
		Query: QueryConfig{
			RetrievalTimeout:  2,
			GenerationTimeout: 10,
			DefaultTopK:       5,
			AggregationTopK:   20,
			MinSourceScore:    0.3,
			AmountField:       "total_amount",
			UserKey:           "user_id",
			DefaultUser:       "default",
		},
		Server: ServerConfig{
			Port: 8000,
		},
		Ingest: IngestConfig{
			Include:        DefaultIncludes,
			Exclude:        DefaultExcludes,
			ChunkSentences: 5,
			ChunkOverlap:   1,
		},
	}
}

// GetPreset returns the preset for the given provider.
// Returns the Ollama preset if the provider is not known.
func GetPreset(provider ProviderType) ProviderPreset {
	if preset, ok := providerPresets[provider]; ok {
		return preset
	}
	return providerPresets[ProviderOllama]
}

// RetrievalTimeoutDuration returns the retrieval bound as a duration.
func (q QueryConfig) RetrievalTimeoutDuration() time.Duration {
	return seconds(q.RetrievalTimeout)
}

// GenerationTimeoutDuration returns the generation bound as a duration.
func (q QueryConfig) GenerationTimeoutDuration() time.Duration {
	return seconds(q.GenerationTimeout)
}

func seconds(s float64) time.Duration {
	return time.Duration(s * float64(time.Second))
}
