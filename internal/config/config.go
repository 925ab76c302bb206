package config

import (
	"fmt"
	"os"
	"strings"

	"github.com/knadh/koanf/parsers/yaml"
	"github.com/knadh/koanf/providers/env"
	"github.com/knadh/koanf/providers/file"
	"github.com/knadh/koanf/v2"
	yamlv3 "gopkg.in/yaml.v3"
)

// EnvPrefix is the prefix for environment variable overrides.
const EnvPrefix = "RECEIPTRAG_"

// Load reads configuration from the given YAML file, then overlays
// environment variable overrides (RECEIPTRAG_*). Nested keys use a double
// underscore: RECEIPTRAG_QUERY__DEFAULT_TOP_K -> query.default_top_k.
func Load(path string) (*Config, error) {
	k := koanf.New(".")

	// Start from defaults.
	cfg := DefaultConfig()

	// Load YAML file if it exists.
	if _, err := os.Stat(path); err == nil {
		if err := k.Load(file.Provider(path), yaml.Parser()); err != nil {
			return nil, fmt.Errorf("reading config %s: %w", path, err)
		}
	} else if !os.IsNotExist(err) {
		return nil, fmt.Errorf("accessing config %s: %w", path, err)
	}

	if err := k.Load(env.Provider(EnvPrefix, ".", envKey), nil); err != nil {
		return nil, fmt.Errorf("loading env overrides: %w", err)
	}

	if err := k.Unmarshal("", cfg); err != nil {
		return nil, fmt.Errorf("unmarshalling config: %w", err)
	}

	return cfg, nil
}

// envKey maps RECEIPTRAG_SERVER__PORT to server.port.
func envKey(s string) string {
	s = strings.ToLower(strings.TrimPrefix(s, EnvPrefix))
	return strings.ReplaceAll(s, "__", ".")
}

// Save writes the configuration to the given YAML file path.
func (c *Config) Save(path string) error {
	data, err := yamlv3.Marshal(c)
	if err != nil {
		return fmt.Errorf("marshalling config: %w", err)
	}
	if err := os.WriteFile(path, data, 0644); err != nil {
		return fmt.Errorf("writing config to %s: %w", path, err)
	}
	return nil
}

var validModes = map[Mode]bool{
	ModeFull: true,
	ModeLite: true,
	ModeAuto: true,
}

// validProviders is the set of recognized generation providers.
var validProviders = map[ProviderType]bool{
	ProviderOllama:     true,
	ProviderGroq:       true,
	ProviderOpenAI:     true,
	ProviderOpenRouter: true,
	ProviderGemini:     true,
	ProviderAnthropic:  true,
}

// validEmbeddingProviders lists providers that can produce embeddings.
var validEmbeddingProviders = map[ProviderType]bool{
	ProviderOllama: true,
	ProviderOpenAI: true,
	ProviderGemini: true,
	ProviderNone:   true,
}

// Validate checks that the configuration contains valid values.
func (c *Config) Validate() error {
	if !validModes[c.Mode] {
		return fmt.Errorf("invalid mode %q: must be one of full, lite, auto", c.Mode)
	}

	if c.Provider == "" {
		return fmt.Errorf("provider is required")
	}
	if !validProviders[c.Provider] {
		return fmt.Errorf("invalid provider %q: must be one of ollama, groq, openai, openrouter, gemini, anthropic", c.Provider)
	}
	if c.Model == "" {
		return fmt.Errorf("model is required")
	}

	if c.EmbeddingProvider != "" && !validEmbeddingProviders[c.EmbeddingProvider] {
		return fmt.Errorf("invalid embedding_provider %q: must be one of ollama, openai, gemini, none", c.EmbeddingProvider)
	}
	if c.Mode == ModeFull && (c.EmbeddingProvider == "" || c.EmbeddingProvider == ProviderNone) {
		return fmt.Errorf("mode full requires an embedding_provider")
	}
	if c.EmbeddingDimension < 0 {
		return fmt.Errorf("embedding_dimension must be non-negative")
	}

	if c.VectorDir == "" {
		return fmt.Errorf("vector_dir is required")
	}
	if c.SQLitePath == "" {
		return fmt.Errorf("sqlite_path is required")
	}

	if c.Query.RetrievalTimeout <= 0 {
		return fmt.Errorf("query.retrieval_timeout must be positive")
	}
	if c.Query.GenerationTimeout <= 0 {
		return fmt.Errorf("query.generation_timeout must be positive")
	}
	if c.Query.DefaultTopK <= 0 {
		return fmt.Errorf("query.default_top_k must be positive")
	}
	if c.Query.AggregationTopK <= 0 {
		return fmt.Errorf("query.aggregation_top_k must be positive")
	}
	if c.Query.MinSourceScore < 0 || c.Query.MinSourceScore > 1 {
		return fmt.Errorf("query.min_source_score must be between 0 and 1")
	}
	if c.Query.UserKey == "" {
		return fmt.Errorf("query.user_key is required")
	}

	if c.MaxTokens < 0 {
		return fmt.Errorf("max_tokens must be non-negative")
	}
	if c.RequestsPerMinute < 0 {
		return fmt.Errorf("requests_per_minute must be non-negative")
	}

	return nil
}

// APIKeyEnvVar returns the conventional environment variable name for
// the API key of the given provider.
func APIKeyEnvVar(provider ProviderType) string {
	switch provider {
	case ProviderGroq:
		return "GROQ_API_KEY"
	case ProviderOpenAI:
		return "OPENAI_API_KEY"
	case ProviderOpenRouter:
		return "OPENROUTER_API_KEY"
	case ProviderGemini:
		return "GEMINI_API_KEY"
	case ProviderAnthropic:
		return "ANTHROPIC_API_KEY"
	default:
		return ""
	}
}
