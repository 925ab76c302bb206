package embeddings

import (
	"context"
	"fmt"
	"log"
	"os"
	"time"

	"github.com/ziadkadry99/receipt-rag/internal/config"
)

// ProbeTimeout bounds the availability probe in auto mode.
const ProbeTimeout = 5 * time.Second

// New builds the embedder named by cfg.EmbeddingProvider. It returns
// (nil, nil) when embeddings are disabled.
func New(ctx context.Context, cfg *config.Config) (Embedder, error) {
	provider := cfg.EmbeddingProvider
	if provider == "" || provider == config.ProviderNone {
		return nil, nil
	}
	model := cfg.EmbeddingModel
	if model == "" {
		model = config.GetPreset(provider).EmbeddingModel
	}

	switch provider {
	case config.ProviderOllama:
		return NewOllamaEmbedder(model, cfg.EmbeddingDimension, os.Getenv("OLLAMA_HOST")), nil
	case config.ProviderOpenAI:
		apiKey := os.Getenv(config.APIKeyEnvVar(config.ProviderOpenAI))
		if apiKey == "" {
			return nil, fmt.Errorf("OPENAI_API_KEY environment variable is required for OpenAI embeddings")
		}
		return NewOpenAIEmbedder(apiKey, model, cfg.EmbeddingDimension), nil
	case config.ProviderGemini:
		apiKey := os.Getenv(config.APIKeyEnvVar(config.ProviderGemini))
		if apiKey == "" {
			return nil, fmt.Errorf("GEMINI_API_KEY environment variable is required for Gemini embeddings")
		}
		return NewGeminiEmbedder(ctx, apiKey, model, cfg.EmbeddingDimension)
	default:
		return nil, fmt.Errorf("unsupported embedding provider: %s", provider)
	}
}

// Selection is the retrieval mode chosen at startup. Embedder is nil in
// lite mode.
type Selection struct {
	Mode     config.Mode
	Embedder Embedder
	Reason   string
}

// Select picks full or lite mode once per process. Lite is fixed by
// configuration; full requires a constructible embedder; auto probes the
// embedder and falls back to lite when it does not answer.
func Select(ctx context.Context, cfg *config.Config) (Selection, error) {
	return selectWith(ctx, cfg, New)
}

func selectWith(ctx context.Context, cfg *config.Config, build func(context.Context, *config.Config) (Embedder, error)) (Selection, error) {
	switch cfg.Mode {
	case config.ModeLite:
		return Selection{Mode: config.ModeLite, Reason: "configured"}, nil

	case config.ModeFull:
		e, err := build(ctx, cfg)
		if err != nil {
			return Selection{}, fmt.Errorf("full mode embedder: %w", err)
		}
		if e == nil {
			return Selection{}, fmt.Errorf("full mode requires an embedding provider")
		}
		return Selection{Mode: config.ModeFull, Embedder: e, Reason: "configured"}, nil
	}

	e, err := build(ctx, cfg)
	if err != nil || e == nil {
		reason := "no embedding provider configured"
		if err != nil {
			reason = err.Error()
		}
		log.Printf("embeddings: auto mode falling back to lite: %s", reason)
		return Selection{Mode: config.ModeLite, Reason: reason}, nil
	}

	probeCtx, cancel := context.WithTimeout(ctx, ProbeTimeout)
	defer cancel()
	dim, err := ProbeDimension(probeCtx, e)
	if err != nil {
		log.Printf("embeddings: %s did not answer probe, falling back to lite: %v", e.Name(), err)
		if c, ok := e.(interface{ Close() error }); ok {
			if cerr := c.Close(); cerr != nil {
				log.Printf("embeddings: closing %s: %v", e.Name(), cerr)
			}
		}
		return Selection{Mode: config.ModeLite, Reason: err.Error()}, nil
	}
	log.Printf("embeddings: %s available (%d dimensions), using full mode", e.Name(), dim)
	return Selection{Mode: config.ModeFull, Embedder: e, Reason: "probe succeeded"}, nil
}
