package llm

import (
	"context"
	"fmt"
	"os"
)

// NewProvider creates a new LLM provider based on the given provider type and model.
// Supported provider types: "ollama", "groq", "openai", "openrouter", "gemini", "anthropic".
func NewProvider(providerType string, model string) (Provider, error) {
	switch providerType {
	case "ollama":
		host := os.Getenv("OLLAMA_HOST")
		if host == "" {
			host = DefaultOllamaHost
		}
		return NewOllamaProvider(host, model), nil

	case "groq":
		apiKey, err := requireKey("GROQ_API_KEY")
		if err != nil {
			return nil, err
		}
		return NewGroqProvider(apiKey, model), nil

	case "openai":
		apiKey, err := requireKey("OPENAI_API_KEY")
		if err != nil {
			return nil, err
		}
		return NewOpenAIProvider(apiKey, model), nil

	case "openrouter":
		apiKey, err := requireKey("OPENROUTER_API_KEY")
		if err != nil {
			return nil, err
		}
		return NewOpenRouterProvider(apiKey, model), nil

	case "gemini":
		apiKey, err := requireKey("GEMINI_API_KEY")
		if err != nil {
			return nil, err
		}
		return NewGeminiProvider(context.Background(), apiKey, model)

	case "anthropic":
		apiKey, err := requireKey("ANTHROPIC_API_KEY")
		if err != nil {
			return nil, err
		}
		return NewAnthropicProvider(apiKey, model), nil

	default:
		return nil, fmt.Errorf("unsupported provider type: %s", providerType)
	}
}

// IsCloud reports whether the provider type talks to a metered cloud API.
func IsCloud(providerType string) bool {
	switch providerType {
	case "groq", "openai", "openrouter", "gemini", "anthropic":
		return true
	}
	return false
}

func requireKey(envVar string) (string, error) {
	key := os.Getenv(envVar)
	if key == "" {
		return "", fmt.Errorf("%s environment variable is not set", envVar)
	}
	return key, nil
}
