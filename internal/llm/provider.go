package llm

import "context"

// Provider defines the interface for generation backends. Implementations
// differ only in transport: a local Ollama socket or a cloud HTTPS API.
type Provider interface {
	// Complete sends a completion request and returns the response.
	Complete(ctx context.Context, req CompletionRequest) (*CompletionResponse, error)
	// Name returns the name of this provider.
	Name() string
}
