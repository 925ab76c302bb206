package llm

import (
	"context"
	"log"
	"time"
)

// modelPricing holds per-model pricing in USD per 1M tokens.
type modelPricing struct {
	InputPerMillion  float64
	OutputPerMillion float64
}

// priceTable maps model identifiers to their pricing. Local Ollama models
// are free and deliberately absent.
var priceTable = map[string]modelPricing{
	// OpenAI
	"gpt-4o":      {InputPerMillion: 2.50, OutputPerMillion: 10.00},
	"gpt-4o-mini": {InputPerMillion: 0.15, OutputPerMillion: 0.60},

	// Groq
	"llama-3.1-8b-instant":    {InputPerMillion: 0.05, OutputPerMillion: 0.08},
	"llama-3.3-70b-versatile": {InputPerMillion: 0.59, OutputPerMillion: 0.79},

	// OpenRouter
	"meta-llama/llama-3.1-8b-instruct": {InputPerMillion: 0.02, OutputPerMillion: 0.03},

	// Gemini
	"gemini-1.5-flash-latest": {InputPerMillion: 0.075, OutputPerMillion: 0.30},
	"gemini-2.0-flash":        {InputPerMillion: 0.10, OutputPerMillion: 0.40},

	// Anthropic
	"claude-3-5-haiku-latest": {InputPerMillion: 0.80, OutputPerMillion: 4.00},
}

// EstimateCost returns the estimated cost in USD for the given model and token counts.
// Returns 0 if the model is not found in the price table.
func EstimateCost(model string, inputTokens, outputTokens int) float64 {
	pricing, ok := priceTable[model]
	if !ok {
		return 0
	}

	inputCost := float64(inputTokens) / 1_000_000.0 * pricing.InputPerMillion
	outputCost := float64(outputTokens) / 1_000_000.0 * pricing.OutputPerMillion
	return inputCost + outputCost
}

// EstimateTokens provides a rough token count estimation for the given text.
// Uses the approximation of 1 token per 4 characters.
func EstimateTokens(text string) int {
	n := len(text) / 4
	if n == 0 && len(text) > 0 {
		return 1
	}
	return n
}

// UsageLoggingProvider logs token usage, latency and estimated cost for
// every completion.
type UsageLoggingProvider struct {
	provider Provider
	model    string
}

// NewUsageLoggingProvider wraps provider. model is used for pricing when
// the backend does not echo the model name.
func NewUsageLoggingProvider(provider Provider, model string) *UsageLoggingProvider {
	return &UsageLoggingProvider{provider: provider, model: model}
}

func (u *UsageLoggingProvider) Name() string {
	return u.provider.Name()
}

func (u *UsageLoggingProvider) Complete(ctx context.Context, req CompletionRequest) (*CompletionResponse, error) {
	start := time.Now()
	resp, err := u.provider.Complete(ctx, req)
	elapsed := time.Since(start).Round(time.Millisecond)
	if err != nil {
		log.Printf("llm: %s failed after %s: %v", u.provider.Name(), elapsed, err)
		return nil, err
	}

	model := resp.Model
	if model == "" {
		model = u.model
	}
	in, out := resp.InputTokens, resp.OutputTokens
	if in == 0 {
		for _, m := range req.Messages {
			in += EstimateTokens(m.Content)
		}
	}
	if out == 0 {
		out = EstimateTokens(resp.Content)
	}
	log.Printf("llm: %s/%s %s in=%d out=%d cost=$%.5f", u.provider.Name(), model, elapsed, in, out, EstimateCost(model, in, out))
	return resp, nil
}
