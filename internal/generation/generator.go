// Package generation turns retrieved context into a final answer. Every
// path returns text: backend failures fall back to templates.
package generation

import (
	"context"
	"errors"
	"fmt"
	"log"
	"strings"
	"time"

	"github.com/ziadkadry99/receipt-rag/internal/llm"
	"github.com/ziadkadry99/receipt-rag/internal/vectordb"
)

// DefaultTimeout bounds a whole Generate call, regeneration included.
const DefaultTimeout = 10 * time.Second

var errNoProvider = errors.New("no generation backend configured")

// Options configure a Generator.
type Options struct {
	Model       string
	Timeout     time.Duration
	MaxTokens   int
	Temperature float64
}

// Generator produces answers with a pluggable LLM backend.
type Generator struct {
	provider    llm.Provider
	model       string
	timeout     time.Duration
	maxTokens   int
	temperature float64
}

// New creates a Generator. A nil provider is allowed: every answer then
// comes from the templates.
func New(provider llm.Provider, opts Options) *Generator {
	if opts.Timeout <= 0 {
		opts.Timeout = DefaultTimeout
	}
	return &Generator{
		provider:    provider,
		model:       opts.Model,
		timeout:     opts.Timeout,
		maxTokens:   opts.MaxTokens,
		temperature: opts.Temperature,
	}
}

// Answer is a generated response.
type Answer struct {
	Text     string
	Language Language
	// Degraded is set when a template replaced the model's output.
	Degraded bool
}

// SpendingRequest asks for an answer about an aggregated total.
type SpendingRequest struct {
	Question      string
	Total         float64
	Breakdown     []vectordb.Metadata
	AmbiguousDate bool
}

// GeneralRequest asks for an answer grounded in retrieved documents.
type GeneralRequest struct {
	Question string
	Results  []vectordb.QueryResult
	History  []llm.Message
	// NoAmounts marks an aggregation question whose documents carried no
	// numeric amount.
	NoAmounts bool
}

// Spending answers an aggregation question. When the backend fails the
// answer is built from the numbers alone.
func (g *Generator) Spending(ctx context.Context, req SpendingRequest) Answer {
	lang := Detect(req.Question)
	ctx, cancel := context.WithTimeout(ctx, g.timeout)
	defer cancel()

	fallback := func() Answer {
		return Answer{
			Text:     SpendingTemplate(lang, req.Total, req.Breakdown, req.AmbiguousDate),
			Language: lang,
			Degraded: true,
		}
	}

	text, err := g.complete(ctx, spendingPrompt(lang, req.Question, req.Total, req.Breakdown, req.AmbiguousDate))
	if err != nil {
		log.Printf("generation: spending answer failed, using template: %v", err)
		return fallback()
	}
	if strayScript(lang, text) {
		facts := fmt.Sprintf("%s\n\nTotal: $%.2f", breakdownLines(req.Breakdown), req.Total)
		text, err = g.regenerate(ctx, lang, strictPrompt(lang, req.Question, facts, ""))
		if err != nil {
			log.Printf("generation: %v", err)
			return Answer{Text: wrongLanguageTemplate(lang), Language: lang, Degraded: true}
		}
	}
	if text == "" {
		log.Printf("generation: empty spending answer, using template")
		return fallback()
	}
	return Answer{Text: text, Language: lang}
}

// General answers a question from the retrieved documents.
func (g *Generator) General(ctx context.Context, req GeneralRequest) Answer {
	lang := Detect(req.Question)
	ctx, cancel := context.WithTimeout(ctx, g.timeout)
	defer cancel()

	docs := documentContext(req.Results)
	conv := conversationContext(lang, req.History)

	text, err := g.complete(ctx, generalPrompt(lang, req.Question, docs, conv, len(req.Results), req.NoAmounts))
	if err != nil {
		log.Printf("generation: answer failed: %v", err)
		if req.NoAmounts {
			return Answer{Text: NoAmountsTemplate(lang, len(req.Results)), Language: lang, Degraded: true}
		}
		return Answer{Text: FailedTemplate(lang), Language: lang, Degraded: true}
	}
	if strayScript(lang, text) {
		text, err = g.regenerate(ctx, lang, strictPrompt(lang, req.Question, docs, conv))
		if err != nil {
			log.Printf("generation: %v", err)
			return Answer{Text: wrongLanguageTemplate(lang), Language: lang, Degraded: true}
		}
	}
	if text == "" {
		return Answer{Text: EmptyTemplate(lang), Language: lang, Degraded: true}
	}
	return Answer{Text: text, Language: lang}
}

// regenerate retries once with a stricter prompt after the first answer
// drifted into another script.
func (g *Generator) regenerate(ctx context.Context, lang Language, prompt string) (string, error) {
	log.Printf("generation: answer contains unexpected script, regenerating in %s", lang)
	text, err := g.complete(ctx, prompt)
	if err != nil {
		return "", fmt.Errorf("regeneration failed: %w", err)
	}
	if strayScript(lang, text) {
		return "", fmt.Errorf("regenerated answer still contains unexpected script")
	}
	return text, nil
}

// complete runs one backend call. It returns when ctx expires even if the
// backend ignores cancellation.
func (g *Generator) complete(ctx context.Context, prompt string) (string, error) {
	if g.provider == nil {
		return "", errNoProvider
	}
	req := llm.Prompt(prompt, g.maxTokens, g.temperature)
	req.Model = g.model

	type result struct {
		resp *llm.CompletionResponse
		err  error
	}
	ch := make(chan result, 1)
	go func() {
		resp, err := g.provider.Complete(ctx, req)
		ch <- result{resp, err}
	}()

	select {
	case r := <-ch:
		if r.err != nil {
			return "", fmt.Errorf("%s: %w", g.provider.Name(), r.err)
		}
		if r.resp == nil {
			return "", fmt.Errorf("%s returned no response", g.provider.Name())
		}
		text := strings.TrimSpace(r.resp.Content)
		return TruncateRepetition(text, RepetitionWindow, RepetitionThreshold), nil
	case <-ctx.Done():
		return "", fmt.Errorf("%s timed out: %w", g.provider.Name(), ctx.Err())
	}
}
