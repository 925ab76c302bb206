package llm

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"
)

// MockProvider is a test provider that records calls and returns canned responses.
type MockProvider struct {
	mu       sync.Mutex
	Calls    []CompletionRequest
	Response *CompletionResponse
	Err      error
	ProvName string
}

func NewMockProvider(name string) *MockProvider {
	return &MockProvider{
		ProvName: name,
		Response: &CompletionResponse{
			Content:      "mock response",
			InputTokens:  10,
			OutputTokens: 20,
			Model:        "mock-model",
			FinishReason: "stop",
			Done:         true,
		},
	}
}

func (m *MockProvider) Name() string {
	return m.ProvName
}

func (m *MockProvider) Complete(ctx context.Context, req CompletionRequest) (*CompletionResponse, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.Calls = append(m.Calls, req)
	if m.Err != nil {
		return nil, m.Err
	}
	return m.Response, nil
}

func (m *MockProvider) CallCount() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.Calls)
}

// --- Tests ---

func TestMockProviderRecordsCalls(t *testing.T) {
	mock := NewMockProvider("test")

	req := Prompt("hello", 128, 0.2)
	req.Model = "test-model"

	resp, err := mock.Complete(context.Background(), req)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if resp.Content != "mock response" {
		t.Errorf("expected 'mock response', got %q", resp.Content)
	}
	if mock.CallCount() != 1 {
		t.Errorf("expected 1 call, got %d", mock.CallCount())
	}
	if mock.Calls[0].Model != "test-model" {
		t.Errorf("expected model 'test-model', got %q", mock.Calls[0].Model)
	}
}

func TestPromptBuildsSingleUserTurn(t *testing.T) {
	req := Prompt("what did I spend?", 256, 0.7)
	if len(req.Messages) != 1 || req.Messages[0].Role != RoleUser {
		t.Fatalf("expected one user message, got %+v", req.Messages)
	}
	if req.MaxTokens != 256 || req.Temperature != 0.7 {
		t.Errorf("options not carried: %+v", req)
	}
}

func TestFactoryReturnsErrorForMissingAPIKey(t *testing.T) {
	t.Setenv("GROQ_API_KEY", "")
	t.Setenv("OPENAI_API_KEY", "")
	t.Setenv("OPENROUTER_API_KEY", "")
	t.Setenv("GEMINI_API_KEY", "")
	t.Setenv("ANTHROPIC_API_KEY", "")

	for _, p := range []string{"groq", "openai", "openrouter", "gemini", "anthropic"} {
		_, err := NewProvider(p, "some-model")
		if err == nil {
			t.Errorf("expected error for provider %q with missing API key", p)
		}
	}
}

func TestFactoryReturnsErrorForUnknownProvider(t *testing.T) {
	_, err := NewProvider("unknown", "some-model")
	if err == nil {
		t.Error("expected error for unknown provider")
	}
}

func TestFactoryCreatesOllamaWithDefaultHost(t *testing.T) {
	t.Setenv("OLLAMA_HOST", "")
	provider, err := NewProvider("ollama", "qwen2.5:1.5b")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	ollamaP, ok := provider.(*OllamaProvider)
	if !ok {
		t.Fatal("expected *OllamaProvider")
	}
	if ollamaP.baseURL != DefaultOllamaHost {
		t.Errorf("expected default host, got %q", ollamaP.baseURL)
	}
}

func TestFactoryCreatesCompatibleProviders(t *testing.T) {
	tests := []struct {
		provider string
		envVar   string
	}{
		{"groq", "GROQ_API_KEY"},
		{"openai", "OPENAI_API_KEY"},
		{"openrouter", "OPENROUTER_API_KEY"},
	}
	for _, tt := range tests {
		t.Run(tt.provider, func(t *testing.T) {
			t.Setenv(tt.envVar, "test-key")
			p, err := NewProvider(tt.provider, "m")
			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			if p.Name() != tt.provider {
				t.Errorf("Name() = %q, want %q", p.Name(), tt.provider)
			}
			if _, ok := p.(*OpenAICompatibleProvider); !ok {
				t.Errorf("expected *OpenAICompatibleProvider, got %T", p)
			}
		})
	}
}

func TestIsCloud(t *testing.T) {
	if IsCloud("ollama") {
		t.Error("ollama should not be a cloud provider")
	}
	for _, p := range []string{"groq", "openai", "openrouter", "gemini", "anthropic"} {
		if !IsCloud(p) {
			t.Errorf("%s should be a cloud provider", p)
		}
	}
}

func TestOllamaComplete(t *testing.T) {
	var got ollamaChatRequest
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/api/chat" {
			t.Errorf("unexpected path %s", r.URL.Path)
		}
		if err := json.NewDecoder(r.Body).Decode(&got); err != nil {
			t.Errorf("decoding request: %v", err)
		}
		json.NewEncoder(w).Encode(ollamaChatResponse{
			Message:         ollamaMessage{Role: "assistant", Content: "You spent $222.18."},
			Model:           "qwen2.5:1.5b",
			Done:            true,
			DoneReason:      "stop",
			PromptEvalCount: 42,
			EvalCount:       7,
		})
	}))
	defer srv.Close()

	p := NewOllamaProvider(srv.URL+"/", "qwen2.5:1.5b")
	resp, err := p.Complete(context.Background(), Prompt("How much at Costco?", 64, 0.5))
	if err != nil {
		t.Fatalf("Complete: %v", err)
	}
	if resp.Content != "You spent $222.18." || !resp.Done {
		t.Errorf("unexpected response %+v", resp)
	}
	if resp.InputTokens != 42 || resp.OutputTokens != 7 {
		t.Errorf("usage not mapped: %+v", resp)
	}
	if got.Stream {
		t.Error("expected non-streaming request")
	}
	if got.Model != "qwen2.5:1.5b" || got.Options.NumPredict != 64 {
		t.Errorf("request not built from defaults: %+v", got)
	}
}

func TestOllamaCompleteStatusError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "model not found", http.StatusNotFound)
	}))
	defer srv.Close()

	p := NewOllamaProvider(srv.URL, "missing")
	if _, err := p.Complete(context.Background(), Prompt("hi", 0, 0)); err == nil {
		t.Error("expected error for non-200 status")
	}
}

func TestOllamaPing(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{"models":[]}`))
	}))
	defer srv.Close()

	if err := NewOllamaProvider(srv.URL, "m").Ping(context.Background()); err != nil {
		t.Errorf("Ping: %v", err)
	}
	srv.Close()
	if err := NewOllamaProvider(srv.URL, "m").Ping(context.Background()); err == nil {
		t.Error("expected Ping to fail against a closed server")
	}
}

func TestRateLimiterPassesThrough(t *testing.T) {
	mock := NewMockProvider("test")
	rl := NewRateLimitedProvider(mock, 60)

	resp, err := rl.Complete(context.Background(), Prompt("hello", 0, 0))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if resp.Content != "mock response" {
		t.Errorf("expected 'mock response', got %q", resp.Content)
	}
	if rl.Name() != "test" {
		t.Errorf("expected name 'test', got %q", rl.Name())
	}
}

func TestRateLimiterDisabled(t *testing.T) {
	mock := NewMockProvider("test")
	if p := NewRateLimitedProvider(mock, 0); p != Provider(mock) {
		t.Error("expected rpm 0 to return the provider unchanged")
	}
}

func TestRateLimiterLimitsRequests(t *testing.T) {
	mock := NewMockProvider("test")
	// Allow only 2 requests per minute.
	rl := NewRateLimitedProvider(mock, 2)

	ctx, cancel := context.WithTimeout(context.Background(), 300*time.Millisecond)
	defer cancel()

	for i := 0; i < 2; i++ {
		if _, err := rl.Complete(ctx, Prompt("hello", 0, 0)); err != nil {
			t.Fatalf("request %d: unexpected error: %v", i, err)
		}
	}

	// Third should block and eventually fail due to context timeout.
	_, err := rl.Complete(ctx, Prompt("hello", 0, 0))
	if !errors.Is(err, context.DeadlineExceeded) {
		t.Errorf("expected deadline exceeded, got %v", err)
	}
	if mock.CallCount() != 2 {
		t.Errorf("expected 2 calls to reach the provider, got %d", mock.CallCount())
	}
}

func TestRateLimiterRefills(t *testing.T) {
	mock := NewMockProvider("test")
	rl := NewRateLimitedProvider(mock, 60).(*RateLimitedProvider)

	clock := time.Now()
	rl.now = func() time.Time { return clock }
	rl.lastFill = clock
	rl.tokens = 0

	if d := rl.reserve(); d <= 0 || d > time.Second {
		t.Errorf("expected a wait of at most 1s, got %v", d)
	}
	clock = clock.Add(2 * time.Second)
	if d := rl.reserve(); d != 0 {
		t.Errorf("expected a token after 2s at 60 rpm, got wait %v", d)
	}
}

func TestUsageLoggingProvider(t *testing.T) {
	mock := NewMockProvider("groq")
	u := NewUsageLoggingProvider(mock, "llama-3.1-8b-instant")

	resp, err := u.Complete(context.Background(), Prompt("hello", 0, 0))
	if err != nil || resp.Content != "mock response" {
		t.Fatalf("unexpected result %v, %v", resp, err)
	}

	mock.Err = errors.New("boom")
	if _, err := u.Complete(context.Background(), Prompt("hello", 0, 0)); err == nil {
		t.Error("expected backend error to propagate")
	}
	if u.Name() != "groq" {
		t.Errorf("Name() = %q", u.Name())
	}
}

func TestEstimateCostKnownModels(t *testing.T) {
	for _, model := range []string{"gpt-4o-mini", "llama-3.1-8b-instant", "gemini-1.5-flash-latest"} {
		if cost := EstimateCost(model, 1000, 500); cost <= 0 {
			t.Errorf("EstimateCost(%q) = %f, expected > 0", model, cost)
		}
	}
}

func TestEstimateCostUnknownModel(t *testing.T) {
	if cost := EstimateCost("qwen2.5:1.5b", 1000, 500); cost != 0 {
		t.Errorf("expected 0 for local model, got %f", cost)
	}
}

func TestEstimateCostAccuracy(t *testing.T) {
	// gpt-4o: $2.50/1M input, $10/1M output
	cost := EstimateCost("gpt-4o", 1_000_000, 1_000_000)
	expected := 12.5
	if cost < expected-0.01 || cost > expected+0.01 {
		t.Errorf("expected cost ~$%.2f, got $%.2f", expected, cost)
	}
}

func TestEstimateTokens(t *testing.T) {
	tests := []struct {
		text string
		want int
	}{
		{"", 0},
		{"hi", 1},
		{"hello world!!", 3},
		{"a longer piece of text that has more characters", 11},
	}

	for _, tt := range tests {
		got := EstimateTokens(tt.text)
		if got != tt.want {
			t.Errorf("EstimateTokens(%q) = %d, want %d", tt.text, got, tt.want)
		}
	}
}

func TestAnthropicProvider(t *testing.T) {
	var got anthropicRequest
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Header.Get("x-api-key") != "test-key" || r.Header.Get("anthropic-version") == "" {
			t.Errorf("missing auth headers: %v", r.Header)
		}
		if err := json.NewDecoder(r.Body).Decode(&got); err != nil {
			t.Errorf("decoding request: %v", err)
		}
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`{"model":"claude-3-5-haiku-latest","stop_reason":"end_turn",
			"content":[{"type":"text","text":"You spent "},{"type":"text","text":"$222.18."}],
			"usage":{"input_tokens":42,"output_tokens":7}}`))
	}))
	defer srv.Close()

	p := NewAnthropicProvider("test-key", "claude-3-5-haiku-latest")
	p.url = srv.URL
	resp, err := p.Complete(context.Background(), CompletionRequest{
		Messages: []Message{
			{Role: RoleSystem, Content: "Answer briefly."},
			{Role: RoleUser, Content: "How much at Costco?"},
		},
	})
	if err != nil {
		t.Fatalf("Complete() error: %v", err)
	}
	if resp.Content != "You spent $222.18." || !resp.Done || resp.InputTokens != 42 || resp.OutputTokens != 7 {
		t.Errorf("response = %+v", resp)
	}
	if got.System != "Answer briefly." || len(got.Messages) != 1 || got.Messages[0].Role != "user" {
		t.Errorf("request = %+v", got)
	}
	if got.MaxTokens != 1024 {
		t.Errorf("max_tokens = %d, want default 1024", got.MaxTokens)
	}
}

func TestAnthropicProviderAPIError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusTooManyRequests)
		w.Write([]byte(`{"type":"error","error":{"type":"rate_limit_error","message":"slow down"}}`))
	}))
	defer srv.Close()

	p := NewAnthropicProvider("k", "m")
	p.url = srv.URL
	if _, err := p.Complete(context.Background(), Prompt("hi", 0, 0)); err == nil {
		t.Fatal("expected an error for a rate-limited request")
	}
}
