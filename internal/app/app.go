// Package app assembles the query path once at process start: mode
// selection, index loading, retrieval strategy, generation backend and the
// query engine. Front doors receive the assembled App.
package app

import (
	"context"
	"errors"
	"fmt"
	"log"
	"time"

	"github.com/ziadkadry99/receipt-rag/internal/config"
	"github.com/ziadkadry99/receipt-rag/internal/conversation"
	"github.com/ziadkadry99/receipt-rag/internal/db"
	"github.com/ziadkadry99/receipt-rag/internal/embeddings"
	"github.com/ziadkadry99/receipt-rag/internal/generation"
	"github.com/ziadkadry99/receipt-rag/internal/llm"
	"github.com/ziadkadry99/receipt-rag/internal/loader"
	"github.com/ziadkadry99/receipt-rag/internal/query"
	"github.com/ziadkadry99/receipt-rag/internal/retrieval"
	"github.com/ziadkadry99/receipt-rag/internal/vectordb"
)

// Options change how Open treats startup problems.
type Options struct {
	// AllowDegraded keeps the process up when the index cannot be loaded.
	// Every question then gets the "cannot access the database" answer.
	AllowDegraded bool
	// SkipConversations leaves the application database closed.
	SkipConversations bool
}

// App is the assembled query path.
type App struct {
	Config     *config.Config
	Mode       config.Mode
	Loader     *loader.Loader
	Embedder   embeddings.Embedder
	Index      vectordb.Index
	Engine     *query.Engine
	Validation loader.Validation
	// Generation names the answer backend, or "templates" when none is
	// reachable.
	Generation string
	// LoadErr is the startup failure tolerated under AllowDegraded.
	LoadErr error
	// DB and Chat are nil with SkipConversations.
	DB   *db.DB
	Chat *conversation.Chat
}

// Open builds an App from cfg. Index load failures are fatal unless
// opts.AllowDegraded is set.
func Open(ctx context.Context, cfg *config.Config, opts Options) (*App, error) {
	sel, err := embeddings.Select(ctx, cfg)
	if err != nil {
		return nil, err
	}
	log.Printf("app: %s mode (%s)", sel.Mode, sel.Reason)

	a := &App{
		Config:   cfg,
		Mode:     sel.Mode,
		Loader:   loader.New(),
		Embedder: sel.Embedder,
	}
	a.Validation = loader.ValidateManifest(ctx, cfg.ManifestPath, a.manifestEnvironment())
	for _, w := range a.Validation.Warnings {
		log.Printf("app: manifest warning: %s", w)
	}
	for _, e := range a.Validation.Errors {
		log.Printf("app: manifest error: %s", e)
	}

	backend, err := a.loadBackend(ctx)
	if err != nil {
		if !opts.AllowDegraded {
			return nil, err
		}
		log.Printf("app: serving degraded answers: %v", err)
		a.LoadErr = err
		backend = retrieval.Unavailable{Reason: err.Error()}
	}

	provider := newProvider(ctx, cfg)
	a.Generation = "templates"
	if provider != nil {
		a.Generation = provider.Name()
	}
	gen := generation.New(provider, generation.Options{
		Model:       cfg.Model,
		Timeout:     cfg.Query.GenerationTimeoutDuration(),
		MaxTokens:   cfg.MaxTokens,
		Temperature: cfg.Temperature,
	})
	a.Engine = query.New(backend, gen, query.OptionsFromConfig(cfg))

	if !opts.SkipConversations {
		d, err := db.Open(cfg.SQLitePath)
		if err != nil {
			return nil, fmt.Errorf("opening application database: %w", err)
		}
		a.DB = d
		a.Chat = conversation.NewChat(conversation.NewStore(d), a.Engine)
	}
	return a, nil
}

func (a *App) loadBackend(ctx context.Context) (retrieval.Backend, error) {
	cfg := a.Config
	timeout := cfg.Query.RetrievalTimeoutDuration()
	userKey := cfg.Query.UserKey

	if a.Mode == config.ModeFull {
		idx, err := a.Loader.LoadVectorIndex(ctx, cfg.VectorDir, func(ctx context.Context, dir string) (vectordb.Index, error) {
			return vectordb.OpenChromemStore(ctx, dir, a.Embedder, userKey)
		})
		if err != nil {
			return nil, err
		}
		a.Index = idx
		return retrieval.NewVector(a.Embedder, idx, timeout), nil
	}

	idx, err := a.Loader.LoadVectorIndex(ctx, cfg.SnapshotPath, func(ctx context.Context, path string) (vectordb.Index, error) {
		return vectordb.OpenSnapshot(ctx, path, userKey)
	})
	if err != nil {
		return nil, err
	}
	a.Index = idx
	source, ok := idx.(vectordb.ChunkSource)
	if !ok {
		return nil, fmt.Errorf("%s index cannot list chunks for keyword search", cfg.SnapshotPath)
	}
	return retrieval.NewKeyword(source, timeout), nil
}

func (a *App) manifestEnvironment() loader.Environment {
	env := loader.Environment{
		EmbeddingModel:      a.Config.EmbeddingModel,
		ConversationalModel: a.Config.Model,
		MemoryGB:            loader.HostMemoryGB,
	}
	if a.Embedder != nil {
		e := a.Embedder
		env.Dimension = func(ctx context.Context) (int, error) {
			return embeddings.ProbeDimension(ctx, e)
		}
	}
	return env
}

// pingTimeout bounds the startup reachability check of a local backend.
const pingTimeout = 3 * time.Second

// newProvider builds the generation backend. A backend that cannot be
// built, or a local server that does not answer, is logged and left nil,
// so answers come from templates.
func newProvider(ctx context.Context, cfg *config.Config) llm.Provider {
	if cfg.Provider == config.ProviderNone {
		return nil
	}
	model := cfg.Model
	if model == "" {
		model = config.GetPreset(cfg.Provider).Model
		cfg.Model = model
	}
	p, err := llm.NewProvider(string(cfg.Provider), model)
	if err != nil {
		log.Printf("app: generation backend unavailable, using templates: %v", err)
		return nil
	}
	if pinger, ok := p.(interface{ Ping(context.Context) error }); ok {
		pctx, cancel := context.WithTimeout(ctx, pingTimeout)
		err := pinger.Ping(pctx)
		cancel()
		if err != nil {
			log.Printf("app: %s not reachable, using templates: %v", p.Name(), err)
			return nil
		}
	}
	if llm.IsCloud(string(cfg.Provider)) && cfg.RequestsPerMinute > 0 {
		p = llm.NewRateLimitedProvider(p, cfg.RequestsPerMinute)
	}
	return llm.NewUsageLoggingProvider(p, model)
}

// Status summarizes the running query path for health endpoints.
type Status struct {
	Status      string `json:"status"`
	Mode        string `json:"mode"`
	SafeMode    bool   `json:"safe_mode"`
	Backend     string `json:"backend"`
	Generation  string `json:"generation"`
	TotalChunks int    `json:"total_chunks"`
	Error       string `json:"error,omitempty"`
}

// Status reports whether questions are being answered from the index.
func (a *App) Status(ctx context.Context) Status {
	s := Status{
		Status:     "ok",
		Mode:       string(a.Mode),
		SafeMode:   a.Loader.State().SafeMode(),
		Backend:    a.Engine.Backend().Name(),
		Generation: a.Generation,
	}
	if a.LoadErr != nil {
		s.Status = "degraded"
		s.Error = a.LoadErr.Error()
	}
	if a.Index != nil {
		if st, err := a.Index.Stats(ctx); err == nil {
			s.TotalChunks = st.TotalChunks
		}
	}
	return s
}

// Close releases the application database.
func (a *App) Close() error {
	var errs []error
	if a.DB != nil {
		errs = append(errs, a.DB.Close())
	}
	if c, ok := a.Embedder.(interface{ Close() error }); ok {
		errs = append(errs, c.Close())
	}
	return errors.Join(errs...)
}
