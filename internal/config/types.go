package config

// Mode selects how retrieval is served on this host.
type Mode string

const (
	// ModeFull embeds questions locally and searches the vector index.
	ModeFull Mode = "full"
	// ModeLite has no embedding provider and scores a precomputed snapshot by keyword overlap.
	ModeLite Mode = "lite"
	// ModeAuto probes the embedding provider at startup and picks full or lite.
	ModeAuto Mode = "auto"
)

// ProviderType identifies an LLM or embedding backend.
type ProviderType string

const (
	ProviderOllama     ProviderType = "ollama"
	ProviderGroq       ProviderType = "groq"
	ProviderOpenAI     ProviderType = "openai"
	ProviderOpenRouter ProviderType = "openrouter"
	ProviderGemini     ProviderType = "gemini"
	ProviderAnthropic  ProviderType = "anthropic"
	// ProviderNone disables embeddings entirely (lite hosts).
	ProviderNone ProviderType = "none"
)

// Config is the top-level receiptrag configuration, corresponding to .receiptrag.yml.
type Config struct {
	Mode Mode `yaml:"mode" koanf:"mode"`

	Provider    ProviderType `yaml:"provider" koanf:"provider"`
	Model       string       `yaml:"model" koanf:"model"`
	MaxTokens   int          `yaml:"max_tokens" koanf:"max_tokens"`
	Temperature float64      `yaml:"temperature" koanf:"temperature"`
	// RequestsPerMinute caps calls to cloud generation backends. Zero disables the limiter.
	RequestsPerMinute int `yaml:"requests_per_minute" koanf:"requests_per_minute"`

	EmbeddingProvider  ProviderType `yaml:"embedding_provider" koanf:"embedding_provider"`
	EmbeddingModel     string       `yaml:"embedding_model" koanf:"embedding_model"`
	EmbeddingDimension int          `yaml:"embedding_dimension" koanf:"embedding_dimension"`

	DataDir      string `yaml:"data_dir" koanf:"data_dir"`
	VectorDir    string `yaml:"vector_dir" koanf:"vector_dir"`
	SnapshotPath string `yaml:"snapshot_path" koanf:"snapshot_path"`
	SQLitePath   string `yaml:"sqlite_path" koanf:"sqlite_path"`
	ManifestPath string `yaml:"manifest_path" koanf:"manifest_path"`

	Query  QueryConfig  `yaml:"query" koanf:"query"`
	Server ServerConfig `yaml:"server" koanf:"server"`
	Ingest IngestConfig `yaml:"ingest" koanf:"ingest"`
}

// QueryConfig tunes the query and generation path.
type QueryConfig struct {
	RetrievalTimeout  float64 `yaml:"retrieval_timeout" koanf:"retrieval_timeout"`
	GenerationTimeout float64 `yaml:"generation_timeout" koanf:"generation_timeout"`
	DefaultTopK       int     `yaml:"default_top_k" koanf:"default_top_k"`
	AggregationTopK   int     `yaml:"aggregation_top_k" koanf:"aggregation_top_k"`
	MinSourceScore    float64 `yaml:"min_source_score" koanf:"min_source_score"`
	AmountField       string  `yaml:"amount_field" koanf:"amount_field"`
	UserKey           string  `yaml:"user_key" koanf:"user_key"`
	DefaultUser       string  `yaml:"default_user" koanf:"default_user"`
}

// ServerConfig holds HTTP front door settings.
type ServerConfig struct {
	Port            int  `yaml:"port" koanf:"port"`
	AllowAllOrigins bool `yaml:"allow_all_origins" koanf:"allow_all_origins"`
}

// IngestConfig controls which files are ingested and how they are chunked.
type IngestConfig struct {
	Include        []string `yaml:"include" koanf:"include"`
	Exclude        []string `yaml:"exclude" koanf:"exclude"`
	ChunkSentences int      `yaml:"chunk_sentences" koanf:"chunk_sentences"`
	ChunkOverlap   int      `yaml:"chunk_overlap" koanf:"chunk_overlap"`
}
