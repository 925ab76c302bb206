package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strconv"

	"github.com/manifoldco/promptui"
)

// DefaultPath is where init writes the configuration.
const DefaultPath = ".receiptrag.yml"

// RunWizard runs an interactive configuration wizard and returns the
// resulting Config. It also saves the config to path.
func RunWizard(path string) (*Config, error) {
	fmt.Println("Welcome to receiptrag! Let's configure this host.")
	fmt.Println()

	cfg := DefaultConfig()

	// 1. Deployment mode.
	modePrompt := promptui.Select{
		Label: "Select deployment mode",
		Items: []string{
			"auto - probe the embedding provider at startup",
			"full - embed questions locally and search the vector index",
			"lite - keyword search over an exported snapshot",
		},
	}
	modeIdx, _, err := modePrompt.Run()
	if err != nil {
		return nil, fmt.Errorf("mode selection: %w", err)
	}
	cfg.Mode = []Mode{ModeAuto, ModeFull, ModeLite}[modeIdx]

	// 2. Generation provider.
	providerPrompt := promptui.Select{
		Label: "Select LLM provider",
		Items: []string{"ollama", "groq", "openai", "openrouter", "gemini", "anthropic"},
	}
	_, providerStr, err := providerPrompt.Run()
	if err != nil {
		return nil, fmt.Errorf("provider selection: %w", err)
	}
	cfg.Provider = ProviderType(providerStr)

	preset := GetPreset(cfg.Provider)
	modelPrompt := promptui.Prompt{
		Label:   "Generation model",
		Default: preset.Model,
	}
	if cfg.Model, err = modelPrompt.Run(); err != nil {
		return nil, fmt.Errorf("model: %w", err)
	}

	// 3. Embeddings, only when this host can embed.
	cfg.EmbeddingProvider = embeddingProviderFor(cfg.Provider)
	if cfg.Mode == ModeLite {
		cfg.EmbeddingProvider = ProviderNone
		cfg.EmbeddingModel = ""
	} else {
		ep := GetPreset(cfg.EmbeddingProvider)
		cfg.EmbeddingModel = ep.EmbeddingModel
		cfg.EmbeddingDimension = ep.EmbeddingDimension
	}

	// 4. Timeouts.
	timeoutPrompt := promptui.Prompt{
		Label:    "Generation timeout in seconds",
		Default:  strconv.FormatFloat(cfg.Query.GenerationTimeout, 'f', -1, 64),
		Validate: validatePositive,
	}
	timeoutStr, err := timeoutPrompt.Run()
	if err != nil {
		return nil, fmt.Errorf("generation timeout: %w", err)
	}
	cfg.Query.GenerationTimeout, _ = strconv.ParseFloat(timeoutStr, 64)

	// 5. Data directory.
	dataPrompt := promptui.Prompt{
		Label:   "Data directory",
		Default: cfg.DataDir,
	}
	dataDir, err := dataPrompt.Run()
	if err != nil {
		return nil, fmt.Errorf("data dir: %w", err)
	}
	cfg.SetDataDir(dataDir)

	if envVar := APIKeyEnvVar(cfg.Provider); envVar != "" && os.Getenv(envVar) == "" {
		fmt.Printf("\nNote: Set %s in your environment or .env before running receiptrag.\n", envVar)
	}

	if err := cfg.Save(path); err != nil {
		return nil, fmt.Errorf("saving config: %w", err)
	}

	fmt.Printf("\nConfiguration saved to %s\n", path)
	return cfg, nil
}

// SetDataDir moves every data path under dir.
func (c *Config) SetDataDir(dir string) {
	c.DataDir = dir
	c.VectorDir = filepath.Join(dir, "vectordb")
	c.SnapshotPath = filepath.Join(dir, "snapshot.db")
	c.SQLitePath = filepath.Join(dir, "app.db")
	c.ManifestPath = filepath.Join(dir, "manifest.json")
}

// embeddingProviderFor returns the default embedding provider for a given
// LLM provider. Providers without an embeddings API fall back to Ollama.
func embeddingProviderFor(p ProviderType) ProviderType {
	switch p {
	case ProviderOpenAI, ProviderGemini:
		return p
	default:
		return ProviderOllama
	}
}

func validatePositive(s string) error {
	v, err := strconv.ParseFloat(s, 64)
	if err != nil {
		return fmt.Errorf("not a number")
	}
	if v <= 0 {
		return fmt.Errorf("must be positive")
	}
	return nil
}
