package cmd

import (
	"context"
	"encoding/json"
	"fmt"
	"os"

	"github.com/ziadkadry99/receipt-rag/internal/app"
	"github.com/ziadkadry99/receipt-rag/internal/config"
)

// loadConfig loads and validates the config, providing a user-friendly error.
func loadConfig() (*config.Config, error) {
	cfg, err := config.Load(cfgFile)
	if err != nil {
		return nil, fmt.Errorf("loading config: %w\nRun `receiptrag init` to create a config file", err)
	}
	return cfg, nil
}

// openApp loads the config and assembles the query path.
func openApp(ctx context.Context, opts app.Options) (*app.App, error) {
	cfg, err := loadConfig()
	if err != nil {
		return nil, err
	}
	a, err := app.Open(ctx, cfg, opts)
	if err != nil {
		return nil, fmt.Errorf("%w\nRun `receiptrag ingest` (full mode) or `receiptrag export` on the indexing host (lite mode) first", err)
	}
	return a, nil
}

func printJSON(v any) error {
	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}
