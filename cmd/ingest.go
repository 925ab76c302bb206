package cmd

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/ziadkadry99/receipt-rag/internal/db"
	"github.com/ziadkadry99/receipt-rag/internal/embeddings"
	"github.com/ziadkadry99/receipt-rag/internal/ingest"
	"github.com/ziadkadry99/receipt-rag/internal/loader"
	"github.com/ziadkadry99/receipt-rag/internal/progress"
	"github.com/ziadkadry99/receipt-rag/internal/vectordb"
)

var ingestCmd = &cobra.Command{
	Use:   "ingest [path]",
	Short: "Add text, markdown and PDF documents to the index",
	Long: `Walks path, extracts text, splits it into sentence chunks, embeds them and
adds them to the vector index. Metadata such as merchant, date and
total_amount is read from a sidecar file next to each document
(receipt.pdf.meta.yaml or receipt.pdf.meta.json). Unchanged documents are
skipped on later runs.`,
	Args: cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
		defer stop()

		cfg, err := loadConfig()
		if err != nil {
			return err
		}
		user, _ := cmd.Flags().GetString("user")
		if user == "" {
			user = cfg.Query.DefaultUser
		}

		embedder, err := embeddings.New(ctx, cfg)
		if err != nil {
			return fmt.Errorf("creating embedder: %w", err)
		}
		if embedder == nil {
			return errors.New("ingestion needs an embedding provider; set embedding_provider")
		}

		store, err := vectordb.NewChromemStore(embedder, cfg.Query.UserKey)
		if err != nil {
			return err
		}
		if _, err := os.Stat(filepath.Join(cfg.VectorDir, vectordb.ExportFile)); err == nil {
			if err := store.Load(ctx, cfg.VectorDir); err != nil {
				return fmt.Errorf("loading existing index: %w", err)
			}
		}

		if err := os.MkdirAll(filepath.Dir(cfg.SQLitePath), 0o755); err != nil {
			return err
		}
		database, err := db.Open(cfg.SQLitePath)
		if err != nil {
			return fmt.Errorf("opening database: %w", err)
		}
		defer database.Close()

		in := ingest.New(embedder, store, database, ingest.OptionsFromConfig(cfg))
		in.SetReporter(progress.NewReporter("Ingesting documents"))

		res, err := in.Run(ctx, args[0], user)
		if err != nil {
			return err
		}

		fmt.Printf("Ingested %d documents (%d chunks); %d unchanged, %d without text\n",
			res.Documents, res.Chunks, res.Unchanged, res.Skipped)
		for _, f := range res.Failed {
			fmt.Printf("  failed: %s\n", f)
		}
		if list, _ := cmd.Flags().GetBool("list"); list {
			docs, err := database.ListDocuments(ctx, user)
			if err != nil {
				return err
			}
			for _, d := range docs {
				fmt.Printf("  %-40s %-8s %3d chunks  %s\n", d.Filename, d.FileType, d.ChunkCount, d.ProcessedAt.Format("2006-01-02 15:04"))
			}
		}

		if res.Documents == 0 {
			return nil
		}
		docs, err := database.TableCount("documents")
		if err != nil {
			return err
		}
		dim := embedder.Dimensions()
		if dim == 0 {
			if dim, err = embeddings.ProbeDimension(ctx, embedder); err != nil {
				return err
			}
		}
		m := loader.NewManifest(cfg.EmbeddingModel, dim, cfg.Model, loader.Statistics{
			TotalChunks:    store.Count(),
			TotalDocuments: docs,
		})
		return loader.WriteManifest(cfg.ManifestPath, m)
	},
}

func init() {
	ingestCmd.Flags().String("user", "", "owner of the ingested documents (default: query.default_user)")
	ingestCmd.Flags().Bool("list", false, "list the user's indexed documents after ingesting")
	rootCmd.AddCommand(ingestCmd)
}
