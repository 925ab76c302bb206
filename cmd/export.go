package cmd

import (
	"context"
	"fmt"
	"path/filepath"

	"github.com/spf13/cobra"

	"github.com/ziadkadry99/receipt-rag/internal/loader"
	"github.com/ziadkadry99/receipt-rag/internal/progress"
	"github.com/ziadkadry99/receipt-rag/internal/vectordb"
)

var exportCmd = &cobra.Command{
	Use:   "export",
	Short: "Export the vector index as a snapshot for lite hosts",
	Long: `Writes every chunk, with its metadata and vector, to a single SQLite
snapshot file, and writes the manifest lite hosts validate against.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := context.Background()

		cfg, err := loadConfig()
		if err != nil {
			return err
		}
		out, _ := cmd.Flags().GetString("out")
		if out == "" {
			out = cfg.SnapshotPath
		}
		manifestPath, _ := cmd.Flags().GetString("manifest")
		if manifestPath == "" {
			manifestPath = filepath.Join(filepath.Dir(out), filepath.Base(cfg.ManifestPath))
		}

		store, err := vectordb.OpenChromemStore(ctx, cfg.VectorDir, nil, cfg.Query.UserKey)
		if err != nil {
			return fmt.Errorf("opening index at %s: %w\nRun `receiptrag ingest` first", cfg.VectorDir, err)
		}

		dim := cfg.EmbeddingDimension
		if dim == 0 {
			if m, err := loader.ReadManifest(cfg.ManifestPath); err == nil && m.BuildConfig.EmbeddingDimension != nil {
				dim = *m.BuildConfig.EmbeddingDimension
			}
		}
		chunks, err := store.AllChunks(ctx, dim)
		if err != nil {
			return err
		}
		if len(chunks) == 0 {
			return fmt.Errorf("index at %s is empty; nothing to export", cfg.VectorDir)
		}

		reporter := progress.NewReporter("Exporting snapshot")
		reporter.Start(len(chunks))
		written := 0
		err = vectordb.WriteSnapshot(ctx, out, cfg.Query.UserKey, chunks, func() {
			written++
			reporter.Update(written, "")
		})
		reporter.Finish()
		if err != nil {
			return err
		}

		docs := map[string]bool{}
		for _, c := range chunks {
			docs[c.Metadata.GetString(vectordb.KeyDocumentID)] = true
		}
		m := loader.NewManifest(cfg.EmbeddingModel, len(chunks[0].Embedding), cfg.Model, loader.Statistics{
			TotalChunks:    len(chunks),
			TotalDocuments: len(docs),
		})
		m.ExportType = "snapshot"
		if err := loader.WriteManifest(manifestPath, m); err != nil {
			return err
		}

		fmt.Printf("Exported %d chunks from %d documents to %s\n", len(chunks), len(docs), out)
		fmt.Printf("Manifest written to %s\n", manifestPath)
		return nil
	},
}

func init() {
	exportCmd.Flags().String("out", "", "snapshot file to write (default: snapshot_path)")
	exportCmd.Flags().String("manifest", "", "manifest file to write (default: next to the snapshot)")
	rootCmd.AddCommand(exportCmd)
}
