package cmd

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/ziadkadry99/receipt-rag/internal/app"
	"github.com/ziadkadry99/receipt-rag/internal/loader"
)

var validateCmd = &cobra.Command{
	Use:   "validate",
	Short: "Check the manifest and do a dry run of index loading",
	Long: `Validates the export manifest against this host's configuration, loads the
index the way serve would and opens the metadata database read-only. Exits
non-zero when the host cannot answer questions.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := context.Background()
		jsonOutput, _ := cmd.Flags().GetBool("json")

		a, err := openApp(ctx, app.Options{AllowDegraded: true, SkipConversations: true})
		if err != nil {
			return err
		}
		defer a.Close()

		report := struct {
			Status     app.Status        `json:"status"`
			Manifest   loader.Validation `json:"manifest"`
			Documents  *int              `json:"documents,omitempty"`
			StoreError string            `json:"store_error,omitempty"`
		}{
			Status:   a.Status(ctx),
			Manifest: a.Validation,
		}

		store, err := a.Loader.LoadMetadataStore(ctx, a.Config.SQLitePath)
		if err != nil {
			report.StoreError = err.Error()
		} else {
			defer store.Close()
			if n, err := store.TableCount("documents"); err == nil {
				report.Documents = &n
			}
		}

		if jsonOutput {
			if err := printJSON(report); err != nil {
				return err
			}
		} else {
			printValidation(report.Status, a)
			if report.Documents != nil {
				fmt.Printf("Documents recorded: %d\n", *report.Documents)
			}
			if report.StoreError != "" {
				fmt.Printf("Database: %s\n", report.StoreError)
			}
		}

		if !a.Validation.Valid || report.Status.Status != "ok" {
			return fmt.Errorf("validation failed")
		}
		return nil
	},
}

func printValidation(st app.Status, a *app.App) {
	fmt.Printf("Mode:     %s\n", st.Mode)
	fmt.Printf("Backend:  %s\n", st.Backend)
	fmt.Printf("Chunks:   %d\n", st.TotalChunks)
	fmt.Printf("Status:   %s\n", st.Status)
	if st.SafeMode {
		fmt.Println("Safe mode: on (index looked corrupt)")
	}
	if st.Error != "" {
		fmt.Printf("Error:    %s\n", st.Error)
	}

	v := a.Validation
	fmt.Printf("Manifest: valid=%t dimension_match=%t model_compatible=%t\n", v.Valid, v.EmbeddingDimensionMatch, v.ModelCompatible)
	for _, e := range v.Errors {
		fmt.Printf("  error: %s\n", e)
	}
	for _, w := range v.Warnings {
		fmt.Printf("  warning: %s\n", w)
	}
}

func init() {
	validateCmd.Flags().Bool("json", false, "output the report as JSON")
	rootCmd.AddCommand(validateCmd)
}
