package cmd

import (
	"log"

	"github.com/joho/godotenv"
	"github.com/spf13/cobra"

	"github.com/ziadkadry99/receipt-rag/internal/config"
)

var (
	cfgFile string
	verbose bool
)

var rootCmd = &cobra.Command{
	Use:   "receiptrag",
	Short: "Ask questions about your receipts and personal documents",
	Long: `receiptrag answers natural-language questions over a personal corpus of
receipts, IDs and invoices. Spending questions are answered from a total
computed over the matching receipts, never from model arithmetic. It runs on
hosts that can embed (full mode) and on small hosts that search an exported
snapshot by keyword (lite mode).`,
	PersistentPreRun: func(cmd *cobra.Command, args []string) {
		// A missing .env is normal.
		_ = godotenv.Load()
		if verbose {
			log.SetFlags(log.LstdFlags | log.Lshortfile)
		}
	},
	SilenceUsage: true,
}

func Execute() error {
	return rootCmd.Execute()
}

func init() {
	rootCmd.PersistentFlags().StringVar(&cfgFile, "config", config.DefaultPath, "config file path")
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "verbose output")
}
