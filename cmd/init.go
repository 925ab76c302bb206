package cmd

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/ziadkadry99/receipt-rag/internal/config"
)

var initCmd = &cobra.Command{
	Use:   "init",
	Short: "Initialize receiptrag configuration with an interactive wizard",
	Long:  `Runs an interactive wizard to configure this host and writes a .receiptrag.yml file.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := config.RunWizard(cfgFile)
		if err != nil {
			return err
		}
		fmt.Printf("Mode %s with %s written to %s\n", cfg.Mode, cfg.Provider, cfgFile)
		return nil
	},
}

func init() {
	rootCmd.AddCommand(initCmd)
}
