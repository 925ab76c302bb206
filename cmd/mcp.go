package cmd

import (
	"context"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/ziadkadry99/receipt-rag/internal/app"
	mcpserver "github.com/ziadkadry99/receipt-rag/internal/mcp"
)

var mcpCmd = &cobra.Command{
	Use:   "mcp",
	Short: "Start the MCP server for AI agent integration",
	Long:  `Starts a Model Context Protocol (MCP) server on stdio, exposing ask_documents, search_documents and index_status to AI agents.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := context.Background()
		allowDegraded, _ := cmd.Flags().GetBool("allow-degraded")

		a, err := openApp(ctx, app.Options{AllowDegraded: allowDegraded, SkipConversations: true})
		if err != nil {
			return err
		}
		defer a.Close()

		mcpserver.Version = Version

		st := a.Status(ctx)
		fmt.Fprintf(os.Stderr, "receiptrag MCP server started on stdio (mode=%s, chunks=%d)\n", st.Mode, st.TotalChunks)

		srv := mcpserver.NewServer(a.Engine, a.Status)
		return srv.Serve()
	},
}

func init() {
	mcpCmd.Flags().Bool("allow-degraded", false, "keep serving when the index cannot be loaded")
	rootCmd.AddCommand(mcpCmd)
}
