package cmd

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/ziadkadry99/receipt-rag/internal/app"
	"github.com/ziadkadry99/receipt-rag/internal/query"
)

var queryCmd = &cobra.Command{
	Use:   "query [question]",
	Short: "Ask a single question about your documents",
	Long: `Runs one question through retrieval and generation and prints the answer
with its sources. Spending questions also print the computed total.`,
	Args: cobra.ExactArgs(1),
	RunE: runQuery,
}

func init() {
	queryCmd.Flags().String("user", "", "answer from this user's documents (default: query.default_user)")
	queryCmd.Flags().Int("top-k", 0, "number of documents to consider (default: query.default_top_k)")
	queryCmd.Flags().Bool("json", false, "output the full response as JSON")
	rootCmd.AddCommand(queryCmd)
}

func runQuery(cmd *cobra.Command, args []string) error {
	ctx := context.Background()

	user, _ := cmd.Flags().GetString("user")
	topK, _ := cmd.Flags().GetInt("top-k")
	jsonOutput, _ := cmd.Flags().GetBool("json")

	a, err := openApp(ctx, app.Options{SkipConversations: true})
	if err != nil {
		return err
	}
	defer a.Close()

	resp := a.Engine.Ask(ctx, query.Request{
		Question: args[0],
		User:     user,
		TopK:     topK,
	})

	if jsonOutput {
		return printJSON(resp)
	}

	fmt.Println(resp.Answer)
	if resp.AggregatedAmount != nil {
		fmt.Printf("\nTotal: $%.2f over %d receipt(s)\n", *resp.AggregatedAmount, len(resp.Breakdown))
	}
	if len(resp.Sources) > 0 {
		fmt.Println("\nSources:")
		for i, s := range resp.Sources {
			fmt.Printf("  %d. %s (score: %.3f)\n", i+1, s.Filename, s.Score)
		}
	}
	if resp.Outcome == query.AnsweredDegraded {
		fmt.Println("\n(answered in degraded mode)")
	}
	return nil
}
