package cmd

import (
	"context"
	"errors"
	"fmt"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/spf13/cobra"

	"github.com/ziadkadry99/receipt-rag/internal/app"
	"github.com/ziadkadry99/receipt-rag/internal/tui"
)

var chatCmd = &cobra.Command{
	Use:   "chat",
	Short: "Chat with your documents in the terminal",
	Long:  `Opens an interactive chat. Follow-up questions see the earlier turns, and the conversation is saved to the application database.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		user, _ := cmd.Flags().GetString("user")
		topK, _ := cmd.Flags().GetInt("top-k")

		a, err := openApp(context.Background(), app.Options{})
		if err != nil {
			return err
		}
		defer a.Close()
		if a.Chat == nil {
			return errors.New("conversation store unavailable")
		}

		st := a.Status(context.Background())
		summary := fmt.Sprintf("%s mode, %s retrieval, %d chunks", st.Mode, st.Backend, st.TotalChunks)

		m := tui.New(a.Chat, user, topK, summary)
		final, err := tea.NewProgram(m, tea.WithAltScreen()).Run()
		if err != nil {
			return fmt.Errorf("running chat: %w", err)
		}
		if id := final.(tui.Model).ConversationID(); id != "" {
			fmt.Printf("Conversation saved as %s\n", id)
		}
		return nil
	},
}

func init() {
	chatCmd.Flags().String("user", "", "chat about this user's documents (default: query.default_user)")
	chatCmd.Flags().Int("top-k", 0, "number of documents to consider per question")
	rootCmd.AddCommand(chatCmd)
}
