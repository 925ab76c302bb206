package cmd

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/ziadkadry99/receipt-rag/internal/app"
	"github.com/ziadkadry99/receipt-rag/internal/server"
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Start the HTTP query API",
	Long: `Starts the HTTP server: /healthz, POST /api/query, the conversation API
and the /ws/chat websocket. With --allow-degraded the server stays up when
the index cannot be loaded and answers every question with a fixed message.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		port, _ := cmd.Flags().GetInt("port")
		allowDegraded, _ := cmd.Flags().GetBool("allow-degraded")
		allowAll, _ := cmd.Flags().GetBool("allow-all-origins")

		ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
		defer stop()

		a, err := openApp(ctx, app.Options{AllowDegraded: allowDegraded})
		if err != nil {
			return err
		}
		defer a.Close()

		if port == 0 {
			port = a.Config.Server.Port
		}
		srv := server.New(server.Config{
			Port:     port,
			AllowAll: allowAll || a.Config.Server.AllowAllOrigins,
		}, a.Engine, a.Chat, a.Status)

		go func() {
			<-ctx.Done()
			fmt.Fprintln(os.Stderr, "\nShutting down server...")
			shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
			defer cancel()
			srv.Shutdown(shutdownCtx)
		}()

		st := a.Status(ctx)
		fmt.Fprintf(os.Stderr, "receiptrag server %s starting on port %d\n", Version, port)
		fmt.Fprintf(os.Stderr, "  Mode: %s (%s retrieval)\n", st.Mode, st.Backend)
		fmt.Fprintf(os.Stderr, "  Chunks indexed: %d\n", st.TotalChunks)
		fmt.Fprintf(os.Stderr, "  Answers: %s\n", st.Generation)
		if st.Status != "ok" {
			fmt.Fprintf(os.Stderr, "  Status: %s: %s\n", st.Status, st.Error)
		}

		if err := srv.Start(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	},
}

func init() {
	serveCmd.Flags().Int("port", 0, "port to listen on (default: server.port)")
	serveCmd.Flags().Bool("allow-degraded", false, "keep serving when the index cannot be loaded")
	serveCmd.Flags().Bool("allow-all-origins", false, "allow all CORS origins")
	rootCmd.AddCommand(serveCmd)
}
