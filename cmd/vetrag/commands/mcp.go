package commands

import (
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/54b3r/vetrag-go/internal/logging"
	"github.com/54b3r/vetrag-go/internal/mcp"
	"github.com/54b3r/vetrag-go/internal/tracing"
)

// NewMCPCmd constructs the `vetrag mcp` command, which serves the retrieval
// and question-answering tools over the Model Context Protocol on stdio.
func NewMCPCmd() *cobra.Command {
	var searchOnly bool

	cmd := &cobra.Command{
		Use:   "mcp",
		Short: "Serve vetrag tools to an MCP client over stdio",
		Long: `Run an MCP server on stdin/stdout.

Tools:
  search_veterinary_documents   top-k passages for a query
  ask_veterinary_question       Persian answer grounded in retrieved passages

Logs go to stderr so stdout stays a clean protocol stream.

Example client configuration:
  {"command": "vetrag", "args": ["mcp"]}`,
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
			defer stop()

			log := logging.NewWriter(os.Stderr)
			ctx = logging.WithLogger(ctx, log)

			flush := tracing.Enable(log)
			defer flush()

			r, err := buildRetrieval(ctx, log, true)
			if err != nil {
				return fmt.Errorf("mcp: %w", err)
			}
			defer r.close()

			var asker mcp.Asker
			if !searchOnly {
				history, closeHistory := openHistory(log)
				defer closeHistory()

				a, _, err := buildAssistant(ctx, r.retriever, history)
				if err != nil {
					log.Warn("mcp: question answering disabled, offering search only", slog.Any("error", err))
				} else {
					asker = a
				}
			}

			log.Info("mcp: serving on stdio", slog.Bool("ask_enabled", asker != nil))
			return mcp.ServeStdio(ctx, mcp.NewServer(r.retriever, asker, log), os.Stdin, os.Stdout)
		},
	}

	cmd.Flags().BoolVar(&searchOnly, "search-only", false, "Only offer the search tool")

	return cmd
}
