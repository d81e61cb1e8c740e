package commands

import (
	"fmt"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/54b3r/vetrag-go/internal/assistant"
	"github.com/54b3r/vetrag-go/internal/logging"
	"github.com/54b3r/vetrag-go/internal/tracing"
)

// NewAskCmd constructs the `vetrag ask` command, which retrieves passages
// for a question and streams the model's Persian answer to stdout.
func NewAskCmd() *cobra.Command {
	var k int
	var showSources bool
	var noStream bool

	cmd := &cobra.Command{
		Use:   "ask [question]",
		Short: "Answer a veterinary question from the indexed corpus",
		Long: `Retrieve the top-k passages for the question, forward them to the
configured chat model, and print the cleaned answer.

Examples:
  vetrag ask "چطور گربه را واکسن بزنم؟"
  vetrag ask -k 3 --show-sources "How often should a dog be vaccinated against rabies?"
  MODEL_PROVIDER=ollama vetrag ask "علائم پاروویروس در سگ چیست؟"`,
		Args: cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
			defer stop()

			log := logging.New()
			ctx = logging.WithLogger(ctx, log)
			if k < 0 {
				return fmt.Errorf("ask: -k must not be negative")
			}

			flush := tracing.Enable(log)
			defer flush()

			r, err := buildRetrieval(ctx, log, false)
			if err != nil {
				return fmt.Errorf("ask: %w", err)
			}
			defer r.close()

			history, closeHistory := openHistory(log)
			defer closeHistory()

			a, _, err := buildAssistant(ctx, r.retriever, history)
			if err != nil {
				return fmt.Errorf("ask: %w", err)
			}

			req := assistant.Request{Question: strings.Join(args, " "), TopK: k, Surface: "cli"}
			var ans *assistant.Answer
			if noStream {
				ans, err = a.Ask(ctx, req)
				if err == nil {
					fmt.Fprint(os.Stdout, ans.Text)
				}
			} else {
				ans, err = a.Stream(ctx, req, os.Stdout)
			}
			if err != nil {
				return fmt.Errorf("ask: %w", err)
			}
			fmt.Fprintln(os.Stdout)

			if showSources {
				fmt.Fprintln(os.Stdout, "\n--- sources ---")
				printResults(os.Stdout, ans.Sources)
				if ans.Dropped > 0 {
					fmt.Fprintf(os.Stdout, "\n(%d lower-ranked passages omitted to fit the context budget)\n", ans.Dropped)
				}
			}
			return nil
		},
	}

	cmd.Flags().IntVarP(&k, "k", "k", 0, "Number of passages to retrieve (default: TOP_K or 1)")
	cmd.Flags().BoolVar(&showSources, "show-sources", false, "Print the retrieved passages after the answer")
	cmd.Flags().BoolVar(&noStream, "no-stream", false, "Wait for the complete answer instead of streaming")

	return cmd
}
