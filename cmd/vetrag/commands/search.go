package commands

import (
	"encoding/json"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/spf13/cobra"

	"github.com/54b3r/vetrag-go/internal/logging"
	"github.com/54b3r/vetrag-go/internal/rag"
)

// NewSearchCmd constructs the `vetrag search` command, which prints the
// top-k passages for a query without calling the LLM.
func NewSearchCmd() *cobra.Command {
	var k int
	var asJSON bool

	cmd := &cobra.Command{
		Use:   "search [query]",
		Short: "Print the passages closest to a query",
		Long: `Embed the query, search the index, and print the top-k passages,
best first. No LLM is called.

Examples:
  vetrag search "واکسیناسیون گربه"
  vetrag search -k 5 --json "rabies vaccine schedule for dogs"`,
		Args: cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			log := logging.New()
			if k < 0 {
				return fmt.Errorf("search: -k must not be negative")
			}
			if !cmd.Flags().Changed("k") {
				k = topK()
			}

			r, err := buildRetrieval(ctx, log, false)
			if err != nil {
				return fmt.Errorf("search: %w", err)
			}
			defer r.close()

			query := strings.Join(args, " ")
			results, err := r.retriever.Search(ctx, query, k)
			if err != nil {
				return fmt.Errorf("search: %w", err)
			}

			if asJSON {
				enc := json.NewEncoder(os.Stdout)
				enc.SetIndent("", "  ")
				return enc.Encode(results)
			}
			printResults(os.Stdout, results)
			return nil
		},
	}

	cmd.Flags().IntVarP(&k, "k", "k", 1, "Number of passages to return (default: TOP_K or 1)")
	cmd.Flags().BoolVar(&asJSON, "json", false, "Print results as JSON")

	return cmd
}

// printResults writes ranked passages in a readable block format.
func printResults(w io.Writer, results []rag.Result) {
	if len(results) == 0 {
		fmt.Fprintln(w, "no results")
		return
	}
	for i, r := range results {
		if i > 0 {
			fmt.Fprintln(w)
		}
		fmt.Fprintf(w, "[%d] score=%.4f doc=%d", r.Rank, r.Score, r.DocumentID)
		if r.Source != "" {
			fmt.Fprintf(w, " source=%s", r.Source)
		}
		fmt.Fprintf(w, "\n%s\n", r.Content)
	}
}
