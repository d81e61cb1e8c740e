package commands

import (
	"encoding/json"
	"fmt"
	"os"
	"text/tabwriter"
	"time"

	"github.com/spf13/cobra"

	"github.com/54b3r/vetrag-go/internal/logging"
)

// NewHistoryCmd constructs the `vetrag history` command, which lists the
// most recently answered questions.
func NewHistoryCmd() *cobra.Command {
	var limit int
	var asJSON bool

	cmd := &cobra.Command{
		Use:   "history",
		Short: "List recently answered questions",
		Long: `List the questions vetrag has answered, newest first, together with
the model that answered and the surface (cli, http, mcp) they came from.

Examples:
  vetrag history
  vetrag history --limit 5 --json`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			if limit <= 0 {
				return fmt.Errorf("history: --limit must be positive")
			}
			log := logging.New()

			hs, closeHistory := openHistory(log)
			defer closeHistory()
			if hs == nil {
				return fmt.Errorf("history: store is not available")
			}

			turns, err := hs.Recent(cmd.Context(), limit)
			if err != nil {
				return fmt.Errorf("history: %w", err)
			}

			if asJSON {
				enc := json.NewEncoder(os.Stdout)
				enc.SetIndent("", "  ")
				return enc.Encode(turns)
			}
			if len(turns) == 0 {
				fmt.Println("no history")
				return nil
			}

			tw := tabwriter.NewWriter(os.Stdout, 0, 4, 2, ' ', 0)
			fmt.Fprintln(tw, "TIME\tSURFACE\tMODEL\tSOURCES\tQUESTION")
			for _, t := range turns {
				fmt.Fprintf(tw, "%s\t%s\t%s\t%d\t%s\n",
					t.CreatedAt.Local().Format(time.DateTime), t.Surface, t.Model, len(t.Sources), truncate(t.Question, 60))
			}
			return tw.Flush()
		},
	}

	cmd.Flags().IntVarP(&limit, "limit", "n", 20, "Maximum number of entries to show")
	cmd.Flags().BoolVar(&asJSON, "json", false, "Print full entries, answers included, as JSON")

	return cmd
}

// truncate shortens s to at most n runes, marking the cut with an ellipsis.
func truncate(s string, n int) string {
	r := []rune(s)
	if len(r) <= n {
		return s
	}
	return string(r[:n-1]) + "…"
}
