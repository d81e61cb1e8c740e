package commands

import (
	"fmt"
	"os"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/54b3r/vetrag-go/internal/embedder"
	"github.com/54b3r/vetrag-go/internal/logging"
	"github.com/54b3r/vetrag-go/internal/provider"
)

// NewInfoCmd constructs the `vetrag info` command, which loads the corpus
// and prints what was loaded without embedding anything.
func NewInfoCmd() *cobra.Command {
	var docID int

	cmd := &cobra.Command{
		Use:   "info",
		Short: "Show the loaded index and configured models, or one document",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			log := logging.New()

			r, err := buildRetrieval(cmd.Context(), log, false)
			if err != nil {
				return fmt.Errorf("info: %w", err)
			}
			defer r.close()

			if cmd.Flags().Changed("document") {
				doc, err := r.retriever.Document(docID)
				if err != nil {
					return fmt.Errorf("info: %w", err)
				}
				fmt.Printf("document %d", doc.ID)
				if doc.Source != "" {
					fmt.Printf(" (%s)", doc.Source)
				}
				fmt.Printf("\n%s\n", doc.Text)
				return nil
			}

			idx := r.retriever.Index()
			pc := provider.ConfigFromEnv()

			tw := tabwriter.NewWriter(os.Stdout, 0, 4, 2, ' ', 0)
			fmt.Fprintf(tw, "index backend:\t%s\n", r.backend)
			fmt.Fprintf(tw, "vectors:\t%d\n", idx.Len())
			fmt.Fprintf(tw, "dimension:\t%d\n", idx.Dimension())
			fmt.Fprintf(tw, "metric:\t%s\n", idx.Metric())
			fmt.Fprintf(tw, "documents:\t%d\n", r.retriever.Documents())
			fmt.Fprintf(tw, "embedding:\t%s (%s)\n", embedder.Model(), embedder.Backend())
			fmt.Fprintf(tw, "chat model:\t%s (%s)\n", pc.ModelName(), pc.Backend)
			fmt.Fprintf(tw, "default k:\t%d\n", topK())
			return tw.Flush()
		},
	}

	cmd.Flags().IntVar(&docID, "document", 0, "Print the document with this row offset instead of the summary")

	return cmd
}
