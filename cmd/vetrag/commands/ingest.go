package commands

import (
	"fmt"
	"log/slog"
	"time"

	"github.com/spf13/cobra"

	"github.com/54b3r/vetrag-go/internal/embedder"
	"github.com/54b3r/vetrag-go/internal/faiss"
	"github.com/54b3r/vetrag-go/internal/ingestion"
	"github.com/54b3r/vetrag-go/internal/logging"
	"github.com/54b3r/vetrag-go/internal/rag"
)

// NewIngestCmd constructs the `vetrag ingest` command, which loads the
// corpus into a Qdrant collection so `INDEX_BACKEND=qdrant` can serve it.
func NewIngestCmd() *cobra.Command {
	var reembed bool
	var recreate bool
	var batchSize int

	cmd := &cobra.Command{
		Use:   "ingest",
		Short: "Load the corpus into a Qdrant collection",
		Long: `Copy the document store and its vectors into a Qdrant collection.

By default the vectors are read from the FAISS file (INDEX_PATH), so
rankings match the file-backed index exactly. With --reembed every
document text is embedded again with the configured embedding model.
Point ids are the document row offsets.

Environment:
  DOCUMENTS_PATH       Document store (default: bge_m3_documents.json)
  INDEX_PATH           FAISS file to import (default: bge_m3_faiss.index)
  QDRANT_HOST          Qdrant server hostname (default: localhost)
  QDRANT_PORT          Qdrant gRPC port (default: 6334)
  QDRANT_COLLECTION    Collection name (default: vetrag)
  QDRANT_API_KEY       Optional API key for authenticated clusters

Examples:
  vetrag ingest
  vetrag ingest --recreate
  EMBEDDING_PROVIDER=ollama vetrag ingest --reembed --batch-size 16`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			log := logging.New()
			start := time.Now()

			docsPath := getEnvOrDefault("DOCUMENTS_PATH", defaultDocumentsPath)
			docs, err := rag.LoadDocuments(docsPath)
			if err != nil {
				return fmt.Errorf("ingest: %w", err)
			}

			qcfg := qdrantConfigFromEnv()
			client, err := rag.DialQdrant(qcfg)
			if err != nil {
				return fmt.Errorf("ingest: %w", err)
			}
			defer func() { _ = client.Close() }()

			var emb rag.Embedder
			if reembed {
				if err := embedder.ValidateConfig(log); err != nil {
					return fmt.Errorf("ingest: %w", err)
				}
				if emb, err = embedder.NewFromEnv(); err != nil {
					return fmt.Errorf("ingest: failed to initialise embedder: %w", err)
				}
			}

			pipeline, err := ingestion.NewPipeline(emb, ingestion.NewQdrantSink(client, qcfg.Collection, recreate), &ingestion.Config{
				BatchSize: batchSize,
			})
			if err != nil {
				return fmt.Errorf("ingest: %w", err)
			}

			progress := func(msg string) { log.Info("ingest: " + msg) }

			var n int
			if reembed {
				log.Info("ingest: embedding documents",
					slog.Int("documents", len(docs)),
					slog.String("model", embedder.Model()),
				)
				n, err = pipeline.Embed(ctx, docs, progress)
			} else {
				indexPath := getEnvOrDefault("INDEX_PATH", defaultIndexPath)
				src, loadErr := faiss.Load(indexPath)
				if loadErr != nil {
					return fmt.Errorf("ingest: %w", loadErr)
				}
				log.Info("ingest: importing FAISS vectors",
					slog.String("path", indexPath),
					slog.Int("vectors", src.Len()),
				)
				n, err = pipeline.ImportVectors(ctx, src, docs, progress)
			}
			if err != nil {
				return fmt.Errorf("ingest: %w", err)
			}

			log.Info("ingest: complete",
				slog.String("collection", qcfg.Collection),
				slog.Int("points", n),
				slog.Duration("elapsed", time.Since(start)),
			)
			fmt.Printf("ingested %d documents into Qdrant collection %q\n", n, qcfg.Collection)
			return nil
		},
	}

	cmd.Flags().BoolVar(&reembed, "reembed", false, "Embed document texts instead of importing FAISS vectors")
	cmd.Flags().BoolVar(&recreate, "recreate", false, "Drop and recreate the collection before writing")
	cmd.Flags().IntVar(&batchSize, "batch-size", 64, "Points per upsert and texts per embedding request")

	return cmd
}
