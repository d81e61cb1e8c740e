package commands

import (
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/54b3r/vetrag-go/internal/assistant"
	"github.com/54b3r/vetrag-go/internal/logging"
	"github.com/54b3r/vetrag-go/internal/provider"
	"github.com/54b3r/vetrag-go/internal/server"
	"github.com/54b3r/vetrag-go/internal/tracing"
)

// NewServeCmd constructs the `vetrag serve` command, which starts the HTTP
// server exposing search and question answering.
func NewServeCmd() *cobra.Command {
	var host string
	var port int
	var searchOnly bool

	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Start the vetrag HTTP server",
		Long: `Start the vetrag HTTP server.

The server exposes POST /api/search (retrieval only), POST /api/ask (SSE
streamed answers), GET /api/health, GET /api/ready and GET /metrics.
If the chat model cannot be initialised the server still starts and
serves search; /api/ask then answers 503.

Examples:
  vetrag serve
  vetrag serve --port 9090
  INDEX_BACKEND=qdrant QDRANT_HOST=localhost vetrag serve
  VETRAG_API_KEY=change-me vetrag serve --host 0.0.0.0`,
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
			defer stop()

			log := logging.New()
			ctx = logging.WithLogger(ctx, log)

			if !cmd.Flags().Changed("host") {
				host = getEnvOrDefault("VETRAG_HOST", host)
			}
			if !cmd.Flags().Changed("port") {
				port = getEnvInt("VETRAG_PORT", port)
			}

			log.Info("serve starting",
				slog.String("provider", getEnvOrDefault("MODEL_PROVIDER", string(provider.BackendOpenRouter))),
				slog.String("index_backend", getEnvOrDefault("INDEX_BACKEND", indexBackendFAISS)),
			)

			flush := tracing.Enable(log)
			defer flush()

			r, err := buildRetrieval(ctx, log, true)
			if err != nil {
				return fmt.Errorf("serve: %w", err)
			}
			defer r.close()

			pingers := []server.Pinger{server.NewEmbedderPinger(r.retriever)}
			if r.qdrant != nil {
				pingers = append(pingers, server.NewQdrantPinger(r.qdrant.Client()))
			}

			var ans *assistant.Assistant
			if !searchOnly {
				history, closeHistory := openHistory(log)
				defer closeHistory()

				a, providerCfg, err := buildAssistant(ctx, r.retriever, history)
				if err != nil {
					log.Warn("serve: question answering disabled, serving search only", slog.Any("error", err))
				} else {
					ans = a
					log.Info("provider initialised",
						slog.String("provider", string(providerCfg.Backend)),
						slog.String("model", providerCfg.ModelName()),
					)
					if p := chatPinger(providerCfg); p != nil {
						pingers = append(pingers, p)
					}
				}
			}

			srv, err := server.New(r.retriever, ans, &server.Config{
				Host:    host,
				Port:    port,
				Logger:  log,
				Pingers: pingers,
				APIKey:  os.Getenv("VETRAG_API_KEY"),
			})
			if err != nil {
				return fmt.Errorf("serve: failed to create server: %w", err)
			}

			return srv.Start(ctx)
		},
	}

	cmd.Flags().StringVar(&host, "host", "127.0.0.1", "Host address to bind to (env: VETRAG_HOST)")
	cmd.Flags().IntVarP(&port, "port", "p", 8080, "TCP port to listen on (env: VETRAG_PORT)")
	cmd.Flags().BoolVar(&searchOnly, "search-only", false, "Do not initialise a chat model; serve retrieval only")

	return cmd
}

// chatPinger returns a zero-cost readiness probe for the chat backend, or
// nil when the backend has no listing endpoint worth probing.
func chatPinger(cfg *provider.Config) server.Pinger {
	switch cfg.Backend {
	case provider.BackendOllama:
		return server.NewHTTPPinger("ollama", strings.TrimRight(cfg.Ollama.Host, "/")+"/api/tags", "")
	case provider.BackendOpenRouter:
		base := cfg.OpenRouter.BaseURL
		if base == "" {
			base = "https://openrouter.ai/api/v1"
		}
		return server.NewHTTPPinger("openrouter", strings.TrimRight(base, "/")+"/models", cfg.OpenRouter.APIKey)
	default:
		return nil
	}
}
