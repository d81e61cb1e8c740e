// Package commands defines all Cobra CLI commands for the vetrag binary.
package commands

import (
	"errors"
	"io/fs"
	"log/slog"

	"github.com/joho/godotenv"
	"github.com/spf13/cobra"

	"github.com/54b3r/vetrag-go/internal/audit"
	"github.com/54b3r/vetrag-go/internal/config"
	"github.com/54b3r/vetrag-go/internal/logging"
)

// configPath holds the --config flag value for YAML config file override.
var configPath string

// envFile holds the --env-file flag value.
var envFile string

// NewRootCmd constructs the root Cobra command that all subcommands attach to.
func NewRootCmd() *cobra.Command {
	root := &cobra.Command{
		Use:   "vetrag",
		Short: "vetrag: veterinary question answering over a Persian document corpus",
		Long: `vetrag retrieves the passages closest to a question from a pre-built
similarity index (FAISS file or Qdrant collection) and asks an LLM to
answer in Persian from them.

Precedence: environment > .env file > YAML config (~/.vetrag/config.yaml).
The embedding model must be the one the index was built with (bge-m3 by
default).`,
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, _ []string) error {
			// .env is applied before YAML so both respect already-set env vars.
			if err := godotenv.Load(envFile); err != nil && !errors.Is(err, fs.ErrNotExist) {
				return err
			}

			log := logging.New()
			slog.SetDefault(log)

			path, err := config.Load(configPath, log)
			if err != nil {
				return err
			}

			// Logging env may have come from the YAML file.
			log = logging.New()
			slog.SetDefault(log)
			audit.LogCommandStart(cmd.Context(), log, cmd.Name(), path)
			return nil
		},
	}

	root.PersistentFlags().StringVar(&configPath, "config", "", "Path to YAML config file (default: ~/.vetrag/config.yaml)")
	root.PersistentFlags().StringVar(&envFile, "env-file", ".env", "Path to a dotenv file with API keys")

	root.AddCommand(
		NewSearchCmd(),
		NewAskCmd(),
		NewServeCmd(),
		NewIngestCmd(),
		NewMCPCmd(),
		NewHistoryCmd(),
		NewInfoCmd(),
		NewVersionCmd(),
	)

	return root
}
