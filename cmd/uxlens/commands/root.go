// Package commands defines all Cobra CLI commands for the uxlens binary.
package commands

import (
	"github.com/spf13/cobra"

	"github.com/uxlens/uxlens-go/internal/audit"
	"github.com/uxlens/uxlens-go/internal/config"
	"github.com/uxlens/uxlens-go/internal/logging"
)

// configPath holds the --config flag value for YAML config file override.
var configPath string

// loadedConfigPath stores the resolved config file path for audit logging.
var loadedConfigPath string

// NewRootCmd constructs the root Cobra command that all subcommands attach to.
func NewRootCmd() *cobra.Command {
	root := &cobra.Command{
		Use:   "uxlens",
		Short: "uxlens serves personalized UX learning recommendations",
		Long: `uxlens is the retrieval backend for a UX skills self-assessment product.

It indexes curated learning resources in a Qdrant vector store, answers
retrieval queries (resources, learning paths, competencies, social content)
over HTTP, and produces improvement plans from assessment results, served
from a pre-generated store or composed by a chat model.

Model provider is selected via the MODEL_PROVIDER environment variable
or a YAML config file (~/.uxlens/config.yaml).
See 'uxlens --help' for available commands.`,
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, _ []string) error {
			log := logging.New()

			// Load YAML config (env vars always override YAML values).
			path, err := config.Load(configPath, log)
			if err != nil {
				return err
			}
			loadedConfigPath = path

			// Emit structured audit log for every command invocation.
			audit.LogCommandStart(log, cmd.Name(), loadedConfigPath)

			return nil
		},
	}

	root.PersistentFlags().StringVar(&configPath, "config", "", "Path to YAML config file (default: ~/.uxlens/config.yaml)")

	root.AddCommand(
		NewServeCmd(),
		NewIngestCmd(),
		NewPlansCmd(),
		NewStatsCmd(),
		NewVersionCmd(),
	)

	return root
}
