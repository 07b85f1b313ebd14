package commands

import (
	"encoding/json"
	"fmt"
	"log/slog"
	"os"
	"strconv"

	"github.com/spf13/cobra"

	"github.com/uxlens/uxlens-go/internal/logging"
)

// NewPlansCmd constructs the `uxlens plans` command group for managing the
// pre-generated improvement plan store.
func NewPlansCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "plans",
		Short: "Manage the pre-generated improvement plan store",
	}
	cmd.AddCommand(newPlansImportCmd())
	return cmd
}

// newPlansImportCmd constructs `uxlens plans import`, which loads a JSON file
// of plans keyed by normalized score into the SQLite store.
func newPlansImportCmd() *cobra.Command {
	var file string

	cmd := &cobra.Command{
		Use:   "import",
		Short: "Import pre-generated plans from a JSON file",
		Long: `Load pre-generated improvement plans into the local SQLite store.

The input file maps normalized scores (0-100) to plan payloads:

  {
    "42": {"advice": "...", "focus_areas": ["Visual Design"]},
    "43": {"advice": "...", "focus_areas": ["Prototyping"]}
  }

Existing plans for the same score are replaced. The store path is taken from
UXLENS_PREGEN_DB (default: ~/.uxlens/pregen.db).

Examples:
  uxlens plans import --file plans.json`,
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			log := logging.New()

			if file == "" {
				return fmt.Errorf("plans import: --file is required")
			}

			data, err := os.ReadFile(file)
			if err != nil {
				return fmt.Errorf("plans import: %w", err)
			}

			var byScore map[string]json.RawMessage
			if err := json.Unmarshal(data, &byScore); err != nil {
				return fmt.Errorf("plans import: invalid JSON in %s: %w", file, err)
			}

			store := openPlanStore(log)
			if store == nil {
				return fmt.Errorf("plans import: plan store unavailable")
			}
			defer func() { _ = store.Close() }()

			imported := 0
			for key, plan := range byScore {
				score, err := strconv.Atoi(key)
				if err != nil {
					return fmt.Errorf("plans import: score key %q is not a number", key)
				}
				if err := store.Put(ctx, score, plan); err != nil {
					return fmt.Errorf("plans import: score %d: %w", score, err)
				}
				imported++
			}

			stats, err := store.Stats(ctx)
			if err != nil {
				return fmt.Errorf("plans import: %w", err)
			}

			log.Info("plans imported",
				slog.Int("imported", imported),
				slog.Int("total", stats.Plans),
				slog.Float64("coverage", stats.Coverage),
			)
			return nil
		},
	}

	cmd.Flags().StringVarP(&file, "file", "f", "", "Path to the plans JSON file")
	return cmd
}
