package commands

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/uxlens/uxlens-go/internal/logging"
)

// NewStatsCmd constructs the `uxlens stats` command, which summarizes the
// vector store contents and pre-generated plan coverage.
func NewStatsCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "stats",
		Short: "Show vector store and plan store statistics",
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			log := logging.New()

			store, _, err := buildStore(ctx, log)
			if err != nil {
				return fmt.Errorf("stats: %w", err)
			}
			defer store.Close()

			stats, err := store.Stats(ctx)
			if err != nil {
				return fmt.Errorf("stats: %w", err)
			}

			fmt.Printf("Vector store\n")
			fmt.Printf("  chunks:    %d\n", stats.TotalChunks)
			fmt.Printf("  resources: %d\n", stats.UniqueResources)
			fmt.Printf("  categories:\n")
			for name, count := range stats.Categories {
				fmt.Printf("    %-24s %d\n", name, count)
			}
			fmt.Printf("  difficulties:\n")
			for name, count := range stats.Difficulties {
				fmt.Printf("    %-24s %d\n", name, count)
			}

			plans := openPlanStore(log)
			if plans == nil {
				fmt.Printf("\nPlan store: disabled\n")
				return nil
			}
			defer func() { _ = plans.Close() }()

			planStats, err := plans.Stats(ctx)
			if err != nil {
				return fmt.Errorf("stats: plan store: %w", err)
			}
			fmt.Printf("\nPlan store\n")
			fmt.Printf("  plans:    %d\n", planStats.Plans)
			fmt.Printf("  coverage: %.0f%%\n", planStats.Coverage*100)
			if !planStats.UpdatedAt.IsZero() {
				fmt.Printf("  updated:  %s\n", planStats.UpdatedAt.Format("2006-01-02 15:04:05"))
			}
			return nil
		},
	}
}
