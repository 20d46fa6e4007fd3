package commands

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"
)

// refreshCmd represents the refresh command
var refreshCmd = &cobra.Command{
	Use:   "refresh [company-id...]",
	Short: "Recompute company scores",
	Long: `Marks companies dirty and runs one sweep: recombining their
scores and cascading into sector benchmarks and portfolio scores.

Dirty marks from an earlier process (a one-shot ingest, a previous api
run) are not visible here, so name the companies to recompute or pass
--all.

Example:
  go run ./cmd/esg refresh acme globex
  go run ./cmd/esg refresh --all`,
	RunE: runRefresh,
}

var refreshAll bool

func init() {
	rootCmd.AddCommand(refreshCmd)

	refreshCmd.Flags().BoolVar(&refreshAll, "all", false, "recompute every registered company")
}

func runRefresh(cmd *cobra.Command, args []string) error {
	if !refreshAll && len(args) == 0 {
		return fmt.Errorf("pass company ids or --all")
	}

	a, err := newApp(false)
	if err != nil {
		return err
	}
	defer a.close()

	ctx := context.Background()

	if refreshAll {
		marked, err := a.orchestrator.MarkAllDirty(ctx)
		if err != nil {
			return err
		}
		fmt.Printf("Marked %d companies\n", marked)
	} else {
		for _, id := range args {
			a.orchestrator.MarkCompanyDirty(id)
		}
	}

	result, err := a.orchestrator.Sweep(ctx)
	if err != nil {
		return err
	}

	fmt.Printf("Swept:      %d\n", result.CompaniesSwept)
	fmt.Printf("Updated:    %d\n", result.ScoresUpdated)
	fmt.Printf("No score:   %d\n", result.NoScore)
	fmt.Printf("Failed:     %d\n", result.Failed)
	fmt.Printf("Sectors:    %d\n", result.SectorsRecomputed)
	fmt.Printf("Portfolios: %d\n", result.PortfoliosUpdated)
	fmt.Printf("Duration:   %v\n", result.Duration)

	return nil
}
