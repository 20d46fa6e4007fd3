package commands

import (
	"context"
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"github.com/verdant/esgengine/internal/engineconfig"
)

// statusCmd represents the status command
var statusCmd = &cobra.Command{
	Use:   "status",
	Short: "Show engine status",
	Long: `Prints a snapshot of the engine: database health, scoring
policy, company and score counts.

Example:
  go run ./cmd/esg status`,
	RunE: runStatus,
}

func init() {
	rootCmd.AddCommand(statusCmd)
}

func runStatus(cmd *cobra.Command, args []string) error {
	a, err := newApp(false)
	if err != nil {
		return err
	}
	defer a.close()

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	health, err := a.db.HealthCheck(ctx)
	if err != nil {
		return fmt.Errorf("database health check: %w", err)
	}
	fmt.Printf("Database:  healthy (%v, %d/%d conns)\n",
		health.ResponseTime, health.Stats.TotalConns, health.Stats.MaxConns)

	hash, _ := engineconfig.Hash(a.policy)
	fmt.Printf("Policy:    %s v%s (%s)\n", a.policy.Meta.PolicyID, a.policy.Meta.Version, hash[:12])

	companies, err := a.registry.ListCompanies(ctx)
	if err != nil {
		return err
	}
	scores, err := a.scores.GetCurrentScores(ctx)
	if err != nil {
		return err
	}

	fmt.Printf("Companies: %d registered, %d scored\n", len(companies), len(scores))

	sectors := make(map[string]int)
	for _, s := range scores {
		sectors[s.SectorID]++
	}
	for sector, count := range sectors {
		flag := ""
		if count < a.policy.Benchmark.MinSectorPeers {
			flag = "  (low-confidence benchmark)"
		}
		fmt.Printf("  %-16s %d scored%s\n", sector, count, flag)
	}

	return nil
}
