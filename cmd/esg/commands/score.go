package commands

import (
	"context"
	"errors"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/verdant/esgengine/internal/benchmark"
	"github.com/verdant/esgengine/internal/contracts"
)

// scoreCmd represents the score command
var scoreCmd = &cobra.Command{
	Use:   "score <company-id>",
	Short: "Show a company's combined score",
	Long: `Prints the stored combined score for one company, with its
sector comparison when a benchmark exists.

With --live the score is recombined from the document store instead of
read from storage; the stored score is left untouched.

Example:
  go run ./cmd/esg score acme
  go run ./cmd/esg score acme --live`,
	Args: cobra.ExactArgs(1),
	RunE: runScore,
}

var scoreLive bool

func init() {
	rootCmd.AddCommand(scoreCmd)

	scoreCmd.Flags().BoolVar(&scoreLive, "live", false, "recombine from documents instead of reading storage")
}

func runScore(cmd *cobra.Command, args []string) error {
	companyID := args[0]

	a, err := newApp(false)
	if err != nil {
		return err
	}
	defer a.close()

	ctx := context.Background()

	var score *contracts.CompanyScore
	if scoreLive {
		result, err := a.combiner.Combine(ctx, companyID)
		if err != nil {
			return err
		}
		if !result.HasScore() {
			fmt.Printf("%s: insufficient data\n", companyID)
			return nil
		}
		score = result.Score
	} else {
		score, err = a.scores.GetCompanyScore(ctx, companyID)
		if errors.Is(err, contracts.ErrNotFound) {
			fmt.Printf("%s: no stored score\n", companyID)
			return nil
		}
		if err != nil {
			return err
		}
	}

	fmt.Printf("Company:    %s (sector %s)\n", score.CompanyID, score.SectorID)
	fmt.Printf("E:          %6.2f\n", score.E)
	fmt.Printf("S:          %6.2f\n", score.S)
	fmt.Printf("G:          %6.2f\n", score.G)
	fmt.Printf("Overall:    %6.2f\n", score.Overall)
	fmt.Printf("Confidence: %6.2f\n", score.Confidence)
	fmt.Printf("Documents:  %d\n", score.DocumentCount)
	fmt.Printf("As of:      %s\n", score.AsOf.Format("2006-01-02 15:04:05"))

	bench, err := a.benchmarks.GetBenchmark(ctx, score.SectorID)
	if err != nil {
		return nil // no benchmark yet, nothing more to print
	}

	cmp := benchmark.Compare(score, bench)
	fmt.Println()
	fmt.Printf("Sector mean: %6.2f  (%d peers)\n", cmp.SectorMean, cmp.PeerCount)
	fmt.Printf("Percentile:  %6.2f\n", cmp.Percentile)
	if cmp.LowConfidence {
		fmt.Println("Note: small peer group, low-confidence benchmark")
	}

	return nil
}
