package commands

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/verdant/esgengine/internal/ingest"
)

// ingestCmd represents the ingest command
var ingestCmd = &cobra.Command{
	Use:   "ingest",
	Short: "Run the document ingest pipeline",
	Long: `Fetches new documents from the configured sources, scores them,
and stores them. Newly stored documents mark their companies dirty.

SCORER_BASE_URL and GDELT_BASE_URL default to a local scorer and the
public GDELT host; set either to "" to disable ingestion.

Dirty marks live in process, so a one-shot ingest does not carry them
over to a later run. Follow up with 'esg refresh' naming the ingested
companies (or --all), or run ingestion inside the api/scheduler daemon,
where the periodic sweep picks the marks up directly.

Example:
  go run ./cmd/esg ingest
  go run ./cmd/esg ingest --company acme`,
	RunE: runIngest,
}

var ingestCompany string

func init() {
	rootCmd.AddCommand(ingestCmd)

	ingestCmd.Flags().StringVar(&ingestCompany, "company", "", "ingest only this company")
}

func runIngest(cmd *cobra.Command, args []string) error {
	a, err := newApp(false)
	if err != nil {
		return err
	}
	defer a.close()

	if a.pipeline == nil {
		return fmt.Errorf("ingest pipeline not configured (set SCORER_BASE_URL and GDELT_BASE_URL)")
	}

	ctx := context.Background()

	stats, err := func() (*ingest.Stats, error) {
		if ingestCompany != "" {
			return a.pipeline.RunCompany(ctx, ingestCompany)
		}
		return a.pipeline.Run(ctx)
	}()
	if err != nil {
		return err
	}

	fmt.Printf("Companies:    %d\n", stats.Companies)
	fmt.Printf("Fetched:      %d\n", stats.Fetched)
	fmt.Printf("Inserted:     %d\n", stats.Inserted)
	fmt.Printf("Duplicates:   %d\n", stats.Duplicates)
	fmt.Printf("Score failed: %d\n", stats.ScoreFailed)
	fmt.Printf("Fetch failed: %d\n", stats.FetchFailed)

	return nil
}
