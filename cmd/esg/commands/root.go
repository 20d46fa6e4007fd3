package commands

import (
	"github.com/spf13/cobra"
)

var (
	// Global flags
	configFile string
	verbose    bool
)

// rootCmd represents the base command when called without any subcommands
var rootCmd = &cobra.Command{
	Use:   "esg",
	Short: "ESG aggregation engine",
	Long: `ESG Aggregation Engine CLI

Combines per-document ESG evidence into company scores, sector
benchmarks, and portfolio roll-ups.

Usage:
  go run ./cmd/esg [command]

Examples:
  go run ./cmd/esg api
  go run ./cmd/esg refresh --all
  go run ./cmd/esg score acme
  go run ./cmd/esg scheduler`,
}

// Execute adds all child commands to the root command and sets flags appropriately.
// This is called by main.main(). It only needs to happen once to the rootCmd.
func Execute() error {
	return rootCmd.Execute()
}

func init() {
	// Global flags
	rootCmd.PersistentFlags().StringVar(&configFile, "scoring-config", "", "scoring policy file (default config/scoring.yaml)")
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "verbose output")
}
