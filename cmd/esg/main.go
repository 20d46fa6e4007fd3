package main

import (
	"os"

	"github.com/verdant/esgengine/cmd/esg/commands"
)

// main is the entry point for the ESG engine CLI
func main() {
	if err := commands.Execute(); err != nil {
		os.Exit(1)
	}
}
