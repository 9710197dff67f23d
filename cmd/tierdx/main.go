package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
)

// Version info, set at build time via -ldflags.
var (
	version = "0.0.1-dev"
	commit  = "dev"
	date    = "unknown"
)

var rootCmd = &cobra.Command{
	Use:   "tierdx",
	Short: "Somatic variant clinical-actionability tiering",
	Long: `tierdx classifies somatic cancer variants into AMP/ASCO/CAP 2017
four-tier clinical actionability levels, aggregating evidence from
FDA labels, knowledgebases, literature, and clinical trial registries.`,
	Version: fmt.Sprintf("%s (commit: %s, built: %s)", version, commit, date),
	Example: `  # Classify one variant
  tierdx classify --gene BRAF --variant V600E --tumor-type melanoma

  # Run a labeled validation batch
  tierdx validate --cases testdata/cases.json

  # Start the MCP server over stdio
  tierdx serve-mcp

  # Start the REST API
  tierdx serve-http --port 8080`,
}

func init() {
	rootCmd.PersistentFlags().StringVar(&configFile, "config", "", "Path to config.yaml (defaults to ./config.yaml)")
	rootCmd.PersistentFlags().StringVar(&tablesFile, "tables", "", "Path to a decision-tables YAML override")

	rootCmd.AddCommand(classifyCmd)
	rootCmd.AddCommand(validateCmd)
	rootCmd.AddCommand(serveMCPCmd)
	rootCmd.AddCommand(serveHTTPCmd)
}

var (
	configFile string
	tablesFile string
)

func main() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}
