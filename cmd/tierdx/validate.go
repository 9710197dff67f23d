package main

import (
	"encoding/json"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/tierdx/tierdx/internal/domain"
	"github.com/tierdx/tierdx/internal/wiring"
)

var validateCasesPath string

var validateCmd = &cobra.Command{
	Use:   "validate",
	Short: "Run a labeled batch through the pipeline and report accuracy",
	Long: `validate loads a JSON array of gold-standard cases, classifies each
one, and prints a report with overall accuracy, a per-tier confusion
matrix, and the list of cases that disagreed with the expected tier.`,
	Example: `  tierdx validate --cases testdata/cases.json`,
	RunE:    runValidate,
}

func init() {
	validateCmd.Flags().StringVar(&validateCasesPath, "cases", "", "Path to a JSON file of labeled validation cases (required)")
	validateCmd.MarkFlagRequired("cases")
}

func runValidate(cmd *cobra.Command, args []string) error {
	configManager, err := loadConfig()
	if err != nil {
		return err
	}
	cfg := configManager.GetConfig()
	logger := newLogger(cfg)
	tables, err := loadTables()
	if err != nil {
		return fmt.Errorf("loading decision tables: %w", err)
	}

	data, err := os.ReadFile(validateCasesPath)
	if err != nil {
		return fmt.Errorf("reading cases file: %w", err)
	}
	var cases []domain.ValidationCase
	if err := json.Unmarshal(data, &cases); err != nil {
		return fmt.Errorf("parsing cases file: %w", err)
	}

	validator := wiring.BuildValidator(cfg, tables, logger)
	report, err := validator.Run(cmd.Context(), cases)
	if err != nil {
		return fmt.Errorf("running validation batch: %w", err)
	}

	out, err := json.MarshalIndent(report, "", "  ")
	if err != nil {
		return fmt.Errorf("encoding report: %w", err)
	}
	fmt.Fprintln(cmd.OutOrStdout(), string(out))
	return nil
}
