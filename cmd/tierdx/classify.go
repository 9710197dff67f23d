package main

import (
	"encoding/json"
	"fmt"

	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"

	"github.com/tierdx/tierdx/internal/domain"
	"github.com/tierdx/tierdx/internal/wiring"
)

var (
	classifyGene      string
	classifyVariant   string
	classifyTumorType string
)

var classifyCmd = &cobra.Command{
	Use:   "classify",
	Short: "Classify a single somatic variant",
	Long: `classify runs one variant through the full assessment pipeline:
normalization, multi-source evidence gathering, tier assignment, and
(if an LLM is configured) narrative generation. The resulting
assessment is printed to stdout as JSON.`,
	Example: `  tierdx classify --gene BRAF --variant V600E --tumor-type melanoma`,
	RunE:    runClassify,
}

func init() {
	classifyCmd.Flags().StringVar(&classifyGene, "gene", "", "Gene symbol (required)")
	classifyCmd.Flags().StringVar(&classifyVariant, "variant", "", "Variant notation, e.g. V600E (required)")
	classifyCmd.Flags().StringVar(&classifyTumorType, "tumor-type", "", "Tumor type or OncoTree code")
	classifyCmd.MarkFlagRequired("gene")
	classifyCmd.MarkFlagRequired("variant")
}

func runClassify(cmd *cobra.Command, args []string) error {
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

	pipeline := wiring.Build(cfg, tables, logger)

	assessment, err := pipeline.Run(cmd.Context(), domain.VariantInput{
		Gene:      classifyGene,
		Variant:   classifyVariant,
		TumorType: classifyTumorType,
	})
	if err != nil {
		return fmt.Errorf("classifying variant: %w", err)
	}

	out, err := json.MarshalIndent(assessment, "", "  ")
	if err != nil {
		return fmt.Errorf("encoding assessment: %w", err)
	}
	fmt.Fprintln(cmd.OutOrStdout(), string(out))
	return nil
}

func newLogger(cfg *domain.Config) *logrus.Logger {
	logger := logrus.New()
	level, err := logrus.ParseLevel(cfg.Logging.Level)
	if err != nil {
		level = logrus.InfoLevel
	}
	logger.SetLevel(level)
	if cfg.Logging.Format == "text" {
		logger.SetFormatter(&logrus.TextFormatter{})
	} else {
		logger.SetFormatter(&logrus.JSONFormatter{})
	}
	return logger
}
