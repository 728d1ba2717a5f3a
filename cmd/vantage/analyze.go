package main

import (
	"encoding/json"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/ternarybob/vantage/internal/app"
	"github.com/ternarybob/vantage/internal/models"
)

var (
	analyzeDate  string
	analyzeModel string
	analyzeMode  string
)

var analyzeCmd = &cobra.Command{
	Use:   "analyze TICKER",
	Short: "Run a single analysis and print the bundle as JSON",
	Args:  cobra.ExactArgs(1),
	RunE:  runAnalyze,
}

func init() {
	analyzeCmd.Flags().StringVar(&analyzeDate, "date", "", "Baseline date (YYYY-MM-DD, default today)")
	analyzeCmd.Flags().StringVar(&analyzeModel, "model", "", "LLM model override")
	analyzeCmd.Flags().StringVar(&analyzeMode, "mode", "full", "Analysis mode (full, cached-only, metrics-only, deferred)")
}

func runAnalyze(cmd *cobra.Command, args []string) error {
	application, err := app.New(config, logger)
	if err != nil {
		return fmt.Errorf("failed to initialize application: %w", err)
	}
	defer application.Close()

	bundle, err := application.Orchestrator.Analyze(cmd.Context(), models.AnalysisInput{
		Ticker: args[0],
		Date:   analyzeDate,
		Model:  analyzeModel,
		Mode:   analyzeMode,
	})
	if err != nil {
		return fmt.Errorf("analysis failed: %w", err)
	}

	encoder := json.NewEncoder(os.Stdout)
	encoder.SetIndent("", "  ")
	return encoder.Encode(bundle)
}
