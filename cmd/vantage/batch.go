package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/ternarybob/vantage/internal/app"
	"github.com/ternarybob/vantage/internal/batch"
)

var (
	batchMode   string
	batchOutput string
)

var batchCmd = &cobra.Command{
	Use:   "batch FILE",
	Short: "Run a CSV of analysis rows and write results as CSV",
	Long: `Reads ticker rows from a CSV file (ticker, optional date, optional model),
runs each through the analysis pipeline and writes one result row per
input row. Output goes to stdout unless -o is given.`,
	Args: cobra.ExactArgs(1),
	RunE: runBatch,
}

func init() {
	batchCmd.Flags().StringVar(&batchMode, "mode", "full", "Analysis mode applied to every row")
	batchCmd.Flags().StringVarP(&batchOutput, "output", "o", "", "Output file (default stdout)")
}

func runBatch(cmd *cobra.Command, args []string) error {
	file, err := os.Open(args[0])
	if err != nil {
		return fmt.Errorf("failed to open input file: %w", err)
	}
	defer file.Close()

	source, err := batch.NewRowSource(args[0], file)
	if err != nil {
		return err
	}
	rows, err := source.Rows()
	if err != nil {
		return fmt.Errorf("failed to parse input file: %w", err)
	}
	if len(rows) == 0 {
		return fmt.Errorf("no rows found in %s", args[0])
	}

	application, err := app.New(config, logger)
	if err != nil {
		return fmt.Errorf("failed to initialize application: %w", err)
	}
	defer application.Close()

	results := application.BatchExecutor.Run(cmd.Context(), rows, batchMode)

	out := os.Stdout
	if batchOutput != "" {
		out, err = os.Create(batchOutput)
		if err != nil {
			return fmt.Errorf("failed to create output file: %w", err)
		}
		defer out.Close()
	}

	if err := batch.WriteCSV(out, results); err != nil {
		return fmt.Errorf("failed to write results: %w", err)
	}

	failed := 0
	for _, r := range results {
		if r.Err != nil {
			failed++
		}
	}
	logger.Info().
		Int("rows", len(results)).
		Int("failed", failed).
		Msg("Batch run complete")

	return nil
}
