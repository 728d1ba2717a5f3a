package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
	"github.com/ternarybob/arbor"

	"github.com/ternarybob/vantage/internal/common"
)

var (
	// Command-line flags
	configFile string
	serverPort int
	serverHost string

	// Global state
	config *common.Config
	logger arbor.ILogger
)

var rootCmd = &cobra.Command{
	Use:   "vantage",
	Short: "Equity analysis orchestration engine",
	Long: `Vantage assembles filings, pricing, analyst, institutional, news and
macro fragments for a ticker and synthesizes a recommendation bundle.`,
	PersistentPreRunE: setup,
	SilenceUsage:      true,
}

func init() {
	rootCmd.PersistentFlags().StringVarP(&configFile, "config", "c", "", "Configuration file path")
	rootCmd.PersistentFlags().IntVarP(&serverPort, "port", "p", 0, "Server port (overrides config)")
	rootCmd.PersistentFlags().StringVar(&serverHost, "host", "", "Server host (overrides config)")

	rootCmd.AddCommand(serveCmd)
	rootCmd.AddCommand(analyzeCmd)
	rootCmd.AddCommand(batchCmd)
	rootCmd.AddCommand(versionCmd)
}

// setup runs the startup sequence shared by every command:
// 1. Load config (defaults -> file -> env)
// 2. Apply CLI overrides (highest priority)
// 3. Initialize logger
func setup(cmd *cobra.Command, args []string) error {
	if cmd == versionCmd {
		return nil
	}

	// Auto-discover config file if not specified
	if configFile == "" {
		if _, err := os.Stat("vantage.toml"); err == nil {
			configFile = "vantage.toml"
		}
	}

	var err error
	config, err = common.LoadFromFile(configFile)
	if err != nil {
		return fmt.Errorf("failed to load configuration: %w", err)
	}

	if serverPort != 0 {
		config.Server.Port = serverPort
	}
	if serverHost != "" {
		config.Server.Host = serverHost
	}

	logger = common.InitLogger(config)
	return nil
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}
