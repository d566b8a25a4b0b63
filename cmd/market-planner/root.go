package main

import (
	"github.com/rentscope/market-planner/internal/config"
	"github.com/rentscope/market-planner/pkg/log"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
)

var (
	configFile string
)

var rootCmd = &cobra.Command{
	Use:   "market-planner",
	Short: "Orchestrates rental market scraping jobs and derives market metrics",
}

func init() {
	rootCmd.AddCommand(migrateCmd)
	rootCmd.AddCommand(runCmd)
	rootCmd.AddCommand(analyzeCmd)

	// kept for operators' scripts, configuration is read from the environment
	rootCmd.PersistentFlags().StringVarP(&configFile, "config", "c", "", "Path to configuration file (unused)")
}

// setup reads the configuration and installs the global logger. The returned function restores it.
func setup() (*config.Config, func()) {
	cfg, err := config.New()
	if err != nil {
		zap.S().Fatalw("reading configuration", "error", err)
	}

	logger := log.InitLog(log.ParseLevel(cfg.Service.LogLevel))
	undo := zap.ReplaceGlobals(logger)

	return cfg, func() {
		_ = logger.Sync()
		undo()
	}
}
