package main

import (
	"encoding/json"
	"fmt"
	"io"
	"os"

	"github.com/google/uuid"
	"github.com/rentscope/market-planner/internal/service"
	"github.com/rentscope/market-planner/internal/store"
	"github.com/rentscope/market-planner/internal/store/model"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
	"gopkg.in/yaml.v3"
)

var outputFormat string

var analyzeCmd = &cobra.Command{
	Use:   "analyze LOCATION_ID",
	Short: "Print the market analysis of a location",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		locationID, err := uuid.Parse(args[0])
		if err != nil {
			return fmt.Errorf("invalid location id %q: %w", args[0], err)
		}
		if outputFormat != "json" && outputFormat != "yaml" {
			return fmt.Errorf("unknown output format %q", outputFormat)
		}

		cfg, teardown := setup()
		defer teardown()

		db, err := store.InitDB(cfg)
		if err != nil {
			zap.S().Fatalw("initializing data store", "error", err)
		}
		s := store.NewStore(db)
		defer s.Close()

		analytics := service.NewAnalyticsService(s, store.NewMemoryAnalysisCache())
		analysis, err := analytics.Analyze(cmd.Context(), locationID)
		if err != nil {
			return err
		}

		return printAnalysis(os.Stdout, outputFormat, analysis)
	},
}

func init() {
	analyzeCmd.Flags().StringVarP(&outputFormat, "output", "o", "json", "Output format: json or yaml")
}

func printAnalysis(w io.Writer, format string, analysis *model.MarketAnalysis) error {
	if format == "yaml" {
		enc := yaml.NewEncoder(w)
		enc.SetIndent(2)
		defer enc.Close()
		return enc.Encode(analysis)
	}

	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(analysis)
}
