package cmd

import (
	"github.com/spf13/cobra"
)

var rootCmd = &cobra.Command{
	Use:   "tradecoach",
	Short: "A paper trading practice API with an AI coach",
	Long: `Tradecoach is a paper trading practice service written in Go.

It provides:
  - Simulated portfolios with average-cost accounting
  - Live quotes from Yahoo Finance and Alpha Vantage with fallback
  - RSI and EMA indicator snapshots per symbol
  - An AI coach for trading questions, trade critiques and practice plans
  - JWT-authenticated per-user portfolios`,
}

// Execute adds all child commands to the root command and sets flags appropriately.
func Execute() error {
	return rootCmd.Execute()
}
