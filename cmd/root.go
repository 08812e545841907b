package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/christosporios/strategic-investments-gr/internal/config"
)

var cfg *config.Config

var rootCmd = &cobra.Command{
	Use:   "invest-sync",
	Short: "Strategic investment dataset pipeline",
	Long:  "Collects Greek strategic-investment approvals from Diavgeia and Enterprise Greece, extracts structured records via Claude, reconciles revisions, and maintains a single JSON snapshot.",
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		c, err := config.Load()
		if err != nil {
			return fmt.Errorf("load config: %w", err)
		}
		cfg = c

		if err := config.InitLogger(cfg.Log); err != nil {
			return fmt.Errorf("init logger: %w", err)
		}

		return nil
	},
	PersistentPostRun: func(cmd *cobra.Command, args []string) {
		_ = zap.L().Sync()
	},
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}
