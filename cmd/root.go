package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/sells-group/fusion-intel/internal/config"
)

var cfg *config.Config

var rootCmd = &cobra.Command{
	Use:   "fusion-intel",
	Short: "Fusion industry research document and database synchronizer",
	Long:  "Merges research markdown revisions section-by-section via a model-backed oracle, reconciles the canonical document against the companies database through a confidence-scored proposal workflow, and keeps a full audit trail.",
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
