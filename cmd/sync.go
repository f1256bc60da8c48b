package main

import (
	"encoding/json"
	"os"
	"path/filepath"
	"time"

	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"

	anthropicpkg "github.com/sells-group/fusion-intel/pkg/anthropic"

	"github.com/sells-group/fusion-intel/internal/sync"

	"go.uber.org/zap"
)

var (
	syncFile   string
	syncDryRun bool
)

var syncCmd = &cobra.Command{
	Use:   "sync",
	Short: "Reconcile the research document against the database",
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()

		st, err := initStore(ctx)
		if err != nil {
			return err
		}
		defer st.Close()

		file := syncFile
		if file == "" {
			file = filepath.Join(cfg.Research.Dir, cfg.Research.BaseFile)
		}

		client := anthropicpkg.NewClient(cfg.Anthropic.Key)
		validator := sync.NewAnthropicValidator(
			client,
			cfg.Anthropic.Model,
			time.Duration(cfg.Merge.OracleTimeoutSecs)*time.Second,
			cfg.Merge.OracleRPS,
		)

		engine := sync.NewEngine(st, sync.NewMatcher(nil), validator, cfg.Sync, zap.L())

		result, err := engine.SyncFile(ctx, file, syncDryRun || cfg.Sync.DryRun)
		if err != nil {
			return eris.Wrap(err, "sync run")
		}

		enc := json.NewEncoder(os.Stdout)
		enc.SetIndent("", "  ")
		return enc.Encode(result)
	},
}

func init() {
	syncCmd.Flags().StringVarP(&syncFile, "file", "f", "", "document to sync (default: base research document)")
	syncCmd.Flags().BoolVar(&syncDryRun, "dry-run", false, "run the full pipeline without writing anything")
	rootCmd.AddCommand(syncCmd)
}
