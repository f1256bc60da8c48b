package main

import (
	"encoding/json"
	"os"
	"time"

	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/sells-group/fusion-intel/internal/merge"
	anthropicpkg "github.com/sells-group/fusion-intel/pkg/anthropic"
)

var (
	mergeBase   string
	mergeUpdate string
	mergeOutput string
)

var mergeCmd = &cobra.Command{
	Use:   "merge",
	Short: "Merge an update document into the base research document",
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()

		base, update, output := mergeFileArgs(mergeBase, mergeUpdate, mergeOutput)

		client := anthropicpkg.NewClient(cfg.Anthropic.Key)
		oracle := merge.NewAnthropicOracle(
			client,
			cfg.Anthropic.Model,
			cfg.Anthropic.MaxTokens,
			time.Duration(cfg.Merge.OracleTimeoutSecs)*time.Second,
			cfg.Merge.OracleRPS,
		)
		merger := merge.NewMerger(merge.NewAdapter(oracle, cfg.Merge.ChunkSize), cfg.Research.Dir, cfg.Merge)

		result := merger.MergeFiles(ctx, base, update, output)

		zap.L().Info("merge finished",
			zap.Bool("success", result.Success),
			zap.Int("sections_merged", result.SectionsMerged),
			zap.Int("companies_added", result.CompaniesAdded),
			zap.Int("companies_updated", result.CompaniesUpdated),
			zap.Int("errors", len(result.Errors)))

		enc := json.NewEncoder(os.Stdout)
		enc.SetIndent("", "  ")
		if err := enc.Encode(result); err != nil {
			return eris.Wrap(err, "encode merge result")
		}
		if !result.Success {
			return eris.New("merge failed")
		}
		return nil
	},
}

// mergeFileArgs resolves the file arguments the merger expects: names
// relative to research.dir, since the merger joins its research dir onto
// every path itself. Empty flags fall back to the configured file names.
func mergeFileArgs(base, update, output string) (string, string, string) {
	if base == "" {
		base = cfg.Research.BaseFile
	}
	if update == "" {
		update = cfg.Research.UpdateFile
	}
	if output == "" {
		output = base
	}
	return base, update, output
}

func init() {
	mergeCmd.Flags().StringVar(&mergeBase, "base", "", "base document file name, relative to research.dir (default from config)")
	mergeCmd.Flags().StringVar(&mergeUpdate, "update", "", "update document file name, relative to research.dir (default from config)")
	mergeCmd.Flags().StringVarP(&mergeOutput, "output", "o", "", "output file name, relative to research.dir (default: overwrite base)")
	rootCmd.AddCommand(mergeCmd)
}
