package main

import (
	"encoding/json"
	"os"
	"strconv"

	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
)

var (
	proposalsLimit int
	reviewerName   string
	rejectionNotes string
)

var proposalsCmd = &cobra.Command{
	Use:   "proposals",
	Short: "Review pending update proposals",
}

var proposalsListCmd = &cobra.Command{
	Use:   "list",
	Short: "List pending proposals, highest confidence first",
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()

		st, err := initStore(ctx)
		if err != nil {
			return err
		}
		defer st.Close()

		pending, err := st.ListPendingProposals(ctx, proposalsLimit)
		if err != nil {
			return err
		}

		enc := json.NewEncoder(os.Stdout)
		enc.SetIndent("", "  ")
		return enc.Encode(pending)
	},
}

var proposalsApproveCmd = &cobra.Command{
	Use:   "approve <id>",
	Short: "Approve a pending proposal and apply its change",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()

		id, err := strconv.ParseInt(args[0], 10, 64)
		if err != nil {
			return eris.Wrapf(err, "parse proposal id %q", args[0])
		}

		st, err := initStore(ctx)
		if err != nil {
			return err
		}
		defer st.Close()

		applied, err := st.ApproveProposal(ctx, id, reviewerName)
		if err != nil {
			return err
		}
		if !applied {
			return eris.Errorf("proposal %d is not pending", id)
		}

		zap.L().Info("proposal approved", zap.Int64("id", id), zap.String("reviewed_by", reviewerName))
		return nil
	},
}

var proposalsRejectCmd = &cobra.Command{
	Use:   "reject <id>",
	Short: "Reject a pending proposal without applying it",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()

		id, err := strconv.ParseInt(args[0], 10, 64)
		if err != nil {
			return eris.Wrapf(err, "parse proposal id %q", args[0])
		}

		st, err := initStore(ctx)
		if err != nil {
			return err
		}
		defer st.Close()

		rejected, err := st.RejectProposal(ctx, id, reviewerName, rejectionNotes)
		if err != nil {
			return err
		}
		if !rejected {
			return eris.Errorf("proposal %d is not pending", id)
		}

		zap.L().Info("proposal rejected", zap.Int64("id", id), zap.String("reviewed_by", reviewerName))
		return nil
	},
}

func init() {
	proposalsListCmd.Flags().IntVar(&proposalsLimit, "limit", 50, "maximum proposals to list")
	proposalsApproveCmd.Flags().StringVar(&reviewerName, "by", "cli", "reviewer identity recorded on the proposal")
	proposalsRejectCmd.Flags().StringVar(&reviewerName, "by", "cli", "reviewer identity recorded on the proposal")
	proposalsRejectCmd.Flags().StringVar(&rejectionNotes, "notes", "", "rejection reason")

	proposalsCmd.AddCommand(proposalsListCmd, proposalsApproveCmd, proposalsRejectCmd)
	rootCmd.AddCommand(proposalsCmd)
}
