package main

import (
	"encoding/json"
	"os"
	"time"

	"github.com/spf13/cobra"
)

var (
	statusDays  int
	statusLimit int
)

// stalenessRow is one line of the status report.
type stalenessRow struct {
	Name          string `json:"name"`
	Country       string `json:"country,omitempty"`
	LastUpdated   string `json:"last_updated"`
	StalenessDays int    `json:"staleness_days"`
}

var statusCmd = &cobra.Command{
	Use:   "status",
	Short: "Report companies whose records have gone stale, oldest first",
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()

		st, err := initStore(ctx)
		if err != nil {
			return err
		}
		defer st.Close()

		now := time.Now().UTC()
		cutoff := now.AddDate(0, 0, -statusDays)
		stale, err := st.ListStaleCompanies(ctx, cutoff, statusLimit)
		if err != nil {
			return err
		}

		rows := make([]stalenessRow, 0, len(stale))
		for i := range stale {
			c := &stale[i]
			rows = append(rows, stalenessRow{
				Name:          c.Name,
				Country:       c.Country,
				LastUpdated:   c.LastUpdated.Format(time.RFC3339),
				StalenessDays: c.StalenessDays(now),
			})
		}

		enc := json.NewEncoder(os.Stdout)
		enc.SetIndent("", "  ")
		return enc.Encode(rows)
	},
}

func init() {
	statusCmd.Flags().IntVar(&statusDays, "days", 30, "staleness threshold in days")
	statusCmd.Flags().IntVar(&statusLimit, "limit", 100, "maximum companies to report")
	rootCmd.AddCommand(statusCmd)
}
