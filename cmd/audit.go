package main

import (
	"encoding/json"
	"os"

	"github.com/spf13/cobra"

	"github.com/sells-group/fusion-intel/internal/model"
	"github.com/sells-group/fusion-intel/internal/store"
)

var (
	auditEntityType string
	auditEntityID   int64
	auditLimit      int
)

var auditCmd = &cobra.Command{
	Use:   "audit",
	Short: "Query the change audit log, newest first",
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()

		st, err := initStore(ctx)
		if err != nil {
			return err
		}
		defer st.Close()

		entries, err := st.ListAudit(ctx, store.AuditFilter{
			EntityType: model.EntityType(auditEntityType),
			EntityID:   auditEntityID,
			Limit:      auditLimit,
		})
		if err != nil {
			return err
		}

		enc := json.NewEncoder(os.Stdout)
		enc.SetIndent("", "  ")
		return enc.Encode(entries)
	},
}

func init() {
	auditCmd.Flags().StringVar(&auditEntityType, "entity-type", "", "filter by entity type (company, funding, ...)")
	auditCmd.Flags().Int64Var(&auditEntityID, "entity-id", 0, "filter by entity id")
	auditCmd.Flags().IntVar(&auditLimit, "limit", 100, "maximum entries")
	rootCmd.AddCommand(auditCmd)
}
