package main

import (
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/sells-group/fusion-intel/internal/markdown"
	"github.com/sells-group/fusion-intel/internal/model"
)

var normalizeCmd = &cobra.Command{
	Use:   "normalize",
	Short: "Rebuild partner rows from each company's free-text investor and partnership fields",
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()

		st, err := initStore(ctx)
		if err != nil {
			return err
		}
		defer st.Close()

		companies, err := st.ListCompanies(ctx, 0)
		if err != nil {
			return err
		}

		var companiesTouched, partnersWritten int
		for _, c := range companies {
			var partners []model.Partner
			for _, name := range markdown.ParseTextList(c.KeyInvestors) {
				partners = append(partners, model.Partner{
					Name:        name,
					Kind:        model.PartnerKindInvestor,
					PartnerType: markdown.ClassifyPartner(name),
				})
			}
			for _, name := range markdown.ParseTextList(c.KeyPartnerships) {
				partners = append(partners, model.Partner{
					Name:        name,
					Kind:        model.PartnerKindPartnership,
					PartnerType: markdown.ClassifyPartner(name),
				})
			}
			if len(partners) == 0 {
				continue
			}

			if err := st.ReplacePartners(ctx, c.ID, partners); err != nil {
				zap.L().Error("replace partners failed",
					zap.String("company", c.Name), zap.Error(err))
				continue
			}
			companiesTouched++
			partnersWritten += len(partners)
		}

		zap.L().Info("relationship normalization complete",
			zap.Int("companies", companiesTouched),
			zap.Int("partners", partnersWritten))
		return nil
	},
}

func init() {
	rootCmd.AddCommand(normalizeCmd)
}
