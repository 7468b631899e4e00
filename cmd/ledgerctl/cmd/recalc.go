package cmd

import (
	"fmt"

	"github.com/punchamoorthee/brokerledger/internal/domain"
	"github.com/spf13/cobra"
)

var recalcUser int64

var recalcCmd = &cobra.Command{
	Use:   "recalc",
	Short: "Rewrite balance totals from their components",
	RunE: func(cmd *cobra.Command, args []string) error {
		svc, err := openServices()
		if err != nil {
			return err
		}
		defer svc.Close()

		if recalcUser > 0 {
			rec, err := svc.balances.RecalculateTotal(cmd.Context(), recalcUser)
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "user %d total %s\n", rec.UserID, rec.Total.StringFixed(domain.AmountScale))
			return nil
		}

		n, err := svc.balances.RecalculateAll(cmd.Context())
		if err != nil {
			return err
		}
		fmt.Fprintf(cmd.OutOrStdout(), "repaired %d balances\n", n)
		return nil
	},
}

func init() {
	recalcCmd.Flags().Int64Var(&recalcUser, "user", 0, "Repair one user only")
	rootCmd.AddCommand(recalcCmd)
}
