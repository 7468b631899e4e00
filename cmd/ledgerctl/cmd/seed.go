package cmd

import (
	"fmt"

	"github.com/punchamoorthee/brokerledger/internal/domain"
	"github.com/punchamoorthee/brokerledger/internal/logger"
	"github.com/shopspring/decimal"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
)

var (
	seedUsers   int64
	seedDeposit string
)

// defaultPlans is the catalog a fresh environment starts with.
func defaultPlans() []domain.Plan {
	starterMax := decimal.NewFromInt(5000)
	return []domain.Plan{
		{Name: "Starter", Kind: domain.KindInvestment, MinAmount: decimal.NewFromInt(100), MaxAmount: &starterMax,
			Rate: decimal.RequireFromString("0.015"), Duration: 30, IsActive: true},
		{Name: "Growth", Kind: domain.KindInvestment, MinAmount: decimal.NewFromInt(5000),
			Rate: decimal.RequireFromString("0.025"), Duration: 60, IsActive: true},
		{Name: "Live BTC", Kind: domain.KindLiveTrade, MinAmount: decimal.NewFromInt(50),
			Rate: decimal.RequireFromString("0.001"), Duration: 24, IsActive: true},
	}
}

var seedCmd = &cobra.Command{
	Use:   "seed",
	Short: "Bulk-load funded users and the default plan catalog",
	RunE: func(cmd *cobra.Command, args []string) error {
		deposit, err := decimal.NewFromString(seedDeposit)
		if err != nil || deposit.IsNegative() {
			return fmt.Errorf("invalid --deposit %q", seedDeposit)
		}

		svc, err := openServices()
		if err != nil {
			return err
		}
		defer svc.Close()

		for _, p := range defaultPlans() {
			p := p
			if err := svc.store.UpsertPlan(cmd.Context(), &p); err != nil {
				return err
			}
			logger.Info("plan ready", zap.Int64("plan_id", p.ID), zap.String("name", p.Name))
		}

		n, err := svc.store.SeedBalances(cmd.Context(), 1, seedUsers, deposit)
		if err != nil {
			return err
		}
		if n == 0 {
			logger.Info("every requested user already has a balance, skipping")
			return nil
		}
		logger.Info("balances seeded", zap.Int64("users", n), zap.String("deposit", deposit.StringFixed(domain.AmountScale)))
		return nil
	},
}

func init() {
	seedCmd.Flags().Int64Var(&seedUsers, "users", 1000, "Number of users to create, starting at id 1")
	seedCmd.Flags().StringVar(&seedDeposit, "deposit", "10000.00", "Deposit balance for every seeded user")
	rootCmd.AddCommand(seedCmd)
}
