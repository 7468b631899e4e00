package cmd

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/punchamoorthee/brokerledger/internal/config"
	"github.com/punchamoorthee/brokerledger/internal/logger"
	"github.com/punchamoorthee/brokerledger/internal/service"
	"github.com/punchamoorthee/brokerledger/internal/store"
	"github.com/spf13/cobra"
)

var logEnv string

var rootCmd = &cobra.Command{
	Use:   "ledgerctl",
	Short: "Operator tooling for the brokerage ledger",
	Long: `ledgerctl runs schema migrations, profit distribution, total repair,
seeding and load tests against the brokerage ledger.`,
	SilenceUsage: true,
	PersistentPreRun: func(cmd *cobra.Command, args []string) {
		logger.Init(logEnv)
	},
	PersistentPostRun: func(cmd *cobra.Command, args []string) {
		logger.Sync()
	},
}

func Execute() {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if err := rootCmd.ExecuteContext(ctx); err != nil {
		stop()
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func init() {
	rootCmd.PersistentFlags().StringVar(&logEnv, "log-env", "development", "Logger mode: development | production")
}

// services is the wiring cmd/api does, for one-shot commands.
type services struct {
	store     *store.Store
	balances  *service.BalanceService
	positions *service.PositionService
	engine    *service.DistributionEngine
}

func openServices() (*services, error) {
	cfg, err := config.Load()
	if err != nil {
		return nil, err
	}
	s, err := store.NewStore(cfg.DBSource)
	if err != nil {
		return nil, err
	}
	balances := service.NewBalanceService(s, cfg.OverdraftPolicy)
	positions := service.NewPositionService(s, balances)
	return &services{
		store:     s,
		balances:  balances,
		positions: positions,
		engine:    service.NewDistributionEngine(s, balances, positions),
	}, nil
}

func (s *services) Close() {
	s.store.Close()
}
