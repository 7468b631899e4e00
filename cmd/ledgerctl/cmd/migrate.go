package cmd

import (
	"github.com/punchamoorthee/brokerledger/internal/config"
	"github.com/punchamoorthee/brokerledger/internal/logger"
	"github.com/punchamoorthee/brokerledger/internal/store"
	"github.com/spf13/cobra"
)

var migrateCmd = &cobra.Command{
	Use:   "migrate",
	Short: "Apply or roll back the ledger schema",
}

var migrateUpCmd = &cobra.Command{
	Use:   "up",
	Short: "Apply all pending migrations",
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := config.Load()
		if err != nil {
			return err
		}
		if err := store.MigrateUp(cfg.DBSource); err != nil {
			return err
		}
		logger.Info("migrations applied")
		return nil
	},
}

var migrateDownCmd = &cobra.Command{
	Use:   "down",
	Short: "Roll back every migration",
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := config.Load()
		if err != nil {
			return err
		}
		if err := store.MigrateDown(cfg.DBSource); err != nil {
			return err
		}
		logger.Info("migrations rolled back")
		return nil
	},
}

func init() {
	migrateCmd.AddCommand(migrateUpCmd, migrateDownCmd)
	rootCmd.AddCommand(migrateCmd)
}
