package main

import (
	"errors"

	"go-mpesa/payment/db"
	"go-mpesa/utils"

	"github.com/spf13/cobra"
)

func migrateCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "migrate",
		Short: "Create or update the payment_records table",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg := utils.LoadConfig()
			if cfg.DSN == "" {
				return errors.New("DB is not set")
			}

			log, err := utils.NewLogger(cfg.Production())
			if err != nil {
				return err
			}
			defer log.Sync()

			gdb, err := db.Connect(cfg.DSN)
			if err != nil {
				return err
			}
			if err := db.Migrate(gdb); err != nil {
				return err
			}
			log.Info("migration complete")
			return nil
		},
	}
}
