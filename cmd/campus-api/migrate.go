package main

import (
	"github.com/smartcampus/campus-api/internal/storage/sqldb"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
)

func migrate(cmd *cobra.Command, _ []string) error {
	cfg, log, err := setup()
	if err != nil {
		return err
	}
	defer log.Sync()

	store, err := sqldb.New(cfg, log)
	if err != nil {
		return err
	}
	defer store.Close()

	if err := store.Migrate(cmd.Context()); err != nil {
		return err
	}

	log.Info("database migrated", zap.String("driver", cfg.Database.Driver))
	return nil
}
