package main

import (
	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"
	"github.com/sutaaa0/cashier-app-sub000/internal/db"
)

var migrateCmd = &cobra.Command{
	Use:   "migrate",
	Short: "Apply pending database migrations",
	Long:  `Create or upgrade the settings and reset log tables used by the backup manager.`,
	RunE:  runMigrate,
}

func runMigrate(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig()
	if err != nil {
		log.Error().Err(err).Msg("failed to load configuration")
		return err
	}

	if err := db.RunMigrations(cfg.Database.URL()); err != nil {
		log.Error().Err(err).Msg("failed to apply migrations")
		return err
	}

	log.Info().Str("database", cfg.Database.Database).Msg("migrations applied")
	return nil
}
