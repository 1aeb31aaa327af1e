package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"
	"github.com/sutaaa0/cashier-app-sub000/internal/models"
)

var backupCmd = &cobra.Command{
	Use:   "backup",
	Short: "Take one backup now and apply retention",
	Long: `Take a single backup and exit, for use from cron or a systemd timer:
1. Dump the database into the backup directory
2. Delete backups older than the retention window
3. Mirror the new backup offsite (if configured)
4. Send a Telegram notification (if configured)`,
	RunE: runBackupOnce,
}

func runBackupOnce(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig()
	if err != nil {
		log.Error().Err(err).Msg("failed to load configuration")
		return err
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	a, err := newApp(ctx, log.Logger, cfg)
	if err != nil {
		log.Error().Err(err).Msg("failed to start")
		return err
	}
	defer a.close(true)

	artifact, err := a.backups.RunBackup(ctx, models.TriggerScheduled)
	if err != nil {
		log.Error().Err(err).Msg("backup failed")
		return err
	}

	log.Info().
		Str("filename", artifact.Filename).
		Int64("size_bytes", artifact.SizeBytes).
		Msg("backup completed successfully")

	deleted, err := a.scheduler.SweepExpired(ctx, artifact.CreatedAt)
	if err != nil {
		log.Warn().Err(err).Msg("retention sweep failed")
	} else if len(deleted) > 0 {
		log.Info().Strs("deleted", deleted).Msg("expired backups removed")
	}

	return nil
}
