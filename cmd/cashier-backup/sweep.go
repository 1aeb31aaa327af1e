package main

import (
	"time"

	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"
)

var sweepCmd = &cobra.Command{
	Use:   "sweep",
	Short: "Delete backups older than the retention window",
	RunE:  runSweep,
}

func runSweep(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig()
	if err != nil {
		log.Error().Err(err).Msg("failed to load configuration")
		return err
	}

	ctx := cmd.Context()

	a, err := newApp(ctx, log.Logger, cfg)
	if err != nil {
		log.Error().Err(err).Msg("failed to start")
		return err
	}
	defer a.close(false)

	deleted, err := a.scheduler.SweepExpired(ctx, time.Now())
	if err != nil {
		log.Error().Err(err).Msg("retention sweep failed")
		return err
	}

	log.Info().Int("deleted", len(deleted)).Strs("filenames", deleted).Msg("retention sweep completed")
	return nil
}
