package main

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/rs/zerolog"
	"github.com/sutaaa0/cashier-app-sub000/internal/config"
	"github.com/sutaaa0/cashier-app-sub000/internal/db"
	"github.com/sutaaa0/cashier-app-sub000/internal/metrics"
	"github.com/sutaaa0/cashier-app-sub000/internal/models"
	"github.com/sutaaa0/cashier-app-sub000/internal/services/backup"
	"github.com/sutaaa0/cashier-app-sub000/internal/services/offsite"
	"github.com/sutaaa0/cashier-app-sub000/internal/services/reset"
	"github.com/sutaaa0/cashier-app-sub000/internal/services/scheduler"
	"github.com/sutaaa0/cashier-app-sub000/internal/services/settings"
	"github.com/sutaaa0/cashier-app-sub000/internal/services/store"
	"github.com/sutaaa0/cashier-app-sub000/internal/services/telegram"
)

// app holds the wired services shared by the subcommands.
type app struct {
	cfg       *models.AppConfig
	pool      *pgxpool.Pool
	store     *store.Impl
	settings  *settings.Impl
	backups   *backup.Impl
	scheduler *scheduler.Impl
	reset     *reset.Impl
	mirror    *offsite.Mirror // nil without offsite config
}

// loadConfig reads and validates the file given by --config.
func loadConfig() (*models.AppConfig, error) {
	if configFile == "" {
		return nil, fmt.Errorf("config file is required")
	}

	cfg, err := config.NewParser().LoadFile(configFile)
	if err != nil {
		return nil, fmt.Errorf("load config %s: %w", configFile, err)
	}

	if err := config.Validate(cfg); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}

	return cfg, nil
}

// newApp connects to the database and wires every service.
func newApp(ctx context.Context, logger zerolog.Logger, cfg *models.AppConfig) (*app, error) {
	artifactStore, err := store.New(logger, cfg.Backup.Dir)
	if err != nil {
		return nil, err
	}

	pool, err := db.NewPool(ctx, cfg.Database.URL())
	if err != nil {
		return nil, err
	}
	metrics.RegisterPgxPoolMetrics(pool)

	settingsSvc := settings.New(logger, pool, cfg.Backup.Defaults, models.ResetSettings{
		ConfirmationCode:   cfg.Reset.DefaultConfirmationCode,
		PreserveMasterData: cfg.Reset.DefaultPreserveMaster,
	})

	backups := backup.New(logger, cfg.Backup, cfg.Database, artifactStore)

	var mirror *offsite.Mirror
	if cfg.Offsite != nil {
		mirror = offsite.NewMirror(logger, offsite.New(logger), *cfg.Offsite)
		backups.SetMirror(mirror)
	}

	resetSvc, err := reset.New(logger, cfg.Reset, settingsSvc, backups, reset.NewPostgresStore(pool))
	if err != nil {
		pool.Close()
		return nil, err
	}

	if cfg.Telegram != nil {
		notifier := telegram.NewNotifier(logger, telegram.New(logger), *cfg.Telegram)
		backups.SetNotifier(notifier)
		resetSvc.SetNotifier(notifier)
	}

	return &app{
		cfg:       cfg,
		pool:      pool,
		store:     artifactStore,
		settings:  settingsSvc,
		backups:   backups,
		scheduler: scheduler.New(logger, cfg.Backup, settingsSvc, backups, artifactStore),
		reset:     resetSvc,
		mirror:    mirror,
	}, nil
}

// close waits for queued offsite copies when wait is set, cancels the rest
// and closes the pool.
func (a *app) close(wait bool) {
	if a.mirror != nil {
		if wait {
			a.mirror.Wait()
		}
		a.mirror.Close()
	}
	a.pool.Close()
}
