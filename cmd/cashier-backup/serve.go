package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"
	"github.com/sutaaa0/cashier-app-sub000/internal/api"
	"github.com/sutaaa0/cashier-app-sub000/internal/db"
	"golang.org/x/sync/errgroup"
)

const shutdownTimeout = 15 * time.Second

var skipMigrate bool

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Run the admin API and the backup scheduler",
	Long: `Run the long-lived backup manager:
1. Apply pending database migrations (unless --skip-migrate)
2. Serve the admin API, /healthz and /metrics
3. Fire scheduled backups and sweep expired ones
4. Mirror new backups offsite and send notifications (if configured)`,
	RunE: runServe,
}

func init() {
	serveCmd.Flags().BoolVar(&skipMigrate, "skip-migrate", false, "do not apply database migrations on start")
}

func runServe(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig()
	if err != nil {
		log.Error().Err(err).Msg("failed to load configuration")
		return err
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if !skipMigrate {
		if err := db.RunMigrations(cfg.Database.URL()); err != nil {
			log.Error().Err(err).Msg("failed to apply migrations")
			return err
		}
	}

	a, err := newApp(ctx, log.Logger, cfg)
	if err != nil {
		log.Error().Err(err).Msg("failed to start")
		return err
	}
	defer a.close(false)

	// Only the long-running server removes partial dumps left by a crash.
	if err := a.store.Cleanup(); err != nil {
		log.Warn().Err(err).Msg("could not remove leftover partial backups")
	}

	srv := &http.Server{
		Addr: cfg.Server.ListenAddr,
		Handler: api.NewServer(log.Logger, cfg.Server, api.Services{
			Settings:  a.settings,
			Backups:   a.backups,
			Store:     a.store,
			Scheduler: a.scheduler,
			Reset:     a.reset,
			DB:        a.pool,
		}),
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
		IdleTimeout:  120 * time.Second,
	}

	g, gctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		log.Info().Str("addr", srv.Addr).Str("backup_dir", cfg.Backup.Dir).Msg("admin API listening")
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	})

	g.Go(func() error {
		return a.scheduler.Run(gctx)
	})

	g.Go(func() error {
		<-gctx.Done()
		log.Info().Msg("shutting down")

		shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		return srv.Shutdown(shutdownCtx)
	})

	if err := g.Wait(); err != nil {
		log.Error().Err(err).Msg("server stopped with error")
		return err
	}

	log.Info().Msg("stopped")
	return nil
}
