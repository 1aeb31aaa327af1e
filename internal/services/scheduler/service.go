// Package scheduler triggers scheduled backups and sweeps expired artifacts.
package scheduler

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/robfig/cron/v3"
	"github.com/rs/zerolog"
	"github.com/sutaaa0/cashier-app-sub000/internal/metrics"
	"github.com/sutaaa0/cashier-app-sub000/internal/models"
)

// SettingsReader provides the persisted backup settings.
type SettingsReader interface {
	GetBackupSettings(ctx context.Context) (*models.BackupSettings, error)
}

// BackupRunner executes a single backup.
type BackupRunner interface {
	RunBackup(ctx context.Context, trigger models.Trigger) (*models.BackupArtifact, error)
}

// ArtifactStore lists and deletes stored artifacts.
type ArtifactStore interface {
	List() ([]models.BackupArtifact, error)
	Delete(filename string) error
}

// Service defines the interface for the backup scheduler.
type Service interface {
	Evaluate(ctx context.Context, now time.Time) (bool, error)
	SweepExpired(ctx context.Context, now time.Time) ([]string, error)
	NextRun(ctx context.Context, now time.Time) (*time.Time, error)
	Run(ctx context.Context) error
}

// Impl implements the scheduler Service.
type Impl struct {
	settings      SettingsReader
	backups       BackupRunner
	store         ArtifactStore
	location      *time.Location
	pollInterval  time.Duration
	sweepInterval time.Duration
	clock         func() time.Time
	logger        zerolog.Logger

	mu        sync.Mutex
	lastFired time.Time
	goodExpr  string
	goodSched cron.Schedule
}

// New creates a new scheduler.
func New(logger zerolog.Logger, cfg models.BackupConfig, settings SettingsReader, backups BackupRunner, store ArtifactStore) *Impl {
	loc := cfg.Location
	if loc == nil {
		loc = time.Local
	}
	poll := cfg.PollInterval
	if poll <= 0 {
		poll = 30 * time.Second
	}
	sweep := cfg.SweepInterval
	if sweep <= 0 {
		sweep = time.Hour
	}
	return &Impl{
		settings:      settings,
		backups:       backups,
		store:         store,
		location:      loc,
		pollInterval:  poll,
		sweepInterval: sweep,
		clock:         time.Now,
		logger:        logger.With().Str("component", "scheduler").Logger(),
	}
}

// Evaluate fires a scheduled backup when auto backup is enabled and now falls
// in a minute selected by the schedule. A minute fires at most once. It
// reports whether a backup was attempted.
func (s *Impl) Evaluate(ctx context.Context, now time.Time) (bool, error) {
	settings, err := s.settings.GetBackupSettings(ctx)
	if err != nil {
		return false, fmt.Errorf("loading backup settings: %w", err)
	}
	if !settings.AutoBackupEnabled {
		return false, nil
	}

	sched, err := s.schedule(settings.Schedule)
	if err != nil {
		return false, err
	}

	now = now.In(s.location)
	if !Matches(sched, now) {
		return false, nil
	}

	minute := now.Truncate(time.Minute)
	s.mu.Lock()
	if s.lastFired.Equal(minute) {
		s.mu.Unlock()
		return false, nil
	}
	s.lastFired = minute
	s.mu.Unlock()

	s.logger.Info().Time("slot", minute).Str("schedule", settings.Schedule).Msg("Running scheduled backup")

	artifact, err := s.backups.RunBackup(ctx, models.TriggerScheduled)
	if err != nil {
		s.logger.Error().Err(err).Time("slot", minute).Msg("Scheduled backup failed, next attempt at the next scheduled time")
		return true, err
	}

	s.logger.Info().
		Str("filename", artifact.Filename).
		Int64("size_bytes", artifact.SizeBytes).
		Msg("Scheduled backup completed")
	return true, nil
}

// SweepExpired deletes every artifact older than the configured retention
// period and returns the deleted filenames. Deletion failures are logged and
// joined into the returned error; the sweep continues past them.
func (s *Impl) SweepExpired(ctx context.Context, now time.Time) ([]string, error) {
	settings, err := s.settings.GetBackupSettings(ctx)
	if err != nil {
		return nil, fmt.Errorf("loading backup settings: %w", err)
	}

	artifacts, err := s.store.List()
	if err != nil {
		return nil, fmt.Errorf("listing artifacts: %w", err)
	}

	maxAge := time.Duration(settings.RetentionDays) * 24 * time.Hour
	var deleted []string
	var errs []error
	for _, artifact := range artifacts {
		if now.Sub(artifact.CreatedAt) <= maxAge {
			continue
		}

		if err := s.store.Delete(artifact.Filename); err != nil {
			if errors.Is(err, models.ErrNotFound) {
				continue
			}
			s.logger.Warn().Err(err).Str("filename", artifact.Filename).Msg("Failed to delete expired backup")
			errs = append(errs, fmt.Errorf("deleting %s: %w", artifact.Filename, err))
			continue
		}

		metrics.ArtifactDeleted(metrics.ReasonRetention)
		deleted = append(deleted, artifact.Filename)
		s.logger.Info().
			Str("filename", artifact.Filename).
			Time("created_at", artifact.CreatedAt).
			Int("retention_days", settings.RetentionDays).
			Msg("Deleted expired backup")
	}

	return deleted, errors.Join(errs...)
}

// NextRun returns the next scheduled backup time after now, or nil when auto
// backup is disabled.
func (s *Impl) NextRun(ctx context.Context, now time.Time) (*time.Time, error) {
	settings, err := s.settings.GetBackupSettings(ctx)
	if err != nil {
		return nil, fmt.Errorf("loading backup settings: %w", err)
	}
	if !settings.AutoBackupEnabled {
		return nil, nil
	}

	sched, err := s.schedule(settings.Schedule)
	if err != nil {
		return nil, err
	}

	next := sched.Next(now.In(s.location))
	return &next, nil
}

// Run evaluates the schedule every poll interval and sweeps expired
// artifacts every sweep interval until ctx is cancelled. A sweep also runs
// once at startup.
func (s *Impl) Run(ctx context.Context) error {
	s.logger.Info().
		Dur("poll_interval", s.pollInterval).
		Dur("sweep_interval", s.sweepInterval).
		Str("timezone", s.location.String()).
		Msg("Backup scheduler started")

	s.sweep(ctx)

	poll := time.NewTicker(s.pollInterval)
	defer poll.Stop()
	sweep := time.NewTicker(s.sweepInterval)
	defer sweep.Stop()

	for {
		select {
		case <-ctx.Done():
			s.logger.Info().Msg("Backup scheduler stopped")
			return nil
		case <-poll.C:
			if _, err := s.Evaluate(ctx, s.clock()); err != nil && ctx.Err() == nil {
				s.logger.Error().Err(err).Msg("Schedule evaluation failed")
			}
		case <-sweep.C:
			s.sweep(ctx)
		}
	}
}

func (s *Impl) sweep(ctx context.Context) {
	deleted, err := s.SweepExpired(ctx, s.clock())
	if err != nil && ctx.Err() == nil {
		s.logger.Error().Err(err).Msg("Retention sweep failed")
	}
	if len(deleted) > 0 {
		s.logger.Info().Int("deleted", len(deleted)).Msg("Retention sweep completed")
	}
}

// schedule parses expr, falling back to the last schedule that parsed
// successfully when expr is invalid.
func (s *Impl) schedule(expr string) (cron.Schedule, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if expr == s.goodExpr && s.goodSched != nil {
		return s.goodSched, nil
	}

	sched, err := ParseSchedule(expr)
	if err != nil {
		if s.goodSched != nil {
			s.logger.Warn().Err(err).Str("fallback", s.goodExpr).Msg("Stored schedule is invalid, using last valid schedule")
			return s.goodSched, nil
		}
		return nil, err
	}

	s.goodExpr = expr
	s.goodSched = sched
	return sched, nil
}
