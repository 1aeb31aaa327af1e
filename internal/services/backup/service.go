// Package backup runs database backups and turns them into stored artifacts.
package backup

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"sync"
	"sync/atomic"
	"time"

	"github.com/rs/zerolog"
	"github.com/sutaaa0/cashier-app-sub000/internal/metrics"
	"github.com/sutaaa0/cashier-app-sub000/internal/models"
	"github.com/sutaaa0/cashier-app-sub000/internal/services/postgres"
	"github.com/sutaaa0/cashier-app-sub000/internal/services/store"
)

// Service defines the interface for the backup executor.
type Service interface {
	RunBackup(ctx context.Context, trigger models.Trigger) (*models.BackupArtifact, error)
	Running() bool
}

// ArtifactStore is the part of the store the executor writes through.
type ArtifactStore interface {
	Lock() (unlock func(), err error)
	TempPath(filename string) (string, error)
	Commit(tempPath, filename string) (*models.BackupArtifact, error)
}

// Mirror receives every new artifact for offsite replication.
type Mirror interface {
	Enqueue(artifact models.BackupArtifact)
}

// Notifier reports backup outcomes.
type Notifier interface {
	Notify(ctx context.Context, n models.Notification)
}

// Impl implements the backup Service. At most one backup runs at a time.
type Impl struct {
	postgresSvc postgres.Service
	store       ArtifactStore
	mirror      Mirror
	notifier    Notifier
	database    models.PostgresConfig
	timeout     time.Duration
	clock       func() time.Time
	logger      zerolog.Logger

	mu      sync.Mutex
	running atomic.Bool
}

// New creates a backup executor that dumps with pg_dump.
func New(logger zerolog.Logger, cfg models.BackupConfig, database models.PostgresConfig, artifactStore ArtifactStore) *Impl {
	return NewWithServices(logger, postgres.New(logger, cfg.PgDumpPath), artifactStore, database, cfg.Timeout)
}

// NewWithServices creates a backup executor with custom services (for testing).
func NewWithServices(
	logger zerolog.Logger,
	postgresSvc postgres.Service,
	artifactStore ArtifactStore,
	database models.PostgresConfig,
	timeout time.Duration,
) *Impl {
	return &Impl{
		postgresSvc: postgresSvc,
		store:       artifactStore,
		database:    database,
		timeout:     timeout,
		clock:       time.Now,
		logger:      logger.With().Str("component", "backup").Logger(),
	}
}

// SetMirror enables offsite replication of new artifacts.
func (s *Impl) SetMirror(m Mirror) {
	s.mirror = m
}

// SetNotifier enables outcome notifications.
func (s *Impl) SetNotifier(n Notifier) {
	s.notifier = n
}

// Running reports whether a backup is in progress.
func (s *Impl) Running() bool {
	return s.running.Load()
}

// RunBackup dumps the database into a new artifact. A call made while
// another backup runs fails immediately with ErrBackupInProgress. On any
// failure no artifact is left behind.
func (s *Impl) RunBackup(ctx context.Context, trigger models.Trigger) (*models.BackupArtifact, error) {
	if !s.mu.TryLock() {
		metrics.ObserveBackup(string(trigger), metrics.OutcomeBusy, 0)
		s.logger.Warn().Str("trigger", string(trigger)).Msg("Backup rejected, another backup is in progress")
		return nil, models.ErrBackupInProgress
	}
	defer s.mu.Unlock()

	// Another process, e.g. a one-shot CLI backup, may be dumping into the
	// same directory.
	unlock, err := s.store.Lock()
	if errors.Is(err, models.ErrBackupInProgress) {
		metrics.ObserveBackup(string(trigger), metrics.OutcomeBusy, 0)
		s.logger.Warn().Str("trigger", string(trigger)).Msg("Backup rejected, backup directory is locked by another process")
		return nil, err
	}
	if err != nil {
		metrics.ObserveBackup(string(trigger), metrics.OutcomeFailure, 0)
		return nil, &models.BackupExecutionError{Reason: "could not lock backup directory", Err: err}
	}
	defer unlock()

	s.running.Store(true)
	defer s.running.Store(false)

	startTime := s.clock()
	started := time.Now()
	filename := store.FilenameFor(startTime)
	logger := s.logger.With().Str("trigger", string(trigger)).Str("filename", filename).Logger()

	logger.Info().Msg("Starting backup")

	artifact, err := s.run(ctx, filename)
	duration := time.Since(started)

	note := models.Notification{
		Event:     models.EventBackup,
		Success:   err == nil,
		StartTime: startTime,
		Duration:  duration,
		Trigger:   trigger,
	}

	if err != nil {
		outcome := metrics.OutcomeFailure
		if errors.Is(err, models.ErrBackupTimeout) {
			outcome = metrics.OutcomeTimeout
		}
		metrics.ObserveBackup(string(trigger), outcome, duration)

		event := logger.Error().Err(err).Dur("duration", duration)
		var execErr *models.BackupExecutionError
		if errors.As(err, &execErr) && execErr.Output != "" {
			event = event.Str("pg_dump_stderr", execErr.Output)
		}
		event.Msg("Backup failed")

		note.ErrorMessage = err.Error()
		s.notify(ctx, note)
		return nil, err
	}

	metrics.ObserveBackup(string(trigger), metrics.OutcomeSuccess, duration)
	logger.Info().
		Int64("size_bytes", artifact.SizeBytes).
		Dur("duration", duration).
		Msg("Backup completed")

	note.Filename = artifact.Filename
	note.SizeBytes = artifact.SizeBytes
	s.notify(ctx, note)

	if s.mirror != nil {
		s.mirror.Enqueue(*artifact)
	}

	return artifact, nil
}

func (s *Impl) run(ctx context.Context, filename string) (*models.BackupArtifact, error) {
	tempPath, err := s.store.TempPath(filename)
	if err != nil {
		return nil, &models.BackupExecutionError{Reason: "could not prepare backup file", Err: err}
	}

	dumpCtx := ctx
	if s.timeout > 0 {
		var cancel context.CancelFunc
		dumpCtx, cancel = context.WithTimeout(ctx, s.timeout)
		defer cancel()
	}

	result, err := s.postgresSvc.Dump(dumpCtx, s.database, tempPath)
	if err == nil && result != nil {
		err = result.Error
	}
	if err != nil {
		s.removePartial(tempPath)

		var stderr string
		if result != nil {
			stderr = result.Stderr
		}

		switch {
		case ctx.Err() == nil && errors.Is(dumpCtx.Err(), context.DeadlineExceeded):
			return nil, &models.BackupExecutionError{
				Reason: fmt.Sprintf("database dump did not finish within %s", s.timeout),
				Output: stderr,
				Err:    &models.BackupTimeoutError{Timeout: s.timeout},
			}
		case ctx.Err() != nil:
			return nil, &models.BackupExecutionError{Reason: "backup was cancelled", Output: stderr, Err: ctx.Err()}
		default:
			return nil, &models.BackupExecutionError{Reason: "database dump failed", Output: stderr, Err: err}
		}
	}

	artifact, err := s.store.Commit(tempPath, filename)
	if err != nil {
		s.removePartial(tempPath)
		return nil, &models.BackupExecutionError{Reason: "could not store backup file", Err: err}
	}

	return artifact, nil
}

func (s *Impl) notify(ctx context.Context, n models.Notification) {
	if s.notifier != nil {
		s.notifier.Notify(ctx, n)
	}
}

func (s *Impl) removePartial(path string) {
	if err := os.Remove(path); err != nil && !errors.Is(err, fs.ErrNotExist) {
		s.logger.Warn().Err(err).Str("path", path).Msg("Failed to remove partial dump")
	}
}
