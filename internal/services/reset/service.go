// Package reset clears the cashier's transactional data after a confirmed
// request, always taking a backup first.
package reset

import (
	"context"
	"crypto/subtle"
	"fmt"
	"os"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"github.com/sutaaa0/cashier-app-sub000/internal/metrics"
	"github.com/sutaaa0/cashier-app-sub000/internal/models"
)

// Log listing bounds.
const (
	DefaultLogLimit = 100
	MaxLogLimit     = 1000
)

// runTimeout bounds the destructive phase once it has started.
const runTimeout = 10 * time.Minute

// Service defines the interface for the reset controller.
type Service interface {
	Reset(ctx context.Context, req models.ResetRequest) (*models.ResetResult, error)
	ListLogs(ctx context.Context, limit int) ([]models.ResetLogEntry, error)
	Status() models.ResetStatus
}

// SettingsReader provides the saved reset settings.
type SettingsReader interface {
	GetResetSettings(ctx context.Context) (*models.ResetSettings, error)
}

// BackupRunner takes the pre-reset backup.
type BackupRunner interface {
	RunBackup(ctx context.Context, trigger models.Trigger) (*models.BackupArtifact, error)
}

// Notifier reports reset outcomes.
type Notifier interface {
	Notify(ctx context.Context, n models.Notification)
}

// Impl implements the reset Service.
type Impl struct {
	settings SettingsReader
	backups  BackupRunner
	data     DataStore
	notifier Notifier
	cfg      models.ResetConfig
	baseline string
	clock    func() time.Time
	newID    func() string
	logger   zerolog.Logger

	mu     sync.Mutex
	status models.ResetStatus
}

// New creates a reset controller. The baseline SQL file, if configured, is
// read once here.
func New(
	logger zerolog.Logger,
	cfg models.ResetConfig,
	settings SettingsReader,
	backups BackupRunner,
	data DataStore,
) (*Impl, error) {
	var baseline string
	if cfg.BaselineSQLPath != "" {
		content, err := os.ReadFile(cfg.BaselineSQLPath)
		if err != nil {
			return nil, fmt.Errorf("read baseline sql: %w", err)
		}
		baseline = string(content)
	}

	return &Impl{
		settings: settings,
		backups:  backups,
		data:     data,
		cfg:      cfg,
		baseline: baseline,
		clock:    time.Now,
		newID:    uuid.NewString,
		logger:   logger.With().Str("component", "reset").Logger(),
		status:   models.ResetStatus{State: models.ResetIdle},
	}, nil
}

// SetNotifier enables outcome notifications.
func (s *Impl) SetNotifier(n Notifier) {
	s.notifier = n
}

// Status returns the current state and the last finished run.
func (s *Impl) Status() models.ResetStatus {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.status
}

// ListLogs returns reset log entries, newest first.
func (s *Impl) ListLogs(ctx context.Context, limit int) ([]models.ResetLogEntry, error) {
	switch {
	case limit <= 0:
		limit = DefaultLogLimit
	case limit > MaxLogLimit:
		limit = MaxLogLimit
	}
	return s.data.ListLogs(ctx, limit)
}

// Reset runs one confirmed reset. The token is checked first, then a
// pre-reset backup is taken; only when it succeeded is any data touched.
// Errors:
//   - ErrResetInProgress when another reset is running
//   - ErrConfirmationMismatch when the token is wrong, nothing changed
//   - *ResetRefusedError when the pre-reset backup failed, nothing changed
//   - *ResetExecutionError when the destructive phase failed and was rolled back
func (s *Impl) Reset(ctx context.Context, req models.ResetRequest) (*models.ResetResult, error) {
	if !s.transition(models.ResetIdle, models.ResetAwaitingConfirmation) {
		metrics.ObserveReset(metrics.OutcomeBusy)
		return nil, models.ErrResetInProgress
	}

	operationID := s.newID()
	logger := s.logger.With().Str("operation_id", operationID).Logger()
	startTime := s.clock()
	started := time.Now()

	saved, err := s.settings.GetResetSettings(ctx)
	if err != nil {
		s.setIdle()
		return nil, fmt.Errorf("load reset settings: %w", err)
	}

	if !tokenMatches(req.ConfirmationToken, saved.ConfirmationCode) {
		s.setIdle()
		metrics.ObserveReset(metrics.OutcomeMismatch)
		logger.Warn().Msg("Reset rejected, confirmation mismatch")
		return nil, models.ErrConfirmationMismatch
	}

	preserve := saved.PreserveMasterData
	if req.PreserveMasterData != nil {
		preserve = *req.PreserveMasterData
	}
	logger = logger.With().Bool("preserve_master_data", preserve).Logger()
	logger.Info().Msg("Reset confirmed, taking pre-reset backup")

	note := models.Notification{Event: models.EventReset, StartTime: startTime, Trigger: models.TriggerPreReset}

	artifact, err := s.backups.RunBackup(ctx, models.TriggerPreReset)
	if err != nil {
		refused := &models.ResetRefusedError{Err: err}
		s.finish(models.ResetFailed, "", "pre-reset backup failed, no data was changed")
		metrics.ObserveReset(metrics.OutcomeRefused)
		logger.Error().Err(err).Msg("Reset refused, pre-reset backup failed")

		note.Duration = time.Since(started)
		note.ErrorMessage = refused.Error()
		s.notify(ctx, note)
		return nil, refused
	}

	// Only a successful backup leads into running.
	s.transition(models.ResetAwaitingConfirmation, models.ResetRunning)
	logger = logger.With().Str("backup_filename", artifact.Filename).Logger()
	logger.Warn().Msg("Clearing data")

	plan := Plan{
		Tables:             s.tables(preserve),
		PreserveMasterData: preserve,
		BackupFilename:     artifact.Filename,
	}
	if !preserve {
		plan.BaselineSQL = s.baseline
	}

	runCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), runTimeout)
	defer cancel()

	outcome, err := s.data.Apply(runCtx, plan)
	note.Filename = artifact.Filename
	note.SizeBytes = artifact.SizeBytes
	note.Duration = time.Since(started)

	if err != nil {
		execErr := &models.ResetExecutionError{BackupFilename: artifact.Filename, Err: err}
		s.finish(models.ResetFailed, artifact.Filename, execErr.UserMessage())
		metrics.ObserveReset(metrics.OutcomeFailure)
		logger.Error().Err(err).Msg("Reset failed, transaction rolled back")

		note.ErrorMessage = execErr.UserMessage()
		s.notify(ctx, note)
		return nil, execErr
	}

	s.finish(models.ResetCompleted, artifact.Filename, "")
	metrics.ObserveReset(metrics.OutcomeSuccess)
	logger.Info().
		Int64("log_id", outcome.Log.ID).
		Dur("duration", note.Duration).
		Msg("Reset completed")

	note.Success = true
	note.Summary = outcome.Log.Content
	s.notify(ctx, note)

	return &models.ResetResult{
		OperationID:        operationID,
		BackupFilename:     artifact.Filename,
		PreserveMasterData: preserve,
		RowsDeleted:        outcome.RowsDeleted,
		Summary:            outcome.Log.Content,
		CompletedAt:        outcome.Log.CreatedAt,
	}, nil
}

func (s *Impl) tables(preserve bool) []string {
	tables := append([]string{}, s.cfg.TransactionalTables...)
	if !preserve {
		tables = append(tables, s.cfg.MasterTables...)
	}
	return tables
}

// transition moves from one state to another and reports whether the
// current state was from.
func (s *Impl) transition(from, to models.ResetState) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.status.State != from {
		return false
	}
	s.status.State = to
	return true
}

func (s *Impl) setIdle() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.status.State = models.ResetIdle
}

// finish records a terminal outcome and returns to idle.
func (s *Impl) finish(outcome models.ResetState, backupFilename, message string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	now := s.clock()
	s.status = models.ResetStatus{
		State:              models.ResetIdle,
		LastOutcome:        outcome,
		LastFinishedAt:     &now,
		LastBackupFilename: backupFilename,
		LastError:          message,
	}
}

func (s *Impl) notify(ctx context.Context, n models.Notification) {
	if s.notifier != nil {
		s.notifier.Notify(ctx, n)
	}
}

func tokenMatches(token, code string) bool {
	if code == "" {
		return false
	}
	return subtle.ConstantTimeCompare([]byte(token), []byte(code)) == 1
}
