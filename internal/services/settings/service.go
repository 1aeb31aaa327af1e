// Package settings persists the user-editable backup and reset settings.
package settings

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"

	"github.com/jackc/pgx/v5"
	"github.com/rs/zerolog"
	"github.com/sutaaa0/cashier-app-sub000/internal/db"
	"github.com/sutaaa0/cashier-app-sub000/internal/models"
	"github.com/sutaaa0/cashier-app-sub000/internal/services/scheduler"
)

// Retention bounds in days.
const (
	MinRetentionDays = 1
	MaxRetentionDays = 365
)

const maxConfirmationCodeLen = 64

// Service defines the interface for settings persistence.
type Service interface {
	GetBackupSettings(ctx context.Context) (*models.BackupSettings, error)
	SaveBackupSettings(ctx context.Context, s models.BackupSettings) (*models.BackupSettings, error)
	GetResetSettings(ctx context.Context) (*models.ResetSettings, error)
	SaveResetSettings(ctx context.Context, s models.ResetSettings) (*models.ResetSettings, error)
}

// Impl stores both settings as singleton rows (id = 1). Missing rows are
// created from the configured defaults on first access.
type Impl struct {
	db             db.DB
	backupDefaults models.BackupSettings
	resetDefaults  models.ResetSettings
	logger         zerolog.Logger

	mu sync.Mutex
}

// New creates a new settings service.
func New(logger zerolog.Logger, database db.DB, backupDefaults models.BackupSettings, resetDefaults models.ResetSettings) *Impl {
	if backupDefaults.Destination == "" {
		backupDefaults.Destination = models.DestinationLocal
	}
	return &Impl{
		db:             database,
		backupDefaults: backupDefaults,
		resetDefaults:  resetDefaults,
		logger:         logger.With().Str("component", "settings").Logger(),
	}
}

const selectBackupSettings = `SELECT auto_backup_enabled, schedule, retention_days, destination, updated_at
FROM backup_settings WHERE id = 1`

const insertBackupDefaults = `INSERT INTO backup_settings (id, auto_backup_enabled, schedule, retention_days, destination)
VALUES (1, $1, $2, $3, $4)
ON CONFLICT (id) DO NOTHING`

const upsertBackupSettings = `INSERT INTO backup_settings (id, auto_backup_enabled, schedule, retention_days, destination, updated_at)
VALUES (1, $1, $2, $3, $4, now())
ON CONFLICT (id) DO UPDATE SET
	auto_backup_enabled = EXCLUDED.auto_backup_enabled,
	schedule = EXCLUDED.schedule,
	retention_days = EXCLUDED.retention_days,
	destination = EXCLUDED.destination,
	updated_at = EXCLUDED.updated_at
RETURNING auto_backup_enabled, schedule, retention_days, destination, updated_at`

const selectResetSettings = `SELECT confirmation_code, preserve_master_data, updated_at
FROM reset_settings WHERE id = 1`

const insertResetDefaults = `INSERT INTO reset_settings (id, confirmation_code, preserve_master_data)
VALUES (1, $1, $2)
ON CONFLICT (id) DO NOTHING`

const upsertResetSettings = `INSERT INTO reset_settings (id, confirmation_code, preserve_master_data, updated_at)
VALUES (1, $1, $2, now())
ON CONFLICT (id) DO UPDATE SET
	confirmation_code = EXCLUDED.confirmation_code,
	preserve_master_data = EXCLUDED.preserve_master_data,
	updated_at = EXCLUDED.updated_at
RETURNING confirmation_code, preserve_master_data, updated_at`

// GetBackupSettings returns the stored backup settings.
func (s *Impl) GetBackupSettings(ctx context.Context) (*models.BackupSettings, error) {
	out, err := s.scanBackup(s.db.QueryRow(ctx, selectBackupSettings))
	if err == nil {
		return out, nil
	}
	if !errors.Is(err, pgx.ErrNoRows) {
		return nil, fmt.Errorf("get backup settings: %w", err)
	}

	d := s.backupDefaults
	if _, err := s.db.Exec(ctx, insertBackupDefaults, d.AutoBackupEnabled, d.Schedule, d.RetentionDays, d.Destination); err != nil {
		return nil, fmt.Errorf("insert default backup settings: %w", err)
	}
	s.logger.Info().Msg("Created default backup settings")

	out, err = s.scanBackup(s.db.QueryRow(ctx, selectBackupSettings))
	if err != nil {
		return nil, fmt.Errorf("get backup settings: %w", err)
	}
	return out, nil
}

// SaveBackupSettings validates and stores in. Concurrent saves are
// serialized; the last one wins.
func (s *Impl) SaveBackupSettings(ctx context.Context, in models.BackupSettings) (*models.BackupSettings, error) {
	in.Schedule = strings.TrimSpace(in.Schedule)
	if in.Destination == "" {
		in.Destination = models.DestinationLocal
	}
	if err := ValidateBackupSettings(in); err != nil {
		return nil, err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	out, err := s.scanBackup(s.db.QueryRow(ctx, upsertBackupSettings, in.AutoBackupEnabled, in.Schedule, in.RetentionDays, in.Destination))
	if err != nil {
		return nil, fmt.Errorf("save backup settings: %w", err)
	}

	s.logger.Info().
		Bool("auto_backup_enabled", out.AutoBackupEnabled).
		Str("schedule", out.Schedule).
		Int("retention_days", out.RetentionDays).
		Msg("Backup settings saved")

	return out, nil
}

// GetResetSettings returns the stored reset settings.
func (s *Impl) GetResetSettings(ctx context.Context) (*models.ResetSettings, error) {
	out, err := s.scanReset(s.db.QueryRow(ctx, selectResetSettings))
	if err == nil {
		return out, nil
	}
	if !errors.Is(err, pgx.ErrNoRows) {
		return nil, fmt.Errorf("get reset settings: %w", err)
	}

	d := s.resetDefaults
	if _, err := s.db.Exec(ctx, insertResetDefaults, d.ConfirmationCode, d.PreserveMasterData); err != nil {
		return nil, fmt.Errorf("insert default reset settings: %w", err)
	}
	s.logger.Info().Msg("Created default reset settings")

	out, err = s.scanReset(s.db.QueryRow(ctx, selectResetSettings))
	if err != nil {
		return nil, fmt.Errorf("get reset settings: %w", err)
	}
	return out, nil
}

// SaveResetSettings validates and stores in.
func (s *Impl) SaveResetSettings(ctx context.Context, in models.ResetSettings) (*models.ResetSettings, error) {
	in.ConfirmationCode = strings.TrimSpace(in.ConfirmationCode)
	if err := ValidateResetSettings(in); err != nil {
		return nil, err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	out, err := s.scanReset(s.db.QueryRow(ctx, upsertResetSettings, in.ConfirmationCode, in.PreserveMasterData))
	if err != nil {
		return nil, fmt.Errorf("save reset settings: %w", err)
	}

	s.logger.Info().Bool("preserve_master_data", out.PreserveMasterData).Msg("Reset settings saved")
	return out, nil
}

func (s *Impl) scanBackup(row pgx.Row) (*models.BackupSettings, error) {
	var out models.BackupSettings
	if err := row.Scan(&out.AutoBackupEnabled, &out.Schedule, &out.RetentionDays, &out.Destination, &out.UpdatedAt); err != nil {
		return nil, err
	}
	return &out, nil
}

func (s *Impl) scanReset(row pgx.Row) (*models.ResetSettings, error) {
	var out models.ResetSettings
	if err := row.Scan(&out.ConfirmationCode, &out.PreserveMasterData, &out.UpdatedAt); err != nil {
		return nil, err
	}
	return &out, nil
}

// ValidateBackupSettings checks the user-editable backup fields.
func ValidateBackupSettings(in models.BackupSettings) error {
	if _, err := scheduler.ParseSchedule(in.Schedule); err != nil {
		return models.NewValidationError("schedule", "must be a 5-field cron expression (minute hour day-of-month month day-of-week)")
	}
	if in.RetentionDays < MinRetentionDays || in.RetentionDays > MaxRetentionDays {
		return models.NewValidationError("retention_days", "must be between %d and %d", MinRetentionDays, MaxRetentionDays)
	}
	if in.Destination != models.DestinationLocal {
		return models.NewValidationError("destination", "unsupported destination %q", in.Destination)
	}
	return nil
}

// ValidateResetSettings checks the user-editable reset fields.
func ValidateResetSettings(in models.ResetSettings) error {
	code := strings.TrimSpace(in.ConfirmationCode)
	if code == "" {
		return models.NewValidationError("confirmation_code", "must not be empty")
	}
	if len(code) > maxConfirmationCodeLen {
		return models.NewValidationError("confirmation_code", "must be at most %d characters", maxConfirmationCodeLen)
	}
	return nil
}
