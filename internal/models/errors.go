package models

import (
	"errors"
	"fmt"
	"time"
)

var (
	// ErrNotFound is returned for artifact operations on a file that does not exist.
	ErrNotFound = errors.New("backup artifact not found")
	// ErrInvalidFilename is returned when a filename fails the allow-list check.
	ErrInvalidFilename = errors.New("invalid backup filename")
	// ErrArtifactExists is returned instead of overwriting an existing artifact.
	ErrArtifactExists = errors.New("backup artifact already exists")
	// ErrBackupInProgress is returned when a backup is requested while another one runs.
	ErrBackupInProgress = errors.New("a backup is already in progress, try again shortly")
	// ErrBackupTimeout is wrapped by BackupTimeoutError.
	ErrBackupTimeout = errors.New("backup timed out")
	// ErrConfirmationMismatch is returned when the reset token does not match the configured code.
	ErrConfirmationMismatch = errors.New("confirmation mismatch")
	// ErrResetInProgress is returned when a reset is requested while another one runs.
	ErrResetInProgress = errors.New("a reset is already in progress")
)

// ValidationError reports malformed input for a single field.
type ValidationError struct {
	Field   string
	Message string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("%s: %s", e.Field, e.Message)
}

// NewValidationError creates a ValidationError.
func NewValidationError(field, format string, args ...any) *ValidationError {
	return &ValidationError{Field: field, Message: fmt.Sprintf(format, args...)}
}

// BackupExecutionError reports a failed database dump. Output holds the dump
// tool's diagnostic output and is only meant for server-side logs.
type BackupExecutionError struct {
	Reason string
	Output string
	Err    error
}

func (e *BackupExecutionError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("backup failed: %s: %v", e.Reason, e.Err)
	}
	return "backup failed: " + e.Reason
}

func (e *BackupExecutionError) Unwrap() error {
	return e.Err
}

// BackupTimeoutError reports a dump that exceeded its time budget. It is
// always wrapped in a BackupExecutionError.
type BackupTimeoutError struct {
	Timeout time.Duration
}

func (e *BackupTimeoutError) Error() string {
	return fmt.Sprintf("backup timed out after %s", e.Timeout)
}

func (e *BackupTimeoutError) Unwrap() error {
	return ErrBackupTimeout
}

// ResetRefusedError reports a reset that never started because the
// pre-reset backup failed. No data was changed.
type ResetRefusedError struct {
	Err error
}

func (e *ResetRefusedError) Error() string {
	return fmt.Sprintf("reset refused, pre-reset backup failed: %v", e.Err)
}

func (e *ResetRefusedError) Unwrap() error {
	return e.Err
}

// ResetExecutionError reports a failure in the destructive phase. The
// pre-reset backup named BackupFilename exists.
type ResetExecutionError struct {
	BackupFilename string
	Err            error
}

func (e *ResetExecutionError) Error() string {
	return fmt.Sprintf("reset failed after backup %s: %v", e.BackupFilename, e.Err)
}

func (e *ResetExecutionError) Unwrap() error {
	return e.Err
}

// UserMessage is safe to show to the operator.
func (e *ResetExecutionError) UserMessage() string {
	return fmt.Sprintf("reset failed and was rolled back; your data is safe, a backup named %s was taken before the failed reset attempt", e.BackupFilename)
}
