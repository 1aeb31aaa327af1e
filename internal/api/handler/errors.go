// Package handler implements the admin API endpoints.
package handler

import (
	"errors"
	"net/http"

	"github.com/rs/zerolog"
	"github.com/sutaaa0/cashier-app-sub000/internal/api/response"
	"github.com/sutaaa0/cashier-app-sub000/internal/models"
)

// writeServiceError maps a service error to a status code and a message that
// is safe to show. Diagnostic detail only goes to the log.
//
//nolint:gocyclo // one case per error type
func writeServiceError(w http.ResponseWriter, r *http.Request, err error) {
	var (
		validationErr *models.ValidationError
		refusedErr    *models.ResetRefusedError
		resetErr      *models.ResetExecutionError
		backupErr     *models.BackupExecutionError
	)

	status := http.StatusInternalServerError
	message := "internal server error"

	switch {
	case errors.As(err, &validationErr):
		response.WriteFieldError(w, http.StatusBadRequest, validationErr.Field, validationErr.Message)
		return
	case errors.Is(err, models.ErrInvalidFilename):
		status, message = http.StatusBadRequest, "invalid backup filename"
	case errors.Is(err, models.ErrNotFound):
		status, message = http.StatusNotFound, "backup not found"
	case errors.Is(err, models.ErrConfirmationMismatch):
		status, message = http.StatusForbidden, "confirmation mismatch, no data was changed"
	case errors.Is(err, models.ErrResetInProgress):
		status, message = http.StatusConflict, models.ErrResetInProgress.Error()
	case errors.As(err, &refusedErr):
		status, message = refusedStatus(refusedErr), "reset refused: "+backupMessage(refusedErr.Err)+"; no data was changed"
	case errors.As(err, &resetErr):
		status, message = http.StatusInternalServerError, resetErr.UserMessage()
	case errors.Is(err, models.ErrBackupInProgress):
		status, message = http.StatusConflict, models.ErrBackupInProgress.Error()
	case errors.Is(err, models.ErrBackupTimeout):
		status, message = http.StatusGatewayTimeout, backupMessage(err)
	case errors.As(err, &backupErr):
		status, message = http.StatusInternalServerError, backupMessage(err)
	}

	logger := zerolog.Ctx(r.Context())
	if status >= http.StatusInternalServerError {
		logger.Error().Err(err).Int("status", status).Msg("Request failed")
	} else {
		logger.Debug().Err(err).Int("status", status).Msg("Request rejected")
	}

	response.WriteError(w, status, message)
}

func refusedStatus(err *models.ResetRefusedError) int {
	switch {
	case errors.Is(err, models.ErrBackupInProgress):
		return http.StatusConflict
	case errors.Is(err, models.ErrBackupTimeout):
		return http.StatusGatewayTimeout
	default:
		return http.StatusBadGateway
	}
}

// backupMessage describes a backup failure without the dump tool output.
func backupMessage(err error) string {
	var backupErr *models.BackupExecutionError
	switch {
	case errors.Is(err, models.ErrBackupInProgress):
		return "a backup is already in progress"
	case errors.As(err, &backupErr) && errors.Is(err, models.ErrBackupTimeout):
		return "backup timed out: " + backupErr.Reason
	case errors.As(err, &backupErr):
		return "backup failed: " + backupErr.Reason
	default:
		return "backup failed"
	}
}
