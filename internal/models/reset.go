package models

import "time"

// ResetSettings is the persisted reset configuration.
type ResetSettings struct {
	ConfirmationCode   string    `json:"confirmation_code"`
	PreserveMasterData bool      `json:"preserve_master_data"`
	UpdatedAt          time.Time `json:"updated_at"`
}

// ResetRequest is a request to clear the cashier data.
type ResetRequest struct {
	PreserveMasterData *bool // nil uses the saved setting
	ConfirmationToken  string
}

// ResetResult is returned by a completed reset.
type ResetResult struct {
	OperationID        string           `json:"operation_id"`
	BackupFilename     string           `json:"backup_filename"`
	PreserveMasterData bool             `json:"preserve_master_data"`
	RowsDeleted        map[string]int64 `json:"rows_deleted"`
	Summary            string           `json:"summary"`
	CompletedAt        time.Time        `json:"completed_at"`
}

// ResetLogEntry is an append-only record of a completed reset.
type ResetLogEntry struct {
	ID             int64     `json:"id"`
	CreatedAt      time.Time `json:"created_at"`
	Content        string    `json:"content"`
	BackupFilename string    `json:"backup_filename"`
}

// ResetState is the position of the reset controller state machine.
type ResetState string

const (
	ResetIdle                 ResetState = "idle"
	ResetAwaitingConfirmation ResetState = "awaiting_confirmation"
	ResetRunning              ResetState = "running"
	ResetCompleted            ResetState = "completed"
	ResetFailed               ResetState = "failed"
)

// ResetStatus is the reset controller position plus the last finished run.
type ResetStatus struct {
	State              ResetState `json:"state"`
	LastOutcome        ResetState `json:"last_outcome,omitempty"`
	LastFinishedAt     *time.Time `json:"last_finished_at,omitempty"`
	LastBackupFilename string     `json:"last_backup_filename,omitempty"`
	LastError          string     `json:"last_error,omitempty"`
}
