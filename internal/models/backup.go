package models

import "time"

// DestinationLocal stores artifacts in the local backup directory.
const DestinationLocal = "local"

// BackupSettings is the persisted, user-editable backup configuration.
type BackupSettings struct {
	AutoBackupEnabled bool      `json:"auto_backup_enabled"`
	Schedule          string    `json:"schedule"`
	RetentionDays     int       `json:"retention_days"`
	Destination       string    `json:"destination"`
	UpdatedAt         time.Time `json:"updated_at"`
}

// BackupArtifact describes a single backup file.
type BackupArtifact struct {
	Filename    string    `json:"filename"`
	SizeBytes   int64     `json:"size_bytes"`
	CreatedAt   time.Time `json:"created_at"`
	StoragePath string    `json:"-"`
}

// Trigger indicates what initiated a backup.
type Trigger string

const (
	TriggerManual    Trigger = "manual"
	TriggerScheduled Trigger = "scheduled"
	TriggerPreReset  Trigger = "pre_reset"
)

// BackupStatus summarizes the backup subsystem for the admin dashboard.
type BackupStatus struct {
	Settings       BackupSettings  `json:"settings"`
	Running        bool            `json:"running"`
	NextRun        *time.Time      `json:"next_run,omitempty"`
	ArtifactCount  int             `json:"artifact_count"`
	TotalSizeBytes int64           `json:"total_size_bytes"`
	LatestArtifact *BackupArtifact `json:"latest_artifact,omitempty"`
}
