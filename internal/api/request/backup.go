package request

// SaveBackupSettings is the body of PUT /backup/settings.
type SaveBackupSettings struct {
	AutoBackupEnabled *bool  `json:"auto_backup_enabled" validate:"required"`
	Schedule          string `json:"schedule" validate:"required,max=100,cron"`
	RetentionDays     int    `json:"retention_days" validate:"required,min=1,max=365"`
	Destination       string `json:"destination" validate:"omitempty,oneof=local"`
}
