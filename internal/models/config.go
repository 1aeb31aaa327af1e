// Package models contains the data structures shared by the cashier backup services.
package models

import "time"

// AppConfig holds the complete configuration of the backup manager.
type AppConfig struct {
	Server   ServerConfig
	Database PostgresConfig
	Backup   BackupConfig
	Reset    ResetConfig
	Offsite  *OffsiteConfig  // nil if not configured
	Telegram *TelegramConfig // nil if not configured
}

// ServerConfig holds HTTP API settings.
type ServerConfig struct {
	ListenAddr   string
	AdminToken   string // optional; when set the API requires a bearer token
	ReadTimeout  time.Duration
	WriteTimeout time.Duration // must cover a full dump streamed back to the client
}

// BackupConfig holds the static, file-configured part of the backup subsystem.
type BackupConfig struct {
	Dir           string
	PgDumpPath    string
	Timeout       time.Duration
	PollInterval  time.Duration
	SweepInterval time.Duration
	Location      *time.Location // time zone used to evaluate the cron schedule
	Defaults      BackupSettings // seeded into the settings row on first access
}

// ResetConfig holds the static part of the reset controller.
type ResetConfig struct {
	DefaultConfirmationCode string
	DefaultPreserveMaster   bool
	TransactionalTables     []string
	MasterTables            []string
	BaselineSQLPath         string // optional, applied after a full reset
}
