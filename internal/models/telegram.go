package models

import "time"

// TelegramConfig holds Telegram notification configuration.
type TelegramConfig struct {
	BotToken      string
	ChatID        string
	NotifySuccess bool // also notify on successful backups
}

// Event identifies what a notification is about.
type Event string

const (
	EventBackup Event = "backup"
	EventReset  Event = "reset"
)

// Notification holds the data for a backup or reset notification.
type Notification struct {
	Event     Event
	Success   bool
	Host      string
	StartTime time.Time
	Duration  time.Duration

	// Backup details.
	Trigger   Trigger
	Filename  string
	SizeBytes int64

	// Reset details.
	Summary string

	// Error info (if failed).
	ErrorMessage string
}

// TelegramResult holds the result of a Telegram notification.
type TelegramResult struct {
	MessageSent bool
	Error       error
}
