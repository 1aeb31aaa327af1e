package telegram

import (
	"context"
	"os"
	"time"

	"github.com/rs/zerolog"
	"github.com/sutaaa0/cashier-app-sub000/internal/models"
)

// Notifier decides which events are worth a message and sends them best
// effort. A nil *Notifier is valid and sends nothing.
type Notifier struct {
	svc    Service
	cfg    models.TelegramConfig
	host   string
	logger zerolog.Logger
}

// NewNotifier creates a notifier for cfg.
func NewNotifier(logger zerolog.Logger, svc Service, cfg models.TelegramConfig) *Notifier {
	host, err := os.Hostname()
	if err != nil {
		host = "unknown"
	}
	return &Notifier{svc: svc, cfg: cfg, host: host, logger: logger}
}

// Notify sends n unless it is filtered out: successful backups are only
// reported with notify_success, manual backup failures are never reported
// since the operator already sees them.
func (n *Notifier) Notify(ctx context.Context, note models.Notification) {
	if n == nil || !n.wants(note) {
		return
	}
	if note.Host == "" {
		note.Host = n.host
	}

	ctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), 30*time.Second)
	defer cancel()

	result, err := n.svc.SendNotification(ctx, n.cfg, note)
	if err == nil && result != nil {
		err = result.Error
	}
	if err != nil {
		n.logger.Warn().Err(err).Str("event", string(note.Event)).Msg("Failed to send Telegram notification")
	}
}

func (n *Notifier) wants(note models.Notification) bool {
	switch {
	case note.Event == models.EventReset:
		return true
	case note.Success:
		return n.cfg.NotifySuccess
	default:
		return note.Trigger != models.TriggerManual
	}
}
