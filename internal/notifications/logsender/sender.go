// Package logsender delivers notifications as structured log records.
package logsender

import (
	"context"
	"log/slog"

	"github.com/palmiyeitadmin/monitorsystem/internal/notifications"
)

// Sender writes each notification to a slog.Logger.
type Sender struct {
	logger *slog.Logger
}

// New creates a log sender. A nil logger means slog.Default().
func New(logger *slog.Logger) *Sender {
	if logger == nil {
		logger = slog.Default()
	}
	return &Sender{logger: logger}
}

// Type returns the channel type.
func (s *Sender) Type() notifications.ChannelType {
	return notifications.ChannelTypeLog
}

// Send logs the notification.
func (s *Sender) Send(ctx context.Context, n notifications.Notification) error {
	if err := ctx.Err(); err != nil {
		return notifications.NewRetryableError(err)
	}
	s.logger.LogAttrs(ctx, slog.LevelInfo, "notification",
		slog.String("to", n.To),
		slog.String("type", string(n.Type)),
		slog.String("subject", n.Subject),
		slog.String("body", n.Body),
	)
	return nil
}
