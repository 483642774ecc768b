// Package noop provides silent stand-ins for optional ports.
package noop

import (
	"context"
	"log/slog"
)

// NotificationAdapter drops every notification. It replaces the desktop
// notifier when notifications are disabled in config.
type NotificationAdapter struct {
	logger *slog.Logger
}

// NewNotificationAdapter creates a silent notification adapter. A nil logger
// discards the debug trace as well.
func NewNotificationAdapter(logger *slog.Logger) *NotificationAdapter {
	return &NotificationAdapter{logger: logger}
}

// Send records the suppressed notification at debug level and returns nil.
func (n *NotificationAdapter) Send(ctx context.Context, title, message, sound string) error {
	if n.logger != nil {
		n.logger.DebugContext(ctx, "notification suppressed", "title", title)
	}
	return nil
}
