package notification

import "log/slog"

// appName identifies the sender to desktop notification daemons.
const appName = "KodiBack"

// Adapter implements NotificationPort with the platform's native notifier.
// Delivery failures are logged at debug level and never surface as errors.
type Adapter struct {
	logger *slog.Logger
}

// New creates a new notification adapter.
func New(logger *slog.Logger) *Adapter {
	if logger == nil {
		logger = slog.Default()
	}
	return &Adapter{logger: logger}
}
