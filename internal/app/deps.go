package app

import (
	"log/slog"

	"github.com/arumata/kodiback/internal/adapters/archive"
	"github.com/arumata/kodiback/internal/adapters/config"
	"github.com/arumata/kodiback/internal/adapters/filesystem"
	"github.com/arumata/kodiback/internal/adapters/lock"
	"github.com/arumata/kodiback/internal/adapters/noop"
	"github.com/arumata/kodiback/internal/adapters/notification"
	"github.com/arumata/kodiback/internal/adapters/process"
	"github.com/arumata/kodiback/internal/usecase"
)

// NewDefaultDependencies creates dependencies with real adapters where available.
func NewDefaultDependencies(logger *slog.Logger) *usecase.Dependencies {
	if logger == nil {
		panic("default dependencies require logger")
	}
	fsAdapter := filesystem.New(logger)
	archiveAdapter := archive.New(logger)
	configAdapter := config.New(logger)
	lockAdapter := lock.New(logger)
	notificationAdapter := notification.New(logger)
	processAdapter := process.New(logger)

	return &usecase.Dependencies{
		FileSystem:   fsAdapter,
		Archive:      archiveAdapter,
		Config:       configAdapter,
		Lock:         lockAdapter,
		Process:      processAdapter,
		Notification: notificationAdapter,
	}
}

// DisableNotifications swaps the desktop notifier for a silent one.
func DisableNotifications(deps *usecase.Dependencies, logger *slog.Logger) {
	if deps == nil {
		return
	}
	deps.Notification = noop.NewNotificationAdapter(logger)
}
