package process

import (
	"log/slog"
	"os"
)

// Adapter implements ProcessPort for the running kodiback process.
type Adapter struct {
	logger *slog.Logger
	pid    int
}

// New creates a new process adapter.
func New(logger *slog.Logger) *Adapter {
	if logger == nil {
		panic("process adapter requires logger")
	}
	return &Adapter{logger: logger, pid: os.Getpid()}
}

// GetPID returns the PID recorded in operation locks.
func (a *Adapter) GetPID() int {
	return a.pid
}
