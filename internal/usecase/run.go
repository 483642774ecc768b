//nolint:gci,gofumpt
package usecase

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"
)

//nolint:gochecknoglobals // configurable in tests to speed up lock refresh.
var lockRefreshInterval = time.Hour

const (
	operationBackup  = "backup"
	operationRestore = "restore"
	operationClean   = "clean"
)

// operationLock guards one installation tree against concurrent backup,
// restore and clean runs.
type operationLock struct {
	path    string
	release func()
	stop    func()
}

func (l *operationLock) Close() {
	if l == nil {
		return
	}
	if l.stop != nil {
		l.stop()
	}
	if l.release != nil {
		l.release()
	}
}

// acquireOperationLock takes the lock for treePath. It returns a nil lock
// without error when no lock adapter or state directory is configured.
func acquireOperationLock(
	ctx context.Context,
	deps *Dependencies,
	stateDir, treePath, operation string,
	logger *slog.Logger,
) (*operationLock, error) {
	if deps.Lock == nil || strings.TrimSpace(stateDir) == "" {
		return nil, nil
	}
	fs := deps.FileSystem
	locksDir := fs.Join(stateDir, "locks")
	if err := fs.CreateDir(ctx, locksDir, 0o755); err != nil {
		logger.ErrorContext(ctx, "ensure lock dir", "error", err)
		return nil, fmt.Errorf("ensure lock dir: %w", ErrCritical)
	}

	abs, err := fs.Abs(ctx, treePath)
	if err != nil {
		abs = fs.Clean(treePath)
	}
	lockPath := fs.Join(locksDir, lockName(fs, abs))
	info := LockInfo{
		StartTime: time.Now(),
		Operation: operation,
		TreePath:  abs,
	}
	if deps.Process != nil {
		info.PID = deps.Process.GetPID()
	}

	if err := deps.Lock.AcquireLock(ctx, lockPath, info); err != nil {
		logger.WarnContext(ctx, "Failed to acquire lock", "path", lockPath, "error", err)
		if errors.Is(err, ErrLockBusy) {
			if held, holder, _ := deps.Lock.IsLocked(ctx, lockPath); held {
				return nil, fmt.Errorf("%s already running for %s (pid %d): %w",
					holder.Operation, holder.TreePath, holder.PID, ErrLockBusy)
			}
			return nil, fmt.Errorf("another operation is running on %s: %w", abs, ErrLockBusy)
		}
		return nil, fmt.Errorf("failed to acquire lock: %w", ErrCritical)
	}

	lock := &operationLock{
		path: lockPath,
		release: func() {
			_ = deps.Lock.ReleaseLock(context.WithoutCancel(ctx), lockPath)
		},
	}
	lock.stop = startLockRefresh(ctx, deps, lockPath, logger)
	return lock, nil
}

func startLockRefresh(
	ctx context.Context,
	deps *Dependencies,
	lockPath string,
	logger *slog.Logger,
) func() {
	refreshCtx, stopRefresh := context.WithCancel(ctx)
	done := make(chan struct{})
	go func() {
		defer close(done)
		ticker := time.NewTicker(lockRefreshInterval)
		defer ticker.Stop()
		for {
			select {
			case <-refreshCtx.Done():
				return
			case <-ticker.C:
				if err := deps.Lock.RefreshLock(refreshCtx, lockPath); err != nil {
					logger.WarnContext(refreshCtx, "Failed to refresh lock", "error", err)
				}
			}
		}
	}()
	return func() {
		stopRefresh()
		<-done
	}
}

// lockName derives a stable file name for the tree at abs.
func lockName(fs FileSystemPort, abs string) string {
	return sanitizeSegment(fs.Base(abs)) + "--" + shortHash(abs) + ".lock"
}

func sanitizeSegment(s string) string {
	b := make([]rune, 0, len(s))
	for _, r := range s {
		if (r >= 'a' && r <= 'z') || (r >= 'A' && r <= 'Z') || (r >= '0' && r <= '9') || r == '.' || r == '_' || r == '-' {
			b = append(b, r)
		} else {
			b = append(b, '_')
		}
	}
	out := strings.Trim(strings.TrimLeft(string(b), "."), "_- ")
	if out == "" {
		out = "root"
	}
	return out
}

func shortHash(s string) string {
	h := sha256.Sum256([]byte(s))
	return hex.EncodeToString(h[:])[:8]
}
