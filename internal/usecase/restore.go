package usecase

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"

	"github.com/IGLOU-EU/go-wildcard"
)

// RestoreRequest carries the inputs of one restore run.
type RestoreRequest struct {
	ArchivePath string
	TargetDir   string
	// ReplaceExisting must be set to clear a target that already holds an
	// installation. Without it such a target is refused.
	ReplaceExisting bool
	// StateDir holds the operation lock. Empty disables locking.
	StateDir string
	Progress ProgressFunc
}

// targetNoise lists OS-generated entries that do not make a directory
// "in use". Patterns are matched against lower-cased names.
//
//nolint:gochecknoglobals // fixed policy table.
var targetNoise = [...]string{
	"desktop.ini",
	"thumbs.db",
	".ds_store",
	"._*",
	".localized",
	".directory",
	"$recycle.bin",
	"system volume information",
	".spotlight-v100",
	".trashes",
	".fseventsd",
	".temporaryitems",
}

// IsTargetNoise reports whether a directory entry called name may be present
// in an otherwise empty restore target.
func IsTargetNoise(name string) bool {
	lower := strings.ToLower(name)
	for _, pattern := range targetNoise {
		if wildcard.Match(pattern, lower) {
			return true
		}
	}
	return false
}

// PerformRestore validates the archive and the target, clears an existing
// installation and extracts the archive into it. The returned result is
// never nil; err is non-nil exactly when result.Success is false.
//
// An existing installation is cleared only when req.ReplaceExisting confirms
// it (the CLI sets it from --yes). With the zero value a target that already
// holds userdata and addons is refused with ErrUnsafeTarget and left untouched.
func PerformRestore(
	ctx context.Context,
	req RestoreRequest,
	deps *Dependencies,
	logger *slog.Logger,
) (result *RestoreResult, err error) {
	if logger == nil {
		panic("logger is required")
	}
	result = &RestoreResult{}
	rep := newReporter(req.Progress, logger)

	defer func() {
		if r := recover(); r != nil {
			logger.ErrorContext(ctx, "restore panicked", "panic", r)
			rep.errorf(PhaseRestore, "ERROR: %v", r)
			result.Success = false
			result.ErrorMessage = fmt.Sprintf("Unexpected error during restore: %v", r)
			result.ErrorAlreadyReported = true
			err = fmt.Errorf("unexpected error during restore: %v: %w", r, ErrCritical)
		}
	}()

	if err := requireDeps(deps, false); err != nil {
		result.ErrorMessage = err.Error()
		return result, err
	}

	lock, err := acquireOperationLock(ctx, deps, req.StateDir, req.TargetDir, operationRestore, logger)
	if err != nil {
		result.ErrorMessage = err.Error()
		return result, err
	}
	defer lock.Close()

	err = runRestore(ctx, req, deps, rep, result)
	if err != nil {
		result.Success = false
		if result.ErrorMessage == "" {
			result.ErrorMessage = err.Error()
		}
		logger.DebugContext(ctx, "restore failed", "error", err)
		return result, err
	}
	result.Success = true
	return result, nil
}

func runRestore(
	ctx context.Context,
	req RestoreRequest,
	deps *Dependencies,
	rep *reporter,
	result *RestoreResult,
) error {
	fs := deps.FileSystem

	report := validateArchive(ctx, deps, req.ArchivePath, rep)
	if !report.Valid {
		result.ErrorMessage = report.ErrorMessage
		result.ErrorAlreadyReported = true
		return report.Err
	}
	result.UserdataFileCount = report.UserdataFileCount
	result.AddonsFileCount = report.AddonsFileCount
	result.TotalUncompressedSize = report.TotalUncompressedSize

	target, installed, err := prepareTarget(ctx, fs, req.TargetDir, rep)
	if err != nil {
		result.ErrorMessage = errorText(err)
		result.ErrorAlreadyReported = true
		return err
	}
	if installed && !req.ReplaceExisting {
		msg := "Target already contains a Kodi installation and replacing it was not confirmed"
		rep.errorf(PhaseRestore, "REFUSED: %s: %s", msg, target)
		result.ErrorMessage = msg
		result.ErrorAlreadyReported = true
		return fmt.Errorf("%s: %w", msg, ErrUnsafeTarget)
	}

	if err := prescanArchive(ctx, deps, req.ArchivePath, target); err != nil {
		rep.errorf(PhaseRestore, "REFUSED: %s; nothing was changed", errorText(err))
		result.ErrorMessage = "Backup archive contains unsafe paths: " + errorText(err)
		result.ErrorAlreadyReported = true
		return err
	}

	rep.logf(PhaseRestore, "")
	rep.banner(PhaseRestore, "RESTORE PROCESS")
	if installed {
		rep.logf(PhaseRestore, "Clearing existing Kodi data...")
		if err := clearInstallation(ctx, fs, target, rep); err != nil {
			result.ErrorMessage = "Failed to clear existing directories"
			result.ErrorAlreadyReported = true
			return fmt.Errorf("clear existing installation: %v: %w", err, ErrCritical)
		}
		result.ClearedExisting = true
	}

	rep.logf(PhaseRestore, "")
	stats, err := extractArchive(ctx, deps, req.ArchivePath, target, rep)
	result.FilesRestored = stats.FilesRestored
	result.FilesFailed = stats.FilesFailed
	if err != nil {
		result.ErrorMessage = "Failed to extract backup archive"
		result.ErrorAlreadyReported = true
		if errors.Is(err, ErrUnsafePath) || errors.Is(err, ErrInterrupted) {
			return err
		}
		return fmt.Errorf("extract archive: %v: %w", err, ErrCritical)
	}

	rep.logf(PhaseDone, "")
	rep.logf(PhaseDone, "RESTORE COMPLETED SUCCESSFULLY")
	return nil
}

// prepareTarget applies the target-directory rules and returns the resolved
// target and whether it already holds an installation.
func prepareTarget(ctx context.Context, fs FileSystemPort, dir string, rep *reporter) (string, bool, error) {
	if strings.TrimSpace(dir) == "" {
		rep.errorf(PhaseRestore, "ERROR: No restore target given")
		return "", false, fmt.Errorf("restore target is empty: %w", ErrUsage)
	}
	if IsFilesystemRoot(dir) {
		rep.errorf(PhaseRestore, "REFUSED: Cannot restore to the root of a filesystem: %s", dir)
		return "", false, fmt.Errorf("target %s is a filesystem root: %w", dir, ErrUnsafeTarget)
	}

	info, err := fs.Stat(ctx, dir)
	switch {
	case err != nil && fs.IsNotExist(err):
		if err := fs.CreateDir(ctx, dir, 0o755); err != nil {
			rep.errorf(PhaseRestore, "ERROR: Cannot create restore target %s: %v", dir, err)
			return "", false, fmt.Errorf("create target %s: %v: %w", dir, err, ErrCritical)
		}
		rep.logf(PhaseRestore, "Created restore target %s", dir)
	case err != nil:
		rep.errorf(PhaseRestore, "ERROR: Cannot access restore target %s: %v", dir, err)
		return "", false, fmt.Errorf("stat target %s: %v: %w", dir, err, ErrCritical)
	case !info.IsDir():
		rep.errorf(PhaseRestore, "ERROR: Restore target is not a directory: %s", dir)
		return "", false, fmt.Errorf("target %s is not a directory: %w", dir, ErrUsage)
	}

	resolved, err := resolveTarget(ctx, fs, dir)
	if err != nil {
		rep.errorf(PhaseRestore, "ERROR: Cannot resolve restore target %s: %v", dir, err)
		return "", false, fmt.Errorf("resolve target %s: %v: %w", dir, err, ErrCritical)
	}
	if IsFilesystemRoot(resolved) {
		rep.errorf(PhaseRestore, "REFUSED: Restore target resolves to the root of a filesystem: %s", resolved)
		return "", false, fmt.Errorf("target %s resolves to a filesystem root: %w", dir, ErrUnsafeTarget)
	}

	installed, err := HasInstallation(ctx, fs, resolved)
	if err != nil {
		rep.errorf(PhaseRestore, "ERROR: Cannot inspect restore target %s: %v", resolved, err)
		return "", false, fmt.Errorf("inspect target %s: %v: %w", resolved, err, ErrCritical)
	}
	if installed {
		rep.logf(PhaseRestore, "Existing Kodi installation found at %s", resolved)
		return resolved, true, nil
	}

	entries, err := fs.ReadDir(ctx, resolved)
	if err != nil {
		rep.errorf(PhaseRestore, "ERROR: Cannot read restore target %s: %v", resolved, err)
		return "", false, fmt.Errorf("read target %s: %v: %w", resolved, err, ErrCritical)
	}
	for _, e := range entries {
		if !IsTargetNoise(e.Name()) {
			rep.errorf(PhaseRestore,
				"REFUSED: Target folder is not empty and is not a Kodi installation (found %q). "+
					"Choose an empty folder or an existing Kodi folder.", e.Name())
			return "", false, fmt.Errorf("target %s is in use (found %q): %w", resolved, e.Name(), ErrUnsafeTarget)
		}
	}
	return resolved, false, nil
}

func resolveTarget(ctx context.Context, fs FileSystemPort, dir string) (string, error) {
	abs, err := fs.Abs(ctx, dir)
	if err != nil {
		return "", err
	}
	return fs.EvalSymlinks(ctx, abs)
}

// prescanArchive checks every member against the resolved target before
// anything is deleted.
func prescanArchive(ctx context.Context, deps *Dependencies, archivePath, target string) error {
	reader, err := deps.Archive.Open(ctx, archivePath)
	if err != nil {
		return fmt.Errorf("open archive %s: %v: %w", archivePath, err, ErrInvalidArchive)
	}
	defer func() {
		_ = reader.Close()
	}()
	return scanMembers(reader.Entries(), target)
}

func clearInstallation(ctx context.Context, fs FileSystemPort, target string, rep *reporter) error {
	for _, name := range installationDirs {
		path := fs.Join(target, name)
		if err := fs.RemoveAll(ctx, path); err != nil {
			rep.errorf(PhaseRestore, "ERROR: Failed to remove %s: %v", path, err)
			return err
		}
		rep.logf(PhaseRestore, "Removed existing %s folder", name)
	}
	return nil
}

func requireDeps(deps *Dependencies, needConfig bool) error {
	switch {
	case deps == nil:
		return fmt.Errorf("dependencies not available: %w", ErrCritical)
	case deps.FileSystem == nil:
		return fmt.Errorf("filesystem adapter not available: %w", ErrCritical)
	case deps.Archive == nil:
		return fmt.Errorf("archive adapter not available: %w", ErrCritical)
	case needConfig && deps.Config == nil:
		return fmt.Errorf("config adapter not available: %w", ErrCritical)
	}
	return nil
}

// errorText strips the trailing sentinel from a wrapped error for display.
func errorText(err error) string {
	msg := err.Error()
	for _, sentinel := range []error{ErrUnsafePath, ErrUnsafeTarget, ErrUsage, ErrCritical, ErrInvalidArchive} {
		if errors.Is(err, sentinel) {
			return strings.TrimSuffix(msg, ": "+sentinel.Error())
		}
	}
	return msg
}
