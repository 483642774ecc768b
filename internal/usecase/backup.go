package usecase

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"
	"unicode"

	"golang.org/x/text/unicode/norm"
)

//nolint:gochecknoglobals // overridden in tests for deterministic file names.
var backupNow = time.Now

const (
	backupDateFormat = "2006-01-02"
	maxLabelRunes    = 50
	fallbackLabel    = "backup"
)

// BackupRequest carries the inputs of one backup run.
type BackupRequest struct {
	SourceDir string
	// Destination is a directory, or an explicit archive path when it ends in .zip.
	Destination string
	Label       string
	Prefix      string
	Cleanup     CleanupSet
	// StateDir holds the operation lock. Empty disables locking.
	StateDir string
	Progress ProgressFunc
}

// PerformFullBackup validates the source, runs the cleanup pass and writes
// the archive. The returned result is never nil; err is non-nil exactly when
// result.Success is false.
func PerformFullBackup(
	ctx context.Context,
	req BackupRequest,
	deps *Dependencies,
	logger *slog.Logger,
) (result *BackupResult, err error) {
	if logger == nil {
		panic("logger is required")
	}
	result = &BackupResult{}
	rep := newReporter(req.Progress, logger)

	defer func() {
		if r := recover(); r != nil {
			logger.ErrorContext(ctx, "backup panicked", "panic", r)
			rep.errorf(PhaseArchive, "ERROR: %v", r)
			result.Success = false
			result.ErrorMessage = fmt.Sprintf("Unexpected error: %v", r)
			err = fmt.Errorf("unexpected error during backup: %v: %w", r, ErrCritical)
		}
	}()

	if err := requireDeps(deps, false); err != nil {
		result.ErrorMessage = err.Error()
		return result, err
	}

	logger.InfoContext(ctx, "Starting backup operation",
		"source", req.SourceDir, "destination", req.Destination)

	lock, err := acquireOperationLock(ctx, deps, req.StateDir, req.SourceDir, operationBackup, logger)
	if err != nil {
		result.ErrorMessage = err.Error()
		return result, err
	}
	defer lock.Close()

	if err := runBackup(ctx, req, deps, rep, result); err != nil {
		result.Success = false
		if result.ErrorMessage == "" {
			result.ErrorMessage = err.Error()
		}
		return result, err
	}
	result.Success = true
	return result, nil
}

func runBackup(
	ctx context.Context,
	req BackupRequest,
	deps *Dependencies,
	rep *reporter,
	result *BackupResult,
) error {
	fs := deps.FileSystem

	if err := validateSourceDir(ctx, fs, req.SourceDir, rep); err != nil {
		result.ErrorMessage = "Invalid Kodi directory"
		return err
	}
	destDir, filename, err := resolveDestination(fs, req.Destination, req.Prefix, req.Label)
	if err != nil {
		rep.errorf(PhaseValidate, "ERROR: %v", err)
		result.ErrorMessage = errorText(err)
		return err
	}
	result.Filename = filename

	rep.logf(PhaseMeasure, "")
	rep.banner(PhaseMeasure, "SIZE BEFORE CLEANUP")
	rep.logf(PhaseMeasure, "Measuring size of Kodi Userdata and Addons BEFORE cleanup...")
	before, err := installationSize(ctx, fs, req.SourceDir)
	if err != nil {
		return interruptedOr(err, "measure source size", result)
	}
	result.SizeBeforeCleanup = before
	rep.logf(PhaseMeasure, "Current size: %s", FormatSize(before))

	rep.logf(PhaseCleanup, "")
	rep.banner(PhaseCleanup, "CLEANUP")
	enabled := req.Cleanup
	if enabled == nil {
		enabled = DefaultCleanupSet()
	}
	result.Cleanup = cleanTargets(ctx, fs, req.SourceDir, enabled, rep)
	if err := ctx.Err(); err != nil {
		return interruptedOr(err, "cleanup", result)
	}

	result.SpaceFreed = result.Cleanup.BytesFreed
	result.SizeAfterCleanup = before - result.SpaceFreed
	if result.SizeAfterCleanup < 0 {
		result.SizeAfterCleanup = 0
	}
	rep.logf(PhaseMeasure, "")
	rep.banner(PhaseMeasure, "SIZE AFTER CLEANUP")
	rep.logf(PhaseMeasure, "Space freed: %s", FormatSize(result.SpaceFreed))
	rep.logf(PhaseMeasure, "Size to backup: %s", FormatSize(result.SizeAfterCleanup))

	rep.logf(PhaseArchive, "")
	rep.banner(PhaseArchive, "BACKUP ARCHIVE")
	stats, err := buildArchive(ctx, deps, req.SourceDir, destDir, filename, rep)
	result.FilesArchived = stats.FilesArchived
	result.FilesSkipped = stats.FilesSkipped
	if err != nil {
		result.ErrorMessage = "Failed to create backup archive"
		return err
	}
	result.Path = stats.Path

	if info, err := fs.Stat(ctx, stats.Path); err == nil {
		result.FinalBackupSize = info.Size()
	}
	rep.logf(PhaseDone, "Backup size: %s", FormatSize(result.FinalBackupSize))
	rep.logf(PhaseDone, "Backup completed successfully!")
	return nil
}

func interruptedOr(err error, step string, result *BackupResult) error {
	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		result.ErrorMessage = "Backup interrupted"
		return fmt.Errorf("%s: %w", step, ErrInterrupted)
	}
	return fmt.Errorf("%s: %v: %w", step, err, ErrCritical)
}

// resolveDestination splits dest into a directory and an archive file name.
// A destination ending in .zip names the archive explicitly.
func resolveDestination(fs FileSystemPort, dest, prefix, label string) (string, string, error) {
	clean := strings.TrimSpace(dest)
	if clean == "" {
		return "", "", fmt.Errorf("backup destination is empty: %w", ErrUsage)
	}
	if strings.EqualFold(fs.Ext(clean), archiveExt) {
		name := fs.Base(clean)
		if name == archiveExt || strings.EqualFold(name, archiveExt) {
			return "", "", fmt.Errorf("backup file name is empty: %w", ErrUsage)
		}
		return fs.Dir(clean), name, nil
	}
	return clean, BackupFilename(prefix, label, backupNow()), nil
}

// BackupFilename returns "<prefix>.bkup_<YYYY-MM-DD>[_<label>].zip". An empty
// label omits the label part; a label with nothing usable left after
// sanitizing becomes "backup".
func BackupFilename(prefix, label string, now time.Time) string {
	p := sanitizeLabel(prefix)
	if p == "" {
		p = DefaultPrefix
	}
	name := p + ".bkup_" + now.Format(backupDateFormat)
	if strings.TrimSpace(label) != "" {
		l := sanitizeLabel(label)
		if l == "" {
			l = fallbackLabel
		}
		name += "_" + l
	}
	return name + archiveExt
}

// sanitizeLabel drops characters that are illegal in file names on any
// supported platform and collapses whitespace and underscore runs.
func sanitizeLabel(s string) string {
	s = norm.NFC.String(s)
	var b strings.Builder
	pendingSep := false
	for _, r := range s {
		switch {
		case unicode.IsSpace(r) || r == '_':
			pendingSep = true
			continue
		case strings.ContainsRune(`<>:"/\|?*`, r), unicode.IsControl(r):
			continue
		}
		if pendingSep && b.Len() > 0 {
			b.WriteByte('_')
		}
		pendingSep = false
		b.WriteRune(r)
	}
	out := strings.Trim(b.String(), "_.-")
	if runes := []rune(out); len(runes) > maxLabelRunes {
		out = strings.TrimRight(string(runes[:maxLabelRunes]), "_.-")
	}
	return out
}
