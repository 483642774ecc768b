package usecase

import (
	"context"
	"fmt"
	"log/slog"
	"sort"
	"strings"
	"time"

	"github.com/dustin/go-humanize"
)

const statusNotSet = "(not set)"

//nolint:gochecknoglobals // overridden in tests for stable relative times.
var statusNow = time.Now

// statusPalette holds ANSI escape sequences for colorized status output.
// When useColor is false, all fields are empty strings (no-op coloring).
type statusPalette struct {
	reset    string
	bold     string
	dim      string
	green    string
	red      string
	yellow   string
	cyan     string
	boldCyan string
}

func newStatusPalette(useColor bool) statusPalette {
	if !useColor {
		return statusPalette{}
	}
	return statusPalette{
		reset:    "\033[0m",
		bold:     "\033[1m",
		dim:      "\033[2m",
		green:    "\033[32m",
		red:      "\033[31m",
		yellow:   "\033[33m",
		cyan:     "\033[36m",
		boldCyan: "\033[1;36m",
	}
}

// StatusOptions describes status output behavior.
type StatusOptions struct {
	ConfigPath string
	HomeDir    string
}

// StatusReport contains status information for rendering.
type StatusReport struct {
	Global  StatusGlobal
	Source  StatusSource
	Backups StatusBackups
	Lock    StatusLock
}

// StatusGlobal contains global configuration checks.
type StatusGlobal struct {
	ConfigFile StatusPath
	BackupDir  StatusPath
	LogDir     StatusPath
	StateDir   StatusPath
	Cleanup    []CleanupKey
}

// StatusPath describes a path and its availability.
type StatusPath struct {
	Path   string
	Exists bool
	Source string
}

// StatusSource describes the configured installation.
type StatusSource struct {
	Path  StatusPath
	Valid bool
}

// StatusBackups summarizes the archives found in the backup directory.
type StatusBackups struct {
	Count      int
	TotalSize  int64
	Latest     string
	LatestTime time.Time
	Partial    []string
	LastFile   StatusPath
}

// StatusLock reports an operation currently holding the source tree.
type StatusLock struct {
	Held bool
	Info LockInfo
}

// Status collects configuration, source and backup directory state.
func Status(ctx context.Context, opts StatusOptions, deps *Dependencies, logger *slog.Logger) (StatusReport, error) {
	if logger == nil {
		panic("logger is required")
	}
	if ctx.Err() != nil {
		return StatusReport{}, ErrInterrupted
	}
	if err := validateStatusDependencies(deps); err != nil {
		return StatusReport{}, err
	}
	homeDir := strings.TrimSpace(opts.HomeDir)
	if homeDir == "" {
		return StatusReport{}, fmt.Errorf("home directory is empty: %w", ErrCritical)
	}
	fs := deps.FileSystem
	configPath := strings.TrimSpace(opts.ConfigPath)
	if configPath == "" {
		configPath = ConfigPath(fs, homeDir)
	}

	configExists, err := pathExists(ctx, fs, configPath)
	if err != nil {
		return StatusReport{}, fmt.Errorf("check config path: %w", ErrCritical)
	}
	cfg := DefaultConfigFile()
	if configExists {
		cfg, err = deps.Config.Load(ctx, configPath)
		if err != nil {
			return StatusReport{}, fmt.Errorf("load config: %v: %w", err, ErrCritical)
		}
	}
	runtime, err := RuntimeConfigFromFile(cfg, homeDir)
	if err != nil {
		return StatusReport{}, err
	}

	report := StatusReport{}
	report.Global.ConfigFile = StatusPath{Path: configPath, Exists: configExists}
	report.Global.Cleanup = runtime.Cleanup.Keys()
	defaults := DefaultConfigFile()
	if report.Global.BackupDir, err = statusPath(ctx, fs, runtime.BackupDir, configExists, ""); err != nil {
		return report, err
	}
	logDir := normalizePath(fs, cfg.Logging.Dir, homeDir)
	if report.Global.LogDir, err = statusPath(ctx, fs, logDir, configExists && cfg.Logging.Dir != defaults.Logging.Dir, "default"); err != nil {
		return report, err
	}
	if report.Global.StateDir, err = statusPath(ctx, fs, runtime.StateDir, configExists && cfg.State.Dir != defaults.State.Dir, "default"); err != nil {
		return report, err
	}

	if report.Source.Path, err = statusPath(ctx, fs, runtime.SourceDir, configExists, ""); err != nil {
		return report, err
	}
	if report.Source.Path.Exists {
		report.Source.Valid, err = HasInstallation(ctx, fs, runtime.SourceDir)
		if err != nil {
			return report, fmt.Errorf("inspect source dir: %w", ErrCritical)
		}
	}

	if report.Global.BackupDir.Exists {
		report.Backups, err = scanBackups(ctx, fs, runtime.BackupDir, runtime.Prefix)
		if err != nil {
			return report, err
		}
	}
	if report.Backups.LastFile, err = statusPath(ctx, fs, runtime.LastBackupFile, configExists, ""); err != nil {
		return report, err
	}

	if deps.Lock != nil && runtime.StateDir != "" && runtime.SourceDir != "" {
		abs, absErr := fs.Abs(ctx, runtime.SourceDir)
		if absErr == nil {
			lockPath := fs.Join(runtime.StateDir, "locks", lockName(fs, abs))
			held, info, lockErr := deps.Lock.IsLocked(ctx, lockPath)
			if lockErr != nil {
				logger.DebugContext(ctx, "lock status unavailable", "error", lockErr)
			}
			report.Lock = StatusLock{Held: held, Info: info}
		}
	}

	contractStatusPaths(&report, homeDir, fs.PathSeparator())
	return report, nil
}

func statusPath(ctx context.Context, fs FileSystemPort, p string, fromConfig bool, fallback string) (StatusPath, error) {
	out := StatusPath{Path: p}
	if p == "" {
		return out, nil
	}
	exists, err := pathExists(ctx, fs, p)
	if err != nil {
		return out, fmt.Errorf("check %s: %w", p, ErrCritical)
	}
	out.Exists = exists
	switch {
	case fromConfig:
		out.Source = "from config"
	default:
		out.Source = fallback
	}
	return out, nil
}

// scanBackups lists archives named "<prefix>.bkup_*" and leftovers of
// interrupted builds in backupDir.
func scanBackups(ctx context.Context, fs FileSystemPort, backupDir, prefix string) (StatusBackups, error) {
	var result StatusBackups
	entries, err := fs.ReadDir(ctx, backupDir)
	if err != nil {
		return result, fmt.Errorf("list backup dir: %w", ErrCritical)
	}
	want := prefix + ".bkup_"
	for _, e := range entries {
		if ctx.Err() != nil {
			return result, ErrInterrupted
		}
		name := e.Name()
		if e.IsDir() || !strings.HasPrefix(name, want) {
			continue
		}
		if isPartialArchive(name) {
			result.Partial = append(result.Partial, name)
			continue
		}
		if !strings.EqualFold(fs.Ext(name), archiveExt) {
			continue
		}
		info, err := fs.Stat(ctx, fs.Join(backupDir, name))
		if err != nil {
			continue
		}
		result.Count++
		result.TotalSize += info.Size()
		if info.ModTime().After(result.LatestTime) {
			result.LatestTime = info.ModTime()
			result.Latest = name
		}
	}
	sort.Strings(result.Partial)
	return result, nil
}

// FormatStatus renders the status report into human-readable output.
func FormatStatus(report StatusReport, useColor bool) string {
	p := newStatusPalette(useColor)
	var b strings.Builder

	fmt.Fprintf(&b, "%sKodiBack Status%s\n", p.bold, p.reset)
	b.WriteString(strings.Repeat("─", 54))
	b.WriteString("\n\n")
	fmt.Fprintf(&b, "%sConfiguration:%s\n", p.boldCyan, p.reset)
	appendStatusLine(&b, "Config file:", formatPathStatus(report.Global.ConfigFile, p))
	appendStatusLine(&b, "Backup dir:", formatPathStatus(report.Global.BackupDir, p))
	appendStatusLine(&b, "Log dir:", formatPathStatus(report.Global.LogDir, p))
	appendStatusLine(&b, "State dir:", formatPathStatus(report.Global.StateDir, p))
	appendStatusLine(&b, "Cleanup:", formatCleanupKeys(report.Global.Cleanup, p))

	b.WriteString("\n")
	fmt.Fprintf(&b, "%sKodi Data:%s\n", p.boldCyan, p.reset)
	appendStatusLine(&b, "Source dir:", formatPathStatus(report.Source.Path, p))
	if report.Source.Path.Exists {
		appendStatusLine(&b, "Installation:", formatBoolStatus(report.Source.Valid, p)+" (userdata + addons)")
	}
	if report.Lock.Held {
		appendStatusLine(&b, "In use:", fmt.Sprintf("%s%s running (pid %d, since %s)%s",
			p.yellow, report.Lock.Info.Operation, report.Lock.Info.PID,
			humanize.RelTime(report.Lock.Info.StartTime, statusNow(), "ago", "from now"), p.reset))
	}

	b.WriteString("\n")
	fmt.Fprintf(&b, "%sBackups:%s\n", p.boldCyan, p.reset)
	appendStatusLine(&b, "Archives:", fmt.Sprintf("%s (%s)",
		humanize.Comma(int64(report.Backups.Count)), FormatSize(report.Backups.TotalSize)))
	appendStatusLine(&b, "Latest:", formatLatest(report.Backups, p))
	appendStatusLine(&b, "Last backup file:", formatPathStatus(report.Backups.LastFile, p))
	if len(report.Backups.Partial) > 0 {
		appendStatusLine(&b, "Incomplete:", fmt.Sprintf("%s%d leftover .partial file(s)%s",
			p.yellow, len(report.Backups.Partial), p.reset))
		for _, name := range report.Backups.Partial {
			fmt.Fprintf(&b, "  %-18s %s%s%s\n", "", p.dim, name, p.reset)
		}
	}
	return b.String()
}

func contractStatusPaths(report *StatusReport, homeDir string, sep byte) {
	report.Global.ConfigFile.Path = contractHomeDir(report.Global.ConfigFile.Path, homeDir, sep)
	report.Global.BackupDir.Path = contractHomeDir(report.Global.BackupDir.Path, homeDir, sep)
	report.Global.LogDir.Path = contractHomeDir(report.Global.LogDir.Path, homeDir, sep)
	report.Global.StateDir.Path = contractHomeDir(report.Global.StateDir.Path, homeDir, sep)
	report.Source.Path.Path = contractHomeDir(report.Source.Path.Path, homeDir, sep)
	report.Backups.LastFile.Path = contractHomeDir(report.Backups.LastFile.Path, homeDir, sep)
}

func validateStatusDependencies(deps *Dependencies) error {
	if deps == nil {
		return fmt.Errorf("dependencies are required: %w", ErrCritical)
	}
	if deps.FileSystem == nil {
		return fmt.Errorf("filesystem adapter not available: %w", ErrCritical)
	}
	if deps.Config == nil {
		return fmt.Errorf("config adapter not available: %w", ErrCritical)
	}
	return nil
}

func appendStatusLine(b *strings.Builder, label, value string) {
	fmt.Fprintf(b, "  %-18s %s\n", label, value)
}

func formatPathStatus(path StatusPath, p statusPalette) string {
	if path.Path == "" {
		return fmt.Sprintf("%s✗%s %s%s%s", p.red, p.reset, p.dim, statusNotSet, p.reset)
	}
	var status string
	if path.Exists {
		status = fmt.Sprintf("%s✓%s", p.green, p.reset)
	} else {
		status = fmt.Sprintf("%s✗%s %s(not found)%s", p.red, p.reset, p.dim, p.reset)
	}
	value := fmt.Sprintf("%s %s", path.Path, status)
	if path.Source != "" {
		value += fmt.Sprintf(" %s(%s)%s", p.dim, path.Source, p.reset)
	}
	return value
}

func formatBoolStatus(value bool, p statusPalette) string {
	if value {
		return fmt.Sprintf("%s✓%s", p.green, p.reset)
	}
	return fmt.Sprintf("%s✗%s", p.red, p.reset)
}

func formatCleanupKeys(keys []CleanupKey, p statusPalette) string {
	if len(keys) == 0 {
		return fmt.Sprintf("%s(none)%s", p.dim, p.reset)
	}
	names := make([]string, len(keys))
	for i, k := range keys {
		names[i] = string(k)
	}
	return strings.Join(names, ", ")
}

func formatLatest(b StatusBackups, p statusPalette) string {
	if b.Latest == "" {
		return fmt.Sprintf("%s✗%s %s(not found)%s", p.red, p.reset, p.dim, p.reset)
	}
	return fmt.Sprintf("%s %s(%s)%s", b.Latest, p.dim,
		humanize.RelTime(b.LatestTime, statusNow(), "ago", "from now"), p.reset)
}
