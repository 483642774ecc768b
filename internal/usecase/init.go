package usecase

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"
)

const initBackupTimeFormat = "20060102-150405"

//nolint:gochecknoglobals // overridden in tests for deterministic backups.
var initNow = time.Now

// InitOptions describes init behavior.
type InitOptions struct {
	SourceDir string
	BackupDir string
	Force     bool
	DryRun    bool
	HomeDir   string
}

// InitPlan lists what Init wrote or, with DryRun, would write.
type InitPlan struct {
	ConfigPath   string
	ConfigBackup string
	Dirs         []string
	SourceValid  bool
}

// Init writes the configuration file and creates the backup, log and state
// directories.
func Init(ctx context.Context, opts InitOptions, deps *Dependencies, logger *slog.Logger) (*InitPlan, error) {
	if logger == nil {
		panic("logger is required")
	}
	if ctx.Err() != nil {
		return nil, ErrInterrupted
	}
	if err := validateInitDependencies(deps); err != nil {
		return nil, err
	}

	homeDir, err := normalizeInitInputs(opts)
	if err != nil {
		return nil, err
	}

	paths := buildInitPaths(deps.FileSystem, homeDir)
	plan := &InitPlan{ConfigPath: paths.configPath}

	cfg := DefaultConfigFile()
	cfg.Paths.BackupDir = strings.TrimSpace(opts.BackupDir)
	cfg.Paths.SourceDir = strings.TrimSpace(opts.SourceDir)

	if cfg.Paths.SourceDir != "" {
		src := normalizePath(deps.FileSystem, cfg.Paths.SourceDir, homeDir)
		ok, err := HasInstallation(ctx, deps.FileSystem, src)
		if err != nil {
			logger.WarnContext(ctx, "Cannot inspect source directory", "path", src, "error", err)
		}
		plan.SourceValid = ok
		if !ok {
			logger.WarnContext(ctx, "Source directory does not look like a Kodi data folder", "path", src)
		}
	}

	if err := ensureConfig(ctx, opts, deps, paths, cfg, plan); err != nil {
		return nil, err
	}
	if err := ensureInitDirs(ctx, deps, homeDir, cfg, opts.DryRun, plan); err != nil {
		return nil, err
	}

	logger.InfoContext(ctx, "Init completed", "config", paths.configPath, "dry_run", opts.DryRun)
	return plan, nil
}

type initPaths struct {
	configDir  string
	configPath string
}

func validateInitDependencies(deps *Dependencies) error {
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

func normalizeInitInputs(opts InitOptions) (string, error) {
	homeDir := strings.TrimSpace(opts.HomeDir)
	if homeDir == "" {
		return "", fmt.Errorf("home directory is empty: %w", ErrCritical)
	}
	if strings.TrimSpace(opts.BackupDir) == "" {
		return "", fmt.Errorf(
			"--backup-dir flag is required (suggested: %s): %w",
			SuggestedBackupDir, ErrUsage,
		)
	}
	return homeDir, nil
}

// ConfigPath returns the location of the configuration file below homeDir.
func ConfigPath(fs FileSystemPort, homeDir string) string {
	return buildInitPaths(fs, homeDir).configPath
}

func buildInitPaths(fs FileSystemPort, homeDir string) initPaths {
	configDir := fs.Join(homeDir, ".config", "kodiback")
	return initPaths{
		configDir:  configDir,
		configPath: fs.Join(configDir, "config.toml"),
	}
}

func ensureConfig(
	ctx context.Context,
	opts InitOptions,
	deps *Dependencies,
	paths initPaths,
	cfg ConfigFile,
	plan *InitPlan,
) error {
	exists, err := pathExists(ctx, deps.FileSystem, paths.configPath)
	if err != nil {
		return fmt.Errorf("check config path: %w", ErrCritical)
	}
	if !exists {
		if opts.DryRun {
			return nil
		}
		return writeConfig(ctx, deps, paths.configDir, paths.configPath, cfg)
	}
	info, err := deps.FileSystem.Stat(ctx, paths.configPath)
	if err != nil {
		return fmt.Errorf("stat config: %w", ErrCritical)
	}
	if info.IsDir() {
		return fmt.Errorf("config path is a directory: %w", ErrUsage)
	}
	if !opts.Force {
		return fmt.Errorf("config already exists at %s (use --force to replace it): %w", paths.configPath, ErrUsage)
	}
	plan.ConfigBackup = paths.configPath + ".bak." + initNow().Format(initBackupTimeFormat)
	if opts.DryRun {
		return nil
	}
	if err := deps.FileSystem.Move(ctx, paths.configPath, plan.ConfigBackup); err != nil {
		return fmt.Errorf("backup config: %w", ErrCritical)
	}
	return writeConfig(ctx, deps, paths.configDir, paths.configPath, cfg)
}

func writeConfig(ctx context.Context, deps *Dependencies, configDir, configPath string, cfg ConfigFile) error {
	if err := deps.FileSystem.CreateDir(ctx, configDir, 0o755); err != nil {
		return fmt.Errorf("create config dir: %w", ErrCritical)
	}
	if err := deps.Config.Save(ctx, configPath, cfg); err != nil {
		return fmt.Errorf("save config: %w", ErrCritical)
	}
	return nil
}

func ensureInitDirs(
	ctx context.Context,
	deps *Dependencies,
	homeDir string,
	cfg ConfigFile,
	dryRun bool,
	plan *InitPlan,
) error {
	dirs := []struct {
		label string
		path  string
	}{
		{"backup", cfg.Paths.BackupDir},
		{"log", cfg.Logging.Dir},
		{"state", cfg.State.Dir},
	}
	for _, d := range dirs {
		expanded := normalizePath(deps.FileSystem, d.path, homeDir)
		if expanded == "" {
			continue
		}
		plan.Dirs = append(plan.Dirs, expanded)
		if dryRun {
			continue
		}
		if err := deps.FileSystem.CreateDir(ctx, expanded, 0o755); err != nil {
			return fmt.Errorf("create %s directory: %w", d.label, ErrCritical)
		}
	}
	return nil
}

// RecordLastBackup stores archivePath as paths.last_backup_file in the config
// at configPath, keeping every other setting.
func RecordLastBackup(ctx context.Context, deps *Dependencies, configPath, archivePath string) error {
	if err := requireDeps(deps, true); err != nil {
		return err
	}
	exists, err := pathExists(ctx, deps.FileSystem, configPath)
	if err != nil {
		return fmt.Errorf("check config path: %w", ErrCritical)
	}
	cfg := DefaultConfigFile()
	if exists {
		cfg, err = deps.Config.Load(ctx, configPath)
		if err != nil {
			return fmt.Errorf("load config: %v: %w", err, ErrCritical)
		}
	}
	cfg.Paths.LastBackupFile = archivePath
	return writeConfig(ctx, deps, deps.FileSystem.Dir(configPath), configPath, cfg)
}
