package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"path/filepath"
	"strings"
	"syscall"

	"golang.org/x/term"
	"gopkg.in/natefinch/lumberjack.v2"

	"github.com/spf13/cobra"

	"github.com/arumata/kodiback/internal/adapters/loghandler"
	"github.com/arumata/kodiback/internal/app"
	"github.com/arumata/kodiback/internal/usecase"
)

const logFileName = "kodiback.log"

func main() {
	os.Exit(runMain())
}

func runMain() int {
	ctx, stop := signal.NotifyContext(
		context.Background(),
		syscall.SIGINT,
		syscall.SIGTERM,
		syscall.SIGQUIT,
		syscall.SIGHUP,
	)
	defer stop()

	cmd, exitCode := newRootCmd(app.NewDefaultDependencies)
	if err := cmd.ExecuteContext(ctx); err != nil {
		fmt.Fprintln(os.Stderr, err)
		return exitUsageError
	}
	return *exitCode
}

type depsFactory func(*slog.Logger) *usecase.Dependencies

// globalOptions holds the persistent flags shared by every subcommand.
type globalOptions struct {
	verbose    bool
	configPath string
}

func newRootCmd(factory depsFactory) (*cobra.Command, *int) {
	exitCode := 0
	opts := &globalOptions{}
	cmd := &cobra.Command{
		Use:           "kodiback",
		Short:         "Back up and restore Kodi userdata and addons",
		SilenceUsage:  true,
		SilenceErrors: true,
		Args:          cobra.NoArgs,
		Run: func(cmd *cobra.Command, args []string) {
			_ = cmd.Help()
			exitCode = exitUsageError
		},
	}
	cmd.SetErr(os.Stderr)

	cmd.PersistentFlags().BoolVarP(&opts.verbose, "verbose", "v", false, "verbose output")
	cmd.PersistentFlags().StringVar(&opts.configPath, "config", "",
		"config file (default ~/.config/kodiback/config.toml)")

	cmd.AddCommand(newBackupCmd(factory, opts, &exitCode))
	cmd.AddCommand(newRestoreCmd(factory, opts, &exitCode))
	cmd.AddCommand(newValidateCmd(factory, opts, &exitCode))
	cmd.AddCommand(newCleanCmd(factory, opts, &exitCode))
	cmd.AddCommand(newCatalogCmd(factory, opts, &exitCode))
	cmd.AddCommand(newInitCmd(factory, opts, &exitCode))
	cmd.AddCommand(newStatusCmd(factory, opts, &exitCode))
	cmd.AddCommand(newVersionCmd())

	return cmd, &exitCode
}

// cmdEnv is the resolved environment of one subcommand run.
type cmdEnv struct {
	deps         *usecase.Dependencies
	logger       *slog.Logger
	homeDir      string
	configPath   string
	configExists bool
	configFile   usecase.ConfigFile
	runtime      *usecase.Config
	close        func()
}

// prepareEnv loads the config, attaches the rotating log file and swaps in
// the silent notifier when notifications are disabled.
func prepareEnv(ctx context.Context, factory depsFactory, opts *globalOptions) (*cmdEnv, error) {
	logger := setupLogger(opts.verbose)
	deps := factory(logger)
	homeDir, err := os.UserHomeDir()
	if err != nil {
		return nil, fmt.Errorf("resolve home dir: %v: %w", err, usecase.ErrCritical)
	}
	configPath := resolveConfigPath(deps, opts.configPath, homeDir)
	configFile, configExists, err := loadConfigFile(ctx, deps, configPath)
	if err != nil {
		return nil, err
	}
	runtimeCfg, err := usecase.RuntimeConfigFromFile(configFile, homeDir)
	if err != nil {
		return nil, err
	}
	runtimeCfg.Verbose = opts.verbose

	fileLogger, closeLog := withFileLogging(logger, configFile.Logging, opts.verbose, homeDir)
	if !runtimeCfg.Notify {
		app.DisableNotifications(deps, fileLogger)
	}
	fileLogger.Debug("Configuration loaded", "path", configPath, "exists", configExists)

	return &cmdEnv{
		deps:         deps,
		logger:       fileLogger,
		homeDir:      homeDir,
		configPath:   configPath,
		configExists: configExists,
		configFile:   configFile,
		runtime:      runtimeCfg,
		close:        closeLog,
	}, nil
}

func resolveConfigPath(deps *usecase.Dependencies, flagPath, homeDir string) string {
	if p := strings.TrimSpace(flagPath); p != "" {
		return usecase.ExpandHomeDirPublic(p, homeDir)
	}
	return usecase.ConfigPath(deps.FileSystem, homeDir)
}

func mapExitCode(err error) int {
	if err == nil {
		return exitSuccess
	}
	switch {
	case usecase.IsSafetyViolation(err):
		return exitSafetyRefusal
	case errors.Is(err, usecase.ErrLockBusy):
		return exitLockBusy
	case errors.Is(err, usecase.ErrInterrupted):
		return exitInterrupted
	case errors.Is(err, usecase.ErrUsage),
		errors.Is(err, usecase.ErrInvalidSource),
		errors.Is(err, usecase.ErrInvalidArchive),
		errors.Is(err, usecase.ErrMalformedArchive):
		return exitUsageError
	default:
		return exitCriticalError
	}
}

func loadConfigFile(
	ctx context.Context,
	deps *usecase.Dependencies,
	configPath string,
) (usecase.ConfigFile, bool, error) {
	if deps == nil || deps.Config == nil || deps.FileSystem == nil {
		return usecase.ConfigFile{}, false, fmt.Errorf("dependencies not available: %w", usecase.ErrCritical)
	}
	info, err := deps.FileSystem.Stat(ctx, configPath)
	exists := false
	if err == nil {
		if info != nil && info.IsDir() {
			return usecase.ConfigFile{}, false, fmt.Errorf("config path is a directory: %w", usecase.ErrUsage)
		}
		exists = true
	} else if !deps.FileSystem.IsNotExist(err) {
		return usecase.ConfigFile{}, false, fmt.Errorf("stat config: %v: %w", err, usecase.ErrCritical)
	}
	cfg, err := deps.Config.Load(ctx, configPath)
	if err != nil {
		return usecase.ConfigFile{}, false, fmt.Errorf("load config %s: %v: %w", configPath, err, usecase.ErrUsage)
	}
	return cfg, exists, nil
}

func setupLogger(verbose bool) *slog.Logger {
	level := slog.LevelInfo
	if verbose {
		level = slog.LevelDebug
	}
	handler := loghandler.NewHandler(os.Stderr, &loghandler.Options{
		Level:    level,
		UseColor: shouldUseColor(os.Stderr),
	})
	return slog.New(handler)
}

// withFileLogging tees logger into a size-rotated file below logCfg.Dir.
func withFileLogging(
	logger *slog.Logger,
	logCfg usecase.LoggingConfig,
	verbose bool,
	homeDir string,
) (*slog.Logger, func()) {
	dir := strings.TrimSpace(logCfg.Dir)
	if dir == "" {
		return logger, func() {}
	}
	expanded := usecase.ExpandHomeDirPublic(dir, homeDir)
	if err := os.MkdirAll(expanded, 0o750); err != nil {
		logger.Warn("Cannot create log directory", "path", expanded, "error", err)
		return logger, func() {}
	}

	rotator := &lumberjack.Logger{
		Filename:   filepath.Join(expanded, logFileName),
		MaxSize:    logCfg.MaxSizeMB,
		MaxBackups: logCfg.MaxBackups,
		MaxAge:     logCfg.MaxAgeDays,
		Compress:   logCfg.Compress,
	}

	fileLevel := parseLogLevel(logCfg.Level)
	if verbose && fileLevel > slog.LevelDebug {
		fileLevel = slog.LevelDebug
	}
	fileHandler := loghandler.NewHandler(rotator, &loghandler.Options{
		Level:    fileLevel,
		UseColor: false,
	})

	combined := loghandler.NewMultiHandler(logger.Handler(), fileHandler)
	return slog.New(combined), func() { _ = rotator.Close() }
}

func parseLogLevel(s string) slog.Level {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "debug":
		return slog.LevelDebug
	case "warn", "warning":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}

func shouldUseColor(f *os.File) bool {
	if _, ok := os.LookupEnv("NO_COLOR"); ok {
		return false
	}
	if os.Getenv("TERM") == "dumb" {
		return false
	}
	return term.IsTerminal(int(f.Fd()))
}

func firstNonEmpty(values ...string) string {
	for _, v := range values {
		if s := strings.TrimSpace(v); s != "" {
			return s
		}
	}
	return ""
}
