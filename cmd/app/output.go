package main

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"strings"

	"github.com/goccy/go-json"
	"gopkg.in/yaml.v3"

	"github.com/arumata/kodiback/internal/usecase"
)

type outputFormat string

const (
	outputText outputFormat = "text"
	outputJSON outputFormat = "json"
	outputYAML outputFormat = "yaml"
)

func parseOutputFormat(s string) (outputFormat, error) {
	switch f := outputFormat(strings.ToLower(strings.TrimSpace(s))); f {
	case "", outputText:
		return outputText, nil
	case outputJSON, outputYAML:
		return f, nil
	default:
		return "", fmt.Errorf("unknown output format %q (text, json, yaml): %w", s, usecase.ErrUsage)
	}
}

// writeStructured encodes v as JSON or YAML. Text output is rendered by the
// caller.
func writeStructured(w io.Writer, format outputFormat, v any) error {
	switch format {
	case outputJSON:
		data, err := json.MarshalIndent(v, "", "  ")
		if err != nil {
			return fmt.Errorf("encode json: %w", err)
		}
		data = append(data, '\n')
		_, err = w.Write(data)
		return err
	case outputYAML:
		enc := yaml.NewEncoder(w)
		enc.SetIndent(2)
		if err := enc.Encode(v); err != nil {
			return fmt.Errorf("encode yaml: %w", err)
		}
		return enc.Close()
	default:
		return fmt.Errorf("format %q is not structured: %w", format, usecase.ErrUsage)
	}
}

// progressSink routes progress events to the logger. With structured output
// informational events drop to debug so stderr only carries problems.
func progressSink(ctx context.Context, logger *slog.Logger, format outputFormat) usecase.ProgressFunc {
	return func(ev usecase.ProgressEvent) {
		level := ev.Level
		if format != outputText && level < slog.LevelWarn {
			level = slog.LevelDebug
		}
		attrs := []any{"phase", string(ev.Phase)}
		if ev.Total > 0 {
			attrs = append(attrs, "current", ev.Current, "total", ev.Total)
		}
		logger.Log(ctx, level, ev.Message, attrs...)
	}
}

func parseCleanupKeys(values []string) []usecase.CleanupKey {
	keys := make([]usecase.CleanupKey, 0, len(values))
	for _, v := range values {
		for _, part := range strings.Split(v, ",") {
			if k := strings.TrimSpace(part); k != "" {
				keys = append(keys, usecase.CleanupKey(k))
			}
		}
	}
	return keys
}

// resolveCleanup applies --enable, --disable and --no-cleanup on top of the
// configured set. The configured set is not modified.
func resolveCleanup(base usecase.CleanupSet, enable, disable []string, none bool) (usecase.CleanupSet, error) {
	set := usecase.CleanupSet{}
	if none {
		if len(enable) > 0 {
			return nil, fmt.Errorf("--no-cleanup cannot be combined with --enable: %w", usecase.ErrUsage)
		}
		return set, nil
	}
	for k := range base {
		set[k] = struct{}{}
	}
	if err := set.Enable(parseCleanupKeys(enable)...); err != nil {
		return nil, err
	}
	if err := set.Disable(parseCleanupKeys(disable)...); err != nil {
		return nil, err
	}
	return set, nil
}

func notify(ctx context.Context, env *cmdEnv, message string) {
	if env.deps.Notification == nil {
		return
	}
	if err := env.deps.Notification.Send(ctx, "KodiBack", message, env.runtime.NotifySound); err != nil {
		env.logger.Debug("Notification failed", "error", err)
	}
}

const kodiClosedWarning = "Make sure Kodi is closed: its databases can be locked or corrupted while files are copied"

func warnKodiClosed(ctx context.Context, env *cmdEnv) {
	env.logger.WarnContext(ctx, kodiClosedWarning)
}

// recordLastArchive stores archivePath as the default archive for restore.
// Nothing is written when the user has no config file yet.
func recordLastArchive(ctx context.Context, env *cmdEnv, archivePath string) {
	if !env.configExists {
		return
	}
	if abs, err := env.deps.FileSystem.Abs(ctx, archivePath); err == nil {
		archivePath = abs
	}
	if err := usecase.RecordLastBackup(ctx, env.deps, env.configPath, archivePath); err != nil {
		env.logger.WarnContext(ctx, "Cannot record last backup in config", "error", err)
	}
}
