package config

import (
	"context"
	"log/slog"
	"os"
	"path/filepath"
	"reflect"
	"strings"
	"testing"

	"github.com/arumata/kodiback/internal/usecase"
)

func TestAdapter_LoadMissingReturnsDefaults(t *testing.T) {
	t.Parallel()
	adapter := New(slog.Default())
	path := filepath.Join(t.TempDir(), "config.toml")

	cfg, err := adapter.Load(context.Background(), path)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if !reflect.DeepEqual(cfg, usecase.DefaultConfigFile()) {
		t.Fatal("expected default config to be returned")
	}
}

func TestAdapter_SaveAndLoad(t *testing.T) {
	t.Parallel()
	adapter := New(slog.Default())
	path := filepath.Join(t.TempDir(), "config.toml")

	original := usecase.ConfigFile{
		Paths: usecase.PathsConfig{
			SourceDir:      "/home/tester/.kodi",
			BackupDir:      "/backup",
			LastBackupFile: `/backup/kodi.bkup_2024-05-01_"quoted".zip`,
		},
		Backup: usecase.BackupConfig{
			Prefix: "living-room",
			Label:  "weekly",
		},
		Cleanup: map[string]bool{
			"thumbnails":     false,
			"tmdb_blur":      true,
			"tmdb_crop":      true,
			"addon_packages": false,
		},
		Notifications: usecase.NotificationsConfig{
			Enabled: false,
			Sound:   "Glass",
		},
		Logging: usecase.LoggingConfig{
			Dir:        "/logs",
			Level:      "debug",
			MaxSizeMB:  20,
			MaxBackups: 3,
			MaxAgeDays: 7,
			Compress:   false,
		},
		State: usecase.StateConfig{
			Dir: "/state",
		},
	}

	if err := adapter.Save(context.Background(), path, original); err != nil {
		t.Fatalf("unexpected save error: %v", err)
	}

	loaded, err := adapter.Load(context.Background(), path)
	if err != nil {
		t.Fatalf("unexpected load error: %v", err)
	}

	if !reflect.DeepEqual(loaded, original) {
		t.Fatalf("loaded config does not match saved config:\n got %+v\nwant %+v", loaded, original)
	}
}

func TestAdapter_SaveOmitsOptionalCleanupTargets(t *testing.T) {
	t.Parallel()
	adapter := New(slog.Default())
	path := filepath.Join(t.TempDir(), "config.toml")

	cfg := usecase.DefaultConfigFile()
	cfg.Cleanup["umbrella_cache"] = true
	if err := adapter.Save(context.Background(), path, cfg); err != nil {
		t.Fatalf("unexpected save error: %v", err)
	}
	data, err := os.ReadFile(path) // #nosec G304 - test data
	if err != nil {
		t.Fatal(err)
	}
	if strings.Contains(string(data), "umbrella_cache =") {
		t.Fatal("optional cleanup target must not be persisted")
	}
	if !strings.Contains(string(data), "thumbnails = true") {
		t.Fatal("expected default cleanup target to be persisted")
	}
}

func TestAdapter_SaveProducesCommentedTOML(t *testing.T) {
	t.Parallel()
	adapter := New(slog.Default())
	path := filepath.Join(t.TempDir(), "config.toml")

	if err := adapter.Save(context.Background(), path, usecase.DefaultConfigFile()); err != nil {
		t.Fatalf("unexpected save error: %v", err)
	}

	data, err := os.ReadFile(path) // #nosec G304 - test data
	if err != nil {
		t.Fatalf("unexpected read error: %v", err)
	}
	content := string(data)

	for _, marker := range []string{
		"# KodiBack Configuration",
		"# ── Paths",
		"# ── Cleanup Before Backup",
		"# ── Desktop Notifications",
		"# ── Logging",
		"[paths]",
		"[backup]",
		"[cleanup]",
		"[notifications]",
		"[logging]",
		"[state]",
	} {
		if !strings.Contains(content, marker) {
			t.Errorf("expected config to contain %q", marker)
		}
	}
}

func TestAdapter_LoadInvalidTOML(t *testing.T) {
	t.Parallel()
	adapter := New(slog.Default())
	path := filepath.Join(t.TempDir(), "config.toml")

	// #nosec G306 - test data does not require restrictive permissions.
	if err := os.WriteFile(path, []byte("backup = ["), 0o644); err != nil {
		t.Fatalf("failed to write test config: %v", err)
	}

	if _, err := adapter.Load(context.Background(), path); err == nil {
		t.Fatal("expected error for invalid toml")
	}
}

func TestAdapter_LoadPartialKeepsDefaults(t *testing.T) {
	t.Parallel()
	adapter := New(slog.Default())
	path := filepath.Join(t.TempDir(), "config.toml")

	content := "[paths]\nbackup_dir = \"/b\"\n\n[cleanup]\nthumbnails = false\n"
	// #nosec G306 - test data does not require restrictive permissions.
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatal(err)
	}

	cfg, err := adapter.Load(context.Background(), path)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if cfg.Paths.BackupDir != "/b" {
		t.Fatalf("unexpected backup dir %q", cfg.Paths.BackupDir)
	}
	if cfg.Cleanup["thumbnails"] {
		t.Fatal("expected thumbnails to be disabled")
	}
	if !cfg.Cleanup["addon_packages"] {
		t.Fatal("expected addon_packages to keep its default")
	}
	if cfg.Backup.Prefix != usecase.DefaultPrefix {
		t.Fatalf("expected default prefix, got %q", cfg.Backup.Prefix)
	}
}
