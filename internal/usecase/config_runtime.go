package usecase

import (
	"fmt"
	"strings"
)

// RuntimeConfigFromFile converts TOML config into runtime config. Only the
// default cleanup group is read from the file; optional targets stay off.
func RuntimeConfigFromFile(cfg ConfigFile, homeDir string) (*Config, error) {
	cleanHome := strings.TrimSpace(homeDir)
	if cleanHome == "" {
		return nil, fmt.Errorf("home directory is empty: %w", ErrCritical)
	}

	cleanup := DefaultCleanupSet()
	for key, on := range cfg.Cleanup {
		target, ok := LookupCleanupTarget(CleanupKey(key))
		if !ok {
			return nil, fmt.Errorf("unknown cleanup target %q in config: %w", key, ErrUsage)
		}
		if !target.Default {
			continue
		}
		if on {
			cleanup[target.Key] = struct{}{}
		} else {
			delete(cleanup, target.Key)
		}
	}

	prefix := strings.TrimSpace(cfg.Backup.Prefix)
	if prefix == "" {
		prefix = DefaultPrefix
	}

	return &Config{
		SourceDir:      expandHomeDir(cfg.Paths.SourceDir, cleanHome),
		BackupDir:      expandHomeDir(cfg.Paths.BackupDir, cleanHome),
		LastBackupFile: expandHomeDir(cfg.Paths.LastBackupFile, cleanHome),
		Prefix:         prefix,
		Label:          strings.TrimSpace(cfg.Backup.Label),
		StateDir:       expandHomeDir(cfg.State.Dir, cleanHome),
		Cleanup:        cleanup,
		Notify:         cfg.Notifications.Enabled,
		NotifySound:    cfg.Notifications.Sound,
	}, nil
}
