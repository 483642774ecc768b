package usecase

// ConfigFile describes TOML configuration structure.
type ConfigFile struct {
	Paths         PathsConfig         `toml:"paths"`
	Backup        BackupConfig        `toml:"backup"`
	Cleanup       map[string]bool     `toml:"cleanup"`
	Notifications NotificationsConfig `toml:"notifications"`
	Logging       LoggingConfig       `toml:"logging"`
	State         StateConfig         `toml:"state"`
}

// PathsConfig holds the installation and archive locations.
type PathsConfig struct {
	SourceDir      string `toml:"source_dir"`
	BackupDir      string `toml:"backup_dir"`
	LastBackupFile string `toml:"last_backup_file"`
}

// BackupConfig holds archive naming settings.
type BackupConfig struct {
	Prefix string `toml:"prefix"`
	Label  string `toml:"label"`
}

// NotificationsConfig holds notification settings.
type NotificationsConfig struct {
	Enabled bool   `toml:"enabled"`
	Sound   string `toml:"sound"`
}

// LoggingConfig holds logging settings.
type LoggingConfig struct {
	Dir        string `toml:"dir"`
	Level      string `toml:"level"`
	MaxSizeMB  int    `toml:"max_size_mb"`
	MaxBackups int    `toml:"max_backups"`
	MaxAgeDays int    `toml:"max_age_days"`
	Compress   bool   `toml:"compress"`
}

// StateConfig holds the location of lock files.
type StateConfig struct {
	Dir string `toml:"dir"`
}

// DefaultPrefix is the archive name prefix used when none is configured.
const DefaultPrefix = "kodi"

// SuggestedBackupDir is the recommended default for paths.backup_dir.
const SuggestedBackupDir = "~/KodiBackups"

// DefaultConfigFile returns default TOML configuration.
func DefaultConfigFile() ConfigFile {
	cleanup := make(map[string]bool)
	for _, t := range cleanupCatalog {
		if t.Default {
			cleanup[string(t.Key)] = true
		}
	}
	return ConfigFile{
		Backup: BackupConfig{
			Prefix: DefaultPrefix,
		},
		Cleanup: cleanup,
		Notifications: NotificationsConfig{
			Enabled: true,
			Sound:   "default",
		},
		Logging: LoggingConfig{
			Dir:        "~/.local/state/kodiback/logs",
			Level:      "info",
			MaxSizeMB:  10,
			MaxBackups: 5,
			MaxAgeDays: 30,
			Compress:   true,
		},
		State: StateConfig{
			Dir: "~/.local/state/kodiback",
		},
	}
}
