package usecase

import "time"

// Config contains runtime settings resolved from the config file and flags.
type Config struct {
	SourceDir      string
	BackupDir      string
	LastBackupFile string
	Prefix         string
	Label          string
	StateDir       string
	Cleanup        CleanupSet
	Verbose        bool
	Notify         bool
	NotifySound    string
}

// FileInfo represents file information.
type FileInfo interface {
	Name() string
	Size() int64
	Mode() int
	ModTime() time.Time
	IsDir() bool
	IsSymlink() bool
	IsRegular() bool
	Sys() interface{}
}

// WalkFunc is called for each file/directory during Walk.
type WalkFunc func(path string, info FileInfo, err error) error

// DirEntry represents a directory entry.
type DirEntry interface {
	Name() string
	IsDir() bool
}

// ArchiveEntry describes one member of a backup archive as stored.
type ArchiveEntry struct {
	Name             string
	IsDir            bool
	UncompressedSize uint64
	Mode             int
	Modified         time.Time
}

// LockInfo represents lock file information.
type LockInfo struct {
	PID               int       `json:"pid"`
	StartTime         time.Time `json:"start_time"`
	Operation         string    `json:"operation"`
	TreePath          string    `json:"tree_path"`
	Hostname          string    `json:"hostname"`
	ProcessStartTicks int64     `json:"process_start_ticks"`
	ProcessStartID    string    `json:"process_start_id"`
}

// BackupResult is the outcome of PerformFullBackup.
type BackupResult struct {
	Success           bool          `json:"success" yaml:"success"`
	Filename          string        `json:"filename" yaml:"filename"`
	Path              string        `json:"path" yaml:"path"`
	SizeBeforeCleanup int64         `json:"size_before_cleanup" yaml:"size_before_cleanup"`
	SizeAfterCleanup  int64         `json:"size_after_cleanup" yaml:"size_after_cleanup"`
	SpaceFreed        int64         `json:"space_freed" yaml:"space_freed"`
	FinalBackupSize   int64         `json:"final_backup_size" yaml:"final_backup_size"`
	FilesArchived     int           `json:"files_archived" yaml:"files_archived"`
	FilesSkipped      int           `json:"files_skipped" yaml:"files_skipped"`
	Cleanup           CleanupResult `json:"cleanup" yaml:"cleanup"`
	ErrorMessage      string        `json:"error_message,omitempty" yaml:"error_message,omitempty"`
}

// RestoreResult is the outcome of PerformRestore.
type RestoreResult struct {
	Success               bool   `json:"success" yaml:"success"`
	UserdataFileCount     int    `json:"userdata_file_count" yaml:"userdata_file_count"`
	AddonsFileCount       int    `json:"addons_file_count" yaml:"addons_file_count"`
	TotalUncompressedSize int64  `json:"total_uncompressed_size" yaml:"total_uncompressed_size"`
	FilesRestored         int    `json:"files_restored" yaml:"files_restored"`
	FilesFailed           int    `json:"files_failed" yaml:"files_failed"`
	ClearedExisting       bool   `json:"cleared_existing" yaml:"cleared_existing"`
	ErrorMessage          string `json:"error_message,omitempty" yaml:"error_message,omitempty"`
	ErrorAlreadyReported  bool   `json:"error_already_reported,omitempty" yaml:"error_already_reported,omitempty"`
}
