package usecase

import (
	"context"
	"io"
	"time"
)

// Dependencies represents all external dependencies needed by use cases
type Dependencies struct {
	FileSystem   FileSystemPort
	Archive      ArchivePort
	Lock         LockPort
	Process      ProcessPort
	Config       ConfigPort
	Notification NotificationPort
}

// Ports define the interfaces that use cases need (hexagonal architecture)

// FileSystemPort defines filesystem operations needed by use cases
type FileSystemPort interface {
	// Core file operations
	ReadFile(ctx context.Context, path string) ([]byte, error)
	WriteFile(ctx context.Context, path string, data []byte, perm int) error
	CreateDir(ctx context.Context, path string, perm int) error
	Remove(ctx context.Context, path string) error
	RemoveAll(ctx context.Context, path string) error
	Stat(ctx context.Context, path string) (FileInfo, error)
	Lstat(ctx context.Context, path string) (FileInfo, error)

	// Streaming access
	Open(ctx context.Context, path string) (io.ReadCloser, error)
	Create(ctx context.Context, path string, perm int) (io.WriteCloser, error)

	// Directory operations
	Walk(ctx context.Context, root string, walkFn WalkFunc) error
	ReadDir(ctx context.Context, path string) ([]DirEntry, error)

	// File operations
	Move(ctx context.Context, src, dst string) error
	Chtimes(ctx context.Context, path string, atime, mtime time.Time) error

	// Path operations
	Abs(ctx context.Context, path string) (string, error)
	EvalSymlinks(ctx context.Context, path string) (string, error)
	Join(elements ...string) string
	Base(path string) string
	Dir(path string) string
	Ext(path string) string
	IsAbs(path string) bool
	Rel(basepath, targpath string) (string, error)
	Clean(path string) string
	VolumeName(path string) string
	PathSeparator() byte

	// Error classification
	IsNotExist(err error) bool
	IsExist(err error) bool
	IsPermission(err error) bool
	IsNotEmpty(err error) bool
}

// ArchivePort defines access to the compressed backup container.
type ArchivePort interface {
	// Create starts a new archive at path. The file is truncated if it exists.
	Create(ctx context.Context, path string) (ArchiveWriter, error)

	// Open reads the member list of an existing archive. Implementations return
	// an error wrapping ErrMalformedArchive when the container itself is corrupt.
	Open(ctx context.Context, path string) (ArchiveReader, error)
}

// ArchiveWriter appends members to an archive opened for writing.
type ArchiveWriter interface {
	// Add compresses r into a member called name and returns the number of
	// uncompressed bytes written.
	Add(ctx context.Context, name string, info FileInfo, r io.Reader) (int64, error)
	Close() error
}

// ArchiveReader exposes the members of an archive opened for reading.
type ArchiveReader interface {
	Entries() []ArchiveEntry
	// OpenEntry returns the decompressed stream for Entries()[index].
	OpenEntry(index int) (io.ReadCloser, error)
	Close() error
}

// ConfigPort defines configuration operations needed by use cases
type ConfigPort interface {
	Load(ctx context.Context, path string) (ConfigFile, error)
	Save(ctx context.Context, path string, cfg ConfigFile) error
}

// LockPort defines locking operations needed by use cases
type LockPort interface {
	AcquireLock(ctx context.Context, path string, info LockInfo) error
	ReleaseLock(ctx context.Context, path string) error
	IsLocked(ctx context.Context, path string) (bool, LockInfo, error)
	RefreshLock(ctx context.Context, path string) error
}

// ProcessPort defines process operations needed by use cases
type ProcessPort interface {
	GetPID() int
}

// NotificationPort defines desktop notification operations needed by use cases
type NotificationPort interface {
	// Send sends a desktop notification. sound can be empty.
	Send(ctx context.Context, title, message, sound string) error
}
