package usecase

import "errors"

var (
	// ErrUsage indicates user input/usage errors.
	ErrUsage = errors.New("usage error")
	// ErrCritical indicates critical failures that should exit with error.
	ErrCritical = errors.New("critical error")
	// ErrLockBusy indicates an active lock held by another process.
	ErrLockBusy = errors.New("lock busy")
	// ErrInterrupted indicates a canceled or interrupted operation.
	ErrInterrupted = errors.New("interrupted")

	// ErrInvalidSource indicates a directory without the userdata/addons layout.
	ErrInvalidSource = errors.New("invalid source directory")
	// ErrInvalidArchive indicates a missing file, wrong extension or missing top-level directories.
	ErrInvalidArchive = errors.New("invalid backup archive")
	// ErrMalformedArchive indicates a container that cannot be parsed as a zip archive.
	ErrMalformedArchive = errors.New("malformed archive")
	// ErrUnsafePath indicates an archive member that would escape the extraction directory.
	ErrUnsafePath = errors.New("unsafe archive member")
	// ErrUnsafeTarget indicates a restore target that must not be written to.
	ErrUnsafeTarget = errors.New("unsafe restore target")
)

// IsSafetyViolation reports whether err is a refusal rather than an I/O failure.
func IsSafetyViolation(err error) bool {
	return errors.Is(err, ErrUnsafePath) || errors.Is(err, ErrUnsafeTarget)
}
