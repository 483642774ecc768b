package usecase

import (
	"context"
	"errors"
	"fmt"
	"strings"
)

const archiveExt = ".zip"

// ArchiveReport is the outcome of ValidateArchive.
type ArchiveReport struct {
	Valid                 bool   `json:"valid" yaml:"valid"`
	ErrorMessage          string `json:"error_message,omitempty" yaml:"error_message,omitempty"`
	UserdataFileCount     int    `json:"userdata_file_count" yaml:"userdata_file_count"`
	AddonsFileCount       int    `json:"addons_file_count" yaml:"addons_file_count"`
	TotalUncompressedSize int64  `json:"total_uncompressed_size" yaml:"total_uncompressed_size"`
	Err                   error  `json:"-" yaml:"-"`
}

// ValidateArchive checks, in order, that path exists, has a .zip extension,
// opens as a zip container and holds both userdata and addons members. The
// archive is never extracted.
func ValidateArchive(ctx context.Context, deps *Dependencies, path string, progress ProgressFunc) ArchiveReport {
	rep := newReporter(progress, nil)
	return validateArchive(ctx, deps, path, rep)
}

func validateArchive(ctx context.Context, deps *Dependencies, path string, rep *reporter) ArchiveReport {
	report := inspectArchive(ctx, deps, path)
	if !report.Valid {
		rep.errorf(PhaseValidate, "ERROR: %s", report.ErrorMessage)
		return report
	}
	rep.logf(PhaseValidate, "✓ Backup file is valid")
	rep.logf(PhaseValidate, "✓ Contains userdata folder (%d files)", report.UserdataFileCount)
	rep.logf(PhaseValidate, "✓ Contains addons folder (%d files)", report.AddonsFileCount)
	return report
}

func inspectArchive(ctx context.Context, deps *Dependencies, path string) ArchiveReport {
	fs := deps.FileSystem
	info, err := fs.Stat(ctx, path)
	if err != nil {
		if fs.IsNotExist(err) {
			return invalidArchive(fmt.Sprintf("Backup file not found: %s", path), ErrInvalidArchive)
		}
		return invalidArchive(fmt.Sprintf("Error validating backup file: %v", err), ErrInvalidArchive)
	}
	if info.IsDir() {
		return invalidArchive(fmt.Sprintf("Backup path is a directory: %s", path), ErrInvalidArchive)
	}
	if !strings.EqualFold(fs.Ext(path), archiveExt) {
		return invalidArchive("Backup file must be a ZIP archive", ErrInvalidArchive)
	}

	reader, err := deps.Archive.Open(ctx, path)
	if err != nil {
		if errors.Is(err, ErrMalformedArchive) {
			return invalidArchive("File is not a valid ZIP archive", ErrMalformedArchive)
		}
		return invalidArchive(fmt.Sprintf("Error opening backup file: %v", err), ErrInvalidArchive)
	}
	defer func() {
		_ = reader.Close()
	}()

	return summarizeEntries(reader.Entries())
}

// summarizeEntries checks the top-level layout and counts non-directory members.
func summarizeEntries(entries []ArchiveEntry) ArchiveReport {
	var (
		report      ArchiveReport
		hasUserdata bool
		hasAddons   bool
	)
	for _, entry := range entries {
		name := NormalizeMemberName(entry.Name)
		top := firstSegment(name)
		isDirEntry := entry.IsDir || strings.HasSuffix(name, "/")
		switch top {
		case userdataDir:
			hasUserdata = true
			if !isDirEntry {
				report.UserdataFileCount++
			}
		case addonsDir:
			hasAddons = true
			if !isDirEntry {
				report.AddonsFileCount++
			}
		}
		if !isDirEntry {
			report.TotalUncompressedSize += clampSize(entry.UncompressedSize)
		}
	}
	if !hasUserdata {
		return invalidArchive("Backup file does not contain userdata directory", ErrInvalidArchive)
	}
	if !hasAddons {
		return invalidArchive("Backup file does not contain addons directory", ErrInvalidArchive)
	}
	report.Valid = true
	return report
}

func firstSegment(name string) string {
	top, _, _ := strings.Cut(name, "/")
	return top
}

func clampSize(n uint64) int64 {
	const maxInt64 = 1<<63 - 1
	if n > maxInt64 {
		return maxInt64
	}
	return int64(n)
}

func invalidArchive(msg string, sentinel error) ArchiveReport {
	return ArchiveReport{
		ErrorMessage: msg,
		Err:          fmt.Errorf("%s: %w", msg, sentinel),
	}
}
