package usecase

import (
	"context"
	"errors"
	"fmt"
	"io"
	"path/filepath"
)

// ExtractStats summarizes one ExtractArchive run.
type ExtractStats struct {
	FilesRestored int
	FilesFailed   int
	BytesWritten  int64
}

// ExtractArchive writes every member of archivePath below targetDir. The
// first member that would land outside targetDir aborts the whole
// extraction with ErrUnsafePath. Write failures of individual members are
// counted and reported but do not stop the run.
func ExtractArchive(
	ctx context.Context,
	deps *Dependencies,
	archivePath, targetDir string,
	progress ProgressFunc,
) (ExtractStats, error) {
	rep := newReporter(progress, nil)
	return extractArchive(ctx, deps, archivePath, targetDir, rep)
}

func extractArchive(
	ctx context.Context,
	deps *Dependencies,
	archivePath, targetDir string,
	rep *reporter,
) (ExtractStats, error) {
	var stats ExtractStats
	reader, err := deps.Archive.Open(ctx, archivePath)
	if err != nil {
		rep.errorf(PhaseExtract, "ERROR: Failed to open backup archive: %v", err)
		return stats, fmt.Errorf("open archive %s: %w", archivePath, err)
	}
	defer func() {
		_ = reader.Close()
	}()

	entries := reader.Entries()
	total := countFiles(entries)
	rep.logf(PhaseExtract, "Extracting backup archive (%d files)...", total)

	fs := deps.FileSystem
	for i, entry := range entries {
		if err := ctx.Err(); err != nil {
			rep.errorf(PhaseExtract, "Restore interrupted after %d of %d files", stats.FilesRestored, total)
			return stats, fmt.Errorf("extract archive: %w", ErrInterrupted)
		}
		name := NormalizeMemberName(entry.Name)
		if entry.IsDir || isDirName(name) {
			continue
		}
		if reason, ok := checkMember(targetDir, name); !ok {
			rep.errorf(PhaseExtract, "REFUSED: archive member %q %s; restore aborted", entry.Name, reason)
			return stats, fmt.Errorf("member %q %s: %w", entry.Name, reason, ErrUnsafePath)
		}
		dest := fs.Join(targetDir, filepath.FromSlash(name))
		n, err := extractEntry(ctx, fs, reader, i, entry, dest)
		if err != nil {
			stats.FilesFailed++
			if stats.FilesFailed <= skipSampleLimit {
				rep.warnf(PhaseExtract, "Warning: Could not restore file %s: %v", name, err)
			}
			continue
		}
		stats.FilesRestored++
		stats.BytesWritten += n
		if stats.FilesRestored%progressEvery == 0 {
			rep.count(PhaseExtract, int64(stats.FilesRestored), int64(total),
				"Restored %d/%d files...", stats.FilesRestored, total)
		}
	}

	rep.count(PhaseExtract, int64(stats.FilesRestored), int64(total),
		"Restored %d/%d files (%s)", stats.FilesRestored, total, FormatSize(stats.BytesWritten))
	if stats.FilesFailed > 0 {
		rep.warnf(PhaseExtract, "%d file(s) could not be restored", stats.FilesFailed)
	}
	return stats, nil
}

// extractEntry copies one member to dest, which has already been validated.
func extractEntry(
	ctx context.Context,
	fs FileSystemPort,
	reader ArchiveReader,
	index int,
	entry ArchiveEntry,
	dest string,
) (int64, error) {
	if err := fs.CreateDir(ctx, fs.Dir(dest), 0o755); err != nil {
		return 0, fmt.Errorf("create parent directory: %w", err)
	}
	src, err := reader.OpenEntry(index)
	if err != nil {
		return 0, fmt.Errorf("open member: %w", err)
	}
	defer func() {
		_ = src.Close()
	}()
	dst, err := fs.Create(ctx, dest, entryPerm(entry.Mode))
	if err != nil {
		return 0, err
	}
	n, copyErr := io.Copy(dst, src)
	closeErr := dst.Close()
	if err := errors.Join(copyErr, closeErr); err != nil {
		return n, err
	}
	if !entry.Modified.IsZero() {
		_ = fs.Chtimes(ctx, dest, entry.Modified, entry.Modified)
	}
	return n, nil
}

// scanMembers checks every member against targetDir without writing anything.
func scanMembers(entries []ArchiveEntry, targetDir string) error {
	for _, entry := range entries {
		name := NormalizeMemberName(entry.Name)
		if entry.IsDir && name == "" {
			continue
		}
		if reason, ok := checkMember(targetDir, name); !ok {
			return fmt.Errorf("member %q %s: %w", entry.Name, reason, ErrUnsafePath)
		}
	}
	return nil
}

func entryPerm(mode int) int {
	perm := mode & 0o777
	if perm == 0 {
		return 0o644
	}
	// Keep restored files writable by the owner.
	return perm | 0o600
}

func countFiles(entries []ArchiveEntry) int {
	n := 0
	for _, e := range entries {
		if !e.IsDir && !isDirName(NormalizeMemberName(e.Name)) {
			n++
		}
	}
	return n
}

func isDirName(name string) bool {
	return name != "" && name[len(name)-1] == '/'
}
