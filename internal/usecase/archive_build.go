package usecase

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"strings"
)

const (
	partialSuffix = ".partial"
	spoolSuffix   = ".spool"
)

// stageInMemoryLimit is the largest source file read into memory before it is
// added. Larger files are copied to a spool file next to the archive first.
var stageInMemoryLimit int64 = 16 << 20

// ArchiveStats summarizes one BuildArchive run.
type ArchiveStats struct {
	Path              string
	FilesArchived     int
	FilesSkipped      int
	UncompressedBytes int64
}

// BuildArchive writes userdata and addons below sourceRoot into
// destDir/filename. Files that cannot be read are skipped and counted; the
// call fails only when the archive itself cannot be written.
func BuildArchive(
	ctx context.Context,
	deps *Dependencies,
	sourceRoot, destDir, filename string,
	progress ProgressFunc,
) (ArchiveStats, error) {
	rep := newReporter(progress, nil)
	return buildArchive(ctx, deps, sourceRoot, destDir, filename, rep)
}

type archiveBuild struct {
	ctx        context.Context
	fs         FileSystemPort
	writer     ArchiveWriter
	sourceRoot string
	// outputPath and spoolPath are excluded so a destination inside the tree
	// is not archived into itself.
	outputPath string
	spoolPath  string
	rep        *reporter
	stats      ArchiveStats
}

func buildArchive(
	ctx context.Context,
	deps *Dependencies,
	sourceRoot, destDir, filename string,
	rep *reporter,
) (ArchiveStats, error) {
	fs := deps.FileSystem
	if err := fs.CreateDir(ctx, destDir, 0o755); err != nil {
		rep.errorf(PhaseArchive, "ERROR: Cannot create backup destination %s: %v", destDir, err)
		return ArchiveStats{}, fmt.Errorf("create destination %s: %v: %w", destDir, err, ErrCritical)
	}
	finalPath := fs.Join(destDir, filename)
	tmpPath := finalPath + partialSuffix

	rep.logf(PhaseArchive, "Creating backup with compression...")
	rep.logf(PhaseArchive, "Output: %s", filename)

	writer, err := deps.Archive.Create(ctx, tmpPath)
	if err != nil {
		rep.errorf(PhaseArchive, "ERROR: Failed to create backup archive: %v", err)
		return ArchiveStats{}, fmt.Errorf("create archive %s: %v: %w", tmpPath, err, ErrCritical)
	}

	b := &archiveBuild{
		ctx:        ctx,
		fs:         fs,
		writer:     writer,
		sourceRoot: sourceRoot,
		outputPath: fs.Clean(tmpPath),
		spoolPath:  fs.Clean(finalPath + spoolSuffix),
		rep:        rep,
	}
	walkErr := b.addTrees()
	closeErr := writer.Close()

	if walkErr != nil || closeErr != nil {
		_ = fs.Remove(ctx, tmpPath)
		if walkErr == nil {
			walkErr = closeErr
		}
		if errors.Is(walkErr, context.Canceled) || errors.Is(walkErr, context.DeadlineExceeded) {
			rep.errorf(PhaseArchive, "Backup interrupted after %d files", b.stats.FilesArchived)
			return b.stats, fmt.Errorf("build archive: %w", ErrInterrupted)
		}
		rep.errorf(PhaseArchive, "ERROR: Failed to create backup archive: %v", walkErr)
		return b.stats, fmt.Errorf("build archive: %v: %w", walkErr, ErrCritical)
	}

	if err := fs.Move(ctx, tmpPath, finalPath); err != nil {
		_ = fs.Remove(ctx, tmpPath)
		rep.errorf(PhaseArchive, "ERROR: Cannot finalize backup archive: %v", err)
		return b.stats, fmt.Errorf("finalize archive %s: %v: %w", finalPath, err, ErrCritical)
	}
	b.stats.Path = finalPath

	rep.count(PhaseArchive, int64(b.stats.FilesArchived), int64(b.stats.FilesArchived),
		"Archived %d files (%s uncompressed)", b.stats.FilesArchived, FormatSize(b.stats.UncompressedBytes))
	if b.stats.FilesSkipped > 0 {
		rep.warnf(PhaseArchive, "Skipped %d file(s) that could not be read", b.stats.FilesSkipped)
	}
	return b.stats, nil
}

// addTrees walks each installation directory exactly once.
func (b *archiveBuild) addTrees() error {
	for _, dir := range installationDirs {
		root := b.fs.Join(b.sourceRoot, dir)
		if _, err := b.fs.Stat(b.ctx, root); err != nil {
			if b.fs.IsNotExist(err) {
				b.rep.warnf(PhaseArchive, "Directory %s not found, nothing to archive from it", dir)
				continue
			}
			b.skip(root, err)
			continue
		}
		if err := b.fs.Walk(b.ctx, root, b.visit); err != nil {
			return err
		}
	}
	return nil
}

func (b *archiveBuild) visit(path string, info FileInfo, err error) error {
	if ctxErr := b.ctx.Err(); ctxErr != nil {
		return ctxErr
	}
	if clean := b.fs.Clean(path); clean == b.outputPath || clean == b.spoolPath {
		return nil
	}
	if err != nil {
		b.skip(path, err)
		return nil
	}
	if info == nil || !info.IsRegular() {
		return nil
	}
	rel, err := b.fs.Rel(b.sourceRoot, path)
	if err != nil {
		b.skip(path, err)
		return nil
	}
	name := NormalizeMemberName(rel)
	n, err := b.addFile(path, name, info)
	if err != nil {
		if isArchiveWriteError(err) {
			return err
		}
		b.skip(path, err)
		return nil
	}
	b.stats.FilesArchived++
	b.stats.UncompressedBytes += n
	if b.stats.FilesArchived%progressEvery == 0 {
		b.rep.count(PhaseArchive, int64(b.stats.FilesArchived), 0,
			"Archived %d files...", b.stats.FilesArchived)
	}
	return nil
}

// archiveWriteError marks failures of the archive stream itself, which
// cannot be skipped like a single unreadable source file.
type archiveWriteError struct{ err error }

func (e *archiveWriteError) Error() string { return e.err.Error() }
func (e *archiveWriteError) Unwrap() error { return e.err }

func isArchiveWriteError(err error) bool {
	var target *archiveWriteError
	return errors.As(err, &target)
}

// addFile reads the whole source before the member is created, so a file
// that fails mid-read is skipped instead of being stored truncated.
func (b *archiveBuild) addFile(path, name string, info FileInfo) (int64, error) {
	staged, release, err := b.stage(path, info)
	if err != nil {
		return 0, err
	}
	defer release()
	n, err := b.writer.Add(b.ctx, name, info, staged)
	if err != nil {
		return n, &archiveWriteError{err: err}
	}
	return n, nil
}

// stage returns the complete content of path. Only errors reading path are
// returned unwrapped; spool failures are archive write errors.
func (b *archiveBuild) stage(path string, info FileInfo) (io.Reader, func(), error) {
	src, err := b.fs.Open(b.ctx, path)
	if err != nil {
		return nil, nil, err
	}
	defer func() {
		_ = src.Close()
	}()

	if info == nil || info.Size() <= stageInMemoryLimit {
		data, err := io.ReadAll(src)
		if err != nil {
			return nil, nil, err
		}
		return bytes.NewReader(data), func() {}, nil
	}

	spool, err := b.fs.Create(b.ctx, b.spoolPath, 0o600)
	if err != nil {
		return nil, nil, &archiveWriteError{err: fmt.Errorf("create spool file: %w", err)}
	}
	discard := func() {
		_ = b.fs.Remove(b.ctx, b.spoolPath)
	}
	_, copyErr := io.Copy(spool, &readTracker{r: src})
	closeErr := spool.Close()
	if copyErr != nil {
		discard()
		if readErr, ok := asReadError(copyErr); ok {
			return nil, nil, readErr
		}
		return nil, nil, &archiveWriteError{err: fmt.Errorf("write spool file: %w", copyErr)}
	}
	if closeErr != nil {
		discard()
		return nil, nil, &archiveWriteError{err: fmt.Errorf("write spool file: %w", closeErr)}
	}
	staged, err := b.fs.Open(b.ctx, b.spoolPath)
	if err != nil {
		discard()
		return nil, nil, &archiveWriteError{err: fmt.Errorf("open spool file: %w", err)}
	}
	return staged, func() {
		_ = staged.Close()
		discard()
	}, nil
}

// sourceReadError marks a failure reading the source file while it is being
// spooled, as opposed to a failure writing the spool file.
type sourceReadError struct{ err error }

func (e *sourceReadError) Error() string { return e.err.Error() }
func (e *sourceReadError) Unwrap() error { return e.err }

type readTracker struct {
	r io.Reader
}

func (t *readTracker) Read(p []byte) (int, error) {
	n, err := t.r.Read(p)
	if err != nil && err != io.EOF {
		return n, &sourceReadError{err: err}
	}
	return n, err
}

func asReadError(err error) (error, bool) {
	var target *sourceReadError
	if errors.As(err, &target) {
		return target.err, true
	}
	return nil, false
}

func (b *archiveBuild) skip(path string, err error) {
	b.stats.FilesSkipped++
	if b.stats.FilesSkipped <= skipSampleLimit {
		b.rep.warnf(PhaseArchive, "Warning: Could not backup file %s: %v", path, err)
	} else if b.stats.FilesSkipped == skipSampleLimit+1 {
		b.rep.warnf(PhaseArchive, "Further skipped files are counted but not listed")
	}
}

// isPartialArchive reports whether name is a leftover of an interrupted build.
func isPartialArchive(name string) bool {
	return strings.HasSuffix(name, partialSuffix)
}
