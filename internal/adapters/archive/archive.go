package archive

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"log/slog"
	"os"

	"github.com/klauspost/compress/flate"
	"github.com/klauspost/compress/zip"

	"github.com/arumata/kodiback/internal/usecase"
)

// compressionLevel is the fixed deflate level used for every member.
const compressionLevel = 6

const writeBufferSize = 1 << 20

// Adapter implements usecase.ArchivePort with zip containers.
type Adapter struct {
	logger *slog.Logger
}

// New creates a new archive adapter.
func New(logger *slog.Logger) *Adapter {
	if logger == nil {
		panic("archive adapter requires logger")
	}
	return &Adapter{logger: logger}
}

// Create starts a new zip archive at path.
func (a *Adapter) Create(ctx context.Context, path string) (usecase.ArchiveWriter, error) {
	f, err := os.Create(path) // #nosec G304 - paths are controlled by usecase
	if err != nil {
		return nil, err
	}
	buf := bufio.NewWriterSize(f, writeBufferSize)
	zw := zip.NewWriter(buf)
	zw.RegisterCompressor(zip.Deflate, func(out io.Writer) (io.WriteCloser, error) {
		return flate.NewWriter(out, compressionLevel)
	})
	return &writer{file: f, buf: buf, zw: zw}, nil
}

// Open reads the central directory of the archive at path.
func (a *Adapter) Open(ctx context.Context, path string) (usecase.ArchiveReader, error) {
	rc, err := zip.OpenReader(path)
	if err != nil {
		if rc != nil {
			// Names the reader considers insecure are still listed; the
			// caller applies its own containment checks.
			a.logger.DebugContext(ctx, "zip reader warning", "path", path, "error", err)
			return newReader(rc), nil
		}
		if isFormatError(err) {
			return nil, fmt.Errorf("%s: %v: %w", path, err, usecase.ErrMalformedArchive)
		}
		return nil, err
	}
	return newReader(rc), nil
}

func isFormatError(err error) bool {
	return errors.Is(err, zip.ErrFormat) ||
		errors.Is(err, zip.ErrAlgorithm) ||
		errors.Is(err, io.ErrUnexpectedEOF)
}

type writer struct {
	file *os.File
	buf  *bufio.Writer
	zw   *zip.Writer
}

func (w *writer) Add(ctx context.Context, name string, info usecase.FileInfo, r io.Reader) (int64, error) {
	if err := ctx.Err(); err != nil {
		return 0, err
	}
	header := &zip.FileHeader{
		Name:   name,
		Method: zip.Deflate,
	}
	if info != nil {
		header.Modified = info.ModTime()
		header.SetMode(fs.FileMode(info.Mode()) & fs.ModePerm) // #nosec G115 - mode bits only
	}
	dst, err := w.zw.CreateHeader(header)
	if err != nil {
		return 0, fmt.Errorf("create member %s: %w", name, err)
	}
	n, err := io.Copy(dst, r)
	if err != nil {
		return n, fmt.Errorf("write member %s: %w", name, err)
	}
	return n, nil
}

func (w *writer) Close() error {
	zipErr := w.zw.Close()
	flushErr := w.buf.Flush()
	var syncErr error
	if zipErr == nil && flushErr == nil {
		syncErr = w.file.Sync()
	}
	closeErr := w.file.Close()
	return errors.Join(zipErr, flushErr, syncErr, closeErr)
}

type reader struct {
	rc      *zip.ReadCloser
	entries []usecase.ArchiveEntry
}

func newReader(rc *zip.ReadCloser) *reader {
	entries := make([]usecase.ArchiveEntry, len(rc.File))
	for i, f := range rc.File {
		entries[i] = usecase.ArchiveEntry{
			Name:             f.Name,
			IsDir:            f.FileInfo().IsDir(),
			UncompressedSize: f.UncompressedSize64,
			Mode:             int(f.Mode().Perm()),
			Modified:         f.Modified,
		}
	}
	return &reader{rc: rc, entries: entries}
}

func (r *reader) Entries() []usecase.ArchiveEntry {
	return r.entries
}

func (r *reader) OpenEntry(index int) (io.ReadCloser, error) {
	if index < 0 || index >= len(r.rc.File) {
		return nil, fmt.Errorf("member index %d out of range", index)
	}
	return r.rc.File[index].Open()
}

func (r *reader) Close() error {
	return r.rc.Close()
}
