package usecase

import (
	"archive/zip"
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"
	"sync"
	"syscall"
	"testing"
	"time"
)

type testFileSystem struct{}

func newTestFileSystem() *testFileSystem {
	return &testFileSystem{}
}

func safeFileMode(perm int, fallback fs.FileMode) fs.FileMode {
	if perm < 0 || perm > 0o777 {
		return fallback
	}
	// #nosec G115 -- perm validated to be within safe range.
	return fs.FileMode(perm)
}

func (a *testFileSystem) ReadFile(ctx context.Context, path string) ([]byte, error) {
	_ = ctx
	// #nosec G304 -- test paths are controlled by the test harness.
	return os.ReadFile(path)
}

func (a *testFileSystem) WriteFile(ctx context.Context, path string, data []byte, perm int) error {
	_ = ctx
	return os.WriteFile(path, data, safeFileMode(perm, 0o644))
}

func (a *testFileSystem) CreateDir(ctx context.Context, path string, perm int) error {
	_ = ctx
	return os.MkdirAll(path, safeFileMode(perm, 0o755))
}

func (a *testFileSystem) Remove(ctx context.Context, path string) error {
	_ = ctx
	return os.Remove(path)
}

func (a *testFileSystem) RemoveAll(ctx context.Context, path string) error {
	_ = ctx
	return os.RemoveAll(path)
}

func (a *testFileSystem) Stat(ctx context.Context, path string) (FileInfo, error) {
	_ = ctx
	info, err := os.Stat(path)
	if err != nil {
		return nil, err
	}
	return &fileInfoWrapperTest{info}, nil
}

func (a *testFileSystem) Lstat(ctx context.Context, path string) (FileInfo, error) {
	_ = ctx
	info, err := os.Lstat(path)
	if err != nil {
		return nil, err
	}
	return &fileInfoWrapperTest{info}, nil
}

func (a *testFileSystem) Open(ctx context.Context, path string) (io.ReadCloser, error) {
	_ = ctx
	// #nosec G304 -- test paths are controlled by the test harness.
	return os.Open(path)
}

func (a *testFileSystem) Create(ctx context.Context, path string, perm int) (io.WriteCloser, error) {
	_ = ctx
	// #nosec G304 -- test paths are controlled by the test harness.
	return os.OpenFile(path, os.O_WRONLY|os.O_CREATE|os.O_TRUNC, safeFileMode(perm, 0o644))
}

func (a *testFileSystem) Walk(ctx context.Context, root string, walkFn WalkFunc) error {
	return filepath.Walk(root, func(path string, info fs.FileInfo, err error) error {
		if ctxErr := ctx.Err(); ctxErr != nil {
			return ctxErr
		}
		var fileInfo FileInfo
		if info != nil {
			fileInfo = &fileInfoWrapperTest{info}
		}
		return walkFn(path, fileInfo, err)
	})
}

func (a *testFileSystem) ReadDir(ctx context.Context, path string) ([]DirEntry, error) {
	_ = ctx
	entries, err := os.ReadDir(path)
	if err != nil {
		return nil, err
	}
	result := make([]DirEntry, 0, len(entries))
	for _, entry := range entries {
		result = append(result, &dirEntryWrapperTest{entry})
	}
	return result, nil
}

func (a *testFileSystem) Move(ctx context.Context, src, dst string) error {
	_ = ctx
	if err := os.MkdirAll(filepath.Dir(dst), 0o750); err != nil {
		return err
	}
	return os.Rename(src, dst)
}

func (a *testFileSystem) Chtimes(ctx context.Context, path string, atime, mtime time.Time) error {
	_ = ctx
	return os.Chtimes(path, atime, mtime)
}

func (a *testFileSystem) Abs(ctx context.Context, path string) (string, error) {
	_ = ctx
	return filepath.Abs(path)
}

func (a *testFileSystem) EvalSymlinks(ctx context.Context, path string) (string, error) {
	_ = ctx
	return filepath.EvalSymlinks(path)
}

func (a *testFileSystem) Join(elements ...string) string {
	return filepath.Join(elements...)
}

func (a *testFileSystem) Base(path string) string {
	return filepath.Base(path)
}

func (a *testFileSystem) Dir(path string) string {
	return filepath.Dir(path)
}

func (a *testFileSystem) Ext(path string) string {
	return filepath.Ext(path)
}

func (a *testFileSystem) IsAbs(path string) bool { return filepath.IsAbs(path) }
func (a *testFileSystem) Rel(basepath, targpath string) (string, error) {
	return filepath.Rel(basepath, targpath)
}
func (a *testFileSystem) Clean(path string) string      { return filepath.Clean(path) }
func (a *testFileSystem) VolumeName(path string) string { return filepath.VolumeName(path) }
func (a *testFileSystem) PathSeparator() byte           { return os.PathSeparator }
func (a *testFileSystem) IsNotExist(err error) bool {
	return os.IsNotExist(err) || errors.Is(err, syscall.ENOTDIR)
}
func (a *testFileSystem) IsExist(err error) bool { return os.IsExist(err) }
func (a *testFileSystem) IsNotEmpty(err error) bool {
	return errors.Is(err, syscall.ENOTEMPTY) || errors.Is(err, syscall.EEXIST)
}
func (a *testFileSystem) IsPermission(err error) bool {
	return os.IsPermission(err) || errors.Is(err, syscall.EACCES) || errors.Is(err, syscall.EPERM)
}

type fileInfoWrapperTest struct {
	info fs.FileInfo
}

func (f *fileInfoWrapperTest) Name() string       { return f.info.Name() }
func (f *fileInfoWrapperTest) Size() int64        { return f.info.Size() }
func (f *fileInfoWrapperTest) Mode() int          { return int(f.info.Mode()) }
func (f *fileInfoWrapperTest) ModTime() time.Time { return f.info.ModTime() }
func (f *fileInfoWrapperTest) IsDir() bool        { return f.info.IsDir() }
func (f *fileInfoWrapperTest) IsSymlink() bool    { return f.info.Mode()&os.ModeSymlink != 0 }
func (f *fileInfoWrapperTest) IsRegular() bool    { return f.info.Mode().IsRegular() }
func (f *fileInfoWrapperTest) Sys() interface{}   { return f.info.Sys() }

type dirEntryWrapperTest struct {
	entry fs.DirEntry
}

func (d *dirEntryWrapperTest) Name() string { return d.entry.Name() }
func (d *dirEntryWrapperTest) IsDir() bool  { return d.entry.IsDir() }

// testArchive implements ArchivePort with the standard library zip package.
type testArchive struct{}

func (testArchive) Create(ctx context.Context, path string) (ArchiveWriter, error) {
	_ = ctx
	// #nosec G304 -- test paths are controlled by the test harness.
	f, err := os.Create(path)
	if err != nil {
		return nil, err
	}
	return &testArchiveWriter{file: f, zw: zip.NewWriter(f)}, nil
}

func (testArchive) Open(ctx context.Context, path string) (ArchiveReader, error) {
	_ = ctx
	rc, err := zip.OpenReader(path)
	if err != nil && rc == nil {
		if errors.Is(err, zip.ErrFormat) || errors.Is(err, io.ErrUnexpectedEOF) {
			return nil, fmt.Errorf("%s: %v: %w", path, err, ErrMalformedArchive)
		}
		return nil, err
	}
	entries := make([]ArchiveEntry, len(rc.File))
	for i, f := range rc.File {
		entries[i] = ArchiveEntry{
			Name:             f.Name,
			IsDir:            f.FileInfo().IsDir(),
			UncompressedSize: f.UncompressedSize64,
			Mode:             int(f.Mode().Perm()),
			Modified:         f.Modified,
		}
	}
	return &testArchiveReader{rc: rc, entries: entries}, nil
}

type testArchiveWriter struct {
	file *os.File
	zw   *zip.Writer
}

func (w *testArchiveWriter) Add(ctx context.Context, name string, info FileInfo, r io.Reader) (int64, error) {
	if err := ctx.Err(); err != nil {
		return 0, err
	}
	h := &zip.FileHeader{Name: name, Method: zip.Deflate}
	if info != nil {
		h.Modified = info.ModTime()
		h.SetMode(fs.FileMode(info.Mode()) & fs.ModePerm)
	}
	dst, err := w.zw.CreateHeader(h)
	if err != nil {
		return 0, err
	}
	return io.Copy(dst, r)
}

func (w *testArchiveWriter) Close() error {
	return errors.Join(w.zw.Close(), w.file.Close())
}

type testArchiveReader struct {
	rc      *zip.ReadCloser
	entries []ArchiveEntry
}

func (r *testArchiveReader) Entries() []ArchiveEntry { return r.entries }

func (r *testArchiveReader) OpenEntry(index int) (io.ReadCloser, error) {
	return r.rc.File[index].Open()
}

func (r *testArchiveReader) Close() error { return r.rc.Close() }

// testLock is an in-process LockPort.
type testLock struct {
	mu       sync.Mutex
	held     map[string]LockInfo
	acquired []string
}

func newTestLock() *testLock {
	return &testLock{held: map[string]LockInfo{}}
}

func (l *testLock) AcquireLock(ctx context.Context, path string, info LockInfo) error {
	l.mu.Lock()
	defer l.mu.Unlock()
	if _, ok := l.held[path]; ok {
		return fmt.Errorf("lock %s: %w", path, ErrLockBusy)
	}
	l.held[path] = info
	l.acquired = append(l.acquired, path)
	return nil
}

func (l *testLock) ReleaseLock(ctx context.Context, path string) error {
	l.mu.Lock()
	defer l.mu.Unlock()
	delete(l.held, path)
	return nil
}

func (l *testLock) IsLocked(ctx context.Context, path string) (bool, LockInfo, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	info, ok := l.held[path]
	return ok, info, nil
}

func (l *testLock) RefreshLock(ctx context.Context, path string) error { return nil }

func (l *testLock) heldCount() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return len(l.held)
}

type testProcess struct{}

func (testProcess) GetPID() int { return os.Getpid() }

// testConfig keeps configs in memory keyed by path.
type testConfig struct {
	mu    sync.Mutex
	files map[string]ConfigFile
}

func newTestConfig() *testConfig {
	return &testConfig{files: map[string]ConfigFile{}}
}

func (c *testConfig) Load(ctx context.Context, path string) (ConfigFile, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	cfg, ok := c.files[path]
	if !ok {
		return DefaultConfigFile(), nil
	}
	return cfg, nil
}

func (c *testConfig) Save(ctx context.Context, path string, cfg ConfigFile) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.files[path] = cfg
	return os.WriteFile(path, []byte("# test config\n"), 0o644)
}

func newTestDeps() *Dependencies {
	return &Dependencies{
		FileSystem: newTestFileSystem(),
		Archive:    testArchive{},
		Lock:       newTestLock(),
		Process:    testProcess{},
		Config:     newTestConfig(),
	}
}

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

// collectProgress returns a sink and a function listing the messages it saw.
func collectProgress() (ProgressFunc, func() []ProgressEvent) {
	var mu sync.Mutex
	var events []ProgressEvent
	sink := func(ev ProgressEvent) {
		mu.Lock()
		defer mu.Unlock()
		events = append(events, ev)
	}
	return sink, func() []ProgressEvent {
		mu.Lock()
		defer mu.Unlock()
		return append([]ProgressEvent(nil), events...)
	}
}

func writeFile(t *testing.T, path, content string) {
	t.Helper()
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatal(err)
	}
}

// makeKodiTree creates a small installation with one file in every default
// cleanup target.
func makeKodiTree(t *testing.T) string {
	t.Helper()
	root := filepath.Join(t.TempDir(), "kodi")
	writeFile(t, filepath.Join(root, "userdata", "guisettings.xml"), "<settings/>")
	writeFile(t, filepath.Join(root, "userdata", "Database", "MyVideos131.db"), "videos")
	writeFile(t, filepath.Join(root, "userdata", "Thumbnails", "0", "a.jpg"), "thumbnail")
	writeFile(t, filepath.Join(root, "userdata", "addon_data", "plugin.video.themoviedb.helper", "blur_v2", "b.png"), "blur")
	writeFile(t, filepath.Join(root, "userdata", "addon_data", "plugin.video.themoviedb.helper", "crop_v2", "c.png"), "crop")
	writeFile(t, filepath.Join(root, "userdata", "addon_data", "plugin.video.umbrella", "cache.db"), "umbrella")
	writeFile(t, filepath.Join(root, "addons", "packages", "plugin.zip"), "package")
	writeFile(t, filepath.Join(root, "addons", "plugin.video.test", "addon.xml"), "<addon/>")
	return root
}

// writeRawZip writes members with exactly the given names.
func writeRawZip(t *testing.T, path string, members map[string]string) {
	t.Helper()
	var buf bytes.Buffer
	zw := zip.NewWriter(&buf)
	for name, body := range members {
		w, err := zw.Create(name)
		if err != nil {
			t.Fatal(err)
		}
		if _, err := w.Write([]byte(body)); err != nil {
			t.Fatal(err)
		}
	}
	if err := zw.Close(); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(path, buf.Bytes(), 0o644); err != nil {
		t.Fatal(err)
	}
}
