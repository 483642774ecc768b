package usecase

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"
)

func fixBackupNow(t *testing.T) {
	t.Helper()
	prev := backupNow
	backupNow = func() time.Time { return time.Date(2024, 5, 1, 21, 30, 0, 0, time.Local) }
	t.Cleanup(func() { backupNow = prev })
}

func TestBackupFilename(t *testing.T) {
	now := time.Date(2024, 5, 1, 0, 0, 0, 0, time.UTC)
	cases := []struct {
		prefix string
		label  string
		want   string
	}{
		{"kodi", "", "kodi.bkup_2024-05-01.zip"},
		{"kodi", "nightly", "kodi.bkup_2024-05-01_nightly.zip"},
		{"", "", "kodi.bkup_2024-05-01.zip"},
		{"living room", "before update", "living_room.bkup_2024-05-01_before_update.zip"},
		{"kodi", `a/b\c:d`, "kodi.bkup_2024-05-01_abcd.zip"},
		{"kodi", "???", "kodi.bkup_2024-05-01_backup.zip"},
		{"kodi", "   ", "kodi.bkup_2024-05-01.zip"},
	}
	for _, tc := range cases {
		if got := BackupFilename(tc.prefix, tc.label, now); got != tc.want {
			t.Errorf("BackupFilename(%q, %q) = %q, want %q", tc.prefix, tc.label, got, tc.want)
		}
	}
}

func TestSanitizeLabel(t *testing.T) {
	cases := map[string]string{
		"nightly":              "nightly",
		"  two  words  ":       "two_words",
		"a__b":                 "a_b",
		"tab\tseparated":       "tab_separated",
		"bell\a":               "bell",
		"_.edge.-":             "edge",
		`<>:"/\|?*`:            "",
		"café":           "café",
		strings.Repeat("x", 60): strings.Repeat("x", 50),
	}
	for in, want := range cases {
		if got := sanitizeLabel(in); got != want {
			t.Errorf("sanitizeLabel(%q) = %q, want %q", in, got, want)
		}
	}
}

func TestResolveDestination(t *testing.T) {
	fixBackupNow(t)
	fs := newTestFileSystem()
	dir := filepath.Join("backups", "kodi")

	gotDir, gotName, err := resolveDestination(fs, dir, "kodi", "weekly")
	if err != nil {
		t.Fatalf("resolveDestination: %v", err)
	}
	if gotDir != dir || gotName != "kodi.bkup_2024-05-01_weekly.zip" {
		t.Fatalf("unexpected destination %s / %s", gotDir, gotName)
	}

	explicit := filepath.Join("backups", "Manual.ZIP")
	gotDir, gotName, err = resolveDestination(fs, explicit, "kodi", "weekly")
	if err != nil {
		t.Fatalf("resolveDestination: %v", err)
	}
	if gotDir != "backups" || gotName != "Manual.ZIP" {
		t.Fatalf("unexpected explicit destination %s / %s", gotDir, gotName)
	}

	if _, _, err := resolveDestination(fs, " ", "kodi", ""); !errors.Is(err, ErrUsage) {
		t.Fatalf("expected ErrUsage for empty destination, got %v", err)
	}
	if _, _, err := resolveDestination(fs, filepath.Join("backups", ".zip"), "kodi", ""); !errors.Is(err, ErrUsage) {
		t.Fatalf("expected ErrUsage for bare extension, got %v", err)
	}
}

func TestPerformFullBackup(t *testing.T) {
	fixBackupNow(t)
	root := makeKodiTree(t)
	dest := filepath.Join(t.TempDir(), "backups")
	deps := newTestDeps()
	lock := deps.Lock.(*testLock)
	sink, events := collectProgress()

	result, err := PerformFullBackup(context.Background(), BackupRequest{
		SourceDir:   root,
		Destination: dest,
		Label:       "nightly",
		Prefix:      "kodi",
		StateDir:    t.TempDir(),
		Progress:    sink,
	}, deps, discardLogger())
	if err != nil {
		t.Fatalf("PerformFullBackup: %v", err)
	}
	if !result.Success || result.ErrorMessage != "" {
		t.Fatalf("unexpected result %+v", result)
	}
	wantPath := filepath.Join(dest, "kodi.bkup_2024-05-01_nightly.zip")
	if result.Path != wantPath || result.Filename != filepath.Base(wantPath) {
		t.Fatalf("unexpected archive %s", result.Path)
	}
	if result.SizeBeforeCleanup != 57 || result.SpaceFreed != 24 || result.SizeAfterCleanup != 33 {
		t.Fatalf("unexpected sizes %+v", result)
	}
	if result.FilesArchived != 4 || result.FilesSkipped != 0 {
		t.Fatalf("unexpected counts %+v", result)
	}
	info, err := os.Stat(wantPath)
	if err != nil {
		t.Fatalf("archive missing: %v", err)
	}
	if result.FinalBackupSize != info.Size() {
		t.Fatalf("final size %d, file size %d", result.FinalBackupSize, info.Size())
	}
	for name := range zipMembers(t, wantPath) {
		if strings.Contains(name, "Thumbnails") || strings.Contains(name, "packages") {
			t.Fatalf("cleaned target %s was archived", name)
		}
	}
	if len(lock.acquired) != 1 || lock.heldCount() != 0 {
		t.Fatalf("lock must be taken once and released, acquired=%v held=%d", lock.acquired, lock.heldCount())
	}

	phases := map[Phase]bool{}
	for _, ev := range events() {
		phases[ev.Phase] = true
	}
	for _, p := range []Phase{PhaseValidate, PhaseMeasure, PhaseCleanup, PhaseArchive, PhaseDone} {
		if !phases[p] {
			t.Fatalf("no progress for phase %s", p)
		}
	}
}

func TestPerformFullBackup_NoCleanup(t *testing.T) {
	root := makeKodiTree(t)
	dest := filepath.Join(t.TempDir(), "explicit.zip")

	result, err := PerformFullBackup(context.Background(), BackupRequest{
		SourceDir:   root,
		Destination: dest,
		Cleanup:     CleanupSet{},
		Progress:    func(ProgressEvent) {},
	}, newTestDeps(), discardLogger())
	if err != nil {
		t.Fatalf("PerformFullBackup: %v", err)
	}
	if result.Path != dest || result.FilesArchived != 8 || result.SpaceFreed != 0 {
		t.Fatalf("unexpected result %+v", result)
	}
	assertExists(t, filepath.Join(root, "userdata", "Thumbnails", "0", "a.jpg"))
}

func TestPerformFullBackup_InvalidSource(t *testing.T) {
	src := t.TempDir()
	writeFile(t, filepath.Join(src, "addons", "a.xml"), "a")
	dest := t.TempDir()

	result, err := PerformFullBackup(context.Background(), BackupRequest{
		SourceDir:   src,
		Destination: dest,
		Progress:    func(ProgressEvent) {},
	}, newTestDeps(), discardLogger())
	if !errors.Is(err, ErrInvalidSource) {
		t.Fatalf("expected ErrInvalidSource, got %v", err)
	}
	if result == nil || result.Success || result.ErrorMessage != "Invalid Kodi directory" {
		t.Fatalf("unexpected result %+v", result)
	}
	entries, _ := os.ReadDir(dest)
	if len(entries) != 0 {
		t.Fatalf("no archive may be written, found %d entries", len(entries))
	}
}

func TestPerformFullBackup_MissingDependencies(t *testing.T) {
	result, err := PerformFullBackup(context.Background(), BackupRequest{}, &Dependencies{}, discardLogger())
	if !errors.Is(err, ErrCritical) {
		t.Fatalf("expected ErrCritical, got %v", err)
	}
	if result == nil || result.Success {
		t.Fatalf("unexpected result %+v", result)
	}
}
