package usecase

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"sync/atomic"
	"testing"
	"time"
)

func TestSanitizeSegment(t *testing.T) {
	cases := map[string]string{
		"":        "root",
		"kodi":    "kodi",
		".kodi":   "kodi",
		"my kodi": "my_kodi",
		"Kodi-19": "Kodi-19",
		"ü":       "root",
	}
	for in, want := range cases {
		if got := sanitizeSegment(in); got != want {
			t.Errorf("sanitizeSegment(%q) = %q, want %q", in, got, want)
		}
	}
}

func TestLockName(t *testing.T) {
	fs := newTestFileSystem()
	a := lockName(fs, "/home/tester/.kodi")
	b := lockName(fs, "/media/usb/.kodi")
	if !strings.HasPrefix(a, "kodi--") || !strings.HasSuffix(a, ".lock") {
		t.Fatalf("unexpected lock name %s", a)
	}
	if len(a) != len("kodi--")+8+len(".lock") {
		t.Fatalf("unexpected hash length in %s", a)
	}
	if a == b {
		t.Fatal("different trees must use different locks")
	}
	if a != lockName(fs, "/home/tester/.kodi") {
		t.Fatal("lock name must be stable")
	}
}

func TestAcquireOperationLock_Disabled(t *testing.T) {
	lock, err := acquireOperationLock(context.Background(), newTestDeps(), " ", "/kodi", operationBackup, discardLogger())
	if err != nil || lock != nil {
		t.Fatalf("expected no lock, got %v, %v", lock, err)
	}
	lock.Close()
}

func TestAcquireOperationLock_Busy(t *testing.T) {
	deps := newTestDeps()
	stateDir := t.TempDir()
	tree := filepath.Join(t.TempDir(), "kodi")

	first, err := acquireOperationLock(context.Background(), deps, stateDir, tree, operationBackup, discardLogger())
	if err != nil {
		t.Fatalf("first acquire: %v", err)
	}
	if _, err := os.Stat(filepath.Join(stateDir, "locks")); err != nil {
		t.Fatalf("locks dir missing: %v", err)
	}

	_, err = acquireOperationLock(context.Background(), deps, stateDir, tree, operationRestore, discardLogger())
	if !errors.Is(err, ErrLockBusy) {
		t.Fatalf("expected ErrLockBusy, got %v", err)
	}
	if !strings.Contains(err.Error(), "backup already running") {
		t.Fatalf("error should name the running operation: %v", err)
	}

	first.Close()
	second, err := acquireOperationLock(context.Background(), deps, stateDir, tree, operationRestore, discardLogger())
	if err != nil {
		t.Fatalf("acquire after release: %v", err)
	}
	second.Close()
}

type countingLock struct {
	*testLock
	refreshes atomic.Int32
}

func (l *countingLock) RefreshLock(ctx context.Context, path string) error {
	l.refreshes.Add(1)
	return nil
}

func TestAcquireOperationLock_Refreshes(t *testing.T) {
	prev := lockRefreshInterval
	lockRefreshInterval = 5 * time.Millisecond
	t.Cleanup(func() { lockRefreshInterval = prev })

	deps := newTestDeps()
	counter := &countingLock{testLock: newTestLock()}
	deps.Lock = counter

	lock, err := acquireOperationLock(context.Background(), deps, t.TempDir(), t.TempDir(), operationClean, discardLogger())
	if err != nil {
		t.Fatalf("acquire: %v", err)
	}
	deadline := time.Now().Add(2 * time.Second)
	for counter.refreshes.Load() == 0 && time.Now().Before(deadline) {
		time.Sleep(5 * time.Millisecond)
	}
	lock.Close()
	if counter.refreshes.Load() == 0 {
		t.Fatal("expected at least one refresh")
	}
	if counter.heldCount() != 0 {
		t.Fatal("lock must be released on Close")
	}
}
