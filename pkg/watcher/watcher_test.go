package watcher

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"sync/atomic"
	"testing"
	"time"
)

func TestDebouncer_CoalescesRapidTriggers(t *testing.T) {
	d := NewDebouncer(50 * time.Millisecond)

	var callCount atomic.Int32
	for i := 0; i < 10; i++ {
		d.Trigger(func() {
			callCount.Add(1)
		})
		time.Sleep(10 * time.Millisecond)
	}
	time.Sleep(150 * time.Millisecond)

	if count := callCount.Load(); count != 1 {
		t.Errorf("expected 1 callback invocation, got %d", count)
	}
}

func TestDebouncer_Cancel(t *testing.T) {
	d := NewDebouncer(50 * time.Millisecond)

	var called atomic.Bool
	d.Trigger(func() {
		called.Store(true)
	})
	d.Cancel()
	time.Sleep(100 * time.Millisecond)

	if called.Load() {
		t.Error("callback should not have been invoked after cancel")
	}
}

func TestDebouncer_DefaultDuration(t *testing.T) {
	if d := NewDebouncer(0); d.Duration() != DefaultDebounceDuration {
		t.Errorf("expected default duration %v, got %v", DefaultDebounceDuration, d.Duration())
	}
}

func newDB(t *testing.T) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "risks.db")
	if err := os.WriteFile(path, []byte("initial"), 0o644); err != nil {
		t.Fatal(err)
	}
	return path
}

func waitFor(t *testing.T, flag *atomic.Bool, within time.Duration) bool {
	t.Helper()
	deadline := time.Now().Add(within)
	for time.Now().Before(deadline) {
		if flag.Load() {
			return true
		}
		time.Sleep(10 * time.Millisecond)
	}
	return flag.Load()
}

func startWatcher(t *testing.T, path string, opts ...Option) *Watcher {
	t.Helper()
	w, err := New(path, opts...)
	if err != nil {
		t.Fatal(err)
	}
	if err := w.Start(context.Background()); err != nil {
		t.Fatal(err)
	}
	t.Cleanup(w.Stop)
	return w
}

func TestWatcher_DetectsDatabaseWrite(t *testing.T) {
	for name, forcePoll := range map[string]bool{"fsnotify": false, "polling": true} {
		t.Run(name, func(t *testing.T) {
			path := newDB(t)
			var changed atomic.Bool
			startWatcher(t, path,
				WithDebounceDuration(20*time.Millisecond),
				WithPollInterval(20*time.Millisecond),
				WithForcePoll(forcePoll),
				WithOnChange(func() { changed.Store(true) }),
			)
			time.Sleep(50 * time.Millisecond)

			if err := os.WriteFile(path, []byte("modified content"), 0o644); err != nil {
				t.Fatal(err)
			}
			if !waitFor(t, &changed, 2*time.Second) {
				t.Error("expected change to be detected")
			}
		})
	}
}

func TestWatcher_DetectsWALWrite(t *testing.T) {
	path := newDB(t)
	w := startWatcher(t, path,
		WithDebounceDuration(20*time.Millisecond),
		WithPollInterval(20*time.Millisecond),
		WithForcePoll(true),
	)
	time.Sleep(50 * time.Millisecond)

	if err := os.WriteFile(path+"-wal", []byte("frame"), 0o644); err != nil {
		t.Fatal(err)
	}
	select {
	case <-w.Changed():
	case <-time.After(2 * time.Second):
		t.Error("expected WAL write to signal a change")
	}
}

func TestWatcher_FileRemoved(t *testing.T) {
	path := newDB(t)
	errCh := make(chan error, 4)
	startWatcher(t, path,
		WithPollInterval(20*time.Millisecond),
		WithForcePoll(true),
		WithOnError(func(err error) { errCh <- err }),
	)

	if err := os.Remove(path); err != nil {
		t.Fatal(err)
	}
	select {
	case err := <-errCh:
		if !errors.Is(err, ErrFileRemoved) {
			t.Errorf("expected ErrFileRemoved, got %v", err)
		}
	case <-time.After(2 * time.Second):
		t.Error("expected removal to be reported")
	}
}

func TestWatcher_StartStop(t *testing.T) {
	w, err := New(newDB(t))
	if err != nil {
		t.Fatal(err)
	}
	if w.Mode() != ModeIdle {
		t.Errorf("expected idle before Start, got %q", w.Mode())
	}
	if err := w.Start(context.Background()); err != nil {
		t.Fatal(err)
	}
	if err := w.Start(context.Background()); !errors.Is(err, ErrAlreadyStarted) {
		t.Errorf("expected ErrAlreadyStarted, got %v", err)
	}
	w.Stop()
	if w.Mode() != ModeIdle {
		t.Error("expected watcher stopped")
	}
	w.Stop()

	if err := w.Start(context.Background()); err != nil {
		t.Errorf("expected restart after Stop, got %v", err)
	}
	w.Stop()
}

func TestWatcher_ContextCancelStopsLoop(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	w, err := New(newDB(t), WithForcePoll(true), WithPollInterval(10*time.Millisecond))
	if err != nil {
		t.Fatal(err)
	}
	if err := w.Start(ctx); err != nil {
		t.Fatal(err)
	}
	cancel()

	stopped := make(chan struct{})
	go func() {
		w.Stop()
		close(stopped)
	}()
	select {
	case <-stopped:
	case <-time.After(time.Second):
		t.Fatal("Stop did not return after the context was cancelled")
	}
}

func TestWatcher_EnvForcePoll(t *testing.T) {
	t.Setenv("RB_FORCE_POLL", "yes")
	w := startWatcher(t, newDB(t))
	if w.Mode() != ModePoll {
		t.Errorf("expected RB_FORCE_POLL to select polling, got %q", w.Mode())
	}
}

func TestFileSetCompare(t *testing.T) {
	t0 := time.Date(2025, 3, 1, 0, 0, 0, 0, time.UTC)
	base := fileSet{"db": {t0, 10}, "db-wal": {t0, 5}}

	tests := []struct {
		name        string
		cur         fileSet
		wantChanged bool
		wantRemoved bool
	}{
		{"unchanged", fileSet{"db": {t0, 10}, "db-wal": {t0, 5}}, false, false},
		{"wal grew", fileSet{"db": {t0, 10}, "db-wal": {t0, 9}}, true, false},
		{"db touched", fileSet{"db": {t0.Add(time.Second), 10}, "db-wal": {t0, 5}}, true, false},
		{"wal checkpointed", fileSet{"db": {t0, 10}}, true, false},
		{"journal appeared", fileSet{"db": {t0, 10}, "db-wal": {t0, 5}, "db-journal": {t0, 1}}, true, false},
		{"db removed", fileSet{"db-wal": {t0, 5}}, false, true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			changed, removed := base.compare(tt.cur, "db")
			if changed != tt.wantChanged || removed != tt.wantRemoved {
				t.Errorf("compare = (%v, %v), want (%v, %v)", changed, removed, tt.wantChanged, tt.wantRemoved)
			}
		})
	}
}

func TestEnvBool(t *testing.T) {
	tests := map[string]bool{"1": true, "true": true, " On ": true, "0": false, "no": false, "": false}
	for v, want := range tests {
		t.Setenv("RB_TEST_BOOL", v)
		if got := envBool("RB_TEST_BOOL"); got != want {
			t.Errorf("envBool(%q) = %v, want %v", v, got, want)
		}
	}
}

func TestIsRemoteFilesystem(t *testing.T) {
	for _, fs := range []FilesystemType{FSTypeNFS, FSTypeSMB, FSTypeFUSE} {
		if !isRemoteFilesystem(fs) {
			t.Errorf("%s should be remote", fs)
		}
	}
	if isRemoteFilesystem(FSTypeLocal) || isRemoteFilesystem(FSTypeUnknown) {
		t.Error("local and unknown filesystems should not be remote")
	}
}

func TestDetectFilesystemType_NonExistentPath(t *testing.T) {
	if got := DetectFilesystemType("/nonexistent/dir/risks.db"); got != FSTypeUnknown {
		t.Errorf("expected unknown, got %s", got)
	}
}
