// Package watcher reports changes to a SQLite database file made by other
// processes, so the dashboard can reload its working set. A commit touches the
// main file, its write-ahead log or its rollback journal; all three are
// watched.
package watcher

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"
)

// DefaultPollInterval is the stat interval in polling mode.
const DefaultPollInterval = 2 * time.Second

var (
	ErrFileRemoved    = errors.New("watched database was removed")
	ErrPermission     = errors.New("permission denied")
	ErrAlreadyStarted = errors.New("watcher already started")
)

// Mode is the change detection strategy chosen by Start.
type Mode string

const (
	ModeIdle   Mode = ""
	ModeNotify Mode = "fsnotify"
	ModePoll   Mode = "poll"
)

type settings struct {
	debounce  time.Duration
	poll      time.Duration
	forcePoll bool
	onChange  func()
	onError   func(error)
}

// Option configures a Watcher.
type Option func(*settings)

// WithDebounceDuration sets how long writes are coalesced before a change
// is reported.
func WithDebounceDuration(d time.Duration) Option {
	return func(s *settings) { s.debounce = d }
}

// WithPollInterval sets the stat interval used in polling mode.
func WithPollInterval(d time.Duration) Option {
	return func(s *settings) { s.poll = d }
}

// WithForcePoll skips fsnotify. RB_FORCE_POLL=1 does the same.
func WithForcePoll(force bool) Option {
	return func(s *settings) { s.forcePoll = force }
}

// WithOnChange registers a callback run after each debounced change, before
// Changed is signalled.
func WithOnChange(fn func()) Option {
	return func(s *settings) { s.onChange = fn }
}

// WithOnError registers a callback for watch errors. ErrFileRemoved is
// reported when the database itself disappears.
func WithOnError(fn func(error)) Option {
	return func(s *settings) { s.onError = fn }
}

// Watcher watches one SQLite database.
type Watcher struct {
	db        string
	set       settings
	debouncer *Debouncer
	changes   chan struct{}

	mu     sync.Mutex
	mode   Mode
	fsType FilesystemType
	cancel context.CancelFunc
	done   chan struct{}
}

// New returns a stopped Watcher for the database at path.
func New(path string, opts ...Option) (*Watcher, error) {
	abs, err := filepath.Abs(path)
	if err != nil {
		return nil, err
	}
	set := settings{
		debounce: DefaultDebounceDuration,
		poll:     DefaultPollInterval,
		onChange: func() {},
		onError:  func(error) {},
	}
	for _, opt := range opts {
		opt(&set)
	}
	return &Watcher{
		db:        abs,
		set:       set,
		debouncer: NewDebouncer(set.debounce),
		changes:   make(chan struct{}, 1),
	}, nil
}

// Start begins watching until Stop is called or ctx is done. fsnotify is
// used unless polling is forced or the database lives on a network or FUSE
// filesystem, where events are unreliable.
func (w *Watcher) Start(ctx context.Context) error {
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.cancel != nil {
		return ErrAlreadyStarted
	}

	prev, err := snapshot(w.files())
	if err != nil {
		return err
	}

	w.fsType = DetectFilesystemType(w.db)
	var fsw *fsnotify.Watcher
	if !w.set.forcePoll && !envBool("RB_FORCE_POLL") && !isRemoteFilesystem(w.fsType) {
		fsw, err = fsnotify.NewWatcher()
		if err == nil {
			// The directory, not the files: the WAL and journal come and go.
			if err = fsw.Add(filepath.Dir(w.db)); err != nil {
				fsw.Close()
				fsw = nil
			}
		}
	}

	ctx, cancel := context.WithCancel(ctx)
	w.cancel = cancel
	done := make(chan struct{})
	w.done = done
	if fsw != nil {
		w.mode = ModeNotify
		go w.notifyLoop(ctx, done, fsw)
	} else {
		w.mode = ModePoll
		go w.pollLoop(ctx, done, prev)
	}
	return nil
}

// Stop ends watching and waits for the loop to exit. Safe to call twice.
func (w *Watcher) Stop() {
	w.mu.Lock()
	cancel, done := w.cancel, w.done
	w.cancel, w.done, w.mode = nil, nil, ModeIdle
	w.mu.Unlock()

	if cancel == nil {
		return
	}
	cancel()
	<-done
	w.debouncer.Cancel()
}

// Mode reports the active strategy, ModeIdle when stopped.
func (w *Watcher) Mode() Mode {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.mode
}

// FilesystemType is the classification made by the last Start.
func (w *Watcher) FilesystemType() FilesystemType {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.fsType
}

// Changed receives once per debounced change. Changes arriving while a
// signal is pending are merged into it.
func (w *Watcher) Changed() <-chan struct{} {
	return w.changes
}

// Path returns the absolute database path.
func (w *Watcher) Path() string {
	return w.db
}

func (w *Watcher) files() []string {
	return []string{w.db, w.db + "-wal", w.db + "-journal"}
}

func (w *Watcher) notifyLoop(ctx context.Context, done chan<- struct{}, fsw *fsnotify.Watcher) {
	defer close(done)
	defer fsw.Close()

	watched := make(map[string]bool, 3)
	for _, p := range w.files() {
		watched[filepath.Base(p)] = true
	}
	dbName := filepath.Base(w.db)

	for {
		select {
		case <-ctx.Done():
			return
		case ev, ok := <-fsw.Events:
			if !ok {
				return
			}
			name := filepath.Base(ev.Name)
			if !watched[name] {
				continue
			}
			if ev.Has(fsnotify.Remove) {
				// The WAL is deleted on checkpoint.
				if name == dbName {
					w.set.onError(ErrFileRemoved)
				}
				continue
			}
			if ev.Has(fsnotify.Write) || ev.Has(fsnotify.Create) || ev.Has(fsnotify.Rename) {
				w.debouncer.Trigger(w.signal)
			}
		case err, ok := <-fsw.Errors:
			if !ok {
				return
			}
			w.set.onError(err)
		}
	}
}

func (w *Watcher) pollLoop(ctx context.Context, done chan<- struct{}, prev fileSet) {
	defer close(done)
	ticker := time.NewTicker(w.set.poll)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
		}
		cur, err := snapshot(w.files())
		if err != nil {
			w.set.onError(err)
			continue
		}
		changed, dbRemoved := prev.compare(cur, w.db)
		prev = cur
		if dbRemoved {
			w.set.onError(ErrFileRemoved)
		}
		if changed {
			w.debouncer.Trigger(w.signal)
		}
	}
}

func (w *Watcher) signal() {
	if w.Mode() == ModeIdle {
		return
	}
	w.set.onChange()
	select {
	case w.changes <- struct{}{}:
	default:
	}
}

type fileStat struct {
	mtime time.Time
	size  int64
}

// fileSet holds the stats of the files that exist.
type fileSet map[string]fileStat

func snapshot(paths []string) (fileSet, error) {
	set := make(fileSet, len(paths))
	for _, p := range paths {
		info, err := os.Stat(p)
		switch {
		case err == nil:
			set[p] = fileStat{mtime: info.ModTime(), size: info.Size()}
		case os.IsNotExist(err):
		case os.IsPermission(err):
			return nil, ErrPermission
		default:
			return nil, err
		}
	}
	return set, nil
}

// compare reports whether any file appeared, vanished or was modified, and
// whether the database file db vanished.
func (s fileSet) compare(cur fileSet, db string) (changed, dbRemoved bool) {
	for p, before := range s {
		after, ok := cur[p]
		if !ok {
			if p == db {
				dbRemoved = true
			} else {
				changed = true
			}
			continue
		}
		if after.size != before.size || after.mtime.After(before.mtime) {
			changed = true
		}
	}
	for p := range cur {
		if _, ok := s[p]; !ok {
			changed = true
		}
	}
	return changed, dbRemoved
}

func envBool(name string) bool {
	switch strings.ToLower(strings.TrimSpace(os.Getenv(name))) {
	case "1", "true", "yes", "y", "on":
		return true
	}
	return false
}
