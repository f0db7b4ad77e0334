// Package recoverywatch finds recording sessions left behind by a
// crash and recovers them, both at startup and as new ones appear.
package recoverywatch

import (
	"os"
	"path/filepath"
	"strings"

	"github.com/fsnotify/fsnotify"

	"mp4recorder/pkg/recovery"
)

// Logger is the minimal sink for warnings. A nil Logger disables
// logging.
type Logger interface {
	Warnf(format string, args ...any)
}

func warnf(l Logger, format string, args ...any) {
	if l != nil {
		l.Warnf(format, args...)
	}
}

// Watcher scans a root directory for interrupted recording sessions
// and recovers them, both at startup and as new ones appear.
type Watcher struct {
	root string
	log  Logger
}

// New returns a Watcher over root. log may be nil.
func New(root string, log Logger) *Watcher {
	return &Watcher{root: root, log: log}
}

// sessionPath returns the session's .mp4 path given its .lock path.
func sessionPath(lockPath string) string {
	return strings.TrimSuffix(lockPath, ".lock")
}

// ScanOnce recovers every interrupted session currently under the
// watcher's root, without waiting for filesystem events.
func (w *Watcher) ScanOnce() error {
	entries, err := os.ReadDir(w.root)
	if err != nil {
		return err
	}
	for _, e := range entries {
		if e.IsDir() || !strings.HasSuffix(e.Name(), ".lock") {
			continue
		}
		w.tryRecover(filepath.Join(w.root, e.Name()))
	}
	return nil
}

// Run performs an initial ScanOnce, then watches for newly created
// .lock files until stop is closed. It never returns an error for a
// single failed recovery — those are logged and watching continues.
func (w *Watcher) Run(stop <-chan struct{}) error {
	if err := w.ScanOnce(); err != nil {
		return err
	}

	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return err
	}
	defer watcher.Close()

	if err := watcher.Add(w.root); err != nil {
		return err
	}

	for {
		select {
		case ev, ok := <-watcher.Events:
			if !ok {
				return nil
			}
			if ev.Op&(fsnotify.Create|fsnotify.Rename) == 0 || !strings.HasSuffix(ev.Name, ".lock") {
				continue
			}
			w.tryRecover(ev.Name)

		case err, ok := <-watcher.Errors:
			if !ok {
				return nil
			}
			warnf(w.log, "recoverywatch: watch error: %v", err)

		case <-stop:
			return nil
		}
	}
}

func (w *Watcher) tryRecover(lockPath string) {
	path := sessionPath(lockPath)
	if !recovery.HasIncompleteRecording(path) {
		return
	}
	if err := recovery.Recover(path, nil, nil, w.log); err != nil {
		warnf(w.log, "recoverywatch: could not recover %s: %v", path, err)
	}
}
