// Package lockfile implements the half-duplex playback lock: a file whose
// existence tells the receiver that speaker output is in progress and capture
// ticks must be ignored.
package lockfile

import (
	"fmt"
	"log/slog"
	"os"
	"strconv"
	"time"

	"github.com/spf13/afero"
)

// Lock marks playback ownership through a file on a filesystem shared with
// the receiver process.
type Lock struct {
	fs   afero.Fs
	path string
}

// New creates a Lock at path.
func New(fs afero.Fs, path string) *Lock {
	return &Lock{fs: fs, path: path}
}

// Path returns the lock file path.
func (l *Lock) Path() string { return l.path }

// Acquire creates the lock file. The file body records the owning PID for
// operator inspection; only existence carries meaning.
func (l *Lock) Acquire() error {
	body := strconv.Itoa(os.Getpid()) + "\n"
	if err := afero.WriteFile(l.fs, l.path, []byte(body), 0o644); err != nil {
		return fmt.Errorf("lockfile: acquiring %s: %w", l.path, err)
	}
	return nil
}

// Release removes the lock file. Releasing an absent lock is not an error.
func (l *Lock) Release() error {
	err := l.fs.Remove(l.path)
	if err != nil && !os.IsNotExist(err) {
		return fmt.Errorf("lockfile: releasing %s: %w", l.path, err)
	}
	return nil
}

// Held reports whether the lock file currently exists. Errors other than
// absence are treated as held, so the receiver stays muted rather than
// capturing its own playback.
func (l *Lock) Held() bool {
	_, err := l.fs.Stat(l.path)
	if err == nil {
		return true
	}
	if os.IsNotExist(err) {
		return false
	}
	slog.Warn("lockfile: stat failed, treating lock as held", "path", l.path, "error", err)
	return true
}

// ClearStale removes a lock file left behind by a previous run. Called once
// at transmitter startup, before any playback.
func (l *Lock) ClearStale() {
	if !l.Held() {
		return
	}
	slog.Warn("lockfile: clearing stale lock from previous run", "path", l.path)
	if err := l.Release(); err != nil {
		slog.Error("lockfile: failed to clear stale lock", "path", l.path, "error", err)
	}
}

// SettleDelay is the pause kept around lock transitions so trailing playback
// audio drains from the capture path before the receiver unmutes.
const SettleDelay = time.Second
