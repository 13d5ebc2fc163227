package watcher

import (
	"errors"
	"fmt"
	"hash/fnv"
	"os"
	"path/filepath"

	"github.com/gofrs/flock"
)

// ErrAlreadyWatching is returned when another process holds the session lock.
var ErrAlreadyWatching = errors.New("another watch session holds the lock")

// SessionLock is a cross-process lock ensuring one watch session per
// manifest directory.
type SessionLock struct {
	path  string
	flock *flock.Flock
}

// LockPath returns the lock file for a manifest directory under dataDir.
func LockPath(dataDir, manifestDir string) string {
	abs, err := filepath.Abs(manifestDir)
	if err != nil {
		abs = manifestDir
	}
	h := fnv.New64a()
	_, _ = h.Write([]byte(abs))
	return filepath.Join(dataDir, "locks", fmt.Sprintf("watch-%x.lock", h.Sum64()))
}

// AcquireSessionLock takes the lock at path without blocking.
func AcquireSessionLock(path string) (*SessionLock, error) {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, fmt.Errorf("failed to create lock directory: %w", err)
	}

	fl := flock.New(path)
	ok, err := fl.TryLock()
	if err != nil {
		return nil, fmt.Errorf("failed to acquire lock: %w", err)
	}
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrAlreadyWatching, path)
	}
	return &SessionLock{path: path, flock: fl}, nil
}

// Path returns the lock file path.
func (l *SessionLock) Path() string { return l.path }

// Release unlocks. Safe to call more than once.
func (l *SessionLock) Release() error {
	if !l.flock.Locked() {
		return nil
	}
	if err := l.flock.Unlock(); err != nil {
		return fmt.Errorf("failed to release lock: %w", err)
	}
	return nil
}
