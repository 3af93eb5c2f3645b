package utils

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/gofrs/flock"
	homedir "github.com/mitchellh/go-homedir"
)

const (
	lockSuffix       = ".lock"
	lockPollInterval = 250 * time.Millisecond
)

// DBLock serializes writers of one database file across gamescanner
// processes. SQLite's busy timeout covers single statements; the lock covers a
// whole lookup-then-append.
type DBLock struct {
	fl *flock.Flock
}

func NewDBLock(dbPath string) (*DBLock, error) {
	abs, err := GetAbsDBPath(dbPath)
	if err != nil {
		return nil, fmt.Errorf("could not resolve db path: %w", err)
	}
	if err := os.MkdirAll(filepath.Dir(abs), 0o700); err != nil {
		return nil, fmt.Errorf("could not create lock directory: %w", err)
	}
	return &DBLock{fl: flock.New(abs + lockSuffix)}, nil
}

func (l *DBLock) Path() string { return l.fl.Path() }

// Lock blocks until the lock is held or ctx is done.
func (l *DBLock) Lock(ctx context.Context) error {
	ok, err := l.fl.TryLock()
	if err != nil {
		return fmt.Errorf("locking %s: %w", l.Path(), err)
	}
	if ok {
		return nil
	}

	Log.Warnf("%s is held by another gamescanner process, waiting", l.Path())
	ok, err = l.fl.TryLockContext(ctx, lockPollInterval)
	if err != nil {
		return fmt.Errorf("waiting for %s: %w", l.Path(), err)
	}
	if !ok {
		return fmt.Errorf("waiting for %s: %w", l.Path(), ctx.Err())
	}
	return nil
}

// Unlock releases the lock. Releasing a lock that is not held is a no-op.
func (l *DBLock) Unlock() error {
	if !l.fl.Locked() {
		return nil
	}
	if err := l.fl.Unlock(); err != nil {
		return fmt.Errorf("unlocking %s: %w", l.Path(), err)
	}
	return nil
}

// GetAbsDBPath resolves the database path. An empty path selects
// ~/.config/gamescanner/gamescanner.sqlite.
func GetAbsDBPath(dbPath string) (string, error) {
	if dbPath != "" {
		return filepath.Abs(dbPath)
	}
	home, err := homedir.Dir()
	if err != nil {
		return "", err
	}
	return filepath.Join(home, ".config", "gamescanner", "gamescanner.sqlite"), nil
}
