// Package ioutils provides file system utilities for the mail mirror.
//
// This package contains functions for:
//   - Existence checks against the mirror tree
//   - Directory creation
//   - Locking a mirror root against concurrent syncs
package ioutils

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"github.com/gofrs/flock"
)

// LockFileName is the name of the lock file placed in a mirror root.
const LockFileName = ".mailmirror.lock"

// ErrLocked is returned by LockMirror when another process holds the lock.
var ErrLocked = errors.New("mirror root is locked by another sync")

// Exists reports whether path exists as a regular file or a directory.
//
// Any stat error (not found, permission denied, ...) is reported as false.
// The mirror only needs a binary "already mirrored" signal; a false
// negative merely causes a redundant download attempt.
//
// Example:
//
//	if !Exists("/mirror/2021-07-04/abc123/") {
//	    EnsureDir("/mirror/2021-07-04/abc123/")
//	}
func Exists(path string) bool {
	info, err := os.Stat(path)
	if err != nil {
		return false
	}
	return info.IsDir() || info.Mode().IsRegular()
}

// EnsureDir creates a directory and all parent directories if they don't exist.
//
// Directories are created with mode 0755 (rwxr-xr-x).
// If the directory already exists, no error is returned, which also makes
// concurrent callers racing on the same path safe.
func EnsureDir(path string) error {
	return os.MkdirAll(path, 0755)
}

// OS implements the mirror's file system capability on the local disk.
type OS struct{}

// Exists calls the package level Exists.
func (OS) Exists(path string) bool { return Exists(path) }

// EnsureDir calls the package level EnsureDir.
func (OS) EnsureDir(path string) error { return EnsureDir(path) }

// LockMirror takes an exclusive, non-blocking lock on root.
//
// The root is created if needed. The returned unlock function releases the
// lock; ErrLocked is returned when another process already holds it.
//
// Example:
//
//	unlock, err := LockMirror("/mirror/mail")
//	if err != nil {
//	    return err
//	}
//	defer unlock()
func LockMirror(root string) (func() error, error) {
	if err := EnsureDir(root); err != nil {
		return nil, fmt.Errorf("create mirror root: %w", err)
	}

	lock := flock.New(filepath.Join(root, LockFileName))
	ok, err := lock.TryLock()
	if err != nil {
		return nil, fmt.Errorf("acquire lock %s: %w", lock.Path(), err)
	}
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrLocked, lock.Path())
	}

	return lock.Unlock, nil
}
