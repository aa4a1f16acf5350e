// Package ioutils provides file system and image utilities for the mail mirror.
//
// This package contains functions for:
//   - Existence checks that collapse stat errors to "absent"
//   - Directory creation that is safe for concurrent callers
//   - An exclusive lock on a mirror root (gofrs/flock)
//   - Image header verification for downloaded scans
//
// # File Operations
//
//	// Check the mirror tree
//	if ioutils.Exists("/mirror/2021-07-04/abc123/scan.jpeg") {
//	    // already mirrored
//	}
//
//	// Ensure directory exists
//	err := ioutils.EnsureDir("/mirror/2021-07-04/abc123/")
//
// # Locking
//
//	unlock, err := ioutils.LockMirror("/mirror")
//	if errors.Is(err, ioutils.ErrLocked) {
//	    // another sync is running
//	}
//	defer unlock()
//
// # Image Verification
//
// The ImageService rejects scans whose header cannot be decoded:
//
//	svc := ioutils.NewImageService()
//	err := svc.Verify(ctx, tmpPath, "scan.jpeg")
package ioutils
