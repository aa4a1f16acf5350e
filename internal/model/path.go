package model

import (
	"path/filepath"
	"strings"
)

// bucketLen is the length of a YYYY-MM-DD date prefix.
const bucketLen = len("2006-01-02")

// Bucket returns the date bucket of a piece: the first 10 characters of
// CreatedAt, or all of it when shorter.
//
// The truncation assumes an ISO-8601 timestamp such as
// "2021-07-04T10:00:00Z". Any other format produces a plausible looking
// but wrong bucket; the value is not parsed or corrected.
func (p *Piece) Bucket() string {
	if len(p.CreatedAt) < bucketLen {
		return p.CreatedAt
	}
	return p.CreatedAt[:bucketLen]
}

// PlanDirectory computes the mirror directory of a piece:
//
//	<root>/<YYYY-MM-DD>/<piece id>/
//
// The returned path always ends with a path separator so PlanFile can
// append a filename directly.
//
// Example:
//
//	piece := &Piece{ID: "abc123", CreatedAt: "2021-07-04T10:00:00Z"}
//	PlanDirectory("/mirror", piece) // "/mirror/2021-07-04/abc123/"
func PlanDirectory(root string, p *Piece) string {
	return filepath.Join(root, p.Bucket(), p.ID) + string(filepath.Separator)
}

// PlanFile joins a directory from PlanDirectory with a filename from
// NameMedia. No escaping is applied; filenames must come from NameMedia.
func PlanFile(dir, fileName string) string {
	return dir + fileName
}

// IsSafeSegment reports whether s can be used as a single path segment
// inside the mirror tree: non-empty, not "." or "..", and free of path
// separators.
func IsSafeSegment(s string) bool {
	if s == "" || s == "." || s == ".." {
		return false
	}
	return !strings.ContainsAny(s, `/\`) && !strings.ContainsRune(s, 0)
}
