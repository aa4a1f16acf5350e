package download

import (
	"context"

	"github.com/handiism/mailmirror/internal/model"
)

// Catalog lists every piece in the remote archive.
type Catalog interface {
	ListPieces(ctx context.Context) ([]*model.Piece, error)
}

// Transfer copies the resource at url to dest and returns the bytes written.
// dest must only become visible once it is fully written.
type Transfer interface {
	Fetch(ctx context.Context, url, dest string) (int64, error)
}

// FileSystem is the mirror tree capability used while planning work.
type FileSystem interface {
	// Exists reports whether path is a file or directory; errors mean false.
	Exists(path string) bool

	// EnsureDir creates path and its parents. It must be safe for
	// concurrent callers on the same path.
	EnsureDir(path string) error
}

// ReadOnly wraps fs so EnsureDir does nothing. Used to plan a sync without
// touching the mirror tree.
func ReadOnly(fs FileSystem) FileSystem {
	return readOnlyFS{fs}
}

type readOnlyFS struct {
	FileSystem
}

func (readOnlyFS) EnsureDir(string) error { return nil }
