package download

import (
	"context"

	"github.com/handiism/mailmirror/internal/model"
)

// Lister turns the remote catalog into the list of downloads still needed.
type Lister struct {
	catalog Catalog
	fs      FileSystem
	root    string

	// onSkip is called with every target path that already exists.
	onSkip func(path string)
}

// NewLister creates a Lister for the mirror tree rooted at root.
func NewLister(catalog Catalog, fs FileSystem, root string, onSkip func(path string)) *Lister {
	return &Lister{
		catalog: catalog,
		fs:      fs,
		root:    root,
		onSkip:  onSkip,
	}
}

// ListPieces fetches the full catalog. There is no partial mode: any
// failure fails the listing.
func (l *Lister) ListPieces(ctx context.Context) ([]*model.Piece, error) {
	return l.catalog.ListPieces(ctx)
}

// BuildWorkList plans the downloads for pieces, in piece then media order.
//
// For every piece the directory is created first when missing, before any
// of its files is checked. Media whose target path already exists are
// reported through onSkip and left out. A media item that cannot be named
// aborts the whole listing with a *model.NamingError; a directory that
// cannot be created aborts it with a *FilesystemError.
func (l *Lister) BuildWorkList(pieces []*model.Piece) ([]model.WorkItem, error) {
	var work []model.WorkItem

	for _, piece := range pieces {
		dir := model.PlanDirectory(l.root, piece)
		if !l.fs.Exists(dir) {
			if err := l.fs.EnsureDir(dir); err != nil {
				return nil, &FilesystemError{Path: dir, Err: err}
			}
		}

		for _, media := range piece.Media {
			name, err := media.FileName()
			if err != nil {
				return nil, err
			}

			path := model.PlanFile(dir, name)
			if l.fs.Exists(path) {
				if l.onSkip != nil {
					l.onSkip(path)
				}
				continue
			}

			work = append(work, model.WorkItem{URL: media.URL, Path: path})
		}
	}

	return work, nil
}
