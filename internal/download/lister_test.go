package download

import (
	"context"
	"errors"
	"path/filepath"
	"slices"
	"strings"
	"sync"
	"testing"

	"github.com/handiism/mailmirror/internal/model"
)

// memFS is an in-memory FileSystem that records every call.
type memFS struct {
	mu       sync.Mutex
	paths    map[string]bool
	calls    []string
	mkdirErr error
}

func newMemFS(existing ...string) *memFS {
	fs := &memFS{paths: make(map[string]bool)}
	for _, p := range existing {
		fs.paths[p] = true
	}
	return fs
}

func (fs *memFS) Exists(path string) bool {
	fs.mu.Lock()
	defer fs.mu.Unlock()
	fs.calls = append(fs.calls, "exists "+path)
	return fs.paths[path]
}

func (fs *memFS) EnsureDir(path string) error {
	fs.mu.Lock()
	defer fs.mu.Unlock()
	fs.calls = append(fs.calls, "mkdir "+path)
	if fs.mkdirErr != nil {
		return fs.mkdirErr
	}
	fs.paths[path] = true
	return nil
}

type staticCatalog struct {
	pieces []*model.Piece
	err    error
}

func (c *staticCatalog) ListPieces(context.Context) ([]*model.Piece, error) {
	return c.pieces, c.err
}

const testRoot = "/mirror"

func dirOf(bucket, id string) string {
	return filepath.Join(testRoot, bucket, id) + string(filepath.Separator)
}

func twoByTwo() []*model.Piece {
	return []*model.Piece{
		{
			ID:        "p1",
			CreatedAt: "2021-07-04T10:00:00Z",
			Media: []*model.MediaItem{
				{URL: "https://cdn/p1/scan", Tags: []string{"scan"}, ContentType: "image/jpeg"},
				{URL: "https://cdn/p1/front", Tags: []string{"enclosure", "front"}, ContentType: "image/jpeg"},
			},
		},
		{
			ID:        "p2",
			CreatedAt: "2021-07-05T08:30:00Z",
			Media: []*model.MediaItem{
				{URL: "https://cdn/p2/back", Tags: []string{"back", "enclosure"}, ContentType: "image/png"},
				{URL: "https://cdn/p2/scan", Tags: []string{"scan"}, ContentType: "application/pdf"},
			},
		},
	}
}

func TestBuildWorkList_Order(t *testing.T) {
	lister := NewLister(&staticCatalog{}, newMemFS(), testRoot, nil)

	work, err := lister.BuildWorkList(twoByTwo())
	if err != nil {
		t.Fatalf("BuildWorkList failed: %v", err)
	}

	want := []model.WorkItem{
		{URL: "https://cdn/p1/scan", Path: dirOf("2021-07-04", "p1") + "scan.jpeg"},
		{URL: "https://cdn/p1/front", Path: dirOf("2021-07-04", "p1") + "front-enclosure.jpeg"},
		{URL: "https://cdn/p2/back", Path: dirOf("2021-07-05", "p2") + "back-enclosure.png"},
		{URL: "https://cdn/p2/scan", Path: dirOf("2021-07-05", "p2") + "scan.pdf"},
	}
	if !slices.Equal(work, want) {
		t.Errorf("work list =\n%v\nwant\n%v", work, want)
	}
}

func TestBuildWorkList_SkipsExisting(t *testing.T) {
	dir := dirOf("2021-07-04", "p1")
	fs := newMemFS(dir, dir+"scan.jpeg")

	var skipped []string
	lister := NewLister(&staticCatalog{}, fs, testRoot, func(path string) {
		skipped = append(skipped, path)
	})

	work, err := lister.BuildWorkList(twoByTwo()[:1])
	if err != nil {
		t.Fatalf("BuildWorkList failed: %v", err)
	}

	if len(work) != 1 || work[0].Path != dir+"front-enclosure.jpeg" {
		t.Errorf("work list = %v, want only front-enclosure.jpeg", work)
	}
	if len(skipped) != 1 || skipped[0] != dir+"scan.jpeg" {
		t.Errorf("skipped = %v, want [%s]", skipped, dir+"scan.jpeg")
	}
	for _, call := range fs.calls {
		if strings.HasPrefix(call, "mkdir ") {
			t.Errorf("unexpected %q for an existing directory", call)
		}
	}
}

func TestBuildWorkList_CreatesDirectoryBeforeFileChecks(t *testing.T) {
	fs := newMemFS()
	lister := NewLister(&staticCatalog{}, fs, testRoot, nil)

	if _, err := lister.BuildWorkList(twoByTwo()[:1]); err != nil {
		t.Fatalf("BuildWorkList failed: %v", err)
	}

	dir := dirOf("2021-07-04", "p1")
	want := []string{
		"exists " + dir,
		"mkdir " + dir,
		"exists " + dir + "scan.jpeg",
		"exists " + dir + "front-enclosure.jpeg",
	}
	if !slices.Equal(fs.calls, want) {
		t.Errorf("calls =\n%v\nwant\n%v", fs.calls, want)
	}
}

func TestBuildWorkList_EmptyMediaStillCreatesDirectory(t *testing.T) {
	fs := newMemFS()
	lister := NewLister(&staticCatalog{}, fs, testRoot, nil)

	work, err := lister.BuildWorkList([]*model.Piece{{ID: "p3", CreatedAt: "2023-03-03"}})
	if err != nil {
		t.Fatalf("BuildWorkList failed: %v", err)
	}
	if len(work) != 0 {
		t.Errorf("work list = %v, want empty", work)
	}
	if !fs.paths[dirOf("2023-03-03", "p3")] {
		t.Error("expected piece directory to be created")
	}
}

func TestBuildWorkList_NamingErrorIsFatal(t *testing.T) {
	pieces := twoByTwo()
	pieces[1].Media[0].Tags = []string{"enclosure"}

	lister := NewLister(&staticCatalog{}, newMemFS(), testRoot, nil)
	work, err := lister.BuildWorkList(pieces)

	var namingErr *model.NamingError
	if !errors.As(err, &namingErr) {
		t.Fatalf("expected *model.NamingError, got %v", err)
	}
	if work != nil {
		t.Errorf("expected no partial work list, got %v", work)
	}
}

func TestBuildWorkList_FilesystemErrorIsFatal(t *testing.T) {
	fs := newMemFS()
	fs.mkdirErr = errors.New("permission denied")

	lister := NewLister(&staticCatalog{}, fs, testRoot, nil)
	_, err := lister.BuildWorkList(twoByTwo())

	var fsErr *FilesystemError
	if !errors.As(err, &fsErr) {
		t.Fatalf("expected *FilesystemError, got %v", err)
	}
	if fsErr.Path != dirOf("2021-07-04", "p1") {
		t.Errorf("FilesystemError.Path = %q", fsErr.Path)
	}
}

func TestBuildWorkList_ReadOnlyDoesNotCreate(t *testing.T) {
	fs := newMemFS()
	lister := NewLister(&staticCatalog{}, ReadOnly(fs), testRoot, nil)

	work, err := lister.BuildWorkList(twoByTwo())
	if err != nil {
		t.Fatalf("BuildWorkList failed: %v", err)
	}
	if len(work) != 4 {
		t.Errorf("got %d work items, want 4", len(work))
	}
	if len(fs.paths) != 0 {
		t.Errorf("read-only planning created %v", fs.paths)
	}
}

func TestListPieces_PropagatesCatalogError(t *testing.T) {
	wantErr := errors.New("boom")
	lister := NewLister(&staticCatalog{err: wantErr}, newMemFS(), testRoot, nil)

	if _, err := lister.ListPieces(context.Background()); !errors.Is(err, wantErr) {
		t.Errorf("ListPieces error = %v, want %v", err, wantErr)
	}
}
