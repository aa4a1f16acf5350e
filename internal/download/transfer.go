package download

import (
	"context"
	"path/filepath"

	"github.com/handiism/mailmirror/internal/http"
	ioutils "github.com/handiism/mailmirror/internal/io"
)

// HTTPTransfer downloads media over HTTP into the mirror tree.
//
// Files are written through http.Client.DownloadFile, so they appear at
// their final path only once complete. With image verification enabled,
// scans whose header cannot be decoded are rejected before that point.
type HTTPTransfer struct {
	client *http.Client
	images *ioutils.ImageService
	verify bool
}

// NewHTTPTransfer creates an HTTPTransfer. verifyImages enables the image
// header check for image extensions.
func NewHTTPTransfer(client *http.Client, verifyImages bool) *HTTPTransfer {
	return &HTTPTransfer{
		client: client,
		images: ioutils.NewImageService(),
		verify: verifyImages,
	}
}

// Fetch implements Transfer.
func (t *HTTPTransfer) Fetch(ctx context.Context, url, dest string) (int64, error) {
	var opts http.DownloadOptions
	if t.verify {
		name := filepath.Base(dest)
		opts.Verify = func(tmpPath string) error {
			return t.images.Verify(ctx, tmpPath, name)
		}
	}
	return t.client.DownloadFile(ctx, url, dest, opts)
}
