package ioutils

import (
	"context"
	"fmt"
	"image"
	_ "image/gif"  // GIF decoder registration
	_ "image/jpeg" // JPEG decoder registration
	_ "image/png"  // PNG decoder registration
	"os"
	"path/filepath"
	"strings"

	_ "golang.org/x/image/bmp"  // BMP decoder registration
	_ "golang.org/x/image/tiff" // TIFF decoder registration
	_ "golang.org/x/image/webp" // WebP decoder registration
)

// verifiableExtensions lists the file extensions Verify can decode.
var verifiableExtensions = map[string]struct{}{
	".jpeg": {},
	".jpg":  {},
	".png":  {},
	".gif":  {},
	".tiff": {},
	".tif":  {},
	".bmp":  {},
	".webp": {},
}

// ImageService checks downloaded scans before they are moved into the
// mirror tree.
//
// Scans arrive as JPEG, PNG or TIFF most of the time. Verify decodes the
// image header so a truncated or mislabelled body (an HTML error page
// served with 200 OK, for example) is rejected instead of being mirrored
// as if it were complete.
//
// Example usage:
//
//	svc := NewImageService()
//	if err := svc.Verify(ctx, "/mirror/.scan.jpeg.part", "scan.jpeg"); err != nil {
//	    // discard the temp file
//	}
type ImageService struct{}

// NewImageService creates a new ImageService.
func NewImageService() *ImageService {
	return &ImageService{}
}

// CanVerify reports whether name has an image extension Verify understands.
func (s *ImageService) CanVerify(name string) bool {
	_, ok := verifiableExtensions[strings.ToLower(filepath.Ext(name))]
	return ok
}

// Verify decodes the image header of the file at path.
//
// The format is chosen from name's extension rather than path, so a
// temporary file can be checked under its final name. Files with other
// extensions (PDFs, for instance) are accepted without inspection.
//
// Parameters:
//   - ctx: Context for cancellation (checked before the file is opened)
//   - path: File to inspect
//   - name: Final filename, used to decide whether the file is an image
func (s *ImageService) Verify(ctx context.Context, path, name string) error {
	if !s.CanVerify(name) {
		return nil
	}
	if err := ctx.Err(); err != nil {
		return err
	}

	f, err := os.Open(path)
	if err != nil {
		return err
	}
	defer f.Close()

	cfg, format, err := image.DecodeConfig(f)
	if err != nil {
		return fmt.Errorf("invalid image %s: %w", name, err)
	}
	if cfg.Width == 0 || cfg.Height == 0 {
		return fmt.Errorf("invalid image %s: empty %s (%dx%d)", name, format, cfg.Width, cfg.Height)
	}

	return nil
}
