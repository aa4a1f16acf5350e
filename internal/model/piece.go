package model

import (
	"fmt"
	"slices"
	"strings"
)

// Media tags recognized by NameMedia.
const (
	TagScan      = "scan"
	TagEnclosure = "enclosure"
	TagFront     = "front"
	TagBack      = "back"
)

// Piece represents one physical mail item tracked by Earth Class Mail.
//
// Piece contains everything needed to mirror its scans locally:
//   - ID names the piece directory inside its date bucket
//   - CreatedAt provides the YYYY-MM-DD bucket (first 10 characters)
//   - Media lists the scanned assets in catalog order
//
// Pieces are built from the bulk-download catalog and are never modified
// or persisted afterwards.
//
// Example:
//
//	piece := &Piece{
//	    ID:        "abc123",
//	    CreatedAt: "2021-07-04T10:00:00Z",
//	    Media: []*MediaItem{
//	        {URL: scanURL, Tags: []string{"scan"}, ContentType: "image/jpeg"},
//	    },
//	}
//	dir := PlanDirectory("/mirror/mail", piece)
//	// dir = "/mirror/mail/2021-07-04/abc123/"
type Piece struct {
	// ID is the stable, opaque piece identifier.
	ID string

	// CreatedAt is the upstream creation timestamp. Only its first 10
	// characters are used, as the date bucket.
	CreatedAt string

	// Media contains the scanned assets of this piece, in catalog order.
	Media []*MediaItem
}

// MediaItem is one scanned asset of a piece.
type MediaItem struct {
	// URL is the source location of the asset.
	URL string

	// Tags describe what the asset shows: "scan", "enclosure", "front", "back".
	Tags []string

	// ContentType is the MIME type of the asset, e.g. "image/jpeg".
	ContentType string
}

// FileName returns the canonical filename for the media item.
// See NameMedia for the naming rules.
func (m *MediaItem) FileName() (string, error) {
	return NameMedia(m.Tags, m.ContentType)
}

// WorkItem is one pending download: a source URL and the local path it
// will be written to.
type WorkItem struct {
	URL  string
	Path string
}

// NamingError reports a media item whose tags do not map to any canonical
// filename. It is a data-integrity problem and must abort a sync run.
type NamingError struct {
	Tags        []string
	ContentType string
}

func (e *NamingError) Error() string {
	return fmt.Sprintf("unsupported tags: %q (content type %q)", e.Tags, e.ContentType)
}

// NameMedia maps a media item's tags and content type to its filename.
//
// The extension is the subtype of contentType ("image/jpeg" -> "jpeg").
// Rules are checked in order and the first match wins:
//   - enclosure + front -> "front-enclosure.<ext>"
//   - enclosure + back  -> "back-enclosure.<ext>"
//   - scan              -> "scan.<ext>"
//
// Any other tag set, or a content type without a subtype, yields a
// *NamingError. The function is pure.
func NameMedia(tags []string, contentType string) (string, error) {
	suffix, ok := mediaSuffix(contentType)
	if !ok {
		return "", &NamingError{Tags: tags, ContentType: contentType}
	}

	if slices.Contains(tags, TagEnclosure) {
		if slices.Contains(tags, TagFront) {
			return "front-enclosure." + suffix, nil
		}
		if slices.Contains(tags, TagBack) {
			return "back-enclosure." + suffix, nil
		}
	}
	if slices.Contains(tags, TagScan) {
		return "scan." + suffix, nil
	}

	return "", &NamingError{Tags: tags, ContentType: contentType}
}

// mediaSuffix returns the segment after the first "/" of a MIME type.
func mediaSuffix(contentType string) (string, bool) {
	parts := strings.Split(contentType, "/")
	if len(parts) < 2 || parts[1] == "" {
		return "", false
	}
	return parts[1], true
}
