package dto

import (
	"errors"
	"fmt"
	"strings"

	"github.com/handiism/mailmirror/internal/model"
)

// JSONCatalog is the bulk-download response document.
type JSONCatalog struct {
	// Data is a pointer so a missing "data" key can be told apart from an
	// empty catalog.
	Data *[]JSONPiece `json:"data"`
}

// JSONPiece is one piece record in the catalog.
type JSONPiece struct {
	ID        string      `json:"id"`
	PieceID   string      `json:"piece_id"`
	CreatedAt string      `json:"created_at"`
	Media     []JSONMedia `json:"media"`
}

// JSONMedia is one media record of a piece.
type JSONMedia struct {
	URL         string   `json:"url"`
	Tags        []string `json:"tags"`
	ContentType string   `json:"content_type"`
}

// ToPieces validates the catalog and converts it to model pieces.
func (c *JSONCatalog) ToPieces() ([]*model.Piece, error) {
	if c.Data == nil {
		return nil, errors.New(`missing "data" array`)
	}

	pieces := make([]*model.Piece, 0, len(*c.Data))
	for i, jp := range *c.Data {
		piece, err := jp.ToPiece()
		if err != nil {
			return nil, fmt.Errorf("piece %d: %w", i, err)
		}
		pieces = append(pieces, piece)
	}
	return pieces, nil
}

// ToPiece validates the record and converts it to a model.Piece.
//
// The identifier comes from "id", falling back to "piece_id". Identifiers
// and date buckets must be usable as single path segments.
func (jp *JSONPiece) ToPiece() (*model.Piece, error) {
	id := strings.TrimSpace(jp.ID)
	if id == "" {
		id = strings.TrimSpace(jp.PieceID)
	}
	if id == "" {
		return nil, errors.New("missing id")
	}
	if !model.IsSafeSegment(id) {
		return nil, fmt.Errorf("invalid id %q", id)
	}
	if jp.CreatedAt == "" {
		return nil, fmt.Errorf("piece %s: missing created_at", id)
	}

	piece := &model.Piece{
		ID:        id,
		CreatedAt: jp.CreatedAt,
		Media:     make([]*model.MediaItem, 0, len(jp.Media)),
	}
	if !model.IsSafeSegment(piece.Bucket()) {
		return nil, fmt.Errorf("piece %s: invalid created_at %q", id, jp.CreatedAt)
	}

	for i, jm := range jp.Media {
		if jm.URL == "" {
			return nil, fmt.Errorf("piece %s: media %d: missing url", id, i)
		}
		piece.Media = append(piece.Media, &model.MediaItem{
			URL:         jm.URL,
			Tags:        jm.Tags,
			ContentType: jm.ContentType,
		})
	}

	return piece, nil
}
