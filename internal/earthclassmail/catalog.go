package earthclassmail

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/handiism/mailmirror/internal/earthclassmail/dto"
	"github.com/handiism/mailmirror/internal/http"
	"github.com/handiism/mailmirror/internal/logging"
	"github.com/handiism/mailmirror/internal/model"
	"github.com/handiism/mailmirror/internal/retry"
)

const (
	// DefaultBaseURL is the Earth Class Mail API root.
	DefaultBaseURL = "https://api.earthclassmail.com"

	// DefaultPageSize is the per_page value sent to the bulk endpoint.
	DefaultPageSize = 500

	bulkDownloadPath = "v1/bulk-download"
	apiKeyHeader     = "x-api-key"
)

// CatalogFetchError reports a failed or unparseable catalog listing.
// No partial catalog is ever returned alongside it.
type CatalogFetchError struct {
	URL string
	Err error
}

func (e *CatalogFetchError) Error() string {
	return fmt.Sprintf("fetch catalog %s: %v", e.URL, e.Err)
}

func (e *CatalogFetchError) Unwrap() error {
	return e.Err
}

// Options configures a Catalog.
type Options struct {
	BaseURL  string
	APIKey   string
	PageSize int

	// Timeout bounds each request attempt. Zero means no timeout.
	Timeout time.Duration

	// Retry applies to transport failures and 429/5xx responses only.
	Retry retry.Policy

	Logger *slog.Logger
}

// Catalog lists the pieces stored in an Earth Class Mail account.
//
// The listing is a single bulk call with a fixed page size; it is not
// exposed as incremental paging.
//
// Example usage:
//
//	catalog := NewCatalog(http.NewClient(), Options{APIKey: key})
//	pieces, err := catalog.ListPieces(ctx)
//	if err != nil {
//	    return err // *CatalogFetchError
//	}
type Catalog struct {
	client *http.Client
	opts   Options
	logger *slog.Logger
}

// NewCatalog creates a Catalog. Empty BaseURL and PageSize take the
// package defaults.
func NewCatalog(client *http.Client, opts Options) *Catalog {
	if opts.BaseURL == "" {
		opts.BaseURL = DefaultBaseURL
	}
	if opts.PageSize <= 0 {
		opts.PageSize = DefaultPageSize
	}
	return &Catalog{
		client: client,
		opts:   opts,
		logger: logging.NewComponentLogger(opts.Logger, "catalog"),
	}
}

// URL returns the bulk-download endpoint, including the page size.
func (c *Catalog) URL() string {
	q := url.Values{}
	q.Set("per_page", strconv.Itoa(c.opts.PageSize))
	return strings.TrimRight(c.opts.BaseURL, "/") + "/" + bulkDownloadPath + "?" + q.Encode()
}

// ListPieces fetches and decodes the full catalog.
//
// Transport failures and 429/5xx responses are retried per Options.Retry.
// Any remaining failure, including malformed JSON, is returned as a
// *CatalogFetchError.
func (c *Catalog) ListPieces(ctx context.Context) ([]*model.Piece, error) {
	endpoint := c.URL()
	headers := map[string]string{apiKeyHeader: c.opts.APIKey}

	var body []byte
	err := retry.Do(ctx, c.opts.Retry, http.IsRetryable, func(try int, err error) {
		c.logger.Warn("catalog fetch failed, retrying",
			slog.Int("try", try+1),
			slog.Int("max_tries", c.opts.Retry.MaxTries),
			slog.Any("error", err),
		)
	}, func() error {
		reqCtx, cancel := c.requestContext(ctx)
		defer cancel()

		var err error
		body, err = c.client.Get(reqCtx, endpoint, headers)
		return err
	})
	if err != nil {
		return nil, &CatalogFetchError{URL: endpoint, Err: err}
	}

	pieces, err := ParseCatalog(body)
	if err != nil {
		return nil, &CatalogFetchError{URL: endpoint, Err: err}
	}

	c.logger.Debug("catalog fetched", slog.Int("pieces", len(pieces)), slog.Int("bytes", len(body)))
	return pieces, nil
}

// ParseCatalog decodes a bulk-download response body.
//
// Returns an error if:
//   - The JSON is malformed
//   - The "data" array is missing
//   - A piece lacks an id or created_at, or a media record lacks a url
//   - An id or date bucket is not a single path segment
func ParseCatalog(data []byte) ([]*model.Piece, error) {
	var catalog dto.JSONCatalog
	if err := json.Unmarshal(data, &catalog); err != nil {
		return nil, fmt.Errorf("failed to parse catalog JSON: %w", err)
	}
	return catalog.ToPieces()
}

func (c *Catalog) requestContext(ctx context.Context) (context.Context, context.CancelFunc) {
	if c.opts.Timeout <= 0 {
		return context.WithCancel(ctx)
	}
	return context.WithTimeout(ctx, c.opts.Timeout)
}
