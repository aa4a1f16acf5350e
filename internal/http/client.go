package http

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"os"
	"path/filepath"
	"strings"

	"github.com/google/uuid"
)

// maxDiagnosticBytes bounds how much of an error response body is kept.
const maxDiagnosticBytes = 512

// ErrDestinationExists is returned by DownloadFile when the destination
// appeared while the download was in flight. Existing files are never
// replaced.
var ErrDestinationExists = errors.New("destination already exists")

// Client wraps HTTP operations used by the mirror.
//
// Client provides:
//   - Configured User-Agent header
//   - Per-request headers (the catalog API key is only sent to the API)
//   - Atomic file downloads with progress tracking
//   - Status errors carrying a diagnostic excerpt of the response body
//
// Timeouts are applied by the caller through the request context.
//
// Example usage:
//
//	client := NewClient()
//
//	// Fetch the catalog
//	body, err := client.Get(ctx, catalogURL, map[string]string{"x-api-key": key})
//
//	// Download a scan
//	n, err := client.DownloadFile(ctx, scanURL, "/mirror/2021-07-04/abc123/scan.jpeg", DownloadOptions{})
type Client struct {
	httpClient *http.Client
	userAgent  string
}

// NewClient creates a new HTTP client with the "mailmirror" User-Agent.
func NewClient() *Client {
	return &Client{
		httpClient: &http.Client{},
		userAgent:  "mailmirror",
	}
}

// StatusError reports a non-200 response.
type StatusError struct {
	URL        string
	StatusCode int
	Status     string

	// Body holds at most the first 512 bytes of the response body.
	Body []byte
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("HTTP %d: %s", e.StatusCode, e.Status)
}

// Diagnostics returns a printable excerpt of the response body.
func (e *StatusError) Diagnostics() string {
	return strings.TrimSpace(string(e.Body))
}

// IsRetryable reports whether err is worth retrying: transport failures,
// 429 and 5xx responses. Context cancellation and other 4xx responses are
// not retried.
func IsRetryable(err error) bool {
	if err == nil {
		return false
	}
	if errors.Is(err, context.Canceled) || errors.Is(err, ErrDestinationExists) {
		return false
	}
	var statusErr *StatusError
	if errors.As(err, &statusErr) {
		return statusErr.StatusCode == http.StatusTooManyRequests || statusErr.StatusCode >= 500
	}
	return true
}

// ProgressWriter wraps a writer to track download progress.
//
// Use this to monitor large downloads by providing an OnUpdate callback
// that receives the current bytes written and total expected bytes.
type ProgressWriter struct {
	// Writer is the underlying writer to write data to.
	Writer io.Writer

	// Total is the expected total bytes (from Content-Length header).
	Total int64

	// Written is the current number of bytes written.
	Written int64

	// OnUpdate is called after each Write with current progress.
	// Parameters are (bytesWritten, totalExpected).
	OnUpdate func(written, total int64)
}

// Write implements io.Writer, tracking progress and calling OnUpdate.
func (pw *ProgressWriter) Write(p []byte) (int, error) {
	n, err := pw.Writer.Write(p)
	pw.Written += int64(n)
	if pw.OnUpdate != nil {
		pw.OnUpdate(pw.Written, pw.Total)
	}
	return n, err
}

// Get performs a GET request and returns the response body as bytes.
//
// headers are added to the request in addition to the User-Agent.
//
// Returns an error if:
//   - The request fails
//   - The response status is not 200 OK (a *StatusError)
//   - Reading the body fails
func (c *Client) Get(ctx context.Context, url string, headers map[string]string) ([]byte, error) {
	resp, err := c.do(ctx, url, headers)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	return io.ReadAll(resp.Body)
}

// DownloadOptions tunes DownloadFile.
type DownloadOptions struct {
	// OnProgress is called with (bytesWritten, totalBytes). Optional.
	OnProgress func(written, total int64)

	// Verify inspects the fully written temporary file before it is moved
	// into place. A non-nil error aborts the download. Optional.
	Verify func(tmpPath string) error
}

// DownloadFile downloads url to destPath and returns the number of bytes
// written.
//
// The body is streamed to a hidden temporary file next to destPath
// (".<name>.<uuid>.part"), synced, optionally verified, and renamed into
// place. On any failure the temporary file is removed, so destPath only
// ever exists fully written. destPath itself is never overwritten.
//
// Example:
//
//	n, err := client.DownloadFile(ctx, scanURL, "/mirror/2021-07-04/abc123/scan.jpeg", DownloadOptions{
//	    Verify: func(tmp string) error { return images.Verify(ctx, tmp, "scan.jpeg") },
//	})
func (c *Client) DownloadFile(ctx context.Context, url, destPath string, opts DownloadOptions) (written int64, err error) {
	resp, err := c.do(ctx, url, nil)
	if err != nil {
		return 0, err
	}
	defer resp.Body.Close()

	dir, name := filepath.Split(destPath)
	tmpPath := filepath.Join(dir, "."+name+"."+uuid.NewString()+".part")

	file, err := os.OpenFile(tmpPath, os.O_CREATE|os.O_EXCL|os.O_WRONLY, 0644)
	if err != nil {
		return 0, err
	}
	defer func() {
		if err != nil {
			_ = file.Close()
			_ = os.Remove(tmpPath)
		}
	}()

	var writer io.Writer = file
	if opts.OnProgress != nil {
		writer = &ProgressWriter{
			Writer:   file,
			Total:    resp.ContentLength,
			OnUpdate: opts.OnProgress,
		}
	}

	written, err = io.Copy(writer, resp.Body)
	if err != nil {
		return written, err
	}
	if resp.ContentLength >= 0 && written != resp.ContentLength {
		return written, fmt.Errorf("short body: got %d of %d bytes", written, resp.ContentLength)
	}
	if err = file.Sync(); err != nil {
		return written, err
	}
	if err = file.Close(); err != nil {
		return written, err
	}

	if opts.Verify != nil {
		if err = opts.Verify(tmpPath); err != nil {
			return written, err
		}
	}

	if _, statErr := os.Lstat(destPath); statErr == nil {
		err = fmt.Errorf("%w: %s", ErrDestinationExists, destPath)
		return written, err
	}
	if err = os.Rename(tmpPath, destPath); err != nil {
		return written, err
	}

	return written, nil
}

func (c *Client) do(ctx context.Context, url string, headers map[string]string) (*http.Response, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, err
	}
	req.Header.Set("User-Agent", c.userAgent)
	for k, v := range headers {
		req.Header.Set(k, v)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, err
	}

	if resp.StatusCode != http.StatusOK {
		defer resp.Body.Close()
		body, _ := io.ReadAll(io.LimitReader(resp.Body, maxDiagnosticBytes))
		return nil, &StatusError{
			URL:        url,
			StatusCode: resp.StatusCode,
			Status:     resp.Status,
			Body:       body,
		}
	}

	return resp, nil
}
