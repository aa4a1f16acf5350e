// Package http provides the HTTP client used to talk to the Earth Class
// Mail API and to fetch scanned media.
//
// The Client in this package handles:
//   - User-Agent and per-request headers
//   - Atomic file downloads (temp file + rename) with progress tracking
//   - Non-200 responses as *StatusError with a body excerpt for diagnostics
//   - Retry classification via IsRetryable
//
// # Basic Usage
//
//	client := http.NewClient()
//
//	// Fetch JSON
//	body, err := client.Get(ctx, "https://api.earthclassmail.com/v1/bulk-download?per_page=500",
//	    map[string]string{"x-api-key": apiKey})
//
//	// Download a file
//	n, err := client.DownloadFile(ctx, scanURL, "/mirror/2021-07-04/abc123/scan.jpeg", http.DownloadOptions{})
//
// # Timeouts
//
// The client has no global timeout; wrap the context with
// context.WithTimeout to bound a request.
package http
