package download

import (
	"errors"
	"fmt"

	"github.com/handiism/mailmirror/internal/http"
	"github.com/handiism/mailmirror/internal/model"
)

// DownloadError reports a failed transfer of one work item.
type DownloadError struct {
	URL  string
	Path string

	// Diagnostics is the server's error body when there was one, otherwise
	// the transfer error text.
	Diagnostics string

	Err error
}

func newDownloadError(item model.WorkItem, err error) *DownloadError {
	diagnostics := err.Error()
	var statusErr *http.StatusError
	if errors.As(err, &statusErr) && statusErr.Diagnostics() != "" {
		diagnostics = statusErr.Diagnostics()
	}
	return &DownloadError{
		URL:         item.URL,
		Path:        item.Path,
		Diagnostics: diagnostics,
		Err:         err,
	}
}

func (e *DownloadError) Error() string {
	return fmt.Sprintf("download %s to %s: %v", e.URL, e.Path, e.Err)
}

func (e *DownloadError) Unwrap() error {
	return e.Err
}

// FilesystemError reports a piece directory that could not be created.
type FilesystemError struct {
	Path string
	Err  error
}

func (e *FilesystemError) Error() string {
	return fmt.Sprintf("create directory %s: %v", e.Path, e.Err)
}

func (e *FilesystemError) Unwrap() error {
	return e.Err
}

// AggregateError collects the failed downloads of a run that kept going
// after errors.
type AggregateError struct {
	Failed []*DownloadError
}

func (e *AggregateError) Error() string {
	if len(e.Failed) == 1 {
		return fmt.Sprintf("1 download failed: %v", e.Failed[0])
	}
	return fmt.Sprintf("%d downloads failed (first: %v)", len(e.Failed), e.Failed[0])
}

// Unwrap exposes every DownloadError to errors.Is and errors.As.
func (e *AggregateError) Unwrap() []error {
	errs := make([]error, len(e.Failed))
	for i, f := range e.Failed {
		errs[i] = f
	}
	return errs
}
