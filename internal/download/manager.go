package download

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"

	"github.com/handiism/mailmirror/internal/config"
	"github.com/handiism/mailmirror/internal/earthclassmail"
	"github.com/handiism/mailmirror/internal/http"
	ioutils "github.com/handiism/mailmirror/internal/io"
	"github.com/handiism/mailmirror/internal/logging"
	"github.com/handiism/mailmirror/internal/model"
	"github.com/handiism/mailmirror/internal/retry"
)

// ProgressLevel indicates the severity/type of a progress message.
type ProgressLevel int

const (
	LevelInfo ProgressLevel = iota
	LevelVerbose
	LevelWarning
	LevelError
	LevelSuccess
)

// ProgressEvent represents a sync progress update.
type ProgressEvent struct {
	Message string
	Level   ProgressLevel
}

// Summary describes a finished (or interrupted) sync run.
type Summary struct {
	RunID      string
	Pieces     int
	Skipped    int
	Pending    int
	Downloaded int
	Failed     int
	Bytes      int64
	Duration   time.Duration
}

// Option overrides one of the Manager's capabilities.
type Option func(*Manager)

// WithCatalog replaces the Earth Class Mail catalog.
func WithCatalog(c Catalog) Option {
	return func(m *Manager) { m.catalog = c }
}

// WithTransfer replaces the HTTP transfer.
func WithTransfer(t Transfer) Option {
	return func(m *Manager) { m.transfer = t }
}

// WithFileSystem replaces the local file system.
func WithFileSystem(fs FileSystem) Option {
	return func(m *Manager) { m.fs = fs }
}

// WithLogger sets the structured logger for diagnostics.
func WithLogger(logger *slog.Logger) Option {
	return func(m *Manager) { m.logger = logger }
}

// Manager coordinates a sync run: listing, planning and downloading.
type Manager struct {
	settings *config.Settings
	catalog  Catalog
	transfer Transfer
	fs       FileSystem
	lister   *Lister
	logger   *slog.Logger
	runID    string

	pieces   []*model.Piece
	work     []model.WorkItem
	failures []*DownloadError
	duration time.Duration

	skipped         int32
	started         int32
	downloadedFiles int32
	failedFiles     int32
	receivedBytes   int64

	onProgress func(ProgressEvent)
	progressMu sync.Mutex
	mu         sync.Mutex
}

// NewManager creates a new sync Manager.
//
// By default the catalog is the Earth Class Mail API authenticated with
// apiKey, transfers go over HTTP and the mirror tree is the local disk;
// opts replace any of them.
func NewManager(settings *config.Settings, apiKey string, onProgress func(ProgressEvent), opts ...Option) *Manager {
	m := &Manager{
		settings:   settings,
		runID:      uuid.NewString(),
		onProgress: onProgress,
	}
	for _, opt := range opts {
		opt(m)
	}

	m.logger = logging.NewComponentLogger(m.logger, "sync").With(slog.String(logging.FieldRunID, m.runID))

	client := http.NewClient()
	if m.catalog == nil {
		m.catalog = earthclassmail.NewCatalog(client, earthclassmail.Options{
			BaseURL:  settings.APIBaseURL,
			APIKey:   apiKey,
			PageSize: settings.PageSize,
			Timeout:  settings.RequestTimeoutDuration(),
			Retry:    settings.RetryPolicy(),
			Logger:   m.logger,
		})
	}
	if m.transfer == nil {
		m.transfer = NewHTTPTransfer(client, settings.VerifyImages)
	}
	if m.fs == nil {
		m.fs = ioutils.OS{}
	}
	m.lister = NewLister(m.catalog, m.fs, settings.MirrorRoot, m.skip)

	return m
}

// Run performs a complete sync while holding the mirror root lock.
//
// The returned Summary is valid even when err is non-nil. err is a
// *model.NamingError, *earthclassmail.CatalogFetchError or
// *FilesystemError for fatal listing failures, a *DownloadError when
// ContinueOnError is off, an *AggregateError when it is on and some
// downloads failed, or the context error on cancellation.
func (m *Manager) Run(ctx context.Context) (Summary, error) {
	start := time.Now()
	finish := func() Summary {
		m.duration = time.Since(start)
		return m.Summary()
	}

	unlock, err := ioutils.LockMirror(m.settings.MirrorRoot)
	if err != nil {
		return finish(), err
	}
	defer func() {
		if err := unlock(); err != nil {
			m.logger.Warn("failed to release mirror lock", slog.Any("error", err))
		}
	}()

	m.logger.Info("sync started",
		slog.String("root", m.settings.MirrorRoot),
		slog.Int("concurrency", m.settings.MaxConcurrentDownloads),
		slog.Bool("continue_on_error", m.settings.ContinueOnError),
	)

	if err := m.Initialize(ctx); err != nil {
		return finish(), err
	}
	err = m.StartDownloads(ctx)

	summary := finish()
	m.logger.Info("sync finished",
		slog.Int("downloaded", summary.Downloaded),
		slog.Int("failed", summary.Failed),
		slog.Int64("bytes", summary.Bytes),
		slog.Duration("duration", summary.Duration),
	)
	return summary, err
}

// Initialize fetches the catalog and builds the work list.
func (m *Manager) Initialize(ctx context.Context) error {
	pieces, err := m.lister.ListPieces(ctx)
	if err != nil {
		return err
	}
	m.pieces = pieces
	m.progress(ProgressEvent{Message: fmt.Sprintf("%d pieces", len(pieces)), Level: LevelInfo})

	work, err := m.lister.BuildWorkList(pieces)
	if err != nil {
		return err
	}
	m.work = work
	m.progress(ProgressEvent{Message: fmt.Sprintf("%d to download", len(work)), Level: LevelInfo})

	return nil
}

// StartDownloads downloads every planned work item.
//
// With MaxConcurrentDownloads = 1 items are downloaded strictly one at a
// time in work list order. Cancelling ctx stops the run between items.
func (m *Manager) StartDownloads(ctx context.Context) error {
	total := len(m.work)
	failures := make([]*DownloadError, total)

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(max(1, m.settings.MaxConcurrentDownloads))

	for i, item := range m.work {
		if gctx.Err() != nil {
			break
		}
		g.Go(func() error {
			if gctx.Err() != nil {
				return nil
			}
			index := atomic.AddInt32(&m.started, 1)
			err := m.downloadItem(gctx, int(index), total, item)
			if err == nil {
				return nil
			}
			if gctx.Err() != nil && errors.Is(err, context.Canceled) {
				return nil
			}

			dlErr := newDownloadError(item, err)
			failures[i] = dlErr
			atomic.AddInt32(&m.failedFiles, 1)
			m.progress(ProgressEvent{Message: fmt.Sprintf("error: %v", dlErr), Level: LevelError})
			m.logger.Error("download failed",
				slog.String("url", dlErr.URL),
				slog.String("path", dlErr.Path),
				slog.String("diagnostics", dlErr.Diagnostics),
			)

			if m.settings.ContinueOnError {
				return nil
			}
			return dlErr
		})
	}

	waitErr := g.Wait()

	m.mu.Lock()
	m.failures = m.failures[:0]
	for _, f := range failures {
		if f != nil {
			m.failures = append(m.failures, f)
		}
	}
	failed := append([]*DownloadError(nil), m.failures...)
	m.mu.Unlock()

	if waitErr != nil {
		return waitErr
	}
	if err := ctx.Err(); err != nil {
		return err
	}
	if len(failed) > 0 {
		m.progress(ProgressEvent{Message: fmt.Sprintf("%d of %d downloads failed", len(failed), total), Level: LevelWarning})
		return &AggregateError{Failed: failed}
	}

	m.progress(ProgressEvent{Message: fmt.Sprintf("mirror up to date, %d downloaded", total), Level: LevelSuccess})
	return nil
}

// GetProgress returns current download progress.
func (m *Manager) GetProgress() (received int64, filesDone, filesTotal int32) {
	done := atomic.LoadInt32(&m.downloadedFiles) + atomic.LoadInt32(&m.failedFiles)
	return atomic.LoadInt64(&m.receivedBytes), done, int32(len(m.work))
}

// WorkList returns a copy of the planned downloads.
func (m *Manager) WorkList() []model.WorkItem {
	return append([]model.WorkItem(nil), m.work...)
}

// Failures returns the downloads that failed in the last StartDownloads.
func (m *Manager) Failures() []*DownloadError {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]*DownloadError(nil), m.failures...)
}

// Summary reports the counters of the run so far.
func (m *Manager) Summary() Summary {
	return Summary{
		RunID:      m.runID,
		Pieces:     len(m.pieces),
		Skipped:    int(atomic.LoadInt32(&m.skipped)),
		Pending:    len(m.work),
		Downloaded: int(atomic.LoadInt32(&m.downloadedFiles)),
		Failed:     int(atomic.LoadInt32(&m.failedFiles)),
		Bytes:      atomic.LoadInt64(&m.receivedBytes),
		Duration:   m.duration,
	}
}

func (m *Manager) downloadItem(ctx context.Context, index, total int, item model.WorkItem) error {
	m.progress(ProgressEvent{Message: fmt.Sprintf("download [%d/%d]: %s", index, total, item.Path), Level: LevelInfo})

	policy := m.settings.RetryPolicy()
	var written int64
	err := retry.Do(ctx, policy, http.IsRetryable, func(try int, err error) {
		m.progress(ProgressEvent{
			Message: fmt.Sprintf("Retry %d/%d for %s: %v", try+1, policy.MaxTries, item.Path, err),
			Level:   LevelWarning,
		})
	}, func() error {
		dctx, cancel := m.downloadContext(ctx)
		defer cancel()

		n, err := m.transfer.Fetch(dctx, item.URL, item.Path)
		written = n
		return err
	})
	if err != nil {
		return err
	}

	atomic.AddInt64(&m.receivedBytes, written)
	atomic.AddInt32(&m.downloadedFiles, 1)
	m.logger.Debug("downloaded", slog.String("path", item.Path), slog.Int64("bytes", written))
	return nil
}

func (m *Manager) downloadContext(ctx context.Context) (context.Context, context.CancelFunc) {
	timeout := m.settings.DownloadTimeoutDuration()
	if timeout <= 0 {
		return context.WithCancel(ctx)
	}
	return context.WithTimeout(ctx, timeout)
}

func (m *Manager) skip(path string) {
	atomic.AddInt32(&m.skipped, 1)
	m.progress(ProgressEvent{Message: "skip: " + path, Level: LevelVerbose})
}

func (m *Manager) progress(event ProgressEvent) {
	if m.onProgress == nil {
		return
	}
	m.progressMu.Lock()
	defer m.progressMu.Unlock()
	m.onProgress(event)
}
