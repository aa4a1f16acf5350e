package download

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"image"
	"image/color"
	"image/png"
	nethttp "net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"slices"
	"strings"
	"sync"
	"testing"

	"github.com/handiism/mailmirror/internal/config"
	"github.com/handiism/mailmirror/internal/earthclassmail"
	"github.com/handiism/mailmirror/internal/http"
	"github.com/handiism/mailmirror/internal/model"
)

// diskTransfer writes the URL as file content, failing for URLs in fail.
type diskTransfer struct {
	mu      sync.Mutex
	fetched []string
	fail    map[string][]error
	onFetch func(url string)
}

func (t *diskTransfer) Fetch(ctx context.Context, url, dest string) (int64, error) {
	t.mu.Lock()
	t.fetched = append(t.fetched, url)
	var err error
	if errs := t.fail[url]; len(errs) > 0 {
		err, t.fail[url] = errs[0], errs[1:]
	}
	onFetch := t.onFetch
	t.mu.Unlock()

	if onFetch != nil {
		onFetch(url)
	}
	if err != nil {
		return 0, err
	}
	if ctx.Err() != nil {
		return 0, ctx.Err()
	}
	if err := os.WriteFile(dest, []byte(url), 0644); err != nil {
		return 0, err
	}
	return int64(len(url)), nil
}

func (t *diskTransfer) urls() []string {
	t.mu.Lock()
	defer t.mu.Unlock()
	return append([]string(nil), t.fetched...)
}

func testSettings(t *testing.T) *config.Settings {
	t.Helper()
	s := config.DefaultSettings()
	s.MirrorRoot = t.TempDir()
	s.DownloadRetryCooldown = 0
	s.VerifyImages = false
	return s
}

type eventLog struct {
	mu     sync.Mutex
	events []ProgressEvent
}

func (l *eventLog) record(e ProgressEvent) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.events = append(l.events, e)
}

func (l *eventLog) messages(level ProgressLevel) []string {
	l.mu.Lock()
	defer l.mu.Unlock()
	var out []string
	for _, e := range l.events {
		if e.Level == level {
			out = append(out, e.Message)
		}
	}
	return out
}

func notFound(url string) error {
	return &http.StatusError{URL: url, StatusCode: 404, Status: "404 Not Found", Body: []byte("no such media")}
}

func TestRun_DownloadsInOrder(t *testing.T) {
	settings := testSettings(t)
	transfer := &diskTransfer{}
	var events eventLog

	m := NewManager(settings, "", events.record,
		WithCatalog(&staticCatalog{pieces: twoByTwo()}),
		WithTransfer(transfer),
	)

	summary, err := m.Run(context.Background())
	if err != nil {
		t.Fatalf("Run failed: %v", err)
	}

	want := []string{"https://cdn/p1/scan", "https://cdn/p1/front", "https://cdn/p2/back", "https://cdn/p2/scan"}
	if got := transfer.urls(); !slices.Equal(got, want) {
		t.Errorf("fetched %v, want %v", got, want)
	}
	if summary.Pieces != 2 || summary.Pending != 4 || summary.Downloaded != 4 || summary.Failed != 0 {
		t.Errorf("summary = %+v", summary)
	}
	if summary.RunID == "" {
		t.Error("expected a run id")
	}

	path := filepath.Join(settings.MirrorRoot, "2021-07-05", "p2", "back-enclosure.png")
	if data, err := os.ReadFile(path); err != nil || string(data) != "https://cdn/p2/back" {
		t.Errorf("ReadFile(%s) = %q, %v", path, data, err)
	}

	info := events.messages(LevelInfo)
	if len(info) < 3 || info[0] != "2 pieces" || info[1] != "4 to download" {
		t.Errorf("info events = %v", info)
	}
	if !strings.HasPrefix(info[2], "download [1/4]: ") {
		t.Errorf("first download event = %q", info[2])
	}
	if success := events.messages(LevelSuccess); len(success) != 1 {
		t.Errorf("success events = %v", success)
	}
}

func TestRun_Idempotent(t *testing.T) {
	settings := testSettings(t)
	catalog := &staticCatalog{pieces: twoByTwo()}

	first := NewManager(settings, "", nil, WithCatalog(catalog), WithTransfer(&diskTransfer{}))
	if _, err := first.Run(context.Background()); err != nil {
		t.Fatalf("first Run failed: %v", err)
	}

	transfer := &diskTransfer{}
	second := NewManager(settings, "", nil, WithCatalog(catalog), WithTransfer(transfer))
	summary, err := second.Run(context.Background())
	if err != nil {
		t.Fatalf("second Run failed: %v", err)
	}
	if len(transfer.urls()) != 0 {
		t.Errorf("second run fetched %v", transfer.urls())
	}
	if summary.Skipped != 4 || summary.Pending != 0 {
		t.Errorf("summary = %+v, want 4 skipped and nothing pending", summary)
	}
}

func TestRun_SkipsExistingFile(t *testing.T) {
	settings := testSettings(t)
	dir := filepath.Join(settings.MirrorRoot, "2021-07-04", "p1")
	if err := os.MkdirAll(dir, 0755); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(filepath.Join(dir, "scan.jpeg"), []byte("old"), 0644); err != nil {
		t.Fatal(err)
	}

	transfer := &diskTransfer{}
	var events eventLog
	m := NewManager(settings, "", events.record,
		WithCatalog(&staticCatalog{pieces: twoByTwo()[:1]}),
		WithTransfer(transfer),
	)
	if _, err := m.Run(context.Background()); err != nil {
		t.Fatalf("Run failed: %v", err)
	}

	if got := transfer.urls(); !slices.Equal(got, []string{"https://cdn/p1/front"}) {
		t.Errorf("fetched %v, want only the front enclosure", got)
	}
	if data, _ := os.ReadFile(filepath.Join(dir, "scan.jpeg")); string(data) != "old" {
		t.Errorf("existing scan was overwritten: %q", data)
	}
	if skips := events.messages(LevelVerbose); len(skips) != 1 || !strings.HasPrefix(skips[0], "skip: ") {
		t.Errorf("verbose events = %v", skips)
	}
}

func TestRun_FailFast(t *testing.T) {
	settings := testSettings(t)
	settings.ContinueOnError = false

	transfer := &diskTransfer{fail: map[string][]error{
		"https://cdn/p1/front": {notFound("https://cdn/p1/front")},
	}}
	m := NewManager(settings, "", nil,
		WithCatalog(&staticCatalog{pieces: twoByTwo()}),
		WithTransfer(transfer),
	)

	summary, err := m.Run(context.Background())

	var dlErr *DownloadError
	if !errors.As(err, &dlErr) {
		t.Fatalf("expected *DownloadError, got %v", err)
	}
	if dlErr.URL != "https://cdn/p1/front" || dlErr.Diagnostics != "no such media" {
		t.Errorf("DownloadError = %+v", dlErr)
	}
	if got := transfer.urls(); !slices.Equal(got, []string{"https://cdn/p1/scan", "https://cdn/p1/front"}) {
		t.Errorf("fetched %v, want the run to stop after the failure", got)
	}
	if summary.Downloaded != 1 || summary.Failed != 1 {
		t.Errorf("summary = %+v", summary)
	}
}

func TestRun_ContinueOnError(t *testing.T) {
	settings := testSettings(t)
	settings.ContinueOnError = true

	transfer := &diskTransfer{fail: map[string][]error{
		"https://cdn/p1/front": {notFound("https://cdn/p1/front")},
	}}
	var events eventLog
	m := NewManager(settings, "", events.record,
		WithCatalog(&staticCatalog{pieces: twoByTwo()}),
		WithTransfer(transfer),
	)

	summary, err := m.Run(context.Background())

	var aggErr *AggregateError
	if !errors.As(err, &aggErr) {
		t.Fatalf("expected *AggregateError, got %v", err)
	}
	if len(aggErr.Failed) != 1 || aggErr.Failed[0].URL != "https://cdn/p1/front" {
		t.Errorf("AggregateError.Failed = %v", aggErr.Failed)
	}
	var dlErr *DownloadError
	if !errors.As(err, &dlErr) {
		t.Error("expected AggregateError to unwrap to *DownloadError")
	}
	if len(transfer.urls()) != 4 {
		t.Errorf("fetched %v, want all 4 attempted", transfer.urls())
	}
	if summary.Downloaded != 3 || summary.Failed != 1 {
		t.Errorf("summary = %+v", summary)
	}
	if len(m.Failures()) != 1 {
		t.Errorf("Failures() = %v", m.Failures())
	}
	if errs := events.messages(LevelError); len(errs) != 1 || !strings.HasPrefix(errs[0], "error: ") {
		t.Errorf("error events = %v", errs)
	}

	// The failed file is picked up again by the next run.
	retry := &diskTransfer{}
	again := NewManager(settings, "", nil,
		WithCatalog(&staticCatalog{pieces: twoByTwo()}),
		WithTransfer(retry),
	)
	if _, err := again.Run(context.Background()); err != nil {
		t.Fatalf("second Run failed: %v", err)
	}
	if got := retry.urls(); !slices.Equal(got, []string{"https://cdn/p1/front"}) {
		t.Errorf("second run fetched %v", got)
	}
}

func TestRun_RetriesTransientFailure(t *testing.T) {
	settings := testSettings(t)
	transient := &http.StatusError{StatusCode: 503, Status: "503 Service Unavailable"}

	transfer := &diskTransfer{fail: map[string][]error{
		"https://cdn/p1/scan": {transient},
	}}
	var events eventLog
	m := NewManager(settings, "", events.record,
		WithCatalog(&staticCatalog{pieces: twoByTwo()[:1]}),
		WithTransfer(transfer),
	)

	summary, err := m.Run(context.Background())
	if err != nil {
		t.Fatalf("Run failed: %v", err)
	}
	if summary.Downloaded != 2 {
		t.Errorf("summary = %+v", summary)
	}
	warnings := events.messages(LevelWarning)
	if len(warnings) != 1 || !strings.HasPrefix(warnings[0], "Retry 1/3 for ") {
		t.Errorf("warnings = %v", warnings)
	}
}

func TestRun_FatalListingErrors(t *testing.T) {
	badName := twoByTwo()
	badName[1].Media[1].Tags = nil

	tests := []struct {
		name    string
		catalog Catalog
		check   func(error) bool
	}{
		{
			name:    "catalog",
			catalog: &staticCatalog{err: &earthclassmail.CatalogFetchError{URL: "x", Err: errors.New("down")}},
			check: func(err error) bool {
				var target *earthclassmail.CatalogFetchError
				return errors.As(err, &target)
			},
		},
		{
			name:    "naming",
			catalog: &staticCatalog{pieces: badName},
			check: func(err error) bool {
				var target *model.NamingError
				return errors.As(err, &target)
			},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			transfer := &diskTransfer{}
			m := NewManager(testSettings(t), "", nil, WithCatalog(tt.catalog), WithTransfer(transfer))

			_, err := m.Run(context.Background())
			if !tt.check(err) {
				t.Errorf("unexpected error %v", err)
			}
			if len(transfer.urls()) != 0 {
				t.Errorf("fetched %v after a listing failure", transfer.urls())
			}
		})
	}
}

func TestRun_Cancelled(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	transfer := &diskTransfer{onFetch: func(string) { cancel() }}
	m := NewManager(testSettings(t), "", nil,
		WithCatalog(&staticCatalog{pieces: twoByTwo()}),
		WithTransfer(transfer),
	)

	summary, err := m.Run(ctx)
	if !errors.Is(err, context.Canceled) {
		t.Fatalf("expected context.Canceled, got %v", err)
	}
	if len(transfer.urls()) != 1 {
		t.Errorf("fetched %v, want the run to stop after the first item", transfer.urls())
	}
	if summary.Failed != 0 || summary.Downloaded != 0 {
		t.Errorf("summary = %+v", summary)
	}
}

func TestRun_Concurrent(t *testing.T) {
	settings := testSettings(t)
	settings.MaxConcurrentDownloads = 3

	var pieces []*model.Piece
	for i := range 10 {
		pieces = append(pieces, &model.Piece{
			ID:        fmt.Sprintf("p%d", i),
			CreatedAt: "2024-02-29T12:00:00Z",
			Media: []*model.MediaItem{
				{URL: fmt.Sprintf("https://cdn/%d", i), Tags: []string{"scan"}, ContentType: "image/jpeg"},
			},
		})
	}

	transfer := &diskTransfer{}
	m := NewManager(settings, "", nil, WithCatalog(&staticCatalog{pieces: pieces}), WithTransfer(transfer))

	summary, err := m.Run(context.Background())
	if err != nil {
		t.Fatalf("Run failed: %v", err)
	}
	if summary.Downloaded != 10 || len(transfer.urls()) != 10 {
		t.Errorf("summary = %+v, fetched %d", summary, len(transfer.urls()))
	}
	received, done, total := m.GetProgress()
	if done != 10 || total != 10 || received != summary.Bytes {
		t.Errorf("GetProgress() = %d, %d, %d", received, done, total)
	}
}

func TestRun_EndToEnd(t *testing.T) {
	var img bytes.Buffer
	src := image.NewRGBA(image.Rect(0, 0, 2, 2))
	src.Set(0, 0, color.White)
	if err := png.Encode(&img, src); err != nil {
		t.Fatal(err)
	}

	var srv *httptest.Server
	srv = httptest.NewServer(nethttp.HandlerFunc(func(w nethttp.ResponseWriter, r *nethttp.Request) {
		switch r.URL.Path {
		case "/v1/bulk-download":
			if r.Header.Get("x-api-key") != "secret" {
				w.WriteHeader(nethttp.StatusUnauthorized)
				return
			}
			fmt.Fprintf(w, `{"data":[{"id":"p1","created_at":"2022-01-02T09:00:00Z","media":[{"url":%q,"tags":["scan"],"content_type":"image/png"}]}]}`,
				srv.URL+"/media/1")
		case "/media/1":
			w.Write(img.Bytes())
		default:
			nethttp.NotFound(w, r)
		}
	}))
	defer srv.Close()

	settings := testSettings(t)
	settings.APIBaseURL = srv.URL
	settings.VerifyImages = true

	m := NewManager(settings, "secret", nil)
	summary, err := m.Run(context.Background())
	if err != nil {
		t.Fatalf("Run failed: %v", err)
	}

	path := filepath.Join(settings.MirrorRoot, "2022-01-02", "p1", "scan.png")
	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("expected %s: %v", path, err)
	}
	if !bytes.Equal(data, img.Bytes()) {
		t.Error("downloaded file differs from served image")
	}
	if summary.Bytes != int64(img.Len()) {
		t.Errorf("summary.Bytes = %d, want %d", summary.Bytes, img.Len())
	}

	entries, _ := os.ReadDir(filepath.Dir(path))
	for _, e := range entries {
		if strings.HasSuffix(e.Name(), ".part") {
			t.Errorf("temporary file left behind: %s", e.Name())
		}
	}
}
