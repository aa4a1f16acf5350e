// Package download provides the sync orchestration logic for mirroring
// Earth Class Mail scans into a local directory tree.
//
// # Manager
//
// The Manager coordinates a sync run:
//
//  1. Lock the mirror root against concurrent runs
//  2. Fetch the full piece catalog
//  3. Create missing piece directories and name every media item
//  4. Skip media whose target file already exists
//  5. Download the remaining work items, in order
//
// # Basic Usage
//
//	manager := download.NewManager(settings, apiKey, func(event download.ProgressEvent) {
//	    fmt.Println(event.Message)
//	})
//
//	summary, err := manager.Run(ctx)
//	if err != nil {
//	    log.Fatal(err)
//	}
//	fmt.Println(summary.Downloaded, "downloaded")
//
// # Errors
//
// Listing failures are fatal and stop the run before any download:
// *earthclassmail.CatalogFetchError, *model.NamingError and
// *FilesystemError. A failed download yields a *DownloadError. With
// settings.ContinueOnError the run goes on and the failures are returned
// together as an *AggregateError.
//
// # Concurrency
//
// settings.MaxConcurrentDownloads bounds the number of transfers in flight.
// The default of 1 downloads strictly in work list order.
//
// # Retry Logic
//
// Transient download failures (transport errors, 429 and 5xx) are retried
// with exponential backoff, configurable via settings.DownloadMaxRetries,
// settings.DownloadRetryCooldown and settings.DownloadRetryExponent.
package download
