package main

import (
	"errors"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/handiism/mailmirror/internal/config"
	"github.com/handiism/mailmirror/internal/download"
)

// runFlags are shared by the commands that talk to the catalog.
type runFlags struct {
	root    string
	envrc   string
	verbose bool
}

func (f *runFlags) register(cmd *cobra.Command) {
	cmd.Flags().StringVar(&f.root, "root", "", "Mirror root directory (overrides mirror_root)")
	cmd.Flags().StringVar(&f.envrc, "envrc", ".envrc", "Shell file searched for EARTH_CLASS_MAIL_API_KEY when unset")
	cmd.Flags().BoolVarP(&f.verbose, "verbose", "v", false, "Show skipped files")
}

// apply overrides settings from the flags and resolves the API key.
func (f *runFlags) apply(settings *config.Settings) (string, error) {
	if f.root != "" {
		root, err := config.ExpandHome(f.root)
		if err != nil {
			return "", err
		}
		settings.MirrorRoot = root
	}
	if err := settings.Validate(); err != nil {
		return "", err
	}
	return config.ResolveAPIKey(settings, f.envrc)
}

func newSyncCommand(ctx *commandContext) *cobra.Command {
	var flags runFlags
	var concurrency int
	var failFast bool

	cmd := &cobra.Command{
		Use:   "sync",
		Short: "Download every scan missing from the mirror",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			settings, err := ctx.loadSettings()
			if err != nil {
				return err
			}
			if cmd.Flags().Changed("concurrency") {
				settings.MaxConcurrentDownloads = concurrency
			}
			if failFast {
				settings.ContinueOnError = false
			}
			apiKey, err := flags.apply(settings)
			if err != nil {
				return err
			}

			stderr := cmd.ErrOrStderr()
			logger, err := ctx.newLogger(settings, stderr)
			if err != nil {
				return err
			}

			printer := newProgressPrinter(stderr, flags.verbose)
			manager := download.NewManager(settings, apiKey, printer.Print, download.WithLogger(logger))

			summary, runErr := manager.Run(cmd.Context())
			if runErr != nil && !isDownloadFailure(runErr) {
				return runErr
			}

			out := cmd.OutOrStdout()
			fmt.Fprintln(out, renderSummary(summary))
			if failures := manager.Failures(); len(failures) > 0 {
				fmt.Fprintln(out, renderFailures(failures))
			}
			return runErr
		},
	}

	flags.register(cmd)
	cmd.Flags().IntVarP(&concurrency, "concurrency", "j", 1, "Maximum downloads in flight (overrides max_concurrent_downloads)")
	cmd.Flags().BoolVar(&failFast, "fail-fast", false, "Stop at the first failed download")
	return cmd
}

// isDownloadFailure reports whether err came from the download phase, after
// a complete work list was built.
func isDownloadFailure(err error) bool {
	var dlErr *download.DownloadError
	var aggErr *download.AggregateError
	return errors.As(err, &aggErr) || errors.As(err, &dlErr)
}
