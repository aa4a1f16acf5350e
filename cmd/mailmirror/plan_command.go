package main

import (
	"fmt"
	"strconv"

	"github.com/spf13/cobra"

	"github.com/handiism/mailmirror/internal/download"
	ioutils "github.com/handiism/mailmirror/internal/io"
)

func newPlanCommand(ctx *commandContext) *cobra.Command {
	var flags runFlags

	cmd := &cobra.Command{
		Use:   "plan",
		Short: "List the downloads a sync would perform, without writing anything",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			settings, err := ctx.loadSettings()
			if err != nil {
				return err
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
			manager := download.NewManager(settings, apiKey, printer.Print,
				download.WithLogger(logger),
				download.WithFileSystem(download.ReadOnly(ioutils.OS{})),
			)
			if err := manager.Initialize(cmd.Context()); err != nil {
				return err
			}

			out := cmd.OutOrStdout()
			work := manager.WorkList()
			if len(work) == 0 {
				fmt.Fprintln(out, "Mirror is up to date.")
				return nil
			}

			rows := make([][]string, 0, len(work))
			for i, item := range work {
				rows = append(rows, []string{strconv.Itoa(i + 1), item.Path, item.URL})
			}
			fmt.Fprintln(out, renderTable([]string{"#", "Path", "URL"}, rows, []columnAlignment{alignRight}))
			return nil
		},
	}

	flags.register(cmd)
	return cmd
}
