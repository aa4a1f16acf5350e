package main

import (
	"errors"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/handiism/mailmirror/internal/config"
	"github.com/handiism/mailmirror/internal/tui"
)

func main() {
	if err := newRootCommand().Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

func newRootCommand() *cobra.Command {
	var configPath, root, envrc string
	var verbose bool

	cmd := &cobra.Command{
		Use:           "mailmirror-tui",
		Short:         "Interactive Earth Class Mail mirror",
		Args:          cobra.NoArgs,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			if configPath == "" {
				configPath = config.DefaultPath()
			}
			settings, err := config.Load(configPath)
			if err != nil {
				return err
			}
			if root != "" {
				if settings.MirrorRoot, err = config.ExpandHome(root); err != nil {
					return err
				}
			}

			apiKey, err := config.ResolveAPIKey(settings, envrc)
			if err != nil && !errors.Is(err, config.ErrNoAPIKey) {
				return err
			}

			return tui.Run(tui.Options{
				Settings: settings,
				APIKey:   apiKey,
				Verbose:  verbose,
			})
		},
	}

	cmd.Flags().StringVarP(&configPath, "config", "c", "", "Configuration file path")
	cmd.Flags().StringVar(&root, "root", "", "Mirror root directory (overrides mirror_root)")
	cmd.Flags().StringVar(&envrc, "envrc", ".envrc", "Shell file searched for EARTH_CLASS_MAIL_API_KEY when unset")
	cmd.Flags().BoolVarP(&verbose, "verbose", "v", false, "Show skipped files")
	return cmd
}
