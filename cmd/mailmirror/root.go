package main

import (
	"io"
	"log/slog"
	"strings"

	"github.com/spf13/cobra"

	"github.com/handiism/mailmirror/internal/config"
	"github.com/handiism/mailmirror/internal/logging"
)

type commandContext struct {
	configFlag    string
	logLevelFlag  string
	logFormatFlag string
}

func newRootCommand() *cobra.Command {
	ctx := &commandContext{}

	rootCmd := &cobra.Command{
		Use:   "mailmirror",
		Short: "Mirror Earth Class Mail scans into a local directory tree",
		Long: `mailmirror lists every piece in an Earth Class Mail account and downloads
its scans to <root>/<YYYY-MM-DD>/<piece id>/. Files already present are
never fetched again, so repeated runs only pick up new mail.`,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return cmd.Help()
		},
	}

	rootCmd.PersistentFlags().StringVarP(&ctx.configFlag, "config", "c", "", "Configuration file path")
	rootCmd.PersistentFlags().StringVar(&ctx.logLevelFlag, "log-level", "", "Log level (debug, info, warn, error)")
	rootCmd.PersistentFlags().StringVar(&ctx.logFormatFlag, "log-format", "", "Log format (console, json)")

	rootCmd.AddCommand(newSyncCommand(ctx))
	rootCmd.AddCommand(newPlanCommand(ctx))
	rootCmd.AddCommand(newConfigCommand(ctx))

	return rootCmd
}

func (c *commandContext) configPath() string {
	if path := strings.TrimSpace(c.configFlag); path != "" {
		return path
	}
	return config.DefaultPath()
}

// loadSettings reads the configuration file and applies the logging flags.
func (c *commandContext) loadSettings() (*config.Settings, error) {
	path, err := config.ExpandHome(c.configPath())
	if err != nil {
		return nil, err
	}
	settings, err := config.Load(path)
	if err != nil {
		return nil, err
	}
	if c.logLevelFlag != "" {
		settings.LogLevel = c.logLevelFlag
	}
	if c.logFormatFlag != "" {
		settings.LogFormat = c.logFormatFlag
	}
	return settings, nil
}

func (c *commandContext) newLogger(settings *config.Settings, out io.Writer) (*slog.Logger, error) {
	return logging.New(logging.Options{
		Level:  settings.LogLevel,
		Format: settings.LogFormat,
		Output: out,
	})
}
