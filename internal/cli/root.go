package cli

import (
	"fmt"
	"log/slog"

	"github.com/spf13/cobra"

	"RadNode/internal/logger"
)

// RootOptions holds global flags for all commands.
type RootOptions struct {
	Verbose bool   // Verbose enables debug logs on stderr
	Format  string // Format is "text" or "json"
}

// validFormats defines the allowed output formats.
var validFormats = []string{"text", "json"}

// NewRootCommand creates the root command of the rad CLI.
func NewRootCommand() *cobra.Command {
	opts := &RootOptions{}

	cmd := &cobra.Command{
		Use:   "rad",
		Short: "rad - resolve and tally data requests",
		Long:  "Resolve data requests locally, work with RADON scripts and report archives, and drive a radnode over HTTP.",
		PersistentPreRunE: func(cmd *cobra.Command, _ []string) error {
			if !isValidFormat(opts.Format) {
				return fmt.Errorf("invalid format %q: must be one of %v", opts.Format, validFormats)
			}

			level := slog.LevelWarn
			if opts.Verbose {
				level = slog.LevelDebug
			}

			slog.SetDefault(slog.New(logger.NewHandler(cmd.ErrOrStderr(), level)))

			return nil
		},
	}

	cmd.PersistentFlags().BoolVarP(&opts.Verbose, "verbose", "v", false, "verbose output")
	cmd.PersistentFlags().StringVar(&opts.Format, "format", "text", "output format (json|text)")

	cmd.AddCommand(NewRunCommand(opts))
	cmd.AddCommand(NewScriptCommand(opts))
	cmd.AddCommand(NewArchiveCommand(opts))
	cmd.AddCommand(NewRemoteCommand(opts))

	return cmd
}

// isValidFormat checks if the format is one of the allowed values.
func isValidFormat(format string) bool {
	for _, f := range validFormats {
		if f == format {
			return true
		}
	}

	return false
}
