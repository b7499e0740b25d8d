package cli

import (
	"encoding/hex"
	"fmt"
	"io"
	"os"

	"github.com/spf13/cobra"

	"RadNode/internal/archive"
	"RadNode/internal/storage"
)

// NewArchiveCommand creates the archive command group.
func NewArchiveCommand(rootOpts *RootOptions) *cobra.Command {
	var dbPath string

	cmd := &cobra.Command{
		Use:   "archive",
		Short: "List, export and import archived reports",
	}

	cmd.PersistentFlags().StringVar(&dbPath, "db", "./data/db", "path to the pebble store")

	cmd.AddCommand(newArchiveListCommand(rootOpts, &dbPath))
	cmd.AddCommand(newArchiveExportCommand(rootOpts, &dbPath))
	cmd.AddCommand(newArchiveImportCommand(rootOpts, &dbPath))

	return cmd
}

// withArchive opens the store, runs fn and closes the store.
func withArchive(dbPath string, fn func(*archive.Archive) error) error {
	db, err := storage.New(dbPath)
	if err != nil {
		return fmt.Errorf("open store:\n%w", err)
	}
	defer db.Close()

	return fn(archive.New(db))
}

// newArchiveListCommand creates the archive list command.
func newArchiveListCommand(rootOpts *RootOptions, dbPath *string) *cobra.Command {
	return &cobra.Command{
		Use:           "list",
		Short:         "List archived reports",
		Args:          cobra.NoArgs,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return withArchive(*dbPath, func(a *archive.Archive) error {
				entries, err := a.List()
				if err != nil {
					return err
				}

				rows := make([]map[string]any, len(entries))
				for i, e := range entries {
					rows[i] = map[string]any{"id": hex.EncodeToString(e.ID[:]), "report": newReportResult(e.Report)}
				}

				return newOutput(rootOpts, cmd.OutOrStdout()).emit(rows, func(w io.Writer) {
					for _, e := range entries {
						line(w, "%s  %s", hex.EncodeToString(e.ID[:]), e.Report.String())
					}
				})
			})
		},
	}
}

// newArchiveExportCommand creates the archive export command.
func newArchiveExportCommand(rootOpts *RootOptions, dbPath *string) *cobra.Command {
	var outPath string

	cmd := &cobra.Command{
		Use:           "export",
		Short:         "Write a compressed snapshot of the archive",
		Args:          cobra.NoArgs,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, _ []string) error {
			f, err := os.Create(outPath)
			if err != nil {
				return fmt.Errorf("create snapshot file:\n%w", err)
			}
			defer f.Close()

			return withArchive(*dbPath, func(a *archive.Archive) error {
				n, err := a.Export(f)
				if err != nil {
					return err
				}

				return newOutput(rootOpts, cmd.OutOrStdout()).emit(map[string]any{"entries": n, "file": outPath}, func(w io.Writer) {
					line(w, "exported %d reports to %s", n, outPath)
				})
			})
		},
	}

	cmd.Flags().StringVarP(&outPath, "output", "o", "archive.snap", "snapshot file")

	return cmd
}

// newArchiveImportCommand creates the archive import command.
func newArchiveImportCommand(rootOpts *RootOptions, dbPath *string) *cobra.Command {
	return &cobra.Command{
		Use:           "import <snapshot-file>",
		Short:         "Replace the archive with a snapshot",
		Args:          cobra.ExactArgs(1),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			f, err := os.Open(args[0])
			if err != nil {
				return fmt.Errorf("open snapshot file:\n%w", err)
			}
			defer f.Close()

			return withArchive(*dbPath, func(a *archive.Archive) error {
				n, err := a.Import(f)
				if err != nil {
					return err
				}

				return newOutput(rootOpts, cmd.OutOrStdout()).emit(map[string]any{"entries": n}, func(w io.Writer) {
					line(w, "imported %d reports", n)
				})
			})
		},
	}
}
