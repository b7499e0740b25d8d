package cli

import (
	"errors"
	"io"

	"github.com/spf13/cobra"

	"RadNode/client"
	"RadNode/internal/rad"
)

// NewRemoteCommand creates the remote command group, which drives a node over HTTP.
func NewRemoteCommand(rootOpts *RootOptions) *cobra.Command {
	var node string

	cmd := &cobra.Command{
		Use:   "remote",
		Short: "Resolve, fetch and collect reports on a running node",
	}

	cmd.PersistentFlags().StringVar(&node, "node", "127.0.0.1:8080", "node HTTP address")

	cmd.AddCommand(newRemoteResolveCommand(rootOpts, &node))
	cmd.AddCommand(newRemoteReportCommand(rootOpts, &node))
	cmd.AddCommand(newRemoteCollectCommand(rootOpts, &node))

	return cmd
}

// newRemoteResolveCommand creates the remote resolve command.
func newRemoteResolveCommand(rootOpts *RootOptions, node *string) *cobra.Command {
	var announce bool

	cmd := &cobra.Command{
		Use:           "resolve <request-file>",
		Short:         "Resolve a request on the node",
		Args:          cobra.ExactArgs(1),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			req, err := rad.LoadRequestFile(args[0])
			if err != nil {
				return err
			}

			res, err := client.NewClient(*node).Resolve(req, announce)
			if err != nil {
				return err
			}

			return newOutput(rootOpts, cmd.OutOrStdout()).emit(res, func(w io.Writer) {
				line(w, "id      %s", res.ID)
				for i, s := range res.Sources {
					line(w, "source  %d %s", i, s.Outcome)
				}
				line(w, "result  %s", res.Report.Outcome)
			})
		},
	}

	cmd.Flags().BoolVar(&announce, "announce", false, "ask the other witnesses to resolve it too")

	return cmd
}

// newRemoteReportCommand creates the remote report command.
func newRemoteReportCommand(rootOpts *RootOptions, node *string) *cobra.Command {
	return &cobra.Command{
		Use:           "report <id>",
		Short:         "Fetch an archived report from the node",
		Args:          cobra.ExactArgs(1),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			id, err := rad.ParseID(args[0])
			if err != nil {
				return err
			}

			info, err := client.NewClient(*node).Report(id)
			if err != nil {
				return err
			}

			return newOutput(rootOpts, cmd.OutOrStdout()).emit(info, func(w io.Writer) {
				line(w, "%s", info.Outcome)
			})
		},
	}
}

// newRemoteCollectCommand creates the remote collect command.
func newRemoteCollectCommand(rootOpts *RootOptions, node *string) *cobra.Command {
	return &cobra.Command{
		Use:           "collect <request-file>",
		Short:         "Tally a request across its witness committee",
		Args:          cobra.ExactArgs(1),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			req, err := rad.LoadRequestFile(args[0])
			if err != nil {
				return err
			}

			cert, err := client.NewClient(*node).Collect(req)
			if err != nil && !errors.Is(err, client.ErrNoConsensus) {
				return err
			}

			if outErr := newOutput(rootOpts, cmd.OutOrStdout()).emit(cert, func(w io.Writer) {
				line(w, "id         %s", cert.ID)
				line(w, "committee  %d", len(cert.Committee))
				line(w, "revealed   %v", cert.Revealed)
				line(w, "honest     %v", cert.Honest)
				line(w, "result     %s", cert.Report.Outcome)
			}); outErr != nil {
				return outErr
			}

			return err
		},
	}
}
