package cli

import (
	"context"
	"encoding/hex"
	"fmt"
	"io"
	"os"
	"time"

	"github.com/spf13/cobra"

	"RadNode/internal/archive"
	"RadNode/internal/podvm"
	"RadNode/internal/rad"
	"RadNode/internal/radon"
	"RadNode/internal/retrieval"
	"RadNode/internal/storage"
	"RadNode/internal/tally"
)

// RunOptions holds flags for the run command.
type RunOptions struct {
	*RootOptions
	Database       string        // Database archives the final report when set
	Modules        string        // Modules is a directory of wasm source programs
	Timeout        time.Duration // Timeout overrides the request timeout
	AllowedDomains []string      // AllowedDomains restricts http-get sources
	Clustering     string        // Clustering groups source reports
}

// reportResult is the JSON rendering of a report.
type reportResult struct {
	Outcome string `json:"outcome"`
	Stage   string `json:"stage"`
	Liars   []bool `json:"liars,omitempty"`
	Errors  []bool `json:"errors,omitempty"`
	Elapsed string `json:"elapsed,omitempty"`
}

// newReportResult renders a report.
func newReportResult(r radon.Report) reportResult {
	res := reportResult{
		Outcome: r.String(),
		Stage:   string(r.Context.Stage),
		Liars:   r.Context.Liars,
		Errors:  r.Context.Errors,
	}

	if d := r.Context.Elapsed(); d > 0 {
		res.Elapsed = d.String()
	}

	return res
}

// NewRunCommand creates the run command.
func NewRunCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &RunOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "run <request-file>",
		Short: "Resolve a request locally",
		Long: `Resolve a request file (YAML or JSON notation) on this machine:
retrieve every source, aggregate the agreeing reports and print the result.

Example:
  rad run price.yaml
  rad run --modules ./modules --db ./data/db price.yaml`,
		Args:          cobra.ExactArgs(1),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runRequest(cmd.Context(), opts, args[0], cmd.OutOrStdout())
		},
	}

	cmd.Flags().StringVar(&opts.Database, "db", "", "archive the final report in this pebble store")
	cmd.Flags().StringVar(&opts.Modules, "modules", "", "directory of wasm source programs")
	cmd.Flags().DurationVar(&opts.Timeout, "timeout", 0, "retrieval timeout (overrides the request)")
	cmd.Flags().StringSliceVar(&opts.AllowedDomains, "allow", nil, "http-get domain allowlist")
	cmd.Flags().StringVar(&opts.Clustering, "clustering", "by-type", "aggregation clustering (by-type|by-value)")

	return cmd
}

// runRequest resolves the request file and writes the reports.
func runRequest(ctx context.Context, opts *RunOptions, path string, w io.Writer) error {
	if ctx == nil {
		ctx = context.Background()
	}

	req, err := rad.LoadRequestFile(path)
	if err != nil {
		return err
	}

	if opts.Timeout > 0 {
		req.TimeoutMillis = uint64(opts.Timeout / time.Millisecond)
	}

	engine, cleanup, err := buildEngine(opts)
	if err != nil {
		return err
	}
	defer cleanup()

	res, err := engine.Resolve(ctx, req)
	if err != nil {
		return err
	}

	sources := make([]reportResult, len(res.Sources))
	for i, s := range res.Sources {
		sources[i] = newReportResult(s)
	}

	data := map[string]any{
		"id":      hex.EncodeToString(res.ID[:]),
		"report":  newReportResult(res.Report),
		"sources": sources,
	}

	return newOutput(opts.RootOptions, w).emit(data, func(w io.Writer) {
		line(w, "id      %s", hex.EncodeToString(res.ID[:]))
		for i, s := range sources {
			line(w, "source  %d %s", i, s.Outcome)
		}
		line(w, "result  %s", res.Report.String())
	})
}

// buildEngine wires a local engine from the run flags.
func buildEngine(opts *RunOptions) (*rad.Engine, func(), error) {
	clustering, err := tally.ParseClustering(opts.Clustering)
	if err != nil {
		return nil, nil, err
	}

	var closers []func()
	cleanup := func() {
		for i := len(closers) - 1; i >= 0; i-- {
			closers[i]()
		}
	}

	pool := podvm.New()
	closers = append(closers, func() { pool.Close() })

	if opts.Modules != "" {
		if _, err := pool.LoadDir(opts.Modules); err != nil {
			cleanup()
			return nil, nil, err
		}
	}

	var arch *archive.Archive

	if opts.Database != "" {
		db, err := storage.New(opts.Database)
		if err != nil {
			cleanup()
			return nil, nil, fmt.Errorf("open store:\n%w", err)
		}

		closers = append(closers, func() { db.Close() })
		arch = archive.New(db)
	}

	cfg := rad.DefaultConfig()
	cfg.Clustering = clustering

	retriever := retrieval.New(map[retrieval.Kind]retrieval.Fetcher{
		retrieval.KindHTTPGet: retrieval.NewHTTPFetcher(retrieval.HTTPConfig{AllowedDomains: opts.AllowedDomains}),
		retrieval.KindWasm:    retrieval.NewWasmFetcher(pool, 0),
	}, cfg.Settings)

	return rad.NewEngine(retriever, arch, cfg), cleanup, nil
}

// readInput reads a file argument, or stdin for "-".
func readInput(path string) ([]byte, error) {
	if path == "-" {
		return io.ReadAll(os.Stdin)
	}

	return os.ReadFile(path)
}
