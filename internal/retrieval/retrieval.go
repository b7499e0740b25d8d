package retrieval

import (
	"context"
	"log/slog"
	"time"
	"unicode/utf8"

	"RadNode/internal/logger"
	"RadNode/internal/radon"
)

// Retriever fetches sources concurrently and runs their scripts.
type Retriever struct {
	fetchers map[Kind]Fetcher // fetchers maps source kinds to their transport
	settings radon.Settings   // settings applies to every source script
	log      *slog.Logger     // log is the component logger
}

// New creates a retriever with the given fetchers.
func New(fetchers map[Kind]Fetcher, settings radon.Settings) *Retriever {
	registered := make(map[Kind]Fetcher, len(fetchers))
	for k, f := range fetchers {
		registered[k] = f
	}

	return &Retriever{
		fetchers: registered,
		settings: settings,
		log:      logger.With("component", "retrieval"),
	}
}

// outcome carries a finished source report back to the join.
type outcome struct {
	index  int          // index is the source position
	report radon.Report // report is the source result
}

// RetrieveAll runs every source concurrently and returns one report per
// source, in source order. When timeout is positive it bounds the whole batch:
// sources still pending at the deadline are abandoned and reported as
// RetrieveTimeout, while finished ones keep their results.
func (r *Retriever) RetrieveAll(ctx context.Context, sources []Source, timeout time.Duration) []radon.Report {
	cancel := context.CancelFunc(func() {})
	if timeout > 0 {
		ctx, cancel = context.WithTimeout(ctx, timeout)
	}
	defer cancel()

	start := time.Now().UTC()
	results := make(chan outcome, len(sources))

	for i, src := range sources {
		go func(i int, src Source) {
			results <- outcome{index: i, report: r.Retrieve(ctx, src)}
		}(i, src)
	}

	reports := make([]radon.Report, len(sources))
	done := make([]bool, len(sources))

	for pending := len(sources); pending > 0; pending-- {
		select {
		case out := <-results:
			reports[out.index] = out.report
			done[out.index] = true
		case <-ctx.Done():
			drain(results, reports, done)
			r.abandon(reports, done, sources, start)
			return reports
		}
	}

	return reports
}

// drain collects reports that finished alongside the deadline.
func drain(results <-chan outcome, reports []radon.Report, done []bool) {
	for {
		select {
		case out := <-results:
			reports[out.index] = out.report
			done[out.index] = true
		default:
			return
		}
	}
}

// abandon fills every unfinished slot with a timeout report.
func (r *Retriever) abandon(reports []radon.Report, done []bool, sources []Source, start time.Time) {
	now := time.Now().UTC()

	for i := range reports {
		if done[i] {
			continue
		}

		report := radon.NewErrorReport(radon.NewError(radon.ErrRetrieveTimeout), radon.StageRetrieval)
		report.Context.StartTime = start
		report.Context.CompletionTime = now
		reports[i] = report

		r.log.Warn("source timed out", "index", i, "kind", sources[i].Kind)
	}
}

// Retrieve fetches one source and runs its script over the body.
func (r *Retriever) Retrieve(ctx context.Context, src Source) radon.Report {
	start := time.Now().UTC()

	report := r.retrieve(ctx, src)
	report.Context.StartTime = start
	report.Context.CompletionTime = time.Now().UTC()

	r.log.Debug("source done",
		"kind", src.Kind,
		"elapsed", report.Context.Elapsed(),
		"outcome", report.String(),
	)

	return report
}

// retrieve produces the source report without timing.
func (r *Retriever) retrieve(ctx context.Context, src Source) radon.Report {
	fetcher, ok := r.fetchers[src.Kind]
	if !ok {
		return radon.NewErrorReport(
			radon.NewError(radon.ErrUnsupportedSourceKind, radon.String(string(src.Kind))),
			radon.StageRetrieval,
		)
	}

	body, err := fetcher.Fetch(ctx, src)
	if err != nil {
		if ctx.Err() != nil {
			return radon.NewErrorReport(radon.NewError(radon.ErrRetrieveTimeout), radon.StageRetrieval)
		}

		return radon.NewErrorReport(radon.AsError(err), radon.StageRetrieval)
	}

	if !utf8.Valid(body) {
		return radon.NewErrorReport(radon.NewDecodeError(radon.TypeBytes.String(), radon.TypeString.String()), radon.StageRetrieval)
	}

	return radon.Execute(radon.String(body), src.Script, radon.StageRetrieval, r.settings)
}
