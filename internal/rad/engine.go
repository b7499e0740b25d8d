package rad

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"RadNode/internal/archive"
	"RadNode/internal/logger"
	"RadNode/internal/radon"
	"RadNode/internal/retrieval"
	"RadNode/internal/tally"
)

const (
	// DefaultMinConsensusRatio is the aggregation ratio when none is configured.
	DefaultMinConsensusRatio = 0.2

	// DefaultTimeout bounds retrieval when neither the request nor the node sets one.
	DefaultTimeout = 10 * time.Second
)

// Config holds the engine settings.
type Config struct {
	MinConsensusRatio float64          // MinConsensusRatio is the aggregation ratio default
	Clustering        tally.Clustering // Clustering groups source reports during aggregation
	Timeout           time.Duration    // Timeout is the retrieval timeout default
	Settings          radon.Settings   // Settings applies to aggregation and tally scripts
}

// DefaultConfig returns the engine defaults: sources agree when they produce
// the same variant, since independent venues rarely report identical values.
func DefaultConfig() Config {
	return Config{
		MinConsensusRatio: DefaultMinConsensusRatio,
		Clustering:        tally.ByType,
		Timeout:           DefaultTimeout,
		Settings:          radon.Settings{GasLimit: radon.DefaultGasLimit},
	}
}

// Resolution is the outcome of resolving a request.
type Resolution struct {
	ID      [32]byte       // ID is the request id
	Report  radon.Report   // Report is the final aggregated report
	Sources []radon.Report // Sources are the per-source reports, in source order
}

// Engine runs requests through retrieval, aggregation and tally.
type Engine struct {
	retriever *retrieval.Retriever // retriever fetches sources
	archive   *archive.Archive     // archive stores final reports, may be nil
	cfg       Config               // cfg holds defaults
	log       *slog.Logger         // log is the component logger
}

// NewEngine creates an engine. A nil archive disables persistence.
func NewEngine(retriever *retrieval.Retriever, arch *archive.Archive, cfg Config) *Engine {
	if cfg.MinConsensusRatio == 0 {
		cfg.MinConsensusRatio = DefaultMinConsensusRatio
	}

	if cfg.Timeout == 0 {
		cfg.Timeout = DefaultTimeout
	}

	return &Engine{
		retriever: retriever,
		archive:   arch,
		cfg:       cfg,
		log:       logger.With("component", "engine"),
	}
}

// Resolve retrieves every source, keeps the agreeing reports and folds them
// with the aggregate script. A malformed request is an error; every other
// failure, including insufficient consensus, ends up in the final report.
// The first final report is archived under the request id; later resolves of
// the same request return the archived report.
func (e *Engine) Resolve(ctx context.Context, req Request) (Resolution, error) {
	if err := req.Validate(); err != nil {
		return Resolution{}, fmt.Errorf("invalid request:\n%w", err)
	}

	id, err := req.ID()
	if err != nil {
		return Resolution{}, err
	}

	start := time.Now()

	timeout := req.Timeout()
	if timeout == 0 {
		timeout = e.cfg.Timeout
	}
	if timeout <= 0 {
		timeout = DefaultTimeout
	}

	// Only the request timeout stops pending sources, a caller going away does not.
	sources := e.retriever.RetrieveAll(context.WithoutCancel(ctx), req.Sources, timeout)

	ratio := req.MinConsensusRatio
	if ratio == 0 {
		ratio = e.cfg.MinConsensusRatio
	}

	opts := tally.Options{
		MinConsensusRatio: ratio,
		CommitsCount:      len(req.Sources),
		Clustering:        e.cfg.Clustering,
		Stage:             radon.StageAggregation,
	}

	// Aggregation runs after the join and is bounded by gas, not by ctx.
	report, _ := tally.Run(sources, req.Aggregate, opts, e.cfg.Settings)

	if e.archive != nil {
		stored, err := e.archive.PutIfAbsent(id, report)
		if err != nil {
			return Resolution{}, fmt.Errorf("archive report:\n%w", err)
		}

		if !radon.SameOutcome(stored, report) {
			e.log.Debug("kept archived report", "id", ShortID(id), "archived", stored.String())
		}

		report = stored
	}

	e.log.Info("request resolved",
		"id", ShortID(id),
		"sources", len(sources),
		"outcome", report.String(),
		logger.Timed(start),
	)

	return Resolution{ID: id, Report: report, Sources: sources}, nil
}

// Tally runs the precondition and the tally script over committed reports.
// Insufficient consensus is returned as an error together with its report.
func (e *Engine) Tally(treq TallyRequest) (radon.Report, error) {
	start := time.Now()

	opts := tally.Options{
		MinConsensusRatio: treq.MinConsensusRatio,
		CommitsCount:      int(treq.CommitsCount),
		Clustering:        treq.Clustering,
		Stage:             radon.StageTally,
	}

	report, err := tally.Run(treq.Reports, treq.Script, opts, e.cfg.Settings)

	e.log.Info("tally done",
		"reports", len(treq.Reports),
		"commits", treq.CommitsCount,
		"outcome", report.String(),
		logger.Timed(start),
	)

	return report, err
}

// Report returns the archived report for a request id.
func (e *Engine) Report(id [32]byte) (radon.Report, error) {
	if e.archive == nil {
		return radon.Report{}, archive.ErrNotFound
	}

	return e.archive.Get(id)
}

// IsConsensusFailure reports whether err is a tally hard failure.
func IsConsensusFailure(err error) bool {
	var re *radon.Error
	if !errors.As(err, &re) {
		return false
	}

	return re.Code == radon.ErrInsufficientConsensus || re.Code == radon.ErrNoReports || re.Code == radon.ErrWrongArguments
}
