package reveal

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"RadNode/internal/logger"
	"RadNode/internal/network"
	"RadNode/internal/rad"
	"RadNode/internal/radon"
	"RadNode/internal/tally"
)

const (
	// DefaultCommitteeSize is the number of witnesses asked per request.
	DefaultCommitteeSize = 5

	// DefaultMinConsensusRatio is the tally ratio when the request sets none.
	DefaultMinConsensusRatio = 0.51
)

// ErrNoWitnesses is returned when the committee is empty.
var ErrNoWitnesses = errors.New("no witnesses configured")

// Config holds the collector settings.
type Config struct {
	CommitteeSize     int            // CommitteeSize is the number of witnesses per request
	MinConsensusRatio float64        // MinConsensusRatio applies when the request sets none
	Settings          radon.Settings // Settings applies to the tally script
}

// revealed is a verified reveal from one committee member.
type revealed struct {
	position  int          // position is the witness's committee position
	report    radon.Report // report is the witness's archived report
	digest    [32]byte     // digest is the signed outcome digest
	signature []byte       // signature is the verified BLS signature
}

// Collector gathers reveals from a request's committee and tallies them.
type Collector struct {
	node      *network.Node // node dials committee members and identifies this witness
	local     *Handler      // local answers for this node, may be nil
	witnesses []Witness     // witnesses is the known witness set
	cfg       Config        // cfg holds defaults
	log       *slog.Logger  // log is the component logger
}

// NewCollector creates a collector. The local handler serves the committee
// slot of this node without a network round trip.
func NewCollector(node *network.Node, local *Handler, witnesses []Witness, cfg Config) *Collector {
	if cfg.CommitteeSize <= 0 {
		cfg.CommitteeSize = DefaultCommitteeSize
	}

	if cfg.MinConsensusRatio == 0 {
		cfg.MinConsensusRatio = DefaultMinConsensusRatio
	}

	return &Collector{
		node:      node,
		local:     local,
		witnesses: witnesses,
		cfg:       cfg,
		log:       logger.With("component", "collector"),
	}
}

// Committee returns the committee of a request id.
func (c *Collector) Committee(id [32]byte) []Witness {
	return Committee(id, c.witnesses, c.cfg.CommitteeSize)
}

// Collect asks the committee for its reveals and tallies them with the
// request's tally script. Missing or badly signed reveals are absent
// commitments. A consensus failure is returned together with a certificate
// carrying the failed report.
func (c *Collector) Collect(ctx context.Context, req rad.Request) (Certificate, error) {
	id, err := req.ID()
	if err != nil {
		return Certificate{}, err
	}

	committee := c.Committee(id)
	if len(committee) == 0 {
		return Certificate{}, ErrNoWitnesses
	}

	start := time.Now()
	reveals := c.gather(ctx, id, committee)

	reports := make([]radon.Report, len(reveals))
	for i, r := range reveals {
		reports[i] = r.report
	}

	ratio := req.MinConsensusRatio
	if ratio == 0 {
		ratio = c.cfg.MinConsensusRatio
	}

	opts := tally.Options{
		MinConsensusRatio: ratio,
		CommitsCount:      len(committee),
		Clustering:        tally.ByValue,
		Stage:             radon.StageTally,
	}

	report, tallyErr := tally.Run(reports, req.Tally, opts, c.cfg.Settings)

	cert, err := buildCertificate(id, committee, reveals, report)
	if err != nil {
		return Certificate{}, err
	}

	c.log.Info("reveals tallied",
		"id", rad.ShortID(id),
		"committee", len(committee),
		"revealed", len(reveals),
		"honest", len(ParseBitmap(cert.Honest)),
		"outcome", report.String(),
		logger.Timed(start),
	)

	return cert, tallyErr
}

// gather requests every committee member in parallel and returns the
// verified reveals in committee order.
func (c *Collector) gather(ctx context.Context, id [32]byte, committee []Witness) []revealed {
	results := make(chan *revealed, len(committee))

	var wg sync.WaitGroup

	for i, w := range committee {
		wg.Add(1)

		go func(position int, w Witness) {
			defer wg.Done()

			r, err := c.requestReveal(ctx, id, w)
			if err != nil {
				c.log.Debug("reveal missing", "id", rad.ShortID(id), "witness", w.Addr, "error", err)
				results <- nil
				return
			}

			r.position = position
			results <- r
		}(i, w)
	}

	go func() {
		wg.Wait()
		close(results)
	}()

	byPosition := make([]*revealed, len(committee))
	for r := range results {
		if r != nil {
			byPosition[r.position] = r
		}
	}

	var ordered []revealed
	for _, r := range byPosition {
		if r != nil {
			ordered = append(ordered, *r)
		}
	}

	return ordered
}

// requestReveal fetches and verifies one witness's reveal.
func (c *Collector) requestReveal(ctx context.Context, id [32]byte, w Witness) (*revealed, error) {
	resp, err := c.fetch(ctx, id, w)
	if err != nil {
		return nil, err
	}

	report, err := radon.DecodeReport(resp.Report)
	if err != nil {
		return nil, fmt.Errorf("decode report:\n%w", err)
	}

	digest, err := OutcomeDigest(id, report)
	if err != nil {
		return nil, err
	}

	if !Verify(resp.Signature, digest[:], w.BLSKey) {
		return nil, fmt.Errorf("invalid reveal signature")
	}

	return &revealed{report: report, digest: digest, signature: resp.Signature}, nil
}

// fetch returns the raw reveal of a witness, locally for this node.
func (c *Collector) fetch(ctx context.Context, id [32]byte, w Witness) (RevealResponse, error) {
	if c.local != nil && bytes.Equal(w.PublicKey, c.node.PublicKey()) {
		return c.local.Reveal(id)
	}

	peer, err := c.node.PeerAt(ctx, w.Addr, w.PublicKey)
	if err != nil {
		return RevealResponse{}, err
	}

	data, err := peer.Request(ctx, EncodeRevealRequest(id))
	if err != nil {
		return RevealResponse{}, err
	}

	return DecodeRevealResponse(data)
}
