package reveal

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"RadNode/internal/archive"
	"RadNode/internal/logger"
	"RadNode/internal/network"
	"RadNode/internal/rad"
	"RadNode/internal/radon"
)

// ReportStore returns archived reports.
type ReportStore interface {
	Get(id [32]byte) (radon.Report, error)
}

// Resolver resolves announced requests.
type Resolver interface {
	Resolve(ctx context.Context, req rad.Request) (rad.Resolution, error)
}

// Handler answers reveal requests with signed archived reports and resolves
// requests announced by other witnesses.
type Handler struct {
	store    ReportStore   // store holds the reports this witness resolved
	blsKey   *BLSKeyPair   // blsKey signs outcome digests
	resolver Resolver      // resolver handles announces, may be nil
	timeout  time.Duration // timeout bounds an announced resolution
	log      *slog.Logger  // log is the component logger
}

// NewHandler creates a reveal handler. A nil resolver ignores announces.
func NewHandler(store ReportStore, blsKey *BLSKeyPair, resolver Resolver) *Handler {
	return &Handler{
		store:    store,
		blsKey:   blsKey,
		resolver: resolver,
		timeout:  2 * rad.DefaultTimeout,
		log:      logger.With("component", "reveal"),
	}
}

// Reveal signs the archived report for a request.
func (h *Handler) Reveal(id [32]byte) (RevealResponse, error) {
	report, err := h.store.Get(id)
	if err != nil {
		return RevealResponse{}, fmt.Errorf("load report %s:\n%w", rad.ShortID(id), err)
	}

	digest, err := OutcomeDigest(id, report)
	if err != nil {
		return RevealResponse{}, err
	}

	encoded, err := radon.EncodeReport(report)
	if err != nil {
		return RevealResponse{}, fmt.Errorf("encode report:\n%w", err)
	}

	return RevealResponse{Report: encoded, Signature: h.blsKey.Sign(digest[:])}, nil
}

// HandleRequest serves a reveal request. Used as network.Node.OnRequest handler.
func (h *Handler) HandleRequest(_ *network.Peer, data []byte) ([]byte, error) {
	id, err := DecodeRevealRequest(data)
	if err != nil {
		return nil, fmt.Errorf("decode request:\n%w", err)
	}

	resp, err := h.Reveal(id)
	if err != nil {
		return nil, err
	}

	return EncodeRevealResponse(resp)
}

// HandleMessage resolves an announced request unless its report is already
// archived. Used as network.Node.OnMessage handler.
func (h *Handler) HandleMessage(p *network.Peer, data []byte) {
	if h.resolver == nil {
		return
	}

	req, err := DecodeAnnounce(data)
	if err != nil {
		h.log.Debug("dropped message", "peer", p.Address(), "error", err)
		return
	}

	id, err := req.ID()
	if err != nil {
		return
	}

	_, err = h.store.Get(id)
	if err == nil {
		return
	}

	if !errors.Is(err, archive.ErrNotFound) {
		h.log.Warn("archive lookup failed", "id", rad.ShortID(id), "error", err)
		return
	}

	ctx, cancel := context.WithTimeout(context.Background(), h.timeout)
	defer cancel()

	if _, err := h.resolver.Resolve(ctx, req); err != nil {
		h.log.Warn("announced request rejected", "id", rad.ShortID(id), "peer", p.Address(), "error", err)
	}
}
