package api

import (
	"context"
	"encoding/hex"
	"encoding/json"
	"errors"
	"net/http"
	"time"

	"RadNode/internal/archive"
	"RadNode/internal/logger"
	"RadNode/internal/rad"
	"RadNode/internal/radon"
	"RadNode/internal/reveal"
)

// Resolver runs requests and tallies.
type Resolver interface {
	Resolve(ctx context.Context, req rad.Request) (rad.Resolution, error)
	Tally(treq rad.TallyRequest) (radon.Report, error)
	Report(id [32]byte) (radon.Report, error)
}

// RevealCollector tallies a request across its witness committee.
type RevealCollector interface {
	Collect(ctx context.Context, req rad.Request) (reveal.Certificate, error)
}

// Announcer asks the other witnesses to resolve a request.
type Announcer interface {
	Announce(req rad.Request) error
}

// StatusProvider exposes node state for monitoring.
type StatusProvider interface {
	PeerCount() int
	WitnessCount() int
	ModuleCount() int
}

// Server is the HTTP API server.
type Server struct {
	addr      string          // addr is the HTTP listen address
	resolver  Resolver        // resolver runs requests and tallies
	collector RevealCollector // collector gathers reveals, may be nil
	announcer Announcer       // announcer broadcasts requests, may be nil
	status    StatusProvider  // status provides node state, may be nil
	started   time.Time       // started is the server start time
	server    *http.Server    // server is the underlying HTTP server
}

// New creates a new HTTP API server.
func New(addr string, resolver Resolver, collector RevealCollector, announcer Announcer, status StatusProvider) *Server {
	return &Server{
		addr:      addr,
		resolver:  resolver,
		collector: collector,
		announcer: announcer,
		status:    status,
	}
}

// Handler returns the API routes.
func (s *Server) Handler() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("POST /resolve", s.handleResolve)
	mux.HandleFunc("POST /tally", s.handleTally)
	mux.HandleFunc("GET /reports/{id}", s.handleReport)
	mux.HandleFunc("POST /reveals/{id}/collect", s.handleCollect)
	mux.HandleFunc("GET /health", s.handleHealth)
	mux.HandleFunc("GET /status", s.handleStatus)

	return mux
}

// Start starts the HTTP server in a goroutine.
func (s *Server) Start() error {
	s.started = time.Now()
	s.server = &http.Server{
		Addr:         s.addr,
		Handler:      s.Handler(),
		ReadTimeout:  10 * time.Second,
		WriteTimeout: 2 * time.Minute,
	}

	go func() {
		logger.Info("http api started", "addr", s.addr)

		if err := s.server.ListenAndServe(); err != http.ErrServerClosed {
			logger.Error("http server error", "error", err)
		}
	}()

	return nil
}

// Stop gracefully shuts down the HTTP server.
func (s *Server) Stop() error {
	if s.server == nil {
		return nil
	}

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	return s.server.Shutdown(ctx)
}

// handleResolve handles POST /resolve. With ?announce=true the request is
// also broadcast to the other witnesses.
func (s *Server) handleResolve(w http.ResponseWriter, r *http.Request) {
	req, err := readRequest(r)
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	if r.URL.Query().Get("announce") == "true" && s.announcer != nil {
		if err := s.announcer.Announce(req); err != nil {
			logger.Warn("announce failed", "error", err)
		}
	}

	res, err := s.resolver.Resolve(r.Context(), req)
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	sources := make([]reportView, len(res.Sources))
	for i, src := range res.Sources {
		sources[i] = newReportView(src)
	}

	writeJSON(w, http.StatusOK, map[string]any{
		"id":      hex.EncodeToString(res.ID[:]),
		"report":  newReportView(res.Report),
		"sources": sources,
	})
}

// handleTally handles POST /tally with a CBOR tally request.
func (s *Server) handleTally(w http.ResponseWriter, r *http.Request) {
	treq, err := readTallyRequest(r)
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	report, err := s.resolver.Tally(treq)

	status := http.StatusOK
	if err != nil {
		status = http.StatusUnprocessableEntity
	}

	writeJSON(w, status, map[string]any{"report": newReportView(report)})
}

// handleReport handles GET /reports/{id}.
func (s *Server) handleReport(w http.ResponseWriter, r *http.Request) {
	id, err := rad.ParseID(r.PathValue("id"))
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	report, err := s.resolver.Report(id)
	if errors.Is(err, archive.ErrNotFound) {
		writeError(w, http.StatusNotFound, "report not found")
		return
	}

	if err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}

	writeJSON(w, http.StatusOK, map[string]any{
		"id":     hex.EncodeToString(id[:]),
		"report": newReportView(report),
	})
}

// handleCollect handles POST /reveals/{id}/collect. The body carries the
// request, which must hash to the id in the path.
func (s *Server) handleCollect(w http.ResponseWriter, r *http.Request) {
	if s.collector == nil {
		writeError(w, http.StatusServiceUnavailable, "reveal collection not available")
		return
	}

	id, err := rad.ParseID(r.PathValue("id"))
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	req, err := readRequest(r)
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	reqID, err := req.ID()
	if err != nil || reqID != id {
		writeError(w, http.StatusBadRequest, "request does not match id")
		return
	}

	cert, err := s.collector.Collect(r.Context(), req)
	if errors.Is(err, reveal.ErrNoWitnesses) {
		writeError(w, http.StatusServiceUnavailable, err.Error())
		return
	}

	status := http.StatusOK
	if err != nil {
		if !rad.IsConsensusFailure(err) {
			writeError(w, http.StatusInternalServerError, err.Error())
			return
		}
		status = http.StatusUnprocessableEntity
	}

	view, err := newCertificateView(cert)
	if err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}

	writeJSON(w, status, view)
}

// handleHealth handles GET /health requests.
func (s *Server) handleHealth(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{
		"status": "ok",
	})
}

// handleStatus handles GET /status requests.
func (s *Server) handleStatus(w http.ResponseWriter, _ *http.Request) {
	if s.status == nil {
		writeError(w, http.StatusServiceUnavailable, "status not available")
		return
	}

	writeJSON(w, http.StatusOK, map[string]any{
		"peers":     s.status.PeerCount(),
		"witnesses": s.status.WitnessCount(),
		"modules":   s.status.ModuleCount(),
		"uptime":    time.Since(s.started).Round(time.Second).String(),
	})
}

// writeJSON writes a JSON response.
func writeJSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(data)
}

// writeError writes an error response.
func writeError(w http.ResponseWriter, status int, message string) {
	writeJSON(w, status, map[string]string{
		"error": message,
	})
}
