package rad

import (
	"context"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"sync/atomic"
	"testing"
	"time"

	"RadNode/internal/archive"
	"RadNode/internal/radon"
	"RadNode/internal/retrieval"
	"RadNode/internal/storage"
)

// newTestEngine builds an engine with an HTTP retriever and a temporary archive.
func newTestEngine(t *testing.T) *Engine {
	t.Helper()

	db, err := storage.New(filepath.Join(t.TempDir(), "db"))
	if err != nil {
		t.Fatalf("failed to create storage: %v", err)
	}
	t.Cleanup(func() { db.Close() })

	retriever := retrieval.New(map[retrieval.Kind]retrieval.Fetcher{
		retrieval.KindHTTPGet: retrieval.NewHTTPFetcher(retrieval.HTTPConfig{}),
	}, radon.Settings{})

	return NewEngine(retriever, archive.New(db), DefaultConfig())
}

// priceServer serves a JSON price.
func priceServer(t *testing.T, body string, status int) *httptest.Server {
	t.Helper()

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(status)
		w.Write([]byte(body))
	}))
	t.Cleanup(srv.Close)

	return srv
}

// priceRequest builds a mean-price request over the given URLs.
func priceRequest(urls ...string) Request {
	script := radon.Script{
		{Op: radon.OpStringParseJSONMap},
		{Op: radon.OpMapGetFloat, Args: []any{"price"}},
	}

	req := Request{
		Aggregate: radon.Script{{Op: radon.OpArrayReduce, Args: []any{uint64(radon.ReducerAverageMean)}}},
	}

	for _, u := range urls {
		req.Sources = append(req.Sources, retrieval.Source{Kind: retrieval.KindHTTPGet, URL: u, Script: script})
	}

	return req
}

// TestResolveAggregates verifies agreeing sources are averaged and failures become liars.
func TestResolveAggregates(t *testing.T) {
	e := newTestEngine(t)

	a := priceServer(t, `{"price": 100.5}`, http.StatusOK)
	b := priceServer(t, `{"price": 99.5}`, http.StatusOK)
	c := priceServer(t, `oops`, http.StatusInternalServerError)

	res, err := e.Resolve(context.Background(), priceRequest(a.URL, b.URL, c.URL))
	if err != nil {
		t.Fatalf("resolve: %v", err)
	}

	if !radon.Equal(res.Report.Value, radon.Float(100)) {
		t.Fatalf("report = %s", res.Report)
	}

	if res.Report.Context.Stage != radon.StageAggregation {
		t.Errorf("stage = %s", res.Report.Context.Stage)
	}

	errs := res.Report.Context.Errors
	if len(errs) != 3 || errs[0] || errs[1] || !errs[2] {
		t.Errorf("errors = %v", errs)
	}

	stored, err := e.Report(res.ID)
	if err != nil {
		t.Fatalf("archived report: %v", err)
	}

	if !radon.SameOutcome(stored, res.Report) {
		t.Errorf("archived %s, want %s", stored, res.Report)
	}
}

// TestResolveMajorityOfErrors verifies failing sources yield their common error.
func TestResolveMajorityOfErrors(t *testing.T) {
	e := newTestEngine(t)

	down := priceServer(t, "", http.StatusServiceUnavailable)

	res, err := e.Resolve(context.Background(), priceRequest(down.URL, down.URL))
	if err != nil {
		t.Fatalf("resolve: %v", err)
	}

	payload, ok := res.Report.Value.(*radon.Error)
	if !ok || payload.Code != radon.ErrHTTPStatus {
		t.Fatalf("report = %s", res.Report)
	}
}

// TestResolveInsufficientConsensus verifies consensus failures end up in the report.
func TestResolveInsufficientConsensus(t *testing.T) {
	e := newTestEngine(t)

	price := priceServer(t, `{"price": 1.5}`, http.StatusOK)
	text := priceServer(t, `{"price": "one"}`, http.StatusOK)
	down := priceServer(t, "", http.StatusBadGateway)
	gone := priceServer(t, "", http.StatusGone)

	req := priceRequest(price.URL, text.URL, down.URL, gone.URL)
	req.MinConsensusRatio = 0.8

	res, err := e.Resolve(context.Background(), req)
	if err != nil {
		t.Fatalf("resolve: %v", err)
	}

	if res.Report.Err == nil || res.Report.Err.Code != radon.ErrInsufficientConsensus {
		t.Fatalf("report = %s", res.Report)
	}
}

// TestResolveTimeout verifies a hanging source cannot block the request.
func TestResolveTimeout(t *testing.T) {
	e := newTestEngine(t)

	fast := priceServer(t, `{"price": 2.5}`, http.StatusOK)

	release := make(chan struct{})
	slow := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		select {
		case <-r.Context().Done():
		case <-release:
		}
	}))
	defer slow.Close()
	defer close(release)

	req := priceRequest(fast.URL, fast.URL, slow.URL)
	req.TimeoutMillis = 200

	start := time.Now()
	res, err := e.Resolve(context.Background(), req)
	if err != nil {
		t.Fatalf("resolve: %v", err)
	}

	if time.Since(start) > 5*time.Second {
		t.Fatal("resolve ignored the timeout")
	}

	if !radon.Equal(res.Report.Value, radon.Float(2.5)) {
		t.Fatalf("report = %s", res.Report)
	}

	if res.Sources[2].Err == nil || res.Sources[2].Err.Code != radon.ErrRetrieveTimeout {
		t.Errorf("slow source = %s", res.Sources[2])
	}
}

// TestResolveKeepsArchivedReport verifies a cancelled caller does not time out
// the sources and a later resolve cannot replace the archived report.
func TestResolveKeepsArchivedReport(t *testing.T) {
	e := newTestEngine(t)

	var body atomic.Value
	body.Store(`{"price": 2.5}`)

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.Write([]byte(body.Load().(string)))
	}))
	defer srv.Close()

	req := priceRequest(srv.URL, srv.URL)

	first, err := e.Resolve(context.Background(), req)
	if err != nil {
		t.Fatalf("resolve: %v", err)
	}

	if !radon.Equal(first.Report.Value, radon.Float(2.5)) {
		t.Fatalf("report = %s", first.Report)
	}

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	res, err := e.Resolve(ctx, req)
	if err != nil {
		t.Fatalf("resolve with cancelled context: %v", err)
	}

	for i, src := range res.Sources {
		if src.IsError() {
			t.Errorf("source %d = %s", i, src)
		}
	}

	if !radon.Equal(res.Report.Value, radon.Float(2.5)) {
		t.Fatalf("report = %s", res.Report)
	}

	body.Store(`{"price": 3.5}`)

	res, err = e.Resolve(context.Background(), req)
	if err != nil {
		t.Fatalf("resolve again: %v", err)
	}

	if !radon.Equal(res.Report.Value, radon.Float(2.5)) {
		t.Errorf("resolve returned %s, want the archived report", res.Report)
	}

	stored, err := e.Report(first.ID)
	if err != nil {
		t.Fatalf("archived report: %v", err)
	}

	if !radon.Equal(stored.Value, radon.Float(2.5)) {
		t.Errorf("archived %s, want Ok(2.5)", stored)
	}
}

// TestResolveInvalid verifies malformed requests are rejected before retrieval.
func TestResolveInvalid(t *testing.T) {
	e := newTestEngine(t)

	if _, err := e.Resolve(context.Background(), Request{}); err == nil {
		t.Fatal("expected error for empty request")
	}
}

// TestEngineTally verifies committed reports are tallied by value.
func TestEngineTally(t *testing.T) {
	e := newTestEngine(t)

	treq := TallyRequest{
		Reports: []radon.Report{
			radon.NewValueReport(radon.NewInteger(7), radon.StageAggregation),
			radon.NewValueReport(radon.NewInteger(7), radon.StageAggregation),
			radon.NewValueReport(radon.NewInteger(9), radon.StageAggregation),
		},
		Script:            radon.Script{{Op: radon.OpArrayCount}},
		MinConsensusRatio: 0.5,
		CommitsCount:      3,
	}

	report, err := e.Tally(treq)
	if err != nil {
		t.Fatalf("tally: %v", err)
	}

	if !radon.Equal(report.Value, radon.NewInteger(2)) {
		t.Errorf("report = %s", report)
	}

	liars := report.Context.Liars
	if len(liars) != 3 || liars[0] || liars[1] || !liars[2] {
		t.Errorf("liars = %v", liars)
	}

	treq.CommitsCount = 10
	if _, err := e.Tally(treq); !IsConsensusFailure(err) {
		t.Errorf("expected consensus failure, got %v", err)
	}
}
