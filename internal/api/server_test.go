package api

import (
	"bytes"
	"context"
	"encoding/hex"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"RadNode/internal/archive"
	"RadNode/internal/rad"
	"RadNode/internal/radon"
	"RadNode/internal/reveal"
)

// mockResolver answers with canned reports.
type mockResolver struct {
	resolved []rad.Request           // resolved records Resolve calls
	reports  map[[32]byte]radon.Report // reports is the archive
	tallyErr error                   // tallyErr is returned by Tally
}

// Resolve records the request and returns a fixed report.
func (m *mockResolver) Resolve(_ context.Context, req rad.Request) (rad.Resolution, error) {
	m.resolved = append(m.resolved, req)

	id, err := req.ID()
	if err != nil {
		return rad.Resolution{}, err
	}

	return rad.Resolution{
		ID:      id,
		Report:  radon.NewValueReport(radon.Float(100.5), radon.StageAggregation),
		Sources: []radon.Report{radon.NewValueReport(radon.Float(100.5), radon.StageRetrieval)},
	}, nil
}

// Tally returns the configured error with a fixed report.
func (m *mockResolver) Tally(rad.TallyRequest) (radon.Report, error) {
	if m.tallyErr != nil {
		return radon.NewErrorReport(radon.AsError(m.tallyErr), radon.StageTally), m.tallyErr
	}

	return radon.NewValueReport(radon.NewInteger(7), radon.StageTally), nil
}

// Report looks up the archive.
func (m *mockResolver) Report(id [32]byte) (radon.Report, error) {
	r, ok := m.reports[id]
	if !ok {
		return radon.Report{}, archive.ErrNotFound
	}

	return r, nil
}

// mockAnnouncer counts announces.
type mockAnnouncer struct {
	count int // count is the number of announces
}

// Announce records the call.
func (m *mockAnnouncer) Announce(rad.Request) error {
	m.count++
	return nil
}

// mockCollector returns a fixed certificate.
type mockCollector struct{}

// Collect returns a certificate with every member honest.
func (mockCollector) Collect(_ context.Context, req rad.Request) (reveal.Certificate, error) {
	id, _ := req.ID()

	return reveal.Certificate{
		RequestID: id,
		Report:    radon.NewValueReport(radon.Float(7.5), radon.StageTally),
		Committee: [][]byte{{1}, {2}},
		Revealed:  []byte{0x03},
		Honest:    []byte{0x03},
	}, nil
}

// notationBody is a request in JSON notation.
const notationBody = `{
  "sources": [{"kind": "http-get", "url": "https://api.example.com/price",
               "script": ["StringParseJSONMap", ["MapGetFloat", "price"]]}],
  "aggregate": [["ArrayReduce", "AverageMean"]],
  "tally": [["ArrayReduce", "AverageMean"]]
}`

// serve runs a request through the server's routes.
func serve(s *Server, method, path, contentType string, body []byte) *httptest.ResponseRecorder {
	req := httptest.NewRequest(method, path, bytes.NewReader(body))
	if contentType != "" {
		req.Header.Set("Content-Type", contentType)
	}

	w := httptest.NewRecorder()
	s.Handler().ServeHTTP(w, req)

	return w
}

// decodeJSON parses a JSON response body.
func decodeJSON(t *testing.T, w *httptest.ResponseRecorder) map[string]any {
	t.Helper()

	var out map[string]any
	if err := json.Unmarshal(w.Body.Bytes(), &out); err != nil {
		t.Fatalf("parse response %q: %v", w.Body.String(), err)
	}

	return out
}

// TestHealthEndpoint verifies the liveness probe.
func TestHealthEndpoint(t *testing.T) {
	w := serve(New(":0", &mockResolver{}, nil, nil, nil), "GET", "/health", "", nil)

	if w.Code != http.StatusOK {
		t.Fatalf("status = %d", w.Code)
	}

	if decodeJSON(t, w)["status"] != "ok" {
		t.Errorf("body = %s", w.Body.String())
	}
}

// TestResolveNotation verifies a notation request is resolved and announced.
func TestResolveNotation(t *testing.T) {
	resolver := &mockResolver{}
	announcer := &mockAnnouncer{}
	s := New(":0", resolver, nil, announcer, nil)

	w := serve(s, "POST", "/resolve?announce=true", "application/json", []byte(notationBody))
	if w.Code != http.StatusOK {
		t.Fatalf("status = %d: %s", w.Code, w.Body.String())
	}

	if len(resolver.resolved) != 1 || announcer.count != 1 {
		t.Fatalf("resolved %d, announced %d", len(resolver.resolved), announcer.count)
	}

	body := decodeJSON(t, w)
	report := body["report"].(map[string]any)

	if report["outcome"] != "Ok(100.5)" {
		t.Errorf("outcome = %v", report["outcome"])
	}

	if len(body["id"].(string)) != 64 {
		t.Errorf("id = %v", body["id"])
	}
}

// TestResolveCBOR verifies a binary request is accepted.
func TestResolveCBOR(t *testing.T) {
	req, err := rad.ParseRequestNotation([]byte(notationBody))
	if err != nil {
		t.Fatalf("parse: %v", err)
	}

	data, err := req.Encode()
	if err != nil {
		t.Fatalf("encode: %v", err)
	}

	resolver := &mockResolver{}
	w := serve(New(":0", resolver, nil, nil, nil), "POST", "/resolve", contentTypeCBOR, data)

	if w.Code != http.StatusOK {
		t.Fatalf("status = %d: %s", w.Code, w.Body.String())
	}

	if len(resolver.resolved) != 1 || len(resolver.resolved[0].Sources) != 1 {
		t.Fatalf("resolved = %+v", resolver.resolved)
	}
}

// TestResolveInvalid verifies malformed bodies are rejected.
func TestResolveInvalid(t *testing.T) {
	s := New(":0", &mockResolver{}, nil, nil, nil)

	cases := map[string][]byte{
		"empty":      nil,
		"no sources": []byte(`{"aggregate": [], "tally": []}`),
		"bad cbor":   []byte{0xff, 0x00},
	}

	for name, body := range cases {
		contentType := "application/json"
		if name == "bad cbor" {
			contentType = contentTypeCBOR
		}

		if w := serve(s, "POST", "/resolve", contentType, body); w.Code != http.StatusBadRequest {
			t.Errorf("%s: status = %d", name, w.Code)
		}
	}
}

// TestTallyEndpoint verifies consensus failures map to 422.
func TestTallyEndpoint(t *testing.T) {
	treq := rad.TallyRequest{
		Reports:           []radon.Report{radon.NewValueReport(radon.NewInteger(7), radon.StageAggregation)},
		MinConsensusRatio: 0.5,
		CommitsCount:      1,
	}

	data, err := treq.Encode()
	if err != nil {
		t.Fatalf("encode: %v", err)
	}

	resolver := &mockResolver{}
	if w := serve(New(":0", resolver, nil, nil, nil), "POST", "/tally", contentTypeCBOR, data); w.Code != http.StatusOK {
		t.Fatalf("status = %d: %s", w.Code, w.Body.String())
	}

	resolver.tallyErr = radon.NewInsufficientConsensusError(0.2, 0.5)

	w := serve(New(":0", resolver, nil, nil, nil), "POST", "/tally", contentTypeCBOR, data)
	if w.Code != http.StatusUnprocessableEntity {
		t.Fatalf("status = %d", w.Code)
	}

	report := decodeJSON(t, w)["report"].(map[string]any)
	if report["error"] != radon.ErrInsufficientConsensus.String() {
		t.Errorf("error = %v", report["error"])
	}
}

// TestReportEndpoint verifies archived reports are served by id.
func TestReportEndpoint(t *testing.T) {
	id := [32]byte{0xab}
	resolver := &mockResolver{reports: map[[32]byte]radon.Report{
		id: radon.NewValueReport(radon.String("ok"), radon.StageAggregation),
	}}
	s := New(":0", resolver, nil, nil, nil)

	w := serve(s, "GET", "/reports/"+hex.EncodeToString(id[:]), "", nil)
	if w.Code != http.StatusOK {
		t.Fatalf("status = %d: %s", w.Code, w.Body.String())
	}

	other := [32]byte{0xcd}
	if w := serve(s, "GET", "/reports/"+hex.EncodeToString(other[:]), "", nil); w.Code != http.StatusNotFound {
		t.Errorf("missing report status = %d", w.Code)
	}

	if w := serve(s, "GET", "/reports/xyz", "", nil); w.Code != http.StatusBadRequest {
		t.Errorf("bad id status = %d", w.Code)
	}
}

// TestCollectEndpoint verifies the path id must match the request.
func TestCollectEndpoint(t *testing.T) {
	req, err := rad.ParseRequestNotation([]byte(notationBody))
	if err != nil {
		t.Fatalf("parse: %v", err)
	}

	id, err := req.ID()
	if err != nil {
		t.Fatalf("id: %v", err)
	}

	s := New(":0", &mockResolver{}, mockCollector{}, nil, nil)

	w := serve(s, "POST", "/reveals/"+hex.EncodeToString(id[:])+"/collect", "application/json", []byte(notationBody))
	if w.Code != http.StatusOK {
		t.Fatalf("status = %d: %s", w.Code, w.Body.String())
	}

	body := decodeJSON(t, w)
	if honest := body["honest"].([]any); len(honest) != 2 {
		t.Errorf("honest = %v", honest)
	}

	wrong := strings.Repeat("00", 32)
	if w := serve(s, "POST", "/reveals/"+wrong+"/collect", "application/json", []byte(notationBody)); w.Code != http.StatusBadRequest {
		t.Errorf("mismatched id status = %d", w.Code)
	}

	noCollector := New(":0", &mockResolver{}, nil, nil, nil)
	if w := serve(noCollector, "POST", "/reveals/"+wrong+"/collect", "", nil); w.Code != http.StatusServiceUnavailable {
		t.Errorf("no collector status = %d", w.Code)
	}
}

// TestStatusUnavailable verifies status needs a provider.
func TestStatusUnavailable(t *testing.T) {
	if w := serve(New(":0", &mockResolver{}, nil, nil, nil), "GET", "/status", "", nil); w.Code != http.StatusServiceUnavailable {
		t.Errorf("status = %d", w.Code)
	}
}
