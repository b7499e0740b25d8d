package api

import (
	"encoding/hex"
	"fmt"
	"io"
	"net/http"
	"strings"

	"RadNode/internal/rad"
	"RadNode/internal/radon"
	"RadNode/internal/reveal"
)

const (
	// maxBodySize is the maximum request body size in bytes.
	maxBodySize = 1 << 20

	// contentTypeCBOR marks binary request bodies.
	contentTypeCBOR = "application/cbor"
)

// readBody reads a bounded, non-empty request body.
func readBody(r *http.Request) ([]byte, error) {
	body, err := io.ReadAll(io.LimitReader(r.Body, maxBodySize+1))
	if err != nil {
		return nil, fmt.Errorf("failed to read body")
	}

	if len(body) == 0 {
		return nil, fmt.Errorf("empty body")
	}

	if len(body) > maxBodySize {
		return nil, fmt.Errorf("body exceeds %d bytes", maxBodySize)
	}

	return body, nil
}

// isCBOR reports whether the body is declared as CBOR.
func isCBOR(r *http.Request) bool {
	return strings.HasPrefix(r.Header.Get("Content-Type"), contentTypeCBOR)
}

// readRequest decodes a request from CBOR or from the YAML/JSON notation
// and validates it.
func readRequest(r *http.Request) (rad.Request, error) {
	body, err := readBody(r)
	if err != nil {
		return rad.Request{}, err
	}

	var req rad.Request

	if isCBOR(r) {
		req, err = rad.DecodeRequest(body)
	} else {
		req, err = rad.ParseRequestNotation(body)
	}

	if err != nil {
		return rad.Request{}, err
	}

	if err := req.Validate(); err != nil {
		return rad.Request{}, err
	}

	return req, nil
}

// readTallyRequest decodes a CBOR tally request.
func readTallyRequest(r *http.Request) (rad.TallyRequest, error) {
	body, err := readBody(r)
	if err != nil {
		return rad.TallyRequest{}, err
	}

	return rad.DecodeTallyRequest(body)
}

// reportView is the JSON rendering of a report.
type reportView struct {
	Outcome   string `json:"outcome"`
	Error     string `json:"error,omitempty"`
	Stage     string `json:"stage"`
	Liars     []bool `json:"liars,omitempty"`
	Errors    []bool `json:"errors,omitempty"`
	ElapsedMs int64  `json:"elapsedMs"`
	GasUsed   uint64 `json:"gasUsed,omitempty"`
	RunID     string `json:"runId"`
	CBOR      string `json:"cbor"`
}

// newReportView renders a report. The CBOR field carries the exact report.
func newReportView(r radon.Report) reportView {
	view := reportView{
		Outcome:   r.String(),
		Stage:     string(r.Context.Stage),
		Liars:     r.Context.Liars,
		Errors:    r.Context.Errors,
		ElapsedMs: r.Context.Elapsed().Milliseconds(),
		GasUsed:   r.Context.GasUsed,
		RunID:     r.Context.RunID.String(),
	}

	if e := r.ErrorPayload(); e != nil {
		view.Error = e.Code.String()
	}

	if data, err := radon.EncodeReport(r); err == nil {
		view.CBOR = hex.EncodeToString(data)
	}

	return view
}

// certificateView is the JSON rendering of a tally certificate.
type certificateView struct {
	ID          string     `json:"id"`
	Report      reportView `json:"report"`
	Committee   []string   `json:"committee"`
	Revealed    []int      `json:"revealed"`
	Honest      []int      `json:"honest"`
	Digest      string     `json:"digest,omitempty"`
	Signature   string     `json:"signature,omitempty"`
	Certificate string     `json:"certificate"`
}

// newCertificateView renders a certificate.
func newCertificateView(c reveal.Certificate) (certificateView, error) {
	data, err := c.Encode()
	if err != nil {
		return certificateView{}, err
	}

	view := certificateView{
		ID:          hex.EncodeToString(c.RequestID[:]),
		Report:      newReportView(c.Report),
		Committee:   make([]string, len(c.Committee)),
		Revealed:    reveal.ParseBitmap(c.Revealed),
		Honest:      reveal.ParseBitmap(c.Honest),
		Digest:      hex.EncodeToString(c.Digest),
		Signature:   hex.EncodeToString(c.Signature),
		Certificate: hex.EncodeToString(data),
	}

	for i, pk := range c.Committee {
		view.Committee[i] = hex.EncodeToString(pk)
	}

	return view, nil
}
