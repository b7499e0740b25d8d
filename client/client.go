package client

import (
	"encoding/hex"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"RadNode/internal/rad"
	"RadNode/internal/radon"
	"RadNode/internal/reveal"
)

var (
	// ErrNotFound is returned when the node has no report for an id.
	ErrNotFound = errors.New("not found")

	// ErrNoConsensus is returned with the failed report when a tally did not reach consensus.
	ErrNoConsensus = errors.New("consensus not reached")
)

// contentTypeCBOR marks binary request bodies.
const contentTypeCBOR = "application/cbor"

// Client talks to a node's HTTP API.
type Client struct {
	baseURL string       // baseURL is the node's API root (e.g. "http://127.0.0.1:8080")
	http    *http.Client // http is the underlying client
}

// ReportInfo is a report as served by the API.
type ReportInfo struct {
	Outcome   string `json:"outcome"`   // Outcome is the rendered value or error
	Error     string `json:"error"`     // Error is the error code name, empty on success
	Stage     string `json:"stage"`     // Stage is the producing stage
	Liars     []bool `json:"liars"`     // Liars marks disagreeing inputs
	Errors    []bool `json:"errors"`    // Errors marks error inputs
	ElapsedMs int64  `json:"elapsedMs"` // ElapsedMs is the execution time
	RunID     string `json:"runId"`     // RunID identifies the run in node logs
	CBOR      string `json:"cbor"`      // CBOR is the hex encoded report
}

// Report decodes the exact report.
func (r ReportInfo) Report() (radon.Report, error) {
	data, err := hex.DecodeString(r.CBOR)
	if err != nil {
		return radon.Report{}, fmt.Errorf("decode report hex:\n%w", err)
	}

	return radon.DecodeReport(data)
}

// Resolution is the answer to a resolve call.
type Resolution struct {
	ID      string       `json:"id"`      // ID is the hex request id
	Report  ReportInfo   `json:"report"`  // Report is the aggregated report
	Sources []ReportInfo `json:"sources"` // Sources are the per-source reports
}

// CertificateInfo is a tally certificate as served by the API.
type CertificateInfo struct {
	ID          string     `json:"id"`          // ID is the hex request id
	Report      ReportInfo `json:"report"`      // Report is the final tally report
	Committee   []string   `json:"committee"`   // Committee lists hex witness keys
	Revealed    []int      `json:"revealed"`    // Revealed lists positions that revealed
	Honest      []int      `json:"honest"`      // Honest lists positions that agreed
	Signature   string     `json:"signature"`   // Signature is the hex aggregated signature
	Certificate string     `json:"certificate"` // Certificate is the hex CBOR certificate
}

// Decode decodes the exact certificate.
func (c CertificateInfo) Decode() (reveal.Certificate, error) {
	data, err := hex.DecodeString(c.Certificate)
	if err != nil {
		return reveal.Certificate{}, fmt.Errorf("decode certificate hex:\n%w", err)
	}

	return reveal.DecodeCertificate(data)
}

// Status is the node's monitoring state.
type Status struct {
	Peers     int    `json:"peers"`     // Peers is the number of connected peers
	Witnesses int    `json:"witnesses"` // Witnesses is the size of the witness set
	Modules   int    `json:"modules"`   // Modules is the number of loaded wasm programs
	Uptime    string `json:"uptime"`    // Uptime is the time since start
}

// NewClient creates a client for the node at addr ("host:port" or a URL).
func NewClient(addr string) *Client {
	base := strings.TrimSuffix(addr, "/")
	if !strings.HasPrefix(base, "http://") && !strings.HasPrefix(base, "https://") {
		base = "http://" + base
	}

	return &Client{
		baseURL: base,
		http:    &http.Client{Timeout: 2 * time.Minute},
	}
}

// Health checks that the node answers.
func (c *Client) Health() error {
	var resp map[string]string
	if err := c.httpGet("/health", &resp); err != nil {
		return err
	}

	if resp["status"] != "ok" {
		return fmt.Errorf("node unhealthy: %q", resp["status"])
	}

	return nil
}

// Status returns the node's monitoring state.
func (c *Client) Status() (*Status, error) {
	var s Status
	if err := c.httpGet("/status", &s); err != nil {
		return nil, err
	}

	return &s, nil
}

// Resolve asks the node to resolve a request. With announce, the node also
// broadcasts it to the other witnesses.
func (c *Client) Resolve(req rad.Request, announce bool) (*Resolution, error) {
	body, err := req.Encode()
	if err != nil {
		return nil, err
	}

	path := "/resolve"
	if announce {
		path += "?announce=true"
	}

	var res Resolution
	if err := c.httpPost(path, contentTypeCBOR, body, &res); err != nil {
		return nil, err
	}

	return &res, nil
}

// Tally runs a tally on the node. On ErrNoConsensus the failed report is
// returned too.
func (c *Client) Tally(treq rad.TallyRequest) (*ReportInfo, error) {
	body, err := treq.Encode()
	if err != nil {
		return nil, err
	}

	var resp struct {
		Report ReportInfo `json:"report"`
	}

	err = c.httpPost("/tally", contentTypeCBOR, body, &resp)
	if err != nil && !errors.Is(err, ErrNoConsensus) {
		return nil, err
	}

	return &resp.Report, err
}

// Report returns the archived report for a request id.
func (c *Client) Report(id [32]byte) (*ReportInfo, error) {
	var resp struct {
		Report ReportInfo `json:"report"`
	}

	if err := c.httpGet("/reports/"+hex.EncodeToString(id[:]), &resp); err != nil {
		return nil, err
	}

	return &resp.Report, nil
}

// Collect asks the node to tally a request across its witness committee.
// On ErrNoConsensus the certificate of the failed tally is returned too.
func (c *Client) Collect(req rad.Request) (*CertificateInfo, error) {
	id, err := req.ID()
	if err != nil {
		return nil, err
	}

	body, err := req.Encode()
	if err != nil {
		return nil, err
	}

	var cert CertificateInfo

	err = c.httpPost("/reveals/"+hex.EncodeToString(id[:])+"/collect", contentTypeCBOR, body, &cert)
	if err != nil && !errors.Is(err, ErrNoConsensus) {
		return nil, err
	}

	return &cert, err
}
