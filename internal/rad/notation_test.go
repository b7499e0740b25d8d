package rad

import (
	"testing"
	"time"

	"RadNode/internal/radon"
	"RadNode/internal/retrieval"
)

const yamlRequest = `
timeout: 1500ms
min_consensus_ratio: 0.6
sources:
  - kind: http-get
    url: https://api.example.com/price
    script: ["StringParseJSONMap", ["MapGetFloat", "price"]]
  - kind: wasm
    module: "0000000000000000000000000000000000000000000000000000000000000001"
    input: "BTC-USD"
    script: []
aggregate:
  - ["ArrayFilter", "DeviationStandard", 1.5]
  - ["ArrayReduce", "AverageMean"]
tally:
  - ["ArrayReduce", "AverageMedian"]
`

// TestParseRequestNotationYAML verifies the YAML notation compiles to a request.
func TestParseRequestNotationYAML(t *testing.T) {
	req, err := ParseRequestNotation([]byte(yamlRequest))
	if err != nil {
		t.Fatalf("parse: %v", err)
	}

	if req.Timeout() != 1500*time.Millisecond || req.MinConsensusRatio != 0.6 {
		t.Errorf("timeout = %v ratio = %v", req.Timeout(), req.MinConsensusRatio)
	}

	if len(req.Sources) != 2 {
		t.Fatalf("sources = %d", len(req.Sources))
	}

	http := req.Sources[0]
	if http.Kind != retrieval.KindHTTPGet || len(http.Script) != 2 || http.Script[1].Op != radon.OpMapGetFloat {
		t.Errorf("http source = %+v", http)
	}

	wasm := req.Sources[1]
	if wasm.Kind != retrieval.KindWasm || len(wasm.ModuleID) != 32 || wasm.ModuleID[31] != 1 || string(wasm.Input) != "BTC-USD" {
		t.Errorf("wasm source = %+v", wasm)
	}

	if len(req.Aggregate) != 2 || req.Aggregate[0].Args[0] != uint64(radon.FilterDeviationStandard) {
		t.Errorf("aggregate = %s", req.Aggregate)
	}

	if req.Tally[0].Args[0] != uint64(radon.ReducerAverageMedian) {
		t.Errorf("tally = %s", req.Tally)
	}

	if err := req.Validate(); err != nil {
		t.Errorf("validate: %v", err)
	}
}

// TestParseRequestNotationJSON verifies JSON files are accepted too.
func TestParseRequestNotationJSON(t *testing.T) {
	data := `{"sources": [{"kind": "http-get", "url": "https://x.example", "script": ["StringParseJSONArray", ["ArrayGetInteger", 0]]}],
	          "aggregate": [["ArrayReduce", "Mode"]]}`

	req, err := ParseRequestNotation([]byte(data))
	if err != nil {
		t.Fatalf("parse: %v", err)
	}

	if len(req.Sources) != 1 || req.Sources[0].Script[1].Args[0] != int64(0) {
		t.Errorf("request = %+v", req)
	}
}

// TestParseRequestNotationErrors verifies bad notation is reported.
func TestParseRequestNotationErrors(t *testing.T) {
	bad := []string{
		`timeout: soon`,
		`sources: [{kind: http-get, script: ["NoSuchOperator"]}]`,
		`aggregate: [["ArrayReduce", "Nope"]]`,
		`sources: [{kind: wasm, module: "zz"}]`,
	}

	for _, b := range bad {
		if _, err := ParseRequestNotation([]byte(b)); err == nil {
			t.Errorf("%q: expected error", b)
		}
	}
}
