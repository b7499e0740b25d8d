package rad

import (
	"encoding/hex"
	"fmt"
	"os"
	"time"

	"gopkg.in/yaml.v3"

	"RadNode/internal/radon"
	"RadNode/internal/retrieval"
)

// requestNotation is the human-written form of a request, in YAML or JSON.
type requestNotation struct {
	Timeout           string           `yaml:"timeout"`
	MinConsensusRatio float64          `yaml:"min_consensus_ratio"`
	Sources           []sourceNotation `yaml:"sources"`
	Aggregate         []any            `yaml:"aggregate"`
	Tally             []any            `yaml:"tally"`
}

// sourceNotation is the human-written form of a source.
type sourceNotation struct {
	Kind     string `yaml:"kind"`
	URL      string `yaml:"url"`
	Module   string `yaml:"module"`
	Input    string `yaml:"input"`
	InputHex string `yaml:"input_hex"`
	Script   []any  `yaml:"script"`
}

// ParseRequestNotation compiles a YAML or JSON request file into a Request.
// Scripts use the symbolic notation, e.g. ["StringParseJSONMap", ["MapGetFloat", "price"]].
func ParseRequestNotation(data []byte) (Request, error) {
	var n requestNotation
	if err := yaml.Unmarshal(data, &n); err != nil {
		return Request{}, fmt.Errorf("parse request notation:\n%w", err)
	}

	req := Request{MinConsensusRatio: n.MinConsensusRatio}

	if n.Timeout != "" {
		d, err := time.ParseDuration(n.Timeout)
		if err != nil {
			return Request{}, fmt.Errorf("parse timeout:\n%w", err)
		}

		req.TimeoutMillis = uint64(d / time.Millisecond)
	}

	for i, sn := range n.Sources {
		src, err := sn.compile()
		if err != nil {
			return Request{}, fmt.Errorf("source %d:\n%w", i, err)
		}

		req.Sources = append(req.Sources, src)
	}

	var err error

	if req.Aggregate, err = radon.ParseNotation(n.Aggregate); err != nil {
		return Request{}, fmt.Errorf("aggregate script:\n%w", err)
	}

	if req.Tally, err = radon.ParseNotation(n.Tally); err != nil {
		return Request{}, fmt.Errorf("tally script:\n%w", err)
	}

	return req, nil
}

// compile converts a source notation into a Source.
func (sn sourceNotation) compile() (retrieval.Source, error) {
	script, err := radon.ParseNotation(sn.Script)
	if err != nil {
		return retrieval.Source{}, fmt.Errorf("script:\n%w", err)
	}

	src := retrieval.Source{
		Kind:   retrieval.Kind(sn.Kind),
		URL:    sn.URL,
		Script: script,
	}

	if sn.Module != "" {
		if src.ModuleID, err = hex.DecodeString(sn.Module); err != nil {
			return retrieval.Source{}, fmt.Errorf("module id:\n%w", err)
		}
	}

	switch {
	case sn.InputHex != "":
		if src.Input, err = hex.DecodeString(sn.InputHex); err != nil {
			return retrieval.Source{}, fmt.Errorf("input:\n%w", err)
		}
	case sn.Input != "":
		src.Input = []byte(sn.Input)
	}

	return src, nil
}

// LoadRequestFile reads and compiles a request notation file.
func LoadRequestFile(path string) (Request, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return Request{}, fmt.Errorf("read request file:\n%w", err)
	}

	return ParseRequestNotation(data)
}
