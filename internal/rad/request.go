package rad

import (
	"encoding/hex"
	"fmt"
	"time"

	"github.com/zeebo/blake3"

	"RadNode/internal/radon"
	"RadNode/internal/retrieval"
	"RadNode/internal/tally"
)

// maxSources bounds the number of sources a request may name.
const maxSources = 64

// Request asks for data from several sources, folded into one value.
type Request struct {
	Sources           []retrieval.Source `cbor:"1,keyasint"`           // Sources are fetched concurrently
	Aggregate         radon.Script       `cbor:"2,keyasint"`           // Aggregate folds the agreeing source values
	Tally             radon.Script       `cbor:"3,keyasint"`           // Tally folds the reports revealed by witnesses
	TimeoutMillis     uint64             `cbor:"4,keyasint,omitempty"` // TimeoutMillis bounds retrieval, 0 uses the node default
	MinConsensusRatio float64            `cbor:"5,keyasint,omitempty"` // MinConsensusRatio overrides the node default when set
}

// Timeout returns the retrieval timeout of the request.
func (r Request) Timeout() time.Duration {
	return time.Duration(r.TimeoutMillis) * time.Millisecond
}

// Validate checks the request shape before it is resolved.
func (r Request) Validate() error {
	if len(r.Sources) == 0 {
		return fmt.Errorf("request has no sources")
	}

	if len(r.Sources) > maxSources {
		return fmt.Errorf("request has %d sources, max %d", len(r.Sources), maxSources)
	}

	for i, src := range r.Sources {
		if err := src.Validate(); err != nil {
			return fmt.Errorf("source %d:\n%w", i, err)
		}
	}

	if r.MinConsensusRatio < 0 || r.MinConsensusRatio > 1 {
		return fmt.Errorf("min consensus ratio %v outside [0, 1]", r.MinConsensusRatio)
	}

	return nil
}

// Encode serializes the request to canonical CBOR.
func (r Request) Encode() ([]byte, error) {
	data, err := radon.Marshal(r)
	if err != nil {
		return nil, fmt.Errorf("encode request:\n%w", err)
	}

	return data, nil
}

// ID returns the blake3 hash of the canonical encoding.
func (r Request) ID() ([32]byte, error) {
	data, err := r.Encode()
	if err != nil {
		return [32]byte{}, err
	}

	return blake3.Sum256(data), nil
}

// DecodeRequest parses a CBOR request.
func DecodeRequest(data []byte) (Request, error) {
	var r Request
	if err := radon.Unmarshal(data, &r); err != nil {
		return Request{}, fmt.Errorf("decode request:\n%w", err)
	}

	return r, nil
}

// TallyRequest asks to fold reports committed by several participants.
type TallyRequest struct {
	Reports           []radon.Report   `cbor:"1,keyasint"`           // Reports are the committed reports, in commit order
	Script            radon.Script     `cbor:"2,keyasint"`           // Script folds the majority values
	MinConsensusRatio float64          `cbor:"3,keyasint"`           // MinConsensusRatio is the required share in (0, 1]
	CommitsCount      uint32           `cbor:"4,keyasint,omitempty"` // CommitsCount is the expected number of participants
	Clustering        tally.Clustering `cbor:"5,keyasint,omitempty"` // Clustering selects the grouping rule
}

// Encode serializes the tally request to canonical CBOR.
func (t TallyRequest) Encode() ([]byte, error) {
	data, err := radon.Marshal(t)
	if err != nil {
		return nil, fmt.Errorf("encode tally request:\n%w", err)
	}

	return data, nil
}

// DecodeTallyRequest parses a CBOR tally request.
func DecodeTallyRequest(data []byte) (TallyRequest, error) {
	var t TallyRequest
	if err := radon.Unmarshal(data, &t); err != nil {
		return TallyRequest{}, fmt.Errorf("decode tally request:\n%w", err)
	}

	return t, nil
}

// ShortID renders the first bytes of an id for logs.
func ShortID(id [32]byte) string {
	return hex.EncodeToString(id[:8])
}

// ParseID decodes a hex request id.
func ParseID(s string) ([32]byte, error) {
	var id [32]byte

	b, err := hex.DecodeString(s)
	if err != nil {
		return id, fmt.Errorf("decode id:\n%w", err)
	}

	if len(b) != len(id) {
		return id, fmt.Errorf("id must be %d bytes, got %d", len(id), len(b))
	}

	copy(id[:], b)
	return id, nil
}
