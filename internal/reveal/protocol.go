package reveal

import (
	"fmt"

	"github.com/zeebo/blake3"

	"RadNode/internal/rad"
	"RadNode/internal/radon"
)

// Message types carried on the witness transport.
const (
	msgTypeReveal   = 0x01 // Request for a witness's archived report
	msgTypeAnnounce = 0x02 // Broadcast of a request to resolve
)

// revealRequestSize is [1B type] [32B request id].
const revealRequestSize = 1 + 32

// RevealResponse is a witness's answer to a reveal request.
type RevealResponse struct {
	Report    []byte `cbor:"1,keyasint"` // Report is the CBOR encoded archived report
	Signature []byte `cbor:"2,keyasint"` // Signature is the BLS signature over the outcome digest
}

// EncodeRevealRequest encodes a reveal request.
// Format: [1B type] [32B request id]
func EncodeRevealRequest(id [32]byte) []byte {
	buf := make([]byte, revealRequestSize)
	buf[0] = msgTypeReveal
	copy(buf[1:], id[:])

	return buf
}

// DecodeRevealRequest decodes a reveal request.
func DecodeRevealRequest(data []byte) ([32]byte, error) {
	var id [32]byte

	if len(data) != revealRequestSize {
		return id, fmt.Errorf("reveal request size %d, want %d", len(data), revealRequestSize)
	}

	if data[0] != msgTypeReveal {
		return id, fmt.Errorf("invalid message type: 0x%02x", data[0])
	}

	copy(id[:], data[1:])

	return id, nil
}

// EncodeRevealResponse encodes a reveal response as CBOR.
func EncodeRevealResponse(resp RevealResponse) ([]byte, error) {
	data, err := radon.Marshal(resp)
	if err != nil {
		return nil, fmt.Errorf("encode reveal response:\n%w", err)
	}

	return data, nil
}

// DecodeRevealResponse decodes a reveal response.
func DecodeRevealResponse(data []byte) (RevealResponse, error) {
	var resp RevealResponse
	if err := radon.Unmarshal(data, &resp); err != nil {
		return RevealResponse{}, fmt.Errorf("decode reveal response:\n%w", err)
	}

	return resp, nil
}

// EncodeAnnounce encodes a request broadcast.
// Format: [1B type] [CBOR request]
func EncodeAnnounce(req rad.Request) ([]byte, error) {
	data, err := req.Encode()
	if err != nil {
		return nil, err
	}

	return append([]byte{msgTypeAnnounce}, data...), nil
}

// DecodeAnnounce decodes a request broadcast.
func DecodeAnnounce(data []byte) (rad.Request, error) {
	if len(data) < 2 || data[0] != msgTypeAnnounce {
		return rad.Request{}, fmt.Errorf("not an announce message")
	}

	return rad.DecodeRequest(data[1:])
}

// OutcomeDigest computes blake3(requestID || CBOR(result)). The report
// context does not take part, so witnesses agreeing on a value sign the
// same digest.
func OutcomeDigest(requestID [32]byte, report radon.Report) ([32]byte, error) {
	var digest [32]byte

	result := report.Result()
	if result == nil {
		return digest, fmt.Errorf("report has no outcome")
	}

	encoded, err := radon.Encode(result)
	if err != nil {
		return digest, fmt.Errorf("encode outcome:\n%w", err)
	}

	h := blake3.New()
	h.Write(requestID[:])
	h.Write(encoded)
	h.Sum(digest[:0])

	return digest, nil
}
