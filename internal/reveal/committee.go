package reveal

import (
	"bytes"
	"crypto/ed25519"
	"encoding/hex"
	"fmt"
	"sort"
	"strings"

	"github.com/zeebo/blake3"
)

// Witness is a node that resolves requests and reveals its reports.
type Witness struct {
	PublicKey ed25519.PublicKey // PublicKey is the QUIC identity
	BLSKey    []byte            // BLSKey is the compressed BLS public key
	Addr      string            // Addr is the QUIC dial address
}

// String renders the witness in the form accepted by ParseWitness.
func (w Witness) String() string {
	return hex.EncodeToString(w.PublicKey) + ":" + hex.EncodeToString(w.BLSKey) + "@" + w.Addr
}

// ParseWitness parses "<ed25519 hex>:<bls hex>@<host:port>".
func ParseWitness(s string) (Witness, error) {
	keys, addr, ok := strings.Cut(s, "@")
	if !ok || addr == "" {
		return Witness{}, fmt.Errorf("witness %q: missing address", s)
	}

	edHex, blsHex, ok := strings.Cut(keys, ":")
	if !ok {
		return Witness{}, fmt.Errorf("witness %q: missing bls key", s)
	}

	pub, err := hex.DecodeString(edHex)
	if err != nil || len(pub) != ed25519.PublicKeySize {
		return Witness{}, fmt.Errorf("witness %q: invalid public key", s)
	}

	bls, err := hex.DecodeString(blsHex)
	if err != nil || len(bls) != BLSPublicKeySize {
		return Witness{}, fmt.Errorf("witness %q: invalid bls key", s)
	}

	return Witness{PublicKey: pub, BLSKey: bls, Addr: addr}, nil
}

// scoredWitness pairs a witness with its rendezvous score.
type scoredWitness struct {
	witness Witness  // witness is the candidate
	score   [32]byte // score is blake3(requestID || pubkey)
}

// Committee selects the size witnesses responsible for a request, highest
// rendezvous score first. Every node computes the same committee from the
// same witness set, whatever its order.
func Committee(requestID [32]byte, witnesses []Witness, size int) []Witness {
	if size <= 0 || len(witnesses) == 0 {
		return nil
	}

	if size > len(witnesses) {
		size = len(witnesses)
	}

	scored := make([]scoredWitness, len(witnesses))
	for i, w := range witnesses {
		scored[i] = scoredWitness{witness: w, score: score(requestID, w.PublicKey)}
	}

	sort.Slice(scored, func(i, j int) bool {
		if c := bytes.Compare(scored[i].score[:], scored[j].score[:]); c != 0 {
			return c > 0
		}
		return bytes.Compare(scored[i].witness.PublicKey, scored[j].witness.PublicKey) < 0
	})

	committee := make([]Witness, size)
	for i := range committee {
		committee[i] = scored[i].witness
	}

	return committee
}

// score computes blake3(requestID || pubkey).
func score(requestID [32]byte, pubkey ed25519.PublicKey) [32]byte {
	h := blake3.New()
	h.Write(requestID[:])
	h.Write(pubkey)

	var out [32]byte
	h.Sum(out[:0])

	return out
}
