package reveal

import (
	"bytes"
	"fmt"

	"RadNode/internal/radon"
)

// Certificate is the outcome of a network-wide tally.
type Certificate struct {
	RequestID [32]byte     `cbor:"1,keyasint"` // RequestID is the tallied request
	Report    radon.Report `cbor:"2,keyasint"` // Report is the final tally report
	Committee [][]byte     `cbor:"3,keyasint"` // Committee lists ed25519 keys in committee order
	Revealed  []byte       `cbor:"4,keyasint"` // Revealed is a bitmap of members whose reveal verified
	Honest    []byte       `cbor:"5,keyasint"` // Honest is a bitmap of members that agreed with the consensus
	Digest    []byte       `cbor:"6,keyasint"` // Digest is the outcome digest the honest members signed
	Signature []byte       `cbor:"7,keyasint"` // Signature aggregates the honest members' signatures
}

// buildCertificate derives the bitmaps and the aggregated signature from the
// reveals and the tally report. With a majority of values, honest members
// revealed, were neither liars nor errors, and signed the same digest as the
// first honest member. With a majority of errors, honest members revealed the
// error mode itself.
func buildCertificate(id [32]byte, committee []Witness, reveals []revealed, report radon.Report) (Certificate, error) {
	cert := Certificate{
		RequestID: id,
		Report:    report,
		Committee: make([][]byte, len(committee)),
	}

	for i, w := range committee {
		cert.Committee[i] = w.PublicKey
	}

	revealedFlags := make([]bool, len(committee))
	honestFlags := make([]bool, len(committee))

	liars := report.Context.Liars
	errs := report.Context.Errors
	bitmaps := len(liars) == len(reveals) && len(errs) == len(reveals)

	var digest []byte
	var signatures [][]byte

	modeDigest, errorMajority, err := errorModeDigest(id, report)
	if err != nil {
		return Certificate{}, err
	}

	if errorMajority {
		digest = modeDigest[:]
	}

	for k, r := range reveals {
		revealedFlags[r.position] = true

		if !bitmaps {
			continue
		}

		switch {
		case errorMajority:
			if !errs[k] || !bytes.Equal(digest, r.digest[:]) {
				continue
			}
		case liars[k] || errs[k]:
			continue
		case digest == nil:
			digest = r.digest[:]
		case !bytes.Equal(digest, r.digest[:]):
			continue
		}

		honestFlags[r.position] = true
		signatures = append(signatures, r.signature)
	}

	cert.Revealed = BuildBitmap(revealedFlags)
	cert.Honest = BuildBitmap(honestFlags)

	if len(signatures) == 0 {
		return cert, nil
	}

	sig, err := AggregateSignatures(signatures)
	if err != nil {
		return Certificate{}, fmt.Errorf("aggregate signatures:\n%w", err)
	}

	cert.Digest = digest
	cert.Signature = sig

	return cert, nil
}

// errorModeDigest returns the outcome digest of the error mode when the tally
// ended with a majority of errors. Only that outcome carries an error as value.
func errorModeDigest(id [32]byte, report radon.Report) ([32]byte, bool, error) {
	if report.Err != nil {
		return [32]byte{}, false, nil
	}

	if _, ok := report.Value.(*radon.Error); !ok {
		return [32]byte{}, false, nil
	}

	digest, err := OutcomeDigest(id, report)
	if err != nil {
		return [32]byte{}, false, fmt.Errorf("error mode digest:\n%w", err)
	}

	return digest, true, nil
}

// Verify checks the aggregated signature against the committee's BLS keys.
// committee must be the request's committee in order.
func (c Certificate) Verify(committee []Witness) error {
	if len(committee) != len(c.Committee) {
		return fmt.Errorf("committee size %d, certificate has %d", len(committee), len(c.Committee))
	}

	for i, w := range committee {
		if !bytes.Equal(w.PublicKey, c.Committee[i]) {
			return fmt.Errorf("committee member %d differs", i)
		}
	}

	var keys [][]byte
	for _, pos := range ParseBitmap(c.Honest) {
		if pos >= len(committee) {
			return fmt.Errorf("honest bitmap position %d out of range", pos)
		}

		keys = append(keys, committee[pos].BLSKey)
	}

	if len(keys) == 0 {
		return fmt.Errorf("certificate has no honest signers")
	}

	if !VerifyAggregated(c.Signature, c.Digest, keys) {
		return fmt.Errorf("aggregated signature is invalid")
	}

	return nil
}

// Encode serializes the certificate as CBOR.
func (c Certificate) Encode() ([]byte, error) {
	data, err := radon.Marshal(c)
	if err != nil {
		return nil, fmt.Errorf("encode certificate:\n%w", err)
	}

	return data, nil
}

// DecodeCertificate parses a CBOR certificate.
func DecodeCertificate(data []byte) (Certificate, error) {
	var c Certificate
	if err := radon.Unmarshal(data, &c); err != nil {
		return Certificate{}, fmt.Errorf("decode certificate:\n%w", err)
	}

	return c, nil
}
