package retrieval

import (
	"context"
	"fmt"

	"RadNode/internal/radon"
)

// Kind names how a source is fetched.
type Kind string

const (
	// KindHTTPGet fetches a URL with an HTTP GET.
	KindHTTPGet Kind = "http-get"
	// KindWasm runs a program from the podvm pool.
	KindWasm Kind = "wasm"
)

// Source is one independent data source of a request and its script.
type Source struct {
	Kind     Kind         `cbor:"1,keyasint"`           // Kind selects the fetcher
	URL      string       `cbor:"2,keyasint,omitempty"` // URL is the address for http-get sources
	ModuleID []byte       `cbor:"3,keyasint,omitempty"` // ModuleID is the blake3 program hash for wasm sources
	Input    []byte       `cbor:"4,keyasint,omitempty"` // Input is passed to wasm programs
	Script   radon.Script `cbor:"5,keyasint"`           // Script transforms the fetched body
}

// Validate checks that the source carries the fields its kind needs.
func (s Source) Validate() error {
	switch s.Kind {
	case KindHTTPGet:
		if s.URL == "" {
			return fmt.Errorf("http-get source without url")
		}
	case KindWasm:
		if len(s.ModuleID) != 32 {
			return fmt.Errorf("wasm source module id must be 32 bytes, got %d", len(s.ModuleID))
		}
	default:
		return radon.NewError(radon.ErrUnsupportedSourceKind, radon.String(string(s.Kind)))
	}

	return nil
}

// Fetcher is the transport collaborator: it turns a source into raw bytes.
// Failures should be *radon.Error values so they classify in reports.
type Fetcher interface {
	Fetch(ctx context.Context, src Source) ([]byte, error)
}

// FetcherFunc adapts a function to the Fetcher interface.
type FetcherFunc func(ctx context.Context, src Source) ([]byte, error)

// Fetch calls f.
func (f FetcherFunc) Fetch(ctx context.Context, src Source) ([]byte, error) {
	return f(ctx, src)
}
