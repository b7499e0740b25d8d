package retrieval

import (
	"context"
	"errors"

	"RadNode/internal/podvm"
	"RadNode/internal/radon"
)

// DefaultWasmGasLimit bounds source programs when no limit is configured.
const DefaultWasmGasLimit = 10_000_000

// WasmFetcher runs wasm sources in a podvm pool.
type WasmFetcher struct {
	pool     *podvm.Pool // pool holds the compiled programs
	gasLimit uint64      // gasLimit bounds each run
}

// NewWasmFetcher creates a fetcher over the given pool.
func NewWasmFetcher(pool *podvm.Pool, gasLimit uint64) *WasmFetcher {
	if gasLimit == 0 {
		gasLimit = DefaultWasmGasLimit
	}

	return &WasmFetcher{pool: pool, gasLimit: gasLimit}
}

// Fetch runs the source program with the source input and returns its output.
func (f *WasmFetcher) Fetch(ctx context.Context, src Source) ([]byte, error) {
	if len(src.ModuleID) != 32 {
		return nil, radon.NewError(radon.ErrSourceExecution, radon.String("invalid module id"))
	}

	var id [32]byte
	copy(id[:], src.ModuleID)

	output, _, err := f.pool.Execute(ctx, id, src.Input, f.gasLimit)
	switch {
	case err == nil:
		return output, nil
	case errors.Is(err, podvm.ErrGasExhausted):
		return nil, radon.NewError(radon.ErrGasExhausted, radon.NewInteger(int64(f.gasLimit)))
	case errors.Is(err, context.DeadlineExceeded), errors.Is(err, context.Canceled):
		return nil, radon.NewError(radon.ErrRetrieveTimeout)
	default:
		return nil, radon.NewError(radon.ErrSourceExecution, radon.String(err.Error()))
	}
}
