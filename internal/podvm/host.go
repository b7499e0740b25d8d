package podvm

import (
	"context"

	"github.com/tetratelabs/wazero/api"
)

// hostModuleName is the import namespace of the host functions.
const hostModuleName = "env"

// execContext holds the execution state for a single source program run.
type execContext struct {
	input        []byte     // input is the source input bytes
	output       []byte     // output is the response written by the program
	memory       api.Memory // memory is the WASM linear memory
	gasLimit     uint64     // gasLimit is the maximum gas allowed
	gasUsed      uint64     // gasUsed tracks consumed gas
	gasExhausted bool       // gasExhausted is true if gas limit was exceeded
}

// buildHostModule creates the host module exposing gas metering and I/O.
func (p *Pool) buildHostModule(ctx context.Context, execCtx *execContext) (api.Module, error) {
	return p.runtime.NewHostModuleBuilder(hostModuleName).
		NewFunctionBuilder().
		WithFunc(func(_ context.Context, cost uint32) {
			chargeGas(execCtx, cost)
		}).
		Export("gas").
		NewFunctionBuilder().
		WithFunc(func(context.Context) uint32 {
			return uint32(len(execCtx.input))
		}).
		Export("input_len").
		NewFunctionBuilder().
		WithFunc(func(_ context.Context, ptr uint32) {
			copyInput(execCtx, ptr)
		}).
		Export("read_input").
		NewFunctionBuilder().
		WithFunc(func(_ context.Context, ptr, length uint32) {
			captureOutput(execCtx, ptr, length)
		}).
		Export("write_output").
		Instantiate(ctx)
}

// chargeGas adds cost to the meter and aborts the program once the limit is passed.
func chargeGas(execCtx *execContext, cost uint32) {
	execCtx.gasUsed += uint64(cost)

	if execCtx.gasUsed > execCtx.gasLimit {
		execCtx.gasExhausted = true
		panic("gas exhausted")
	}
}

// copyInput writes the input into program memory at ptr.
func copyInput(execCtx *execContext, ptr uint32) {
	if execCtx.memory == nil || len(execCtx.input) == 0 {
		return
	}

	execCtx.memory.Write(ptr, execCtx.input)
}

// captureOutput copies length bytes at ptr out of program memory.
// A later call replaces the previous output.
func captureOutput(execCtx *execContext, ptr, length uint32) {
	if execCtx.memory == nil || length == 0 {
		return
	}

	data, ok := execCtx.memory.Read(ptr, length)
	if !ok {
		return
	}

	execCtx.output = append([]byte(nil), data...)
}
