package podvm

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"

	"github.com/tetratelabs/wazero"
	"github.com/tetratelabs/wazero/api"
	"github.com/zeebo/blake3"
)

var (
	// ErrModuleNotFound is returned when a module ID is not found in the pool.
	ErrModuleNotFound = errors.New("module not found")

	// ErrGasExhausted is returned when execution runs out of gas.
	ErrGasExhausted = errors.New("gas exhausted")
)

// Pool keeps compiled source programs hot for retrieval.
// Programs read the source input through the host module and write the
// response bytes back; they are addressed by the blake3 hash of their binary.
type Pool struct {
	runtime wazero.Runtime                      // runtime is the wazero runtime instance
	modules map[[32]byte]wazero.CompiledModule // modules maps blake3 hash to compiled module
	mu      sync.RWMutex                        // mu protects modules map
	execMu  sync.Mutex                          // execMu serializes runs, the host module name is shared
}

// New creates a new Pool whose runs abort when their context is done.
func New() *Pool {
	ctx := context.Background()
	cfg := wazero.NewRuntimeConfig().WithCloseOnContextDone(true)

	return &Pool{
		runtime: wazero.NewRuntimeWithConfig(ctx, cfg),
		modules: make(map[[32]byte]wazero.CompiledModule),
	}
}

// Load compiles and stores a program, returning its blake3 module ID.
func (p *Pool) Load(wasmBytes []byte) ([32]byte, error) {
	id := blake3.Sum256(wasmBytes)

	p.mu.Lock()
	defer p.mu.Unlock()

	if _, exists := p.modules[id]; exists {
		return id, nil
	}

	compiled, err := p.runtime.CompileModule(context.Background(), wasmBytes)
	if err != nil {
		return [32]byte{}, fmt.Errorf("compile module:\n%w", err)
	}

	p.modules[id] = compiled

	return id, nil
}

// LoadDir compiles every *.wasm file in dir and returns the loaded IDs.
func (p *Pool) LoadDir(dir string) ([][32]byte, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil, fmt.Errorf("read module dir:\n%w", err)
	}

	var ids [][32]byte

	for _, e := range entries {
		if e.IsDir() || !strings.HasSuffix(e.Name(), ".wasm") {
			continue
		}

		data, err := os.ReadFile(filepath.Join(dir, e.Name()))
		if err != nil {
			return nil, fmt.Errorf("read module %s:\n%w", e.Name(), err)
		}

		id, err := p.Load(data)
		if err != nil {
			return nil, fmt.Errorf("load module %s:\n%w", e.Name(), err)
		}

		ids = append(ids, id)
	}

	return ids, nil
}

// Has reports whether a module is loaded.
func (p *Pool) Has(id [32]byte) bool {
	p.mu.RLock()
	defer p.mu.RUnlock()

	_, ok := p.modules[id]
	return ok
}

// Len returns the number of loaded modules.
func (p *Pool) Len() int {
	p.mu.RLock()
	defer p.mu.RUnlock()

	return len(p.modules)
}

// Execute runs a module with the given input and gas limit.
// Returns the output bytes and the amount of gas consumed.
func (p *Pool) Execute(ctx context.Context, id [32]byte, input []byte, gasLimit uint64) ([]byte, uint64, error) {
	p.mu.RLock()
	compiled, exists := p.modules[id]
	p.mu.RUnlock()

	if !exists {
		return nil, 0, ErrModuleNotFound
	}

	p.execMu.Lock()
	defer p.execMu.Unlock()

	if err := ctx.Err(); err != nil {
		return nil, 0, err
	}

	return p.executeModule(ctx, compiled, input, gasLimit)
}

// executeModule instantiates and runs a compiled module.
func (p *Pool) executeModule(ctx context.Context, compiled wazero.CompiledModule, input []byte, gasLimit uint64) ([]byte, uint64, error) {
	execCtx := &execContext{
		input:    input,
		gasLimit: gasLimit,
	}

	hostModule, err := p.buildHostModule(ctx, execCtx)
	if err != nil {
		return nil, 0, fmt.Errorf("build host module:\n%w", err)
	}
	defer hostModule.Close(context.Background())

	instance, err := p.runtime.InstantiateModule(ctx, compiled, wazero.NewModuleConfig().WithName(""))
	if err != nil {
		return nil, execCtx.gasUsed, fmt.Errorf("instantiate module:\n%w", err)
	}
	defer instance.Close(context.Background())

	execCtx.memory = instance.Memory()

	return p.callExecute(ctx, instance, execCtx)
}

// callExecute calls the execute function on the WASM instance.
func (p *Pool) callExecute(ctx context.Context, instance api.Module, execCtx *execContext) ([]byte, uint64, error) {
	executeFn := instance.ExportedFunction("execute")
	if executeFn == nil {
		return nil, execCtx.gasUsed, fmt.Errorf("execute function not exported")
	}

	if _, err := executeFn.Call(ctx); err != nil {
		if execCtx.gasExhausted {
			return nil, execCtx.gasUsed, ErrGasExhausted
		}

		if ctxErr := ctx.Err(); ctxErr != nil {
			return nil, execCtx.gasUsed, ctxErr
		}

		return nil, execCtx.gasUsed, fmt.Errorf("execute:\n%w", err)
	}

	return execCtx.output, execCtx.gasUsed, nil
}

// Unload removes a module from the pool.
func (p *Pool) Unload(id [32]byte) {
	p.mu.Lock()
	defer p.mu.Unlock()

	if compiled, exists := p.modules[id]; exists {
		compiled.Close(context.Background())
		delete(p.modules, id)
	}
}

// Close releases all resources held by the pool.
func (p *Pool) Close() error {
	p.mu.Lock()
	defer p.mu.Unlock()

	for id, compiled := range p.modules {
		compiled.Close(context.Background())
		delete(p.modules, id)
	}

	return p.runtime.Close(context.Background())
}
