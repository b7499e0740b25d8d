package radon

import (
	"time"

	"github.com/google/uuid"
)

// DefaultGasLimit bounds scripts run without an explicit limit.
const DefaultGasLimit = 1_000_000

// Settings controls what an execution records besides its outcome.
type Settings struct {
	Timing         bool   // Timing records start and completion times in the context
	PartialResults bool   // PartialResults records the value after every step
	GasLimit       uint64 // GasLimit bounds the computation, 0 means DefaultGasLimit
}

// run threads a value through the script, stopping at the first failure.
// When partials is non-nil the value after each step is appended to it.
func (st *state) run(in Value, script Script, partials *[]Value) (Value, error) {
	current := in

	for _, call := range script {
		next, err := st.apply(current, call)
		if err != nil {
			return nil, err
		}

		current = next

		if partials != nil {
			*partials = append(*partials, current)
		}
	}

	return current, nil
}

// Execute runs a script over an input value and wraps the outcome as a
// Report tagged with the given stage. It never panics on script errors.
func Execute(input Value, script Script, stage Stage, settings Settings) Report {
	st := &state{gasLimit: settings.GasLimit}
	if st.gasLimit == 0 {
		st.gasLimit = DefaultGasLimit
	}

	ctx := ReportContext{Stage: stage, RunID: uuid.New()}

	if settings.Timing {
		ctx.StartTime = time.Now().UTC()
	}

	var partials *[]Value
	if settings.PartialResults {
		ctx.PartialResults = []Value{input}
		partials = &ctx.PartialResults
	}

	out, err := st.run(input, script, partials)

	if settings.Timing {
		ctx.CompletionTime = time.Now().UTC()
	}

	ctx.GasUsed = st.gasUsed

	if err != nil {
		return Report{Err: AsError(err), Context: ctx}
	}

	return Report{Value: out, Context: ctx}
}

// ExecuteBytes decodes a binary script and executes it. Decoding failures are
// reported like any other script failure.
func ExecuteBytes(input Value, data []byte, stage Stage, settings Settings) Report {
	script, err := DecodeScript(data)
	if err != nil {
		return Report{Err: AsError(err), Context: ReportContext{Stage: stage, RunID: uuid.New()}}
	}

	return Execute(input, script, stage, settings)
}
