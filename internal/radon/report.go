package radon

import (
	"fmt"
	"time"

	"github.com/google/uuid"
)

// Stage names the pipeline phase that produced a report.
type Stage string

const (
	// StageRetrieval is a per-source fetch plus its script.
	StageRetrieval Stage = "retrieval"
	// StageAggregation folds source reports on a single node.
	StageAggregation Stage = "aggregation"
	// StageTally folds reports committed by several nodes.
	StageTally Stage = "tally"
)

// ReportContext is provenance metadata. It never takes part in consensus
// comparisons.
type ReportContext struct {
	Stage          Stage     // Stage is the phase that produced the report
	StartTime      time.Time // StartTime is set when timing is enabled
	CompletionTime time.Time // CompletionTime is set when timing is enabled
	PartialResults []Value   // PartialResults holds the input and the value after each step
	Liars          []bool    // Liars marks inputs that disagreed with the consensus
	Errors         []bool    // Errors marks inputs that were errors
	RunID          uuid.UUID // RunID identifies this execution in logs
	GasUsed        uint64    // GasUsed is the gas consumed by the script
}

// Elapsed returns the execution time, or zero when timing was disabled.
func (c ReportContext) Elapsed() time.Duration {
	if c.StartTime.IsZero() || c.CompletionTime.IsZero() {
		return 0
	}

	return c.CompletionTime.Sub(c.StartTime)
}

// Report is the outcome of one pipeline run: a value or an error, plus context.
// Exactly one of Value and Err is set.
type Report struct {
	Value   Value         // Value is the successful result
	Err     *Error        // Err is the failure, nil on success
	Context ReportContext // Context carries provenance metadata
}

// NewValueReport creates a successful report.
func NewValueReport(v Value, stage Stage) Report {
	return Report{Value: v, Context: ReportContext{Stage: stage, RunID: uuid.New()}}
}

// NewErrorReport creates a failed report.
func NewErrorReport(err *Error, stage Stage) Report {
	return Report{Err: err, Context: ReportContext{Stage: stage, RunID: uuid.New()}}
}

// Outcome returns the report's result as a value and an error.
func (r Report) Outcome() (Value, error) {
	if r.Err != nil {
		return nil, r.Err
	}

	return r.Value, nil
}

// IsError reports whether the report failed or carries an Error value.
func (r Report) IsError() bool {
	if r.Err != nil {
		return true
	}

	_, ok := r.Value.(*Error)
	return ok
}

// ErrorPayload returns the error carried by the report, either as failure or
// as an Error value. It is nil for value reports.
func (r Report) ErrorPayload() *Error {
	if r.Err != nil {
		return r.Err
	}

	if e, ok := r.Value.(*Error); ok {
		return e
	}

	return nil
}

// Result returns the value the report stands for: the value itself, or the
// error payload as an Error value.
func (r Report) Result() Value {
	if r.Err != nil {
		return r.Err
	}

	return r.Value
}

// SameOutcome compares two reports ignoring their context.
func SameOutcome(a, b Report) bool {
	if (a.Err == nil) != (b.Err == nil) {
		return false
	}

	if a.Err != nil {
		return a.Err.Equal(b.Err)
	}

	return Equal(a.Value, b.Value)
}

// String renders the outcome for logs.
func (r Report) String() string {
	if r.Err != nil {
		return "Err(" + r.Err.Error() + ")"
	}

	return "Ok(" + r.Value.String() + ")"
}

// reportWire is the CBOR layout of a report.
type reportWire struct {
	Ok      bool        `cbor:"1,keyasint"`
	Result  any         `cbor:"2,keyasint"`
	Context contextWire `cbor:"3,keyasint"`
}

// contextWire is the CBOR layout of a report context.
type contextWire struct {
	Stage          string `cbor:"1,keyasint"`
	StartTime      int64  `cbor:"2,keyasint,omitempty"`
	CompletionTime int64  `cbor:"3,keyasint,omitempty"`
	PartialResults []any  `cbor:"4,keyasint,omitempty"`
	Liars          []bool `cbor:"5,keyasint,omitempty"`
	Errors         []bool `cbor:"6,keyasint,omitempty"`
	RunID          []byte `cbor:"7,keyasint,omitempty"`
	GasUsed        uint64 `cbor:"8,keyasint,omitempty"`
}

// MarshalCBOR encodes the report with its context.
func (r Report) MarshalCBOR() ([]byte, error) {
	w := reportWire{Ok: r.Err == nil, Result: ToCBOR(r.Result())}

	c := r.Context
	w.Context = contextWire{
		Stage:   string(c.Stage),
		Liars:   c.Liars,
		Errors:  c.Errors,
		GasUsed: c.GasUsed,
	}

	if !c.StartTime.IsZero() {
		w.Context.StartTime = c.StartTime.UnixNano()
	}

	if !c.CompletionTime.IsZero() {
		w.Context.CompletionTime = c.CompletionTime.UnixNano()
	}

	if c.RunID != uuid.Nil {
		w.Context.RunID = c.RunID[:]
	}

	for _, v := range c.PartialResults {
		w.Context.PartialResults = append(w.Context.PartialResults, ToCBOR(v))
	}

	return encMode.Marshal(w)
}

// UnmarshalCBOR decodes a report produced by MarshalCBOR.
func (r *Report) UnmarshalCBOR(data []byte) error {
	var w reportWire
	if err := decMode.Unmarshal(data, &w); err != nil {
		return fmt.Errorf("decode report:\n%w", err)
	}

	result, err := FromCBOR(w.Result)
	if err != nil {
		return fmt.Errorf("decode report result:\n%w", err)
	}

	out := Report{Context: ReportContext{
		Stage:   Stage(w.Context.Stage),
		Liars:   w.Context.Liars,
		Errors:  w.Context.Errors,
		GasUsed: w.Context.GasUsed,
	}}

	if w.Ok {
		out.Value = result
	} else {
		e, ok := result.(*Error)
		if !ok {
			return fmt.Errorf("decode report: failed outcome is %s", result.Type())
		}

		out.Err = e
	}

	if w.Context.StartTime != 0 {
		out.Context.StartTime = time.Unix(0, w.Context.StartTime).UTC()
	}

	if w.Context.CompletionTime != 0 {
		out.Context.CompletionTime = time.Unix(0, w.Context.CompletionTime).UTC()
	}

	if len(w.Context.RunID) > 0 {
		id, err := uuid.FromBytes(w.Context.RunID)
		if err != nil {
			return fmt.Errorf("decode report run id:\n%w", err)
		}

		out.Context.RunID = id
	}

	for _, raw := range w.Context.PartialResults {
		v, err := FromCBOR(raw)
		if err != nil {
			return fmt.Errorf("decode report partial result:\n%w", err)
		}

		out.Context.PartialResults = append(out.Context.PartialResults, v)
	}

	*r = out
	return nil
}

// EncodeReport serializes a report.
func EncodeReport(r Report) ([]byte, error) {
	return r.MarshalCBOR()
}

// DecodeReport parses a serialized report.
func DecodeReport(data []byte) (Report, error) {
	var r Report
	if err := r.UnmarshalCBOR(data); err != nil {
		return Report{}, err
	}

	return r, nil
}
