package radon

import (
	"bytes"
	"testing"
)

// priceScript parses a JSON map and extracts a float field.
func priceScript() Script {
	return Script{
		{Op: OpStringParseJSONMap},
		{Op: OpMapGetFloat, Args: []any{"price"}},
		{Op: OpFloatMultiply, Args: []any{uint64(100)}},
		{Op: OpFloatRound},
	}
}

// TestScriptRoundTrip verifies binary encoding and decoding of scripts.
func TestScriptRoundTrip(t *testing.T) {
	script := priceScript()

	data, err := script.Encode()
	if err != nil {
		t.Fatalf("encode: %v", err)
	}

	decoded, err := DecodeScript(data)
	if err != nil {
		t.Fatalf("decode: %v", err)
	}

	again, err := decoded.Encode()
	if err != nil {
		t.Fatalf("re-encode: %v", err)
	}

	if !bytes.Equal(data, again) {
		t.Errorf("encodings differ: %x vs %x", data, again)
	}

	if len(decoded) != len(script) {
		t.Fatalf("decoded %d calls, want %d", len(decoded), len(script))
	}

	for i := range script {
		if decoded[i].Op != script[i].Op {
			t.Errorf("call %d: op %s, want %s", i, decoded[i].Op, script[i].Op)
		}
	}
}

// TestExecuteDeterministic verifies repeated executions of a decoded script agree.
func TestExecuteDeterministic(t *testing.T) {
	data, err := priceScript().Encode()
	if err != nil {
		t.Fatalf("encode: %v", err)
	}

	script, err := DecodeScript(data)
	if err != nil {
		t.Fatalf("decode: %v", err)
	}

	input := String(`{"price": 12.34, "volume": 3}`)

	first := Execute(input, script, StageRetrieval, Settings{})
	second := Execute(input, script, StageRetrieval, Settings{})

	if first.Err != nil {
		t.Fatalf("execute: %v", first.Err)
	}

	if !SameOutcome(first, second) {
		t.Errorf("outcomes differ: %s vs %s", first, second)
	}

	if !Equal(first.Value, NewInteger(1234)) {
		t.Errorf("value = %s, want 1234", first.Value)
	}
}

// TestExecuteFailFast verifies no step runs after the first failure.
func TestExecuteFailFast(t *testing.T) {
	script := Script{
		{Op: OpStringParseJSONMap},
		{Op: OpMapGetFloat, Args: []any{"missing"}},
		{Op: OpFloatRound},
	}

	report := Execute(String(`{"price": 1}`), script, StageAggregation, Settings{PartialResults: true})
	if report.Err == nil || report.Err.Code != ErrMapKeyNotFound {
		t.Fatalf("expected MapKeyNotFound, got %s", report)
	}

	// input plus the one successful step
	if len(report.Context.PartialResults) != 2 {
		t.Errorf("partial results = %d, want 2", len(report.Context.PartialResults))
	}

	if report.Context.Stage != StageAggregation {
		t.Errorf("stage = %s", report.Context.Stage)
	}
}

// TestExecuteEmptyScript verifies the empty script is the identity.
func TestExecuteEmptyScript(t *testing.T) {
	report := Execute(NewInteger(7), nil, StageTally, Settings{Timing: true})
	if report.Err != nil || !Equal(report.Value, NewInteger(7)) {
		t.Fatalf("empty script = %s", report)
	}

	if report.Context.StartTime.IsZero() || report.Context.CompletionTime.IsZero() {
		t.Error("timing was requested but not recorded")
	}
}

// TestExecuteGasLimit verifies the gas meter bounds nested subscripts.
func TestExecuteGasLimit(t *testing.T) {
	arr := make(Array, 100)
	for i := range arr {
		arr[i] = NewInteger(int64(i))
	}

	script := Script{
		{Op: OpArrayMap, Args: []any{[]any{[]any{uint64(OpIntegerSum), uint64(1)}}}},
		{Op: OpArrayCount},
	}

	ok := Execute(arr, script, StageAggregation, Settings{GasLimit: 1000})
	if ok.Err != nil {
		t.Fatalf("within budget: %v", ok.Err)
	}

	if ok.Context.GasUsed == 0 {
		t.Error("gas usage not recorded")
	}

	exhausted := Execute(arr, script, StageAggregation, Settings{GasLimit: 50})
	if exhausted.Err == nil || exhausted.Err.Code != ErrGasExhausted {
		t.Fatalf("expected GasExhausted, got %s", exhausted)
	}
}

// TestDecodeScriptErrors verifies malformed scripts are classified.
func TestDecodeScriptErrors(t *testing.T) {
	if _, err := DecodeScript([]byte{0xff, 0x00}); !IsCode(err, ErrScriptNotCBOR) {
		t.Errorf("garbage: got %v", err)
	}

	notArray, _ := Marshal("text")
	if _, err := DecodeScript(notArray); !IsCode(err, ErrScriptNotArray) {
		t.Errorf("string: got %v", err)
	}

	badCall, _ := Marshal([]any{"StringLength"})
	if _, err := DecodeScript(badCall); !IsCode(err, ErrScriptNotRADON) {
		t.Errorf("text opcode: got %v", err)
	}

	report := ExecuteBytes(String("x"), notArray, StageRetrieval, Settings{})
	if report.Err == nil || report.Err.Code != ErrScriptNotArray {
		t.Errorf("ExecuteBytes = %s", report)
	}
}

// TestParseNotation verifies the symbolic notation compiles to the binary form.
func TestParseNotation(t *testing.T) {
	steps := []any{
		"StringParseJSONArray",
		[]any{"ArrayMap", []any{"StringAsFloat"}},
		[]any{"ArrayFilter", "DeviationStandard", 1.5},
		[]any{"ArrayReduce", "AverageMedian"},
	}

	script, err := ParseNotation(steps)
	if err != nil {
		t.Fatalf("parse: %v", err)
	}

	report := Execute(String(`["10.0", "11.0", "9.0", "10.0"]`), script, StageRetrieval, Settings{})
	if report.Err != nil {
		t.Fatalf("execute: %v", report.Err)
	}

	if !Equal(report.Value, Float(10)) {
		t.Errorf("median = %s, want 10", report.Value)
	}

	if script[3].Args[0] != uint64(ReducerAverageMedian) {
		t.Errorf("reducer argument = %v", script[3].Args[0])
	}

	if _, err := ParseNotation([]any{"NoSuchOperator"}); err == nil {
		t.Error("unknown operator accepted")
	}

	if _, err := ParseNotation([]any{[]any{"ArrayReduce", "Nope"}}); err == nil {
		t.Error("unknown reducer accepted")
	}
}
