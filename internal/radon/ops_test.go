package radon

import (
	"math"
	"testing"
)

// opCase is a single operator invocation with its expected result.
type opCase struct {
	name string
	in   Value
	op   OpCode
	args []any
	want Value
}

// runOpCases applies every case and compares the results.
func runOpCases(t *testing.T, cases []opCase) {
	t.Helper()

	for _, tc := range cases {
		got, err := Apply(tc.in, tc.op, tc.args...)
		if err != nil {
			t.Errorf("%s: unexpected error %v", tc.name, err)
			continue
		}

		if !Equal(got, tc.want) {
			t.Errorf("%s: got %s, want %s", tc.name, got, tc.want)
		}
	}
}

// TestArrayOperators verifies the Array operator table.
func TestArrayOperators(t *testing.T) {
	ints := Array{NewInteger(3), NewInteger(1), NewInteger(2)}
	mixed := Array{String("a"), NewInteger(1), Array{Boolean(true)}}

	runOpCases(t, []opCase{
		{"count", ints, OpArrayCount, nil, NewInteger(3)},
		{"flatten", Array{Array{NewInteger(1)}, NewInteger(2), Array{NewInteger(3), NewInteger(4)}}, OpArrayFlatten, nil,
			Array{NewInteger(1), NewInteger(2), NewInteger(3), NewInteger(4)}},
		{"get string", mixed, OpArrayGetString, []any{uint64(0)}, String("a")},
		{"get integer", mixed, OpArrayGetInteger, []any{uint64(1)}, NewInteger(1)},
		{"get array", mixed, OpArrayGetArray, []any{uint64(2)}, Array{Boolean(true)}},
		{"sort", ints, OpArraySort, nil, Array{NewInteger(1), NewInteger(2), NewInteger(3)}},
		{"sort strings", Array{String("b"), String("a")}, OpArraySort, nil, Array{String("a"), String("b")}},
		{"take", ints, OpArrayTake, []any{uint64(2)}, Array{NewInteger(3), NewInteger(1)}},
		{"take more", ints, OpArrayTake, []any{uint64(10)}, ints},
		{"reduce max", ints, OpArrayReduce, []any{uint64(ReducerMax)}, NewInteger(3)},
		{"some", ints, OpArraySome, []any{uint64(FilterGreaterThan), uint64(2)}, Boolean(true)},
		{"some none", ints, OpArraySome, []any{uint64(FilterGreaterThan), uint64(5)}, Boolean(false)},
		{"filter", ints, OpArrayFilter, []any{uint64(FilterLessThan), uint64(3)}, Array{NewInteger(1), NewInteger(2)}},
		{"map", ints, OpArrayMap, []any{[]any{[]any{uint64(OpIntegerMultiply), uint64(10)}}},
			Array{NewInteger(30), NewInteger(10), NewInteger(20)}},
	})
}

// TestArrayOperatorErrors verifies index, type and argument failures.
func TestArrayOperatorErrors(t *testing.T) {
	arr := Array{String("a")}

	if _, err := Apply(arr, OpArrayGetString, uint64(5)); !IsCode(err, ErrIndexOutOfBounds) {
		t.Errorf("out of bounds: got %v", err)
	}

	if _, err := Apply(arr, OpArrayGetInteger, uint64(0)); !IsCode(err, ErrDecode) {
		t.Errorf("wrong element type: got %v", err)
	}

	if _, err := Apply(arr, OpArrayGetString, "zero"); !IsCode(err, ErrWrongArguments) {
		t.Errorf("bad index: got %v", err)
	}

	if _, err := Apply(Array{String("a"), NewInteger(1)}, OpArraySort); !IsCode(err, ErrMismatchingTypes) {
		t.Errorf("mixed sort: got %v", err)
	}

	if _, err := Apply(arr, OpArrayMap, "not a script"); !IsCode(err, ErrWrongArguments) {
		t.Errorf("bad subscript: got %v", err)
	}

	if _, err := Apply(arr, OpArrayMap, []any{uint64(OpIntegerNegate)}); !IsCode(err, ErrUnsupportedOperator) {
		t.Errorf("subscript failure should propagate, got %v", err)
	}
}

// TestIntegerOperators verifies the Integer operator table.
func TestIntegerOperators(t *testing.T) {
	runOpCases(t, []opCase{
		{"absolute", NewInteger(-5), OpIntegerAbsolute, nil, NewInteger(5)},
		{"as float", NewInteger(7), OpIntegerAsFloat, nil, Float(7)},
		{"as string", NewInteger(-12), OpIntegerAsString, nil, String("-12")},
		{"greater", NewInteger(3), OpIntegerGreaterThan, []any{int64(2)}, Boolean(true)},
		{"less", NewInteger(3), OpIntegerLessThan, []any{int64(2)}, Boolean(false)},
		{"modulo", NewInteger(-7), OpIntegerModulo, []any{uint64(3)}, NewInteger(-1)},
		{"multiply", NewInteger(6), OpIntegerMultiply, []any{int64(-7)}, NewInteger(-42)},
		{"negate", NewInteger(6), OpIntegerNegate, nil, NewInteger(-6)},
		{"power", NewInteger(2), OpIntegerPower, []any{uint64(10)}, NewInteger(1024)},
		{"power one", NewInteger(-1), OpIntegerPower, []any{uint64(1001)}, NewInteger(-1)},
		{"power zero", NewInteger(0), OpIntegerPower, []any{uint64(0)}, NewInteger(1)},
		{"reciprocal", NewInteger(4), OpIntegerReciprocal, nil, Float(0.25)},
		{"sum", NewInteger(40), OpIntegerSum, []any{uint64(2)}, NewInteger(42)},
		{"match", NewInteger(1), OpIntegerMatch, []any{map[any]any{"1": "one"}, "none"}, String("one")},
		{"as bytes", NewInteger(-1), OpIntegerAsBytes, nil, Bytes{
			0xff, 0xff, 0xff, 0xff, 0xff, 0xff, 0xff, 0xff, 0xff, 0xff, 0xff, 0xff, 0xff, 0xff, 0xff, 0xff}},
	})
}

// TestIntegerOperatorErrors verifies overflow and argument failures.
func TestIntegerOperatorErrors(t *testing.T) {
	maxInt := Integer{v: maxI128}

	if _, err := Apply(maxInt, OpIntegerSum, uint64(1)); !IsCode(err, ErrOverflow) {
		t.Errorf("sum overflow: got %v", err)
	}

	if _, err := Apply(Integer{v: minI128}, OpIntegerNegate); !IsCode(err, ErrOverflow) {
		t.Errorf("negate min: got %v", err)
	}

	if _, err := Apply(NewInteger(-2), OpIntegerPower, uint64(201)); !IsCode(err, ErrUnderflow) {
		t.Errorf("power underflow: got %v", err)
	}

	if _, err := Apply(NewInteger(2), OpIntegerPower, uint64(127)); !IsCode(err, ErrOverflow) {
		t.Errorf("power overflow: got %v", err)
	}

	if _, err := Apply(NewInteger(1), OpIntegerModulo, uint64(0)); !IsCode(err, ErrDivisionByZero) {
		t.Errorf("modulo zero: got %v", err)
	}

	if _, err := Apply(NewInteger(1), OpIntegerSum, 1.5); !IsCode(err, ErrWrongArguments) {
		t.Errorf("float argument: got %v", err)
	}

	if _, err := Apply(NewInteger(1), OpIntegerSum); !IsCode(err, ErrWrongArguments) {
		t.Errorf("missing argument: got %v", err)
	}

	if _, err := Apply(NewInteger(1), OpStringLength); !IsCode(err, ErrUnsupportedOperator) {
		t.Errorf("foreign operator: got %v", err)
	}
}

// TestFloatOperators verifies the Float operator table.
func TestFloatOperators(t *testing.T) {
	runOpCases(t, []opCase{
		{"absolute", Float(-1.5), OpFloatAbsolute, nil, Float(1.5)},
		{"as string", Float(1.25), OpFloatAsString, nil, String("1.25")},
		{"as string whole", Float(3), OpFloatAsString, nil, String("3")},
		{"ceiling", Float(1.2), OpFloatCeiling, nil, NewInteger(2)},
		{"floor", Float(-1.2), OpFloatFloor, nil, NewInteger(-2)},
		{"round", Float(2.5), OpFloatRound, nil, NewInteger(3)},
		{"truncate", Float(-2.7), OpFloatTruncate, nil, NewInteger(-2)},
		{"greater", Float(1.5), OpFloatGreaterThan, []any{uint64(1)}, Boolean(true)},
		{"less", Float(1.5), OpFloatLessThan, []any{1.25}, Boolean(false)},
		{"modulo", Float(7.5), OpFloatModulo, []any{uint64(2)}, Float(1.5)},
		{"multiply", Float(1.5), OpFloatMultiply, []any{uint64(2)}, Float(3)},
		{"negate", Float(1.5), OpFloatNegate, nil, Float(-1.5)},
		{"power", Float(2), OpFloatPower, []any{0.5}, Float(math.Sqrt2)},
		{"reciprocal", Float(4), OpFloatReciprocal, nil, Float(0.25)},
		{"sum", Float(0.5), OpFloatSum, []any{0.25}, Float(0.75)},
		{"as bytes", Float(1), OpFloatAsBytes, nil, Bytes{0x3f, 0xf0, 0, 0, 0, 0, 0, 0}},
	})

	if _, err := Apply(Float(1), OpFloatReciprocal); err != nil {
		t.Errorf("reciprocal of one: %v", err)
	}

	if _, err := Apply(Float(0), OpFloatReciprocal); !IsCode(err, ErrDivisionByZero) {
		t.Errorf("reciprocal of zero: got %v", err)
	}

	if _, err := Apply(Float(1), OpFloatSum, "x"); !IsCode(err, ErrWrongArguments) {
		t.Errorf("string argument: got %v", err)
	}
}

// TestMapOperators verifies the Map operator table.
func TestMapOperators(t *testing.T) {
	m := Map{"b": NewInteger(2), "a": String("x"), "c": Float(1.5)}

	runOpCases(t, []opCase{
		{"keys", m, OpMapKeys, nil, Array{String("a"), String("b"), String("c")}},
		{"values", m, OpMapValues, nil, Array{String("x"), NewInteger(2), Float(1.5)}},
		{"entries", Map{"k": Boolean(true)}, OpMapEntries, nil, Array{Array{String("k"), Boolean(true)}}},
		{"get float", m, OpMapGetFloat, []any{"c"}, Float(1.5)},
		{"get integer", m, OpMapGetInteger, []any{"b"}, NewInteger(2)},
		{"get string", m, OpMapGetString, []any{"a"}, String("x")},
	})

	if _, err := Apply(m, OpMapGetFloat, "missing"); !IsCode(err, ErrMapKeyNotFound) {
		t.Errorf("missing key: got %v", err)
	}

	if _, err := Apply(m, OpMapGetFloat, "b"); !IsCode(err, ErrDecode) {
		t.Errorf("wrong variant: got %v", err)
	}

	if _, err := Apply(m, OpMapGetFloat, uint64(1)); !IsCode(err, ErrWrongArguments) {
		t.Errorf("non-string key: got %v", err)
	}
}

// TestScalarOperators verifies Boolean and Bytes operators.
func TestScalarOperators(t *testing.T) {
	runOpCases(t, []opCase{
		{"negate", Boolean(true), OpBooleanNegate, nil, Boolean(false)},
		{"as string", Boolean(false), OpBooleanAsString, nil, String("false")},
		{"match", Boolean(true), OpBooleanMatch, []any{map[any]any{"true": uint64(1)}, uint64(0)}, NewInteger(1)},
		{"bytes as string", Bytes{0x0a, 0xff}, OpBytesAsString, nil, String("0aff")},
		{"identity", Bytes{0x01}, OpIdentity, nil, Bytes{0x01}},
	})

	if _, err := Apply(Boolean(true), OpBooleanNegate, uint64(1)); !IsCode(err, ErrWrongArguments) {
		t.Errorf("extra argument: got %v", err)
	}
}
