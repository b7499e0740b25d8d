package radon

import (
	"math"
	"testing"
)

// TestReducers verifies every implemented reducer.
func TestReducers(t *testing.T) {
	ints := Array{NewInteger(4), NewInteger(1), NewInteger(3), NewInteger(1)}
	floats := Array{Float(2), Float(4), Float(4), Float(4), Float(5), Float(5), Float(7), Float(9)}

	tests := []struct {
		name string
		arr  Array
		r    Reducer
		want Value
	}{
		{"min", ints, ReducerMin, NewInteger(1)},
		{"max", ints, ReducerMax, NewInteger(4)},
		{"mode", ints, ReducerMode, NewInteger(1)},
		{"mean ints", ints, ReducerAverageMean, Float(2.25)},
		{"median odd", Array{NewInteger(5), NewInteger(1), NewInteger(3)}, ReducerAverageMedian, NewInteger(3)},
		{"median even", ints, ReducerAverageMedian, Float(2)},
		{"mean floats", floats, ReducerAverageMean, Float(5)},
		{"stddev", floats, ReducerDeviationStandard, Float(2)},
		{"mode strings", Array{String("a"), String("b"), String("b")}, ReducerMode, String("b")},
	}

	for _, tt := range tests {
		got, err := Reduce(tt.arr, tt.r)
		if err != nil {
			t.Fatalf("%s: %v", tt.name, err)
		}

		if !Equal(got, tt.want) {
			t.Errorf("%s: got %s, want %s", tt.name, got, tt.want)
		}
	}
}

// TestModeTieBreak verifies ties go to the value seen first.
func TestModeTieBreak(t *testing.T) {
	got, err := Reduce(Array{String("x"), String("y"), String("y"), String("x")}, ReducerMode)
	if err != nil {
		t.Fatalf("mode: %v", err)
	}

	if !Equal(got, String("x")) {
		t.Errorf("tie went to %s, want \"x\"", got)
	}
}

// TestReducerErrors verifies empty, mixed and unsupported inputs.
func TestReducerErrors(t *testing.T) {
	if _, err := Reduce(Array{}, ReducerMax); !IsCode(err, ErrEmptyArray) {
		t.Errorf("empty: got %v", err)
	}

	if _, err := Reduce(Array{NewInteger(1), Float(2)}, ReducerMax); !IsCode(err, ErrMismatchingTypes) {
		t.Errorf("mixed: got %v", err)
	}

	if _, err := Reduce(Array{String("a")}, ReducerAverageMean); !IsCode(err, ErrUnsupportedReducer) {
		t.Errorf("strings: got %v", err)
	}

	if _, err := Reduce(Array{NewInteger(1)}, Reducer(0x04)); !IsCode(err, ErrUnsupportedReducer) {
		t.Errorf("unknown code: got %v", err)
	}
}

// TestFilters verifies every implemented filter.
func TestFilters(t *testing.T) {
	nums := Array{Float(10), Float(11), Float(9), Float(30), Float(10)}

	tests := []struct {
		name string
		f    Filter
		args []any
		want Array
	}{
		{"greater", FilterGreaterThan, []any{uint64(10)}, Array{Float(11), Float(30)}},
		{"greater or equal", FilterGreaterOrEqualThan, []any{uint64(10)}, Array{Float(10), Float(11), Float(30), Float(10)}},
		{"less", FilterLessThan, []any{uint64(10)}, Array{Float(9)}},
		{"less or equal", FilterLessOrEqualThan, []any{uint64(10)}, Array{Float(10), Float(9), Float(10)}},
		{"equals", FilterEquals, []any{10.0}, Array{Float(10), Float(10)}},
		{"not equals", FilterNotEquals, []any{10.0}, Array{Float(11), Float(9), Float(30)}},
		{"deviation absolute", FilterDeviationAbsolute, []any{uint64(5)}, Array{Float(10), Float(11), Float(9), Float(10)}},
		{"deviation relative", FilterDeviationRelative, []any{0.5}, Array{Float(10), Float(11), Float(9), Float(10)}},
		{"deviation standard", FilterDeviationStandard, []any{uint64(1)}, Array{Float(10), Float(11), Float(9), Float(10)}},
		{"top", FilterTop, []any{uint64(2)}, Array{Float(30), Float(11)}},
		{"bottom", FilterBottom, []any{uint64(2)}, Array{Float(9), Float(10)}},
		{"mode", FilterMode, nil, Array{Float(10), Float(10)}},
	}

	for _, tt := range tests {
		got, err := ApplyFilter(nums, tt.f, tt.args)
		if err != nil {
			t.Fatalf("%s: %v", tt.name, err)
		}

		if !Equal(got, tt.want) {
			t.Errorf("%s: got %s, want %s", tt.name, got, tt.want)
		}
	}
}

// TestFilterErrors verifies argument and input validation of filters.
func TestFilterErrors(t *testing.T) {
	if _, err := ApplyFilter(Array{String("a")}, FilterGreaterThan, []any{uint64(1)}); !IsCode(err, ErrUnsupportedFilter) {
		t.Errorf("strings: got %v", err)
	}

	if _, err := ApplyFilter(Array{Float(1)}, Filter(0x42), nil); !IsCode(err, ErrUnsupportedFilter) {
		t.Errorf("unknown filter: got %v", err)
	}

	if _, err := ApplyFilter(Array{Float(1)}, FilterGreaterThan, nil); !IsCode(err, ErrWrongArguments) {
		t.Errorf("missing argument: got %v", err)
	}

	got, err := ApplyFilter(Array{}, FilterGreaterThan, []any{uint64(1)})
	if err != nil || len(got.(Array)) != 0 {
		t.Errorf("empty input: got %v, %v", got, err)
	}
}

// TestStddevOfConstants verifies a zero deviation on identical inputs.
func TestStddevOfConstants(t *testing.T) {
	got, err := Reduce(Array{Float(3), Float(3)}, ReducerDeviationStandard)
	if err != nil {
		t.Fatalf("stddev: %v", err)
	}

	if f := float64(got.(Float)); f != 0 || math.IsNaN(f) {
		t.Errorf("stddev = %v", f)
	}
}
