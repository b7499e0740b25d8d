package radon

import (
	"fmt"
	"math"
	"sort"
)

// Reducer identifies an aggregation folding an Array into a single value.
type Reducer uint8

// Reducer codes. Codes between these that are not listed are known to other
// nodes but not implemented here.
const (
	ReducerMin               Reducer = 0x00
	ReducerMax               Reducer = 0x01
	ReducerMode              Reducer = 0x02
	ReducerAverageMean       Reducer = 0x03
	ReducerAverageMedian     Reducer = 0x05
	ReducerDeviationStandard Reducer = 0x07
)

// reducerNames names the implemented reducers.
var reducerNames = map[Reducer]string{
	ReducerMin:               "Min",
	ReducerMax:               "Max",
	ReducerMode:              "Mode",
	ReducerAverageMean:       "AverageMean",
	ReducerAverageMedian:     "AverageMedian",
	ReducerDeviationStandard: "DeviationStandard",
}

// String returns the name of the reducer.
func (r Reducer) String() string {
	if name, ok := reducerNames[r]; ok {
		return name
	}

	return fmt.Sprintf("Reducer(0x%02x)", uint8(r))
}

// ReducerByName resolves a symbolic reducer name.
func ReducerByName(name string) (Reducer, bool) {
	for r, n := range reducerNames {
		if n == name {
			return r, true
		}
	}

	return 0, false
}

// Reduce folds the array into one value. Min, Max, the averages and the
// deviation require a homogeneous Integer or Float array; Mode accepts any
// values. Empty arrays fail with EmptyArray.
func Reduce(arr Array, r Reducer) (Value, error) {
	if _, ok := reducerNames[r]; !ok {
		return nil, NewError(ErrUnsupportedReducer, String(r.String()), String(TypeArray.String()))
	}

	if len(arr) == 0 {
		return nil, NewError(ErrEmptyArray)
	}

	if r == ReducerMode {
		return mode(arr), nil
	}

	nums, _, err := numbers(r.String(), arr)
	if err != nil {
		return nil, err
	}

	switch r {
	case ReducerMin:
		return extreme(arr, -1), nil
	case ReducerMax:
		return extreme(arr, 1), nil
	case ReducerAverageMean:
		return Float(mean(nums)), nil
	case ReducerAverageMedian:
		return median(arr), nil
	default:
		return Float(stddev(nums)), nil
	}
}

// numbers extracts the float view of a homogeneous numeric array.
func numbers(op string, arr Array) ([]float64, Type, error) {
	t := arr[0].Type()
	if t != TypeInteger && t != TypeFloat {
		return nil, t, NewError(ErrUnsupportedReducer, String(op), String(t.String()))
	}

	out := make([]float64, len(arr))
	for i, item := range arr {
		switch tv := item.(type) {
		case Integer:
			if t != TypeInteger {
				return nil, t, NewError(ErrMismatchingTypes, String(op), String(t.String()), String(item.Type().String()))
			}

			out[i] = tv.Float64()

		case Float:
			if t != TypeFloat {
				return nil, t, NewError(ErrMismatchingTypes, String(op), String(t.String()), String(item.Type().String()))
			}

			out[i] = float64(tv)

		default:
			return nil, t, NewError(ErrMismatchingTypes, String(op), String(t.String()), String(item.Type().String()))
		}
	}

	return out, t, nil
}

// compareNumeric orders two numbers of the same variant.
func compareNumeric(a, b Value) int {
	if ai, ok := a.(Integer); ok {
		return ai.Cmp(b.(Integer))
	}

	af, bf := a.(Float), b.(Float)

	switch {
	case af < bf:
		return -1
	case af > bf:
		return 1
	}

	return 0
}

// extreme returns the first minimum (sign -1) or maximum (sign 1).
func extreme(arr Array, sign int) Value {
	best := arr[0]
	for _, item := range arr[1:] {
		if compareNumeric(item, best)*sign > 0 {
			best = item
		}
	}

	return best
}

// mode returns the most frequent value; ties go to the value seen first.
func mode(arr Array) Value {
	var (
		reps   []Value
		counts []int
	)

	for _, item := range arr {
		found := false
		for i, rep := range reps {
			if Equal(rep, item) {
				counts[i]++
				found = true
				break
			}
		}

		if !found {
			reps = append(reps, item)
			counts = append(counts, 1)
		}
	}

	best := 0
	for i := range counts {
		if counts[i] > counts[best] {
			best = i
		}
	}

	return reps[best]
}

// mean returns the arithmetic mean.
func mean(nums []float64) float64 {
	var sum float64
	for _, n := range nums {
		sum += n
	}

	return sum / float64(len(nums))
}

// median returns the middle element, or the Float mean of the two middle
// elements for even lengths.
func median(arr Array) Value {
	sorted := append(Array(nil), arr...)
	sort.SliceStable(sorted, func(i, j int) bool { return compareNumeric(sorted[i], sorted[j]) < 0 })

	mid := len(sorted) / 2
	if len(sorted)%2 == 1 {
		return sorted[mid]
	}

	a, b := toFloat(sorted[mid-1]), toFloat(sorted[mid])
	return Float((a + b) / 2)
}

// stddev returns the population standard deviation.
func stddev(nums []float64) float64 {
	m := mean(nums)

	var acc float64
	for _, n := range nums {
		acc += (n - m) * (n - m)
	}

	return math.Sqrt(acc / float64(len(nums)))
}

// toFloat returns the float view of a numeric value.
func toFloat(v Value) float64 {
	if i, ok := v.(Integer); ok {
		return i.Float64()
	}

	return float64(v.(Float))
}
