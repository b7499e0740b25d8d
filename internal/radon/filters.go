package radon

import (
	"fmt"
	"math"
	"sort"
)

// Filter identifies a predicate used by Array.Filter and Array.Some.
type Filter uint8

// Filter codes. The 0x80 range negates the comparison filters.
const (
	FilterGreaterThan        Filter = 0x00
	FilterLessThan           Filter = 0x01
	FilterEquals             Filter = 0x02
	FilterDeviationAbsolute  Filter = 0x03
	FilterDeviationRelative  Filter = 0x04
	FilterDeviationStandard  Filter = 0x05
	FilterTop                Filter = 0x06
	FilterBottom             Filter = 0x07
	FilterMode               Filter = 0x08
	FilterLessOrEqualThan    Filter = 0x80
	FilterGreaterOrEqualThan Filter = 0x81
	FilterNotEquals          Filter = 0x82
)

// filterNames names every implemented filter.
var filterNames = map[Filter]string{
	FilterGreaterThan:        "GreaterThan",
	FilterLessThan:           "LessThan",
	FilterEquals:             "Equals",
	FilterDeviationAbsolute:  "DeviationAbsolute",
	FilterDeviationRelative:  "DeviationRelative",
	FilterDeviationStandard:  "DeviationStandard",
	FilterTop:                "Top",
	FilterBottom:             "Bottom",
	FilterMode:               "Mode",
	FilterLessOrEqualThan:    "LessOrEqualThan",
	FilterGreaterOrEqualThan: "GreaterOrEqualThan",
	FilterNotEquals:          "NotEquals",
}

// String returns the name of the filter.
func (f Filter) String() string {
	if name, ok := filterNames[f]; ok {
		return name
	}

	return fmt.Sprintf("Filter(0x%02x)", uint8(f))
}

// FilterByName resolves a symbolic filter name.
func FilterByName(name string) (Filter, bool) {
	for f, n := range filterNames {
		if n == name {
			return f, true
		}
	}

	return 0, false
}

// filterArgs splits operator arguments into the filter code and its own arguments.
func filterArgs(args []any) (Filter, []any, bool) {
	if len(args) == 0 {
		return 0, nil, false
	}

	code, ok := smallUint(args[0])
	if !ok || code > 0xFF {
		return 0, nil, false
	}

	return Filter(code), args[1:], true
}

// ApplyFilter returns the elements of arr accepted by the filter, in input
// order except for Top and Bottom which return them ranked.
func ApplyFilter(arr Array, f Filter, args []any) (Value, error) {
	unsupported := func() error {
		return NewError(ErrUnsupportedFilter, String(f.String()), String(TypeArray.String()))
	}

	if _, ok := filterNames[f]; !ok {
		return nil, unsupported()
	}

	switch f {
	case FilterEquals, FilterNotEquals:
		if len(args) != 1 {
			return nil, wrongArgs(TypeArray, OpArrayFilter, args)
		}

		target, err := FromCBOR(args[0])
		if err != nil {
			return nil, err
		}

		return keep(arr, func(_ int, v Value) bool { return Equal(v, target) == (f == FilterEquals) }), nil

	case FilterMode:
		if len(arr) == 0 {
			return Array{}, nil
		}

		m := mode(arr)
		return keep(arr, func(_ int, v Value) bool { return Equal(v, m) }), nil
	}

	if len(arr) == 0 {
		return Array{}, nil
	}

	nums, _, err := numbers(f.String(), arr)
	if err != nil {
		if IsCode(err, ErrUnsupportedReducer) {
			return nil, unsupported()
		}

		return nil, err
	}

	if f == FilterTop || f == FilterBottom {
		n, ok := argIndex(args)
		if !ok {
			return nil, wrongArgs(TypeArray, OpArrayFilter, args)
		}

		return rank(arr, n, f == FilterTop), nil
	}

	if len(args) != 1 {
		return nil, wrongArgs(TypeArray, OpArrayFilter, args)
	}

	x, ok := argNumber(args[0])
	if !ok {
		return nil, wrongArgs(TypeArray, OpArrayFilter, args)
	}

	var accept func(n float64) bool

	switch f {
	case FilterGreaterThan:
		accept = func(n float64) bool { return n > x }
	case FilterLessThan:
		accept = func(n float64) bool { return n < x }
	case FilterLessOrEqualThan:
		accept = func(n float64) bool { return n <= x }
	case FilterGreaterOrEqualThan:
		accept = func(n float64) bool { return n >= x }
	case FilterDeviationAbsolute:
		m := mean(nums)
		accept = func(n float64) bool { return math.Abs(n-m) <= x }
	case FilterDeviationRelative:
		m := mean(nums)
		accept = func(n float64) bool { return math.Abs(n-m) <= x*math.Abs(m) }
	case FilterDeviationStandard:
		m, sd := mean(nums), stddev(nums)
		accept = func(n float64) bool { return math.Abs(n-m) <= x*sd }
	default:
		return nil, unsupported()
	}

	return keep(arr, func(i int, _ Value) bool { return accept(nums[i]) }), nil
}

// keep returns the elements for which pred holds, preserving order.
func keep(arr Array, pred func(i int, v Value) bool) Array {
	out := Array{}
	for i, v := range arr {
		if pred(i, v) {
			out = append(out, v)
		}
	}

	return out
}

// rank returns the n largest (top) or smallest elements, best first. Equal
// elements keep their input order.
func rank(arr Array, n int, top bool) Array {
	sorted := append(Array(nil), arr...)
	sort.SliceStable(sorted, func(i, j int) bool {
		c := compareNumeric(sorted[i], sorted[j])
		if top {
			return c > 0
		}

		return c < 0
	})

	if n > len(sorted) {
		n = len(sorted)
	}

	return sorted[:n]
}
