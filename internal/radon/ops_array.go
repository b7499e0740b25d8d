package radon

import (
	"sort"
)

// arrayOperators returns the operator table of Array.
func arrayOperators() map[OpCode]operator {
	return map[OpCode]operator{
		OpArrayCount: noArgs(TypeArray, OpArrayCount, func(in Value) (Value, error) {
			return NewInteger(int64(len(in.(Array)))), nil
		}),
		OpArrayFilter:     arrayFilter,
		OpArrayFlatten:    noArgs(TypeArray, OpArrayFlatten, arrayFlatten),
		OpArrayGetArray:   arrayGet(OpArrayGetArray, TypeArray),
		OpArrayGetBoolean: arrayGet(OpArrayGetBoolean, TypeBoolean),
		OpArrayGetBytes:   arrayGet(OpArrayGetBytes, TypeBytes),
		OpArrayGetFloat:   arrayGet(OpArrayGetFloat, TypeFloat),
		OpArrayGetInteger: arrayGet(OpArrayGetInteger, TypeInteger),
		OpArrayGetMap:     arrayGet(OpArrayGetMap, TypeMap),
		OpArrayGetString:  arrayGet(OpArrayGetString, TypeString),
		OpArrayMap:        arrayMap,
		OpArrayReduce:     arrayReduce,
		OpArraySome:       arraySome,
		OpArraySort:       noArgs(TypeArray, OpArraySort, arraySort),
		OpArrayTake:       arrayTake,
	}
}

// arrayFlatten concatenates nested arrays one level deep.
func arrayFlatten(in Value) (Value, error) {
	out := Array{}
	for _, item := range in.(Array) {
		if nested, ok := item.(Array); ok {
			out = append(out, nested...)
			continue
		}

		out = append(out, item)
	}

	return out, nil
}

// arrayGet builds the typed element accessor for the given variant.
func arrayGet(code OpCode, want Type) operator {
	return func(_ *state, in Value, args []any) (Value, error) {
		arr := in.(Array)

		idx, ok := argIndex(args)
		if !ok {
			return nil, wrongArgs(TypeArray, code, args)
		}

		if idx >= len(arr) {
			return nil, NewError(ErrIndexOutOfBounds, NewInteger(int64(idx)), NewInteger(int64(len(arr))))
		}

		item := arr[idx]
		if item.Type() != want {
			return nil, NewDecodeError(item.Type().String(), want.String())
		}

		return item, nil
	}
}

// arrayMap runs a subscript over every element, sharing the caller's gas meter.
func arrayMap(st *state, in Value, args []any) (Value, error) {
	if len(args) != 1 {
		return nil, wrongArgs(TypeArray, OpArrayMap, args)
	}

	sub, err := scriptFromCBOR(args[0])
	if err != nil {
		return nil, wrongArgs(TypeArray, OpArrayMap, args)
	}

	arr := in.(Array)
	out := make(Array, len(arr))

	for i, item := range arr {
		v, err := st.run(item, sub, nil)
		if err != nil {
			return nil, err
		}

		out[i] = v
	}

	return out, nil
}

// arrayReduce folds the array with the reducer named by the argument.
func arrayReduce(_ *state, in Value, args []any) (Value, error) {
	if len(args) != 1 {
		return nil, wrongArgs(TypeArray, OpArrayReduce, args)
	}

	code, ok := smallUint(args[0])
	if !ok || code > 0xFF {
		return nil, wrongArgs(TypeArray, OpArrayReduce, args)
	}

	return Reduce(in.(Array), Reducer(code))
}

// arrayFilter keeps the elements accepted by the filter named by the first argument.
func arrayFilter(_ *state, in Value, args []any) (Value, error) {
	f, fargs, ok := filterArgs(args)
	if !ok {
		return nil, wrongArgs(TypeArray, OpArrayFilter, args)
	}

	return ApplyFilter(in.(Array), f, fargs)
}

// arraySome reports whether the filter accepts at least one element.
func arraySome(_ *state, in Value, args []any) (Value, error) {
	f, fargs, ok := filterArgs(args)
	if !ok {
		return nil, wrongArgs(TypeArray, OpArraySome, args)
	}

	kept, err := ApplyFilter(in.(Array), f, fargs)
	if err != nil {
		return nil, err
	}

	return Boolean(len(kept.(Array)) > 0), nil
}

// arraySort sorts a homogeneous array of integers, floats or strings ascending.
func arraySort(in Value) (Value, error) {
	arr := in.(Array)
	out := append(Array(nil), arr...)

	if len(out) == 0 {
		return Array{}, nil
	}

	want := out[0].Type()
	for _, item := range out {
		if item.Type() != want {
			return nil, NewError(ErrMismatchingTypes, String("Sort"), String(want.String()), String(item.Type().String()))
		}
	}

	switch want {
	case TypeInteger:
		sort.SliceStable(out, func(i, j int) bool { return out[i].(Integer).Cmp(out[j].(Integer)) < 0 })
	case TypeFloat:
		sort.SliceStable(out, func(i, j int) bool { return out[i].(Float) < out[j].(Float) })
	case TypeString:
		sort.SliceStable(out, func(i, j int) bool { return out[i].(String) < out[j].(String) })
	default:
		return nil, wrongArgs(TypeArray, OpArraySort, nil)
	}

	return out, nil
}

// arrayTake returns the first n elements, or the whole array when shorter.
func arrayTake(_ *state, in Value, args []any) (Value, error) {
	n, ok := argIndex(args)
	if !ok {
		return nil, wrongArgs(TypeArray, OpArrayTake, args)
	}

	arr := in.(Array)
	if n > len(arr) {
		n = len(arr)
	}

	return append(Array{}, arr[:n]...), nil
}
