package radon

import (
	"math"
	"math/big"
)

// operator transforms a receiver into a new value. Arguments are raw CBOR
// values decoded from the script.
type operator func(st *state, in Value, args []any) (Value, error)

// operators is the dispatch table keyed by receiver type and opcode.
// It is populated in init because subscript operators reach back into it.
var operators map[Type]map[OpCode]operator

func init() {
	operators = map[Type]map[OpCode]operator{
		TypeArray:   arrayOperators(),
		TypeBoolean: booleanOperators(),
		TypeBytes:   bytesOperators(),
		TypeFloat:   floatOperators(),
		TypeInteger: integerOperators(),
		TypeMap:     mapOperators(),
		TypeString:  stringOperators(),
	}
}

// state is the mutable part of one script execution: the gas meter shared by
// the top-level script and every subscript it runs.
type state struct {
	gasLimit uint64 // gasLimit is the budget, 0 means unlimited
	gasUsed  uint64 // gasUsed is the gas consumed so far
}

// charge consumes the cost of one call on the given receiver.
func (st *state) charge(in Value) error {
	st.gasUsed += 1 + uint64(size(in))

	if st.gasLimit > 0 && st.gasUsed > st.gasLimit {
		return NewError(ErrGasExhausted, Integer{v: new(big.Int).SetUint64(st.gasLimit)})
	}

	return nil
}

// apply runs a single call against the receiver.
func (st *state) apply(in Value, call Call) (Value, error) {
	if err := st.charge(in); err != nil {
		return nil, err
	}

	if call.Op == OpIdentity {
		return in, nil
	}

	if in.Type() == TypeError {
		return nil, in.(*Error)
	}

	fn, ok := operators[in.Type()][call.Op]
	if !ok {
		return nil, NewUnsupportedOperatorError(in.Type(), call.Op)
	}

	return fn(st, in, call.Args)
}

// Apply runs one operator call outside a script, with an unlimited meter.
func Apply(in Value, op OpCode, args ...any) (Value, error) {
	st := &state{}
	return st.apply(in, Call{Op: op, Args: args})
}

// wrongArgs builds the WrongArguments error for an operator call.
func wrongArgs(t Type, code OpCode, args []any) *Error {
	return NewWrongArgumentsError(t, operatorName(t, code), args)
}

// noArgs wraps an operator that takes no arguments.
func noArgs(t Type, code OpCode, fn func(in Value) (Value, error)) operator {
	return func(_ *state, in Value, args []any) (Value, error) {
		if len(args) != 0 {
			return nil, wrongArgs(t, code, args)
		}

		return fn(in)
	}
}

// argIndex reads the single non-negative integer argument of an operator.
func argIndex(args []any) (int, bool) {
	if len(args) != 1 {
		return 0, false
	}

	n, ok := smallUint(args[0])
	if !ok || n > math.MaxInt32 {
		return 0, false
	}

	return int(n), true
}

// argString reads the single string argument of an operator.
func argString(args []any) (string, bool) {
	if len(args) != 1 {
		return "", false
	}

	s, ok := args[0].(string)
	return s, ok
}

// argInteger reads an integer argument of any width.
func argInteger(raw any) (Integer, bool) {
	v, err := FromCBOR(raw)
	if err != nil {
		return Integer{}, false
	}

	i, ok := v.(Integer)
	return i, ok
}

// argNumber reads an integer or float argument as a float64.
func argNumber(raw any) (float64, bool) {
	v, err := FromCBOR(raw)
	if err != nil {
		return 0, false
	}

	switch tv := v.(type) {
	case Float:
		return float64(tv), true
	case Integer:
		return tv.Float64(), true
	}

	return 0, false
}

// matchValue implements the Match contract shared by String, Boolean and
// Integer: look key up in a CBOR map argument and convert the hit to the
// variant of the default, or return the default when absent.
func matchValue(t Type, code OpCode, key string, args []any) (Value, error) {
	if len(args) != 2 {
		return nil, wrongArgs(t, code, args)
	}

	mapping, err := DecodeAs(args[0], TypeMap)
	if err != nil {
		return nil, err
	}

	def, err := FromCBOR(args[1])
	if err != nil {
		return nil, err
	}

	if def.Type() == TypeError {
		return nil, wrongArgs(t, code, args)
	}

	hit, ok := mapping.(Map)[key]
	if !ok {
		return def, nil
	}

	if hit.Type() != def.Type() {
		return nil, NewDecodeError(cborValueName, def.Type().String())
	}

	return hit, nil
}
